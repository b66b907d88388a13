// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package decision

import (
	"context"
	"errors"
	"testing"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Verdict
	}{
		{"approved", `{"verdict":"approved","reason":"clean"}`, VerdictApproved},
		{"rejected", `{"verdict":"rejected","reason":"prohibited"}`, VerdictRejected},
		{"fenced json", "```json\n{\"verdict\":\"approved\",\"reason\":\"ok\"}\n```", VerdictApproved},
		{"unknown verdict fails closed", `{"verdict":"maybe","reason":"?"}`, VerdictRejected},
		{"unparseable fails closed", `not json at all`, VerdictRejected},
		{"empty fails closed", ``, VerdictRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseDecision(tt.content)
			if got.Verdict != tt.want {
				t.Errorf("parseDecision(%q) = %s, want %s", tt.content, got.Verdict, tt.want)
			}
			if got.Reason == "" {
				t.Errorf("parseDecision(%q): reason must not be empty", tt.content)
			}
		})
	}
}

func TestStaticClient_Review(t *testing.T) {
	ctx := context.Background()
	c := NewStaticClient()

	dec, err := c.Review(ctx, ReviewRequest{SubjectID: "s1", Name: "wooden chair"})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if dec.Verdict != VerdictApproved {
		t.Errorf("expected approved, got %s", dec.Verdict)
	}

	dec, err = c.Review(ctx, ReviewRequest{SubjectID: "s2", Name: "toy gun", Description: "plastic"})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if dec.Verdict != VerdictRejected || dec.Reason == "" {
		t.Errorf("expected rejected with reason, got %+v", dec)
	}

	_, err = c.Review(ctx, ReviewRequest{SubjectID: "s3", Name: "   "})
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for empty name, got %v", err)
	}
}

func TestRateLimitedClient_PassThrough(t *testing.T) {
	ctx := context.Background()
	inner := ClientFunc(func(ctx context.Context, req ReviewRequest) (Decision, error) {
		return Decision{Verdict: VerdictApproved, Reason: "ok"}, nil
	})
	c := NewRateLimitedClient(inner, NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 600,
		MaxConcurrent:     2,
	}))

	dec, err := c.Review(ctx, ReviewRequest{SubjectID: "s1", Name: "chair"})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if dec.Verdict != VerdictApproved {
		t.Errorf("expected approved, got %s", dec.Verdict)
	}
}
