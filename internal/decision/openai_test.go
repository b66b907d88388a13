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
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newModerationServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, content)
		}
	}))
}

func newTestClient(t *testing.T, baseURL string) *OpenAIClient {
	t.Helper()
	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "test-key", BaseURL: baseURL})
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}
	return c
}

func TestOpenAIClient_Review_Approved(t *testing.T) {
	srv := newModerationServer(t, http.StatusOK, `{"verdict":"approved","reason":"complies with policy"}`)
	defer srv.Close()

	dec, err := newTestClient(t, srv.URL).Review(context.Background(), ReviewRequest{
		SubjectID: "s1", Name: "wooden chair", Description: "a chair",
	})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if dec.Verdict != VerdictApproved || dec.Reason != "complies with policy" {
		t.Errorf("decision mismatch: %+v", dec)
	}
}

func TestOpenAIClient_Review_RateLimited(t *testing.T) {
	srv := newModerationServer(t, http.StatusTooManyRequests, "")
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Review(context.Background(), ReviewRequest{
		SubjectID: "s1", Name: "chair",
	})
	if !errors.Is(err, ErrTransient) {
		t.Errorf("expected ErrTransient for 429, got %v", err)
	}
}

func TestOpenAIClient_Review_ServerError(t *testing.T) {
	srv := newModerationServer(t, http.StatusInternalServerError, "")
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Review(context.Background(), ReviewRequest{
		SubjectID: "s1", Name: "chair",
	})
	if !errors.Is(err, ErrTransient) {
		t.Errorf("expected ErrTransient for 500, got %v", err)
	}
}

func TestOpenAIClient_Review_BadRequest(t *testing.T) {
	srv := newModerationServer(t, http.StatusBadRequest, "")
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Review(context.Background(), ReviewRequest{
		SubjectID: "s1", Name: "chair",
	})
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for 400, got %v", err)
	}
}

func TestOpenAIClient_Review_EmptyName(t *testing.T) {
	_, err := newTestClient(t, "http://unused.invalid").Review(context.Background(), ReviewRequest{
		SubjectID: "s1", Name: "",
	})
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for empty name, got %v", err)
	}
}

func TestOpenAIClient_Review_Unreachable(t *testing.T) {
	_, err := newTestClient(t, "http://127.0.0.1:1").Review(context.Background(), ReviewRequest{
		SubjectID: "s1", Name: "chair",
	})
	if !errors.Is(err, ErrTransient) {
		t.Errorf("expected ErrTransient for unreachable endpoint, got %v", err)
	}
}
