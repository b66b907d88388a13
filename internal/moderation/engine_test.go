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

package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"moderation-platform/internal/decision"
)

func newEngineWithSubject(t *testing.T, id string) (*Engine, Store) {
	t.Helper()
	store := NewMemoryStore()
	err := store.Create(context.Background(), &Subject{
		ID: id, OwnerID: "owner-1", Name: "widget", State: StatePendingReview, Revision: 1,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return NewEngine(store), store
}

func TestEngine_Apply_Approved(t *testing.T) {
	ctx := context.Background()
	e, store := newEngineWithSubject(t, "sub-1")

	ev, err := e.Apply(ctx, "sub-1", 1, decision.Decision{Verdict: decision.VerdictApproved, Reason: "clean"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if ev.EventID == "" || ev.SubjectID != "sub-1" || ev.OwnerID != "owner-1" || ev.NewState != "active" {
		t.Errorf("event mismatch: %+v", ev)
	}
	sub, _ := store.Get(ctx, "sub-1")
	if sub.State != StateActive || sub.Notes != "clean" {
		t.Errorf("subject mismatch: state=%s notes=%q", sub.State, sub.Notes)
	}
}

func TestEngine_Apply_Rejected(t *testing.T) {
	ctx := context.Background()
	e, store := newEngineWithSubject(t, "sub-1")

	ev, err := e.Apply(ctx, "sub-1", 1, decision.Decision{Verdict: decision.VerdictRejected, Reason: "prohibited"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if ev.NewState != "rejected" || ev.Notes != "prohibited" {
		t.Errorf("event mismatch: %+v", ev)
	}
	sub, _ := store.Get(ctx, "sub-1")
	if sub.State != StateRejected {
		t.Errorf("expected rejected, got %s", sub.State)
	}
}

func TestEngine_Apply_StaleRevision(t *testing.T) {
	ctx := context.Background()
	e, store := newEngineWithSubject(t, "sub-1")

	// 对象被编辑，revision 前进到 2
	if _, err := store.Revise(ctx, "sub-1", "widget v2", ""); err != nil {
		t.Fatalf("Revise: %v", err)
	}

	_, err := e.Apply(ctx, "sub-1", 1, decision.Decision{Verdict: decision.VerdictApproved})
	if !errors.Is(err, ErrStaleDecision) {
		t.Fatalf("expected ErrStaleDecision, got %v", err)
	}
	sub, _ := store.Get(ctx, "sub-1")
	if sub.State != StatePendingReview {
		t.Errorf("stale decision must not transition, got %s", sub.State)
	}
}

func TestEngine_Apply_OnlyFromPendingReview(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngineWithSubject(t, "sub-1")

	if _, err := e.Apply(ctx, "sub-1", 1, decision.Decision{Verdict: decision.VerdictApproved}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	// 已终态的对象按同一 revision 再迁移是非法的
	_, err := e.Apply(ctx, "sub-1", 1, decision.Decision{Verdict: decision.VerdictRejected})
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestEngine_Apply_NotFound(t *testing.T) {
	e := NewEngine(NewMemoryStore())
	_, err := e.Apply(context.Background(), "missing", 1, decision.Decision{Verdict: decision.VerdictApproved})
	if !errors.Is(err, ErrSubjectNotFound) {
		t.Fatalf("expected ErrSubjectNotFound, got %v", err)
	}
}

func TestEngine_Apply_ParallelSubjects(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	e := NewEngine(store)

	const n = 64
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("sub-%d", i)
		_ = store.Create(ctx, &Subject{ID: id, OwnerID: "owner-1", State: StatePendingReview, Revision: 1})
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.Apply(ctx, fmt.Sprintf("sub-%d", i), 1, decision.Decision{Verdict: decision.VerdictApproved})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Apply: %v", err)
		}
	}

	for i := 0; i < n; i++ {
		sub, _ := store.Get(ctx, fmt.Sprintf("sub-%d", i))
		if sub.State != StateActive {
			t.Errorf("sub-%d: expected active, got %s", i, sub.State)
		}
	}
}

func TestEngine_GetState(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngineWithSubject(t, "sub-1")

	view, err := e.GetState(ctx, "sub-1")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if view.State != StatePendingReview {
		t.Errorf("expected pending_review, got %s", view.State)
	}

	_, _ = e.Apply(ctx, "sub-1", 1, decision.Decision{Verdict: decision.VerdictRejected, Reason: "bad"})
	view, _ = e.GetState(ctx, "sub-1")
	if view.State != StateRejected || view.Notes != "bad" {
		t.Errorf("view mismatch: %+v", view)
	}
}
