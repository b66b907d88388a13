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

package modqueue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryQueue_Enqueue_Claim(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(3)

	jobID, err := q.Enqueue(ctx, "sub-1", "owner-1", 1, Payload{Name: "widget"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	job, err := q.ClaimOne(ctx, "worker-1")
	if err != nil {
		t.Fatalf("ClaimOne: %v", err)
	}
	if job == nil || job.ID != jobID {
		t.Fatalf("expected job %s, got %+v", jobID, job)
	}
	if job.Status != StatusRunning || job.SubjectID != "sub-1" || job.Revision != 1 {
		t.Errorf("claimed job mismatch: %+v", job)
	}

	// 已被认领，不应再被其他 worker 取到
	again, err := q.ClaimOne(ctx, "worker-2")
	if err != nil {
		t.Fatalf("ClaimOne: %v", err)
	}
	if again != nil {
		t.Errorf("expected no claimable job, got %+v", again)
	}
}

func TestMemoryQueue_Claim_SkipsNotDue(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(3)

	jobID, _ := q.Enqueue(ctx, "sub-1", "owner-1", 1, Payload{Name: "widget"})
	job, _ := q.ClaimOne(ctx, "worker-1")
	if job == nil {
		t.Fatal("expected claimable job")
	}

	// 重试时间在未来，不应被认领
	if err := q.Reschedule(ctx, jobID, 1, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	job, err := q.ClaimOne(ctx, "worker-1")
	if err != nil {
		t.Fatalf("ClaimOne: %v", err)
	}
	if job != nil {
		t.Errorf("expected nil for not-due job, got %+v", job)
	}

	// 回拨到过去后可重新认领，且 attempt 递增
	if err := q.Reschedule(ctx, jobID, 1, time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	job, _ = q.ClaimOne(ctx, "worker-1")
	if job == nil || job.Attempt != 1 {
		t.Fatalf("expected re-claimed job with attempt 1, got %+v", job)
	}
}

func TestMemoryQueue_Claim_EarliestFirst(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(3)

	id1, _ := q.Enqueue(ctx, "sub-1", "owner-1", 1, Payload{Name: "a"})
	id2, _ := q.Enqueue(ctx, "sub-2", "owner-1", 1, Payload{Name: "b"})
	_, _ = q.ClaimOne(ctx, "worker-1")
	_, _ = q.ClaimOne(ctx, "worker-1")

	// 显式排定到期时间，较早到期者先被认领
	now := time.Now()
	_ = q.Reschedule(ctx, id1, 1, now.Add(-time.Second))
	_ = q.Reschedule(ctx, id2, 1, now.Add(-2*time.Second))

	j1, _ := q.ClaimOne(ctx, "worker-1")
	j2, _ := q.ClaimOne(ctx, "worker-1")
	if j1 == nil || j2 == nil {
		t.Fatal("expected two claimable jobs")
	}
	if j1.ID != id2 || j2.ID != id1 {
		t.Errorf("expected claim order %s, %s; got %s, %s", id2, id1, j1.ID, j2.ID)
	}
}

func TestMemoryQueue_Enqueue_SupersedesPrevious(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(3)

	oldID, _ := q.Enqueue(ctx, "sub-1", "owner-1", 1, Payload{Name: "v1"})
	newID, err := q.Enqueue(ctx, "sub-1", "owner-1", 2, Payload{Name: "v2"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	old, err := q.GetStatus(ctx, oldID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if old.Status != StatusSuperseded {
		t.Errorf("expected old job superseded, got %s", old.Status)
	}

	// 被取代的任务不可再被认领
	job, _ := q.ClaimOne(ctx, "worker-1")
	if job == nil || job.ID != newID {
		t.Fatalf("expected new job %s, got %+v", newID, job)
	}

	// 对被取代任务的任何状态迁移都应报终态
	if err := q.MarkSucceeded(ctx, oldID); !errors.Is(err, ErrJobTerminal) {
		t.Errorf("expected ErrJobTerminal, got %v", err)
	}
}

func TestMemoryQueue_MarkTerminal_Idempotence(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(3)

	jobID, _ := q.Enqueue(ctx, "sub-1", "owner-1", 1, Payload{Name: "widget"})
	if _, err := q.ClaimOne(ctx, "worker-1"); err != nil {
		t.Fatalf("ClaimOne: %v", err)
	}

	if err := q.MarkSucceeded(ctx, jobID); err != nil {
		t.Fatalf("MarkSucceeded: %v", err)
	}
	if err := q.MarkSucceeded(ctx, jobID); !errors.Is(err, ErrJobTerminal) {
		t.Errorf("expected ErrJobTerminal on second mark, got %v", err)
	}
	if err := q.MarkFailed(ctx, jobID, "late failure"); !errors.Is(err, ErrJobTerminal) {
		t.Errorf("expected ErrJobTerminal, got %v", err)
	}
	if err := q.Reschedule(ctx, jobID, 2, time.Now()); !errors.Is(err, ErrJobTerminal) {
		t.Errorf("expected ErrJobTerminal, got %v", err)
	}

	job, _ := q.GetStatus(ctx, jobID)
	if job.Status != StatusSucceeded {
		t.Errorf("terminal status must not change, got %s", job.Status)
	}
}

func TestMemoryQueue_MarkFailed_RecordsReason(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(3)

	jobID, _ := q.Enqueue(ctx, "sub-1", "owner-1", 1, Payload{Name: "widget"})
	_, _ = q.ClaimOne(ctx, "worker-1")

	if err := q.MarkFailed(ctx, jobID, "moderation unavailable, defaulting to reject"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	job, _ := q.GetStatus(ctx, jobID)
	if job.Status != StatusFailed || job.FailReason == "" {
		t.Errorf("expected failed job with reason, got %+v", job)
	}
}

func TestMemoryQueue_GetStatus_NotFound(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(3)
	if _, err := q.GetStatus(ctx, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}
