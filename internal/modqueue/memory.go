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
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryQueue 内存实现，供测试与单机部署
type memoryQueue struct {
	mu          sync.Mutex
	jobs        map[string]*Job
	bySubject   map[string]string // subjectID → 非终态任务 ID
	maxAttempts int
}

// NewMemoryQueue 创建内存版任务队列；maxAttempts 为新任务的最大执行次数（含首次），<=0 默认 3
func NewMemoryQueue(maxAttempts int) Queue {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &memoryQueue{
		jobs:        make(map[string]*Job),
		bySubject:   make(map[string]string),
		maxAttempts: maxAttempts,
	}
}

func (q *memoryQueue) Enqueue(ctx context.Context, subjectID, ownerID string, revision int64, payload Payload) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	// latest edit wins：取代同 subject 的在途任务
	if oldID, ok := q.bySubject[subjectID]; ok {
		if old := q.jobs[oldID]; old != nil && !old.Status.Terminal() {
			old.Status = StatusSuperseded
			old.UpdatedAt = time.Now()
		}
	}

	now := time.Now()
	job := &Job{
		ID:          uuid.New().String(),
		SubjectID:   subjectID,
		OwnerID:     ownerID,
		Payload:     payload,
		Revision:    revision,
		MaxAttempts: q.maxAttempts,
		NextRetryAt: now,
		Status:      StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	q.jobs[job.ID] = job
	q.bySubject[subjectID] = job.ID
	return job.ID, nil
}

func (q *memoryQueue) ClaimOne(ctx context.Context, workerID string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	var pick *Job
	for _, job := range q.jobs {
		if job.Status != StatusQueued || job.NextRetryAt.After(now) {
			continue
		}
		if pick == nil || job.NextRetryAt.Before(pick.NextRetryAt) {
			pick = job
		}
	}
	if pick == nil {
		return nil, nil
	}
	pick.Status = StatusRunning
	pick.UpdatedAt = now
	cp := *pick
	return &cp, nil
}

func (q *memoryQueue) Reschedule(ctx context.Context, jobID string, attempt int, nextRetryAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status.Terminal() {
		return ErrJobTerminal
	}
	job.Status = StatusQueued
	job.Attempt = attempt
	job.NextRetryAt = nextRetryAt
	job.UpdatedAt = time.Now()
	return nil
}

func (q *memoryQueue) MarkSucceeded(ctx context.Context, jobID string) error {
	return q.markTerminal(jobID, StatusSucceeded, "")
}

func (q *memoryQueue) MarkFailed(ctx context.Context, jobID string, reason string) error {
	return q.markTerminal(jobID, StatusFailed, reason)
}

func (q *memoryQueue) markTerminal(jobID string, status Status, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status.Terminal() {
		return ErrJobTerminal
	}
	job.Status = status
	job.FailReason = reason
	job.UpdatedAt = time.Now()
	if q.bySubject[job.SubjectID] == jobID {
		delete(q.bySubject, job.SubjectID)
	}
	return nil
}

func (q *memoryQueue) GetStatus(ctx context.Context, jobID string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}
