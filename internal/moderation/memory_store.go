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
	"sync"
	"time"
)

// memoryStore 内存实现，供测试与单机部署
type memoryStore struct {
	mu       sync.RWMutex
	subjects map[string]*Subject
}

// NewMemoryStore 创建内存版审核对象存储
func NewMemoryStore() Store {
	return &memoryStore{subjects: make(map[string]*Subject)}
}

func (s *memoryStore) Create(ctx context.Context, sub *Subject) error {
	now := time.Now()
	cp := *sub
	cp.CreatedAt = now
	cp.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[cp.ID] = &cp
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id string) (*Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subjects[id]
	if !ok {
		return nil, ErrSubjectNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *memoryStore) Revise(ctx context.Context, id, name, description string) (*Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subjects[id]
	if !ok {
		return nil, ErrSubjectNotFound
	}
	sub.Name = name
	sub.Description = description
	sub.Revision++
	sub.State = StatePendingReview
	sub.Notes = ""
	sub.UpdatedAt = time.Now()
	cp := *sub
	return &cp, nil
}

func (s *memoryStore) Transition(ctx context.Context, id string, revision int64, newState State, notes string) (*Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subjects[id]
	if !ok {
		return nil, ErrSubjectNotFound
	}
	if sub.Revision != revision {
		return nil, ErrStaleDecision
	}
	if sub.State != StatePendingReview {
		return nil, ErrIllegalTransition
	}
	sub.State = newState
	sub.Notes = notes
	sub.UpdatedAt = time.Now()
	cp := *sub
	return &cp, nil
}
