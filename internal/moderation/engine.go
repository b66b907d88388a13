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
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"moderation-platform/internal/decision"
	"moderation-platform/internal/notify"
)

const engineShards = 32

// Engine 状态迁移引擎：唯一合法迁移是 pending_review → active|rejected。
// 同一 subject 的迁移经按哈希分片的互斥锁串行执行（单写者），不同 subject
// 完全并行；迁移与事件构造在锁内完成，保证每个终态决策恰好产生一个事件。
type Engine struct {
	store Store
	locks [engineShards]sync.Mutex
}

// NewEngine 创建状态迁移引擎
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

func (e *Engine) lockFor(subjectID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(subjectID))
	return &e.locks[int(h.Sum32())%engineShards]
}

// Apply 将决策落到 subject 上并构造通知事件。revision 为任务入队时的对象
// 版本：对象其间被再次编辑时返回 ErrStaleDecision 且不产生事件（过期判定
// 不落锁外，由存储层 Transition 原子兜底）。
func (e *Engine) Apply(ctx context.Context, subjectID string, revision int64, d decision.Decision) (*notify.NotificationEvent, error) {
	newState := StateRejected
	if d.Verdict == decision.VerdictApproved {
		newState = StateActive
	}

	mu := e.lockFor(subjectID)
	mu.Lock()
	defer mu.Unlock()

	sub, err := e.store.Transition(ctx, subjectID, revision, newState, d.Reason)
	if err != nil {
		return nil, err
	}

	return &notify.NotificationEvent{
		EventID:   uuid.New().String(),
		SubjectID: sub.ID,
		OwnerID:   sub.OwnerID,
		NewState:  string(sub.State),
		Notes:     sub.Notes,
		Timestamp: time.Now().UTC(),
	}, nil
}

// GetState 状态查询（轮询兜底）；始终反映最近一次已提交的迁移
func (e *Engine) GetState(ctx context.Context, subjectID string) (*StateView, error) {
	sub, err := e.store.Get(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return &StateView{State: sub.State, Notes: sub.Notes}, nil
}
