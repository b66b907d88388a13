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
)

var (
	// ErrSubjectNotFound 审核对象不存在
	ErrSubjectNotFound = errors.New("moderation: subject not found")
	// ErrStaleDecision 决策所带 revision 落后于对象当前 revision（对象已被再次编辑）
	ErrStaleDecision = errors.New("moderation: decision is stale, subject has been revised")
	// ErrIllegalTransition 对象不在 pending_review，无可执行的状态迁移
	ErrIllegalTransition = errors.New("moderation: subject is not pending review")
)

// Store 审核对象存储。Transition 必须原子校验 revision 与当前状态，
// 这是 "过期决策不得覆盖新提交" 不变量在存储层的落点。
type Store interface {
	// Create 写入新对象；调用方应预置 State=pending_review、Revision=1
	Create(ctx context.Context, s *Subject) error
	// Get 按 ID 取对象；不存在返回 ErrSubjectNotFound
	Get(ctx context.Context, id string) (*Subject, error)
	// Revise 更新内容：Revision+1、State 强制回 pending_review、Notes 清空；
	// 返回更新后的对象
	Revise(ctx context.Context, id, name, description string) (*Subject, error)
	// Transition 仅当对象 revision 匹配且处于 pending_review 时迁移到 newState 并写入
	// notes；revision 不匹配返回 ErrStaleDecision，状态不符返回 ErrIllegalTransition
	Transition(ctx context.Context, id string, revision int64, newState State, notes string) (*Subject, error)
}
