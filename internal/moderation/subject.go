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

import "time"

// State 审核对象状态
type State string

const (
	// StatePendingReview 等待审核；新建与每次内容编辑后均回到此状态
	StatePendingReview State = "pending_review"
	// StateActive 审核通过，对外可见
	StateActive State = "active"
	// StateRejected 审核拒绝（含重试耗尽后的 fail-closed 拒绝）
	StateRejected State = "rejected"
)

// Subject 审核对象（如一件商品）。State 只由 Engine 变更；Revision 在每次
// 内容编辑时递增，是判定过期决策的依据。
type Subject struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	State       State     `json:"state"`
	Notes       string    `json:"notes"`
	Revision    int64     `json:"revision"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StateView 状态查询接口的返回（轮询兜底，始终反映最近一次已提交的变更）
type StateView struct {
	State State  `json:"state"`
	Notes string `json:"notes"`
}
