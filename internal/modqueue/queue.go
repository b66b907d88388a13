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
	"time"
)

var (
	// ErrJobNotFound 任务不存在
	ErrJobNotFound = errors.New("modqueue: job not found")
	// ErrJobTerminal 任务已处于终态（含 superseded），本次标记被拒绝。
	// Executor 以此为完成标志：收到该错误即丢弃手头结果，不发布事件
	ErrJobTerminal = errors.New("modqueue: job already terminal")
)

// Status 审核任务状态
type Status string

const (
	// StatusQueued 等待认领（含退避等待中）
	StatusQueued Status = "queued"
	// StatusRunning 已被 Worker 认领执行
	StatusRunning Status = "running"
	// StatusSucceeded 终态：拿到决策并完成状态迁移
	StatusSucceeded Status = "succeeded"
	// StatusFailed 终态：重试耗尽或不可重试失败
	StatusFailed Status = "failed"
	// StatusSuperseded 终态：同一 subject 的更新提交取代了本任务
	StatusSuperseded Status = "superseded"
)

// Terminal 判断状态是否为终态
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSuperseded
}

// Payload 审核任务载荷：入队时对象内容的快照
type Payload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Job 审核任务。Revision 为入队时 subject 的版本，决策回来后据此判定是否过期；
// 同一 subject 至多存在一个非终态任务（latest edit wins）。
type Job struct {
	ID          string    `json:"id"`
	SubjectID   string    `json:"subject_id"`
	OwnerID     string    `json:"owner_id"`
	Payload     Payload   `json:"payload"`
	Revision    int64     `json:"revision"`
	Attempt     int       `json:"attempt"`
	MaxAttempts int       `json:"max_attempts"`
	NextRetryAt time.Time `json:"next_retry_at"`
	Status      Status    `json:"status"`
	FailReason  string    `json:"fail_reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Queue 审核任务队列：API 入队，Worker 认领并执行。
// Enqueue 对同一 subject 幂等——已有非终态任务时将其标记 superseded 后入队新
// 任务；被取代任务的后续结果由 Mark* 的终态检查拒绝，不产生任何副作用。
type Queue interface {
	// Enqueue 入队；返回新任务 ID
	Enqueue(ctx context.Context, subjectID, ownerID string, revision int64, payload Payload) (string, error)
	// ClaimOne 原子认领一条到期的 queued 任务并置为 running；无任务时返回 nil, nil
	ClaimOne(ctx context.Context, workerID string) (*Job, error)
	// Reschedule 暂时性失败后回队：记录 attempt 并在 nextRetryAt 前不再被认领
	Reschedule(ctx context.Context, jobID string, attempt int, nextRetryAt time.Time) error
	// MarkSucceeded 标记任务成功；任务已处于终态时返回 ErrJobTerminal
	MarkSucceeded(ctx context.Context, jobID string) error
	// MarkFailed 标记任务失败并记录原因；任务已处于终态时返回 ErrJobTerminal
	MarkFailed(ctx context.Context, jobID string, reason string) error
	// GetStatus 查询任务；不存在返回 ErrJobNotFound
	GetStatus(ctx context.Context, jobID string) (*Job, error)
}
