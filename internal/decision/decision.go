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

// Package decision 外部内容审核能力的边界接口。管线只依赖 "限时拿到一个
// verdict + reason"，模型、prompt 与供应商细节都收敛在实现里。
package decision

import (
	"context"
	"errors"
)

// Verdict 审核结论
type Verdict string

const (
	// VerdictApproved 通过
	VerdictApproved Verdict = "approved"
	// VerdictRejected 拒绝
	VerdictRejected Verdict = "rejected"
)

var (
	// ErrTransient 暂时性失败（超时、传输错误、限流），可退避重试
	ErrTransient = errors.New("decision: transient failure")
	// ErrMalformed 请求内容不合法，重试无意义
	ErrMalformed = errors.New("decision: malformed review request")
)

// ReviewRequest 审核请求
type ReviewRequest struct {
	SubjectID   string `json:"subject_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Decision 审核结论与原因；除此形状外对管线不透明
type Decision struct {
	Verdict Verdict `json:"verdict"`
	Reason  string  `json:"reason"`
}

// Client 审核决策客户端；实现必须尊重 ctx 超时/取消
type Client interface {
	// Review 返回决策；失败以 ErrTransient / ErrMalformed 哨兵区分类别
	Review(ctx context.Context, req ReviewRequest) (Decision, error)
	// Provider 返回提供商名称（指标与日志用）
	Provider() string
}

// ClientFunc 以函数实现 Client，便于测试注入
type ClientFunc func(ctx context.Context, req ReviewRequest) (Decision, error)

// Review 实现 Client
func (f ClientFunc) Review(ctx context.Context, req ReviewRequest) (Decision, error) {
	return f(ctx, req)
}

// Provider 实现 Client
func (f ClientFunc) Provider() string { return "func" }
