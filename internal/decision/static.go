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
	"strings"
)

// 本地模拟审核的违禁词表（未配置外部端点时的开发用实现）
var staticProhibited = []string{"weapon", "gun", "drug", "counterfeit"}

// StaticClient 本地规则审核客户端：按违禁词匹配，未命中即通过。
// 仅用于开发与测试环境。
type StaticClient struct{}

// NewStaticClient 创建本地规则审核客户端
func NewStaticClient() *StaticClient {
	return &StaticClient{}
}

// Provider 实现 Client
func (c *StaticClient) Provider() string { return "static" }

// Review 实现 Client
func (c *StaticClient) Review(ctx context.Context, req ReviewRequest) (Decision, error) {
	if strings.TrimSpace(req.Name) == "" {
		return Decision{}, ErrMalformed
	}
	haystack := strings.ToLower(req.Name + " " + req.Description)
	for _, word := range staticProhibited {
		if strings.Contains(haystack, word) {
			return Decision{
				Verdict: VerdictRejected,
				Reason:  "contains prohibited term: " + word,
			}, nil
		}
	}
	return Decision{Verdict: VerdictApproved, Reason: "ok"}, nil
}
