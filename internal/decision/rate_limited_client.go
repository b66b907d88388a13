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
	"time"

	"moderation-platform/pkg/metrics"
	"moderation-platform/pkg/tracing"
)

// RateLimitedClient 包装任意审核 Client，在真实调用前执行限流控制
type RateLimitedClient struct {
	inner       Client
	rateLimiter *RateLimiter
}

// NewRateLimitedClient 创建带限流的审核客户端；rateLimiter 为 nil 时退化为直接调用
func NewRateLimitedClient(inner Client, rateLimiter *RateLimiter) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, rateLimiter: rateLimiter}
}

// Review 实现 Client，调用前后执行限流并记录耗时
func (c *RateLimitedClient) Review(ctx context.Context, req ReviewRequest) (Decision, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return Decision{}, err
		}
		defer c.rateLimiter.Release()
	}

	ctx, span := tracing.StartDecisionSpan(ctx, c.inner.Provider(), req.SubjectID)
	defer span.End()

	start := time.Now()
	d, err := c.inner.Review(ctx, req)
	metrics.DecisionDuration.WithLabelValues(c.inner.Provider()).Observe(time.Since(start).Seconds())
	return d, err
}

// Provider 返回底层 Client 的提供商名称
func (c *RateLimitedClient) Provider() string { return c.inner.Provider() }
