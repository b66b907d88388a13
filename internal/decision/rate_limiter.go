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

	"golang.org/x/time/rate"
)

// RateLimitConfig 审核端点限流配置
type RateLimitConfig struct {
	RequestsPerMinute float64 // 每分钟请求数，<=0 不限
	MaxConcurrent     int     // 最大并发请求数，<=0 不限
}

// RateLimiter RPS + 并发双重限流
type RateLimiter struct {
	requestLimiter *rate.Limiter
	semaphore      chan struct{}
}

// NewRateLimiter 创建限流器
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	l := &RateLimiter{}
	if cfg.RequestsPerMinute > 0 {
		rps := cfg.RequestsPerMinute / 60.0
		burst := int(rps * 2)
		if burst < 1 {
			burst = 1
		}
		l.requestLimiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	if cfg.MaxConcurrent > 0 {
		l.semaphore = make(chan struct{}, cfg.MaxConcurrent)
	}
	return l
}

// Wait 等待获取执行许可（阻塞直到可以执行或 ctx 取消）
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l.semaphore != nil {
		select {
		case l.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if l.requestLimiter != nil {
		if err := l.requestLimiter.Wait(ctx); err != nil {
			if l.semaphore != nil {
				<-l.semaphore
			}
			return err
		}
	}
	return nil
}

// Release 释放并发许可；与成功的 Wait 一一配对
func (l *RateLimiter) Release() {
	if l.semaphore != nil {
		<-l.semaphore
	}
}
