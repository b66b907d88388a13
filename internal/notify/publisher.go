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

package notify

import (
	"context"
	"time"

	"moderation-platform/pkg/log"
	"moderation-platform/pkg/metrics"
)

const (
	publishAttempts    = 3
	publishRetryWait   = 200 * time.Millisecond
	publishTotalBudget = 2 * time.Second
)

// Publisher 将事件发布到 Broker：同一 EventID 重试（Dispatcher 按 EventID 去重，
// 重复投递安全），总耗时有界；持续失败时记日志并丢弃，绝不反压状态变更路径。
type Publisher struct {
	broker Broker
	logger *log.Logger
}

// NewPublisher 创建 Publisher
func NewPublisher(broker Broker, logger *log.Logger) *Publisher {
	return &Publisher{broker: broker, logger: logger}
}

// Publish 发布事件；重试耗尽后返回最后一次错误，调用方不应因此阻塞状态变更
func (p *Publisher) Publish(ctx context.Context, ev *NotificationEvent) error {
	ctx, cancel := context.WithTimeout(ctx, publishTotalBudget)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < publishAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(publishRetryWait):
			case <-ctx.Done():
				lastErr = ctx.Err()
				return p.dropped(ev, lastErr)
			}
		}
		if lastErr = p.broker.Publish(ctx, ev); lastErr == nil {
			return nil
		}
	}
	return p.dropped(ev, lastErr)
}

func (p *Publisher) dropped(ev *NotificationEvent, lastErr error) error {
	metrics.PublishFailTotal.Inc()
	p.logger.Error("通知发布失败，事件丢弃（状态已落库，客户端可轮询状态接口）",
		"event_id", ev.EventID, "subject_id", ev.SubjectID, "error", lastErr)
	return lastErr
}
