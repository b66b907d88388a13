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
	"moderation-platform/pkg/tracing"
)

const (
	defaultDedupeSize  = 1024
	subscribeRetryBase = time.Second
	subscribeRetryCap  = 30 * time.Second
)

// Dispatcher 订阅 Broker 并把事件扇出到 owner 的全部在线连接。
// 按 EventID 在有界窗口内去重，容忍 Broker 的 at-least-once 重投递；
// 无在线连接的事件直接丢弃（无离线信箱，客户端重连后靠状态接口对账）。
type Dispatcher struct {
	broker   Broker
	registry *Registry
	seen     *seenSet
	logger   *log.Logger
}

// NewDispatcher 创建 Dispatcher；dedupeSize <=0 时用默认窗口
func NewDispatcher(broker Broker, registry *Registry, dedupeSize int, logger *log.Logger) *Dispatcher {
	if dedupeSize <= 0 {
		dedupeSize = defaultDedupeSize
	}
	return &Dispatcher{
		broker:   broker,
		registry: registry,
		seen:     newSeenSet(dedupeSize),
		logger:   logger,
	}
}

// Run 运行订阅循环直到 ctx 取消。订阅建立失败按指数退避重试；
// 订阅流关闭（Broker 断线且实现层放弃）后同样退避重订，从"当前"继续。
func (d *Dispatcher) Run(ctx context.Context) {
	backoff := subscribeRetryBase
	for {
		events, err := d.broker.Subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Warn("Broker 订阅失败，退避后重试", "error", err, "wait", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff *= 2
			if backoff > subscribeRetryCap {
				backoff = subscribeRetryCap
			}
			continue
		}
		backoff = subscribeRetryBase
		d.logger.Info("通知分发已启动")

		for ev := range events {
			d.dispatch(ctx, ev)
		}
		if ctx.Err() != nil {
			return
		}
		d.logger.Warn("通知订阅流关闭，准备重新订阅")
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev *NotificationEvent) {
	if ev.EventID == "" || ev.OwnerID == "" {
		d.logger.Error("丢弃缺少标识的事件", "event_id", ev.EventID, "owner_id", ev.OwnerID)
		return
	}
	if !d.seen.add(ev.EventID) {
		metrics.EventDedupedTotal.Inc()
		return
	}

	_, span := tracing.StartDispatchSpan(ctx, ev.EventID, ev.OwnerID)
	delivered := d.registry.SendTo(ev.OwnerID, ev)
	span.End()

	if delivered == 0 {
		metrics.EventDroppedTotal.Inc()
		d.logger.Debug("owner 无在线连接，事件丢弃",
			"event_id", ev.EventID, "owner_id", ev.OwnerID)
	}
}

// seenSet 有界的 recently-seen EventID 集合，FIFO 淘汰
type seenSet struct {
	capacity int
	ids      map[string]struct{}
	order    []string
	next     int
}

func newSeenSet(capacity int) *seenSet {
	return &seenSet{
		capacity: capacity,
		ids:      make(map[string]struct{}, capacity),
		order:    make([]string, capacity),
	}
}

// add 记录 eventID；已出现过返回 false
func (s *seenSet) add(eventID string) bool {
	if _, dup := s.ids[eventID]; dup {
		return false
	}
	if old := s.order[s.next]; old != "" {
		delete(s.ids, old)
	}
	s.order[s.next] = eventID
	s.next = (s.next + 1) % s.capacity
	s.ids[eventID] = struct{}{}
	return true
}
