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

	"github.com/redis/go-redis/v9"

	"moderation-platform/pkg/log"
)

// redisBroker 基于 Redis Pub/Sub 的 Broker 实现。
// Pub/Sub 无 continuation point，断线重连后从"当前"继续，中断窗口内的事件接受丢失。
type redisBroker struct {
	client  *redis.Client
	channel string
	logger  *log.Logger
}

// NewRedisBroker 创建 Redis Broker；channel 为空时用 DefaultChannel
func NewRedisBroker(client *redis.Client, channel string, logger *log.Logger) Broker {
	if channel == "" {
		channel = DefaultChannel
	}
	return &redisBroker{client: client, channel: channel, logger: logger}
}

// Publish 实现 Broker
func (b *redisBroker) Publish(ctx context.Context, ev *NotificationEvent) error {
	data, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Subscribe 实现 Broker；go-redis 的 PubSub 自带断线重连（指数退避）
func (b *redisBroker) Subscribe(ctx context.Context) (<-chan *NotificationEvent, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	// 确认订阅建立，失败（如 Redis 不可达）直接报给调用方
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan *NotificationEvent, 64)
	msgs := pubsub.Channel()
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				ev, err := DecodeEvent([]byte(msg.Payload))
				if err != nil {
					b.logger.Error("丢弃无法解析的通知消息", "error", err, "channel", b.channel)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close 实现 Broker
func (b *redisBroker) Close() error {
	return b.client.Close()
}
