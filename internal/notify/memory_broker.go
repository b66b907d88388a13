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
	"sync"
)

const memorySubscribeBuffer = 64

// memoryBroker 进程内 Broker，供单进程部署与测试使用
type memoryBroker struct {
	mu     sync.Mutex
	subs   []chan *NotificationEvent
	closed bool
}

// NewMemoryBroker 创建内存版 Broker
func NewMemoryBroker() Broker {
	return &memoryBroker{}
}

// Publish 实现 Broker；订阅者缓冲写满时阻塞等待（进程内无断线语义）
func (b *memoryBroker) Publish(ctx context.Context, ev *NotificationEvent) error {
	b.mu.Lock()
	subs := make([]chan *NotificationEvent, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe 实现 Broker
func (b *memoryBroker) Subscribe(ctx context.Context) (<-chan *NotificationEvent, error) {
	in := make(chan *NotificationEvent, memorySubscribeBuffer)
	out := make(chan *NotificationEvent, memorySubscribeBuffer)

	b.mu.Lock()
	b.subs = append(b.subs, in)
	b.mu.Unlock()

	go func() {
		defer close(out)
		defer b.removeSub(in)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-in:
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

func (b *memoryBroker) removeSub(ch chan *NotificationEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			break
		}
	}
}

// Close 实现 Broker
func (b *memoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
