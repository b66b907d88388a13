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

import "context"

// DefaultChannel 默认通知频道名
const DefaultChannel = "notifications"

// Broker 通知事件的发布/订阅通道：at-least-once，仅保证同一 subject 内有序。
// Worker 进程只用 Publish，API 进程只用 Subscribe。
type Broker interface {
	// Publish 发布一条事件；错误表示本次未送达 Broker，调用方可用原 EventID 重试
	Publish(ctx context.Context, ev *NotificationEvent) error
	// Subscribe 订阅事件流；返回的 channel 在 ctx 取消后关闭。
	// 实现层负责断线重连；重连期间的事件可能丢失（交付为 best-effort）
	Subscribe(ctx context.Context) (<-chan *NotificationEvent, error)
	// Close 释放底层连接
	Close() error
}
