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
	"encoding/json"
	"time"
)

// PushType 推送消息的 type 字段值，客户端按此路由
const PushType = "moderation_update"

// NotificationEvent 审核状态变更事件。发布后不可变；EventID 供接收端去重
// （Broker 为 at-least-once，同一事件可能投递多次）。
type NotificationEvent struct {
	EventID   string    `json:"event_id"`
	SubjectID string    `json:"subject_id"`
	OwnerID   string    `json:"owner_id"`
	NewState  string    `json:"new_state"`
	Notes     string    `json:"notes"`
	Timestamp time.Time `json:"timestamp"`
}

// pushMessage WebSocket 推送载荷（在事件外附加 type 字段）
type pushMessage struct {
	Type      string    `json:"type"`
	EventID   string    `json:"event_id"`
	SubjectID string    `json:"subject_id"`
	NewState  string    `json:"new_state"`
	Notes     string    `json:"notes"`
	Timestamp time.Time `json:"timestamp"`
}

func newPushMessage(ev *NotificationEvent) pushMessage {
	return pushMessage{
		Type:      PushType,
		EventID:   ev.EventID,
		SubjectID: ev.SubjectID,
		NewState:  ev.NewState,
		Notes:     ev.Notes,
		Timestamp: ev.Timestamp,
	}
}

// EncodeEvent 序列化事件为 Broker 线格式（JSON）
func EncodeEvent(ev *NotificationEvent) ([]byte, error) {
	return json.Marshal(ev)
}

// DecodeEvent 反序列化 Broker 消息；Broker 上的陌生字段忽略
func DecodeEvent(data []byte) (*NotificationEvent, error) {
	var ev NotificationEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
