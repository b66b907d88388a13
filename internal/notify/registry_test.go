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
	"errors"
	"sync"
	"testing"
	"time"

	"moderation-platform/pkg/log"
)

// fakeConn 记录写入消息的测试连接
type fakeConn struct {
	mu     sync.Mutex
	msgs   []interface{}
	closed bool
	block  chan struct{} // 非 nil 时 WriteJSON 阻塞，模拟慢消费者
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("connection closed")
	}
	f.msgs = append(f.msgs, v)
	return nil
}

func (f *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	logger, err := log.NewLogger(&log.Config{Level: "error"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	return logger
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func testEvent(id string) *NotificationEvent {
	return &NotificationEvent{
		EventID:   id,
		SubjectID: "sub-1",
		OwnerID:   "owner-1",
		NewState:  "active",
		Timestamp: time.Now().UTC(),
	}
}

func TestRegistry_SendTo_AllConnectionsReceive(t *testing.T) {
	r := NewRegistry(16, time.Second, testLogger(t))
	c1, c2 := &fakeConn{}, &fakeConn{}
	conn1 := r.Register("owner-1", c1)
	conn2 := r.Register("owner-1", c2)
	defer r.Unregister(conn1)
	defer r.Unregister(conn2)

	if n := r.SendTo("owner-1", testEvent("ev-1")); n != 2 {
		t.Errorf("expected 2 deliveries, got %d", n)
	}
	waitFor(t, func() bool { return c1.messageCount() == 1 && c2.messageCount() == 1 },
		"both connections should receive the event")

	msg, ok := c1.msgs[0].(pushMessage)
	if !ok {
		t.Fatalf("unexpected message type: %T", c1.msgs[0])
	}
	if msg.Type != PushType || msg.EventID != "ev-1" || msg.NewState != "active" {
		t.Errorf("message mismatch: %+v", msg)
	}
}

func TestRegistry_SendTo_AfterUnregister(t *testing.T) {
	r := NewRegistry(16, time.Second, testLogger(t))
	c1, c2 := &fakeConn{}, &fakeConn{}
	conn1 := r.Register("owner-1", c1)
	conn2 := r.Register("owner-1", c2)

	r.Unregister(conn1)
	if n := r.SendTo("owner-1", testEvent("ev-1")); n != 1 {
		t.Errorf("expected 1 delivery, got %d", n)
	}
	waitFor(t, func() bool { return c2.messageCount() == 1 }, "remaining connection should receive")

	r.Unregister(conn2)
	if n := r.SendTo("owner-1", testEvent("ev-2")); n != 0 {
		t.Errorf("expected 0 deliveries with no connections, got %d", n)
	}
	if r.ConnectionCount("owner-1") != 0 {
		t.Errorf("expected 0 connections, got %d", r.ConnectionCount("owner-1"))
	}
}

func TestRegistry_SendTo_IsolatesOwners(t *testing.T) {
	r := NewRegistry(16, time.Second, testLogger(t))
	c1, c2 := &fakeConn{}, &fakeConn{}
	conn1 := r.Register("owner-1", c1)
	conn2 := r.Register("owner-2", c2)
	defer r.Unregister(conn1)
	defer r.Unregister(conn2)

	r.SendTo("owner-1", testEvent("ev-1"))
	waitFor(t, func() bool { return c1.messageCount() == 1 }, "owner-1 should receive")
	if c2.messageCount() != 0 {
		t.Errorf("owner-2 must not receive owner-1 events")
	}
}

func TestRegistry_SlowConsumer_Evicted(t *testing.T) {
	r := NewRegistry(1, 50*time.Millisecond, testLogger(t))
	slow := &fakeConn{block: make(chan struct{})}
	fast := &fakeConn{}
	connSlow := r.Register("owner-1", slow)
	connFast := r.Register("owner-1", fast)
	defer r.Unregister(connSlow)
	defer r.Unregister(connFast)
	defer close(slow.block)

	// 第一条进写循环后阻塞，第二条占满缓冲，第三条触发移除
	r.SendTo("owner-1", testEvent("ev-1"))
	r.SendTo("owner-1", testEvent("ev-2"))
	r.SendTo("owner-1", testEvent("ev-3"))

	waitFor(t, func() bool { return r.ConnectionCount("owner-1") == 1 },
		"slow consumer should be evicted")
	waitFor(t, func() bool { return fast.messageCount() == 3 },
		"fast connection should receive all events")
}

func TestRegistry_BurstWithSmallBuffer_KeepsHealthyConnection(t *testing.T) {
	r := NewRegistry(1, 50*time.Millisecond, testLogger(t))
	c := &fakeConn{}
	conn := r.Register("owner-1", c)
	defer r.Unregister(conn)

	// 连发多条时缓冲可能在写循环被调度前瞬时写满；
	// 健康连接须全部送达且不被当成慢消费者移除
	delivered := 0
	for i := 0; i < 5; i++ {
		delivered += r.SendTo("owner-1", testEvent("ev-burst"))
	}
	if delivered != 5 {
		t.Errorf("expected 5 deliveries, got %d", delivered)
	}
	if r.ConnectionCount("owner-1") != 1 {
		t.Errorf("healthy connection must stay registered, got %d", r.ConnectionCount("owner-1"))
	}
	waitFor(t, func() bool { return c.messageCount() == 5 }, "all burst events should be written")
}

func TestRegistry_Unregister_Idempotent(t *testing.T) {
	r := NewRegistry(16, time.Second, testLogger(t))
	c := &fakeConn{}
	conn := r.Register("owner-1", c)
	r.Unregister(conn)
	r.Unregister(conn)
	if r.ConnectionCount("owner-1") != 0 {
		t.Errorf("expected 0 connections, got %d", r.ConnectionCount("owner-1"))
	}
}

func TestConnection_Send_ControlMessage(t *testing.T) {
	r := NewRegistry(16, time.Second, testLogger(t))
	c := &fakeConn{}
	conn := r.Register("owner-1", c)
	defer r.Unregister(conn)

	type ack struct {
		Type string `json:"type"`
	}
	if !conn.Send(ack{Type: "connection_ack"}) {
		t.Fatal("Send should succeed with free buffer")
	}
	waitFor(t, func() bool { return c.messageCount() == 1 }, "control message should be written")
	if got, ok := c.msgs[0].(ack); !ok || got.Type != "connection_ack" {
		t.Errorf("message mismatch: %+v", c.msgs[0])
	}
}
