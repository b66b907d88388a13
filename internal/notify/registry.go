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
	"hash/fnv"
	"sync"
	"time"

	"moderation-platform/pkg/log"
	"moderation-platform/pkg/metrics"
)

const (
	registryShards      = 16
	defaultSendBuffer   = 16
	defaultWriteTimeout = 5 * time.Second

	// sendGrace 出站缓冲暂满时给写循环的排空窗口；超过仍满才判定慢消费者
	sendGrace = 50 * time.Millisecond
)

// Conn 推送连接的最小写接口；*websocket.Conn 满足该接口。
// 由 Registry 独占持有：注册后除 Registry 外不得再写。
type Conn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Connection 一条已注册的推送连接；出站走有界缓冲 + 独立写 goroutine，
// 慢消费者只影响自身（缓冲写满即被移除），不会阻塞同 owner 的其他连接。
type Connection struct {
	ownerID     string
	conn        Conn
	send        chan interface{}
	connectedAt time.Time
	closeOnce   sync.Once
	done        chan struct{}
}

// OwnerID 返回连接归属的 owner
func (c *Connection) OwnerID() string { return c.ownerID }

// Send 将控制消息（connection_ack、pong 等）经写循环投递给本连接，
// 与事件推送共用同一个写者；缓冲已满返回 false
func (c *Connection) Send(v interface{}) bool {
	select {
	case <-c.done:
		return false
	case c.send <- v:
		return true
	default:
		return false
	}
}

// ConnectedAt 返回连接建立时间
func (c *Connection) ConnectedAt() time.Time { return c.connectedAt }

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

type registryShard struct {
	mu     sync.RWMutex
	owners map[string]map[*Connection]struct{}
}

// Registry owner → 在线推送连接集合。分片锁按 owner 哈希，不同 owner 的
// 注册/注销/发送互不阻塞；连接条目为进程内瞬态，重启后客户端重连即可。
type Registry struct {
	shards       [registryShards]*registryShard
	sendBuffer   int
	writeTimeout time.Duration
	logger       *log.Logger
}

// NewRegistry 创建连接注册表；sendBuffer/writeTimeout <=0 时用默认值
func NewRegistry(sendBuffer int, writeTimeout time.Duration, logger *log.Logger) *Registry {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	r := &Registry{sendBuffer: sendBuffer, writeTimeout: writeTimeout, logger: logger}
	for i := range r.shards {
		r.shards[i] = &registryShard{owners: make(map[string]map[*Connection]struct{})}
	}
	return r
}

func (r *Registry) shard(ownerID string) *registryShard {
	h := fnv.New32a()
	h.Write([]byte(ownerID))
	return r.shards[int(h.Sum32())%registryShards]
}

// Register 注册一条连接并启动其写循环，返回句柄供断开时 Unregister
func (r *Registry) Register(ownerID string, conn Conn) *Connection {
	c := &Connection{
		ownerID:     ownerID,
		conn:        conn,
		send:        make(chan interface{}, r.sendBuffer),
		connectedAt: time.Now(),
		done:        make(chan struct{}),
	}

	s := r.shard(ownerID)
	s.mu.Lock()
	set := s.owners[ownerID]
	if set == nil {
		set = make(map[*Connection]struct{})
		s.owners[ownerID] = set
	}
	set[c] = struct{}{}
	s.mu.Unlock()

	metrics.LiveConnections.Inc()
	go r.writeLoop(c)
	return c
}

// Unregister 注销连接；对已注销的连接调用无副作用
func (r *Registry) Unregister(c *Connection) {
	s := r.shard(c.ownerID)
	s.mu.Lock()
	set, ok := s.owners[c.ownerID]
	if ok {
		if _, present := set[c]; present {
			delete(set, c)
			if len(set) == 0 {
				delete(s.owners, c.ownerID)
			}
			metrics.LiveConnections.Dec()
		} else {
			ok = false
		}
	}
	s.mu.Unlock()
	c.close()
	if ok {
		r.logger.Debug("推送连接已注销", "owner_id", c.ownerID)
	}
}

// SendTo 将事件投递给 owner 的全部在线连接，返回接收投递的连接数。
// 缓冲瞬时写满不算死链——健康连接的写循环可能只是还没被调度到；
// 在 sendGrace 内排不空缓冲的连接才视为慢消费者，当场移除（自愈，慢者先丢）。
// 无在线连接返回 0，不报错。
func (r *Registry) SendTo(ownerID string, ev *NotificationEvent) int {
	s := r.shard(ownerID)
	s.mu.RLock()
	conns := make([]*Connection, 0, len(s.owners[ownerID]))
	for c := range s.owners[ownerID] {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	msg := newPushMessage(ev)
	delivered := 0
	for _, c := range conns {
		select {
		case c.send <- msg:
			delivered++
			continue
		default:
		}

		t := time.NewTimer(sendGrace)
		select {
		case c.send <- msg:
			t.Stop()
			delivered++
		case <-c.done:
			t.Stop()
		case <-t.C:
			r.logger.Warn("连接出站缓冲持续写满，移除慢消费者", "owner_id", ownerID)
			r.Unregister(c)
		}
	}
	return delivered
}

// ConnectionCount 返回 owner 当前在线连接数
func (r *Registry) ConnectionCount(ownerID string) int {
	s := r.shard(ownerID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.owners[ownerID])
}

// writeLoop 单连接写循环；写失败即注销该连接，不影响同 owner 其他连接
func (r *Registry) writeLoop(c *Connection) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(r.writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				r.logger.Debug("推送写失败，注销连接", "owner_id", c.ownerID, "error", err)
				r.Unregister(c)
				return
			}
			if _, ok := msg.(pushMessage); ok {
				metrics.EventDeliveredTotal.Inc()
			}
		}
	}
}
