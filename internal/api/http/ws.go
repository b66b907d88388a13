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

package http

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/websocket"
)

var upgrader = websocket.HertzUpgrader{
	CheckOrigin: func(ctx *app.RequestContext) bool { return true },
}

type connectionAck struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	OwnerID string `json:"owner_id"`
}

type pongMessage struct {
	Type string `json:"type"`
}

// NotificationsWS 通知推送 WebSocket 端点。连接注册到 Registry 后由其
// 写循环独占写 socket，本处理器只负责读：客户端发 "ping" 时回 pong
// 心跳，读出错或对端断开即注销
func (h *Handler) NotificationsWS(ctx context.Context, c *app.RequestContext) {
	ownerID := c.Param("owner_id")
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, map[string]string{"error": "owner_id is required"})
		return
	}

	err := upgrader.Upgrade(c, func(conn *websocket.Conn) {
		connection := h.registry.Register(ownerID, conn)
		defer h.registry.Unregister(connection)

		connection.Send(connectionAck{
			Type:    "connection_ack",
			Message: "Connected successfully",
			OwnerID: ownerID,
		})
		h.logger.Info("推送连接已建立", "owner_id", ownerID)

		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				h.logger.Debug("推送连接断开", "owner_id", ownerID, "error", err)
				return
			}
			if mt == websocket.TextMessage && string(data) == "ping" {
				connection.Send(pongMessage{Type: "pong"})
			}
		}
	})
	if err != nil {
		h.logger.Warn("WebSocket 升级失败", "owner_id", ownerID, "error", err)
	}
}
