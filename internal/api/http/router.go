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
	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"

	"moderation-platform/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{handler: handler, middleware: mw}
}

// Build 创建 Hertz server 并注册全部路由
func (r *Router) Build(addr string, opts ...hertzconfig.Option) *server.Hertz {
	opts = append(opts, server.WithHostPorts(addr))
	h := server.Default(opts...)
	r.setupRoutes(h)
	return h
}

func (r *Router) setupRoutes(h *server.Hertz) {
	h.GET("/metrics", r.handler.Metrics)

	api := h.Group("/api", r.middleware.CORS())

	api.GET("/health", r.handler.HealthCheck)

	subjects := api.Group("/subjects")
	{
		subjects.POST("", r.handler.CreateSubject)
		subjects.GET("/:id", r.handler.GetSubject)
		subjects.PUT("/:id", r.handler.ReviseSubject)
		subjects.POST("/:id/moderation", r.handler.RequestModeration)
		subjects.GET("/:id/state", r.handler.GetSubjectState)
	}

	jobs := api.Group("/jobs")
	{
		jobs.GET("/:id", r.handler.GetJob)
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("/ws/:owner_id", r.handler.NotificationsWS)
	}
}
