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
	"errors"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"

	"moderation-platform/internal/moderation"
	"moderation-platform/internal/modqueue"
	"moderation-platform/internal/notify"
	"moderation-platform/pkg/log"
	"moderation-platform/pkg/metrics"
)

// Handler HTTP 请求处理器。所有写路径都以"落库 + 入队"收尾：审核本身
// 永远异步，接口只返回受理结果
type Handler struct {
	store    moderation.Store
	engine   *moderation.Engine
	queue    modqueue.Queue
	registry *notify.Registry
	logger   *log.Logger
}

// NewHandler 创建 HTTP 请求处理器
func NewHandler(
	store moderation.Store,
	engine *moderation.Engine,
	queue modqueue.Queue,
	registry *notify.Registry,
	logger *log.Logger,
) *Handler {
	return &Handler{
		store:    store,
		engine:   engine,
		queue:    queue,
		registry: registry,
		logger:   logger,
	}
}

type createSubjectRequest struct {
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type reviseSubjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type subjectResponse struct {
	Subject *moderation.Subject `json:"subject"`
	JobID   string              `json:"job_id,omitempty"`
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// CreateSubject 创建审核对象并触发首次审核
func (h *Handler) CreateSubject(ctx context.Context, c *app.RequestContext) {
	var req createSubjectRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.OwnerID == "" || req.Name == "" {
		c.JSON(http.StatusBadRequest, map[string]string{"error": "owner_id and name are required"})
		return
	}

	sub := &moderation.Subject{
		ID:          uuid.New().String(),
		OwnerID:     req.OwnerID,
		Name:        req.Name,
		Description: req.Description,
		State:       moderation.StatePendingReview,
		Revision:    1,
	}
	if err := h.store.Create(ctx, sub); err != nil {
		h.logger.Error("创建审核对象失败", "error", err)
		c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create subject"})
		return
	}

	jobID, err := h.enqueueReview(ctx, sub)
	if err != nil {
		c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to enqueue moderation"})
		return
	}
	c.JSON(http.StatusCreated, subjectResponse{Subject: sub, JobID: jobID})
}

// GetSubject 查询审核对象
func (h *Handler) GetSubject(ctx context.Context, c *app.RequestContext) {
	sub, err := h.store.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, moderation.ErrSubjectNotFound) {
			c.JSON(http.StatusNotFound, map[string]string{"error": "subject not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load subject"})
		return
	}
	c.JSON(http.StatusOK, subjectResponse{Subject: sub})
}

// ReviseSubject 编辑审核对象；对象回到待审状态并触发新一轮审核，
// 旧审核任务被取代（latest edit wins）
func (h *Handler) ReviseSubject(ctx context.Context, c *app.RequestContext) {
	var req reviseSubjectRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	sub, err := h.store.Revise(ctx, c.Param("id"), req.Name, req.Description)
	if err != nil {
		if errors.Is(err, moderation.ErrSubjectNotFound) {
			c.JSON(http.StatusNotFound, map[string]string{"error": "subject not found"})
			return
		}
		h.logger.Error("编辑审核对象失败", "subject_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to revise subject"})
		return
	}

	jobID, err := h.enqueueReview(ctx, sub)
	if err != nil {
		c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to enqueue moderation"})
		return
	}
	c.JSON(http.StatusOK, subjectResponse{Subject: sub, JobID: jobID})
}

// RequestModeration 按当前版本重新触发一轮审核
func (h *Handler) RequestModeration(ctx context.Context, c *app.RequestContext) {
	sub, err := h.store.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, moderation.ErrSubjectNotFound) {
			c.JSON(http.StatusNotFound, map[string]string{"error": "subject not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load subject"})
		return
	}
	if sub.State != moderation.StatePendingReview {
		c.JSON(http.StatusConflict, map[string]string{"error": "subject is not pending review"})
		return
	}

	jobID, err := h.enqueueReview(ctx, sub)
	if err != nil {
		c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to enqueue moderation"})
		return
	}
	c.JSON(http.StatusAccepted, map[string]string{"job_id": jobID})
}

// GetSubjectState 状态查询（WebSocket 推送的轮询兜底）
func (h *Handler) GetSubjectState(ctx context.Context, c *app.RequestContext) {
	view, err := h.engine.GetState(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, moderation.ErrSubjectNotFound) {
			c.JSON(http.StatusNotFound, map[string]string{"error": "subject not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load state"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetJob 查询审核任务状态
func (h *Handler) GetJob(ctx context.Context, c *app.RequestContext) {
	job, err := h.queue.GetStatus(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, modqueue.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// Metrics Prometheus 指标导出
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	c.Response.Header.Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	if err := metrics.WritePrometheus(c.Response.BodyWriter()); err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
	}
}

func (h *Handler) enqueueReview(ctx context.Context, sub *moderation.Subject) (string, error) {
	jobID, err := h.queue.Enqueue(ctx, sub.ID, sub.OwnerID, sub.Revision, modqueue.Payload{
		Name:        sub.Name,
		Description: sub.Description,
	})
	if err != nil {
		h.logger.Error("审核任务入队失败", "subject_id", sub.ID, "error", err)
		return "", err
	}
	h.logger.Info("审核任务已入队",
		"job_id", jobID, "subject_id", sub.ID, "revision", sub.Revision)
	return jobID, nil
}
