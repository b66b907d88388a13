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

package worker

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"sync"
	"time"

	"moderation-platform/internal/decision"
	"moderation-platform/internal/moderation"
	"moderation-platform/internal/modqueue"
	"moderation-platform/internal/notify"
	"moderation-platform/pkg/log"
	"moderation-platform/pkg/metrics"
	"moderation-platform/pkg/tracing"
)

// rejectUnavailableReason 审核能力持续不可用时的兜底拒绝原因（fail closed）
const rejectUnavailableReason = "moderation unavailable, defaulting to reject"

// Runner 审核任务拉取执行器：Claim → 决策 → 状态迁移 → 发布事件；
// 支持并发上限（Backpressure）与暂时性失败的指数退避重试
type Runner struct {
	workerID       string
	queue          modqueue.Queue
	engine         *moderation.Engine
	client         decision.Client
	publisher      *notify.Publisher
	pollInterval   time.Duration
	maxConcurrency int
	limiter        chan struct{} // 信号量，限制同时执行的任务数
	retryBase      time.Duration
	retryCap       time.Duration
	reviewTimeout  time.Duration
	logger         *log.Logger
	stopCh         chan struct{}
	wg             sync.WaitGroup
}

// RunnerOptions Runner 可调参数；零值取默认
type RunnerOptions struct {
	PollInterval   time.Duration // 队列为空时的轮询间隔，默认 1s
	MaxConcurrency int           // 同时执行任务上限，<=0 默认 4
	RetryBase      time.Duration // 退避基数，默认 2s
	RetryCap       time.Duration // 退避上限，默认 1m
	ReviewTimeout  time.Duration // 单次决策调用超时，默认 30s
}

// NewRunner 创建审核任务执行器
func NewRunner(
	workerID string,
	queue modqueue.Queue,
	engine *moderation.Engine,
	client decision.Client,
	publisher *notify.Publisher,
	opts RunnerOptions,
	logger *log.Logger,
) *Runner {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 2 * time.Second
	}
	if opts.RetryCap <= 0 {
		opts.RetryCap = time.Minute
	}
	if opts.ReviewTimeout <= 0 {
		opts.ReviewTimeout = 30 * time.Second
	}
	return &Runner{
		workerID:       workerID,
		queue:          queue,
		engine:         engine,
		client:         client,
		publisher:      publisher,
		pollInterval:   opts.PollInterval,
		maxConcurrency: opts.MaxConcurrency,
		limiter:        make(chan struct{}, opts.MaxConcurrency),
		retryBase:      opts.RetryBase,
		retryCap:       opts.RetryCap,
		reviewTimeout:  opts.ReviewTimeout,
		logger:         logger,
		stopCh:         make(chan struct{}),
	}
}

// Start 启动 Claim 循环；先占并发槽位再 Claim，执行后释放槽位
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			case r.limiter <- struct{}{}:
				job, err := r.queue.ClaimOne(ctx, r.workerID)
				if err != nil {
					r.logger.Warn("认领任务失败", "error", err)
				}
				if job == nil {
					<-r.limiter
					select {
					case <-r.stopCh:
						return
					case <-ctx.Done():
						return
					case <-time.After(r.pollInterval):
					}
					continue
				}
				r.wg.Add(1)
				go func(j *modqueue.Job) {
					defer r.wg.Done()
					defer func() { <-r.limiter }()
					r.RunOnce(ctx, j)
				}(job)
			}
		}
	}()
}

// Stop 停止 Claim 循环并等待在途任务执行完毕
func (r *Runner) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

// RunOnce 执行一次已认领任务的完整流程。终态决策恰好触发一次状态迁移：
// 迁移前由 revision 兜底（过期决策被 ErrStaleDecision 拦下），迁移后由
// 队列终态兜底（ErrJobTerminal 时丢弃结果，不发布事件）。
func (r *Runner) RunOnce(ctx context.Context, job *modqueue.Job) {
	start := time.Now()
	busy := metrics.WorkerBusy.WithLabelValues(r.workerID)
	busy.Inc()
	defer busy.Dec()
	defer func() {
		metrics.JobDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, span := tracing.StartJobSpan(ctx, job.ID, job.SubjectID, job.Attempt)
	defer span.End()

	reviewCtx, cancel := context.WithTimeout(ctx, r.reviewTimeout)
	dec, err := r.client.Review(reviewCtx, decision.ReviewRequest{
		SubjectID:   job.SubjectID,
		Name:        job.Payload.Name,
		Description: job.Payload.Description,
	})
	cancel()

	switch {
	case err == nil:
		r.settle(ctx, job, dec, "")
	case errors.Is(err, decision.ErrMalformed):
		// 内容不合法，重试无意义，立即兜底拒绝
		metrics.DecisionFailTotal.WithLabelValues("malformed").Inc()
		r.logger.Warn("审核请求不合法，兜底拒绝",
			"job_id", job.ID, "subject_id", job.SubjectID, "error", err)
		r.settle(ctx, job, decision.Decision{
			Verdict: decision.VerdictRejected,
			Reason:  "review request rejected: " + err.Error(),
		}, err.Error())
	default:
		metrics.DecisionFailTotal.WithLabelValues("transient").Inc()
		r.retryOrGiveUp(ctx, job, err)
	}
}

// settle 将决策落到 subject、收尾任务并发布事件；failReason 非空时任务记为失败
func (r *Runner) settle(ctx context.Context, job *modqueue.Job, dec decision.Decision, failReason string) {
	ev, err := r.engine.Apply(ctx, job.SubjectID, job.Revision, dec)
	if err != nil {
		if errors.Is(err, moderation.ErrStaleDecision) || errors.Is(err, moderation.ErrIllegalTransition) {
			// 对象已被再次编辑或已离开待审状态，丢弃本次结果；
			// 两种原因分别记入任务，便于排查 GET /api/jobs/:id
			reason := "superseded by newer revision"
			if errors.Is(err, moderation.ErrIllegalTransition) {
				reason = "subject no longer pending review"
			}
			r.logger.Info("决策已过期，丢弃",
				"job_id", job.ID, "subject_id", job.SubjectID,
				"revision", job.Revision, "reason", reason)
			metrics.JobTotal.WithLabelValues("superseded").Inc()
			_ = r.markDone(ctx, job, reason)
			return
		}
		r.logger.Error("状态迁移失败",
			"job_id", job.ID, "subject_id", job.SubjectID, "error", err)
		metrics.JobTotal.WithLabelValues("failed").Inc()
		_ = r.markDone(ctx, job, "state transition failed: "+err.Error())
		return
	}

	if err := r.markDone(ctx, job, failReason); err != nil {
		// 任务已被并发收尾，迁移虽已提交但不重复发事件
		return
	}

	status := "succeeded"
	if failReason != "" {
		status = "failed"
	}
	metrics.JobTotal.WithLabelValues(status).Inc()
	r.logger.Info("审核任务完成",
		"job_id", job.ID, "subject_id", job.SubjectID,
		"verdict", string(dec.Verdict), "attempt", job.Attempt)

	if pubErr := r.publisher.Publish(ctx, ev); pubErr != nil {
		r.logger.Error("通知事件发布失败", "event_id", ev.EventID, "error", pubErr)
	}
}

// markDone 任务收尾；返回 ErrJobTerminal 表示已被并发收尾（结果应丢弃）
func (r *Runner) markDone(ctx context.Context, job *modqueue.Job, failReason string) error {
	var err error
	if failReason == "" {
		err = r.queue.MarkSucceeded(ctx, job.ID)
	} else {
		err = r.queue.MarkFailed(ctx, job.ID, failReason)
	}
	if errors.Is(err, modqueue.ErrJobTerminal) {
		r.logger.Info("任务已收尾，丢弃结果", "job_id", job.ID)
		return err
	}
	if err != nil {
		r.logger.Error("任务收尾失败", "job_id", job.ID, "error", err)
	}
	return err
}

// retryOrGiveUp 暂时性失败：剩余次数内指数退避重新排队，耗尽后兜底拒绝
func (r *Runner) retryOrGiveUp(ctx context.Context, job *modqueue.Job, cause error) {
	next := job.Attempt + 1
	if next < job.MaxAttempts {
		delay := r.backoff(job.Attempt)
		r.logger.Warn("审核调用暂时失败，退避重试",
			"job_id", job.ID, "subject_id", job.SubjectID,
			"attempt", next, "max_attempts", job.MaxAttempts,
			"delay", delay.String(), "error", cause)
		metrics.JobRetryTotal.Inc()
		if err := r.queue.Reschedule(ctx, job.ID, next, time.Now().Add(delay)); err != nil {
			if errors.Is(err, modqueue.ErrJobTerminal) {
				return
			}
			r.logger.Error("任务重排失败", "job_id", job.ID, "error", err)
		}
		return
	}

	r.logger.Error("审核调用重试耗尽，兜底拒绝",
		"job_id", job.ID, "subject_id", job.SubjectID,
		"attempts", job.MaxAttempts, "error", cause)
	r.settle(ctx, job, decision.Decision{
		Verdict: decision.VerdictRejected,
		Reason:  rejectUnavailableReason,
	}, rejectUnavailableReason)
}

// backoff 按已执行次数计算退避时长：base * 2^attempt，封顶后叠加 ±20% 抖动
func (r *Runner) backoff(attempt int) time.Duration {
	d := r.retryBase
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= r.retryCap {
			d = r.retryCap
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(d)/5+1) - int64(d)/10)
	return d + jitter
}

// DefaultWorkerID 返回默认 Worker 标识（hostname 或 env）
func DefaultWorkerID() string {
	if id := os.Getenv("WORKER_ID"); id != "" {
		return id
	}
	host, _ := os.Hostname()
	if host != "" {
		return host
	}
	return "worker-unknown"
}
