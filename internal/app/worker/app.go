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
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"moderation-platform/internal/app"
	"moderation-platform/internal/moderation"
	"moderation-platform/internal/notify"
	"moderation-platform/pkg/config"
	apperrors "moderation-platform/pkg/errors"
	"moderation-platform/pkg/log"
	"moderation-platform/pkg/tracing"
)

// App Worker 应用：从队列认领审核任务并执行
type App struct {
	config         *config.Config
	logger         *log.Logger
	runner         *Runner
	broker         notify.Broker
	cancelRun      context.CancelFunc
	tracerProvider *sdktrace.TracerProvider
}

// NewApp 创建新的 Worker 应用
func NewApp(cfg *config.Config) (*App, error) {
	logCfg := &log.Config{}
	if cfg != nil {
		logCfg.Level = cfg.Log.Level
		logCfg.Format = cfg.Log.Format
		logCfg.File = cfg.Log.File
	}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		return nil, apperrors.Wrap(err, "初始化日志失败")
	}

	var tracerProvider *sdktrace.TracerProvider
	if cfg.Monitoring.Tracing.Enable {
		tracerProvider, err = tracing.InitTracer(tracing.OTelConfig{
			ServiceName:    cfg.Monitoring.Tracing.ServiceName,
			ExportEndpoint: cfg.Monitoring.Tracing.ExportEndpoint,
			Insecure:       cfg.Monitoring.Tracing.Insecure,
		})
		if err != nil {
			return nil, apperrors.Wrap(err, "初始化链路追踪失败")
		}
	}

	queue, err := app.NewQueueFromConfig(cfg)
	if err != nil {
		return nil, apperrors.Wrap(err, "初始化任务队列失败")
	}
	store, err := app.NewSubjectStoreFromConfig(context.Background(), cfg)
	if err != nil {
		return nil, apperrors.Wrap(err, "初始化对象存储失败")
	}
	broker, err := app.NewBrokerFromConfig(cfg, logger)
	if err != nil {
		return nil, apperrors.Wrap(err, "初始化通知 Broker 失败")
	}
	client, err := app.NewDecisionClientFromConfig(cfg)
	if err != nil {
		return nil, apperrors.Wrap(err, "初始化决策客户端失败")
	}

	runner := NewRunner(
		DefaultWorkerID(),
		queue,
		moderation.NewEngine(store),
		client,
		notify.NewPublisher(broker, logger),
		RunnerOptions{
			PollInterval:   parseDuration(cfg.Worker.PollInterval),
			MaxConcurrency: cfg.Worker.Concurrency,
			RetryBase:      parseDuration(cfg.Worker.RetryBackoff),
			RetryCap:       parseDuration(cfg.Worker.BackoffCap),
			ReviewTimeout:  parseDuration(cfg.Worker.ReviewTimeout),
		},
		logger,
	)

	return &App{
		config:         cfg,
		logger:         logger,
		runner:         runner,
		broker:         broker,
		tracerProvider: tracerProvider,
	}, nil
}

// Start 启动应用
func (a *App) Start() error {
	a.logger.Info("启动 worker 应用",
		"worker_id", DefaultWorkerID(),
		"queue_type", a.config.Queue.Type,
		"decision_provider", a.config.Decision.Provider)

	ctx, cancel := context.WithCancel(context.Background())
	a.cancelRun = cancel
	a.runner.Start(ctx)

	a.logger.Info("worker 应用启动成功")
	return nil
}

// Shutdown 关闭应用；等待在途任务执行完毕后退出
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("关闭 worker 应用")

	if a.cancelRun != nil {
		a.cancelRun()
	}
	a.runner.Stop()

	if err := a.broker.Close(); err != nil {
		a.logger.Error("关闭通知 Broker 失败", "error", err)
	}
	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			a.logger.Error("关闭链路追踪失败", "error", err)
		}
	}

	a.logger.Info("worker 应用关闭成功")
	return nil
}

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
