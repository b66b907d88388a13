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

package api

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"moderation-platform/internal/api/http"
	"moderation-platform/internal/api/http/middleware"
	"moderation-platform/internal/app"
	"moderation-platform/internal/moderation"
	"moderation-platform/internal/notify"
	"moderation-platform/pkg/config"
	apperrors "moderation-platform/pkg/errors"
	"moderation-platform/pkg/log"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用：HTTP 接口（受理 + 查询）与 WebSocket 推送面
// （Broker 订阅 → Dispatcher → Registry → 客户端）
type App struct {
	config       *config.Config
	logger       *log.Logger
	router       *http.Router
	hertz        *server.Hertz
	broker       notify.Broker
	dispatcher   *notify.Dispatcher
	dispatchStop context.CancelFunc
	otelProvider otelProviderShutdown
}

// NewApp 创建 API 应用（由 cmd/api 调用）
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

	store, err := app.NewSubjectStoreFromConfig(context.Background(), cfg)
	if err != nil {
		return nil, apperrors.Wrap(err, "初始化对象存储失败")
	}
	queue, err := app.NewQueueFromConfig(cfg)
	if err != nil {
		return nil, apperrors.Wrap(err, "初始化任务队列失败")
	}
	broker, err := app.NewBrokerFromConfig(cfg, logger)
	if err != nil {
		return nil, apperrors.Wrap(err, "初始化通知 Broker 失败")
	}

	registry := notify.NewRegistry(cfg.Push.SendBuffer, parseDuration(cfg.Push.WriteTimeout), logger)
	dispatcher := notify.NewDispatcher(broker, registry, cfg.Push.DedupeSize, logger)

	engine := moderation.NewEngine(store)
	handler := http.NewHandler(store, engine, queue, registry, logger)
	router := http.NewRouter(handler, middleware.NewMiddleware())

	return &App{
		config:     cfg,
		logger:     logger,
		router:     router,
		broker:     broker,
		dispatcher: dispatcher,
	}, nil
}

// Run 启动 HTTP 服务与推送分发循环；阻塞直到服务退出
func (a *App) Run(addr string) error {
	a.logger.Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与应用日志配置对齐
	output := os.Stdout
	if a.config != nil && a.config.Log.File != "" {
		f, err := os.OpenFile(a.config.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return apperrors.Wrap(err, "打开日志文件失败")
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	switch a.config.Log.Level {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
	hertzLogger := hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	)
	hlog.SetLogger(hertzLogger)

	// 可选：启用链路追踪（OpenTelemetry）
	if a.config.Monitoring.Tracing.Enable {
		serviceName := a.config.Monitoring.Tracing.ServiceName
		if serviceName == "" {
			serviceName = "moderation-api"
		}
		exportEndpoint := a.config.Monitoring.Tracing.ExportEndpoint
		if exportEndpoint == "" {
			exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		if exportEndpoint != "" {
			opts := []provider.Option{
				provider.WithServiceName(serviceName),
				provider.WithExportEndpoint(exportEndpoint),
			}
			if a.config.Monitoring.Tracing.Insecure {
				opts = append(opts, provider.WithInsecure())
			}
			p := provider.NewOpenTelemetryProvider(opts...)
			a.otelProvider = p
			tracerOpt, cfg := hertztracing.NewServerTracer()
			a.hertz = a.router.Build(addr, tracerOpt)
			a.hertz.Use(hertztracing.ServerMiddleware(cfg))
			a.logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
		} else {
			a.hertz = a.router.Build(addr)
		}
	} else {
		a.hertz = a.router.Build(addr)
	}

	// 推送分发循环：订阅 Broker 并 fan-out 到在线连接
	dispatchCtx, cancel := context.WithCancel(context.Background())
	a.dispatchStop = cancel
	go a.dispatcher.Run(dispatchCtx)

	return a.hertz.Run()
}

// Shutdown 优雅关闭
func (a *App) Shutdown(ctx context.Context) error {
	if a.dispatchStop != nil {
		a.dispatchStop()
	}
	if err := a.broker.Close(); err != nil {
		a.logger.Error("关闭通知 Broker 失败", "error", err)
	}
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
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
