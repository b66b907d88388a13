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

// Package app API 与 Worker 共用的组件装配：按配置构造队列、对象存储、
// Broker 与决策客户端。两个进程只通过这三样外部设施耦合。
package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"moderation-platform/internal/decision"
	"moderation-platform/internal/moderation"
	"moderation-platform/internal/modqueue"
	"moderation-platform/internal/notify"
	"moderation-platform/pkg/config"
	apperrors "moderation-platform/pkg/errors"
	"moderation-platform/pkg/log"
)

// NewQueueFromConfig 按配置构造审核任务队列
func NewQueueFromConfig(cfg *config.Config) (modqueue.Queue, error) {
	switch cfg.Queue.Type {
	case "", "memory":
		return modqueue.NewMemoryQueue(cfg.Worker.MaxAttempts), nil
	case "redis":
		if cfg.Queue.Addr == "" {
			return nil, apperrors.Wrap(apperrors.ErrInvalidArg, "queue.type=redis 需要 queue.addr")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.Addr,
			DB:       cfg.Queue.DB,
			Password: cfg.Queue.Password,
		})
		return modqueue.NewRedisQueue(client, cfg.Worker.MaxAttempts), nil
	default:
		return nil, apperrors.Wrapf(apperrors.ErrInvalidArg, "不支持的队列类型: %s", cfg.Queue.Type)
	}
}

// NewSubjectStoreFromConfig 按配置构造审核对象存储
func NewSubjectStoreFromConfig(ctx context.Context, cfg *config.Config) (moderation.Store, error) {
	switch cfg.Subjects.Type {
	case "", "memory":
		return moderation.NewMemoryStore(), nil
	case "postgres":
		if cfg.Subjects.DSN == "" {
			return nil, apperrors.Wrap(apperrors.ErrInvalidArg, "subjects.type=postgres 需要 subjects.dsn")
		}
		poolCfg, err := pgxpool.ParseConfig(cfg.Subjects.DSN)
		if err != nil {
			return nil, apperrors.Wrap(err, "解析 subjects.dsn 失败")
		}
		if cfg.Subjects.PoolSize > 0 {
			poolCfg.MaxConns = int32(cfg.Subjects.PoolSize)
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, apperrors.Wrap(err, "连接 postgres 失败")
		}
		return moderation.NewPgStore(pool), nil
	default:
		return nil, apperrors.Wrapf(apperrors.ErrInvalidArg, "不支持的对象存储类型: %s", cfg.Subjects.Type)
	}
}

// NewBrokerFromConfig 按配置构造通知 Broker
func NewBrokerFromConfig(cfg *config.Config, logger *log.Logger) (notify.Broker, error) {
	switch cfg.Broker.Type {
	case "", "memory":
		return notify.NewMemoryBroker(), nil
	case "redis":
		if cfg.Broker.Addr == "" {
			return nil, apperrors.Wrap(apperrors.ErrInvalidArg, "broker.type=redis 需要 broker.addr")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Broker.Addr,
			DB:       cfg.Broker.DB,
			Password: cfg.Broker.Password,
		})
		return notify.NewRedisBroker(client, cfg.Broker.Channel, logger), nil
	default:
		return nil, apperrors.Wrapf(apperrors.ErrInvalidArg, "不支持的 Broker 类型: %s", cfg.Broker.Type)
	}
}

// NewDecisionClientFromConfig 按配置构造决策客户端；配置了限流时包一层
// RateLimitedClient
func NewDecisionClientFromConfig(cfg *config.Config) (decision.Client, error) {
	var client decision.Client
	switch cfg.Decision.Provider {
	case "", "static":
		client = decision.NewStaticClient()
	case "openai":
		c, err := decision.NewOpenAIClient(decision.OpenAIConfig{
			Model:       cfg.Decision.Model,
			APIKey:      cfg.Decision.APIKey,
			BaseURL:     cfg.Decision.BaseURL,
			MaxTokens:   cfg.Decision.MaxTokens,
			Temperature: cfg.Decision.Temperature,
		})
		if err != nil {
			return nil, apperrors.Wrap(err, "初始化 openai 决策客户端失败")
		}
		client = c
	default:
		return nil, apperrors.Wrapf(apperrors.ErrInvalidArg, "不支持的决策提供商: %s", cfg.Decision.Provider)
	}

	rl := cfg.Decision.RateLimit
	if rl.RequestsPerMinute > 0 || rl.MaxConcurrent > 0 {
		client = decision.NewRateLimitedClient(client, decision.NewRateLimiter(decision.RateLimitConfig{
			RequestsPerMinute: rl.RequestsPerMinute,
			MaxConcurrent:     rl.MaxConcurrent,
		}))
	}
	return client, nil
}
