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

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构体（API 与 Worker 共用，按各自 yaml 取需要的部分）
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Subjects   SubjectsConfig   `mapstructure:"subjects"`
	Broker     BrokerConfig     `mapstructure:"broker"`
	Push       PushConfig       `mapstructure:"push"`
	Decision   DecisionConfig   `mapstructure:"decision"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port    int        `mapstructure:"port"`
	Host    string     `mapstructure:"host"`
	Timeout string     `mapstructure:"timeout"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// WorkerConfig Worker 服务配置（审核任务执行）
type WorkerConfig struct {
	Concurrency   int    `mapstructure:"concurrency"`    // 同时执行的审核任务上限，<=0 默认 4
	PollInterval  string `mapstructure:"poll_interval"`  // Claim 轮询间隔，如 "500ms"，空则默认 1s
	MaxAttempts   int    `mapstructure:"max_attempts"`   // 单任务最大执行次数（含首次），<=0 默认 3
	RetryBackoff  string `mapstructure:"retry_backoff"`  // 重试退避基准时长，如 "2s"，空则默认 2s
	BackoffCap    string `mapstructure:"backoff_cap"`    // 退避上限，如 "1m"，空则默认 1m
	ReviewTimeout string `mapstructure:"review_timeout"` // 单次 Decision 调用超时，空则默认 30s
}

// QueueConfig 审核任务队列配置
type QueueConfig struct {
	Type     string `mapstructure:"type"` // memory | redis
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// SubjectsConfig 审核对象存储配置
type SubjectsConfig struct {
	Type     string `mapstructure:"type"` // memory | postgres
	DSN      string `mapstructure:"dsn"`  // type=postgres 时必填
	PoolSize int    `mapstructure:"pool_size"`
}

// BrokerConfig 通知 Broker 配置（Redis Pub/Sub）
type BrokerConfig struct {
	Type     string `mapstructure:"type"`    // memory | redis
	Addr     string `mapstructure:"addr"`    // type=redis 时必填
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	Channel  string `mapstructure:"channel"` // 空则默认 "notifications"
}

// PushConfig WebSocket 推送配置
type PushConfig struct {
	SendBuffer   int    `mapstructure:"send_buffer"`   // 每连接出站缓冲条数，<=0 默认 16
	WriteTimeout string `mapstructure:"write_timeout"` // 单次写超时，空则默认 5s
	DedupeSize   int    `mapstructure:"dedupe_size"`   // Dispatcher 去重窗口大小，<=0 默认 1024
}

// DecisionConfig 内容审核决策客户端配置
type DecisionConfig struct {
	Provider    string  `mapstructure:"provider"` // openai | static
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`  // 支持 ${ENV_VAR} 形式
	BaseURL     string  `mapstructure:"base_url"` // OpenAI 兼容端点，空则用默认或环境变量
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`

	RateLimit DecisionRateLimitConfig `mapstructure:"rate_limit"`
}

// DecisionRateLimitConfig Decision 调用限流配置
type DecisionRateLimitConfig struct {
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
	Port   int  `mapstructure:"port"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	return &config, nil
}

// replaceEnvVars 替换配置中的 ${ENV_VAR} 占位（仅敏感字段）
func replaceEnvVars(config *Config) {
	config.Decision.APIKey = expandEnv(config.Decision.APIKey)
	config.Subjects.DSN = expandEnv(config.Subjects.DSN)
	config.Queue.Password = expandEnv(config.Queue.Password)
	config.Broker.Password = expandEnv(config.Broker.Password)
}

func expandEnv(v string) string {
	if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		if env := os.Getenv(strings.TrimSuffix(strings.TrimPrefix(v, "${"), "}")); env != "" {
			return env
		}
	}
	return v
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// LoadWorkerConfig 加载 Worker 配置（configs/worker.yaml）
func LoadWorkerConfig() (*Config, error) {
	return LoadConfig("configs/worker.yaml")
}
