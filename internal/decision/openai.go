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

package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const moderatorSystemPrompt = `You are a strict but fair e-commerce content moderator.
Your task is to determine if a product complies with our policies.
Prohibited items include, but are not limited to: weapons, illegal drugs, hate speech, counterfeit goods, and adult content.
You will be given a product name and description.
You MUST respond with a JSON object containing two keys:
'verdict' (either 'approved' or 'rejected') and
'reason' (a brief, clear explanation for your decision, especially if rejected).`

// OpenAIConfig OpenAI 兼容端点配置
type OpenAIConfig struct {
	Model       string
	APIKey      string
	BaseURL     string // 空则用默认或 OPENAI_BASE_URL 环境变量
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration // 单次调用超时，<=0 默认 30s
}

// OpenAIClient 基于 OpenAI 兼容 chat completions 端点的审核客户端。
// 重试语义属于上层 Executor，这里不做内部重试。
type OpenAIClient struct {
	provider    string
	model       string
	apiKey      string
	baseURL     string
	maxTokens   int
	temperature float64
	client      *resty.Client
}

// NewOpenAIClient 创建 OpenAI 兼容审核客户端
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai 审核客户端缺少 api key")
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
		if envURL := os.Getenv("OPENAI_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}

	client := resty.New()
	client.SetTimeout(timeout)

	return &OpenAIClient{
		provider:    "openai",
		model:       model,
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		client:      client,
	}, nil
}

// Provider 实现 Client
func (c *OpenAIClient) Provider() string { return c.provider }

// Review 实现 Client
func (c *OpenAIClient) Review(ctx context.Context, req ReviewRequest) (Decision, error) {
	if strings.TrimSpace(req.Name) == "" {
		return Decision{}, fmt.Errorf("%w: 名称为空", ErrMalformed)
	}

	userPrompt := fmt.Sprintf(
		"Product Name: %q\nProduct Description: %q\n\nAnalyze this product information and decide if it complies with e-commerce platform policies.",
		req.Name, req.Description,
	)
	request := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": moderatorSystemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"temperature":     c.temperature,
		"max_tokens":      c.maxTokens,
		"response_format": map[string]string{"type": "json_object"},
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetBody(request).
		Post(c.baseURL + "/chat/completions")
	if err != nil {
		return Decision{}, fmt.Errorf("%w: 调用审核端点失败: %v", ErrTransient, err)
	}

	switch {
	case response.StatusCode() == http.StatusOK:
	case response.StatusCode() == http.StatusTooManyRequests || response.StatusCode() >= 500:
		return Decision{}, fmt.Errorf("%w: 审核端点返回 %d", ErrTransient, response.StatusCode())
	default:
		return Decision{}, fmt.Errorf("%w: 审核端点返回 %d: %s", ErrMalformed, response.StatusCode(), response.String())
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return Decision{}, fmt.Errorf("%w: 解析审核响应失败: %v", ErrTransient, err)
	}
	if len(result.Choices) == 0 {
		return Decision{}, fmt.Errorf("%w: 审核端点未返回结果", ErrTransient)
	}

	return parseDecision(result.Choices[0].Message.Content), nil
}

// parseDecision 解析模型输出的 JSON 决策；输出不可解析或结论不可识别时
// 按拒绝处理（fail-closed）
func parseDecision(content string) Decision {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var raw struct {
		Verdict string `json:"verdict"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return Decision{Verdict: VerdictRejected, Reason: "moderation response unparseable"}
	}
	reason := raw.Reason
	if reason == "" {
		reason = "no reason provided"
	}
	switch Verdict(raw.Verdict) {
	case VerdictApproved:
		return Decision{Verdict: VerdictApproved, Reason: reason}
	case VerdictRejected:
		return Decision{Verdict: VerdictRejected, Reason: reason}
	default:
		return Decision{Verdict: VerdictRejected, Reason: "unrecognized verdict: " + raw.Verdict}
	}
}
