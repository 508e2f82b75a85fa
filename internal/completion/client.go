// Package completion 封装对外部文本补全服务的调用。
// 服务是任意 OpenAI 兼容的 /v1/chat/completions 端点；
// 非 2xx 状态、缺少文本字段、超时都视为同一种失败——助手周期放弃执行。
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Generator 是助手服务依赖的补全接口。
type Generator interface {
	// GenerateText 以 system + user 两条角色消息调用补全服务，返回生成的文本。
	// 超时控制由调用方通过 ctx 传入。
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Client 是 Generator 的 HTTP 实现。
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient 创建补全服务客户端。
// baseURL 应包含 /v1 前缀，例如 "https://gateway.example.dev/v1"。
// apiKey 为空时不携带 Authorization 头（本地模型）。
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		model:      strings.TrimSpace(model),
		httpClient: &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// GenerateText 实现 Generator。
func (c *Client) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("completion: base URL not configured")
	}
	if c.model == "" {
		return "", fmt.Errorf("completion: model not configured")
	}

	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("completion: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("completion: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("completion: unexpected status %s", resp.Status)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("completion: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion: response has no choices")
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("completion: response has empty content")
	}
	return text, nil
}
