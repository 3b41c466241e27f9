// Package llm provides clients for interacting with Large Language Models.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"colorix-agent-go/internal/config"
)

// Message 表示一条角色消息。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// 消息角色常量。
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Provider 定义了单个生成模型提供商的能力：一次非流式补全调用。
type Provider interface {
	Name() string
	Generate(ctx context.Context, messages []Message) (string, error)
}

type openAICompatibleProvider struct {
	cfg    config.LLMProviderConfig
	gen    config.LLMGenerationConfig
	client *http.Client
}

// NewProvider 基于配置创建一个 OpenAI 兼容的 Provider。
func NewProvider(cfg config.LLMProviderConfig, gen config.LLMGenerationConfig) Provider {
	return &openAICompatibleProvider{
		cfg:    cfg,
		gen:    gen,
		client: &http.Client{},
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *openAICompatibleProvider) Name() string {
	return p.cfg.Name
}

// Generate 调用 /chat/completions 接口并返回完整文本。
// 聊天回复是短文本，固定注入配置中的 temperature 与 max_tokens。
func (p *openAICompatibleProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	reqBody := chatRequest{
		Model:    p.cfg.Model,
		Messages: messages,
		Stream:   false,
	}
	if p.gen.Temperature != 0 {
		t := p.gen.Temperature
		reqBody.Temperature = &t
	}
	if p.gen.MaxTokens != 0 {
		m := p.gen.MaxTokens
		reqBody.MaxTokens = &m
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("chat api returned no choices")
	}
	return chatResp.Choices[0].Message.Content, nil
}
