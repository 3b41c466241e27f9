// Package service 实现了消息处理编排的核心业务逻辑。
package service

import (
	"context"
	"sync"

	"colorix-agent-go/internal/lang"
	"colorix-agent-go/internal/model"
	"colorix-agent-go/internal/repository"
	"colorix-agent-go/pkg/embedding"
)

// ContextService 负责组装一轮对话所需的上下文：
// 会话历史与用户消息向量并行获取，两者就绪后才进入检索。
type ContextService interface {
	// Assemble 返回该会话的近期历史（最旧在前）与用户消息的向量。
	// 任一支失败则整轮失败。
	Assemble(ctx context.Context, sessionID, userText string) ([]model.ChatTurn, []float32, error)
}

type contextService struct {
	messageRepo     repository.MessageRepository
	embeddingClient embedding.Client
	historyLimit    int
}

// NewContextService 创建一个新的 ContextService 实例。
func NewContextService(messageRepo repository.MessageRepository, embeddingClient embedding.Client, historyLimit int) ContextService {
	return &contextService{
		messageRepo:     messageRepo,
		embeddingClient: embeddingClient,
		historyLimit:    historyLimit,
	}
}

// Assemble 用两个 goroutine 并行拉取历史与向量化用户消息。
func (s *contextService) Assemble(ctx context.Context, sessionID, userText string) ([]model.ChatTurn, []float32, error) {
	var (
		wg         sync.WaitGroup
		history    []model.ChatTurn
		historyErr error
		vector     []float32
		embedErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		history, historyErr = s.messageRepo.FindRecent(ctx, sessionID, s.historyLimit)
	}()
	go func() {
		defer wg.Done()
		vector, embedErr = s.embeddingClient.CreateEmbedding(ctx, userText)
	}()
	wg.Wait()

	if historyErr != nil {
		return nil, nil, historyErr
	}
	if embedErr != nil {
		return nil, nil, embedErr
	}
	return history, vector, nil
}

// LastAssistantLanguage 返回历史中最近一条助手消息的语言标记，
// 没有助手消息时回退默认语言。
func LastAssistantLanguage(history []model.ChatTurn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == model.RoleAssistant {
			if history[i].Language != "" {
				return history[i].Language
			}
			return lang.Default
		}
	}
	return lang.Default
}

// LastAssistantContent 返回历史中最近一条助手消息的内容，没有则为空串。
func LastAssistantContent(history []model.ChatTurn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == model.RoleAssistant {
			return history[i].Content
		}
	}
	return ""
}
