package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"colorix-agent-go/internal/config"
	"colorix-agent-go/internal/lang"
	"colorix-agent-go/internal/model"
	"colorix-agent-go/internal/repository"
	"colorix-agent-go/pkg/llm"
	"colorix-agent-go/pkg/log"
)

// transcriptTurns 是注入提示词的历史条数上限。
const transcriptTurns = 6

// AgentService 是每条入站消息的编排入口：
// 并行组装上下文 → 知识库检索 → 单次模型调用 → 接管判定 → 后台落库。
type AgentService interface {
	ProcessMessage(ctx context.Context, sessionID, phone, userText string) (string, error)
}

type agentService struct {
	contextSvc    ContextService
	retrievalSvc  RetrievalService
	escalationSvc EscalationService
	gateway       llm.Gateway
	messageRepo   repository.MessageRepository
	sessionRepo   repository.SessionRepository
	cfg           config.AgentConfig
}

// NewAgentService 创建一个新的 AgentService 实例。
func NewAgentService(
	contextSvc ContextService,
	retrievalSvc RetrievalService,
	escalationSvc EscalationService,
	gateway llm.Gateway,
	messageRepo repository.MessageRepository,
	sessionRepo repository.SessionRepository,
	cfg config.AgentConfig,
) AgentService {
	return &agentService{
		contextSvc:    contextSvc,
		retrievalSvc:  retrievalSvc,
		escalationSvc: escalationSvc,
		gateway:       gateway,
		messageRepo:   messageRepo,
		sessionRepo:   sessionRepo,
		cfg:           cfg,
	}
}

// ProcessMessage 处理一轮客户消息，返回要回给客户的文本。
// 每轮恰好一次生成调用；持久化在后台进行，不阻塞回复。
func (s *agentService) ProcessMessage(ctx context.Context, sessionID, phone, userText string) (string, error) {
	history, queryVec, err := s.contextSvc.Assemble(ctx, sessionID, userText)
	if err != nil {
		return "", fmt.Errorf("failed to assemble context: %w", err)
	}

	chunks := s.retrievalSvc.Retrieve(ctx, userText, queryVec, s.cfg.TopK)
	contextText, avgSim := s.retrievalSvc.FormatContext(chunks)

	lastLang := LastAssistantLanguage(history)
	systemPrompt := s.buildSystemPrompt(contextText, formatTranscript(history), lastLang)

	response, err := s.gateway.Invoke(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: userText},
	}, "")
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}
	response = strings.TrimSpace(response)

	escalated := s.escalationSvc.Detect(userText, response, history)
	if escalated {
		response, err = s.escalationSvc.Handle(ctx, sessionID, phone, userText, response, lastLang)
		if err != nil {
			return "", err
		}
	}

	storageLang := lang.DetectStorageLanguage(userText)

	// 落库不阻塞回复，也不随请求上下文取消。
	go s.saveMemory(sessionID, phone, userText, response, storageLang, escalated)

	log.Infof("[Agent] %s | lang=%s | chunks=%d | avg_sim=%.4f | escalated=%v",
		phone, storageLang, len(chunks), avgSim, escalated)
	return response, nil
}

// buildSystemPrompt 组装单次调用的系统提示：
// 身份、语言规则、接管规则、知识段落、历史、回答规则与公司信息。
func (s *agentService) buildSystemPrompt(contextText, transcript, lastLang string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, the WhatsApp assistant for Colorix Groupe, a professional printing company in Yaoundé, Cameroon.\n\n", s.cfg.BotName)

	b.WriteString("LANGUAGE RULE:\n")
	b.WriteString("- Detect the customer's language from their message\n")
	b.WriteString("- Respond in the SAME language they used\n")
	b.WriteString("- Default to English unless the message is clearly French\n")
	fmt.Fprintf(&b, "- If message is very short (ok, yes, oui, merci), use the last conversation language which was: %s\n\n", lastLang)

	b.WriteString("ESCALATION RULE:\n")
	fmt.Fprintf(&b, "- If the customer explicitly asks to speak to a human, staff, agent, manager, or real person, respond ONLY with the word: %s\n\n", escalateSentinel)

	fmt.Fprintf(&b, "KNOWLEDGE BASE:\n%s\n\n", contextText)
	fmt.Fprintf(&b, "CONVERSATION HISTORY:\n%s\n\n", transcript)
	fmt.Fprintf(&b, "RULES:\n%s\n\n", strings.TrimSpace(s.cfg.Prompt.Rules))
	fmt.Fprintf(&b, "COMPANY INFO:\n%s\n", strings.TrimSpace(s.cfg.Prompt.CompanyInfo))
	return b.String()
}

// formatTranscript 把最近几轮历史渲染成提示词中的对话转录。
func formatTranscript(history []model.ChatTurn) string {
	if len(history) > transcriptTurns {
		history = history[len(history)-transcriptTurns:]
	}
	if len(history) == 0 {
		return "No previous conversation."
	}

	lines := make([]string, 0, len(history))
	for _, t := range history {
		speaker := "Customer"
		if t.Role == model.RoleAssistant {
			speaker = "ColorixBot"
		}
		lines = append(lines, speaker+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}

// saveMemory 在后台保存本轮消息与会话状态。
// 使用独立的后台上下文，请求返回后写入仍会完成；任何失败只记日志。
func (s *agentService) saveMemory(sessionID, phone, userText, response, storageLang string, escalated bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Memory] 后台保存 panic: %v", r)
		}
	}()
	ctx := context.Background()

	if err := s.messageRepo.Insert(ctx, sessionID, model.RoleUser, userText, storageLang,
		map[string]interface{}{"phone": phone}); err != nil {
		log.Errorf("[Memory] 保存用户消息失败 session=%s: %v", sessionID, err)
		return
	}
	if err := s.messageRepo.Insert(ctx, sessionID, model.RoleAssistant, response, storageLang,
		map[string]interface{}{"escalated": escalated, "timestamp": time.Now().UTC().Format(time.RFC3339)}); err != nil {
		log.Errorf("[Memory] 保存助手消息失败 session=%s: %v", sessionID, err)
		return
	}
	if err := s.sessionRepo.Upsert(ctx, sessionID, phone, storageLang, model.SessionState{
		LastMessage:  userText,
		LastResponse: response,
	}); err != nil {
		log.Errorf("[Memory] 保存会话状态失败 session=%s: %v", sessionID, err)
		return
	}
	log.Infof("[Memory] session=%s 已保存", sessionID)
}
