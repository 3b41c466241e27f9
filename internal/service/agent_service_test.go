package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"colorix-agent-go/internal/config"
	"colorix-agent-go/internal/model"
	"colorix-agent-go/pkg/es"
	"colorix-agent-go/pkg/llm"
)

func testAgentConfig() config.AgentConfig {
	return config.AgentConfig{
		TopK:         5,
		HistoryLimit: 8,
		BotName:      "ColorixBot",
		ContactPhone: "+237 696 26 26 56",
		Website:      "colorixgroupe.com",
		Prompt: config.PromptConfig{
			Rules:       "1. Keep replies short and clear",
			CompanyInfo: "- Name: Colorix Groupe",
		},
	}
}

type agentFixture struct {
	svc        AgentService
	msgRepo    *fakeMessageRepo
	sessRepo   *fakeSessionRepo
	escRepo    *fakeEscalationRepo
	gateway    *fakeGateway
	searcher   *fakeSearcher
	staffInbox *fakeSender
}

func newAgentFixture(gatewayFn func([]llm.Message, string) (string, error), hits []es.Hit, history []model.ChatTurn) *agentFixture {
	msgRepo := &fakeMessageRepo{history: history}
	sessRepo := &fakeSessionRepo{done: make(chan struct{})}
	escRepo := &fakeEscalationRepo{}
	staffInbox := &fakeSender{}
	embedder := &fakeEmbedder{dims: 4}
	searcher := &fakeSearcher{fn: func(_ []float32, _ int, _ float64) []es.Hit { return hits }}
	gateway := &fakeGateway{fn: gatewayFn}
	feed := NewEscalationFeed()

	contextSvc := NewContextService(msgRepo, embedder, 8)
	retrievalSvc := NewRetrievalService(embedder, searcher, gateway)
	escalationSvc := NewEscalationService(escRepo, staffInbox, feed, "+237699888577", "+237 696 26 26 56")

	return &agentFixture{
		svc:        NewAgentService(contextSvc, retrievalSvc, escalationSvc, gateway, msgRepo, sessRepo, testAgentConfig()),
		msgRepo:    msgRepo,
		sessRepo:   sessRepo,
		escRepo:    escRepo,
		gateway:    gateway,
		searcher:   searcher,
		staffInbox: staffInbox,
	}
}

func (f *agentFixture) waitForSave(t *testing.T) {
	t.Helper()
	select {
	case <-f.sessRepo.done:
	case <-time.After(2 * time.Second):
		t.Fatal("background save did not complete")
	}
}

func TestProcessMessageAnswersFromKnowledgeBase(t *testing.T) {
	hits := []es.Hit{
		{ID: "kb_0", Content: "We print business cards in matte and glossy finishes.", Section: "PRODUCT", Similarity: 0.62},
	}
	var systemPrompt string
	gatewayFn := func(messages []llm.Message, _ string) (string, error) {
		if messages[0].Role == llm.RoleSystem && strings.Contains(messages[0].Content, "KNOWLEDGE BASE") {
			systemPrompt = messages[0].Content
			return "Yes! We print business cards in matte and glossy finishes. 😊", nil
		}
		// 查询改写调用
		return "business cards printing options finishes", nil
	}

	f := newAgentFixture(gatewayFn, hits, nil)
	reply, err := f.svc.ProcessMessage(context.Background(), "wa_237696000000", "237696000000", "Do you print business cards?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, "business cards") {
		t.Errorf("unexpected reply: %q", reply)
	}

	if !strings.Contains(systemPrompt, "[Source 1 — PRODUCT]") {
		t.Errorf("system prompt should carry retrieved context, got: %q", systemPrompt)
	}
	if !strings.Contains(systemPrompt, "No previous conversation.") {
		t.Errorf("system prompt should note empty history, got: %q", systemPrompt)
	}
	if !strings.Contains(systemPrompt, "ColorixBot") {
		t.Errorf("system prompt should carry the bot name")
	}

	f.waitForSave(t)
	f.msgRepo.mu.Lock()
	defer f.msgRepo.mu.Unlock()
	if len(f.msgRepo.inserted) != 2 {
		t.Fatalf("expected user+assistant messages saved, got %d", len(f.msgRepo.inserted))
	}
	if f.msgRepo.inserted[0].Role != model.RoleUser || f.msgRepo.inserted[1].Role != model.RoleAssistant {
		t.Errorf("messages saved in wrong order: %+v", f.msgRepo.inserted)
	}
	if f.msgRepo.inserted[1].Metadata["escalated"] != false {
		t.Errorf("assistant metadata should mark escalated=false")
	}
	if f.sessRepo.upserted[0].State.LastMessage != "Do you print business cards?" {
		t.Errorf("session state should keep last message, got %+v", f.sessRepo.upserted[0].State)
	}
}

func TestProcessMessageEscalatesOnSentinel(t *testing.T) {
	gatewayFn := func(messages []llm.Message, _ string) (string, error) {
		if strings.Contains(messages[0].Content, "KNOWLEDGE BASE") {
			return "ESCALATE", nil
		}
		return "speak to manager human agent", nil
	}
	history := []model.ChatTurn{
		{Role: model.RoleAssistant, Content: "Hello! How can I help?", Language: "fr"},
	}

	f := newAgentFixture(gatewayFn, nil, history)
	reply, err := f.svc.ProcessMessage(context.Background(), "wa_1", "237696000000", "I need to speak to your manager now")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 上一轮助手语言是法语，转人工回复应为法语。
	if !strings.Contains(reply, "l'équipe Colorix") {
		t.Errorf("expected French handoff reply, got %q", reply)
	}
	if len(f.escRepo.created) != 1 {
		t.Fatalf("expected an escalation record")
	}
	if f.escRepo.created[0].BotDraft != "" {
		t.Errorf("sentinel draft should not be stored, got %q", f.escRepo.created[0].BotDraft)
	}
	if len(f.staffInbox.sent) != 1 {
		t.Errorf("expected staff notification, got %d", len(f.staffInbox.sent))
	}

	f.waitForSave(t)
	f.msgRepo.mu.Lock()
	defer f.msgRepo.mu.Unlock()
	if f.msgRepo.inserted[1].Content != reply {
		t.Errorf("stored assistant message should be the handoff reply, got %q", f.msgRepo.inserted[1].Content)
	}
	if f.msgRepo.inserted[1].Metadata["escalated"] != true {
		t.Errorf("assistant metadata should mark escalated=true")
	}
}

func TestProcessMessageFailsWhenGenerationFails(t *testing.T) {
	gatewayFn := func(messages []llm.Message, _ string) (string, error) {
		return "", errors.New("both providers down")
	}
	f := newAgentFixture(gatewayFn, nil, nil)

	if _, err := f.svc.ProcessMessage(context.Background(), "wa_1", "1", "do you print posters?"); err == nil {
		t.Fatal("expected error when generation fails")
	}
	f.msgRepo.mu.Lock()
	defer f.msgRepo.mu.Unlock()
	if len(f.msgRepo.inserted) != 0 {
		t.Errorf("failed turn must not persist messages, got %d", len(f.msgRepo.inserted))
	}
}

func TestProcessMessageStoresFrenchLanguageTag(t *testing.T) {
	gatewayFn := func(messages []llm.Message, _ string) (string, error) {
		if strings.Contains(messages[0].Content, "KNOWLEDGE BASE") {
			return "Oui, nous imprimons des affiches !", nil
		}
		return "affiches impression", nil
	}
	f := newAgentFixture(gatewayFn, nil, nil)

	if _, err := f.svc.ProcessMessage(context.Background(), "wa_1", "1", "Est-ce que vous imprimez des affiches ?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.waitForSave(t)

	f.msgRepo.mu.Lock()
	defer f.msgRepo.mu.Unlock()
	for _, m := range f.msgRepo.inserted {
		if m.Language != "fr" {
			t.Errorf("expected fr storage language, got %q", m.Language)
		}
	}
}
