package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"colorix-agent-go/internal/config"
	"colorix-agent-go/pkg/log"

	"github.com/gin-gonic/gin"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	log.Init("error", "json", "")
	os.Exit(m.Run())
}

type fakeAgent struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []string
}

func (f *fakeAgent) ProcessMessage(_ context.Context, sessionID, _, userText string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sessionID+"|"+userText)
	f.mu.Unlock()
	return f.reply, f.err
}

type fakeDedup struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (f *fakeDedup) MarkSeen(_ context.Context, sid string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[sid] {
		return false, nil
	}
	f.seen[sid] = true
	return true, nil
}

type channelSender struct {
	ch chan [2]string
}

func (s *channelSender) Send(_ context.Context, to, body string) error {
	s.ch <- [2]string{to, body}
	return nil
}

func newWebhookRouter(agent *fakeAgent, dedup *fakeDedup, sender *channelSender) *gin.Engine {
	waCfg := config.WhatsAppConfig{ValidateSignature: false}
	agentCfg := config.AgentConfig{
		ContactPhone: "+237 696 26 26 56",
		Website:      "colorixgroupe.com",
	}
	h := NewWebhookHandler(agent, dedup, sender, waCfg, agentCfg)
	r := gin.New()
	r.POST("/webhook/whatsapp", h.HandleIncoming)
	return r
}

func postForm(r *gin.Engine, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/webhook/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func waitForSend(t *testing.T, ch chan [2]string) [2]string {
	t.Helper()
	select {
	case sent := <-ch:
		return sent
	case <-time.After(2 * time.Second):
		t.Fatal("no message was sent")
		return [2]string{}
	}
}

func TestWebhookProcessesAndReplies(t *testing.T) {
	agent := &fakeAgent{reply: "Yes, we print mugs!"}
	sender := &channelSender{ch: make(chan [2]string, 1)}
	r := newWebhookRouter(agent, &fakeDedup{}, sender)

	w := postForm(r, url.Values{
		"From":       {"whatsapp:+237696000000"},
		"Body":       {"do you print mugs?"},
		"MessageSid": {"SM1"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Errorf("expected empty TwiML response, got content type %q", ct)
	}

	sent := waitForSend(t, sender.ch)
	if sent[0] != "whatsapp:+237696000000" || sent[1] != "Yes, we print mugs!" {
		t.Errorf("unexpected reply: %v", sent)
	}

	agent.mu.Lock()
	defer agent.mu.Unlock()
	if len(agent.calls) != 1 || !strings.HasPrefix(agent.calls[0], "wa_237696000000|") {
		t.Errorf("unexpected agent calls: %v", agent.calls)
	}
}

func TestWebhookIgnoresDuplicateDelivery(t *testing.T) {
	agent := &fakeAgent{reply: "hi"}
	sender := &channelSender{ch: make(chan [2]string, 2)}
	dedup := &fakeDedup{}
	r := newWebhookRouter(agent, dedup, sender)

	form := url.Values{
		"From":       {"whatsapp:+237696000000"},
		"Body":       {"price for flyers?"},
		"MessageSid": {"SM-dup"},
	}
	postForm(r, form)
	waitForSend(t, sender.ch)

	w := postForm(r, form)
	if w.Code != http.StatusOK {
		t.Fatalf("duplicate should still get 200, got %d", w.Code)
	}

	select {
	case sent := <-sender.ch:
		t.Errorf("duplicate delivery must not trigger a second reply: %v", sent)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWebhookGreetingShortCircuit(t *testing.T) {
	agent := &fakeAgent{}
	sender := &channelSender{ch: make(chan [2]string, 1)}
	r := newWebhookRouter(agent, &fakeDedup{}, sender)

	postForm(r, url.Values{
		"From":       {"whatsapp:+237696000000"},
		"Body":       {"bonjour"},
		"MessageSid": {"SM2"},
	})

	sent := waitForSend(t, sender.ch)
	if !strings.Contains(sent[1], "Bonjour !") {
		t.Errorf("expected French greeting, got %q", sent[1])
	}

	agent.mu.Lock()
	defer agent.mu.Unlock()
	if len(agent.calls) != 0 {
		t.Error("greeting must not reach the agent")
	}
}

func TestWebhookMediaShortCircuit(t *testing.T) {
	agent := &fakeAgent{}
	sender := &channelSender{ch: make(chan [2]string, 1)}
	r := newWebhookRouter(agent, &fakeDedup{}, sender)

	postForm(r, url.Values{
		"From":       {"whatsapp:+237696000000"},
		"NumMedia":   {"1"},
		"MessageSid": {"SM3"},
	})

	sent := waitForSend(t, sender.ch)
	if !strings.Contains(sent[1], "colorixgroupe.com") {
		t.Errorf("media reply should point at the upload site, got %q", sent[1])
	}

	agent.mu.Lock()
	defer agent.mu.Unlock()
	if len(agent.calls) != 0 {
		t.Error("media message must not reach the agent")
	}
}

func TestWebhookSendsApologyOnFailure(t *testing.T) {
	agent := &fakeAgent{err: errors.New("pipeline down")}
	sender := &channelSender{ch: make(chan [2]string, 1)}
	r := newWebhookRouter(agent, &fakeDedup{}, sender)

	w := postForm(r, url.Values{
		"From":       {"whatsapp:+237696000000"},
		"Body":       {"what sizes of posters?"},
		"MessageSid": {"SM4"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("failures must still return 200 to Twilio, got %d", w.Code)
	}

	sent := waitForSend(t, sender.ch)
	if !strings.Contains(sent[1], "Something went wrong") {
		t.Errorf("expected apology message, got %q", sent[1])
	}
}

func TestWebhookIgnoresNonMessagePayload(t *testing.T) {
	agent := &fakeAgent{}
	sender := &channelSender{ch: make(chan [2]string, 1)}
	r := newWebhookRouter(agent, &fakeDedup{}, sender)

	w := postForm(r, url.Values{"AccountSid": {"AC1"}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for non-message payload, got %d", w.Code)
	}
	agent.mu.Lock()
	defer agent.mu.Unlock()
	if len(agent.calls) != 0 {
		t.Error("non-message payload must not reach the agent")
	}
}
