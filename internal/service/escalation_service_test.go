package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"colorix-agent-go/internal/model"
)

func newEscalationService(repo *fakeEscalationRepo, sender *fakeSender) (EscalationService, *EscalationFeed) {
	feed := NewEscalationFeed()
	svc := NewEscalationService(repo, sender, feed, "+237699888577", "+237 696 26 26 56")
	return svc, feed
}

func TestDetect(t *testing.T) {
	svc, _ := newEscalationService(&fakeEscalationRepo{}, &fakeSender{})

	offerHistory := []model.ChatTurn{
		{Role: model.RoleAssistant, Content: "Would you like to speak with our team? Reply *yes*.", Language: "en"},
	}

	tests := []struct {
		name     string
		userText string
		response string
		history  []model.ChatTurn
		want     bool
	}{
		{"sentinel response", "tell me more", "ESCALATE", nil, true},
		{"sentinel with trailing text", "tell me more", "escalate: customer is upset", nil, true},
		{"sentinel lowercase padded", "tell me more", "  Escalate  ", nil, true},
		{"explicit human request", "I want to speak to a manager", "Sure, our team...", nil, true},
		{"french human request", "je veux parler à un agent", "Bien sûr", nil, true},
		{"offer plus affirmative", "yes", "Great!", offerHistory, true},
		{"affirmative without offer", "yes", "Great!", nil, false},
		{"plain question", "do you print mugs?", "Yes we do!", nil, false},
		{"sentinel mid-response does not count", "hello", "You should not ESCALATE this", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.Detect(tt.userText, tt.response, tt.history); got != tt.want {
				t.Errorf("Detect(%q, %q) = %v, want %v", tt.userText, tt.response, got, tt.want)
			}
		})
	}
}

func TestHandleCreatesRecordAndNotifiesStaff(t *testing.T) {
	repo := &fakeEscalationRepo{}
	sender := &fakeSender{}
	svc, feed := newEscalationService(repo, sender)

	events := feed.Subscribe()
	defer feed.Unsubscribe(events)

	reply, err := svc.Handle(context.Background(), "wa_237696000000", "237696000000",
		"I want to speak to a manager", "Sure, I can help with that.", "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected 1 escalation record, got %d", len(repo.created))
	}
	rec := repo.created[0]
	if rec.TriggerReason != model.TriggerReasonHuman {
		t.Errorf("unexpected trigger reason %q", rec.TriggerReason)
	}
	if rec.BotDraft != "Sure, I can help with that." {
		t.Errorf("non-sentinel draft should be kept, got %q", rec.BotDraft)
	}

	if len(sender.sent) != 1 || sender.sent[0].To != "+237699888577" {
		t.Fatalf("expected one staff notification, got %+v", sender.sent)
	}
	if !strings.Contains(sender.sent[0].Body, "#1") {
		t.Errorf("staff message should carry the escalation id: %q", sender.sent[0].Body)
	}

	if !strings.Contains(reply, "Colorix team member") {
		t.Errorf("expected English handoff reply, got %q", reply)
	}

	select {
	case evt := <-events:
		if evt.ID != 1 || evt.CustomerNumber != "237696000000" {
			t.Errorf("unexpected feed event: %+v", evt)
		}
	default:
		t.Error("expected an event on the escalation feed")
	}
}

func TestHandleDropsSentinelDraft(t *testing.T) {
	repo := &fakeEscalationRepo{}
	svc, _ := newEscalationService(repo, &fakeSender{})

	if _, err := svc.Handle(context.Background(), "wa_1", "1", "manager please", "ESCALATE", "fr"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.created[0].BotDraft != "" {
		t.Errorf("sentinel draft should be dropped, got %q", repo.created[0].BotDraft)
	}
}

func TestHandleRepliesInLastLanguage(t *testing.T) {
	svc, _ := newEscalationService(&fakeEscalationRepo{}, &fakeSender{})

	reply, err := svc.Handle(context.Background(), "wa_1", "1", "parler à un agent", "", "fr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply, "l'équipe Colorix") {
		t.Errorf("expected French handoff reply, got %q", reply)
	}
}

func TestHandleToleratesNotifyFailure(t *testing.T) {
	repo := &fakeEscalationRepo{}
	svc, _ := newEscalationService(repo, &fakeSender{err: errors.New("twilio 500")})

	reply, err := svc.Handle(context.Background(), "wa_1", "1", "manager", "draft", "en")
	if err != nil {
		t.Fatalf("notification failure must not fail the turn: %v", err)
	}
	if reply == "" {
		t.Error("expected handoff reply despite notify failure")
	}
	if len(repo.created) != 1 {
		t.Error("record should still be created")
	}
}

func TestHandleFailsWhenRecordCreationFails(t *testing.T) {
	repo := &fakeEscalationRepo{createErr: errors.New("db down")}
	svc, _ := newEscalationService(repo, &fakeSender{})

	if _, err := svc.Handle(context.Background(), "wa_1", "1", "manager", "draft", "en"); err == nil {
		t.Fatal("expected error when escalation record cannot be created")
	}
}

func TestFeedDropsEventsForSlowSubscribers(t *testing.T) {
	feed := NewEscalationFeed()
	ch := feed.Subscribe()
	defer feed.Unsubscribe(ch)

	// 填满缓冲后继续发布不能阻塞。
	for i := 0; i < 40; i++ {
		feed.Publish(EscalationEvent{ID: uint(i)})
	}
	if len(ch) != cap(ch) {
		t.Errorf("expected buffer to be full, got %d/%d", len(ch), cap(ch))
	}
}
