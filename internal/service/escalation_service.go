package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"colorix-agent-go/internal/lang"
	"colorix-agent-go/internal/model"
	"colorix-agent-go/internal/repository"
	"colorix-agent-go/pkg/log"
	"colorix-agent-go/pkg/whatsapp"
)

// escalateSentinel 是模型判定需要转人工时输出的哨兵词。
const escalateSentinel = "ESCALATE"

// EscalationService 负责人工接管的判定、落库、员工通知与回复替换。
type EscalationService interface {
	// Detect 判定本轮是否需要转人工。
	Detect(userText, response string, history []model.ChatTurn) bool
	// Handle 创建接管记录并通知员工，返回替换给客户的固定回复。
	// 记录创建失败会使整轮失败；员工通知失败只记日志。
	Handle(ctx context.Context, sessionID, phone, userText, draft, lastLang string) (string, error)
	// Resolve 将接管记录置为已处理，返回客户号码供回信使用。
	Resolve(ctx context.Context, id uint, staffResponse string) (string, error)
}

type escalationService struct {
	escalationRepo repository.EscalationRepository
	sender         whatsapp.Sender
	feed           *EscalationFeed
	staffNumber    string
	contactPhone   string
}

// NewEscalationService 创建一个新的 EscalationService 实例。
func NewEscalationService(
	escalationRepo repository.EscalationRepository,
	sender whatsapp.Sender,
	feed *EscalationFeed,
	staffNumber, contactPhone string,
) EscalationService {
	return &escalationService{
		escalationRepo: escalationRepo,
		sender:         sender,
		feed:           feed,
		staffNumber:    staffNumber,
		contactPhone:   contactPhone,
	}
}

// Detect 三个条件任一命中即转人工：
// 模型输出哨兵词、用户显式请求人工、上一轮助手提议转人工且用户肯定答复。
func (s *escalationService) Detect(userText, response string, history []model.ChatTurn) bool {
	if hasEscalateSentinel(response) {
		return true
	}
	if lang.ContainsHumanRequest(userText) {
		return true
	}
	lastBot := LastAssistantContent(history)
	return lastBot != "" && lang.ContainsHandoffOffer(lastBot) && lang.ContainsAffirmative(userText)
}

// Handle 落库、广播、通知员工，并返回按 lastLang 选择的固定转人工回复。
// draft 是模型的原始产出：哨兵词回复不值得留存，置空。
func (s *escalationService) Handle(ctx context.Context, sessionID, phone, userText, draft, lastLang string) (string, error) {
	botDraft := draft
	if hasEscalateSentinel(draft) {
		botDraft = ""
	}

	esc := &model.Escalation{
		SessionID:      sessionID,
		CustomerNumber: phone,
		TriggerReason:  model.TriggerReasonHuman,
		LastUserMsg:    userText,
		BotDraft:       botDraft,
	}
	id, err := s.escalationRepo.Create(ctx, esc)
	if err != nil {
		return "", fmt.Errorf("failed to record escalation: %w", err)
	}

	s.feed.Publish(EscalationEvent{
		ID:             id,
		SessionID:      sessionID,
		CustomerNumber: phone,
		LastUserMsg:    userText,
		CreatedAt:      model.LocalTime(time.Now()),
	})

	staffMsg := fmt.Sprintf(
		"🔔 *New Customer Request #%d*\n\n📱 Number: +%s\n💬 Message: _%s_\n\nPlease reply to them directly on WhatsApp.",
		id, phone, userText,
	)
	if err := s.sender.Send(ctx, s.staffNumber, staffMsg); err != nil {
		// 通知失败不影响本轮：记录已落库，员工可从控制台看到。
		log.Errorf("[Escalation] #%d 通知员工失败: %v", id, err)
	} else {
		log.Infof("[Escalation] #%d 已通知员工", id)
	}

	return lang.HandoffMessage(lastLang, s.contactPhone), nil
}

// Resolve 置为已处理并返回客户号码。
func (s *escalationService) Resolve(ctx context.Context, id uint, staffResponse string) (string, error) {
	esc, err := s.escalationRepo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if err := s.escalationRepo.Resolve(ctx, id, staffResponse); err != nil {
		return "", err
	}
	return esc.CustomerNumber, nil
}

func hasEscalateSentinel(response string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(response)), escalateSentinel)
}
