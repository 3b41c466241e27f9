// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"net/http"

	"colorix-agent-go/internal/config"
	"colorix-agent-go/internal/lang"
	"colorix-agent-go/internal/repository"
	"colorix-agent-go/internal/service"
	"colorix-agent-go/pkg/log"
	"colorix-agent-go/pkg/whatsapp"

	"github.com/gin-gonic/gin"
)

// WebhookHandler 负责处理 Twilio 的 WhatsApp 入站 webhook。
// Twilio 要求快速返回 200，实际处理在后台完成。
type WebhookHandler struct {
	agentService service.AgentService
	dedupRepo    repository.DedupRepository
	sender       whatsapp.Sender
	waCfg        config.WhatsAppConfig
	agentCfg     config.AgentConfig
}

// NewWebhookHandler 创建一个新的 WebhookHandler 实例。
func NewWebhookHandler(
	agentService service.AgentService,
	dedupRepo repository.DedupRepository,
	sender whatsapp.Sender,
	waCfg config.WhatsAppConfig,
	agentCfg config.AgentConfig,
) *WebhookHandler {
	return &WebhookHandler{
		agentService: agentService,
		dedupRepo:    dedupRepo,
		sender:       sender,
		waCfg:        waCfg,
		agentCfg:     agentCfg,
	}
}

// HandleIncoming 处理一条入站消息。无论处理结果如何都立即返回空 TwiML，
// 避免 Twilio 把自动回复当作 webhook 响应重复下发。
func (h *WebhookHandler) HandleIncoming(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		log.Warnf("[Webhook] 解析 form 失败: %v", err)
		h.replyEmptyTwiML(c)
		return
	}
	form := make(map[string]string, len(c.Request.PostForm))
	for k, v := range c.Request.PostForm {
		if len(v) > 0 {
			form[k] = v[0]
		}
	}

	if h.waCfg.ValidateSignature {
		signature := c.GetHeader("X-Twilio-Signature")
		fullURL := h.waCfg.WebhookBaseURL + c.Request.URL.Path
		if !whatsapp.ValidateSignature(h.waCfg.AuthToken, fullURL, form, signature) {
			log.Warnf("[Webhook] Twilio 签名校验失败, ip: %s", c.ClientIP())
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
	}

	msg := whatsapp.ParseWebhookForm(form)
	if msg == nil {
		h.replyEmptyTwiML(c)
		return
	}

	// Twilio 对超时的 webhook 会重投，同一 MessageSid 只处理一次。
	if msg.MessageSID != "" {
		first, err := h.dedupRepo.MarkSeen(c.Request.Context(), msg.MessageSID)
		if err != nil {
			// 去重不可用时宁可重复处理也不丢消息。
			log.Warnf("[Webhook] 去重检查失败, sid: %s: %v", msg.MessageSID, err)
		} else if !first {
			log.Infof("[Webhook] 重复投递, 忽略, sid: %s", msg.MessageSID)
			h.replyEmptyTwiML(c)
			return
		}
	}

	log.Infof("[Webhook] 收到消息, phone: %s, media: %d, text: %.80q", msg.Phone, msg.NumMedia, msg.Text)

	// 媒体消息与问候不走完整编排，直接回固定文案。
	if msg.NumMedia > 0 {
		language := lang.DetectGreetingLanguage(msg.Text)
		go h.sendInBackground(msg.FromRaw, lang.MediaMessage(language, h.agentCfg.Website, h.agentCfg.ContactPhone))
		h.replyEmptyTwiML(c)
		return
	}
	if lang.IsGreeting(msg.Text) {
		language := lang.DetectGreetingLanguage(msg.Text)
		go h.sendInBackground(msg.FromRaw, lang.GreetingMessage(language))
		h.replyEmptyTwiML(c)
		return
	}

	go h.processAndReply(whatsapp.PhoneToSessionID(msg.Phone), msg.Phone, msg.FromRaw, msg.Text)
	h.replyEmptyTwiML(c)
}

// processAndReply 在后台执行完整编排并把结果发回客户。
// 编排失败时按消息语言发送兜底道歉文案。
func (h *WebhookHandler) processAndReply(sessionID, phone, fromRaw, text string) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Webhook] 后台处理 panic, phone: %s: %v", phone, r)
		}
	}()
	ctx := context.Background()

	response, err := h.agentService.ProcessMessage(ctx, sessionID, phone, text)
	if err != nil {
		log.Errorf("[Webhook] 处理消息失败, phone: %s: %v", phone, err)
		language := lang.DetectGreetingLanguage(text)
		if sendErr := h.sender.Send(ctx, fromRaw, lang.ApologyMessage(language, h.agentCfg.ContactPhone)); sendErr != nil {
			log.Errorf("[Webhook] 发送道歉文案失败, phone: %s: %v", phone, sendErr)
		}
		return
	}

	if err := h.sender.Send(ctx, fromRaw, response); err != nil {
		log.Errorf("[Webhook] 回复客户失败, phone: %s: %v", phone, err)
		return
	}
	log.Infof("[Webhook] 已回复, phone: %s, reply: %.60q", phone, response)
}

func (h *WebhookHandler) sendInBackground(to, body string) {
	if err := h.sender.Send(context.Background(), to, body); err != nil {
		log.Errorf("[Webhook] 发送固定文案失败, to: %s: %v", to, err)
	}
}

// replyEmptyTwiML 返回空的 TwiML 响应体。
func (h *WebhookHandler) replyEmptyTwiML(c *gin.Context) {
	c.Data(http.StatusOK, "text/xml", []byte{})
}
