// Package whatsapp 提供了通过 Twilio 收发 WhatsApp 消息的客户端功能。
package whatsapp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"colorix-agent-go/internal/config"
	"colorix-agent-go/pkg/log"
)

// Twilio 对消息体的长度上限，超出部分不保证送达，发送前统一截断。
const maxBodyLen = 1600

// Sender 定义了消息发送的边界。
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

type twilioClient struct {
	cfg    config.WhatsAppConfig
	client *http.Client
}

// NewClient 创建一个新的 Twilio WhatsApp 客户端。
func NewClient(cfg config.WhatsAppConfig) Sender {
	return &twilioClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// Send 通过 Twilio REST API 发送一条 WhatsApp 消息。
// to 可以带或不带 whatsapp: 前缀。
func (c *twilioClient) Send(ctx context.Context, to, body string) error {
	if runes := []rune(body); len(runes) > maxBodyLen {
		body = string(runes[:maxBodyLen])
	}

	form := url.Values{}
	form.Set("To", ensureWhatsAppPrefix(to))
	form.Set("From", ensureWhatsAppPrefix(c.cfg.FromNumber))
	form.Set("Body", body)

	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", c.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create twilio request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call twilio api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("twilio api returned status %s: %s", resp.Status, string(bodyBytes))
	}

	log.Infof("[WhatsApp] 消息已发送, to: %s, len: %d", to, len(body))
	return nil
}

func ensureWhatsAppPrefix(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

// NormalizePhone 去掉号码中的 +、空格与连字符，用于存储与会话派生。
func NormalizePhone(phone string) string {
	replacer := strings.NewReplacer("+", "", " ", "", "-", "")
	return replacer.Replace(phone)
}

// PhoneToSessionID 由渠道号码确定性地派生会话标识。
func PhoneToSessionID(phone string) string {
	return "wa_" + NormalizePhone(phone)
}
