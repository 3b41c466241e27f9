package whatsapp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"sort"
	"strconv"
	"strings"
)

// InboundMessage 是解析后的 Twilio 入站 webhook 消息。
type InboundMessage struct {
	Phone      string // 去掉 whatsapp: 前缀与 + 号的号码，用于存储
	FromRaw    string // 原始 From 字段，回发时使用
	Text       string
	MessageSID string
	NumMedia   int
}

// ParseWebhookForm 解析 Twilio 的 form-encoded webhook 参数。
// 不是消息（缺少 From）时返回 nil。
func ParseWebhookForm(form map[string]string) *InboundMessage {
	fromRaw := form["From"]
	if fromRaw == "" {
		return nil
	}

	numMedia := 0
	if v := form["NumMedia"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			numMedia = n
		}
	}

	phone := strings.TrimPrefix(fromRaw, "whatsapp:")
	phone = NormalizePhone(phone)

	return &InboundMessage{
		Phone:      phone,
		FromRaw:    fromRaw,
		Text:       strings.TrimSpace(form["Body"]),
		MessageSID: form["MessageSid"],
		NumMedia:   numMedia,
	}
}

// ValidateSignature 校验请求确实来自 Twilio。
// 算法：对完整 URL 拼接按参数名排序后的 key+value，做 HMAC-SHA1 后 base64。
func ValidateSignature(authToken, fullURL string, form map[string]string, signature string) bool {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(fullURL)
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(form[k])
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(sb.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
