package whatsapp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+237 696 00 00 00", "237696000000"},
		{"237-696-000-000", "237696000000"},
		{"237696000000", "237696000000"},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.in); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPhoneToSessionID(t *testing.T) {
	if got := PhoneToSessionID("+237 696 00 00 00"); got != "wa_237696000000" {
		t.Errorf("unexpected session id: %q", got)
	}
	// 同一号码的不同写法必须派生出同一会话。
	if PhoneToSessionID("+237696000000") != PhoneToSessionID("237 696 000 000") {
		t.Error("session id must be stable across phone formats")
	}
}

func TestParseWebhookForm(t *testing.T) {
	msg := ParseWebhookForm(map[string]string{
		"From":       "whatsapp:+237696000000",
		"Body":       "  Do you print posters?  ",
		"MessageSid": "SM123",
		"NumMedia":   "0",
	})
	if msg == nil {
		t.Fatal("expected message")
	}
	if msg.Phone != "237696000000" {
		t.Errorf("unexpected phone: %q", msg.Phone)
	}
	if msg.FromRaw != "whatsapp:+237696000000" {
		t.Errorf("raw sender must be preserved for replies: %q", msg.FromRaw)
	}
	if msg.Text != "Do you print posters?" {
		t.Errorf("body should be trimmed: %q", msg.Text)
	}
	if msg.MessageSID != "SM123" || msg.NumMedia != 0 {
		t.Errorf("unexpected fields: %+v", msg)
	}
}

func TestParseWebhookFormNonMessage(t *testing.T) {
	if msg := ParseWebhookForm(map[string]string{"AccountSid": "AC1"}); msg != nil {
		t.Errorf("payload without From is not a message, got %+v", msg)
	}
}

func TestParseWebhookFormMedia(t *testing.T) {
	msg := ParseWebhookForm(map[string]string{
		"From":     "whatsapp:+237696000000",
		"NumMedia": "2",
	})
	if msg.NumMedia != 2 {
		t.Errorf("expected NumMedia=2, got %d", msg.NumMedia)
	}
	if msg.Text != "" {
		t.Errorf("expected empty text, got %q", msg.Text)
	}
}

func TestValidateSignature(t *testing.T) {
	authToken := "secret-token"
	fullURL := "https://bot.example.com/webhook/whatsapp"
	form := map[string]string{
		"From": "whatsapp:+237696000000",
		"Body": "hello",
	}

	// Twilio 算法：URL + 按 key 排序的 key+value 拼接，HMAC-SHA1 后 base64。
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(fullURL + "Body" + "hello" + "From" + "whatsapp:+237696000000"))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !ValidateSignature(authToken, fullURL, form, signature) {
		t.Error("expected valid signature to pass")
	}
	if ValidateSignature(authToken, fullURL, form, "bogus") {
		t.Error("expected bogus signature to fail")
	}
	if ValidateSignature("other-token", fullURL, form, signature) {
		t.Error("expected signature with wrong token to fail")
	}
}
