package lang

import (
	"strings"
	"testing"
)

func TestDetectStorageLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"french greeting", "Bonjour, je voudrais un devis", French},
		{"french keyword embedded", "Quel est le prix pour la livraison ?", French},
		{"english question", "How much for 500 business cards?", English},
		{"empty", "", English},
		{"uppercase french", "MERCI BEAUCOUP", French},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectStorageLanguage(tt.text); got != tt.want {
				t.Errorf("DetectStorageLanguage(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestIsGreeting(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"hi", true},
		{"  Hello  ", true},
		{"bonjour", true},
		{"menu", true},
		{"", true},
		{"hello there, I need flyers", false},
		{"do you print posters?", false},
	}
	for _, tt := range tests {
		if got := IsGreeting(tt.text); got != tt.want {
			t.Errorf("IsGreeting(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestDetectGreetingLanguage(t *testing.T) {
	if got := DetectGreetingLanguage("salut"); got != French {
		t.Errorf("expected French for 'salut', got %q", got)
	}
	if got := DetectGreetingLanguage("hello"); got != English {
		t.Errorf("expected English for 'hello', got %q", got)
	}
	if got := DetectGreetingLanguage(""); got != English {
		t.Errorf("expected English fallback for empty text, got %q", got)
	}
}

func TestContainsHumanRequest(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"I want to speak to a manager", true},
		{"Can I talk to a real person please", true},
		{"je veux parler à un agent", true},
		{"How much are flyers?", false},
		{"the staff at your shop were great", true}, // substring match is intentional
	}
	for _, tt := range tests {
		if got := ContainsHumanRequest(tt.text); got != tt.want {
			t.Errorf("ContainsHumanRequest(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestHandoffOfferAndAffirmative(t *testing.T) {
	offer := "Would you like to speak with our team? Reply *yes* and I'll connect you."
	if !ContainsHandoffOffer(offer) {
		t.Error("expected handoff offer to be detected")
	}
	if ContainsHandoffOffer("Our flyers start from A6 size.") {
		t.Error("plain answer should not read as a handoff offer")
	}
	if !ContainsAffirmative("Yes please") {
		t.Error("expected affirmative to be detected")
	}
	if !ContainsAffirmative("oui") {
		t.Error("expected French affirmative to be detected")
	}
}

func TestMessagesFillPlaceholders(t *testing.T) {
	phone := "+237 696 26 26 56"
	site := "colorixgroupe.com"

	if msg := HandoffMessage(French, phone); !strings.Contains(msg, phone) {
		t.Errorf("handoff message missing contact phone: %q", msg)
	}
	if msg := MediaMessage(English, site, phone); !strings.Contains(msg, site) || !strings.Contains(msg, phone) {
		t.Errorf("media message missing placeholders: %q", msg)
	}
	if msg := ApologyMessage("de", phone); !strings.Contains(msg, phone) {
		t.Errorf("apology message should fall back to English and keep phone: %q", msg)
	}
	if GreetingMessage(French) == GreetingMessage(English) {
		t.Error("greetings should differ by language")
	}
}
