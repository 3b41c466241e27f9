package llm

import (
	"context"
	"errors"
	"os"
	"testing"

	"colorix-agent-go/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init("error", "json", "")
	os.Exit(m.Run())
}

type stubProvider struct {
	name  string
	text  string
	err   error
	calls int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Generate(_ context.Context, _ []Message) (string, error) {
	p.calls++
	return p.text, p.err
}

func TestInvokeUsesDefaultPrimary(t *testing.T) {
	primary := &stubProvider{name: "gemini", text: "from gemini"}
	secondary := &stubProvider{name: "groq", text: "from groq"}
	g := NewFailoverGateway(primary, secondary, "gemini")

	text, err := g.Invoke(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "from gemini" {
		t.Errorf("expected primary response, got %q", text)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary should not be called on success")
	}
}

func TestInvokeFailsOverExactlyOnce(t *testing.T) {
	primary := &stubProvider{name: "gemini", err: errors.New("rate limited")}
	secondary := &stubProvider{name: "groq", text: "from groq"}
	g := NewFailoverGateway(primary, secondary, "gemini")

	text, err := g.Invoke(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "from groq" {
		t.Errorf("expected fallback response, got %q", text)
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Errorf("expected exactly one call per provider, got %d/%d", primary.calls, secondary.calls)
	}
}

func TestInvokePropagatesWhenBothFail(t *testing.T) {
	primary := &stubProvider{name: "gemini", err: errors.New("down")}
	secondary := &stubProvider{name: "groq", err: errors.New("also down")}
	g := NewFailoverGateway(primary, secondary, "gemini")

	if _, err := g.Invoke(context.Background(), nil, ""); err == nil {
		t.Fatal("expected error when both providers fail")
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Errorf("no retries allowed, got %d/%d calls", primary.calls, secondary.calls)
	}
}

func TestInvokeHonorsPreferredProvider(t *testing.T) {
	primary := &stubProvider{name: "gemini", text: "from gemini"}
	secondary := &stubProvider{name: "groq", text: "from groq"}
	g := NewFailoverGateway(primary, secondary, "gemini")

	text, err := g.Invoke(context.Background(), nil, "groq")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "from groq" {
		t.Errorf("expected preferred provider response, got %q", text)
	}
	if primary.calls != 0 {
		t.Errorf("non-preferred provider should not be called")
	}
}

func TestInvokeUnknownPreferFallsBackToDefaultOrder(t *testing.T) {
	primary := &stubProvider{name: "gemini", text: "from gemini"}
	secondary := &stubProvider{name: "groq"}
	g := NewFailoverGateway(primary, secondary, "gemini")

	text, err := g.Invoke(context.Background(), nil, "mistral")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "from gemini" {
		t.Errorf("unknown prefer should use default order, got %q", text)
	}
}
