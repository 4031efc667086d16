package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/walkabout/scorecard/pkg/config"
)

type stubProvider struct {
	resp   *LLMResponse
	err    error
	calls  int
	models []string
}

func (s *stubProvider) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error) {
	s.calls++
	s.models = append(s.models, model)
	return s.resp, s.err
}

func (s *stubProvider) GetDefaultModel() string { return "stub-model" }

func TestFallbackProviderUsesFallbackOnError(t *testing.T) {
	primary := &stubProvider{err: errors.New("overloaded")}
	fallback := &stubProvider{resp: &LLMResponse{Content: "ok"}}
	p := NewFallbackProvider(primary, fallback, "primary-model", "fallback-model")

	resp, err := p.Chat(context.Background(), nil, "primary-model", nil)
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q, want ok", resp.Content)
	}
	if len(fallback.models) != 1 || fallback.models[0] != "fallback-model" {
		t.Errorf("fallback called with %v, want [fallback-model]", fallback.models)
	}
}

func TestFallbackProviderSkipsFallbackOnSuccess(t *testing.T) {
	primary := &stubProvider{resp: &LLMResponse{Content: "primary"}}
	fallback := &stubProvider{}
	p := NewFallbackProvider(primary, fallback, "a", "b")

	if _, err := p.Chat(context.Background(), nil, "a", nil); err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times, want 0", fallback.calls)
	}
}

func TestFallbackProviderBothFail(t *testing.T) {
	primaryErr := errors.New("primary down")
	p := NewFallbackProvider(&stubProvider{err: primaryErr}, &stubProvider{err: errors.New("fallback down")}, "a", "b")

	_, err := p.Chat(context.Background(), nil, "a", nil)
	if !errors.Is(err, primaryErr) {
		t.Errorf("err = %v, want wrapping primary error", err)
	}
}

func TestCreateProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	p, model, err := CreateProvider(cfg)
	if err != nil {
		t.Fatalf("CreateProvider() error: %v", err)
	}
	if _, ok := p.(*ClaudeProvider); !ok {
		t.Errorf("provider = %T, want *ClaudeProvider", p)
	}
	if model != defaultClaudeModel {
		t.Errorf("model = %q, want %q", model, defaultClaudeModel)
	}

	cfg.Provider = config.ProviderOpenAI
	cfg.FallbackProvider = config.ProviderAnthropic
	cfg.Model = "gpt-4o-mini"
	p, model, err = CreateProvider(cfg)
	if err != nil {
		t.Fatalf("CreateProvider() error: %v", err)
	}
	fb, ok := p.(*FallbackProvider)
	if !ok {
		t.Fatalf("provider = %T, want *FallbackProvider", p)
	}
	if model != "gpt-4o-mini" {
		t.Errorf("model = %q, want gpt-4o-mini", model)
	}
	if fb.FallbackModel() != defaultClaudeModel {
		t.Errorf("FallbackModel() = %q, want %q", fb.FallbackModel(), defaultClaudeModel)
	}
	if _, ok := fb.primary.(*OpenAIProvider); !ok {
		t.Errorf("primary = %T, want *OpenAIProvider", fb.primary)
	}
	if _, ok := fb.fallback.(*ClaudeProvider); !ok {
		t.Errorf("fallback = %T, want *ClaudeProvider", fb.fallback)
	}

	cfg.Provider = "gemini"
	if _, _, err := CreateProvider(cfg); err == nil {
		t.Error("expected error for unknown provider")
	}
}
