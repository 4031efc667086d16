package providers

import (
	"context"

	"github.com/walkabout/scorecard/pkg/media"
)

// Message is a provider-neutral chat message. Images are only honoured on
// user messages.
type Message struct {
	Role    string
	Content string
	Images  []*media.ImageUnit
}

type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type LLMResponse struct {
	Content      string     `json:"content"`
	Model        string     `json:"model"`
	FinishReason string     `json:"finish_reason"`
	Usage        *UsageInfo `json:"usage,omitempty"`
}

// LLMProvider is a multimodal completion API.
type LLMProvider interface {
	Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error)
	GetDefaultModel() string
}

func maxTokensOption(options map[string]interface{}, fallback int64) int64 {
	var n int64
	switch v := options["max_tokens"].(type) {
	case int:
		n = int64(v)
	case int64:
		n = v
	}
	if n <= 0 {
		return fallback
	}
	return n
}
