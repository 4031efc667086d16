package providers

import (
	"context"
	"fmt"

	"github.com/walkabout/scorecard/pkg/logger"
)

// FallbackProvider wraps a primary and fallback LLMProvider.
// If the primary fails, it retries once with the fallback.
type FallbackProvider struct {
	primary       LLMProvider
	fallback      LLMProvider
	primaryModel  string
	fallbackModel string
}

func NewFallbackProvider(primary LLMProvider, fallback LLMProvider, primaryModel, fallbackModel string) *FallbackProvider {
	return &FallbackProvider{
		primary:       primary,
		fallback:      fallback,
		primaryModel:  primaryModel,
		fallbackModel: fallbackModel,
	}
}

func (p *FallbackProvider) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error) {
	resp, err := p.primary.Chat(ctx, messages, model, options)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	logger.WarnCF("fallback", fmt.Sprintf("Primary provider failed (%s), falling back to %s", model, p.fallbackModel), logger.Fields{
		"error": err.Error(),
	})

	fbResp, fbErr := p.fallback.Chat(ctx, messages, p.fallbackModel, options)
	if fbErr != nil {
		return nil, fmt.Errorf("primary failed: %w; fallback also failed: %v", err, fbErr)
	}
	return fbResp, nil
}

func (p *FallbackProvider) GetDefaultModel() string {
	return p.primaryModel
}

// FallbackModel returns the fallback model name.
func (p *FallbackProvider) FallbackModel() string {
	return p.fallbackModel
}
