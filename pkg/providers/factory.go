package providers

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/v3/option"

	"github.com/walkabout/scorecard/pkg/config"
)

// CreateProvider builds the provider described by cfg and returns it together
// with the model to request. A fallback is wrapped around the primary only
// when cfg names one.
func CreateProvider(cfg *config.Config) (LLMProvider, string, error) {
	primary, err := newProvider(cfg, cfg.Provider)
	if err != nil {
		return nil, "", err
	}
	model := cfg.Model
	if model == "" {
		model = primary.GetDefaultModel()
	}

	if cfg.FallbackProvider == "" {
		return primary, model, nil
	}

	fallback, err := newProvider(cfg, cfg.FallbackProvider)
	if err != nil {
		return nil, "", err
	}
	fallbackModel := cfg.FallbackModel
	if fallbackModel == "" {
		fallbackModel = fallback.GetDefaultModel()
	}
	return NewFallbackProvider(primary, fallback, model, fallbackModel), model, nil
}

func newProvider(cfg *config.Config, name string) (LLMProvider, error) {
	cred := cfg.Credentials(name)
	switch name {
	case config.ProviderAnthropic:
		var extra []option.RequestOption
		if cfg.Timeout > 0 {
			extra = append(extra, option.WithRequestTimeout(cfg.Timeout))
		}
		return NewClaudeProvider(cred.APIKey, cred.BaseURL, extra...), nil
	case config.ProviderOpenAI:
		var extra []openaioption.RequestOption
		if cfg.Timeout > 0 {
			extra = append(extra, openaioption.WithRequestTimeout(cfg.Timeout))
		}
		return NewOpenAIProvider(cred.APIKey, cred.BaseURL, extra...), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
