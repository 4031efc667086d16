package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	openaioption "github.com/openai/openai-go/v3/option"
)

const defaultOpenAIModel = "gpt-4o"

// OpenAIProvider talks to the Chat Completions API, or any server that
// implements it. Images travel as base64 data URLs.
type OpenAIProvider struct {
	client *openai.Client
}

func NewOpenAIProvider(apiKey, baseURL string, extra ...openaioption.RequestOption) *OpenAIProvider {
	var opts []openaioption.RequestOption
	if apiKey != "" {
		opts = append(opts, openaioption.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, openaioption.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)
	client := openai.NewClient(opts...)
	return &OpenAIProvider{client: &client}
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error) {
	params := buildOpenAIParams(messages, model, options)

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai API call: response has no choices")
	}

	var content strings.Builder
	for _, choice := range resp.Choices {
		content.WriteString(choice.Message.Content)
	}

	return &LLMResponse{
		Content:      content.String(),
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: &UsageInfo{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func (p *OpenAIProvider) GetDefaultModel() string {
	return defaultOpenAIModel
}

func buildOpenAIParams(messages []Message, model string, options map[string]interface{}) openai.ChatCompletionNewParams {
	var out []openai.ChatCompletionMessageParamUnion
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			out = append(out, openai.SystemMessage(msg.Content))
		case "user":
			if len(msg.Images) == 0 {
				out = append(out, openai.UserMessage(msg.Content))
				continue
			}
			var parts []openai.ChatCompletionContentPartUnionParam
			if msg.Content != "" {
				parts = append(parts, openai.TextContentPart(msg.Content))
			}
			for _, img := range msg.Images {
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: img.DataURL(),
				}))
			}
			out = append(out, openai.UserMessage(parts))
		case "assistant":
			out = append(out, openai.AssistantMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(model),
		Messages:            out,
		MaxCompletionTokens: openai.Int(maxTokensOption(options, 4096)),
	}
	if temp, ok := options["temperature"].(float64); ok {
		params.Temperature = openai.Float(temp)
	}
	return params
}
