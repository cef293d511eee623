package advisor

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/dyike/MarketPulse/config"
	"github.com/dyike/MarketPulse/consts"
)

// ModelFactory builds a chat model for one request with the current key.
type ModelFactory func(ctx context.Context, apiKey string) (model.BaseChatModel, error)

// NewModelFactory returns the factory for cfg's provider. Settings are copied,
// so later edits to cfg do not leak into an existing factory.
func NewModelFactory(cfg *config.Config) (ModelFactory, error) {
	provider := cfg.LLMProvider
	modelName := cfg.Model
	baseURL := cfg.BackendURL
	maxTokens := cfg.MaxTokens
	timeout := cfg.AnalysisTimeoutDuration()

	switch provider {
	case consts.ProviderGemini:
		return func(ctx context.Context, apiKey string) (model.BaseChatModel, error) {
			cm, err := NewGeminiChatModel(ctx, &GeminiConfig{
				APIKey:         apiKey,
				Model:          modelName,
				BaseURL:        baseURL,
				Timeout:        timeout,
				MaxTokens:      maxTokens,
				ResponseSchema: ResponseSchema(),
			})
			if err != nil {
				return nil, err
			}
			return cm, nil
		}, nil

	case consts.ProviderOpenAI:
		if baseURL == "" {
			baseURL = consts.DefaultOpenAIURL
		}
		return func(ctx context.Context, apiKey string) (model.BaseChatModel, error) {
			conf := &openai.ChatModelConfig{
				BaseURL: baseURL,
				APIKey:  apiKey,
				Model:   modelName,
				Timeout: timeout,
			}
			if maxTokens > 0 {
				tokens := maxTokens
				conf.MaxTokens = &tokens
			}
			cm, err := openai.NewChatModel(ctx, conf)
			if err != nil {
				return nil, err
			}
			return cm, nil
		}, nil

	case consts.ProviderDeepSeek:
		if baseURL == "" {
			baseURL = consts.DefaultDeepSeekURL
		}
		return func(ctx context.Context, apiKey string) (model.BaseChatModel, error) {
			cm, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
				BaseURL:   baseURL,
				APIKey:    apiKey,
				Model:     modelName,
				MaxTokens: maxTokens,
				Timeout:   timeout,
			})
			if err != nil {
				return nil, err
			}
			return cm, nil
		}, nil
	}

	return nil, fmt.Errorf("unsupported llm provider %q", provider)
}
