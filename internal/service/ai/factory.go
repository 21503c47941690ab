package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/seeky-chat/seeky/backend/internal/config"
)

// NewClient builds the client for the configured provider.
func NewClient(ctx context.Context, cfg config.AIConfig, systemPrompt string) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case config.ProviderGemini:
		client, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, systemPrompt, GeminiOptions{
			BaseURL:     cfg.GeminiBaseURL,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ProviderArk:
		chatModel, err := newArkChatModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		client, err := NewEinoClient(ctx, chatModel, systemPrompt)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, systemPrompt, OpenAIOptions{
			BaseURL:     cfg.OpenAIBaseURL,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			MaxTokens:   cfg.MaxTokens,
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

func newArkChatModel(ctx context.Context, c config.AIConfig) (model.BaseChatModel, error) {
	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     c.ArkBaseURL,
		Region:      c.ArkRegion,
		APIKey:      c.ArkAPIKey,
		AccessKey:   c.ArkAccessKey,
		SecretKey:   c.ArkSecretKey,
		Model:       c.ArkModel,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	})
}
