package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// GeminiClient creates Gemini chats. The chat object holds the history server-side.
type GeminiClient struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// GeminiOptions carries the optional endpoint override and sampling knobs.
type GeminiOptions struct {
	BaseURL     string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// NewGeminiClient connects to the Gemini API with apiKey.
func NewGeminiClient(ctx context.Context, apiKey, model, systemPrompt string, opts GeminiOptions) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: opts.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	cfg := &genai.GenerateContentConfig{}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if opts.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*opts.Temperature))
	}
	if opts.TopP != nil {
		cfg.TopP = genai.Ptr(float32(*opts.TopP))
	}
	if opts.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*opts.MaxTokens)
	}

	return &GeminiClient{client: client, model: model, config: cfg}, nil
}

// NewSession creates a chat with an empty history.
func (c *GeminiClient) NewSession(ctx context.Context) (Session, error) {
	chat, err := c.client.Chats.Create(ctx, c.model, c.config, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini chat: %w", err)
	}
	return &geminiSession{chat: chat}, nil
}

type geminiSession struct {
	chat *genai.Chat
}

func (s *geminiSession) Stream(ctx context.Context, text string) (*schema.StreamReader[*schema.Message], error) {
	sr, sw := schema.Pipe[*schema.Message](streamBuffer)

	go func() {
		defer sw.Close()
		for resp, err := range s.chat.SendMessageStream(ctx, *genai.NewPartFromText(text)) {
			if err != nil {
				sw.Send(nil, err)
				return
			}
			if resp == nil {
				continue
			}
			if closed := sw.Send(schema.AssistantMessage(resp.Text(), nil), nil); closed {
				return
			}
		}
	}()

	return sr, nil
}
