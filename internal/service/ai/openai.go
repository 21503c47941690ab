package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	system      string
	temperature float32
	topP        float32
	maxTokens   int
}

// OpenAIOptions carries the optional sampling knobs.
type OpenAIOptions struct {
	BaseURL     string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// NewOpenAIClient builds a client for model.
func NewOpenAIClient(apiKey, model, systemPrompt string, opts OpenAIOptions) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		config.BaseURL = opts.BaseURL
	}

	c := &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
		system: systemPrompt,
	}
	if opts.Temperature != nil {
		c.temperature = float32(*opts.Temperature)
	}
	if opts.TopP != nil {
		c.topP = float32(*opts.TopP)
	}
	if opts.MaxTokens != nil {
		c.maxTokens = *opts.MaxTokens
	}
	return c
}

// NewSession starts an empty conversation.
func (c *OpenAIClient) NewSession(_ context.Context) (Session, error) {
	return &openAISession{owner: c}, nil
}

type openAISession struct {
	owner *OpenAIClient

	mu      sync.Mutex
	history []openai.ChatCompletionMessage
}

func (s *openAISession) Stream(ctx context.Context, text string) (*schema.StreamReader[*schema.Message], error) {
	c := s.owner

	messages := make([]openai.ChatCompletionMessage, 0, 2+len(s.history))
	if c.system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: c.system})
	}
	s.mu.Lock()
	messages = append(messages, s.history...)
	s.mu.Unlock()
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text})

	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		TopP:        c.topP,
		MaxTokens:   c.maxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion stream: %w", err)
	}

	sr, sw := schema.Pipe[*schema.Message](streamBuffer)
	go func() {
		defer sw.Close()
		defer stream.Close()

		var reply []byte
		for {
			resp, recvErr := stream.Recv()
			if errors.Is(recvErr, io.EOF) {
				break
			}
			if recvErr != nil {
				sw.Send(nil, recvErr)
				return
			}

			for _, choice := range resp.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				reply = append(reply, choice.Delta.Content...)
				if closed := sw.Send(schema.AssistantMessage(choice.Delta.Content, nil), nil); closed {
					return
				}
			}
		}

		s.mu.Lock()
		s.history = append(s.history,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: string(reply)},
		)
		s.mu.Unlock()
	}()

	return sr, nil
}
