package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

const streamBuffer = 8

// EinoClient runs conversations through an eino chain: system prompt, history, query, model.
type EinoClient struct {
	chain  compose.Runnable[map[string]any, *schema.Message]
	system string
}

// NewEinoClient compiles the prompt chain around chatModel.
func NewEinoClient(ctx context.Context, chatModel model.BaseChatModel, systemPrompt string) (*EinoClient, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &EinoClient{chain: runnable, system: systemPrompt}, nil
}

// NewSession starts an empty conversation.
func (c *EinoClient) NewSession(_ context.Context) (Session, error) {
	return &einoSession{chain: c.chain, system: c.system}, nil
}

// einoSession keeps the turn history locally; the model itself is stateless.
type einoSession struct {
	chain  compose.Runnable[map[string]any, *schema.Message]
	system string

	mu      sync.Mutex
	history []*schema.Message
}

func (s *einoSession) Stream(ctx context.Context, text string) (*schema.StreamReader[*schema.Message], error) {
	input := map[string]any{
		"system":  s.system,
		"history": s.History(),
		"query":   text,
	}

	upstream, err := s.chain.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to stream chat chain output: %w", err)
	}

	sr, sw := schema.Pipe[*schema.Message](streamBuffer)
	go func() {
		defer sw.Close()
		defer upstream.Close()

		chunks := make([]*schema.Message, 0, streamBuffer)
		for {
			chunk, recvErr := upstream.Recv()
			if errors.Is(recvErr, io.EOF) {
				break
			}
			if recvErr != nil {
				sw.Send(nil, recvErr)
				return
			}
			if chunk == nil {
				continue
			}

			chunks = append(chunks, chunk)
			if closed := sw.Send(chunk, nil); closed {
				return
			}
		}

		reply := ""
		if len(chunks) > 0 {
			merged, concatErr := schema.ConcatMessages(chunks)
			if concatErr != nil {
				sw.Send(nil, concatErr)
				return
			}
			reply = merged.Content
		}
		s.commit(text, reply)
	}()

	return sr, nil
}

// History returns a copy of the committed turns.
func (s *einoSession) History() []*schema.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*schema.Message(nil), s.history...)
}

func (s *einoSession) commit(user, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, schema.UserMessage(user), schema.AssistantMessage(reply, nil))
}
