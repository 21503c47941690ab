package ai_test

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seeky-chat/seeky/backend/internal/service/ai"
	"github.com/seeky-chat/seeky/backend/internal/service/ai/aitest"
)

// scriptedModel streams canned replies and records the prompts it received.
type scriptedModel struct {
	mu      sync.Mutex
	replies [][]string
	fail    error
	inputs  [][]*schema.Message
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	return nil, io.ErrUnexpectedEOF
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, input)
	var reply []string
	if len(m.replies) > 0 {
		reply = m.replies[0]
		m.replies = m.replies[1:]
	}
	fail := m.fail
	m.mu.Unlock()

	sr, sw := schema.Pipe[*schema.Message](len(reply) + 1)
	go func() {
		defer sw.Close()
		for _, part := range reply {
			sw.Send(schema.AssistantMessage(part, nil), nil)
		}
		if fail != nil {
			sw.Send(nil, fail)
		}
	}()
	return sr, nil
}

func (m *scriptedModel) lastInput() []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputs[len(m.inputs)-1]
}

type historian interface {
	History() []*schema.Message
}

func TestEinoSessionStreamsAndCommitsHistory(t *testing.T) {
	ctx := context.Background()
	chatModel := &scriptedModel{replies: [][]string{{"Hel", "lo!"}, {"Fine."}}}

	client, err := ai.NewEinoClient(ctx, chatModel, "You are Seeky.")
	require.NoError(t, err)

	session, err := client.NewSession(ctx)
	require.NoError(t, err)

	f, err := ai.SendStreaming(ctx, session, "hi")
	require.NoError(t, err)
	got, err := drain(t, f)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"Hel", "lo!"}, got)

	history := session.(historian).History()
	require.Len(t, history, 2)
	assert.Equal(t, schema.User, history[0].Role)
	assert.Equal(t, "hi", history[0].Content)
	assert.Equal(t, "Hello!", history[1].Content)

	f, err = ai.SendStreaming(ctx, session, "how are you?")
	require.NoError(t, err)
	_, _ = drain(t, f)

	prompt := chatModel.lastInput()
	require.Len(t, prompt, 4)
	assert.Equal(t, schema.System, prompt[0].Role)
	assert.Equal(t, "You are Seeky.", prompt[0].Content)
	assert.Equal(t, "hi", prompt[1].Content)
	assert.Equal(t, "Hello!", prompt[2].Content)
	assert.Equal(t, "how are you?", prompt[3].Content)
}

func TestEinoSessionKeepsHistoryOnFailure(t *testing.T) {
	ctx := context.Background()
	chatModel := &scriptedModel{replies: [][]string{{"He"}}, fail: aitest.ErrReset}

	client, err := ai.NewEinoClient(ctx, chatModel, "")
	require.NoError(t, err)
	session, err := client.NewSession(ctx)
	require.NoError(t, err)

	f, err := ai.SendStreaming(ctx, session, "hi")
	require.NoError(t, err)
	_, err = drain(t, f)

	var te *ai.TransportError
	require.ErrorAs(t, err, &te)
	assert.Empty(t, session.(historian).History())
}

func TestNewEinoClientRequiresModel(t *testing.T) {
	_, err := ai.NewEinoClient(context.Background(), nil, "")
	assert.Error(t, err)
}
