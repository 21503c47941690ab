package ai_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seeky-chat/seeky/backend/internal/service/ai"
)

type completionRequest struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newCompletionServer(t *testing.T, replies ...[]string) (*httptest.Server, *[]completionRequest) {
	t.Helper()
	var seen []completionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req completionRequest
		require.NoError(t, sonic.Unmarshal(body, &req))
		seen = append(seen, req)

		reply := replies[0]
		replies = replies[1:]

		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range reply {
			content, _ := sonic.MarshalString(part)
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%s}}]}\n\n", content)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestOpenAISessionStreamsDeltas(t *testing.T) {
	srv, seen := newCompletionServer(t, []string{"Hel", "lo!"}, []string{"ok"})
	client := ai.NewOpenAIClient("test-key", "gpt-test", "You are Seeky.", ai.OpenAIOptions{BaseURL: srv.URL + "/v1"})

	ctx := context.Background()
	session, err := client.NewSession(ctx)
	require.NoError(t, err)

	f, err := ai.SendStreaming(ctx, session, "hi")
	require.NoError(t, err)
	got, err := drain(t, f)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "Hello!", strings.Join(got, ""))

	f, err = ai.SendStreaming(ctx, session, "again")
	require.NoError(t, err)
	_, _ = drain(t, f)

	require.Len(t, *seen, 2)
	second := (*seen)[1]
	assert.True(t, second.Stream)
	assert.Equal(t, "gpt-test", second.Model)
	require.Len(t, second.Messages, 4)
	assert.Equal(t, "system", second.Messages[0].Role)
	assert.Equal(t, "hi", second.Messages[1].Content)
	assert.Equal(t, "Hello!", second.Messages[2].Content)
	assert.Equal(t, "again", second.Messages[3].Content)
}

func TestOpenAISessionOpenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := ai.NewOpenAIClient("k", "m", "", ai.OpenAIOptions{BaseURL: srv.URL + "/v1"})
	session, err := client.NewSession(context.Background())
	require.NoError(t, err)

	_, err = ai.SendStreaming(context.Background(), session, "hi")

	var te *ai.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "open", te.Op)
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	_, err := ai.NewGeminiClient(context.Background(), "", "", "", ai.GeminiOptions{})
	assert.Error(t, err)
}
