package chat_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/seeky-chat/seeky/backend/internal/model/chat"
	"github.com/seeky-chat/seeky/backend/internal/service/ai/aitest"
	"github.com/seeky-chat/seeky/backend/internal/service/chat"
)

type scriptedFragments struct {
	fragments []string
	err       error
}

func (s *scriptedFragments) Next() (string, error) {
	if len(s.fragments) > 0 {
		next := s.fragments[0]
		s.fragments = s.fragments[1:]
		return next, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func newPlaceholderStore(t *testing.T) *chat.Store {
	t.Helper()
	store := chat.NewStore()
	require.NoError(t, store.Append(model.Message{ID: "u", Sender: model.SenderUser, Text: "hi"}))
	require.NoError(t, store.Append(model.Message{ID: "r", Sender: model.SenderAI}))
	return store
}

func TestAccumulateConcatenatesFragments(t *testing.T) {
	store := newPlaceholderStore(t)

	var texts []string
	store.Subscribe(func(msgs []model.Message) { texts = append(texts, msgs[1].Text) })

	reply, err := chat.Accumulate(store, "r", &scriptedFragments{fragments: []string{"Hel", "lo!"}})
	require.NoError(t, err)

	assert.Equal(t, "Hello!", reply)
	assert.Equal(t, []string{"Hel", "Hello!"}, texts)
	assert.Equal(t, "hi", store.Messages()[0].Text)
}

func TestAccumulateEmptyStreamLeavesPlaceholderEmpty(t *testing.T) {
	store := newPlaceholderStore(t)

	reply, err := chat.Accumulate(store, "r", &scriptedFragments{})
	require.NoError(t, err)

	assert.Empty(t, reply)
	assert.Empty(t, store.Messages()[1].Text)
}

func TestAccumulateFailureOverwritesPartialText(t *testing.T) {
	store := newPlaceholderStore(t)

	var texts []string
	store.Subscribe(func(msgs []model.Message) { texts = append(texts, msgs[1].Text) })

	reply, err := chat.Accumulate(store, "r", &scriptedFragments{fragments: []string{"He"}, err: aitest.ErrReset})
	require.ErrorIs(t, err, aitest.ErrReset)

	assert.Equal(t, model.ErrorReply, reply)
	assert.Equal(t, []string{"He", model.ErrorReply}, texts)
	assert.Equal(t, model.ErrorReply, store.Messages()[1].Text)
}

func TestAccumulateUnknownTarget(t *testing.T) {
	store := newPlaceholderStore(t)

	_, err := chat.Accumulate(store, "missing", &scriptedFragments{fragments: []string{"x"}})
	assert.ErrorIs(t, err, chat.ErrMessageNotFound)
}
