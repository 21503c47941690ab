// Package aitest provides scripted chat sessions for tests.
package aitest

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/seeky-chat/seeky/backend/internal/service/ai"
)

// ErrReset is the failure injected by Turn.Fail.
var ErrReset = errors.New("connection reset by peer")

// Turn scripts one reply. Fragments are emitted in order, then the stream
// ends with Fail if it is set. OpenErr makes the send fail before any fragment.
type Turn struct {
	Fragments []string
	Fail      error
	OpenErr   error
	// Hold, when non-nil, is waited on before the stream ends.
	Hold <-chan struct{}
}

// Session replays scripted turns and records what it was sent.
type Session struct {
	mu    sync.Mutex
	turns []Turn
	sent  []string
}

// NewSession returns a session that answers with turns in order.
func NewSession(turns ...Turn) *Session {
	return &Session{turns: turns}
}

// Stream implements ai.Session.
func (s *Session) Stream(ctx context.Context, text string) (*schema.StreamReader[*schema.Message], error) {
	s.mu.Lock()
	s.sent = append(s.sent, text)
	var turn Turn
	if len(s.turns) > 0 {
		turn = s.turns[0]
		s.turns = s.turns[1:]
	}
	s.mu.Unlock()

	if turn.OpenErr != nil {
		return nil, turn.OpenErr
	}

	sr, sw := schema.Pipe[*schema.Message](len(turn.Fragments) + 1)
	go func() {
		defer sw.Close()
		for _, fragment := range turn.Fragments {
			if closed := sw.Send(schema.AssistantMessage(fragment, nil), nil); closed {
				return
			}
		}
		if turn.Hold != nil {
			select {
			case <-turn.Hold:
			case <-ctx.Done():
				sw.Send(nil, ctx.Err())
				return
			}
		}
		if turn.Fail != nil {
			sw.Send(nil, turn.Fail)
		}
	}()
	return sr, nil
}

// Sent returns the messages received so far.
func (s *Session) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

// Client hands out prepared sessions, or a fresh empty one when none are left.
type Client struct {
	mu       sync.Mutex
	sessions []*Session
	Err      error
}

// NewClient returns a client that yields sessions in order.
func NewClient(sessions ...*Session) *Client {
	return &Client{sessions: sessions}
}

// NewSession implements ai.Client.
func (c *Client) NewSession(context.Context) (ai.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	if len(c.sessions) == 0 {
		return NewSession(), nil
	}
	s := c.sessions[0]
	c.sessions = c.sessions[1:]
	return s, nil
}
