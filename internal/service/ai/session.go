package ai

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Session is the handle to one remote conversation. It keeps the context the
// service needs across turns and is owned by a single controller.
type Session interface {
	// Stream sends one user message and returns the reply as a stream of partial messages.
	Stream(ctx context.Context, text string) (*schema.StreamReader[*schema.Message], error)
}

// Client creates sessions against a configured provider.
type Client interface {
	NewSession(ctx context.Context) (Session, error)
}

// SendStreaming opens a reply stream for text on session.
func SendStreaming(ctx context.Context, session Session, text string) (*Fragments, error) {
	if session == nil {
		return nil, ErrNoSession
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	stream, err := session.Stream(ctx, text)
	if err != nil {
		return nil, &TransportError{Op: "open", Err: err}
	}
	return &Fragments{stream: stream}, nil
}

// Fragments is a finite, single-use sequence of reply text fragments.
type Fragments struct {
	stream *schema.StreamReader[*schema.Message]
	done   bool
}

// Next returns the next non-empty fragment. It returns io.EOF once the remote side
// has finished, and a *TransportError if the stream broke. After either, every
// call returns io.EOF.
func (f *Fragments) Next() (string, error) {
	if f.done {
		return "", io.EOF
	}

	for {
		chunk, err := f.stream.Recv()
		if errors.Is(err, io.EOF) {
			f.finish()
			return "", io.EOF
		}
		if err != nil {
			f.finish()
			return "", &TransportError{Op: "recv", Err: err}
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		return chunk.Content, nil
	}
}

// Close releases the underlying stream. It is safe to call more than once.
func (f *Fragments) Close() {
	if !f.done {
		f.finish()
	}
}

func (f *Fragments) finish() {
	f.done = true
	f.stream.Close()
}
