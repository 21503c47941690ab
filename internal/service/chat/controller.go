package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seeky-chat/seeky/backend/internal/model/assistant"
	"github.com/seeky-chat/seeky/backend/internal/model/chat"
	"github.com/seeky-chat/seeky/backend/internal/service/ai"
)

// Controller owns one conversation: its transcript, its input gate and the
// upstream chat session.
type Controller struct {
	id      string
	session ai.Session
	store   *Store
	gate    Gate
	logger  *zap.Logger
	newID   func() string

	lifeMu sync.Mutex
	closed bool
	turns  sync.WaitGroup

	subMu  sync.Mutex
	sub    func(chat.Snapshot)
	subSeq uint64
}

// Option customises a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for turn diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithIDGenerator overrides how entry ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// NewController mounts a conversation seeded with the profile greeting.
func NewController(id string, session ai.Session, profile assistant.Profile, opts ...Option) *Controller {
	c := &Controller{
		id:      id,
		session: session,
		store:   NewStore(),
		logger:  zap.NewNop(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.store.Subscribe(c.publish)

	greeting := profile.Greeting
	if greeting == "" {
		greeting = assistant.Default().Greeting
	}
	_ = c.store.Append(chat.Message{ID: chat.GreetingID, Sender: chat.SenderAI, Text: greeting})

	return c
}

// ID returns the conversation identifier.
func (c *Controller) ID() string {
	return c.id
}

// Send runs one turn to completion. It reports false when the text is blank,
// the session is missing, another turn is in flight or the conversation is
// closed.
func (c *Controller) Send(ctx context.Context, text string) bool {
	placeholderID, ok := c.admit(text)
	if !ok {
		return false
	}
	defer c.turns.Done()
	c.run(ctx, text, placeholderID)
	return true
}

// Submit admits a turn and streams the reply in the background. When it
// returns true the user entry and the empty reply are already visible.
func (c *Controller) Submit(text string) bool {
	placeholderID, ok := c.admit(text)
	if !ok {
		return false
	}

	go func() {
		defer c.turns.Done()
		c.run(context.Background(), text, placeholderID)
	}()
	return true
}

// Wait blocks until in-flight turns have finished.
func (c *Controller) Wait() {
	c.turns.Wait()
}

// Close stops the conversation from admitting new turns. Turns already
// admitted keep running; call Wait to block on them.
func (c *Controller) Close() {
	c.lifeMu.Lock()
	c.closed = true
	c.lifeMu.Unlock()
}


// Snapshot returns the current transcript and gate state.
func (c *Controller) Snapshot() chat.Snapshot {
	return chat.Snapshot{
		SessionID: c.id,
		Messages:  c.store.Messages(),
		Busy:      c.gate.Busy(),
	}
}

// Busy reports whether a turn is in flight.
func (c *Controller) Busy() bool {
	return c.gate.Busy()
}

// Subscribe registers fn as the single listener for transcript and gate
// changes, replacing any previous one. fn receives snapshots in change order
// and must not call back into the controller.
func (c *Controller) Subscribe(fn func(chat.Snapshot)) (cancel func()) {
	c.subMu.Lock()
	c.subSeq++
	seq := c.subSeq
	c.sub = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if c.subSeq == seq {
			c.sub = nil
		}
	}
}

// admit registers a turn with the wait group while holding lifeMu, so Close
// followed by Wait never races a late Add.
func (c *Controller) admit(text string) (string, bool) {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if c.closed {
		c.logger.Debug("send ignored on closed conversation", zap.String("session", c.id))
		return "", false
	}
	placeholderID, ok := c.begin(text)
	if !ok {
		return "", false
	}
	c.turns.Add(1)
	return placeholderID, true
}

func (c *Controller) begin(text string) (string, bool) {
	if strings.TrimSpace(text) == "" || c.session == nil {
		return "", false
	}
	if !c.gate.TryAcquire() {
		c.logger.Debug("send ignored while a reply is streaming", zap.String("session", c.id))
		return "", false
	}
	c.store.view(c.publish)

	userID, placeholderID := c.newID(), c.newID()
	if err := c.store.Append(chat.Message{ID: userID, Sender: chat.SenderUser, Text: text}); err != nil {
		c.logger.Error("append user message", zap.String("session", c.id), zap.Error(err))
		c.release()
		return "", false
	}
	if err := c.store.Append(chat.Message{ID: placeholderID, Sender: chat.SenderAI}); err != nil {
		c.logger.Error("append reply placeholder", zap.String("session", c.id), zap.Error(err))
		c.release()
		return "", false
	}

	return placeholderID, true
}

func (c *Controller) run(ctx context.Context, text, placeholderID string) {
	defer c.release()

	fragments, err := ai.SendStreaming(ctx, c.session, text)
	if err != nil {
		c.logger.Error("error sending message", zap.String("session", c.id), zap.Error(err))
		if updateErr := c.store.UpdateByID(placeholderID, chat.ErrorReply); updateErr != nil {
			c.logger.Error("mark reply failed", zap.String("session", c.id), zap.Error(updateErr))
		}
		return
	}
	defer fragments.Close()

	reply, err := Accumulate(c.store, placeholderID, fragments)
	if err != nil {
		c.logger.Error("error sending message", zap.String("session", c.id), zap.Error(err))
		return
	}

	c.logger.Debug("reply completed",
		zap.String("session", c.id),
		zap.String("message", placeholderID),
		zap.Int("length", len(reply)),
	)
}

func (c *Controller) release() {
	c.gate.Release()
	c.store.view(c.publish)
}

// publish runs under the store lock, which orders snapshots with mutations.
func (c *Controller) publish(messages []chat.Message) {
	c.subMu.Lock()
	fn := c.sub
	c.subMu.Unlock()

	if fn == nil {
		return
	}
	fn(chat.Snapshot{SessionID: c.id, Messages: messages, Busy: c.gate.Busy()})
}
