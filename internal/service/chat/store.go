package chat

import (
	"errors"
	"sync"

	"github.com/seeky-chat/seeky/backend/internal/model/chat"
)

var (
	ErrMissingID       = errors.New("message id is required")
	ErrInvalidSender   = errors.New("message sender is invalid")
	ErrDuplicateID     = errors.New("message id already exists")
	ErrMessageNotFound = errors.New("message not found")
)

// Store is the ordered transcript of one conversation. Entries are only ever
// appended or have their text replaced; nothing is removed.
type Store struct {
	mu       sync.Mutex
	messages []chat.Message
	index    map[string]int

	subscriber func([]chat.Message)
	subSeq     uint64
}

// NewStore returns an empty transcript.
func NewStore() *Store {
	return &Store{
		messages: make([]chat.Message, 0, 16),
		index:    make(map[string]int),
	}
}

// Append adds msg at the end.
func (s *Store) Append(msg chat.Message) error {
	if msg.ID == "" {
		return ErrMissingID
	}
	if !msg.Sender.Valid() {
		return ErrInvalidSender
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[msg.ID]; exists {
		return ErrDuplicateID
	}

	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg)
	s.notifyLocked()
	return nil
}

// UpdateByID replaces the text of the entry with id.
func (s *Store) UpdateByID(id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return ErrMessageNotFound
	}

	s.messages[pos].Text = text
	s.notifyLocked()
	return nil
}

// Messages returns a copy of the transcript in display order.
func (s *Store) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Subscribe registers fn as the single change listener, replacing any previous
// one. fn runs synchronously after every mutation, in mutation order, and must
// not call back into the store.
func (s *Store) Subscribe(fn func([]chat.Message)) (cancel func()) {
	s.mu.Lock()
	s.subSeq++
	seq := s.subSeq
	s.subscriber = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.subSeq == seq {
			s.subscriber = nil
		}
	}
}

// view runs fn with a snapshot while holding the lock, so that fn is ordered
// with respect to change notifications.
func (s *Store) view(fn func([]chat.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.snapshotLocked())
}

func (s *Store) notifyLocked() {
	if s.subscriber != nil {
		s.subscriber(s.snapshotLocked())
	}
}

func (s *Store) snapshotLocked() []chat.Message {
	copied := make([]chat.Message, len(s.messages))
	copy(copied, s.messages)
	return copied
}
