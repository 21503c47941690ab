package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seeky-chat/seeky/backend/internal/model/assistant"
	"github.com/seeky-chat/seeky/backend/internal/service/ai"
)

var ErrSessionNotFound = errors.New("session not found")

// Service tracks one controller per open page.
type Service struct {
	client  ai.Client
	profile assistant.Profile
	logger  *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Controller
}

// NewService wires the registry to a chat client.
func NewService(client ai.Client, profile assistant.Profile, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:   client,
		profile:  profile,
		logger:   logger,
		sessions: make(map[string]*Controller),
	}
}

// Profile returns the assistant identity shown to new conversations.
func (s *Service) Profile() assistant.Profile {
	return s.profile
}

// CreateSession opens an upstream chat session and mounts a controller for it.
func (s *Service) CreateSession(ctx context.Context) (*Controller, error) {
	session, err := s.client.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("create chat session: %w", err)
	}

	id := uuid.NewString()
	ctrl := NewController(id, session, s.profile, WithLogger(s.logger.With(zap.String("session", id))))

	s.mu.Lock()
	s.sessions[id] = ctrl
	s.mu.Unlock()

	s.logger.Info("session created", zap.String("session", id))
	return ctrl, nil
}

// GetSession looks up an open conversation.
func (s *Service) GetSession(_ context.Context, id string) (*Controller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctrl, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ctrl, nil
}

// CloseSession forgets a conversation once its in-flight turn has finished.
func (s *Service) CloseSession(_ context.Context, id string) error {
	s.mu.Lock()
	ctrl, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	ctrl.Close()
	ctrl.Wait()
	s.logger.Info("session closed", zap.String("session", id))
	return nil
}

// Len returns the number of open conversations.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Shutdown waits for every in-flight turn and drops all conversations.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ctrls := make([]*Controller, 0, len(s.sessions))
	for id, ctrl := range s.sessions {
		ctrl.Close()
		ctrls = append(ctrls, ctrl)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	var g errgroup.Group
	for _, ctrl := range ctrls {
		g.Go(func() error {
			ctrl.Wait()
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
