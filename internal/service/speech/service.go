package speech

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/seeky-chat/seeky/backend/internal/config"
	speechmodel "github.com/seeky-chat/seeky/backend/internal/model/speech"
)

// chunkSize is 200ms of 16kHz 16-bit mono PCM.
const chunkSize = 6400

// Service hands out speech recognizers for dictation.
type Service struct {
	cfg    config.SpeechConfig
	logger *zap.Logger
	dialer *websocket.Dialer
}

// NewService returns a speech service. It is usable even when credentials are
// missing; Available then reports false.
func NewService(cfg config.SpeechConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		cfg:    cfg,
		logger: logger,
		dialer: &websocket.Dialer{HandshakeTimeout: timeout},
	}
}

// Available reports whether recognition is configured.
func (s *Service) Available() bool {
	return s != nil && s.cfg.Enabled
}

// NewRecognizer prepares a streaming recognizer. format is the audio
// container ("pcm", "wav", "ogg", "mp3"); an empty language uses the default.
func (s *Service) NewRecognizer(sessionID, format, language string) (Recognizer, error) {
	if !s.Available() {
		return nil, ErrNotConfigured
	}
	return newVolcRecognizer(s.cfg, s.dialer, s.logger, sessionID, format, language), nil
}

// Transcribe recognises a complete recording.
func (s *Service) Transcribe(ctx context.Context, sessionID string, audio []byte, format, language string) (*speechmodel.Transcript, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("no audio data to transcribe")
	}

	rec, err := s.NewRecognizer(sessionID, format, language)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := rec.Start(ctx); err != nil {
		return nil, err
	}
	defer rec.Abort()

	for start := 0; start < len(audio); start += chunkSize {
		end := min(start+chunkSize, len(audio))
		if err := rec.Feed(audio[start:end]); err != nil {
			return nil, err
		}
	}
	if err := rec.Stop(); err != nil {
		return nil, err
	}

	for event := range rec.Events() {
		if event.Err != nil {
			return nil, event.Err
		}
		if !event.Final {
			continue
		}
		if event.Text == "" {
			s.logger.Warn("empty transcript", zap.String("session", sessionID))
		}

		transcript := &speechmodel.Transcript{
			SessionID: sessionID,
			Text:      event.Text,
			CreatedAt: time.Now().UTC(),
		}
		if vr, ok := rec.(*volcRecognizer); ok {
			transcript.Duration = vr.duration.Load()
		}
		return transcript, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("recognition ended without a transcript")
}
