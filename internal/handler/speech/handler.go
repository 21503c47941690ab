package speech

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	speechmodel "github.com/seeky-chat/seeky/backend/internal/model/speech"
	chatservice "github.com/seeky-chat/seeky/backend/internal/service/chat"
	speechsvc "github.com/seeky-chat/seeky/backend/internal/service/speech"
	"github.com/seeky-chat/seeky/backend/pkg/utils"
)

// maxUploadBytes caps a recorded clip posted for one-shot transcription.
const maxUploadBytes = 32 << 20

// SpeechService is the recognition capability the handler needs.
type SpeechService interface {
	Available() bool
	NewRecognizer(sessionID, format, language string) (speechsvc.Recognizer, error)
	Transcribe(ctx context.Context, sessionID string, audio []byte, format, language string) (*speechmodel.Transcript, error)
}

// SessionLookup resolves the conversation a dictation belongs to.
type SessionLookup interface {
	GetSession(ctx context.Context, id string) (*chatservice.Controller, error)
}

// Handler serves dictation for the chat page.
type Handler struct {
	speechSvc  SpeechService
	sessions   SessionLookup
	dictations *speechsvc.Dictations
	logger     *zap.Logger
	upgrader   websocket.Upgrader
}

// New creates the speech handler. A nil or unconfigured speechSvc makes every
// recognition route answer 501.
func New(speechSvc SpeechService, sessions SessionLookup, dictations *speechsvc.Dictations, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dictations == nil {
		dictations = speechsvc.NewDictations()
	}
	return &Handler{
		speechSvc:  speechSvc,
		sessions:   sessions,
		dictations: dictations,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the speech routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(sr chi.Router) {
		sr.Get("/health", h.handleHealth)
		sr.Post("/transcribe/{sessionID}", h.handleTranscribe)
		sr.Get("/ws/{sessionID}", h.handleWebSocket)
	})
}

func (h *Handler) available() bool {
	return h.speechSvc != nil && h.speechSvc.Available()
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"available": h.available()})
}

func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if !h.available() {
		utils.RespondError(w, http.StatusNotImplemented, "speech recognition not available")
		return
	}

	sessionID, ok := h.resolveSession(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil || len(audio) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "audio file is empty")
		return
	}

	format := r.FormValue("format")
	if format == "" {
		format = inferAudioFormat(header.Filename)
	}

	transcript, err := h.speechSvc.Transcribe(r.Context(), sessionID, audio, format, r.FormValue("language"))
	if err != nil {
		h.logger.Error("transcription failed", zap.String("session", sessionID), zap.Error(err))
		utils.RespondError(w, http.StatusBadGateway, "speech recognition failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, transcript)
}

func (h *Handler) resolveSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	if h.sessions == nil {
		return sessionID, true
	}
	if _, err := h.sessions.GetSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, chatservice.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
		} else {
			utils.RespondError(w, http.StatusInternalServerError, "internal error")
		}
		return "", false
	}
	return sessionID, true
}

// inferAudioFormat maps a file extension to the recogniser's format name.
func inferAudioFormat(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3":
		return "mp3"
	case ".ogg", ".opus":
		return "ogg"
	case ".pcm", ".raw":
		return "pcm"
	default:
		return "wav"
	}
}

// transcriptFrame converts a recognition event into its browser frame.
func transcriptFrame(ev speechsvc.TranscriptEvent) speechmodel.ServerFrame {
	switch {
	case ev.Err != nil:
		return speechmodel.ServerFrame{Type: speechmodel.ServerError, Data: speechmodel.ServerData{Error: "speech recognition failed"}}
	case ev.Final:
		return speechmodel.ServerFrame{Type: speechmodel.ServerFinal, Data: speechmodel.ServerData{Text: ev.Text}}
	default:
		return speechmodel.ServerFrame{Type: speechmodel.ServerInterim, Data: speechmodel.ServerData{Text: ev.Text}}
	}
}
