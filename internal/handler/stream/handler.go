package stream

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/seeky-chat/seeky/backend/internal/model/chat"
	chatservice "github.com/seeky-chat/seeky/backend/internal/service/chat"
	"github.com/seeky-chat/seeky/backend/pkg/utils"
)

// SSE event names.
const (
	EventSnapshot  = "snapshot"
	EventHeartbeat = "heartbeat"
)

const defaultHeartbeat = 15 * time.Second

// Handler pushes conversation snapshots to the page over Server-Sent Events.
type Handler struct {
	chatSvc   *chatservice.Service
	logger    *zap.Logger
	heartbeat time.Duration
}

// New creates the snapshot feed handler.
func New(chatSvc *chatservice.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{chatSvc: chatSvc, logger: logger, heartbeat: defaultHeartbeat}
}

// RegisterRoutes mounts the feed on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/session/{sessionID}/events", h.handleEvents)
}

type heartbeat struct {
	Time string `json:"time"`
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ctrl, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, chatservice.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	updates := make(chan chat.Snapshot, 1)
	cancel := ctrl.Subscribe(func(s chat.Snapshot) { offerLatest(updates, s) })
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	logger := h.logger.With(zap.String("session", sessionID))
	logger.Debug("snapshot feed opened")
	defer logger.Debug("snapshot feed closed")

	if err := utils.SendSSEEvent(w, flusher, EventSnapshot, ctrl.Snapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap := <-updates:
			if err := utils.SendSSEEvent(w, flusher, EventSnapshot, snap); err != nil {
				logger.Debug("snapshot write failed", zap.Error(err))
				return
			}
		case t := <-ticker.C:
			if err := utils.SendSSEEvent(w, flusher, EventHeartbeat, heartbeat{Time: t.UTC().Format(time.RFC3339)}); err != nil {
				return
			}
		}
	}
}

// offerLatest replaces any undelivered snapshot with s. Only the latest
// snapshot matters to the page, so the producer never blocks.
func offerLatest(ch chan chat.Snapshot, s chat.Snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
