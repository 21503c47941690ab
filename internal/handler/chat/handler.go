package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/seeky-chat/seeky/backend/internal/model/assistant"
	"github.com/seeky-chat/seeky/backend/internal/model/chat"
	chatservice "github.com/seeky-chat/seeky/backend/internal/service/chat"
	"github.com/seeky-chat/seeky/backend/pkg/utils"
)

// Handler exposes conversation lifecycle and message submission.
type Handler struct {
	chatSvc *chatservice.Service
	onClose func(sessionID string)
	logger  *zap.Logger
}

// New creates the chat handler. onClose, if set, runs after a conversation is
// closed so that dependent resources can be released.
func New(chatSvc *chatservice.Service, onClose func(sessionID string), logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{chatSvc: chatSvc, onClose: onClose, logger: logger}
}

// RegisterRoutes mounts the session routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/session/{sessionID}", func(sr chi.Router) {
		sr.Get("/", h.handleGetSession)
		sr.Delete("/", h.handleCloseSession)
		sr.Post("/messages", h.handleSendMessage)
	})
}

type sessionResponse struct {
	chat.Snapshot
	Assistant assistant.Profile `json:"assistant"`
}

type sendRequest struct {
	Text string `json:"text"`
}

type sendResponse struct {
	Accepted bool `json:"accepted"`
	Busy     bool `json:"busy"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		h.logger.Error("create session failed", zap.Error(err))
		utils.RespondError(w, http.StatusBadGateway, "chat service unavailable")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, sessionResponse{
		Snapshot:  ctrl.Snapshot(),
		Assistant: h.chatSvc.Profile(),
	})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.chatSvc.CloseSession(r.Context(), sessionID); err != nil {
		h.respondLookupError(w, err)
		return
	}
	if h.onClose != nil {
		h.onClose(sessionID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload sendRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accepted := ctrl.Submit(payload.Text)
	utils.RespondJSON(w, http.StatusAccepted, sendResponse{Accepted: accepted, Busy: ctrl.Busy()})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*chatservice.Controller, bool) {
	ctrl, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondLookupError(w, err)
		return nil, false
	}
	return ctrl, true
}

func (h *Handler) respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, chatservice.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	h.logger.Error("session lookup failed", zap.Error(err))
	utils.RespondError(w, http.StatusInternalServerError, "internal error")
}
