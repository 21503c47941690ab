package handler

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/seeky-chat/seeky/backend/internal/handler/chat"
	"github.com/seeky-chat/seeky/backend/internal/handler/speech"
	"github.com/seeky-chat/seeky/backend/internal/handler/stream"
	middlewarePkg "github.com/seeky-chat/seeky/backend/internal/middleware"
	chatService "github.com/seeky-chat/seeky/backend/internal/service/chat"
	speechService "github.com/seeky-chat/seeky/backend/internal/service/speech"
	"github.com/seeky-chat/seeky/backend/pkg/utils"
)

// Dependencies are the services the HTTP layer is wired to.
type Dependencies struct {
	Chat       *chatService.Service
	Speech     *speechService.Service // nil when speech input is disabled
	Dictations *speechService.Dictations
	Static     fs.FS // page assets served at /
	Logger     *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dictations := deps.Dictations
	if dictations == nil {
		dictations = speechService.NewDictations()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	var speechSvc speech.SpeechService
	if deps.Speech != nil {
		speechSvc = deps.Speech
	}

	chatHandler := chat.New(deps.Chat, dictations.Abort, logger)
	streamHandler := stream.New(deps.Chat, logger)
	speechHandler := speech.New(speechSvc, deps.Chat, dictations, logger)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		speechHandler.RegisterRoutes(api)
	})

	if deps.Static != nil {
		r.Handle("/*", http.FileServer(http.FS(deps.Static)))
	}

	return r
}
