package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/seeky-chat/seeky/backend/internal/config"
	"github.com/seeky-chat/seeky/backend/internal/handler"
	"github.com/seeky-chat/seeky/backend/internal/logging"
	"github.com/seeky-chat/seeky/backend/internal/model/assistant"
	"github.com/seeky-chat/seeky/backend/internal/service/ai"
	"github.com/seeky-chat/seeky/backend/internal/service/chat"
	"github.com/seeky-chat/seeky/backend/internal/service/speech"
	"github.com/seeky-chat/seeky/backend/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Debug("no .env file loaded, using process environment", zap.Error(envErr))
	}

	profile := assistant.Default()
	client, err := ai.NewClient(ctx, cfg.AI, profile.SystemPrompt())
	if err != nil {
		logger.Fatal("failed to initialize chat client", zap.String("provider", cfg.AI.Provider), zap.Error(err))
	}
	logger.Info("chat client initialized", zap.String("provider", cfg.AI.Provider))

	chatService := chat.NewService(client, profile, logger.Named("chat"))

	var speechService *speech.Service
	if cfg.Speech.Enabled {
		speechService = speech.NewService(cfg.Speech, logger.Named("speech"))
		logger.Info("speech input enabled", zap.String("language", cfg.Speech.Language))
	} else {
		logger.Info("speech credentials not configured, dictation disabled")
	}
	dictations := speech.NewDictations()

	router := handler.NewRouter(handler.Dependencies{
		Chat:       chatService,
		Speech:     speechService,
		Dictations: dictations,
		Static:     web.Static(),
		Logger:     logger.Named("http"),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("Seeky listening", zap.String("addr", cfg.Server.Addr))
	if err := runServer(ctx, srv, func(shutdownCtx context.Context) {
		dictations.CloseAll()
		if err := chatService.Shutdown(shutdownCtx); err != nil {
			logger.Warn("in-flight replies did not finish", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}

// runServer serves until ctx is cancelled, then shuts down and runs cleanup
// with the same deadline.
func runServer(ctx context.Context, srv *http.Server, cleanup func(context.Context)) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		cleanup(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
