package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seeky-chat/seeky/backend/internal/config"
	"github.com/seeky-chat/seeky/backend/internal/logging"
	"github.com/seeky-chat/seeky/backend/internal/service/speech"
)

var (
	audioPath string
	format    string
	language  string
	sessionID string
	timeout   time.Duration
	stream    bool
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:          "speechtester",
	Short:        "Check the speech-to-text upstream with a local recording",
	Long:         `Send an audio file to the configured recognizer and print the transcript. Credentials come from the same SPEECH_* variables the server reads.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&audioPath, "audio", "a", "", "path to the audio file (pcm, wav, ogg, mp3)")
	rootCmd.Flags().StringVarP(&format, "format", "f", "", "audio format; inferred from the file extension when empty")
	rootCmd.Flags().StringVarP(&language, "lang", "l", "", "recognition language, e.g. en-US")
	rootCmd.Flags().StringVar(&sessionID, "session", "", "session id sent upstream; random when empty")
	rootCmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall deadline")
	rootCmd.Flags().BoolVar(&stream, "stream", false, "print interim results as they arrive")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
	_ = rootCmd.MarkFlagRequired("audio")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	logger, err := logging.New(config.LogConfig{Level: logLevel, Format: "console"})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadSpeech()
	if err != nil {
		return err
	}
	if !cfg.Enabled {
		return fmt.Errorf("speech is not configured: set SPEECH_APP_ID and SPEECH_ACCESS_TOKEN")
	}

	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	if format == "" {
		format = formatFromPath(audioPath)
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	svc := speech.NewService(cfg, logger)
	logger.Info("transcribing",
		zap.String("file", audioPath),
		zap.String("format", format),
		zap.Int("bytes", len(audio)))

	started := time.Now()
	if stream {
		text, err := streamFile(ctx, cmd, svc, audio)
		if err != nil {
			return err
		}
		logger.Info("done", zap.Duration("elapsed", time.Since(started)))
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	}

	transcript, err := svc.Transcribe(ctx, sessionID, audio, format, language)
	if err != nil {
		return err
	}
	logger.Info("done",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int64("audio_ms", transcript.Duration))
	fmt.Fprintln(cmd.OutOrStdout(), transcript.Text)
	return nil
}

// streamFile drives a recognizer by hand so interim text is visible.
func streamFile(ctx context.Context, cmd *cobra.Command, svc *speech.Service, audio []byte) (string, error) {
	rec, err := svc.NewRecognizer(sessionID, format, language)
	if err != nil {
		return "", err
	}
	defer rec.Abort()

	if err := rec.Start(ctx); err != nil {
		return "", err
	}

	const chunk = 6400
	for off := 0; off < len(audio); off += chunk {
		end := min(off+chunk, len(audio))
		if err := rec.Feed(audio[off:end]); err != nil {
			return "", err
		}
	}
	if err := rec.Stop(); err != nil {
		return "", err
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case ev, ok := <-rec.Events():
			if !ok {
				return "", fmt.Errorf("recognizer closed without a final result")
			}
			if ev.Err != nil {
				return "", ev.Err
			}
			if ev.Final {
				return ev.Text, nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "... %s\n", ev.Text)
		}
	}
}

func formatFromPath(path string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "wav":
		return "wav"
	case "ogg", "opus":
		return "ogg"
	case "mp3":
		return "mp3"
	default:
		return "pcm"
	}
}
