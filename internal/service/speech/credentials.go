package speech

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/seeky-chat/seeky/backend/internal/config"
)

// ErrNotConfigured is returned when speech credentials are missing.
var ErrNotConfigured = errors.New("speech recognition is not configured")

// authHeader builds the handshake headers for one recognition connection.
func authHeader(cfg config.SpeechConfig) (http.Header, error) {
	appID := strings.TrimSpace(cfg.AppID)
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		token = strings.TrimSpace(cfg.APIKey)
	}
	if appID == "" || token == "" {
		return nil, ErrNotConfigured
	}

	resourceID := cfg.ResourceID
	if resourceID == "" {
		resourceID = "volc.bigasr.sauc.duration"
	}

	header := http.Header{}
	header.Set("X-Api-App-Key", appID)
	header.Set("X-Api-Access-Key", token)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", uuid.NewString())
	return header, nil
}
