package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/seeky-chat/seeky/backend/internal/model/assistant"
	"github.com/seeky-chat/seeky/backend/internal/service/ai/aitest"
	chatService "github.com/seeky-chat/seeky/backend/internal/service/chat"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	chatSvc := chatService.NewService(aitest.NewClient(), assistant.Default(), nil)
	router := NewRouter(Dependencies{
		Chat: chatSvc,
		Static: fstest.MapFS{
			"index.html": {Data: []byte("<!doctype html><title>Seeky</title>")},
			"app.js":     {Data: []byte("console.log('seeky')")},
		},
		Logger: zaptest.NewLogger(t),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestRouterHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRouterServesPage(t *testing.T) {
	srv := newTestServer(t)

	resp, body := get(t, srv.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<title>Seeky</title>")

	resp, body = get(t, srv.URL+"/app.js")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "seeky")
}

func TestRouterSpeechDisabled(t *testing.T) {
	srv := newTestServer(t)

	_, body := get(t, srv.URL+"/api/speech/health")
	assert.JSONEq(t, `{"available":false}`, body)

	resp, _ := get(t, srv.URL+"/api/speech/ws/anything")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestRouterSessionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/session", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"initial-message"`)
}

func TestRouterPreflight(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/session", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
