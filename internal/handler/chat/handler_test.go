package chat

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/seeky-chat/seeky/backend/internal/model/assistant"
	"github.com/seeky-chat/seeky/backend/internal/model/chat"
	"github.com/seeky-chat/seeky/backend/internal/service/ai/aitest"
	chatservice "github.com/seeky-chat/seeky/backend/internal/service/chat"
)

func setupRouter(t *testing.T, client *aitest.Client) (*chi.Mux, *chatservice.Service, *[]string) {
	t.Helper()
	chatSvc := chatservice.NewService(client, assistant.Default(), zaptest.NewLogger(t))

	var closed []string
	handler := New(chatSvc, func(id string) { closed = append(closed, id) }, zaptest.NewLogger(t))

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatSvc, &closed
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func createSession(t *testing.T, r http.Handler) sessionResponse {
	t.Helper()
	rr := do(t, r, http.MethodPost, "/session", "")
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp sessionResponse
	require.NoError(t, sonic.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestCreateSessionReturnsGreeting(t *testing.T) {
	r, _, _ := setupRouter(t, aitest.NewClient())

	resp := createSession(t, r)

	assert.NotEmpty(t, resp.SessionID)
	assert.False(t, resp.Busy)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, chat.GreetingID, resp.Messages[0].ID)
	assert.Equal(t, chat.SenderAI, resp.Messages[0].Sender)
	assert.Equal(t, "Seeky", resp.Assistant.Name)
}

func TestCreateSessionUpstreamFailure(t *testing.T) {
	client := aitest.NewClient()
	client.Err = errors.New("invalid api key")
	r, _, _ := setupRouter(t, client)

	rr := do(t, r, http.MethodPost, "/session", "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestSendMessageStreamsIntoSnapshot(t *testing.T) {
	r, chatSvc, _ := setupRouter(t, aitest.NewClient(
		aitest.NewSession(aitest.Turn{Fragments: []string{"Hel", "lo!"}}),
	))
	created := createSession(t, r)

	rr := do(t, r, http.MethodPost, "/session/"+created.SessionID+"/messages", `{"text":"hi"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.JSONEq(t, `{"accepted":true,"busy":true}`, rr.Body.String())

	ctrl, err := chatSvc.GetSession(t.Context(), created.SessionID)
	require.NoError(t, err)
	ctrl.Wait()

	rr = do(t, r, http.MethodGet, "/session/"+created.SessionID, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var snap chat.Snapshot
	require.NoError(t, sonic.Unmarshal(rr.Body.Bytes(), &snap))
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, "hi", snap.Messages[1].Text)
	assert.Equal(t, "Hello!", snap.Messages[2].Text)
	assert.False(t, snap.Busy)
}

func TestSendMessageRejectedWhenBlankOrBusy(t *testing.T) {
	hold := make(chan struct{})
	r, chatSvc, _ := setupRouter(t, aitest.NewClient(
		aitest.NewSession(aitest.Turn{Fragments: []string{"ok"}, Hold: hold}),
	))
	created := createSession(t, r)
	path := "/session/" + created.SessionID + "/messages"

	rr := do(t, r, http.MethodPost, path, `{"text":"   "}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.JSONEq(t, `{"accepted":false,"busy":false}`, rr.Body.String())

	rr = do(t, r, http.MethodPost, path, `{"text":"first"}`)
	assert.JSONEq(t, `{"accepted":true,"busy":true}`, rr.Body.String())

	rr = do(t, r, http.MethodPost, path, `{"text":"second"}`)
	assert.JSONEq(t, `{"accepted":false,"busy":true}`, rr.Body.String())

	close(hold)
	ctrl, err := chatSvc.GetSession(t.Context(), created.SessionID)
	require.NoError(t, err)
	ctrl.Wait()
	assert.Len(t, ctrl.Snapshot().Messages, 3)
}

func TestSendMessageInvalidBody(t *testing.T) {
	r, _, _ := setupRouter(t, aitest.NewClient())
	created := createSession(t, r)

	rr := do(t, r, http.MethodPost, "/session/"+created.SessionID+"/messages", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUnknownSession(t *testing.T) {
	r, _, _ := setupRouter(t, aitest.NewClient())

	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/session/missing", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodDelete, "/session/missing", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodPost, "/session/missing/messages", `{"text":"hi"}`).Code)
}

func TestCloseSession(t *testing.T) {
	r, chatSvc, closed := setupRouter(t, aitest.NewClient())
	created := createSession(t, r)

	rr := do(t, r, http.MethodDelete, "/session/"+created.SessionID, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{created.SessionID}, *closed)
	assert.Zero(t, chatSvc.Len())
}
