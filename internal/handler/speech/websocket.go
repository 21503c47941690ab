package speech

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	speechmodel "github.com/seeky-chat/seeky/backend/internal/model/speech"
	speechsvc "github.com/seeky-chat/seeky/backend/internal/service/speech"
	"github.com/seeky-chat/seeky/backend/pkg/utils"
)

const (
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
	writeWait    = 10 * time.Second
	maxFrameSize = 1 << 20
)

// dictationConn serialises writes to the browser socket.
type dictationConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *dictationConn) send(frame speechmodel.ServerFrame) error {
	data, err := sonic.Marshal(frame)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *dictationConn) sendError(message string) {
	_ = c.send(speechmodel.ServerFrame{Type: speechmodel.ServerError, Data: speechmodel.ServerData{Error: message}})
}

// channelRecognizer is the recognizer a channel is currently driving. A
// replaced one drains without sending any frame, not even ended.
type channelRecognizer struct {
	rec      speechsvc.Recognizer
	replaced atomic.Bool
}

// handleWebSocket runs one dictation channel. The browser drives it with
// start/audio/stop/abort frames and receives interim/final/error/ended frames.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.available() {
		utils.RespondError(w, http.StatusNotImplemented, "speech recognition not available")
		return
	}

	sessionID, ok := h.resolveSession(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("session", sessionID), zap.Error(err))
		return
	}
	defer conn.Close()

	logger := h.logger.With(zap.String("session", sessionID))
	logger.Debug("dictation channel opened")

	ctx, cancel := context.WithCancel(r.Context())
	dc := &dictationConn{conn: conn}

	var (
		current *channelRecognizer
		workers sync.WaitGroup
	)
	endCurrent := func(replaced bool) {
		if current == nil {
			return
		}
		if replaced {
			current.replaced.Store(true)
		}
		current.rec.Abort()
		h.dictations.End(sessionID, current.rec)
		current = nil
	}
	defer func() {
		cancel()
		endCurrent(false)
		workers.Wait()
		logger.Debug("dictation channel closed")
	}()

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	workers.Add(1)
	go func() {
		defer workers.Done()
		h.pingLoop(ctx, dc)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("dictation read error", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame speechmodel.ClientFrame
		if err := sonic.Unmarshal(data, &frame); err != nil {
			dc.sendError("invalid message")
			continue
		}

		switch frame.Type {
		case speechmodel.ClientStart:
			endCurrent(true)

			rec, err := h.speechSvc.NewRecognizer(sessionID, frame.Data.Format, frame.Data.Language)
			if err == nil {
				if err = rec.Start(ctx); err != nil {
					rec.Abort()
				}
			}
			if err != nil {
				logger.Error("start dictation failed", zap.Error(err))
				dc.sendError("speech recognition unavailable")
				continue
			}

			active := &channelRecognizer{rec: rec}
			current = active
			h.dictations.Begin(sessionID, rec)
			workers.Add(1)
			go func() {
				defer workers.Done()
				h.pump(dc, sessionID, active, logger)
			}()

		case speechmodel.ClientAudio:
			if current == nil {
				dc.sendError("dictation not started")
				continue
			}
			if err := current.rec.Feed(frame.Data.Chunk); err != nil {
				dc.sendError("dictation not active")
			}

		case speechmodel.ClientStop:
			if current == nil {
				continue
			}
			if err := current.rec.Stop(); err != nil {
				dc.sendError("dictation not active")
			}

		case speechmodel.ClientAbort:
			endCurrent(false)

		default:
			dc.sendError("unsupported message type: " + frame.Type)
		}
	}
}

// pump forwards recognition events to the browser until the recognizer ends.
// Nothing is forwarded once the recognizer has been replaced.
func (h *Handler) pump(dc *dictationConn, sessionID string, active *channelRecognizer, logger *zap.Logger) {
	rec := active.rec
	for ev := range rec.Events() {
		if active.replaced.Load() {
			continue
		}
		if ev.Err != nil {
			logger.Warn("dictation failed", zap.Error(ev.Err))
		}
		if err := dc.send(transcriptFrame(ev)); err != nil {
			rec.Abort()
		}
	}
	h.dictations.End(sessionID, rec)
	if active.replaced.Load() {
		return
	}
	_ = dc.send(speechmodel.ServerFrame{Type: speechmodel.ServerEnded})
}

func (h *Handler) pingLoop(ctx context.Context, dc *dictationConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := dc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
