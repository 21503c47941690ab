package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/seeky-chat/seeky/backend/internal/config"
)

var (
	ErrNotStarted     = errors.New("recognizer not started")
	ErrAlreadyStarted = errors.New("recognizer already started")
	ErrStopped        = errors.New("recognizer already stopped")
)

// successCode is the status the gateway reports alongside a normal result.
const successCode = 20000000

// TranscriptEvent is one recognition update. Interim events carry the running
// hypothesis, the final event the finished transcript. Err is set on failure.
type TranscriptEvent struct {
	Text  string
	Final bool
	Err   error
}

// Recognizer streams audio to a speech-to-text backend. Events is closed after
// the final event, an error or Abort.
type Recognizer interface {
	Start(ctx context.Context) error
	Feed(audio []byte) error
	Stop() error
	Abort()
	Events() <-chan TranscriptEvent
}

// ServerError is a failure reported by the recognition gateway.
type ServerError struct {
	Code    uint32
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("asr error %d: %s", e.Code, e.Message)
}

type asrRequest struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate"`
		Bits     int    `json:"bits"`
		Channel  int    `json:"channel"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnableITN      bool   `json:"enable_itn"`
		EnablePunc     bool   `json:"enable_punc"`
		ShowUtterances bool   `json:"show_utterances"`
		ResultType     string `json:"result_type"`
		EndWindowSize  int    `json:"end_window_size,omitempty"`
	} `json:"request"`
}

type asrUtterance struct {
	Text     string `json:"text"`
	Definite bool   `json:"definite"`
}

type asrResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Result  struct {
		Text       string         `json:"text"`
		Utterances []asrUtterance `json:"utterances,omitempty"`
	} `json:"result"`
	AudioInfo struct {
		Duration int64 `json:"duration"`
	} `json:"audio_info"`
}

// volcRecognizer speaks the Volcengine big-model streaming ASR protocol.
type volcRecognizer struct {
	cfg       config.SpeechConfig
	dialer    *websocket.Dialer
	logger    *zap.Logger
	sessionID string
	format    string
	language  string

	mu       sync.Mutex
	conn     *websocket.Conn
	sequence int32
	started  bool
	stopped  bool

	events   chan TranscriptEvent
	aborted  atomic.Bool
	abort    chan struct{}
	finished chan struct{}
	once     sync.Once

	duration atomic.Int64
}

func newVolcRecognizer(cfg config.SpeechConfig, dialer *websocket.Dialer, logger *zap.Logger, sessionID, format, language string) *volcRecognizer {
	if format == "" {
		format = "pcm"
	}
	if language == "" {
		language = cfg.Language
	}
	return &volcRecognizer{
		cfg:       cfg,
		dialer:    dialer,
		logger:    logger,
		sessionID: sessionID,
		format:    strings.ToLower(format),
		language:  language,
		events:    make(chan TranscriptEvent, 16),
		abort:     make(chan struct{}),
		finished:  make(chan struct{}),
	}
}

// Start dials the gateway and sends the session parameters. ctx bounds the
// whole recognition; cancelling it aborts.
func (r *volcRecognizer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrAlreadyStarted
	}
	if r.aborted.Load() {
		return ErrStopped
	}

	header, err := authHeader(r.cfg)
	if err != nil {
		return err
	}

	conn, resp, err := r.dialer.DialContext(ctx, r.cfg.ASRURL, header)
	if err != nil {
		return fmt.Errorf("dial asr gateway: %w", err)
	}
	if logID := resp.Header.Get("X-Tt-Logid"); logID != "" {
		r.logger.Debug("asr connected", zap.String("session", r.sessionID), zap.String("logid", logID))
	}

	payload, err := sonic.Marshal(r.buildRequest())
	if err != nil {
		conn.Close()
		return fmt.Errorf("marshal asr request: %w", err)
	}
	compressed, err := CompressPayload(payload, GzipCompression)
	if err != nil {
		conn.Close()
		return err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, EncodeFrame(NewFullClientRequest(compressed, GzipCompression))); err != nil {
		conn.Close()
		return fmt.Errorf("send asr request: %w", err)
	}

	r.conn = conn
	r.sequence = 2 // the full client request takes sequence 1
	r.started = true

	go r.receive()
	go func() {
		select {
		case <-ctx.Done():
			r.Abort()
		case <-r.finished:
		}
	}()
	return nil
}

// Feed sends one audio chunk.
func (r *volcRecognizer) Feed(audio []byte) error {
	if len(audio) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.writableLocked(); err != nil {
		return err
	}
	if err := r.writeAudioLocked(audio, false); err != nil {
		return err
	}
	r.sequence++
	return nil
}

// Stop marks the end of the audio. The final event follows on Events.
func (r *volcRecognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.writableLocked(); err != nil {
		return err
	}
	r.stopped = true

	if err := r.writeAudioLocked(nil, true); err != nil {
		return err
	}

	timeout := time.Duration(r.cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return r.conn.SetReadDeadline(time.Now().Add(timeout))
}

// Abort drops the recognition without a final event.
func (r *volcRecognizer) Abort() {
	r.once.Do(func() {
		r.aborted.Store(true)
		close(r.abort)

		r.mu.Lock()
		conn := r.conn
		r.mu.Unlock()
		if conn != nil {
			conn.Close()
		} else {
			close(r.events)
		}
	})
}

func (r *volcRecognizer) Events() <-chan TranscriptEvent {
	return r.events
}

func (r *volcRecognizer) writableLocked() error {
	switch {
	case r.aborted.Load():
		return ErrStopped
	case !r.started:
		return ErrNotStarted
	case r.stopped:
		return ErrStopped
	}
	return nil
}

func (r *volcRecognizer) writeAudioLocked(audio []byte, last bool) error {
	compressed, err := CompressPayload(audio, GzipCompression)
	if err != nil {
		return err
	}
	frame := NewAudioRequest(compressed, r.sequence, last, GzipCompression)
	if err := r.conn.WriteMessage(websocket.BinaryMessage, EncodeFrame(frame)); err != nil {
		return fmt.Errorf("send audio chunk: %w", err)
	}
	return nil
}

func (r *volcRecognizer) buildRequest() *asrRequest {
	req := &asrRequest{}
	req.User.UID = r.sessionID

	req.Audio.Format = r.format
	req.Audio.Language = r.language
	switch r.format {
	case "pcm", "wav":
		req.Audio.Codec = "raw"
	case "ogg":
		req.Audio.Codec = "opus"
	}
	req.Audio.Rate = 16000
	req.Audio.Bits = 16
	req.Audio.Channel = 1

	req.Request.ModelName = "bigmodel"
	req.Request.EnableITN = true
	req.Request.EnablePunc = true
	req.Request.ShowUtterances = true
	req.Request.ResultType = "full"
	req.Request.EndWindowSize = 800
	return req
}

// receive owns the read side of the connection and the events channel.
func (r *volcRecognizer) receive() {
	defer close(r.finished)
	defer close(r.events)
	defer r.conn.Close()

	var text string
	for {
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			if !r.aborted.Load() {
				r.emit(TranscriptEvent{Err: fmt.Errorf("read asr response: %w", err)})
			}
			return
		}

		frame, err := DecodeFrame(bytes.NewReader(data))
		if err != nil {
			r.emit(TranscriptEvent{Err: fmt.Errorf("decode asr frame: %w", err)})
			return
		}

		switch frame.Header.MessageType {
		case ErrorMessage:
			payload, _ := DecompressPayload(frame.Payload, frame.Header.CompressionMethod)
			r.emit(TranscriptEvent{Err: &ServerError{Code: frame.ErrorCode, Message: string(payload)}})
			return

		case FullServerResponse:
			payload, err := DecompressPayload(frame.Payload, frame.Header.CompressionMethod)
			if err != nil {
				r.emit(TranscriptEvent{Err: err})
				return
			}

			var resp asrResponse
			if len(payload) > 0 {
				if err := sonic.Unmarshal(payload, &resp); err != nil {
					r.logger.Warn("skip malformed asr response", zap.String("session", r.sessionID), zap.Error(err))
					continue
				}
			}
			if resp.Code != 0 && resp.Code != successCode {
				r.emit(TranscriptEvent{Err: &ServerError{Code: uint32(resp.Code), Message: resp.Message}})
				return
			}
			if resp.AudioInfo.Duration > 0 {
				r.duration.Store(resp.AudioInfo.Duration)
			}

			candidate := resp.Result.Text
			if candidate == "" && len(resp.Result.Utterances) > 0 {
				candidate = joinUtterances(resp.Result.Utterances)
			}

			if frame.IsLastPacket() || frame.Sequence < 0 {
				if candidate != "" {
					text = candidate
				}
				r.emit(TranscriptEvent{Text: text, Final: true})
				return
			}
			if candidate != "" && candidate != text {
				text = candidate
				r.emit(TranscriptEvent{Text: text})
			}
		}
	}
}

func (r *volcRecognizer) emit(event TranscriptEvent) {
	select {
	case r.events <- event:
	case <-r.abort:
	}
}

func joinUtterances(utterances []asrUtterance) string {
	parts := make([]string, 0, len(utterances))
	for _, u := range utterances {
		if u.Text != "" {
			parts = append(parts, u.Text)
		}
	}
	return strings.Join(parts, " ")
}
