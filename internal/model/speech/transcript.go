package speech

import "time"

// Transcript is the result of a one-shot recognition.
type Transcript struct {
	SessionID string    `json:"sessionId"`
	Text      string    `json:"text"`
	Duration  int64     `json:"duration"` // milliseconds
	CreatedAt time.Time `json:"createdAt"`
}
