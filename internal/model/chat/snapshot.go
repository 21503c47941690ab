package chat

// Snapshot is an immutable view of one conversation handed to the presentation layer.
type Snapshot struct {
	SessionID string    `json:"sessionId"`
	Messages  []Message `json:"messages"`
	Busy      bool      `json:"busy"`
}
