package chat

// Sender identifies who authored a transcript entry.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAI     Sender = "ai"
	SenderSystem Sender = "system"
)

// Valid reports whether s is one of the known senders.
func (s Sender) Valid() bool {
	switch s {
	case SenderUser, SenderAI, SenderSystem:
		return true
	default:
		return false
	}
}

// Message is a single transcript entry. Text grows while a reply streams in
// and is final once the stream ends.
type Message struct {
	ID     string `json:"id"`
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
}

const (
	// GreetingID is the fixed identity of the entry seeded at mount.
	GreetingID = "initial-message"

	// ErrorReply replaces a placeholder whose stream failed.
	ErrorReply = "Sorry, I encountered an error. Please try again."
)
