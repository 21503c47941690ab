package speech

// Client frame types sent by the page over the dictation socket.
const (
	ClientStart = "start"
	ClientAudio = "audio"
	ClientStop  = "stop"
	ClientAbort = "abort"
)

// Server frame types sent back to the page.
const (
	ServerInterim = "interim"
	ServerFinal   = "final"
	ServerError   = "error"
	ServerEnded   = "ended"
)

// ClientFrame is one JSON message from the browser.
type ClientFrame struct {
	Type string     `json:"type"`
	Data ClientData `json:"data"`
}

// ClientData holds the fields used by start (Format, Language) and audio
// (Chunk, base64 on the wire) frames.
type ClientData struct {
	Format   string `json:"format,omitempty"`
	Language string `json:"language,omitempty"`
	Chunk    []byte `json:"chunk,omitempty"`
}

// ServerFrame is one JSON message to the browser.
type ServerFrame struct {
	Type string     `json:"type"`
	Data ServerData `json:"data"`
}

// ServerData carries either recognised text or an error description.
type ServerData struct {
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}
