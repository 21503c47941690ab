package ai

import "errors"

var (
	// ErrEmptyMessage is returned when the user text is blank after trimming.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNoSession is returned when no session handle was supplied.
	ErrNoSession = errors.New("chat session is not initialized")
)

// TransportError reports that the remote chat service could not be reached or
// that the reply stream broke off. Op is "open" or "recv".
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "transport " + e.Op + " failed"
	}
	return "transport " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
