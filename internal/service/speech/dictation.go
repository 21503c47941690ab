package speech

import "sync"

// Dictations tracks the active recognizer of each chat session. Beginning a
// new dictation aborts the previous one for the same session.
type Dictations struct {
	mu     sync.Mutex
	active map[string]Recognizer
}

func NewDictations() *Dictations {
	return &Dictations{active: make(map[string]Recognizer)}
}

// Begin registers rec for sessionID.
func (d *Dictations) Begin(sessionID string, rec Recognizer) {
	d.mu.Lock()
	prev := d.active[sessionID]
	d.active[sessionID] = rec
	d.mu.Unlock()

	if prev != nil && prev != rec {
		prev.Abort()
	}
}

// End forgets rec if it is still the active dictation for sessionID.
func (d *Dictations) End(sessionID string, rec Recognizer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active[sessionID] == rec {
		delete(d.active, sessionID)
	}
}

// Abort cancels the active dictation of sessionID, if any.
func (d *Dictations) Abort(sessionID string) {
	d.mu.Lock()
	rec := d.active[sessionID]
	delete(d.active, sessionID)
	d.mu.Unlock()

	if rec != nil {
		rec.Abort()
	}
}

// Len returns the number of active dictations.
func (d *Dictations) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.active)
}

// CloseAll aborts every active dictation.
func (d *Dictations) CloseAll() {
	d.mu.Lock()
	active := d.active
	d.active = make(map[string]Recognizer)
	d.mu.Unlock()

	for _, rec := range active {
		rec.Abort()
	}
}
