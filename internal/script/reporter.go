package script

import (
	"fmt"
	"sync"
)

// Reporter is the host's error channel for script problems.
//
// When the host rejects a script-provided value (bad format table, wrong
// return type) it throws through the Reporter instead of panicking; the
// message is recorded and fanned out to any registered handlers, and the
// most recent one stays available for the UI or CLI to show.
type Reporter struct {
	mu       sync.Mutex
	last     string
	history  []string
	handlers []func(string)
}

// NewReporter creates an empty reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

// OnError registers a handler invoked for every thrown error.
// Handlers must not call back into the Reporter.
func (r *Reporter) OnError(fn func(string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, fn)
}

// Throw records a script error and notifies handlers.
// It returns the error so callers can propagate it.
func (r *Reporter) Throw(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)

	r.mu.Lock()
	r.last = msg
	r.history = append(r.history, msg)
	handlers := make([]func(string), len(r.handlers))
	copy(handlers, r.handlers)
	r.mu.Unlock()

	for _, fn := range handlers {
		fn(msg)
	}
	return fmt.Errorf("%s", msg)
}

// LastError returns the most recently thrown message, or "".
func (r *Reporter) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// History returns all thrown messages in order.
func (r *Reporter) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.history...)
}

// Clear forgets all recorded errors.
func (r *Reporter) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = ""
	r.history = nil
}
