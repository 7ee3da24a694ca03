package core

import "sync"

// DefaultQueueSize is the outbound queue capacity used when none is given.
const DefaultQueueSize = 64

// Session is one live connection of a user.
// Events are consumed by the transport write loop until Done is closed.
type Session struct {
	ID     string
	UserID string

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession constructs a session with a bounded outbound queue.
func NewSession(id, userID string, queueSize int) *Session {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Session{
		ID:     id,
		UserID: userID,
		events: make(chan Event, queueSize),
		done:   make(chan struct{}),
	}
}

// Events returns the outbound queue.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close marks the session closed. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// enqueue offers ev without blocking. Returns false if the queue is full or
// the session is closed.
func (s *Session) enqueue(ev Event) bool {
	if s.Closed() {
		return false
	}
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}
