package core

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrUnknownSession is returned when attaching a session that was never registered.
	ErrUnknownSession = errors.New("unknown session")
	// ErrSessionUserMismatch is returned when a session is attached on behalf of another user.
	ErrSessionUserMismatch = errors.New("session bound to another user")
)

// Registry tracks live sessions and which rooms they are subscribed to.
// It is a derived view of membership rows and is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	rooms    map[string]map[string]*Session // room id -> session id -> session
	users    map[string]map[string]*Session // user id -> session id -> session
	subs     map[string]map[string]struct{} // session id -> room ids
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		rooms:    make(map[string]map[string]*Session),
		users:    make(map[string]map[string]*Session),
		subs:     make(map[string]map[string]struct{}),
	}
}

// Register makes a session known to the registry.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ID] = s
	if r.users[s.UserID] == nil {
		r.users[s.UserID] = make(map[string]*Session)
	}
	r.users[s.UserID][s.ID] = s
	if r.subs[s.ID] == nil {
		r.subs[s.ID] = make(map[string]struct{})
	}
}

// Attach subscribes a session to a room. Re-attaching is not an error.
func (r *Registry) Attach(sessionID, roomID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	if s.UserID != userID {
		return fmt.Errorf("%w: %s", ErrSessionUserMismatch, sessionID)
	}
	r.attachLocked(s, roomID)
	return nil
}

// AttachUser subscribes every live session of userID to roomID.
func (r *Registry) AttachUser(userID, roomID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.users[userID] {
		r.attachLocked(s, roomID)
	}
	return len(r.users[userID])
}

func (r *Registry) attachLocked(s *Session, roomID string) {
	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[string]*Session)
	}
	r.rooms[roomID][s.ID] = s
	r.subs[s.ID][roomID] = struct{}{}
}

// Detach unsubscribes a session from a room.
func (r *Registry) Detach(sessionID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.detachLocked(sessionID, roomID)
}

// DetachUser unsubscribes every live session of userID from roomID.
func (r *Registry) DetachUser(userID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range r.users[userID] {
		r.detachLocked(id, roomID)
	}
}

func (r *Registry) detachLocked(sessionID, roomID string) {
	if members, ok := r.rooms[roomID]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
	if rooms, ok := r.subs[sessionID]; ok {
		delete(rooms, roomID)
	}
}

// DetachAll removes a session and all its subscriptions.
func (r *Registry) DetachAll(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for roomID := range r.subs[sessionID] {
		r.detachLocked(sessionID, roomID)
	}
	delete(r.subs, sessionID)

	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)
	if byUser, ok := r.users[s.UserID]; ok {
		delete(byUser, sessionID)
		if len(byUser) == 0 {
			delete(r.users, s.UserID)
		}
	}
}

// IsAttached reports whether the session is subscribed to the room.
func (r *Registry) IsAttached(sessionID, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[roomID][sessionID]
	return ok
}

// SubscribersOf returns a snapshot of the sessions subscribed to roomID.
func (r *Registry) SubscribersOf(roomID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return snapshot(r.rooms[roomID])
}

// SessionsOf returns a snapshot of the live sessions of userID.
func (r *Registry) SessionsOf(userID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return snapshot(r.users[userID])
}

// RoomsOf returns the rooms a session is subscribed to.
func (r *Registry) RoomsOf(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]string, 0, len(r.subs[sessionID]))
	for roomID := range r.subs[sessionID] {
		rooms = append(rooms, roomID)
	}
	return rooms
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

func snapshot(m map[string]*Session) []*Session {
	out := make([]*Session, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	return out
}
