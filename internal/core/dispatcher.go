package core

import "github.com/rs/zerolog"

// Dispatcher fans events out to sessions listed by the registry.
// A session whose queue is full is evicted and closed rather than blocking
// the sender.
type Dispatcher struct {
	registry *Registry
	log      *zerolog.Logger
}

// NewDispatcher constructs a dispatcher over registry.
func NewDispatcher(registry *Registry, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, log: logger}
}

// BroadcastToRoom enqueues ev for every session subscribed to its room and
// returns the number of sessions that accepted it.
func (d *Dispatcher) BroadcastToRoom(roomID string, ev RoomEvent) int {
	delivered := 0
	for _, s := range d.registry.SubscribersOf(roomID) {
		if d.offer(s, Event{Kind: EventRoom, Room: &ev}) {
			delivered++
		}
	}
	return delivered
}

// DeliverToUser enqueues n for every live session of userID. Users without
// sessions are silently skipped.
func (d *Dispatcher) DeliverToUser(userID string, n Notice) int {
	delivered := 0
	for _, s := range d.registry.SessionsOf(userID) {
		if d.offer(s, Event{Kind: EventNotice, Notice: &n}) {
			delivered++
		}
	}
	return delivered
}

func (d *Dispatcher) offer(s *Session, ev Event) bool {
	if s.enqueue(ev) {
		return true
	}
	if s.Closed() {
		return false
	}
	d.registry.DetachAll(s.ID)
	s.Close()
	d.log.Warn().
		Str("session_id", s.ID).
		Str("user_id", s.UserID).
		Msg("evicting slow session")
	return false
}
