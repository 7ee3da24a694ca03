package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/identity"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/store/sqlite"
)

type testEnv struct {
	hub      *Hub
	store    *sqlite.SQLiteStore
	registry *Registry
}

func newTestEnv(t *testing.T, users ...string) *testEnv {
	t.Helper()

	s, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	for _, id := range users {
		if err := s.UpsertUser(ctx, &store.User{ID: id, DisplayName: displayName(id)}); err != nil {
			t.Fatalf("failed to create user %s: %v", id, err)
		}
	}

	logger := zerolog.Nop()
	registry := NewRegistry()
	hub := NewHub(s, identity.NewStoreResolver(s), registry, &logger, HubConfig{})
	return &testEnv{hub: hub, store: s, registry: registry}
}

// displayName capitalises the user id: "alice" -> "Alice".
func displayName(id string) string {
	if id == "" {
		return id
	}
	return strings.ToUpper(id[:1]) + id[1:]
}

func (e *testEnv) connect(t *testing.T, userID string) *Session {
	t.Helper()

	s := NewSession(uuid.NewString(), userID, 32)
	e.hub.Register(s)
	t.Cleanup(func() { e.hub.Disconnect(s) })
	return s
}

func (e *testEnv) do(t *testing.T, s *Session, cmd Command) error {
	t.Helper()
	return e.hub.Handle(context.Background(), s, cmd)
}

func (e *testEnv) mustDo(t *testing.T, s *Session, cmd Command) {
	t.Helper()
	if err := e.do(t, s, cmd); err != nil {
		t.Fatalf("%s %s failed: %v", cmd.Kind, cmd.RoomID, err)
	}
}

// mustEvent waits for an event matching match, skipping others.
func mustEvent(t *testing.T, s *Session, desc string, match func(Event) bool) Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-s.Events():
			if match(ev) {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected %s not received by %s", desc, s.UserID)
	return Event{}
}

func mustRoomEvent(t *testing.T, s *Session, typ MessageType) *RoomEvent {
	t.Helper()
	ev := mustEvent(t, s, typ.String()+" event", func(ev Event) bool {
		return ev.Kind == EventRoom && ev.Room.Type == typ
	})
	return ev.Room
}

func mustNotice(t *testing.T, s *Session, ch Channel) *Notice {
	t.Helper()
	ev := mustEvent(t, s, ch.String()+" notice", func(ev Event) bool {
		return ev.Kind == EventNotice && ev.Notice.Channel == ch
	})
	return ev.Notice
}

// drain discards queued events.
func drain(s *Session) {
	for {
		select {
		case <-s.Events():
		default:
			return
		}
	}
}

// expectQuiet fails if s has any queued event.
func expectQuiet(t *testing.T, s *Session) {
	t.Helper()
	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected event for %s: %+v", s.UserID, ev)
	default:
	}
}
