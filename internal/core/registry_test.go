package core

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func TestRegistryAttachDetach(t *testing.T) {
	r := NewRegistry()
	s1 := NewSession("s1", "alice", 4)
	s2 := NewSession("s2", "alice", 4)
	s3 := NewSession("s3", "bob", 4)
	for _, s := range []*Session{s1, s2, s3} {
		r.Register(s)
	}

	if err := r.Attach("missing", "r1", "alice"); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
	if err := r.Attach("s3", "r1", "alice"); !errors.Is(err, ErrSessionUserMismatch) {
		t.Fatalf("expected ErrSessionUserMismatch, got %v", err)
	}

	for n := 0; n < 2; n++ {
		if err := r.Attach("s1", "r1", "alice"); err != nil {
			t.Fatalf("Attach failed: %v", err)
		}
	}
	if got := len(r.SubscribersOf("r1")); got != 1 {
		t.Fatalf("re-attach should not duplicate subscribers, got %d", got)
	}

	if n := r.AttachUser("alice", "r2"); n != 2 {
		t.Fatalf("expected both alice sessions attached, got %d", n)
	}
	if got := len(r.RoomsOf("s1")); got != 2 {
		t.Fatalf("expected s1 in 2 rooms, got %d", got)
	}

	r.DetachUser("alice", "r2")
	if got := len(r.SubscribersOf("r2")); got != 0 {
		t.Fatalf("expected r2 to have no subscribers, got %d", got)
	}

	r.Detach("s1", "r1")
	if r.IsAttached("s1", "r1") {
		t.Fatal("s1 should be detached from r1")
	}

	_ = r.Attach("s1", "r1", "alice")
	r.DetachAll("s1")
	if r.IsAttached("s1", "r1") || len(r.RoomsOf("s1")) != 0 {
		t.Fatal("DetachAll should drop every subscription")
	}
	if got := len(r.SessionsOf("alice")); got != 1 {
		t.Fatalf("expected 1 remaining alice session, got %d", got)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", r.Len())
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := NewSession(fmt.Sprintf("s%d", i), fmt.Sprintf("u%d", i%5), 4)
			r.Register(s)
			room := fmt.Sprintf("r%d", i%3)
			if err := r.Attach(s.ID, room, s.UserID); err != nil {
				t.Errorf("Attach failed: %v", err)
			}
			_ = r.SubscribersOf(room)
			if i%2 == 0 {
				r.DetachAll(s.ID)
			}
		}()
	}
	wg.Wait()

	if r.Len() != 25 {
		t.Fatalf("expected 25 sessions, got %d", r.Len())
	}
}

func TestDispatcherBroadcast(t *testing.T) {
	logger := zerolog.Nop()
	r := NewRegistry()
	d := NewDispatcher(r, &logger)

	a := NewSession("a", "alice", 4)
	b := NewSession("b", "bob", 4)
	r.Register(a)
	r.Register(b)
	_ = r.Attach("a", "r1", "alice")
	_ = r.Attach("b", "r1", "bob")

	if n := d.BroadcastToRoom("r1", RoomEvent{Type: MessageChat, RoomID: "r1", Content: "hi"}); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	if n := d.BroadcastToRoom("r2", RoomEvent{Type: MessageChat, RoomID: "r2"}); n != 0 {
		t.Fatalf("expected no deliveries to an empty room, got %d", n)
	}
	for _, s := range []*Session{a, b} {
		ev := <-s.Events()
		if ev.Kind != EventRoom || ev.Room.Content != "hi" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	}

	if n := d.DeliverToUser("carol", Notice{Channel: ChannelInvitations}); n != 0 {
		t.Fatalf("offline users should be skipped, got %d", n)
	}
	if n := d.DeliverToUser("bob", Notice{Channel: ChannelKicked, RoomID: "r1"}); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	ev := <-b.Events()
	if ev.Kind != EventNotice || ev.Notice.Channel != ChannelKicked {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDispatcherEvictsSlowSession(t *testing.T) {
	logger := zerolog.Nop()
	r := NewRegistry()
	d := NewDispatcher(r, &logger)

	slow := NewSession("slow", "alice", 1)
	fast := NewSession("fast", "bob", 8)
	r.Register(slow)
	r.Register(fast)
	_ = r.Attach("slow", "r1", "alice")
	_ = r.Attach("fast", "r1", "bob")

	d.BroadcastToRoom("r1", RoomEvent{Type: MessageChat, RoomID: "r1"})
	if n := d.BroadcastToRoom("r1", RoomEvent{Type: MessageChat, RoomID: "r1"}); n != 1 {
		t.Fatalf("expected only the fast session to accept, got %d", n)
	}

	select {
	case <-slow.Done():
	default:
		t.Fatal("slow session should be closed")
	}
	if r.IsAttached("slow", "r1") || len(r.SessionsOf("alice")) != 0 {
		t.Fatal("slow session should be removed from the registry")
	}
	if got := len(fast.Events()); got != 2 {
		t.Fatalf("fast session should have both events, got %d", got)
	}
}

func TestMessageTypeRoundTrip(t *testing.T) {
	for _, typ := range []MessageType{MessageChat, MessageJoin, MessageLeave, MessageInvite, MessageKick, MessageLeader} {
		parsed, err := ParseMessageType(typ.String())
		if err != nil || parsed != typ {
			t.Fatalf("ParseMessageType(%q) = %v, %v", typ.String(), parsed, err)
		}
	}
	if _, err := ParseMessageType("SHOUT"); err == nil {
		t.Fatal("expected unknown type to be rejected")
	}
}
