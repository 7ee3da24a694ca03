package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

func TestParse(t *testing.T) {
	s := &chatState{room: "general"}

	tests := []struct {
		line     string
		wantType string
		wantData string
		wantRoom string
	}{
		{"hello there", "send", `{"roomId":"general","content":"hello there"}`, "general"},
		{"/join r1 Book club", "join", `{"roomId":"r1","roomName":"Book club"}`, "r1"},
		{"/invite bob", "invite", `{"roomId":"r1","recipientUserId":"bob"}`, "r1"},
		{"/kick bob", "kick", `{"roomId":"r1","recipientUserId":"bob"}`, "r1"},
		{"/transfer carol", "transfer", `{"roomId":"r1","recipientUserId":"carol"}`, "r1"},
		{"/leave", "leave", `{"roomId":"r1"}`, "r1"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := s.parse(tt.line)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got.Type != tt.wantType || string(got.Data) != tt.wantData {
				t.Fatalf("got %s %s, want %s %s", got.Type, got.Data, tt.wantType, tt.wantData)
			}
			if s.room != tt.wantRoom {
				t.Fatalf("current room %q, want %q", s.room, tt.wantRoom)
			}
		})
	}
}

func TestParseEdgeCases(t *testing.T) {
	s := &chatState{room: "general"}

	if got, err := s.parse("   "); got != nil || err != nil {
		t.Fatalf("blank line should be ignored, got %v %v", got, err)
	}
	if got, err := s.parse("/room r2"); got != nil || err != nil || s.room != "r2" {
		t.Fatalf("/room should only switch rooms, got %v %v room=%s", got, err, s.room)
	}
	if _, err := s.parse("/invite"); err == nil {
		t.Fatal("expected missing argument error")
	}
	if _, err := s.parse("/shout hi"); err == nil {
		t.Fatal("expected unknown command error")
	}
}

func TestFormat(t *testing.T) {
	ev, _ := json.Marshal(proto.RoomEvent{Type: "CHAT", RoomID: "r1", SenderUserID: "alice", Content: "hi"})
	if got := format(proto.OutboundTypeEvent, "CHAT", "", ev, nil); !strings.Contains(got, "[r1] alice: hi") {
		t.Fatalf("unexpected chat line %q", got)
	}

	n, _ := json.Marshal(proto.Notice{Code: "not_leader", Message: "only the leader can invite"})
	if got := format(proto.OutboundTypeNotice, "", "errors", n, nil); got != "(errors) not_leader: only the leader can invite" {
		t.Fatalf("unexpected notice line %q", got)
	}

	if got := format(proto.OutboundTypeError, "", "", nil, &proto.Error{Code: "rate_limited", Msg: "too many messages"}); got != "error rate_limited: too many messages" {
		t.Fatalf("unexpected error line %q", got)
	}
}
