package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

func doJSON(t *testing.T, s *testServer, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthEndpoint(t *testing.T) {
	s := startTestServer(t, testConfig())

	resp := doJSON(t, s, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	s := startTestServer(t, testConfig(), "alice")

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing token", token: ""},
		{name: "invalid token", token: "garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, s, http.MethodGet, "/api/rooms", tt.token, nil)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", resp.StatusCode)
			}
		})
	}
}

func TestMeEndpoint(t *testing.T) {
	s := startTestServer(t, testConfig(), "alice")

	resp := doJSON(t, s, http.MethodGet, "/api/me", s.token(t, "alice"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	me := decode[UserResponse](t, resp)
	if me.ID != "alice" || me.DisplayName != "Alice" {
		t.Fatalf("unexpected user: %+v", me)
	}

	resp = doJSON(t, s, http.MethodGet, "/api/me", s.token(t, "ghost"), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", resp.StatusCode)
	}
}

func TestCreateAndListRooms(t *testing.T) {
	s := startTestServer(t, testConfig(), "alice", "bob", "carol")
	aliceToken := s.token(t, "alice")
	bobToken := s.token(t, "bob")

	resp := doJSON(t, s, http.MethodPost, "/api/rooms", aliceToken, CreateRoomRequest{
		RoomID:         "dm",
		Type:           "one_to_one",
		ParticipantIDs: []string{"bob"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	room := decode[RoomResponse](t, resp)
	if room.ID != "dm" || room.LeaderID != "alice" || room.Type != "one_to_one" {
		t.Fatalf("unexpected room: %+v", room)
	}

	resp = doJSON(t, s, http.MethodPost, "/api/rooms", aliceToken, CreateRoomRequest{RoomID: "dm"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for an existing room, got %d", resp.StatusCode)
	}

	resp = doJSON(t, s, http.MethodPost, "/api/rooms", aliceToken, CreateRoomRequest{ParticipantIDs: []string{"nobody"}})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown participant, got %d", resp.StatusCode)
	}

	resp = doJSON(t, s, http.MethodGet, "/api/rooms", bobToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	rooms := decode[[]RoomSummaryResponse](t, resp)
	if len(rooms) != 1 || rooms[0].Name != "Alice" || rooms[0].ParticipantsCount != 2 {
		t.Fatalf("unexpected rooms: %+v", rooms)
	}

	resp = doJSON(t, s, http.MethodGet, "/api/rooms/one-to-one", bobToken, nil)
	pairs := decode[[]OneToOneRoomResponse](t, resp)
	if len(pairs) != 1 || pairs[0].PartnerID != "alice" {
		t.Fatalf("unexpected one-to-one rooms: %+v", pairs)
	}
}

func TestRoomMessagesAndMembers(t *testing.T) {
	s := startTestServer(t, testConfig(), "alice", "bob", "carol")
	ctx := context.Background()
	aliceToken := s.token(t, "alice")

	if _, err := s.hub.OpenRoom(ctx, "alice", "r1", "Book club", "", []string{"bob"}); err != nil {
		t.Fatalf("OpenRoom failed: %v", err)
	}
	for _, text := range []string{"one", "two", "three"} {
		if _, err := s.hub.Send(ctx, "bob", "r1", text); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	resp := doJSON(t, s, http.MethodGet, "/api/rooms/r1/messages?limit=2", aliceToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	messages := decode[[]proto.RoomEvent](t, resp)
	if len(messages) != 2 || messages[0].Content != "two" || messages[1].Content != "three" {
		t.Fatalf("unexpected messages: %+v", messages)
	}

	resp = doJSON(t, s, http.MethodGet, "/api/rooms/r1/messages?limit=abc", aliceToken, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad limit, got %d", resp.StatusCode)
	}

	resp = doJSON(t, s, http.MethodGet, "/api/rooms/r1/messages", s.token(t, "carol"), nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for a non-member, got %d", resp.StatusCode)
	}

	resp = doJSON(t, s, http.MethodGet, "/api/rooms/r1/members", aliceToken, nil)
	members := decode[[]ParticipantResponse](t, resp)
	if len(members) != 2 || !members[0].IsLeader || members[1].DisplayName != "Bob" {
		t.Fatalf("unexpected members: %+v", members)
	}

	resp = doJSON(t, s, http.MethodPut, "/api/rooms/r1/name", s.token(t, "bob"), RenameRoomRequest{Name: "Reading group"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp = doJSON(t, s, http.MethodPut, "/api/rooms/r1/name", s.token(t, "carol"), RenameRoomRequest{Name: "Mine"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for a non-member rename, got %d", resp.StatusCode)
	}

	resp = doJSON(t, s, http.MethodGet, "/api/rooms", aliceToken, nil)
	rooms := decode[[]RoomSummaryResponse](t, resp)
	if len(rooms) != 1 || rooms[0].Name != "Reading group" {
		t.Fatalf("unexpected rooms after rename: %+v", rooms)
	}
}
