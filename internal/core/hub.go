package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/identity"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// DefaultHistoryLimit is the number of messages returned when no limit is given.
const DefaultHistoryLimit = 50

// HubConfig tunes the hub.
type HubConfig struct {
	HistoryLimit int
}

// Hub runs the chat flow: it authorizes commands, applies them to the
// stores, appends the message row and fans the event out.
type Hub struct {
	directory    *Directory
	members      *Memberships
	messages     store.MessageStore
	resolver     identity.Resolver
	registry     *Registry
	dispatcher   *Dispatcher
	log          *zerolog.Logger
	historyLimit int
}

// NewHub creates a new chat hub instance.
func NewHub(st store.Store, resolver identity.Resolver, registry *Registry, logger *zerolog.Logger, cfg HubConfig) *Hub {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	return &Hub{
		directory:    NewDirectory(st, st, resolver),
		members:      NewMemberships(st),
		messages:     st,
		resolver:     resolver,
		registry:     registry,
		dispatcher:   NewDispatcher(registry, logger),
		log:          logger,
		historyLimit: cfg.HistoryLimit,
	}
}

// Directory exposes the room directory.
func (h *Hub) Directory() *Directory {
	return h.directory
}

// Register makes a new session known to the hub.
func (h *Hub) Register(s *Session) {
	h.registry.Register(s)
	h.log.Debug().Str("session_id", s.ID).Str("user_id", s.UserID).Msg("session registered")
}

// Disconnect drops all subscriptions of the session and closes it.
func (h *Hub) Disconnect(s *Session) {
	h.registry.DetachAll(s.ID)
	s.Close()
	h.log.Debug().Str("session_id", s.ID).Str("user_id", s.UserID).Msg("session disconnected")
}

// Handle applies a command issued by a session. Failures are reported to
// the sender on the errors channel and returned.
func (h *Hub) Handle(ctx context.Context, s *Session, cmd Command) error {
	var err error
	switch cmd.Kind {
	case CommandSend:
		_, err = h.Send(ctx, s.UserID, cmd.RoomID, cmd.Content)
	case CommandJoin:
		_, err = h.Join(ctx, s, cmd.RoomID, cmd.RoomName, cmd.RoomType)
	case CommandInvite:
		_, err = h.Invite(ctx, s.UserID, cmd.RoomID, cmd.RecipientID)
	case CommandKick:
		_, err = h.Kick(ctx, s.UserID, cmd.RoomID, cmd.RecipientID)
	case CommandLeave:
		_, err = h.Leave(ctx, s.UserID, cmd.RoomID)
	case CommandTransfer:
		_, err = h.TransferLeadership(ctx, s.UserID, cmd.RoomID, cmd.RecipientID)
	default:
		err = coreErrorf(ErrCodeBadRequest, "unknown command %d", int(cmd.Kind))
	}
	if err != nil {
		h.report(s.UserID, cmd.RoomID, cmd.Kind, err)
	}
	return err
}

// report sends err to the user's errors channel.
func (h *Hub) report(userID, roomID string, kind CommandKind, err error) {
	var ce *CoreError
	if !errors.As(err, &ce) {
		h.log.Error().Err(err).
			Str("user_id", userID).
			Str("room_id", roomID).
			Stringer("command", kind).
			Msg("command failed")
		ce = coreError(ErrCodeInternal, "internal error")
	}
	h.dispatcher.DeliverToUser(userID, Notice{
		Channel: ChannelErrors,
		Code:    ce.Code,
		Message: ce.Message,
		RoomID:  roomID,
	})
}

// Send broadcasts a chat message to a room.
func (h *Hub) Send(ctx context.Context, senderID, roomID, content string) (*RoomEvent, error) {
	if roomID == "" {
		return nil, coreError(ErrCodeBadRequest, "room id is required")
	}
	if err := h.requireRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return h.publish(ctx, RoomEvent{
		Type:     MessageChat,
		RoomID:   roomID,
		SenderID: senderID,
		Content:  content,
	})
}

// Join adds the session's user to a room, creating the room if it does not
// exist. The session is subscribed before the JOIN event is broadcast, and
// stays subscribed when the user was already a member.
func (h *Hub) Join(ctx context.Context, s *Session, roomID, roomName, roomType string) (*RoomEvent, error) {
	if roomID == "" {
		return nil, coreError(ErrCodeBadRequest, "room id is required")
	}
	rt, err := store.ParseRoomType(roomType)
	if err != nil {
		return nil, coreError(ErrCodeBadRequest, err.Error())
	}
	user, err := h.resolveUser(ctx, s.UserID)
	if err != nil {
		return nil, err
	}

	wasAttached := h.registry.IsAttached(s.ID, roomID)
	if err := h.registry.Attach(s.ID, roomID, s.UserID); err != nil {
		return nil, fmt.Errorf("attach session: %w", err)
	}

	room, added, err := h.members.AddMember(ctx, roomID, s.UserID, roomName, rt)
	if err != nil {
		if !wasAttached {
			h.registry.Detach(s.ID, roomID)
		}
		return nil, err
	}
	if !added {
		return nil, coreErrorf(ErrCodeAlreadyMember, "already joined room %s", roomID)
	}

	h.log.Info().Str("room_id", room.ID).Str("user_id", s.UserID).Msg("user joined room")

	return h.publish(ctx, RoomEvent{
		Type:     MessageJoin,
		RoomID:   room.ID,
		SenderID: s.UserID,
		Content:  user.DisplayName + " joined",
	})
}

// Invite lets the room leader add recipientID to the room.
func (h *Hub) Invite(ctx context.Context, senderID, roomID, recipientID string) (*RoomEvent, error) {
	if recipientID == "" {
		return nil, ErrRecipientMissing
	}
	if roomID == "" {
		return nil, coreError(ErrCodeBadRequest, "room id is required")
	}
	room, err := h.directory.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.LeaderID != senderID {
		return nil, ErrNotLeader
	}
	sender, err := h.resolveUser(ctx, senderID)
	if err != nil {
		return nil, err
	}
	recipient, err := h.resolveUser(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	roomName, err := h.directory.DisplayName(ctx, room, recipientID)
	if err != nil {
		return nil, err
	}
	added, err := h.members.AddExistingMember(ctx, roomID, recipientID, &roomName)
	if err != nil {
		return nil, err
	}
	if !added {
		return nil, coreErrorf(ErrCodeAlreadyMember, "%s is already a member", recipient.DisplayName)
	}

	h.registry.AttachUser(recipientID, roomID)

	ev, err := h.publish(ctx, RoomEvent{
		Type:        MessageInvite,
		RoomID:      roomID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     sender.DisplayName + " invited " + recipient.DisplayName,
	})
	if err != nil {
		return nil, err
	}

	h.dispatcher.DeliverToUser(recipientID, Notice{
		Channel:  ChannelInvitations,
		Message:  sender.DisplayName + " invited you to " + roomName,
		RoomID:   roomID,
		RoomName: roomName,
		SenderID: senderID,
	})
	return ev, nil
}

// Kick lets the room leader remove recipientID from the room.
func (h *Hub) Kick(ctx context.Context, senderID, roomID, recipientID string) (*RoomEvent, error) {
	if recipientID == "" {
		return nil, ErrRecipientMissing
	}
	if recipientID == senderID {
		return nil, ErrSelfKickRejected
	}
	if roomID == "" {
		return nil, coreError(ErrCodeBadRequest, "room id is required")
	}
	room, err := h.directory.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.LeaderID != senderID {
		return nil, ErrNotLeader
	}

	removed, _, err := h.members.RemoveMember(ctx, roomID, recipientID, false)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, coreErrorf(ErrCodeNotAMember, "%s is not a member of this room", recipientID)
	}

	sender, err := h.resolveUser(ctx, senderID)
	if err != nil {
		sender = identity.User{ID: senderID, DisplayName: senderID}
	}
	roomName, err := h.directory.DisplayName(ctx, room, recipientID)
	if err != nil {
		roomName = room.Name
	}

	ev, err := h.publish(ctx, RoomEvent{
		Type:        MessageKick,
		RoomID:      roomID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     sender.DisplayName + " removed " + h.directory.nameOf(ctx, recipientID),
	})
	h.registry.DetachUser(recipientID, roomID)
	if err != nil {
		return nil, err
	}

	h.dispatcher.DeliverToUser(recipientID, Notice{
		Channel:  ChannelKicked,
		Message:  "you were removed from " + roomName,
		RoomID:   roomID,
		RoomName: roomName,
		SenderID: senderID,
	})

	if _, err := h.directory.DeleteIfEmpty(ctx, roomID); err != nil {
		return ev, err
	}
	return ev, nil
}

// Leave removes userID from the room. A leaving leader is succeeded by the
// earliest-joined remaining member, carried as the LEAVE recipient. The room
// is deleted once empty.
func (h *Hub) Leave(ctx context.Context, userID, roomID string) (*RoomEvent, error) {
	if roomID == "" {
		return nil, coreError(ErrCodeBadRequest, "room id is required")
	}
	removed, successor, err := h.members.RemoveMember(ctx, roomID, userID, true)
	if err != nil {
		return nil, err
	}
	if !removed {
		if err := h.requireRoom(ctx, roomID); err != nil {
			return nil, err
		}
		return nil, coreErrorf(ErrCodeNotAMember, "not a member of room %s", roomID)
	}

	ev, err := h.publish(ctx, RoomEvent{
		Type:        MessageLeave,
		RoomID:      roomID,
		SenderID:    userID,
		RecipientID: successor,
		Content:     h.directory.nameOf(ctx, userID) + " left",
	})
	h.registry.DetachUser(userID, roomID)
	if err != nil {
		return nil, err
	}

	deleted, err := h.directory.DeleteIfEmpty(ctx, roomID)
	if err != nil {
		return ev, err
	}

	logEv := h.log.Info().Str("room_id", roomID).Str("user_id", userID)
	if successor != "" {
		logEv = logEv.Str("new_leader_id", successor)
	}
	logEv.Bool("room_deleted", deleted).Msg("user left room")
	return ev, nil
}

// TransferLeadership hands the room from its leader to another member.
func (h *Hub) TransferLeadership(ctx context.Context, senderID, roomID, recipientID string) (*RoomEvent, error) {
	if recipientID == "" {
		return nil, ErrRecipientMissing
	}
	if roomID == "" {
		return nil, coreError(ErrCodeBadRequest, "room id is required")
	}
	room, err := h.directory.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.LeaderID != senderID {
		return nil, ErrNotLeader
	}
	if recipientID == senderID {
		return nil, coreError(ErrCodeBadRequest, "already the room leader")
	}
	member, err := h.members.IsMember(ctx, roomID, recipientID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, coreErrorf(ErrCodeNotAMember, "%s is not a member of this room", recipientID)
	}

	if err := h.directory.rooms.SetLeader(ctx, roomID, senderID, recipientID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotLeader
		}
		return nil, fmt.Errorf("set leader: %w", err)
	}

	return h.publish(ctx, RoomEvent{
		Type:        MessageLeader,
		RoomID:      roomID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     h.directory.nameOf(ctx, recipientID) + " now leads the room",
	})
}

// Rename changes the room name on behalf of a member.
func (h *Hub) Rename(ctx context.Context, userID, roomID, name string) error {
	return h.directory.Rename(ctx, roomID, userID, name)
}

// OpenRoom creates a room with creatorID as leader and adds participants.
// An empty roomID gets a generated one. In a two-person room each member
// sees the other's display name.
func (h *Hub) OpenRoom(ctx context.Context, creatorID, roomID, name, roomType string, participantIDs []string) (*store.Room, error) {
	rt, err := store.ParseRoomType(roomType)
	if err != nil {
		return nil, coreError(ErrCodeBadRequest, err.Error())
	}
	if roomID == "" {
		roomID = uuid.NewString()
	}
	name = strings.TrimSpace(name)

	seen := map[string]struct{}{creatorID: {}}
	users := make([]identity.User, 0, len(participantIDs)+1)
	creator, err := h.resolveUser(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	users = append(users, creator)
	for _, id := range participantIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		u, err := h.resolveUser(ctx, id)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	room, created, err := h.directory.EnsureRoom(ctx, roomID, name, rt, creatorID)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, coreErrorf(ErrCodeBadRequest, "room %s already exists", roomID)
	}

	for i, u := range users {
		snapshot := name
		if len(users) == 2 {
			snapshot = users[1-i].DisplayName
		}
		var snap *string
		if snapshot != "" {
			snap = &snapshot
		}
		if _, err := h.members.AddExistingMember(ctx, roomID, u.ID, snap); err != nil {
			return nil, err
		}
		h.registry.AttachUser(u.ID, roomID)
		if _, err := h.publish(ctx, RoomEvent{
			Type:     MessageJoin,
			RoomID:   roomID,
			SenderID: u.ID,
			Content:  u.DisplayName + " joined",
		}); err != nil {
			return nil, err
		}
	}

	h.log.Info().Str("room_id", roomID).Str("user_id", creatorID).Int("members", len(users)).Msg("room opened")
	return room, nil
}

// IsMember reports whether userID belongs to roomID.
func (h *Hub) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	return h.members.IsMember(ctx, roomID, userID)
}

// Participant is a room member as listed to clients.
type Participant struct {
	UserID      string
	DisplayName string
	IsLeader    bool
	JoinedAt    time.Time
}

// Participants lists the members of a room in join order.
func (h *Hub) Participants(ctx context.Context, roomID string) ([]Participant, error) {
	room, err := h.directory.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	members, err := h.members.MembersOf(ctx, roomID)
	if err != nil {
		return nil, err
	}
	out := make([]Participant, 0, len(members))
	for _, m := range members {
		out = append(out, Participant{
			UserID:      m.UserID,
			DisplayName: h.directory.nameOf(ctx, m.UserID),
			IsLeader:    m.UserID == room.LeaderID,
			JoinedAt:    m.JoinedAt,
		})
	}
	return out, nil
}

// RoomSummary is a room as listed for one of its members.
type RoomSummary struct {
	ID                string
	Name              string
	Type              store.RoomType
	LeaderID          string
	ParticipantsCount int
}

// ListRoomsForUser lists the rooms userID belongs to. Unnamed rooms use the
// member's snapshot, or a name computed from the other members.
func (h *Hub) ListRoomsForUser(ctx context.Context, userID string) ([]RoomSummary, error) {
	rooms, err := h.members.RoomsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]RoomSummary, 0, len(rooms))
	for _, ur := range rooms {
		name := ur.Room.Name
		if name == "" && ur.RoomName != nil {
			name = *ur.RoomName
		}
		if name == "" {
			if name, err = h.directory.DisplayName(ctx, &ur.Room, userID); err != nil {
				return nil, err
			}
		}
		out = append(out, RoomSummary{
			ID:                ur.Room.ID,
			Name:              name,
			Type:              ur.Room.Type,
			LeaderID:          ur.Room.LeaderID,
			ParticipantsCount: ur.MemberCount,
		})
	}
	return out, nil
}

// OneToOneRoom is a two-member room seen from one of its members.
type OneToOneRoom struct {
	RoomID      string
	PartnerID   string
	PartnerName string
}

// OneToOneRooms lists the rooms of userID that have exactly two members.
func (h *Hub) OneToOneRooms(ctx context.Context, userID string) ([]OneToOneRoom, error) {
	rooms, err := h.members.RoomsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []OneToOneRoom
	for _, ur := range rooms {
		if ur.MemberCount != 2 {
			continue
		}
		members, err := h.members.MembersOf(ctx, ur.Room.ID)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if m.UserID == userID {
				continue
			}
			out = append(out, OneToOneRoom{
				RoomID:      ur.Room.ID,
				PartnerID:   m.UserID,
				PartnerName: h.directory.nameOf(ctx, m.UserID),
			})
		}
	}
	return out, nil
}

// ListMessages returns the most recent limit events of a room, oldest first.
// A non-positive limit uses the configured history limit.
func (h *Hub) ListMessages(ctx context.Context, roomID string, limit int) ([]RoomEvent, error) {
	if limit <= 0 {
		limit = h.historyLimit
	}
	rows, err := h.messages.ListMessages(ctx, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]RoomEvent, 0, len(rows))
	for _, row := range rows {
		ev, err := roomEventFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// publish appends the message row and then broadcasts it.
func (h *Hub) publish(ctx context.Context, ev RoomEvent) (*RoomEvent, error) {
	ev.Timestamp = time.Now().UTC()
	row := rowFromRoomEvent(ev)
	if err := h.messages.SaveMessage(ctx, row); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	ev.ID = row.ID

	n := h.dispatcher.BroadcastToRoom(ev.RoomID, ev)
	h.log.Debug().
		Str("room_id", ev.RoomID).
		Str("user_id", ev.SenderID).
		Stringer("type", ev.Type).
		Int("delivered", n).
		Msg("room event published")
	return &ev, nil
}

func (h *Hub) requireRoom(ctx context.Context, roomID string) error {
	ok, err := h.directory.Exists(ctx, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return coreErrorf(ErrCodeRoomNotFound, "room %s not found", roomID)
	}
	return nil
}

func (h *Hub) resolveUser(ctx context.Context, userID string) (identity.User, error) {
	u, err := h.resolver.Resolve(ctx, userID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return identity.User{}, coreErrorf(ErrCodeUserNotFound, "user %s not found", userID)
		}
		return identity.User{}, fmt.Errorf("resolve user: %w", err)
	}
	return u, nil
}

func rowFromRoomEvent(ev RoomEvent) *store.Message {
	row := &store.Message{
		Type:      ev.Type.String(),
		RoomID:    ev.RoomID,
		SenderID:  ev.SenderID,
		CreatedAt: ev.Timestamp,
	}
	if ev.Content != "" {
		row.Content = &ev.Content
	}
	if ev.RecipientID != "" {
		row.RecipientID = &ev.RecipientID
	}
	return row
}

func roomEventFromRow(row *store.Message) (RoomEvent, error) {
	typ, err := ParseMessageType(row.Type)
	if err != nil {
		return RoomEvent{}, fmt.Errorf("message %d: %w", row.ID, err)
	}
	ev := RoomEvent{
		ID:        row.ID,
		Type:      typ,
		RoomID:    row.RoomID,
		SenderID:  row.SenderID,
		Timestamp: row.CreatedAt,
	}
	if row.Content != nil {
		ev.Content = *row.Content
	}
	if row.RecipientID != nil {
		ev.RecipientID = *row.RecipientID
	}
	return ev, nil
}
