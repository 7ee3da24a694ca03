package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/identity"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// DefaultRoomName is the name given to a group room created without one.
func DefaultRoomName(roomID string) string {
	return "Room " + roomID
}

// Directory is the room service: creation, leader checks, existence, and
// deletion of empty rooms.
type Directory struct {
	rooms    store.RoomStore
	members  store.MembershipStore
	resolver identity.Resolver
}

// NewDirectory constructs a directory.
func NewDirectory(rooms store.RoomStore, members store.MembershipStore, resolver identity.Resolver) *Directory {
	return &Directory{rooms: rooms, members: members, resolver: resolver}
}

// newRoom builds a room row with defaults applied.
func newRoom(roomID, name string, roomType store.RoomType, leaderID string) *store.Room {
	if roomType == "" {
		roomType = store.RoomTypeGroup
	}
	if name == "" && roomType == store.RoomTypeGroup {
		name = DefaultRoomName(roomID)
	}
	return &store.Room{
		ID:        roomID,
		Name:      name,
		Type:      roomType,
		LeaderID:  leaderID,
		CreatedAt: time.Now().UTC(),
	}
}

// EnsureRoom returns the room, creating it with userID as leader if absent.
func (d *Directory) EnsureRoom(ctx context.Context, roomID, name string, roomType store.RoomType, userID string) (*store.Room, bool, error) {
	room, created, err := d.rooms.EnsureRoom(ctx, newRoom(roomID, name, roomType, userID))
	if err != nil {
		return nil, false, fmt.Errorf("ensure room: %w", err)
	}
	return room, created, nil
}

// Get returns the room or ErrRoomNotFound.
func (d *Directory) Get(ctx context.Context, roomID string) (*store.Room, error) {
	room, err := d.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, coreErrorf(ErrCodeRoomNotFound, "room %s not found", roomID)
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

// Exists reports whether the room exists.
func (d *Directory) Exists(ctx context.Context, roomID string) (bool, error) {
	ok, err := d.rooms.RoomExists(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("check room: %w", err)
	}
	return ok, nil
}

// IsLeader reports whether userID leads roomID. False if the room is absent.
func (d *Directory) IsLeader(ctx context.Context, roomID, userID string) (bool, error) {
	room, err := d.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get room: %w", err)
	}
	return room.LeaderID == userID, nil
}

// DeleteIfEmpty deletes the room if no memberships remain.
func (d *Directory) DeleteIfEmpty(ctx context.Context, roomID string) (bool, error) {
	deleted, err := d.rooms.DeleteRoomIfEmpty(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("delete empty room: %w", err)
	}
	return deleted, nil
}

// Rename sets a new room name. Any member may rename.
func (d *Directory) Rename(ctx context.Context, roomID, userID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return coreError(ErrCodeBadRequest, "room name is required")
	}
	if _, err := d.Get(ctx, roomID); err != nil {
		return err
	}
	member, err := d.members.IsMember(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return ErrNotAMember
	}
	if err := d.rooms.RenameRoom(ctx, roomID, name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return coreErrorf(ErrCodeRoomNotFound, "room %s not found", roomID)
		}
		return fmt.Errorf("rename room: %w", err)
	}
	return nil
}

// DisplayName returns the persisted room name, or for unnamed rooms the
// comma-joined display names of the members other than viewerID.
// The computed name is never persisted.
func (d *Directory) DisplayName(ctx context.Context, room *store.Room, viewerID string) (string, error) {
	if room.Name != "" {
		return room.Name, nil
	}
	members, err := d.members.ListMembers(ctx, room.ID)
	if err != nil {
		return "", fmt.Errorf("list members: %w", err)
	}
	names := make([]string, 0, len(members))
	for _, m := range members {
		if m.UserID == viewerID {
			continue
		}
		names = append(names, d.nameOf(ctx, m.UserID))
	}
	if len(names) == 0 {
		return DefaultRoomName(room.ID), nil
	}
	return strings.Join(names, ", "), nil
}

// nameOf resolves a display name, falling back to the id.
func (d *Directory) nameOf(ctx context.Context, userID string) string {
	u, err := d.resolver.Resolve(ctx, userID)
	if err != nil || u.DisplayName == "" {
		return userID
	}
	return u.DisplayName
}
