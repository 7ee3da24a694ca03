package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// Memberships mutates and queries the user/room relation.
type Memberships struct {
	store store.MembershipStore
}

// NewMemberships constructs the membership service.
func NewMemberships(s store.MembershipStore) *Memberships {
	return &Memberships{store: s}
}

// AddMember ensures the room exists and adds userID in one transaction.
// added is false when the membership already existed.
func (m *Memberships) AddMember(ctx context.Context, roomID, userID, nameHint string, roomType store.RoomType) (*store.Room, bool, error) {
	var snapshot *string
	if nameHint != "" {
		snapshot = &nameHint
	}
	room, added, err := m.store.JoinRoom(ctx, newRoom(roomID, nameHint, roomType, userID), &store.Membership{
		UserID:   userID,
		RoomID:   roomID,
		RoomName: snapshot,
		JoinedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, false, fmt.Errorf("join room: %w", err)
	}
	return room, added, nil
}

// AddExistingMember adds userID to a room that must already exist.
func (m *Memberships) AddExistingMember(ctx context.Context, roomID, userID string, snapshot *string) (bool, error) {
	added, err := m.store.AddMember(ctx, &store.Membership{
		UserID:   userID,
		RoomID:   roomID,
		RoomName: snapshot,
		JoinedAt: time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, coreErrorf(ErrCodeRoomNotFound, "room %s not found", roomID)
		}
		return false, fmt.Errorf("add member: %w", err)
	}
	return added, nil
}

// RemoveMember deletes the membership. With promote set, a leaving leader
// hands the room to the earliest-joined remaining member, whose id is
// returned as successor.
func (m *Memberships) RemoveMember(ctx context.Context, roomID, userID string, promote bool) (removed bool, successor string, err error) {
	removed, successor, err = m.store.RemoveMember(ctx, roomID, userID, promote)
	if err != nil {
		if errors.Is(err, store.ErrLeaderRemoval) {
			return false, "", coreError(ErrCodeNotLeader, "the room leader cannot be removed")
		}
		return false, "", fmt.Errorf("remove member: %w", err)
	}
	return removed, successor, nil
}

// IsMember reports whether userID belongs to roomID.
func (m *Memberships) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	ok, err := m.store.IsMember(ctx, roomID, userID)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return ok, nil
}

// CountMembers returns the number of members of roomID.
func (m *Memberships) CountMembers(ctx context.Context, roomID string) (int, error) {
	n, err := m.store.CountMembers(ctx, roomID)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return n, nil
}

// MembersOf lists memberships of roomID in join order.
func (m *Memberships) MembersOf(ctx context.Context, roomID string) ([]*store.Membership, error) {
	members, err := m.store.ListMembers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// RoomsOf lists the rooms userID belongs to.
func (m *Memberships) RoomsOf(ctx context.Context, userID string) ([]*store.UserRoom, error) {
	rooms, err := m.store.ListUserRooms(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user rooms: %w", err)
	}
	return rooms, nil
}
