package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrLeaderRemoval is returned when removing a room leader would leave
	// the remaining members without one.
	ErrLeaderRemoval = errors.New("leader cannot be removed while other members remain")
)

// User is the identity record consumed by the chat core.
type User struct {
	ID          string
	DisplayName string
	CreatedAt   time.Time
}

// RoomType defines different types of rooms.
type RoomType string

const (
	RoomTypeGroup    RoomType = "group"
	RoomTypeOneToOne RoomType = "one_to_one"
)

// ParseRoomType validates a room type tag. An empty tag yields the group type.
func ParseRoomType(s string) (RoomType, error) {
	switch RoomType(s) {
	case "", RoomTypeGroup:
		return RoomTypeGroup, nil
	case RoomTypeOneToOne:
		return RoomTypeOneToOne, nil
	default:
		return "", fmt.Errorf("unknown room type %q", s)
	}
}

// Room represents a chat room.
type Room struct {
	ID        string
	Name      string // empty for unnamed one-to-one rooms
	Type      RoomType
	LeaderID  string
	CreatedAt time.Time
}

// Membership represents a user's membership in a room.
type Membership struct {
	UserID   string
	RoomID   string
	RoomName *string // snapshot of the room name as seen by this member
	JoinedAt time.Time
}

// UserRoom is a room as listed for one of its members.
type UserRoom struct {
	Room        Room
	RoomName    *string
	JoinedAt    time.Time
	MemberCount int
}

// Message represents a persisted chat event.
type Message struct {
	ID          int64
	Type        string
	RoomID      string
	SenderID    string
	Content     *string
	RecipientID *string
	CreatedAt   time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// UpsertUser creates a user or updates its display name.
	UpsertUser(ctx context.Context, user *User) error

	// GetUser retrieves a user by ID. Returns ErrNotFound if absent.
	GetUser(ctx context.Context, id string) (*User, error)
}

// RoomStore handles room persistence.
type RoomStore interface {
	// EnsureRoom inserts room unless a room with the same ID exists and returns
	// the stored row. created reports whether this call inserted it.
	EnsureRoom(ctx context.Context, room *Room) (stored *Room, created bool, err error)

	// GetRoom retrieves a room by ID. Returns ErrNotFound if absent.
	GetRoom(ctx context.Context, id string) (*Room, error)

	// RoomExists checks whether a room row exists.
	RoomExists(ctx context.Context, id string) (bool, error)

	// RenameRoom updates the room name. Returns ErrNotFound if absent.
	RenameRoom(ctx context.Context, id, name string) error

	// SetLeader moves leadership from currentLeaderID to newLeaderID.
	// Returns ErrNotFound if the room is gone or currentLeaderID is no longer leader.
	SetLeader(ctx context.Context, roomID, currentLeaderID, newLeaderID string) error

	// DeleteRoomIfEmpty deletes the room iff it has no members.
	DeleteRoomIfEmpty(ctx context.Context, id string) (bool, error)
}

// MembershipStore handles the user/room relation.
type MembershipStore interface {
	// JoinRoom ensures room exists (inserting it with the given attributes if
	// absent) and inserts the membership in one transaction. added is false
	// when the membership already existed.
	JoinRoom(ctx context.Context, room *Room, m *Membership) (stored *Room, added bool, err error)

	// AddMember inserts the membership into an existing room.
	// Returns ErrNotFound if the room does not exist.
	AddMember(ctx context.Context, m *Membership) (added bool, err error)

	// RemoveMember deletes the membership. When the user leads the room and
	// other members remain, promote selects the earliest-joined remaining
	// member as leader; otherwise ErrLeaderRemoval is returned.
	RemoveMember(ctx context.Context, roomID, userID string, promote bool) (removed bool, newLeaderID string, err error)

	// IsMember checks if user is a member of the room.
	IsMember(ctx context.Context, roomID, userID string) (bool, error)

	// CountMembers returns the number of memberships of the room.
	CountMembers(ctx context.Context, roomID string) (int, error)

	// ListMembers lists the room's memberships ordered by join time.
	ListMembers(ctx context.Context, roomID string) ([]*Membership, error)

	// ListUserRooms lists rooms the user belongs to with live member counts.
	ListUserRooms(ctx context.Context, userID string) ([]*UserRoom, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage appends a message and sets its ID.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages returns the most recent limit messages of a room in
	// ascending time order.
	ListMessages(ctx context.Context, roomID string, limit int) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MembershipStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
