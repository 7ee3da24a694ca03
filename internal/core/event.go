package core

import (
	"fmt"
	"time"
)

// MessageType tags a room event and its persisted message row.
type MessageType int

const (
	// MessageChat is a user chat message.
	MessageChat MessageType = iota
	// MessageJoin records a user joining a room.
	MessageJoin
	// MessageLeave records a user leaving a room. The recipient, if set, is
	// the member promoted to leader.
	MessageLeave
	// MessageInvite records the leader adding the recipient.
	MessageInvite
	// MessageKick records the leader removing the recipient.
	MessageKick
	// MessageLeader records leadership moving to the recipient.
	MessageLeader
)

var messageTypeNames = [...]string{"CHAT", "JOIN", "LEAVE", "INVITE", "KICK", "LEADER"}

func (t MessageType) String() string {
	if int(t) < 0 || int(t) >= len(messageTypeNames) {
		return fmt.Sprintf("MessageType(%d)", int(t))
	}
	return messageTypeNames[t]
}

// ParseMessageType converts a stored tag back into a MessageType.
func ParseMessageType(s string) (MessageType, error) {
	for i, name := range messageTypeNames {
		if name == s {
			return MessageType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown message type %q", s)
}

// Channel names a user-addressed side channel.
type Channel int

const (
	// ChannelErrors carries domain errors back to the sender.
	ChannelErrors Channel = iota
	// ChannelInvitations tells a user they were added to a room.
	ChannelInvitations
	// ChannelKicked tells a user they were removed from a room.
	ChannelKicked
)

var channelNames = [...]string{"errors", "invitations", "kicked"}

func (c Channel) String() string {
	if int(c) < 0 || int(c) >= len(channelNames) {
		return "unknown"
	}
	return channelNames[c]
}

// EventKind distinguishes room broadcasts from direct notices.
type EventKind int

const (
	// EventRoom is a broadcast to every session subscribed to a room.
	EventRoom EventKind = iota
	// EventNotice is delivered to the sessions of a single user.
	EventNotice
)

// RoomEvent is a room-scoped event as broadcast and persisted.
type RoomEvent struct {
	ID          int64
	Type        MessageType
	RoomID      string
	SenderID    string
	Content     string
	RecipientID string
	Timestamp   time.Time
}

// Notice is a direct, user-addressed payload.
type Notice struct {
	Channel  Channel
	Code     string // errors channel only
	Message  string
	RoomID   string
	RoomName string
	SenderID string
}

// Event is sent to sessions to describe what happened in the system.
type Event struct {
	Kind   EventKind
	Room   *RoomEvent
	Notice *Notice
}
