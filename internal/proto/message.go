// Package proto defines the JSON envelopes exchanged over the WebSocket.
package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeSend     = "send"
	InboundTypeJoin     = "join"
	InboundTypeInvite   = "invite"
	InboundTypeKick     = "kick"
	InboundTypeLeave    = "leave"
	InboundTypeTransfer = "transfer"

	OutboundTypeEvent  = "event"
	OutboundTypeNotice = "notice"
	OutboundTypeError  = "error"
)

// SendData is a chat message from the client.
type SendData struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
}

// JoinData requests to join a room, creating it if absent.
type JoinData struct {
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName,omitempty"`
	RoomType string `json:"roomType,omitempty"`
}

// RoomData addresses a room without further arguments (leave).
type RoomData struct {
	RoomID string `json:"roomId"`
}

// TargetData addresses another user in a room (invite, kick, transfer).
type TargetData struct {
	RoomID          string `json:"roomId"`
	RecipientUserID string `json:"recipientUserId"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type    string `json:"type"`
	Event   string `json:"event,omitempty"`
	Channel string `json:"channel,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// RoomEvent is a room broadcast.
type RoomEvent struct {
	ID              int64  `json:"id,omitempty"`
	Type            string `json:"type"`
	RoomID          string `json:"roomId"`
	SenderUserID    string `json:"senderUserId"`
	Content         string `json:"content,omitempty"`
	RecipientUserID string `json:"recipientUserId,omitempty"`
	Timestamp       int64  `json:"timestamp"`
}

// Notice is a user-addressed payload on the errors, invitations or kicked channel.
type Notice struct {
	Code     string `json:"code,omitempty"`
	Message  string `json:"message"`
	RoomID   string `json:"roomId,omitempty"`
	RoomName string `json:"roomName,omitempty"`
	Sender   string `json:"sender,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
