package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSend delivers a chat message to room members.
	CommandSend CommandKind = iota
	// CommandJoin adds the sender to a room, creating it if absent.
	CommandJoin
	// CommandInvite adds another user to a room led by the sender.
	CommandInvite
	// CommandKick removes another user from a room led by the sender.
	CommandKick
	// CommandLeave removes the sender from a room.
	CommandLeave
	// CommandTransfer hands room leadership to another member.
	CommandTransfer
)

var commandKindNames = [...]string{"send", "join", "invite", "kick", "leave", "transfer"}

func (k CommandKind) String() string {
	if int(k) < 0 || int(k) >= len(commandKindNames) {
		return "unknown"
	}
	return commandKindNames[k]
}

// Command represents an action requested by a client session.
type Command struct {
	Kind        CommandKind
	RoomID      string
	Content     string
	RecipientID string
	RoomName    string
	RoomType    string
}
