package core

import (
	"errors"
	"fmt"
)

// Error codes for domain errors.
const (
	ErrCodeRoomNotFound     = "room_not_found"
	ErrCodeNotLeader        = "not_leader"
	ErrCodeAlreadyMember    = "already_member"
	ErrCodeNotAMember       = "not_a_member"
	ErrCodeSelfKickRejected = "self_kick_rejected"
	ErrCodeRecipientMissing = "recipient_missing"
	ErrCodeUserNotFound     = "user_not_found"
	ErrCodeBadRequest       = "bad_request"
	ErrCodeInternal         = "internal_error"
)

var (
	ErrRoomNotFound     = coreError(ErrCodeRoomNotFound, "room not found")
	ErrNotLeader        = coreError(ErrCodeNotLeader, "only the room leader can do that")
	ErrAlreadyMember    = coreError(ErrCodeAlreadyMember, "already a member of this room")
	ErrNotAMember       = coreError(ErrCodeNotAMember, "not a member of this room")
	ErrSelfKickRejected = coreError(ErrCodeSelfKickRejected, "you cannot kick yourself")
	ErrRecipientMissing = coreError(ErrCodeRecipientMissing, "recipient is required")
	ErrUserNotFound     = coreError(ErrCodeUserNotFound, "user not found")
	ErrBadRequest       = coreError(ErrCodeBadRequest, "bad request")
)

// CoreError wraps a code and human-readable message.
// Two CoreErrors match under errors.Is when their codes are equal.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// Is reports whether target is a CoreError with the same code.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	return ok && t.Code == e.Code
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

func coreErrorf(code, format string, args ...any) *CoreError {
	return &CoreError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrorCode returns the stable code carried by err, or ErrCodeInternal when
// err is not a domain error.
func ErrorCode(err error) string {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrCodeInternal
}
