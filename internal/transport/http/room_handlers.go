package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// RoomHandlers provides HTTP handlers for room endpoints.
type RoomHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(hub *core.Hub, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		hub: hub,
		log: logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	RoomID         string   `json:"roomId"`
	Name           string   `json:"name" binding:"max=64"`
	Type           string   `json:"type"`
	ParticipantIDs []string `json:"participantIds"`
}

// RoomResponse represents a created room.
type RoomResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	LeaderID  string `json:"leaderId"`
	CreatedAt string `json:"createdAt"`
}

// RoomSummaryResponse represents a room in the caller's room list.
type RoomSummaryResponse struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Type              string `json:"type"`
	LeaderID          string `json:"leaderId"`
	ParticipantsCount int    `json:"participantsCount"`
}

// OneToOneRoomResponse represents a two-member room.
type OneToOneRoomResponse struct {
	RoomID      string `json:"roomId"`
	PartnerID   string `json:"partnerId"`
	PartnerName string `json:"partnerName"`
}

// ParticipantResponse represents a room member.
type ParticipantResponse struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	IsLeader    bool   `json:"isLeader"`
	JoinedAt    string `json:"joinedAt"`
}

// RenameRoomRequest represents the rename request body.
type RenameRoomRequest struct {
	Name string `json:"name" binding:"required,min=1,max=64"`
}

// CreateRoom handles room creation with several participants.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	uid, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
		return
	}

	room, err := h.hub.OpenRoom(c.Request.Context(), uid, req.RoomID, req.Name, req.Type, req.ParticipantIDs)
	if err != nil {
		h.fail(c, err, "failed to create room")
		return
	}

	c.JSON(http.StatusCreated, RoomResponse{
		ID:        room.ID,
		Name:      room.Name,
		Type:      string(room.Type),
		LeaderID:  room.LeaderID,
		CreatedAt: room.CreatedAt.Format(time.RFC3339),
	})
}

// ListRooms lists the caller's rooms.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	uid, ok := h.requireUser(c)
	if !ok {
		return
	}

	rooms, err := h.hub.ListRoomsForUser(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, err, "failed to list rooms")
		return
	}

	response := make([]RoomSummaryResponse, 0, len(rooms))
	for _, r := range rooms {
		response = append(response, RoomSummaryResponse{
			ID:                r.ID,
			Name:              r.Name,
			Type:              string(r.Type),
			LeaderID:          r.LeaderID,
			ParticipantsCount: r.ParticipantsCount,
		})
	}

	h.log.Debug().Str("user_id", uid).Int("room_count", len(rooms)).Msg("rooms listed")
	c.JSON(http.StatusOK, response)
}

// OneToOneRooms lists the caller's two-member rooms.
// GET /api/rooms/one-to-one
func (h *RoomHandlers) OneToOneRooms(c *gin.Context) {
	uid, ok := h.requireUser(c)
	if !ok {
		return
	}

	rooms, err := h.hub.OneToOneRooms(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, err, "failed to list one-to-one rooms")
		return
	}

	response := make([]OneToOneRoomResponse, 0, len(rooms))
	for _, r := range rooms {
		response = append(response, OneToOneRoomResponse{
			RoomID:      r.RoomID,
			PartnerID:   r.PartnerID,
			PartnerName: r.PartnerName,
		})
	}
	c.JSON(http.StatusOK, response)
}

// ListMessages returns recent room history, oldest first. Members only.
// GET /api/rooms/:id/messages?limit=N
func (h *RoomHandlers) ListMessages(c *gin.Context) {
	uid, ok := h.requireMember(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit", Code: core.ErrCodeBadRequest})
			return
		}
		limit = n
	}

	roomID := c.Param("id")
	events, err := h.hub.ListMessages(c.Request.Context(), roomID, limit)
	if err != nil {
		h.fail(c, err, "failed to list messages")
		return
	}

	response := make([]proto.RoomEvent, 0, len(events))
	for _, ev := range events {
		response = append(response, roomEventToProto(ev))
	}

	h.log.Debug().Str("user_id", uid).Str("room_id", roomID).Int("count", len(events)).Msg("messages listed")
	c.JSON(http.StatusOK, response)
}

// ListMembers lists room members with their display names.
// GET /api/rooms/:id/members
func (h *RoomHandlers) ListMembers(c *gin.Context) {
	if _, ok := h.requireMember(c); !ok {
		return
	}

	participants, err := h.hub.Participants(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to list members")
		return
	}

	response := make([]ParticipantResponse, 0, len(participants))
	for _, p := range participants {
		response = append(response, ParticipantResponse{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			IsLeader:    p.IsLeader,
			JoinedAt:    p.JoinedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, response)
}

// RenameRoom renames a room on behalf of a member.
// PUT /api/rooms/:id/name
func (h *RoomHandlers) RenameRoom(c *gin.Context) {
	uid, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req RenameRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
		return
	}

	if err := h.hub.Rename(c.Request.Context(), uid, c.Param("id"), req.Name); err != nil {
		h.fail(c, err, "failed to rename room")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RoomHandlers) requireUser(c *gin.Context) (string, bool) {
	uid, ok := userIDFrom(c)
	if !ok {
		h.log.Error().Msg("user_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return "", false
	}
	return uid, true
}

func (h *RoomHandlers) requireMember(c *gin.Context) (string, bool) {
	uid, ok := h.requireUser(c)
	if !ok {
		return "", false
	}
	member, err := h.hub.IsMember(c.Request.Context(), c.Param("id"), uid)
	if err != nil {
		h.fail(c, err, "failed to check membership")
		return "", false
	}
	if !member {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a member of this room", Code: core.ErrCodeNotAMember})
		return "", false
	}
	return uid, true
}

// fail writes err as a JSON error with a status derived from its code.
func (h *RoomHandlers) fail(c *gin.Context, err error, msg string) {
	code := core.ErrorCode(err)
	status := statusForCode(code)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
		c.JSON(status, ErrorResponse{Error: "internal server error", Code: code})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func statusForCode(code string) int {
	switch code {
	case core.ErrCodeRoomNotFound, core.ErrCodeUserNotFound:
		return http.StatusNotFound
	case core.ErrCodeNotLeader, core.ErrCodeNotAMember:
		return http.StatusForbidden
	case core.ErrCodeAlreadyMember:
		return http.StatusConflict
	case core.ErrCodeBadRequest, core.ErrCodeRecipientMissing, core.ErrCodeSelfKickRejected:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
