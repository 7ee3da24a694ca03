package http

import (
	"encoding/json"
	"fmt"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

// inboundToCommand decodes an envelope. A non-nil *proto.Error is a client
// mistake to report back; the connection stays open.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	badData := func(err error) *proto.Error {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: fmt.Sprintf("invalid %s data: %v", inbound.Type, err)}
	}

	switch inbound.Type {
	case proto.InboundTypeSend:
		var data proto.SendData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, badData(err)
		}
		return &core.Command{Kind: core.CommandSend, RoomID: data.RoomID, Content: data.Content}, nil
	case proto.InboundTypeJoin:
		var data proto.JoinData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, badData(err)
		}
		return &core.Command{
			Kind:     core.CommandJoin,
			RoomID:   data.RoomID,
			RoomName: data.RoomName,
			RoomType: data.RoomType,
		}, nil
	case proto.InboundTypeLeave:
		var data proto.RoomData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, badData(err)
		}
		return &core.Command{Kind: core.CommandLeave, RoomID: data.RoomID}, nil
	case proto.InboundTypeInvite, proto.InboundTypeKick, proto.InboundTypeTransfer:
		var data proto.TargetData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, badData(err)
		}
		kind := core.CommandInvite
		switch inbound.Type {
		case proto.InboundTypeKick:
			kind = core.CommandKick
		case proto.InboundTypeTransfer:
			kind = core.CommandTransfer
		}
		return &core.Command{Kind: kind, RoomID: data.RoomID, RecipientID: data.RecipientUserID}, nil
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}
	}
}

func outboundFromEvent(event core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventRoom:
		ev := roomEventToProto(*event.Room)
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: ev.Type,
			Data:  ev,
		}
	case core.EventNotice:
		n := event.Notice
		return proto.Outbound{
			Type:    proto.OutboundTypeNotice,
			Channel: n.Channel.String(),
			Data: proto.Notice{
				Code:     n.Code,
				Message:  n.Message,
				RoomID:   n.RoomID,
				RoomName: n.RoomName,
				Sender:   n.SenderID,
			},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown event"}}
	}
}

func roomEventToProto(ev core.RoomEvent) proto.RoomEvent {
	return proto.RoomEvent{
		ID:              ev.ID,
		Type:            ev.Type.String(),
		RoomID:          ev.RoomID,
		SenderUserID:    ev.SenderID,
		Content:         ev.Content,
		RecipientUserID: ev.RecipientID,
		Timestamp:       ev.Timestamp.UnixMilli(),
	}
}
