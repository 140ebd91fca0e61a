package http

import (
	"encoding/json"

	"github.com/vovakirdan/keyroom-server/internal/core"
	"github.com/vovakirdan/keyroom-server/internal/proto"
)

// clockFormat renders a message time as local hours and minutes.
const clockFormat = "15:04"

// inboundToCommand maps a client frame onto a hub command.
// A non-nil *proto.Error is reported back to the client and the connection stays open.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if len(inbound.Data) > 0 {
			if err := json.Unmarshal(inbound.Data, &join); err != nil {
				return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid join payload"}
			}
		}
		return &core.Command{Kind: core.CommandJoin, Username: join.Username}, nil
	case proto.InboundTypeMsg:
		var msg proto.MsgData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid message payload"}
		}
		return &core.Command{Kind: core.CommandPost, Text: msg.Text}, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeUnknownType, Msg: "unknown message type"}
	}
}

func chatMessage(msg core.Message) proto.ChatMessage {
	return proto.ChatMessage{
		ID:   msg.ID,
		User: msg.From,
		Text: msg.Text,
		Time: msg.CreatedAt.Local().Format(clockFormat),
		TS:   msg.CreatedAt.Unix(),
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventInit:
		messages := make([]proto.ChatMessage, 0, len(event.Messages))
		for _, msg := range event.Messages {
			messages = append(messages, chatMessage(msg))
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventInit,
			Data:  messages,
		}
	case core.EventMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessage,
			Data:  chatMessage(event.Message),
		}
	case core.EventAnnouncement:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventAnnouncement,
			Data:  proto.AnnouncementData{Text: event.Announcement},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func errorFrame(e *proto.Error) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeError, Error: e}
}
