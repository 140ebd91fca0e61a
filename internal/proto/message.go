package proto

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoin = "join"
	InboundTypeMsg  = "message"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventInit         = "init"
	EventMessage      = "message"
	EventAnnouncement = "announcement"
)

// JoinData announces the display name for this connection.
type JoinData struct {
	Username string `json:"username"`
}

// MsgData is a chat message from the client. On the wire it is either a bare
// string or an object with a text field. User is accepted and ignored: the
// sender name always comes from the join.
type MsgData struct {
	Text string `json:"text"`
	User string `json:"user,omitempty"`
}

var errBadMsgData = errors.New("message data must be a string or an object")

// UnmarshalJSON accepts both "hello" and {"text":"hello"}.
func (m *MsgData) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = MsgData{}
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*m = MsgData{Text: s}
		return nil
	case '{':
		type plain MsgData
		var p plain
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		*m = MsgData(p)
		return nil
	default:
		return errBadMsgData
	}
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// ChatMessage is one entry of the chat history.
type ChatMessage struct {
	ID   string `json:"id"`
	User string `json:"user"`
	Text string `json:"text"`
	Time string `json:"time"`
	TS   int64  `json:"ts"`
}

// AnnouncementData carries the current announcement text.
type AnnouncementData struct {
	Text string `json:"text"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
