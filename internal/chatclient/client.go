// Package chatclient redeems a key over HTTP and opens the chat socket with the
// resulting session cookie.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/keyroom-server/internal/proto"
)

// ErrInvalidKey is returned when the server rejects the key.
var ErrInvalidKey = errors.New("invalid key")

// Session is an authenticated browser-equivalent session.
type Session struct {
	BaseURL  string
	Username string
	Cookie   *http.Cookie
}

type verifyRequest struct {
	Key      string `json:"key"`
	Username string `json:"username"`
}

type verifyResponse struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// Verify redeems key at baseURL and returns the session it started.
func Verify(ctx context.Context, hc *http.Client, baseURL, key, username string) (*Session, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	body, err := json.Marshal(verifyRequest{Key: key, Username: username})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	defer resp.Body.Close()

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	if !out.Success {
		if out.Message == "Invalid key" {
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("verify: status %d: %s", resp.StatusCode, out.Message)
	}

	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return nil, errors.New("verify: server set no session cookie")
	}
	return &Session{BaseURL: baseURL, Username: out.Username, Cookie: cookies[0]}, nil
}

// SocketURL maps an http(s) base URL onto the ws(s) chat endpoint.
func SocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// Dial opens the chat socket carrying the session cookie.
func (s *Session) Dial(ctx context.Context) (*websocket.Conn, error) {
	wsURL, err := SocketURL(s.BaseURL)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Cookie", s.Cookie.Name+"="+s.Cookie.Value)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return conn, nil
}

// Join announces username on conn.
func Join(ctx context.Context, conn *websocket.Conn, username string) error {
	return send(ctx, conn, proto.InboundTypeJoin, proto.JoinData{Username: username})
}

// Post sends one chat message.
func Post(ctx context.Context, conn *websocket.Conn, text string) error {
	return send(ctx, conn, proto.InboundTypeMsg, proto.MsgData{Text: text})
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	return wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload})
}

// Frame is one decoded server frame.
type Frame struct {
	Type         string
	Event        string
	Messages     []proto.ChatMessage // init
	Message      proto.ChatMessage   // message
	Announcement string              // announcement
	Error        *proto.Error
}

type rawFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// Read blocks for the next frame.
func Read(ctx context.Context, conn *websocket.Conn) (Frame, error) {
	var raw rawFrame
	if err := wsjson.Read(ctx, conn, &raw); err != nil {
		return Frame{}, err
	}

	f := Frame{Type: raw.Type, Event: raw.Event, Error: raw.Error}
	if raw.Type != proto.OutboundTypeEvent {
		return f, nil
	}

	var err error
	switch raw.Event {
	case proto.EventInit:
		err = json.Unmarshal(raw.Data, &f.Messages)
	case proto.EventMessage:
		err = json.Unmarshal(raw.Data, &f.Message)
	case proto.EventAnnouncement:
		var a proto.AnnouncementData
		err = json.Unmarshal(raw.Data, &a)
		f.Announcement = a.Text
	}
	if err != nil {
		return f, fmt.Errorf("decode %s: %w", raw.Event, err)
	}
	return f, nil
}
