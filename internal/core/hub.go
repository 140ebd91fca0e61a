package core

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/keyroom-server/internal/metrics"
	"github.com/vovakirdan/keyroom-server/internal/utils"
)

// DefaultMaxTextLength caps a chat message, in characters.
const DefaultMaxTextLength = 2000

// AnnouncementSource provides the announcement shown to newly connected clients.
type AnnouncementSource interface {
	Current() string
}

type envelope struct {
	client *Client
	cmd    *Command
}

// Hub is the chat broadcast engine. A single Run goroutine owns the client set
// and the history ring, so messages are broadcast in the order the hub accepts them.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	inbox      chan envelope
	announce   chan string
	done       chan struct{}

	room    *Room
	history *History
	source  AnnouncementSource
	// announcement is the last text the hub delivered; new clients get this one,
	// so a broadcast in flight reaches them exactly once.
	announcement string

	maxText int
	now     func() time.Time
	newID   func() string
	log     *zerolog.Logger
	metrics *metrics.Metrics
}

// Option configures a Hub.
type Option func(*Hub)

// WithHistoryLimit bounds the history ring.
func WithHistoryLimit(n int) Option {
	return func(h *Hub) { h.history = NewHistory(n) }
}

// WithMaxTextLength caps message text, in characters.
func WithMaxTextLength(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.maxText = n
		}
	}
}

// WithLogger sets the hub logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(h *Hub) { h.log = logger }
}

// WithMetrics attaches Prometheus counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithClock overrides time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// WithIDGenerator overrides message id generation.
func WithIDGenerator(gen func() string) Option {
	return func(h *Hub) { h.newID = gen }
}

// NewHub creates a new chat hub instance.
func NewHub(opts ...Option) *Hub {
	nop := zerolog.Nop()
	h := &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbox:      make(chan envelope, 64),
		announce:   make(chan string),
		done:       make(chan struct{}),
		room:       NewRoom(),
		history:    NewHistory(DefaultHistoryLimit),
		maxText:    DefaultMaxTextLength,
		now:        time.Now,
		newID:      utils.NewID,
		log:        &nop,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetAnnouncementSource must be called before Run. The source is read once
// when Run starts; later changes arrive through BroadcastAnnouncement.
func (h *Hub) SetAnnouncementSource(src AnnouncementSource) {
	h.source = src
}

// RegisterClient adds a connection to the broadcast set.
func (h *Hub) RegisterClient(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// UnregisterClient removes a connection. Peers are not notified.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// BroadcastAnnouncement pushes text to every connected client, joined or not.
func (h *Hub) BroadcastAnnouncement(text string) error {
	select {
	case h.announce <- text:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Run processes registrations, commands and announcements until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	if h.source != nil {
		h.announcement = h.source.Current()
	}

	for {
		select {
		case c := <-h.register:
			h.add(ctx, c)
		case c := <-h.unregister:
			h.remove(c)
		case env := <-h.inbox:
			if !h.room.Has(env.client) {
				continue
			}
			h.handle(env.client, env.cmd)
		case text := <-h.announce:
			h.announcement = text
			h.fanOut(&Event{Kind: EventAnnouncement, Announcement: text}, nil)
		case <-ctx.Done():
			for _, c := range h.room.Clients() {
				h.remove(c)
			}
			return
		}
	}
}

func (h *Hub) add(ctx context.Context, c *Client) {
	if !h.room.AddClient(c) {
		return
	}
	h.metrics.ClientConnected()
	h.log.Debug().Str("client_id", c.ID).Int("clients", h.room.Len()).Msg("client connected")

	if h.announcement != "" {
		h.deliver(c, &Event{Kind: EventAnnouncement, Announcement: h.announcement})
	}

	go h.pump(ctx, c)
}

func (h *Hub) remove(c *Client) {
	if !h.room.RemoveClient(c) {
		return
	}
	close(c.done)
	close(c.Events)
	h.metrics.ClientDisconnected()
	h.log.Debug().Str("client_id", c.ID).Int("clients", h.room.Len()).Msg("client disconnected")
}

// pump forwards a client's commands into the hub inbox, preserving their order.
func (h *Hub) pump(ctx context.Context, c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			select {
			case h.inbox <- envelope{client: c, cmd: cmd}:
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handle(c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandJoin:
		h.join(c, cmd.Username)
	case CommandPost:
		h.post(c, cmd.Text)
	default:
		h.log.Debug().Str("client_id", c.ID).Int("kind", int(cmd.Kind)).Msg("unknown command ignored")
	}
}

func (h *Hub) join(c *Client, username string) {
	if c.joined {
		h.log.Debug().Str("client_id", c.ID).Msg("repeated join ignored")
		return
	}

	name := strings.TrimSpace(username)
	if name == "" {
		name = strings.TrimSpace(c.SessionUser)
	}
	if name == "" {
		name = DefaultUsername
	}
	c.name = name
	c.joined = true

	h.log.Info().Str("client_id", c.ID).Str("username", name).Msg("client joined")
	h.deliver(c, &Event{Kind: EventInit, Messages: h.history.Snapshot()})
}

func (h *Hub) post(c *Client, text string) {
	if !c.joined {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	msg := Message{
		ID:        h.newID(),
		From:      c.name,
		Text:      truncateRunes(text, h.maxText),
		CreatedAt: h.now(),
	}
	h.history.Append(msg)
	h.metrics.MessageBroadcast()

	h.fanOut(&Event{Kind: EventMessage, Message: msg}, func(cl *Client) bool { return cl.joined })
}

func (h *Hub) fanOut(event *Event, filter func(*Client) bool) {
	for _, slow := range h.room.Broadcast(event, filter) {
		h.dropSlow(slow)
	}
}

func (h *Hub) deliver(c *Client, event *Event) {
	select {
	case c.Events <- event:
	default:
		h.dropSlow(c)
	}
}

func (h *Hub) dropSlow(c *Client) {
	h.log.Warn().Str("client_id", c.ID).Msg("client send buffer full, disconnecting")
	h.metrics.SlowClientDropped()
	h.remove(c)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
