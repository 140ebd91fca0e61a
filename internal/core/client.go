package core

// DefaultUsername is used when neither the join nor the session supplies a name.
const DefaultUsername = "User"

// DefaultSendBuffer is the event buffer size used when none is given.
const DefaultSendBuffer = 64

// Client is a real-time connection as seen by the core layer.
// The hub goroutine owns name and joined; other goroutines only use the channels.
type Client struct {
	ID string
	// SessionUser is the username of the session the connection was opened with, if any.
	SessionUser string
	Commands    chan *Command
	Events      chan *Event

	name   string
	joined bool
	done   chan struct{}
}

// NewClient constructs a client with initialized channels.
func NewClient(id, sessionUser string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Client{
		ID:          id,
		SessionUser: sessionUser,
		Commands:    make(chan *Command, 8),
		Events:      make(chan *Event, buffer),
		done:        make(chan struct{}),
	}
}

// Done is closed once the hub has dropped the client. Events is closed at the same time.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
