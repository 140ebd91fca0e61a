package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventInit delivers the history snapshot once, on join.
	EventInit EventKind = iota
	// EventMessage notifies joined clients about a new chat message.
	EventMessage
	// EventAnnouncement delivers the current announcement to every connected client.
	EventAnnouncement
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind         EventKind
	Message      Message   // EventMessage
	Messages     []Message // EventInit, oldest first
	Announcement string    // EventAnnouncement
}
