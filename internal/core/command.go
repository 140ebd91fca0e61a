package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoin enters the chat under a display name.
	CommandJoin CommandKind = iota
	// CommandPost sends a chat message to every joined client.
	CommandPost
)

// Command represents an action requested by a client.
// The gateway normalizes inbound payloads before building one.
type Command struct {
	Kind     CommandKind
	Username string // CommandJoin
	Text     string // CommandPost
}
