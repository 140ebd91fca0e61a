package core

import "time"

// Message is the domain model for a chat message. Immutable once created.
type Message struct {
	ID        string
	From      string
	Text      string
	CreatedAt time.Time
}
