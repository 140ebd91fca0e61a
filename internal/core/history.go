package core

// DefaultHistoryLimit is the number of messages kept for late joiners.
const DefaultHistoryLimit = 200

// History is a fixed-capacity ring of the most recent messages.
// It is not safe for concurrent use; the hub goroutine owns it.
type History struct {
	buf  []Message
	head int // index of the oldest message
	size int
}

// NewHistory returns an empty ring holding at most limit messages.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{buf: make([]Message, limit)}
}

// Append adds msg, evicting the oldest message when full.
func (h *History) Append(msg Message) {
	if h.size < len(h.buf) {
		h.buf[(h.head+h.size)%len(h.buf)] = msg
		h.size++
		return
	}
	h.buf[h.head] = msg
	h.head = (h.head + 1) % len(h.buf)
}

// Snapshot copies the messages oldest first.
func (h *History) Snapshot() []Message {
	out := make([]Message, h.size)
	for i := range h.size {
		out[i] = h.buf[(h.head+i)%len(h.buf)]
	}
	return out
}

// Len returns the number of stored messages.
func (h *History) Len() int {
	return h.size
}

// Cap returns the ring capacity.
func (h *History) Cap() int {
	return len(h.buf)
}
