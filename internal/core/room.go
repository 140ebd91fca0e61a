package core

// Room is the set of connected clients. Only the hub goroutine touches it.
type Room struct {
	clients map[*Client]struct{}
}

// NewRoom constructs a room with no clients.
func NewRoom() *Room {
	return &Room{
		clients: make(map[*Client]struct{}),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// Has reports whether c is in the room.
func (r *Room) Has(c *Client) bool {
	_, ok := r.clients[c]
	return ok
}

// Broadcast offers an event to every client accepted by filter (all clients when filter is nil)
// and returns the clients whose buffers were full.
func (r *Room) Broadcast(event *Event, filter func(*Client) bool) []*Client {
	var slow []*Client
	for client := range r.clients {
		if filter != nil && !filter(client) {
			continue
		}
		select {
		case client.Events <- event:
		default:
			slow = append(slow, client)
		}
	}
	return slow
}

// Clients returns a copy of the member list.
func (r *Room) Clients() []*Client {
	out := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Len returns the number of clients.
func (r *Room) Len() int {
	return len(r.clients)
}
