package proto

import "time"

// Inbound is the frame a client sends over the socket.
type Inbound struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

const (
	InboundTypeMessage = "message"

	OutboundTypeHistory     = "history"
	OutboundTypeMessage     = "message"
	OutboundTypeSystem      = "system"
	OutboundTypeOnlineCount = "online_count"
)

// HistoryEntry is one message inside a history frame.
type HistoryEntry struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	Content   string  `json:"content"`
	CreatedAt *string `json:"created_at"`
}

// History lists recent messages, oldest first.
type History struct {
	Type     string         `json:"type"`
	Messages []HistoryEntry `json:"messages"`
}

// Message is a chat message fanned out to every client.
type Message struct {
	Type      string  `json:"type"`
	Username  string  `json:"username"`
	Content   string  `json:"content"`
	Timestamp *string `json:"timestamp"`
}

// System is a server notice. Timestamp is always null.
type System struct {
	Type      string  `json:"type"`
	Content   string  `json:"content"`
	Timestamp *string `json:"timestamp"`
}

// OnlineCount reports how many connections are live.
type OnlineCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Timestamp renders t as RFC 3339 in UTC, or nil for the zero time.
func Timestamp(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}
