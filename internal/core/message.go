package core

import (
	"time"

	"github.com/vovakirdan/groupchat-server/internal/store"
)

// Message is the domain model for a chat message.
type Message struct {
	ID        int64
	Username  string
	Content   string
	CreatedAt time.Time
}

func messageFromStore(m *store.Message) Message {
	return Message{
		ID:        m.ID,
		Username:  m.Username,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

// chronological converts newest-first store rows into oldest-first messages.
func chronological(rows []*store.Message) []Message {
	out := make([]Message, len(rows))
	for i, row := range rows {
		out[len(rows)-1-i] = messageFromStore(row)
	}
	return out
}
