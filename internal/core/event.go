package core

import "fmt"

// EnvelopeKind tags what an outbound envelope carries.
type EnvelopeKind int

const (
	// EnvelopeHistory delivers recent messages to a client that just connected.
	EnvelopeHistory EnvelopeKind = iota
	// EnvelopeMessage carries one persisted chat message.
	EnvelopeMessage
	// EnvelopeSystem carries a free-text notice such as a join or leave.
	EnvelopeSystem
	// EnvelopeOnlineCount carries the number of live sessions.
	EnvelopeOnlineCount
)

func (k EnvelopeKind) String() string {
	switch k {
	case EnvelopeHistory:
		return "history"
	case EnvelopeMessage:
		return "message"
	case EnvelopeSystem:
		return "system"
	case EnvelopeOnlineCount:
		return "online_count"
	default:
		return fmt.Sprintf("envelope(%d)", int(k))
	}
}

// Envelope is sent to clients to describe what happened in the chat.
// Only the fields belonging to Kind are meaningful.
type Envelope struct {
	Kind     EnvelopeKind
	Message  Message   // EnvelopeMessage
	Messages []Message // EnvelopeHistory, oldest first
	Text     string    // EnvelopeSystem
	Count    int       // EnvelopeOnlineCount
}

// EncodeFunc serializes an envelope into a single wire frame.
type EncodeFunc func(Envelope) ([]byte, error)

// HistoryEnvelope wraps messages that must already be oldest first.
func HistoryEnvelope(messages []Message) Envelope {
	if messages == nil {
		messages = []Message{}
	}
	return Envelope{Kind: EnvelopeHistory, Messages: messages}
}

// MessageEnvelope wraps a persisted chat message.
func MessageEnvelope(msg Message) Envelope {
	return Envelope{Kind: EnvelopeMessage, Message: msg}
}

// SystemEnvelope wraps a notice.
func SystemEnvelope(text string) Envelope {
	return Envelope{Kind: EnvelopeSystem, Text: text}
}

// OnlineCountEnvelope wraps the number of live sessions.
func OnlineCountEnvelope(count int) Envelope {
	return Envelope{Kind: EnvelopeOnlineCount, Count: count}
}
