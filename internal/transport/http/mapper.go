package http

import (
	"encoding/json"
	"fmt"

	"github.com/vovakirdan/groupchat-server/internal/core"
	"github.com/vovakirdan/groupchat-server/internal/proto"
)

// EncodeEnvelope renders a core envelope as one JSON text frame.
func EncodeEnvelope(env core.Envelope) ([]byte, error) {
	return json.Marshal(outboundFromEnvelope(env))
}

func outboundFromEnvelope(env core.Envelope) any {
	switch env.Kind {
	case core.EnvelopeHistory:
		entries := make([]proto.HistoryEntry, 0, len(env.Messages))
		for _, msg := range env.Messages {
			entries = append(entries, historyEntry(msg))
		}
		return proto.History{Type: proto.OutboundTypeHistory, Messages: entries}
	case core.EnvelopeMessage:
		return proto.Message{
			Type:      proto.OutboundTypeMessage,
			Username:  env.Message.Username,
			Content:   env.Message.Content,
			Timestamp: proto.Timestamp(env.Message.CreatedAt),
		}
	case core.EnvelopeSystem:
		return proto.System{Type: proto.OutboundTypeSystem, Content: env.Text}
	case core.EnvelopeOnlineCount:
		return proto.OnlineCount{Type: proto.OutboundTypeOnlineCount, Count: env.Count}
	default:
		return unknownEnvelope{kind: env.Kind}
	}
}

func historyEntry(msg core.Message) proto.HistoryEntry {
	return proto.HistoryEntry{
		ID:        msg.ID,
		Username:  msg.Username,
		Content:   msg.Content,
		CreatedAt: proto.Timestamp(msg.CreatedAt),
	}
}

type unknownEnvelope struct {
	kind core.EnvelopeKind
}

func (u unknownEnvelope) MarshalJSON() ([]byte, error) {
	return nil, fmt.Errorf("unknown envelope kind %s", u.kind)
}

// decodeInbound parses a client frame. ok is false for anything that is not
// a non-empty chat message.
func decodeInbound(data []byte) (content string, ok bool) {
	var inbound proto.Inbound
	if err := json.Unmarshal(data, &inbound); err != nil {
		return "", false
	}
	if inbound.Type != proto.InboundTypeMessage || inbound.Content == "" {
		return "", false
	}
	return inbound.Content, true
}
