package http

import (
	"testing"
	"time"

	"github.com/vovakirdan/groupchat-server/internal/core"
)

func TestEncodeEnvelope(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		env  core.Envelope
		want string
	}{
		{
			name: "empty history",
			env:  core.HistoryEnvelope(nil),
			want: `{"type":"history","messages":[]}`,
		},
		{
			name: "history",
			env: core.HistoryEnvelope([]core.Message{
				{ID: 7, Username: "alice", Content: "hi", CreatedAt: ts},
			}),
			want: `{"type":"history","messages":[{"id":7,"username":"alice","content":"hi","created_at":"2024-05-01T12:00:00Z"}]}`,
		},
		{
			name: "message",
			env:  core.MessageEnvelope(core.Message{ID: 1, Username: "bob", Content: "yo", CreatedAt: ts}),
			want: `{"type":"message","username":"bob","content":"yo","timestamp":"2024-05-01T12:00:00Z"}`,
		},
		{
			name: "message without timestamp",
			env:  core.MessageEnvelope(core.Message{Username: "bob", Content: "yo"}),
			want: `{"type":"message","username":"bob","content":"yo","timestamp":null}`,
		},
		{
			name: "system",
			env:  core.SystemEnvelope("alice joined"),
			want: `{"type":"system","content":"alice joined","timestamp":null}`,
		},
		{
			name: "online count",
			env:  core.OnlineCountEnvelope(3),
			want: `{"type":"online_count","count":3}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeEnvelope(tt.env)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEncodeUnknownEnvelope(t *testing.T) {
	if _, err := EncodeEnvelope(core.Envelope{Kind: core.EnvelopeKind(99)}); err == nil {
		t.Fatal("expected error for unknown envelope kind")
	}
}

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{`{"type":"message","content":"hello"}`, "hello", true},
		{`{"type":"message","content":""}`, "", false},
		{`{"type":"typing","content":"x"}`, "", false},
		{`{"content":"no type"}`, "", false},
		{`garbage`, "", false},
	}
	for _, tt := range tests {
		got, ok := decodeInbound([]byte(tt.raw))
		if got != tt.want || ok != tt.ok {
			t.Errorf("decodeInbound(%s) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}
