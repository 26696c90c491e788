package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/groupchat-server/internal/proto"
)

type outbound struct {
	Type     string               `json:"type"`
	Username string               `json:"username"`
	Content  string               `json:"content"`
	Count    int                  `json:"count"`
	Messages []proto.HistoryEntry `json:"messages"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket base address")
	user := flag.String("user", "tester", "username to connect as")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	target := strings.TrimRight(*addr, "/") + "/" + url.PathEscape(*user)
	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeMessage, Content: *text}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	for {
		var frame outbound
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		switch frame.Type {
		case proto.OutboundTypeHistory:
			fmt.Printf("History: %d messages\n", len(frame.Messages))
		case proto.OutboundTypeSystem:
			fmt.Printf("System: %s\n", frame.Content)
		case proto.OutboundTypeOnlineCount:
			fmt.Printf("Online: %d\n", frame.Count)
		case proto.OutboundTypeMessage:
			fmt.Printf("Message: user=%s text=%q\n", frame.Username, frame.Content)
			if frame.Username == *user && frame.Content == *text {
				return nil
			}
		default:
			fmt.Printf("Received outbound: type=%s\n", frame.Type)
		}
	}
}
