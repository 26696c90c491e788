package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/groupchat-server/internal/proto"
)

// outbound is the union of every frame the server sends.
type outbound struct {
	Type      string               `json:"type"`
	Username  string               `json:"username"`
	Content   string               `json:"content"`
	Timestamp *string              `json:"timestamp"`
	Count     int                  `json:"count"`
	Messages  []proto.HistoryEntry `json:"messages"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket base address")
	user := flag.String("user", "cli-user", "username")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	target := strings.TrimRight(*addr, "/") + "/" + url.PathEscape(*user)
	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	fmt.Printf("Connected to %s as %s\n", *addr, *user)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var frame outbound
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		switch frame.Type {
		case proto.OutboundTypeHistory:
			if len(frame.Messages) > 0 {
				fmt.Println("--- recent messages ---")
			}
			for _, msg := range frame.Messages {
				fmt.Printf("%s %s: %s\n", stamp(msg.CreatedAt), msg.Username, msg.Content)
			}
		case proto.OutboundTypeMessage:
			fmt.Printf("%s %s: %s\n", stamp(frame.Timestamp), frame.Username, frame.Content)
		case proto.OutboundTypeSystem:
			fmt.Printf("* %s\n", frame.Content)
		case proto.OutboundTypeOnlineCount:
			fmt.Printf("* %d online\n", frame.Count)
		default:
			fmt.Printf("unknown frame type=%s\n", frame.Type)
		}
	}
}

func stamp(ts *string) string {
	if ts == nil {
		return "[--]"
	}
	return "[" + *ts + "]"
}

func writeLoop(ctx context.Context, conn *websocket.Conn) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeMessage, Content: text}); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
