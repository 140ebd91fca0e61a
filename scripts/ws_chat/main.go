package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/keyroom-server/internal/chatclient"
	"github.com/vovakirdan/keyroom-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	server := flag.String("server", "http://localhost:3000", "server base URL")
	key := flag.String("key", "", "one-time access key")
	user := flag.String("user", "", "display name (defaults to the key owner)")
	flag.Parse()

	if *key == "" {
		return errors.New("-key is required")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	sess, err := chatclient.Verify(ctx, &http.Client{Timeout: 10 * time.Second}, *server, *key, *user)
	if err != nil {
		return err
	}

	conn, err := sess.Dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := chatclient.Join(ctx, conn, sess.Username); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	fmt.Printf("Connected to %s as %s\n", *server, sess.Username)
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
		f, err := chatclient.Read(ctx, conn)
		if err != nil {
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

		if f.Type == proto.OutboundTypeError && f.Error != nil {
			fmt.Printf("! %s: %s\n", f.Error.Code, f.Error.Msg)
			continue
		}

		switch f.Event {
		case proto.EventInit:
			for _, m := range f.Messages {
				printMessage(m)
			}
		case proto.EventMessage:
			printMessage(f.Message)
		case proto.EventAnnouncement:
			fmt.Printf("*** %s ***\n", f.Announcement)
		}
	}
}

func printMessage(m proto.ChatMessage) {
	fmt.Printf("[%s] %s: %s\n", m.Time, m.User, m.Text)
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
			if err := chatclient.Post(ctx, conn, text); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
