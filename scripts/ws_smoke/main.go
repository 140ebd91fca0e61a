package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/keyroom-server/internal/chatclient"
	"github.com/vovakirdan/keyroom-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	server := flag.String("server", "http://localhost:3000", "server base URL")
	key := flag.String("key", "", "one-time access key to redeem")
	user := flag.String("user", "tester", "display name")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sess, err := chatclient.Verify(ctx, http.DefaultClient, *server, *key, *user)
	if err != nil {
		return err
	}
	fmt.Printf("Verified as %s\n", sess.Username)

	conn, err := sess.Dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := chatclient.Join(ctx, conn, sess.Username); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	for {
		f, err := chatclient.Read(ctx, conn)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("Received outbound: type=%s", f.Type)
		if f.Event != "" {
			fmt.Printf(" event=%s", f.Event)
		}
		fmt.Println()

		if f.Error != nil {
			fmt.Printf("Error: %s %s\n", f.Error.Code, f.Error.Msg)
		}

		switch f.Event {
		case proto.EventInit:
			fmt.Printf("History: %d messages\n", len(f.Messages))
			if err := chatclient.Post(ctx, conn, *text); err != nil {
				return fmt.Errorf("send: %w", err)
			}
		case proto.EventAnnouncement:
			fmt.Printf("Announcement: %q\n", f.Announcement)
		case proto.EventMessage:
			fmt.Printf("Message: user=%s text=%q time=%s\n", f.Message.User, f.Message.Text, f.Message.Time)
			if f.Message.User == sess.Username && f.Message.Text == *text {
				return nil
			}
		}
	}
}
