package core

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

type staticSource string

func (s staticSource) Current() string { return string(s) }

type mutableSource struct {
	mu   sync.Mutex
	text string
}

func (s *mutableSource) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

func (s *mutableSource) Set(text string) {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
}

func TestHubJoinBroadcastIncludesSender(t *testing.T) {
	hub := startHub(t)

	alice := joinedClient(t, hub, "a", "alice")
	bob := joinedClient(t, hub, "b", "bob")

	alice.Commands <- &Command{Kind: CommandPost, Text: "hi"}

	for _, c := range []*Client{alice, bob} {
		ev := mustEvent(t, c.Events, EventMessage)
		if ev.Message.Text != "hi" || ev.Message.From != "alice" || ev.Message.ID == "" {
			t.Fatalf("unexpected message event for %s: %+v", c.ID, ev)
		}
	}
}

func TestHubInitCarriesHistoryInOrder(t *testing.T) {
	hub := startHub(t)

	alice := joinedClient(t, hub, "a", "alice")
	for _, text := range []string{"one", "two", "three"} {
		alice.Commands <- &Command{Kind: CommandPost, Text: text}
	}
	for range 3 {
		mustEvent(t, alice.Events, EventMessage)
	}

	bob := NewClient("b", "", 16)
	if err := hub.RegisterClient(bob); err != nil {
		t.Fatalf("register: %v", err)
	}
	bob.Commands <- &Command{Kind: CommandJoin, Username: "bob"}

	ev := mustEvent(t, bob.Events, EventInit)
	if len(ev.Messages) != 3 {
		t.Fatalf("expected 3 history messages, got %d", len(ev.Messages))
	}
	for i, want := range []string{"one", "two", "three"} {
		if ev.Messages[i].Text != want {
			t.Fatalf("history[%d] = %q, want %q", i, ev.Messages[i].Text, want)
		}
	}
}

func TestHubPostBeforeJoinIsDropped(t *testing.T) {
	hub := startHub(t)

	alice := joinedClient(t, hub, "a", "alice")
	mallory := NewClient("m", "", 16)
	if err := hub.RegisterClient(mallory); err != nil {
		t.Fatalf("register: %v", err)
	}

	mallory.Commands <- &Command{Kind: CommandPost, Text: "sneaky"}
	alice.Commands <- &Command{Kind: CommandPost, Text: "after"}

	ev := mustEvent(t, alice.Events, EventMessage)
	if ev.Message.Text != "after" {
		t.Fatalf("expected only alice's message, got %+v", ev.Message)
	}
	mustNoEvent(t, alice.Events, 100*time.Millisecond)
	mustNoEvent(t, mallory.Events, 50*time.Millisecond)
}

func TestHubEmptyPostIsDropped(t *testing.T) {
	hub := startHub(t)

	bob := joinedClient(t, hub, "b", "bob")
	bob.Commands <- &Command{Kind: CommandPost, Text: "   \n\t "}
	bob.Commands <- &Command{Kind: CommandPost, Text: ""}
	mustNoEvent(t, bob.Events, 100*time.Millisecond)

	carol := NewClient("c", "", 16)
	if err := hub.RegisterClient(carol); err != nil {
		t.Fatalf("register: %v", err)
	}
	carol.Commands <- &Command{Kind: CommandJoin, Username: "carol"}
	if ev := mustEvent(t, carol.Events, EventInit); len(ev.Messages) != 0 {
		t.Fatalf("expected empty history, got %+v", ev.Messages)
	}
}

func TestHubTruncatesLongMessages(t *testing.T) {
	hub := startHub(t)

	alice := joinedClient(t, hub, "a", "alice")
	alice.Commands <- &Command{Kind: CommandPost, Text: strings.Repeat("x", 3000)}

	ev := mustEvent(t, alice.Events, EventMessage)
	if n := len([]rune(ev.Message.Text)); n != 2000 {
		t.Fatalf("expected 2000 characters, got %d", n)
	}
}

func TestHubEvictsOldestHistory(t *testing.T) {
	hub := startHub(t, WithHistoryLimit(3))

	alice := joinedClient(t, hub, "a", "alice")
	for _, text := range []string{"1", "2", "3", "4", "5"} {
		alice.Commands <- &Command{Kind: CommandPost, Text: text}
	}
	for range 5 {
		mustEvent(t, alice.Events, EventMessage)
	}

	bob := NewClient("b", "", 16)
	if err := hub.RegisterClient(bob); err != nil {
		t.Fatalf("register: %v", err)
	}
	bob.Commands <- &Command{Kind: CommandJoin, Username: "bob"}

	ev := mustEvent(t, bob.Events, EventInit)
	got := make([]string, 0, len(ev.Messages))
	for _, m := range ev.Messages {
		got = append(got, m.Text)
	}
	if strings.Join(got, ",") != "3,4,5" {
		t.Fatalf("unexpected history after eviction: %v", got)
	}
}

func TestHubJoinNameFallbacks(t *testing.T) {
	hub := startHub(t)

	withSession := NewClient("s", "sessionuser", 16)
	anonymous := NewClient("n", "", 16)
	for _, c := range []*Client{withSession, anonymous} {
		if err := hub.RegisterClient(c); err != nil {
			t.Fatalf("register: %v", err)
		}
		c.Commands <- &Command{Kind: CommandJoin, Username: "  "}
		mustEvent(t, c.Events, EventInit)
	}

	withSession.Commands <- &Command{Kind: CommandPost, Text: "a"}
	if ev := mustEvent(t, withSession.Events, EventMessage); ev.Message.From != "sessionuser" {
		t.Fatalf("expected session username, got %q", ev.Message.From)
	}
	mustEvent(t, anonymous.Events, EventMessage)

	anonymous.Commands <- &Command{Kind: CommandPost, Text: "b"}
	if ev := mustEvent(t, anonymous.Events, EventMessage); ev.Message.From != DefaultUsername {
		t.Fatalf("expected default username, got %q", ev.Message.From)
	}
}

func TestHubRepeatedJoinIsIgnored(t *testing.T) {
	hub := startHub(t)

	alice := joinedClient(t, hub, "a", "alice")
	alice.Commands <- &Command{Kind: CommandJoin, Username: "eve"}
	alice.Commands <- &Command{Kind: CommandPost, Text: "still me"}

	ev := mustEvent(t, alice.Events, EventMessage)
	if ev.Message.From != "alice" {
		t.Fatalf("name changed on repeated join: %q", ev.Message.From)
	}
}

func TestHubAnnouncementReachesUnjoinedClients(t *testing.T) {
	hub := startHub(t)

	joined := joinedClient(t, hub, "a", "alice")
	lurker := NewClient("l", "", 16)
	if err := hub.RegisterClient(lurker); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := hub.BroadcastAnnouncement("Maintenance at 5pm"); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	for _, c := range []*Client{joined, lurker} {
		ev := mustEvent(t, c.Events, EventAnnouncement)
		if ev.Announcement != "Maintenance at 5pm" {
			t.Fatalf("unexpected announcement for %s: %q", c.ID, ev.Announcement)
		}
	}
}

func TestHubSendsCurrentAnnouncementOnConnect(t *testing.T) {
	hub := NewHub()
	hub.SetAnnouncementSource(staticSource("welcome"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	c := NewClient("a", "", 16)
	if err := hub.RegisterClient(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	if ev := mustEvent(t, c.Events, EventAnnouncement); ev.Announcement != "welcome" {
		t.Fatalf("unexpected announcement %q", ev.Announcement)
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t)

	alice := joinedClient(t, hub, "a", "alice")

	slow := NewClient("s", "", 1)
	if err := hub.RegisterClient(slow); err != nil {
		t.Fatalf("register: %v", err)
	}
	// The init event fills the only buffer slot and is never read.
	slow.Commands <- &Command{Kind: CommandJoin, Username: "slow"}
	deadline := time.Now().Add(2 * time.Second)
	for len(slow.Events) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("slow client never received init")
		}
		time.Sleep(5 * time.Millisecond)
	}

	alice.Commands <- &Command{Kind: CommandPost, Text: "one"}
	mustEvent(t, alice.Events, EventMessage)
	alice.Commands <- &Command{Kind: CommandPost, Text: "two"}
	mustEvent(t, alice.Events, EventMessage)

	select {
	case <-slow.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("slow client was not dropped")
	}
}

func TestHubUnregisterClosesEvents(t *testing.T) {
	hub := startHub(t)

	alice := joinedClient(t, hub, "a", "alice")
	hub.UnregisterClient(alice)

	select {
	case _, ok := <-alice.Events:
		if ok {
			t.Fatalf("expected closed events channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("events channel not closed")
	}
}

func TestHubStoppedRejectsRegistration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	if err := hub.RegisterClient(NewClient("a", "", 1)); !errors.Is(err, ErrHubStopped) {
		t.Fatalf("expected ErrHubStopped, got %v", err)
	}
	if err := hub.BroadcastAnnouncement("x"); !errors.Is(err, ErrHubStopped) {
		t.Fatalf("expected ErrHubStopped, got %v", err)
	}
}

func TestHubConcurrentSendersShareOneOrder(t *testing.T) {
	const senders, perSender = 3, 50
	hub := startHub(t)

	clients := make([]*Client, 0, senders)
	for i := range senders {
		c := NewClient("c"+strconv.Itoa(i), "", senders*perSender+8)
		if err := hub.RegisterClient(c); err != nil {
			t.Fatalf("register: %v", err)
		}
		c.Commands <- &Command{Kind: CommandJoin, Username: "user" + strconv.Itoa(i)}
		mustEvent(t, c.Events, EventInit)
		clients = append(clients, c)
	}

	var wg sync.WaitGroup
	for i, c := range clients {
		wg.Add(1)
		go func(i int, c *Client) {
			defer wg.Done()
			for j := range perSender {
				c.Commands <- &Command{Kind: CommandPost, Text: strconv.Itoa(i) + "-" + strconv.Itoa(j)}
			}
		}(i, c)
	}
	wg.Wait()

	var want []string
	for _, c := range clients {
		got := make([]string, 0, senders*perSender)
		for range senders * perSender {
			got = append(got, mustEvent(t, c.Events, EventMessage).Message.ID)
		}
		if want == nil {
			want = got
			continue
		}
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Fatalf("client %s saw a different order", c.ID)
		}
	}
}

func TestHubAnnouncementInFlightArrivesOnce(t *testing.T) {
	src := &mutableSource{text: "old"}
	hub := NewHub()
	hub.SetAnnouncementSource(src)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// The source already holds the new text but the broadcast has not run yet.
	src.Set("new")
	c := NewClient("a", "", 16)
	if err := hub.RegisterClient(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	if ev := mustEvent(t, c.Events, EventAnnouncement); ev.Announcement != "old" {
		t.Fatalf("expected the last broadcast text on connect, got %q", ev.Announcement)
	}

	if err := hub.BroadcastAnnouncement("new"); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if ev := mustEvent(t, c.Events, EventAnnouncement); ev.Announcement != "new" {
		t.Fatalf("unexpected announcement %q", ev.Announcement)
	}
	mustNoEvent(t, c.Events, 100*time.Millisecond)

	late := NewClient("b", "", 16)
	if err := hub.RegisterClient(late); err != nil {
		t.Fatalf("register: %v", err)
	}
	if ev := mustEvent(t, late.Events, EventAnnouncement); ev.Announcement != "new" {
		t.Fatalf("late client got %q", ev.Announcement)
	}
	mustNoEvent(t, late.Events, 100*time.Millisecond)
}
