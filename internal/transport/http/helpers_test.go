package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/keyroom-server/internal/announce"
	"github.com/vovakirdan/keyroom-server/internal/auth"
	"github.com/vovakirdan/keyroom-server/internal/config"
	"github.com/vovakirdan/keyroom-server/internal/core"
	"github.com/vovakirdan/keyroom-server/internal/keys"
	"github.com/vovakirdan/keyroom-server/internal/metrics"
	"github.com/vovakirdan/keyroom-server/internal/proto"
	"github.com/vovakirdan/keyroom-server/internal/session"
	"github.com/vovakirdan/keyroom-server/internal/store"
	"github.com/vovakirdan/keyroom-server/internal/store/file"
)

const testAdminSecret = "test-admin-secret"

type testEnv struct {
	ts            *httptest.Server
	cfg           config.Config
	keys          *keys.Service
	sessions      *session.Manager
	announcements *announce.Channel
	admin         *auth.Authorizer
}

// startTestServer runs the full gateway over a file store seeded with seed.
func startTestServer(t *testing.T, seed store.KeyTable, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.Admin.Secret = testAdminSecret
	cfg.WelcomeText = ""
	for _, m := range mutate {
		m(&cfg)
	}

	dir := t.TempDir()
	st := file.New(filepath.Join(dir, "keys.json"), filepath.Join(dir, "announcement.json"))
	if seed != nil {
		if err := st.SaveKeys(context.Background(), seed); err != nil {
			t.Fatalf("seed keys: %v", err)
		}
	}

	logger := zerolog.Nop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	hub := core.NewHub(core.WithLogger(&logger), core.WithMetrics(m))
	keySvc := keys.NewService(context.Background(), st, &logger, keys.WithMetrics(m))
	sessions := session.NewManager(cfg.Session.TTL)
	channel := announce.New(context.Background(), st, hub, &logger, announce.WithDefault(cfg.WelcomeText), announce.WithMetrics(m))
	hub.SetAnnouncementSource(channel)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	authz := auth.FromConfig(cfg.Admin)
	server := NewServer(Services{
		Hub:           hub,
		Keys:          keySvc,
		Sessions:      sessions,
		Announcements: channel,
		Admin:         authz,
		Gatherer:      reg,
	}, &cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})

	return &testEnv{
		ts:            ts,
		cfg:           cfg,
		keys:          keySvc,
		sessions:      sessions,
		announcements: channel,
		admin:         authz,
	}
}

func seedKey(code, owner string) store.KeyTable {
	return store.KeyTable{code: {Code: code, Owner: owner, CreatedAt: time.Now()}}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any, header http.Header) *http.Response {
	t.Helper()

	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, e.ts.URL+path, strings.NewReader(string(b)))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// verify redeems code and returns the session cookie.
func (e *testEnv) verify(t *testing.T, code, username string) *http.Cookie {
	t.Helper()

	resp := e.postJSON(t, "/verify", VerifyRequest{Key: code, Username: username}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify %s: status %d", code, resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == e.cfg.Session.CookieName {
			return c
		}
	}
	t.Fatalf("verify %s: no session cookie", code)
	return nil
}

func (e *testEnv) dial(t *testing.T, ctx context.Context, cookie *http.Cookie) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	opts := &websocket.DialOptions{HTTPHeader: http.Header{}}
	if cookie != nil {
		opts.HTTPHeader.Set("Cookie", cookie.Name+"="+cookie.Value)
	}
	conn, _, err := websocket.Dial(ctx, wsURL, opts)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func (e *testEnv) adminHeader(t *testing.T) http.Header {
	t.Helper()

	token, err := e.admin.IssueAdminToken()
	if err != nil {
		t.Fatalf("issue admin token: %v", err)
	}
	return http.Header{"Authorization": {"Bearer " + token}}
}

// frame is an outbound envelope with data left raw for typed decoding.
type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// readUntil reads frames until one of the given event kind arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) frame {
	t.Helper()

	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.Fatalf("read waiting for %s: %v", event, err)
		}
		if f.Type == proto.OutboundTypeEvent && f.Event == event {
			return f
		}
	}
}

func readError(t *testing.T, ctx context.Context, conn *websocket.Conn) *proto.Error {
	t.Helper()

	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.Fatalf("read waiting for error: %v", err)
		}
		if f.Type == proto.OutboundTypeError {
			return f.Error
		}
	}
}

func joinChat(t *testing.T, ctx context.Context, conn *websocket.Conn, username string) []proto.ChatMessage {
	t.Helper()

	if err := wsjson.Write(ctx, conn, map[string]any{"type": "join", "data": map[string]string{"username": username}}); err != nil {
		t.Fatalf("write join: %v", err)
	}
	f := readUntil(t, ctx, conn, proto.EventInit)
	var history []proto.ChatMessage
	if err := json.Unmarshal(f.Data, &history); err != nil {
		t.Fatalf("decode init: %v", err)
	}
	return history
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}
