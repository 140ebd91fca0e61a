package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/vovakirdan/keyroom-server/internal/config"
)

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t, nil)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected health response: %d %q", resp.StatusCode, body)
	}
}

func TestVerifyRedeemsKeyOnce(t *testing.T) {
	env := startTestServer(t, seedKey("ABC123", "alice"))

	resp := env.postJSON(t, "/verify", VerifyRequest{Key: "ABC123", Username: "alice"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first verify: status %d", resp.StatusCode)
	}
	first := decodeBody[VerifyResponse](t, resp)
	if !first.Success || first.Username != "alice" {
		t.Fatalf("unexpected first verify body: %+v", first)
	}

	resp = env.postJSON(t, "/verify", VerifyRequest{Key: "ABC123", Username: "alice"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("second verify: status %d", resp.StatusCode)
	}
	second := decodeBody[VerifyResponse](t, resp)
	if second.Success || second.Message != "Invalid key" {
		t.Fatalf("unexpected second verify body: %+v", second)
	}

	if k := env.keys.List(); len(k) != 1 || !k[0].Used || k[0].RedeemedBy != "alice" {
		t.Fatalf("key not marked used: %+v", k)
	}
}

func TestVerifyUnknownKey(t *testing.T) {
	env := startTestServer(t, nil)

	resp := env.postJSON(t, "/verify", VerifyRequest{Key: "NOPE", Username: "bob"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if body := decodeBody[VerifyResponse](t, resp); body.Message != "Invalid key" {
		t.Fatalf("unexpected body %+v", body)
	}
	for _, c := range resp.Cookies() {
		if c.Name == env.cfg.Session.CookieName {
			t.Fatalf("session cookie set for invalid key")
		}
	}
}

func TestVerifyMalformedBody(t *testing.T) {
	env := startTestServer(t, nil)

	resp, err := env.ts.Client().Post(env.ts.URL+"/verify", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if body := decodeBody[VerifyResponse](t, resp); body.Message != "Invalid request" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestVerifyFallsBackToOwnerName(t *testing.T) {
	env := startTestServer(t, seedKey("OWNER1", "carol"))

	resp := env.postJSON(t, "/verify", VerifyRequest{Key: "OWNER1"}, nil)
	if body := decodeBody[VerifyResponse](t, resp); body.Username != "carol" {
		t.Fatalf("expected owner name, got %+v", body)
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := startTestServer(t, seedKey("SESS01", "dave"))

	get := func(cookie *http.Cookie) SessionResponse {
		req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/session", nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		resp, err := env.ts.Client().Do(req)
		if err != nil {
			t.Fatalf("get session: %v", err)
		}
		defer resp.Body.Close()
		return decodeBody[SessionResponse](t, resp)
	}

	if s := get(nil); s.LoggedIn {
		t.Fatalf("expected logged out without cookie")
	}

	cookie := env.verify(t, "SESS01", "dave")
	if !cookie.HttpOnly {
		t.Fatalf("session cookie must be http-only")
	}
	s := get(cookie)
	if !s.LoggedIn || s.User == nil || s.User.Username != "dave" {
		t.Fatalf("unexpected session: %+v", s)
	}

	req, _ := http.NewRequest(http.MethodPost, env.ts.URL+"/logout", nil)
	req.AddCookie(cookie)
	resp, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	resp.Body.Close()

	if s := get(cookie); s.LoggedIn {
		t.Fatalf("session survived logout")
	}
}

func TestAnnouncementEndpointDefault(t *testing.T) {
	env := startTestServer(t, nil, func(cfg *config.Config) {
		cfg.WelcomeText = "Welcome!"
	})

	resp, err := env.ts.Client().Get(env.ts.URL + "/announcement")
	if err != nil {
		t.Fatalf("get announcement: %v", err)
	}
	defer resp.Body.Close()

	if body := decodeBody[AnnouncementResponse](t, resp); body.Text != "Welcome!" {
		t.Fatalf("unexpected announcement %+v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := startTestServer(t, seedKey("MET001", "erin"))
	env.verify(t, "MET001", "erin")

	resp, err := env.ts.Client().Get(env.ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `keyroom_key_redemptions_total{result="success"} 1`) {
		t.Fatalf("redemption metric missing:\n%s", body)
	}
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}
