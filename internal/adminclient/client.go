// Package adminclient calls the admin API of a running server.
package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client issues keys and sets announcements over HTTP with a bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("admin api: status %d: %s", e.Status, e.Body)
}

type issueKeyRequest struct {
	Owner string `json:"owner"`
}

// IssuedKey is a freshly created one-time key.
type IssuedKey struct {
	Key   string `json:"key"`
	Owner string `json:"owner"`
}

type announcementBody struct {
	Text string `json:"text"`
}

// IssueKey creates a one-time key for owner.
func (c *Client) IssueKey(ctx context.Context, owner string) (IssuedKey, error) {
	var out IssuedKey
	err := c.do(ctx, http.MethodPost, "/admin/keys", issueKeyRequest{Owner: owner}, &out)
	return out, err
}

// SetAnnouncement replaces the current announcement and returns the stored text.
func (c *Client) SetAnnouncement(ctx context.Context, text string) (string, error) {
	var out announcementBody
	if err := c.do(ctx, http.MethodPost, "/admin/announcement", announcementBody{Text: text}, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
