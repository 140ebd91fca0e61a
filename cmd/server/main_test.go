package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vovakirdan/keyroom-server/internal/auth"
	"github.com/vovakirdan/keyroom-server/internal/config"
)

func TestTokenCommandPrintsVerifiableToken(t *testing.T) {
	t.Setenv("KEYROOM_ADMIN_SECRET", "cli-secret")
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	var out bytes.Buffer
	if err := execute(context.Background(), []string{"--config", cfgPath, "token"}, &out); err != nil {
		t.Fatalf("token: %v", err)
	}

	adminCfg := config.Default().Admin
	adminCfg.Secret = "cli-secret"
	if _, err := auth.FromConfig(adminCfg).Authorize(strings.TrimSpace(out.String())); err != nil {
		t.Fatalf("printed token rejected: %v", err)
	}
}

func TestErrorsAreReturnedNotPrinted(t *testing.T) {
	t.Setenv("KEYROOM_ADMIN_SECRET", "")
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	var out bytes.Buffer
	err := execute(context.Background(), []string{"--config", cfgPath, "token"}, &out)
	if !errors.Is(err, auth.ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestUnknownCommandFails(t *testing.T) {
	var out bytes.Buffer
	if err := execute(context.Background(), []string{"nope"}, &out); err == nil {
		t.Fatalf("expected error for unknown command")
	}
}
