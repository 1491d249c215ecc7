package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIBind != defaultAPIBind {
		t.Fatalf("APIBind = %q, want %q", cfg.APIBind, defaultAPIBind)
	}
	if cfg.PollSeconds != defaultPollSeconds {
		t.Fatalf("PollSeconds = %d, want %d", cfg.PollSeconds, defaultPollSeconds)
	}

	wantStateDir, err := expandPath(defaultStateDir)
	if err != nil {
		t.Fatalf("expandPath(defaultStateDir) returned error: %v", err)
	}
	if cfg.StateDir != wantStateDir {
		t.Fatalf("StateDir = %q, want %q", cfg.StateDir, wantStateDir)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
api_bind = "  10.0.0.5:9999  "
state_dir = "  ~/.voteview/state  "
poll_seconds = 11
user_id = "  voter-7  "
discard_votes_on_session_change = true
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIBind != "10.0.0.5:9999" {
		t.Fatalf("APIBind = %q, want %q", cfg.APIBind, "10.0.0.5:9999")
	}
	if !strings.HasPrefix(cfg.StateDir, home) {
		t.Fatalf("StateDir = %q, want it under HOME %q", cfg.StateDir, home)
	}
	if cfg.PollSeconds != 11 {
		t.Fatalf("PollSeconds = %d, want 11", cfg.PollSeconds)
	}
	if cfg.UserID != "voter-7" {
		t.Fatalf("UserID = %q, want %q", cfg.UserID, "voter-7")
	}
	if !cfg.DiscardVotesOnSessionChange {
		t.Fatalf("DiscardVotesOnSessionChange = false, want true")
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
api_bind = "   "
state_dir = ""
poll_seconds = 0
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIBind != defaultAPIBind {
		t.Fatalf("APIBind = %q, want %q", cfg.APIBind, defaultAPIBind)
	}
	if cfg.PollSeconds != defaultPollSeconds {
		t.Fatalf("PollSeconds = %d, want %d", cfg.PollSeconds, defaultPollSeconds)
	}
	wantStateDir, err := expandPath(defaultStateDir)
	if err != nil {
		t.Fatalf("expandPath(defaultStateDir) returned error: %v", err)
	}
	if cfg.StateDir != wantStateDir {
		t.Fatalf("StateDir = %q, want %q", cfg.StateDir, wantStateDir)
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`api_bind = [`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}
