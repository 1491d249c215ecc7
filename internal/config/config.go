package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures the fields voteview needs to run.
type Config struct {
	// APIBind is the host:port of the voting API.
	APIBind string
	// StateDir is where per-session vote state files live.
	StateDir string
	// PollSeconds is the refresh cadence for session/contestant data.
	PollSeconds int
	// UserID identifies this voter to the backend. Empty lets the backend
	// assign one.
	UserID string
	// DiscardVotesOnSessionChange scopes votes strictly per session id.
	DiscardVotesOnSessionChange bool
}

const (
	defaultConfigPath  = "~/.config/voteview/config.toml"
	defaultStateDir    = "~/.local/share/voteview/state"
	defaultAPIBind     = "127.0.0.1:7411"
	defaultPollSeconds = 5
)

// Load locates and parses the config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		APIBind:     defaultAPIBind,
		StateDir:    mustExpand(defaultStateDir),
		PollSeconds: defaultPollSeconds,
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIBind                     string `toml:"api_bind"`
		StateDir                    string `toml:"state_dir"`
		PollSeconds                 int    `toml:"poll_seconds"`
		UserID                      string `toml:"user_id"`
		DiscardVotesOnSessionChange bool   `toml:"discard_votes_on_session_change"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.APIBind = strings.TrimSpace(raw.APIBind)
	if cfg.APIBind == "" {
		cfg.APIBind = defaultAPIBind
	}

	cfg.StateDir = strings.TrimSpace(raw.StateDir)
	if cfg.StateDir == "" {
		cfg.StateDir = defaultStateDir
	}
	cfg.StateDir = mustExpand(cfg.StateDir)

	if raw.PollSeconds > 0 {
		cfg.PollSeconds = raw.PollSeconds
	}
	cfg.UserID = strings.TrimSpace(raw.UserID)
	cfg.DiscardVotesOnSessionChange = raw.DiscardVotesOnSessionChange

	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
