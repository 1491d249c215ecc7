// Package config handles loading and parsing voteview configuration files.
//
// # Overview
//
// Configuration is a single TOML file. The Load function follows this
// resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/voteview/config.toml (default)
//  3. If the config file doesn't exist, fall back to hardcoded defaults
//  4. If the file exists but fields are missing/empty, use defaults
//
// # Default Values
//
//   - Config file: ~/.config/voteview/config.toml
//   - API endpoint: 127.0.0.1:7411
//   - State directory: ~/.local/share/voteview/state
//   - Poll interval: 5 seconds
//
// # TOML Format
//
// Example config.toml:
//
//	api_bind = "127.0.0.1:7411"
//	state_dir = "~/.local/share/voteview/state"
//	poll_seconds = 5
//	user_id = "b3b154dc-6da4-4f4c-9b54-8a9c1e1e2f1a"
//	discard_votes_on_session_change = false
//
// All fields are optional. Tilde expansion is performed automatically for
// paths.
//
// # Error Handling
//
// Missing config files are NOT an error - defaults are used instead, so the
// app works out-of-the-box. Load returns errors only for unreadable files,
// TOML parse failures, and path expansion failures.
//
// The package is read-only and stateless: configuration is loaded once at
// startup into an immutable Config struct. No global state is used.
package config
