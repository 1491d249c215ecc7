// Package app wires configuration, storage, the API client, the vote state
// store, and the poller into a running UI. All dependencies are constructed
// here and passed down explicitly; nothing package-level is shared.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/codyrutscher/voting-app/internal/config"
	"github.com/codyrutscher/voting-app/internal/poll"
	"github.com/codyrutscher/voting-app/internal/prefs"
	"github.com/codyrutscher/voting-app/internal/state"
	"github.com/codyrutscher/voting-app/internal/storage"
	"github.com/codyrutscher/voting-app/internal/ui"
	"github.com/codyrutscher/voting-app/internal/votes"
	"github.com/codyrutscher/voting-app/internal/voting"
)

// Options configure the voteview application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/voteview/prefs.toml
	PollEvery  int    // seconds; zero uses the configured value
}

// Run boots the voting UI until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	userPrefs, _ := prefs.Load(opts.PrefsPath)

	backend, watcher := openStorage(cfg.StateDir)
	userID := cfg.UserID
	if userID == "" {
		userID = loadOrCreateUserID(backend)
	}

	client, err := voting.NewClient(cfg.APIBind, userID)
	if err != nil {
		return fmt.Errorf("init voting client: %w", err)
	}

	var persist *votes.Persist
	if backend != nil {
		persist = storage.NewNamespace[voting.SerializableUserVoteState](backend, watcher, "votes.")
	}

	voteStore := votes.New(votes.Options{
		Client:                 client,
		Persist:                persist,
		DiscardOnSessionChange: cfg.DiscardVotesOnSessionChange,
	})
	defer voteStore.Close()

	pollStore := &state.Store{}

	interval := time.Duration(cfg.PollSeconds) * time.Second
	if opts.PollEvery > 0 {
		interval = time.Duration(opts.PollEvery) * time.Second
	}

	poller := poll.New(poll.Options{
		Refresh:   refreshFunc(client, pollStore, voteStore),
		Interval:  interval,
		Immediate: true,
		OnError: func(err error) {
			log.Printf("poll failed: %v", err)
		},
	})
	poller.Start()
	defer poller.Close()

	return ui.Run(ui.Options{
		Context:   ctx,
		Votes:     voteStore,
		Poll:      pollStore,
		ThemeName: userPrefs.Theme,
		PrefsPath: opts.PrefsPath,
	})
}

// refreshFunc fetches session and contestant data and feeds both stores.
func refreshFunc(client *voting.Client, pollStore *state.Store, voteStore *votes.Store) func(context.Context) error {
	return func(ctx context.Context) error {
		session, err := client.FetchSession(ctx)
		if err != nil {
			pollStore.Update(nil, nil, err)
			return fmt.Errorf("fetch session: %w", err)
		}
		contestants, err := client.FetchContestants(ctx)
		if err != nil {
			pollStore.Update(nil, nil, err)
			return fmt.Errorf("fetch contestants: %w", err)
		}
		pollStore.Update(session, contestants, nil)
		voteStore.SetSession(session)
		voteStore.SetContestants(contestants)
		return nil
	}
}

// openStorage sets up the state directory and its watcher. Failures degrade
// to in-memory operation; the UI keeps working without persistence.
func openStorage(stateDir string) (storage.Backend, storage.Watcher) {
	backend, err := storage.NewDirBackend(stateDir)
	if err != nil {
		log.Printf("vote persistence disabled: %v", err)
		return nil, nil
	}
	watcher, err := storage.NewDirWatcher(backend.Dir())
	if err != nil {
		log.Printf("cross-instance sync disabled: %v", err)
		return backend, nil
	}
	return backend, watcher
}

// loadOrCreateUserID keeps a stable anonymous voter identity in the state
// directory so vote limits line up with the backend across restarts.
func loadOrCreateUserID(backend storage.Backend) string {
	if backend == nil {
		return uuid.NewString()
	}
	meta := storage.NewNamespace[string](backend, nil, "meta.")
	id := meta.Read("user_id", "")
	if id == "" {
		id = uuid.NewString()
		meta.Write("user_id", id)
	}
	return id
}
