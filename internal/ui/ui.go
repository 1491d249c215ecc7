// Package ui renders the voting screen with Bubble Tea: the contestant
// roster with live counts, the user's remaining votes, and recoverable
// errors with a retry binding.
package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/codyrutscher/voting-app/internal/apperr"
	"github.com/codyrutscher/voting-app/internal/prefs"
	"github.com/codyrutscher/voting-app/internal/state"
	"github.com/codyrutscher/voting-app/internal/votes"
)

// Options configure the UI.
type Options struct {
	Context   context.Context
	Votes     *votes.Store
	Poll      *state.Store
	ThemeName string
	PrefsPath string
	// Tick is how often the view re-reads the stores. Defaults to 500ms.
	Tick time.Duration
}

const defaultUITick = 500 * time.Millisecond

type tickMsg time.Time

type voteResultMsg struct {
	err error
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx       context.Context
	votes     *votes.Store
	poll      *state.Store
	prefsPath string
	tick      time.Duration

	theme   Theme
	width   int
	height  int
	cursor  int
	spin    spinner.Model
	voteSn  votes.Snapshot
	pollSn  state.Snapshot
	lastErr *apperr.AppError
}

// NewModel builds the root model.
func NewModel(opts Options) Model {
	tick := opts.Tick
	if tick <= 0 {
		tick = defaultUITick
	}
	theme := ThemeByName(opts.ThemeName)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Header
	return Model{
		ctx:       opts.Context,
		votes:     opts.Votes,
		poll:      opts.Poll,
		prefsPath: opts.PrefsPath,
		tick:      tick,
		theme:     theme,
		spin:      sp,
	}
}

// Run blocks until the user quits or the context is cancelled.
func Run(opts Options) error {
	if opts.Votes == nil || opts.Poll == nil {
		return fmt.Errorf("ui requires vote and poll stores")
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen(), tea.WithContext(opts.Context))
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tickCmd(), m.spin.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.voteSn = m.votes.Snapshot()
		m.pollSn = m.poll.Snapshot()
		m.lastErr = m.voteSn.Err
		m.clampCursor()
		return m, m.tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case voteResultMsg:
		// The stores already hold the outcome; the next tick renders it.
		// Reading eagerly keeps the banner snappy after a failed submit.
		m.voteSn = m.votes.Snapshot()
		m.lastErr = m.voteSn.Err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(m.voteSn.Contestants)-1 {
			m.cursor++
		}
		return m, nil

	case "enter", "v":
		if m.cursor >= len(m.voteSn.Contestants) {
			return m, nil
		}
		id := m.voteSn.Contestants[m.cursor].ID
		return m, m.voteCmd(id)

	case "r":
		if m.lastErr != nil && m.lastErr.Retry != nil {
			retry := m.lastErr.Retry
			ctx := m.ctx
			return m, func() tea.Msg {
				return voteResultMsg{err: retry(ctx)}
			}
		}
		if m.lastErr != nil {
			m.votes.ClearError()
			m.lastErr = nil
		}
		return m, nil

	case "R":
		m.votes.ResetState()
		m.voteSn = m.votes.Snapshot()
		m.lastErr = nil
		return m, nil

	case "t":
		next := NextThemeName(m.theme.Name)
		m.theme = ThemeByName(next)
		m.spin.Style = m.theme.Header
		// Persist the choice; losing it is not worth interrupting the user.
		_ = prefs.Save(m.prefsPath, prefs.Prefs{Theme: next})
		return m, nil
	}
	return m, nil
}

func (m Model) voteCmd(contestantID string) tea.Cmd {
	ctx := m.ctx
	store := m.votes
	return func() tea.Msg {
		return voteResultMsg{err: store.AddVote(ctx, contestantID)}
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) clampCursor() {
	if n := len(m.voteSn.Contestants); n == 0 {
		m.cursor = 0
	} else if m.cursor >= n {
		m.cursor = n - 1
	}
}
