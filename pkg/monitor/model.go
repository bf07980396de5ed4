package monitor

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mwhite/fleetsync/internal/models"
	"github.com/mwhite/fleetsync/internal/ratelimit"
	"github.com/mwhite/fleetsync/internal/store"
	syncengine "github.com/mwhite/fleetsync/internal/sync"
)

// Model is the main Bubble Tea model for the sync dashboard
type Model struct {
	Store      *store.Store
	Reconciler *syncengine.Reconciler
	Owner      string
	Interval   time.Duration
	Version    string

	// Window dimensions
	Width  int
	Height int

	// Panel data
	Status  syncengine.Status
	Queue   []models.QueueEntry
	Buckets []ratelimit.BucketInfo

	// UI state
	ActivePanel  Panel
	ScrollOffset map[Panel]int
	Flushing     bool
	FlushSpinner spinner.Model
	LastFlushMsg string
	LastRefresh  time.Time
	Err          error
}

// NewModel creates a dashboard model ready for tea.NewProgram
func NewModel(st *store.Store, reconciler *syncengine.Reconciler, owner string, interval time.Duration, version string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = pendingStyle

	return Model{
		Store:        st,
		Reconciler:   reconciler,
		Owner:        owner,
		Interval:     interval,
		Version:      version,
		ActivePanel:  PanelQueue,
		ScrollOffset: make(map[Panel]int),
		FlushSpinner: sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), m.tickCmd())
}

func (m Model) refreshCmd() tea.Cmd {
	st, rec, owner := m.Store, m.Reconciler, m.Owner
	return func() tea.Msg {
		return FetchData(st, rec, owner)
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.Interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) flushCmd() tea.Cmd {
	rec := m.Reconciler
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		stats, err := rec.Flush(ctx)
		return FlushDoneMsg{Stats: stats, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case TickMsg:
		return m, tea.Batch(m.refreshCmd(), m.tickCmd())

	case RefreshDataMsg:
		if msg.Err != nil {
			m.Err = msg.Err
			return m, nil
		}
		m.Err = nil
		m.Status = msg.Status
		m.Queue = msg.Queue
		m.Buckets = msg.Buckets
		m.LastRefresh = msg.Timestamp
		m.clampScroll()
		return m, nil

	case FlushDoneMsg:
		m.Flushing = false
		m.LastFlushMsg = describeFlush(msg)
		return m, m.refreshCmd()

	case spinner.TickMsg:
		if !m.Flushing {
			return m, nil
		}
		var cmd tea.Cmd
		m.FlushSpinner, cmd = m.FlushSpinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab":
		m.ActivePanel = (m.ActivePanel + 1) % 3
	case "shift+tab":
		m.ActivePanel = (m.ActivePanel + 2) % 3
	case "1":
		m.ActivePanel = PanelQueue
	case "2":
		m.ActivePanel = PanelCollections
	case "3":
		m.ActivePanel = PanelRateLimits

	case "up", "k":
		if m.ScrollOffset[m.ActivePanel] > 0 {
			m.ScrollOffset[m.ActivePanel]--
		}
	case "down", "j":
		m.ScrollOffset[m.ActivePanel]++
		m.clampScroll()

	case "r":
		return m, m.refreshCmd()

	case "f":
		if m.Flushing {
			return m, nil
		}
		m.Flushing = true
		m.LastFlushMsg = ""
		return m, tea.Batch(m.FlushSpinner.Tick, m.flushCmd())
	}
	return m, nil
}

// clampScroll keeps each panel's offset inside its row count
func (m *Model) clampScroll() {
	rows := map[Panel]int{
		PanelQueue:       len(m.Queue),
		PanelCollections: len(m.Status.Collections),
		PanelRateLimits:  len(m.Buckets),
	}
	for p, n := range rows {
		if m.ScrollOffset[p] >= n {
			m.ScrollOffset[p] = n - 1
		}
		if m.ScrollOffset[p] < 0 {
			m.ScrollOffset[p] = 0
		}
	}
}

func (m Model) View() string {
	return m.renderView()
}
