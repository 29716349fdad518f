package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-pan/internal/orchestrator"
	"github.com/randomizedcoder/go-pan/internal/stats"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// StatusMsg carries an updated scheduler view.
type StatusMsg struct {
	Status orchestrator.Status
	Stats  *stats.Snapshot
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// Model represents the TUI state.
type Model struct {
	// Configuration
	tag         string
	concurrency int
	runTime     time.Duration
	metricsAddr string

	// Current state
	status       orchestrator.Status
	stats        *stats.Snapshot
	startTime    time.Time
	lastUpdate   time.Time
	detailedView bool
	interrupts   int

	// Display options
	width  int
	height int

	statusSource StatusSource
	statsSource  StatsSource
	onInterrupt  func()

	// Quit flag
	quitting bool
}

// StatusSource provides the scheduler's state. *orchestrator.Orchestrator
// implements it.
type StatusSource interface {
	Status() orchestrator.Status
}

// StatsSource provides run statistics. *stats.Run implements it.
type StatsSource interface {
	Snapshot(now time.Time) stats.Snapshot
}

// Config holds TUI configuration.
type Config struct {
	Tag         string
	Concurrency int
	RunTime     time.Duration
	MetricsAddr string

	StatusSource StatusSource
	StatsSource  StatsSource

	// OnInterrupt is called for ctrl+c, which the terminal no longer
	// delivers as SIGINT while the dashboard owns it.
	OnInterrupt func()
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		tag:          cfg.Tag,
		concurrency:  cfg.Concurrency,
		runTime:      cfg.RunTime,
		metricsAddr:  cfg.MetricsAddr,
		statusSource: cfg.StatusSource,
		statsSource:  cfg.StatsSource,
		onInterrupt:  cfg.OnInterrupt,
		startTime:    time.Now(),
		lastUpdate:   time.Now(),
		width:        80,
		height:       24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.interrupts++
			if m.onInterrupt != nil {
				m.onInterrupt()
			}
			return m, nil
		case "q", "esc":
			m.quitting = true
			return m, tea.Quit
		case "d":
			m.detailedView = !m.detailedView
			return m, nil
		case "r":
			return m, tickCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		m.refresh(time.Time(msg))
		return m, tickCmd()

	case StatusMsg:
		m.status = msg.Status
		if msg.Stats != nil {
			m.stats = msg.Stats
		}
		m.lastUpdate = time.Now()
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.detailedView {
		return m.renderDetailedView()
	}
	return m.renderSummaryView()
}

func (m *Model) refresh(now time.Time) {
	if m.statusSource != nil {
		m.status = m.statusSource.Status()
	}
	if m.statsSource != nil {
		s := m.statsSource.Snapshot(now)
		m.stats = &s
	}
	m.lastUpdate = now
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the run started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// ActiveSlots returns the number of occupied slots.
func (m Model) ActiveSlots() int {
	n := 0
	for _, s := range m.status.Slots {
		if s.State().IsActive() {
			n++
		}
	}
	return n
}

// Concurrency returns the configured slot count.
func (m Model) Concurrency() int {
	return m.concurrency
}

// SlotUsage returns the fraction of slots occupied (0.0 to 1.0).
func (m Model) SlotUsage() float64 {
	if m.concurrency == 0 {
		return 0
	}
	return float64(m.ActiveSlots()) / float64(m.concurrency)
}

// RunProgress returns how much of the run time has elapsed (0.0 to 1.0), or
// -1 when the run has no time limit.
func (m Model) RunProgress() float64 {
	if m.runTime <= 0 {
		return -1
	}
	p := float64(m.Elapsed()) / float64(m.runTime)
	if p > 1 {
		p = 1
	}
	return p
}

// FailureRate returns failed launches as a fraction of completed ones.
func (m Model) FailureRate() float64 {
	if m.stats == nil || m.stats.Completed == 0 {
		return 0
	}
	return float64(m.stats.Failed) / float64(m.stats.Completed)
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendStatus sends a status update to the TUI.
func SendStatus(p *tea.Program, status orchestrator.Status, snapshot *stats.Snapshot) {
	if p != nil {
		p.Send(StatusMsg{Status: status, Stats: snapshot})
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatNumber formats a number with K/M suffixes.
func formatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// formatMs formats a duration as milliseconds.
func formatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}

// formatPercent formats a percentage.
func formatPercent(value float64) string {
	return fmt.Sprintf("%.1f%%", value*100)
}

// formatStarts formats the remaining starts budget.
func formatStarts(n int) string {
	if n == orchestrator.Infinite {
		return "unlimited"
	}
	return fmt.Sprintf("%d", n)
}
