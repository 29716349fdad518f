package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-pan/internal/supervisor"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderSummaryView renders the main summary dashboard.
func (m Model) renderSummaryView() string {
	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderProgress())

	if m.stats != nil {
		sections = append(sections, m.renderResults())
		if m.stats.Measured > 0 {
			sections = append(sections, m.renderDurations())
		}
	}

	sections = append(sections, m.renderTermination())
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderDetailedView renders the slot table.
func (m Model) renderDetailedView() string {
	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderSlotTable())
	if len(m.status.Orphans) > 0 {
		sections = append(sections, m.renderOrphans())
	}
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	header := fmt.Sprintf(
		" go-pan │ %s │ %s │ Slots: %d/%d │ Elapsed: %s ",
		m.tag,
		GetPhaseLabel(m.status.Phase),
		m.ActiveSlots(),
		m.concurrency,
		formatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Progress Section
// =============================================================================

func (m Model) renderProgress() string {
	barWidth := m.width - 30
	if barWidth < 20 {
		barWidth = 20
	}

	rows := []string{
		sectionHeaderStyle.Render("Slots"),
		RenderProgressBar(m.SlotUsage(), barWidth),
		statusInfo.Render(fmt.Sprintf("%d of %d slots running, starts left: %s",
			m.ActiveSlots(), m.concurrency, formatStarts(m.status.StartsLeft))),
	}

	if p := m.RunProgress(); p >= 0 {
		remaining := m.runTime - m.Elapsed()
		if remaining < 0 {
			remaining = 0
		}
		rows = append(rows,
			sectionHeaderStyle.Render("Run Time"),
			RenderProgressBar(p, barWidth),
			mutedStyle.Render(fmt.Sprintf("%s remaining of %s", formatDuration(remaining), formatDuration(m.runTime))),
		)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Results
// =============================================================================

func (m Model) renderResults() string {
	s := m.stats

	failedStyle := valueStyle
	if s.Failed > 0 {
		failedStyle = valueBadStyle
	}

	rows := []string{
		RenderKeyValue("Launched", formatNumber(s.Completed)),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Passed:"),
			valueGoodStyle.Render(formatNumber(s.Passed)),
		),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Failed:"),
			failedStyle.Render(formatNumber(s.Failed)),
		),
		RenderKeyValue("Skipped (TCONF)", formatNumber(s.Skipped)),
		RenderKeyValue("Stopped", formatNumber(s.Stopped)),
	}
	if s.StartFailures > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Failed to start:"),
			valueBadStyle.Render(formatNumber(s.StartFailures)),
		))
	}
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render("Failure Rate:"),
		GetFailureRateStyle(m.FailureRate()).Render(formatPercent(m.FailureRate())),
	))

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Results")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Test Durations
// =============================================================================

func (m Model) renderDurations() string {
	s := m.stats

	rows := []string{
		renderDurationRow("P50 (median)", s.DurationP50),
		renderDurationRow("P95", s.DurationP95),
		renderDurationRow("P99", s.DurationP99),
		renderDurationRow("Max", s.DurationMax),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Test Duration")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

func renderDurationRow(label string, d time.Duration) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render(label+":"),
		valueStyle.Render(formatMs(d)),
	)
}

// =============================================================================
// Termination
// =============================================================================

func (m Model) renderTermination() string {
	rows := []string{
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Last Signal:"),
			GetSignalLabel(m.status.LastSignal),
		),
	}

	orphanStyle := valueStyle
	if len(m.status.Orphans) > 0 {
		orphanStyle = valueWarnStyle
	}
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render("Orphan Groups:"),
		orphanStyle.Render(fmt.Sprintf("%d", len(m.status.Orphans))),
	))

	if m.stats != nil && len(m.stats.Signals) > 0 {
		names := make([]string, 0, len(m.stats.Signals))
		for name := range m.stats.Signals {
			names = append(names, name)
		}
		sort.Strings(names)

		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = fmt.Sprintf("%s×%d", name, m.stats.Signals[name])
		}
		rows = append(rows, RenderKeyValue("Broadcasts", strings.Join(parts, ", ")))
	}

	if m.status.ExitStatus != 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Exit Status:"),
			statusError.Render(fmt.Sprintf("%d", m.status.ExitStatus)),
		))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Termination")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Slot Table (Detailed View)
// =============================================================================

func (m Model) renderSlotTable() string {
	if len(m.status.Slots) == 0 {
		return boxStyle.Width(m.width - 2).Render(
			dimStyle.Render("No slot data available. Press 'd' to toggle."),
		)
	}

	header := tableHeaderStyle.Render(
		fmt.Sprintf("%-5s %-20s %-8s %-9s %-10s %-8s",
			"Slot", "Tag", "PGID", "State", "Runtime", "Signal"),
	)

	maxRows := m.height - 10
	if maxRows < 5 {
		maxRows = 5
	}

	now := time.Now()
	var rows []string
	for i, slot := range m.status.Slots {
		if i >= maxRows {
			rows = append(rows, dimStyle.Render(fmt.Sprintf("... and %d more slots", len(m.status.Slots)-maxRows)))
			break
		}

		rowStyle := tableRowEvenStyle
		if i%2 == 1 {
			rowStyle = tableRowOddStyle
		}

		rows = append(rows, rowStyle.Render(formatSlotRow(i, slot, now)))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{
			sectionHeaderStyle.Render("Slots"),
			header,
		}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

func formatSlotRow(i int, slot supervisor.Slot, now time.Time) string {
	state := slot.State()
	if !state.IsActive() {
		return fmt.Sprintf("%-5d %-20s %-8s %-9s %-10s %-8s", i, "-", "-", state, "-", "-")
	}

	signal := "-"
	if slot.Stopping {
		signal = formatSignal(slot.Signal)
	}
	return fmt.Sprintf("%-5d %-20.20s %-8d %-9s %-10s %-8s",
		i,
		slot.Entry.Tag,
		slot.PGID,
		state,
		formatDuration(now.Sub(slot.Start)),
		signal,
	)
}

func (m Model) renderOrphans() string {
	pgids := make([]string, len(m.status.Orphans))
	for i, pgid := range m.status.Orphans {
		pgids[i] = fmt.Sprintf("%d", pgid)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Orphan Groups"),
		valueWarnStyle.Render(strings.Join(pgids, " ")),
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	parts := []string{"q: close dashboard", "ctrl+c: interrupt", "d: toggle slots", "r: refresh"}
	if m.interrupts > 0 {
		parts = append(parts, fmt.Sprintf("interrupts sent: %d", m.interrupts))
	}
	if m.metricsAddr != "" {
		parts = append(parts, fmt.Sprintf("metrics: http://%s/metrics", m.metricsAddr))
	}
	parts = append(parts, "updated "+m.lastUpdate.Format("15:04:05"))

	return footerStyle.Render(strings.Join(parts, " │ "))
}
