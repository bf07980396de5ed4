package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// renderView renders the complete dashboard
func (m Model) renderView() string {
	if m.Width == 0 || m.Height == 0 {
		return "Loading..."
	}
	if m.Width < MinWidth || m.Height < MinHeight {
		return m.renderCompact()
	}

	header := m.renderHeader()
	footer := m.renderFooter()

	availableHeight := m.Height - lipgloss.Height(header) - lipgloss.Height(footer)
	panelHeight := availableHeight / 3

	queue := m.renderQueuePanel(panelHeight)
	collections := m.renderCollectionsPanel(panelHeight)
	rates := m.renderRateLimitPanel(panelHeight)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		queue,
		collections,
		rates,
		footer,
	)
}

func (m Model) renderHeader() string {
	title := panelTitleStyle.Render("fleetsync " + m.Version)

	var state string
	switch {
	case m.Flushing:
		state = m.FlushSpinner.View() + " flushing"
	case m.Status.FlushInProgress:
		state = pendingStyle.Render("flush in progress")
	case m.Status.QueueTotal > 0:
		state = pendingStyle.Render(fmt.Sprintf("%d queued", m.Status.QueueTotal))
	default:
		state = onlineStyle.Render("queue empty")
	}

	line := title + "  " + state
	if m.LastFlushMsg != "" {
		line += "  " + subtleStyle.Render(m.LastFlushMsg)
	}
	return line
}

func (m Model) renderQueuePanel(height int) string {
	var rows []string
	for _, entry := range m.Queue {
		ts := timestampStyle.Render(entry.QueuedAt.Local().Format("15:04:05"))
		attempts := ""
		if entry.AttemptCount > 0 {
			attempts = errStyle.Render(fmt.Sprintf(" (%d attempts)", entry.AttemptCount))
		}
		rows = append(rows, fmt.Sprintf("%s %s %s %s%s",
			ts, formatOp(entry.Op), string(entry.Collection),
			idStyle.Render(truncateID(entry.RecordID, 20)), attempts))
	}
	if len(rows) == 0 {
		rows = []string{subtleStyle.Render("nothing queued")}
	}
	title := fmt.Sprintf("Offline Queue (%d)", len(m.Queue))
	return m.renderPanel(PanelQueue, title, rows, height)
}

func (m Model) renderCollectionsPanel(height int) string {
	var rows []string
	for _, cs := range m.Status.Collections {
		synced := subtleStyle.Render("never synced")
		if cs.Synced {
			synced = timestampStyle.Render("synced " + relativeTime(cs.LastSynced))
		}
		pending := ""
		if cs.Pending > 0 {
			pending = pendingStyle.Render(fmt.Sprintf(" %d pending", cs.Pending))
		}
		rows = append(rows, fmt.Sprintf("%-16s %4d records%s  %s",
			string(cs.Collection), cs.Records, pending, synced))
	}
	return m.renderPanel(PanelCollections, "Collections", rows, height)
}

func (m Model) renderRateLimitPanel(height int) string {
	var rows []string
	for _, b := range m.Buckets {
		bar := usageBar(b.Count, b.Limit, 12)
		state := onlineStyle.Render("ok")
		if b.Exhausted {
			state = errStyle.Render("exhausted, resets " + relativeTime(b.ResetAt))
		}
		rows = append(rows, fmt.Sprintf("%-32s %s %3d/%-3d %s",
			truncateID(b.Key, 32), bar, b.Count, b.Limit, state))
	}
	if len(rows) == 0 {
		rows = []string{subtleStyle.Render("no active windows")}
	}
	return m.renderPanel(PanelRateLimits, "Rate Limits", rows, height)
}

func (m Model) renderPanel(p Panel, title string, rows []string, height int) string {
	style := panelStyle
	if m.ActivePanel == p {
		style = activePanelStyle
	}

	// border + padding eat 2 rows and 4 columns
	innerHeight := height - 2
	if innerHeight < 2 {
		innerHeight = 2
	}
	innerWidth := m.Width - 4

	visible := rows
	offset := m.ScrollOffset[p]
	bodyHeight := innerHeight - 1 // minus title line
	if offset > 0 && offset < len(rows) {
		visible = rows[offset:]
	}
	if len(visible) > bodyHeight {
		visible = visible[:bodyHeight]
	}

	var b strings.Builder
	b.WriteString(panelTitleStyle.Render(title) + "\n")
	for i, row := range visible {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(ansi.Truncate(row, innerWidth, "…"))
	}

	return style.Width(innerWidth).Height(innerHeight).Render(b.String())
}

func (m Model) renderFooter() string {
	help := helpStyle.Render("tab: switch panel  f: flush  r: refresh  q: quit")
	status := ""
	if m.Err != nil {
		status = errStyle.Render("  error: " + m.Err.Error())
	} else if !m.LastRefresh.IsZero() {
		status = subtleStyle.Render("  refreshed " + m.LastRefresh.Format("15:04:05"))
	}
	return help + status
}

// renderCompact is the fallback for terminals below the minimum size
func (m Model) renderCompact() string {
	return fmt.Sprintf("fleetsync: %d queued, %d rate windows\n(terminal too small for dashboard, need %dx%d)",
		m.Status.QueueTotal, len(m.Buckets), MinWidth, MinHeight)
}

func describeFlush(msg FlushDoneMsg) string {
	if msg.Err != nil {
		return "flush failed: " + msg.Err.Error()
	}
	if msg.Stats.Skipped {
		return "flush already running"
	}
	return fmt.Sprintf("flushed %d, %d failed in %s",
		msg.Stats.Committed, msg.Stats.Failed, msg.Stats.Duration.Round(time.Millisecond))
}

func usageBar(count, limit, width int) string {
	if limit <= 0 {
		return strings.Repeat(barEmpty, width)
	}
	filled := count * width / limit
	if filled > width {
		filled = width
	}
	return strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, width-filled)
}

func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < 0:
		return "in " + (-d).Round(time.Second).String()
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}

func truncateID(id string, max int) string {
	if len(id) <= max {
		return id
	}
	return id[:max-3] + "..."
}
