// Package output provides styled terminal output helpers (success, error,
// warning, record formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mwhite/fleetsync/internal/models"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
)

// Success prints a success message.
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message.
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message.
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message.
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// FormatRecordLine renders one record as a single list line. Records still
// carrying a local id are marked pending.
func FormatRecordLine(rec models.Record, pending bool) string {
	var b strings.Builder
	b.WriteString(idStyle.Render(rec.ID))
	if pending {
		b.WriteString(" " + pendingStyle.Render("[pending]"))
	}

	if title := recordTitle(rec); title != "" {
		b.WriteString("  " + titleStyle.Render(title))
	}
	b.WriteString("  " + subtleStyle.Render("updated "+rec.UpdatedAt.Local().Format("2006-01-02 15:04")))
	return b.String()
}

// FormatRecordDetail renders the record envelope and its payload fields,
// one per line, sorted by key.
func FormatRecordDetail(rec models.Record, pending bool) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(string(rec.Collection)+" "+rec.ID) + "\n")
	if pending {
		b.WriteString(pendingStyle.Render("pending: not yet committed to the remote store") + "\n")
	}
	b.WriteString(subtleStyle.Render(fmt.Sprintf("created %s, updated %s",
		rec.CreatedAt.Local().Format(time.RFC822),
		rec.UpdatedAt.Local().Format(time.RFC822))) + "\n")

	fields := map[string]any{}
	if err := json.Unmarshal(rec.Fields, &fields); err != nil || len(fields) == 0 {
		return b.String()
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteString("\n")
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("  %s: %v\n", subtleStyle.Render(k), fields[k]))
	}
	return b.String()
}

// FormatQueueLine renders one offline queue entry for status output.
func FormatQueueLine(entry models.QueueEntry) string {
	return fmt.Sprintf("  %s %s %s %s",
		subtleStyle.Render(fmt.Sprintf("#%d", entry.Seq)),
		string(entry.Op),
		string(entry.Collection),
		idStyle.Render(entry.RecordID))
}

// JSON prints v as indented JSON.
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// recordTitle extracts a human label from the payload: the first of
// name, title, description.
func recordTitle(rec models.Record) string {
	var fields map[string]any
	if err := json.Unmarshal(rec.Fields, &fields); err != nil {
		return ""
	}
	for _, key := range []string{"name", "title", "description"} {
		if v, ok := fields[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
