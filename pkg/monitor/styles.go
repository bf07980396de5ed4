package monitor

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/mwhite/fleetsync/internal/models"
)

var (
	// Base colors
	primaryColor = lipgloss.Color("212")
	mutedColor   = lipgloss.Color("241")
	successColor = lipgloss.Color("42")
	warningColor = lipgloss.Color("214")
	errorColor   = lipgloss.Color("196")

	// Panel styles
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activePanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(primaryColor).
				Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	// Text styles
	subtleStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	helpStyle      = lipgloss.NewStyle().Foreground(mutedColor)
	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	idStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))

	onlineStyle  = lipgloss.NewStyle().Foreground(successColor)
	pendingStyle = lipgloss.NewStyle().Foreground(warningColor)
	errStyle     = lipgloss.NewStyle().Foreground(errorColor)

	// Operation badges
	opStyles = map[models.OpType]lipgloss.Style{
		models.OpCreate: lipgloss.NewStyle().Foreground(successColor),
		models.OpUpdate: lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.OpDelete: lipgloss.NewStyle().Foreground(errorColor),
	}

	barFilled = "█"
	barEmpty  = "░"
)

// formatOp renders a queue operation badge with color
func formatOp(op models.OpType) string {
	style, ok := opStyles[op]
	if !ok {
		return string(op)
	}
	return style.Render(string(op))
}
