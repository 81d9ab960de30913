package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/hopper/internal/eventlog"
	"github.com/felixgeelhaar/hopper/internal/plan"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("170")).
				Bold(true)

	addedLineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	removedLineStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("9"))

	hunkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	approveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	rejectStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	previewStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

// statusColor returns the ANSI color for a step status.
func statusColor(s plan.Status) lipgloss.Color {
	switch s {
	case plan.StatusSuccess:
		return lipgloss.Color("2") // Green
	case plan.StatusInProgress:
		return lipgloss.Color("3") // Yellow
	case plan.StatusWaitingConfirmation:
		return lipgloss.Color("12") // Blue
	case plan.StatusFailed:
		return lipgloss.Color("1") // Red
	case plan.StatusRolledBack:
		return lipgloss.Color("5") // Magenta
	default:
		return lipgloss.Color("8") // Gray
	}
}

// levelColor returns the ANSI color for an event log level.
func levelColor(l eventlog.Level) lipgloss.Color {
	switch l {
	case eventlog.LevelSuccess:
		return lipgloss.Color("2")
	case eventlog.LevelError:
		return lipgloss.Color("1")
	case eventlog.LevelWarning:
		return lipgloss.Color("3")
	case eventlog.LevelCommand:
		return lipgloss.Color("14")
	default:
		return lipgloss.Color("252")
	}
}

// roleColor returns the ANSI color for an agent role badge.
func roleColor(r eventlog.Role) lipgloss.Color {
	switch r {
	case eventlog.RoleScanner:
		return lipgloss.Color("33")
	case eventlog.RoleStrategist:
		return lipgloss.Color("135")
	case eventlog.RoleExecutor:
		return lipgloss.Color("208")
	case eventlog.RoleQA:
		return lipgloss.Color("42")
	default:
		return lipgloss.Color("8")
	}
}
