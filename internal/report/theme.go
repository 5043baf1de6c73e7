package report

import "github.com/charmbracelet/lipgloss"

// Colors follow the 256-color palette so they degrade on basic terminals.
var (
	ColorPrimary = lipgloss.Color("6")   // Teal
	ColorMuted   = lipgloss.Color("241") // Gray
	ColorSuccess = lipgloss.Color("42")  // Green
	ColorWarning = lipgloss.Color("214") // Orange
	ColorError   = lipgloss.Color("196") // Red
)

type styles struct {
	header  lipgloss.Style
	role    lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	border  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		header: r.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(ColorMuted),
		role:    r.NewStyle().Bold(true).Foreground(ColorPrimary),
		muted:   r.NewStyle().Foreground(ColorMuted),
		success: r.NewStyle().Foreground(ColorSuccess),
		warning: r.NewStyle().Foreground(ColorWarning),
		failure: r.NewStyle().Foreground(ColorError),
		border:  r.NewStyle().Foreground(ColorMuted),
	}
}
