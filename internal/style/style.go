package style

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

// --- Reusable Colors ---
var (
	colorPink      = lipgloss.Color("205")
	colorDarkGray  = lipgloss.Color("240")
	colorLightGray = lipgloss.Color("229")
	colorCyan      = lipgloss.Color("212")
	colorPurple    = lipgloss.Color("99")
	colorRed       = lipgloss.Color("196")
	colorGreen     = lipgloss.Color("42")
)

// --- General Purpose Styles ---
var (
	ErrorStyle   = lipgloss.NewStyle().Foreground(colorRed)
	SuccessStyle = lipgloss.NewStyle().Foreground(colorGreen)
	HelpStyle    = lipgloss.NewStyle().Faint(true)
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPink)
	DocStyle     = lipgloss.NewStyle().Margin(1, 2)
)

// --- Panels ---
var (
	BaseStyle          = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(colorDarkGray).Padding(0, 1)
	FocusedStyle       = BaseStyle.BorderForeground(colorCyan)
	HighlightFontStyle = lipgloss.NewStyle().Foreground(colorCyan)
	DisabledStyle      = lipgloss.NewStyle().Foreground(colorDarkGray)
)

// --- Liveness Indicator ---
var (
	ConnectedStyle    = lipgloss.NewStyle().Foreground(colorGreen).SetString("●")
	DisconnectedStyle = lipgloss.NewStyle().Foreground(colorDarkGray).SetString("○")
)

// --- Progress Bar ---
var (
	BarFilledStyle = lipgloss.NewStyle().Foreground(colorPink)
	BarEmptyStyle  = lipgloss.NewStyle().Foreground(colorDarkGray)
)

// --- File Picker Styles ---
var (
	CursorStyle   = lipgloss.NewStyle().Foreground(colorCyan).SetString("> ")
	NoCursorStyle = lipgloss.NewStyle().SetString("  ")
	DirStyle      = lipgloss.NewStyle().Foreground(colorPurple)
	FileStyle     = lipgloss.NewStyle().Foreground(colorLightGray)
	HeaderStyle   = lipgloss.NewStyle().Bold(true)
)

// NewSpinner creates a spinner with a consistent style.
func NewSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPink)
	return s
}
