package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gunwifi/gunwifi/internal/iface"
	"github.com/gunwifi/gunwifi/pkg/wifi"
)

var (
	// Colors
	colorAccent  = lipgloss.Color("#E17055")
	colorGreen   = lipgloss.Color("#00B894")
	colorRed     = lipgloss.Color("#D63031")
	colorYellow  = lipgloss.Color("#FDCB6E")
	colorBlue    = lipgloss.Color("#0984E3")
	colorPurple  = lipgloss.Color("#6C5CE7")
	colorCyan    = lipgloss.Color("#00CEC9")
	colorGray    = lipgloss.Color("#636E72")
	colorDimGray = lipgloss.Color("#2D3436")
	colorWhite   = lipgloss.Color("#DFE6E9")

	// Title bar
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			PaddingLeft(1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			PaddingRight(1)

	// Table styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan).
			PaddingLeft(2)

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorWhite).
				Background(lipgloss.Color("#2D3436"))

	normalRowStyle = lipgloss.NewStyle().
			Foreground(colorWhite).
			PaddingLeft(2)

	// Network encryption colors
	encWPA3Style = lipgloss.NewStyle().Foreground(colorPurple)
	encWPA2Style = lipgloss.NewStyle().Foreground(colorGreen)
	encWPAStyle  = lipgloss.NewStyle().Foreground(colorYellow)
	encWEPStyle  = lipgloss.NewStyle().Foreground(colorRed)
	encOpenStyle = lipgloss.NewStyle().Foreground(colorGray)

	// Job status
	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorGreen)

	failStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	progressStyle = lipgloss.NewStyle().
			Foreground(colorBlue)

	waitingStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	// Key bindings help
	keyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	// Borders
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGray)

	// Interface state badges
	monitorBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorDimGray).
			Background(colorGreen).
			Padding(0, 1)

	managedBadge = lipgloss.NewStyle().
			Foreground(colorWhite).
			Background(colorBlue).
			Padding(0, 1)

	// Title
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	// Info text
	infoStyle = lipgloss.NewStyle().
			Foreground(colorCyan)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorGray)
)

// SignalBar returns a visual signal strength indicator.
func SignalBar(power int) string {
	// power is negative dBm, higher (less negative) = stronger
	var bars int
	switch {
	case power >= -50:
		bars = 4
	case power >= -60:
		bars = 3
	case power >= -70:
		bars = 2
	case power >= -80:
		bars = 1
	}

	var sb strings.Builder
	for i := 0; i < 4; i++ {
		if i < bars {
			sb.WriteString(barOnStyle.Render("█"))
		} else {
			sb.WriteString(barOffStyle.Render("░"))
		}
	}
	return sb.String()
}

var (
	barOnStyle  = lipgloss.NewStyle().Foreground(colorGreen)
	barOffStyle = lipgloss.NewStyle().Foreground(colorDimGray)
)

// EncryptionColor returns styled encryption text.
func EncryptionColor(enc wifi.EncryptionType) string {
	s := enc.String()
	switch enc {
	case wifi.EncWPA3:
		return encWPA3Style.Render(s)
	case wifi.EncWPA2:
		return encWPA2Style.Render(s)
	case wifi.EncWPA:
		return encWPAStyle.Render(s)
	case wifi.EncWEP:
		return encWEPStyle.Render(s)
	case wifi.EncOpen:
		return encOpenStyle.Render(s)
	default:
		return s
	}
}

// StateBadge renders the interface mode.
func StateBadge(st iface.InterfaceState) string {
	if st == iface.StateMonitor {
		return monitorBadge.Render("MONITOR")
	}
	return managedBadge.Render(strings.ToUpper(st.String()))
}
