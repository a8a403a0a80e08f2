// Package banner prints ideabot's terminal banners.
package banner

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Logo is the ASCII art logo
const Logo = `
   ██╗██████╗ ███████╗ █████╗ ██████╗  ██████╗ ████████╗
   ██║██╔══██╗██╔════╝██╔══██╗██╔══██╗██╔═══██╗╚══██╔══╝
   ██║██║  ██║█████╗  ███████║██████╔╝██║   ██║   ██║
   ██║██║  ██║██╔══╝  ██╔══██║██╔══██╗██║   ██║   ██║
   ██║██████╔╝███████╗██║  ██║██████╔╝╚██████╔╝   ██║
   ╚═╝╚═════╝ ╚══════╝╚═╝  ╚═╝╚═════╝  ╚═════╝    ╚═╝
`

// Tagline is the project tagline
const Tagline = "Catch every idea before it slips away"

var (
	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4a054")) // amber

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8b949e")) // mid gray

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7eb8da")) // steel blue
)

// Field is one label/value row under the banner.
type Field struct {
	Label string
	Value string
}

// PrintWithVersion prints the banner with version info
func PrintWithVersion(w io.Writer, version string) {
	_, _ = fmt.Fprint(w, logoStyle.Render(Logo))
	_, _ = fmt.Fprintf(w, "\n   %s\n", Tagline)
	_, _ = fmt.Fprintf(w, "   v%s\n\n", version)
}

// Startup prints the banner followed by aligned fields.
func Startup(w io.Writer, version string, fields ...Field) {
	PrintWithVersion(w, version)

	width := 0
	for _, f := range fields {
		width = max(width, len(f.Label))
	}
	for _, f := range fields {
		label := f.Label + ":" + strings.Repeat(" ", width-len(f.Label)+1)
		_, _ = fmt.Fprintf(w, "   %s%s\n", labelStyle.Render(label), valueStyle.Render(f.Value))
	}
	if len(fields) > 0 {
		_, _ = fmt.Fprintln(w)
	}
}
