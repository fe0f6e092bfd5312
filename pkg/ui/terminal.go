// Package ui holds the command-line output helpers.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
)

// Banner is printed at the start of interactive commands
const Banner = `
  ┌─────────────────────────────────────────┐
  │  osufetch · recent beatmap fetcher      │
  └─────────────────────────────────────────┘
`

var (
	pink   = lipgloss.Color("#FF66AA")
	cyan   = lipgloss.Color("#66CCFF")
	yellow = lipgloss.Color("#FFDD55")
	green  = lipgloss.Color("#88DD66")
	red    = lipgloss.Color("#FF5555")
	grey   = lipgloss.Color("#888888")

	bannerStyle  = lipgloss.NewStyle().Foreground(pink).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	valueStyle   = lipgloss.NewStyle().Foreground(yellow)
	successStyle = lipgloss.NewStyle().Foreground(green).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(red).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(yellow)
	dimStyle     = lipgloss.NewStyle().Foreground(grey)
)

// Out receives all output; tests replace it
var Out io.Writer = os.Stdout

var quiet atomic.Bool

// SetQuietMode suppresses everything but errors
func SetQuietMode(q bool) {
	quiet.Store(q)
}

// IsQuietMode reports whether quiet mode is on
func IsQuietMode() bool {
	return quiet.Load()
}

// Dim renders s in a muted color
func Dim(s string) string {
	return dimStyle.Render(s)
}

// PrintBanner prints the banner
func PrintBanner() {
	if IsQuietMode() {
		return
	}
	fmt.Fprint(Out, bannerStyle.Render(Banner))
	fmt.Fprintln(Out)
}

// PrintError prints an error message
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(Out, errorStyle.Render(msg))
}

// PrintSuccess prints a success message
func PrintSuccess(msg string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintln(Out, successStyle.Render(msg))
}

// PrintInfo prints a label: value pair
func PrintInfo(label string, value string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintf(Out, "%s: %s\n", labelStyle.Render(label), valueStyle.Render(value))
}

// PrintWarning prints a warning message
func PrintWarning(msg string, args ...interface{}) {
	if IsQuietMode() {
		return
	}
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(Out, warnStyle.Render(msg))
}
