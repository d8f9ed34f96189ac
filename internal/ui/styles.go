// Package ui handles terminal color output for the CLI.
package ui

import "fmt"

// ANSI256 color codes for session outcomes.
const (
	colorGood = 114 // green, settled
	colorWarn = 179 // yellow, in flight
	colorBad  = 167 // red, unwound or failed
)

var noColor bool

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderGood returns s in green, for committed sessions.
func RenderGood(s string) string { return paint(colorGood, s) }

// RenderWarn returns s in yellow, for sessions still moving through the
// protocol.
func RenderWarn(s string) string { return paint(colorWarn, s) }

// RenderBad returns s in red, for sessions that rolled back or are rolling
// back.
func RenderBad(s string) string { return paint(colorBad, s) }
