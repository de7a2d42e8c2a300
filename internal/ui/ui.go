// Package ui provides colored terminal output for the korlog commands.
package ui

import "github.com/fatih/color"

var (
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
	Green  = color.New(color.FgGreen)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
	Dim    = color.New(color.Faint)
)

// InitColors disables colored output. NO_COLOR and non-TTY detection
// are handled by the color package itself.
func InitColors(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}

// Success prints a green line with a check mark
func Success(format string, args ...any) {
	_, _ = Green.Printf("✓ "+format+"\n", args...)
}

// Fail prints a red line with a cross
func Fail(format string, args ...any) {
	_, _ = Red.Printf("✗ "+format+"\n", args...)
}

// Warn prints a yellow line
func Warn(format string, args ...any) {
	_, _ = Yellow.Printf("! "+format+"\n", args...)
}

// Info prints a cyan line
func Info(format string, args ...any) {
	_, _ = Cyan.Printf(format+"\n", args...)
}
