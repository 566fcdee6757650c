// Package ui provides terminal styling and output helpers for the shopmirror CLI.
package ui

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal returns true if stdout is connected to a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseColor determines if ANSI color codes should be used.
// Respects standard conventions:
//   - NO_COLOR: https://no-color.org/ - disables color if set
//   - CLICOLOR=0: disables color
//   - CLICOLOR_FORCE: forces color even in non-TTY
//   - Falls back to TTY detection
func ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if os.Getenv("CLICOLOR_FORCE") != "" {
		return true
	}
	return IsTerminal()
}

// ShouldUseGlyphs determines if progress glyphs (→ ✓ ⚠) should decorate
// output. Disabled in non-TTY mode to keep output machine-readable, and
// explicitly with SHOPMIRROR_NO_GLYPHS.
func ShouldUseGlyphs() bool {
	if os.Getenv("SHOPMIRROR_NO_GLYPHS") != "" {
		return false
	}
	return IsTerminal()
}

// Width returns the terminal width, or 80 when stdout is not a terminal.
func Width() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
