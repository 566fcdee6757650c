package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Palette shared by all rendered output. Adaptive pairs keep the glyphs
// readable on light and dark backgrounds.
var (
	ColorAccent = lipgloss.AdaptiveColor{Light: "63", Dark: "86"}
	ColorPass   = lipgloss.AdaptiveColor{Light: "28", Dark: "78"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "166", Dark: "214"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "124", Dark: "204"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "245", Dark: "240"}
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	warnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	failStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	accentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	mutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
)

// RenderPass styles s as a success marker.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn styles s as a warning.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail styles s as a failure.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderAccent styles s as a highlighted value (shop domains, handles).
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderMuted styles s as secondary detail.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// ApplyColorProfile pins lipgloss's renderer to the environment's wishes
// before anything renders. lipgloss only sniffs the terminal on its own;
// NO_COLOR and CLICOLOR handling live in ShouldUseColor.
func ApplyColorProfile() {
	if !ShouldUseColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}
