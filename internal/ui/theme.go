package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nicokoch/fastcopy/internal/config"
)

// Default palette (Catppuccin Mocha).
var (
	ColorGreen = lipgloss.Color("#a6e3a1")
	ColorRed   = lipgloss.Color("#f38ba8")
	ColorMuted = lipgloss.Color("#5a6278")
)

// Theme colors status text. The zero Theme renders text unchanged, which is
// what non-terminal output gets.
type Theme struct {
	styled bool
	ok     lipgloss.Style
	fail   lipgloss.Style
	muted  lipgloss.Style
}

// NewTheme builds a colored theme, applying overrides from the config file.
func NewTheme(cfg config.ThemeConfig) Theme {
	pick := func(override *string, def lipgloss.Color) lipgloss.Color {
		if override != nil && *override != "" {
			return lipgloss.Color(*override)
		}
		return def
	}
	return Theme{
		styled: true,
		ok:     lipgloss.NewStyle().Foreground(pick(cfg.OK, ColorGreen)).Bold(true),
		fail:   lipgloss.NewStyle().Foreground(pick(cfg.Fail, ColorRed)).Bold(true),
		muted:  lipgloss.NewStyle().Foreground(pick(cfg.Muted, ColorMuted)),
	}
}

func (t Theme) OK(s string) string    { return t.render(t.ok, s) }
func (t Theme) Fail(s string) string  { return t.render(t.fail, s) }
func (t Theme) Muted(s string) string { return t.render(t.muted, s) }

func (t Theme) render(style lipgloss.Style, s string) string {
	if !t.styled {
		return s
	}
	return style.Render(s)
}
