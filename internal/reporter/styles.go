package reporter

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Styles colors report lines. With color off every method returns its input
// unchanged.
type Styles struct {
	color   bool
	info    lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	bad     lipgloss.Style
	heading lipgloss.Style
}

// NewStyles returns styles rendering for w.
func NewStyles(w io.Writer, color bool) *Styles {
	r := lipgloss.NewRenderer(w)
	return &Styles{
		color:   color,
		info:    r.NewStyle().Foreground(lipgloss.Color("6")),
		ok:      r.NewStyle().Foreground(lipgloss.Color("2")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("3")),
		bad:     r.NewStyle().Foreground(lipgloss.Color("1")),
		heading: r.NewStyle().Bold(true),
	}
}

func (s *Styles) render(st lipgloss.Style, text string) string {
	if !s.color {
		return text
	}
	return st.Render(text)
}

func (s *Styles) Info(text string) string    { return s.render(s.info, text) }
func (s *Styles) OK(text string) string      { return s.render(s.ok, text) }
func (s *Styles) Warn(text string) string    { return s.render(s.warn, text) }
func (s *Styles) Bad(text string) string     { return s.render(s.bad, text) }
func (s *Styles) Heading(text string) string { return s.render(s.heading, text) }
