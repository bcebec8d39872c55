package terminal

import (
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/domain"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/ports"
)

type Options struct {
	// Color false forces plain output even on a capable terminal.
	Color bool
	// Profile overrides terminal detection; zero value means detect.
	Profile *termenv.Profile
}

// Renderer writes categorized lines to a terminal. Output chunks are passed
// through as received so partial prompt lines stay on the same row.
type Renderer struct {
	mu      sync.Mutex
	out     io.Writer
	color   bool
	styles  styles
	midLine bool
}

var _ ports.Renderer = (*Renderer)(nil)

type rule struct {
	pattern *regexp.Regexp
	style   func(styles) lipgloss.Style
}

var outputRules = []rule{
	{regexp.MustCompile(`^\s*HP:\s*\d+\s+EP:\s*\d+\s*>`), func(s styles) lipgloss.Style { return s.prompt }},
	{regexp.MustCompile(`^\*\*\* HINT \*\*\*`), func(s styles) lipgloss.Style { return s.hint }},
	{regexp.MustCompile(`^Help for `), func(s styles) lipgloss.Style { return s.help }},
	{regexp.MustCompile(`--More--`), func(s styles) lipgloss.Style { return s.more }},
	{regexp.MustCompile(`^\[event\]`), func(s styles) lipgloss.Style { return s.event }},
	{regexp.MustCompile(`^\[oracle error\]`), func(s styles) lipgloss.Style { return s.error }},
}

func New(out io.Writer, opts Options) *Renderer {
	renderer := lipgloss.NewRenderer(out)
	if opts.Profile != nil {
		renderer.SetColorProfile(*opts.Profile)
	}
	color := opts.Color && renderer.ColorProfile() != termenv.Ascii

	return &Renderer{
		out:    out,
		color:  color,
		styles: newStyles(renderer),
	}
}

func (r *Renderer) Render(line domain.Line) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if line.Category == domain.CategoryOutput {
		r.writeOutput(line.Text)
		return
	}

	if r.midLine {
		r.write("\n")
		r.midLine = false
	}
	text := strings.TrimRight(line.Text, "\n")
	if r.color {
		text = r.categoryStyle(line.Category).Render(text)
	}
	r.write(text + "\n")
}

func (r *Renderer) writeOutput(text string) {
	if text == "" {
		return
	}

	var b strings.Builder
	for len(text) > 0 {
		segment, rest, found := strings.Cut(text, "\n")
		b.WriteString(r.colorize(segment))
		if found {
			b.WriteByte('\n')
		}
		text = rest
		r.midLine = !found
	}
	r.write(b.String())
}

func (r *Renderer) colorize(segment string) string {
	if !r.color || strings.TrimSpace(segment) == "" {
		return segment
	}
	for _, rule := range outputRules {
		if rule.pattern.MatchString(segment) {
			return rule.style(r.styles).Render(segment)
		}
	}
	return segment
}

func (r *Renderer) categoryStyle(category domain.LineCategory) lipgloss.Style {
	switch category {
	case domain.CategoryEvent:
		return r.styles.event
	case domain.CategoryError:
		return r.styles.error
	case domain.CategoryCommand:
		return r.styles.command
	case domain.CategoryOracle:
		return r.styles.oracle
	default:
		return r.styles.plain
	}
}

func (r *Renderer) write(text string) {
	_, _ = io.WriteString(r.out, text)
}
