package terminal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/domain"
)

func newColorRenderer(buf *bytes.Buffer) *Renderer {
	profile := termenv.ANSI256
	return New(buf, Options{Color: true, Profile: &profile})
}

func TestRendererPlainWhenColorDisabled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	profile := termenv.ANSI256
	r := New(&buf, Options{Color: false, Profile: &profile})

	r.Render(domain.Line{Category: domain.CategoryOutput, Text: "HP: 80 EP: 40>"})
	r.Render(domain.Line{Category: domain.CategoryEvent, Text: "[event] Login confirmed."})

	assert.Equal(t, "HP: 80 EP: 40>\n[event] Login confirmed.\n", buf.String())
}

func TestRendererPlainOnNonTerminalWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := New(&buf, Options{Color: true})

	r.Render(domain.Line{Category: domain.CategoryError, Text: "[oracle error] boom"})
	assert.Equal(t, "[oracle error] boom\n", buf.String())
}

func TestRendererColorsOutputByRule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		color string
	}{
		{name: "status prompt", text: "HP: 80 EP: 40>", color: "38;5;82"},
		{name: "hint", text: "*** HINT *** try 'help'", color: "38;5;220"},
		{name: "help", text: "Help for look", color: "39"},
		{name: "pagination", text: "--More--(42%)", color: "38;5;213"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			newColorRenderer(&buf).Render(domain.Line{Category: domain.CategoryOutput, Text: tt.text + "\n"})

			out := buf.String()
			assert.Contains(t, out, "\x1b[")
			assert.Contains(t, out, tt.color)
			assert.Contains(t, out, tt.text)
			assert.True(t, strings.HasSuffix(out, "\n"))
		})
	}
}

func TestRendererLeavesOrdinaryOutputAlone(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	newColorRenderer(&buf).Render(domain.Line{Category: domain.CategoryOutput, Text: "A hobbit hole.\nObvious exits: north\n"})
	assert.Equal(t, "A hobbit hole.\nObvious exits: north\n", buf.String())
}

func TestRendererColorsCategories(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := newColorRenderer(&buf)
	r.Render(domain.Line{Category: domain.CategoryEvent, Text: "[event] Connected as Marchos"})
	r.Render(domain.Line{Category: domain.CategoryCommand, Text: "> look"})

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "208")
	assert.Contains(t, lines[1], "245")
}

func TestRendererBreaksPartialOutputBeforeEvent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := New(&buf, Options{})

	r.Render(domain.Line{Category: domain.CategoryOutput, Text: "Welcome!\nBy what name do you wish to be known? "})
	r.Render(domain.Line{Category: domain.CategoryEvent, Text: "[event] Sent username Marchos"})
	r.Render(domain.Line{Category: domain.CategoryOutput, Text: "Password: "})

	assert.Equal(t, "Welcome!\nBy what name do you wish to be known? \n[event] Sent username Marchos\nPassword: ", buf.String())
}
