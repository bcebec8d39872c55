package ports

import "github.com/CJStryker/T2Tmud-telnet-client-2/internal/domain"

type Renderer interface {
	Render(line domain.Line)
}

type RendererFunc func(line domain.Line)

func (f RendererFunc) Render(line domain.Line) {
	f(line)
}

// Renderers fans every line out to each renderer in order.
type Renderers []Renderer

func (r Renderers) Render(line domain.Line) {
	for _, renderer := range r {
		renderer.Render(line)
	}
}
