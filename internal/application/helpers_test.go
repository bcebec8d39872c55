package application

import (
	"context"
	"sync"
	"time"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type recordingRenderer struct {
	mu    sync.Mutex
	lines []domain.Line
}

func (r *recordingRenderer) Render(line domain.Line) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lines = append(r.lines, line)
}

func (r *recordingRenderer) Texts(category domain.LineCategory) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, line := range r.lines {
		if line.Category == category {
			out = append(out, line.Text)
		}
	}
	return out
}

type recordingPlanner struct {
	mu          sync.Mutex
	wakes       []string
	activated   int
	deactivated int
}

func (p *recordingPlanner) Activate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.activated++
}

func (p *recordingPlanner) Deactivate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.deactivated++
}

func (p *recordingPlanner) Wake(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.wakes = append(p.wakes, reason)
}

func (p *recordingPlanner) Wakes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.wakes...)
}

func (p *recordingPlanner) Counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.activated, p.deactivated
}

func countOf(values []string, want string) int {
	n := 0
	for _, value := range values {
		if value == want {
			n++
		}
	}
	return n
}

type recordingSender struct {
	mu      sync.Mutex
	batches [][]string
	sendErr error
}

func (s *recordingSender) SendBatch(_ context.Context, commands []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sendErr != nil {
		return 0, s.sendErr
	}
	s.batches = append(s.batches, append([]string(nil), commands...))
	return len(commands), nil
}

func (s *recordingSender) Batches() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([][]string(nil), s.batches...)
}
