package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/domain"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/ports"
)

const (
	DefaultContextChars = 12000
	minContextChars     = 1000
)

type PlannerState string

const (
	PlannerIdle           PlannerState = "idle"
	PlannerAwaitingOracle PlannerState = "awaiting-oracle"
)

// CommandSender is the part of the Dispatcher a planning round needs.
type CommandSender interface {
	SendBatch(ctx context.Context, commands []string) (int, error)
}

type PlannerOptions struct {
	Oracle        ports.Oracle
	Knowledge     ports.KnowledgeSource
	Sender        CommandSender
	Renderer      ports.Renderer
	Transcript    *Transcript
	Status        *StatusTracker
	History       *CommandHistory
	Events        *EventLog
	Issues        *EventLog
	Opportunities *EventLog
	ContextChars  int
	Logger        zerolog.Logger
}

// Planner runs at most one oracle round at a time. Wakes that arrive while a
// round is in flight collapse into a single pending reason.
type Planner struct {
	mu         sync.Mutex
	pending    string
	hasPending bool
	active     bool
	generation uint64
	state      PlannerState
	cancel     context.CancelFunc
	lastError  string

	wake chan struct{}
	opts PlannerOptions
	log  zerolog.Logger
}

func NewPlanner(opts PlannerOptions) *Planner {
	if opts.ContextChars <= 0 {
		opts.ContextChars = DefaultContextChars
	}
	if opts.ContextChars < minContextChars {
		opts.ContextChars = minContextChars
	}

	return &Planner{
		state: PlannerIdle,
		wake:  make(chan struct{}, 1),
		opts:  opts,
		log:   opts.Logger.With().Str("component", "planner").Logger(),
	}
}

// Wake records reason as the pending request, replacing any earlier one,
// and nudges the worker without blocking.
func (p *Planner) Wake(reason string) {
	p.mu.Lock()
	p.pending = reason
	p.hasPending = true
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Planner) Activate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active = true
	p.pending = ""
	p.hasPending = false
	p.generation++
}

// Deactivate drops the pending reason and abandons the in-flight round; its
// reply is discarded when it returns.
func (p *Planner) Deactivate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active = false
	p.pending = ""
	p.hasPending = false
	p.generation++
	p.lastError = ""
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Planner) State() PlannerState {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

func (p *Planner) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.active
}

func (p *Planner) LastError() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.lastError
}

// Run is the only goroutine that performs rounds. It returns when ctx ends.
func (p *Planner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.Deactivate()
			return ctx.Err()
		case <-p.wake:
			p.round(ctx)
		}
	}
}

func (p *Planner) round(ctx context.Context) {
	p.mu.Lock()
	reason, ok := p.pending, p.hasPending
	p.pending, p.hasPending = "", false
	if !ok || !p.active || p.opts.Oracle == nil {
		p.mu.Unlock()
		return
	}
	if p.opts.Transcript == nil || p.opts.Transcript.Len() == 0 {
		p.mu.Unlock()
		return
	}
	generation := p.generation
	lastError := p.lastError
	roundCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.state = PlannerAwaitingOracle
	p.mu.Unlock()

	defer func() {
		cancel()
		p.mu.Lock()
		if p.generation == generation {
			p.cancel = nil
		}
		p.state = PlannerIdle
		p.mu.Unlock()
	}()

	logger := p.log.With().Str("reason", reason).Logger()
	logger.Debug().Msg("planning round started")

	reply, err := p.ask(roundCtx, reason, lastError)
	if !p.current(generation) {
		logger.Debug().Msg("discarding stale oracle reply")
		return
	}
	if err != nil {
		p.fail(logger, err)
		return
	}

	p.setLastError("")
	decision := ParseDecision(reply)
	if decision.Comment != "" {
		p.render(domain.CategoryOracle, decision.Comment)
	}
	if len(decision.Commands) == 0 {
		logger.Debug().Msg("oracle returned no commands")
		return
	}

	if p.opts.Sender == nil {
		return
	}
	sent, err := p.opts.Sender.SendBatch(roundCtx, decision.Commands)
	if err != nil && !errors.Is(err, domain.ErrNotConnected) && !errors.Is(err, context.Canceled) {
		logger.Warn().Err(err).Int("sent", sent).Msg("dispatch oracle commands")
	}
}

// ask performs the oracle call, retrying once with half the transcript
// window when the oracle answers with nothing at all.
func (p *Planner) ask(ctx context.Context, reason, lastError string) (string, error) {
	window := p.opts.ContextChars
	for attempt := 0; attempt < 2; attempt++ {
		prompt := BuildPrompt(p.promptInput(ctx, reason, lastError, window))
		reply, err := p.opts.Oracle.Generate(ctx, prompt)
		if err != nil {
			return "", fmt.Errorf("generate decision: %w", err)
		}
		if strings.TrimSpace(reply) != "" {
			return reply, nil
		}
		window = max(minContextChars, window/2)
	}
	return "", nil
}

func (p *Planner) promptInput(ctx context.Context, reason, lastError string, window int) PromptInput {
	in := PromptInput{
		Reason:     reason,
		LastError:  lastError,
		Transcript: p.opts.Transcript.Tail(window),
	}
	if p.opts.Knowledge != nil {
		knowledge, err := p.opts.Knowledge.Reference(ctx)
		if err != nil {
			p.log.Warn().Err(err).Msg("load knowledge reference")
		}
		in.Knowledge = knowledge
	}
	if p.opts.History != nil {
		in.Commands = p.opts.History.Last(promptRecentCommands)
	}
	if p.opts.Events != nil {
		in.Events = p.opts.Events.Recent()
	}
	if p.opts.Issues != nil {
		in.Issues = p.opts.Issues.Recent()
	}
	if p.opts.Opportunities != nil {
		in.Opportunities = p.opts.Opportunities.Recent()
	}
	if p.opts.Status != nil {
		in.Status = p.opts.Status.Snapshot().Summary()
	}
	return in
}

func (p *Planner) fail(logger zerolog.Logger, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	logger.Warn().Err(err).Msg("oracle round failed")
	p.setLastError(err.Error())
	p.render(domain.CategoryError, "[oracle error] "+err.Error())
}

func (p *Planner) current(generation uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.active && p.generation == generation
}

func (p *Planner) setLastError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastError = message
}

func (p *Planner) render(category domain.LineCategory, text string) {
	if p.opts.Renderer != nil {
		p.opts.Renderer.Render(domain.Line{Category: category, Text: text})
	}
}
