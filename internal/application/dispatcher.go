package application

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/domain"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/ports"
)

const (
	DefaultCommandDelay = 250 * time.Millisecond
	EnterToken          = "<ENTER>"
)

// Dispatcher serializes every write to the connection. Sends are spaced by
// delay regardless of who issues them.
type Dispatcher struct {
	mu         sync.Mutex
	writer     io.Writer
	lastSent   time.Time
	delay      time.Duration
	history    *CommandHistory
	transcript *Transcript
	renderer   ports.Renderer
	logger     zerolog.Logger
}

type DispatcherOptions struct {
	Delay      time.Duration
	History    *CommandHistory
	Transcript *Transcript
	Renderer   ports.Renderer
	Logger     zerolog.Logger
}

func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if opts.History == nil {
		opts.History = NewCommandHistory(0)
	}

	return &Dispatcher{
		delay:      opts.Delay,
		history:    opts.History,
		transcript: opts.Transcript,
		renderer:   opts.Renderer,
		logger:     opts.Logger.With().Str("component", "dispatcher").Logger(),
	}
}

func (d *Dispatcher) Bind(writer io.Writer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.writer = writer
}

func (d *Dispatcher) Unbind() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.writer = nil
}

func (d *Dispatcher) Bound() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.writer != nil
}

// Send writes one command line. An empty command or the enter token sends a
// bare line break. Without a bound connection it returns ErrNotConnected.
func (d *Dispatcher) Send(ctx context.Context, command string) error {
	command = normalizeCommand(command)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.writer == nil {
		return domain.ErrNotConnected
	}
	if err := d.waitSpacing(ctx); err != nil {
		return err
	}

	if _, err := io.WriteString(d.writer, command+"\r\n"); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	d.lastSent = time.Now()

	d.history.Add(displayCommand(command))
	if d.transcript != nil {
		d.transcript.AppendLine("> " + command)
	}
	if d.renderer != nil {
		d.renderer.Render(domain.Line{Category: domain.CategoryCommand, Text: "> " + displayCommand(command)})
	}
	d.logger.Debug().Str("command", displayCommand(command)).Msg("command sent")

	return nil
}

// SendSecret writes a credential. Only the label reaches history, the
// transcript and renderers.
func (d *Dispatcher) SendSecret(ctx context.Context, secret, label string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.writer == nil {
		return domain.ErrNotConnected
	}
	if err := d.waitSpacing(ctx); err != nil {
		return err
	}

	if _, err := io.WriteString(d.writer, strings.TrimRight(secret, "\r\n")+"\r\n"); err != nil {
		return fmt.Errorf("write %s: %w", label, err)
	}
	d.lastSent = time.Now()

	if d.transcript != nil {
		d.transcript.AppendLine("> <" + label + ">")
	}

	return nil
}

// SendBatch sends commands in order, stopping at the first failure.
func (d *Dispatcher) SendBatch(ctx context.Context, commands []string) (int, error) {
	sent := 0
	for _, command := range commands {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if err := d.Send(ctx, command); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (d *Dispatcher) History() *CommandHistory {
	return d.history
}

// waitSpacing must be called with d.mu held.
func (d *Dispatcher) waitSpacing(ctx context.Context) error {
	if d.delay == 0 || d.lastSent.IsZero() {
		return nil
	}
	wait := d.delay - time.Since(d.lastSent)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func normalizeCommand(command string) string {
	command = strings.TrimSpace(lineBreaks.Replace(command))
	if strings.EqualFold(command, EnterToken) {
		return ""
	}
	return command
}

func displayCommand(command string) string {
	if command == "" {
		return EnterToken
	}
	return command
}
