package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/domain"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/ports"
)

const (
	DefaultConnectTimeout    = 10 * time.Second
	DefaultConnectCooldown   = 3 * time.Second
	DefaultReconnectCooldown = time.Second
	DefaultSightingWindow    = 45 * time.Second

	readBufferSize = 4096
	maxScanPasses  = 64
)

var errRemoteClosed = errors.New("connection closed by remote host")

// PlannerControl is how the session drives the planner.
type PlannerControl interface {
	Activate()
	Deactivate()
	Wake(reason string)
}

type SessionOptions struct {
	Address            string
	Rotation           *domain.ProfileRotation
	Dialer             ports.Dialer
	Dispatcher         *Dispatcher
	Planner            PlannerControl
	Renderer           ports.Renderer
	Clock              ports.Clock
	Transcript         *Transcript
	Status             *StatusTracker
	Events             *EventLog
	Issues             *EventLog
	Opportunities      *EventLog
	History            *CommandHistory
	Detectors          []Detector
	ConnectTimeout     time.Duration
	ConnectCooldown    time.Duration
	ReconnectCooldown  time.Duration
	RotateOnDisconnect bool
	SightingWindow     time.Duration
	Logger             zerolog.Logger
}

// Session owns the connection lifecycle: connect, authenticate, play, tear
// down, reconnect.
type Session struct {
	mu    sync.Mutex
	state domain.SessionState
	conn  io.ReadWriteCloser

	opts    SessionOptions
	cascade *Cascade
	log     zerolog.Logger

	// Per-connection fields, touched only by the reader goroutine.
	profile      domain.CharacterProfile
	usernameSent bool
	passwordSent bool
	loggedIn     bool
	sightings    map[string]time.Time
	carry        []byte
}

func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Rotation == nil {
		return nil, domain.ErrNoProfiles
	}
	if opts.Dialer == nil {
		return nil, errors.New("session requires a dialer")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("session requires a dispatcher")
	}
	if opts.Clock == nil {
		opts.Clock = ports.SystemClock{}
	}
	if opts.Planner == nil {
		opts.Planner = noopPlanner{}
	}
	if opts.Renderer == nil {
		opts.Renderer = ports.RendererFunc(func(domain.Line) {})
	}
	if opts.Transcript == nil {
		opts.Transcript = NewTranscript(0)
	}
	if opts.Events == nil {
		opts.Events = NewEventLog(20)
	}
	if opts.Issues == nil {
		opts.Issues = NewEventLog(12)
	}
	if opts.Opportunities == nil {
		opts.Opportunities = NewEventLog(12)
	}
	if opts.Status == nil {
		opts.Status = NewStatusTracker(opts.Transcript, opts.Issues)
	}
	if opts.Detectors == nil {
		opts.Detectors = DefaultDetectors()
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.SightingWindow <= 0 {
		opts.SightingWindow = DefaultSightingWindow
	}

	return &Session{
		state:   domain.StateDisconnected,
		opts:    opts,
		cascade: NewCascade(opts.Detectors),
		log:     opts.Logger.With().Str("component", "session").Logger(),
	}, nil
}

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) setState(state domain.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state
}

// Run connects and reconnects until ctx ends.
func (s *Session) Run(ctx context.Context) error {
	defer s.setState(domain.StateDisconnected)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		profile := s.opts.Rotation.Current()
		s.setState(domain.StateConnecting)
		s.note(fmt.Sprintf("Connecting to %s as %s...", s.opts.Address, profile.Username))

		conn, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.setState(domain.StateDisconnected)
			s.log.Warn().Err(err).Str("address", s.opts.Address).Msg("connect failed")
			s.renderError(fmt.Sprintf("Connection failed: %v", err))
			if err := sleepContext(ctx, s.opts.ConnectCooldown); err != nil {
				return err
			}
			s.opts.Rotation.Advance()
			continue
		}

		sessionID := uuid.NewString()
		logger := s.log.With().Str("session", sessionID).Str("profile", profile.Username).Logger()
		logger.Info().Str("address", s.opts.Address).Msg("connected")

		err = s.serve(ctx, conn, profile, logger)
		s.teardown()
		logger.Info().AnErr("cause", err).Msg("disconnected")

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := sleepContext(ctx, s.opts.ReconnectCooldown); err != nil {
			return err
		}
		if s.opts.RotateOnDisconnect {
			s.opts.Rotation.Advance()
		}
	}
}

func (s *Session) connect(ctx context.Context) (io.ReadWriteCloser, error) {
	dialCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	defer cancel()

	conn, err := s.opts.Dialer.Dial(dialCtx, s.opts.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.opts.Address, err)
	}
	return conn, nil
}

// serve runs one connection until it ends. The returned error is always
// non-nil and names the cause.
func (s *Session) serve(ctx context.Context, conn io.ReadWriteCloser, profile domain.CharacterProfile, logger zerolog.Logger) error {
	s.begin(conn, profile)
	s.note(fmt.Sprintf("Connected as %s", profile.Username))
	s.note(fmt.Sprintf("Awaiting login for %s.", profile.Username))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		s.closeConn()
		return nil
	})
	g.Go(func() error {
		return s.readLoop(gctx, conn, logger)
	})
	return g.Wait()
}

func (s *Session) begin(conn io.ReadWriteCloser, profile domain.CharacterProfile) {
	s.opts.Transcript.Reset()
	s.opts.Events.Reset()
	s.opts.Issues.Reset()
	s.opts.Opportunities.Reset()
	s.opts.Status.Reset()
	if s.opts.History != nil {
		s.opts.History.Reset()
	}
	s.cascade.Reset()

	s.profile = profile
	s.usernameSent = false
	s.passwordSent = false
	s.loggedIn = false
	s.sightings = map[string]time.Time{}
	s.carry = nil

	s.mu.Lock()
	s.conn = conn
	s.state = domain.StateAuthenticating
	s.mu.Unlock()

	s.opts.Dispatcher.Bind(conn)
}

func (s *Session) readLoop(ctx context.Context, conn io.Reader, logger zerolog.Logger) error {
	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if text := s.decode(buf[:n]); text != "" {
				s.handleOutput(ctx, text)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				s.note("Connection closed by remote host.")
				return errRemoteClosed
			}
			logger.Warn().Err(err).Msg("read failed")
			return fmt.Errorf("read from server: %w", err)
		}
	}
}

// decode turns raw bytes into text, holding back a rune split across reads.
func (s *Session) decode(chunk []byte) string {
	data := append(s.carry, chunk...)
	s.carry = nil

	cut := len(data)
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				cut = i
			}
			break
		}
	}
	if cut < len(data) {
		s.carry = append([]byte(nil), data[cut:]...)
	}

	text := strings.ToValidUTF8(string(data[:cut]), "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\x00", "")
	return text
}

func (s *Session) handleOutput(ctx context.Context, text string) {
	s.opts.Renderer.Render(domain.Line{Category: domain.CategoryOutput, Text: text})
	s.opts.Transcript.Append(text)
	s.cascade.Feed(text)

	for pass := 0; pass < maxScanPasses; pass++ {
		events := s.cascade.Scan(s.phases())
		if len(events) == 0 {
			return
		}
		for _, event := range events {
			s.react(ctx, event)
		}
	}
}

// phases enables login detectors until the session is active and gameplay
// detectors once both credentials went out.
func (s *Session) phases() Phase {
	var phases Phase
	if !s.loggedIn {
		phases |= PhaseLogin
	}
	if s.loggedIn || (s.usernameSent && s.passwordSent) {
		phases |= PhaseGameplay
	}
	return phases
}

func (s *Session) teardown() {
	s.closeConn()
	s.opts.Dispatcher.Unbind()
	s.opts.Planner.Deactivate()
	s.setState(domain.StateDisconnected)
	s.opts.Renderer.Render(domain.Line{Category: domain.CategoryEvent, Text: "[event] Disconnected."})
}

func (s *Session) closeConn() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			s.log.Debug().Err(err).Msg("close connection")
		}
	}
}

// note records a session event for both the operator and the oracle.
func (s *Session) note(message string) {
	s.opts.Events.Add(message)
	s.opts.Transcript.AppendLine("[event] " + message)
	s.opts.Renderer.Render(domain.Line{Category: domain.CategoryEvent, Text: "[event] " + message})
}

func (s *Session) renderError(message string) {
	s.opts.Renderer.Render(domain.Line{Category: domain.CategoryError, Text: "[error] " + message})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type noopPlanner struct{}

func (noopPlanner) Activate()   {}
func (noopPlanner) Deactivate() {}
func (noopPlanner) Wake(string) {}
