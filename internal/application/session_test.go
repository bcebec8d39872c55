package application

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/domain"
)

type dialerFunc func(ctx context.Context, address string) (io.ReadWriteCloser, error)

func (f dialerFunc) Dial(ctx context.Context, address string) (io.ReadWriteCloser, error) {
	return f(ctx, address)
}

type sessionFixture struct {
	session  *Session
	planner  *recordingPlanner
	renderer *recordingRenderer
	clock    *fakeClock
	events   *EventLog
	status   *StatusTracker
}

func newSessionFixture(t *testing.T, dialer dialerFunc, profiles ...domain.CharacterProfile) sessionFixture {
	t.Helper()

	if len(profiles) == 0 {
		profiles = []domain.CharacterProfile{{Username: "Marchos", Password: "hunter2"}}
	}
	rotation, err := domain.NewProfileRotation(profiles)
	require.NoError(t, err)

	transcript := NewTranscript(0)
	issues := NewEventLog(12)
	events := NewEventLog(20)
	status := NewStatusTracker(transcript, issues)
	planner := &recordingPlanner{}
	renderer := &recordingRenderer{}
	clock := newFakeClock()
	history := NewCommandHistory(0)

	session, err := NewSession(SessionOptions{
		Address:  "mud.test:9999",
		Rotation: rotation,
		Dialer:   dialer,
		Dispatcher: NewDispatcher(DispatcherOptions{
			History:    history,
			Transcript: transcript,
			Renderer:   renderer,
			Logger:     zerolog.Nop(),
		}),
		Planner:            planner,
		Renderer:           renderer,
		Clock:              clock,
		Transcript:         transcript,
		Status:             status,
		Events:             events,
		Issues:             issues,
		History:            history,
		ConnectCooldown:    time.Millisecond,
		ReconnectCooldown:  time.Hour,
		RotateOnDisconnect: true,
		Logger:             zerolog.Nop(),
	})
	require.NoError(t, err)

	return sessionFixture{session: session, planner: planner, renderer: renderer, clock: clock, events: events, status: status}
}

func TestSessionLoginScenario(t *testing.T) {
	server, client := net.Pipe()
	t.Cleanup(func() { _ = server.Close() })

	var dials atomic.Int32
	fixture := newSessionFixture(t, func(ctx context.Context, address string) (io.ReadWriteCloser, error) {
		if dials.Add(1) > 1 {
			return nil, errors.New("refused")
		}
		return client, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- fixture.session.Run(ctx) }()

	reader := bufio.NewReader(server)

	_, err := server.Write([]byte("Welcome to The Two Towers!\nBy what name do you wish to be known? "))
	require.NoError(t, err)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "Marchos\r\n", line)

	_, err = server.Write([]byte("Password: "))
	require.NoError(t, err)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "hunter2\r\n", line)

	_, err = server.Write([]byte("\nHP: 80 EP: 40>"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return fixture.session.State() == domain.StateActive
	}, time.Second, 5*time.Millisecond)

	_, err = server.Write([]byte("\nHP: 78 EP: 40>"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return countOf(fixture.planner.Wakes(), "prompt") == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, countOf(fixture.planner.Wakes(), "login"))
	activated, _ := fixture.planner.Counts()
	assert.Equal(t, 1, activated)
	assert.Contains(t, fixture.events.Recent(), "Login confirmed.")
	assert.Contains(t, fixture.events.Recent(), "Sent password (redacted)")
	assert.NotContains(t, fixture.renderer.Texts(domain.CategoryCommand), "> hunter2")

	snapshot := fixture.status.Snapshot()
	require.NotNil(t, snapshot.Vitals)
	assert.Equal(t, domain.Vitals{HP: 78, EP: 40}, *snapshot.Vitals)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("session did not stop")
	}
	assert.Equal(t, domain.StateDisconnected, fixture.session.State())
	_, deactivated := fixture.planner.Counts()
	assert.GreaterOrEqual(t, deactivated, 1)
}

func TestSessionRemoteCloseReconnectsWithNextProfile(t *testing.T) {
	firstServer, firstClient := net.Pipe()
	secondServer, secondClient := net.Pipe()
	t.Cleanup(func() {
		_ = firstServer.Close()
		_ = secondServer.Close()
	})

	conns := []io.ReadWriteCloser{firstClient, secondClient}
	dialed := make(chan string, len(conns)+1)
	profiles := []domain.CharacterProfile{{Username: "Marchos", Password: "a"}, {Username: "Zesty", Password: "b"}}
	var fixture sessionFixture
	var dials atomic.Int32
	fixture = newSessionFixture(t, func(ctx context.Context, address string) (io.ReadWriteCloser, error) {
		n := int(dials.Add(1))
		dialed <- fixture.session.opts.Rotation.Current().Username
		if n > len(conns) {
			return nil, errors.New("refused")
		}
		return conns[n-1], nil
	}, profiles...)
	fixture.session.opts.ReconnectCooldown = 300 * time.Millisecond
	dispatcher := fixture.session.opts.Dispatcher

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- fixture.session.Run(ctx) }()

	select {
	case name := <-dialed:
		assert.Equal(t, "Marchos", name)
	case <-time.After(time.Second):
		t.Fatal("session never dialed")
	}
	require.Eventually(t, dispatcher.Bound, time.Second, 5*time.Millisecond)

	require.NoError(t, firstServer.Close())
	require.Eventually(t, func() bool {
		_, deactivated := fixture.planner.Counts()
		return deactivated == 1 && fixture.session.State() == domain.StateDisconnected
	}, time.Second, 5*time.Millisecond)

	assert.False(t, dispatcher.Bound())
	require.ErrorIs(t, dispatcher.Send(context.Background(), "look"), domain.ErrNotConnected)
	assert.Contains(t, fixture.renderer.Texts(domain.CategoryEvent), "[event] Connection closed by remote host.")
	assert.Equal(t, int32(1), dials.Load())

	select {
	case name := <-dialed:
		assert.Equal(t, "Zesty", name)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not reconnect")
	}
	require.Eventually(t, func() bool {
		return dispatcher.Bound() && fixture.session.State() == domain.StateAuthenticating
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, fixture.renderer.Texts(domain.CategoryEvent), "[event] Connected as Zesty")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("session did not stop")
	}
	activated, _ := fixture.planner.Counts()
	assert.Zero(t, activated)
}

func TestSessionFirstVitalsActivatesOnce(t *testing.T) {
	t.Parallel()

	fixture := newSessionFixture(t, nil)
	s := fixture.session
	s.begin(nopConn{}, domain.CharacterProfile{Username: "Marchos"})
	s.usernameSent, s.passwordSent = true, true

	s.handleOutput(context.Background(), "HP: 80 EP: 40>")
	s.handleOutput(context.Background(), "\nHP: 80 EP: 40>")

	assert.Equal(t, []string{"login", "prompt"}, fixture.planner.Wakes())
	activated, _ := fixture.planner.Counts()
	assert.Equal(t, 1, activated)
	assert.Equal(t, domain.StateActive, s.State())
	require.NotNil(t, fixture.status.Snapshot().Vitals)
	assert.Equal(t, 80, fixture.status.Snapshot().Vitals.HP)
	assert.Equal(t, 40, fixture.status.Snapshot().Vitals.EP)
}

func TestSessionSightingDedupWindow(t *testing.T) {
	t.Parallel()

	fixture := newSessionFixture(t, nil)
	s := fixture.session
	s.begin(nopConn{}, domain.CharacterProfile{Username: "Marchos"})
	s.loggedIn = true

	s.handleOutput(context.Background(), "A goblin is standing here.\n")
	fixture.clock.Advance(30 * time.Second)
	s.handleOutput(context.Background(), "The Goblin is here.\n")
	assert.Equal(t, []string{"sighting: goblin"}, fixture.planner.Wakes())

	fixture.clock.Advance(16 * time.Second)
	s.handleOutput(context.Background(), "A goblin is standing here.\n")
	assert.Equal(t, []string{"sighting: goblin", "sighting: goblin"}, fixture.planner.Wakes())
	assert.Contains(t, fixture.events.Recent(), "Spotted goblin")
}

func TestSessionSightingsForgetExpiredNames(t *testing.T) {
	t.Parallel()

	fixture := newSessionFixture(t, nil)
	s := fixture.session
	s.begin(nopConn{}, domain.CharacterProfile{Username: "Marchos"})
	s.loggedIn = true

	s.handleOutput(context.Background(), "A goblin is standing here.\n")
	s.handleOutput(context.Background(), "An orc is standing here.\n")
	assert.Len(t, s.sightings, 2)

	fixture.clock.Advance(DefaultSightingWindow)
	s.handleOutput(context.Background(), "A troll is standing here.\n")
	assert.Len(t, s.sightings, 1)
	assert.Equal(t, []string{"sighting: goblin", "sighting: orc", "sighting: troll"}, fixture.planner.Wakes())
}

func TestSessionReactions(t *testing.T) {
	t.Parallel()

	fixture := newSessionFixture(t, nil)
	s := fixture.session
	conn := &captureConn{}
	s.begin(conn, domain.CharacterProfile{Username: "Marchos"})
	s.loggedIn = true

	s.handleOutput(context.Background(), "Some long help text\n--More--")
	assert.Equal(t, "\r\n", conn.String())
	assert.Empty(t, fixture.planner.Wakes())

	s.handleOutput(context.Background(), "You can't go that way.\n")
	s.handleOutput(context.Background(), "You are in the Prancing Pony.\n")
	s.handleOutput(context.Background(), "You are in the Prancing Pony.\n")
	s.handleOutput(context.Background(), "You are heavily burdened.\n")
	s.handleOutput(context.Background(), "You pick up a rusty sword.\n")
	s.handleOutput(context.Background(), "The road goes ever on.\n> ")

	assert.Equal(t, []string{
		"hazard: movement blocked",
		"location changed: Prancing Pony",
		"encumbrance: heavily burdened",
		"progress: loot",
		"prompt",
	}, fixture.planner.Wakes())
	assert.Equal(t, 2, fixture.status.LocationRepeats())

	s.handleOutput(context.Background(), "Connection closed by foreign host.\n")
	assert.True(t, conn.Closed())
}

func TestSessionRotatesAfterFailedConnect(t *testing.T) {
	t.Parallel()

	var dialed []string
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	profiles := []domain.CharacterProfile{{Username: "Marchos", Password: "a"}, {Username: "Zesty", Password: "b"}}
	var fixture sessionFixture
	fixture = newSessionFixture(t, func(ctx context.Context, address string) (io.ReadWriteCloser, error) {
		dialed = append(dialed, fixture.session.opts.Rotation.Current().Username)
		if len(dialed) == 3 {
			cancel()
		}
		return nil, errors.New("connection refused")
	}, profiles...)

	err := fixture.session.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"Marchos", "Zesty", "Marchos"}, dialed)
	assert.NotEmpty(t, fixture.renderer.Texts(domain.CategoryError))
}

type nopConn struct{}

func (nopConn) Read([]byte) (int, error)    { return 0, io.EOF }
func (nopConn) Write(p []byte) (int, error) { return len(p), nil }
func (nopConn) Close() error                { return nil }

type captureConn struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (c *captureConn) Read([]byte) (int, error) { return 0, io.EOF }

func (c *captureConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.buf.Write(p)
}

func (c *captureConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	return nil
}

func (c *captureConn) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.buf.String()
}

func (c *captureConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}
