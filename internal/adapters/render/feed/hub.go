package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/domain"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/ports"
)

const (
	DefaultBacklog  = 200
	FramePath       = "/ws"
	clientQueueSize = 256
	writeWait       = 5 * time.Second
	shutdownWait    = 3 * time.Second
	readLimitBytes  = 1024
	helloFrameKind  = "hello"
	lineFrameKind   = "line"
)

// Frame is one JSON message on the feed.
type Frame struct {
	Kind     string              `json:"kind"`
	Seq      uint64              `json:"seq,omitempty"`
	Client   string              `json:"client,omitempty"`
	Category domain.LineCategory `json:"category,omitempty"`
	Text     string              `json:"text,omitempty"`
	At       time.Time           `json:"at"`
}

type client struct {
	id    string
	queue chan Frame
}

// Hub broadcasts rendered lines to websocket viewers. Slow viewers lose
// frames instead of blocking the session.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	backlog  []Frame
	limit    int
	seq      uint64
	clock    ports.Clock
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

var _ ports.Renderer = (*Hub)(nil)

func NewHub(backlog int, clock ports.Clock, logger zerolog.Logger) *Hub {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &Hub{
		clients: map[*client]struct{}{},
		limit:   backlog,
		clock:   clock,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger.With().Str("component", "feed").Logger(),
	}
}

func (h *Hub) Render(line domain.Line) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	frame := Frame{Kind: lineFrameKind, Seq: h.seq, Category: line.Category, Text: line.Text, At: h.clock.Now()}
	h.backlog = append(h.backlog, frame)
	if len(h.backlog) > h.limit {
		h.backlog = append(h.backlog[:0], h.backlog[len(h.backlog)-h.limit:]...)
	}

	for c := range h.clients {
		select {
		case c.queue <- frame:
		default:
			h.log.Debug().Str("client", c.id).Uint64("seq", frame.Seq).Msg("dropping frame for slow viewer")
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("feed upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	c, replay := h.register()
	defer h.unregister(c)
	h.log.Info().Str("client", c.id).Str("remote", r.RemoteAddr).Msg("feed viewer connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(readLimitBytes)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	hello := Frame{Kind: helloFrameKind, Client: c.id, At: h.clock.Now()}
	if err := h.send(conn, hello); err != nil {
		return
	}
	for _, frame := range replay {
		if err := h.send(conn, frame); err != nil {
			return
		}
	}

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case frame := <-c.queue:
			if err := h.send(conn, frame); err != nil {
				h.log.Debug().Err(err).Str("client", c.id).Msg("feed write failed")
				return
			}
		}
	}
}

func (h *Hub) register() (*client, []Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := &client{id: uuid.NewString(), queue: make(chan Frame, clientQueueSize)}
	h.clients[c] = struct{}{}
	replay := make([]Frame, len(h.backlog))
	copy(replay, h.backlog)
	return c, replay
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *Hub) send(conn *websocket.Conn, frame Frame) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(frame)
}

// Serve listens on addr until ctx is done.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen feed %s: %w", addr, err)
	}
	return h.ServeListener(ctx, listener)
}

func (h *Hub) ServeListener(ctx context.Context, listener net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle(FramePath, h)
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: writeWait,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	h.log.Info().Str("addr", listener.Addr().String()).Msg("feed listening")
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve feed: %w", err)
	}
	return ctx.Err()
}
