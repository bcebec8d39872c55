package telnet

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/ports"
)

// Telnet protocol bytes.
const (
	IAC  = 255
	DONT = 254
	DO   = 253
	WONT = 252
	WILL = 251
	SB   = 250
	GA   = 249
	SE   = 240
	NOP  = 241
)

const DefaultDialTimeout = 10 * time.Second

type Dialer struct {
	Timeout time.Duration
}

var _ ports.Dialer = Dialer{}

// Dial opens a TCP connection and wraps it so option negotiation is refused
// and stripped from the byte stream.
func (d Dialer) Dial(ctx context.Context, address string) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	netDialer := &net.Dialer{Timeout: timeout}
	conn, err := netDialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}

	return NewConn(conn), nil
}

type Conn struct {
	conn    io.ReadWriteCloser
	readMu  sync.Mutex
	writeMu sync.Mutex
	neg     negotiator
	buf     []byte
}

func NewConn(conn io.ReadWriteCloser) *Conn {
	return &Conn{conn: conn, neg: negotiator{answered: map[[2]byte]bool{}}}
}

// Read returns data bytes only. Negotiation requests are answered with
// WONT/DONT on the same connection.
func (c *Conn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()

	if cap(c.buf) < len(p) {
		c.buf = make([]byte, len(p))
	}
	for {
		n, err := c.conn.Read(c.buf[:len(p)])
		out, replies := c.neg.filter(c.buf[:n], p[:0])
		if len(replies) > 0 {
			if writeErr := c.writeRaw(replies); writeErr != nil && err == nil {
				err = writeErr
			}
		}
		if len(out) > 0 || err != nil {
			return len(out), err
		}
	}
}

// Write escapes literal 0xFF bytes.
func (c *Conn) Write(p []byte) (int, error) {
	escaped := p
	for i, b := range p {
		if b == IAC {
			escaped = make([]byte, 0, len(p)+4)
			escaped = append(escaped, p[:i]...)
			for _, rest := range p[i:] {
				if rest == IAC {
					escaped = append(escaped, IAC)
				}
				escaped = append(escaped, rest)
			}
			break
		}
	}

	if err := c.writeRaw(escaped); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) writeRaw(p []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	for len(p) > 0 {
		n, err := c.conn.Write(p)
		if err != nil {
			return fmt.Errorf("write telnet: %w", err)
		}
		p = p[n:]
	}
	return nil
}

type negState int

const (
	stateData negState = iota
	stateIAC
	stateOption
	stateSub
	stateSubIAC
)

// negotiator is a byte-level state machine; sequences split across reads
// resume where they stopped.
type negotiator struct {
	state    negState
	verb     byte
	answered map[[2]byte]bool
}

func (n *negotiator) filter(in []byte, out []byte) ([]byte, []byte) {
	var replies []byte
	for _, b := range in {
		switch n.state {
		case stateData:
			if b == IAC {
				n.state = stateIAC
				continue
			}
			out = append(out, b)
		case stateIAC:
			switch b {
			case IAC:
				out = append(out, IAC)
				n.state = stateData
			case DO, DONT, WILL, WONT:
				n.verb = b
				n.state = stateOption
			case SB:
				n.state = stateSub
			default:
				n.state = stateData
			}
		case stateOption:
			replies = append(replies, n.refuse(n.verb, b)...)
			n.state = stateData
		case stateSub:
			if b == IAC {
				n.state = stateSubIAC
			}
		case stateSubIAC:
			if b == SE {
				n.state = stateData
			} else {
				n.state = stateSub
			}
		}
	}
	return out, replies
}

// refuse answers DO with WONT and WILL with DONT, once per option.
func (n *negotiator) refuse(verb, option byte) []byte {
	var answer byte
	switch verb {
	case DO:
		answer = WONT
	case WILL:
		answer = DONT
	default:
		return nil
	}

	key := [2]byte{answer, option}
	if n.answered[key] {
		return nil
	}
	n.answered[key] = true
	return []byte{IAC, answer, option}
}
