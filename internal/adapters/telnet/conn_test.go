package telnet

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiatorStripsAndRefuses(t *testing.T) {
	t.Parallel()

	neg := negotiator{answered: map[[2]byte]bool{}}
	in := []byte{'H', 'i', IAC, DO, 1, ' ', IAC, WILL, 3, IAC, SB, 24, 1, IAC, SE, 'x', IAC, IAC, 'y', IAC, GA}

	out, replies := neg.filter(in, nil)
	assert.Equal(t, []byte{'H', 'i', ' ', 'x', IAC, 'y'}, out)
	assert.Equal(t, []byte{IAC, WONT, 1, IAC, DONT, 3}, replies)
}

func TestNegotiatorResumesAcrossChunks(t *testing.T) {
	t.Parallel()

	neg := negotiator{answered: map[[2]byte]bool{}}

	out, replies := neg.filter([]byte{'a', IAC}, nil)
	assert.Equal(t, []byte{'a'}, out)
	assert.Empty(t, replies)

	out, replies = neg.filter([]byte{DO}, nil)
	assert.Empty(t, out)
	assert.Empty(t, replies)

	out, replies = neg.filter([]byte{31, IAC, SB, 31, 0, 80}, nil)
	assert.Empty(t, out)
	assert.Equal(t, []byte{IAC, WONT, 31}, replies)

	out, _ = neg.filter([]byte{0, 24, IAC, SE, 'b'}, nil)
	assert.Equal(t, []byte{'b'}, out)
}

func TestNegotiatorAnswersEachOptionOnce(t *testing.T) {
	t.Parallel()

	neg := negotiator{answered: map[[2]byte]bool{}}
	_, replies := neg.filter([]byte{IAC, DO, 1, IAC, DO, 1, IAC, DONT, 1, IAC, WONT, 1}, nil)
	assert.Equal(t, []byte{IAC, WONT, 1}, replies)
}

func TestConnReadRepliesOverPipe(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	conn := NewConn(client)
	defer func() { _ = conn.Close() }()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = server.Write([]byte{'W', 'e', 'l', 'c', 'o', 'm', 'e', IAC, WILL, 1, '\r', '\n'})
	}()

	replies := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 3)
		_, err := io.ReadFull(server, buf)
		assert.NoError(t, err)
		replies <- buf
		wg.Wait()
		_ = server.Close()
	}()

	data, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "Welcome\r\n", string(data))
	assert.Equal(t, []byte{IAC, DONT, 1}, <-replies)
}

func TestConnWriteEscapesIAC(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	conn := NewConn(client)
	defer func() { _ = conn.Close() }()
	defer func() { _ = server.Close() }()

	received := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 5)
		_, err := io.ReadFull(server, buf)
		assert.NoError(t, err)
		received <- buf
	}()

	n, err := conn.Write([]byte{'a', IAC, 'b', '\n'})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{'a', IAC, IAC, 'b', '\n'}, <-received)
}

func TestDialerConnectsToLoopback(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		_, _ = conn.Write([]byte("By what name do you wish to be known?\n"))
		line, _ := bufio.NewReader(conn).ReadString('\n')
		_, _ = conn.Write([]byte("echo:" + line))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dialer{Timeout: time.Second}.Dial(ctx, listener.Addr().String())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	reader := bufio.NewReader(conn)
	greeting, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "By what name do you wish to be known?\n", greeting)

	_, err = conn.Write([]byte("Marchos\r\n"))
	require.NoError(t, err)
	echo, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "echo:Marchos\r\n", echo)
}

func TestDialerCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Dialer{}.Dial(ctx, "127.0.0.1:1")
	require.ErrorIs(t, err, context.Canceled)
}
