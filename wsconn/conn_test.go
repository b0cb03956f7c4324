package wsconn

import (
	"bufio"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wsclient/internal/echopeer"
)

// recordingSink is an EventSink test double that records every callback
// it receives, safe for concurrent use since callbacks and Send* run on
// different goroutines in these tests.
type recordingSink struct {
	mu        sync.Mutex
	connected int
	texts     []string
	binaries  [][]byte
	pongs     [][]byte
	pings     [][]byte
	closes    [][]byte

	textCh chan string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{textCh: make(chan string, 16)}
}

func (s *recordingSink) OnConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected++
}

func (s *recordingSink) OnText(message string) {
	s.mu.Lock()
	s.texts = append(s.texts, message)
	s.mu.Unlock()
	s.textCh <- message
}

func (s *recordingSink) OnBinary(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.binaries = append(s.binaries, data)
}

func (s *recordingSink) OnPing(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pings = append(s.pings, data)
}

func (s *recordingSink) OnPong(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pongs = append(s.pongs, data)
}

func (s *recordingSink) OnServerRequestedClose(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes = append(s.closes, data)
}

func (s *recordingSink) OnUnknown(byte, []byte) {}

func (s *recordingSink) connectedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// rawServer runs fn against exactly one accepted connection on an
// ephemeral local port, for tests that need to script bytes the
// gorilla/websocket server wouldn't let through (a non-101 status, a
// handshake that never completes, ...).
type rawServer struct {
	ln   net.Listener
	addr string
}

func newRawServer(t *testing.T, fn func(net.Conn)) *rawServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &rawServer{ln: ln, addr: ln.Addr().String()}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fn(conn)
	}()
	return s
}

func (s *rawServer) url(path string) string {
	return "ws://" + s.addr + path
}

func (s *rawServer) close() {
	_ = s.ln.Close()
}

func TestConnConnectSendAndEcho(t *testing.T) {
	t.Parallel()

	peer := echopeer.New()
	defer peer.Close()

	sink := newRecordingSink()
	c := NewConn(sink)

	connectErr := make(chan error, 1)
	go func() {
		connectErr <- c.Connect(context.Background(), peer.URL("/"))
	}()

	require.Eventually(t, func() bool { return sink.connectedCount() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, Connected, c.State())

	require.NoError(t, c.SendText("hello"))

	select {
	case msg := <-sink.textCh:
		assert.Equal(t, "hello", msg)
	case <-time.After(time.Second):
		t.Fatal("did not receive echoed text")
	}

	c.Interrupt()

	select {
	case err := <-connectErr:
		var interrupted *InterruptedError
		assert.ErrorAs(t, err, &interrupted)
	case <-time.After(time.Second):
		t.Fatal("connect did not return after interrupt")
	}
	assert.Equal(t, Disconnected, c.State())
}

func TestConnConcurrentSendTextFromMultipleGoroutines(t *testing.T) {
	t.Parallel()

	peer := echopeer.New()
	defer peer.Close()

	sink := newRecordingSink()
	c := NewConn(sink)

	go c.Connect(context.Background(), peer.URL("/"))
	require.Eventually(t, func() bool { return c.State() == Connected }, time.Second, 5*time.Millisecond)

	const n = 3
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.SendText("msg"))
		}(i)
	}
	wg.Wait()

	received := 0
	for received < n {
		select {
		case <-sink.textCh:
			received++
		case <-time.After(time.Second):
			t.Fatalf("only received %d/%d echoes", received, n)
		}
	}

	c.Interrupt()
}

func TestConnPingIsAnsweredWithPong(t *testing.T) {
	t.Parallel()

	pongSeen := make(chan struct{}, 1)
	peer := echopeer.New()
	defer peer.Close()
	peer.Script = func(wsConn *websocket.Conn) {
		wsConn.SetPongHandler(func(string) error {
			select {
			case pongSeen <- struct{}{}:
			default:
			}
			return nil
		})
		require.NoError(t, wsConn.WriteMessage(websocket.PingMessage, []byte("ping-payload")))
		for {
			if _, _, err := wsConn.ReadMessage(); err != nil {
				return
			}
		}
	}

	sink := newRecordingSink()
	c := NewConn(sink)
	go c.Connect(context.Background(), peer.URL("/"))

	select {
	case <-pongSeen:
	case <-time.After(time.Second):
		t.Fatal("server never observed a pong reply")
	}

	c.Interrupt()
}

func TestConnSendBeforeConnectReturnsNotConnected(t *testing.T) {
	t.Parallel()

	c := NewConn(newRecordingSink())
	err := c.SendText("too early")
	var nc *NotConnectedError
	assert.ErrorAs(t, err, &nc)
}

func TestConnSendAfterDisconnectReturnsNotConnected(t *testing.T) {
	t.Parallel()

	peer := echopeer.New()
	defer peer.Close()

	c := NewConn(newRecordingSink())
	go c.Connect(context.Background(), peer.URL("/"))
	require.Eventually(t, func() bool { return c.State() == Connected }, time.Second, 5*time.Millisecond)

	c.Interrupt()
	require.Eventually(t, func() bool { return c.State() == Disconnected }, time.Second, 5*time.Millisecond)

	err := c.SendText("too late")
	var nc *NotConnectedError
	assert.ErrorAs(t, err, &nc)
}

func TestConnConnectWhileNotDisconnectedIsArgumentError(t *testing.T) {
	t.Parallel()

	peer := echopeer.New()
	defer peer.Close()

	c := NewConn(newRecordingSink())
	go c.Connect(context.Background(), peer.URL("/"))
	require.Eventually(t, func() bool { return c.State() == Connected }, time.Second, 5*time.Millisecond)

	err := c.Connect(context.Background(), peer.URL("/"))
	var ae *ArgumentError
	assert.ErrorAs(t, err, &ae)

	c.Interrupt()
}

func TestConnConnectRejectsUnsupportedScheme(t *testing.T) {
	t.Parallel()

	c := NewConn(newRecordingSink())
	err := c.Connect(context.Background(), "http://example.com")
	var ae *ArgumentError
	assert.ErrorAs(t, err, &ae)
	assert.Equal(t, Disconnected, c.State())
}

func TestConnNon101HandshakeResponseIsProtocolError(t *testing.T) {
	t.Parallel()

	srv := newRawServer(t, func(conn net.Conn) {
		br := bufio.NewReader(conn)
		// Drain the request line and headers without validating them.
		for {
			line, err := br.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}
		_, _ = conn.Write([]byte("HTTP/1.1 404 Not Found\r\n\r\n"))
	})
	defer srv.close()

	c := NewConn(newRecordingSink())
	err := c.Connect(context.Background(), srv.url("/"))
	var pe *ProtocolError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, Disconnected, c.State())
}

func TestConnInterruptUnblocksConnectingHandshake(t *testing.T) {
	t.Parallel()

	accepted := make(chan struct{})
	srv := newRawServer(t, func(conn net.Conn) {
		close(accepted)
		// Never write a handshake response: the client's Connect call
		// stays blocked reading, until Interrupt closes the socket.
		buf := make([]byte, 4096)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	})
	defer srv.close()

	c := NewConn(newRecordingSink())
	connectErr := make(chan error, 1)
	go func() { connectErr <- c.Connect(context.Background(), srv.url("/")) }()

	select {
	case <-accepted:
	case <-time.After(time.Second):
		t.Fatal("server never accepted a connection")
	}
	require.Eventually(t, func() bool { return c.State() == Connecting }, time.Second, 5*time.Millisecond)

	c.Interrupt()

	select {
	case err := <-connectErr:
		var interrupted *InterruptedError
		assert.ErrorAs(t, err, &interrupted)
	case <-time.After(time.Second):
		t.Fatal("connect did not return after interrupt during handshake")
	}
	assert.Equal(t, Disconnected, c.State())
}

func TestConnInterruptBeforeConnectBlocksThenUnwinds(t *testing.T) {
	t.Parallel()

	peer := echopeer.New()
	defer peer.Close()

	c := NewConn(newRecordingSink())

	interruptReturned := make(chan struct{})
	go func() {
		c.Interrupt()
		close(interruptReturned)
	}()

	select {
	case <-interruptReturned:
		t.Fatal("interrupt returned before connect ever started")
	case <-time.After(50 * time.Millisecond):
	}

	connectErr := make(chan error, 1)
	go func() { connectErr <- c.Connect(context.Background(), peer.URL("/")) }()

	select {
	case <-interruptReturned:
	case <-time.After(time.Second):
		t.Fatal("interrupt did not unblock once connect started")
	}
	select {
	case err := <-connectErr:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("connect did not return")
	}
}

func TestConnInterruptIsNoOpAfterCompletedConnect(t *testing.T) {
	t.Parallel()

	srv := newRawServer(t, func(conn net.Conn) {
		br := bufio.NewReader(conn)
		for {
			line, err := br.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}
		_, _ = conn.Write([]byte("HTTP/1.1 404 Not Found\r\n\r\n"))
	})
	defer srv.close()

	c := NewConn(newRecordingSink())
	err := c.Connect(context.Background(), srv.url("/"))
	require.Error(t, err)
	require.Equal(t, Disconnected, c.State())

	done := make(chan struct{})
	go func() {
		c.Interrupt()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("interrupt after a completed connect must return immediately")
	}
}

func TestConnReadLimitRejectsOversizedFrame(t *testing.T) {
	t.Parallel()

	key := "dGhlIHNhbXBsZSBub25jZQ=="
	srv := newRawServer(t, func(conn net.Conn) {
		br := bufio.NewReader(conn)
		for {
			line, err := br.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}
		_, _ = conn.Write([]byte(validHandshakeResponse(key)))
		// A binary frame header claiming a 2 MiB payload, unmasked:
		// well over the 1 MiB ceiling.
		header := []byte{0x82, 0x7F, 0, 0, 0, 0, 0, 0x20, 0, 0}
		_, _ = conn.Write(header)
	})
	defer srv.close()

	sink := newRecordingSink()
	c := NewConn(sink, withFixedNonce(key))
	err := c.Connect(context.Background(), srv.url("/"))
	var pe *ProtocolError
	assert.ErrorAs(t, err, &pe)
}
