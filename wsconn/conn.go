package wsconn

import (
	"bufio"
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/xerrors"
)

// dialFunc is the socket-factory seam: NewConn installs dialSocket, and
// withSocketFactory can substitute another.
type dialFunc func(ctx context.Context, u *url.URL, tlsCfg *tls.Config) (net.Conn, error)

// Conn is one client-side WebSocket connection. Connect owns the reader
// loop for the connection's entire lifetime, while Interrupt and the
// Send* family may be called concurrently from any other goroutine.
//
// A Conn is single-use: once Connect returns, it has permanently moved
// through Disconnected -> ... -> Disconnected and must not be
// reconnected (construct a new Conn instead).
type Conn struct {
	sm      *stateMachine
	writeMu sync.Mutex // distinct from sm.mu; never held together
	rand    *randomSource
	sink    EventSink

	tlsConfig   *tls.Config
	logger      *slog.Logger
	dialTimeout time.Duration
	readLimit   int64
	dial        dialFunc
	fixedNonce  string // test-only, see withFixedNonce

	id             uuid.UUID
	completedOnce  atomic.Bool
	interruptFired atomic.Bool
}

// NewConn constructs a Conn that will deliver events to sink. sink must
// not be nil.
func NewConn(sink EventSink, opts ...ConnOption) *Conn {
	c := &Conn{
		sm:        newStateMachine(),
		rand:      newRandomSource(),
		sink:      sink,
		readLimit: maxPayloadLength,
		dial:      dialSocket,
		id:        uuid.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reports the current connection state. Safe to call from any
// goroutine.
func (c *Conn) State() State {
	s, _ := c.sm.get()
	return s
}

// log returns c.logger, or a discard logger if none was configured.
func (c *Conn) log() *slog.Logger {
	if c.logger != nil {
		return c.logger.With(slog.String("conn_id", c.id.String()))
	}
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Connect performs the handshake and then runs the frame reader loop
// until the connection ends.
//
// Precondition: State() == Disconnected; violating this is a
// programming error (ArgumentError), not a recoverable runtime
// condition. Connect always returns with State() == Disconnected, after
// draining any in-flight Send* calls to zero. It returns exactly one of:
// an InterruptedError if Interrupt was observed, or the originating
// I/O/protocol/argument error.
func (c *Conn) Connect(ctx context.Context, rawURL string) error {
	if cur, _ := c.sm.get(); cur != Disconnected {
		return &ArgumentError{Reason: "connect may only be called when disconnected"}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return &ArgumentError{Reason: "invalid URI: " + err.Error()}
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return &ArgumentError{Reason: "unsupported URI scheme: " + u.Scheme}
	}

	dialCtx := ctx
	var cancel context.CancelFunc
	if c.dialTimeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, c.dialTimeout)
		defer cancel()
	}

	err = c.connect(dialCtx, u)

	// Terminal behavior: always drain outstanding writes to zero, then
	// transition to Disconnected and notify waiters,
	// rewriting to InterruptedError iff Interrupt was the one that ended
	// the connection. Disconnecting is also entered by connect's own
	// teardown after an ordinary read/protocol/I-O error, so that state
	// alone can't distinguish the two cases; interruptFired can, since
	// only Interrupt ever sets it.
	c.sm.drainToZero()
	c.sm.set(Disconnected, nil)
	c.completedOnce.Store(true)

	if c.interruptFired.Load() {
		c.log().Info("connect returning interrupted", slog.String("uri", rawURL))
		return &InterruptedError{}
	}
	return err
}

// connect runs the dial, handshake, and reader loop, returning the
// first error encountered.
func (c *Conn) connect(ctx context.Context, u *url.URL) error {
	host := u.Hostname()
	if host == "" {
		return &ArgumentError{Reason: "URI has no host"}
	}

	sock, err := c.dial(ctx, u, c.tlsConfig)
	if err != nil {
		return err
	}

	// The socket is installed under the state lock, transitioning
	// Disconnected -> Connecting, *before* any blocking handshake I/O,
	// so a concurrent Interrupt can close it out from under us.
	c.sm.set(Connecting, sock)

	br := bufio.NewReader(sock)
	if err := c.handshake(br, sock, u); err != nil {
		_ = sock.Close()
		return err
	}

	if cur, _ := c.sm.get(); cur == Disconnecting {
		return newIOError(xerrors.New("connection closed during handshake"))
	}

	c.sm.set(Connected, sock)
	c.log().Info("connected", slog.String("host", host))
	c.sink.OnConnected()

	loopErr := c.readLoop(br)

	if cur, _ := c.sm.get(); cur != Disconnecting {
		c.sm.set(Disconnecting, sock)
	}
	_ = sock.Close()
	return loopErr
}

// handshake writes the upgrade request and validates the response. br
// wraps sock and is reused unchanged by connect's readLoop afterward, so
// any bytes buffered ahead of the blank line that ends the headers
// (e.g. the server's first frame, pipelined into the same TCP segment
// as the handshake response) are not lost to a second, throwaway
// bufio.Reader.
func (c *Conn) handshake(br *bufio.Reader, sock net.Conn, u *url.URL) error {
	key := c.fixedNonce
	if key == "" {
		key = c.rand.handshakeNonce()
	}

	if err := writeHandshakeRequest(sock, u.Host, u.EscapedPath(), u.String(), key); err != nil {
		return newIOError(err)
	}
	if err := readHandshakeResponse(br, key); err != nil {
		return err
	}
	return nil
}

// Interrupt cancels a blocked Connect from any other goroutine. It is
// idempotent: calling it again after a completed Connect (one that has
// already returned to Disconnected) is a no-op. Calling it before
// Connect has even been invoked blocks until Connect starts, rather
// than racing it — so this deliberately does not return early just
// because State() currently reads Disconnected on a Conn that has never
// been used.
func (c *Conn) Interrupt() {
	if c.completedOnce.Load() {
		return
	}

	c.sm.waitWhile(func(s State) bool { return s == Disconnected })

	cur, sock := c.sm.get()
	if cur == Connecting || cur == Connected {
		c.interruptFired.Store(true)
		if sock != nil {
			_ = sock.Close()
		}
		c.sm.set(Disconnecting, sock)
	}

	c.sm.waitWhile(func(s State) bool { return s != Disconnected })
}
