package wsconn

import (
	"crypto/tls"
	"log/slog"
	"time"
)

// ConnOption configures a Conn at construction time.
type ConnOption func(*Conn)

// WithTLSConfig supplies a *tls.Config for wss:// dials. If unset, a
// config with ServerName set to the URI's host is used.
func WithTLSConfig(cfg *tls.Config) ConnOption {
	return func(c *Conn) { c.tlsConfig = cfg }
}

// WithLogger attaches a structured logger. If unset, Conn logs nothing.
func WithLogger(logger *slog.Logger) ConnOption {
	return func(c *Conn) { c.logger = logger }
}

// WithDialTimeout bounds the TCP/TLS dial phase only, independent of
// any deadline already on the context passed to Connect. Zero means no
// additional timeout.
func WithDialTimeout(d time.Duration) ConnOption {
	return func(c *Conn) { c.dialTimeout = d }
}

// WithReadLimit lowers the maximum accepted inbound payload size below
// the default 1 MiB ceiling. It cannot raise it above 1 MiB.
func WithReadLimit(n int64) ConnOption {
	return func(c *Conn) {
		if n > 0 && n < maxPayloadLength {
			c.readLimit = n
		}
	}
}

// withSocketFactory overrides dialSocket. Test-only: unexported so
// production callers cannot bypass the real TCP/TLS contract.
func withSocketFactory(f dialFunc) ConnOption {
	return func(c *Conn) { c.dial = f }
}

// withFixedNonce pins the Sec-WebSocket-Key nonce Connect sends, so a
// test peer can precompute the matching Sec-WebSocket-Accept without
// parsing the request. Test-only: unexported.
func withFixedNonce(key string) ConnOption {
	return func(c *Conn) { c.fixedNonce = key }
}
