package wsconn

import (
	"golang.org/x/xerrors"
)

// IOError wraps a failure from the underlying socket (connect, read,
// write, or flush).
type IOError struct {
	Err error
}

func (e *IOError) Error() string { return xerrors.Errorf("i/o error: %w", e.Err).Error() }
func (e *IOError) Unwrap() error { return e.Err }

// ProtocolError is raised when the peer violates RFC 6455 or asks for
// something this core does not support (fragmentation, reserved bits,
// oversize payloads, a non-101 handshake response, a bad
// Sec-WebSocket-Accept, ...).
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "wsconn: protocol error: " + e.Reason }

// NotConnectedError is returned by the Send* family when State is not
// Connected.
type NotConnectedError struct{}

func (e *NotConnectedError) Error() string { return "wsconn: not connected" }

// InterruptedError is raised by Connect when a concurrent call to
// Interrupt was observed. It always wins over a simultaneous I/O error.
type InterruptedError struct{}

func (e *InterruptedError) Error() string { return "wsconn: interrupted" }

// ArgumentError reports a programming-error precondition violation:
// an unparsable URI, an unsupported URI scheme, a URI with no host, or
// Connect called while not Disconnected. Nil arguments are not checked:
// a nil sink passed to NewConn is not reported as an ArgumentError.
type ArgumentError struct {
	Reason string
}

func (e *ArgumentError) Error() string { return "wsconn: invalid argument: " + e.Reason }

func newIOError(err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Err: err}
}

func newProtocolError(reason string) error {
	return &ProtocolError{Reason: reason}
}
