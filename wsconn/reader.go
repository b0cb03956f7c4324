package wsconn

import (
	"bufio"
	"io"

	"golang.org/x/xerrors"
)

// readLoop is the single-threaded frame reader. It runs only on the
// goroutine that called Connect, after Connected is reached, and
// returns the error that ends the connection (nil is never returned;
// readLoop always exits by error, since there is no explicit
// "disconnect" frame ending a connection cleanly).
func (c *Conn) readLoop(br *bufio.Reader) error {
	for {
		h, err := readFrameHeader(br)
		if err != nil {
			if pe, ok := err.(*ProtocolError); ok {
				return pe
			}
			return newIOError(xerrors.Errorf("failed to read frame header: %w", err))
		}

		if h.payloadLength < 0 || h.payloadLength > c.readLimit {
			return newProtocolError("too large payload")
		}
		if !h.fin || h.opcode == OpcodeContinuation {
			return newProtocolError("fragmented frames not supported")
		}

		payload := make([]byte, h.payloadLength)
		if _, err := io.ReadFull(br, payload); err != nil {
			return newIOError(xerrors.Errorf("failed to read frame payload: %w", err))
		}
		if h.masked {
			maskPayload(payload, h.maskKey)
		}

		if err := c.dispatch(h.opcode, payload); err != nil {
			return err
		}
	}
}

// dispatch delivers one decoded frame to the sink, sending a pong in
// reply to a ping.
func (c *Conn) dispatch(opcode Opcode, payload []byte) error {
	switch opcode {
	case OpcodeText:
		c.sink.OnText(string(payload))
	case OpcodeBinary:
		c.sink.OnBinary(payload)
	case OpcodeClose:
		c.sink.OnServerRequestedClose(payload)
	case OpcodePong:
		c.sink.OnPong(payload)
	case OpcodePing:
		c.sink.OnPing(payload)
		if err := c.sendPong(payload); err != nil {
			return err
		}
	default:
		c.sink.OnUnknown(byte(opcode), payload)
	}
	return nil
}
