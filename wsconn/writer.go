package wsconn

import (
	"golang.org/x/xerrors"
)

// SendText sends message as a single, final text frame.
func (c *Conn) SendText(message string) error {
	return c.send(OpcodeText, []byte(message))
}

// SendBinary sends data as a single, final binary frame.
func (c *Conn) SendBinary(data []byte) error {
	return c.send(OpcodeBinary, data)
}

// SendPing sends data as a ping frame. The peer is expected to reply
// with a pong carrying the same payload, delivered to the sink's
// OnPong.
func (c *Conn) SendPing(data []byte) error {
	return c.send(OpcodePing, data)
}

// sendPong sends data as a pong frame. Only called internally, from the
// reader loop, in reply to an inbound ping.
func (c *Conn) sendPong(data []byte) error {
	return c.send(OpcodePong, data)
}

// send implements the entry/body/exit contract shared by every
// frame-emitting operation.
func (c *Conn) send(opcode Opcode, payload []byte) error {
	// Entry: acquire state lock, check Connected, increment outstanding.
	if _, ok := c.sm.beginWrite(); !ok {
		return &NotConnectedError{}
	}

	// Body: under the write lock (distinct from the state lock), encode
	// and emit. This never holds both locks at once.
	err := c.writeFrameLocked(opcode, payload)

	// Exit: decrement outstanding, notify waiters.
	c.sm.endWrite()

	if err != nil {
		if _, isIO := err.(*IOError); isIO {
			if curState, _ := c.sm.get(); curState == Disconnecting {
				return &InterruptedError{}
			}
		}
		return err
	}
	return nil
}

// writeFrameLocked composes and writes one masked (or, if the CSPRNG
// has failed sticky, unmasked) frame.
func (c *Conn) writeFrameLocked(opcode Opcode, payload []byte) error {
	_, sock := c.sm.get()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if sock == nil {
		return newIOError(xerrors.New("no socket"))
	}

	h := frameHeader{
		fin:           true,
		opcode:        opcode,
		payloadLength: int64(len(payload)),
	}
	key, masked := c.rand.frameMask()
	h.masked = masked

	header := writeFrameHeader(h)
	if _, err := sock.Write(header); err != nil {
		return newIOError(xerrors.Errorf("failed to write frame header: %w", err))
	}

	if masked {
		if _, err := sock.Write(key[:]); err != nil {
			return newIOError(xerrors.Errorf("failed to write mask key: %w", err))
		}
		out := make([]byte, len(payload))
		copy(out, payload)
		maskPayload(out, key)
		if _, err := sock.Write(out); err != nil {
			return newIOError(xerrors.Errorf("failed to write payload: %w", err))
		}
		return nil
	}

	if _, err := sock.Write(payload); err != nil {
		return newIOError(xerrors.Errorf("failed to write payload: %w", err))
	}
	return nil
}
