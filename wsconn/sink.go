package wsconn

// EventSink receives the semantic events produced by the frame reader
// loop. All callbacks run synchronously on the goroutine that called
// Connect — a slow sink backpressures reads, and the sink must tolerate
// being invoked while one of its own Send* calls (made from another
// goroutine) is in flight.
//
// No "disconnected" event is produced: Connect simply returns once the
// connection ends, and the caller deduces disconnection from that.
type EventSink interface {
	// OnConnected fires exactly once, after the handshake succeeds and
	// before the reader loop starts.
	OnConnected()

	// OnText fires for a complete, non-fragmented text frame, decoded as
	// UTF-8.
	OnText(message string)

	// OnBinary fires for a complete, non-fragmented binary frame.
	OnBinary(data []byte)

	// OnPing fires when the peer sends a ping; the core replies with a
	// pong carrying the same payload after this call returns.
	OnPing(data []byte)

	// OnPong fires when the peer sends a pong.
	OnPong(data []byte)

	// OnServerRequestedClose fires when the peer sends a close frame.
	// The core does not itself send a close frame in response; it only
	// reports the event, and the reader loop keeps reading until the
	// peer closes the socket or another error ends it.
	OnServerRequestedClose(data []byte)

	// OnUnknown fires for any opcode outside {continuation, text,
	// binary, close, ping, pong}.
	OnUnknown(opcode byte, data []byte)
}

// NopSink is an EventSink whose methods do nothing. Embed it to satisfy
// EventSink while only overriding the callbacks a caller cares about.
type NopSink struct{}

func (NopSink) OnConnected()                          {}
func (NopSink) OnText(string)                          {}
func (NopSink) OnBinary([]byte)                        {}
func (NopSink) OnPing([]byte)                          {}
func (NopSink) OnPong([]byte)                          {}
func (NopSink) OnServerRequestedClose([]byte)          {}
func (NopSink) OnUnknown(opcode byte, data []byte)     {}
