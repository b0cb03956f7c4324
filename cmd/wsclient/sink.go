package main

import (
	"fmt"
	"io"

	"wsclient/wsconn"
)

// cliSink renders inbound events to an io.Writer, one line per event;
// unknown-opcode frames fall through to NopSink and print nothing.
// It embeds wsconn.NopSink so adding a new EventSink callback in the
// future doesn't break this CLI.
type cliSink struct {
	wsconn.NopSink
	out io.Writer
}

func newCLISink(out io.Writer) *cliSink {
	return &cliSink{out: out}
}

func (s *cliSink) OnConnected() {
	fmt.Fprintln(s.out, "[connected]")
}

func (s *cliSink) OnText(message string) {
	fmt.Fprintf(s.out, "< %s\n", message)
}

func (s *cliSink) OnBinary(data []byte) {
	fmt.Fprintf(s.out, "< [%d bytes binary]\n", len(data))
}

func (s *cliSink) OnPing(data []byte) {
	fmt.Fprintf(s.out, "[ping, %d bytes]\n", len(data))
}

func (s *cliSink) OnPong(data []byte) {
	fmt.Fprintf(s.out, "[pong, %d bytes]\n", len(data))
}

func (s *cliSink) OnServerRequestedClose(data []byte) {
	fmt.Fprintf(s.out, "[server closed the connection: %q]\n", data)
}
