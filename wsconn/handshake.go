package wsconn

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// webSocketGUID is the fixed magic value RFC 6455 §1.3 mixes into the
// client's nonce to derive the expected Sec-WebSocket-Accept.
const webSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// rejectedSubprotocol is the literal the opening request advertises in
// Sec-WebSocket-Protocol. If the server echoes back this exact value,
// the handshake is rejected — the opposite of a normal negotiation
// check, kept intentionally rather than "fixed" to a sensible
// acceptance rule.
const rejectedSubprotocol = "chat"

// writeHandshakeRequest writes the CRLF-terminated GET/Upgrade request,
// using path exactly as it appears in the dial URI (defaulting to "/").
func writeHandshakeRequest(w io.Writer, host, path, origin, key string) error {
	if path == "" {
		path = "/"
	}
	lines := []string{
		fmt.Sprintf("GET %s HTTP/1.1", path),
		"Upgrade: websocket",
		"Connection: Upgrade",
		fmt.Sprintf("Host: %s", host),
		fmt.Sprintf("Origin: %s", origin),
		fmt.Sprintf("Sec-WebSocket-Key: %s", key),
		"Sec-WebSocket-Protocol: chat",
		"Sec-WebSocket-Version: 13",
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return xerrors.Errorf("failed to write handshake request: %w", err)
	}
	return nil
}

// readHandshakeResponse reads and validates the server's status line and
// headers, returning a protocol error for any missing/duplicate/
// mismatched field.
//
// br must be the same *bufio.Reader the frame reader loop will go on to
// use for this connection: textproto buffers ahead of the blank line
// that ends the headers, and any bytes of the peer's first frame that
// arrived in the same TCP segment as the handshake response would be
// silently dropped if a second, throwaway bufio.Reader were created
// here instead.
func readHandshakeResponse(br *bufio.Reader, key string) error {
	tp := textproto.NewReader(br)

	statusLine, err := tp.ReadLine()
	if err != nil {
		return newIOError(xerrors.Errorf("failed to read status line: %w", err))
	}
	if err := validateStatusLine(statusLine); err != nil {
		return err
	}

	header, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		var tpe textproto.ProtocolError
		if errors.As(err, &tpe) {
			return newProtocolError("malformed handshake headers: " + tpe.Error())
		}
		return newIOError(xerrors.Errorf("failed to read handshake headers: %w", err))
	}

	accepted := header.Values("Sec-Websocket-Accept")
	if len(accepted) != 1 {
		return newProtocolError(fmt.Sprintf("Sec-WebSocket-Accept present %d times, want 1", len(accepted)))
	}
	want := expectedAccept(key)
	if accepted[0] != want {
		return newProtocolError("Sec-WebSocket-Accept does not match expected value")
	}

	if proto := header.Get("Sec-Websocket-Protocol"); proto == rejectedSubprotocol {
		return newProtocolError(fmt.Sprintf("server selected rejected subprotocol %q", rejectedSubprotocol))
	}

	return nil
}

// validateStatusLine checks that line is "HTTP/1.1 101 <reason>".
func validateStatusLine(line string) error {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return newProtocolError("malformed status line: " + line)
	}
	if parts[0] != "HTTP/1.1" {
		return newProtocolError("unsupported HTTP version in status line: " + parts[0])
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return newProtocolError("malformed status code in status line: " + parts[1])
	}
	if code != 101 {
		return newProtocolError(fmt.Sprintf("handshake rejected with status %d", code))
	}
	return nil
}

// expectedAccept computes base64(SHA1(key || webSocketGUID)), the value
// the server's Sec-WebSocket-Accept header must equal.
func expectedAccept(key string) string {
	h := sha1.New()
	io.WriteString(h, key)
	io.WriteString(h, webSocketGUID)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
