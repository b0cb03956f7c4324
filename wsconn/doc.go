// Package wsconn implements a client-side RFC 6455 (v13) WebSocket
// endpoint over a plain or TLS TCP socket.
//
// A Conn drives one connection for its entire lifetime: Connect performs
// the opening HTTP Upgrade handshake and then runs the frame reader loop
// on the calling goroutine until the peer, a protocol violation, or a
// call to Interrupt ends it. Concurrently, any goroutine may call the
// Send* family to serialize outbound frames.
//
// Fragmented messages, permessage-deflate, and the server role are not
// supported; see the package-level invariants documented on Conn.
package wsconn
