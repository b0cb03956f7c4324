// Package echopeer is a minimal real WebSocket server used only from
// wsconn's tests, as the peer our hand-rolled client dials against for
// end-to-end test scenarios. It is built on github.com/gorilla/websocket
// rather than on wsconn itself, so a test failure here can never be
// masked by a shared bug in the client core.
package echopeer

import (
	"net/http"
	"net/http/httptest"

	"github.com/gorilla/websocket"
)

// Server is a running echo peer: it accepts one WebSocket upgrade per
// connection and echoes back every text/binary frame it receives,
// unmodified.
type Server struct {
	httpServer *httptest.Server
	upgrader   websocket.Upgrader

	// Script, if non-nil, replaces the default echo behavior: it is run
	// once per accepted connection instead of the echo loop, letting
	// tests script exact peer behavior (e.g. "send a text frame, then a
	// ping, then nothing").
	Script func(c *websocket.Conn)
}

// New starts a Server listening on an ephemeral local port.
func New() *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.httpServer = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns a ws://host:port path the client can dial.
func (s *Server) URL(path string) string {
	return "ws" + s.httpServer.URL[len("http"):] + path
}

// Close shuts down the underlying HTTP server.
func (s *Server) Close() {
	s.httpServer.Close()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if s.Script != nil {
		s.Script(conn)
		return
	}

	for {
		mt, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteMessage(mt, payload); err != nil {
			return
		}
	}
}
