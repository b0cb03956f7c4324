package wsconn

import (
	"context"
	"crypto/tls"
	"net"
	"net/url"
	"strconv"

	"golang.org/x/xerrors"
)

// dialSocket is the default socket factory: it supplies a connected
// byte-oriented duplex stream given a host/port and scheme, over real
// TCP/TLS. withSocketFactory can replace it.
func dialSocket(ctx context.Context, u *url.URL, tlsCfg *tls.Config) (net.Conn, error) {
	host, port, err := hostPort(u)
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(host, port)

	switch u.Scheme {
	case "ws":
		d := &net.Dialer{}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, newIOError(xerrors.Errorf("dial %s: %w", addr, err))
		}
		return conn, nil
	case "wss":
		cfg := tlsCfg
		if cfg == nil {
			cfg = &tls.Config{ServerName: host}
		} else if cfg.ServerName == "" {
			cfg = cfg.Clone()
			cfg.ServerName = host
		}
		td := tls.Dialer{NetDialer: &net.Dialer{}, Config: cfg}
		conn, err := td.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, newIOError(xerrors.Errorf("dial %s: %w", addr, err))
		}
		return conn, nil
	default:
		return nil, &ArgumentError{Reason: "unsupported URI scheme: " + u.Scheme}
	}
}

// hostPort splits u.Host into a host and a port, applying the default
// port for the scheme (80 for ws, 443 for wss) when none is given.
func hostPort(u *url.URL) (host, port string, err error) {
	host = u.Hostname()
	if host == "" {
		return "", "", &ArgumentError{Reason: "URI has no host"}
	}
	port = u.Port()
	if port != "" {
		return host, port, nil
	}
	switch u.Scheme {
	case "ws":
		return host, strconv.Itoa(80), nil
	case "wss":
		return host, strconv.Itoa(443), nil
	default:
		return "", "", &ArgumentError{Reason: "unsupported URI scheme: " + u.Scheme}
	}
}
