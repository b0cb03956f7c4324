package wsconn

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	"sync"
)

// csprng is the seam tests use to simulate an unavailable entropy
// source. In production it is always crypto/rand.Reader; crypto/rand
// has no fallible initialization step of its own, so the sticky failure
// this type models is reachable only by substituting a failing reader
// in tests.
var csprng io.Reader = rand.Reader

// randomSource generates handshake nonces and frame masks, remembering
// whether the underlying CSPRNG has ever failed. Once it has, every
// subsequent call degrades: handshakeNonce returns a zero-filled nonce,
// and frameMask reports unavailable so the writer falls back to sending
// unmasked frames rather than blocking or panicking.
type randomSource struct {
	mu     sync.Mutex
	broken bool
}

func newRandomSource() *randomSource {
	return &randomSource{}
}

// handshakeNonce returns the 16-byte Sec-WebSocket-Key payload,
// base64-encoded without line wrapping.
func (r *randomSource) handshakeNonce() string {
	var nonce [16]byte
	r.mu.Lock()
	broken := r.broken
	if !broken {
		if _, err := io.ReadFull(csprng, nonce[:]); err != nil {
			r.broken = true
			broken = true
		}
	}
	r.mu.Unlock()
	if broken {
		nonce = [16]byte{}
	}
	return base64.StdEncoding.EncodeToString(nonce[:])
}

// frameMask returns a fresh 4-byte mask and true, or a zero key and
// false once the CSPRNG has been observed to fail even once (sticky).
func (r *randomSource) frameMask() ([4]byte, bool) {
	var key [4]byte
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.broken {
		return key, false
	}
	if _, err := io.ReadFull(csprng, key[:]); err != nil {
		r.broken = true
		return [4]byte{}, false
	}
	return key, true
}
