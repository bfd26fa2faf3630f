// Package seqcookie builds the 24-byte AEAD nonces used by the CSP
// and device-to-device transports from a per-direction 16-byte random
// cookie and a monotonic 8-byte little-endian sequence counter.
package seqcookie

import (
	"crypto/rand"
	"encoding/binary"
	"io"

	"github.com/threema-ch/libthreema-go/model"
	"github.com/threema-ch/libthreema-go/protoerr"
)

// Counter is a strictly monotonic sequence number generator for one
// direction of a session. It starts at 0 and must never wrap; Next
// returns an error rather than overflow back to 0.
type Counter struct {
	next uint64
}

// Next returns the next sequence number and advances the counter.
func (c *Counter) Next() (uint64, error) {
	if c.next == ^uint64(0) {
		return 0, protoerr.New(protoerr.InternalError, "sequence counter exhausted")
	}
	v := c.next
	c.next++
	return v, nil
}

// NewCookie generates a fresh random 16-byte cookie.
func NewCookie() (model.Cookie, error) {
	var c model.Cookie
	if _, err := io.ReadFull(rand.Reader, c[:]); err != nil {
		return c, protoerr.Wrap(protoerr.InternalError, "generate cookie", err)
	}
	return c, nil
}

// Nonce concatenates cookie and sequence number into a 24-byte AEAD
// nonce: 16-byte cookie followed by an 8-byte little-endian counter.
func Nonce(cookie model.Cookie, seq uint64) model.Nonce {
	var n model.Nonce
	copy(n[:model.CookieLen], cookie[:])
	binary.LittleEndian.PutUint64(n[model.CookieLen:], seq)
	return n
}
