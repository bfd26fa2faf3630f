// Package hmac provides a reusable HMAC-SHA256 generator/verifier,
// used by csp.Protocol for the vouch MAC binding a client's permanent
// and temporary key pairs during the handshake.
package hmac

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
)

// ErrUnexpectedSignature is returned by Verify when the computed MAC
// doesn't match the supplied signature.
var ErrUnexpectedSignature = errors.New("hmac: unexpected signature")

// CryptoHMAC - concurrently unsafe implementation of HMAC-SHA256 based on crypto/sha256 and crypto/hmac.
type CryptoHMAC struct {
	secret []byte
	// ioBuf is used to avoid memory allocations on Generate or Verify calls.
	// NOTE: each Generate or Verify call will rewrite ioBuf
	ioBuf [sha256.Size]byte
}

// NewHMAC constructs a CryptoHMAC keyed by secret.
func NewHMAC(secret []byte) *CryptoHMAC {
	return &CryptoHMAC{
		secret: secret,
	}
}

// Generate generates new HMAC data.
// NOTE: do not use it in concurrent environment as Generate is only valid before next Generate or Verify call.
func (d *CryptoHMAC) Generate(data []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, d.secret)
	mac.Write(data)
	sum := mac.Sum(d.ioBuf[:0])
	return sum, nil
}

// Verify verifies HMAC data
// NOTE: do not use it in concurrent environment as Verify is only valid before next Generate or Verify call.
func (d *CryptoHMAC) Verify(data, signature []byte) error {
	mac := hmac.New(sha256.New, d.secret)
	mac.Write(data)
	expected := mac.Sum(d.ioBuf[:0])
	if !hmac.Equal(expected, signature) {
		return ErrUnexpectedSignature
	}
	return nil
}
