package wire

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/salsa20/salsa"

	"github.com/threema-ch/libthreema-go/protoerr"
)

// KeyPair is an X25519 key pair: Public is derived from Private via
// the Curve25519 base point.
type KeyPair struct {
	Public  [32]byte
	Private [32]byte
}

// GenerateKeyPair creates a fresh ephemeral X25519 key pair, used for
// CSP handshakes, rendezvous path keys, and per-session TCK/TSK.
func GenerateKeyPair() (KeyPair, error) {
	var kp KeyPair
	if _, err := io.ReadFull(rand.Reader, kp.Private[:]); err != nil {
		return kp, protoerr.Wrap(protoerr.InternalError, "generate x25519 key pair", err)
	}
	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return kp, protoerr.Wrap(protoerr.InternalError, "derive x25519 public key", err)
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// SharedSecret runs X25519 scalar multiplication between a local
// private key and a remote public key.
func SharedSecret(private, remotePublic [32]byte) ([32]byte, error) {
	var out [32]byte
	raw, err := curve25519.X25519(private[:], remotePublic[:])
	if err != nil {
		return out, protoerr.Wrap(protoerr.InternalError, "x25519 agreement", err)
	}
	copy(out[:], raw)
	return out, nil
}

// HSalsa20Subkey derives a 32-byte subkey from a shared secret the
// way NaCl's box/secretbox construction does: HSalsa20 keyed by the
// shared secret, applied to a 16-byte nonce-derived input (zero input
// when none is needed), which is the construction spec.md §3 requires
// for the sender/receiver message-container shared secret.
func HSalsa20Subkey(sharedSecret [32]byte, nonce16 [16]byte) [32]byte {
	var out [32]byte
	salsa.HSalsa20(&out, &nonce16, &sharedSecret, &salsa.Sigma)
	return out
}

// HKDFSHA256 derives keyLen bytes from sharedSecret using HKDF-SHA256
// with the given salt and info, the construction used throughout the
// CSP and rendezvous key schedules in spec.md §4.3/§4.5.
func HKDFSHA256(sharedSecret, salt, info []byte, keyLen int) ([]byte, error) {
	r := hkdf.New(sha256.New, sharedSecret, salt, info)
	out := make([]byte, keyLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, protoerr.Wrap(protoerr.InternalError, "hkdf-sha256 derive", err)
	}
	return out, nil
}
