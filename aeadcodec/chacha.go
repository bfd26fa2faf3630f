// Package aeadcodec implements chunked AEAD encryption/decryption:
// streaming XChaCha20-Poly1305 (with associated data) and
// XSalsa20-Poly1305 (NaCl secretbox-compatible, no associated data).
// Both operate on chunks of arbitrary size without buffering the
// whole message, per spec.md §4.1.
package aeadcodec

import (
	"crypto/subtle"
	"encoding/binary"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/poly1305"

	"github.com/threema-ch/libthreema-go/internal/secutil"
	"github.com/threema-ch/libthreema-go/protoerr"
)

// TagLen is the width of a Poly1305 authentication tag.
const TagLen = 16

// XChaCha20Poly1305 is a chunked encryptor/decryptor handle. Decrypted
// bytes are unauthenticated until FinalizeVerify succeeds; callers
// must not act on them earlier.
type XChaCha20Poly1305 struct {
	cipher *chacha20.Cipher
	mac    *poly1305.MAC
	adLen  uint64
	ctLen  uint64
}

func padLen(n uint64) int {
	rem := int(n % 16)
	if rem == 0 {
		return 0
	}
	return 16 - rem
}

// NewXChaCha20Poly1305 initialises a handle for key and a 24-byte
// nonce, absorbing associatedData immediately.
func NewXChaCha20Poly1305(key [32]byte, nonce [24]byte, associatedData []byte) (*XChaCha20Poly1305, error) {
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		return nil, protoerr.Wrap(protoerr.InternalError, "init xchacha20", err)
	}

	var polyKey [32]byte
	var zero [32]byte
	c.XORKeyStream(polyKey[:], zero[:])
	c.SetCounter(1)

	mac := poly1305.New(&polyKey)
	secutil.ZeroBytes(polyKey[:])

	mac.Write(associatedData)
	if pad := padLen(uint64(len(associatedData))); pad > 0 {
		mac.Write(make([]byte, pad))
	}

	return &XChaCha20Poly1305{cipher: c, mac: mac, adLen: uint64(len(associatedData))}, nil
}

// Encrypt applies the keystream to chunk in place, then absorbs the
// resulting ciphertext into the running MAC. Zero-length chunks are a
// legal no-op.
func (x *XChaCha20Poly1305) Encrypt(chunk []byte) {
	x.cipher.XORKeyStream(chunk, chunk)
	x.mac.Write(chunk)
	x.ctLen += uint64(len(chunk))
}

// Decrypt absorbs chunk (still ciphertext) into the running MAC, then
// applies the keystream in place to recover plaintext. The result is
// unauthenticated until FinalizeVerify succeeds.
func (x *XChaCha20Poly1305) Decrypt(chunk []byte) {
	x.mac.Write(chunk)
	x.cipher.XORKeyStream(chunk, chunk)
	x.ctLen += uint64(len(chunk))
}

// Finalize pads the MAC to a 16-byte boundary, absorbs the
// little-endian associated-data and ciphertext lengths, and returns
// the 16-byte tag.
func (x *XChaCha20Poly1305) Finalize() [TagLen]byte {
	if pad := padLen(x.ctLen); pad > 0 {
		x.mac.Write(make([]byte, pad))
	}
	var lengths [16]byte
	binary.LittleEndian.PutUint64(lengths[0:8], x.adLen)
	binary.LittleEndian.PutUint64(lengths[8:16], x.ctLen)
	x.mac.Write(lengths[:])

	var out [TagLen]byte
	copy(out[:], x.mac.Sum(nil))
	return out
}

// FinalizeVerify finalizes and compares against expected in constant
// time, returning a DecryptionFailed error on mismatch.
func (x *XChaCha20Poly1305) FinalizeVerify(expected [TagLen]byte) error {
	got := x.Finalize()
	if subtle.ConstantTimeCompare(got[:], expected[:]) != 1 {
		return protoerr.New(protoerr.DecryptionFailed, "aead tag mismatch")
	}
	return nil
}
