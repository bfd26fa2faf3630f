package aeadcodec

import (
	"crypto/subtle"

	"golang.org/x/crypto/poly1305"
	"golang.org/x/crypto/salsa20/salsa"

	"github.com/threema-ch/libthreema-go/internal/secutil"
	"github.com/threema-ch/libthreema-go/protoerr"
)

// salsaStream generates an XSalsa20 keystream one 64-byte block at a
// time and applies it to arbitrary-length chunks, buffering whatever
// part of the current block a short chunk doesn't consume. The
// underlying salsa.XORKeyStream call is stateless per invocation, so
// this buffering is what lets Encrypt/Decrypt be called repeatedly
// with chunk boundaries that don't line up with 64-byte blocks.
type salsaStream struct {
	subkey   [32]byte
	counter  [16]byte
	block    [64]byte
	blockOff int // index of the next unused keystream byte in block
}

func newSalsaStream(subkey [32]byte, fixedNonce [8]byte) *salsaStream {
	s := &salsaStream{subkey: subkey, blockOff: 64}
	copy(s.counter[:8], fixedNonce[:])
	return s
}

func (s *salsaStream) nextBlock() {
	var zero [64]byte
	salsa.XORKeyStream(s.block[:], zero[:], &s.counter, &s.subkey)
	s.blockOff = 0
	for i := 8; i < 16; i++ {
		s.counter[i]++
		if s.counter[i] != 0 {
			break
		}
	}
}

func (s *salsaStream) xor(dst, src []byte) {
	for len(src) > 0 {
		if s.blockOff == 64 {
			s.nextBlock()
		}
		n := 64 - s.blockOff
		if n > len(src) {
			n = len(src)
		}
		for i := 0; i < n; i++ {
			dst[i] = src[i] ^ s.block[s.blockOff+i]
		}
		s.blockOff += n
		dst = dst[n:]
		src = src[n:]
	}
}

// XSalsa20Poly1305 is a chunked, NaCl secretbox-compatible
// encryptor/decryptor handle: no associated data, no length footer,
// no block padding at finalize.
type XSalsa20Poly1305 struct {
	stream *salsaStream
	mac    *poly1305.MAC
}

// NewXSalsa20Poly1305 initialises a handle for key and a 24-byte
// nonce: the first 16 nonce bytes feed HSalsa20 subkey derivation,
// the last 8 become the fixed half of the Salsa20 block counter. The
// first 32 bytes of the resulting keystream become the Poly1305 key;
// the rest of that same block is available to encrypt/decrypt, same
// as NaCl's secretbox construction.
func NewXSalsa20Poly1305(key [32]byte, nonce [24]byte) *XSalsa20Poly1305 {
	var subkey [32]byte
	var hNonce [16]byte
	copy(hNonce[:], nonce[:16])
	salsa.HSalsa20(&subkey, &hNonce, &key, &salsa.Sigma)

	var fixedNonce [8]byte
	copy(fixedNonce[:], nonce[16:24])
	stream := newSalsaStream(subkey, fixedNonce)
	secutil.ZeroBytes(subkey[:])

	stream.nextBlock()
	var polyKey [32]byte
	copy(polyKey[:], stream.block[:32])
	stream.blockOff = 32

	mac := poly1305.New(&polyKey)
	secutil.ZeroBytes(polyKey[:])

	return &XSalsa20Poly1305{stream: stream, mac: mac}
}

// Encrypt applies the keystream to chunk in place, then absorbs the
// ciphertext into the running MAC.
func (x *XSalsa20Poly1305) Encrypt(chunk []byte) {
	x.stream.xor(chunk, chunk)
	x.mac.Write(chunk)
}

// Decrypt absorbs chunk (still ciphertext) into the running MAC, then
// applies the keystream in place.
func (x *XSalsa20Poly1305) Decrypt(chunk []byte) {
	x.mac.Write(chunk)
	x.stream.xor(chunk, chunk)
}

// Finalize returns the 16-byte tag with no padding and no length
// footer, matching NaCl secretbox.
func (x *XSalsa20Poly1305) Finalize() [TagLen]byte {
	var out [TagLen]byte
	copy(out[:], x.mac.Sum(nil))
	return out
}

// FinalizeVerify finalizes and compares against expected in constant time.
func (x *XSalsa20Poly1305) FinalizeVerify(expected [TagLen]byte) error {
	got := x.Finalize()
	if subtle.ConstantTimeCompare(got[:], expected[:]) != 1 {
		return protoerr.New(protoerr.DecryptionFailed, "aead tag mismatch")
	}
	return nil
}
