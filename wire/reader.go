// Package wire implements bounded sequential binary access over a
// byte slice, plus the X25519/HKDF key-derivation helpers shared by
// the CSP, rendezvous, and E2E layers.
//
// Concurrency: a Reader/Writer is NOT safe for concurrent use; each
// belongs to exactly one state machine instance.
package wire

import (
	"encoding/binary"

	"github.com/threema-ch/libthreema-go/protoerr"
)

// Reader is a cursor over an in-memory byte slice. It never copies
// the underlying bytes; Bytes and CaptureFrom return subslices of the
// original input so that AEAD code can operate on regions in place.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential reading starting at offset 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Offset returns the current read position.
func (r *Reader) Offset() int {
	return r.pos
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

func (r *Reader) require(n int) error {
	if n < 0 || r.Remaining() < n {
		return protoerr.New(protoerr.DecodingFailed, "unexpected end of input")
	}
	return nil
}

// Byte reads a single byte.
func (r *Reader) Byte() (byte, error) {
	if err := r.require(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// Bytes reads n bytes and returns a zero-copy subslice of the input.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.require(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Rest returns every remaining unread byte as a zero-copy subslice.
func (r *Reader) Rest() []byte {
	b := r.buf[r.pos:]
	r.pos = len(r.buf)
	return b
}

// CaptureFrom returns the zero-copy subslice of the original input
// spanning [from, current-position), for callers that recorded an
// earlier offset with Offset and now need the bytes read since then
// (used to hand AEAD-region boundaries to the chunked codec without
// an intermediate copy).
func (r *Reader) CaptureFrom(from int) []byte {
	return r.buf[from:r.pos]
}

// Uint16LE reads a little-endian 16-bit unsigned integer.
func (r *Reader) Uint16LE() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Uint32LE reads a little-endian 32-bit unsigned integer.
func (r *Reader) Uint32LE() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Uint64LE reads a little-endian 64-bit unsigned integer.
func (r *Reader) Uint64LE() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Uint16BE reads a big-endian 16-bit unsigned integer.
func (r *Reader) Uint16BE() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// Array32 reads a fixed 32-byte array, the common width for Curve25519
// keys and Blake2b-256 outputs.
func (r *Reader) Array32() ([32]byte, error) {
	var out [32]byte
	b, err := r.Bytes(32)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

// Array16 reads a fixed 16-byte array, the width of an AEAD tag or cookie.
func (r *Reader) Array16() ([16]byte, error) {
	var out [16]byte
	b, err := r.Bytes(16)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}
