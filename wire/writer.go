package wire

import "encoding/binary"

// Writer accumulates bytes into a reusable buffer, mirroring
// serviceframe.Frame's MarshalBinary idiom: callers that encode many
// payloads in a loop can Reset between calls instead of reallocating.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with capacity reserved up front.
func NewWriter(capacityHint int) *Writer {
	return &Writer{buf: make([]byte, 0, capacityHint)}
}

// Reset empties the buffer while keeping its backing array.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
}

// Bytes returns the accumulated buffer. The slice is invalidated by
// the next write after a Reset that reallocates; callers that need to
// retain it must copy.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Byte appends a single byte.
func (w *Writer) Byte(b byte) {
	w.buf = append(w.buf, b)
}

// WriteBytes appends raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Uint16LE appends a little-endian 16-bit unsigned integer.
func (w *Writer) Uint16LE(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// Uint32LE appends a little-endian 32-bit unsigned integer.
func (w *Writer) Uint32LE(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// Uint64LE appends a little-endian 64-bit unsigned integer.
func (w *Writer) Uint64LE(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// Uint16BE appends a big-endian 16-bit unsigned integer.
func (w *Writer) Uint16BE(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}
