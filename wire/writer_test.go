package wire

import (
	"bytes"
	"testing"
)

func TestWriterRoundTrip(t *testing.T) {
	w := NewWriter(16)
	w.Byte(0x01)
	w.Uint16LE(0x0302)
	w.Uint32LE(0x0A0B0C0D)
	w.WriteBytes([]byte{0xFF, 0xEE})

	want := []byte{0x01, 0x02, 0x03, 0x0D, 0x0C, 0x0B, 0x0A, 0xFF, 0xEE}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("got %x want %x", w.Bytes(), want)
	}
	if w.Len() != len(want) {
		t.Fatalf("Len() = %d want %d", w.Len(), len(want))
	}
}

func TestWriterReset(t *testing.T) {
	w := NewWriter(4)
	w.Byte(1)
	w.Reset()
	if w.Len() != 0 {
		t.Fatalf("expected empty buffer after Reset, got len %d", w.Len())
	}
	w.Byte(2)
	if got := w.Bytes(); len(got) != 1 || got[0] != 2 {
		t.Fatalf("unexpected buffer after reuse: %v", got)
	}
}

func TestWriterUint16BE(t *testing.T) {
	w := NewWriter(2)
	w.Uint16BE(0x0102)
	if got := w.Bytes(); len(got) != 2 || got[0] != 0x01 || got[1] != 0x02 {
		t.Fatalf("unexpected big-endian encoding: %x", got)
	}
}
