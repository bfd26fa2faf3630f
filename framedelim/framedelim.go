// Package framedelim reassembles length-prefixed frames from a
// stream of arbitrarily sized byte chunks, per spec.md §4.2. It never
// blocks and never returns a partial frame.
package framedelim

import (
	"encoding/binary"

	"github.com/threema-ch/libthreema-go/protoerr"
)

// Three frame-ceiling regimes named in spec.md §4.2.
const (
	CeilingRendezvousHandshake    = 16 * 1024
	CeilingRendezvousPostNominate = 100 * 1024 * 1024
	CeilingCSP                    = 65535 // CSP's u16 length prefix bounds this implicitly
)

// PrefixLen2 and PrefixLen4 are the two length-prefix widths the
// rendezvous and post-handshake payload streams use.
const (
	PrefixLen2 = 2
	PrefixLen4 = 4
)

// Assembler reassembles length-prefixed frames from chunks appended
// over time. It is not safe for concurrent use.
type Assembler struct {
	prefixLen int
	ceiling   int
	buf       []byte
}

// NewAssembler returns an Assembler using a prefixLen-byte
// little-endian length prefix and rejecting any frame whose declared
// length exceeds ceiling.
func NewAssembler(prefixLen, ceiling int) *Assembler {
	return &Assembler{prefixLen: prefixLen, ceiling: ceiling}
}

// AddChunks appends one or more byte slices to the assembly buffer.
// It never blocks.
func (a *Assembler) AddChunks(chunks ...[]byte) {
	for _, c := range chunks {
		a.buf = append(a.buf, c...)
	}
}

// Reconfigure switches the assembler to a new prefix width and ceiling
// in place, preserving any bytes already buffered for the next frame.
// Used where a protocol changes framing regime mid-stream, e.g.
// rendezvous switching from its handshake to its post-nomination
// ceiling.
func (a *Assembler) Reconfigure(prefixLen, ceiling int) {
	a.prefixLen = prefixLen
	a.ceiling = ceiling
}

func (a *Assembler) declaredLength() (int, bool) {
	if len(a.buf) < a.prefixLen {
		return 0, false
	}
	switch a.prefixLen {
	case PrefixLen2:
		return int(binary.LittleEndian.Uint16(a.buf[:2])), true
	case PrefixLen4:
		return int(binary.LittleEndian.Uint32(a.buf[:4])), true
	default:
		return 0, false
	}
}

// RequiredLength returns the minimum number of additional bytes
// needed before Next can make progress.
func (a *Assembler) RequiredLength() int {
	if len(a.buf) < a.prefixLen {
		return a.prefixLen - len(a.buf)
	}
	n, _ := a.declaredLength()
	total := a.prefixLen + n
	if len(a.buf) >= total {
		return 0
	}
	return total - len(a.buf)
}

// Next returns the next complete frame's body (the bytes after the
// length prefix), with ok false if no complete frame is buffered yet.
// A declared length exceeding the assembler's ceiling is reported as
// an error and latches no further frames can be produced from this
// buffer until the caller discards it.
func (a *Assembler) Next() ([]byte, bool, error) {
	n, haveLen := a.declaredLength()
	if !haveLen {
		return nil, false, nil
	}
	if n > a.ceiling {
		return nil, false, protoerr.New(protoerr.DecodingFailed, "frame exceeds maximum length")
	}
	total := a.prefixLen + n
	if len(a.buf) < total {
		return nil, false, nil
	}
	frame := a.buf[a.prefixLen:total]
	a.buf = a.buf[total:]
	return frame, true, nil
}
