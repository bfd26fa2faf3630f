// Package wireenc implements the small subset of the protobuf wire
// format (varint, fixed64, length-delimited) needed to encode and
// decode MessageMetadata and the d2d.IncomingMessage reflection
// envelope, per spec.md §3/§4.4. It exists because this task cannot
// invoke protoc/the Go toolchain to generate real .pb.go descriptors
// (see DESIGN.md); it is not a general protobuf implementation and
// does not attempt descriptor reflection, unknown-field round-tripping,
// or any message type beyond what e2e needs.
package wireenc

import "github.com/threema-ch/libthreema-go/protoerr"

// Wire types, per the protobuf encoding spec.
const (
	WireVarint  = 0
	WireFixed64 = 1
	WireBytes   = 2
	WireFixed32 = 5
)

// Encoder appends protobuf-wire-compatible fields to an internal
// buffer in the order they're written; callers choose field numbers
// matching the message schema they're targeting.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

func putUvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func (e *Encoder) tag(fieldNum int, wireType int) {
	e.buf = putUvarint(e.buf, uint64(fieldNum)<<3|uint64(wireType))
}

// VarintField writes an unsigned varint field.
func (e *Encoder) VarintField(fieldNum int, v uint64) {
	e.tag(fieldNum, WireVarint)
	e.buf = putUvarint(e.buf, v)
}

// Int64Field writes a signed integer as a plain (non-zigzag) varint,
// matching protobuf's `int64` (not `sint64`) field encoding.
func (e *Encoder) Int64Field(fieldNum int, v int64) {
	e.VarintField(fieldNum, uint64(v))
}

// Fixed64Field writes a little-endian 8-byte field.
func (e *Encoder) Fixed64Field(fieldNum int, v uint64) {
	e.tag(fieldNum, WireFixed64)
	for i := 0; i < 8; i++ {
		e.buf = append(e.buf, byte(v>>(8*i)))
	}
}

// BytesField writes a length-delimited field.
func (e *Encoder) BytesField(fieldNum int, v []byte) {
	e.tag(fieldNum, WireBytes)
	e.buf = putUvarint(e.buf, uint64(len(v)))
	e.buf = append(e.buf, v...)
}

// StringField writes a length-delimited UTF-8 field.
func (e *Encoder) StringField(fieldNum int, v string) {
	e.BytesField(fieldNum, []byte(v))
}

// Bytes returns the encoded message so far.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Decoder walks a protobuf-wire byte string field by field, in
// whatever order the encoder wrote them.
type Decoder struct {
	buf []byte
}

// NewDecoder wraps buf for sequential field reads.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

func (d *Decoder) uvarint() (uint64, error) {
	var v uint64
	var shift uint
	for {
		if len(d.buf) == 0 {
			return 0, protoerr.New(protoerr.DecodingFailed, "truncated varint")
		}
		b := d.buf[0]
		d.buf = d.buf[1:]
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, protoerr.New(protoerr.DecodingFailed, "varint too long")
		}
	}
}

// Field is one decoded (fieldNum, wireType, payload) triple. Varint
// holds the value for WireVarint, WireFixed64 and WireFixed32 (the
// fixed widths decoded little-endian); Bytes holds the content bytes
// for WireBytes.
type Field struct {
	Num      int
	WireType int
	Varint   uint64
	Bytes    []byte
}

// Next decodes the next field, or ok=false at end of input.
func (d *Decoder) Next() (Field, bool, error) {
	if len(d.buf) == 0 {
		return Field{}, false, nil
	}
	tag, err := d.uvarint()
	if err != nil {
		return Field{}, false, err
	}
	f := Field{Num: int(tag >> 3), WireType: int(tag & 0x7)}
	switch f.WireType {
	case WireVarint:
		v, err := d.uvarint()
		if err != nil {
			return Field{}, false, err
		}
		f.Varint = v
	case WireFixed64:
		if len(d.buf) < 8 {
			return Field{}, false, protoerr.New(protoerr.DecodingFailed, "truncated fixed64")
		}
		for i := 0; i < 8; i++ {
			f.Varint |= uint64(d.buf[i]) << (8 * i)
		}
		d.buf = d.buf[8:]
	case WireBytes:
		n, err := d.uvarint()
		if err != nil {
			return Field{}, false, err
		}
		if uint64(len(d.buf)) < n {
			return Field{}, false, protoerr.New(protoerr.DecodingFailed, "truncated length-delimited field")
		}
		f.Bytes = d.buf[:n]
		d.buf = d.buf[n:]
	case WireFixed32:
		if len(d.buf) < 4 {
			return Field{}, false, protoerr.New(protoerr.DecodingFailed, "truncated fixed32")
		}
		for i := 0; i < 4; i++ {
			f.Varint |= uint64(d.buf[i]) << (8 * i)
		}
		d.buf = d.buf[4:]
	default:
		return Field{}, false, protoerr.New(protoerr.DecodingFailed, "unsupported wire type")
	}
	return f, true, nil
}
