package csp

import (
	"github.com/threema-ch/libthreema-go/protoerr"
	"github.com/threema-ch/libthreema-go/wire"
)

// extension tag bytes for the typed extension bag the client sends
// during login, per spec.md §4.3 step 3.
const (
	extClientInfo   byte = 0x00
	extDeviceID     byte = 0x01
	extDeviceCookie byte = 0x02
)

// Extensions is the typed bag of optional login flags the client
// attaches to the handshake. Zero-value fields are simply omitted
// from the wire encoding.
type Extensions struct {
	ClientInfo   string
	DeviceID     uint64
	HasDeviceID  bool
	DeviceCookie []byte
}

// Encode serializes the extension bag as a sequence of
// 1-byte-tag + 2-byte-length + value entries.
func (e Extensions) Encode() []byte {
	w := wire.NewWriter(64)
	if e.ClientInfo != "" {
		w.Byte(extClientInfo)
		w.Uint16LE(uint16(len(e.ClientInfo)))
		w.WriteBytes([]byte(e.ClientInfo))
	}
	if e.HasDeviceID {
		w.Byte(extDeviceID)
		w.Uint16LE(8)
		w.Uint64LE(e.DeviceID)
	}
	if len(e.DeviceCookie) > 0 {
		w.Byte(extDeviceCookie)
		w.Uint16LE(uint16(len(e.DeviceCookie)))
		w.WriteBytes(e.DeviceCookie)
	}
	return w.Bytes()
}

// DecodeExtensions parses the TLV bag produced by Encode. Unknown
// tags are skipped rather than rejected, so future extensions don't
// break older decoders.
func DecodeExtensions(buf []byte) (Extensions, error) {
	var e Extensions
	r := wire.NewReader(buf)
	for r.Remaining() > 0 {
		tag, err := r.Byte()
		if err != nil {
			return e, protoerr.Wrap(protoerr.DecodingFailed, "extension tag", err)
		}
		length, err := r.Uint16LE()
		if err != nil {
			return e, protoerr.Wrap(protoerr.DecodingFailed, "extension length", err)
		}
		value, err := r.Bytes(int(length))
		if err != nil {
			return e, protoerr.Wrap(protoerr.DecodingFailed, "extension value", err)
		}
		switch tag {
		case extClientInfo:
			e.ClientInfo = string(value)
		case extDeviceID:
			if len(value) != 8 {
				return e, protoerr.New(protoerr.DecodingFailed, "device-id extension must be 8 bytes")
			}
			sub := wire.NewReader(value)
			e.DeviceID, _ = sub.Uint64LE()
			e.HasDeviceID = true
		case extDeviceCookie:
			e.DeviceCookie = append([]byte(nil), value...)
		default:
			// unknown extension tag: ignore
		}
	}
	return e, nil
}
