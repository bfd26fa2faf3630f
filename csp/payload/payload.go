// Package payload implements the typed payload envelope carried over
// the post-handshake CSP channel: a 1-byte kind, 3 reserved bytes,
// and a body, per spec.md §4.3 ("Payload typing").
package payload

import (
	"bytes"

	"github.com/threema-ch/libthreema-go/protoerr"
	"github.com/threema-ch/libthreema-go/wire"
)

// IncomingKind enumerates payload kinds the server sends to the client.
type IncomingKind uint8

const (
	IncomingEchoRequest             IncomingKind = 0x00
	IncomingEchoResponse            IncomingKind = 0x80
	IncomingMessageWithMetadataBox  IncomingKind = 0x02
	IncomingMessageAck              IncomingKind = 0x81
	IncomingQueueSendComplete       IncomingKind = 0xd0
	IncomingDeviceCookieChangeIndic IncomingKind = 0xd2
	IncomingCloseError              IncomingKind = 0xe0
	IncomingServerAlert             IncomingKind = 0xe1
)

// OutgoingKind enumerates payload kinds the client sends to the server.
type OutgoingKind uint8

const (
	OutgoingEchoRequest            OutgoingKind = 0x00
	OutgoingEchoResponse           OutgoingKind = 0x80
	OutgoingMessageWithMetadataBox OutgoingKind = 0x01
	OutgoingMessageAck             OutgoingKind = 0x82
	OutgoingUnblockIncoming        OutgoingKind = 0x03
	OutgoingSetPushToken           OutgoingKind = 0x20
	OutgoingDeletePushTokens       OutgoingKind = 0x25
	OutgoingSetIdleTimeout         OutgoingKind = 0x30
	OutgoingClearCookieChange      OutgoingKind = 0xd3
)

const headerLen = 4 // 1-byte kind + 3 reserved bytes

// UnknownPayload is reported for incoming kinds this implementation
// doesn't recognize, rather than aborting the connection.
type UnknownPayload struct {
	Kind IncomingKind
	Body []byte
}

// Incoming is a decoded incoming payload: Unknown is set only when
// Kind matches no known IncomingKind.
type Incoming struct {
	Kind    IncomingKind
	Body    []byte
	Unknown *UnknownPayload
}

func isKnownIncoming(k IncomingKind) bool {
	switch k {
	case IncomingEchoRequest, IncomingEchoResponse, IncomingMessageWithMetadataBox,
		IncomingMessageAck, IncomingQueueSendComplete, IncomingDeviceCookieChangeIndic,
		IncomingCloseError, IncomingServerAlert:
		return true
	default:
		return false
	}
}

// DecodeIncoming parses the 4-byte header and splits off the body.
func DecodeIncoming(frame []byte) (Incoming, error) {
	r := wire.NewReader(frame)
	kindByte, err := r.Byte()
	if err != nil {
		return Incoming{}, protoerr.Wrap(protoerr.DecodingFailed, "payload kind", err)
	}
	if _, err := r.Bytes(3); err != nil {
		return Incoming{}, protoerr.Wrap(protoerr.DecodingFailed, "payload reserved bytes", err)
	}
	body := r.Rest()
	kind := IncomingKind(kindByte)
	if !isKnownIncoming(kind) {
		return Incoming{Kind: kind, Unknown: &UnknownPayload{Kind: kind, Body: body}}, nil
	}
	return Incoming{Kind: kind, Body: body}, nil
}

// EncodeOutgoing prefixes body with the kind byte and 3 reserved
// zero bytes.
func EncodeOutgoing(kind OutgoingKind, body []byte) []byte {
	out := make([]byte, headerLen+len(body))
	out[0] = byte(kind)
	copy(out[headerLen:], body)
	return out
}

// pushTokenKeyLen is the width of the encryption key prefix carried
// ahead of the legacy pipe-delimited push token body.
const pushTokenKeyLen = 32

// DecodePushToken undoes the legacy wire quirk: the key and token are
// pipe-delimited, but the token itself may legitimately contain pipe
// bytes, so the split must happen from the tail, not the head.
func DecodePushToken(raw []byte) (key [pushTokenKeyLen]byte, token, bundleID []byte, err error) {
	if len(raw) < pushTokenKeyLen+1 {
		return key, nil, nil, protoerr.New(protoerr.DecodingFailed, "push token too short")
	}
	copy(key[:], raw[:pushTokenKeyLen])
	rest := raw[pushTokenKeyLen:]
	if rest[0] != '|' {
		return key, nil, nil, protoerr.New(protoerr.DecodingFailed, "push token missing key delimiter")
	}
	rest = rest[1:]

	idx := bytes.LastIndexByte(rest, '|')
	if idx < 0 {
		return key, nil, nil, protoerr.New(protoerr.DecodingFailed, "push token missing bundle delimiter")
	}
	return key, rest[:idx], rest[idx+1:], nil
}

// EncodePushToken re-assembles the wire quirk layout: key || '|' ||
// token || '|' || bundleID.
func EncodePushToken(key [pushTokenKeyLen]byte, token, bundleID []byte) []byte {
	out := make([]byte, 0, pushTokenKeyLen+1+len(token)+1+len(bundleID))
	out = append(out, key[:]...)
	out = append(out, '|')
	out = append(out, token...)
	out = append(out, '|')
	out = append(out, bundleID...)
	return out
}
