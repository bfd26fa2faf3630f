// Package model holds the core wire-level and domain types shared
// across the protocol core: identities, message identifiers, nonces,
// contacts, and the three-valued Delta update marker.
package model

import (
	"fmt"

	"github.com/threema-ch/libthreema-go/protoerr"
)

// IdentityLen is the fixed length of a Threema identity string.
const IdentityLen = 8

// Identity is an 8-byte ASCII identity. The zero value is not valid;
// use ParseIdentity to construct one.
type Identity [IdentityLen]byte

// Gateway identities are a predefined identity range
// beginning with '*', used for system/bot accounts.
const gatewayPrefix = '*'

func isFirstByteValid(b byte) bool {
	return b == gatewayPrefix || (b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z')
}

func isTailByteValid(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z')
}

// ParseIdentity validates and converts an 8-byte slice into an Identity.
func ParseIdentity(b []byte) (Identity, error) {
	var id Identity
	if len(b) != IdentityLen {
		return id, protoerr.New(protoerr.InvalidMessage, fmt.Sprintf("identity must be %d bytes, got %d", IdentityLen, len(b)))
	}
	if !isFirstByteValid(b[0]) {
		return id, protoerr.New(protoerr.InvalidMessage, "identity first byte out of range")
	}
	for _, c := range b[1:] {
		if !isTailByteValid(c) {
			return id, protoerr.New(protoerr.InvalidMessage, "identity byte out of range")
		}
	}
	copy(id[:], b)
	return id, nil
}

// IsGateway reports whether the identity denotes a gateway/bot account.
func (id Identity) IsGateway() bool {
	return id[0] == gatewayPrefix
}

func (id Identity) String() string {
	return string(id[:])
}

// MessageID is a 64-bit opaque message identifier: random for
// outgoing messages, sender-chosen for incoming ones.
type MessageID uint64

func (m MessageID) String() string {
	return fmt.Sprintf("%016x", uint64(m))
}
