package model

import (
	"github.com/threema-ch/libthreema-go/protoerr"
	"github.com/threema-ch/libthreema-go/wire"
)

// LegacyNicknameLen is the fixed width of the legacy sender-nickname
// field carried for backward compatibility with pre-metadata clients.
const LegacyNicknameLen = 32

// LegacyNickname is a fixed-width ASCII field padded with NUL or
// space bytes; modern clients prefer the nickname delta carried in
// MessageMetadata instead.
type LegacyNickname [LegacyNicknameLen]byte

// String trims trailing NUL and space padding.
func (n LegacyNickname) String() string {
	end := len(n)
	for end > 0 && (n[end-1] == 0 || n[end-1] == ' ') {
		end--
	}
	return string(n[:end])
}

// MetadataTagLen is the Poly1305 tag width prefixed to a non-empty
// metadata ciphertext.
const MetadataTagLen = 16

// Envelope is the parsed form of an incoming message envelope, per
// spec.md §3 ("Incoming message envelope"). Field order mirrors the
// wire prefix sequence; MetadataCiphertext and ContainerCiphertext
// are copies of the wire regions that exclude their leading tags,
// which are kept separately in MetadataTag and ContainerTag.
type Envelope struct {
	Sender              Identity
	Receiver            Identity
	MessageID           MessageID
	LegacyCreatedAt     uint32 // seconds, little-endian on the wire
	Flags               MessageFlags
	LegacyNickname      LegacyNickname
	MetadataTag         [MetadataTagLen]byte
	MetadataCiphertext  []byte // empty when metadata is disabled
	ContainerTag        [MetadataTagLen]byte
	ContainerCiphertext []byte
}

// HasMetadata reports whether a non-empty metadata ciphertext is present.
func (e *Envelope) HasMetadata() bool {
	return len(e.MetadataCiphertext) > 0
}

const envelopeReservedLen = 3

// ParseEnvelope performs the purely structural decode of an incoming
// message envelope described in spec.md §3: no decryption, just
// slicing the header, optional metadata region, and container region
// apart. Sender and receiver are checked with ParseIdentity; flags are
// not validated beyond their fixed width.
func ParseEnvelope(buf []byte) (Envelope, error) {
	var e Envelope
	r := wire.NewReader(buf)

	senderBytes, err := r.Bytes(IdentityLen)
	if err != nil {
		return e, err
	}
	sender, err := ParseIdentity(senderBytes)
	if err != nil {
		return e, err
	}
	e.Sender = sender

	receiverBytes, err := r.Bytes(IdentityLen)
	if err != nil {
		return e, err
	}
	receiver, err := ParseIdentity(receiverBytes)
	if err != nil {
		return e, err
	}
	e.Receiver = receiver

	msgID, err := r.Uint64LE()
	if err != nil {
		return e, err
	}
	e.MessageID = MessageID(msgID)

	createdAt, err := r.Uint32LE()
	if err != nil {
		return e, err
	}
	e.LegacyCreatedAt = createdAt

	flagByte, err := r.Byte()
	if err != nil {
		return e, err
	}
	e.Flags = MessageFlags(flagByte)

	if _, err := r.Bytes(envelopeReservedLen); err != nil {
		return e, err
	}

	nicknameBytes, err := r.Bytes(LegacyNicknameLen)
	if err != nil {
		return e, err
	}
	copy(e.LegacyNickname[:], nicknameBytes)

	metadataLen, err := r.Uint16LE()
	if err != nil {
		return e, err
	}
	if metadataLen != 0 {
		if metadataLen < MetadataTagLen {
			return e, protoerr.New(protoerr.DecodingFailed, "metadata length shorter than tag")
		}
		metadataRegion, err := r.Bytes(int(metadataLen))
		if err != nil {
			return e, err
		}
		copy(e.MetadataTag[:], metadataRegion[:MetadataTagLen])
		e.MetadataCiphertext = append([]byte(nil), metadataRegion[MetadataTagLen:]...)
	}

	containerRegion := r.Rest()
	if len(containerRegion) < MetadataTagLen {
		return e, protoerr.New(protoerr.DecodingFailed, "container region shorter than tag")
	}
	copy(e.ContainerTag[:], containerRegion[:MetadataTagLen])
	e.ContainerCiphertext = append([]byte(nil), containerRegion[MetadataTagLen:]...)

	return e, nil
}

// OuterType identifies the first byte of a decrypted message container.
type OuterType uint8

// ReservedOuterType is the legacy-vouch-attack mitigation value: any
// container carrying this outer type must be discarded.
const ReservedOuterType OuterType = 0xff

// MessageContainer is the plaintext yielded by decrypting an
// envelope's container ciphertext and stripping PKCS#7 padding.
type MessageContainer struct {
	OuterType OuterType
	Body      []byte
}

// MinPaddedContainerLen is the minimum total size (type byte + body +
// padding) spec.md §3 requires of a message container.
const MinPaddedContainerLen = 32

// MessageMetadata is the protobuf-encoded structure recovered from
// decrypting an envelope's metadata ciphertext with the metadata
// subkey.
type MessageMetadata struct {
	MessageID     MessageID
	CreatedAtMs   int64
	NicknameDelta Delta[string]
}
