package model

import (
	"github.com/threema-ch/libthreema-go/model/wireenc"
	"github.com/threema-ch/libthreema-go/protoerr"
)

// Metadata field numbers, matching the production MessageMetadata
// message (padding/message_id/nickname/created_at); padding is
// decoded only to be skipped, never surfaced.
const (
	metadataFieldPadding   = 1
	metadataFieldMessageID = 2
	metadataFieldNickname  = 3
	metadataFieldCreatedAt = 4
)

// DecodeMessageMetadata decodes a MessageMetadata from its plaintext
// protobuf-wire bytes, per spec.md §3. A message with no nickname
// field present yields NicknameDelta = Unchanged, matching
// from_non_empty(None).
func DecodeMessageMetadata(buf []byte) (MessageMetadata, error) {
	var md MessageMetadata
	haveNickname := false
	var nickname string

	dec := wireenc.NewDecoder(buf)
	for {
		f, ok, err := dec.Next()
		if err != nil {
			return md, protoerr.Wrap(protoerr.DecodingFailed, "message metadata", err)
		}
		if !ok {
			break
		}
		switch f.Num {
		case metadataFieldMessageID:
			md.MessageID = MessageID(f.Varint)
		case metadataFieldCreatedAt:
			md.CreatedAtMs = int64(f.Varint)
		case metadataFieldNickname:
			nickname = string(f.Bytes)
			haveNickname = true
		}
	}

	switch {
	case !haveNickname:
		md.NicknameDelta = Unchanged[string]()
	case nickname == "":
		md.NicknameDelta = Remove[string]()
	default:
		md.NicknameDelta = Update(nickname)
	}
	return md, nil
}

// EncodeMessageMetadata is the inverse of DecodeMessageMetadata, used
// by the sending path (and by tests constructing synthetic envelopes).
func EncodeMessageMetadata(md MessageMetadata) []byte {
	e := wireenc.NewEncoder()
	e.Fixed64Field(metadataFieldMessageID, uint64(md.MessageID))
	e.Int64Field(metadataFieldCreatedAt, md.CreatedAtMs)
	switch md.NicknameDelta.Kind {
	case DeltaUpdate:
		e.StringField(metadataFieldNickname, md.NicknameDelta.Value)
	case DeltaRemove:
		e.StringField(metadataFieldNickname, "")
	}
	return e.Bytes()
}
