package onprem

import (
	"encoding/hex"
	"strings"
)

// Placeholders holds the resolved values for the stable `{placeholder}`
// template variables spec.md §6 names for OPPF URL templates.
type Placeholders struct {
	ServerGroupPrefix8    string
	BlobIDPrefix          string
	BlobID                string
	DeviceGroupIDPrefix4  string
	DeviceGroupIDPrefix8  string
	RendezvousPathPrefix4 string
	RendezvousPathPrefix8 string
	BackupIDPrefix8       string
}

// prefix4 returns the single hex digit for b's high nibble.
func prefix4(b byte) string {
	return hex.EncodeToString([]byte{b & 0xf0})[0:1]
}

// prefix8 returns the two-hex-digit encoding of b.
func prefix8(b byte) string {
	return hex.EncodeToString([]byte{b})
}

// NewPlaceholders derives every template variable from the raw
// identifiers spec.md §6 names as their source: the device-group path
// key's public key, the rendezvous path key's public key, the blob
// ID, the backup ID, and the work server group ID. Per spec.md, the
// 4/8 variants of device-group and rendezvous-path prefixes are the
// high nibble and full first byte of the respective public key;
// blobIdPrefix and serverGroupPrefix8/backupIdPrefix8 follow the same
// first-byte convention, scaled to whichever width the name implies.
func NewPlaceholders(deviceGroupPathKeyPub, rendezvousPathKeyPub, blobID, backupID, serverGroupID []byte) Placeholders {
	var p Placeholders
	if len(deviceGroupPathKeyPub) > 0 {
		p.DeviceGroupIDPrefix4 = prefix4(deviceGroupPathKeyPub[0])
		p.DeviceGroupIDPrefix8 = prefix8(deviceGroupPathKeyPub[0])
	}
	if len(rendezvousPathKeyPub) > 0 {
		p.RendezvousPathPrefix4 = prefix4(rendezvousPathKeyPub[0])
		p.RendezvousPathPrefix8 = prefix8(rendezvousPathKeyPub[0])
	}
	if len(blobID) > 0 {
		p.BlobIDPrefix = prefix8(blobID[0])
		p.BlobID = hex.EncodeToString(blobID)
	}
	if len(backupID) > 0 {
		p.BackupIDPrefix8 = prefix8(backupID[0])
	}
	if len(serverGroupID) > 0 {
		p.ServerGroupPrefix8 = prefix8(serverGroupID[0])
	}
	return p
}

// Substitute replaces every `{placeholder}` occurrence in tmpl with
// its resolved value from p. A placeholder with no resolved value
// (empty source slice passed to NewPlaceholders) is left as an empty
// string, not as the literal `{name}` — callers that need to detect
// missing inputs should check the relevant Placeholders field first.
func Substitute(tmpl string, p Placeholders) string {
	r := strings.NewReplacer(
		"{serverGroupPrefix8}", p.ServerGroupPrefix8,
		"{blobIdPrefix}", p.BlobIDPrefix,
		"{blobId}", p.BlobID,
		"{deviceGroupIdPrefix4}", p.DeviceGroupIDPrefix4,
		"{deviceGroupIdPrefix8}", p.DeviceGroupIDPrefix8,
		"{rendezvousPathPrefix4}", p.RendezvousPathPrefix4,
		"{rendezvousPathPrefix8}", p.RendezvousPathPrefix8,
		"{backupIdPrefix8}", p.BackupIDPrefix8,
	)
	return r.Replace(tmpl)
}
