// Package onprem parses and verifies OnPrem Provisioning File (OPPF)
// documents, per spec.md §6: a UTF-8 text file whose last non-empty
// line is a base64 Ed25519 signature over everything before it, and
// whose signed body is a JSON document describing a deployment's
// server endpoints. The JSON struct shape follows the teacher's
// `settings.Settings` idiom (plain exported fields with `json` tags,
// decoded in one shot with `encoding/json`; see DESIGN.md).
package onprem

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/threema-ch/libthreema-go/protoerr"
)

// ProductionSigningKeys are the three hard-coded production Ed25519
// public keys an OPPF document may be signed with, per spec.md §6.
// These are placeholders: an embedder shipping against the real
// Threema OnPrem infrastructure must substitute the actual production
// keys here or pass a deployment-specific key via VerifyWithKey for
// test/staging environments.
var ProductionSigningKeys = [3]ed25519.PublicKey{}

// Document is the parsed, verified OPPF body.
type Document struct {
	Version      string     `json:"version"`
	SignatureKey string     `json:"signatureKey"`
	RefreshSecs  int        `json:"refresh"`
	Chat         Endpoint   `json:"chat"`
	Directory    Endpoint   `json:"directory"`
	Blob         Endpoint   `json:"blob"`
	Work         Endpoint   `json:"work"`
	Avatar       Endpoint   `json:"avatar"`
	Safe         Endpoint   `json:"safe"`
	Rendezvous   *Endpoint  `json:"rendezvous,omitempty"`
	Mediator     *Endpoint  `json:"mediator,omitempty"`
}

// Endpoint is a single named server's templated base URL plus any
// fields particular to that server kind. Only the URL field is common
// across every kind named in spec.md §6; server-specific fields
// (ports, public keys) are left to the embedder's own deployment
// metadata, since spec.md's exhaustive field list names the URL
// templates but not an exhaustive per-service schema.
type Endpoint struct {
	URL string `json:"url"`
}

// MultiDeviceCapable reports whether both Rendezvous and Mediator are
// present, per spec.md §6 ("required together for multi-device").
func (d *Document) MultiDeviceCapable() bool {
	return d.Rendezvous != nil && d.Mediator != nil
}

// Parse splits raw OPPF text into its signed JSON body and signature,
// verifies the signature against every key in keys, and decodes the
// body. It fails closed: an empty keys list or a signature that
// matches none of them is a DecodingFailed-class error, since spec.md
// treats OPPF verification as a structural precondition rather than a
// recoverable network fault.
func Parse(raw []byte, keys []ed25519.PublicKey) (Document, error) {
	var doc Document

	text := string(raw)
	lastNL := strings.LastIndexByte(strings.TrimRight(text, "\n"), '\n')
	if lastNL < 0 {
		return doc, protoerr.New(protoerr.DecodingFailed, "oppf file has no signature line")
	}
	body := text[:lastNL]
	sigLine := strings.TrimRight(text[lastNL+1:], "\n")

	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sigLine))
	if err != nil {
		return doc, protoerr.Wrap(protoerr.DecodingFailed, "oppf signature not valid base64", err)
	}

	verified := false
	for _, key := range keys {
		if len(key) == ed25519.PublicKeySize && ed25519.Verify(key, []byte(body), sig) {
			verified = true
			break
		}
	}
	if !verified {
		return doc, protoerr.New(protoerr.DecodingFailed, "oppf signature did not verify against any provided key")
	}

	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return doc, protoerr.Wrap(protoerr.DecodingFailed, "oppf json body", err)
	}
	return doc, nil
}

// ParseProduction verifies raw against ProductionSigningKeys instead
// of a caller-supplied key list, for the common case of fetching a
// live deployment's OPPF rather than a test fixture signed with a
// deployment-specific key.
func ParseProduction(raw []byte) (Document, error) {
	return Parse(raw, ProductionSigningKeys[:])
}
