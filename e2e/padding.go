package e2e

import "github.com/threema-ch/libthreema-go/protoerr"

// padContainer appends PKCS#7-style padding (spec.md §3 "Message
// container"): padLen identical bytes equal to padLen. It does not
// enforce model.MinPaddedContainerLen; the caller picks padLen.
func padContainer(body []byte, padLen byte) []byte {
	out := make([]byte, len(body)+int(padLen))
	copy(out, body)
	for i := len(body); i < len(out); i++ {
		out[i] = padLen
	}
	return out
}

// stripPadding undoes padContainer, validating the padding length is
// in 1..=len(container) per spec.md §8's round-trip law and rejecting
// any container that doesn't carry a consistent pad byte run.
func stripPadding(padded []byte) ([]byte, error) {
	if len(padded) == 0 {
		return nil, protoerr.New(protoerr.DecodingFailed, "empty padded container")
	}
	padLen := int(padded[len(padded)-1])
	if padLen == 0 || padLen > len(padded) {
		return nil, protoerr.New(protoerr.DecodingFailed, "invalid padding length")
	}
	for i := len(padded) - padLen; i < len(padded); i++ {
		if padded[i] != byte(padLen) {
			return nil, protoerr.New(protoerr.DecodingFailed, "inconsistent padding bytes")
		}
	}
	return padded[:len(padded)-padLen], nil
}
