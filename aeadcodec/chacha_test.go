package aeadcodec

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex literal: %v", err)
	}
	return b
}

// rfc8439XChaChaVectorInputs returns the key/nonce/aad/plaintext from
// the RFC 8439-derived XChaCha20-Poly1305 draft test vector (A.3),
// referenced in spec.md §8 scenario S5.
func rfc8439XChaChaVectorInputs(t *testing.T) (key [32]byte, nonce [24]byte, aad, plaintext []byte) {
	t.Helper()
	copy(key[:], mustHex(t, "808182838485868788898a8b8c8d8e8f909192939495969798999a9b9c9d9e9f"))
	copy(nonce[:], mustHex(t, "404142434445464748494a4b4c4d4e4f5051525354555657"))
	aad = mustHex(t, "50515253c0c1c2c3c4c5c6c7")
	plaintext = []byte("Ladies and Gentlemen of the class of '99: If I could offer you only one tip for the future, sunscreen would be it.")
	return
}

func encryptOnePass(t *testing.T, key [32]byte, nonce [24]byte, aad, plaintext []byte) ([]byte, [TagLen]byte) {
	t.Helper()
	enc, err := NewXChaCha20Poly1305(key, nonce, aad)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ct := append([]byte(nil), plaintext...)
	enc.Encrypt(ct)
	return ct, enc.Finalize()
}

func encryptChunked(t *testing.T, key [32]byte, nonce [24]byte, aad, plaintext []byte, chunkSize int) ([]byte, [TagLen]byte) {
	t.Helper()
	enc, err := NewXChaCha20Poly1305(key, nonce, aad)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ct := append([]byte(nil), plaintext...)
	for off := 0; off < len(ct); off += chunkSize {
		end := off + chunkSize
		if end > len(ct) {
			end = len(ct)
		}
		enc.Encrypt(ct[off:end])
	}
	return ct, enc.Finalize()
}

func TestXChaCha20Poly1305_RFC8439Vector(t *testing.T) {
	key, nonce, aad, plaintext := rfc8439XChaChaVectorInputs(t)

	wantTag := mustHex(t, "c0875924c1c7987947deafd8780acf49")
	wantPrefix := mustHex(t, "bd6d179d3e83d43b")
	wantSuffix := mustHex(t, "b52e")

	onePassCT, onePassTag := encryptOnePass(t, key, nonce, aad, plaintext)
	if !bytes.Equal(onePassTag[:], wantTag) {
		t.Fatalf("one-pass tag = %x, want %x", onePassTag, wantTag)
	}
	if !bytes.HasPrefix(onePassCT, wantPrefix) {
		t.Fatalf("one-pass ciphertext prefix = %x, want prefix %x", onePassCT[:8], wantPrefix)
	}
	if !bytes.HasSuffix(onePassCT, wantSuffix) {
		t.Fatalf("one-pass ciphertext suffix = %x, want suffix %x", onePassCT[len(onePassCT)-2:], wantSuffix)
	}

	chunkedCT, chunkedTag := encryptChunked(t, key, nonce, aad, plaintext, 100)
	if chunkedTag != onePassTag {
		t.Fatalf("chunked tag %x disagrees with one-pass tag %x", chunkedTag, onePassTag)
	}
	if !bytes.Equal(chunkedCT, onePassCT) {
		t.Fatalf("chunked ciphertext disagrees with one-pass ciphertext")
	}
}

func TestXChaCha20Poly1305_DecryptRoundTrip(t *testing.T) {
	key, nonce, aad, plaintext := rfc8439XChaChaVectorInputs(t)
	ct, tag := encryptOnePass(t, key, nonce, aad, plaintext)

	dec, err := NewXChaCha20Poly1305(key, nonce, aad)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pt := append([]byte(nil), ct...)
	// decrypt in uneven chunks to exercise the same block-continuation
	// path as encryption
	dec.Decrypt(pt[:37])
	dec.Decrypt(pt[37:])
	if err := dec.FinalizeVerify(tag); err != nil {
		t.Fatalf("unexpected verify failure: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatalf("decrypted plaintext mismatch")
	}
}

func TestXChaCha20Poly1305_FinalizeVerifyRejectsBadTag(t *testing.T) {
	key, nonce, aad, plaintext := rfc8439XChaChaVectorInputs(t)
	ct, tag := encryptOnePass(t, key, nonce, aad, plaintext)
	tag[0] ^= 0xff

	dec, err := NewXChaCha20Poly1305(key, nonce, aad)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pt := append([]byte(nil), ct...)
	dec.Decrypt(pt)
	if err := dec.FinalizeVerify(tag); err == nil {
		t.Fatalf("expected verify failure for corrupted tag")
	}
}

func TestXChaCha20Poly1305_ZeroLengthChunkIsNoOp(t *testing.T) {
	key, nonce, aad, plaintext := rfc8439XChaChaVectorInputs(t)
	enc, err := NewXChaCha20Poly1305(key, nonce, aad)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	enc.Encrypt(nil)
	ct := append([]byte(nil), plaintext...)
	enc.Encrypt(ct)
	enc.Encrypt([]byte{})
	tag := enc.Finalize()

	wantCT, wantTag := encryptOnePass(t, key, nonce, aad, plaintext)
	if !bytes.Equal(ct, wantCT) || tag != wantTag {
		t.Fatalf("zero-length chunks should not perturb the result")
	}
}
