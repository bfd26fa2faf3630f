package aeadcodec

import "testing"

// TestXSalsa20Poly1305_RooterbergVector3 is scenario S6: the third
// Rooterberg XSalsa20-Poly1305 test vector, all-zero key and nonce.
func TestXSalsa20Poly1305_RooterbergVector3(t *testing.T) {
	var key [32]byte
	var nonce [24]byte
	ct := mustHex(t, "e61f99dcdaa0e80b")
	tag := mustHex(t, "f9ad226979fb26db0379ec522f3e0903")
	wantPT := mustHex(t, "2021222324252627")

	dec := NewXSalsa20Poly1305(key, nonce)
	pt := append([]byte(nil), ct...)
	dec.Decrypt(pt)

	var tagArr [TagLen]byte
	copy(tagArr[:], tag)
	if err := dec.FinalizeVerify(tagArr); err != nil {
		t.Fatalf("unexpected verify failure: %v", err)
	}
	if string(pt) != string(wantPT) {
		t.Fatalf("plaintext = %x, want %x", pt, wantPT)
	}
}

func TestXSalsa20Poly1305_EncryptDecryptRoundTrip(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}
	var nonce [24]byte
	for i := range nonce {
		nonce[i] = byte(i + 1)
	}
	plaintext := make([]byte, 200)
	for i := range plaintext {
		plaintext[i] = byte(i * 3)
	}

	enc := NewXSalsa20Poly1305(key, nonce)
	ct := append([]byte(nil), plaintext...)
	enc.Encrypt(ct[:17])
	enc.Encrypt(ct[17:90])
	enc.Encrypt(ct[90:])
	tag := enc.Finalize()

	dec := NewXSalsa20Poly1305(key, nonce)
	pt := append([]byte(nil), ct...)
	dec.Decrypt(pt[:50])
	dec.Decrypt(pt[50:])
	if err := dec.FinalizeVerify(tag); err != nil {
		t.Fatalf("unexpected verify failure: %v", err)
	}
	if string(pt) != string(plaintext) {
		t.Fatalf("plaintext mismatch after round trip")
	}
}

func TestXSalsa20Poly1305_FinalizeVerifyRejectsBadTag(t *testing.T) {
	var nonce24 [24]byte
	enc := NewXSalsa20Poly1305([32]byte{1}, nonce24)
	ct := []byte("hello world")
	enc.Encrypt(ct)
	tag := enc.Finalize()
	tag[0] ^= 0xff

	dec := NewXSalsa20Poly1305([32]byte{1}, nonce24)
	pt := append([]byte(nil), ct...)
	dec.Decrypt(pt)
	if err := dec.FinalizeVerify(tag); err == nil {
		t.Fatalf("expected verify failure for corrupted tag")
	}
}
