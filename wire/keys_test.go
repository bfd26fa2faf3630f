package wire

import "testing"

func TestSharedSecretAgrees(t *testing.T) {
	alice, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bob, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	aliceSide, err := SharedSecret(alice.Private, bob.Public)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bobSide, err := SharedSecret(bob.Private, alice.Public)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if aliceSide != bobSide {
		t.Fatalf("shared secrets disagree: %x != %x", aliceSide, bobSide)
	}
}

func TestHKDFSHA256Deterministic(t *testing.T) {
	secret := []byte("shared-secret-material")
	salt := []byte("salt")
	info := []byte("csp-e2e")

	a, err := HKDFSHA256(secret, salt, info, 32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := HKDFSHA256(secret, salt, info, 32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a) != 32 {
		t.Fatalf("expected 32-byte output, got %d", len(a))
	}
	if string(a) != string(b) {
		t.Fatalf("HKDF output should be deterministic for the same inputs")
	}

	c, err := HKDFSHA256(secret, salt, []byte("different-info"), 32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(a) == string(c) {
		t.Fatalf("different info should yield different output")
	}
}

func TestHSalsa20SubkeyDeterministic(t *testing.T) {
	var secret [32]byte
	for i := range secret {
		secret[i] = byte(i)
	}
	var nonce [16]byte
	a := HSalsa20Subkey(secret, nonce)
	b := HSalsa20Subkey(secret, nonce)
	if a != b {
		t.Fatalf("HSalsa20Subkey should be deterministic")
	}
}
