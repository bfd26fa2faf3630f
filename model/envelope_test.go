package model

import "testing"

func TestLegacyNicknameString(t *testing.T) {
	var n LegacyNickname
	copy(n[:], "Kiwi")
	for i := 4; i < len(n); i++ {
		n[i] = ' '
	}
	if got, want := n.String(), "Kiwi"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestLegacyNicknameStringNulPadded(t *testing.T) {
	var n LegacyNickname
	copy(n[:], "Kiwi")
	if got, want := n.String(), "Kiwi"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestEnvelopeHasMetadata(t *testing.T) {
	var e Envelope
	if e.HasMetadata() {
		t.Fatalf("zero-value envelope should not report metadata")
	}
	e.MetadataCiphertext = []byte{1, 2, 3}
	if !e.HasMetadata() {
		t.Fatalf("expected metadata present")
	}
}

func TestReservedOuterTypeValue(t *testing.T) {
	if ReservedOuterType != 0xff {
		t.Fatalf("reserved outer type must be 0xff, got %#x", ReservedOuterType)
	}
}
