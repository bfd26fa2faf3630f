package model

import (
	"testing"

	"github.com/threema-ch/libthreema-go/protoerr"
)

func TestParseIdentityValid(t *testing.T) {
	id, err := ParseIdentity([]byte("ECHOECHO"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.String() != "ECHOECHO" {
		t.Fatalf("got %q", id.String())
	}
	if id.IsGateway() {
		t.Fatalf("ECHOECHO should not be a gateway identity")
	}
}

func TestParseIdentityGateway(t *testing.T) {
	id, err := ParseIdentity([]byte("*3MAGEEK"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !id.IsGateway() {
		t.Fatalf("expected gateway identity")
	}
}

func TestParseIdentityWrongLength(t *testing.T) {
	_, err := ParseIdentity([]byte("SHORT"))
	if !protoerr.Is(err, protoerr.InvalidMessage) {
		t.Fatalf("expected InvalidMessage, got %v", err)
	}
}

func TestParseIdentityBadByte(t *testing.T) {
	_, err := ParseIdentity([]byte("echoecho"))
	if !protoerr.Is(err, protoerr.InvalidMessage) {
		t.Fatalf("expected InvalidMessage for lowercase identity, got %v", err)
	}
}

func TestMessageIDString(t *testing.T) {
	id := MessageID(0x0102030405060708)
	if got, want := id.String(), "0102030405060708"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
