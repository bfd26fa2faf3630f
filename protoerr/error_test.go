package protoerr

import (
	"errors"
	"testing"
)

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(DecryptionFailed, "message container", cause)

	if !Is(err, DecryptionFailed) {
		t.Fatalf("expected Is to match DecryptionFailed")
	}
	if Is(err, DecodingFailed) {
		t.Fatalf("expected Is not to match DecodingFailed")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to unwrap to cause")
	}
}

func TestNewHasNoCause(t *testing.T) {
	err := New(InvalidState, "not in post-handshake")
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected errors.As to succeed")
	}
	if pe.Err != nil {
		t.Fatalf("expected no wrapped cause")
	}
}

func TestCodeString(t *testing.T) {
	cases := map[Code]string{
		InvalidParameter: "InvalidParameter",
		InvalidState:     "InvalidState",
		InternalError:    "InternalError",
		DecryptionFailed: "DecryptionFailed",
		DecodingFailed:   "DecodingFailed",
		InvalidMessage:   "InvalidMessage",
		ServerError:      "ServerError",
		NetworkError:     "NetworkError",
		NotFound:         "NotFound",
		Blocked:          "Blocked",
		Mismatch:         "Mismatch",
		Code(255):        "Unknown",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Fatalf("Code(%d).String() = %q, want %q", code, got, want)
		}
	}
}
