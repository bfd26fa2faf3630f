package csp

import "testing"

func TestExtensionsRoundTrip(t *testing.T) {
	in := Extensions{
		ClientInfo:   "libthreema-go-test/1.0",
		DeviceID:     0x0102030405060708,
		HasDeviceID:  true,
		DeviceCookie: []byte{1, 2, 3, 4},
	}
	encoded := in.Encode()
	out, err := DecodeExtensions(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ClientInfo != in.ClientInfo {
		t.Fatalf("ClientInfo mismatch: %q", out.ClientInfo)
	}
	if !out.HasDeviceID || out.DeviceID != in.DeviceID {
		t.Fatalf("DeviceID mismatch: %+v", out)
	}
	if string(out.DeviceCookie) != string(in.DeviceCookie) {
		t.Fatalf("DeviceCookie mismatch: %v", out.DeviceCookie)
	}
}

func TestExtensionsEmpty(t *testing.T) {
	out, err := DecodeExtensions(Extensions{}.Encode())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ClientInfo != "" || out.HasDeviceID || len(out.DeviceCookie) != 0 {
		t.Fatalf("expected empty extensions, got %+v", out)
	}
}

func TestExtensionsSkipsUnknownTag(t *testing.T) {
	// A well-formed but unrecognised extension entry followed by a
	// known one must not abort decoding.
	buf := []byte{0xEE, 2, 0, 'h', 'i'}
	buf = append(buf, Extensions{ClientInfo: "after-unknown"}.Encode()...)

	out, err := DecodeExtensions(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ClientInfo != "after-unknown" {
		t.Fatalf("expected known extension after unknown tag to decode, got %+v", out)
	}
}
