package onprem

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"
)

func signedFixture(t *testing.T, body string) ([]byte, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sig := ed25519.Sign(priv, []byte(body))
	raw := body + "\n" + base64.StdEncoding.EncodeToString(sig) + "\n"
	return []byte(raw), pub
}

func TestParseValidDocument(t *testing.T) {
	body := `{"version":"1.0","signatureKey":"abc","refresh":3600,` +
		`"chat":{"url":"https://chat.example.com"},` +
		`"directory":{"url":"https://dir.example.com"},` +
		`"blob":{"url":"https://blob.example.com/{blobIdPrefix}/{blobId}"},` +
		`"work":{"url":"https://work.example.com"},` +
		`"avatar":{"url":"https://avatar.example.com"},` +
		`"safe":{"url":"https://safe.example.com"}}`
	raw, pub := signedFixture(t, body)

	doc, err := Parse(raw, []ed25519.PublicKey{pub})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Version != "1.0" || doc.RefreshSecs != 3600 {
		t.Fatalf("got %+v", doc)
	}
	if doc.Chat.URL != "https://chat.example.com" {
		t.Fatalf("got chat url %q", doc.Chat.URL)
	}
	if doc.MultiDeviceCapable() {
		t.Fatal("document without rendezvous/mediator should not be multi-device capable")
	}
}

func TestParseMultiDeviceCapableRequiresBoth(t *testing.T) {
	body := `{"version":"1.0","chat":{"url":"https://chat.example.com"},` +
		`"directory":{"url":"https://dir.example.com"},` +
		`"blob":{"url":"https://blob.example.com"},` +
		`"work":{"url":"https://work.example.com"},` +
		`"avatar":{"url":"https://avatar.example.com"},` +
		`"safe":{"url":"https://safe.example.com"},` +
		`"rendezvous":{"url":"https://rdv.example.com"}}`
	raw, pub := signedFixture(t, body)

	doc, err := Parse(raw, []ed25519.PublicKey{pub})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.MultiDeviceCapable() {
		t.Fatal("rendezvous without mediator should not be multi-device capable")
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	body := `{"version":"1.0"}`
	raw, _ := signedFixture(t, body)
	otherPub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	if _, err := Parse(raw, []ed25519.PublicKey{otherPub}); err == nil {
		t.Fatal("expected signature verification to fail against the wrong key")
	}
}

func TestParseRejectsTamperedBody(t *testing.T) {
	body := `{"version":"1.0"}`
	raw, pub := signedFixture(t, body)
	tampered := []byte(`{"version":"2.0"}` + "\n" + string(raw[len(body)+1:]))

	if _, err := Parse(tampered, []ed25519.PublicKey{pub}); err == nil {
		t.Fatal("expected signature verification to fail on a tampered body")
	}
}

func TestParseRejectsMissingSignatureLine(t *testing.T) {
	if _, err := Parse([]byte("no newline here"), nil); err == nil {
		t.Fatal("expected an error for a document with no signature line")
	}
}

func TestParseRejectsEmptyKeyList(t *testing.T) {
	body := `{"version":"1.0"}`
	raw, _ := signedFixture(t, body)
	if _, err := Parse(raw, nil); err == nil {
		t.Fatal("expected an error when no verification keys are supplied")
	}
}
