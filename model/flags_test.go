package model

import "testing"

func TestMessageFlagsHas(t *testing.T) {
	f := FlagPush | FlagNoDeliveryReceipts
	if !f.Has(FlagPush) {
		t.Fatalf("expected FlagPush set")
	}
	if !f.Has(FlagNoDeliveryReceipts) {
		t.Fatalf("expected FlagNoDeliveryReceipts set")
	}
	if f.Has(FlagNoServerQueuing) {
		t.Fatalf("did not expect FlagNoServerQueuing set")
	}
	if !f.Has(FlagPush | FlagNoDeliveryReceipts) {
		t.Fatalf("expected combined mask to match")
	}
}
