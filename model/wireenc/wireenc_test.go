package wireenc

import "testing"

func TestVarintFieldRoundTrip(t *testing.T) {
	e := NewEncoder()
	e.VarintField(1, 300)
	e.VarintField(2, 0)

	d := NewDecoder(e.Bytes())
	f, ok, err := d.Next()
	if err != nil || !ok {
		t.Fatalf("next: ok=%v err=%v", ok, err)
	}
	if f.Num != 1 || f.WireType != WireVarint || f.Varint != 300 {
		t.Fatalf("got %+v", f)
	}
	f, ok, err = d.Next()
	if err != nil || !ok || f.Num != 2 || f.Varint != 0 {
		t.Fatalf("got %+v ok=%v err=%v", f, ok, err)
	}
	if _, ok, err := d.Next(); ok || err != nil {
		t.Fatalf("expected end of input, ok=%v err=%v", ok, err)
	}
}

func TestFixed64FieldRoundTrip(t *testing.T) {
	e := NewEncoder()
	e.Fixed64Field(3, 0x0102030405060708)

	d := NewDecoder(e.Bytes())
	f, ok, err := d.Next()
	if err != nil || !ok {
		t.Fatalf("next: ok=%v err=%v", ok, err)
	}
	if f.WireType != WireFixed64 || f.Varint != 0x0102030405060708 {
		t.Fatalf("got %+v", f)
	}
}

func TestBytesFieldRoundTrip(t *testing.T) {
	e := NewEncoder()
	e.StringField(4, "hello")

	d := NewDecoder(e.Bytes())
	f, ok, err := d.Next()
	if err != nil || !ok {
		t.Fatalf("next: ok=%v err=%v", ok, err)
	}
	if f.WireType != WireBytes || string(f.Bytes) != "hello" {
		t.Fatalf("got %+v", f)
	}
}

func TestDecodeTruncatedVarintErrors(t *testing.T) {
	d := NewDecoder([]byte{0x80})
	if _, _, err := d.Next(); err == nil {
		t.Fatal("expected truncated varint error")
	}
}

func TestDecodeTruncatedLengthDelimitedErrors(t *testing.T) {
	e := NewEncoder()
	e.tag(1, WireBytes)
	e.buf = append(e.buf, 5) // claims 5 bytes, provides none
	d := NewDecoder(e.Bytes())
	if _, _, err := d.Next(); err == nil {
		t.Fatal("expected truncated length-delimited error")
	}
}
