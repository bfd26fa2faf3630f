package framedelim

import (
	"bytes"
	"testing"

	"github.com/threema-ch/libthreema-go/protoerr"
)

func TestAssemblerSingleFrame(t *testing.T) {
	a := NewAssembler(PrefixLen2, CeilingCSP)
	a.AddChunks([]byte{3, 0}, []byte("abc"))

	frame, ok, err := a.Next()
	if err != nil || !ok {
		t.Fatalf("Next() = %v, %v, %v", frame, ok, err)
	}
	if !bytes.Equal(frame, []byte("abc")) {
		t.Fatalf("frame = %q", frame)
	}

	if _, ok, _ := a.Next(); ok {
		t.Fatalf("expected no further frames")
	}
}

func TestAssemblerPartialDelivery(t *testing.T) {
	a := NewAssembler(PrefixLen2, CeilingCSP)
	a.AddChunks([]byte{5, 0}, []byte("ab"))

	if _, ok, err := a.Next(); ok || err != nil {
		t.Fatalf("expected no frame yet, got ok=%v err=%v", ok, err)
	}
	if got, want := a.RequiredLength(), 3; got != want {
		t.Fatalf("RequiredLength() = %d, want %d", got, want)
	}

	a.AddChunks([]byte("cde"))
	frame, ok, err := a.Next()
	if err != nil || !ok {
		t.Fatalf("Next() = %v, %v, %v", frame, ok, err)
	}
	if !bytes.Equal(frame, []byte("abcde")) {
		t.Fatalf("frame = %q", frame)
	}
}

func TestAssemblerMultipleFramesQueued(t *testing.T) {
	a := NewAssembler(PrefixLen2, CeilingCSP)
	a.AddChunks([]byte{2, 0}, []byte("hi"), []byte{3, 0}, []byte("bye"))

	first, ok, err := a.Next()
	if err != nil || !ok || string(first) != "hi" {
		t.Fatalf("first frame = %q, ok=%v, err=%v", first, ok, err)
	}
	second, ok, err := a.Next()
	if err != nil || !ok || string(second) != "bye" {
		t.Fatalf("second frame = %q, ok=%v, err=%v", second, ok, err)
	}
}

func TestAssemblerRequiredLengthForPrefix(t *testing.T) {
	a := NewAssembler(PrefixLen2, CeilingCSP)
	if got, want := a.RequiredLength(), 2; got != want {
		t.Fatalf("RequiredLength() = %d, want %d", got, want)
	}
	a.AddChunks([]byte{1})
	if got, want := a.RequiredLength(), 1; got != want {
		t.Fatalf("RequiredLength() = %d, want %d", got, want)
	}
}

func TestAssemblerRejectsOverCeiling(t *testing.T) {
	a := NewAssembler(PrefixLen2, 10)
	a.AddChunks([]byte{20, 0})
	if _, _, err := a.Next(); !protoerr.Is(err, protoerr.DecodingFailed) {
		t.Fatalf("expected DecodingFailed, got %v", err)
	}
}

func TestAssemblerZeroLengthFrame(t *testing.T) {
	a := NewAssembler(PrefixLen2, CeilingCSP)
	a.AddChunks([]byte{0, 0})
	frame, ok, err := a.Next()
	if err != nil || !ok || len(frame) != 0 {
		t.Fatalf("expected empty frame, got %v, %v, %v", frame, ok, err)
	}
}

func TestAssemblerPrefixLen4(t *testing.T) {
	a := NewAssembler(PrefixLen4, CeilingRendezvousPostNominate)
	a.AddChunks([]byte{4, 0, 0, 0}, []byte("data"))
	frame, ok, err := a.Next()
	if err != nil || !ok || string(frame) != "data" {
		t.Fatalf("Next() = %q, %v, %v", frame, ok, err)
	}
}
