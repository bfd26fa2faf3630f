package rendezvous

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"
)

// feedAndPoll runs one path's frame through the 2-byte length-prefixed
// handshake framing used pre-nomination, returning the decoded
// Instruction if a complete frame was available.
func feedAndPoll(t *testing.T, p *Path, framed []byte) *Instruction {
	t.Helper()
	if framed != nil {
		p.AddChunks(framed)
	}
	inst, err := p.Poll()
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	return inst
}

func TestPathHandshakeAndNomination(t *testing.T) {
	var ak [32]byte
	if _, err := io.ReadFull(rand.Reader, ak[:]); err != nil {
		t.Fatalf("generate ak: %v", err)
	}

	rid, err := NewPath(RoleInitiator, ak)
	if err != nil {
		t.Fatalf("new initiator path: %v", err)
	}
	rrd, err := NewPath(RoleResponder, ak)
	if err != nil {
		t.Fatalf("new responder path: %v", err)
	}

	// RRD sends Hello immediately.
	hello := rrd.InitialFrame()
	if hello == nil {
		t.Fatal("expected responder initial frame")
	}

	// RID receives Hello, emits AuthHello.
	inst := feedAndPoll(t, rid, hello)
	if inst == nil || inst.OutgoingFrame == nil {
		t.Fatal("expected RID to emit AuthHello")
	}
	authHello := inst.OutgoingFrame
	if rid.State() != PathAwaitingAuth {
		t.Fatalf("RID state = %v, want AwaitingAuth", rid.State())
	}

	// RRD receives AuthHello, emits Auth, transitions to AwaitingNominate.
	inst = feedAndPoll(t, rrd, authHello)
	if inst == nil || inst.OutgoingFrame == nil {
		t.Fatal("expected RRD to emit Auth")
	}
	auth := inst.OutgoingFrame
	if rrd.State() != PathAwaitingNominate {
		t.Fatalf("RRD state = %v, want AwaitingNominate", rrd.State())
	}

	// RID receives Auth, transitions to AwaitingNominate.
	inst = feedAndPoll(t, rid, auth)
	if inst != nil {
		t.Fatalf("expected nil instruction after Auth, got %+v", inst)
	}
	if rid.State() != PathAwaitingNominate {
		t.Fatalf("RID state = %v, want AwaitingNominate", rid.State())
	}

	if rid.RPH() != rrd.RPH() {
		t.Fatal("RID and RRD derived different RPH values")
	}

	// RID nominates this path.
	nominateFrame, err := rid.Nominate()
	if err != nil {
		t.Fatalf("nominate: %v", err)
	}
	if rid.State() != PathNominated {
		t.Fatalf("RID state = %v, want Nominated", rid.State())
	}

	rrd.AddChunks(nominateFrame)
	inst, err = rrd.Poll()
	if err != nil {
		t.Fatalf("rrd poll nominate: %v", err)
	}
	if inst == nil || !inst.Nominated {
		t.Fatalf("expected RRD to observe nomination, got %+v", inst)
	}
	if rrd.State() != PathNominated {
		t.Fatalf("RRD state = %v, want Nominated", rrd.State())
	}

	// Exchange application data over the nominated transport.
	payload := []byte("hello over rendezvous")
	framed, err := rid.SendData(payload)
	if err != nil {
		t.Fatalf("send_data: %v", err)
	}
	rrd.AddChunks(framed)
	inst, err = rrd.Poll()
	if err != nil {
		t.Fatalf("rrd poll data: %v", err)
	}
	if inst == nil || !bytes.Equal(inst.IncomingData, payload) {
		t.Fatalf("rrd received %+v, want payload %q", inst, payload)
	}

	reply := []byte("ack")
	framed, err = rrd.SendData(reply)
	if err != nil {
		t.Fatalf("send_data reply: %v", err)
	}
	rid.AddChunks(framed)
	inst, err = rid.Poll()
	if err != nil {
		t.Fatalf("rid poll reply: %v", err)
	}
	if inst == nil || !bytes.Equal(inst.IncomingData, reply) {
		t.Fatalf("rid received %+v, want reply %q", inst, reply)
	}
}

func TestPathDisregardAfterNomination(t *testing.T) {
	var ak [32]byte
	if _, err := io.ReadFull(rand.Reader, ak[:]); err != nil {
		t.Fatalf("generate ak: %v", err)
	}
	rrd, err := NewPath(RoleResponder, ak)
	if err != nil {
		t.Fatalf("new path: %v", err)
	}
	rrd.state = PathAwaitingNominate
	rrd.Disregard()
	if rrd.State() != PathDisregarded {
		t.Fatalf("state = %v, want Disregarded", rrd.State())
	}
}

func TestPathNominateRequiresAwaitingNominate(t *testing.T) {
	var ak [32]byte
	if _, err := io.ReadFull(rand.Reader, ak[:]); err != nil {
		t.Fatalf("generate ak: %v", err)
	}
	p, err := NewPath(RoleInitiator, ak)
	if err != nil {
		t.Fatalf("new path: %v", err)
	}
	if _, err := p.Nominate(); err == nil {
		t.Fatal("expected error nominating before handshake completes")
	}
}

func TestPathAuthHelloRejectsCorruptedFrame(t *testing.T) {
	var ak [32]byte
	if _, err := io.ReadFull(rand.Reader, ak[:]); err != nil {
		t.Fatalf("generate ak: %v", err)
	}
	rid, err := NewPath(RoleInitiator, ak)
	if err != nil {
		t.Fatalf("new initiator: %v", err)
	}
	rrd, err := NewPath(RoleResponder, ak)
	if err != nil {
		t.Fatalf("new responder: %v", err)
	}

	hello := rrd.InitialFrame()
	inst := feedAndPoll(t, rid, hello)
	if inst == nil {
		t.Fatal("expected AuthHello")
	}

	// Corrupt the last byte of the AuthHello frame (part of its AEAD
	// tag) so RRD's tag verification fails.
	corrupted := append([]byte(nil), inst.OutgoingFrame...)
	corrupted[len(corrupted)-1] ^= 0xff

	rrd.AddChunks(corrupted)
	if _, err := rrd.Poll(); err == nil {
		t.Fatal("expected decryption failure on corrupted AuthHello")
	}
	if rrd.State() != PathClosed {
		t.Fatalf("state = %v, want Closed", rrd.State())
	}
}
