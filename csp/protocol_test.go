package csp

import (
	"bytes"
	"testing"

	"github.com/threema-ch/libthreema-go/csp/payload"
	"github.com/threema-ch/libthreema-go/model"
	"github.com/threema-ch/libthreema-go/wire"
	"github.com/threema-ch/libthreema-go/wire/seqcookie"

	"github.com/threema-ch/libthreema-go/aeadcodec"
)

// fakeServer plays the server side of the CSP handshake using the
// same primitives the client uses, so Protocol can be exercised
// end-to-end without a real network peer.
type fakeServer struct {
	permanent  wire.KeyPair
	tsk        wire.KeyPair
	sck        model.Cookie
	cck        model.Cookie
	sessionKey [32]byte
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	perm, err := wire.GenerateKeyPair()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return &fakeServer{permanent: perm}
}

// handleClientHello consumes a ClientHello frame and returns the
// ServerHello frame.
func (s *fakeServer) handleClientHello(t *testing.T, clientHello []byte, clientPermanentPub [32]byte) []byte {
	t.Helper()
	var tckPub [32]byte
	copy(tckPub[:], clientHello[:32])
	var cck model.Cookie
	copy(cck[:], clientHello[32:])
	s.cck = cck

	sck, err := seqcookie.NewCookie()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.sck = sck

	tsk, err := wire.GenerateKeyPair()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.tsk = tsk

	helloShared, err := wire.SharedSecret(s.permanent.Private, tckPub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	helloKey := wire.HSalsa20Subkey(helloShared, [16]byte{})

	challengeResponse := append(append([]byte(nil), tsk.Public[:]...), cck[:]...)
	box := sealBox(helloKey, seqcookie.Nonce(sck, 1), challengeResponse)

	sessionShared, err := wire.SharedSecret(tsk.Private, tckPub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.sessionKey = wire.HSalsa20Subkey(sessionShared, [16]byte{})

	return append(append([]byte(nil), sck[:]...), box...)
}

// handleLogin returns the LoginAck frame. This fake server trusts the
// vouch unconditionally; vouch validation itself is out of scope for
// this round-trip test.
func (s *fakeServer) handleLogin(t *testing.T, login []byte) []byte {
	t.Helper()
	return sealBox(s.sessionKey, seqcookie.Nonce(s.sck, 2), nil)
}

func (s *fakeServer) sealPayload(t *testing.T, seq uint64, kind payload.OutgoingKind, body []byte) []byte {
	t.Helper()
	plaintext := payload.EncodeOutgoing(kind, body)
	boxed := sealBox(s.sessionKey, seqcookie.Nonce(s.sck, seq), plaintext)
	w := wire.NewWriter(2 + len(boxed))
	w.Uint16LE(uint16(len(boxed)))
	w.WriteBytes(boxed)
	return w.Bytes()
}

func (s *fakeServer) openPayload(t *testing.T, seq uint64, frame []byte) payload.Incoming {
	t.Helper()
	r := wire.NewReader(frame)
	n, err := r.Uint16LE()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	boxed, err := r.Bytes(int(n))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	plaintext, err := openBox(s.sessionKey, seqcookie.Nonce(s.cck, seq), boxed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in, err := payload.DecodeIncoming(plaintext)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return in
}

func TestProtocolFullHandshakeAndPayloadRoundTrip(t *testing.T) {
	clientPermanent, err := wire.GenerateKeyPair()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	server := newFakeServer(t)

	proto, clientHello, err := New(Context{
		ClientPermanentKey:       clientPermanent,
		ServerPermanentPublicKey: server.permanent.Public,
		Identity:                 model.Identity{'E', 'C', 'H', 'O', 'E', 'C', 'H', 'O'},
		Extensions:               Extensions{ClientInfo: "test-client/1.0"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	serverHello := server.handleClientHello(t, clientHello, clientPermanent.Public)
	proto.AddChunks(serverHello)

	instr, err := proto.Poll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if instr == nil || instr.OutgoingFrame == nil {
		t.Fatalf("expected a login frame to be produced")
	}
	if proto.State() != StateAwaitingLoginAck {
		t.Fatalf("expected AwaitingLoginAck, got %v", proto.State())
	}

	loginAck := server.handleLogin(t, instr.OutgoingFrame)
	proto.AddChunks(loginAck)

	instr, err = proto.Poll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if instr == nil || instr.StateUpdate == nil || *instr.StateUpdate != StatePostHandshake {
		t.Fatalf("expected transition to PostHandshake, got %+v", instr)
	}
	if proto.State() != StatePostHandshake {
		t.Fatalf("expected PostHandshake, got %v", proto.State())
	}

	outgoing, err := proto.CreatePayload(payload.OutgoingEchoRequest, []byte("ping"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := server.openPayload(t, 3, outgoing)
	if got.Kind != payload.IncomingKind(payload.OutgoingEchoRequest) || !bytes.Equal(got.Body, []byte("ping")) {
		t.Fatalf("server decoded unexpected payload: %+v", got)
	}

	serverFrame := server.sealPayload(t, 3, payload.OutgoingEchoResponse, []byte("pong"))
	proto.AddChunks(serverFrame)
	instr, err = proto.Poll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if instr == nil || instr.IncomingPayload == nil {
		t.Fatalf("expected an incoming payload instruction")
	}
	if instr.IncomingPayload.Kind != payload.IncomingEchoResponse {
		t.Fatalf("unexpected incoming kind: %v", instr.IncomingPayload.Kind)
	}
	if !bytes.Equal(instr.IncomingPayload.Body, []byte("pong")) {
		t.Fatalf("unexpected incoming body: %q", instr.IncomingPayload.Body)
	}
}

func TestProtocolRejectsEqualCookies(t *testing.T) {
	clientPermanent, err := wire.GenerateKeyPair()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	server := newFakeServer(t)

	proto, clientHello, err := New(Context{
		ClientPermanentKey:       clientPermanent,
		ServerPermanentPublicKey: server.permanent.Public,
		Identity:                 model.Identity{'E', 'C', 'H', 'O', 'E', 'C', 'H', 'O'},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	serverHello := server.handleClientHello(t, clientHello, clientPermanent.Public)
	// Corrupt the server cookie to equal the client cookie.
	var cck model.Cookie
	copy(cck[:], clientHello[32:])
	copy(serverHello[:model.CookieLen], cck[:])

	proto.AddChunks(serverHello)
	if _, err := proto.Poll(); err == nil {
		t.Fatalf("expected an error for equal cookies")
	}
	if proto.State() != StateError {
		t.Fatalf("expected machine to latch into Error, got %v", proto.State())
	}
	// Subsequent polls return the same error.
	if _, err := proto.Poll(); err == nil {
		t.Fatalf("expected latched error on second poll")
	}
}

func TestProtocolCreatePayloadBeforeHandshakeFails(t *testing.T) {
	clientPermanent, err := wire.GenerateKeyPair()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	proto, _, err := New(Context{ClientPermanentKey: clientPermanent})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := proto.CreatePayload(payload.OutgoingEchoRequest, nil); err == nil {
		t.Fatalf("expected error before handshake completes")
	}
}
