// Package csp implements the Chat Server Protocol transport: the
// framed, authenticated, two-phase handshake plus payload channel
// described in spec.md §4.3. Protocol is a non-blocking state
// machine; callers feed it bytes with AddChunks and drive it forward
// with Poll, never blocking on I/O themselves.
package csp

import (
	"github.com/threema-ch/libthreema-go/csp/payload"
	"github.com/threema-ch/libthreema-go/framedelim"
	cryptohmac "github.com/threema-ch/libthreema-go/infrastructure/cryptography/hmac"
	"github.com/threema-ch/libthreema-go/model"
	"github.com/threema-ch/libthreema-go/protoerr"
	"github.com/threema-ch/libthreema-go/wire"
	"github.com/threema-ch/libthreema-go/wire/seqcookie"

	"github.com/threema-ch/libthreema-go/aeadcodec"
)

const (
	clientHelloLen    = 32 + model.CookieLen
	serverHelloBoxLen = 32 + model.CookieLen + aeadcodec.TagLen
	serverHelloLen    = model.CookieLen + serverHelloBoxLen
	loginAckLen       = aeadcodec.TagLen
	vouchLen          = 32
)

// Context carries the caller-supplied identity and keys a Protocol
// needs to run the handshake.
type Context struct {
	ClientPermanentKey       wire.KeyPair
	ServerPermanentPublicKey [32]byte
	Identity                 model.Identity
	Extensions               Extensions
}

// Instruction is the result of one Poll call: any non-nil field
// represents work for the caller to act on. A zero Instruction means
// "waiting for more bytes".
type Instruction struct {
	StateUpdate     *State
	OutgoingFrame   []byte
	IncomingPayload *payload.Incoming
}

// Protocol is the CSP transport state machine.
type Protocol struct {
	ctx   Context
	state State
	err   error

	tck wire.KeyPair
	cck model.Cookie
	sck model.Cookie

	sessionKey [32]byte

	handshakeBuf  []byte
	payloadFrames *framedelim.Assembler

	nextClientSeq uint64
	nextServerSeq uint64
}

func sealBox(key [32]byte, nonce model.Nonce, plaintext []byte) []byte {
	enc := aeadcodec.NewXSalsa20Poly1305(key, [24]byte(nonce))
	ct := append([]byte(nil), plaintext...)
	enc.Encrypt(ct)
	tag := enc.Finalize()
	return append(ct, tag[:]...)
}

func openBox(key [32]byte, nonce model.Nonce, boxed []byte) ([]byte, error) {
	if len(boxed) < aeadcodec.TagLen {
		return nil, protoerr.New(protoerr.DecodingFailed, "box shorter than tag")
	}
	ctLen := len(boxed) - aeadcodec.TagLen
	ct := append([]byte(nil), boxed[:ctLen]...)
	var tag [aeadcodec.TagLen]byte
	copy(tag[:], boxed[ctLen:])

	dec := aeadcodec.NewXSalsa20Poly1305(key, [24]byte(nonce))
	dec.Decrypt(ct)
	if err := dec.FinalizeVerify(tag); err != nil {
		return nil, err
	}
	return ct, nil
}

// New constructs a Protocol and returns the ClientHello frame the
// caller must send immediately.
func New(ctx Context) (*Protocol, []byte, error) {
	tck, err := wire.GenerateKeyPair()
	if err != nil {
		return nil, nil, protoerr.Wrap(protoerr.InternalError, "generate TCK", err)
	}
	cck, err := seqcookie.NewCookie()
	if err != nil {
		return nil, nil, protoerr.Wrap(protoerr.InternalError, "generate client cookie", err)
	}

	p := &Protocol{
		ctx:           ctx,
		state:         StateAwaitingServerHello,
		tck:           tck,
		cck:           cck,
		nextClientSeq: 3,
		nextServerSeq: 3,
	}

	clientHello := make([]byte, 0, clientHelloLen)
	clientHello = append(clientHello, tck.Public[:]...)
	clientHello = append(clientHello, cck[:]...)
	return p, clientHello, nil
}

// State returns the machine's current state.
func (p *Protocol) State() State {
	return p.state
}

// AddChunks feeds freshly received server bytes. Valid in any
// non-Error state.
func (p *Protocol) AddChunks(chunks ...[]byte) {
	if p.state == StatePostHandshake {
		p.payloadFrames.AddChunks(chunks...)
		return
	}
	for _, c := range chunks {
		p.handshakeBuf = append(p.handshakeBuf, c...)
	}
}

// NextRequiredLength advises how many more bytes to read before Poll
// can make progress.
func (p *Protocol) NextRequiredLength() int {
	switch p.state {
	case StateAwaitingServerHello:
		return max0(serverHelloLen - len(p.handshakeBuf))
	case StateAwaitingLoginAck:
		return max0(loginAckLen - len(p.handshakeBuf))
	case StatePostHandshake:
		return p.payloadFrames.RequiredLength()
	default:
		return 0
	}
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func (p *Protocol) fail(err error) (*Instruction, error) {
	p.state = StateError
	p.err = err
	return nil, err
}

// Poll advances the state machine by at most one step, returning an
// Instruction describing what happened, or nil if waiting for more
// bytes. Any error latches the machine into Error; subsequent Poll
// calls return the same error.
func (p *Protocol) Poll() (*Instruction, error) {
	if p.state == StateError {
		return nil, p.err
	}

	switch p.state {
	case StateAwaitingServerHello:
		return p.pollServerHello()
	case StateAwaitingLoginAck:
		return p.pollLoginAck()
	case StatePostHandshake:
		return p.pollPayload()
	default:
		return nil, nil
	}
}

func (p *Protocol) pollServerHello() (*Instruction, error) {
	if len(p.handshakeBuf) < serverHelloLen {
		return nil, nil
	}
	frame := p.handshakeBuf[:serverHelloLen]
	p.handshakeBuf = p.handshakeBuf[serverHelloLen:]

	var sck model.Cookie
	copy(sck[:], frame[:model.CookieLen])
	boxCT := frame[model.CookieLen:]

	if sck == p.cck {
		return p.fail(protoerr.New(protoerr.InvalidMessage, "server cookie equals client cookie"))
	}

	helloKeyShared, err := wire.SharedSecret(p.tck.Private, p.ctx.ServerPermanentPublicKey)
	if err != nil {
		return p.fail(protoerr.Wrap(protoerr.InternalError, "server hello shared secret", err))
	}
	helloKey := wire.HSalsa20Subkey(helloKeyShared, [16]byte{})

	nonce := seqcookie.Nonce(sck, 1)
	plaintext, err := openBox(helloKey, nonce, boxCT)
	if err != nil {
		return p.fail(protoerr.Wrap(protoerr.DecryptionFailed, "server hello box", err))
	}
	if len(plaintext) != 32+model.CookieLen {
		return p.fail(protoerr.New(protoerr.DecodingFailed, "server hello challenge response length"))
	}
	var tskPub [32]byte
	copy(tskPub[:], plaintext[:32])
	var cckEcho model.Cookie
	copy(cckEcho[:], plaintext[32:])
	if cckEcho != p.cck {
		return p.fail(protoerr.New(protoerr.InvalidMessage, "server hello echoed wrong client cookie"))
	}
	p.sck = sck

	sessionShared, err := wire.SharedSecret(p.tck.Private, tskPub)
	if err != nil {
		return p.fail(protoerr.Wrap(protoerr.InternalError, "session shared secret", err))
	}
	p.sessionKey = wire.HSalsa20Subkey(sessionShared, [16]byte{})

	vouchKey, err := wire.HKDFSHA256(sessionShared[:], nil, []byte("csp-vouch"), 32)
	if err != nil {
		return p.fail(protoerr.Wrap(protoerr.InternalError, "vouch key derive", err))
	}
	vouch, err := cryptohmac.NewHMAC(vouchKey).Generate(
		append(append([]byte(nil), p.ctx.ClientPermanentKey.Public[:]...), p.ctx.ServerPermanentPublicKey[:]...),
	)
	if err != nil {
		return p.fail(protoerr.Wrap(protoerr.InternalError, "vouch mac", err))
	}

	extBytes := p.ctx.Extensions.Encode()
	w := wire.NewWriter(len(p.ctx.Identity) + 2 + model.CookieLen + vouchLen)
	w.WriteBytes(p.ctx.Identity[:])
	w.Uint16LE(uint16(len(extBytes)))
	w.WriteBytes(sck[:])
	w.WriteBytes(vouch[:vouchLen])
	loginData := w.Bytes()

	loginDataBox := sealBox(p.sessionKey, seqcookie.Nonce(p.cck, 1), loginData)
	extensionsBox := sealBox(p.sessionKey, seqcookie.Nonce(p.cck, 2), extBytes)

	outgoing := append(append([]byte(nil), loginDataBox...), extensionsBox...)

	p.state = StateAwaitingLoginAck
	st := p.state
	return &Instruction{StateUpdate: &st, OutgoingFrame: outgoing}, nil
}

func (p *Protocol) pollLoginAck() (*Instruction, error) {
	if len(p.handshakeBuf) < loginAckLen {
		return nil, nil
	}
	frame := p.handshakeBuf[:loginAckLen]
	p.handshakeBuf = nil

	if _, err := openBox(p.sessionKey, seqcookie.Nonce(p.sck, 2), frame); err != nil {
		return p.fail(protoerr.Wrap(protoerr.DecryptionFailed, "login ack", err))
	}

	p.state = StatePostHandshake
	p.payloadFrames = framedelim.NewAssembler(framedelim.PrefixLen2, framedelim.CeilingCSP)
	st := p.state
	return &Instruction{StateUpdate: &st}, nil
}

func (p *Protocol) pollPayload() (*Instruction, error) {
	frame, ok, err := p.payloadFrames.Next()
	if err != nil {
		return p.fail(err)
	}
	if !ok {
		return nil, nil
	}

	nonce := seqcookie.Nonce(p.sck, p.nextServerSeq)
	p.nextServerSeq++

	plaintext, err := openBox(p.sessionKey, nonce, frame)
	if err != nil {
		return p.fail(protoerr.Wrap(protoerr.DecryptionFailed, "payload frame", err))
	}
	in, err := payload.DecodeIncoming(plaintext)
	if err != nil {
		return p.fail(err)
	}
	return &Instruction{IncomingPayload: &in}, nil
}

// CreatePayload encodes, encrypts, and frames an outgoing payload.
// Valid only in PostHandshake.
func (p *Protocol) CreatePayload(kind payload.OutgoingKind, body []byte) ([]byte, error) {
	if p.state != StatePostHandshake {
		return nil, protoerr.New(protoerr.InvalidState, "create_payload requires post-handshake state")
	}
	if p.nextClientSeq == ^uint64(0) {
		return nil, protoerr.New(protoerr.InternalError, "client sequence counter exhausted")
	}
	plaintext := payload.EncodeOutgoing(kind, body)
	nonce := seqcookie.Nonce(p.cck, p.nextClientSeq)
	p.nextClientSeq++

	boxed := sealBox(p.sessionKey, nonce, plaintext)

	w := wire.NewWriter(2 + len(boxed))
	w.Uint16LE(uint16(len(boxed)))
	w.WriteBytes(boxed)
	return w.Bytes(), nil
}
