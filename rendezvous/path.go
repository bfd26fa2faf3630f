// Package rendezvous implements the device-to-device rendezvous
// protocol: a multi-path racing handshake with nomination, yielding a
// single authenticated transport for upper-layer payloads, per
// spec.md §4.5.
package rendezvous

import (
	"crypto/rand"
	"io"

	"github.com/threema-ch/libthreema-go/aeadcodec"
	"github.com/threema-ch/libthreema-go/framedelim"
	"github.com/threema-ch/libthreema-go/protoerr"
	"github.com/threema-ch/libthreema-go/wire"
)

// Role identifies which side of the rendezvous a Path belongs to.
type Role uint8

const (
	RoleInitiator Role = iota // RID
	RoleResponder             // RRD
)

// PathState is one state in a single path's lifecycle.
type PathState uint8

const (
	PathAwaitingHello PathState = iota
	PathAwaitingAuthHello
	PathAwaitingAuth
	PathAwaitingNominate
	PathNominated
	PathDisregarded
	PathClosed
)

const challengeLen = 32

// Instruction is the result of one Poll call on a Path.
type Instruction struct {
	OutgoingFrame []byte
	Nominated     bool
	IncomingData  []byte
}

// Path drives one candidate transport's handshake and, once
// nominated, its post-handshake payload stream. It is not safe for
// concurrent use.
type Path struct {
	role  Role
	state PathState

	ak   [32]byte
	keys authKeys

	etk        wire.KeyPair
	peerETKPub [32]byte

	challenge     [32]byte
	peerChallenge [32]byte

	pathKeys  pathKeys
	sendSeq   uint64
	recvSeq   uint64
	nominator bool

	frames *framedelim.Assembler
}

// NewPath constructs a path for one of the two roles, sharing the
// 32-byte authentication key negotiated out of band (e.g. via a QR
// code or push notification).
func NewPath(role Role, ak [32]byte) (*Path, error) {
	keys, err := deriveAuthKeys(ak)
	if err != nil {
		return nil, err
	}
	etk, err := wire.GenerateKeyPair()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.InternalError, "generate path ETK", err)
	}
	var challenge [32]byte
	if _, err := io.ReadFull(rand.Reader, challenge[:]); err != nil {
		return nil, protoerr.Wrap(protoerr.InternalError, "generate path challenge", err)
	}

	p := &Path{
		role:      role,
		ak:        ak,
		keys:      keys,
		etk:       etk,
		challenge: challenge,
		frames:    framedelim.NewAssembler(framedelim.PrefixLen2, framedelim.CeilingRendezvousHandshake),
	}
	if role == RoleResponder {
		p.state = PathAwaitingAuthHello
	} else {
		p.state = PathAwaitingHello
	}
	return p, nil
}

// InitialFrame returns the RRD-side Hello frame a responder path must
// send immediately on creation. Initiator paths have nothing to send
// until they receive a Hello, so this returns nil for RoleInitiator.
func (p *Path) InitialFrame() []byte {
	if p.role != RoleResponder {
		return nil
	}
	plaintext := make([]byte, 0, challengeLen+32)
	plaintext = append(plaintext, p.challenge[:]...)
	plaintext = append(plaintext, p.etk.Public[:]...)
	boxed := sealFrame(p.keys.rrdak, p.sendSeq, plaintext)
	p.sendSeq++
	return framePrefixed(boxed)
}

func framePrefixed(boxed []byte) []byte {
	w := wire.NewWriter(2 + len(boxed))
	w.Uint16LE(uint16(len(boxed)))
	w.WriteBytes(boxed)
	return w.Bytes()
}

// AddChunks feeds freshly received peer bytes for this path.
func (p *Path) AddChunks(chunks ...[]byte) {
	p.frames.AddChunks(chunks...)
}

// RequiredLength advises how many more bytes to read before Poll can
// make progress.
func (p *Path) RequiredLength() int {
	return p.frames.RequiredLength()
}

// State returns the path's current lifecycle state.
func (p *Path) State() PathState {
	return p.state
}

// RPH returns the derived rendezvous path hash, valid once the path
// has reached AwaitingNominate or later.
func (p *Path) RPH() [32]byte {
	return p.pathKeys.rph
}

func (p *Path) closeWith(err error) (*Instruction, error) {
	p.state = PathClosed
	return nil, err
}

// Poll advances the path by at most one step.
func (p *Path) Poll() (*Instruction, error) {
	switch p.state {
	case PathAwaitingHello:
		return p.pollHello()
	case PathAwaitingAuthHello:
		return p.pollAuthHello()
	case PathAwaitingAuth:
		return p.pollAuth()
	case PathAwaitingNominate, PathNominated:
		return p.pollTransport()
	default:
		return nil, nil
	}
}

func (p *Path) pollHello() (*Instruction, error) {
	frame, ok, err := p.frames.Next()
	if err != nil {
		return p.closeWith(err)
	}
	if !ok {
		return nil, nil
	}
	plaintext, err := openFrame(p.keys.rrdak, p.recvSeq, frame)
	p.recvSeq++
	if err != nil {
		return p.closeWith(protoerr.Wrap(protoerr.DecryptionFailed, "hello", err))
	}
	if len(plaintext) != challengeLen+32 {
		return p.closeWith(protoerr.New(protoerr.DecodingFailed, "hello length"))
	}
	copy(p.peerChallenge[:], plaintext[:challengeLen])
	copy(p.peerETKPub[:], plaintext[challengeLen:])

	authHello := make([]byte, 0, challengeLen*2+32)
	authHello = append(authHello, p.peerChallenge[:]...) // response == peer's challenge
	authHello = append(authHello, p.challenge[:]...)
	authHello = append(authHello, p.etk.Public[:]...)
	boxed := sealFrame(p.keys.ridak, p.sendSeq, authHello)
	p.sendSeq++

	p.state = PathAwaitingAuth
	return &Instruction{OutgoingFrame: framePrefixed(boxed)}, nil
}

func (p *Path) pollAuthHello() (*Instruction, error) {
	frame, ok, err := p.frames.Next()
	if err != nil {
		return p.closeWith(err)
	}
	if !ok {
		return nil, nil
	}
	plaintext, err := openFrame(p.keys.ridak, p.recvSeq, frame)
	p.recvSeq++
	if err != nil {
		return p.closeWith(protoerr.Wrap(protoerr.DecryptionFailed, "auth hello", err))
	}
	if len(plaintext) != challengeLen*2+32 {
		return p.closeWith(protoerr.New(protoerr.DecodingFailed, "auth hello length"))
	}
	response := plaintext[:challengeLen]
	copy(p.peerChallenge[:], plaintext[challengeLen:challengeLen*2])
	copy(p.peerETKPub[:], plaintext[challengeLen*2:])
	if !equal32Slice(response, p.challenge[:]) {
		return p.closeWith(protoerr.New(protoerr.InvalidMessage, "auth hello response mismatch"))
	}

	auth := append([]byte(nil), p.peerChallenge[:]...)
	boxed := sealFrame(p.keys.rrdak, p.sendSeq, auth)
	p.sendSeq++

	if err := p.finishHandshake(); err != nil {
		return p.closeWith(err)
	}
	return &Instruction{OutgoingFrame: framePrefixed(boxed)}, nil
}

func (p *Path) pollAuth() (*Instruction, error) {
	frame, ok, err := p.frames.Next()
	if err != nil {
		return p.closeWith(err)
	}
	if !ok {
		return nil, nil
	}
	plaintext, err := openFrame(p.keys.rrdak, p.recvSeq, frame)
	p.recvSeq++
	if err != nil {
		return p.closeWith(protoerr.Wrap(protoerr.DecryptionFailed, "auth", err))
	}
	if !equal32Slice(plaintext, p.challenge[:]) {
		return p.closeWith(protoerr.New(protoerr.InvalidMessage, "auth response mismatch"))
	}
	if err := p.finishHandshake(); err != nil {
		return p.closeWith(err)
	}
	return nil, nil
}

func (p *Path) finishHandshake() error {
	shared, err := wire.SharedSecret(p.etk.Private, p.peerETKPub)
	if err != nil {
		return protoerr.Wrap(protoerr.InternalError, "path ETK agreement", err)
	}
	// Both roles lay the transcript out in RID-then-RRD order so they
	// derive the same transport keys and RPH.
	ridChallenge, rrdChallenge := p.challenge, p.peerChallenge
	ridETKPub, rrdETKPub := p.etk.Public, p.peerETKPub
	if p.role == RoleResponder {
		ridChallenge, rrdChallenge = rrdChallenge, ridChallenge
		ridETKPub, rrdETKPub = rrdETKPub, ridETKPub
	}
	transcript := make([]byte, 0, 4*32)
	transcript = append(transcript, ridChallenge[:]...)
	transcript = append(transcript, rrdChallenge[:]...)
	transcript = append(transcript, ridETKPub[:]...)
	transcript = append(transcript, rrdETKPub[:]...)

	pk, err := deriveTransportKeys(p.ak, shared, transcript)
	if err != nil {
		return err
	}
	p.pathKeys = pk
	p.state = PathAwaitingNominate
	p.sendSeq = 0
	p.recvSeq = 0
	return nil
}

func (p *Path) transportKeys() (sendKey, recvKey [32]byte) {
	if p.role == RoleInitiator {
		return p.pathKeys.ridtk, p.pathKeys.rrdtk
	}
	return p.pathKeys.rrdtk, p.pathKeys.ridtk
}

// Nominate emits this path's (empty) Nominate frame under the
// sender's transport key and marks the path Nominated. Valid only
// from AwaitingNominate. The Nominate frame itself still carries the
// 2-byte handshake length prefix, since the peer parses it before
// switching its own framing.
func (p *Path) Nominate() ([]byte, error) {
	if p.state != PathAwaitingNominate {
		return nil, protoerr.New(protoerr.InvalidState, "nominate requires AwaitingNominate")
	}
	sendKey, _ := p.transportKeys()
	boxed := sealFrame(sendKey, p.sendSeq, nil)
	p.sendSeq++
	p.nominator = true
	p.state = PathNominated
	p.frames.Reconfigure(framedelim.PrefixLen4, framedelim.CeilingRendezvousPostNominate)
	return framePrefixed(boxed), nil
}

// Disregard marks a non-nominated path as closed by policy once a
// different path has been nominated.
func (p *Path) Disregard() {
	if p.state != PathNominated {
		p.state = PathDisregarded
	}
}

func framePrefixed4(boxed []byte) []byte {
	w := wire.NewWriter(4 + len(boxed))
	w.Uint32LE(uint32(len(boxed)))
	w.WriteBytes(boxed)
	return w.Bytes()
}

func (p *Path) pollTransport() (*Instruction, error) {
	frame, ok, err := p.frames.Next()
	if err != nil {
		return p.closeWith(err)
	}
	if !ok {
		return nil, nil
	}
	_, recvKey := p.transportKeys()

	if p.state == PathAwaitingNominate && len(frame) == aeadcodec.TagLen {
		// An empty Nominate frame from the peer: adopt it as this
		// path's nomination.
		if _, err := openFrame(recvKey, p.recvSeq, frame); err != nil {
			return p.closeWith(protoerr.Wrap(protoerr.DecryptionFailed, "nominate", err))
		}
		p.recvSeq++
		p.state = PathNominated
		p.frames.Reconfigure(framedelim.PrefixLen4, framedelim.CeilingRendezvousPostNominate)
		return &Instruction{Nominated: true}, nil
	}

	plaintext, err := openFrame(recvKey, p.recvSeq, frame)
	p.recvSeq++
	if err != nil {
		return p.closeWith(protoerr.Wrap(protoerr.DecryptionFailed, "transport frame", err))
	}
	return &Instruction{IncomingData: plaintext}, nil
}

// SendData seals an upper-layer payload over this path's nominated
// transport.
func (p *Path) SendData(plaintext []byte) ([]byte, error) {
	if p.state != PathNominated {
		return nil, protoerr.New(protoerr.InvalidState, "send_data requires Nominated")
	}
	sendKey, _ := p.transportKeys()
	boxed := sealFrame(sendKey, p.sendSeq, plaintext)
	p.sendSeq++
	return framePrefixed4(boxed), nil
}

func equal32Slice(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
