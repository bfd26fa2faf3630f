// Package reflect implements the multi-device reflection subtask
// named in spec.md §4.4/§4.6: forwarding a locally processed or sent
// message/contact-change to the user's other devices via the
// mediator, and waiting for its ack before the caller proceeds.
package reflect

import (
	"github.com/threema-ch/libthreema-go/protoerr"
)

type state uint8

const (
	stateInit state = iota
	stateAwaitingAck
	stateDone
	stateError
)

// Instruction carries the encoded reflection payload the embedder
// must send to the mediator.
type Instruction struct {
	Payload []byte
}

// Task reflects a single payload and waits for its ack, per the
// `TaskLoop<Instruction, Done>` shape named in spec.md §4.6.
type Task struct {
	payload        []byte
	state          state
	err            error
	reflectedNonce [24]byte
	hasNonce       bool
}

// NewTask constructs a reflect Task for an already-encoded payload
// (e.g. a marshalled d2d.IncomingMessage or batched d2d_sync.Contact
// change).
func NewTask(payload []byte) *Task {
	return &Task{payload: payload}
}

// NewTaskWithNonce constructs a reflect Task that also records the
// envelope nonce to append to the device-group nonce storage once
// acked, per spec.md §4.4 "Reflect".
func NewTaskWithNonce(payload []byte, nonce [24]byte) *Task {
	return &Task{payload: payload, reflectedNonce: nonce, hasNonce: true}
}

func (t *Task) fail(err error) (*Instruction, bool, error) {
	t.state = stateError
	t.err = err
	return nil, true, err
}

// Poll advances the task.
func (t *Task) Poll() (*Instruction, bool, error) {
	switch t.state {
	case stateError:
		return nil, true, t.err
	case stateInit:
		t.state = stateAwaitingAck
		return &Instruction{Payload: t.payload}, false, nil
	case stateAwaitingAck:
		return nil, false, nil
	default:
		return nil, true, nil
	}
}

// RespondAck completes the task once the mediator has acked the
// reflected payload.
func (t *Task) RespondAck() error {
	if t.state != stateAwaitingAck {
		return protoerr.New(protoerr.InvalidState, "respond_ack outside AwaitingAck")
	}
	t.state = stateDone
	return nil
}

// ReflectedNonce returns the envelope nonce to append to the
// device-group nonce storage, valid once the task is done and was
// constructed via NewTaskWithNonce.
func (t *Task) ReflectedNonce() ([24]byte, bool) {
	return t.reflectedNonce, t.hasNonce
}
