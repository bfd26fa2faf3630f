package e2e

import (
	reflecttask "github.com/threema-ch/libthreema-go/e2e/reflect"
	"github.com/threema-ch/libthreema-go/model"
	"github.com/threema-ch/libthreema-go/model/wireenc"
	"github.com/threema-ch/libthreema-go/protoerr"
)

// dispatch implements spec.md §4.4 "Dispatch": decode the container
// body for the 1:1 types this pipeline supports, then move on to
// reflection (if required) or straight to acknowledgement.
func (t *Task) dispatch() (*Instruction, bool, error) {
	outcome := &Outcome{Sender: t.env.Sender, InnerType: t.innerType}
	switch t.innerType {
	case InnerTypeText:
		body, err := decodeText(t.container.Body)
		if err != nil {
			return t.discardAndAck()
		}
		outcome.Text = &body
	case InnerTypeLocation:
		body, err := decodeLocation(t.container.Body)
		if err != nil {
			return t.discardAndAck()
		}
		outcome.Location = &body
	case InnerTypeDeliveryReceipt:
		body, err := decodeDeliveryReceipt(t.container.Body)
		if err != nil {
			return t.discardAndAck()
		}
		outcome.DeliveryReceipt = &body
	case InnerTypeLegacyReaction, InnerTypeWebSessionResume:
		// Recognised types with no further typed-body decode; the
		// inner type tag alone is what downstream callers need.
	default:
		return t.discardAndAck()
	}

	if t.props.DeliveryReceipts && !t.env.Flags.Has(model.FlagNoDeliveryReceipts) {
		outcome.ScheduleDeliveryReceipt = true
	}
	t.outcome = outcome

	if t.params.Settings.MultiDeviceActive() && t.props.Reflect {
		payload := t.encodeMessageReflect()
		t.msgReflect = reflecttask.NewTaskWithNonce(payload, [24]byte(t.nonce))
		instr, _, err := t.msgReflect.Poll()
		if err != nil {
			return t.fail(err)
		}
		t.ph = phaseMessageReflect
		return &Instruction{MessageReflect: instr.Payload}, false, nil
	}
	return t.finish()
}

// RespondMessageReflectAck completes the d2d.IncomingMessage
// reflection. Valid only while Poll has surfaced a MessageReflect
// instruction.
func (t *Task) RespondMessageReflectAck() (*Instruction, bool, error) {
	if t.ph != phaseMessageReflect {
		return t.fail(protoerr.New(protoerr.InvalidState, "respond_message_reflect_ack outside MessageReflect"))
	}
	if err := t.msgReflect.RespondAck(); err != nil {
		return t.fail(err)
	}
	if nonce, ok := t.msgReflect.ReflectedNonce(); ok && t.params.DeviceGroupNonces != nil {
		if err := t.params.DeviceGroupNonces.Insert(nonce); err != nil {
			return t.fail(err)
		}
	}
	t.msgReflect = nil
	return t.finish()
}

// finish implements spec.md §4.4 "Acknowledge": mark replay state only
// after every other side effect of accepting the message has
// succeeded, per spec.md §5's nonce-insertion-ordering rule.
func (t *Task) finish() (*Instruction, bool, error) {
	if err := t.params.Conversations.MarkMessageIDSeen(t.env.Sender, t.env.MessageID); err != nil {
		return t.fail(err)
	}
	if t.props.ReplayProtection {
		if err := t.params.Nonces.Insert(t.nonce); err != nil {
			return t.fail(err)
		}
	}
	t.shouldAck = !t.env.Flags.Has(model.FlagNoServerAcknowledgement)
	t.ph = phaseDone
	return nil, true, nil
}

// encodeMessageReflect builds the d2d.IncomingMessage reflection
// payload named in spec.md §4.4 "Reflect". As with
// encodeContactReflect, the real d2d protobuf descriptors aren't
// available (see DESIGN.md), so the fields spec.md names — sender
// identity, message id, created-at, outer type, outer-container
// plaintext, envelope nonce — are encoded directly with wireenc.
func (t *Task) encodeMessageReflect() []byte {
	e := wireenc.NewEncoder()
	e.BytesField(1, t.env.Sender[:])
	e.Fixed64Field(2, uint64(t.env.MessageID))
	createdAtMs := int64(t.env.LegacyCreatedAt) * 1000
	if t.metadata != nil {
		createdAtMs = t.metadata.CreatedAtMs
	}
	e.Int64Field(3, createdAtMs)
	e.VarintField(4, uint64(t.container.OuterType))
	plainContainer := append([]byte{byte(t.container.OuterType)}, t.container.Body...)
	e.BytesField(5, plainContainer)
	e.BytesField(6, t.nonce[:])
	return e.Bytes()
}
