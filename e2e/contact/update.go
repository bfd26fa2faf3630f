package contact

import (
	"github.com/threema-ch/libthreema-go/protoerr"
	"github.com/threema-ch/libthreema-go/provider"

	"github.com/threema-ch/libthreema-go/model"
)

type updateState uint8

const (
	updateInit updateState = iota
	updateAwaitingReflectAck
	updateDone
	updateError
)

// Update applies a ContactUpdate to an existing contact, per spec.md
// §4.6 "Update": only the fields whose Delta/pointer is non-neutral
// are applied, and the change is reflected under multi-device.
type Update struct {
	update      model.ContactUpdate
	contacts    provider.ContactProvider
	multiDevice bool

	state updateState
	err   error
}

// NewUpdate constructs an Update subtask. The caller should skip
// running it entirely when update.IsEmpty() is true, per spec.md
// §4.4 "Contact state" ("Run the update subtask if any field
// changed").
func NewUpdate(update model.ContactUpdate, contacts provider.ContactProvider, multiDevice bool) *Update {
	return &Update{update: update, contacts: contacts, multiDevice: multiDevice}
}

func (u *Update) fail(err error) (bool, error) {
	u.state = updateError
	u.err = err
	return true, err
}

// ReflectRequired reports whether Poll is waiting on a reflection ack.
func (u *Update) ReflectRequired() bool {
	return u.state == updateAwaitingReflectAck
}

// Poll advances the subtask.
func (u *Update) Poll() (bool, error) {
	switch u.state {
	case updateError:
		return true, u.err
	case updateInit:
		return u.pollInit()
	case updateAwaitingReflectAck:
		return false, nil
	default:
		return true, nil
	}
}

func (u *Update) pollInit() (bool, error) {
	if u.update.IsEmpty() {
		u.state = updateDone
		return true, nil
	}
	if _, ok, err := u.contacts.Get(u.update.Identity); err != nil {
		return u.fail(err)
	} else if !ok {
		return u.fail(protoerr.New(protoerr.InvalidState, "update target contact does not exist"))
	}
	if err := u.contacts.Update(u.update); err != nil {
		return u.fail(err)
	}
	if u.multiDevice {
		u.state = updateAwaitingReflectAck
		return false, nil
	}
	u.state = updateDone
	return true, nil
}

// RespondReflect completes the subtask once the batched d2d_sync.Contact
// update has been acked.
func (u *Update) RespondReflect() error {
	if u.state != updateAwaitingReflectAck {
		return protoerr.New(protoerr.InvalidState, "respond_reflect outside AwaitingReflectAck")
	}
	u.state = updateDone
	return nil
}
