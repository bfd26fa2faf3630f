package e2e

import (
	"github.com/threema-ch/libthreema-go/e2e/contact"
	reflecttask "github.com/threema-ch/libthreema-go/e2e/reflect"
	"github.com/threema-ch/libthreema-go/model"
	"github.com/threema-ch/libthreema-go/model/wireenc"
	"github.com/threema-ch/libthreema-go/protoerr"
)

// pollContactReconcile implements spec.md §4.4 "Contact state": build
// and run the create-or-update subtask the nickname delta and
// direct-contact requirement call for, then hand off to whichever
// subtask is in flight.
func (t *Task) pollContactReconcile() (*Instruction, bool, error) {
	if t.activeCreate != nil {
		return t.driveCreate()
	}
	if t.activeUpdate != nil {
		return t.driveUpdate()
	}

	multiDevice := t.params.Settings.MultiDeviceActive()
	nickname := t.nicknameDelta()

	if t.senderContact != nil {
		update := model.ContactUpdate{Identity: t.env.Sender, Nickname: nickname}
		if t.props.RequiresDirectContact && t.senderContact.AcquaintanceLevel != model.AcquaintanceDirect {
			update.AcquaintanceLevelBump = true
		}
		if update.IsEmpty() {
			return t.afterReconcile()
		}
		t.activeUpdate = contact.NewUpdate(update, t.params.Contacts, multiDevice)
		return t.driveUpdate()
	}

	init := *t.senderInit
	init.AcquaintanceLevel = model.AcquaintanceDirect
	if nickname.Kind == model.DeltaUpdate {
		init.Nickname = nickname.Value
	}
	t.activeCreate = contact.NewCreate(init, t.params.Contacts, multiDevice)
	return t.driveCreate()
}

func (t *Task) driveCreate() (*Instruction, bool, error) {
	done, err := t.activeCreate.Poll()
	if err != nil {
		return t.fail(err)
	}
	if t.activeCreate.ReflectRequired() {
		create := t.activeCreate
		return t.startContactReflect(t.encodeContactReflect(true), func() error {
			if err := create.RespondReflect(); err != nil {
				return err
			}
			_, err := create.Poll()
			return err
		})
	}
	if !done {
		return nil, false, nil
	}
	if conflict := t.activeCreate.ConflictUpdate(); conflict != nil {
		t.activeCreate = nil
		t.activeUpdate = contact.NewUpdate(*conflict, t.params.Contacts, t.params.Settings.MultiDeviceActive())
		return t.driveUpdate()
	}
	t.activeCreate = nil
	return t.afterReconcile()
}

func (t *Task) driveUpdate() (*Instruction, bool, error) {
	done, err := t.activeUpdate.Poll()
	if err != nil {
		return t.fail(err)
	}
	if t.activeUpdate.ReflectRequired() {
		update := t.activeUpdate
		return t.startContactReflect(t.encodeContactReflect(false), func() error {
			if err := update.RespondReflect(); err != nil {
				return err
			}
			_, err := update.Poll()
			return err
		})
	}
	if !done {
		return nil, false, nil
	}
	t.activeUpdate = nil
	return t.afterReconcile()
}

func (t *Task) startContactReflect(payload []byte, onAck func() error) (*Instruction, bool, error) {
	t.contactReflect = reflecttask.NewTask(payload)
	instr, _, err := t.contactReflect.Poll()
	if err != nil {
		return t.fail(err)
	}
	t.pendingReflectFn = onAck
	t.ph = phaseContactReflect
	return &Instruction{ContactReflect: instr.Payload}, false, nil
}

// RespondContactReflectAck completes a batched d2d_sync.Contact
// create/update reflection. Valid only while Poll has surfaced a
// ContactReflect instruction.
func (t *Task) RespondContactReflectAck() (*Instruction, bool, error) {
	if t.ph != phaseContactReflect {
		return t.fail(protoerr.New(protoerr.InvalidState, "respond_contact_reflect_ack outside ContactReflect"))
	}
	if err := t.contactReflect.RespondAck(); err != nil {
		return t.fail(err)
	}
	if err := t.pendingReflectFn(); err != nil {
		return t.fail(err)
	}
	t.contactReflect = nil
	t.pendingReflectFn = nil
	t.ph = phaseContactReconcile
	return t.pollContactReconcile()
}

// afterReconcile re-queries the stored acquaintance level when the
// message requires direct contact, retrying the update once more if a
// concurrent device raced it, per spec.md §4.4 ("retry once more...
// give up after three attempts with a network-error-class failure").
func (t *Task) afterReconcile() (*Instruction, bool, error) {
	if t.props.RequiresDirectContact {
		c, ok, err := t.params.Contacts.Get(t.env.Sender)
		if err != nil {
			return t.fail(err)
		}
		if !ok || c.AcquaintanceLevel != model.AcquaintanceDirect {
			t.reconcileAttempt++
			if t.reconcileAttempt >= maxAcquaintanceReconcileAttempts {
				return t.fail(protoerr.New(protoerr.NetworkError, "contact acquaintance reconciliation did not converge"))
			}
			update := model.ContactUpdate{Identity: t.env.Sender, AcquaintanceLevelBump: true}
			t.activeUpdate = contact.NewUpdate(update, t.params.Contacts, t.params.Settings.MultiDeviceActive())
			return t.driveUpdate()
		}
		cc := c
		t.senderContact = &cc
	}
	return t.dispatch()
}

// encodeContactReflect builds the batched d2d_sync.Contact reflection
// payload. The d2d_sync schema's generated descriptors aren't
// available to this task (see DESIGN.md's wireenc justification), so
// only the fields this pipeline needs to describe the change are
// encoded: the identity and whether it was a create or an update.
func (t *Task) encodeContactReflect(isCreate bool) []byte {
	e := wireenc.NewEncoder()
	e.BytesField(1, t.env.Sender[:])
	kind := uint64(2)
	if isCreate {
		kind = 1
	}
	e.VarintField(2, kind)
	return e.Bytes()
}
