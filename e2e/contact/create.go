package contact

import (
	"github.com/threema-ch/libthreema-go/model"
	"github.com/threema-ch/libthreema-go/protoerr"
	"github.com/threema-ch/libthreema-go/provider"
)

type createState uint8

const (
	createInit createState = iota
	createAwaitingReflectAck
	createRetryAsUpdate
	createDone
	createError
)

// Create adds a single new contact, per spec.md §4.6 "Create". When
// multi-device is active, the caller must drive a reflect subtask
// between Poll() returning ReflectRequired and calling RespondReflect.
type Create struct {
	init        model.ContactInit
	contacts    provider.ContactProvider
	multiDevice bool

	state createState
	err   error
	// conflictUpdate is populated if a concurrently created contact was
	// observed; the caller should then run Update instead.
	conflictUpdate *model.ContactUpdate
}

// NewCreate constructs a Create subtask.
func NewCreate(init model.ContactInit, contacts provider.ContactProvider, multiDevice bool) *Create {
	return &Create{init: init, contacts: contacts, multiDevice: multiDevice}
}

func (c *Create) fail(err error) (bool, error) {
	c.state = createError
	c.err = err
	return true, err
}

// ReflectRequired reports whether Poll is waiting on a reflection ack.
func (c *Create) ReflectRequired() bool {
	return c.state == createAwaitingReflectAck
}

// Poll advances the subtask. done=true means the subtask has finished
// (successfully or via ConflictUpdate()).
func (c *Create) Poll() (bool, error) {
	switch c.state {
	case createError:
		return true, c.err
	case createInit:
		return c.pollInit()
	case createAwaitingReflectAck:
		return false, nil
	default:
		return true, nil
	}
}

func (c *Create) pollInit() (bool, error) {
	if _, ok, err := c.contacts.Get(c.init.Identity); err != nil {
		return c.fail(err)
	} else if ok {
		update := &model.ContactUpdate{
			Identity:              c.init.Identity,
			AcquaintanceLevelBump: c.init.AcquaintanceLevel == model.AcquaintanceDirect,
		}
		if c.init.Nickname != "" {
			update.Nickname = model.Update(c.init.Nickname)
		}
		c.conflictUpdate = update
		c.state = createRetryAsUpdate
		return true, nil
	}
	if err := c.contacts.Add(c.init); err != nil {
		return c.fail(err)
	}
	if c.multiDevice {
		c.state = createAwaitingReflectAck
		return false, nil
	}
	c.state = createDone
	return true, nil
}

// RespondReflect completes the subtask once the reflect subtask has
// acked the batched d2d_sync.Contact create.
func (c *Create) RespondReflect() error {
	if c.state != createAwaitingReflectAck {
		return protoerr.New(protoerr.InvalidState, "respond_reflect outside AwaitingReflectAck")
	}
	c.state = createDone
	return nil
}

// ConflictUpdate returns the ContactUpdate to retry with if Poll
// reported a conflict with a concurrently created contact (spec.md
// §4.6 "Conflict with a concurrently-created contact → retry-by-update").
func (c *Create) ConflictUpdate() *model.ContactUpdate {
	return c.conflictUpdate
}
