// Package e2e implements the CSP-E2E incoming message pipeline named
// in spec.md §4.4: one Task per inbound message-with-metadata-box
// payload, driven Init → FetchSender → {CreateContact|UpdateContact}
// → HandleMessage → ReflectMessage → Done, with any step able to
// short-circuit straight to Done after emitting an acknowledgement
// decision. Like csp.Protocol and rendezvous.Path, Task is a
// non-blocking state machine: Poll advances it by at most one step,
// and the only suspension points are waiting on a Respond* call.
package e2e

import (
	"github.com/threema-ch/libthreema-go/applog"
	"github.com/threema-ch/libthreema-go/e2e/contact"
	reflecttask "github.com/threema-ch/libthreema-go/e2e/reflect"
	"github.com/threema-ch/libthreema-go/model"
	"github.com/threema-ch/libthreema-go/protoerr"
	"github.com/threema-ch/libthreema-go/provider"
)

// pushGatewayIdentity is the predefined push-shortcut sender named in
// spec.md §4.4 "Special sender".
const pushGatewayIdentity = "*3MAPUSH"

// maxAcquaintanceReconcileAttempts bounds the re-query/retry loop in
// spec.md §4.4 "Contact state" ("give up after three attempts").
const maxAcquaintanceReconcileAttempts = 3

// Params bundles a Task's fixed collaborators, injected at
// construction per spec.md §4.6/§9.
type Params struct {
	UserIdentity     model.Identity
	ClientPrivateKey [32]byte
	WorkFlavor       bool

	Contacts      provider.ContactProvider
	Conversations provider.ConversationProvider
	// Nonces is the CSP-E2E nonce space. DeviceGroupNonces is the
	// independent device-to-device nonce space a reflected message's
	// nonce is appended to, per spec.md §3 ("two distinct nonce
	// spaces exist").
	Nonces            provider.NonceStorage
	DeviceGroupNonces provider.NonceStorage
	Settings          provider.SettingsProvider
	Cache             contact.Cache
	// PushShortcut receives web-session-resume payloads forwarded from
	// pushGatewayIdentity; may be nil.
	PushShortcut provider.PushShortcutSink
	// Logger receives diagnostic lines for discards and failures. Nil
	// defaults to applog.Nop.
	Logger applog.Logger
}

type phase uint8

const (
	phaseInit phase = iota
	phaseSenderLookup
	phaseContactReconcile
	phaseContactReflect
	phaseMessageReflect
	phaseDone
	phaseError
)

// Instruction is the work a Task wants the embedder to perform next.
// At most one field is populated per Poll/Respond call.
type Instruction struct {
	DirectoryRequest []model.Identity
	WorkRequest      []model.Identity
	ContactReflect   []byte
	MessageReflect   []byte
}

// Outcome is the decoded result of a message the pipeline accepted
// (not discarded). Exactly one of Text/Location/DeliveryReceipt is set
// for the types this pipeline decodes a typed body for.
type Outcome struct {
	Sender                  model.Identity
	InnerType               InnerType
	Text                    *TextMessage
	Location                *LocationMessage
	DeliveryReceipt         *DeliveryReceiptMessage
	ScheduleDeliveryReceipt bool
}

// Task drives one inbound envelope through the pipeline.
type Task struct {
	params  Params
	payload []byte

	ph  phase
	err error

	env       model.Envelope
	nonce     model.Nonce
	discarded bool
	shouldAck bool

	lookup *contact.Lookup

	senderPublicKey model.X25519PublicKey
	senderContact   *model.Contact // nil until the contact is known to exist
	senderInit      *model.ContactInit

	keys      e2eKeys
	metadata  *model.MessageMetadata
	container model.MessageContainer
	props     Properties
	innerType InnerType

	reconcileAttempt int
	activeCreate     *contact.Create
	activeUpdate     *contact.Update
	contactReflect   *reflecttask.Task
	pendingReflectFn func() error

	msgReflect *reflecttask.Task

	outcome *Outcome
}

// NewTask constructs a Task for one inbound message-with-metadata-box
// payload. Per spec.md §4.4 "Init", if multi-device is active and this
// device is not the leader, construction itself fails: that is a hard
// application-level precondition, distinct from the discard-then-ack
// cases the rest of Init handles.
func NewTask(payload []byte, params Params) (*Task, error) {
	if params.Settings.MultiDeviceActive() && !params.Settings.IsLeaderDevice() {
		return nil, protoerr.New(protoerr.InvalidState, "csp-e2e task requires the multi-device leader")
	}
	if params.Logger == nil {
		params.Logger = applog.Nop{}
	}
	return &Task{params: params, payload: payload}, nil
}

func (t *Task) fail(err error) (*Instruction, bool, error) {
	t.ph = phaseError
	t.err = err
	t.params.Logger.Printf("csp-e2e: task failed: %v", err)
	return nil, true, err
}

func (t *Task) discardAndAck() (*Instruction, bool, error) {
	t.discarded = true
	t.shouldAck = !t.env.Flags.Has(model.FlagNoServerAcknowledgement)
	t.ph = phaseDone
	t.params.Logger.Printf("csp-e2e: discarding message from %s", t.env.Sender)
	return nil, true, nil
}

// Poll advances the task by at most one step, returning an Instruction
// for the embedder to service, or done=true once Discarded/Outcome are
// readable.
func (t *Task) Poll() (*Instruction, bool, error) {
	switch t.ph {
	case phaseError:
		return nil, true, t.err
	case phaseInit:
		return t.pollInit()
	case phaseSenderLookup:
		return t.translateLookup(t.lookup.Poll())
	case phaseContactReconcile:
		return t.pollContactReconcile()
	case phaseContactReflect, phaseMessageReflect:
		return nil, false, nil
	default:
		return nil, true, nil
	}
}

func (t *Task) pollInit() (*Instruction, bool, error) {
	env, err := model.ParseEnvelope(t.payload)
	if err != nil {
		return t.discardAndAck()
	}
	t.env = env
	if env.Receiver != t.params.UserIdentity {
		return t.discardAndAck()
	}

	nonce := envelopeNonce(env.MessageID)
	seen, err := t.params.Nonces.Contains(nonce)
	if err != nil {
		return t.fail(err)
	}
	if seen {
		return t.discardAndAck()
	}
	t.nonce = nonce

	t.lookup = contact.NewLookup(
		[]model.Identity{env.Sender},
		contact.CacheAllow,
		t.params.UserIdentity,
		t.params.WorkFlavor,
		t.params.Contacts,
		t.params.Cache,
	)
	t.ph = phaseSenderLookup
	return t.translateLookup(t.lookup.Poll())
}

func (t *Task) translateLookup(instr *contact.Instruction, done bool, err error) (*Instruction, bool, error) {
	if err != nil {
		return t.fail(err)
	}
	if !done {
		return &Instruction{DirectoryRequest: instr.DirectoryRequest, WorkRequest: instr.WorkRequest}, false, nil
	}
	return t.afterLookup()
}

// RespondDirectory feeds back a directory lookup's result. Valid only
// while Poll has surfaced a DirectoryRequest instruction.
func (t *Task) RespondDirectory(resp contact.DirectoryResponse) (*Instruction, bool, error) {
	if t.ph != phaseSenderLookup {
		return t.fail(protoerr.New(protoerr.InvalidState, "respond_directory outside sender lookup"))
	}
	return t.translateLookup(t.lookup.RespondDirectory(resp))
}

// RespondWork feeds back a work-directory enrichment result. Valid
// only while Poll has surfaced a WorkRequest instruction.
func (t *Task) RespondWork(resp contact.WorkResponse) (*Instruction, bool, error) {
	if t.ph != phaseSenderLookup {
		return t.fail(protoerr.New(protoerr.InvalidState, "respond_work outside sender lookup"))
	}
	return t.translateLookup(t.lookup.RespondWork(resp))
}

func (t *Task) afterLookup() (*Instruction, bool, error) {
	result := t.lookup.Results()[t.env.Sender]
	switch result.Kind {
	case model.ContactResultUser, model.ContactResultInvalid:
		return t.discardAndAck()
	case model.ContactResultExisting:
		c := *result.Contact
		t.senderContact = &c
		t.senderPublicKey = c.PublicKey
	case model.ContactResultNew:
		init := *result.Init
		t.senderInit = &init
		t.senderPublicKey = init.PublicKey
	default:
		return t.discardAndAck()
	}
	return t.decryptAndDecode()
}

// Discarded reports whether the message was silently dropped (failed
// decryption/decoding, blocked, replayed, or otherwise not
// actionable), valid once Poll/Respond* reports done.
func (t *Task) Discarded() bool { return t.discarded }

// ShouldAck reports whether the embedder must emit a MessageAck to
// the chat server, valid once Poll/Respond* reports done.
func (t *Task) ShouldAck() bool { return t.shouldAck }

// Outcome returns the decoded message, or nil when Discarded is true.
func (t *Task) Outcome() *Outcome { return t.outcome }
