// Package remotesecret implements the remote secret monitoring
// protocol named in spec.md §6 ("Directory HTTPS endpoints"): a
// client periodically fetches a secret from the Work server that
// unlocks local encrypted storage, so that a Work administrator can
// remotely block or remove access to a lost device's data.
//
// Monitor is a non-blocking instruction-loop state machine driven the
// same way as csp.Protocol, rendezvous.Path, and e2e.Task: Poll
// returns the next HTTPS round-trip (or timer) for the caller to run,
// Respond feeds back its result, never blocking on I/O itself.
package remotesecret

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/threema-ch/libthreema-go/applog"
	"github.com/threema-ch/libthreema-go/internal/secutil"
	"github.com/threema-ch/libthreema-go/model"
	"github.com/threema-ch/libthreema-go/protoerr"
)

// RemoteSecret unlocks the locally encrypted storage once fetched.
type RemoteSecret [32]byte

// RemoteSecretAuthenticationToken authenticates the periodic fetch.
// Unlike the create/delete work-directory operations, fetching does
// not use the Blake2b challenge-response in keys.go: the token alone
// is presented as a static bearer credential.
type RemoteSecretAuthenticationToken [32]byte

// RemoteSecretHash commits to a RemoteSecret without revealing it,
// the form a Monitor's caller supplies as the expected value.
type RemoteSecretHash [32]byte

// RemoteSecretHashForIdentity ties a RemoteSecretHash to a specific
// user identity; see Verifier's iOS-iCloud-backup note.
type RemoteSecretHashForIdentity [32]byte

// Verifier checks a fetched RemoteSecret against the caller's
// expectation, in one of two ways. Build one with NewHashVerifier or
// NewHashForIdentityVerifier.
type Verifier struct {
	hash         *RemoteSecretHash
	userIdentity model.Identity
	hashForID    *RemoteSecretHashForIdentity
}

// NewHashVerifier builds a Verifier that only checks the fetched
// RemoteSecret's hash against expected.
func NewHashVerifier(expected RemoteSecretHash) Verifier {
	return Verifier{hash: &expected}
}

// NewHashForIdentityVerifier builds a Verifier that additionally ties
// the match to userIdentity. This variant exists for the iOS client:
// an iCloud backup carries the RemoteSecretAuthenticationToken but
// not the user's identity, so tying the hash to the identity stops a
// restore under a different identity from unlocking storage it
// shouldn't.
func NewHashForIdentityVerifier(userIdentity model.Identity, expected RemoteSecretHashForIdentity) Verifier {
	return Verifier{userIdentity: userIdentity, hashForID: &expected}
}

func (v Verifier) verify(actual RemoteSecretHash) error {
	if v.hash != nil {
		if actual != *v.hash {
			return protoerr.New(protoerr.Mismatch, "remote secret differs from the one we expect")
		}
		return nil
	}
	actualForID, err := actual.DeriveForIdentity(v.userIdentity)
	if err != nil {
		return protoerr.Wrap(protoerr.InternalError, "derive remote secret hash for identity", err)
	}
	if actualForID != *v.hashForID {
		return protoerr.New(protoerr.Mismatch, "remote secret differs from the one we expect")
	}
	return nil
}

// Context carries the fixed parameters a Monitor needs for the
// lifetime of the protocol.
type Context struct {
	// WorkServerURL is the base URL of the Work server's remote
	// secret endpoint, e.g. an onprem.OPPF Work endpoint URL.
	WorkServerURL string
	// RemoteSecretAuthenticationToken authenticates the periodic fetch.
	RemoteSecretAuthenticationToken RemoteSecretAuthenticationToken
	// Verifier checks the fetched secret against the caller's expectation.
	Verifier Verifier
	// Logger receives diagnostic lines for schedule overruns and
	// retries. Nil defaults to applog.Nop.
	Logger applog.Logger
}

// Request is the HTTPS round-trip a caller must run and feed back via
// Respond. The core never performs the request itself; it only
// describes it, per spec.md's "HTTPS client transport (abstract)"
// scope.
type Request struct {
	Method string
	URL    string
	Body   []byte
}

// Response is the caller-supplied result of a Request. Err carries a
// transport-level failure (the request could not be completed at
// all); otherwise Status and Body carry the HTTPS response.
type Response struct {
	Status int
	Body   []byte
	Err    error
}

// Schedule asks the caller to set a monotonic timer and poll again
// once it fires. RemoteSecret is non-nil exactly once in the
// lifetime of a Monitor: on the first Locked-to-Unlocked transition,
// at which point storage may be unlocked.
type Schedule struct {
	Timeout      time.Duration
	RemoteSecret *RemoteSecret
}

// Instruction is the result of one Poll call: exactly one of Request
// or Schedule is non-nil.
type Instruction struct {
	Request  *Request
	Schedule *Schedule
}

const (
	// timeoutGracePeriod pads every deadline the monitor tracks so
	// that a caller's own request timeout always fires first.
	timeoutGracePeriod = 5 * time.Second
	// requestTimeout bounds a single remote secret fetch round-trip.
	requestTimeout = 10 * time.Second
	// retryIntervalWhileLocked is used before storage has ever been
	// unlocked, when there is no learned check interval to fall back to.
	retryIntervalWhileLocked = 10 * time.Second
	// nFailedAttemptsMaxWhileLocked bounds retries before storage has
	// ever been unlocked.
	nFailedAttemptsMaxWhileLocked uint16 = 5

	minCheckIntervalS = 10
	maxCheckIntervalS = 86400

	remoteSecretPath = "/identities/remote_secret"
)

func clampCheckInterval(checkIntervalS uint32) time.Duration {
	switch {
	case checkIntervalS < minCheckIntervalS:
		checkIntervalS = minCheckIntervalS
	case checkIntervalS > maxCheckIntervalS:
		checkIntervalS = maxCheckIntervalS
	}
	return time.Duration(checkIntervalS) * time.Second
}

// storageState tracks whether local storage is still waiting on its
// first successful fetch (Locked) or has already been unlocked once,
// with the server-supplied retry parameters that then apply.
type storageState struct {
	locked             bool
	checkInterval      time.Duration
	nFailedAttemptsMax uint16
}

func (s storageState) failedAttemptsMax() uint16 {
	if s.locked {
		return nFailedAttemptsMaxWhileLocked
	}
	return s.nFailedAttemptsMax
}

func (s storageState) retryInterval() time.Duration {
	if s.locked {
		return retryIntervalWhileLocked
	}
	return s.checkInterval
}

type phase uint8

const (
	phaseFetch phase = iota
	phaseVerify
	phaseError
)

// Monitor is the remote secret monitoring protocol state machine. The
// expected usage loop is: construct with New, then repeatedly Poll
// and Respond until the embedder tears the protocol down or Poll
// returns an error (which latches the machine and requires the
// caller to lock storage and purge keys from memory immediately).
type Monitor struct {
	ctx   Context
	phase phase
	err   error

	storage         storageState
	nFailedAttempts uint16
	scheduledAt     time.Time
	deadline        time.Duration

	pendingResponse *Response
}

// New constructs a Monitor that starts by fetching the remote secret
// with storage locked.
func New(ctx Context) *Monitor {
	if ctx.Logger == nil {
		ctx.Logger = applog.Nop{}
	}
	return &Monitor{
		ctx:         ctx,
		phase:       phaseFetch,
		storage:     storageState{locked: true},
		scheduledAt: time.Now(),
		deadline:    timeoutGracePeriod,
	}
}

// fail latches the monitor into its terminal error state. Per the
// protocol's contract, any error requires the caller to lock storage
// and purge keys from memory immediately; the monitor does the same
// with the authentication token it was holding.
func (m *Monitor) fail(err error) (*Instruction, error) {
	m.phase = phaseError
	m.err = err
	secutil.ZeroBytes(m.ctx.RemoteSecretAuthenticationToken[:])
	return nil, err
}

func (m *Monitor) warnIfOverdue(what string) {
	if elapsed := time.Since(m.scheduledAt); elapsed > m.deadline {
		m.ctx.Logger.Printf("remotesecret: %s overran its deadline by %s", what, elapsed-m.deadline)
	}
}

// Poll advances the monitor by at most one step. Any error latches
// the machine into an error state; subsequent Poll calls return the
// same error.
func (m *Monitor) Poll() (*Instruction, error) {
	switch m.phase {
	case phaseError:
		return nil, m.err
	case phaseFetch:
		return m.pollFetch()
	case phaseVerify:
		return m.pollVerify()
	default:
		return nil, nil
	}
}

// Respond feeds back the result of the Request the most recent Poll
// returned. Valid only while Poll is waiting on it.
func (m *Monitor) Respond(resp Response) error {
	if m.phase != phaseVerify {
		return protoerr.New(protoerr.InvalidState, "respond called outside the awaiting-response state")
	}
	m.pendingResponse = &resp
	return nil
}

type fetchRequestWire struct {
	Token string `json:"secretAuthenticationToken"`
}

func (m *Monitor) pollFetch() (*Instruction, error) {
	m.warnIfOverdue("remote secret fetch")

	body, err := json.Marshal(fetchRequestWire{
		Token: base64.StdEncoding.EncodeToString(m.ctx.RemoteSecretAuthenticationToken[:]),
	})
	if err != nil {
		return m.fail(protoerr.Wrap(protoerr.InternalError, "encode remote secret fetch request", err))
	}

	m.phase = phaseVerify
	m.scheduledAt = time.Now()
	m.deadline = requestTimeout + timeoutGracePeriod

	return &Instruction{Request: &Request{
		Method: "POST",
		URL:    m.ctx.WorkServerURL + remoteSecretPath,
		Body:   body,
	}}, nil
}

type fetchResponseWire struct {
	Secret           string `json:"secret"`
	CheckIntervalS   uint32 `json:"checkIntervalS"`
	NMissedChecksMax uint16 `json:"nMissedChecksMax"`
}

func (m *Monitor) pollVerify() (*Instruction, error) {
	resp := m.pendingResponse
	if resp == nil {
		return m.fail(protoerr.New(protoerr.InvalidState, "poll called in awaiting-response state without a prior respond"))
	}
	m.pendingResponse = nil
	m.warnIfOverdue("remote secret fetch result")

	switch {
	case resp.Err != nil:
		return m.retryOrTimeout(protoerr.Wrap(protoerr.NetworkError, "remote secret fetch", resp.Err))
	case resp.Status == 403:
		return m.fail(protoerr.New(protoerr.Blocked, "access to remote secret prohibited by administrator"))
	case resp.Status == 404:
		return m.fail(protoerr.New(protoerr.NotFound, "remote secret could not be found"))
	case resp.Status != 200 && resp.Status != 204:
		return m.retryOrTimeout(protoerr.New(protoerr.ServerError, fmt.Sprintf("unexpected status %d", resp.Status)))
	}

	var wire fetchResponseWire
	if err := json.Unmarshal(resp.Body, &wire); err != nil {
		return m.retryOrTimeout(protoerr.Wrap(protoerr.ServerError, "decode remote secret fetch response", err))
	}
	raw, err := base64.StdEncoding.DecodeString(wire.Secret)
	if err != nil || len(raw) != len(RemoteSecret{}) {
		return m.retryOrTimeout(protoerr.New(protoerr.ServerError, "remote secret field malformed"))
	}
	var secret RemoteSecret
	copy(secret[:], raw)

	actualHash, err := secret.DeriveHash()
	if err != nil {
		return m.fail(protoerr.Wrap(protoerr.InternalError, "derive remote secret hash", err))
	}
	if err := m.ctx.Verifier.verify(actualHash); err != nil {
		return m.fail(err)
	}

	wasLocked := m.storage.locked
	checkInterval := clampCheckInterval(wire.CheckIntervalS)
	m.storage = storageState{checkInterval: checkInterval, nFailedAttemptsMax: wire.NMissedChecksMax}
	m.nFailedAttempts = 0
	m.phase = phaseFetch
	m.scheduledAt = time.Now()
	m.deadline = checkInterval + timeoutGracePeriod

	m.ctx.Logger.Printf("remotesecret: fetch succeeded, refreshing in %s", checkInterval)

	schedule := &Schedule{Timeout: checkInterval}
	if wasLocked {
		s := secret
		schedule.RemoteSecret = &s
	}
	return &Instruction{Schedule: schedule}, nil
}

// retryOrTimeout is the Poll path for a failure that isn't
// immediately terminal (anything but Blocked/NotFound/a verifier
// mismatch): retry up to the storage state's failed-attempts bound,
// then latch into a timeout error carrying cause.
func (m *Monitor) retryOrTimeout(cause error) (*Instruction, error) {
	if m.nFailedAttempts >= m.storage.failedAttemptsMax() {
		return m.fail(protoerr.Wrap(protoerr.NetworkError, "remote secret monitor timed out", cause))
	}
	m.nFailedAttempts++
	retryIn := m.storage.retryInterval()

	m.ctx.Logger.Printf("remotesecret: fetch failed (%v), retrying in %s", cause, retryIn)

	m.phase = phaseFetch
	m.scheduledAt = time.Now()
	m.deadline = retryIn + timeoutGracePeriod
	return &Instruction{Schedule: &Schedule{Timeout: retryIn}}, nil
}
