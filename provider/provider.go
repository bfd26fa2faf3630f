// Package provider declares the storage and policy collaborators the
// embedding application injects into the protocol core, per spec.md
// §4.6 and §9 ("providers are injected at construction"). The core
// never implements persistence itself; provider/memory ships a
// reference in-memory implementation for tests and simple embedders.
package provider

import "github.com/threema-ch/libthreema-go/model"

// ContactProvider is the embedder's contact store.
type ContactProvider interface {
	// Get returns the stored contact for identity, or ok=false if none
	// is known.
	Get(identity model.Identity) (contact model.Contact, ok bool, err error)

	// Add stores a newly created contact. It must fail with
	// protoerr.InvalidState if a contact for the same identity already
	// exists.
	Add(init model.ContactInit) error

	// Update applies a ContactUpdate to an existing contact. It must
	// fail with protoerr.InvalidState if no contact for the identity
	// exists.
	Update(update model.ContactUpdate) error
}

// ConversationProvider tracks per-conversation state needed by the
// incoming-message pipeline: replay protection on (sender,
// message-id) pairs, and group-membership facts used by the blocking
// policy.
type ConversationProvider interface {
	// HasSeenMessageID reports whether (sender, id) was already marked
	// processed, per spec.md §4.4 "Divergence checks".
	HasSeenMessageID(sender model.Identity, id model.MessageID) (bool, error)

	// MarkMessageIDSeen records (sender, id) as processed. Per spec.md
	// §5, callers must only do this after all side effects of
	// accepting the message have succeeded.
	MarkMessageIDSeen(sender model.Identity, id model.MessageID) error

	// SharesActiveGroupWith reports whether the user shares any active
	// group with identity, used by the "block-unknown" policy in
	// spec.md §4.4.
	SharesActiveGroupWith(identity model.Identity) (bool, error)
}

// NonceStorage is a single replay-protection nonce set. The embedder
// constructs two independent instances, one for CSP-E2E and one for
// device-to-device traffic, per spec.md §3.
type NonceStorage interface {
	Contains(nonce model.Nonce) (bool, error)
	Insert(nonce model.Nonce) error
}

// PushShortcutSink receives a web-session-resume payload forwarded
// from the push gateway identity (`*3MAPUSH`), per spec.md §4.4
// "Special sender". A nil sink simply drops the payload after ack.
type PushShortcutSink interface {
	HandleWebSessionResume(payload []byte)
}

// SettingsProvider surfaces the small set of deployment and
// per-device policy facts the incoming-message pipeline consults.
type SettingsProvider interface {
	// MultiDeviceActive reports whether multi-device is enabled for
	// this user.
	MultiDeviceActive() bool
	// IsLeaderDevice reports whether this device is the multi-device
	// leader; only the leader processes incoming CSP-E2E messages.
	IsLeaderDevice() bool
	// BlockUnknownContacts reports the user's "block unknown" policy
	// setting, consulted by the blocking policy in spec.md §4.4.
	BlockUnknownContacts() bool
}
