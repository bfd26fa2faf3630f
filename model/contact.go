package model

// VerificationLevel reflects how a contact's public key was confirmed.
type VerificationLevel uint8

const (
	VerificationUnverified VerificationLevel = iota
	VerificationServerVerified
	VerificationFullyVerified
)

// WorkVerificationLevel mirrors VerificationLevel for Work-flavour builds.
type WorkVerificationLevel uint8

const (
	WorkVerificationNone WorkVerificationLevel = iota
	WorkVerificationVerified
)

// IdentityType distinguishes regular users from predefined or work contacts.
type IdentityType uint8

const (
	IdentityTypeRegular IdentityType = iota
	IdentityTypeWork
)

// AcquaintanceLevel records whether a contact is user-visible.
type AcquaintanceLevel uint8

const (
	// AcquaintanceDirect means the contact is visible in the user's contact list.
	AcquaintanceDirect AcquaintanceLevel = iota
	// AcquaintanceGroupOrDeleted means the contact was only ever seen via a
	// group, or has been deleted from the user's list.
	AcquaintanceGroupOrDeleted
)

// ActivityState tracks whether the identity is still usable.
type ActivityState uint8

const (
	ActivityActive ActivityState = iota
	ActivityInactive
	ActivityInvalid
)

// SyncState tracks reconciliation against the directory/work server.
type SyncState uint8

const (
	SyncStateInitial SyncState = iota
	SyncStateImported
	SyncStateCustom
)

// ConversationCategory is a per-policy override of conversation handling.
type ConversationCategory uint8

const (
	ConversationCategoryDefault ConversationCategory = iota
	ConversationCategoryProtected
)

// ConversationVisibility is a per-policy override of conversation list placement.
type ConversationVisibility uint8

const (
	ConversationVisibilityShow ConversationVisibility = iota
	ConversationVisibilityArchived
	ConversationVisibilityPinned
)

// FeatureMask is a 64-bit bit field of supported message features.
type FeatureMask uint64

// PolicyOverride is a three-valued per-contact override of a global policy.
type PolicyOverride uint8

const (
	PolicyOverrideDefault PolicyOverride = iota
	PolicyOverrideAllow
	PolicyOverrideDeny
)

// X25519PublicKeyLen is the length of a Curve25519 public key.
const X25519PublicKeyLen = 32

// X25519PublicKey is a contact's permanent Curve25519 public key.
type X25519PublicKey [X25519PublicKeyLen]byte

// Contact is the stored representation of a Threema identity known to
// the local user, as described in spec.md §3.
type Contact struct {
	Identity              Identity
	PublicKey             X25519PublicKey
	CreatedAtMs           int64
	FirstName             string
	LastName              string
	Nickname              string
	VerificationLevel     VerificationLevel
	WorkVerificationLevel WorkVerificationLevel
	IdentityType          IdentityType
	AcquaintanceLevel     AcquaintanceLevel
	ActivityState         ActivityState
	FeatureMask           FeatureMask
	SyncState             SyncState

	// NotificationPolicyOverride, ReadReceiptPolicyOverride,
	// TypingIndicatorPolicyOverride, and CallPolicyOverride are the four
	// optional per-policy overrides named in spec.md §3.
	NotificationPolicyOverride    PolicyOverride
	ReadReceiptPolicyOverride     PolicyOverride
	TypingIndicatorPolicyOverride PolicyOverride
	CallPolicyOverride            PolicyOverride

	ConversationCategory   ConversationCategory
	ConversationVisibility ConversationVisibility

	// ExplicitlyBlocked and IsSpecialPredefined drive the blocking policy
	// in spec.md §4.4 ("Blocking").
	ExplicitlyBlocked   bool
	IsSpecialPredefined bool
}

// ContactInit is the minimal field set needed to create a new Contact.
// FirstName, LastName, and WorkVerificationLevel are populated only
// when a work-directory lookup amended the identity, per spec.md
// §4.6 "Lookup".
type ContactInit struct {
	Identity              Identity
	PublicKey             X25519PublicKey
	CreatedAtMs           int64
	AcquaintanceLevel     AcquaintanceLevel
	Nickname              string
	FirstName             string
	LastName              string
	WorkVerificationLevel WorkVerificationLevel
}

// ContactUpdate carries only the fields that should change: Nickname
// is a Delta, the pointer fields are applied only when non-nil, and
// AcquaintanceLevelBump is applied only when true.
type ContactUpdate struct {
	Identity Identity

	Nickname Delta[string]

	// AcquaintanceLevelBump, when true, raises AcquaintanceLevel to
	// AcquaintanceDirect. It never lowers it.
	AcquaintanceLevelBump bool

	VerificationLevel     *VerificationLevel
	WorkVerificationLevel *WorkVerificationLevel
	FirstName             *string
	LastName              *string
}

// IsEmpty reports whether the update carries no changes at all.
func (u ContactUpdate) IsEmpty() bool {
	return u.Nickname.Kind == DeltaUnchanged &&
		!u.AcquaintanceLevelBump &&
		u.VerificationLevel == nil &&
		u.WorkVerificationLevel == nil &&
		u.FirstName == nil &&
		u.LastName == nil
}

// ContactResultKind tags the outcome of a contact lookup, per spec.md §4.6.
type ContactResultKind uint8

const (
	// ContactResultUser is returned when the looked-up identity is the
	// user's own identity.
	ContactResultUser ContactResultKind = iota
	// ContactResultInvalid is returned for identities the directory
	// reports as revoked or nonexistent.
	ContactResultInvalid
	// ContactResultExisting is returned for identities already present
	// in local storage.
	ContactResultExisting
	// ContactResultNew is returned for identities resolved via the
	// directory but not yet stored locally.
	ContactResultNew
)

// ContactResult is the outcome of looking up one identity.
type ContactResult struct {
	Kind     ContactResultKind
	Contact  *Contact     // set for ContactResultExisting
	Init     *ContactInit // set for ContactResultNew
	Identity Identity
}
