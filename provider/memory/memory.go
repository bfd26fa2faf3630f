// Package memory implements provider.ContactProvider,
// provider.ConversationProvider, and provider.NonceStorage entirely in
// memory, mutex-guarded the same way the teacher guards its own
// in-memory counter state (infrastructure/cryptography/chacha20's
// StrictCounter/Sliding64), per spec.md §5 and §9's "interior
// mutability with shared handles" reference implementation note.
package memory

import (
	"sync"

	"github.com/threema-ch/libthreema-go/model"
	"github.com/threema-ch/libthreema-go/protoerr"
)

// ContactStore is a mutex-guarded in-memory provider.ContactProvider.
type ContactStore struct {
	mu       sync.Mutex
	contacts map[model.Identity]model.Contact
}

// NewContactStore returns an empty ContactStore.
func NewContactStore() *ContactStore {
	return &ContactStore{contacts: make(map[model.Identity]model.Contact)}
}

func (s *ContactStore) Get(identity model.Identity) (model.Contact, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[identity]
	return c, ok, nil
}

func (s *ContactStore) Add(init model.ContactInit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.contacts[init.Identity]; exists {
		return protoerr.New(protoerr.InvalidState, "contact already exists")
	}
	s.contacts[init.Identity] = model.Contact{
		Identity:              init.Identity,
		PublicKey:             init.PublicKey,
		CreatedAtMs:           init.CreatedAtMs,
		AcquaintanceLevel:     init.AcquaintanceLevel,
		Nickname:              init.Nickname,
		FirstName:             init.FirstName,
		LastName:              init.LastName,
		WorkVerificationLevel: init.WorkVerificationLevel,
	}
	return nil
}

func (s *ContactStore) Update(update model.ContactUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[update.Identity]
	if !ok {
		return protoerr.New(protoerr.InvalidState, "contact does not exist")
	}
	switch update.Nickname.Kind {
	case model.DeltaUpdate:
		c.Nickname = update.Nickname.Value
	case model.DeltaRemove:
		c.Nickname = ""
	}
	if update.AcquaintanceLevelBump {
		c.AcquaintanceLevel = model.AcquaintanceDirect
	}
	if update.VerificationLevel != nil {
		c.VerificationLevel = *update.VerificationLevel
	}
	if update.WorkVerificationLevel != nil {
		c.WorkVerificationLevel = *update.WorkVerificationLevel
	}
	if update.FirstName != nil {
		c.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		c.LastName = *update.LastName
	}
	s.contacts[update.Identity] = c
	return nil
}

type messageKey struct {
	sender model.Identity
	id     model.MessageID
}

// ConversationStore is a mutex-guarded in-memory
// provider.ConversationProvider.
type ConversationStore struct {
	mu      sync.Mutex
	seen    map[messageKey]struct{}
	groups  map[model.Identity]struct{}
}

// NewConversationStore returns an empty ConversationStore.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		seen:   make(map[messageKey]struct{}),
		groups: make(map[model.Identity]struct{}),
	}
}

func (s *ConversationStore) HasSeenMessageID(sender model.Identity, id model.MessageID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[messageKey{sender, id}]
	return ok, nil
}

func (s *ConversationStore) MarkMessageIDSeen(sender model.Identity, id model.MessageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[messageKey{sender, id}] = struct{}{}
	return nil
}

func (s *ConversationStore) SharesActiveGroupWith(identity model.Identity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.groups[identity]
	return ok, nil
}

// SetSharesActiveGroup is a test/setup hook recording that the user
// shares an active group with identity.
func (s *ConversationStore) SetSharesActiveGroup(identity model.Identity, shares bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if shares {
		s.groups[identity] = struct{}{}
	} else {
		delete(s.groups, identity)
	}
}

// NonceSet is a mutex-guarded in-memory provider.NonceStorage.
type NonceSet struct {
	mu    sync.Mutex
	seen  map[model.Nonce]struct{}
}

// NewNonceSet returns an empty NonceSet.
func NewNonceSet() *NonceSet {
	return &NonceSet{seen: make(map[model.Nonce]struct{})}
}

func (s *NonceSet) Contains(nonce model.Nonce) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[nonce]
	return ok, nil
}

func (s *NonceSet) Insert(nonce model.Nonce) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[nonce] = struct{}{}
	return nil
}

// Settings is a plain mutable provider.SettingsProvider for tests;
// its fields are read and written under lock to stay race-safe when a test
// mutates it from a different goroutine than the one driving the
// pipeline.
type Settings struct {
	mu                sync.Mutex
	multiDeviceActive bool
	isLeaderDevice    bool
	blockUnknown      bool
}

// NewSettings returns a Settings with multi-device inactive, leader
// true, and block-unknown off — the common single-device default.
func NewSettings() *Settings {
	return &Settings{isLeaderDevice: true}
}

func (s *Settings) SetMultiDeviceActive(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.multiDeviceActive = v
}

func (s *Settings) SetIsLeaderDevice(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isLeaderDevice = v
}

func (s *Settings) SetBlockUnknownContacts(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockUnknown = v
}

func (s *Settings) MultiDeviceActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.multiDeviceActive
}

func (s *Settings) IsLeaderDevice() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLeaderDevice
}

func (s *Settings) BlockUnknownContacts() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockUnknown
}

// DirectoryCache is a mutex-guarded in-memory directory-lookup cache
// satisfying e2e/contact's Cache interface structurally (Get/Set of
// model.ContactResult), kept separate from ContactStore because it
// caches directory-resolution outcomes rather than the user's
// persisted contact list, per spec.md §4.6 "Lookup".
type DirectoryCache struct {
	mu      sync.Mutex
	entries map[model.Identity]model.ContactResult
}

// NewDirectoryCache returns an empty DirectoryCache.
func NewDirectoryCache() *DirectoryCache {
	return &DirectoryCache{entries: make(map[model.Identity]model.ContactResult)}
}

func (c *DirectoryCache) Get(identity model.Identity) (model.ContactResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[identity]
	return r, ok
}

func (c *DirectoryCache) Set(identity model.Identity, result model.ContactResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[identity] = result
}
