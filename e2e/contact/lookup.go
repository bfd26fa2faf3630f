// Package contact implements the three contact subtasks named in
// spec.md §4.6 (Lookup, Create, Update) as instruction-loop fragments
// driven the same way as csp.Protocol and rendezvous.Path: poll() /
// respond(), never blocking on the HTTPS round-trips it delegates to
// the embedder.
package contact

import (
	"github.com/threema-ch/libthreema-go/model"
	"github.com/threema-ch/libthreema-go/protoerr"
	"github.com/threema-ch/libthreema-go/provider"
)

// CachePolicy controls whether Lookup may answer from its directory
// cache instead of issuing a network round-trip.
type CachePolicy uint8

const (
	CacheAllow CachePolicy = iota
	CacheBypass
)

// DirectoryEntry is one identity's result from a directory
// `request_identities` call.
type DirectoryEntry struct {
	Exists      bool
	PublicKey   model.X25519PublicKey
	FeatureMask model.FeatureMask
}

// WorkEntry is one identity's amendment from a work-directory
// `identities` call.
type WorkEntry struct {
	FirstName string
	LastName  string
}

// DirectoryResponse answers an Instruction's DirectoryRequest.
type DirectoryResponse struct {
	Entries map[model.Identity]DirectoryEntry
}

// WorkResponse answers an Instruction's WorkRequest.
type WorkResponse struct {
	Entries map[model.Identity]WorkEntry
}

// Cache is the in-memory directory-lookup cache Lookup consults when
// CachePolicy is CacheAllow, distinct from provider.ContactProvider
// (which holds the user's persisted contact list). A process-lifetime
// *DirectoryCache satisfies this.
type Cache interface {
	Get(identity model.Identity) (model.ContactResult, bool)
	Set(identity model.Identity, result model.ContactResult)
}

// Instruction is the work a Lookup wants the embedder to perform next.
type Instruction struct {
	DirectoryRequest []model.Identity
	WorkRequest      []model.Identity
}

type lookupState uint8

const (
	lookupInit lookupState = iota
	lookupAwaitingDirectory
	lookupAwaitingWork
	lookupDone
	lookupError
)

// Lookup resolves a batch of identities to ContactResults per
// spec.md §4.6.
type Lookup struct {
	userIdentity model.Identity
	workFlavor   bool
	cachePolicy  CachePolicy
	contacts     provider.ContactProvider
	cache        Cache

	pending []model.Identity
	results map[model.Identity]model.ContactResult
	pubKeys map[model.Identity]model.X25519PublicKey

	state lookupState
	err   error
}

// NewLookup constructs a Lookup for the given identities.
// userIdentity is always resolved to ContactResultUser without a
// round-trip; workFlavor enables the work-directory enrichment step.
func NewLookup(identities []model.Identity, cachePolicy CachePolicy, userIdentity model.Identity, workFlavor bool, contacts provider.ContactProvider, cache Cache) *Lookup {
	pending := make([]model.Identity, 0, len(identities))
	pending = append(pending, identities...)
	return &Lookup{
		userIdentity: userIdentity,
		workFlavor:   workFlavor,
		cachePolicy:  cachePolicy,
		contacts:     contacts,
		cache:        cache,
		pending:      pending,
		results:      make(map[model.Identity]model.ContactResult),
		pubKeys:      make(map[model.Identity]model.X25519PublicKey),
	}
}

func (l *Lookup) fail(err error) (*Instruction, bool, error) {
	l.state = lookupError
	l.err = err
	return nil, true, err
}

// Poll advances the lookup by at most one step, returning either an
// Instruction for the embedder to service, or done=true once Results
// is ready to read.
func (l *Lookup) Poll() (*Instruction, bool, error) {
	switch l.state {
	case lookupError:
		return nil, true, l.err
	case lookupInit:
		return l.pollInit()
	case lookupAwaitingDirectory, lookupAwaitingWork:
		return nil, false, nil
	default:
		return nil, true, nil
	}
}

func (l *Lookup) pollInit() (*Instruction, bool, error) {
	var unresolved []model.Identity
	for _, id := range l.pending {
		if id == l.userIdentity {
			l.results[id] = model.ContactResult{Kind: model.ContactResultUser, Identity: id}
			continue
		}
		if c, ok, err := l.contacts.Get(id); err != nil {
			return l.fail(err)
		} else if ok {
			cc := c
			l.results[id] = model.ContactResult{Kind: model.ContactResultExisting, Contact: &cc, Identity: id}
			continue
		}
		if l.cachePolicy == CacheAllow {
			if cached, ok := l.cache.Get(id); ok {
				l.results[id] = cached
				continue
			}
		}
		unresolved = append(unresolved, id)
	}
	if len(unresolved) == 0 {
		return l.afterDirectory()
	}
	l.state = lookupAwaitingDirectory
	l.pending = unresolved
	return &Instruction{DirectoryRequest: unresolved}, false, nil
}

// RespondDirectory feeds back a directory request's results. Valid
// only after a Poll returned an Instruction with DirectoryRequest set.
func (l *Lookup) RespondDirectory(resp DirectoryResponse) (*Instruction, bool, error) {
	if l.state != lookupAwaitingDirectory {
		return l.fail(protoerr.New(protoerr.InvalidState, "respond_directory outside AwaitingDirectory"))
	}
	for _, id := range l.pending {
		entry, ok := resp.Entries[id]
		var result model.ContactResult
		if !ok || !entry.Exists {
			result = model.ContactResult{Kind: model.ContactResultInvalid, Identity: id}
		} else {
			l.pubKeys[id] = entry.PublicKey
			result = model.ContactResult{
				Kind:     model.ContactResultNew,
				Identity: id,
				Init: &model.ContactInit{
					Identity:          id,
					PublicKey:         entry.PublicKey,
					AcquaintanceLevel: model.AcquaintanceGroupOrDeleted,
				},
			}
		}
		l.results[id] = result
		if l.cachePolicy == CacheAllow {
			l.cache.Set(id, result)
		}
	}
	return l.afterDirectory()
}

func (l *Lookup) afterDirectory() (*Instruction, bool, error) {
	if !l.workFlavor {
		l.state = lookupDone
		return nil, true, nil
	}
	var enrichable []model.Identity
	for id, r := range l.results {
		if r.Kind == model.ContactResultNew || r.Kind == model.ContactResultExisting {
			enrichable = append(enrichable, id)
		}
	}
	if len(enrichable) == 0 {
		l.state = lookupDone
		return nil, true, nil
	}
	l.state = lookupAwaitingWork
	l.pending = enrichable
	return &Instruction{WorkRequest: enrichable}, false, nil
}

// RespondWork feeds back a work-directory request's results. Valid
// only after a Poll/RespondDirectory returned an Instruction with
// WorkRequest set.
func (l *Lookup) RespondWork(resp WorkResponse) (*Instruction, bool, error) {
	if l.state != lookupAwaitingWork {
		return l.fail(protoerr.New(protoerr.InvalidState, "respond_work outside AwaitingWork"))
	}
	for _, id := range l.pending {
		entry, ok := resp.Entries[id]
		if !ok {
			continue
		}
		r := l.results[id]
		switch r.Kind {
		case model.ContactResultNew:
			init := *r.Init
			init.FirstName = entry.FirstName
			init.LastName = entry.LastName
			init.WorkVerificationLevel = model.WorkVerificationVerified
			r.Init = &init
		case model.ContactResultExisting:
			cc := *r.Contact
			cc.FirstName = entry.FirstName
			cc.LastName = entry.LastName
			cc.WorkVerificationLevel = model.WorkVerificationVerified
			r.Contact = &cc
		}
		l.results[id] = r
	}
	l.state = lookupDone
	return nil, true, nil
}

// Results returns the resolved ContactResult for every identity
// passed to NewLookup, valid once Poll/RespondDirectory/RespondWork
// has reported done.
func (l *Lookup) Results() map[model.Identity]model.ContactResult {
	return l.results
}
