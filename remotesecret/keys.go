package remotesecret

import (
	"golang.org/x/crypto/blake2b"

	"github.com/threema-ch/libthreema-go/model"
	"github.com/threema-ch/libthreema-go/protoerr"
	"github.com/threema-ch/libthreema-go/wire"
)

// Blake2b domain-separation labels, mirroring the keyed-derivation
// idiom rendezvous/keys.go uses for its own transport keys.
const (
	labelWorkDirAuthKey = "wrkd-authkey"
	labelRemoteSecret   = "rs-hash"
	labelRemoteSecretID = "rs-hash-identity"
)

func deriveBlake2bKeyed(key [32]byte, label string, extra ...[]byte) ([32]byte, error) {
	var out [32]byte
	h, err := blake2b.New256(key[:])
	if err != nil {
		return out, protoerr.Wrap(protoerr.InternalError, "blake2b keyed init", err)
	}
	h.Write([]byte(label))
	for _, e := range extra {
		h.Write(e)
	}
	copy(out[:], h.Sum(nil))
	return out, nil
}

// DeriveWorkDirectoryAuthKey derives the key used to solve a work
// directory authentication challenge, from an X25519 shared secret
// between the client's permanent key and the server-issued ephemeral
// public key named in the challenge.
func DeriveWorkDirectoryAuthKey(clientPrivate, serverChallengePublic [32]byte) ([32]byte, error) {
	shared, err := wire.SharedSecret(clientPrivate, serverChallengePublic)
	if err != nil {
		return [32]byte{}, protoerr.Wrap(protoerr.InternalError, "work directory auth key shared secret", err)
	}
	return deriveBlake2bKeyed(shared, labelWorkDirAuthKey)
}

// SolveAuthenticationChallenge computes the Blake2b-256 MAC response
// to a work directory authentication challenge, keyed by authKey.
func SolveAuthenticationChallenge(authKey [32]byte, challenge []byte) ([32]byte, error) {
	var out [32]byte
	h, err := blake2b.New256(authKey[:])
	if err != nil {
		return out, protoerr.Wrap(protoerr.InternalError, "challenge mac init", err)
	}
	h.Write(challenge)
	copy(out[:], h.Sum(nil))
	return out, nil
}

// SolveWorkDirectoryChallenge derives the work directory
// authentication key from clientPrivate and the server's
// challenge-issuing public key, then returns the Blake2b-256 MAC
// response over challenge. Used by the create/delete remote secret
// operations named alongside the periodic fetch in spec.md §6; the
// fetch path itself authenticates with a static
// RemoteSecretAuthenticationToken instead (see Context).
func SolveWorkDirectoryChallenge(clientPrivate, serverChallengePublic [32]byte, challenge []byte) ([32]byte, error) {
	authKey, err := DeriveWorkDirectoryAuthKey(clientPrivate, serverChallengePublic)
	if err != nil {
		return [32]byte{}, err
	}
	return SolveAuthenticationChallenge(authKey, challenge)
}

// DeriveHash computes the RemoteSecretHash a fetched RemoteSecret must
// match against RemoteSecretVerifier's expectation.
func (s RemoteSecret) DeriveHash() (RemoteSecretHash, error) {
	return deriveBlake2bKeyed(s, labelRemoteSecret)
}

// DeriveForIdentity ties a RemoteSecretHash to a specific identity,
// per the iOS-iCloud-backup restore protection described in
// RemoteSecretVerifier's RemoteSecretHashForIdentity variant.
func (h RemoteSecretHash) DeriveForIdentity(identity model.Identity) (RemoteSecretHashForIdentity, error) {
	return deriveBlake2bKeyed(h, labelRemoteSecretID, identity[:])
}
