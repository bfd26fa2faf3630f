package rendezvous

import (
	"golang.org/x/crypto/blake2b"

	"github.com/threema-ch/libthreema-go/protoerr"
)

// Role-tagged Blake2b domain-separation labels used to derive the two
// per-role authentication keys and, later, the two transport keys and
// the session-identifying RPH from the shared authentication key
// (AK) and handshake transcript material. These exact strings are a
// documented interoperability choice; see DESIGN.md.
const (
	labelRIDAK = "rid-ak"
	labelRRDAK = "rrd-ak"
	labelRIDTK = "rid-tk"
	labelRRDTK = "rrd-tk"
	labelRPH   = "rph"
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

// authKeys are the two per-role authentication keys derived once per
// rendezvous protocol from the shared 32-byte AK.
type authKeys struct {
	ridak [32]byte
	rrdak [32]byte
}

func deriveAuthKeys(ak [32]byte) (authKeys, error) {
	var keys authKeys
	var err error
	keys.ridak, err = deriveBlake2bKeyed(ak, labelRIDAK)
	if err != nil {
		return keys, err
	}
	keys.rrdak, err = deriveBlake2bKeyed(ak, labelRRDAK)
	return keys, err
}

// pathKeys are the per-path transport keys and session-identifying
// RPH, derived once a path reaches AwaitingNominate.
type pathKeys struct {
	ridtk [32]byte
	rrdtk [32]byte
	rph   [32]byte
}

func deriveTransportKeys(ak [32]byte, etkShared [32]byte, transcript []byte) (pathKeys, error) {
	var pk pathKeys
	var err error
	pk.ridtk, err = deriveBlake2bKeyed(ak, labelRIDTK, etkShared[:], transcript)
	if err != nil {
		return pk, err
	}
	pk.rrdtk, err = deriveBlake2bKeyed(ak, labelRRDTK, etkShared[:], transcript)
	if err != nil {
		return pk, err
	}
	pk.rph, err = deriveBlake2bKeyed(ak, labelRPH, etkShared[:], transcript)
	return pk, err
}
