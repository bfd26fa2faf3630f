package rendezvous

import (
	"github.com/threema-ch/libthreema-go/aeadcodec"
	"github.com/threema-ch/libthreema-go/model"
	"github.com/threema-ch/libthreema-go/protoerr"
	"github.com/threema-ch/libthreema-go/wire/seqcookie"
)

// sealFrame seals plaintext under key using a nonce built from a
// direction-local monotonic sequence number, the same cookie||counter
// construction csp uses, but with an all-zero cookie half since a
// rendezvous path's key material is already unique per direction.
func sealFrame(key [32]byte, seq uint64, plaintext []byte) []byte {
	var zeroCookie model.Cookie
	nonce := seqcookie.Nonce(zeroCookie, seq)
	enc := aeadcodec.NewXSalsa20Poly1305(key, [24]byte(nonce))
	ct := append([]byte(nil), plaintext...)
	enc.Encrypt(ct)
	tag := enc.Finalize()
	return append(ct, tag[:]...)
}

func openFrame(key [32]byte, seq uint64, boxed []byte) ([]byte, error) {
	if len(boxed) < aeadcodec.TagLen {
		return nil, protoerr.New(protoerr.DecodingFailed, "rendezvous frame shorter than tag")
	}
	var zeroCookie model.Cookie
	nonce := seqcookie.Nonce(zeroCookie, seq)
	ctLen := len(boxed) - aeadcodec.TagLen
	ct := append([]byte(nil), boxed[:ctLen]...)
	var tag [aeadcodec.TagLen]byte
	copy(tag[:], boxed[ctLen:])

	dec := aeadcodec.NewXSalsa20Poly1305(key, [24]byte(nonce))
	dec.Decrypt(ct)
	if err := dec.FinalizeVerify(tag); err != nil {
		return nil, err
	}
	return ct, nil
}
