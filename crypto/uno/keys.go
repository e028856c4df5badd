package uno

import (
	"encoding/binary"
	"fmt"

	"github.com/tos-network/ctprivacy/crypto/group"
)

// maxDeriveAttempts bounds the resampling loop; hitting a zero scalar even once
// has negligible probability.
const maxDeriveAttempts = 16

// DeriveEncryptionKeypair deterministically maps an account signing secret to
// its ElGamal encryption key pair. The same secret always yields the same key
// pair, and the derivation is domain-separated from every other use of the
// signing secret.
func DeriveEncryptionKeypair(signingSecret []byte) (*group.KeyPair, error) {
	if len(signingSecret) == 0 {
		return nil, fmt.Errorf("%w: empty signing secret", group.ErrWeakKeyMaterial)
	}
	var counter [4]byte
	for i := uint32(0); i < maxDeriveAttempts; i++ {
		var private *group.Scalar
		if i == 0 {
			private = group.HashToScalar(group.TagKeyDerivation, signingSecret)
		} else {
			binary.BigEndian.PutUint32(counter[:], i)
			private = group.HashToScalar(group.TagKeyDerivation, signingSecret, counter[:])
		}
		if group.IsZeroScalar(private) {
			continue
		}
		return group.KeyPairFromScalar(private)
	}
	return nil, group.ErrWeakKeyMaterial
}

// GenerateKeypair samples a random encryption key pair.
func GenerateKeypair() (*group.KeyPair, error) {
	return group.NewKeyPair(nil)
}
