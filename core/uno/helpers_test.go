package uno

import (
	"testing"

	"github.com/tos-network/ctprivacy/crypto/group"
	cryptouno "github.com/tos-network/ctprivacy/crypto/uno"
)

// testCiphertext returns a ciphertext of two valid points derived from seed.
func testCiphertext(seed byte) Ciphertext {
	c1 := group.HashToPoint("ctprivacy/test/c1", []byte{seed})
	c2 := group.HashToPoint("ctprivacy/test/c2", []byte{seed})
	return FromCrypto(cryptouno.NewCiphertext(c1, c2))
}

func mustKeypair(t *testing.T) *group.KeyPair {
	t.Helper()
	kp, err := cryptouno.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	return kp
}

func encodedKey(kp *group.KeyPair) []byte {
	enc := kp.PublicBytes()
	return enc[:]
}
