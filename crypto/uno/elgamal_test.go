package uno

import (
	"errors"
	mrand "math/rand"
	"testing"

	"github.com/tos-network/ctprivacy/crypto/group"
)

func mustKeypair(t *testing.T) *group.KeyPair {
	t.Helper()
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	return kp
}

func mustEncrypt(t *testing.T, amount uint64, pub *group.Point) Ciphertext {
	t.Helper()
	ct, _, err := Encrypt(amount, pub)
	if err != nil {
		t.Fatalf("Encrypt(%d): %v", amount, err)
	}
	return ct
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	kp := mustKeypair(t)
	amounts := []uint64{0, 1, 2, 100, 65535, 65536, 1_000_000, DefaultDecryptBound}
	rng := mrand.New(mrand.NewSource(7))
	for i := 0; i < 6; i++ {
		amounts = append(amounts, uint64(rng.Uint32()))
	}
	for _, amount := range amounts {
		ct := mustEncrypt(t, amount, kp.Public())
		got, err := Decrypt(ct, kp.Private())
		if err != nil {
			t.Fatalf("Decrypt(%d): %v", amount, err)
		}
		if got != amount {
			t.Fatalf("Decrypt(%d): got %d", amount, got)
		}
	}
}

func TestEncryptIsRandomized(t *testing.T) {
	kp := mustKeypair(t)
	a := mustEncrypt(t, 42, kp.Public())
	b := mustEncrypt(t, 42, kp.Public())
	if a.Equal(b) || a.Bytes() == b.Bytes() {
		t.Fatalf("two encryptions of the same amount are identical")
	}
}

func TestHomomorphicAddSub(t *testing.T) {
	kp := mustKeypair(t)
	cases := []struct{ a, b uint64 }{{0, 0}, {1, 2}, {1000, 250}, {65535, 1}, {123456, 654321}}
	for _, c := range cases {
		ca := mustEncrypt(t, c.a, kp.Public())
		cb := mustEncrypt(t, c.b, kp.Public())
		sum, err := Decrypt(Add(ca, cb), kp.Private())
		if err != nil {
			t.Fatalf("Decrypt(add): %v", err)
		}
		if sum != c.a+c.b {
			t.Fatalf("add(%d, %d) = %d", c.a, c.b, sum)
		}
		if c.a >= c.b {
			diff, err := Decrypt(Sub(ca, cb), kp.Private())
			if err != nil {
				t.Fatalf("Decrypt(sub): %v", err)
			}
			if diff != c.a-c.b {
				t.Fatalf("sub(%d, %d) = %d", c.a, c.b, diff)
			}
		}
	}
}

func TestPlainAmountAdjustments(t *testing.T) {
	kp := mustKeypair(t)
	ct := mustEncrypt(t, 500, kp.Public())
	if got, _ := Decrypt(AddAmount(ct, 25), kp.Private()); got != 525 {
		t.Fatalf("AddAmount: got %d", got)
	}
	if got, _ := Decrypt(SubAmount(ct, 500), kp.Private()); got != 0 {
		t.Fatalf("SubAmount: got %d", got)
	}
	if got, _ := Decrypt(AddAmount(ZeroCiphertext(), 9), kp.Private()); got != 9 {
		t.Fatalf("AddAmount(zero): got %d", got)
	}
	var zero Ciphertext
	if !zero.Equal(ZeroCiphertext()) {
		t.Fatalf("zero value should equal ZeroCiphertext")
	}
}

func TestCiphertextWireFormat(t *testing.T) {
	kp := mustKeypair(t)
	ct := mustEncrypt(t, 77, kp.Public())
	raw := ct.Bytes()
	if len(raw) != 64 {
		t.Fatalf("unexpected ciphertext size %d", len(raw))
	}
	c1 := group.EncodePoint(ct.Ephemeral())
	c2 := group.EncodePoint(ct.Masked())
	if [32]byte(raw[:32]) != c1 || [32]byte(raw[32:]) != c2 {
		t.Fatalf("wire layout is not C1 || C2")
	}
	parsed, err := ParseCiphertext(raw[:])
	if err != nil {
		t.Fatalf("ParseCiphertext: %v", err)
	}
	if !parsed.Equal(ct) {
		t.Fatalf("parsed ciphertext mismatch")
	}
	if _, err := ParseCiphertext(raw[:63]); !errors.Is(err, ErrInvalidCiphertext) {
		t.Fatalf("expected ErrInvalidCiphertext, got %v", err)
	}
	bad := raw
	for i := 0; i < 32; i++ {
		bad[i] = 0xff
	}
	if _, err := ParseCiphertext(bad[:]); !errors.Is(err, group.ErrInvalidGroupElement) {
		t.Fatalf("expected ErrInvalidGroupElement, got %v", err)
	}
}

func TestDecryptOutOfRange(t *testing.T) {
	kp := mustKeypair(t)
	ct := mustEncrypt(t, 10_000, kp.Public())
	if _, err := DecryptWithBound(ct, kp.Private(), 9_999); !errors.Is(err, ErrDecryptionOutOfRange) {
		t.Fatalf("expected ErrDecryptionOutOfRange, got %v", err)
	}
	got, err := DecryptWithBound(ct, kp.Private(), 10_000)
	if err != nil || got != 10_000 {
		t.Fatalf("DecryptWithBound at the bound: %d, %v", got, err)
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	owner := mustKeypair(t)
	other := mustKeypair(t)
	ct := mustEncrypt(t, 5, owner.Public())
	if got, err := DecryptWithBound(ct, other.Private(), 1<<16); err == nil && got == 5 {
		t.Fatalf("foreign key decrypted the amount")
	}
}

func TestEncryptRejectsIdentityKey(t *testing.T) {
	if _, _, err := Encrypt(1, group.Identity()); !errors.Is(err, group.ErrInvalidGroupElement) {
		t.Fatalf("expected ErrInvalidGroupElement, got %v", err)
	}
}
