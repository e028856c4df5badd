package uno

import (
	"fmt"

	"github.com/tos-network/ctprivacy/crypto/group"
)

const CiphertextSize = 2 * group.PointSize

// Ciphertext is an ElGamal encryption of a uint64 amount:
// C1 = r·G and C2 = amount·G + r·P. Values are immutable; every operation
// returns a new ciphertext.
type Ciphertext struct {
	c1 *group.Point
	c2 *group.Point
}

// ZeroCiphertext returns the trivial encryption of zero, (O, O). It is the
// initial balance of every account.
func ZeroCiphertext() Ciphertext {
	return Ciphertext{c1: group.Identity(), c2: group.Identity()}
}

// NewCiphertext assembles a ciphertext from its two components.
func NewCiphertext(c1, c2 *group.Point) Ciphertext {
	return Ciphertext{c1: group.CopyPoint(c1), c2: group.CopyPoint(c2)}
}

// ParseCiphertext decodes the 64-byte wire form C1 || C2.
func ParseCiphertext(raw []byte) (Ciphertext, error) {
	if len(raw) != CiphertextSize {
		return Ciphertext{}, fmt.Errorf("%w: length %d", ErrInvalidCiphertext, len(raw))
	}
	c1, err := group.DecodePoint(raw[:group.PointSize])
	if err != nil {
		return Ciphertext{}, err
	}
	c2, err := group.DecodePoint(raw[group.PointSize:])
	if err != nil {
		return Ciphertext{}, err
	}
	return Ciphertext{c1: c1, c2: c2}, nil
}

// first and second treat the zero value as the encryption of zero.
func (c Ciphertext) first() *group.Point {
	if c.c1 == nil {
		return group.Identity()
	}
	return c.c1
}

func (c Ciphertext) second() *group.Point {
	if c.c2 == nil {
		return group.Identity()
	}
	return c.c2
}

// Bytes returns the 64-byte wire form C1 || C2.
func (c Ciphertext) Bytes() [CiphertextSize]byte {
	var out [CiphertextSize]byte
	c1 := group.EncodePoint(c.first())
	c2 := group.EncodePoint(c.second())
	copy(out[:group.PointSize], c1[:])
	copy(out[group.PointSize:], c2[:])
	return out
}

// Ephemeral returns a copy of C1.
func (c Ciphertext) Ephemeral() *group.Point { return group.CopyPoint(c.first()) }

// Masked returns a copy of C2.
func (c Ciphertext) Masked() *group.Point { return group.CopyPoint(c.second()) }

func (c Ciphertext) Equal(other Ciphertext) bool {
	return group.PointEqual(c.first(), other.first()) && group.PointEqual(c.second(), other.second())
}

// Encrypt encrypts amount under pub with fresh randomness and returns the
// ciphertext together with its opening r.
func Encrypt(amount uint64, pub *group.Point) (Ciphertext, *group.Scalar, error) {
	r, err := group.RandomScalar(nil)
	if err != nil {
		return Ciphertext{}, nil, err
	}
	ct, err := EncryptWithOpening(amount, pub, r)
	if err != nil {
		return Ciphertext{}, nil, err
	}
	return ct, r, nil
}

// EncryptWithOpening encrypts amount under pub using the caller-provided
// opening r.
func EncryptWithOpening(amount uint64, pub *group.Point, r *group.Scalar) (Ciphertext, error) {
	if group.IsIdentity(pub) {
		return Ciphertext{}, fmt.Errorf("%w: identity public key", group.ErrInvalidGroupElement)
	}
	c1 := group.ScalarBaseMult(r)
	c2 := group.Add(group.ScalarBaseMult(group.ScalarFromUint64(amount)), group.ScalarMult(r, pub))
	return Ciphertext{c1: c1, c2: c2}, nil
}

// DecryptToPoint strips the mask and returns amount·G.
func DecryptToPoint(ct Ciphertext, priv *group.Scalar) (*group.Point, error) {
	if priv == nil || group.IsZeroScalar(priv) {
		return nil, group.ErrWeakKeyMaterial
	}
	return group.Sub(ct.second(), group.ScalarMult(priv, ct.first())), nil
}

// Decrypt recovers the amount with the default search bound.
func Decrypt(ct Ciphertext, priv *group.Scalar) (uint64, error) {
	return DecryptWithBound(ct, priv, DefaultDecryptBound)
}

// DecryptWithBound recovers an amount in [0, bound]. Amounts above bound fail
// with ErrDecryptionOutOfRange.
func DecryptWithBound(ct Ciphertext, priv *group.Scalar, bound uint64) (uint64, error) {
	point, err := DecryptToPoint(ct, priv)
	if err != nil {
		return 0, err
	}
	amount, ok := solveDiscreteLog(point, bound)
	if !ok {
		return 0, fmt.Errorf("%w: bound %d", ErrDecryptionOutOfRange, bound)
	}
	return amount, nil
}

// Add returns the component-wise sum a + b, an encryption of the sum of the
// plaintexts when both share a recipient key.
func Add(a, b Ciphertext) Ciphertext {
	return Ciphertext{c1: group.Add(a.first(), b.first()), c2: group.Add(a.second(), b.second())}
}

// Sub returns the component-wise difference a - b.
func Sub(a, b Ciphertext) Ciphertext {
	return Ciphertext{c1: group.Sub(a.first(), b.first()), c2: group.Sub(a.second(), b.second())}
}

// AddAmount adds a public amount to the encrypted value.
func AddAmount(ct Ciphertext, amount uint64) Ciphertext {
	delta := group.ScalarBaseMult(group.ScalarFromUint64(amount))
	return Ciphertext{c1: group.CopyPoint(ct.first()), c2: group.Add(ct.second(), delta)}
}

// SubAmount subtracts a public amount from the encrypted value.
func SubAmount(ct Ciphertext, amount uint64) Ciphertext {
	delta := group.ScalarBaseMult(group.ScalarFromUint64(amount))
	return Ciphertext{c1: group.CopyPoint(ct.first()), c2: group.Sub(ct.second(), delta)}
}
