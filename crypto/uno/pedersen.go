package uno

import (
	"sync"

	"github.com/tos-network/ctprivacy/crypto/group"
)

const CommitmentSize = group.PointSize

var (
	pedersenHOnce sync.Once
	pedersenH     *group.Point
)

// PedersenH returns the blinding generator H, derived by hashing the encoding
// of G so that no discrete log of H base G is known.
func PedersenH() *group.Point {
	pedersenHOnce.Do(func() {
		g := group.EncodePoint(group.Base())
		pedersenH = group.HashToPoint(group.TagPedersenH, g[:])
	})
	return group.CopyPoint(pedersenH)
}

// Commitment is a Pedersen commitment amount·G + blinding·H.
type Commitment struct {
	p *group.Point
}

// Commit computes amount·G + blinding·H.
func Commit(amount uint64, blinding *group.Scalar) Commitment {
	return Commitment{p: commitScalar(group.ScalarFromUint64(amount), blinding)}
}

func commitScalar(value, blinding *group.Scalar) *group.Point {
	return group.Add(group.ScalarBaseMult(value), group.ScalarMult(blinding, PedersenH()))
}

// NewCommitment commits to amount under a fresh blinding factor and returns
// both.
func NewCommitment(amount uint64) (Commitment, *group.Scalar, error) {
	blinding, err := group.RandomScalar(nil)
	if err != nil {
		return Commitment{}, nil, err
	}
	return Commit(amount, blinding), blinding, nil
}

// CommitmentFromPoint wraps an existing point.
func CommitmentFromPoint(p *group.Point) Commitment {
	return Commitment{p: group.CopyPoint(p)}
}

// ParseCommitment decodes a 32-byte commitment.
func ParseCommitment(raw []byte) (Commitment, error) {
	p, err := group.DecodePoint(raw)
	if err != nil {
		return Commitment{}, err
	}
	return Commitment{p: p}, nil
}

func (c Commitment) point() *group.Point {
	if c.p == nil {
		return group.Identity()
	}
	return c.p
}

// Point returns a copy of the committed point.
func (c Commitment) Point() *group.Point { return group.CopyPoint(c.point()) }

func (c Commitment) Bytes() [CommitmentSize]byte {
	return group.EncodePoint(c.point())
}

func (c Commitment) Equal(other Commitment) bool {
	return group.PointEqual(c.point(), other.point())
}

// AddCommitments returns a + b, a commitment to the summed amounts under the
// summed blinding factors.
func AddCommitments(a, b Commitment) Commitment {
	return Commitment{p: group.Add(a.point(), b.point())}
}

// SubCommitments returns a - b.
func SubCommitments(a, b Commitment) Commitment {
	return Commitment{p: group.Sub(a.point(), b.point())}
}
