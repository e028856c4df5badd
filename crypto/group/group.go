// Package group wraps the ristretto255 prime-order group used by every
// privacy primitive in this module.
//
// All constructors return freshly allocated values; no function mutates its
// inputs, so elements and scalars may be shared across goroutines read-only.
package group

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/gtank/ristretto255"
)

const (
	PointSize  = 32
	ScalarSize = 32

	// wideSize is the input length of the wide reduction used for uniform
	// scalars and points.
	wideSize = 64
)

var (
	// ErrInvalidGroupElement indicates a malformed point encoding, an identity
	// point where one is not allowed, or a non-canonical scalar.
	ErrInvalidGroupElement = errors.New("group: invalid group element")

	// ErrWeakKeyMaterial indicates a zero or degenerate key.
	ErrWeakKeyMaterial = errors.New("group: weak key material")
)

// Point and Scalar alias the underlying ristretto255 types so callers do not
// import the curve package directly.
type (
	Point  = ristretto255.Element
	Scalar = ristretto255.Scalar
)

// Identity returns the group identity.
func Identity() *Point {
	return ristretto255.NewElement().Zero()
}

// Base returns the canonical generator G.
func Base() *Point {
	return ristretto255.NewElement().Base()
}

// ZeroScalar returns the additive identity of the scalar field.
func ZeroScalar() *Scalar {
	return ristretto255.NewScalar().Zero()
}

func Add(p, q *Point) *Point {
	return ristretto255.NewElement().Add(p, q)
}

func Sub(p, q *Point) *Point {
	return ristretto255.NewElement().Subtract(p, q)
}

func Negate(p *Point) *Point {
	return ristretto255.NewElement().Negate(p)
}

func ScalarMult(s *Scalar, p *Point) *Point {
	return ristretto255.NewElement().ScalarMult(s, p)
}

func ScalarBaseMult(s *Scalar) *Point {
	return ristretto255.NewElement().ScalarBaseMult(s)
}

// CopyPoint returns an independent copy of p.
func CopyPoint(p *Point) *Point {
	return ristretto255.NewElement().Add(p, Identity())
}

func PointEqual(p, q *Point) bool {
	return p.Equal(q) == 1
}

func IsIdentity(p *Point) bool {
	return p.Equal(Identity()) == 1
}

// EncodePoint returns the canonical 32-byte encoding of p.
func EncodePoint(p *Point) [PointSize]byte {
	var out [PointSize]byte
	copy(out[:], p.Encode(nil))
	return out
}

// DecodePoint parses a canonical point encoding. The identity is accepted.
func DecodePoint(raw []byte) (*Point, error) {
	if len(raw) != PointSize {
		return nil, fmt.Errorf("%w: point length %d", ErrInvalidGroupElement, len(raw))
	}
	p := ristretto255.NewElement()
	if err := p.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGroupElement, err)
	}
	return p, nil
}

// DecodePublicPoint parses a point that is used as a public key and therefore
// must not be the identity.
func DecodePublicPoint(raw []byte) (*Point, error) {
	p, err := DecodePoint(raw)
	if err != nil {
		return nil, err
	}
	if IsIdentity(p) {
		return nil, fmt.Errorf("%w: identity point", ErrInvalidGroupElement)
	}
	return p, nil
}

func AddScalars(a, b *Scalar) *Scalar {
	return ristretto255.NewScalar().Add(a, b)
}

func SubScalars(a, b *Scalar) *Scalar {
	return ristretto255.NewScalar().Subtract(a, b)
}

func MulScalars(a, b *Scalar) *Scalar {
	return ristretto255.NewScalar().Multiply(a, b)
}

func NegateScalar(a *Scalar) *Scalar {
	return ristretto255.NewScalar().Negate(a)
}

func ScalarEqual(a, b *Scalar) bool {
	return a.Equal(b) == 1
}

func IsZeroScalar(s *Scalar) bool {
	return s.Equal(ZeroScalar()) == 1
}

// CopyScalar returns an independent copy of s.
func CopyScalar(s *Scalar) *Scalar {
	return ristretto255.NewScalar().Add(s, ZeroScalar())
}

// ScalarFromUint64 embeds v into the scalar field.
func ScalarFromUint64(v uint64) *Scalar {
	var buf [ScalarSize]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	s := ristretto255.NewScalar()
	// Values below 2^64 are always canonical.
	if err := s.Decode(buf[:]); err != nil {
		panic(err)
	}
	return s
}

// EncodeScalar returns the canonical little-endian encoding of s.
func EncodeScalar(s *Scalar) [ScalarSize]byte {
	var out [ScalarSize]byte
	copy(out[:], s.Encode(nil))
	return out
}

// DecodeScalar parses a canonical 32-byte little-endian scalar.
func DecodeScalar(raw []byte) (*Scalar, error) {
	if len(raw) != ScalarSize {
		return nil, fmt.Errorf("%w: scalar length %d", ErrInvalidGroupElement, len(raw))
	}
	s := ristretto255.NewScalar()
	if err := s.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: non-canonical scalar", ErrInvalidGroupElement)
	}
	return s, nil
}

// ScalarFromUniformBytes reduces 64 bytes into a scalar.
func ScalarFromUniformBytes(wide []byte) *Scalar {
	return ristretto255.NewScalar().FromUniformBytes(wide)
}

// RandomScalar samples a non-zero scalar from r, falling back to crypto/rand
// when r is nil.
func RandomScalar(r io.Reader) (*Scalar, error) {
	if r == nil {
		r = rand.Reader
	}
	var wide [wideSize]byte
	for {
		if _, err := io.ReadFull(r, wide[:]); err != nil {
			return nil, err
		}
		s := ScalarFromUniformBytes(wide[:])
		if !IsZeroScalar(s) {
			return s, nil
		}
	}
}
