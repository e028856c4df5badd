package group

import (
	"fmt"
	"io"
)

// KeyPair holds a non-zero private scalar and its public point private·G.
type KeyPair struct {
	private *Scalar
	public  *Point
}

// NewKeyPair samples a fresh key pair from r (crypto/rand when nil).
func NewKeyPair(r io.Reader) (*KeyPair, error) {
	private, err := RandomScalar(r)
	if err != nil {
		return nil, err
	}
	return KeyPairFromScalar(private)
}

// KeyPairFromScalar builds the key pair for a given private scalar.
func KeyPairFromScalar(private *Scalar) (*KeyPair, error) {
	if IsZeroScalar(private) {
		return nil, ErrWeakKeyMaterial
	}
	private = CopyScalar(private)
	return &KeyPair{
		private: private,
		public:  ScalarBaseMult(private),
	}, nil
}

// KeyPairFromBytes decodes a canonical 32-byte private scalar.
func KeyPairFromBytes(raw []byte) (*KeyPair, error) {
	private, err := DecodeScalar(raw)
	if err != nil {
		return nil, err
	}
	return KeyPairFromScalar(private)
}

// Private returns a copy of the private scalar.
func (k *KeyPair) Private() *Scalar {
	return CopyScalar(k.private)
}

// Public returns a copy of the public point.
func (k *KeyPair) Public() *Point {
	return CopyPoint(k.public)
}

func (k *KeyPair) PrivateBytes() [ScalarSize]byte {
	return EncodeScalar(k.private)
}

func (k *KeyPair) PublicBytes() [PointSize]byte {
	return EncodePoint(k.public)
}

// Check verifies public == private·G and that the private scalar is non-zero.
func (k *KeyPair) Check() error {
	if k == nil || k.private == nil || k.public == nil {
		return fmt.Errorf("%w: empty key pair", ErrWeakKeyMaterial)
	}
	if IsZeroScalar(k.private) {
		return ErrWeakKeyMaterial
	}
	if !PointEqual(ScalarBaseMult(k.private), k.public) {
		return fmt.Errorf("%w: public key does not match private scalar", ErrInvalidGroupElement)
	}
	return nil
}

// SharedSecret computes the Diffie-Hellman point private·peer.
func (k *KeyPair) SharedSecret(peer *Point) (*Point, error) {
	if IsIdentity(peer) {
		return nil, fmt.Errorf("%w: identity peer key", ErrInvalidGroupElement)
	}
	return ScalarMult(k.private, peer), nil
}
