package group

import (
	"bytes"
	"errors"
	"testing"
)

func TestKeyPairRelationship(t *testing.T) {
	for i := 0; i < 16; i++ {
		kp, err := NewKeyPair(nil)
		if err != nil {
			t.Fatalf("NewKeyPair: %v", err)
		}
		if err := kp.Check(); err != nil {
			t.Fatalf("Check: %v", err)
		}
		if !PointEqual(ScalarBaseMult(kp.Private()), kp.Public()) {
			t.Fatalf("public != private*G")
		}
	}
}

func TestKeyPairFromBytesRoundTrip(t *testing.T) {
	kp, err := NewKeyPair(nil)
	if err != nil {
		t.Fatalf("NewKeyPair: %v", err)
	}
	priv := kp.PrivateBytes()
	restored, err := KeyPairFromBytes(priv[:])
	if err != nil {
		t.Fatalf("KeyPairFromBytes: %v", err)
	}
	if restored.PublicBytes() != kp.PublicBytes() {
		t.Fatalf("restored public key mismatch")
	}
}

func TestKeyPairRejectsZeroScalar(t *testing.T) {
	var zero [ScalarSize]byte
	if _, err := KeyPairFromBytes(zero[:]); !errors.Is(err, ErrWeakKeyMaterial) {
		t.Fatalf("expected ErrWeakKeyMaterial, got %v", err)
	}
}

func TestDecodeScalarRejectsNonCanonical(t *testing.T) {
	raw := bytes.Repeat([]byte{0xff}, ScalarSize)
	if _, err := DecodeScalar(raw); !errors.Is(err, ErrInvalidGroupElement) {
		t.Fatalf("expected ErrInvalidGroupElement, got %v", err)
	}
	if _, err := DecodeScalar(raw[:31]); !errors.Is(err, ErrInvalidGroupElement) {
		t.Fatalf("expected ErrInvalidGroupElement for short input, got %v", err)
	}
}

func TestDecodePointValidation(t *testing.T) {
	// 0xff.. is not a valid field element encoding.
	bad := bytes.Repeat([]byte{0xff}, PointSize)
	if _, err := DecodePoint(bad); !errors.Is(err, ErrInvalidGroupElement) {
		t.Fatalf("expected ErrInvalidGroupElement, got %v", err)
	}
	id := EncodePoint(Identity())
	if _, err := DecodePoint(id[:]); err != nil {
		t.Fatalf("identity should decode: %v", err)
	}
	if _, err := DecodePublicPoint(id[:]); !errors.Is(err, ErrInvalidGroupElement) {
		t.Fatalf("expected identity rejection, got %v", err)
	}
	base := EncodePoint(Base())
	p, err := DecodePublicPoint(base[:])
	if err != nil {
		t.Fatalf("DecodePublicPoint(G): %v", err)
	}
	if !PointEqual(p, Base()) {
		t.Fatalf("decoded generator mismatch")
	}
}

func TestHashDomainSeparation(t *testing.T) {
	input := []byte("same input")
	a := HashToScalar(TagKeyDerivation, input)
	b := HashToScalar(TagStealthShared, input)
	if ScalarEqual(a, b) {
		t.Fatalf("different tags produced the same scalar")
	}
	if !ScalarEqual(a, HashToScalar(TagKeyDerivation, input)) {
		t.Fatalf("HashToScalar is not deterministic")
	}
	// Length prefixes keep part boundaries distinct.
	c := HashToScalar(TagKeyDerivation, []byte("ab"), []byte("c"))
	d := HashToScalar(TagKeyDerivation, []byte("a"), []byte("bc"))
	if ScalarEqual(c, d) {
		t.Fatalf("part boundaries collide")
	}
	p := HashToPoint(TagPedersenH, input)
	q := HashToPoint(TagStealthShared, input)
	if PointEqual(p, q) || IsIdentity(p) {
		t.Fatalf("unexpected HashToPoint output")
	}
}

func TestScalarFromUint64(t *testing.T) {
	for _, v := range []uint64{0, 1, 255, 1 << 32, ^uint64(0)} {
		s := ScalarFromUint64(v)
		enc := EncodeScalar(s)
		var got uint64
		for i := 7; i >= 0; i-- {
			got = got<<8 | uint64(enc[i])
		}
		if got != v {
			t.Fatalf("ScalarFromUint64(%d) encoded as %d", v, got)
		}
	}
	sum := AddScalars(ScalarFromUint64(2), ScalarFromUint64(3))
	if !ScalarEqual(sum, ScalarFromUint64(5)) {
		t.Fatalf("scalar addition mismatch")
	}
}

func TestSharedSecretAgreement(t *testing.T) {
	a, _ := NewKeyPair(nil)
	b, _ := NewKeyPair(nil)
	ab, err := a.SharedSecret(b.Public())
	if err != nil {
		t.Fatalf("SharedSecret: %v", err)
	}
	ba, err := b.SharedSecret(a.Public())
	if err != nil {
		t.Fatalf("SharedSecret: %v", err)
	}
	if !PointEqual(ab, ba) {
		t.Fatalf("DH secrets differ")
	}
	if _, err := a.SharedSecret(Identity()); !errors.Is(err, ErrInvalidGroupElement) {
		t.Fatalf("expected identity peer rejection, got %v", err)
	}
}
