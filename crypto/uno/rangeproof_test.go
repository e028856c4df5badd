package uno

import (
	"errors"
	"math"
	"testing"

	"github.com/tos-network/ctprivacy/crypto/group"
)

func TestCommitmentHomomorphism(t *testing.T) {
	r1, _ := group.RandomScalar(nil)
	r2, _ := group.RandomScalar(nil)
	sum := AddCommitments(Commit(30, r1), Commit(12, r2))
	if !sum.Equal(Commit(42, group.AddScalars(r1, r2))) {
		t.Fatalf("commit(a,r1)+commit(b,r2) != commit(a+b, r1+r2)")
	}
	diff := SubCommitments(Commit(30, r1), Commit(12, r2))
	if !diff.Equal(Commit(18, group.SubScalars(r1, r2))) {
		t.Fatalf("commitment subtraction mismatch")
	}
}

func TestCommitmentBinding(t *testing.T) {
	r, _ := group.RandomScalar(nil)
	if Commit(1, r).Equal(Commit(2, r)) {
		t.Fatalf("different amounts produced the same commitment")
	}
	a, _, _ := NewCommitment(5)
	b, _, _ := NewCommitment(5)
	if a.Equal(b) {
		t.Fatalf("fresh blindings produced the same commitment")
	}
	raw := a.Bytes()
	parsed, err := ParseCommitment(raw[:])
	if err != nil || !parsed.Equal(a) {
		t.Fatalf("ParseCommitment: %v", err)
	}
}

func TestPedersenHIndependentOfG(t *testing.T) {
	h := PedersenH()
	if group.PointEqual(h, group.Base()) || group.IsIdentity(h) {
		t.Fatalf("H must be a distinct non-identity generator")
	}
	if !group.PointEqual(h, PedersenH()) {
		t.Fatalf("PedersenH is not stable")
	}
}

func TestRangeProofDefaultBounds(t *testing.T) {
	for _, amount := range []uint64{0, 1, 1000, math.MaxUint32, math.MaxUint64} {
		r, _ := group.RandomScalar(nil)
		proof, err := ProveRange(amount, r, DefaultRangeBounds)
		if err != nil {
			t.Fatalf("ProveRange(%d): %v", amount, err)
		}
		if err := VerifyRange(Commit(amount, r), proof, DefaultRangeBounds); err != nil {
			t.Fatalf("VerifyRange(%d): %v", amount, err)
		}
	}
}

func TestRangeProofCustomBounds(t *testing.T) {
	cases := []struct {
		bounds RangeBounds
		amount uint64
	}{
		{RangeBounds{Min: 0, Max: 255}, 0},
		{RangeBounds{Min: 0, Max: 255}, 255},
		{RangeBounds{Min: 10, Max: 20}, 10},
		{RangeBounds{Min: 10, Max: 20}, 20},
		{RangeBounds{Min: 10, Max: 20}, 15},
		{RangeBounds{Min: 7, Max: 7}, 7},
		{RangeBounds{Min: 1 << 40, Max: math.MaxUint64}, 1 << 41},
	}
	for _, c := range cases {
		r, _ := group.RandomScalar(nil)
		proof, err := ProveRange(c.amount, r, c.bounds)
		if err != nil {
			t.Fatalf("ProveRange(%d, %+v): %v", c.amount, c.bounds, err)
		}
		if err := VerifyRange(Commit(c.amount, r), proof, c.bounds); err != nil {
			t.Fatalf("VerifyRange(%d, %+v): %v", c.amount, c.bounds, err)
		}
	}
}

func TestRangeProofRejectsOutOfRangeAtProve(t *testing.T) {
	r, _ := group.RandomScalar(nil)
	bounds := RangeBounds{Min: 10, Max: 20}
	for _, amount := range []uint64{0, 9, 21, math.MaxUint64} {
		proof, err := ProveRange(amount, r, bounds)
		if !errors.Is(err, ErrAmountOutOfRange) {
			t.Fatalf("ProveRange(%d): expected ErrAmountOutOfRange, got %v", amount, err)
		}
		if proof != nil {
			t.Fatalf("ProveRange(%d) returned bytes on failure", amount)
		}
	}
	if _, err := ProveRange(5, r, RangeBounds{Min: 6, Max: 5}); !errors.Is(err, ErrInvalidBounds) {
		t.Fatalf("expected ErrInvalidBounds, got %v", err)
	}
}

func TestRangeProofRejectsMismatch(t *testing.T) {
	r, _ := group.RandomScalar(nil)
	bounds := RangeBounds{Min: 0, Max: 1000}
	proof, err := ProveRange(500, r, bounds)
	if err != nil {
		t.Fatalf("ProveRange: %v", err)
	}
	// Different commitment.
	if err := VerifyRange(Commit(501, r), proof, bounds); !errors.Is(err, ErrProofVerificationFailed) {
		t.Fatalf("expected failure for wrong commitment, got %v", err)
	}
	// Different bounds.
	if err := VerifyRange(Commit(500, r), proof, RangeBounds{Min: 0, Max: 999}); !errors.Is(err, ErrProofVerificationFailed) {
		t.Fatalf("expected failure for wrong bounds, got %v", err)
	}
	// Tampered bytes.
	tampered := append([]byte(nil), proof...)
	tampered[len(tampered)-40] ^= 0x01
	if err := VerifyRange(Commit(500, r), tampered, bounds); !errors.Is(err, ErrProofVerificationFailed) {
		t.Fatalf("expected failure for tampered proof, got %v", err)
	}
	// Truncated.
	if err := VerifyRange(Commit(500, r), proof[:len(proof)-1], bounds); !errors.Is(err, ErrProofVerificationFailed) {
		t.Fatalf("expected failure for truncated proof, got %v", err)
	}
	// Different context.
	ctxProof, err := ProveRangeWithContext(500, r, bounds, []byte("ctx-a"))
	if err != nil {
		t.Fatalf("ProveRangeWithContext: %v", err)
	}
	if err := VerifyRangeWithContext(Commit(500, r), ctxProof, bounds, []byte("ctx-b")); !errors.Is(err, ErrProofVerificationFailed) {
		t.Fatalf("expected failure for wrong context, got %v", err)
	}
	if err := VerifyRangeWithContext(Commit(500, r), ctxProof, bounds, []byte("ctx-a")); err != nil {
		t.Fatalf("VerifyRangeWithContext: %v", err)
	}
}

// An out-of-range commitment cannot borrow a proof made for an in-range one.
func TestRangeProofNoFalseAccept(t *testing.T) {
	r, _ := group.RandomScalar(nil)
	bounds := RangeBounds{Min: 0, Max: 15}
	proof, err := ProveRange(15, r, bounds)
	if err != nil {
		t.Fatalf("ProveRange: %v", err)
	}
	if err := VerifyRange(Commit(16, r), proof, bounds); !errors.Is(err, ErrProofVerificationFailed) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestRangeBoundsShape(t *testing.T) {
	cases := []struct {
		bounds RangeBounds
		n      int
		upper  bool
	}{
		{DefaultRangeBounds, 64, false},
		{RangeBounds{0, 255}, 8, false},
		{RangeBounds{0, 256}, 9, true},
		{RangeBounds{5, 5}, 1, true},
		{RangeBounds{10, 20}, 4, true},
	}
	for _, c := range cases {
		if got := c.bounds.bitLength(); got != c.n {
			t.Fatalf("%+v bitLength = %d, want %d", c.bounds, got, c.n)
		}
		if got := c.bounds.needsUpper(); got != c.upper {
			t.Fatalf("%+v needsUpper = %v, want %v", c.bounds, got, c.upper)
		}
	}
}
