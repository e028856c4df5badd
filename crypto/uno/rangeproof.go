package uno

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"time"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/tos-network/ctprivacy/crypto/group"
)

// RangeBounds is the inclusive interval a range proof attests to.
type RangeBounds struct {
	Min uint64
	Max uint64
}

// DefaultRangeBounds covers every uint64 amount.
var DefaultRangeBounds = RangeBounds{Min: 0, Max: math.MaxUint64}

func (b RangeBounds) validate() error {
	if b.Min > b.Max {
		return fmt.Errorf("%w: min %d > max %d", ErrInvalidBounds, b.Min, b.Max)
	}
	return nil
}

// bitLength is the number of bits each segment decomposes into.
func (b RangeBounds) bitLength() int {
	n := bits.Len64(b.Max - b.Min)
	if n == 0 {
		n = 1
	}
	return n
}

// needsUpper reports whether the lower segment alone is not tight enough.
func (b RangeBounds) needsUpper() bool {
	n := b.bitLength()
	if n == 64 {
		return b.Max-b.Min != math.MaxUint64
	}
	return b.Max-b.Min != uint64(1)<<n-1
}

func (b RangeBounds) Contains(v uint64) bool {
	return v >= b.Min && v <= b.Max
}

// Range proof layout:
//
//	[0:8]    min, big-endian
//	[8:16]   max, big-endian
//	[16:17]  bit length n
//	[17:18]  flags (bit 0: upper segment present)
//	segments: challenge e (32) followed by n bit records
//	          C_i (32) | e0_i (32) | s0_i (32) | s1_i (32)
const (
	rangeHeaderSize    = 18
	rangeBitRecordSize = 4 * 32
	rangeFlagUpper     = 0x01
)

func rangeSegmentSize(n int) int {
	return 32 + n*rangeBitRecordSize
}

var (
	rangeProveTimer  = metrics.NewRegisteredTimer("uno/range/prove", nil)
	rangeVerifyTimer = metrics.NewRegisteredTimer("uno/range/verify", nil)
)

// ProveRange proves that the commitment amount·G + blinding·H opens to a value
// inside bounds. Amounts outside bounds fail with ErrAmountOutOfRange before
// any proof bytes are produced.
func ProveRange(amount uint64, blinding *group.Scalar, bounds RangeBounds) ([]byte, error) {
	return ProveRangeWithContext(amount, blinding, bounds, nil)
}

// ProveRangeWithContext is ProveRange with ctx bound into the transcript.
func ProveRangeWithContext(amount uint64, blinding *group.Scalar, bounds RangeBounds, ctx []byte) ([]byte, error) {
	if err := bounds.validate(); err != nil {
		return nil, err
	}
	if !bounds.Contains(amount) {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrAmountOutOfRange, amount, bounds.Min, bounds.Max)
	}
	defer rangeProveTimer.UpdateSince(time.Now())

	n := bounds.bitLength()
	upper := bounds.needsUpper()
	commitment := Commit(amount, blinding)

	tr := newRangeTranscript(commitment.point(), bounds, n, ctx)

	out := make([]byte, rangeHeaderSize, rangeHeaderSize+2*rangeSegmentSize(n))
	binary.BigEndian.PutUint64(out[0:8], bounds.Min)
	binary.BigEndian.PutUint64(out[8:16], bounds.Max)
	out[16] = byte(n)
	if upper {
		out[17] = rangeFlagUpper
	}

	lowerTarget := group.Sub(commitment.point(), group.ScalarBaseMult(group.ScalarFromUint64(bounds.Min)))
	seg, err := proveBits(tr, "lower", amount-bounds.Min, blinding, lowerTarget, n)
	if err != nil {
		return nil, err
	}
	out = append(out, seg...)

	if upper {
		upperTarget := group.Sub(group.ScalarBaseMult(group.ScalarFromUint64(bounds.Max)), commitment.point())
		seg, err := proveBits(tr, "upper", bounds.Max-amount, group.NegateScalar(blinding), upperTarget, n)
		if err != nil {
			return nil, err
		}
		out = append(out, seg...)
	}
	return out, nil
}

// VerifyRange checks proof against commitment and bounds. Any mismatch,
// including a proof produced for different bounds, yields
// ErrProofVerificationFailed.
func VerifyRange(commitment Commitment, proof []byte, bounds RangeBounds) error {
	return VerifyRangeWithContext(commitment, proof, bounds, nil)
}

// VerifyRangeWithContext is VerifyRange with ctx bound into the transcript.
func VerifyRangeWithContext(commitment Commitment, proof []byte, bounds RangeBounds, ctx []byte) error {
	if err := bounds.validate(); err != nil {
		return err
	}
	defer rangeVerifyTimer.UpdateSince(time.Now())

	n := bounds.bitLength()
	upper := bounds.needsUpper()
	segments := 1
	if upper {
		segments = 2
	}
	if len(proof) != rangeHeaderSize+segments*rangeSegmentSize(n) {
		return fmt.Errorf("%w: range proof length %d", ErrProofVerificationFailed, len(proof))
	}
	if binary.BigEndian.Uint64(proof[0:8]) != bounds.Min || binary.BigEndian.Uint64(proof[8:16]) != bounds.Max {
		return fmt.Errorf("%w: range proof bounds mismatch", ErrProofVerificationFailed)
	}
	wantFlags := byte(0)
	if upper {
		wantFlags = rangeFlagUpper
	}
	if int(proof[16]) != n || proof[17] != wantFlags {
		return fmt.Errorf("%w: range proof header mismatch", ErrProofVerificationFailed)
	}

	tr := newRangeTranscript(commitment.point(), bounds, n, ctx)
	body := proof[rangeHeaderSize:]

	lowerTarget := group.Sub(commitment.point(), group.ScalarBaseMult(group.ScalarFromUint64(bounds.Min)))
	if err := verifyBits(tr, "lower", body[:rangeSegmentSize(n)], lowerTarget, n); err != nil {
		return err
	}
	if upper {
		upperTarget := group.Sub(group.ScalarBaseMult(group.ScalarFromUint64(bounds.Max)), commitment.point())
		if err := verifyBits(tr, "upper", body[rangeSegmentSize(n):], upperTarget, n); err != nil {
			return err
		}
	}
	return nil
}

func newRangeTranscript(commitment *group.Point, bounds RangeBounds, n int, ctx []byte) *transcript {
	tr := newTranscript(transcriptRangeDomain, ctx)
	tr.appendU64("min", bounds.Min)
	tr.appendU64("max", bounds.Max)
	tr.appendU64("n", uint64(n))
	tr.appendPoint("V", commitment)
	return tr
}

func powerOfTwo(i int) *group.Scalar {
	return group.ScalarFromUint64(uint64(1) << uint(i))
}

// proveBits proves target = value·G + blinding·H with value < 2^n, using one
// commitment per bit and a CDS OR-proof that each commitment opens to 0 or 1.
func proveBits(tr *transcript, label string, value uint64, blinding *group.Scalar, target *group.Point, n int) ([]byte, error) {
	h := PedersenH()
	g := group.Base()

	// Bit blindings are random except r_0, which absorbs the difference so
	// that sum(2^i r_i) == blinding.
	blinds := make([]*group.Scalar, n)
	rest := group.ZeroScalar()
	for i := 1; i < n; i++ {
		r, err := group.RandomScalar(nil)
		if err != nil {
			return nil, err
		}
		blinds[i] = r
		rest = group.AddScalars(rest, group.MulScalars(powerOfTwo(i), r))
	}
	blinds[0] = group.SubScalars(blinding, rest)

	var (
		commits = make([]*group.Point, n)
		nonces  = make([]*group.Scalar, n)
		eSim    = make([]*group.Scalar, n)
		sSim    = make([]*group.Scalar, n)
		a0      = make([]*group.Point, n)
		a1      = make([]*group.Point, n)
	)
	for i := 0; i < n; i++ {
		bit := (value >> uint(i)) & 1
		commits[i] = group.Add(group.ScalarBaseMult(group.ScalarFromUint64(bit)), group.ScalarMult(blinds[i], h))

		k, err := group.RandomScalar(nil)
		if err != nil {
			return nil, err
		}
		e, err := group.RandomScalar(nil)
		if err != nil {
			return nil, err
		}
		s, err := group.RandomScalar(nil)
		if err != nil {
			return nil, err
		}
		nonces[i], eSim[i], sSim[i] = k, e, s

		y0 := commits[i]
		y1 := group.Sub(commits[i], g)
		if bit == 0 {
			a0[i] = group.ScalarMult(k, h)
			a1[i] = group.Sub(group.ScalarMult(s, h), group.ScalarMult(e, y1))
		} else {
			a0[i] = group.Sub(group.ScalarMult(s, h), group.ScalarMult(e, y0))
			a1[i] = group.ScalarMult(k, h)
		}
	}
	tr.appendMessage("segment", []byte(label))
	tr.appendPoint("target", target)
	for i := 0; i < n; i++ {
		tr.appendPoint("C", commits[i])
		tr.appendPoint("A0", a0[i])
		tr.appendPoint("A1", a1[i])
	}
	challenge := tr.challengeScalar("e")

	out := make([]byte, 0, rangeSegmentSize(n))
	enc := group.EncodeScalar(challenge)
	out = append(out, enc[:]...)
	for i := 0; i < n; i++ {
		bit := (value >> uint(i)) & 1
		eReal := group.SubScalars(challenge, eSim[i])
		sReal := group.AddScalars(nonces[i], group.MulScalars(eReal, blinds[i]))

		var e0, s0, s1 *group.Scalar
		if bit == 0 {
			e0, s0, s1 = eReal, sReal, sSim[i]
		} else {
			e0, s0, s1 = eSim[i], sSim[i], sReal
		}
		c := group.EncodePoint(commits[i])
		out = append(out, c[:]...)
		for _, sc := range []*group.Scalar{e0, s0, s1} {
			enc := group.EncodeScalar(sc)
			out = append(out, enc[:]...)
		}
	}
	return out, nil
}

func verifyBits(tr *transcript, label string, seg []byte, target *group.Point, n int) error {
	if len(seg) != rangeSegmentSize(n) {
		return ErrProofVerificationFailed
	}
	h := PedersenH()
	g := group.Base()

	challenge, err := group.DecodeScalar(seg[:32])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProofVerificationFailed, err)
	}
	sum := group.Identity()
	commits := make([]*group.Point, n)
	a0 := make([]*group.Point, n)
	a1 := make([]*group.Point, n)
	for i := 0; i < n; i++ {
		rec := seg[32+i*rangeBitRecordSize : 32+(i+1)*rangeBitRecordSize]
		c, err := group.DecodePoint(rec[0:32])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProofVerificationFailed, err)
		}
		e0, err := group.DecodeScalar(rec[32:64])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProofVerificationFailed, err)
		}
		s0, err := group.DecodeScalar(rec[64:96])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProofVerificationFailed, err)
		}
		s1, err := group.DecodeScalar(rec[96:128])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProofVerificationFailed, err)
		}
		e1 := group.SubScalars(challenge, e0)

		commits[i] = c
		a0[i] = group.Sub(group.ScalarMult(s0, h), group.ScalarMult(e0, c))
		a1[i] = group.Sub(group.ScalarMult(s1, h), group.ScalarMult(e1, group.Sub(c, g)))
		sum = group.Add(sum, group.ScalarMult(powerOfTwo(i), c))
	}
	if !group.PointEqual(sum, target) {
		return fmt.Errorf("%w: bit commitments do not sum to target", ErrProofVerificationFailed)
	}
	tr.appendMessage("segment", []byte(label))
	tr.appendPoint("target", target)
	for i := 0; i < n; i++ {
		tr.appendPoint("C", commits[i])
		tr.appendPoint("A0", a0[i])
		tr.appendPoint("A1", a1[i])
	}
	if !group.ScalarEqual(tr.challengeScalar("e"), challenge) {
		return fmt.Errorf("%w: range challenge mismatch", ErrProofVerificationFailed)
	}
	return nil
}
