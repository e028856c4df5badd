package uno

import (
	"fmt"

	"github.com/tos-network/ctprivacy/crypto/group"
)

// CTValidityProofSize is the encoded size of a ciphertext validity proof:
// T0 | T1 | sr | sa.
const CTValidityProofSize = 2*group.PointSize + 2*group.ScalarSize

// ProveCTValidity proves that ct, encrypted under pub with opening r, hides
// the same amount as commitment, whose blinding is commitmentOpening. It is
// used to bind a recipient's incoming ciphertext to the amount commitment of a
// transfer proof.
func ProveCTValidity(ct Ciphertext, pub *group.Point, r *group.Scalar, commitment Commitment, commitmentOpening *group.Scalar, ctx []byte) ([]byte, error) {
	if group.IsIdentity(pub) {
		return nil, fmt.Errorf("%w: identity public key", group.ErrInvalidGroupElement)
	}
	h := PedersenH()
	// The relations must hold before proving; a mismatched witness would
	// only produce a rejected proof.
	if !group.PointEqual(ct.first(), group.ScalarBaseMult(r)) {
		return nil, fmt.Errorf("%w: ciphertext opening", ErrBalanceMismatch)
	}
	lhs := group.Sub(ct.second(), commitment.point())
	rhs := group.Sub(group.ScalarMult(r, pub), group.ScalarMult(commitmentOpening, h))
	if !group.PointEqual(lhs, rhs) {
		return nil, fmt.Errorf("%w: ciphertext and commitment amounts differ", ErrBalanceMismatch)
	}

	kr, err := group.RandomScalar(nil)
	if err != nil {
		return nil, err
	}
	ka, err := group.RandomScalar(nil)
	if err != nil {
		return nil, err
	}
	t0 := group.ScalarBaseMult(kr)
	t1 := group.Sub(group.ScalarMult(kr, pub), group.ScalarMult(ka, h))

	c := newValidityTranscript(ct, pub, commitment, t0, t1, ctx).challengeScalar("c")
	sr := group.AddScalars(kr, group.MulScalars(c, r))
	sa := group.AddScalars(ka, group.MulScalars(c, commitmentOpening))

	out := make([]byte, 0, CTValidityProofSize)
	for _, p := range []*group.Point{t0, t1} {
		enc := group.EncodePoint(p)
		out = append(out, enc[:]...)
	}
	for _, s := range []*group.Scalar{sr, sa} {
		enc := group.EncodeScalar(s)
		out = append(out, enc[:]...)
	}
	return out, nil
}

// VerifyCTValidity checks a proof produced by ProveCTValidity.
func VerifyCTValidity(proof []byte, ct Ciphertext, pub *group.Point, commitment Commitment, ctx []byte) error {
	if len(proof) != CTValidityProofSize {
		return fmt.Errorf("%w: validity proof length %d", ErrProofVerificationFailed, len(proof))
	}
	if pub == nil || group.IsIdentity(pub) {
		return fmt.Errorf("%w: identity public key", group.ErrInvalidGroupElement)
	}
	t0, err := group.DecodePoint(proof[0:32])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProofVerificationFailed, err)
	}
	t1, err := group.DecodePoint(proof[32:64])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProofVerificationFailed, err)
	}
	sr, err := group.DecodeScalar(proof[64:96])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProofVerificationFailed, err)
	}
	sa, err := group.DecodeScalar(proof[96:128])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProofVerificationFailed, err)
	}
	c := newValidityTranscript(ct, pub, commitment, t0, t1, ctx).challengeScalar("c")
	h := PedersenH()

	// sr·G == T0 + c·C1
	if !group.PointEqual(group.ScalarBaseMult(sr), group.Add(t0, group.ScalarMult(c, ct.first()))) {
		return fmt.Errorf("%w: ciphertext opening", ErrProofVerificationFailed)
	}
	// sr·Q - sa·H == T1 + c·(C2 - A)
	lhs := group.Sub(group.ScalarMult(sr, pub), group.ScalarMult(sa, h))
	rhs := group.Add(t1, group.ScalarMult(c, group.Sub(ct.second(), commitment.point())))
	if !group.PointEqual(lhs, rhs) {
		return fmt.Errorf("%w: ciphertext amount", ErrProofVerificationFailed)
	}
	return nil
}

func newValidityTranscript(ct Ciphertext, pub *group.Point, commitment Commitment, t0, t1 *group.Point, ctx []byte) *transcript {
	tr := newTranscript(transcriptValidityDomain, ctx)
	tr.appendPoint("Q", pub)
	tr.appendPoint("C1", ct.first())
	tr.appendPoint("C2", ct.second())
	tr.appendPoint("A", commitment.point())
	tr.appendPoint("T0", t0)
	tr.appendPoint("T1", t1)
	return tr
}
