package uno

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/tos-network/ctprivacy/crypto/group"
)

// TransferPublicInputs are the public values a transfer proof is verified
// against. The debited amount ciphertext is OldBalance - NewBalance and is
// recomputed by the verifier.
type TransferPublicInputs struct {
	SenderPublic *group.Point
	OldBalance   Ciphertext
	NewBalance   Ciphertext
}

// TransferProof is the decoded form of a transfer proof.
//
// Layout:
//
//	[0:32]    amount commitment A = a·G + ra·H
//	[32:64]   new balance commitment B = b·G + rb·H
//	[64:160]  sigma commitments R0, R1, R2
//	[160:256] sigma responses sx, sa, sb
//	then two length-prefixed (uint32, big-endian) range proofs, for A and B.
type TransferProof struct {
	AmountCommitment  Commitment
	BalanceCommitment Commitment

	r0, r1, r2 *group.Point
	sx, sa, sb *group.Scalar

	amountRange  []byte
	balanceRange []byte
}

const transferSigmaSize = 2*CommitmentSize + 3*group.PointSize + 3*group.ScalarSize

var (
	transferProveTimer  = metrics.NewRegisteredTimer("uno/transfer/prove", nil)
	transferVerifyTimer = metrics.NewRegisteredTimer("uno/transfer/verify", nil)
)

// Bytes encodes the proof.
func (p *TransferProof) Bytes() []byte {
	out := make([]byte, 0, transferSigmaSize+8+len(p.amountRange)+len(p.balanceRange))
	a := p.AmountCommitment.Bytes()
	b := p.BalanceCommitment.Bytes()
	out = append(out, a[:]...)
	out = append(out, b[:]...)
	for _, pt := range []*group.Point{p.r0, p.r1, p.r2} {
		enc := group.EncodePoint(pt)
		out = append(out, enc[:]...)
	}
	for _, sc := range []*group.Scalar{p.sx, p.sa, p.sb} {
		enc := group.EncodeScalar(sc)
		out = append(out, enc[:]...)
	}
	out = appendLengthPrefixed(out, p.amountRange)
	out = appendLengthPrefixed(out, p.balanceRange)
	return out
}

func appendLengthPrefixed(dst, blob []byte) []byte {
	var word [4]byte
	binary.BigEndian.PutUint32(word[:], uint32(len(blob)))
	dst = append(dst, word[:]...)
	return append(dst, blob...)
}

func readLengthPrefixed(src []byte) ([]byte, []byte, error) {
	if len(src) < 4 {
		return nil, nil, ErrProofVerificationFailed
	}
	n := binary.BigEndian.Uint32(src[:4])
	if uint64(len(src)-4) < uint64(n) {
		return nil, nil, ErrProofVerificationFailed
	}
	return src[4 : 4+n], src[4+n:], nil
}

// ParseTransferProof decodes a transfer proof. Malformed bytes fail with
// ErrProofVerificationFailed.
func ParseTransferProof(raw []byte) (*TransferProof, error) {
	if len(raw) < transferSigmaSize {
		return nil, fmt.Errorf("%w: transfer proof too short", ErrProofVerificationFailed)
	}
	points := make([]*group.Point, 5)
	for i := range points {
		p, err := group.DecodePoint(raw[i*32 : (i+1)*32])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProofVerificationFailed, err)
		}
		points[i] = p
	}
	scalars := make([]*group.Scalar, 3)
	for i := range scalars {
		off := 5*32 + i*32
		s, err := group.DecodeScalar(raw[off : off+32])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProofVerificationFailed, err)
		}
		scalars[i] = s
	}
	amountRange, rest, err := readLengthPrefixed(raw[transferSigmaSize:])
	if err != nil {
		return nil, err
	}
	balanceRange, rest, err := readLengthPrefixed(rest)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: trailing bytes", ErrProofVerificationFailed)
	}
	return &TransferProof{
		AmountCommitment:  Commitment{p: points[0]},
		BalanceCommitment: Commitment{p: points[1]},
		r0:                points[2],
		r1:                points[3],
		r2:                points[4],
		sx:                scalars[0],
		sa:                scalars[1],
		sb:                scalars[2],
		amountRange:       append([]byte(nil), amountRange...),
		balanceRange:      append([]byte(nil), balanceRange...),
	}, nil
}

// TransferAmountCommitment extracts the amount commitment from an encoded
// transfer proof, for binding a recipient ciphertext to it.
func TransferAmountCommitment(raw []byte) (Commitment, error) {
	if len(raw) < CommitmentSize {
		return Commitment{}, fmt.Errorf("%w: transfer proof too short", ErrProofVerificationFailed)
	}
	c, err := ParseCommitment(raw[:CommitmentSize])
	if err != nil {
		return Commitment{}, fmt.Errorf("%w: %v", ErrProofVerificationFailed, err)
	}
	return c, nil
}

// Debit returns old - Enc(amount) under pub, the new sender balance for a
// transfer of amount.
func Debit(old Ciphertext, amount uint64, pub *group.Point) (Ciphertext, error) {
	delta, _, err := Encrypt(amount, pub)
	if err != nil {
		return Ciphertext{}, err
	}
	return Sub(old, delta), nil
}

// ProveTransfer proves that newBalance = oldBalance - amount for the sender
// key pair, with amount and the new balance both in [0, 2^64). The old balance
// is recovered by bounded decryption; use ProveTransferWithOpening to supply
// it directly. A transfer exceeding the old balance fails with
// ErrInsufficientBalance before any proof bytes are produced.
func ProveTransfer(oldBalance Ciphertext, amount uint64, newBalance Ciphertext, sender *group.KeyPair) ([]byte, error) {
	return ProveTransferWithContext(oldBalance, amount, newBalance, sender, nil)
}

// ProveTransferWithContext is ProveTransfer with ctx bound into every
// transcript of the proof.
func ProveTransferWithContext(oldBalance Ciphertext, amount uint64, newBalance Ciphertext, sender *group.KeyPair, ctx []byte) ([]byte, error) {
	proof, err := proveTransfer(transferWitness{
		old:    oldBalance,
		next:   newBalance,
		amount: amount,
		sender: sender,
	}, ctx)
	if err != nil {
		return nil, err
	}
	return proof.Bytes(), nil
}

// ProveTransferWithOpening proves a transfer using a known old balance
// instead of decrypting it, and commits to amount under amountOpening so the
// caller can bind other ciphertexts to the same amount commitment. A nil
// amountOpening samples a fresh one.
func ProveTransferWithOpening(oldBalance Ciphertext, oldAmount uint64, amount uint64, newBalance Ciphertext, sender *group.KeyPair, amountOpening *group.Scalar, ctx []byte) ([]byte, error) {
	proof, err := proveTransfer(transferWitness{
		old:           oldBalance,
		next:          newBalance,
		amount:        amount,
		sender:        sender,
		oldAmount:     &oldAmount,
		amountOpening: amountOpening,
	}, ctx)
	if err != nil {
		return nil, err
	}
	return proof.Bytes(), nil
}

type transferWitness struct {
	old, next     Ciphertext
	amount        uint64
	sender        *group.KeyPair
	oldAmount     *uint64
	amountOpening *group.Scalar
}

func proveTransfer(w transferWitness, ctx []byte) (*TransferProof, error) {
	if err := w.sender.Check(); err != nil {
		return nil, err
	}
	x := w.sender.Private()

	var oldAmount uint64
	if w.oldAmount != nil {
		point, err := DecryptToPoint(w.old, x)
		if err != nil {
			return nil, err
		}
		if !group.PointEqual(point, group.ScalarBaseMult(group.ScalarFromUint64(*w.oldAmount))) {
			return nil, fmt.Errorf("%w: old balance hint does not match ciphertext", ErrBalanceMismatch)
		}
		oldAmount = *w.oldAmount
	} else {
		var err error
		if oldAmount, err = Decrypt(w.old, x); err != nil {
			return nil, err
		}
	}
	if w.amount > oldAmount {
		return nil, ErrInsufficientBalance
	}
	remaining := oldAmount - w.amount
	newPoint, err := DecryptToPoint(w.next, x)
	if err != nil {
		return nil, err
	}
	if !group.PointEqual(newPoint, group.ScalarBaseMult(group.ScalarFromUint64(remaining))) {
		return nil, fmt.Errorf("%w: new balance does not encrypt old balance minus amount", ErrBalanceMismatch)
	}
	defer transferProveTimer.UpdateSince(time.Now())

	ra := w.amountOpening
	if ra == nil {
		if ra, err = group.RandomScalar(nil); err != nil {
			return nil, err
		}
	}
	rb, err := group.RandomScalar(nil)
	if err != nil {
		return nil, err
	}
	proof := &TransferProof{
		AmountCommitment:  Commit(w.amount, ra),
		BalanceCommitment: Commit(remaining, rb),
	}
	if proof.amountRange, err = ProveRangeWithContext(w.amount, ra, DefaultRangeBounds, ctx); err != nil {
		return nil, err
	}
	if proof.balanceRange, err = ProveRangeWithContext(remaining, rb, DefaultRangeBounds, ctx); err != nil {
		return nil, err
	}

	delta := Sub(w.old, w.next)
	h := PedersenH()
	kx, err := group.RandomScalar(nil)
	if err != nil {
		return nil, err
	}
	ka, err := group.RandomScalar(nil)
	if err != nil {
		return nil, err
	}
	kb, err := group.RandomScalar(nil)
	if err != nil {
		return nil, err
	}
	proof.r0 = group.ScalarBaseMult(kx)
	proof.r1 = group.Sub(group.ScalarMult(kx, delta.first()), group.ScalarMult(ka, h))
	proof.r2 = group.Sub(group.ScalarMult(kx, w.next.first()), group.ScalarMult(kb, h))

	tr := newTransferTranscript(w.sender.Public(), w.old, w.next, proof, ctx)
	c := tr.challengeScalar("c")
	proof.sx = group.AddScalars(kx, group.MulScalars(c, x))
	proof.sa = group.AddScalars(ka, group.MulScalars(c, ra))
	proof.sb = group.AddScalars(kb, group.MulScalars(c, rb))
	return proof, nil
}

func newTransferTranscript(senderPub *group.Point, old, next Ciphertext, proof *TransferProof, ctx []byte) *transcript {
	tr := newTranscript(transcriptTransferDomain, ctx)
	tr.appendPoint("P", senderPub)
	tr.appendPoint("old-c1", old.first())
	tr.appendPoint("old-c2", old.second())
	tr.appendPoint("new-c1", next.first())
	tr.appendPoint("new-c2", next.second())
	tr.appendPoint("A", proof.AmountCommitment.point())
	tr.appendPoint("B", proof.BalanceCommitment.point())
	tr.appendPoint("R0", proof.r0)
	tr.appendPoint("R1", proof.r1)
	tr.appendPoint("R2", proof.r2)
	return tr
}

// VerifyTransfer checks a transfer proof against public data only.
func VerifyTransfer(proof []byte, in TransferPublicInputs) error {
	return VerifyTransferWithContext(proof, in, nil)
}

// VerifyTransferWithContext is VerifyTransfer with ctx bound into every
// transcript of the proof.
func VerifyTransferWithContext(raw []byte, in TransferPublicInputs, ctx []byte) error {
	if in.SenderPublic == nil || group.IsIdentity(in.SenderPublic) {
		return fmt.Errorf("%w: sender public key", group.ErrInvalidGroupElement)
	}
	proof, err := ParseTransferProof(raw)
	if err != nil {
		return err
	}
	defer transferVerifyTimer.UpdateSince(time.Now())

	if err := VerifyRangeWithContext(proof.AmountCommitment, proof.amountRange, DefaultRangeBounds, ctx); err != nil {
		return err
	}
	if err := VerifyRangeWithContext(proof.BalanceCommitment, proof.balanceRange, DefaultRangeBounds, ctx); err != nil {
		return err
	}

	tr := newTransferTranscript(in.SenderPublic, in.OldBalance, in.NewBalance, proof, ctx)
	c := tr.challengeScalar("c")
	h := PedersenH()
	delta := Sub(in.OldBalance, in.NewBalance)

	// sx·G == R0 + c·P
	lhs := group.ScalarBaseMult(proof.sx)
	rhs := group.Add(proof.r0, group.ScalarMult(c, in.SenderPublic))
	if !group.PointEqual(lhs, rhs) {
		return fmt.Errorf("%w: key ownership", ErrProofVerificationFailed)
	}
	// sx·ΔC1 - sa·H == R1 + c·(ΔC2 - A)
	lhs = group.Sub(group.ScalarMult(proof.sx, delta.first()), group.ScalarMult(proof.sa, h))
	rhs = group.Add(proof.r1, group.ScalarMult(c, group.Sub(delta.second(), proof.AmountCommitment.point())))
	if !group.PointEqual(lhs, rhs) {
		return fmt.Errorf("%w: amount ciphertext", ErrProofVerificationFailed)
	}
	// sx·C1' - sb·H == R2 + c·(C2' - B)
	lhs = group.Sub(group.ScalarMult(proof.sx, in.NewBalance.first()), group.ScalarMult(proof.sb, h))
	rhs = group.Add(proof.r2, group.ScalarMult(c, group.Sub(in.NewBalance.second(), proof.BalanceCommitment.point())))
	if !group.PointEqual(lhs, rhs) {
		return fmt.Errorf("%w: new balance ciphertext", ErrProofVerificationFailed)
	}
	return nil
}
