package uno

import (
	"errors"
	"fmt"

	"github.com/tos-network/ctprivacy/crypto/group"
	cryptouno "github.com/tos-network/ctprivacy/crypto/uno"
)

// mapCryptoVerifyError collapses crypto-layer failures into wire-layer
// errors. The original error stays in the chain for errors.Is.
func mapCryptoVerifyError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, cryptouno.ErrProofVerificationFailed):
		return fmt.Errorf("%w: %w", ErrInvalidProof, err)
	case errors.Is(err, group.ErrInvalidGroupElement), errors.Is(err, cryptouno.ErrInvalidCiphertext), errors.Is(err, cryptouno.ErrInvalidBounds):
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return err
}

// VerifyTransferProofBundleWithContext verifies a transfer: the sender's
// balance moved from senderOld to senderNew by a hidden amount in range with a
// non-negative remainder, and receiverDelta encrypts that same amount under
// receiverPub.
func VerifyTransferProofBundleWithContext(bundle []byte, senderOld, senderNew, receiverDelta Ciphertext, senderPub, receiverPub *group.Point, ctx []byte) error {
	parts, err := decodeTransferProofBundle(bundle)
	if err != nil {
		return err
	}
	oldCT, err := senderOld.ToCrypto()
	if err != nil {
		return err
	}
	newCT, err := senderNew.ToCrypto()
	if err != nil {
		return err
	}
	deltaCT, err := receiverDelta.ToCrypto()
	if err != nil {
		return err
	}
	if err := mapCryptoVerifyError(cryptouno.VerifyTransferWithContext(parts.transfer, cryptouno.TransferPublicInputs{
		SenderPublic: senderPub,
		OldBalance:   oldCT,
		NewBalance:   newCT,
	}, ctx)); err != nil {
		return err
	}
	commitment, err := cryptouno.TransferAmountCommitment(parts.transfer)
	if err != nil {
		return mapCryptoVerifyError(err)
	}
	return mapCryptoVerifyError(cryptouno.VerifyCTValidity(parts.ctValidity, deltaCT, receiverPub, commitment, ctx))
}

// VerifyUnshieldProofBundleWithContext verifies an unshield: senderNew is
// senderOld less the public amount, and the remainder is non-negative.
func VerifyUnshieldProofBundleWithContext(bundle []byte, senderOld, senderNew Ciphertext, senderPub *group.Point, amount uint64, ctx []byte) error {
	proof, err := decodeUnshieldProofBundle(bundle)
	if err != nil {
		return err
	}
	oldCT, err := senderOld.ToCrypto()
	if err != nil {
		return err
	}
	newCT, err := senderNew.ToCrypto()
	if err != nil {
		return err
	}
	if !cryptouno.SubAmount(oldCT, amount).Equal(newCT) {
		return fmt.Errorf("%w: new balance is not old balance less amount", ErrInvalidProof)
	}
	return mapCryptoVerifyError(cryptouno.VerifyTransferWithContext(proof, cryptouno.TransferPublicInputs{
		SenderPublic: senderPub,
		OldBalance:   oldCT,
		NewBalance:   newCT,
	}, ctx))
}
