package uno

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tos-network/ctprivacy/crypto/group"
	cryptouno "github.com/tos-network/ctprivacy/crypto/uno"
)

type ShieldBuildArgs struct {
	Amount        uint64
	EncryptionKey *group.Point // registered on first use; nil when already registered
}

type TransferBuildArgs struct {
	ChainID     *big.Int
	From        common.Address
	To          common.Address
	Nonce       uint64
	SenderOld   Ciphertext
	ReceiverOld Ciphertext
	Sender      *group.KeyPair
	ReceiverPub *group.Point
	Amount      uint64

	// SenderBalance is the plaintext of SenderOld when the caller already
	// knows it; nil recovers it by bounded decryption.
	SenderBalance *uint64

	// RegisterReceiver attaches ReceiverPub to the payload so a one-time
	// account is registered on first use.
	RegisterReceiver bool
	Memo             string
}

type UnshieldBuildArgs struct {
	ChainID       *big.Int
	From          common.Address
	To            common.Address
	Nonce         uint64
	SenderOld     Ciphertext
	Sender        *group.KeyPair
	Amount        uint64
	SenderBalance *uint64
}

func senderBalance(old cryptouno.Ciphertext, sender *group.KeyPair, hint *uint64) (uint64, error) {
	if hint != nil {
		return *hint, nil
	}
	return cryptouno.Decrypt(old, sender.Private())
}

// BuildShieldPayload builds a shield. A zero amount with an EncryptionKey only
// registers the key.
func BuildShieldPayload(args ShieldBuildArgs) (ShieldPayload, error) {
	if args.Amount == 0 && args.EncryptionKey == nil {
		return ShieldPayload{}, ErrInvalidPayload
	}
	p := ShieldPayload{Amount: args.Amount}
	if args.EncryptionKey != nil {
		if group.IsIdentity(args.EncryptionKey) {
			return ShieldPayload{}, ErrInvalidPayload
		}
		enc := group.EncodePoint(args.EncryptionKey)
		p.EncryptionKey = enc[:]
	}
	return p, nil
}

// BuildTransferPayloadProof encrypts the amount for both parties, debits the
// sender and proves the transition. Crypto failures such as
// cryptouno.ErrInsufficientBalance are returned unchanged so callers can
// report them before anything is submitted.
func BuildTransferPayloadProof(args TransferBuildArgs) (TransferPayload, error) {
	if args.To == (common.Address{}) || args.To == args.From || args.ReceiverPub == nil {
		return TransferPayload{}, ErrInvalidPayload
	}
	if err := args.Sender.Check(); err != nil {
		return TransferPayload{}, err
	}
	senderOld, err := args.SenderOld.ToCrypto()
	if err != nil {
		return TransferPayload{}, err
	}
	balance, err := senderBalance(senderOld, args.Sender, args.SenderBalance)
	if err != nil {
		return TransferPayload{}, err
	}
	if args.Amount > balance {
		return TransferPayload{}, cryptouno.ErrInsufficientBalance
	}
	amountOpening, err := group.RandomScalar(nil)
	if err != nil {
		return TransferPayload{}, err
	}
	receiverDelta, receiverOpening, err := cryptouno.Encrypt(args.Amount, args.ReceiverPub)
	if err != nil {
		return TransferPayload{}, err
	}
	newSender, err := cryptouno.Debit(senderOld, args.Amount, args.Sender.Public())
	if err != nil {
		return TransferPayload{}, err
	}
	wireNew, wireDelta := FromCrypto(newSender), FromCrypto(receiverDelta)

	ctx := BuildTransferTranscriptContext(args.ChainID, args.From, args.To, args.Nonce, args.SenderOld, wireNew, args.ReceiverOld, wireDelta)
	transferProof, err := cryptouno.ProveTransferWithOpening(senderOld, balance, args.Amount, newSender, args.Sender, amountOpening, ctx)
	if err != nil {
		return TransferPayload{}, err
	}
	commitment := cryptouno.Commit(args.Amount, amountOpening)
	ctProof, err := cryptouno.ProveCTValidity(receiverDelta, args.ReceiverPub, receiverOpening, commitment, amountOpening, ctx)
	if err != nil {
		return TransferPayload{}, fmt.Errorf("ciphertext validity: %w", err)
	}
	payload := TransferPayload{
		To:            args.To,
		NewSender:     wireNew,
		ReceiverDelta: wireDelta,
		ProofBundle:   encodeTransferProofBundle(transferProof, ctProof),
		Memo:          args.Memo,
	}
	if args.RegisterReceiver {
		enc := group.EncodePoint(args.ReceiverPub)
		payload.ReceiverKey = enc[:]
	}
	return payload, nil
}

// BuildUnshieldPayloadProof debits a public amount and proves the remaining
// balance is non-negative.
func BuildUnshieldPayloadProof(args UnshieldBuildArgs) (UnshieldPayload, error) {
	if args.Amount == 0 || args.To == (common.Address{}) {
		return UnshieldPayload{}, ErrInvalidPayload
	}
	if err := args.Sender.Check(); err != nil {
		return UnshieldPayload{}, err
	}
	senderOld, err := args.SenderOld.ToCrypto()
	if err != nil {
		return UnshieldPayload{}, err
	}
	balance, err := senderBalance(senderOld, args.Sender, args.SenderBalance)
	if err != nil {
		return UnshieldPayload{}, err
	}
	if args.Amount > balance {
		return UnshieldPayload{}, cryptouno.ErrInsufficientBalance
	}
	newSender := cryptouno.SubAmount(senderOld, args.Amount)
	wireNew := FromCrypto(newSender)
	ctx := BuildUnshieldTranscriptContext(args.ChainID, args.From, args.To, args.Nonce, args.Amount, args.SenderOld, wireNew)
	proof, err := cryptouno.ProveTransferWithOpening(senderOld, balance, args.Amount, newSender, args.Sender, nil, ctx)
	if err != nil {
		return UnshieldPayload{}, err
	}
	return UnshieldPayload{
		To:          args.To,
		Amount:      args.Amount,
		NewSender:   wireNew,
		ProofBundle: proof,
	}, nil
}
