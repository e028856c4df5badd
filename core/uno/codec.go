package uno

import (
	"bytes"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/tos-network/ctprivacy/crypto/stealth"
)

// MaxMemoSize bounds the public memo carried by a transfer.
const MaxMemoSize = 256

type envelopeRLP struct {
	Action uint8
	Body   []byte
}

type ciphertextRLP struct {
	Ephemeral []byte
	Masked    []byte
}

type shieldPayloadRLP struct {
	Amount        uint64
	EncryptionKey []byte
	EncryptedMemo []byte
}

type transferPayloadRLP struct {
	To            common.Address
	NewSender     ciphertextRLP
	ReceiverDelta ciphertextRLP
	ReceiverKey   []byte
	ProofBundle   []byte
	Memo          string
	EncryptedMemo []byte
}

type unshieldPayloadRLP struct {
	To            common.Address
	Amount        uint64
	NewSender     ciphertextRLP
	ProofBundle   []byte
	EncryptedMemo []byte
}

func validateAction(action uint8) error {
	switch action {
	case ActionShield, ActionTransfer, ActionUnshield:
		return nil
	default:
		return ErrUnsupportedAction
	}
}

func validateKey(key []byte) error {
	if len(key) != 0 && len(key) != PointSize {
		return ErrInvalidPayload
	}
	return nil
}

func validateMemo(memo string) error {
	if len(memo) > MaxMemoSize {
		return ErrInvalidPayload
	}
	if strings.HasPrefix(memo, stealth.MemoPrefix) {
		if _, _, err := stealth.ParseMemo(memo); err != nil {
			return ErrInvalidPayload
		}
	}
	return nil
}

func encodeCiphertext(ct Ciphertext) ciphertextRLP {
	return ciphertextRLP{
		Ephemeral: ct.Ephemeral[:],
		Masked:    ct.Masked[:],
	}
}

func decodeCiphertext(raw ciphertextRLP) (Ciphertext, error) {
	if len(raw.Ephemeral) != PointSize || len(raw.Masked) != PointSize {
		return Ciphertext{}, ErrInvalidPayload
	}
	var out Ciphertext
	copy(out.Ephemeral[:], raw.Ephemeral)
	copy(out.Masked[:], raw.Masked)
	return out, nil
}

func EncodeEnvelope(action uint8, body []byte) ([]byte, error) {
	if err := validateAction(action); err != nil {
		return nil, err
	}
	inner, err := rlp.EncodeToBytes(&envelopeRLP{Action: action, Body: common.CopyBytes(body)})
	if err != nil {
		return nil, ErrInvalidPayload
	}
	out := make([]byte, len(PayloadPrefix)+len(inner))
	copy(out, []byte(PayloadPrefix))
	copy(out[len(PayloadPrefix):], inner)
	return out, nil
}

func DecodeEnvelope(data []byte) (Envelope, error) {
	if len(data) <= len(PayloadPrefix) || !bytes.Equal(data[:len(PayloadPrefix)], []byte(PayloadPrefix)) {
		return Envelope{}, ErrInvalidPayload
	}
	var env envelopeRLP
	if err := rlp.DecodeBytes(data[len(PayloadPrefix):], &env); err != nil {
		return Envelope{}, ErrInvalidPayload
	}
	if err := validateAction(env.Action); err != nil {
		return Envelope{}, err
	}
	return Envelope{Action: env.Action, Body: common.CopyBytes(env.Body)}, nil
}

// IsPayload reports whether data carries the confidential payload prefix.
func IsPayload(data []byte) bool {
	return len(data) > len(PayloadPrefix) && bytes.Equal(data[:len(PayloadPrefix)], []byte(PayloadPrefix))
}

// A zero-amount shield is only valid as a key registration.
func EncodeShieldPayload(p ShieldPayload) ([]byte, error) {
	if p.Amount == 0 && len(p.EncryptionKey) == 0 {
		return nil, ErrInvalidPayload
	}
	if err := validateKey(p.EncryptionKey); err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(&shieldPayloadRLP{
		Amount:        p.Amount,
		EncryptionKey: common.CopyBytes(p.EncryptionKey),
		EncryptedMemo: common.CopyBytes(p.EncryptedMemo),
	})
}

func DecodeShieldPayload(body []byte) (ShieldPayload, error) {
	var raw shieldPayloadRLP
	if err := rlp.DecodeBytes(body, &raw); err != nil {
		return ShieldPayload{}, ErrInvalidPayload
	}
	if raw.Amount == 0 && len(raw.EncryptionKey) == 0 {
		return ShieldPayload{}, ErrInvalidPayload
	}
	if err := validateKey(raw.EncryptionKey); err != nil {
		return ShieldPayload{}, err
	}
	return ShieldPayload{
		Amount:        raw.Amount,
		EncryptionKey: common.CopyBytes(raw.EncryptionKey),
		EncryptedMemo: common.CopyBytes(raw.EncryptedMemo),
	}, nil
}

func EncodeTransferPayload(p TransferPayload) ([]byte, error) {
	if p.To == (common.Address{}) {
		return nil, ErrInvalidPayload
	}
	if err := validateKey(p.ReceiverKey); err != nil {
		return nil, err
	}
	if err := validateMemo(p.Memo); err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(&transferPayloadRLP{
		To:            p.To,
		NewSender:     encodeCiphertext(p.NewSender),
		ReceiverDelta: encodeCiphertext(p.ReceiverDelta),
		ReceiverKey:   common.CopyBytes(p.ReceiverKey),
		ProofBundle:   common.CopyBytes(p.ProofBundle),
		Memo:          p.Memo,
		EncryptedMemo: common.CopyBytes(p.EncryptedMemo),
	})
}

func DecodeTransferPayload(body []byte) (TransferPayload, error) {
	var raw transferPayloadRLP
	if err := rlp.DecodeBytes(body, &raw); err != nil {
		return TransferPayload{}, ErrInvalidPayload
	}
	if raw.To == (common.Address{}) {
		return TransferPayload{}, ErrInvalidPayload
	}
	if err := validateKey(raw.ReceiverKey); err != nil {
		return TransferPayload{}, err
	}
	if err := validateMemo(raw.Memo); err != nil {
		return TransferPayload{}, err
	}
	newSender, err := decodeCiphertext(raw.NewSender)
	if err != nil {
		return TransferPayload{}, err
	}
	receiverDelta, err := decodeCiphertext(raw.ReceiverDelta)
	if err != nil {
		return TransferPayload{}, err
	}
	return TransferPayload{
		To:            raw.To,
		NewSender:     newSender,
		ReceiverDelta: receiverDelta,
		ReceiverKey:   common.CopyBytes(raw.ReceiverKey),
		ProofBundle:   common.CopyBytes(raw.ProofBundle),
		Memo:          raw.Memo,
		EncryptedMemo: common.CopyBytes(raw.EncryptedMemo),
	}, nil
}

func EncodeUnshieldPayload(p UnshieldPayload) ([]byte, error) {
	if p.To == (common.Address{}) || p.Amount == 0 {
		return nil, ErrInvalidPayload
	}
	return rlp.EncodeToBytes(&unshieldPayloadRLP{
		To:            p.To,
		Amount:        p.Amount,
		NewSender:     encodeCiphertext(p.NewSender),
		ProofBundle:   common.CopyBytes(p.ProofBundle),
		EncryptedMemo: common.CopyBytes(p.EncryptedMemo),
	})
}

func DecodeUnshieldPayload(body []byte) (UnshieldPayload, error) {
	var raw unshieldPayloadRLP
	if err := rlp.DecodeBytes(body, &raw); err != nil {
		return UnshieldPayload{}, ErrInvalidPayload
	}
	if raw.To == (common.Address{}) || raw.Amount == 0 {
		return UnshieldPayload{}, ErrInvalidPayload
	}
	newSender, err := decodeCiphertext(raw.NewSender)
	if err != nil {
		return UnshieldPayload{}, err
	}
	return UnshieldPayload{
		To:            raw.To,
		Amount:        raw.Amount,
		NewSender:     newSender,
		ProofBundle:   common.CopyBytes(raw.ProofBundle),
		EncryptedMemo: common.CopyBytes(raw.EncryptedMemo),
	}, nil
}

// EncodeShield, EncodeTransfer and EncodeUnshield wrap a payload into a full
// envelope.
func EncodeShield(p ShieldPayload) ([]byte, error) {
	body, err := EncodeShieldPayload(p)
	if err != nil {
		return nil, err
	}
	return EncodeEnvelope(ActionShield, body)
}

func EncodeTransfer(p TransferPayload) ([]byte, error) {
	body, err := EncodeTransferPayload(p)
	if err != nil {
		return nil, err
	}
	return EncodeEnvelope(ActionTransfer, body)
}

func EncodeUnshield(p UnshieldPayload) ([]byte, error) {
	body, err := EncodeUnshieldPayload(p)
	if err != nil {
		return nil, err
	}
	return EncodeEnvelope(ActionUnshield, body)
}
