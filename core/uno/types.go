package uno

import (
	"github.com/ethereum/go-ethereum/common"
	cryptouno "github.com/tos-network/ctprivacy/crypto/uno"
)

const (
	PayloadPrefix = ProtocolPayloadPrefix

	ActionShield   = ActionIDShield
	ActionTransfer = ActionIDTransfer
	ActionUnshield = ActionIDUnshield

	// PointSize is the size of one compressed ciphertext half.
	PointSize = 32
)

type Envelope struct {
	Action uint8
	Body   []byte
}

// Ciphertext is the 64-byte wire form C1 || C2 of an encrypted amount.
type Ciphertext struct {
	Ephemeral [PointSize]byte
	Masked    [PointSize]byte
}

// ShieldPayload moves a public amount into the sender's confidential
// balance. EncryptionKey registers the sender's key on first use.
type ShieldPayload struct {
	Amount        uint64
	EncryptionKey []byte
	EncryptedMemo []byte
}

// TransferPayload moves a hidden amount between confidential balances.
// ReceiverKey registers a one-time (stealth) receiver's key on first use;
// Memo carries the public stealth memo.
type TransferPayload struct {
	To            common.Address
	NewSender     Ciphertext
	ReceiverDelta Ciphertext
	ReceiverKey   []byte
	ProofBundle   []byte
	Memo          string
	EncryptedMemo []byte
}

// UnshieldPayload moves a public amount out of the sender's confidential
// balance to To's public balance.
type UnshieldPayload struct {
	To            common.Address
	Amount        uint64
	NewSender     Ciphertext
	ProofBundle   []byte
	EncryptedMemo []byte
}

type AccountState struct {
	Ciphertext    Ciphertext
	Version       uint64
	EncryptionKey []byte
}

// FromCrypto converts an in-memory ciphertext to its wire form.
func FromCrypto(ct cryptouno.Ciphertext) Ciphertext {
	raw := ct.Bytes()
	var out Ciphertext
	copy(out.Ephemeral[:], raw[:PointSize])
	copy(out.Masked[:], raw[PointSize:])
	return out
}

// ToCrypto parses the wire form. The all-zero value is the encryption of zero.
func (c Ciphertext) ToCrypto() (cryptouno.Ciphertext, error) {
	if c == (Ciphertext{}) {
		return cryptouno.ZeroCiphertext(), nil
	}
	ct, err := cryptouno.ParseCiphertext(c.Bytes())
	if err != nil {
		return cryptouno.Ciphertext{}, ErrInvalidPayload
	}
	return ct, nil
}

// Bytes returns C1 || C2.
func (c Ciphertext) Bytes() []byte {
	out := make([]byte, 2*PointSize)
	copy(out[:PointSize], c.Ephemeral[:])
	copy(out[PointSize:], c.Masked[:])
	return out
}
