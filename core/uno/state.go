package uno

import (
	"errors"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	cryptouno "github.com/tos-network/ctprivacy/crypto/uno"
	"github.com/tos-network/ctprivacy/kvdb"
)

var accountStatePrefix = []byte("ct-acct-")

type accountStateRLP struct {
	Ciphertext    ciphertextRLP
	Version       uint64
	EncryptionKey []byte
}

func accountStateKey(account common.Address) []byte {
	return append(append([]byte(nil), accountStatePrefix...), account[:]...)
}

// GetAccountState loads the confidential state of account. Missing accounts
// read as the zero state.
func GetAccountState(db kvdb.KeyValueReader, account common.Address) (AccountState, error) {
	blob, err := db.Get(accountStateKey(account))
	if errors.Is(err, kvdb.ErrNotFound) {
		return AccountState{}, nil
	}
	if err != nil {
		return AccountState{}, err
	}
	var raw accountStateRLP
	if err := rlp.DecodeBytes(blob, &raw); err != nil {
		return AccountState{}, err
	}
	ct, err := decodeCiphertext(raw.Ciphertext)
	if err != nil {
		return AccountState{}, err
	}
	return AccountState{
		Ciphertext:    ct,
		Version:       raw.Version,
		EncryptionKey: common.CopyBytes(raw.EncryptionKey),
	}, nil
}

func SetAccountState(db kvdb.KeyValueWriter, account common.Address, st AccountState) error {
	blob, err := rlp.EncodeToBytes(&accountStateRLP{
		Ciphertext:    encodeCiphertext(st.Ciphertext),
		Version:       st.Version,
		EncryptionKey: st.EncryptionKey,
	})
	if err != nil {
		return err
	}
	return db.Put(accountStateKey(account), blob)
}

func IncrementVersion(r kvdb.KeyValueReader, w kvdb.KeyValueWriter, account common.Address) (uint64, error) {
	current, err := GetAccountState(r, account)
	if err != nil {
		return 0, err
	}
	if current.Version == math.MaxUint64 {
		return 0, ErrVersionOverflow
	}
	current.Version++
	if err := SetAccountState(w, account, current); err != nil {
		return 0, err
	}
	return current.Version, nil
}

// AddCiphertextToAccount adds delta to the balance of account.
func AddCiphertextToAccount(r kvdb.KeyValueReader, w kvdb.KeyValueWriter, account common.Address, delta Ciphertext) error {
	current, err := GetAccountState(r, account)
	if err != nil {
		return err
	}
	next, err := AddCiphertexts(current.Ciphertext, delta)
	if err != nil {
		return err
	}
	return setCiphertext(w, account, current, next)
}

// SetCiphertextForAccount replaces the balance of account.
func SetCiphertextForAccount(r kvdb.KeyValueReader, w kvdb.KeyValueWriter, account common.Address, next Ciphertext) error {
	current, err := GetAccountState(r, account)
	if err != nil {
		return err
	}
	return setCiphertext(w, account, current, next)
}

func setCiphertext(w kvdb.KeyValueWriter, account common.Address, current AccountState, next Ciphertext) error {
	if current.Version == math.MaxUint64 {
		return ErrVersionOverflow
	}
	current.Ciphertext = next
	current.Version++
	return SetAccountState(w, account, current)
}

func CiphertextEqual(a, b Ciphertext) bool {
	return a == b
}

func AddCiphertexts(a, b Ciphertext) (Ciphertext, error) {
	ac, err := a.ToCrypto()
	if err != nil {
		return Ciphertext{}, err
	}
	bc, err := b.ToCrypto()
	if err != nil {
		return Ciphertext{}, err
	}
	return FromCrypto(cryptouno.Add(ac, bc)), nil
}

func SubCiphertexts(a, b Ciphertext) (Ciphertext, error) {
	ac, err := a.ToCrypto()
	if err != nil {
		return Ciphertext{}, err
	}
	bc, err := b.ToCrypto()
	if err != nil {
		return Ciphertext{}, err
	}
	return FromCrypto(cryptouno.Sub(ac, bc)), nil
}
