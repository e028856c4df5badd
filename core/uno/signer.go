package uno

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tos-network/ctprivacy/crypto/group"
	"github.com/tos-network/ctprivacy/kvdb"
)

// RequireEncryptionKey returns the registered encryption public key of account.
func RequireEncryptionKey(db kvdb.KeyValueReader, account common.Address) (*group.Point, error) {
	st, err := GetAccountState(db, account)
	if err != nil {
		return nil, err
	}
	if len(st.EncryptionKey) == 0 {
		return nil, ErrEncryptionKeyNotConfigured
	}
	pub, err := group.DecodePublicPoint(st.EncryptionKey)
	if err != nil {
		return nil, ErrInvalidPayload
	}
	return pub, nil
}

// RegisterEncryptionKey binds key to account. Re-registering the same key is
// a no-op; a different key fails with ErrEncryptionKeyMismatch.
func RegisterEncryptionKey(r kvdb.KeyValueReader, w kvdb.KeyValueWriter, account common.Address, key []byte) error {
	if _, err := group.DecodePublicPoint(key); err != nil {
		return ErrInvalidPayload
	}
	st, err := GetAccountState(r, account)
	if err != nil {
		return err
	}
	if len(st.EncryptionKey) != 0 {
		if !bytes.Equal(st.EncryptionKey, key) {
			return ErrEncryptionKeyMismatch
		}
		return nil
	}
	st.EncryptionKey = common.CopyBytes(key)
	return SetAccountState(w, account, st)
}

// KeyAccount is the account identifier owned by an encryption key: the last
// 20 bytes of keccak256 over its encoding. One-time stealth accounts use it.
func KeyAccount(key []byte) common.Address {
	return common.BytesToAddress(crypto.Keccak256(key)[12:])
}
