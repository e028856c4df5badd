package viewkey

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/tos-network/ctprivacy/crypto/group"
)

type permissionsJSON struct {
	CanViewBalances bool             `json:"canViewBalances"`
	CanViewAmounts  bool             `json:"canViewAmounts"`
	AllowedAccounts []common.Address `json:"allowedAccounts"`
}

type viewingKeyJSON struct {
	ID                         uuid.UUID       `json:"id"`
	ViewingPublicKey           hexutil.Bytes   `json:"viewingPublicKey"`
	EncryptedViewingPrivateKey hexutil.Bytes   `json:"encryptedViewingPrivateKey"`
	Owner                      hexutil.Bytes   `json:"owner"`
	Grantee                    hexutil.Bytes   `json:"grantee"`
	Permissions                permissionsJSON `json:"permissions"`
	Expiry                     *time.Time      `json:"expiry,omitempty"`
}

func pointBytes(p *group.Point) hexutil.Bytes {
	enc := group.EncodePoint(p)
	return enc[:]
}

// MarshalJSON implements json.Marshaler.
func (vk *ViewingKey) MarshalJSON() ([]byte, error) {
	enc := viewingKeyJSON{
		ID:                         vk.ID,
		ViewingPublicKey:           pointBytes(vk.ViewingPublicKey),
		EncryptedViewingPrivateKey: common.CopyBytes(vk.EncryptedViewingPrivateKey),
		Owner:                      pointBytes(vk.Owner),
		Grantee:                    pointBytes(vk.Grantee),
		Permissions: permissionsJSON{
			CanViewBalances: vk.Permissions.CanViewBalances,
			CanViewAmounts:  vk.Permissions.CanViewAmounts,
			AllowedAccounts: vk.Permissions.Accounts(),
		},
	}
	if !vk.Expiry.IsZero() {
		expiry := vk.Expiry
		enc.Expiry = &expiry
	}
	return json.Marshal(&enc)
}

// UnmarshalJSON implements json.Unmarshaler. Points are validated; the seal
// is only checked when the key is opened.
func (vk *ViewingKey) UnmarshalJSON(input []byte) error {
	var dec viewingKeyJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	points := make([]*group.Point, 3)
	for i, raw := range []hexutil.Bytes{dec.ViewingPublicKey, dec.Owner, dec.Grantee} {
		p, err := group.DecodePublicPoint(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidViewingKey, err)
		}
		points[i] = p
	}
	out := ViewingKey{
		ID:                         dec.ID,
		ViewingPublicKey:           points[0],
		EncryptedViewingPrivateKey: dec.EncryptedViewingPrivateKey,
		Owner:                      points[1],
		Grantee:                    points[2],
		Permissions: NewPermissions(
			dec.Permissions.CanViewBalances,
			dec.Permissions.CanViewAmounts,
			dec.Permissions.AllowedAccounts...,
		),
	}
	if dec.Expiry != nil {
		out.Expiry = dec.Expiry.UTC()
	}
	if err := out.validate(); err != nil {
		return err
	}
	*vk = out
	return nil
}
