// Package stealth implements one-time payment addresses: a sender derives a
// fresh address from a recipient's published meta-address, and only the holder
// of the matching view key can recognise it.
package stealth

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/tos-network/ctprivacy/crypto/group"
)

var (
	// ErrInvalidStealthAddress indicates a structural failure in a stealth
	// computation: bad or identity points, bad memo payloads, or a claimed key
	// that does not open the address.
	ErrInvalidStealthAddress = errors.New("stealth: invalid stealth address")
)

const metaAddressSize = 2 * group.PointSize

// MetaAddress is a recipient's publishable receiving identity.
type MetaAddress struct {
	View  *group.Point
	Spend *group.Point
}

// Validate rejects identity points and equal view/spend points.
func (m MetaAddress) Validate() error {
	if m.View == nil || m.Spend == nil {
		return fmt.Errorf("%w: incomplete meta-address", ErrInvalidStealthAddress)
	}
	if group.IsIdentity(m.View) || group.IsIdentity(m.Spend) {
		return fmt.Errorf("%w: identity point in meta-address", ErrInvalidStealthAddress)
	}
	if group.PointEqual(m.View, m.Spend) {
		return fmt.Errorf("%w: view and spend keys are equal", group.ErrWeakKeyMaterial)
	}
	return nil
}

// Bytes returns view || spend.
func (m MetaAddress) Bytes() [metaAddressSize]byte {
	var out [metaAddressSize]byte
	v := group.EncodePoint(m.View)
	s := group.EncodePoint(m.Spend)
	copy(out[:group.PointSize], v[:])
	copy(out[group.PointSize:], s[:])
	return out
}

// String encodes the meta-address as base58(view || spend).
func (m MetaAddress) String() string {
	raw := m.Bytes()
	return base58.Encode(raw[:])
}

// ParseMetaAddress decodes the base58 form produced by String.
func ParseMetaAddress(s string) (MetaAddress, error) {
	raw := base58.Decode(s)
	if len(raw) != metaAddressSize {
		return MetaAddress{}, fmt.Errorf("%w: meta-address must decode to %d bytes", ErrInvalidStealthAddress, metaAddressSize)
	}
	view, err := group.DecodePublicPoint(raw[:group.PointSize])
	if err != nil {
		return MetaAddress{}, fmt.Errorf("%w: view key: %v", ErrInvalidStealthAddress, err)
	}
	spend, err := group.DecodePublicPoint(raw[group.PointSize:])
	if err != nil {
		return MetaAddress{}, fmt.Errorf("%w: spend key: %v", ErrInvalidStealthAddress, err)
	}
	m := MetaAddress{View: view, Spend: spend}
	if err := m.Validate(); err != nil {
		return MetaAddress{}, err
	}
	return m, nil
}

// Keys holds a recipient's stealth secrets together with the meta-address.
type Keys struct {
	Meta  MetaAddress
	View  *group.KeyPair
	Spend *group.KeyPair
}

// GenerateMetaAddress derives view and spend key pairs. With a seed both
// scalars are derived deterministically under separate domain tags; with a nil
// seed they are drawn from crypto/rand.
func GenerateMetaAddress(seed []byte) (*Keys, error) {
	var viewPriv, spendPriv *group.Scalar
	if seed != nil {
		if len(seed) == 0 {
			return nil, fmt.Errorf("%w: empty seed", group.ErrWeakKeyMaterial)
		}
		viewPriv = group.HashToScalar(group.TagStealthViewSeed, seed)
		spendPriv = group.HashToScalar(group.TagStealthSpend, seed)
	} else {
		var err error
		if viewPriv, err = group.RandomScalar(nil); err != nil {
			return nil, err
		}
		if spendPriv, err = group.RandomScalar(nil); err != nil {
			return nil, err
		}
	}
	return KeysFromScalars(viewPriv, spendPriv)
}

// KeysFromScalars rebuilds stealth keys from stored private scalars.
func KeysFromScalars(viewPriv, spendPriv *group.Scalar) (*Keys, error) {
	if group.IsZeroScalar(viewPriv) || group.IsZeroScalar(spendPriv) {
		return nil, group.ErrWeakKeyMaterial
	}
	view, err := group.KeyPairFromScalar(viewPriv)
	if err != nil {
		return nil, err
	}
	spend, err := group.KeyPairFromScalar(spendPriv)
	if err != nil {
		return nil, err
	}
	keys := &Keys{
		Meta:  MetaAddress{View: view.Public(), Spend: spend.Public()},
		View:  view,
		Spend: spend,
	}
	if err := keys.Meta.Validate(); err != nil {
		return nil, err
	}
	return keys, nil
}
