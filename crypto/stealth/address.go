package stealth

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tos-network/ctprivacy/crypto/group"
)

// Address is a one-time stealth address, the point spend + s·G.
type Address struct {
	point *group.Point
}

// AddressFromPoint wraps a point as a stealth address.
func AddressFromPoint(p *group.Point) (Address, error) {
	if p == nil || group.IsIdentity(p) {
		return Address{}, fmt.Errorf("%w: identity address", ErrInvalidStealthAddress)
	}
	return Address{point: group.CopyPoint(p)}, nil
}

// ParseAddress decodes the base58 form produced by String.
func ParseAddress(s string) (Address, error) {
	raw := base58.Decode(s)
	if len(raw) != group.PointSize {
		return Address{}, fmt.Errorf("%w: address decodes to %d bytes", ErrInvalidStealthAddress, len(raw))
	}
	p, err := group.DecodePublicPoint(raw)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidStealthAddress, err)
	}
	return Address{point: p}, nil
}

// Point returns a copy of the address point. It doubles as the public key of
// the one-time account.
func (a Address) Point() *group.Point {
	if a.point == nil {
		return group.Identity()
	}
	return group.CopyPoint(a.point)
}

func (a Address) Bytes() [group.PointSize]byte {
	return group.EncodePoint(a.Point())
}

func (a Address) String() string {
	raw := a.Bytes()
	return base58.Encode(raw[:])
}

// Account is the ledger account identifier of the address: the last 20 bytes
// of keccak256 over the point encoding.
func (a Address) Account() common.Address {
	raw := a.Bytes()
	return common.BytesToAddress(crypto.Keccak256(raw[:])[12:])
}

func (a Address) Equal(other Address) bool {
	return group.PointEqual(a.Point(), other.Point())
}

// EphemeralKey is the per-payment public key published next to a payment.
type EphemeralKey struct {
	Public *group.Point
}

// Payment is the sender's view of one stealth payment.
type Payment struct {
	Address   Address
	Ephemeral EphemeralKey
	Memo      string

	// Shared is the derived scalar s. Only the sender holds it; it lets the
	// sender prove the derivation later with VerifyDerivedAddress.
	Shared *group.Scalar
}

func sharedScalar(dh *group.Point) *group.Scalar {
	enc := group.EncodePoint(dh)
	return group.HashToScalar(group.TagStealthShared, enc[:])
}

func deriveAddress(spend *group.Point, shared *group.Scalar) *group.Point {
	return group.Add(spend, group.ScalarBaseMult(shared))
}

// GenerateAddress derives a fresh one-time address for meta under a new
// ephemeral scalar and renders the memo that must be published with the
// payment.
func GenerateAddress(meta MetaAddress, metadata string) (*Payment, error) {
	ephemeral, err := group.RandomScalar(nil)
	if err != nil {
		return nil, err
	}
	return GenerateAddressWithEphemeral(meta, ephemeral, metadata)
}

// GenerateAddressWithEphemeral is GenerateAddress with a caller-provided
// ephemeral scalar.
func GenerateAddressWithEphemeral(meta MetaAddress, ephemeral *group.Scalar, metadata string) (*Payment, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if group.IsZeroScalar(ephemeral) {
		return nil, group.ErrWeakKeyMaterial
	}
	shared := sharedScalar(group.ScalarMult(ephemeral, meta.View))
	addr, err := AddressFromPoint(deriveAddress(meta.Spend, shared))
	if err != nil {
		return nil, err
	}
	ephemeralPub := group.ScalarBaseMult(ephemeral)
	return &Payment{
		Address:   addr,
		Ephemeral: EphemeralKey{Public: ephemeralPub},
		Memo:      EncodeMemo(ephemeralPub, metadata),
		Shared:    shared,
	}, nil
}

// VerifyStealthAddress performs the checks available to anyone holding only
// public data: every point is a valid non-identity element and the address is
// not the bare spend key. Recomputing the address requires the view key, so
// this cannot confirm the derivation.
func VerifyStealthAddress(address Address, meta MetaAddress, ephemeral *group.Point) error {
	if err := meta.Validate(); err != nil {
		return err
	}
	if ephemeral == nil || group.IsIdentity(ephemeral) {
		return fmt.Errorf("%w: identity ephemeral key", ErrInvalidStealthAddress)
	}
	if address.point == nil || group.IsIdentity(address.point) {
		return fmt.Errorf("%w: identity address", ErrInvalidStealthAddress)
	}
	if group.PointEqual(address.point, meta.Spend) {
		return fmt.Errorf("%w: address equals spend key", ErrInvalidStealthAddress)
	}
	return nil
}

// VerifyDerivedAddress recomputes the address from the shared scalar retained
// by the sender.
func VerifyDerivedAddress(address Address, meta MetaAddress, shared *group.Scalar) error {
	if err := meta.Validate(); err != nil {
		return err
	}
	if !group.PointEqual(deriveAddress(meta.Spend, shared), address.Point()) {
		return fmt.Errorf("%w: address does not match derivation", ErrInvalidStealthAddress)
	}
	return nil
}

// Claim derives the spending key pair of a detected payment:
// spend + s. The result is checked to open the payment address.
func Claim(match *Match, spend *group.KeyPair) (*group.KeyPair, error) {
	if match == nil || match.shared == nil {
		return nil, fmt.Errorf("%w: empty match", ErrInvalidStealthAddress)
	}
	if err := spend.Check(); err != nil {
		return nil, err
	}
	kp, err := group.KeyPairFromScalar(group.AddScalars(spend.Private(), match.shared))
	if err != nil {
		return nil, err
	}
	if !group.PointEqual(kp.Public(), match.Address.Point()) {
		return nil, fmt.Errorf("%w: spending key does not open address", ErrInvalidStealthAddress)
	}
	return kp, nil
}
