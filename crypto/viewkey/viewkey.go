// Package viewkey implements viewing keys: sealed capability tokens that let a
// designated grantee decrypt balances and amounts of an account without
// gaining its private scalar.
//
// A viewing key carries a fresh scalar v sealed to the grantee under a key
// derived from the owner/grantee Diffie-Hellman secret. Ciphertexts remain
// encrypted to the account key; the owner forwards them to the viewing key
// with Rekey, which is where permissions and revocation take effect.
package viewkey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/tos-network/ctprivacy/crypto/group"
	"github.com/tos-network/ctprivacy/crypto/uno"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var randReader io.Reader = rand.Reader

var (
	// ErrInvalidViewingKey is returned for malformed or inconsistent viewing
	// keys, including a sealed scalar that does not match the viewing public key.
	ErrInvalidViewingKey = errors.New("viewkey: invalid viewing key")

	// ErrNotAuthorized is returned when the opening key pair is neither the
	// owner nor the grantee named in the viewing key, or the seal fails to
	// authenticate.
	ErrNotAuthorized = errors.New("viewkey: key pair cannot open viewing key")
)

// ViewingKey is the capability handed to a grantee.
type ViewingKey struct {
	ID                         uuid.UUID
	ViewingPublicKey           *group.Point
	EncryptedViewingPrivateKey []byte // nonce || XChaCha20-Poly1305 ciphertext
	Owner                      *group.Point
	Grantee                    *group.Point
	Permissions                Permissions
	Expiry                     time.Time // zero means no expiry
}

// Expired reports whether the key's expiry lies at or before now.
func (vk *ViewingKey) Expired(now time.Time) bool {
	return !vk.Expiry.IsZero() && !now.Before(vk.Expiry)
}

func (vk *ViewingKey) validate() error {
	if vk == nil {
		return fmt.Errorf("%w: nil", ErrInvalidViewingKey)
	}
	for name, p := range map[string]*group.Point{"viewing": vk.ViewingPublicKey, "owner": vk.Owner, "grantee": vk.Grantee} {
		if p == nil || group.IsIdentity(p) {
			return fmt.Errorf("%w: missing %s key", ErrInvalidViewingKey, name)
		}
	}
	if len(vk.EncryptedViewingPrivateKey) < chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return fmt.Errorf("%w: sealed key too short", ErrInvalidViewingKey)
	}
	return nil
}

// additionalData binds every public field of the key into the seal, so a
// grantee cannot widen permissions or move the expiry without the seal
// failing to open.
func (vk *ViewingKey) additionalData() []byte {
	var buf []byte
	buf = append(buf, vk.ID[:]...)
	for _, p := range []*group.Point{vk.ViewingPublicKey, vk.Owner, vk.Grantee} {
		enc := group.EncodePoint(p)
		buf = append(buf, enc[:]...)
	}
	perms := vk.Permissions.canonical()
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(perms)))
	buf = append(buf, perms...)
	var expiry int64
	if !vk.Expiry.IsZero() {
		expiry = vk.Expiry.Unix()
	}
	return binary.BigEndian.AppendUint64(buf, uint64(expiry))
}

func sealKey(dh *group.Point, id uuid.UUID) ([]byte, error) {
	secret := group.EncodePoint(dh)
	kdf := hkdf.New(sha256.New, secret[:], id[:], []byte(group.TagViewingKeyKDF))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Generate creates a viewing key for grantee over owner's account. Permissions
// must name at least one account. A zero expiry never expires.
func Generate(owner *group.KeyPair, grantee *group.Point, perms Permissions, expiry time.Time) (*ViewingKey, *group.KeyPair, error) {
	if err := owner.Check(); err != nil {
		return nil, nil, err
	}
	if grantee == nil || group.IsIdentity(grantee) {
		return nil, nil, fmt.Errorf("%w: identity grantee", group.ErrInvalidGroupElement)
	}
	if len(perms.Accounts()) == 0 {
		return nil, nil, fmt.Errorf("%w: no allowed accounts", ErrInvalidViewingKey)
	}
	viewing, err := group.NewKeyPair(nil)
	if err != nil {
		return nil, nil, err
	}
	dh, err := owner.SharedSecret(grantee)
	if err != nil {
		return nil, nil, err
	}
	vk := &ViewingKey{
		ID:               uuid.New(),
		ViewingPublicKey: viewing.Public(),
		Owner:            owner.Public(),
		Grantee:          group.CopyPoint(grantee),
		Permissions:      perms,
	}
	if !expiry.IsZero() {
		vk.Expiry = expiry.UTC().Truncate(time.Second)
	}
	key, err := sealKey(dh, vk.ID)
	if err != nil {
		return nil, nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+group.ScalarSize+aead.Overhead())
	if _, err := io.ReadFull(randReader, nonce); err != nil {
		return nil, nil, err
	}
	plain := viewing.PrivateBytes()
	vk.EncryptedViewingPrivateKey = aead.Seal(nonce, nonce, plain[:], vk.additionalData())

	log.Debug("Generated viewing key", "id", vk.ID, "accounts", len(perms.Accounts()), "expiry", vk.Expiry)
	return vk, viewing, nil
}

func open(vk *ViewingKey, dh *group.Point) (*group.KeyPair, error) {
	key, err := sealKey(dh, vk.ID)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := vk.EncryptedViewingPrivateKey[:chacha20poly1305.NonceSizeX]
	sealed := vk.EncryptedViewingPrivateKey[chacha20poly1305.NonceSizeX:]
	plain, err := aead.Open(nil, nonce, sealed, vk.additionalData())
	if err != nil {
		return nil, ErrNotAuthorized
	}
	kp, err := group.KeyPairFromBytes(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidViewingKey, err)
	}
	if !group.PointEqual(kp.Public(), vk.ViewingPublicKey) {
		return nil, fmt.Errorf("%w: sealed scalar does not match viewing public key", ErrInvalidViewingKey)
	}
	return kp, nil
}

// OpenAsGrantee recovers the viewing key pair with the grantee's key pair.
func OpenAsGrantee(vk *ViewingKey, grantee *group.KeyPair) (*group.KeyPair, error) {
	if err := vk.validate(); err != nil {
		return nil, err
	}
	if err := grantee.Check(); err != nil {
		return nil, err
	}
	if !group.PointEqual(grantee.Public(), vk.Grantee) {
		return nil, ErrNotAuthorized
	}
	dh, err := grantee.SharedSecret(vk.Owner)
	if err != nil {
		return nil, err
	}
	return open(vk, dh)
}

// OpenAsOwner recovers the viewing key pair with the account key pair.
func OpenAsOwner(vk *ViewingKey, owner *group.KeyPair) (*group.KeyPair, error) {
	if err := vk.validate(); err != nil {
		return nil, err
	}
	if err := owner.Check(); err != nil {
		return nil, err
	}
	if !group.PointEqual(owner.Public(), vk.Owner) {
		return nil, ErrNotAuthorized
	}
	dh, err := owner.SharedSecret(vk.Grantee)
	if err != nil {
		return nil, err
	}
	return open(vk, dh)
}

// Decrypt opens the viewing key as grantee and decrypts ct, which must be
// encrypted to the viewing public key (see Rekey).
func Decrypt(ct uno.Ciphertext, vk *ViewingKey, grantee *group.KeyPair) (uint64, error) {
	return DecryptWithBound(ct, vk, grantee, uno.DefaultDecryptBound)
}

// DecryptWithBound is Decrypt with an explicit discrete-log search bound.
func DecryptWithBound(ct uno.Ciphertext, vk *ViewingKey, grantee *group.KeyPair, bound uint64) (uint64, error) {
	viewing, err := OpenAsGrantee(vk, grantee)
	if err != nil {
		return 0, err
	}
	return uno.DecryptWithBound(ct, viewing.Private(), bound)
}

// Rekey translates a ciphertext under the owner's account key into one under
// the viewing key: (C1, C2 - x·C1 + v·C1). The amount is unchanged and never
// revealed to the owner process.
func Rekey(ct uno.Ciphertext, owner *group.KeyPair, vk *ViewingKey) (uno.Ciphertext, error) {
	viewing, err := OpenAsOwner(vk, owner)
	if err != nil {
		return uno.Ciphertext{}, err
	}
	return rekeyWith(ct, owner.Private(), viewing.Private()), nil
}

func rekeyWith(ct uno.Ciphertext, accountPriv, viewingPriv *group.Scalar) uno.Ciphertext {
	c1 := ct.Ephemeral()
	delta := group.SubScalars(viewingPriv, accountPriv)
	return uno.NewCiphertext(c1, group.Add(ct.Masked(), group.ScalarMult(delta, c1)))
}
