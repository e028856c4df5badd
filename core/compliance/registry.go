// Package compliance keeps the policy side of viewing keys: which keys were
// granted, whether they are still honoured, and what they may see. The
// cryptographic capability lives in crypto/viewkey; this package decides when
// the owner forwards ciphertexts to it.
package compliance

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/tos-network/ctprivacy/crypto/group"
	"github.com/tos-network/ctprivacy/crypto/uno"
	"github.com/tos-network/ctprivacy/crypto/viewkey"
	"github.com/tos-network/ctprivacy/kvdb"
)

var (
	// ErrViewingKeyPermissionDenied is returned when a viewing key is revoked,
	// expired, not granted for the account, or lacks the requested scope.
	ErrViewingKeyPermissionDenied = errors.New("compliance: viewing key permission denied")

	// ErrUnknownViewingKey is returned for ids that were never granted.
	ErrUnknownViewingKey = errors.New("compliance: unknown viewing key")

	// ErrAlreadyGranted is returned when a key id is granted twice.
	ErrAlreadyGranted = errors.New("compliance: viewing key already granted")
)

const recordCacheSize = 256

var recordPrefix = []byte("vk-")

func recordKey(id uuid.UUID) []byte {
	return append(append([]byte(nil), recordPrefix...), id[:]...)
}

// Record is a granted viewing key and its revocation state.
type Record struct {
	Key       *viewkey.ViewingKey
	GrantedAt time.Time
	RevokedAt time.Time // zero while active
}

// Revoked reports whether the key was revoked at or before now.
func (r *Record) Revoked(now time.Time) bool {
	return !r.RevokedAt.IsZero() && !now.Before(r.RevokedAt)
}

type recordRLP struct {
	Key       []byte // JSON export of the viewing key
	GrantedAt uint64
	RevokedAt uint64
}

func unixOrZero(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.Unix())
}

func timeOrZero(sec uint64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), 0).UTC()
}

func encodeRecord(r *Record) ([]byte, error) {
	key, err := json.Marshal(r.Key)
	if err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(&recordRLP{
		Key:       key,
		GrantedAt: unixOrZero(r.GrantedAt),
		RevokedAt: unixOrZero(r.RevokedAt),
	})
}

func decodeRecord(blob []byte) (*Record, error) {
	var raw recordRLP
	if err := rlp.DecodeBytes(blob, &raw); err != nil {
		return nil, err
	}
	vk := new(viewkey.ViewingKey)
	if err := json.Unmarshal(raw.Key, vk); err != nil {
		return nil, err
	}
	return &Record{Key: vk, GrantedAt: timeOrZero(raw.GrantedAt), RevokedAt: timeOrZero(raw.RevokedAt)}, nil
}

// Registry stores granted viewing keys in a key-value store.
type Registry struct {
	db    kvdb.KeyValueStore
	cache *lru.Cache // uuid.UUID -> *Record

	lock sync.Mutex // serialises read-modify-write of records
	log  log.Logger
}

// NewRegistry opens a registry over db.
func NewRegistry(db kvdb.KeyValueStore) *Registry {
	cache, _ := lru.New(recordCacheSize)
	return &Registry{db: db, cache: cache, log: log.New("module", "compliance")}
}

func (r *Registry) load(id uuid.UUID) (*Record, error) {
	if cached, ok := r.cache.Get(id); ok {
		return cached.(*Record), nil
	}
	blob, err := r.db.Get(recordKey(id))
	if errors.Is(err, kvdb.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownViewingKey, id)
	}
	if err != nil {
		return nil, err
	}
	rec, err := decodeRecord(blob)
	if err != nil {
		return nil, fmt.Errorf("corrupt viewing key record %s: %w", id, err)
	}
	r.cache.Add(id, rec)
	return rec, nil
}

func (r *Registry) store(rec *Record) error {
	blob, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := r.db.Put(recordKey(rec.Key.ID), blob); err != nil {
		return err
	}
	r.cache.Add(rec.Key.ID, rec)
	return nil
}

// Grant records vk as honoured from now on.
func (r *Registry) Grant(vk *viewkey.ViewingKey, now time.Time) error {
	if vk == nil {
		return viewkey.ErrInvalidViewingKey
	}
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, err := r.load(vk.ID); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyGranted, vk.ID)
	} else if !errors.Is(err, ErrUnknownViewingKey) {
		return err
	}
	if err := r.store(&Record{Key: vk, GrantedAt: now.UTC()}); err != nil {
		return err
	}
	r.log.Info("Granted viewing key", "id", vk.ID, "accounts", len(vk.Permissions.Accounts()), "expiry", vk.Expiry)
	return nil
}

// Issue generates a viewing key for grantee and grants it.
func (r *Registry) Issue(owner *group.KeyPair, grantee *group.Point, perms viewkey.Permissions, expiry, now time.Time) (*viewkey.ViewingKey, error) {
	vk, _, err := viewkey.Generate(owner, grantee, perms, expiry)
	if err != nil {
		return nil, err
	}
	if err := r.Grant(vk, now); err != nil {
		return nil, err
	}
	return vk, nil
}

// Get returns the record for id.
func (r *Registry) Get(id uuid.UUID) (*Record, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.load(id)
}

// Revoke stops forwarding under id from now on. Ciphertexts already forwarded
// stay readable by the grantee. Revoking twice keeps the first revocation.
func (r *Registry) Revoke(id uuid.UUID, now time.Time) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	rec, err := r.load(id)
	if err != nil {
		return err
	}
	if !rec.RevokedAt.IsZero() {
		return nil
	}
	next := *rec
	next.RevokedAt = now.UTC()
	if err := r.store(&next); err != nil {
		return err
	}
	r.log.Info("Revoked viewing key", "id", id)
	return nil
}

// Authorize checks that id may see scope of account at now and returns the
// viewing key.
func (r *Registry) Authorize(id uuid.UUID, account common.Address, scope viewkey.Scope, now time.Time) (*viewkey.ViewingKey, error) {
	rec, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	vk := rec.Key
	switch {
	case rec.Revoked(now):
		return nil, fmt.Errorf("%w: revoked", ErrViewingKeyPermissionDenied)
	case vk.Expired(now):
		return nil, fmt.Errorf("%w: expired", ErrViewingKeyPermissionDenied)
	case !vk.Permissions.AllowsAccount(account):
		return nil, fmt.Errorf("%w: account %s not granted", ErrViewingKeyPermissionDenied, account)
	case !vk.Permissions.AllowsScope(scope):
		return nil, fmt.Errorf("%w: scope %s not granted", ErrViewingKeyPermissionDenied, scope)
	}
	return vk, nil
}

// Forward authorizes the request and rekeys ct, encrypted to the owner's
// account key, to the viewing key.
func (r *Registry) Forward(id uuid.UUID, account common.Address, scope viewkey.Scope, ct uno.Ciphertext, owner *group.KeyPair, now time.Time) (uno.Ciphertext, error) {
	vk, err := r.Authorize(id, account, scope, now)
	if err != nil {
		r.log.Debug("Refused to forward ciphertext", "id", id, "account", account, "scope", scope, "err", err)
		return uno.Ciphertext{}, err
	}
	return viewkey.Rekey(ct, owner, vk)
}

// Records returns every granted record, in id order.
func (r *Registry) Records() ([]*Record, error) {
	it := r.db.NewIterator(recordPrefix, nil)
	defer it.Release()

	var out []*Record
	for it.Next() {
		rec, err := decodeRecord(it.Value())
		if err != nil {
			return nil, fmt.Errorf("corrupt viewing key record %x: %w", it.Key(), err)
		}
		out = append(out, rec)
	}
	return out, it.Error()
}
