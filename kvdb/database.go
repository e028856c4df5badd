// Package kvdb defines the key-value storage interfaces shared by the
// compliance registry and the ledger stand-in.
package kvdb

import (
	"errors"
	"io"
)

// ErrNotFound is returned by Get for missing keys.
var ErrNotFound = errors.New("kvdb: not found")

// KeyValueReader wraps the Has and Get methods of a backing data store.
type KeyValueReader interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
}

// KeyValueWriter wraps the Put and Delete methods of a backing data store.
type KeyValueWriter interface {
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

// Iterator iterates over a key-value store's key/value pairs in ascending key
// order. Key and Value are only valid until the next call to Next.
type Iterator interface {
	Next() bool
	Error() error
	Key() []byte
	Value() []byte
	Release()
}

// Iteratee wraps the NewIterator method of a backing data store.
type Iteratee interface {
	// NewIterator creates an iterator over the subset of keys with a
	// particular prefix, starting at a particular key (relative to prefix).
	NewIterator(prefix []byte, start []byte) Iterator
}

// Batch is a write-only store that commits changes to its host on Write.
type Batch interface {
	KeyValueWriter
	ValueSize() int
	Write() error
	Reset()
}

// Batcher wraps the NewBatch method of a backing data store.
type Batcher interface {
	NewBatch() Batch
}

// KeyValueStore contains all the methods required to back the registry and
// ledger state.
type KeyValueStore interface {
	KeyValueReader
	KeyValueWriter
	Iteratee
	Batcher
	io.Closer
}
