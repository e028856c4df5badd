// Package dbtest holds the conformance suite every kvdb backend must pass.
package dbtest

import (
	"bytes"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tos-network/ctprivacy/kvdb"
)

// TestDatabaseSuite runs a suite of tests against a KeyValueStore database
// implementation.
func TestDatabaseSuite(t *testing.T, New func() kvdb.KeyValueStore) {
	t.Run("Iterator", func(t *testing.T) {
		tests := []struct {
			content map[string]string
			prefix  string
			start   string
			order   []string
		}{
			// Empty databases should be iterable
			{map[string]string{}, "", "", nil},
			{map[string]string{}, "non-existent-prefix", "", nil},

			// Single-item databases should be iterable
			{map[string]string{"key": "val"}, "", "", []string{"key"}},
			{map[string]string{"key": "val"}, "k", "", []string{"key"}},
			{map[string]string{"key": "val"}, "l", "", nil},

			// Multi-item databases should be fully iterable
			{
				map[string]string{"k1": "v1", "k5": "v5", "k2": "v2", "k4": "v4", "k3": "v3"},
				"", "",
				[]string{"k1", "k2", "k3", "k4", "k5"},
			},
			{
				map[string]string{"k1": "v1", "k5": "v5", "k2": "v2", "k4": "v4", "k3": "v3"},
				"k", "",
				[]string{"k1", "k2", "k3", "k4", "k5"},
			},
			// Prefixes and start positions combine
			{
				map[string]string{
					"ka1": "va1", "ka5": "va5", "ka2": "va2", "ka4": "va4", "ka3": "va3",
					"kb1": "vb1", "kb5": "vb5", "kb2": "vb2", "kb4": "vb4", "kb3": "vb3",
				},
				"kb", "3",
				[]string{"kb3", "kb4", "kb5"},
			},
			{
				map[string]string{"ka1": "va1", "ka2": "va2", "kb1": "vb1"},
				"ka", "9",
				nil,
			},
		}
		for i, tt := range tests {
			db := New()
			for key, val := range tt.content {
				require.NoError(t, db.Put([]byte(key), []byte(val)), "test %d", i)
			}
			it := db.NewIterator([]byte(tt.prefix), []byte(tt.start))
			var got []string
			for it.Next() {
				got = append(got, string(it.Key()))
				require.Equal(t, tt.content[string(it.Key())], string(it.Value()), "test %d", i)
			}
			require.NoError(t, it.Error(), "test %d", i)
			it.Release()
			require.Equal(t, tt.order, got, "test %d", i)
			db.Close()
		}
	})

	t.Run("KeyValueOperations", func(t *testing.T) {
		db := New()
		defer db.Close()

		key := []byte("foo")
		got, err := db.Has(key)
		require.NoError(t, err)
		require.False(t, got)

		_, err = db.Get(key)
		require.True(t, errors.Is(err, kvdb.ErrNotFound), "missing key: %v", err)

		value := []byte("hello world")
		require.NoError(t, db.Put(key, value))
		got, err = db.Has(key)
		require.NoError(t, err)
		require.True(t, got)

		dat, err := db.Get(key)
		require.NoError(t, err)
		require.Equal(t, value, dat)

		// The store must not alias caller-owned buffers.
		value[0] = 'j'
		dat, err = db.Get(key)
		require.NoError(t, err)
		require.Equal(t, []byte("hello world"), dat)

		require.NoError(t, db.Delete(key))
		got, err = db.Has(key)
		require.NoError(t, err)
		require.False(t, got)
	})

	t.Run("Batch", func(t *testing.T) {
		db := New()
		defer db.Close()

		b := db.NewBatch()
		for _, k := range []string{"1", "2", "3", "4"} {
			require.NoError(t, b.Put([]byte(k), nil))
		}
		has, err := db.Has([]byte("1"))
		require.NoError(t, err)
		require.False(t, has, "batch leaked before Write")

		require.NoError(t, b.Write())
		require.Equal(t, []string{"1", "2", "3", "4"}, iterateKeys(db.NewIterator(nil, nil)))

		b.Reset()
		require.Equal(t, 0, b.ValueSize())
		require.NoError(t, b.Delete([]byte("2")))
		require.NoError(t, b.Put([]byte("5"), []byte("v")))
		require.NoError(t, b.Write())
		require.Equal(t, []string{"1", "3", "4", "5"}, iterateKeys(db.NewIterator(nil, nil)))
	})

	t.Run("IteratorSnapshot", func(t *testing.T) {
		db := New()
		defer db.Close()

		keys := [][]byte{[]byte("b"), []byte("a"), []byte("c")}
		for _, k := range keys {
			require.NoError(t, db.Put(k, k))
		}
		sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })

		it := db.NewIterator(nil, nil)
		require.NoError(t, db.Put([]byte("d"), []byte("d")))
		var got [][]byte
		for it.Next() {
			got = append(got, append([]byte(nil), it.Key()...))
		}
		it.Release()
		require.Equal(t, keys, got)
	})
}

func iterateKeys(it kvdb.Iterator) []string {
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	sort.Strings(keys)
	it.Release()
	return keys
}
