package memorydb

import (
	"testing"

	"github.com/tos-network/ctprivacy/kvdb"
	"github.com/tos-network/ctprivacy/kvdb/dbtest"
)

func TestMemoryDB(t *testing.T) {
	t.Run("DatabaseSuite", func(t *testing.T) {
		dbtest.TestDatabaseSuite(t, func() kvdb.KeyValueStore {
			return New()
		})
	})
}
