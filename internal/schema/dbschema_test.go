package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arkeep-io/actorrpc/internal/sqlstore"
)

func TestDescribeDatabaseReflectsKVTable(t *testing.T) {
	dir := t.TempDir()
	store, err := sqlstore.Open("widget-1", sqlstore.Config{DataDir: dir, Logger: zap.NewNop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Put("k", []byte("v")))

	sqlDB, err := store.SQLDB()
	require.NoError(t, err)

	doc, err := DescribeDatabase(sqlDB)
	require.NoError(t, err)
	require.Len(t, doc.Tables, 1)
	require.Equal(t, "actor_kv", doc.Tables[0].Name)

	var names []string
	for _, c := range doc.Tables[0].Columns {
		names = append(names, c.Name)
	}
	require.Contains(t, names, "key")
	require.Contains(t, names, "value")
}
