package reembed

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/storage/badger"
	"github.com/stretchr/testify/require"
)

func setupTestCatalog(t *testing.T, rows int) *badger.CatalogRepository {
	t.Helper()
	catalog, err := badger.NewMemoryCatalog()
	require.NoError(t, err)
	t.Cleanup(func() { catalog.Close() })

	entries := make([]core.CatalogEntry, rows)
	for i := range entries {
		entries[i] = core.CatalogEntry{
			ProductID:        fmt.Sprintf("P-%03d", i),
			RangeLabel:       fmt.Sprintf("Range %d", i%7),
			Description:      fmt.Sprintf("Catalog row %d", i),
			ProductLine:      "Medium Voltage",
			CommercialStatus: "Discontinued",
		}
	}
	if rows > 0 {
		require.NoError(t, catalog.AddEntries(context.Background(), entries...))
	}
	return catalog
}
