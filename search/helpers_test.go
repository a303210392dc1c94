package search

import (
	"context"
	"testing"

	"github.com/poiesic/rangefinder/ai/mock"
	"github.com/poiesic/rangefinder/core"
	catalogstore "github.com/poiesic/rangefinder/storage/badger"
	"github.com/stretchr/testify/require"
)

func testEntries() []core.CatalogEntry {
	return []core.CatalogEntry{
		{
			ProductID:        "PIX2B-001",
			RangeLabel:       "PIX2B",
			Description:      "Double busbar switchgear",
			Brand:            "Schneider Electric",
			ProductLine:      "Medium Voltage",
			CommercialStatus: "Discontinued",
			Numeric:          map[string]float64{"voltage_kv": 17.5, "current_a": 2500},
		},
		{
			ProductID:        "PIX2C-002",
			RangeLabel:       "PIX2C",
			Description:      "Compact switchgear",
			ProductLine:      "Medium Voltage",
			CommercialStatus: "Commercialised",
			Numeric:          map[string]float64{"voltage_kv": 24},
		},
		{
			ProductID:        "SM6-24-100",
			RangeLabel:       "SM6",
			SubrangeLabel:    "SM6-24",
			Description:      "Modular ring main unit",
			ProductLine:      "Medium Voltage",
			CommercialStatus: "Discontinued",
			Numeric:          map[string]float64{"voltage_kv": 15},
		},
		{
			ProductID:        "RM6-36-200",
			RangeLabel:       "RM6",
			Description:      "Ring main unit 36 kV",
			ProductLine:      "Medium Voltage",
			CommercialStatus: "Discontinued",
			Numeric:          map[string]float64{"voltage_kv": 25},
		},
		{
			ProductID:        "GVM-010",
			RangeLabel:       "Galaxy VM",
			Description:      "Three-phase UPS 160 kVA",
			ProductLine:      "Secure Power",
			CommercialStatus: "Discontinued",
		},
	}
}

func entryByID(t *testing.T, id string) core.CatalogEntry {
	t.Helper()
	for _, e := range testEntries() {
		if e.ProductID == id {
			return e
		}
	}
	t.Fatalf("no test entry %q", id)
	return core.CatalogEntry{}
}

func newTestCatalog(t *testing.T) *catalogstore.CatalogRepository {
	t.Helper()
	catalog, err := catalogstore.NewMemoryCatalog()
	require.NoError(t, err)
	t.Cleanup(func() { catalog.Close() })

	require.NoError(t, catalog.AddEntries(context.Background(), testEntries()...))
	return catalog
}

// pinnedEmbedder returns pinned vectors, and a zero vector (similarity 0 to
// everything) for any other text.
func pinnedEmbedder(pins map[string][]float32) *mock.MockEmbedder {
	e := mock.NewMockEmbedder()
	e.EmbedTextFunc = func(_ context.Context, text string) ([]float32, error) {
		if v, ok := pins[text]; ok {
			return v, nil
		}
		return []float32{0, 0, 0, 0}, nil
	}
	return e
}

// examplePins pins the query "PIX 2B" close to the PIX2B row and orthogonal to PIX2C.
func examplePins(t *testing.T) map[string][]float32 {
	pix2b := entryByID(t, "PIX2B-001")
	pix2c := entryByID(t, "PIX2C-002")
	return map[string][]float32{
		"PIX 2B":              {1, 0, 0, 0},
		pix2b.EmbeddingText(): {0.9, 0.1, 0, 0},
		pix2c.EmbeddingText(): {0, 1, 0, 0},
	}
}

func newTestPool(t *testing.T, embedder *mock.MockEmbedder, store *catalogstore.CatalogRepository) *EmbeddingPool {
	t.Helper()
	var pool *EmbeddingPool
	var err error
	if store != nil {
		pool, err = NewEmbeddingPool(embedder, 2, store, nil)
	} else {
		pool, err = NewEmbeddingPool(embedder, 2, nil, nil)
	}
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// fakeRepo is a CatalogRepository with injectable behavior.
type fakeRepo struct {
	textFunc    func(ctx context.Context, patterns, fields []string, limit int) ([]core.CatalogEntry, error)
	numericFunc func(ctx context.Context, field string, min, max float64, limit int) ([]core.CatalogEntry, error)
}

func (f *fakeRepo) SearchByText(ctx context.Context, patterns, fields []string, limit int) ([]core.CatalogEntry, error) {
	if f.textFunc == nil {
		return nil, nil
	}
	return f.textFunc(ctx, patterns, fields, limit)
}

func (f *fakeRepo) SearchByNumericRange(ctx context.Context, field string, min, max float64, limit int) ([]core.CatalogEntry, error) {
	if f.numericFunc == nil {
		return nil, nil
	}
	return f.numericFunc(ctx, field, min, max, limit)
}

func candidateIDs(cands []core.CandidateMatch) []string {
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.ProductID()
	}
	return ids
}
