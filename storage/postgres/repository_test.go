package postgres

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingQuerier struct {
	err   error
	calls int
}

func (q *failingQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.calls++
	return nil, q.err
}

func newTestRepository(t *testing.T, opts ...Option) (*Repository, *failingQuerier) {
	t.Helper()
	q := &failingQuerier{err: errors.New("connection refused")}
	r, err := NewRepositoryWithQuerier(q, opts...)
	require.NoError(t, err)
	return r, q
}

func TestBuildTextQuery(t *testing.T) {
	r, _ := newTestRepository(t)

	t.Run("patterns and fields", func(t *testing.T) {
		q, args, err := r.buildTextQuery([]string{"PIX 2B", "50%_off"}, []string{core.FieldRangeLabel, core.FieldDescription}, 40)
		require.NoError(t, err)

		assert.Contains(t, q, `FROM "catalog_products"`)
		assert.Contains(t, q, `"range_label" % ANY($2::text[])`)
		assert.Contains(t, q, `"description" %> ANY($2::text[])`)
		assert.Contains(t, q, `regexp_replace(lower("range_label")`)
		assert.Contains(t, q, `ORDER BY greatest(coalesce((SELECT max(similarity(coalesce("range_label", ''), p)) FROM unnest($2::text[]) AS p), 0), `)
		assert.Contains(t, q, `word_similarity(p, coalesce("description", ''))`)
		assert.Contains(t, q, `DESC, product_id LIMIT $3`)
		assert.Contains(t, q, `"voltage_kv"`)

		require.Len(t, args, 3)
		assert.Equal(t, []string{"%pix2b%", `%50\%off%`}, args[0])
		assert.Equal(t, []string{"PIX 2B", "50%_off"}, args[1])
		assert.Equal(t, 40, args[2])
	})

	t.Run("single field ranks without greatest", func(t *testing.T) {
		q, _, err := r.buildTextQuery([]string{"SM6"}, []string{core.FieldRangeLabel}, 5)
		require.NoError(t, err)
		assert.NotContains(t, q, "greatest(")
		assert.Contains(t, q, `ORDER BY coalesce((SELECT max(similarity(coalesce("range_label", ''), p)) FROM unnest($2::text[]) AS p), 0) DESC, product_id LIMIT $3`)
	})

	t.Run("blank patterns build no query", func(t *testing.T) {
		q, args, err := r.buildTextQuery([]string{"  ", "--"}, []string{core.FieldRangeLabel}, 10)
		require.NoError(t, err)
		assert.Empty(t, q)
		assert.Nil(t, args)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, _, err := r.buildTextQuery([]string{"x"}, []string{`range_label" OR 1=1 --`}, 10)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})

	t.Run("bad limit", func(t *testing.T) {
		_, _, err := r.buildTextQuery([]string{"x"}, []string{core.FieldRangeLabel}, 0)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})
}

func TestBuildNumericQuery(t *testing.T) {
	r, _ := newTestRepository(t, WithTable("catalog", "products"))

	q, args, err := r.buildNumericQuery("voltage_kv", 9.6, 21, 200)
	require.NoError(t, err)
	assert.Contains(t, q, `FROM "catalog"."products"`)
	assert.Contains(t, q, `WHERE "voltage_kv" BETWEEN $1 AND $2 ORDER BY abs("voltage_kv" - $4), product_id LIMIT $3`)
	require.Len(t, args, 4)
	assert.Equal(t, []any{9.6, 21.0, 200}, args[:3])
	assert.InDelta(t, 15.3, args[3], 1e-9, "middle of the range")

	_, _, err = r.buildNumericQuery("power_kw", 0, 1, 10)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery, "not a configured column")

	_, _, err = r.buildNumericQuery("voltage_kv", 21, 9.6, 10)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, _, err = r.buildNumericQuery("voltage_kv", math.NaN(), 1, 10)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestOptions(t *testing.T) {
	q := &failingQuerier{}

	_, err := NewRepositoryWithQuerier(nil)
	assert.Error(t, err)

	_, err = NewRepositoryWithQuerier(q, WithTable())
	assert.Error(t, err)

	_, err = NewRepositoryWithQuerier(q, WithTable("a", "b", "c"))
	assert.Error(t, err)

	_, err = NewRepositoryWithQuerier(q, WithNumericColumns("Voltage KV"))
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	r, err := NewRepositoryWithQuerier(q, WithNumericColumns("rated_power_kw"), WithLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"rated_power_kw"}, r.numericColumns)
}

func TestQueryErrors(t *testing.T) {
	t.Run("backend failure is unavailable", func(t *testing.T) {
		r, q := newTestRepository(t)
		_, err := r.SearchByText(context.Background(), []string{"PIX2B"}, []string{core.FieldRangeLabel}, 10)
		assert.ErrorIs(t, err, storage.ErrUnavailable)
		assert.Equal(t, 1, q.calls)

		_, err = r.SearchByNumericRange(context.Background(), "voltage_kv", 1, 2, 10)
		assert.ErrorIs(t, err, storage.ErrUnavailable)
	})

	t.Run("cancelled context is reported as such", func(t *testing.T) {
		r, _ := newTestRepository(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := r.SearchByText(ctx, []string{"PIX2B"}, []string{core.FieldRangeLabel}, 10)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("invalid query never reaches the database", func(t *testing.T) {
		r, q := newTestRepository(t)
		_, err := r.SearchByNumericRange(context.Background(), "voltage_kv;", 1, 2, 10)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
		assert.Zero(t, q.calls)
	})
}

func TestRawRowEntry(t *testing.T) {
	v := 17.5
	columns := []string{"voltage_kv", "current_a"}

	t.Run("valid row", func(t *testing.T) {
		row := rawRow{
			text:    [7]string{"PIX2B-001", "PIX2B", "", "Double busbar", "", "Medium Voltage", "Discontinued"},
			numeric: []*float64{&v, nil},
		}
		entry, err := row.entry(columns)
		require.NoError(t, err)
		assert.Equal(t, "PIX2B-001", entry.ProductID)
		assert.Equal(t, map[string]float64{"voltage_kv": 17.5}, entry.Numeric)
		assert.Len(t, row.dest(), 9)
	})

	t.Run("missing status fails closed", func(t *testing.T) {
		row := rawRow{
			text:    [7]string{"PIX2B-001", "PIX2B", "", "", "", "Medium Voltage", ""},
			numeric: []*float64{nil, nil},
		}
		_, err := row.entry(columns)
		assert.ErrorIs(t, err, core.ErrInvalidCatalogEntry)
	})

	t.Run("non finite value fails closed", func(t *testing.T) {
		inf := math.Inf(1)
		row := rawRow{
			text:    [7]string{"X", "X", "", "", "", "LV", "Active"},
			numeric: []*float64{&inf, nil},
		}
		_, err := row.entry(columns)
		assert.ErrorIs(t, err, core.ErrInvalidCatalogEntry)
	})
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\%b\_c\\d`, escapeLike(`a%b_c\d`))
	assert.Equal(t, "pix2b", escapeLike("pix2b"))
}
