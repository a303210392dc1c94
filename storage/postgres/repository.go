package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/storage"
)

// DefaultTable is the catalog table queried when none is configured.
const DefaultTable = "catalog_products"

// DefaultNumericColumns are the numeric attribute columns selected with every row.
var DefaultNumericColumns = []string{"voltage_kv", "current_a", "frequency_hz"}

// Querier is the subset of *pgxpool.Pool used by the repository.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository is a read-only catalog over PostgreSQL.
type Repository struct {
	db             Querier
	pool           *pgxpool.Pool
	table          pgx.Identifier
	numericColumns []string
	logger         *slog.Logger
}

var _ storage.CatalogRepository = (*Repository)(nil)

// Option configures a Repository.
type Option func(*Repository) error

// WithLogger sets the logger. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "postgres-catalog")
		return nil
	}
}

// WithTable sets the catalog table, optionally schema qualified ("catalog", "products").
func WithTable(parts ...string) Option {
	return func(r *Repository) error {
		if len(parts) == 0 || len(parts) > 2 {
			return fmt.Errorf("postgres catalog: table must have one or two parts, got %d", len(parts))
		}
		for _, p := range parts {
			if p == "" {
				return errors.New("postgres catalog: empty table name part")
			}
		}
		r.table = pgx.Identifier(parts)
		return nil
	}
}

// WithNumericColumns sets the numeric attribute columns selected with every row.
func WithNumericColumns(columns ...string) Option {
	return func(r *Repository) error {
		for _, c := range columns {
			if err := storage.ValidateNumericField(c); err != nil {
				return err
			}
		}
		r.numericColumns = slices.Clone(columns)
		return nil
	}
}

// NewRepositoryWithQuerier creates a repository over an existing pool or connection.
// The caller keeps ownership of db.
func NewRepositoryWithQuerier(db Querier, opts ...Option) (*Repository, error) {
	if db == nil {
		return nil, errors.New("postgres catalog: querier is required")
	}
	r := &Repository{
		db:             db,
		table:          pgx.Identifier{DefaultTable},
		numericColumns: slices.Clone(DefaultNumericColumns),
		logger:         slog.Default().With("component", "postgres-catalog"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewRepository opens a connection pool and verifies it with a ping.
// maxConns <= 0 keeps the pgxpool default.
func NewRepository(ctx context.Context, connString string, maxConns int32, opts ...Option) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres catalog: parse connection string: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}

	r, err := NewRepositoryWithQuerier(pool, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	r.pool = pool
	return r, nil
}

// Close releases the pool if the repository opened it.
func (r *Repository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

// SearchByText returns rows where any field contains a pattern once separators
// are removed, or is trigram-similar to it (pg_trgm % and %> operators).
func (r *Repository) SearchByText(ctx context.Context, patterns []string, fields []string, limit int) ([]core.CatalogEntry, error) {
	q, args, err := r.buildTextQuery(patterns, fields, limit)
	if err != nil || q == "" {
		return nil, err
	}
	return r.query(ctx, q, args...)
}

// SearchByNumericRange returns rows whose numeric column lies in [min, max].
func (r *Repository) SearchByNumericRange(ctx context.Context, field string, min, max float64, limit int) ([]core.CatalogEntry, error) {
	q, args, err := r.buildNumericQuery(field, min, max, limit)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, q, args...)
}

func (r *Repository) query(ctx context.Context, sql string, args ...any) ([]core.CatalogEntry, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.logger.Error("catalog query failed", "err", err)
		return nil, fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	defer rows.Close()

	var entries []core.CatalogEntry
	for rows.Next() {
		var raw rawRow
		raw.numeric = make([]*float64, len(r.numericColumns))
		if err := rows.Scan(raw.dest()...); err != nil {
			r.logger.Warn("skipping unscannable catalog row", "err", err)
			continue
		}
		entry, err := raw.entry(r.numericColumns)
		if err != nil {
			r.logger.Warn("skipping malformed catalog row", "err", err)
			continue
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	return entries, nil
}
