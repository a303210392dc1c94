package postgres

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/poiesic/rangefinder/core"
	"github.com/poiesic/rangefinder/storage"
	"github.com/poiesic/rangefinder/textmatch"
)

// columns selected for every row, in scan order; numeric columns follow.
var textColumns = []string{
	"product_id",
	core.FieldRangeLabel,
	core.FieldSubrangeLabel,
	core.FieldDescription,
	core.FieldBrand,
	core.FieldProductLine,
	"commercial_status",
}

// canonicalExpr mirrors textmatch.Canonical on the database side, without accent folding.
const canonicalExpr = `regexp_replace(lower(%s), '[[:space:]/._-]+', '', 'g')`

func (r *Repository) selectList() string {
	cols := make([]string, 0, len(textColumns)+len(r.numericColumns))
	for _, c := range textColumns {
		cols = append(cols, "coalesce("+pgx.Identifier{c}.Sanitize()+", '')")
	}
	for _, c := range r.numericColumns {
		cols = append(cols, pgx.Identifier{c}.Sanitize())
	}
	return strings.Join(cols, ", ")
}

// escapeLike escapes LIKE metacharacters with the default backslash escape.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *Repository) buildTextQuery(patterns []string, fields []string, limit int) (string, []any, error) {
	if err := storage.ValidateTextFields(fields); err != nil {
		return "", nil, err
	}
	if err := storage.ValidateLimit(limit); err != nil {
		return "", nil, err
	}

	var likes, raws []string
	for _, p := range patterns {
		c := textmatch.Canonical(p)
		if c == "" {
			continue
		}
		likes = append(likes, "%"+escapeLike(c)+"%")
		raws = append(raws, strings.TrimSpace(p))
	}
	if len(likes) == 0 {
		return "", nil, nil
	}

	conds := make([]string, 0, len(fields))
	ranks := make([]string, 0, len(fields))
	for _, f := range fields {
		col := pgx.Identifier{f}.Sanitize()
		trgm := col + " % ANY($2::text[])"
		sim := "similarity(coalesce(" + col + ", ''), p)"
		if f == core.FieldDescription {
			trgm = col + " %> ANY($2::text[])"
			sim = "word_similarity(p, coalesce(" + col + ", ''))"
		}
		conds = append(conds, fmt.Sprintf("("+canonicalExpr+" LIKE ANY($1::text[]) OR %s)", col, trgm))
		ranks = append(ranks, "coalesce((SELECT max("+sim+") FROM unnest($2::text[]) AS p), 0)")
	}
	rank := ranks[0]
	if len(ranks) > 1 {
		rank = "greatest(" + strings.Join(ranks, ", ") + ")"
	}

	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s DESC, product_id LIMIT $3",
		r.selectList(), r.table.Sanitize(), strings.Join(conds, " OR "), rank)
	return q, []any{likes, raws, limit}, nil
}

func (r *Repository) buildNumericQuery(field string, min, max float64, limit int) (string, []any, error) {
	if err := storage.ValidateNumericField(field); err != nil {
		return "", nil, err
	}
	if !slices.Contains(r.numericColumns, field) {
		return "", nil, fmt.Errorf("%w: numeric field %q is not a configured column", storage.ErrInvalidQuery, field)
	}
	if err := storage.ValidateRange(min, max); err != nil {
		return "", nil, err
	}
	if err := storage.ValidateLimit(limit); err != nil {
		return "", nil, err
	}

	col := pgx.Identifier{field}.Sanitize()
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s BETWEEN $1 AND $2 ORDER BY abs(%s - $4), product_id LIMIT $3",
		r.selectList(), r.table.Sanitize(), col, col)
	return q, []any{min, max, limit, min + (max-min)/2}, nil
}

// rawRow holds one scanned row before validation.
type rawRow struct {
	text    [7]string
	numeric []*float64
}

func (row *rawRow) dest() []any {
	dest := make([]any, 0, len(row.text)+len(row.numeric))
	for i := range row.text {
		dest = append(dest, &row.text[i])
	}
	for i := range row.numeric {
		dest = append(dest, &row.numeric[i])
	}
	return dest
}

// entry converts and validates a scanned row. NULL numeric columns are omitted.
func (row *rawRow) entry(numericColumns []string) (core.CatalogEntry, error) {
	entry := core.CatalogEntry{
		ProductID:        row.text[0],
		RangeLabel:       row.text[1],
		SubrangeLabel:    row.text[2],
		Description:      row.text[3],
		Brand:            row.text[4],
		ProductLine:      row.text[5],
		CommercialStatus: row.text[6],
	}
	for i, v := range row.numeric {
		if v == nil {
			continue
		}
		if entry.Numeric == nil {
			entry.Numeric = make(map[string]float64)
		}
		entry.Numeric[numericColumns[i]] = *v
	}
	if err := core.ValidateCatalogEntry(&entry); err != nil {
		return core.CatalogEntry{}, err
	}
	return entry, nil
}
