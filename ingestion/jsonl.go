package ingestion

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/poiesic/rangefinder/core"
)

// maxLineSize bounds one line of a catalog export.
const maxLineSize = 1 << 20

// Record is one line of a JSON-lines catalog export.
type Record struct {
	ProductID        string             `json:"product_id"`
	RangeLabel       string             `json:"range_label"`
	SubrangeLabel    string             `json:"subrange_label,omitempty"`
	Description      string             `json:"description,omitempty"`
	Brand            string             `json:"brand,omitempty"`
	ProductLine      string             `json:"product_line"`
	CommercialStatus string             `json:"commercial_status"`
	Numeric          map[string]float64 `json:"numeric,omitempty"`
}

// Entry converts the record to a catalog row.
func (r Record) Entry() core.CatalogEntry {
	return core.CatalogEntry{
		ProductID:        strings.TrimSpace(r.ProductID),
		RangeLabel:       strings.TrimSpace(r.RangeLabel),
		SubrangeLabel:    strings.TrimSpace(r.SubrangeLabel),
		Description:      strings.TrimSpace(r.Description),
		Brand:            strings.TrimSpace(r.Brand),
		ProductLine:      strings.TrimSpace(r.ProductLine),
		CommercialStatus: strings.TrimSpace(r.CommercialStatus),
		Numeric:          r.Numeric,
	}
}

// Load reads a JSON-lines catalog export and ingests it in batches.
// Blank lines are ignored; lines that cannot be decoded are logged and rejected.
func (p *Pipeline) Load(ctx context.Context, r io.Reader) (Stats, error) {
	var total Stats
	batch := make([]core.CatalogEntry, 0, p.batchSize)

	flush := func() error {
		stats, err := p.Ingest(ctx, batch)
		total.Stored += stats.Stored
		total.Rejected += stats.Rejected
		batch = batch[:0]
		return err
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return total, err
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			p.logger.Warn("rejecting catalog line", "line", line, "err", fmt.Errorf("%w: %w", ErrInvalidRecord, err))
			total.Rejected++
			continue
		}
		batch = append(batch, rec.Entry())
		if len(batch) == p.batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return total, fmt.Errorf("read catalog export at line %d: %w", line+1, err)
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return total, err
		}
	}
	p.logger.Info("catalog export loaded", "stored", total.Stored, "rejected", total.Rejected)
	return total, nil
}
