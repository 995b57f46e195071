package payroll

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Source yields records; see Reader.
type Source interface {
	Next() (Record, error)
}

type Upserter interface {
	Upsert(ctx context.Context, rec Record) error
}

// Summary counts processed rows. Total == Success + Failed.
type Summary struct {
	Total   int
	Success int
	Failed  int
}

type Importer struct {
	store  Upserter
	logger *slog.Logger
}

func NewImporter(store Upserter, logger *slog.Logger) *Importer {
	return &Importer{store: store, logger: logger}
}

// Run drains src into the store. Rows that fail to parse, validate or save
// are logged and counted; only read failures or cancellation stop the run.
func (im *Importer) Run(ctx context.Context, src Source) (Summary, error) {
	var sum Summary
	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var rowErr *RowError
			if !errors.As(err, &rowErr) {
				return sum, fmt.Errorf("read csv: %w", err)
			}
			sum.Total++
			sum.Failed++
			im.logger.WarnContext(ctx, "row failed", "line", rowErr.Line, "employee_id", rowErr.EmployeeID, "error", rowErr.Err)
			continue
		}

		sum.Total++
		if err := im.importOne(ctx, rec); err != nil {
			sum.Failed++
			im.logger.WarnContext(ctx, "row failed", "employee_id", rec.EmployeeID, "error", err)
			continue
		}
		sum.Success++
	}

	im.logger.InfoContext(ctx, "import complete", "total", sum.Total, "success", sum.Success, "failed", sum.Failed)
	return sum, nil
}

func (im *Importer) importOne(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return im.store.Upsert(ctx, rec)
}
