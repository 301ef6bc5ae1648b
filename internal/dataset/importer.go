package dataset

import (
	"context"
	"fmt"
	"io"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/logger"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/metrics"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/repository"
)

type entityUpserter interface {
	UpsertEntity(ctx context.Context, e repository.ReferenceEntity) (*repository.ReferenceEntity, error)
}

// Importer writes parsed datasets into the reference entity store.
type Importer struct {
	repo entityUpserter
}

func NewImporter(repo entityUpserter) *Importer {
	return &Importer{repo: repo}
}

// Import parses r and upserts every row. Rows that fail to store are logged
// and counted; the import stops only when ctx is done.
func (i *Importer) Import(ctx context.Context, r io.Reader, opts ParseOptions) (Report, error) {
	entities, report, err := Parse(r, opts)
	if err != nil {
		return report, err
	}

	for _, e := range entities {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("import interrupted: %w", err)
		}
		if _, err := i.repo.UpsertEntity(ctx, e); err != nil {
			logger.Warn().Err(err).Str("organization_name", e.OrganizationName).Msg("failed to store reference entity")
			report.Failed++
			continue
		}
		report.Imported++
	}

	metrics.RecordImport(report.Imported, report.Skipped+report.Failed)
	logger.Info().
		Str("format", string(report.Format)).
		Int("rows", report.Rows).
		Int("imported", report.Imported).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Int("fixed_dates", report.FixedDates).
		Msg("dataset import complete")
	return report, nil
}
