package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/repository"
)

// UploadHeader is the column order Write produces.
var UploadHeader = []string{
	"organization_name",
	"external_id",
	"schema_type",
	"description",
	"aliases",
	"published_date",
	"updated_date",
	"data_source_url",
	"country",
}

// Write renders entities in the upload layout. Null dates are written as
// empty cells and aliases are joined with "; ".
func Write(w io.Writer, entities []repository.ReferenceEntity) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(UploadHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, e := range entities {
		record := []string{
			e.OrganizationName,
			deref(e.ExternalID),
			deref(e.SchemaType),
			deref(e.Description),
			strings.Join(e.Aliases, "; "),
			formatDate(e.PublishedDate),
			formatDate(e.UpdatedDate),
			deref(e.SourceURL),
			deref(e.Country),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Convert rewrites a dataset in either layout into the upload layout.
func Convert(r io.Reader, w io.Writer, opts ParseOptions) (Report, error) {
	entities, report, err := Parse(r, opts)
	if err != nil {
		return report, err
	}
	if err := Write(w, entities); err != nil {
		return report, err
	}
	return report, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
