// Package dataset reads reference organization lists from CSV and loads
// them into the reference entity store or into memory for matching.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/matching"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/repository"
)

// Format identifies the column layout of a dataset file.
type Format string

const (
	// FormatRaw is the published list layout: name, entity_id, description,
	// aliases, published_date, updated_date, data_source_url.
	FormatRaw Format = "raw"
	// FormatUpload is the layout the dataset store accepts:
	// organization_name, external_id, schema_type, description, aliases,
	// published_date, updated_date, data_source_url.
	FormatUpload Format = "upload"
)

// DefaultSchemaType is assigned to raw rows that carry no schema type.
const DefaultSchemaType = "Organization"

const notReviewed = "not yet reviewed"

var (
	// ErrUnknownFormat is returned when the header matches neither layout.
	ErrUnknownFormat = errors.New("unrecognized dataset header")

	isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ParseOptions tunes Parse.
type ParseOptions struct {
	// SchemaType is applied to raw rows. Empty means DefaultSchemaType.
	SchemaType string
}

// Report summarizes one parse or import run.
type Report struct {
	Format     Format `json:"format"`
	Rows       int    `json:"rows"`
	Parsed     int    `json:"parsed"`
	Skipped    int    `json:"skipped"`
	FixedDates int    `json:"fixed_dates"`
	Imported   int    `json:"imported"`
	Failed     int    `json:"failed"`
}

var columnsByFormat = map[Format]map[string]string{
	FormatRaw: {
		"name":            "organization_name",
		"entity_id":       "external_id",
		"description":     "description",
		"aliases":         "aliases",
		"published_date":  "published_date",
		"updated_date":    "updated_date",
		"data_source_url": "data_source_url",
		"country":         "country",
	},
	FormatUpload: {
		"organization_name": "organization_name",
		"external_id":       "external_id",
		"schema_type":       "schema_type",
		"description":       "description",
		"aliases":           "aliases",
		"published_date":    "published_date",
		"updated_date":      "updated_date",
		"data_source_url":   "data_source_url",
		"country":           "country",
	},
}

// Parse reads a dataset in either layout. Rows without an organization name
// are skipped and counted; unreadable dates become null.
func Parse(r io.Reader, opts ParseOptions) ([]repository.ReferenceEntity, Report, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, Report{}, fmt.Errorf("failed to read header: %w", err)
	}
	format, index, err := detectFormat(header)
	if err != nil {
		return nil, Report{}, err
	}

	schemaType := opts.SchemaType
	if schemaType == "" {
		schemaType = DefaultSchemaType
	}

	report := Report{Format: format}
	var entities []repository.ReferenceEntity
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		report.Rows++
		if err != nil {
			report.Skipped++
			continue
		}

		get := func(field string) string {
			i, ok := index[field]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		name := get("organization_name")
		if name == "" {
			report.Skipped++
			continue
		}

		e := repository.ReferenceEntity{
			OrganizationName: name,
			ExternalID:       optional(get("external_id")),
			SchemaType:       optional(get("schema_type")),
			Description:      optional(get("description")),
			Aliases:          SplitAliases(get("aliases")),
			Country:          optional(get("country")),
			SourceURL:        optional(get("data_source_url")),
		}
		if format == FormatRaw && e.SchemaType == nil {
			e.SchemaType = &schemaType
		}

		var fixed bool
		e.PublishedDate, fixed = ParseDate(get("published_date"))
		if fixed {
			report.FixedDates++
		}
		e.UpdatedDate, fixed = ParseDate(get("updated_date"))
		if fixed {
			report.FixedDates++
		}

		entities = append(entities, e)
		report.Parsed++
	}
	return entities, report, nil
}

func detectFormat(header []string) (Format, map[string]int, error) {
	names := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		names[h] = i
	}

	var format Format
	switch {
	case hasColumn(names, "organization_name"):
		format = FormatUpload
	case hasColumn(names, "name"):
		format = FormatRaw
	default:
		return "", nil, fmt.Errorf("%w: expected a name or organization_name column", ErrUnknownFormat)
	}

	index := make(map[string]int)
	for column, field := range columnsByFormat[format] {
		if i, ok := names[column]; ok {
			index[field] = i
		}
	}
	return format, index, nil
}

func hasColumn(names map[string]int, column string) bool {
	_, ok := names[column]
	return ok
}

// ParseDate accepts YYYY-MM-DD. Blank values and "Not yet reviewed" are null;
// anything else that does not parse is null with fixed set.
func ParseDate(s string) (date *time.Time, fixed bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, notReviewed) {
		return nil, false
	}
	if !isoDate.MatchString(s) {
		return nil, true
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, true
	}
	return &t, false
}

// SplitAliases splits an alias cell on ';' and '|', dropping blanks and
// repeats.
func SplitAliases(cell string) []string {
	parts := strings.FieldsFunc(cell, func(r rune) bool { return r == ';' || r == '|' })
	aliases := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		key := strings.ToLower(p)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		aliases = append(aliases, p)
	}
	return aliases
}

// Candidates converts parsed entities into scoring candidates. Entities
// without an external id are numbered by position.
func Candidates(entities []repository.ReferenceEntity) []matching.Candidate {
	out := make([]matching.Candidate, len(entities))
	for i, e := range entities {
		c := matching.Candidate{
			ID:      fmt.Sprintf("row-%d", i+1),
			Name:    e.OrganizationName,
			Aliases: e.Aliases,
		}
		if e.ExternalID != nil {
			c.ID = *e.ExternalID
		}
		if e.Country != nil {
			c.Country = *e.Country
		}
		out[i] = c
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
