package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrNotFound is returned when a reference entity does not exist.
var ErrNotFound = db.ErrNotFound

// ReferenceEntity is one organization of the reference dataset.
type ReferenceEntity struct {
	ID               uuid.UUID  `json:"id"`
	OrganizationName string     `json:"organization_name"`
	ExternalID       *string    `json:"external_id,omitempty"`
	SchemaType       *string    `json:"schema_type,omitempty"`
	Description      *string    `json:"description,omitempty"`
	Aliases          []string   `json:"aliases"`
	Country          *string    `json:"country,omitempty"`
	PublishedDate    *time.Time `json:"published_date,omitempty"`
	UpdatedDate      *time.Time `json:"updated_date,omitempty"`
	SourceURL        *string    `json:"source_url,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Key identifies an entity across imports: the external id when present,
// otherwise the lowercased name and country.
func (e ReferenceEntity) Key() string {
	if e.ExternalID != nil && strings.TrimSpace(*e.ExternalID) != "" {
		return "id:" + strings.TrimSpace(*e.ExternalID)
	}
	c := ""
	if e.Country != nil {
		c = strings.ToLower(strings.TrimSpace(*e.Country))
	}
	return "name:" + strings.ToLower(strings.TrimSpace(e.OrganizationName)) + "|" + c
}

// EntityMatch is a prefilter hit with its trigram similarity.
type EntityMatch struct {
	Entity     ReferenceEntity
	Similarity float64
}

type ReferenceEntityRepository struct {
	db db.TxStarter
}

func NewReferenceEntityRepository(conn db.TxStarter) *ReferenceEntityRepository {
	return &ReferenceEntityRepository{db: conn}
}

// inTx runs fn in a transaction, committing when fn returns nil.
func (r *ReferenceEntityRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const referenceEntityColumns = `id, organization_name, external_id, schema_type, description, aliases,
	country, published_date, updated_date, source_url, created_at, updated_at`

// setSimilarityThreshold scopes the threshold of the % operator to the
// current transaction.
const setSimilarityThreshold = `SELECT set_config('pg_trgm.similarity_threshold', $1, true)`

// The % conditions let the trigram indexes on names and aliases do the
// prefiltering; the exact scores are recomputed for the survivors only.
var findSimilarEntities = `
WITH hits AS (
	SELECT r.id, similarity(lower(r.organization_name), lower($1)) AS score
	FROM reference_entities r
	WHERE lower(r.organization_name) % lower($1)
	UNION ALL
	SELECT a.entity_id, similarity(a.alias, lower($1))
	FROM reference_entity_aliases a
	WHERE a.alias % lower($1)
), best AS (
	SELECT id, max(score) AS score
	FROM hits
	GROUP BY id
)
SELECT ` + prefixedColumns("r") + `, best.score
FROM best
JOIN reference_entities r ON r.id = best.id
WHERE best.score >= $2
ORDER BY best.score DESC, r.organization_name
LIMIT $3`

// FindSimilarEntities returns entities whose name or any alias has a trigram
// similarity of at least threshold with name.
func (r *ReferenceEntityRepository) FindSimilarEntities(ctx context.Context, name string, threshold float64, limit int32) ([]EntityMatch, error) {
	var matches []EntityMatch
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, setSimilarityThreshold, strconv.FormatFloat(threshold, 'f', -1, 64)); err != nil {
			return fmt.Errorf("set similarity threshold: %w", err)
		}

		rows, err := tx.Query(ctx, findSimilarEntities, name, threshold, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				row   referenceEntityRow
				score float64
			)
			dest := append(row.fields(), &score)
			if err := rows.Scan(dest...); err != nil {
				return fmt.Errorf("scan similar entity: %w", err)
			}
			matches = append(matches, EntityMatch{Entity: row.toEntity(), Similarity: score})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("find similar entities: %w", err)
	}
	return matches, nil
}

// prefixedColumns qualifies referenceEntityColumns with a table alias.
func prefixedColumns(alias string) string {
	cols := strings.Split(referenceEntityColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

const getReferenceEntity = `SELECT ` + referenceEntityColumns + ` FROM reference_entities WHERE id = $1`

func (r *ReferenceEntityRepository) GetEntity(ctx context.Context, id uuid.UUID) (*ReferenceEntity, error) {
	var row referenceEntityRow
	err := r.db.QueryRow(ctx, getReferenceEntity, uuidToPgUUID(id)).Scan(row.fields()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reference entity: %w", err)
	}
	e := row.toEntity()
	return &e, nil
}

const upsertReferenceEntity = `
INSERT INTO reference_entities (
	id, entity_key, organization_name, external_id, schema_type, description, aliases,
	country, published_date, updated_date, source_url
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (entity_key) DO UPDATE SET
	organization_name = EXCLUDED.organization_name,
	external_id       = EXCLUDED.external_id,
	schema_type       = EXCLUDED.schema_type,
	description       = EXCLUDED.description,
	aliases           = EXCLUDED.aliases,
	country           = EXCLUDED.country,
	published_date    = EXCLUDED.published_date,
	updated_date      = EXCLUDED.updated_date,
	source_url        = EXCLUDED.source_url,
	updated_at        = now()
RETURNING ` + referenceEntityColumns

const deleteEntityAliases = `DELETE FROM reference_entity_aliases WHERE entity_id = $1`

const insertEntityAliases = `
INSERT INTO reference_entity_aliases (entity_id, alias)
SELECT $1, lower(a) FROM unnest($2::text[]) AS a
WHERE btrim(a) <> ''`

// UpsertEntity inserts e or updates the row with the same Key.
func (r *ReferenceEntityRepository) UpsertEntity(ctx context.Context, e ReferenceEntity) (*ReferenceEntity, error) {
	if strings.TrimSpace(e.OrganizationName) == "" {
		return nil, errors.New("organization name is required")
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	aliases := e.Aliases
	if aliases == nil {
		aliases = []string{}
	}

	var row referenceEntityRow
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, upsertReferenceEntity,
			uuidToPgUUID(e.ID),
			e.Key(),
			e.OrganizationName,
			stringToPgText(e.ExternalID),
			stringToPgText(e.SchemaType),
			stringToPgText(e.Description),
			aliases,
			stringToPgText(e.Country),
			timeToPgDate(e.PublishedDate),
			timeToPgDate(e.UpdatedDate),
			stringToPgText(e.SourceURL),
		).Scan(row.fields()...)
		if err != nil {
			return err
		}

		// the upsert may have kept an existing id, so use the returned one
		if _, err := tx.Exec(ctx, deleteEntityAliases, row.ID); err != nil {
			return fmt.Errorf("clear aliases: %w", err)
		}
		if _, err := tx.Exec(ctx, insertEntityAliases, row.ID, aliases); err != nil {
			return fmt.Errorf("index aliases: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upsert reference entity: %w", err)
	}
	saved := row.toEntity()
	return &saved, nil
}

func (r *ReferenceEntityRepository) CountEntities(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM reference_entities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reference entities: %w", err)
	}
	return n, nil
}

type referenceEntityRow struct {
	ID               pgtype.UUID
	OrganizationName string
	ExternalID       pgtype.Text
	SchemaType       pgtype.Text
	Description      pgtype.Text
	Aliases          []string
	Country          pgtype.Text
	PublishedDate    pgtype.Date
	UpdatedDate      pgtype.Date
	SourceURL        pgtype.Text
	CreatedAt        pgtype.Timestamptz
	UpdatedAt        pgtype.Timestamptz
}

func (r *referenceEntityRow) fields() []any {
	return []any{
		&r.ID, &r.OrganizationName, &r.ExternalID, &r.SchemaType, &r.Description, &r.Aliases,
		&r.Country, &r.PublishedDate, &r.UpdatedDate, &r.SourceURL, &r.CreatedAt, &r.UpdatedAt,
	}
}

func (r referenceEntityRow) toEntity() ReferenceEntity {
	aliases := r.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	return ReferenceEntity{
		ID:               uuid.UUID(r.ID.Bytes),
		OrganizationName: r.OrganizationName,
		ExternalID:       pgTextToString(r.ExternalID),
		SchemaType:       pgTextToString(r.SchemaType),
		Description:      pgTextToString(r.Description),
		Aliases:          aliases,
		Country:          pgTextToString(r.Country),
		PublishedDate:    pgDateToTime(r.PublishedDate),
		UpdatedDate:      pgDateToTime(r.UpdatedDate),
		SourceURL:        pgTextToString(r.SourceURL),
		CreatedAt:        r.CreatedAt.Time,
		UpdatedAt:        r.UpdatedAt.Time,
	}
}
