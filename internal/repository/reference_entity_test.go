package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestReferenceEntity_Key(t *testing.T) {
	tests := []struct {
		name   string
		entity ReferenceEntity
		want   string
	}{
		{"external id wins", ReferenceEntity{OrganizationName: "Abu Sayyaf Group", ExternalID: strPtr(" CA-001 ")}, "id:CA-001"},
		{"blank external id", ReferenceEntity{OrganizationName: "Abu Sayyaf Group", ExternalID: strPtr("  ")}, "name:abu sayyaf group|"},
		{"name and country", ReferenceEntity{OrganizationName: " Huawei ", Country: strPtr("China")}, "name:huawei|china"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entity.Key())
		})
	}
}

func TestReferenceEntityRow_ToEntity(t *testing.T) {
	id := uuid.New()
	published := time.Date(2003, 2, 24, 0, 0, 0, 0, time.UTC)
	row := referenceEntityRow{
		ID:               uuidToPgUUID(id),
		OrganizationName: "Abu Sayyaf Group",
		ExternalID:       pgtype.Text{String: "CA-001", Valid: true},
		PublishedDate:    timeToPgDate(&published),
	}

	e := row.toEntity()
	assert.Equal(t, id, e.ID)
	assert.Equal(t, "CA-001", *e.ExternalID)
	assert.Nil(t, e.Description)
	assert.Nil(t, e.UpdatedDate)
	assert.Equal(t, published, *e.PublishedDate)
	assert.NotNil(t, e.Aliases)
}

func TestConversions(t *testing.T) {
	assert.False(t, stringToPgText(nil).Valid)
	assert.Equal(t, pgtype.Text{String: "x", Valid: true}, stringToPgText(strPtr("x")))
	assert.Nil(t, pgTextToString(pgtype.Text{}))
	assert.False(t, timeToPgDate(nil).Valid)
	assert.Nil(t, pgDateToTime(pgtype.Date{}))
}

func TestUpsertEntity_RequiresName(t *testing.T) {
	repo := NewReferenceEntityRepository(nil)
	_, err := repo.UpsertEntity(context.Background(), ReferenceEntity{OrganizationName: "  "})
	assert.Error(t, err)
}

func TestPrefixedColumns(t *testing.T) {
	cols := prefixedColumns("r")
	assert.True(t, strings.HasPrefix(cols, "r.id, r.organization_name, "))
	assert.True(t, strings.HasSuffix(cols, "r.created_at, r.updated_at"))
	assert.NotContains(t, cols, "\n")
	require.Len(t, strings.Split(cols, ", "), 12)
}

func TestFindSimilarEntities_UsesIndexableConditions(t *testing.T) {
	// both lookups must filter with the trigram operator so the GIN indexes apply
	assert.Contains(t, findSimilarEntities, "WHERE lower(r.organization_name) % lower($1)")
	assert.Contains(t, findSimilarEntities, "WHERE a.alias % lower($1)")
	assert.NotContains(t, findSimilarEntities, "unnest(")
}
