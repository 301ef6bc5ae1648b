package dataset

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawCSV = `name,entity_id,description,aliases,published_date,updated_date,data_source_url
Abu Sayyaf Group,CA-001,Armed group,ASG; Al Harakat Al Islamiyya,2003-02-24,2021-06-18,https://example.org/asg
Example Front,CA-002,,EF|Front Example|ef,Not yet reviewed,,https://example.org/ef
,CA-003,Missing name,,,,
Dated Badly,CA-004,,,24/02/2003,2021-13-45,
`

const uploadCSV = `organization_name,external_id,schema_type,description,aliases,published_date,updated_date,data_source_url,country
Huawei Technologies Co. Ltd.,EL-1,Company,,Huawei,2020-05-15,,https://example.org/el,China
National University of Defense Technology,EL-2,University,,NUDT,,,https://example.org/el,CN
`

func TestParse_RawFormat(t *testing.T) {
	entities, report, err := Parse(strings.NewReader(rawCSV), ParseOptions{})
	require.NoError(t, err)

	assert.Equal(t, FormatRaw, report.Format)
	assert.Equal(t, 4, report.Rows)
	assert.Equal(t, 3, report.Parsed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, report.FixedDates)
	require.Len(t, entities, 3)

	asg := entities[0]
	assert.Equal(t, "Abu Sayyaf Group", asg.OrganizationName)
	require.NotNil(t, asg.ExternalID)
	assert.Equal(t, "CA-001", *asg.ExternalID)
	require.NotNil(t, asg.SchemaType)
	assert.Equal(t, DefaultSchemaType, *asg.SchemaType)
	assert.Equal(t, []string{"ASG", "Al Harakat Al Islamiyya"}, asg.Aliases)
	require.NotNil(t, asg.PublishedDate)
	assert.Equal(t, "2003-02-24", asg.PublishedDate.Format("2006-01-02"))
	assert.Nil(t, asg.Country)

	ef := entities[1]
	assert.Nil(t, ef.Description)
	assert.Equal(t, []string{"EF", "Front Example"}, ef.Aliases)
	assert.Nil(t, ef.PublishedDate, "not yet reviewed becomes null")
	assert.Nil(t, ef.UpdatedDate)

	bad := entities[2]
	assert.Nil(t, bad.PublishedDate)
	assert.Nil(t, bad.UpdatedDate)
	assert.Empty(t, bad.Aliases)
}

func TestParse_RawFormatSchemaOverride(t *testing.T) {
	entities, _, err := Parse(strings.NewReader(rawCSV), ParseOptions{SchemaType: "Terrorist Organization"})
	require.NoError(t, err)
	require.NotEmpty(t, entities)
	assert.Equal(t, "Terrorist Organization", *entities[0].SchemaType)
}

func TestParse_UploadFormat(t *testing.T) {
	entities, report, err := Parse(strings.NewReader("\ufeff"+uploadCSV), ParseOptions{SchemaType: "ignored"})
	require.NoError(t, err)

	assert.Equal(t, FormatUpload, report.Format)
	assert.Equal(t, 2, report.Parsed)
	require.Len(t, entities, 2)
	assert.Equal(t, "Company", *entities[0].SchemaType)
	assert.Equal(t, "China", *entities[0].Country)
	assert.Equal(t, []string{"NUDT"}, entities[1].Aliases)
}

func TestParse_UnknownHeader(t *testing.T) {
	_, _, err := Parse(strings.NewReader("title,id\nfoo,1\n"), ParseOptions{})
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, _, err = Parse(strings.NewReader(""), ParseOptions{})
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in        string
		wantNil   bool
		wantFixed bool
	}{
		{"2021-06-18", false, false},
		{" 2021-06-18 ", false, false},
		{"", true, false},
		{"   ", true, false},
		{"Not yet reviewed", true, false},
		{"not YET reviewed", true, false},
		{"18/06/2021", true, true},
		{"2021-02-30", true, true},
		{"2021-6-18", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, fixed := ParseDate(tt.in)
			assert.Equal(t, tt.wantNil, got == nil)
			assert.Equal(t, tt.wantFixed, fixed)
		})
	}
}

func TestSplitAliases(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"ASG", []string{"ASG"}},
		{"A; B|C", []string{"A", "B", "C"}},
		{" ;| A ;a; ", []string{"A"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitAliases(tt.in), "input %q", tt.in)
	}
}

func TestCandidates(t *testing.T) {
	entities, _, err := Parse(strings.NewReader(rawCSV), ParseOptions{})
	require.NoError(t, err)
	entities = append(entities, repository.ReferenceEntity{OrganizationName: "No Id Org"})

	candidates := Candidates(entities)
	require.Len(t, candidates, 4)
	assert.Equal(t, "CA-001", candidates[0].ID)
	assert.Equal(t, "Abu Sayyaf Group", candidates[0].Name)
	assert.Equal(t, []string{"ASG", "Al Harakat Al Islamiyya"}, candidates[0].Aliases)
	assert.Equal(t, "row-4", candidates[3].ID)
}

type fakeEntityRepo struct {
	saved []repository.ReferenceEntity
	failOn string
}

func (f *fakeEntityRepo) UpsertEntity(ctx context.Context, e repository.ReferenceEntity) (*repository.ReferenceEntity, error) {
	if e.OrganizationName == f.failOn {
		return nil, errors.New("constraint violation")
	}
	f.saved = append(f.saved, e)
	return &e, nil
}

func TestImporter_Import(t *testing.T) {
	repo := &fakeEntityRepo{failOn: "Dated Badly"}
	report, err := NewImporter(repo).Import(context.Background(), strings.NewReader(rawCSV), ParseOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, repo.saved, 2)
	assert.Equal(t, "Example Front", repo.saved[1].OrganizationName)
}

func TestImporter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := &fakeEntityRepo{}
	_, err := NewImporter(repo).Import(ctx, strings.NewReader(uploadCSV), ParseOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, repo.saved)
}
