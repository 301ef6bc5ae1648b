package matchconfig

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) LookupEnvFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// writeDocs writes the given documents to a temp dir; domains not listed use
// the embedded defaults.
func writeDocs(t *testing.T, docs map[Domain]string) Sources {
	t.Helper()
	dir := t.TempDir()
	src := Sources{}
	for d, body := range docs {
		p := filepath.Join(dir, string(d)+".yaml")
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		switch d {
		case DomainMatching:
			src.MatchingPath = p
		case DomainCountries:
			src.CountriesPath = p
		case DomainAlgorithms:
			src.AlgorithmsPath = p
		}
	}
	return src
}

func mustBuild(t *testing.T, src Sources, lookup LookupEnvFunc) *Snapshot {
	t.Helper()
	snap, err := Build(src, lookup)
	require.NoError(t, err)
	return snap
}

func containsError(errs []string, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

func TestEmbeddedDefaults_AreValid(t *testing.T) {
	snap := mustBuild(t, Sources{}, noEnv)

	assert.Empty(t, ValidateConfigurations(snap))
	assert.NoError(t, snap.Validate())
	assert.Len(t, snap.Version, 16)
	assert.Equal(t, 3, snap.NGramSize())
	assert.InDelta(t, 1.0, snap.Algorithms.Weights.Sum(), WeightTolerance)

	byName := map[string]CountryEntry{}
	for _, c := range snap.Countries.Countries {
		byName[c.Name] = c
	}
	assert.Equal(t, "european_union", byName["France"].Region)
	assert.Equal(t, "european_union", byName["Germany"].Region)
	assert.True(t, byName["United States"].Priority)
	assert.False(t, byName["Canada"].Priority)
}

func TestBuild_VersionIsStable(t *testing.T) {
	a := mustBuild(t, Sources{}, noEnv)
	b := mustBuild(t, Sources{}, noEnv)
	assert.Equal(t, a.Version, b.Version)

	c := mustBuild(t, Sources{}, envMap(map[string]string{"ALGORITHMS_NGRAM_SIZE": "4"}))
	assert.NotEqual(t, a.Version, c.Version)
}

func TestValidate_WeightInvariant(t *testing.T) {
	tests := []struct {
		name     string
		a, b     float64
		wantFail bool
	}{
		{"exact sum", 0.5, 0.5, false},
		{"within tolerance above", 0.5, 0.505, false},
		{"within tolerance below", 0.5, 0.495, false},
		{"too high", 0.5, 0.52, true},
		{"too low", 0.4, 0.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := "ngram_size: 3\nweights:\n  levenshtein: " + formatFloat(tt.a) + "\n  jaro_winkler: " + formatFloat(tt.b) + "\n"
			snap := mustBuild(t, writeDocs(t, map[Domain]string{DomainAlgorithms: body}), noEnv)

			errs := ValidateConfigurations(snap)
			assert.Equal(t, tt.wantFail, containsError(errs, "weights sum"), "errors: %v", errs)
			if !tt.wantFail {
				assert.Empty(t, errs)
			}
		})
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func TestValidate_MissingSectionsAndEmptyTables(t *testing.T) {
	snap := mustBuild(t, writeDocs(t, map[Domain]string{
		DomainMatching:   "version: \"1\"\n",
		DomainCountries:  "countries: []\n",
		DomainAlgorithms: "weights: {}\n",
	}), noEnv)

	errs := ValidateConfigurations(snap)
	for _, want := range []string{
		"missing similarity section",
		"missing geographic section",
		"missing query section",
		"country table is empty",
		"weights table is empty",
	} {
		assert.True(t, containsError(errs, want), "expected %q in %v", want, errs)
	}

	var verr ValidationErrors
	require.ErrorAs(t, snap.Validate(), &verr)
	assert.Equal(t, len(errs), len(verr))
}

func TestValidate_StructuralChecks(t *testing.T) {
	matching := `
similarity:
  exact_threshold: 0.7
  alias_threshold: 0.8
  fuzzy_threshold: 0.6
  semantic_threshold: 1.5
geographic:
  same_country_boost: 0.8
  same_region_boost: 1.0
  different_region_penalty: 0.9
query:
  max_concurrency: 4
`
	countries := `
countries:
  - name: France
  - name: france
  - name: Germany
regional_groups:
  eu: [France, Germany]
  west: [France]
priority: [Atlantis]
`
	algorithms := `
weights:
  levenshtein: 0.5
  cosine: 0.5
`
	snap := mustBuild(t, writeDocs(t, map[Domain]string{
		DomainMatching:   matching,
		DomainCountries:  countries,
		DomainAlgorithms: algorithms,
	}), noEnv)

	errs := ValidateConfigurations(snap)
	for _, want := range []string{
		"alias_threshold (0.8) must be below exact_threshold (0.7)",
		"similarity.semantic_threshold failed lte=1",
		"same (0.8) >= regional (1) >= different (0.9)",
		`unknown algorithm "cosine"`,
		`duplicate canonical name "france"`,
		`"France" belongs to both "eu" and "west"`,
		`unknown country "Atlantis"`,
	} {
		assert.True(t, containsError(errs, want), "expected %q in %v", want, errs)
	}
}

func TestBuild_RejectsUnknownKeys(t *testing.T) {
	_, err := Build(writeDocs(t, map[Domain]string{
		DomainAlgorithms: "weights: {exact: 1}\nngram: 3\n",
	}), noEnv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode algorithms document")
}

func TestBuild_RejectsMalformedYAML(t *testing.T) {
	_, err := Build(writeDocs(t, map[Domain]string{
		DomainCountries: "countries: [",
	}), noEnv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse countries document")
}

func TestEnvOverrides_TopLevelScalarsOnly(t *testing.T) {
	snap := mustBuild(t, Sources{}, envMap(map[string]string{
		"ALGORITHMS_NGRAM_SIZE":    "4",
		"MATCHING_VERSION":         "pinned",
		"MATCHING_SIMILARITY":      "0.5",
		"ALGORITHMS_WEIGHTS_EXACT": "1",
		"MATCHING_EXACT_THRESHOLD": "0.1",
	}))

	assert.Equal(t, 4, snap.NGramSize())
	assert.Equal(t, "pinned", snap.Matching.Version)
	require.NotNil(t, snap.Matching.Similarity)
	assert.Equal(t, 0.95, snap.Matching.Similarity.Exact)
	assert.Equal(t, 0.10, snap.Algorithms.Weights["exact"])
	assert.Equal(t, []string{"ALGORITHMS_NGRAM_SIZE", "MATCHING_VERSION"}, snap.Overrides())
}

func TestGetConfigValue(t *testing.T) {
	snap := mustBuild(t, Sources{}, noEnv)

	tests := []struct {
		name   string
		domain Domain
		path   string
		def    any
		want   any
	}{
		{"nested float", DomainMatching, "similarity.exact_threshold", 0.0, 0.95},
		{"nested bool", DomainMatching, "query.early_termination", false, true},
		{"list index", DomainCountries, "countries.0.name", "", "United States"},
		{"missing key", DomainMatching, "similarity.unknown", "fallback", "fallback"},
		{"index out of range", DomainCountries, "countries.999.name", "none", "none"},
		{"non-numeric index", DomainCountries, "countries.first.name", "none", "none"},
		{"path through scalar", DomainAlgorithms, "ngram_size.value", 7, 7},
		{"unknown domain", Domain("pricing"), "anything", 42, 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, snap.GetConfigValue(tt.domain, tt.path, tt.def))
		})
	}
}

func TestAccessorDefaults(t *testing.T) {
	snap := mustBuild(t, writeDocs(t, map[Domain]string{
		DomainMatching: "geographic: {}\nquery: {}\n",
	}), noEnv)

	geo := snap.Geographic()
	assert.Equal(t, DefaultSameCountryBoost, geo.SameCountry)
	assert.Equal(t, DefaultSameRegionBoost, geo.SameRegion)
	assert.Equal(t, DefaultDifferentRegionPenalty, geo.DifferentRegion)

	th := snap.Thresholds()
	assert.Equal(t, DefaultExactThreshold, th.Exact)
	assert.Equal(t, DefaultMaxConcurrency, snap.Query().MaxConcurrency)
	assert.Equal(t, DefaultCacheTTL, snap.Cache().TTL)
}

func TestStore_LazyLoadAndReload(t *testing.T) {
	src := writeDocs(t, map[Domain]string{
		DomainAlgorithms: "weights: {levenshtein: 0.5, jaro_winkler: 0.5}\n",
	})
	store := NewStore(src, WithLookupEnv(noEnv))

	first, err := store.Snapshot()
	require.NoError(t, err)
	again, err := store.Snapshot()
	require.NoError(t, err)
	assert.Same(t, first, again, "snapshot should be memoized")

	// invalid weights are rejected and the previous snapshot stays active
	require.NoError(t, os.WriteFile(src.AlgorithmsPath, []byte("weights: {levenshtein: 0.9, jaro_winkler: 0.5}\n"), 0o600))
	active, err := store.Reload()
	var verr ValidationErrors
	require.ErrorAs(t, err, &verr)
	assert.Same(t, first, active)
	current, _ := store.Snapshot()
	assert.Same(t, first, current)

	// a valid document is swapped in
	require.NoError(t, os.WriteFile(src.AlgorithmsPath, []byte("weights: {levenshtein: 0.4, jaro_winkler: 0.6}\n"), 0o600))
	next, err := store.Reload()
	require.NoError(t, err)
	assert.NotEqual(t, first.Version, next.Version)
	current, _ = store.Snapshot()
	assert.Same(t, next, current)
	assert.Equal(t, 0.5, first.Algorithms.Weights["levenshtein"], "old snapshot must not change")
}

func TestStore_ReloadKeepsSnapshotOnUnreadableFile(t *testing.T) {
	src := writeDocs(t, map[Domain]string{DomainCountries: "countries: [{name: Chile}]\n"})
	store := NewStore(src, WithLookupEnv(noEnv))
	first, err := store.Snapshot()
	require.NoError(t, err)

	require.NoError(t, os.Remove(src.CountriesPath))
	active, err := store.Reload()
	require.Error(t, err)
	assert.Same(t, first, active)
}

func TestWeights_ByWeight(t *testing.T) {
	w := AlgorithmWeights{"ngram": 0.2, "levenshtein": 0.3, "jaccard": 0.2, "exact": 0.3}
	assert.Equal(t, []string{"exact", "levenshtein", "jaccard", "ngram"}, w.ByWeight())
}
