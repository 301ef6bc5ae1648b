package country

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/matchconfig"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	snap, err := matchconfig.Build(matchconfig.Sources{}, nil)
	require.NoError(t, err)
	return NewNormalizer(snap)
}

func normalizerFor(t *testing.T, countries string) *Normalizer {
	t.Helper()
	p := filepath.Join(t.TempDir(), "countries.yaml")
	require.NoError(t, os.WriteFile(p, []byte(countries), 0o600))
	snap, err := matchconfig.Build(matchconfig.Sources{CountriesPath: p}, nil)
	require.NoError(t, err)
	return NewNormalizer(snap)
}

func TestNormalize(t *testing.T) {
	n := defaultNormalizer(t)

	tests := []struct {
		name      string
		input     string
		canonical string
		kind      string
		conf      float64
	}{
		{"exact", "France", "France", KindExact, 1.0},
		{"exact with noise", "  FRANCE!! ", "France", KindExact, 1.0},
		{"iso alpha-2", "de", "Germany", KindISOCode, 0.95},
		{"iso alpha-3", "USA", "United States", KindISOCode, 0.95},
		{"alias", "Deutschland", "Germany", KindAlias, 0.9},
		{"iso with punctuation", "U.S.A.", "United States", KindISOCode, 0.95},
		{"alias with apostrophe", "People's Republic of China", "China", KindAlias, 0.9},
		{"accent folded", "España", "Spain", KindAlias, 0.9},
		{"fuzzy", "Germny", "Germany", KindFuzzy, (1 - 1.0/7.0) * 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := n.Normalize(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.canonical, m.Canonical)
			assert.Equal(t, tt.kind, m.Kind)
			assert.InDelta(t, tt.conf, m.Confidence, 1e-9)
			assert.Equal(t, tt.input, m.Original)
		})
	}
}

func TestNormalize_NoMatch(t *testing.T) {
	n := defaultNormalizer(t)

	for _, input := range []string{"", "   ", "Atlantis", "Frnc"} {
		t.Run(input, func(t *testing.T) {
			_, ok := n.Normalize(input)
			assert.False(t, ok)
		})
	}
}

func TestNormalize_MemoizesIncludingMisses(t *testing.T) {
	n := defaultNormalizer(t)

	_, _ = n.Normalize("Atlantis")
	_, _ = n.Normalize("atlantis!")
	m, ok := n.Normalize("France")
	require.True(t, ok)
	assert.Equal(t, 2, n.Size())

	again, ok := n.Normalize("FRANCE")
	require.True(t, ok)
	assert.Equal(t, "FRANCE", again.Original)
	assert.Equal(t, m.Canonical, again.Canonical)
	assert.Equal(t, 2, n.Size())
}

func TestNormalize_TieBreak(t *testing.T) {
	t.Run("first declared wins", func(t *testing.T) {
		n := normalizerFor(t, `
countries:
  - name: Congo
    aliases: [congo republic]
  - name: Democratic Republic of the Congo
    aliases: [congo republic]
`)
		m, ok := n.Normalize("Congo Republic")
		require.True(t, ok)
		assert.Equal(t, "Congo", m.Canonical)
	})

	t.Run("priority country wins ties", func(t *testing.T) {
		n := normalizerFor(t, `
countries:
  - name: Congo
    aliases: [congo republic]
  - name: Democratic Republic of the Congo
    aliases: [congo republic]
priority: [Democratic Republic of the Congo]
`)
		m, ok := n.Normalize("Congo Republic")
		require.True(t, ok)
		assert.Equal(t, "Democratic Republic of the Congo", m.Canonical)
	})

	t.Run("higher confidence beats priority", func(t *testing.T) {
		n := normalizerFor(t, `
countries:
  - name: Georgia
  - name: United States
    aliases: [georgia]
priority: [United States]
`)
		m, ok := n.Normalize("Georgia")
		require.True(t, ok)
		assert.Equal(t, "Georgia", m.Canonical)
		assert.Equal(t, KindExact, m.Kind)
	})
}

func TestNormalize_ConcurrentUse(t *testing.T) {
	n := defaultNormalizer(t)
	inputs := []string{"France", "fr", "Deutschland", "Atlantis", "Japan", "jpn"}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, in := range inputs {
				_, _ = n.Normalize(in)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, len(inputs), n.Size())
}

func TestGeographicRelationship(t *testing.T) {
	n := defaultNormalizer(t)

	tests := []struct {
		name   string
		a, b   string
		kind   string
		factor float64
	}{
		{"same country via different spellings", "Germany", "DEU", RelationshipSame, 1.10},
		{"regional", "France", "Germany", RelationshipRegional, 1.05},
		{"different regions", "France", "Japan", RelationshipDifferent, 0.90},
		{"unresolvable", "France", "Atlantis", RelationshipDifferent, 0.90},
		{"empty", "", "Germany", RelationshipDifferent, 0.90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, pair := range [][2]string{{tt.a, tt.b}, {tt.b, tt.a}} {
				got := n.GeographicRelationship(pair[0], pair[1])
				assert.Equal(t, tt.kind, got.Kind)
				assert.InDelta(t, tt.factor, got.BoostFactor, 1e-9)
			}
		})
	}
}

func TestGeographicRelationship_RegionalBetweenSameAndDifferent(t *testing.T) {
	n := defaultNormalizer(t)

	same := n.GeographicRelationship("France", "France").BoostFactor
	regional := n.GeographicRelationship("France", "Germany")
	different := n.GeographicRelationship("France", "Brazil").BoostFactor

	assert.Equal(t, RelationshipRegional, regional.Kind)
	assert.Greater(t, regional.BoostFactor, different)
	assert.Less(t, regional.BoostFactor, same)
}

func TestGeographicRelationship_DefaultFactors(t *testing.T) {
	p := filepath.Join(t.TempDir(), "matching.yaml")
	require.NoError(t, os.WriteFile(p, []byte("geographic: {}\n"), 0o600))
	snap, err := matchconfig.Build(matchconfig.Sources{MatchingPath: p}, nil)
	require.NoError(t, err)
	n := NewNormalizer(snap)

	assert.Equal(t, matchconfig.DefaultSameCountryBoost, n.GeographicRelationship("fr", "France").BoostFactor)
	assert.Equal(t, matchconfig.DefaultSameRegionBoost, n.GeographicRelationship("fr", "de").BoostFactor)
	assert.Equal(t, matchconfig.DefaultDifferentRegionPenalty, n.GeographicRelationship("fr", "jp").BoostFactor)
	assert.Equal(t, "european_union", n.Region("France"))
}
