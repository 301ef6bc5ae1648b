package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_AllAlgorithmsBounded(t *testing.T) {
	pairs := [][2]string{
		{"tsinghua university", "tsinghua univ"},
		{"", "acme"},
		{"", ""},
		{"zhejiang", "zhejiang"},
		{"123 labs", "labs 123"},
		{"école polytechnique", "ecole polytechnique"},
	}

	for name, fn := range Registry(3) {
		for _, p := range pairs {
			t.Run(name+"/"+p[0]+"|"+p[1], func(t *testing.T) {
				got := fn(p[0], p[1])
				assert.GreaterOrEqual(t, got, 0.0)
				assert.LessOrEqual(t, got, 1.0)
				assert.Equal(t, got, fn(p[1], p[0]), "%s should be symmetric", name)
			})
		}
	}
}

func TestRegistry_IdenticalInputScoresOne(t *testing.T) {
	for name, fn := range Registry(2) {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, 1.0, fn("huawei technologies", "huawei technologies"))
		})
	}
}

func TestLevenshteinSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"kitten", "sitting", 1 - 3.0/7.0},
		{"germany", "germany", 1},
		{"abc", "", 0},
		{"", "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, LevenshteinSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestWordJaccard(t *testing.T) {
	assert.InDelta(t, 1.0/3.0, WordJaccard("alpha beta", "beta gamma"), 1e-9)
	assert.Equal(t, 1.0, WordJaccard("Beta alpha", "alpha beta"))
	assert.Equal(t, 0.0, WordJaccard("alpha", "gamma"))
}

func TestPhonetic(t *testing.T) {
	assert.Equal(t, 1.0, SoundexSimilarity("robert", "rupert"))
	assert.Greater(t, MetaphoneSimilarity("catherine", "katherine"), 0.0)
	// tokens that do not start with a letter have no soundex code
	assert.Equal(t, 1.0, SoundexSimilarity("123", "456"))
	assert.Equal(t, 0.0, SoundexSimilarity("robert", "123"))
}

func TestNamesAndKnown(t *testing.T) {
	assert.Equal(t, []string{"exact", "jaccard", "jaro_winkler", "levenshtein", "metaphone", "ngram", "soundex"}, Names())
	assert.True(t, Known("ngram"))
	assert.False(t, Known("cosine"))
}
