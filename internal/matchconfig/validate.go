package matchconfig

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/similarity"

	"github.com/go-playground/validator/v10"
)

// WeightTolerance is the allowed deviation of the weight sum from 1.0.
const WeightTolerance = 0.01

// ValidationErrors is the list of problems found in a snapshot.
type ValidationErrors []string

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var sb strings.Builder
	sb.WriteString("matching configuration invalid:\n")
	for _, msg := range e {
		sb.WriteString("  - ")
		sb.WriteString(msg)
		sb.WriteString("\n")
	}
	return sb.String()
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// ValidateConfigurations checks every document and returns human-readable
// errors. An empty result means the snapshot is safe to score with.
func ValidateConfigurations(s *Snapshot) []string {
	if s == nil {
		return []string{"configuration not loaded"}
	}
	var errs []string

	m := s.Matching
	if m.Similarity == nil {
		errs = append(errs, "matching: missing similarity section")
	}
	if m.Geographic == nil {
		errs = append(errs, "matching: missing geographic section")
	}
	if m.Query == nil {
		errs = append(errs, "matching: missing query section")
	}
	if len(s.Countries.Countries) == 0 {
		errs = append(errs, "countries: country table is empty")
	}
	if len(s.Algorithms.Weights) == 0 {
		errs = append(errs, "algorithms: weights table is empty")
	} else if sum := s.Algorithms.Weights.Sum(); math.Abs(sum-1) > WeightTolerance {
		errs = append(errs, fmt.Sprintf("algorithms: weights sum to %.4f, expected 1.0 ± %.2f", sum, WeightTolerance))
	}

	errs = append(errs, structErrors(DomainMatching, &s.Matching)...)
	errs = append(errs, structErrors(DomainCountries, &s.Countries)...)
	errs = append(errs, structErrors(DomainAlgorithms, &s.Algorithms)...)

	errs = append(errs, thresholdErrors(m.Similarity)...)
	errs = append(errs, geographicErrors(m.Geographic)...)
	errs = append(errs, algorithmErrors(s.Algorithms.Weights)...)
	errs = append(errs, countryErrors(s.Countries)...)

	if m.Cache.Enabled && m.Cache.TTL < 0 {
		errs = append(errs, "matching: cache.ttl must not be negative")
	}
	if m.Quality.MaxLengthRatio != 0 && m.Quality.MaxLengthRatio < 1 {
		errs = append(errs, fmt.Sprintf("matching: quality.max_length_ratio must be >= 1 (longer/shorter), got %g", m.Quality.MaxLengthRatio))
	}
	return errs
}

// Validate returns ValidationErrors when the snapshot has problems.
func (s *Snapshot) Validate() error {
	if errs := ValidateConfigurations(s); len(errs) > 0 {
		return ValidationErrors(errs)
	}
	return nil
}

func structErrors(d Domain, doc any) []string {
	err := validate.Struct(doc)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{fmt.Sprintf("%s: %v", d, err)}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		out = append(out, fmt.Sprintf("%s: %s failed %s=%s (value %v)", d, field, fe.Tag(), fe.Param(), fe.Value()))
	}
	return out
}

func thresholdErrors(t *SimilarityThresholds) []string {
	if t == nil {
		return nil
	}
	ordered := []struct {
		name  string
		value float64
	}{
		{"exact_threshold", t.Exact},
		{"alias_threshold", t.Alias},
		{"fuzzy_threshold", t.Fuzzy},
		{"semantic_threshold", t.Semantic},
	}
	var errs []string
	for i := 1; i < len(ordered); i++ {
		if ordered[i].value >= ordered[i-1].value {
			errs = append(errs, fmt.Sprintf("matching: similarity.%s (%g) must be below %s (%g)",
				ordered[i].name, ordered[i].value, ordered[i-1].name, ordered[i-1].value))
		}
	}
	return errs
}

func geographicErrors(g *GeographicFactors) []string {
	if g == nil {
		return nil
	}
	// apply the same defaults the accessor uses before comparing
	resolved := (&Snapshot{Matching: MatchingDocument{Geographic: g}}).Geographic()
	if resolved.SameCountry < resolved.SameRegion || resolved.SameRegion < resolved.DifferentRegion {
		return []string{fmt.Sprintf("matching: geographic factors must satisfy same (%g) >= regional (%g) >= different (%g)",
			resolved.SameCountry, resolved.SameRegion, resolved.DifferentRegion)}
	}
	return nil
}

func algorithmErrors(w AlgorithmWeights) []string {
	var errs []string
	for _, name := range w.Names() {
		if !similarity.Known(name) {
			errs = append(errs, fmt.Sprintf("algorithms: unknown algorithm %q (known: %s)", name, strings.Join(similarity.Names(), ", ")))
		}
	}
	return errs
}

func countryErrors(c CountriesDocument) []string {
	var errs []string
	declared := make(map[string]bool, len(c.Countries))
	for _, entry := range c.Countries {
		key := strings.ToLower(strings.TrimSpace(entry.Name))
		if key == "" {
			continue
		}
		if declared[key] {
			errs = append(errs, fmt.Sprintf("countries: duplicate canonical name %q", entry.Name))
		}
		declared[key] = true
	}

	groups := make([]string, 0, len(c.RegionalGroups))
	for g := range c.RegionalGroups {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	memberOf := make(map[string]string)
	for _, g := range groups {
		for _, member := range c.RegionalGroups[g] {
			key := strings.ToLower(strings.TrimSpace(member))
			if !declared[key] {
				errs = append(errs, fmt.Sprintf("countries: regional group %q references unknown country %q", g, member))
			}
			if prev, ok := memberOf[key]; ok && prev != g {
				errs = append(errs, fmt.Sprintf("countries: %q belongs to both %q and %q", member, prev, g))
				continue
			}
			memberOf[key] = g
		}
	}
	for _, p := range c.Priority {
		if !declared[strings.ToLower(strings.TrimSpace(p))] {
			errs = append(errs, fmt.Sprintf("countries: priority list references unknown country %q", p))
		}
	}
	return errs
}
