package matchconfig

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/*.yaml
var defaultDocuments embed.FS

// Sources points at the three documents on disk. An empty path selects the
// embedded default for that document.
type Sources struct {
	MatchingPath   string
	CountriesPath  string
	AlgorithmsPath string
}

func (s Sources) path(d Domain) string {
	switch d {
	case DomainMatching:
		return s.MatchingPath
	case DomainCountries:
		return s.CountriesPath
	case DomainAlgorithms:
		return s.AlgorithmsPath
	}
	return ""
}

// LookupEnvFunc matches os.LookupEnv.
type LookupEnvFunc func(key string) (string, bool)

func readDocument(src Sources, d Domain) ([]byte, string, error) {
	if p := src.path(d); p != "" {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, p, fmt.Errorf("read %s document: %w", d, err)
		}
		return data, p, nil
	}
	name := "defaults/" + string(d) + ".yaml"
	data, err := defaultDocuments.ReadFile(name)
	if err != nil {
		return nil, name, fmt.Errorf("read embedded %s document: %w", d, err)
	}
	return data, "embedded:" + name, nil
}

// parseRaw decodes a document into a generic tree and applies environment
// overrides to its top-level scalar keys.
func parseRaw(d Domain, data []byte, lookup LookupEnvFunc) (map[string]any, []string, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("parse %s document: %w", d, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	applied := applyEnvOverrides(d, raw, lookup)
	return raw, applied, nil
}

// applyEnvOverrides replaces top-level scalar values with <DOMAIN>_<KEY>
// environment variables. Maps and lists are never overridden.
func applyEnvOverrides(d Domain, raw map[string]any, lookup LookupEnvFunc) []string {
	if lookup == nil {
		return nil
	}
	var applied []string
	for key, current := range raw {
		if !isScalar(current) {
			continue
		}
		envKey := envKeyFor(d, key)
		value, ok := lookup(envKey)
		if !ok {
			continue
		}
		raw[key] = parseScalar(value)
		applied = append(applied, envKey)
	}
	return applied
}

func envKeyFor(d Domain, key string) string {
	return strings.ToUpper(string(d) + "_" + strings.ReplaceAll(key, "-", "_"))
}

func isScalar(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return false
	}
	return true
}

// parseScalar reads an override as YAML so "5" becomes an int and "true" a
// bool; anything that does not parse as a scalar stays a string.
func parseScalar(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil || !isScalar(v) {
		return s
	}
	if v == nil {
		return s
	}
	return v
}

// decodeStrict re-encodes the generic tree and decodes it into out,
// rejecting unknown keys.
func decodeStrict(d Domain, raw map[string]any, out any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode %s document: %w", d, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s document: %w", d, err)
	}
	return nil
}
