package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Side is one half of a scored pair as it enters the key.
type Side struct {
	Entity  string
	Country string
}

func (s Side) less(o Side) bool {
	if s.Entity != o.Entity {
		return s.Entity < o.Entity
	}
	return s.Country < o.Country
}

// PairKey derives an order-independent key for a pair under a configuration
// version. swapped is true when b sorts before a, so callers can store
// orientation-specific values under one key.
func PairKey(version string, a, b Side) (key string, swapped bool) {
	first, second := a, b
	if b.less(a) {
		first, second = b, a
		swapped = true
	}
	h := sha256.New()
	for _, part := range []string{version, first.Entity, first.Country, second.Entity, second.Country} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), swapped
}
