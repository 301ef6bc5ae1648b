package country

// Relationship kinds.
const (
	RelationshipSame      = "same"
	RelationshipRegional  = "regional"
	RelationshipDifferent = "different"
)

// Relationship is the geographic relation of two countries and the score
// factor configured for it.
type Relationship struct {
	Kind        string  `json:"relationship"`
	BoostFactor float64 `json:"boost_factor"`
}

// GeographicRelationship compares two country strings. An input that does not
// resolve makes the pair "different". Each country belongs to at most one
// regional group, so the result is symmetric.
func (n *Normalizer) GeographicRelationship(a, b string) Relationship {
	different := Relationship{Kind: RelationshipDifferent, BoostFactor: n.factors.DifferentRegion}

	ma, okA := n.Normalize(a)
	mb, okB := n.Normalize(b)
	if !okA || !okB {
		return different
	}
	if ma.Canonical == mb.Canonical {
		return Relationship{Kind: RelationshipSame, BoostFactor: n.factors.SameCountry}
	}

	ea, eb := n.byName[Clean(ma.Canonical)], n.byName[Clean(mb.Canonical)]
	if ea != nil && eb != nil && ea.region != "" && ea.region == eb.region {
		return Relationship{Kind: RelationshipRegional, BoostFactor: n.factors.SameRegion}
	}
	return different
}

// Region returns the regional group of a canonical country, if any.
func (n *Normalizer) Region(canonical string) string {
	if e := n.byName[Clean(canonical)]; e != nil {
		return e.region
	}
	return ""
}
