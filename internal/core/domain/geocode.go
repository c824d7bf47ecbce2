package domain

// GeocodeCandidate is one geocoder-returned location guess for a text
// variant. VariantIndex records which variant produced it; lower index
// means a more specific, higher-trust variant.
type GeocodeCandidate struct {
	Point        GeoPoint
	Label        string
	Confidence   float64
	VariantIndex int
}

// RankedCandidate pairs a candidate with its ranking evidence. Scores are
// only comparable within a single ranking call.
type RankedCandidate struct {
	Candidate          GeocodeCandidate
	StrongTokenMatches int
	Score              float64
}

// AmbiguityChoice is one option offered to the user when the top ranked
// candidates are too close to auto-select.
type AmbiguityChoice struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// ResolvedLocation is the single auto-selected geocoding result.
type ResolvedLocation struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// Resolution is the outcome of a location query: either one resolved
// location, a choice set, or neither when nothing matched.
type Resolution struct {
	Location *ResolvedLocation `json:"location,omitempty"`
	Choices  []AmbiguityChoice `json:"choices,omitempty"`
}
