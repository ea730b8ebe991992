package types

// ManualMapping is an editorial record pinning one real-world event across
// venues. Mappings are loaded once at startup and immutable thereafter.
type ManualMapping struct {
	Slug        string                    `yaml:"slug" json:"slug"`
	Description string                    `yaml:"description" json:"description,omitempty"`
	Outcomes    map[string]MappingOutcome `yaml:"outcomes" json:"outcomes"`
}

// MappingOutcome names the market representing one outcome on each venue.
type MappingOutcome map[Venue]MappingRef

// MappingRef points at a single market on a single venue.
type MappingRef struct {
	VenueMarketID string `yaml:"market_id" json:"market_id"`
	OutcomeLabel  string `yaml:"outcome" json:"outcome,omitempty"`
}

// MatchPair couples two snapshots the matcher judged to describe the same
// real-world event. Confidence is 1.0 exactly when the pair came from a
// manual mapping.
type MatchPair struct {
	A          *MarketSnapshot `json:"a"`
	B          *MarketSnapshot `json:"b"`
	Confidence float64         `json:"confidence"`
}
