package types

// Venue identifies a prediction-market platform.
type Venue string

// Known venues.
const (
	VenuePoly    Venue = "POLY"
	VenueOpinion Venue = "OPINION"
	VenuePredict Venue = "PREDICT"
	VenueKalshi  Venue = "KALSHI"
)

// AllVenues returns every venue the scanner knows about, in display order.
func AllVenues() []Venue {
	return []Venue{VenuePoly, VenueOpinion, VenuePredict, VenueKalshi}
}

// VenueStatus describes the health of a venue adapter as of the last scan.
type VenueStatus string

const (
	// VenueStatusOK means the last catalog fetch succeeded.
	VenueStatusOK VenueStatus = "OK"
	// VenueStatusError means the last catalog fetch failed; the venue is
	// retried on the next scan.
	VenueStatusError VenueStatus = "ERROR"
	// VenueStatusDisabled means the venue rejected credentials and is out
	// for the process lifetime.
	VenueStatusDisabled VenueStatus = "DISABLED"
)

// Side is one leg of a binary market.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Opposite returns the other leg.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}
