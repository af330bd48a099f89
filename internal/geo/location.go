package geo

// Location is what an IP resolves to. Coordinates may be nil when the
// provider knows the country but not a position.
type Location struct {
	Coordinates      *Point `json:"coordinates,omitempty"`
	CountryCode      string `json:"country_code,omitempty"`
	City             string `json:"city,omitempty"`
	AccuracyRadiusKm int    `json:"accuracy_radius_km,omitempty"`
}

// HasCoordinates reports whether the location can take part in distance math.
func (l *Location) HasCoordinates() bool {
	return l != nil && l.Coordinates != nil && l.Coordinates.Valid()
}
