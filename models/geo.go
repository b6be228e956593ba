package models

// GeoPosition is a point picked on the map or taken from a search result
type GeoPosition struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SearchResult is one entry returned by the geocoding service
type SearchResult struct {
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	CountryCode string  `json:"country_code"`
}

// Position returns the coordinates of the result
func (r SearchResult) Position() GeoPosition {
	return GeoPosition{Lat: r.Lat, Lng: r.Lon}
}
