package geocode

import (
	"fmt"
	"strings"
)

// Bounds is a latitude/longitude bounding box.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// Contains reports whether the point is inside the box, edges included.
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// Viewbox formats the box the way Nominatim expects: left,top,right,bottom.
func (b Bounds) Viewbox() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinLng, b.MaxLat, b.MaxLng, b.MinLat)
}

// Geofence restricts locations to one country.
type Geofence struct {
	CountryCode string
	CountryName string
	Bounds      Bounds
}

// SriLanka is the default geofence.
var SriLanka = Geofence{
	CountryCode: "lk",
	CountryName: "Sri Lanka",
	Bounds: Bounds{
		MinLat: 5.9,
		MaxLat: 9.9,
		MinLng: 79.4,
		MaxLng: 81.9,
	},
}

// Contains checks the bounding box only.
func (g Geofence) Contains(lat, lng float64) bool {
	return g.Bounds.Contains(lat, lng)
}

// Accepts checks a country code reported by the geocoder.
func (g Geofence) Accepts(countryCode string) bool {
	return countryCode != "" && strings.EqualFold(countryCode, g.CountryCode)
}
