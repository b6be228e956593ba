package geocode

import (
	"errors"
	"fmt"

	"land-assessment-system/models"
)

// Location is an address that passed the geofence. Only the resolver can build one,
// so holders of a non-zero Location know it was validated.
type Location struct {
	address     string
	position    models.GeoPosition
	approximate bool
}

// Address is the human readable address.
func (l Location) Address() string { return l.address }

// Position is where the address was resolved.
func (l Location) Position() models.GeoPosition { return l.position }

// Approximate reports whether the address was synthesized from raw coordinates
// because reverse geocoding failed.
func (l Location) Approximate() bool { return l.approximate }

// IsZero reports whether no location was resolved.
func (l Location) IsZero() bool { return l.address == "" }

// FallbackAddress is the address used when reverse geocoding is unavailable.
func FallbackAddress(lat, lng float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lng)
}

var (
	// ErrOutsideBoundary means a point lies outside the geofence bounding box.
	ErrOutsideBoundary = errors.New("outside geofence boundary")
	// ErrOutsideCountry means the geocoder placed the point or result in another country.
	ErrOutsideCountry = errors.New("outside geofence country")
	// ErrMapClosed means a click arrived while the map dialog was closed.
	ErrMapClosed = errors.New("map is not open")
	// ErrLookupAbandoned means the dialog was closed, a newer click superseded the lookup or
	// the caller gave up waiting for it.
	ErrLookupAbandoned = errors.New("location lookup abandoned")
	// ErrResolverClosed means the resolver was shut down.
	ErrResolverClosed = errors.New("resolver closed")
)

// GeofenceError is the user facing warning for a rejected location. It matches both
// its Kind sentinel and *models.ValidationError.
type GeofenceError struct {
	Kind    error
	Message string
}

func (e *GeofenceError) Error() string {
	return e.Message
}

func (e *GeofenceError) Unwrap() []error {
	return []error{e.Kind, &models.ValidationError{Msg: e.Message}}
}

func boundaryError(fence Geofence) *GeofenceError {
	return &GeofenceError{
		Kind:    ErrOutsideBoundary,
		Message: fmt.Sprintf("Please select a location within %s.", fence.CountryName),
	}
}

func countryError(fence Geofence) *GeofenceError {
	return &GeofenceError{
		Kind:    ErrOutsideCountry,
		Message: fmt.Sprintf("Selected location is not in %s. Please choose a location within %s.", fence.CountryName, fence.CountryName),
	}
}
