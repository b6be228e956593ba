package geocode

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"land-assessment-system/models"
)

// DialogState is the state of the map dialog.
type DialogState string

const (
	DialogClosed DialogState = "CLOSED"
	DialogOpen   DialogState = "OPEN"
)

const searchFailedWarning = "Unable to search locations right now. Please try again."

// Resolver turns search text or map clicks into a Location inside a geofence.
//
// Debounced searches carry a generation number. A newer query stops the pending timer,
// cancels the request in flight and bumps the generation, so a late answer for an older
// query is dropped instead of overwriting fresher results. Map clicks use the same scheme
// with their own counter.
type Resolver struct {
	geocoder      Geocoder
	fence         Geofence
	debounce      time.Duration
	limit         int
	lookupTimeout time.Duration
	logger        *zap.Logger

	// publishMu orders result callbacks; it is taken before mu
	publishMu     sync.Mutex
	mu            sync.Mutex
	query         string
	generation    uint64
	timer         *time.Timer
	cancelSearch  context.CancelFunc
	reverseGen    uint64
	cancelReverse context.CancelFunc
	results       []models.SearchResult
	position      *models.GeoPosition
	location      Location
	dialog        DialogState
	warning       string
	closed        bool
	inflight      sync.WaitGroup

	onResults  func([]models.SearchResult)
	onResolved func(Location)
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithDebounce sets how long input must settle before a search is sent.
func WithDebounce(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.debounce = d }
}

// WithLimit caps the number of displayed results.
func WithLimit(limit int) ResolverOption {
	return func(r *Resolver) { r.limit = limit }
}

// WithLookupTimeout bounds each geocoder call.
func WithLookupTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.lookupTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

// NewResolver creates a Resolver restricted to fence.
func NewResolver(geocoder Geocoder, fence Geofence, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		geocoder:      geocoder,
		fence:         fence,
		debounce:      500 * time.Millisecond,
		limit:         8,
		lookupTimeout: 10 * time.Second,
		logger:        zap.NewNop(),
		dialog:        DialogClosed,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnResults registers the callback receiving every published result list.
func (r *Resolver) OnResults(fn func([]models.SearchResult)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onResults = fn
}

// OnResolved registers the callback receiving every committed location.
func (r *Resolver) OnResolved(fn func(Location)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onResolved = fn
}

// SetQuery records new search input and schedules a debounced search for it.
func (r *Resolver) SetQuery(query string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.query = query
	r.generation++
	gen := r.generation
	r.stopSearchLocked()

	if strings.TrimSpace(query) == "" {
		r.results = nil
		cb := r.onResults
		r.mu.Unlock()

		r.publishMu.Lock()
		defer r.publishMu.Unlock()
		r.mu.Lock()
		current := gen == r.generation
		r.mu.Unlock()
		if cb != nil && current {
			cb(nil)
		}
		return
	}

	r.timer = time.AfterFunc(r.debounce, func() { r.runSearch(gen, query) })
	r.mu.Unlock()
}

func (r *Resolver) runSearch(gen uint64, query string) {
	r.mu.Lock()
	if r.closed || gen != r.generation {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.lookupTimeout)
	r.cancelSearch = cancel
	r.inflight.Add(1)
	r.mu.Unlock()

	defer r.inflight.Done()
	defer cancel()

	results, err := r.Search(ctx, query)

	r.publishMu.Lock()
	defer r.publishMu.Unlock()
	r.mu.Lock()
	if r.closed || gen != r.generation {
		r.mu.Unlock()
		r.logger.Debug("Discarding stale search response", zap.String("query", query))
		return
	}
	r.cancelSearch = nil
	if err != nil {
		r.logger.Warn("Location search failed", zap.String("query", query), zap.Error(err))
		r.results = nil
		r.warning = searchFailedWarning
	} else {
		r.results = results
		r.warning = ""
	}
	published := cloneResults(r.results)
	cb := r.onResults
	r.mu.Unlock()

	if cb != nil {
		cb(published)
	}
}

// Search looks up query immediately and keeps only results inside the geofence country.
// The geocoder is asked to bound results already, but its filter is not trusted.
func (r *Resolver) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	raw, err := r.geocoder.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("location search failed: %w", err)
	}

	results := make([]models.SearchResult, 0, len(raw))
	for _, res := range raw {
		if !r.fence.Accepts(res.CountryCode) {
			r.logger.Debug("Dropping search result outside geofence",
				zap.String("display_name", res.DisplayName),
				zap.String("country_code", res.CountryCode))
			continue
		}
		results = append(results, res)
		if r.limit > 0 && len(results) == r.limit {
			break
		}
	}
	return results, nil
}

// Select commits a search result. Selecting the same result again yields the same Location.
func (r *Resolver) Select(result models.SearchResult) (Location, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Location{}, ErrResolverClosed
	}
	if !r.fence.Accepts(result.CountryCode) {
		err := countryError(r.fence)
		r.position = nil
		r.warning = err.Message
		r.mu.Unlock()
		return Location{}, err
	}

	loc := Location{address: result.DisplayName, position: result.Position()}
	if loc.IsZero() {
		loc.address = FallbackAddress(result.Lat, result.Lon)
		loc.approximate = true
	}

	// a pending debounced search would reopen the result list
	r.generation++
	r.stopSearchLocked()
	cb := r.commitLocked(loc)
	r.mu.Unlock()

	if cb != nil {
		cb(loc)
	}
	return loc, nil
}

// OpenMap opens the map dialog.
func (r *Resolver) OpenMap() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.dialog = DialogOpen
}

// CloseMap closes the map dialog and abandons any reverse lookup in flight.
func (r *Resolver) CloseMap() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialog = DialogClosed
	r.stopReverseLocked()
}

// Click handles a click on the map at lat/lng.
//
// Points outside the bounding box are rejected without a network call. Points inside are
// reverse geocoded; a result in another country clears the marker, and a failed lookup
// falls back to an address built from the coordinates.
func (r *Resolver) Click(ctx context.Context, lat, lng float64) (Location, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Location{}, ErrResolverClosed
	}
	if r.dialog != DialogOpen {
		r.mu.Unlock()
		return Location{}, ErrMapClosed
	}
	if !r.fence.Contains(lat, lng) {
		err := boundaryError(r.fence)
		r.position = nil
		r.warning = err.Message
		r.mu.Unlock()
		return Location{}, err
	}

	tentative := models.GeoPosition{Lat: lat, Lng: lng}
	r.position = &tentative
	r.warning = ""
	r.stopReverseLocked()
	lookupCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	r.cancelReverse = cancel
	gen := r.reverseGen
	r.mu.Unlock()
	defer cancel()

	result, lookupErr := r.geocoder.Reverse(lookupCtx, lat, lng)

	r.mu.Lock()
	if r.closed || gen != r.reverseGen {
		r.mu.Unlock()
		return Location{}, ErrLookupAbandoned
	}
	r.cancelReverse = nil
	if ctx.Err() != nil {
		// the caller walked away; only failures of the lookup itself fall back to coordinates
		r.mu.Unlock()
		r.logger.Debug("Discarding reverse lookup for abandoned click",
			zap.Float64("lat", lat), zap.Float64("lng", lng), zap.Error(ctx.Err()))
		return Location{}, ErrLookupAbandoned
	}

	var loc Location
	switch {
	case lookupErr != nil:
		r.logger.Warn("Reverse geocoding failed, using coordinates",
			zap.Float64("lat", lat), zap.Float64("lng", lng), zap.Error(lookupErr))
		loc = Location{address: FallbackAddress(lat, lng), position: tentative, approximate: true}
	case !r.fence.Accepts(result.CountryCode):
		err := countryError(r.fence)
		r.position = nil
		r.warning = err.Message
		r.mu.Unlock()
		return Location{}, err
	case result.DisplayName == "":
		loc = Location{address: FallbackAddress(lat, lng), position: tentative, approximate: true}
	default:
		loc = Location{address: result.DisplayName, position: tentative}
	}

	cb := r.commitLocked(loc)
	r.mu.Unlock()

	if cb != nil {
		cb(loc)
	}
	return loc, nil
}

// commitLocked stores loc, closes the result list and the map, and returns the
// callback to run once the lock is released.
func (r *Resolver) commitLocked(loc Location) func(Location) {
	pos := loc.position
	r.position = &pos
	r.location = loc
	r.results = nil
	r.dialog = DialogClosed
	r.warning = ""
	return r.onResolved
}

func (r *Resolver) stopSearchLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.cancelSearch != nil {
		r.cancelSearch()
		r.cancelSearch = nil
	}
}

func (r *Resolver) stopReverseLocked() {
	r.reverseGen++
	if r.cancelReverse != nil {
		r.cancelReverse()
		r.cancelReverse = nil
	}
}

// Close stops pending timers, cancels lookups in flight and waits for running searches.
func (r *Resolver) Close() {
	r.mu.Lock()
	r.closed = true
	r.generation++
	r.stopSearchLocked()
	r.stopReverseLocked()
	r.dialog = DialogClosed
	r.mu.Unlock()

	r.inflight.Wait()
}

// Results returns the current result list.
func (r *Resolver) Results() []models.SearchResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneResults(r.results)
}

// Position returns the committed or tentative marker position.
func (r *Resolver) Position() (models.GeoPosition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.position == nil {
		return models.GeoPosition{}, false
	}
	return *r.position, true
}

// Location returns the last committed location.
func (r *Resolver) Location() Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location
}

// Dialog returns the map dialog state.
func (r *Resolver) Dialog() DialogState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dialog
}

// Warning returns the current user facing warning, empty when there is none.
func (r *Resolver) Warning() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.warning
}

// Query returns the last search input.
func (r *Resolver) Query() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.query
}

func cloneResults(in []models.SearchResult) []models.SearchResult {
	if in == nil {
		return nil
	}
	out := make([]models.SearchResult, len(in))
	copy(out, in)
	return out
}
