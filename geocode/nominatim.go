package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"land-assessment-system/models"
)

// Geocoder turns text into places and places into text.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
	Reverse(ctx context.Context, lat, lng float64) (models.SearchResult, error)
}

// ErrNoResult is returned when the geocoder has nothing at the requested point.
var ErrNoResult = errors.New("no address found at this location")

type nominatimPlace struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Error       string `json:"error"`
	Address     struct {
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

func (p nominatimPlace) toResult() (models.SearchResult, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return models.SearchResult{}, fmt.Errorf("invalid latitude %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return models.SearchResult{}, fmt.Errorf("invalid longitude %q: %w", p.Lon, err)
	}
	return models.SearchResult{
		DisplayName: p.DisplayName,
		Lat:         lat,
		Lon:         lon,
		CountryCode: strings.ToLower(p.Address.CountryCode),
	}, nil
}

// Nominatim is a Geocoder backed by an OpenStreetMap Nominatim server.
type Nominatim struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	fence      Geofence
	limit      int
	limiter    *rate.Limiter
	group      singleflight.Group
	retries    uint64
	retryDelay time.Duration
	logger     *zap.Logger
}

// NominatimOption customises a Nominatim client.
type NominatimOption func(*Nominatim)

// WithUserAgent sets the User-Agent required by the Nominatim usage policy.
func WithUserAgent(ua string) NominatimOption {
	return func(n *Nominatim) { n.userAgent = ua }
}

// WithRateLimit caps outgoing requests per second. Zero or less disables the limit.
func WithRateLimit(perSecond float64) NominatimOption {
	return func(n *Nominatim) {
		if perSecond <= 0 {
			n.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		n.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) NominatimOption {
	return func(n *Nominatim) { n.httpClient.Timeout = d }
}

// WithResultLimit caps the number of search results.
func WithResultLimit(limit int) NominatimOption {
	return func(n *Nominatim) { n.limit = limit }
}

// WithRetry sets how many times a transport failure is retried and the pause between tries.
func WithRetry(retries uint64, delay time.Duration) NominatimOption {
	return func(n *Nominatim) {
		n.retries = retries
		n.retryDelay = delay
	}
}

// WithNominatimLogger sets the logger.
func WithNominatimLogger(logger *zap.Logger) NominatimOption {
	return func(n *Nominatim) { n.logger = logger }
}

// NewNominatim creates a client scoped to fence.
func NewNominatim(baseURL string, fence Geofence, opts ...NominatimOption) *Nominatim {
	n := &Nominatim{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  "land-assessment-system/1.0",
		fence:      fence,
		limit:      8,
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		retries:    1,
		retryDelay: 500 * time.Millisecond,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Search runs a forward lookup bounded to the geofence.
func (n *Nominatim) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	params := url.Values{
		"format":         {"json"},
		"q":              {query},
		"countrycodes":   {n.fence.CountryCode},
		"bounded":        {"1"},
		"viewbox":        {n.fence.Bounds.Viewbox()},
		"limit":          {strconv.Itoa(n.limit)},
		"addressdetails": {"1"},
	}

	var places []nominatimPlace
	if err := n.get(ctx, "/search", params, &places); err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(places))
	for _, p := range places {
		r, err := p.toResult()
		if err != nil {
			n.logger.Debug("Skipping unparsable search result", zap.String("display_name", p.DisplayName), zap.Error(err))
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

// Reverse resolves a point into an address. Identical concurrent lookups share one request.
// The shared request is detached from the callers' contexts and bounded by the client
// timeout. Each caller returns as soon as its own ctx is done.
func (n *Nominatim) Reverse(ctx context.Context, lat, lng float64) (models.SearchResult, error) {
	key := fmt.Sprintf("%.6f,%.6f", lat, lng)
	shared := context.WithoutCancel(ctx)
	ch := n.group.DoChan(key, func() (interface{}, error) {
		params := url.Values{
			"format":         {"json"},
			"lat":            {strconv.FormatFloat(lat, 'f', -1, 64)},
			"lon":            {strconv.FormatFloat(lng, 'f', -1, 64)},
			"countrycodes":   {n.fence.CountryCode},
			"addressdetails": {"1"},
		}

		var place nominatimPlace
		if err := n.get(shared, "/reverse", params, &place); err != nil {
			return models.SearchResult{}, err
		}
		if place.Error != "" {
			return models.SearchResult{}, fmt.Errorf("%w: %s", ErrNoResult, place.Error)
		}
		return place.toResult()
	})

	select {
	case <-ctx.Done():
		return models.SearchResult{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.SearchResult{}, res.Err
		}
		return res.Val.(models.SearchResult), nil
	}
}

func (n *Nominatim) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := n.baseURL + path + "?" + params.Encode()

	operation := func() error {
		if err := n.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create geocoding request: %w", err))
		}
		req.Header.Set("User-Agent", n.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := n.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("failed to call geocoding service: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("geocoding service returned status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("geocoding service returned status %d", resp.StatusCode))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode geocoding response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(n.retryDelay), n.retries),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		n.logger.Warn("Geocoding request failed, retrying", zap.String("path", path), zap.Duration("wait", wait), zap.Error(err))
	}
	return backoff.RetryNotify(operation, policy, notify)
}
