// Package landdetails collects and validates the land size and location of an
// assessment request before payment is allowed.
package landdetails

import (
	"math"
	"strconv"
	"strings"
	"sync"

	"land-assessment-system/geocode"
	"land-assessment-system/models"
)

// Collector holds the land details being entered and the current workflow step.
type Collector struct {
	mu       sync.RWMutex
	size     string
	location geocode.Location
	warning  string
	step     models.WorkflowStep
}

// NewCollector returns an empty collector on the details step.
func NewCollector() *Collector {
	return &Collector{step: models.StepCollectingDetails}
}

// ParseSize returns the size as a number when raw is a finite number greater than zero.
func ParseSize(raw string) (float64, bool) {
	size, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(size) || math.IsInf(size, 0) || size <= 0 {
		return 0, false
	}
	return size, true
}

// SetSize stores the raw size input and refreshes the inline warning.
func (c *Collector) SetSize(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.size = raw
	if _, ok := ParseSize(raw); ok || strings.TrimSpace(raw) == "" {
		c.warning = ""
		return
	}
	c.warning = models.ErrSizeNotPositive.Error()
}

// SetLocation stores a location produced by the resolver.
func (c *Collector) SetLocation(loc geocode.Location) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.location = loc
}

// CanProceed reports whether Proceed would succeed.
func (c *Collector) CanProceed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, err := c.validateLocked()
	return err == nil
}

// Proceed validates the details and moves to the payment step, returning a snapshot of
// the draft. On failure the step is left unchanged and the warning is updated.
func (c *Collector) Proceed() (models.LandDraft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	draft, err := c.validateLocked()
	if err != nil {
		c.warning = err.Error()
		return models.LandDraft{}, err
	}

	c.warning = ""
	c.step = models.StepPaying
	return draft, nil
}

func (c *Collector) validateLocked() (models.LandDraft, error) {
	if strings.TrimSpace(c.size) == "" || c.location.IsZero() {
		return models.LandDraft{}, models.ErrMissingFields
	}
	size, ok := ParseSize(c.size)
	if !ok {
		return models.LandDraft{}, models.ErrSizeNotPositive
	}
	return models.LandDraft{Size: size, Location: c.location.Address()}, nil
}

// Back returns to the details step keeping everything entered so far.
func (c *Collector) Back() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = models.StepCollectingDetails
}

// Reset clears the draft and returns to the details step.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.size = ""
	c.location = geocode.Location{}
	c.warning = ""
	c.step = models.StepCollectingDetails
}

func (c *Collector) Step() models.WorkflowStep {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.step
}

func (c *Collector) Size() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

func (c *Collector) Location() geocode.Location {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.location
}

// Warning is the inline warning to display, empty when there is none.
func (c *Collector) Warning() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.warning
}
