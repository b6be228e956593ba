// Package crops notices products that appear in the marketplace after the watcher started.
package crops

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"land-assessment-system/models"
)

const DefaultInterval = 10 * time.Second

var ErrAlreadyRunning = errors.New("crop watcher already running")

// ProductSource lists the current marketplace products.
type ProductSource interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
}

// Watcher polls a ProductSource on a fixed interval. The first poll records the products
// that already exist; later polls report only products not seen before.
type Watcher struct {
	source   ProductSource
	interval time.Duration
	timeout  time.Duration
	onNew    func([]models.Product)
	logger   *zap.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	seen   map[models.FlexibleID]struct{}
	seeded bool
}

// Option customises a Watcher.
type Option func(*Watcher)

// WithInterval sets the poll interval. Cron schedules have one second resolution.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) { w.interval = d }
}

// WithPollTimeout bounds a single poll.
func WithPollTimeout(d time.Duration) Option {
	return func(w *Watcher) { w.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// NewWatcher creates a stopped watcher. onNew receives every batch of new products.
func NewWatcher(source ProductSource, onNew func([]models.Product), opts ...Option) *Watcher {
	w := &Watcher{
		source:   source,
		interval: DefaultInterval,
		timeout:  5 * time.Second,
		onNew:    onNew,
		logger:   zap.NewNop(),
		seen:     make(map[models.FlexibleID]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start schedules polling. A poll still running when the next one is due is skipped.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cron != nil {
		return ErrAlreadyRunning
	}

	logger := cronLogger{w.logger.Sugar()}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	_, err := c.AddFunc(fmt.Sprintf("@every %s", w.interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		if _, err := w.Poll(ctx); err != nil {
			w.logger.Warn("Crop poll failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule crop poll: %w", err)
	}

	c.Start()
	w.cron = c
	w.logger.Info("Crop watcher started", zap.Duration("interval", w.interval))
	return nil
}

// Stop cancels polling and waits for a running poll to finish. Stopping a stopped
// watcher does nothing.
func (w *Watcher) Stop() {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	w.logger.Info("Crop watcher stopped")
}

// Running reports whether polling is scheduled.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cron != nil
}

// Poll fetches the products once and returns the ones not seen before.
func (w *Watcher) Poll(ctx context.Context) ([]models.Product, error) {
	products, err := w.source.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	var fresh []models.Product
	for _, p := range products {
		if _, ok := w.seen[p.ID]; ok {
			continue
		}
		w.seen[p.ID] = struct{}{}
		if w.seeded {
			fresh = append(fresh, p)
		}
	}
	w.seeded = true
	w.mu.Unlock()

	if len(fresh) > 0 {
		w.logger.Info("New crops listed", zap.Int("count", len(fresh)))
		if w.onNew != nil {
			w.onNew(fresh)
		}
	}
	return fresh, nil
}

// cronLogger routes cron's logging to zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
