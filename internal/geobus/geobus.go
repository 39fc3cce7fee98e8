// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/agricure/agricure-locate/internal/logger"
)

const (
	accuracyEpsilon = 1e-6
	initialBackoff  = time.Second
	maxBackoff      = 30 * time.Second
)

const (
	AccuracyCountry = 300000
	AccuracyRegion  = 100000
	AccuracyCity    = 15000
	AccuracyZip     = 3000
	AccuracyUnknown = 1000000
	TruncPrecision  = 4
)

// Provider defines an interface for geolocation service providers.
// It supports retrieving streamed results for a given key.
type Provider interface {
	Name() string
	LookupStream(ctx context.Context, key string) <-chan Result
}

// GeoBus keeps the best known geolocation result per key and fans it out to subscribers.
type GeoBus struct {
	mu          sync.RWMutex
	logger      *logger.Logger
	best        map[string]Result
	subscribers map[string]map[chan Result]struct{}
}

// Result represents a geolocation result with associated metadata.
type Result struct {
	Key            string
	Lat, Lon       float64
	Alt            float64
	AccuracyMeters float64
	Source         string
	At             time.Time
	TTL            time.Duration
}

// BetterThan reports whether r should replace prev: it must not be older and must be noticeably
// more accurate.
func (r Result) BetterThan(prev Result) bool {
	if prev.Key == "" {
		return true
	}
	if r.At.Before(prev.At) {
		return false
	}
	return r.AccuracyMeters < prev.AccuracyMeters-accuracyEpsilon
}

// IsExpired checks if the Result has exceeded its time-to-live (TTL) based on the current time and the timestamp.
func (r Result) IsExpired() bool {
	return r.TTL > 0 && time.Since(r.At) > r.TTL
}

// Coordinate returns the position part of the result.
func (r Result) Coordinate() Coordinate {
	return Coordinate{Lat: r.Lat, Lon: r.Lon, Acc: r.AccuracyMeters}
}

// New initializes and returns a new instance of GeoBus to handle geolocation result coordination.
func New(logger *logger.Logger) *GeoBus {
	return &GeoBus{
		logger:      logger,
		best:        make(map[string]Result),
		subscribers: make(map[string]map[chan Result]struct{}),
	}
}

// NewOrchestrator returns an Orchestrator publishing the results of the given providers to the bus.
func (b *GeoBus) NewOrchestrator(provider []Provider) *Orchestrator {
	return &Orchestrator{
		Bus:       b,
		Providers: provider,
	}
}

// Subscribe adds a subscriber for updates associated with the given key and buffer size, returning a result
// channel and an unsubscribe function. A fresh best result is delivered right away.
func (b *GeoBus) Subscribe(key string, size int) (<-chan Result, func()) {
	if size < 1 {
		size = 1
	}
	resultChan := make(chan Result, size)
	b.mu.Lock()
	if _, ok := b.subscribers[key]; !ok {
		b.subscribers[key] = make(map[chan Result]struct{})
	}

	b.subscribers[key][resultChan] = struct{}{}
	if best, ok := b.best[key]; ok && !best.IsExpired() {
		resultChan <- best
	}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			if subs, ok := b.subscribers[key]; ok {
				delete(subs, resultChan)
				if len(subs) == 0 {
					delete(b.subscribers, key)
				}
			}
			b.mu.Unlock()
			close(resultChan)
		})
	}

	return resultChan, unsub
}

// Publish offers a result to the bus. It replaces the best result for its key if there is none, the
// previous one expired, or it is better and moved significantly.
func (b *GeoBus) Publish(r Result) {
	if r.AccuracyMeters == 0 || !r.Coordinate().Valid() {
		return
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	prev, have := b.best[r.Key]
	if !have || prev.IsExpired() || r.BetterThan(prev) && r.Coordinate().PosHasSignificantChange(prev.Coordinate()) {
		b.best[r.Key] = r
		b.broadcastResult(r)
		if b.logger != nil {
			b.logger.Debug("geobus best result updated", slog.String("key", r.Key),
				slog.String("source", r.Source), slog.Float64("accuracy", r.AccuracyMeters))
		}
		return
	}

	// Refresh the TTL if the same source confirms the result
	if prev.Source == r.Source {
		prev.At = r.At
		b.best[r.Key] = prev
	}
}

func (b *GeoBus) broadcastResult(r Result) {
	for ch := range b.subscribers[r.Key] {
		select {
		case ch <- r:
		default:
		}
	}
}

// Best returns the best unexpired result for key.
func (b *GeoBus) Best(key string) (Result, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.best[key]
	return r, ok && !r.IsExpired()
}

// Await returns the best unexpired result for key, waiting for the first one to be published if
// necessary.
func (b *GeoBus) Await(ctx context.Context, key string) (Result, error) {
	sub, unsub := b.Subscribe(key, 1)
	defer unsub()
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-sub:
		return r, nil
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d *= 2; d > maxBackoff {
		return maxBackoff
	}
	return d
}

// Truncate cuts x to the given number of decimal places.
func Truncate(x float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Trunc(x*p) / p
}
