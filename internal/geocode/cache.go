// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geocode

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/agricure/agricure-locate/internal/geobus"
)

// coordPrecision is the precision used to quantize coordinates (0.01 degrees ≈ 1.1 km)
const coordPrecision = 1e-2

type cacheKey struct {
	Provider string
	LatQ     int32
	LonQ     int32
}

type cacheEntry[T any] struct {
	Value  T
	Expiry time.Time
}

// CachedGeocoder wraps a Geocoder and caches its answers. Reverse lookups are keyed on quantized
// coordinates, so positions within roughly a kilometer share an address. Lookups that found
// nothing are cached for the shorter miss TTL.
type CachedGeocoder struct {
	coder   Geocoder
	ttlHit  time.Duration
	ttlMiss time.Duration

	mu      sync.RWMutex
	reverse map[cacheKey]cacheEntry[Address]
	search  map[string]cacheEntry[Place]
}

func NewCachedGeocoder(coder Geocoder, ttlHit, ttlMiss time.Duration) *CachedGeocoder {
	return &CachedGeocoder{
		coder:   coder,
		ttlHit:  ttlHit,
		ttlMiss: ttlMiss,
		reverse: make(map[cacheKey]cacheEntry[Address]),
		search:  make(map[string]cacheEntry[Place]),
	}
}

func (c *CachedGeocoder) Name() string {
	return "geocoder cache using " + c.coder.Name()
}

func (c *CachedGeocoder) Reverse(ctx context.Context, coords geobus.Coordinate) (Address, error) {
	key := newKey(c.coder.Name(), coords.Lat, coords.Lon)

	c.mu.RLock()
	entry, ok := c.reverse[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.Expiry) {
		addr := entry.Value
		addr.CacheHit = true
		return addr, nil
	}

	addr, err := c.coder.Reverse(ctx, coords)
	if err != nil {
		return addr, err
	}

	ttl := c.ttlHit
	if !addr.AddressFound {
		ttl = c.ttlMiss
	}
	c.mu.Lock()
	c.reverse[key] = cacheEntry[Address]{Value: addr, Expiry: time.Now().Add(ttl)}
	c.mu.Unlock()

	return addr, nil
}

func (c *CachedGeocoder) Search(ctx context.Context, query string) (Place, error) {
	key := c.coder.Name() + "|" + strings.ToLower(strings.TrimSpace(query))

	c.mu.RLock()
	entry, ok := c.search[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.Expiry) {
		if entry.Value.Name == "" {
			return Place{}, ErrNotFound
		}
		place := entry.Value
		place.CacheHit = true
		return place, nil
	}

	place, err := c.coder.Search(ctx, query)
	switch {
	case errors.Is(err, ErrNotFound):
		c.store(key, Place{}, c.ttlMiss)
		return Place{}, err
	case err != nil:
		return Place{}, err
	}
	if place.Name == "" {
		place.Name = query
	}
	c.store(key, place, c.ttlHit)
	return place, nil
}

func (c *CachedGeocoder) store(key string, place Place, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search[key] = cacheEntry[Place]{Value: place, Expiry: time.Now().Add(ttl)}
}

func quantizeCoord(val float64) int32 {
	return int32(math.Round(val / coordPrecision))
}

func newKey(provider string, lat, lon float64) cacheKey {
	return cacheKey{
		Provider: provider,
		LatQ:     quantizeCoord(lat),
		LonQ:     quantizeCoord(lon),
	}
}
