// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package cityname_file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/agricure/agricure-locate/internal/geobus"
	"github.com/agricure/agricure-locate/internal/geocode"
)

const (
	name     = "cityname_file"
	ttlTime  = time.Hour * 12
	pollTime = time.Minute * 5
)

var (
	ErrNoCoordinates    = errors.New("no resolvable place name found in cityname file")
	ErrGeocoderRequired = errors.New("geocoder is required")
	lookupTimeout       = time.Second * 15
)

// CitynameFileProvider reads place names, one per line, from a file and resolves the first one
// the geocoder knows. It serves farms whose operators rather name the closest village than
// maintain coordinates.
type CitynameFileProvider struct {
	name     string
	path     string
	period   time.Duration
	ttl      time.Duration
	coder    geocode.Geocoder
	locateFn func(ctx context.Context) (geobus.Coordinate, error)
}

// NewCitynameFileProvider returns a provider for the file at path resolving names with coder.
func NewCitynameFileProvider(path string, coder geocode.Geocoder) (*CitynameFileProvider, error) {
	if coder == nil {
		return nil, ErrGeocoderRequired
	}
	provider := &CitynameFileProvider{
		coder:  coder,
		name:   name,
		path:   path,
		period: pollTime,
		ttl:    ttlTime,
	}
	provider.locateFn = provider.readFile
	return provider, nil
}

// Name returns the name of the CitynameFileProvider instance.
func (p *CitynameFileProvider) Name() string {
	return p.name
}

// LookupStream resolves the file once per period and emits every successful resolution.
func (p *CitynameFileProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	out := make(chan geobus.Result)
	go func() {
		defer close(out)
		firstRun := true

		for {
			if !firstRun {
				select {
				case <-ctx.Done():
					return
				case <-time.After(p.period):
				}
			}
			firstRun = false

			coords, err := p.locateFn(ctx)
			if err != nil {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- p.createResult(key, coords):
			}
		}
	}()
	return out
}

// createResult composes and returns a Result using provided geolocation data and metadata.
func (p *CitynameFileProvider) createResult(key string, coord geobus.Coordinate) geobus.Result {
	return geobus.Result{
		Key:            key,
		Lat:            coord.Lat,
		Lon:            coord.Lon,
		AccuracyMeters: coord.Acc,
		Source:         p.name,
		At:             time.Now(),
		TTL:            p.ttl,
	}
}

// readFile resolves the first non-comment line of the file the geocoder can find.
func (p *CitynameFileProvider) readFile(ctx context.Context) (geobus.Coordinate, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return geobus.Coordinate{}, fmt.Errorf("failed to read cityname file %q: %w", p.path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		ctxLookup, cancel := context.WithTimeout(ctx, lookupTimeout)
		place, err := p.coder.Search(ctxLookup, line)
		cancel()
		if err != nil {
			continue
		}
		coords := place.Coordinate
		if coords.Acc <= 0 {
			coords.Acc = geobus.AccuracyCity
		}
		return coords, nil
	}
	return geobus.Coordinate{}, ErrNoCoordinates
}
