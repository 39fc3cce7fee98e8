// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geolocation_file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agricure/agricure-locate/internal/geobus"
)

const (
	name = "geolocation_file"
)

var ErrNoCoordinates = errors.New("no valid coordinates found in geolocation file")

// GeolocationFileProvider reads a "lat,lon" pair from a file, usually maintained by the farm
// operator for a fixed field station, and emits it whenever it changes. Lines starting with
// "#" are comments. Optionally a third column carries the accuracy in meters.
type GeolocationFileProvider struct {
	name     string
	path     string
	period   time.Duration
	ttl      time.Duration
	locateFn func() (geobus.Coordinate, error)
}

// NewGeolocationFileProvider initializes a GeolocationFileProvider with a file path and default update
// interval and TTL settings.
func NewGeolocationFileProvider(path string) *GeolocationFileProvider {
	provider := &GeolocationFileProvider{
		name:   name,
		path:   path,
		period: time.Minute * 2,
		ttl:    time.Hour * 1,
	}
	provider.locateFn = provider.readFile
	return provider
}

// Name returns the name of the GeolocationFileProvider instance.
func (p *GeolocationFileProvider) Name() string {
	return p.name
}

// LookupStream continuously streams geolocation results from a file, emitting updates when data changes
// or context ends.
func (p *GeolocationFileProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	out := make(chan geobus.Result)
	go func() {
		defer close(out)
		state := geobus.GeolocationState{}
		var lastEmit time.Time
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

			coord, err := p.locateFn()
			if err != nil || !coord.Valid() {
				continue
			}

			// Emit on change and once per half TTL so the bus keeps the result alive
			if state.HasChanged(coord) || time.Since(lastEmit) > p.ttl/2 {
				state.Update(coord)
				lastEmit = time.Now()
				r := p.createResult(key, coord)

				select {
				case <-ctx.Done():
					return
				case out <- r:
				}
			}
		}
	}()
	return out
}

// createResult composes and returns a Result using provided geolocation data and metadata.
func (p *GeolocationFileProvider) createResult(key string, coord geobus.Coordinate) geobus.Result {
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

// readFile reads the first valid coordinate from the file at the configured path. Entries
// without an accuracy column default to AccuracyZip.
func (p *GeolocationFileProvider) readFile() (geobus.Coordinate, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return geobus.Coordinate{}, fmt.Errorf("failed to read geolocation file %q: %w", p.path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if coord, ok := parseLine(line); ok {
			return coord, nil
		}
	}
	return geobus.Coordinate{}, ErrNoCoordinates
}

func parseLine(line string) (geobus.Coordinate, bool) {
	fields := strings.Split(line, ",")
	if len(fields) < 2 || len(fields) > 3 {
		return geobus.Coordinate{}, false
	}
	coord := geobus.Coordinate{Acc: geobus.AccuracyZip}
	var err error
	if coord.Lat, err = strconv.ParseFloat(strings.TrimSpace(fields[0]), 64); err != nil {
		return geobus.Coordinate{}, false
	}
	if coord.Lon, err = strconv.ParseFloat(strings.TrimSpace(fields[1]), 64); err != nil {
		return geobus.Coordinate{}, false
	}
	if len(fields) == 3 {
		acc, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil || acc <= 0 {
			return geobus.Coordinate{}, false
		}
		coord.Acc = acc
	}
	return coord, coord.Valid()
}
