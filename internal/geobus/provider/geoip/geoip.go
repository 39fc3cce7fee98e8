// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geoip

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agricure/agricure-locate/internal/geobus"
	"github.com/agricure/agricure-locate/internal/http"
)

const (
	apiEndpoint   = "https://reallyfreegeoip.org/json/"
	lookupTimeout = time.Second * 5
	name          = "geoip"
)

var ErrHTTPClientRequired = errors.New("http client is required")

// GeolocationGeoIPProvider resolves the public IP address of the host via reallyfreegeoip.org.
type GeolocationGeoIPProvider struct {
	name     string
	http     *http.Client
	period   time.Duration
	ttl      time.Duration
	locateFn func(ctx context.Context) (geobus.Coordinate, error)
}

type APIResult struct {
	IP          string  `json:"ip"`
	CountryCode string  `json:"country_code"`
	Country     string  `json:"country_name"`
	RegionCode  string  `json:"region_code,omitempty"`
	Region      string  `json:"region_name,omitempty"`
	City        string  `json:"city,omitempty"`
	ZipCode     string  `json:"zip_code,omitempty"`
	TimeZone    string  `json:"time_zone"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	MetroCode   int     `json:"metro_code"`
}

// NewGeolocationGeoIPProvider returns a provider using the given HTTP client.
func NewGeolocationGeoIPProvider(http *http.Client) (*GeolocationGeoIPProvider, error) {
	if http == nil {
		return nil, ErrHTTPClientRequired
	}
	provider := &GeolocationGeoIPProvider{
		name:   name,
		http:   http,
		period: time.Minute * 30,
		ttl:    time.Hour,
	}
	provider.locateFn = provider.locate
	return provider, nil
}

func (p *GeolocationGeoIPProvider) Name() string {
	return p.name
}

// LookupStream queries the API once per period and emits a result whenever the location changed
// or the previous result is about to expire.
func (p *GeolocationGeoIPProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
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

			coord, err := p.locateFn(ctx)
			if err != nil {
				continue
			}
			if !state.HasChanged(coord) && time.Since(lastEmit) < p.ttl-p.period {
				continue
			}
			state.Update(coord)
			lastEmit = time.Now()

			select {
			case <-ctx.Done():
				return
			case out <- p.createResult(key, coord):
			}
		}
	}()
	return out
}

func (p *GeolocationGeoIPProvider) createResult(key string, coord geobus.Coordinate) geobus.Result {
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

func (p *GeolocationGeoIPProvider) locate(ctx context.Context) (geobus.Coordinate, error) {
	result := new(APIResult)
	if _, err := p.http.GetWithTimeout(ctx, apiEndpoint, result, nil, nil, lookupTimeout); err != nil {
		return geobus.Coordinate{}, fmt.Errorf("failed to get geolocation data from API: %w", err)
	}

	acc := float64(geobus.AccuracyUnknown)
	switch {
	case result.ZipCode != "":
		acc = geobus.AccuracyZip
	case result.City != "":
		acc = geobus.AccuracyCity
	case result.RegionCode != "":
		acc = geobus.AccuracyRegion
	case result.CountryCode != "":
		acc = geobus.AccuracyCountry
	}

	return geobus.Coordinate{
		Lat: geobus.Truncate(result.Latitude, geobus.TruncPrecision),
		Lon: geobus.Truncate(result.Longitude, geobus.TruncPrecision),
		Acc: acc,
	}, nil
}
