// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geoapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/agricure/agricure-locate/internal/geobus"
	"github.com/agricure/agricure-locate/internal/http"
)

const (
	apiEndpoint   = "https://geoapi.info/api/geo"
	lookupTimeout = time.Second * 5
	name          = "geoapi"
)

var ErrHTTPClientRequired = errors.New("http client is required")

// GeolocationGeoAPIProvider resolves the public IP address of the host to a coarse location via
// geoapi.info. The accuracy reflects the most specific administrative level the API returned.
type GeolocationGeoAPIProvider struct {
	name     string
	http     *http.Client
	period   time.Duration
	ttl      time.Duration
	locateFn func(ctx context.Context) (geobus.Coordinate, error)
}

type APIResult struct {
	IP       string      `json:"ip"`
	Location APILocation `json:"location"`
}

type APILocation struct {
	CountryCode string `json:"country,omitempty"`
	Country     string `json:"countryName,omitempty"`
	Region      string `json:"region,omitempty"`
	City        string `json:"city,omitempty"`
	ZipCode     string `json:"postalCode,omitempty"`
	TimeZone    string `json:"timezone"`
	Coordinates struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"coordinates"`
}

// NewGeolocationGeoAPIProvider returns a provider using the given HTTP client.
func NewGeolocationGeoAPIProvider(http *http.Client) (*GeolocationGeoAPIProvider, error) {
	if http == nil {
		return nil, ErrHTTPClientRequired
	}
	provider := &GeolocationGeoAPIProvider{
		name:   name,
		http:   http,
		period: time.Minute * 10,
		ttl:    time.Hour * 2,
	}
	provider.locateFn = provider.locate
	return provider, nil
}

func (p *GeolocationGeoAPIProvider) Name() string {
	return p.name
}

// LookupStream looks up the location right away and then once per period. A result is emitted when
// the location changed or the previous result is about to expire.
func (p *GeolocationGeoAPIProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	out := make(chan geobus.Result)
	go func() {
		defer close(out)
		ticker := time.NewTicker(p.period)
		defer ticker.Stop()

		var state geobus.GeolocationState
		var lastEmit time.Time
		for {
			coord, err := p.locateFn(ctx)
			if err == nil && (state.HasChanged(coord) || time.Since(lastEmit) >= p.ttl-p.period) {
				state.Update(coord)
				lastEmit = time.Now()
				select {
				case <-ctx.Done():
					return
				case out <- geobus.Result{
					Key:            key,
					Lat:            coord.Lat,
					Lon:            coord.Lon,
					AccuracyMeters: coord.Acc,
					Source:         p.name,
					At:             lastEmit,
					TTL:            p.ttl,
				}:
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}

func (p *GeolocationGeoAPIProvider) locate(ctx context.Context) (geobus.Coordinate, error) {
	result := new(APIResult)
	if _, err := p.http.GetWithTimeout(ctx, apiEndpoint, result, nil, nil, lookupTimeout); err != nil {
		return geobus.Coordinate{}, fmt.Errorf("failed to get geolocation data from API: %w", err)
	}

	lat, err := strconv.ParseFloat(result.Location.Coordinates.Latitude, 64)
	if err != nil {
		return geobus.Coordinate{}, fmt.Errorf("failed to parse latitude from API response: %w", err)
	}
	lon, err := strconv.ParseFloat(result.Location.Coordinates.Longitude, 64)
	if err != nil {
		return geobus.Coordinate{}, fmt.Errorf("failed to parse longitude from API response: %w", err)
	}

	return geobus.Coordinate{
		Lat: geobus.Truncate(lat, geobus.TruncPrecision),
		Lon: geobus.Truncate(lon, geobus.TruncPrecision),
		Acc: result.Location.accuracy(),
	}, nil
}

// accuracy estimates the accuracy in meters from the most specific field the API filled in.
func (l APILocation) accuracy() float64 {
	switch {
	case l.ZipCode != "":
		return geobus.AccuracyZip
	case l.City != "":
		return geobus.AccuracyCity
	case l.Region != "":
		return geobus.AccuracyRegion
	case l.CountryCode != "":
		return geobus.AccuracyCountry
	default:
		return geobus.AccuracyUnknown
	}
}
