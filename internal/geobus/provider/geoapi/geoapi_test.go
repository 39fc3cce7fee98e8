// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geoapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"testing"
	"testing/synctest"
	"time"

	"github.com/agricure/agricure-locate/internal/geobus"
	"github.com/agricure/agricure-locate/internal/http"
	"github.com/agricure/agricure-locate/internal/logger"
	"github.com/agricure/agricure-locate/internal/testhelper"
)

const (
	testLat = 51.9625
	testLon = 7.6256
)

func apiResponse(country, region, city, zip, lat, lon string) string {
	return fmt.Sprintf(`{"ip":"192.0.2.1","location":{"country":%q,"countryName":"Germany","region":%q,`+
		`"city":%q,"postalCode":%q,"timezone":"Europe/Berlin","coordinates":{"latitude":%q,"longitude":%q}}}`,
		country, region, city, zip, lat, lon)
}

func testClient(fn func(*stdhttp.Request) (*stdhttp.Response, error)) *http.Client {
	client := http.New(logger.NewLogger(0, io.Discard))
	client.Transport = testhelper.MockRoundTripper{Fn: fn}
	return client
}

func TestNewGeolocationGeoAPIProvider(t *testing.T) {
	t.Run("new GeoAPI provider succeeds", func(t *testing.T) {
		provider, err := NewGeolocationGeoAPIProvider(testClient(nil))
		if err != nil {
			t.Fatalf("failed to create GeoAPI provider: %s", err)
		}
		if provider.Name() != name {
			t.Errorf("expected provider name to be %s, got %s", name, provider.Name())
		}
	})
	t.Run("GeoAPI without http client fails", func(t *testing.T) {
		provider, err := NewGeolocationGeoAPIProvider(nil)
		if !errors.Is(err, ErrHTTPClientRequired) {
			t.Fatalf("expected error to be %s, got %v", ErrHTTPClientRequired, err)
		}
		if provider != nil {
			t.Fatal("expected provider to be nil")
		}
	})
}

func TestGeolocationGeoAPIProvider_locate(t *testing.T) {
	t.Run("locate succeeds with different accuracies", func(t *testing.T) {
		tests := []struct {
			name string
			body string
			want float64
		}{
			{"zip", apiResponse("DE", "NRW", "Münster", "48143", "51.96251", "7.62561"), geobus.AccuracyZip},
			{"city", apiResponse("DE", "NRW", "Münster", "", "51.96251", "7.62561"), geobus.AccuracyCity},
			{"region", apiResponse("DE", "NRW", "", "", "51.96251", "7.62561"), geobus.AccuracyRegion},
			{"country", apiResponse("DE", "", "", "", "51.96251", "7.62561"), geobus.AccuracyCountry},
			{"unknown", apiResponse("", "", "", "", "51.96251", "7.62561"), geobus.AccuracyUnknown},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				provider, err := NewGeolocationGeoAPIProvider(testClient(testhelper.JSONResponder(200, tc.body)))
				if err != nil {
					t.Fatalf("failed to create GeoAPI provider: %s", err)
				}
				coord, err := provider.locate(t.Context())
				if err != nil {
					t.Fatalf("failed to locate coordinates via GeoAPI: %s", err)
				}
				if coord.Lat != testLat {
					t.Errorf("expected latitude to be %f, got %f", testLat, coord.Lat)
				}
				if coord.Lon != testLon {
					t.Errorf("expected longitude to be %f, got %f", testLon, coord.Lon)
				}
				if coord.Acc != tc.want {
					t.Errorf("expected accuracy to be %f, got %f", tc.want, coord.Acc)
				}
			})
		}
	})
	t.Run("locate fails on invalid coordinate parsing", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"latitude", apiResponse("DE", "", "", "", "north", "7.6256")},
			{"longitude", apiResponse("DE", "", "", "", "51.9625", "east")},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				provider, err := NewGeolocationGeoAPIProvider(testClient(testhelper.JSONResponder(200, tc.body)))
				if err != nil {
					t.Fatalf("failed to create GeoAPI provider: %s", err)
				}
				if _, err = provider.locate(t.Context()); err == nil {
					t.Error("expected locate to fail")
				}
			})
		}
	})
	t.Run("locate fails on API request", func(t *testing.T) {
		provider, err := NewGeolocationGeoAPIProvider(testClient(func(*stdhttp.Request) (*stdhttp.Response, error) {
			return nil, errors.New("intentionally failing")
		}))
		if err != nil {
			t.Fatalf("failed to create GeoAPI provider: %s", err)
		}
		if _, err = provider.locate(t.Context()); err == nil {
			t.Error("expected locate to fail")
		}
	})
}

func TestGeolocationGeoAPIProvider_LookupStream(t *testing.T) {
	t.Run("lookup stream succeeds", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			body := apiResponse("DE", "NRW", "Münster", "48143", "51.96251", "7.62561")
			provider, err := NewGeolocationGeoAPIProvider(testClient(testhelper.JSONResponder(200, body)))
			if err != nil {
				t.Fatalf("failed to create GeoAPI provider: %s", err)
			}

			result := <-provider.LookupStream(ctx, "test")
			cancel()
			synctest.Wait()

			if result.Key != "test" {
				t.Errorf("expected key to be %s, got %s", "test", result.Key)
			}
			if result.Lat != testLat || result.Lon != testLon {
				t.Errorf("expected coordinates %f,%f, got %f,%f", testLat, testLon, result.Lat, result.Lon)
			}
			if result.AccuracyMeters != geobus.AccuracyZip {
				t.Errorf("expected accuracy to be %d, got %f", geobus.AccuracyZip, result.AccuracyMeters)
			}
			if result.Source != provider.Name() {
				t.Errorf("expected source to be %s, got %s", provider.Name(), result.Source)
			}
			if result.TTL != provider.ttl {
				t.Errorf("expected TTL to be %s, got %s", provider.ttl, result.TTL)
			}
		})
	})
	t.Run("lookup stream fails during lookup", func(t *testing.T) {
		runCount := 0
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			provider, err := NewGeolocationGeoAPIProvider(testClient(nil))
			if err != nil {
				t.Fatalf("failed to create GeoAPI provider: %s", err)
			}
			provider.period = time.Millisecond * 10
			provider.locateFn = func(context.Context) (geobus.Coordinate, error) {
				if runCount == 0 {
					runCount++
					return geobus.Coordinate{}, errors.New("intentionally failing")
				}
				return geobus.Coordinate{Lat: 1.0, Lon: 2.0, Acc: 3.0}, nil
			}

			result := <-provider.LookupStream(ctx, "test")
			cancel()
			synctest.Wait()

			if result.Lat != 1.0 || result.Lon != 2.0 || result.AccuracyMeters != 3.0 {
				t.Errorf("expected 1,2 with accuracy 3, got %+v", result)
			}
		})
	})
}

func TestGeolocationGeoAPIProvider_LookupStream_unchanged(t *testing.T) {
	t.Run("unchanged location is only emitted again before it expires", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			provider, err := NewGeolocationGeoAPIProvider(testClient(nil))
			if err != nil {
				t.Fatalf("failed to create GeoAPI provider: %s", err)
			}
			provider.period = time.Minute
			provider.ttl = time.Minute * 3
			provider.locateFn = func(context.Context) (geobus.Coordinate, error) {
				return geobus.Coordinate{Lat: testLat, Lon: testLon, Acc: geobus.AccuracyCity}, nil
			}

			stream := provider.LookupStream(ctx, "test")
			first := <-stream
			second := <-stream
			if elapsed := second.At.Sub(first.At); elapsed != provider.ttl-provider.period {
				t.Errorf("expected second emission after %s, got %s", provider.ttl-provider.period, elapsed)
			}
			cancel()
			synctest.Wait()
		})
	})
}
