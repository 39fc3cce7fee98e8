// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package opencage

import (
	"errors"
	"io"
	stdhttp "net/http"
	"strings"
	"testing"

	"golang.org/x/text/language"

	"github.com/agricure/agricure-locate/internal/geobus"
	"github.com/agricure/agricure-locate/internal/geocode"
	"github.com/agricure/agricure-locate/internal/http"
	"github.com/agricure/agricure-locate/internal/logger"
	"github.com/agricure/agricure-locate/internal/testhelper"
)

const (
	testAPIKey   = "test-key"
	farmResponse = `{"status":{"code":200,"message":"OK"},"total_results":1,"results":[{"confidence":9,` +
		`"formatted":"Hof Schulze, Westerode, 48268 Greven, Germany","geometry":{"lat":52.0412,"lng":7.4021},` +
		`"components":{"road":"Westerode","hamlet":"Westerode","county":"Kreis Steinfurt","state":"Nordrhein-Westfalen",` +
		`"postcode":"48268","country":"Germany"}}]}`
	searchResponse = `{"status":{"code":200,"message":"OK"},"total_results":2,"results":[` +
		`{"confidence":4,"formatted":"Greven, Germany","geometry":{"lat":52.09,"lng":7.61},"components":{}},` +
		`{"confidence":9,"formatted":"Westerode, Greven","geometry":{"lat":52.0412,"lng":7.4021},"components":{}}]}`
)

var farmCoords = geobus.Coordinate{Lat: 52.0412, Lon: 7.4021}

func TestNew(t *testing.T) {
	coder := testCoderWithRoundtripFunc(nil)
	if coder.Name() != name {
		t.Errorf("expected provider name to be %q, got %q", name, coder.Name())
	}
}

func TestOpenCage_Reverse(t *testing.T) {
	t.Run("reverse geocoding succeeds", func(t *testing.T) {
		var query string
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			query = req.URL.RawQuery
			return testhelper.JSONResponder(200, farmResponse)(req)
		}
		addr, err := testCoderWithRoundtripFunc(rtFn).Reverse(t.Context(), farmCoords)
		if err != nil {
			t.Fatal(err)
		}
		if !addr.AddressFound {
			t.Fatal("expected address to be found")
		}
		if addr.City != "Westerode" {
			t.Errorf("expected hamlet to be used as city, got %q", addr.City)
		}
		if addr.Municipality != "Kreis Steinfurt" {
			t.Errorf("expected county to be used as municipality, got %q", addr.Municipality)
		}
		if !strings.Contains(query, "key="+testAPIKey) {
			t.Errorf("expected API key in query, got %s", query)
		}
	})
	t.Run("no results yields an unknown address", func(t *testing.T) {
		body := `{"status":{"code":200,"message":"OK"},"total_results":0,"results":[]}`
		addr, err := testCoderWithRoundtripFunc(testhelper.JSONResponder(200, body)).Reverse(t.Context(), farmCoords)
		if err != nil {
			t.Fatal(err)
		}
		if addr.AddressFound {
			t.Error("expected address to not be found")
		}
	})
	t.Run("API error status fails", func(t *testing.T) {
		body := `{"status":{"code":401,"message":"invalid API key"},"total_results":0,"results":[]}`
		_, err := testCoderWithRoundtripFunc(testhelper.JSONResponder(401, body)).Reverse(t.Context(), farmCoords)
		if err == nil || !strings.Contains(err.Error(), "invalid API key") {
			t.Errorf("expected API key error, got %v", err)
		}
	})
	t.Run("reverse geocoding fails", func(t *testing.T) {
		rtFn := func(*stdhttp.Request) (*stdhttp.Response, error) {
			return nil, errors.New("intentionally failing")
		}
		if _, err := testCoderWithRoundtripFunc(rtFn).Reverse(t.Context(), farmCoords); err == nil {
			t.Fatal("expected API request to fail")
		}
	})
}

func TestOpenCage_Search(t *testing.T) {
	t.Run("search prefers the most confident result", func(t *testing.T) {
		place, err := testCoderWithRoundtripFunc(testhelper.JSONResponder(200, searchResponse)).
			Search(t.Context(), "Westerode")
		if err != nil {
			t.Fatal(err)
		}
		if place.Name != "Westerode, Greven" {
			t.Errorf("expected most confident match, got %q", place.Name)
		}
		if place.Acc != 1000 {
			t.Errorf("expected accuracy of 1000m, got %f", place.Acc)
		}
	})
	t.Run("search without results returns ErrNotFound", func(t *testing.T) {
		body := `{"status":{"code":200,"message":"OK"},"total_results":0,"results":[]}`
		_, err := testCoderWithRoundtripFunc(testhelper.JSONResponder(200, body)).Search(t.Context(), "nowhere")
		if !errors.Is(err, geocode.ErrNotFound) {
			t.Errorf("expected error to be %s, got %v", geocode.ErrNotFound, err)
		}
	})
}

func TestConfidenceAccuracy(t *testing.T) {
	tests := []struct {
		confidence int
		want       float64
	}{
		{10, 250}, {8, 1000}, {6, 5000}, {3, geobus.AccuracyCity}, {0, geobus.AccuracyRegion},
	}
	for _, tc := range tests {
		if got := confidenceAccuracy(tc.confidence); got != tc.want {
			t.Errorf("confidence %d: expected %f, got %f", tc.confidence, tc.want, got)
		}
	}
}

func testCoderWithRoundtripFunc(fn func(req *stdhttp.Request) (*stdhttp.Response, error)) geocode.Geocoder {
	client := http.New(logger.NewLogger(0, io.Discard))
	client.Transport = testhelper.MockRoundTripper{Fn: fn}
	return New(client, language.English, testAPIKey)
}
