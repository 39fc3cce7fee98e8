// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package opencage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/text/language"

	"github.com/agricure/agricure-locate/internal/geobus"
	"github.com/agricure/agricure-locate/internal/geocode"
	"github.com/agricure/agricure-locate/internal/http"
)

const (
	APIEndpoint = "https://api.opencagedata.com/geocode/v1/json"
	APITimeout  = time.Second * 10
	name        = "opencage"
)

// OpenCage implements geocode.Geocoder using the OpenCage API. It requires an API key.
type OpenCage struct {
	apikey string
	http   *http.Client
	lang   language.Tag
}

type Response struct {
	Results      []Result `json:"results"`
	Status       Status   `json:"status"`
	TotalResults int      `json:"total_results"`
}

type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Result struct {
	Components  Components `json:"components"`
	Confidence  int        `json:"confidence"`
	DisplayName string     `json:"formatted"`
	Geometry    Geometry   `json:"geometry"`
}

type Components struct {
	NomalizedCity  string `json:"_normalized_city"`
	City           string `json:"city"`
	CityDistrict   string `json:"city_district"`
	Continent      string `json:"continent"`
	County         string `json:"county"`
	Country        string `json:"country"`
	CountryCode    string `json:"country_code"`
	HouseNumber    string `json:"house_number"`
	PoliticalUnion string `json:"political_union"`
	Municipality   string `json:"municipality"`
	Postcode       string `json:"postcode"`
	Road           string `json:"road"`
	State          string `json:"state"`
	StateCode      string `json:"state_code"`
	Suburb         string `json:"suburb"`
	Town           string `json:"town"`
	Village        string `json:"village"`
	Hamlet         string `json:"hamlet"`
}

type Geometry struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lng"`
}

func New(client *http.Client, lang language.Tag, apikey string) *OpenCage {
	return &OpenCage{
		apikey: apikey,
		lang:   lang,
		http:   client,
	}
}

func (o *OpenCage) Name() string {
	return name
}

// Reverse looks up the address of coords.
func (o *OpenCage) Reverse(ctx context.Context, coords geobus.Coordinate) (geocode.Address, error) {
	response, err := o.query(ctx, fmt.Sprintf("%f,%f", coords.Lat, coords.Lon))
	if err != nil {
		return geocode.Address{}, err
	}
	if response.TotalResults < 1 {
		return geocode.Address{Latitude: coords.Lat, Longitude: coords.Lon}, nil
	}

	result := response.Results[0]
	comp := result.Components
	address := geocode.Address{
		AddressFound: true,
		Latitude:     result.Geometry.Lat,
		Longitude:    result.Geometry.Lon,
		DisplayName:  result.DisplayName,
		Country:      comp.Country,
		State:        comp.State,
		Municipality: comp.Municipality,
		CityDistrict: comp.CityDistrict,
		Postcode:     comp.Postcode,
		City:         comp.NomalizedCity,
		Suburb:       comp.Suburb,
		Street:       comp.Road,
		HouseNumber:  comp.HouseNumber,
	}
	for _, settlement := range []string{comp.City, comp.Town, comp.Village, comp.Hamlet} {
		if address.City != "" {
			break
		}
		address.City = settlement
	}
	if address.Municipality == "" {
		address.Municipality = comp.County
	}

	return address, nil
}

// Search resolves a free-form place name to the coordinates of the most confident match.
func (o *OpenCage) Search(ctx context.Context, query string) (geocode.Place, error) {
	response, err := o.query(ctx, query)
	if err != nil {
		return geocode.Place{}, err
	}
	if response.TotalResults < 1 {
		return geocode.Place{}, fmt.Errorf("%w: %q", geocode.ErrNotFound, query)
	}

	best := response.Results[0]
	for _, result := range response.Results[1:] {
		if result.Confidence > best.Confidence {
			best = result
		}
	}
	return geocode.Place{
		Coordinate: geobus.Coordinate{Lat: best.Geometry.Lat, Lon: best.Geometry.Lon, Acc: confidenceAccuracy(best.Confidence)},
		Name:       best.DisplayName,
	}, nil
}

func (o *OpenCage) query(ctx context.Context, q string) (Response, error) {
	var response Response

	query := url.Values{}
	query.Set("key", o.apikey)
	query.Set("q", q)
	query.Set("no_annotations", "1")
	query.Set("no_record", "1")
	query.Set("language", o.lang.String())

	if _, err := o.http.GetWithTimeout(ctx, APIEndpoint, &response, query, nil, APITimeout); err != nil {
		return response, fmt.Errorf("failed to retrieve address details from OpenCage API: %w", err)
	}
	if response.Status.Code != 0 && response.Status.Code != 200 {
		return response, fmt.Errorf("OpenCage API returned status %d: %s", response.Status.Code,
			response.Status.Message)
	}
	return response, nil
}

// confidenceAccuracy maps the OpenCage confidence (1 to 10) onto a bounding box size in meters.
// See https://opencagedata.com/api#confidence
func confidenceAccuracy(confidence int) float64 {
	switch {
	case confidence >= 10:
		return 250
	case confidence >= 8:
		return 1000
	case confidence >= 6:
		return 5000
	case confidence >= 3:
		return geobus.AccuracyCity
	default:
		return geobus.AccuracyRegion
	}
}
