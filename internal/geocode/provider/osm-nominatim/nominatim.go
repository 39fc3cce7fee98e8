// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package nominatim

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/text/language"

	"github.com/agricure/agricure-locate/internal/geobus"
	"github.com/agricure/agricure-locate/internal/geocode"
	"github.com/agricure/agricure-locate/internal/http"
)

const (
	APISearchEndpoint  = "https://nominatim.openstreetmap.org/search"
	APIReverseEndpoint = "https://nominatim.openstreetmap.org/reverse"
	APITimeout         = time.Second * 10
	name               = "osm-nominatim"
)

// Nominatim implements geocode.Geocoder using the OpenStreetMap Nominatim API.
type Nominatim struct {
	http *http.Client
	lang language.Tag
}

type ReverseResult struct {
	Error       string  `json:"error"`
	APILat      string  `json:"lat"`
	APILon      string  `json:"lon"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
}

type SearchResult struct {
	APILat      string `json:"lat"`
	APILon      string `json:"lon"`
	DisplayName string `json:"display_name"`
}

type Address struct {
	HouseNumber  string `json:"house_number"`
	Road         string `json:"road"`
	Farm         string `json:"farm"`
	Hamlet       string `json:"hamlet"`
	Suburb       string `json:"suburb"`
	Municipality string `json:"municipality"`
	CityDistrict string `json:"city_district"`
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	County       string `json:"county"`
	State        string `json:"state"`
	ISO31662Lvl4 string `json:"ISO3166-2-lvl4"`
	Postcode     string `json:"postcode"`
	Country      string `json:"country"`
}

func New(client *http.Client, lang language.Tag) *Nominatim {
	return &Nominatim{
		lang: lang,
		http: client,
	}
}

func (n *Nominatim) Name() string {
	return name
}

// Reverse looks up the address of coords. Rural positions often have no city, so the closest
// settlement (town, village or hamlet) is used instead. Positions Nominatim cannot geocode at
// all, like open water, yield an address with AddressFound set to false.
func (n *Nominatim) Reverse(ctx context.Context, coords geobus.Coordinate) (geocode.Address, error) {
	var result ReverseResult
	var err error

	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("lat", strconv.FormatFloat(coords.Lat, 'f', 6, 64))
	query.Set("lon", strconv.FormatFloat(coords.Lon, 'f', 6, 64))
	query.Set("accept-language", n.lang.String())

	if _, err = n.http.GetWithTimeout(ctx, APIReverseEndpoint, &result, query, nil, APITimeout); err != nil {
		return geocode.Address{}, fmt.Errorf("failed to fetch reverse address details from Nominatim API: %w", err)
	}
	if result.Error != "" {
		return geocode.Address{Latitude: coords.Lat, Longitude: coords.Lon}, nil
	}

	address := geocode.Address{
		AddressFound: true,
		DisplayName:  result.DisplayName,
		Country:      result.Address.Country,
		State:        result.Address.State,
		Municipality: result.Address.Municipality,
		CityDistrict: result.Address.CityDistrict,
		Postcode:     result.Address.Postcode,
		City:         firstNonEmpty(result.Address.City, result.Address.Town, result.Address.Village, result.Address.Hamlet),
		Suburb:       result.Address.Suburb,
		Street:       firstNonEmpty(result.Address.Road, result.Address.Farm),
		HouseNumber:  result.Address.HouseNumber,
	}
	if address.Municipality == "" {
		address.Municipality = result.Address.County
	}
	address.Latitude, err = strconv.ParseFloat(result.APILat, 64)
	if err != nil {
		return geocode.Address{}, fmt.Errorf("failed to parse latitude from Nominatim API response: %w", err)
	}
	address.Longitude, err = strconv.ParseFloat(result.APILon, 64)
	if err != nil {
		return geocode.Address{}, fmt.Errorf("failed to parse longitude from Nominatim API response: %w", err)
	}

	return address, nil
}

// Search resolves a free-form place name to the coordinates of the best match.
func (n *Nominatim) Search(ctx context.Context, address string) (geocode.Place, error) {
	var result []SearchResult
	var err error

	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("limit", "1")
	query.Set("q", address)
	query.Set("accept-language", n.lang.String())

	if _, err = n.http.GetWithTimeout(ctx, APISearchEndpoint, &result, query, nil, APITimeout); err != nil {
		return geocode.Place{}, fmt.Errorf("failed to fetch address details from Nominatim API: %w", err)
	}
	if len(result) < 1 {
		return geocode.Place{}, fmt.Errorf("%w: %q", geocode.ErrNotFound, address)
	}

	place := geocode.Place{Name: result[0].DisplayName}
	place.Lat, err = strconv.ParseFloat(result[0].APILat, 64)
	if err != nil {
		return geocode.Place{}, fmt.Errorf("failed to parse latitude from Nominatim API response: %w", err)
	}
	place.Lon, err = strconv.ParseFloat(result[0].APILon, 64)
	if err != nil {
		return geocode.Place{}, fmt.Errorf("failed to parse longitude from Nominatim API response: %w", err)
	}
	place.Acc = geobus.AccuracyCity

	return place, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
