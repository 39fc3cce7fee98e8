// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geocode

import (
	"context"
	"errors"

	"github.com/agricure/agricure-locate/internal/geobus"
)

var ErrNotFound = errors.New("no location found for the given query")

// Address is the postal address of a resolved position.
type Address struct {
	AddressFound bool    `json:"found"`
	CacheHit     bool    `json:"-"`
	Latitude     float64 `json:"lat"`
	Longitude    float64 `json:"lng"`
	DisplayName  string  `json:"display_name,omitempty"`
	Country      string  `json:"country,omitempty"`
	State        string  `json:"state,omitempty"`
	Municipality string  `json:"municipality,omitempty"`
	CityDistrict string  `json:"city_district,omitempty"`
	Postcode     string  `json:"postcode,omitempty"`
	City         string  `json:"city,omitempty"`
	Suburb       string  `json:"suburb,omitempty"`
	Street       string  `json:"street,omitempty"`
	HouseNumber  string  `json:"house_number,omitempty"`
}

// Place is the result of a forward lookup of a place name.
type Place struct {
	geobus.Coordinate
	Name     string
	CacheHit bool
}

// Geocoder translates between coordinates and addresses.
type Geocoder interface {
	Name() string
	Reverse(ctx context.Context, coords geobus.Coordinate) (Address, error)
	// Search resolves a free-form place name. It returns ErrNotFound if the provider knows no
	// matching place.
	Search(ctx context.Context, query string) (Place, error)
}
