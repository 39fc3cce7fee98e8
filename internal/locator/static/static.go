// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package static

import (
	"context"
	"errors"

	"github.com/agricure/agricure-locate/internal/acquisition"
)

const name = "static"

var ErrInvalidCoordinates = errors.New("static coordinates are out of range")

// Capability always resolves to a fixed position, typically the farm yard.
type Capability struct {
	coords acquisition.Coordinates
}

// New returns a Capability for the given coordinates and accuracy in meters.
func New(lat, lon, accuracy float64) (*Capability, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 || accuracy < 0 {
		return nil, ErrInvalidCoordinates
	}
	return &Capability{coords: acquisition.Coordinates{
		Latitude:  lat,
		Longitude: lon,
		Accuracy:  accuracy,
		Source:    name,
	}}, nil
}

func (c *Capability) Name() string { return name }

func (c *Capability) Available() bool { return true }

func (c *Capability) QueryCurrentPosition(_ context.Context, onSuccess func(acquisition.Coordinates),
	_ func(acquisition.ErrorInfo),
) {
	go onSuccess(c.coords)
}
