// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

// GeolocationState remembers the last coordinate a provider emitted so it only publishes changes.
type GeolocationState struct {
	last     Coordinate
	haveLast bool
}

// HasChanged reports whether coord differs from the last stored coordinate. Accuracy changes alone
// do not count as a change.
func (s *GeolocationState) HasChanged(coord Coordinate) bool {
	if !s.haveLast {
		return true
	}
	return s.last.Lat != coord.Lat || s.last.Lon != coord.Lon
}

// Update stores coord as the last emitted coordinate.
func (s *GeolocationState) Update(coord Coordinate) {
	s.last = coord
	s.haveLast = true
}
