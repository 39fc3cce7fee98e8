// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package static

import (
	"errors"
	"testing"

	"github.com/agricure/agricure-locate/internal/acquisition"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		acc      float64
		wantErr  bool
	}{
		{"valid coordinates", 52.0412, 7.4021, 10, false},
		{"latitude out of range", 91, 7.4021, 10, true},
		{"longitude out of range", 52.0412, -181, 10, true},
		{"negative accuracy", 52.0412, 7.4021, -1, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.lat, tc.lon, tc.acc)
			if tc.wantErr != errors.Is(err, ErrInvalidCoordinates) {
				t.Errorf("expected error %t, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestCapability_QueryCurrentPosition(t *testing.T) {
	capability, err := New(52.0412, 7.4021, 10)
	if err != nil {
		t.Fatalf("failed to create static capability: %s", err)
	}
	if !capability.Available() {
		t.Fatal("expected static capability to be available")
	}

	got := make(chan acquisition.Coordinates, 1)
	capability.QueryCurrentPosition(t.Context(), func(c acquisition.Coordinates) { got <- c },
		func(info acquisition.ErrorInfo) { t.Errorf("unexpected failure: %s", info) })
	coords := <-got
	if coords.Latitude != 52.0412 || coords.Longitude != 7.4021 || coords.Accuracy != 10 {
		t.Errorf("unexpected coordinates: %+v", coords)
	}
	if coords.Source != name {
		t.Errorf("expected source to be %s, got %s", name, coords.Source)
	}
}
