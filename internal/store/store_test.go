// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/agricure/agricure-locate/internal/acquisition"
)

var base = time.Date(2025, 5, 3, 8, 0, 0, 0, time.UTC)

func testStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open store: %s", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("failed to close store: %s", err)
		}
	})
	return st
}

func success(request uint64, at time.Time) acquisition.State {
	return acquisition.State{
		Position:  &acquisition.Position{Lat: 51.9625, Lng: 7.6256, Accuracy: 15, Source: "geoclue"},
		Request:   request,
		UpdatedAt: at,
	}
}

func TestStore_Record(t *testing.T) {
	t.Run("successful resolutions are recorded", func(t *testing.T) {
		st := testStore(t)
		res, err := st.Record(t.Context(), "geoclue", success(1, base))
		if err != nil {
			t.Fatalf("failed to record resolution: %s", err)
		}
		if _, err = uuid.Parse(res.ID); err != nil {
			t.Errorf("expected a UUID id, got %q", res.ID)
		}
		if res.Status != string(acquisition.StatusSuccess) || !res.HasPosition {
			t.Errorf("unexpected resolution: %+v", res)
		}
	})
	t.Run("failures keep code and message", func(t *testing.T) {
		st := testStore(t)
		info := acquisition.NewErrorInfo(acquisition.CodePermissionDenied, "user denied geolocation")
		state := acquisition.State{Error: &info, Request: 2, UpdatedAt: base}
		if _, err := st.Record(t.Context(), "geoclue", state); err != nil {
			t.Fatalf("failed to record resolution: %s", err)
		}
		latest, err := st.Latest(t.Context())
		if err != nil {
			t.Fatalf("failed to query latest resolution: %s", err)
		}
		if latest.ErrorCode != "permission_denied" || latest.ErrorMessage != "user denied geolocation" {
			t.Errorf("unexpected error fields: %+v", latest)
		}
		if latest.HasPosition {
			t.Error("expected no position")
		}
	})
	t.Run("unresolved states are rejected", func(t *testing.T) {
		st := testStore(t)
		_, err := st.Record(t.Context(), "geoclue", acquisition.State{IsLoading: true})
		if !errors.Is(err, ErrNotResolved) {
			t.Errorf("expected ErrNotResolved, got %v", err)
		}
	})
}

func TestStore_Latest(t *testing.T) {
	t.Run("an empty store has no latest resolution", func(t *testing.T) {
		st := testStore(t)
		if _, err := st.Latest(t.Context()); !errors.Is(err, ErrNoRecords) {
			t.Errorf("expected ErrNoRecords, got %v", err)
		}
	})
	t.Run("the newest resolution is returned", func(t *testing.T) {
		st := testStore(t)
		for i := uint64(1); i <= 3; i++ {
			if _, err := st.Record(t.Context(), "gpsd", success(i, base.Add(time.Duration(i)*time.Minute))); err != nil {
				t.Fatalf("failed to record resolution: %s", err)
			}
		}
		latest, err := st.Latest(t.Context())
		if err != nil {
			t.Fatalf("failed to query latest resolution: %s", err)
		}
		if latest.Request != 3 {
			t.Errorf("expected request 3, got %d", latest.Request)
		}
	})
}

func TestStore_ListAndPrune(t *testing.T) {
	st := testStore(t)
	for i := uint64(1); i <= 5; i++ {
		if _, err := st.Record(t.Context(), "bus", success(i, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("failed to record resolution: %s", err)
		}
	}

	t.Run("list is limited and newest first", func(t *testing.T) {
		list, err := st.List(t.Context(), 2)
		if err != nil {
			t.Fatalf("failed to list resolutions: %s", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 resolutions, got %d", len(list))
		}
		if list[0].Request != 5 || list[1].Request != 4 {
			t.Errorf("unexpected order: %d, %d", list[0].Request, list[1].Request)
		}
	})
	t.Run("prune removes old resolutions", func(t *testing.T) {
		deleted, err := st.Prune(t.Context(), base.Add(3*time.Hour))
		if err != nil {
			t.Fatalf("failed to prune resolutions: %s", err)
		}
		if deleted != 2 {
			t.Errorf("expected 2 deleted resolutions, got %d", deleted)
		}
		list, err := st.List(t.Context(), 0)
		if err != nil {
			t.Fatalf("failed to list resolutions: %s", err)
		}
		if len(list) != 3 {
			t.Errorf("expected 3 remaining resolutions, got %d", len(list))
		}
	})
}
