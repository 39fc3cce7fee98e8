// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/agricure/agricure-locate/internal/acquisition"
	"github.com/agricure/agricure-locate/internal/geobus"
	"github.com/agricure/agricure-locate/internal/geocode"
	"github.com/agricure/agricure-locate/internal/logger"
)

const lookupTimeout = 20 * time.Second

// processSnapshots reacts to every state transition of the acquisition until ctx is done.
func (s *Service) processSnapshots(ctx context.Context, sub <-chan acquisition.State) {
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-sub:
			if !ok {
				return
			}
			s.handleSnapshot(ctx, state)
		}
	}
}

func (s *Service) handleSnapshot(ctx context.Context, state acquisition.State) {
	status := state.Status()
	s.logger.Debug("acquisition state changed", slog.String("status", string(status)),
		slog.Uint64("request", state.Request))
	s.metrics.ObserveState(state)

	if state.Resolved() && s.store != nil {
		// A resolution received during shutdown is still recorded.
		recordCtx := context.WithoutCancel(ctx)
		if _, err := s.store.Record(recordCtx, s.acquisition.CapabilityName(), state); err != nil {
			s.logger.Error("failed to record resolution", logger.Err(err))
		}
	}

	switch status {
	case acquisition.StatusError:
		s.logger.Error("position request failed", slog.String("code", state.Error.Code.String()),
			slog.String("message", state.Error.Message), slog.Uint64("request", state.Request))
	case acquisition.StatusSuccess:
		s.logger.Info("position resolved", slog.Float64("lat", state.Position.Lat),
			slog.Float64("lng", state.Position.Lng), slog.Float64("accuracy", state.Position.Accuracy),
			slog.String("source", state.Position.Source))
	}

	s.printStatus(ctx)
	if status == acquisition.StatusSuccess && s.positionChanged(*state.Position) {
		s.updatePosition(ctx, *state.Position)
		s.printStatus(ctx)
	}
}

// positionChanged reports whether pos moved far enough from the position of the last advisory to
// justify new address and weather lookups.
func (s *Service) positionChanged(pos acquisition.Position) bool {
	s.positionLock.RLock()
	defer s.positionLock.RUnlock()
	if s.advisedAt == nil {
		return true
	}
	return coordinate(pos).PosHasSignificantChange(coordinate(*s.advisedAt))
}

// updatePosition resolves the address of pos and builds a fresh advisory for it.
func (s *Service) updatePosition(ctx context.Context, pos acquisition.Position) {
	ctxLookup, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	coords := coordinate(pos)
	address, err := s.geocoder.Reverse(ctxLookup, coords)
	if err != nil && !errors.Is(err, geocode.ErrNotFound) {
		s.logger.Error("failed to reverse geocode position", logger.Err(err),
			slog.String("geocoder", s.geocoder.Name()))
	}
	adv, err := s.advisor.Advise(ctxLookup, coords)
	if err != nil {
		s.logger.Error("failed to build field advisory", logger.Err(err))
	}

	s.positionLock.Lock()
	defer s.positionLock.Unlock()
	s.address = address
	if adv != nil {
		s.advisory = adv
	}
	s.advisedAt = &pos
	s.logger.Debug("position details updated", slog.String("address", address.DisplayName),
		slog.Bool("cache_hit", address.CacheHit))
}

// refreshAdvisory rebuilds the advisory for the last known position.
func (s *Service) refreshAdvisory(ctx context.Context) {
	state := s.acquisition.State()
	if state.Position == nil {
		return
	}
	adv, err := s.advisor.Advise(ctx, coordinate(*state.Position))
	if err != nil {
		s.logger.Error("failed to refresh field advisory", logger.Err(err))
		return
	}
	s.positionLock.Lock()
	s.advisory = adv
	s.positionLock.Unlock()
	s.printStatus(ctx)
}

// followMovement re-requests the position whenever the geobus reports a significant move.
func (s *Service) followMovement(ctx context.Context) {
	updates, unsub := s.busCap.Subscribe(8)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-updates:
			if !ok {
				return
			}
			s.logger.Debug("received geolocation update", slog.Float64("lat", result.Lat),
				slog.Float64("lon", result.Lon), slog.String("source", result.Source))
			s.Request(ctx, TriggerMovement)
		}
	}
}

// printStatus writes the current status line.
func (s *Service) printStatus(context.Context) {
	adv, address := s.Advisory()
	tplCtx := s.presenter.BuildContext(s.acquisition.State(), address, adv)

	s.outputLock.Lock()
	defer s.outputLock.Unlock()
	if err := s.presenter.Write(s.output, tplCtx); err != nil {
		s.logger.Error("failed to print status line", logger.Err(err))
	}
}

func coordinate(pos acquisition.Position) geobus.Coordinate {
	return geobus.Coordinate{Lat: pos.Lat, Lon: pos.Lng, Acc: pos.Accuracy}
}
