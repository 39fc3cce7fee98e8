// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/agricure/agricure-locate/internal/logger"
)

const (
	logindInterface = "org.freedesktop.login1.Manager"
	logindMember    = "PrepareForSleep"

	debounceWindow   = 2 * time.Second
	signalBufferSize = 8

	busRetryDelay      = 5 * time.Second
	networkWakeupDelay = 10 * time.Second
)

// monitorSleepResume watches logind for resume events and requests a new position after each one,
// since the device may have been moved while it was suspended. Lost system bus connections are
// re-established until ctx is done.
func (s *Service) monitorSleepResume(ctx context.Context) {
	var lastResume atomic.Int64
	for {
		if err := s.watchSleepSignals(ctx, &lastResume); err != nil {
			s.logger.Debug("sleep monitoring interrupted", logger.Err(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(busRetryDelay):
		}
	}
}

// watchSleepSignals subscribes to PrepareForSleep on one system bus connection and handles its
// signals until the connection is lost or ctx is done.
func (s *Service) watchSleepSignals(ctx context.Context, lastResume *atomic.Int64) error {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			s.logger.Debug("failed to close system bus connection", logger.Err(closeErr))
		}
	}()

	if err = conn.AddMatchSignal(dbus.WithMatchInterface(logindInterface),
		dbus.WithMatchMember(logindMember)); err != nil {
		return err
	}
	sigCh := make(chan *dbus.Signal, signalBufferSize)
	conn.Signal(sigCh)
	defer conn.RemoveSignal(sigCh)
	s.logger.Debug("subscribed to dbus signal", slog.String("interface", logindInterface),
		slog.String("member", logindMember))

	for {
		select {
		case <-ctx.Done():
			return nil
		case sgn, ok := <-sigCh:
			if !ok {
				return nil
			}
			if isResumeSignal(sgn) {
				go s.handleResumeEvent(ctx, lastResume)
			}
		}
	}
}

// isResumeSignal reports whether sgn is a PrepareForSleep(false) signal.
func isResumeSignal(sgn *dbus.Signal) bool {
	if sgn == nil || len(sgn.Body) != 1 {
		return false
	}
	sleeping, ok := sgn.Body[0].(bool)
	return ok && !sleeping
}

// handleResumeEvent requests a position once the network had time to come back. Resume events
// within debounceWindow of the previous one are dropped.
func (s *Service) handleResumeEvent(ctx context.Context, lastResume *atomic.Int64) {
	now := time.Now().UnixNano()
	prev := lastResume.Load()
	if now-prev < int64(debounceWindow) || !lastResume.CompareAndSwap(prev, now) {
		return
	}

	select {
	case <-time.After(networkWakeupDelay):
	case <-ctx.Done():
		return
	}
	s.logger.Debug("resumed from sleep, requesting a new position")
	s.Request(ctx, TriggerResume)
}
