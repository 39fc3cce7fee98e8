// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

type signalSource interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

// stdLibSignalSource is the production implementation.
type stdLibSignalSource struct{}

func (stdLibSignalSource) Notify(c chan<- os.Signal, sig ...os.Signal) {
	signal.Notify(c, sig...)
}

func (stdLibSignalSource) Stop(c chan<- os.Signal) {
	signal.Stop(c)
}

// HandleSignals requests a new position on SIGUSR1 and logs the current state on SIGUSR2.
func (s *Service) HandleSignals(ctx context.Context, sigChan chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGUSR1:
				s.Request(ctx, TriggerSignal)
			case syscall.SIGUSR2:
				state := s.acquisition.State()
				_, address := s.Advisory()
				attrs := []any{
					slog.String("status", string(state.Status())), slog.Uint64("request", state.Request),
					slog.String("address", address.DisplayName),
				}
				if state.Position != nil {
					attrs = append(attrs, slog.Float64("latitude", state.Position.Lat),
						slog.Float64("longitude", state.Position.Lng))
				}
				if state.Error != nil {
					attrs = append(attrs, slog.String("error", state.Error.Message))
				}
				s.logger.Info("current acquisition state", attrs...)
			}
		}
	}
}
