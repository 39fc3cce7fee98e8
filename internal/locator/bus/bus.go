// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package bus

import (
	"context"
	"log/slog"
	"time"

	"github.com/agricure/agricure-locate/internal/acquisition"
	"github.com/agricure/agricure-locate/internal/geobus"
	"github.com/agricure/agricure-locate/internal/locator"
	"github.com/agricure/agricure-locate/internal/logger"
)

const (
	name   = "bus"
	busKey = "agricure-locate"
)

// Capability answers position requests from the best result the geobus providers have
// published. Providers are only tracked while Run is active.
type Capability struct {
	bus       *geobus.GeoBus
	logger    *logger.Logger
	providers []geobus.Provider
	timeout   time.Duration
}

// New returns a Capability over the given providers. A query waits at most timeout for the first
// result when none is known yet.
func New(log *logger.Logger, providers []geobus.Provider, timeout time.Duration) *Capability {
	return &Capability{
		bus:       geobus.New(log),
		logger:    log,
		providers: providers,
		timeout:   timeout,
	}
}

// Run tracks all providers until ctx is done.
func (c *Capability) Run(ctx context.Context) {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	c.logger.Debug("tracking geolocation providers", slog.Any("providers", names))
	c.bus.NewOrchestrator(c.providers).Track(ctx, busKey)
}

// Subscribe forwards geobus updates to the caller, e.g. to re-trigger requests on movement.
func (c *Capability) Subscribe(size int) (<-chan geobus.Result, func()) {
	return c.bus.Subscribe(busKey, size)
}

func (c *Capability) Name() string { return name }

func (c *Capability) Available() bool { return len(c.providers) > 0 }

func (c *Capability) QueryCurrentPosition(ctx context.Context, onSuccess func(acquisition.Coordinates),
	onFailure func(acquisition.ErrorInfo),
) {
	go func() {
		result, ok := c.bus.Best(busKey)
		if !ok {
			ctxWait, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			var err error
			if result, err = c.bus.Await(ctxWait, busKey); err != nil {
				onFailure(locator.ErrorInfoFrom(err))
				return
			}
		}
		onSuccess(acquisition.Coordinates{
			Latitude:  result.Lat,
			Longitude: result.Lon,
			Accuracy:  result.AccuracyMeters,
			Source:    name + "/" + result.Source,
		})
	}()
}
