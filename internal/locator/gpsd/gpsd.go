// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package gpsd

import (
	"context"
	"sync"
	"time"

	"github.com/agricure/agricure-locate/internal/acquisition"
	"github.com/agricure/agricure-locate/internal/gpspoll"
	"github.com/agricure/agricure-locate/internal/locator"
)

const (
	name            = "gpsd"
	availabilityTTL = 30 * time.Second
)

// Capability answers a position request with a single gpsd poll. It is available while gpsd
// accepts connections.
type Capability struct {
	timeout time.Duration
	pollFn  func(ctx context.Context) (gpspoll.Fix, error)
	reachFn func(ctx context.Context) bool

	mu        sync.Mutex
	reachable bool
	checkedAt time.Time
}

// New returns a Capability polling the gpsd daemon at host and port. Each query gives up after
// timeout.
func New(host, port string, timeout time.Duration) *Capability {
	client := gpspoll.New(host, port)
	return &Capability{
		timeout: timeout,
		pollFn:  client.Poll,
		reachFn: client.Reachable,
	}
}

func (c *Capability) Name() string { return name }

// Available reports whether gpsd accepts connections. The answer is cached for availabilityTTL
// since every check dials the daemon.
func (c *Capability) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.checkedAt.IsZero() && time.Since(c.checkedAt) < availabilityTTL {
		return c.reachable
	}
	c.reachable = c.reachFn(context.Background())
	c.checkedAt = time.Now()
	return c.reachable
}

func (c *Capability) QueryCurrentPosition(ctx context.Context, onSuccess func(acquisition.Coordinates),
	onFailure func(acquisition.ErrorInfo),
) {
	go func() {
		ctxPoll, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		fix, err := c.pollFn(ctxPoll)
		if err != nil {
			onFailure(locator.ErrorInfoFrom(err))
			return
		}
		if !fix.Has2DFix() {
			onFailure(acquisition.NewErrorInfo(acquisition.CodePositionUnavailable,
				"gps receiver has no 2D fix yet"))
			return
		}
		onSuccess(acquisition.Coordinates{
			Latitude:  fix.Lat,
			Longitude: fix.Lon,
			Accuracy:  fix.Acc,
			Source:    name,
		})
	}()
}
