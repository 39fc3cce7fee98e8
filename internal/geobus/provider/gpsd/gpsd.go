// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package gpsd

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/stratoberry/go-gpsd"

	"github.com/agricure/agricure-locate/internal/geobus"
	"github.com/agricure/agricure-locate/internal/gpspoll"
)

const name = "gpsd"

// GeolocationGPSDProvider streams TPV reports of a gpsd daemon, for example a GNSS receiver
// mounted on a tractor, and emits every fix with at least 2D quality that moved significantly.
type GeolocationGPSDProvider struct {
	name    string
	addr    string
	period  time.Duration
	ttl     time.Duration
	watchFn func(ctx context.Context, emit func(gpspoll.Fix)) error
}

// NewGeolocationGPSDProvider returns a provider for the gpsd daemon at host and port.
func NewGeolocationGPSDProvider(host, port string) *GeolocationGPSDProvider {
	provider := &GeolocationGPSDProvider{
		name:   name,
		addr:   net.JoinHostPort(host, port),
		period: time.Second * 30,
		ttl:    time.Minute * 2,
	}
	provider.watchFn = provider.watch
	return provider
}

func (p *GeolocationGPSDProvider) Name() string {
	return p.name
}

// LookupStream watches gpsd until ctx ends and reconnects after period whenever the watch
// ends or fails.
func (p *GeolocationGPSDProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	out := make(chan geobus.Result)

	go func() {
		defer close(out)
		state := geobus.GeolocationState{}
		var lastEmit time.Time

		emit := func(fix gpspoll.Fix) {
			if !fix.Has2DFix() {
				return
			}
			coord := geobus.Coordinate{
				Lat: geobus.Truncate(fix.Lat, geobus.TruncPrecision),
				Lon: geobus.Truncate(fix.Lon, geobus.TruncPrecision),
				Acc: fix.Acc,
			}
			if !state.HasChanged(coord) && time.Since(lastEmit) < p.ttl/2 {
				return
			}
			state.Update(coord)
			lastEmit = time.Now()

			select {
			case <-ctx.Done():
			case out <- p.createResult(key, coord):
			}
		}

		for {
			_ = p.watchFn(ctx, emit)
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.period):
			}
		}
	}()

	return out
}

// watch opens a gpsd session and forwards every TPV report to emit until the session ends or
// ctx is done. go-gpsd offers no way to close a session, so a cancelled watch leaves the
// connection to be torn down by gpsd.
func (p *GeolocationGPSDProvider) watch(ctx context.Context, emit func(gpspoll.Fix)) error {
	session, err := gpsd.Dial(p.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to gpsd at %q: %w", p.addr, err)
	}

	session.AddFilter("TPV", func(r interface{}) {
		tpv, ok := r.(*gpsd.TPVReport)
		if !ok {
			return
		}
		emit(gpspoll.Fix{
			Lat:  tpv.Lat,
			Lon:  tpv.Lon,
			Alt:  tpv.Alt,
			Acc:  gpspoll.HorizontalAccuracy(int(tpv.Mode), 0, tpv.Epx, tpv.Epy),
			Mode: int(tpv.Mode),
		})
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-session.Watch():
		return nil
	}
}

// createResult composes and returns a Result using provided geolocation data and metadata.
func (p *GeolocationGPSDProvider) createResult(key string, coord geobus.Coordinate) geobus.Result {
	return geobus.Result{
		Key:            key,
		Lat:            coord.Lat,
		Lon:            coord.Lon,
		AccuracyMeters: coord.Acc,
		Source:         p.name,
		At:             time.Now(),
		TTL:            p.ttl,
	}
}
