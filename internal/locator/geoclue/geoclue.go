// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geoclue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/agricure/agricure-locate/internal/acquisition"
	"github.com/agricure/agricure-locate/internal/locator"
)

const (
	name = "geoclue"

	dbusListNames    = "org.freedesktop.DBus.ListNames"
	dbusAccessDenied = "org.freedesktop.DBus.Error.AccessDenied"
	geoclueDest      = "org.freedesktop.GeoClue2"
	geoclueAgent     = "org.freedesktop.GeoClue2.DemoAgent"
	managerPath      = "/org/freedesktop/GeoClue2/Manager"
	managerIface     = "org.freedesktop.GeoClue2.Manager"
	clientIface      = "org.freedesktop.GeoClue2.Client"
	locationIface    = "org.freedesktop.GeoClue2.Location"
	locationUpdated  = clientIface + ".LocationUpdated"

	// accuracyLevelExact is GCLUE_ACCURACY_LEVEL_EXACT
	accuracyLevelExact = uint32(8)

	availabilityTTL = 30 * time.Second
	agentTimeout    = time.Second
)

// Capability queries GeoClue2 over D-Bus. GeoClue only hands out positions to desktop IDs its
// agent authorized, so the capability is available while an agent runs on the session bus.
type Capability struct {
	desktopID string
	timeout   time.Duration
	agentFn   func(ctx context.Context) (bool, error)
	locateFn  func(ctx context.Context) (acquisition.Coordinates, error)

	mu        sync.Mutex
	available bool
	checkedAt time.Time
}

// New returns a Capability identifying itself as desktopID. Each query gives up after timeout.
func New(desktopID string, timeout time.Duration) *Capability {
	c := &Capability{
		desktopID: desktopID,
		timeout:   timeout,
		agentFn:   agentIsRunning,
	}
	c.locateFn = c.locate
	return c
}

func (c *Capability) Name() string { return name }

// Available reports whether a GeoClue agent runs. The answer is cached for a short while since
// every check needs a session bus round trip.
func (c *Capability) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.checkedAt.IsZero() && time.Since(c.checkedAt) < availabilityTTL {
		return c.available
	}

	ctx, cancel := context.WithTimeout(context.Background(), agentTimeout)
	defer cancel()
	running, err := c.agentFn(ctx)
	c.available = err == nil && running
	c.checkedAt = time.Now()
	return c.available
}

func (c *Capability) QueryCurrentPosition(ctx context.Context, onSuccess func(acquisition.Coordinates),
	onFailure func(acquisition.ErrorInfo),
) {
	go func() {
		ctxLocate, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		coords, err := c.locateFn(ctxLocate)
		if err != nil {
			onFailure(locator.ErrorInfoFrom(err))
			return
		}
		coords.Source = name
		onSuccess(coords)
	}()
}

// agentIsRunning checks the session bus for the GeoClue demo agent.
func agentIsRunning(ctx context.Context) (isRunning bool, err error) {
	var list []string
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close session bus: %w", closeErr))
		}
	}()

	if err = conn.BusObject().CallWithContext(ctx, dbusListNames, 0).Store(&list); err != nil {
		return false, fmt.Errorf("failed to call DBus ListNames: %w", err)
	}
	for _, v := range list {
		if strings.EqualFold(v, geoclueAgent) {
			return true, nil
		}
	}
	return false, nil
}

// locate registers a GeoClue client, starts it and waits for the first LocationUpdated signal.
func (c *Capability) locate(ctx context.Context) (coords acquisition.Coordinates, err error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return coords, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close system bus: %w", closeErr))
		}
	}()

	var clientPath dbus.ObjectPath
	manager := conn.Object(geoclueDest, managerPath)
	if err = manager.CallWithContext(ctx, managerIface+".GetClient", 0).Store(&clientPath); err != nil {
		return coords, fmt.Errorf("failed to get GeoClue client: %w", classify(err))
	}
	client := conn.Object(geoclueDest, clientPath)
	if err = client.SetProperty(clientIface+".DesktopId", dbus.MakeVariant(c.desktopID)); err != nil {
		return coords, fmt.Errorf("failed to set GeoClue desktop id: %w", classify(err))
	}
	if err = client.SetProperty(clientIface+".RequestedAccuracyLevel",
		dbus.MakeVariant(accuracyLevelExact)); err != nil {
		return coords, fmt.Errorf("failed to set GeoClue accuracy level: %w", classify(err))
	}

	if err = conn.AddMatchSignal(dbus.WithMatchObjectPath(clientPath), dbus.WithMatchInterface(clientIface),
		dbus.WithMatchMember("LocationUpdated")); err != nil {
		return coords, fmt.Errorf("failed to subscribe to GeoClue location updates: %w", err)
	}
	sigCh := make(chan *dbus.Signal, 4)
	conn.Signal(sigCh)
	defer conn.RemoveSignal(sigCh)

	if err = client.CallWithContext(ctx, clientIface+".Start", 0).Err; err != nil {
		return coords, fmt.Errorf("failed to start GeoClue client: %w", classify(err))
	}
	defer client.Call(clientIface+".Stop", 0)

	for {
		select {
		case <-ctx.Done():
			return coords, fmt.Errorf("failed to receive GeoClue location: %w", ctx.Err())
		case sig, ok := <-sigCh:
			if !ok {
				return coords, errors.New("system bus connection closed while waiting for a location")
			}
			if sig.Name != locationUpdated || len(sig.Body) != 2 {
				continue
			}
			path, ok := sig.Body[1].(dbus.ObjectPath)
			if !ok {
				continue
			}
			return readLocation(conn.Object(geoclueDest, path))
		}
	}
}

func readLocation(location dbus.BusObject) (acquisition.Coordinates, error) {
	var coords acquisition.Coordinates
	fields := []struct {
		property string
		target   *float64
	}{
		{"Latitude", &coords.Latitude},
		{"Longitude", &coords.Longitude},
		{"Accuracy", &coords.Accuracy},
	}
	for _, field := range fields {
		variant, err := location.GetProperty(locationIface + "." + field.property)
		if err != nil {
			return coords, fmt.Errorf("failed to read GeoClue location %s: %w", field.property, err)
		}
		value, ok := variant.Value().(float64)
		if !ok {
			return coords, fmt.Errorf("unexpected type %s for GeoClue location %s", variant.Signature(),
				field.property)
		}
		*field.target = value
	}
	return coords, nil
}

// classify wraps AccessDenied replies so they map onto a permission error.
func classify(err error) error {
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) && dbusErr.Name == dbusAccessDenied {
		return fmt.Errorf("%w: %s", acquisition.ErrPermissionDenied, dbusErr.Error())
	}
	var dbusErrPtr *dbus.Error
	if errors.As(err, &dbusErrPtr) && dbusErrPtr.Name == dbusAccessDenied {
		return fmt.Errorf("%w: %s", acquisition.ErrPermissionDenied, dbusErrPtr.Error())
	}
	return err
}
