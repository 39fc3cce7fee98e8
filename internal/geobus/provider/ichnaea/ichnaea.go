// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package ichnaea

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agricure/agricure-locate/internal/geobus"
	"github.com/agricure/agricure-locate/internal/http"

	"github.com/mdlayher/wifi"
)

const (
	apiEndpoint   = "https://api.beacondb.net/v1/geolocate"
	lookupTimeout = time.Second * 5
	wifiScanTime  = time.Minute * 2
	name          = "ichnaea"
)

var (
	ErrHTTPClientRequired = errors.New("http client is required")
	ErrNoAccuracy         = errors.New("API response did not include an accuracy")
)

// GeolocationICHNAEAProvider locates the host through an Ichnaea compatible API (BeaconDB) using
// the Wi-Fi access points visible to the station interfaces. Without Wi-Fi support the lookup
// falls back to the public IP address.
type GeolocationICHNAEAProvider struct {
	name     string
	http     *http.Client
	scanFn   func() ([]WirelessNetwork, error)
	period   time.Duration
	ttl      time.Duration
	locateFn func(ctx context.Context) (lat, lon, acc float64, err error)

	apLock sync.RWMutex
	aps    []WirelessNetwork
}

type APIResult struct {
	Location struct {
		Latitude  float64 `json:"lat"`
		Longitude float64 `json:"lng"`
	} `json:"location"`
	Accuracy float64 `json:"accuracy"`
}

type WirelessNetwork struct {
	LastSeen       int64  `json:"age"`
	MACAddress     string `json:"macAddress"`
	SignalStrength int32  `json:"signalStrength"`
}

// NewGeolocationICHNAEAProvider returns a provider using the given HTTP client. Wi-Fi scanning is
// enabled when the host supports nl80211.
func NewGeolocationICHNAEAProvider(http *http.Client) (*GeolocationICHNAEAProvider, error) {
	if http == nil {
		return nil, ErrHTTPClientRequired
	}

	provider := &GeolocationICHNAEAProvider{
		name:   name,
		http:   http,
		period: time.Minute * 5,
		ttl:    time.Hour * 1,
	}
	provider.locateFn = provider.locate
	if wlan, err := wifi.New(); err == nil {
		provider.scanFn = func() ([]WirelessNetwork, error) {
			return wifiAccessPoints(wlan)
		}
	}
	return provider, nil
}

func (p *GeolocationICHNAEAProvider) Name() string {
	return p.name
}

// LookupStream queries the API once per period and emits a result whenever the location changed
// or the previous result is about to expire.
// The Wi-Fi scan runs in the background for as long as ctx is alive.
func (p *GeolocationICHNAEAProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	out := make(chan geobus.Result)
	if p.scanFn != nil {
		go p.monitorWifiAccessPoints(ctx)
	}
	go func() {
		defer close(out)
		state := geobus.GeolocationState{}
		var lastEmit time.Time
		firstRun := true

		for {
			if !firstRun {
				select {
				case <-ctx.Done():
					return
				case <-time.After(p.period):
				}
			}
			firstRun = false

			lat, lon, acc, err := p.locateFn(ctx)
			if err != nil {
				continue
			}
			coord := geobus.Coordinate{Lat: lat, Lon: lon, Acc: acc}

			if state.HasChanged(coord) || time.Since(lastEmit) >= p.ttl-p.period {
				state.Update(coord)
				lastEmit = time.Now()
				r := p.createResult(key, coord)

				select {
				case <-ctx.Done():
					return
				case out <- r:
				}
			}
		}
	}()
	return out
}

// createResult composes and returns a Result using provided geolocation data and metadata.
func (p *GeolocationICHNAEAProvider) createResult(key string, coord geobus.Coordinate) geobus.Result {
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

func (p *GeolocationICHNAEAProvider) monitorWifiAccessPoints(ctx context.Context) {
	firstRun := true
	for {
		if !firstRun {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wifiScanTime):
			}
		}
		firstRun = false

		list, err := p.scanFn()
		if err != nil {
			continue
		}
		p.apLock.Lock()
		p.aps = list
		p.apLock.Unlock()
	}
}

// wifiAccessPoints lists the access points seen by all station interfaces. Hidden networks and
// networks that opted out of mapping via the "_nomap" suffix are skipped.
func wifiAccessPoints(wlan *wifi.Client) ([]WirelessNetwork, error) {
	var checkIfaces []*wifi.Interface
	var list []WirelessNetwork

	ifaces, err := wlan.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Type != wifi.InterfaceTypeStation {
			continue
		}
		checkIfaces = append(checkIfaces, iface)
	}
	if len(checkIfaces) == 0 {
		return nil, nil
	}

	for _, iface := range checkIfaces {
		aps, err := wlan.AccessPoints(iface)
		if err != nil {
			continue
		}
		for _, ap := range aps {
			if ap.SSID == "" || ap.SSID[0] == '\x00' || strings.HasSuffix(ap.SSID, "_nomap") {
				continue
			}
			list = append(list, WirelessNetwork{
				SignalStrength: ap.Signal / 100,
				MACAddress:     ap.BSSID.String(),
				LastSeen:       ap.LastSeen.Milliseconds(),
			})
		}
	}

	return list, nil
}

func (p *GeolocationICHNAEAProvider) locate(ctx context.Context) (lat, lon, acc float64, err error) {
	p.apLock.RLock()
	wifiList := p.aps
	p.apLock.RUnlock()

	type request struct {
		ConsiderIP   bool              `json:"considerIp"`
		Accesspoints []WirelessNetwork `json:"wifiAccessPoints,omitempty"`
	}
	req := request{
		ConsiderIP:   true,
		Accesspoints: wifiList,
	}
	bodyBuffer := bytes.NewBuffer(nil)
	if err = json.NewEncoder(bodyBuffer).Encode(req); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to encode wifi list to JSON: %w", err)
	}

	result := new(APIResult)
	if _, err = p.http.PostWithTimeout(ctx, apiEndpoint, result, bodyBuffer,
		map[string]string{"Content-Type": "application/json"}, lookupTimeout); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get geolocation data from API: %w", err)
	}

	if result.Accuracy <= 0 {
		return 0, 0, 0, ErrNoAccuracy
	}

	return geobus.Truncate(result.Location.Latitude, geobus.TruncPrecision),
		geobus.Truncate(result.Location.Longitude, geobus.TruncPrecision),
		geobus.Truncate(result.Accuracy, geobus.TruncPrecision), nil
}
