// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package ichnaea

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/agricure/agricure-locate/internal/http"
	"github.com/agricure/agricure-locate/internal/logger"
	"github.com/agricure/agricure-locate/internal/testhelper"
)

const (
	testResponse = `{"location":{"lat":51.96251,"lng":7.62561},"accuracy":2000}`
	testLat      = 51.9625
	testLon      = 7.6256
	testAcc      = 2000
)

func testClient(fn func(*stdhttp.Request) (*stdhttp.Response, error)) *http.Client {
	client := http.New(logger.NewLogger(0, io.Discard))
	client.Transport = testhelper.MockRoundTripper{Fn: fn}
	return client
}

func TestNewGeolocationICHNAEAProvider(t *testing.T) {
	t.Run("new ICHNAEA provider succeeds", func(t *testing.T) {
		provider, err := NewGeolocationICHNAEAProvider(testClient(nil))
		if err != nil {
			t.Fatalf("failed to create ICHNAEA provider: %s", err)
		}
		if provider.Name() != name {
			t.Errorf("expected provider name to be %s, got %s", name, provider.Name())
		}
	})
	t.Run("ICHNAEA without http client fails", func(t *testing.T) {
		provider, err := NewGeolocationICHNAEAProvider(nil)
		if !errors.Is(err, ErrHTTPClientRequired) {
			t.Fatalf("expected error to be %s, got %v", ErrHTTPClientRequired, err)
		}
		if provider != nil {
			t.Fatal("expected provider to be nil")
		}
	})
}

func TestGeolocationICHNAEAProvider_locate(t *testing.T) {
	t.Run("locate sends the scanned access points", func(t *testing.T) {
		var sent struct {
			ConsiderIP   bool              `json:"considerIp"`
			Accesspoints []WirelessNetwork `json:"wifiAccessPoints"`
		}
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			if req.Method != stdhttp.MethodPost {
				t.Errorf("expected POST request, got %s", req.Method)
			}
			if err := json.NewDecoder(req.Body).Decode(&sent); err != nil {
				t.Errorf("failed to decode request body: %s", err)
			}
			return testhelper.JSONResponder(200, testResponse)(req)
		}
		provider, err := NewGeolocationICHNAEAProvider(testClient(rtFn))
		if err != nil {
			t.Fatalf("failed to create ICHNAEA provider: %s", err)
		}
		provider.aps = []WirelessNetwork{{MACAddress: "00:11:22:33:44:55", SignalStrength: -60}}

		lat, lon, acc, err := provider.locate(t.Context())
		if err != nil {
			t.Fatalf("failed to locate coordinates via ICHNAEA: %s", err)
		}
		if lat != testLat || lon != testLon {
			t.Errorf("expected coordinates %f,%f, got %f,%f", testLat, testLon, lat, lon)
		}
		if acc != testAcc {
			t.Errorf("expected accuracy to be %d, got %f", testAcc, acc)
		}
		if !sent.ConsiderIP {
			t.Error("expected request to allow IP based lookups")
		}
		if len(sent.Accesspoints) != 1 || sent.Accesspoints[0].MACAddress != "00:11:22:33:44:55" {
			t.Errorf("expected scanned access point in request, got %+v", sent.Accesspoints)
		}
	})
	t.Run("locate fails with broken JSON", func(t *testing.T) {
		provider, err := NewGeolocationICHNAEAProvider(testClient(testhelper.JSONResponder(200, "NOT_JSON")))
		if err != nil {
			t.Fatalf("failed to create ICHNAEA provider: %s", err)
		}
		if _, _, _, err = provider.locate(t.Context()); err == nil {
			t.Fatal("expected locate to fail")
		}
	})
	t.Run("locate fails without accuracy", func(t *testing.T) {
		body := `{"location":{"lat":51.9625,"lng":7.6256}}`
		provider, err := NewGeolocationICHNAEAProvider(testClient(testhelper.JSONResponder(200, body)))
		if err != nil {
			t.Fatalf("failed to create ICHNAEA provider: %s", err)
		}
		if _, _, _, err = provider.locate(t.Context()); !errors.Is(err, ErrNoAccuracy) {
			t.Fatalf("expected error to be %s, got %v", ErrNoAccuracy, err)
		}
	})
}

func TestGeolocationICHNAEAProvider_LookupStream(t *testing.T) {
	t.Run("lookup stream succeeds", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			provider, err := NewGeolocationICHNAEAProvider(testClient(testhelper.JSONResponder(200, testResponse)))
			if err != nil {
				t.Fatalf("failed to create ICHNAEA provider: %s", err)
			}
			provider.scanFn = func() ([]WirelessNetwork, error) { return nil, nil }

			result := <-provider.LookupStream(ctx, "test")
			cancel()
			synctest.Wait()

			if result.Key != "test" {
				t.Errorf("expected key to be %s, got %s", "test", result.Key)
			}
			if result.Lat != testLat || result.Lon != testLon {
				t.Errorf("expected coordinates %f,%f, got %f,%f", testLat, testLon, result.Lat, result.Lon)
			}
			if result.AccuracyMeters != testAcc {
				t.Errorf("expected accuracy to be %d, got %f", testAcc, result.AccuracyMeters)
			}
			if result.Source != provider.Name() {
				t.Errorf("expected source to be %s, got %s", provider.Name(), result.Source)
			}
		})
	})
	t.Run("lookup stream fails during lookup", func(t *testing.T) {
		runCount := 0
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			provider, err := NewGeolocationICHNAEAProvider(testClient(nil))
			if err != nil {
				t.Fatalf("failed to create ICHNAEA provider: %s", err)
			}
			provider.scanFn = nil
			provider.period = time.Millisecond * 10
			provider.locateFn = func(context.Context) (float64, float64, float64, error) {
				if runCount == 0 {
					runCount++
					return 0, 0, 0, errors.New("intentionally failing")
				}
				return 1.0, 2.0, 3.0, nil
			}

			result := <-provider.LookupStream(ctx, "test")
			cancel()
			synctest.Wait()

			if result.Lat != 1.0 || result.Lon != 2.0 || result.AccuracyMeters != 3.0 {
				t.Errorf("expected 1,2 with accuracy 3, got %+v", result)
			}
		})
	})
}

func TestGeolocationICHNAEAProvider_monitorWifiAccessPoints(t *testing.T) {
	t.Run("scan results are stored and refreshed", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			provider, err := NewGeolocationICHNAEAProvider(testClient(nil))
			if err != nil {
				t.Fatalf("failed to create ICHNAEA provider: %s", err)
			}
			var scans atomic.Int32
			provider.scanFn = func() ([]WirelessNetwork, error) {
				if scans.Add(1) == 1 {
					return nil, errors.New("intentionally failing")
				}
				return []WirelessNetwork{{MACAddress: "00:11:22:33:44:55"}}, nil
			}

			go provider.monitorWifiAccessPoints(ctx)
			time.Sleep(wifiScanTime + time.Second)
			synctest.Wait()

			provider.apLock.RLock()
			aps := len(provider.aps)
			provider.apLock.RUnlock()
			if aps != 1 {
				t.Errorf("expected one access point, got %d", aps)
			}
			if scans.Load() != 2 {
				t.Errorf("expected two scans, got %d", scans.Load())
			}
			cancel()
			synctest.Wait()
		})
	})
}
