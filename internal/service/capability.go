// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/language"

	"github.com/agricure/agricure-locate/internal/acquisition"
	"github.com/agricure/agricure-locate/internal/config"
	"github.com/agricure/agricure-locate/internal/geobus"
	"github.com/agricure/agricure-locate/internal/geobus/provider/cityname_file"
	"github.com/agricure/agricure-locate/internal/geobus/provider/geoapi"
	"github.com/agricure/agricure-locate/internal/geobus/provider/geoip"
	"github.com/agricure/agricure-locate/internal/geobus/provider/geolocation_file"
	"github.com/agricure/agricure-locate/internal/geobus/provider/gpsd"
	"github.com/agricure/agricure-locate/internal/geobus/provider/ichnaea"
	"github.com/agricure/agricure-locate/internal/geocode"
	"github.com/agricure/agricure-locate/internal/geocode/provider/opencage"
	nominatim "github.com/agricure/agricure-locate/internal/geocode/provider/osm-nominatim"
	"github.com/agricure/agricure-locate/internal/http"
	"github.com/agricure/agricure-locate/internal/locator"
	"github.com/agricure/agricure-locate/internal/locator/bus"
	"github.com/agricure/agricure-locate/internal/locator/geoclue"
	locgpsd "github.com/agricure/agricure-locate/internal/locator/gpsd"
	"github.com/agricure/agricure-locate/internal/locator/static"
	"github.com/agricure/agricure-locate/internal/logger"
	"github.com/agricure/agricure-locate/internal/weather"
	openmeteo "github.com/agricure/agricure-locate/internal/weather/provider/open-meteo"
)

const (
	cacheHitTTL  = 24 * time.Hour
	cacheMissTTL = 10 * time.Minute
)

var ErrNoProviders = errors.New("no geolocation providers enabled")

// selectCapability builds the capability configured in geolocation.capability. In auto mode the
// capabilities are chained in the order geoclue, gpsd, bus.
func (s *Service) selectCapability() (acquisition.Capability, error) {
	geoConf := s.config.GeoLocation
	timeout := s.config.Acquisition.Timeout

	switch geoConf.Capability {
	case config.CapabilityGeoClue:
		return geoclue.New(geoConf.DesktopID, timeout), nil
	case config.CapabilityGPSD:
		return locgpsd.New(geoConf.GPSDHost, geoConf.GPSDPort, timeout), nil
	case config.CapabilityStatic:
		capability, err := static.New(geoConf.StaticLat, geoConf.StaticLon, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to create static capability: %w", err)
		}
		return capability, nil
	case config.CapabilityBus:
		providers, err := s.selectGeobusProviders()
		if err != nil {
			return nil, err
		}
		s.busCap = bus.New(s.logger, providers, timeout)
		return s.busCap, nil
	case config.CapabilityAuto:
		members := []acquisition.Capability{geoclue.New(geoConf.DesktopID, timeout)}
		if !geoConf.DisableGPSD {
			members = append(members, locgpsd.New(geoConf.GPSDHost, geoConf.GPSDPort, timeout))
		}
		providers, err := s.selectGeobusProviders()
		switch {
		case errors.Is(err, ErrNoProviders):
			s.logger.Warn("no geolocation providers enabled, skipping the geobus capability")
		case err != nil:
			return nil, err
		default:
			s.busCap = bus.New(s.logger, providers, timeout)
			members = append(members, s.busCap)
		}
		return locator.NewChain(members...), nil
	default:
		return nil, fmt.Errorf("unsupported capability: %s", geoConf.Capability)
	}
}

func (s *Service) selectGeobusProviders() ([]geobus.Provider, error) {
	httpClient := http.New(s.logger)
	geoConf := s.config.GeoLocation
	var provider []geobus.Provider

	if !geoConf.DisableGeolocationFile {
		provider = append(provider, geolocation_file.NewGeolocationFileProvider(geoConf.File))
	}

	if !geoConf.DisableCityNameFile {
		cnf, err := cityname_file.NewCitynameFileProvider(geoConf.CityNameFile, s.geocoder)
		if err != nil {
			return nil, fmt.Errorf("failed to create cityname file provider: %w", err)
		}
		provider = append(provider, cnf)
	}

	if !geoConf.DisableGPSD {
		provider = append(provider, gpsd.NewGeolocationGPSDProvider(geoConf.GPSDHost, geoConf.GPSDPort))
	}

	if !geoConf.DisableGeoIP {
		gip, err := geoip.NewGeolocationGeoIPProvider(httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create GeoIP provider: %w", err)
		}
		provider = append(provider, gip)
	}

	if !geoConf.DisableGeoAPI {
		gap, err := geoapi.NewGeolocationGeoAPIProvider(httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create GeoAPI provider: %w", err)
		}
		provider = append(provider, gap)
	}

	if !geoConf.DisableICHNAEA {
		mls, err := ichnaea.NewGeolocationICHNAEAProvider(httpClient)
		if err != nil {
			s.logger.Error("failed to create ICHNAEA provider", logger.Err(err))
		} else {
			provider = append(provider, mls)
		}
	}
	if len(provider) == 0 {
		return nil, ErrNoProviders
	}

	return provider, nil
}

func (s *Service) selectGeocodeProvider(lang language.Tag) (geocode.Geocoder, error) {
	switch s.config.GeoCoder.Provider {
	case config.GeocoderNominatim:
		return geocode.NewCachedGeocoder(nominatim.New(http.New(s.logger), lang), cacheHitTTL, cacheMissTTL), nil
	case config.GeocoderOpenCage:
		if s.config.GeoCoder.APIKey == "" {
			return nil, fmt.Errorf("opencage geocoder requires an API key")
		}
		return geocode.NewCachedGeocoder(opencage.New(http.New(s.logger), lang, s.config.GeoCoder.APIKey),
			cacheHitTTL, cacheMissTTL), nil
	default:
		return nil, fmt.Errorf("unsupported geocoder type: %s", s.config.GeoCoder.Provider)
	}
}

func (s *Service) selectWeatherProvider() (weather.Provider, error) {
	provider, err := openmeteo.New(s.logger, s.config.Units)
	if err != nil {
		return nil, fmt.Errorf("failed to create Open-Meteo weather provider: %w", err)
	}
	return provider, nil
}
