// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package advisory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nathan-osman/go-sunrise"
	"github.com/wneessen/go-moonphase"

	"github.com/agricure/agricure-locate/internal/geobus"
	"github.com/agricure/agricure-locate/internal/logger"
	"github.com/agricure/agricure-locate/internal/weather"
)

// Hints are message IDs so the presenter can localize them.
const (
	HintFrostRisk      = "Frost risk in the next 12 hours"
	HintSprayingWindow = "Good spraying window"
	HintNoSpraying     = "Spraying not advised"
	HintDaylightEnding = "Less than an hour of daylight left"
	HintNight          = "Outside daylight hours"
)

const (
	frostWindow    = 12 * time.Hour
	sprayingWindow = 3 * time.Hour
	daylightNotice = time.Hour

	frostCelsius       = 0.0
	sprayMinCelsius    = 5.0
	sprayMaxCelsius    = 25.0
	sprayMaxWindKmh    = 15.0
	sprayMaxPrecipProb = 40.0
)

var ErrWeatherProviderRequired = errors.New("weather provider is required")

// MoonPhaseIcon maps go-moonphase phase names to emoji.
var MoonPhaseIcon = map[string]string{
	"New Moon":        "🌑",
	"Waxing Crescent": "🌒",
	"First Quarter":   "🌓",
	"Waxing Gibbous":  "🌔",
	"Full Moon":       "🌕",
	"Waning Gibbous":  "🌖",
	"Third Quarter":   "🌗",
	"Waning Crescent": "🌘",
}

// Advisory is the field outlook for one resolved position.
type Advisory struct {
	Coordinates   geobus.Coordinate `json:"coordinates"`
	GeneratedAt   time.Time         `json:"generated_at"`
	Sunrise       time.Time         `json:"sunrise"`
	Sunset        time.Time         `json:"sunset"`
	DayLength     time.Duration     `json:"day_length"`
	IsDaylight    bool              `json:"is_daylight"`
	MoonPhase     string            `json:"moon_phase"`
	MoonPhaseIcon string            `json:"moon_phase_icon"`
	Weather       *weather.Instant  `json:"weather,omitempty"`
	Hints         []string          `json:"hints"`
}

type Advisor struct {
	log      *logger.Logger
	provider weather.Provider
	imperial bool
	now      func() time.Time
}

func New(log *logger.Logger, provider weather.Provider, units string) (*Advisor, error) {
	if provider == nil {
		return nil, ErrWeatherProviderRequired
	}
	return &Advisor{
		log:      log,
		provider: provider,
		imperial: units == "imperial",
		now:      time.Now,
	}, nil
}

// Advise builds the advisory for coords. A failing weather backend does not fail the advisory;
// the result then only carries the astronomical data.
func (a *Advisor) Advise(ctx context.Context, coords geobus.Coordinate) (*Advisory, error) {
	if !coords.Valid() {
		return nil, fmt.Errorf("failed to build advisory: invalid coordinates %f, %f", coords.Lat, coords.Lon)
	}
	data, err := a.provider.GetWeather(ctx, coords)
	if err != nil {
		a.log.Warn("weather data unavailable, advisory is limited to daylight and moon phase",
			logger.Err(err), slog.String("provider", a.provider.Name()))
		data = nil
	}
	return Build(coords, a.now(), data, a.imperial), nil
}

// Build derives the advisory from coords, the reference time and optional weather data.
func Build(coords geobus.Coordinate, now time.Time, data *weather.Data, imperial bool) *Advisory {
	adv := &Advisory{
		Coordinates: coords,
		GeneratedAt: now,
		Hints:       make([]string, 0),
	}

	adv.Sunrise, adv.Sunset = sunWindow(coords, now)
	if !adv.Sunrise.IsZero() && !adv.Sunset.IsZero() {
		adv.Sunrise, adv.Sunset = adv.Sunrise.In(now.Location()), adv.Sunset.In(now.Location())
		adv.DayLength = adv.Sunset.Sub(adv.Sunrise)
		adv.IsDaylight = now.After(adv.Sunrise) && now.Before(adv.Sunset)
	}

	moon := moonphase.New(now)
	adv.MoonPhase = moon.PhaseName()
	adv.MoonPhaseIcon = MoonPhaseIcon[adv.MoonPhase]

	if data != nil {
		current := data.Current
		adv.Weather = &current
		if frostRisk(current, data.Upcoming(now, frostWindow), imperial) {
			adv.Hints = append(adv.Hints, HintFrostRisk)
		}
		if adv.IsDaylight {
			if sprayable(current, data.Upcoming(now, sprayingWindow), imperial) {
				adv.Hints = append(adv.Hints, HintSprayingWindow)
			} else {
				adv.Hints = append(adv.Hints, HintNoSpraying)
			}
		}
	}

	switch {
	case !adv.IsDaylight:
		adv.Hints = append(adv.Hints, HintNight)
	case adv.Sunset.Sub(now) < daylightNotice:
		adv.Hints = append(adv.Hints, HintDaylightEnding)
	}
	return adv
}

// sunWindow returns sunrise and sunset of the day at the position that now falls on. The calendar
// date is taken from the mean solar time at the longitude, so west of UTC the evening hours do not
// roll over to the next UTC day. If now lies within the daylight of a neighbouring date, that
// window wins. Polar day and night yield zero times.
func sunWindow(coords geobus.Coordinate, now time.Time) (time.Time, time.Time) {
	solar := now.UTC().Add(time.Duration(coords.Lon / 15 * float64(time.Hour)))
	day := time.Date(solar.Year(), solar.Month(), solar.Day(), 0, 0, 0, 0, time.UTC)

	rise, set := sunrise.SunriseSunset(coords.Lat, coords.Lon, day.Year(), day.Month(), day.Day())
	if now.After(rise) && now.Before(set) {
		return rise, set
	}
	for _, offset := range []int{-1, 1} {
		other := day.AddDate(0, 0, offset)
		r, s := sunrise.SunriseSunset(coords.Lat, coords.Lon, other.Year(), other.Month(), other.Day())
		if !r.IsZero() && now.After(r) && now.Before(s) {
			return r, s
		}
	}
	return rise, set
}

func frostRisk(current weather.Instant, upcoming []weather.Instant, imperial bool) bool {
	threshold := temperature(frostCelsius, imperial)
	if current.Temperature <= threshold {
		return true
	}
	for _, instant := range upcoming {
		if instant.Temperature <= threshold {
			return true
		}
	}
	return false
}

// sprayable reports whether every hour of the window has moderate temperatures, calm wind and a
// low chance of rain.
func sprayable(current weather.Instant, upcoming []weather.Instant, imperial bool) bool {
	minTemp := temperature(sprayMinCelsius, imperial)
	maxTemp := temperature(sprayMaxCelsius, imperial)
	maxWind := sprayMaxWindKmh
	if imperial {
		maxWind = sprayMaxWindKmh / 1.609344
	}
	for _, instant := range append([]weather.Instant{current}, upcoming...) {
		if instant.Temperature < minTemp || instant.Temperature > maxTemp {
			return false
		}
		if instant.WindSpeed > maxWind || instant.WindGusts.Or(0) > maxWind*2 {
			return false
		}
		if instant.PrecipitationProbability.Or(0) > sprayMaxPrecipProb {
			return false
		}
	}
	return true
}

func temperature(celsius float64, imperial bool) float64 {
	if imperial {
		return celsius*9/5 + 32
	}
	return celsius
}
