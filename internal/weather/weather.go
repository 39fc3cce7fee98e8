// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package weather

import (
	"context"
	"sort"
	"time"

	"github.com/agricure/agricure-locate/internal/geobus"
	"github.com/agricure/agricure-locate/internal/vartype"
)

// Provider is implemented by each weather API backend.
type Provider interface {
	Name() string
	GetWeather(ctx context.Context, coords geobus.Coordinate) (*Data, error)
}

type Data struct {
	GeneratedAt time.Time
	Coordinates geobus.Coordinate

	Current  Instant
	Forecast map[DayHour]Instant
}

// Instant is a weather reading for one point in time. Readings not every backend offers are
// optional.
type Instant struct {
	InstantTime              time.Time          `json:"time"`
	Temperature              float64            `json:"temperature"`
	ApparentTemperature      vartype.VarFloat64 `json:"apparent_temperature"`
	WeatherCode              int                `json:"weather_code"`
	WindSpeed                float64            `json:"wind_speed"`
	WindGusts                vartype.VarFloat64 `json:"wind_gusts"`
	WindDirection            float64            `json:"wind_direction"`
	RelativeHumidity         vartype.VarFloat64 `json:"relative_humidity"`
	PrecipitationProbability vartype.VarFloat64 `json:"precipitation_probability"`
	IsDay                    bool               `json:"is_day"`
	Units                    Units              `json:"units"`
}

type Units struct {
	Temperature string `json:"temperature"`
	WindSpeed   string `json:"wind_speed"`
}

type DayHour int64

func NewData() *Data {
	return &Data{
		Forecast: make(map[DayHour]Instant),
	}
}

func NewDayHour(t time.Time) DayHour {
	return DayHour(t.Truncate(time.Hour).Unix())
}

func (t DayHour) Time() time.Time {
	return time.Unix(int64(t), 0)
}

// Upcoming returns the forecast hours in [from, from+window), oldest first.
func (d *Data) Upcoming(from time.Time, window time.Duration) []Instant {
	if d == nil {
		return nil
	}
	start := NewDayHour(from)
	end := NewDayHour(from.Add(window))
	instants := make([]Instant, 0, int(window/time.Hour)+1)
	for hour, instant := range d.Forecast {
		if hour >= start && hour < end {
			instants = append(instants, instant)
		}
	}
	sort.Slice(instants, func(i, j int) bool {
		return instants[i].InstantTime.Before(instants[j].InstantTime)
	})
	return instants
}
