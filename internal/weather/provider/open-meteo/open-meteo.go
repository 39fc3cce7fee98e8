// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package openmeteo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hectormalot/omgo"

	"github.com/agricure/agricure-locate/internal/geobus"
	"github.com/agricure/agricure-locate/internal/logger"
	"github.com/agricure/agricure-locate/internal/vartype"
	"github.com/agricure/agricure-locate/internal/weather"
)

const (
	name       = "open-meteo"
	apiTimeout = time.Second * 10
)

const (
	metricTemperature   = "temperature_2m"
	metricApparent      = "apparent_temperature"
	metricWeatherCode   = "weather_code"
	metricWindSpeed     = "wind_speed_10m"
	metricWindGusts     = "wind_gusts_10m"
	metricWindDirection = "wind_direction_10m"
	metricHumidity      = "relative_humidity_2m"
	metricPrecipProb    = "precipitation_probability"
	metricIsDay         = "is_day"
)

var hourlyMetrics = []string{
	metricTemperature, metricApparent, metricWeatherCode, metricWindSpeed, metricWindGusts,
	metricWindDirection, metricHumidity, metricPrecipProb, metricIsDay,
}

var ErrLoggerRequired = errors.New("logger is required")

type forecastFunc func(ctx context.Context, loc omgo.Location, opts *omgo.Options) (*omgo.Forecast, error)

type OpenMeteo struct {
	unit       string
	log        *logger.Logger
	forecastFn forecastFunc
}

func New(log *logger.Logger, unit string) (*OpenMeteo, error) {
	if log == nil {
		return nil, ErrLoggerRequired
	}
	client, err := omgo.NewClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create Open-Meteo client: %w", err)
	}

	return &OpenMeteo{unit: unit, log: log, forecastFn: client.Forecast}, nil
}

func (o *OpenMeteo) Name() string {
	return name
}

func (o *OpenMeteo) GetWeather(ctx context.Context, coords geobus.Coordinate) (*weather.Data, error) {
	ctxFetch, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	location, err := omgo.NewLocation(coords.Lat, coords.Lon)
	if err != nil {
		return nil, fmt.Errorf("failed to create Open-Meteo location from coordinates: %w", err)
	}
	opts := &omgo.Options{
		PastDays:      1,
		Timezone:      "auto",
		HourlyMetrics: hourlyMetrics,
	}
	switch strings.ToLower(o.unit) {
	case "imperial":
		opts.TemperatureUnit = "fahrenheit"
		opts.PrecipitationUnit = "inch"
		opts.WindspeedUnit = "mph"
	default:
		opts.TemperatureUnit = "celsius"
		opts.PrecipitationUnit = "mm"
		opts.WindspeedUnit = "kmh"
	}

	forecast, err := o.forecastFn(ctxFetch, location, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve weather data from Open-Meteo API: %w", err)
	}
	if forecast == nil {
		return nil, errors.New("Open-Meteo API returned an empty forecast")
	}
	data := dataFromForecast(forecast, coords, time.Now())
	o.log.Debug("weather data retrieved", slog.String("provider", name),
		slog.Int("forecast_hours", len(data.Forecast)), slog.Float64("temperature", data.Current.Temperature))
	return data, nil
}

// dataFromForecast converts an Open-Meteo forecast. Readings the current weather block lacks are
// taken from the hourly series at now.
func dataFromForecast(forecast *omgo.Forecast, coords geobus.Coordinate, now time.Time) *weather.Data {
	data := weather.NewData()
	data.GeneratedAt = now
	data.Coordinates = coords
	units := weather.Units{
		Temperature: forecast.HourlyUnits[metricTemperature],
		WindSpeed:   forecast.HourlyUnits[metricWindSpeed],
	}

	current := -1
	nowHour := weather.NewDayHour(now)
	for i, hourTime := range forecast.HourlyTimes {
		hour := weather.NewDayHour(hourTime)
		if hour == nowHour {
			current = i
		}
		data.Forecast[hour] = weather.Instant{
			InstantTime:              hour.Time(),
			Temperature:              metric(forecast, metricTemperature, i).Value(),
			ApparentTemperature:      metric(forecast, metricApparent, i),
			WeatherCode:              int(metric(forecast, metricWeatherCode, i).Value()),
			WindSpeed:                metric(forecast, metricWindSpeed, i).Value(),
			WindGusts:                metric(forecast, metricWindGusts, i),
			WindDirection:            metric(forecast, metricWindDirection, i).Value(),
			RelativeHumidity:         metric(forecast, metricHumidity, i),
			PrecipitationProbability: metric(forecast, metricPrecipProb, i),
			IsDay:                    metric(forecast, metricIsDay, i).Or(1) != 0,
			Units:                    units,
		}
	}

	instantTime := forecast.CurrentWeather.Time.Time
	if instantTime.IsZero() {
		instantTime = now
	}
	data.Current = weather.Instant{
		InstantTime:   instantTime,
		Temperature:   forecast.CurrentWeather.Temperature,
		WeatherCode:   int(forecast.CurrentWeather.WeatherCode),
		WindSpeed:     forecast.CurrentWeather.WindSpeed,
		WindDirection: forecast.CurrentWeather.WindDirection,
		IsDay:         true,
		Units:         units,
	}
	if current >= 0 {
		data.Current.ApparentTemperature = metric(forecast, metricApparent, current)
		data.Current.WindGusts = metric(forecast, metricWindGusts, current)
		data.Current.RelativeHumidity = metric(forecast, metricHumidity, current)
		data.Current.PrecipitationProbability = metric(forecast, metricPrecipProb, current)
		data.Current.IsDay = metric(forecast, metricIsDay, current).Or(1) != 0
	}
	return data
}

func metric(forecast *omgo.Forecast, metricName string, i int) vartype.VarFloat64 {
	values, ok := forecast.HourlyMetrics[metricName]
	if !ok || i >= len(values) {
		return vartype.VarFloat64{}
	}
	return vartype.NewVariable(values[i])
}
