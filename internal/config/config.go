// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kkyr/fig"
)

const (
	configEnv = "AGRICURE"

	CapabilityAuto    = "auto"
	CapabilityGeoClue = "geoclue"
	CapabilityGPSD    = "gpsd"
	CapabilityBus     = "bus"
	CapabilityStatic  = "static"

	GeocoderNominatim = "nominatim"
	GeocoderOpenCage  = "opencage"

	DefaultTextTpl = "{{.StatusIcon}} {{if .Position}}{{coord .Position.Lat}}, {{coord .Position.Lng}}" +
		"{{else}}{{loc .StatusLabel}}{{end}}"
	DefaultTooltipTpl = "{{loc \"Status\"}}: {{loc .StatusLabel}}" +
		"{{if .Address.AddressFound}}\n{{loc \"Location\"}}: {{.Address.City}}, {{.Address.Country}}{{end}}" +
		"{{if .Error}}\n{{loc \"Error\"}}: {{.Error.Message}}{{end}}" +
		"{{if .Advisory}}\n{{loc \"Sunrise\"}}: {{timeFormat .Advisory.Sunrise \"15:04\"}}" +
		"\n{{loc \"Sunset\"}}: {{timeFormat .Advisory.Sunset \"15:04\"}}" +
		"\n{{loc \"Moon phase\"}}: {{.Advisory.MoonPhaseIcon}} {{loc .Advisory.MoonPhase}}" +
		"{{range .Advisory.Hints}}\n• {{loc .}}{{end}}{{end}}" +
		"{{if not .UpdatedAt.IsZero}}\n{{loc \"Last update\"}}: {{naturalTime .UpdatedAt}}{{end}}"
)

var capabilities = []string{CapabilityAuto, CapabilityGeoClue, CapabilityGPSD, CapabilityBus, CapabilityStatic}

// Config represents the application's configuration structure.
type Config struct {
	// Allowed values: metric, imperial
	Units    string     `fig:"units" default:"metric"`
	Locale   string     `fig:"locale"`
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	Acquisition struct {
		StaleGuard bool          `fig:"stale_guard"`
		Timeout    time.Duration `fig:"timeout" default:"30s"`
	} `fig:"acquisition"`

	Intervals struct {
		Request  time.Duration `fig:"request" default:"10m"`
		Advisory time.Duration `fig:"advisory" default:"15m"`
	} `fig:"intervals"`

	GeoLocation struct {
		// Allowed values: auto, geoclue, gpsd, bus, static
		Capability             string  `fig:"capability" default:"auto"`
		File                   string  `fig:"file"`
		CityNameFile           string  `fig:"cityname_file"`
		DesktopID              string  `fig:"desktop_id" default:"agricure-locate"`
		GPSDHost               string  `fig:"gpsd_host" default:"localhost"`
		GPSDPort               string  `fig:"gpsd_port" default:"2947"`
		StaticLat              float64 `fig:"static_lat"`
		StaticLon              float64 `fig:"static_lon"`
		DisableGeolocationFile bool    `fig:"disable_geolocation_file"`
		DisableCityNameFile    bool    `fig:"disable_cityname_file"`
		DisableGPSD            bool    `fig:"disable_gpsd"`
		DisableGeoIP           bool    `fig:"disable_geoip"`
		DisableGeoAPI          bool    `fig:"disable_geoapi"`
		DisableICHNAEA         bool    `fig:"disable_ichnaea"`
	} `fig:"geolocation"`

	GeoCoder struct {
		// Allowed values: nominatim, opencage
		Provider string `fig:"provider" default:"nominatim"`
		APIKey   string `fig:"apikey"`
	} `fig:"geocoder"`

	Store struct {
		Path      string        `fig:"path"`
		Retention time.Duration `fig:"retention" default:"720h"`
	} `fig:"store"`

	API struct {
		Listen  string `fig:"listen" default:"127.0.0.1:8742"`
		Disable bool   `fig:"disable"`
	} `fig:"api"`

	Templates struct {
		Text    string `fig:"text"`
		Tooltip string `fig:"tooltip"`
	} `fig:"templates"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func (c *Config) Validate() error {
	if c.Units != "metric" && c.Units != "imperial" {
		return fmt.Errorf("invalid units: %s", c.Units)
	}
	if c.Locale == "" {
		c.Locale = getLocale()
	}
	if c.Acquisition.Timeout <= 0 {
		return fmt.Errorf("invalid acquisition timeout: %s", c.Acquisition.Timeout)
	}
	if c.Intervals.Request < time.Second {
		return fmt.Errorf("invalid request interval: %s", c.Intervals.Request)
	}
	if c.Intervals.Advisory < time.Minute {
		return fmt.Errorf("invalid advisory interval: %s", c.Intervals.Advisory)
	}

	c.GeoLocation.Capability = strings.ToLower(c.GeoLocation.Capability)
	valid := false
	for _, capability := range capabilities {
		if c.GeoLocation.Capability == capability {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid geolocation capability: %s", c.GeoLocation.Capability)
	}
	if c.GeoLocation.Capability == CapabilityStatic {
		if c.GeoLocation.StaticLat < -90 || c.GeoLocation.StaticLat > 90 ||
			c.GeoLocation.StaticLon < -180 || c.GeoLocation.StaticLon > 180 {
			return fmt.Errorf("invalid static coordinates: %f, %f", c.GeoLocation.StaticLat,
				c.GeoLocation.StaticLon)
		}
	}
	if c.GeoLocation.File == "" {
		home, _ := os.UserHomeDir()
		c.GeoLocation.File = filepath.Join(home, ".config", "agricure-locate", "geolocation")
	}
	if c.GeoLocation.CityNameFile == "" {
		home, _ := os.UserHomeDir()
		c.GeoLocation.CityNameFile = filepath.Join(home, ".config", "agricure-locate", "cityname")
	}

	c.GeoCoder.Provider = strings.ToLower(c.GeoCoder.Provider)
	switch c.GeoCoder.Provider {
	case GeocoderNominatim:
	case GeocoderOpenCage:
		if c.GeoCoder.APIKey == "" {
			return fmt.Errorf("geocoder %s requires an API key", c.GeoCoder.Provider)
		}
	default:
		return fmt.Errorf("invalid geocoder provider: %s", c.GeoCoder.Provider)
	}

	if c.Store.Retention < 0 {
		return fmt.Errorf("invalid store retention: %s", c.Store.Retention)
	}
	if c.Templates.Text == "" {
		c.Templates.Text = DefaultTextTpl
	}
	if c.Templates.Tooltip == "" {
		c.Templates.Tooltip = DefaultTooltipTpl
	}

	return nil
}

func getLocale() string {
	locale := os.Getenv("LC_MESSAGES")
	if idx := strings.Index(locale, "."); idx != -1 {
		lang := locale[:idx]
		return strings.ReplaceAll(lang, "_", "-")
	}
	return locale
}
