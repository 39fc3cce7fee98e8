// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/vorlif/spreak"

	"github.com/agricure/agricure-locate/internal/acquisition"
	"github.com/agricure/agricure-locate/internal/advisory"
	"github.com/agricure/agricure-locate/internal/config"
	"github.com/agricure/agricure-locate/internal/geocode"
	"github.com/agricure/agricure-locate/internal/i18n"
	"github.com/agricure/agricure-locate/internal/weather"
)

var (
	addr = geocode.Address{
		AddressFound: true,
		Latitude:     51.9625,
		Longitude:    7.6256,
		City:         "Münster",
		Country:      "Deutschland",
		DisplayName:  "Münster, Nordrhein-Westfalen, Deutschland",
	}
	sunriseTime = time.Date(2026, 1, 18, 7, 1, 2, 0, time.UTC)
	sunsetTime  = time.Date(2026, 1, 18, 17, 39, 41, 0, time.UTC)
	adv         = &advisory.Advisory{
		Sunrise:       sunriseTime,
		Sunset:        sunsetTime,
		MoonPhase:     "Waxing Gibbous",
		MoonPhaseIcon: "🌔",
		Weather:       &weather.Instant{Temperature: 4.5, WeatherCode: 45, IsDay: true},
		Hints:         []string{advisory.HintFrostRisk},
	}
	located = acquisition.State{
		Position: &acquisition.Position{Lat: 51.9625, Lng: 7.6256, Accuracy: 12, Source: "geoclue"},
		Request:  3,
	}
)

func TestNew(t *testing.T) {
	t.Run("creating a new presenter succeeds", func(t *testing.T) {
		conf, lang := testConfLang(t, "en")
		pres, err := New(conf, lang)
		if err != nil {
			t.Fatalf("failed to create presenter: %s", err)
		}
		if pres == nil {
			t.Fatal("expected presenter to be non-nil")
		}
	})
	t.Run("creating presenter with invalid templates fails", func(t *testing.T) {
		tests := []struct {
			name       string
			templateFn func(conf *config.Config)
		}{
			{"text", func(conf *config.Config) { conf.Templates.Text = "{{invalid" }},
			{"tooltip", func(conf *config.Config) { conf.Templates.Tooltip = "{{invalid" }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				conf, lang := testConfLang(t, "en")
				tt.templateFn(conf)
				_, err := New(conf, lang)
				if err == nil {
					t.Fatal("expected presenter to fail, but didn't")
				}
				wantErr := "failed to parse"
				if !strings.Contains(err.Error(), wantErr) {
					t.Errorf("expected error to contain %q, got %q", wantErr, err)
				}
			})
		}
	})
	t.Run("creating presenter with template execution errors fails", func(t *testing.T) {
		tests := []struct {
			name       string
			templateFn func(conf *config.Config)
		}{
			{"text", func(conf *config.Config) { conf.Templates.Text = "{{.Data}}" }},
			{"tooltip", func(conf *config.Config) { conf.Templates.Tooltip = "{{.Data}}" }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				conf, lang := testConfLang(t, "en")
				tt.templateFn(conf)
				_, err := New(conf, lang)
				if err == nil {
					t.Fatal("expected presenter to fail, but didn't")
				}
				wantErr := "failed to render"
				if !strings.Contains(err.Error(), wantErr) {
					t.Errorf("expected error to contain %q, got %q", wantErr, err)
				}
			})
		}
	})
}

func TestPresenter_BuildContext(t *testing.T) {
	conf, lang := testConfLang(t, "en")
	pres, err := New(conf, lang)
	if err != nil {
		t.Fatalf("failed to create presenter: %s", err)
	}

	t.Run("status icon and label follow the derived status", func(t *testing.T) {
		tests := []struct {
			name   string
			state  acquisition.State
			status acquisition.Status
			label  string
		}{
			{"idle", acquisition.State{}, acquisition.StatusIdle, "Idle"},
			{"loading", acquisition.State{IsLoading: true}, acquisition.StatusLoading, "Locating"},
			{"success", located, acquisition.StatusSuccess, "Located"},
			{
				"error", acquisition.State{Error: &acquisition.ErrorInfo{Code: acquisition.CodeTimeout}},
				acquisition.StatusError, "Location unavailable",
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tplCtx := pres.BuildContext(tt.state, geocode.Address{}, nil)
				if tplCtx.Status != tt.status {
					t.Errorf("expected status to be %s, got %s", tt.status, tplCtx.Status)
				}
				if tplCtx.StatusLabel != tt.label {
					t.Errorf("expected status label to be %q, got %q", tt.label, tplCtx.StatusLabel)
				}
				if tplCtx.StatusIcon != statusIcons[tt.status] {
					t.Errorf("expected status icon to be %q, got %q", statusIcons[tt.status], tplCtx.StatusIcon)
				}
			})
		}
	})
	t.Run("advisory weather is described", func(t *testing.T) {
		tplCtx := pres.BuildContext(located, addr, adv)
		if tplCtx.Advisory == nil {
			t.Fatal("expected advisory to be set")
		}
		if tplCtx.Advisory.Condition != "Fog" {
			t.Errorf("expected condition to be %q, got %q", "Fog", tplCtx.Advisory.Condition)
		}
		if tplCtx.Advisory.ConditionIcon != "🌫️" {
			t.Errorf("expected condition icon to be %q, got %q", "🌫️", tplCtx.Advisory.ConditionIcon)
		}
		if tplCtx.Request != located.Request {
			t.Errorf("expected request to be %d, got %d", located.Request, tplCtx.Request)
		}
	})
	t.Run("missing advisory leaves the view empty", func(t *testing.T) {
		tplCtx := pres.BuildContext(located, addr, nil)
		if tplCtx.Advisory != nil {
			t.Error("expected advisory to be nil")
		}
	})
}

func TestPresenter_Render(t *testing.T) {
	t.Run("rendering a located position succeeds", func(t *testing.T) {
		conf, lang := testConfLang(t, "en")
		pres, err := New(conf, lang)
		if err != nil {
			t.Fatalf("failed to create presenter: %s", err)
		}
		out, err := pres.Render(pres.BuildContext(located, addr, adv))
		if err != nil {
			t.Fatalf("failed to render: %s", err)
		}
		wantText := "📍 51.9625, 7.6256"
		wantTooltip := `Status: Located
Location: Münster, Deutschland
Sunrise: 07:01
Sunset: 17:39
Moon phase: 🌔 Waxing Gibbous
• Frost risk in the next 12 hours`
		if out.Text != wantText {
			t.Errorf("expected text output to be %q, got %q", wantText, out.Text)
		}
		if out.Tooltip != wantTooltip {
			t.Errorf("expected tooltip output to be %q, got %q", wantTooltip, out.Tooltip)
		}
		if out.Class != "agricure-success" {
			t.Errorf("expected class to be %q, got %q", "agricure-success", out.Class)
		}
	})
	t.Run("rendering a failure shows the error", func(t *testing.T) {
		conf, lang := testConfLang(t, "en")
		pres, err := New(conf, lang)
		if err != nil {
			t.Fatalf("failed to create presenter: %s", err)
		}
		info := acquisition.NewErrorInfo(acquisition.CodePermissionDenied, "user denied geolocation")
		out, err := pres.Render(pres.BuildContext(acquisition.State{Error: &info}, geocode.Address{}, nil))
		if err != nil {
			t.Fatalf("failed to render: %s", err)
		}
		if out.Text != "⚠️ Location unavailable" {
			t.Errorf("unexpected text output: %q", out.Text)
		}
		wantTooltip := "Status: Location unavailable\nError: user denied geolocation"
		if out.Tooltip != wantTooltip {
			t.Errorf("expected tooltip output to be %q, got %q", wantTooltip, out.Tooltip)
		}
		if out.Class != "agricure-error" {
			t.Errorf("expected class to be %q, got %q", "agricure-error", out.Class)
		}
	})
	t.Run("rendering in german is localized", func(t *testing.T) {
		conf, lang := testConfLang(t, "de")
		pres, err := New(conf, lang)
		if err != nil {
			t.Fatalf("failed to create presenter: %s", err)
		}
		out, err := pres.Render(pres.BuildContext(acquisition.State{IsLoading: true}, geocode.Address{}, nil))
		if err != nil {
			t.Fatalf("failed to render: %s", err)
		}
		if out.Text != "⏳ Standort wird ermittelt" {
			t.Errorf("unexpected text output: %q", out.Text)
		}
	})
	t.Run("recent updates are rendered as natural time", func(t *testing.T) {
		conf, lang := testConfLang(t, "en")
		pres, err := New(conf, lang)
		if err != nil {
			t.Fatalf("failed to create presenter: %s", err)
		}
		state := located
		state.UpdatedAt = time.Now()
		out, err := pres.Render(pres.BuildContext(state, geocode.Address{}, nil))
		if err != nil {
			t.Fatalf("failed to render: %s", err)
		}
		if !strings.Contains(out.Tooltip, "Last update: ") {
			t.Errorf("expected last update line, got %q", out.Tooltip)
		}
	})
}

func TestPresenter_Write(t *testing.T) {
	conf, lang := testConfLang(t, "en")
	pres, err := New(conf, lang)
	if err != nil {
		t.Fatalf("failed to create presenter: %s", err)
	}
	buf := bytes.NewBuffer(nil)
	if err = pres.Write(buf, pres.BuildContext(acquisition.State{}, geocode.Address{}, nil)); err != nil {
		t.Fatalf("failed to write status line: %s", err)
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("expected status line to end with a newline")
	}
	var out Output
	if err = json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("failed to unmarshal status line: %s", err)
	}
	if out.Class != "agricure-idle" || out.Text != "⏸️ Idle" {
		t.Errorf("unexpected status line: %+v", out)
	}
}

func TestPresenter_loc(t *testing.T) {
	t.Run("localized german value is found", func(t *testing.T) {
		conf, lang := testConfLang(t, "de-DE")
		pres, err := New(conf, lang)
		if err != nil {
			t.Fatalf("failed to create presenter: %s", err)
		}
		want := "Vollmond"
		if got := pres.loc("Full Moon"); got != want {
			t.Errorf("failed to get localized value: got %s, want %s", got, want)
		}
	})
	t.Run("unknown values are returned verbatim", func(t *testing.T) {
		conf, lang := testConfLang(t, "de")
		pres, err := New(conf, lang)
		if err != nil {
			t.Fatalf("failed to create presenter: %s", err)
		}
		want := "foobar"
		if got := pres.loc("foobar"); got != want {
			t.Errorf("failed to get localized value: got %s, want %s", got, want)
		}
	})
}

func TestFloatFormat(t *testing.T) {
	tests := []struct {
		name string
		val  float64
		prec int
		want string
	}{
		{"0.0", 0.0, 0, "0"},
		{"0.4", 0.4, 1, "0.4"},
		{"0.1234", 0.1234, 4, "0.1234"},
		{"0.123", 0.1234, 3, "0.123"},
		{"1.99 is truncated", 1.99, 1, "1.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := floatFormat(tt.val, tt.prec); got != tt.want {
				t.Errorf("failed to format float: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCoord(t *testing.T) {
	if got := coord(-33.868819); got != "-33.8688" {
		t.Errorf("failed to format coordinate: got %s, want %s", got, "-33.8688")
	}
}

func TestEmojiWithSpace(t *testing.T) {
	t.Run("empty strings stay empty", func(t *testing.T) {
		if got := EmojiWithSpace(""); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
	t.Run("emoji are followed by padding", func(t *testing.T) {
		got := EmojiWithSpace("📍")
		if !strings.HasPrefix(got, "📍 ") {
			t.Errorf("expected padded emoji, got %q", got)
		}
	})
}

func testConfLang(t *testing.T, locale string) (*config.Config, *spreak.Localizer) {
	t.Helper()
	conf, err := config.New()
	if err != nil {
		t.Fatalf("failed to create config: %s", err)
	}
	conf.Locale = locale
	lang, err := i18n.New(conf.Locale)
	if err != nil {
		t.Fatalf("failed to create i18n provider: %s", err)
	}
	return conf, lang
}
