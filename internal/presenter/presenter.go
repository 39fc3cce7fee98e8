// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/vorlif/humanize"
	"github.com/vorlif/humanize/locale/de"
	"github.com/vorlif/spreak"

	"github.com/agricure/agricure-locate/internal/acquisition"
	"github.com/agricure/agricure-locate/internal/advisory"
	"github.com/agricure/agricure-locate/internal/config"
	"github.com/agricure/agricure-locate/internal/geocode"
	"github.com/agricure/agricure-locate/internal/i18n"
)

const OutputClassPrefix = "agricure-"

// Output is one JSON status line as consumed by status bars.
type Output struct {
	Text    string `json:"text"`
	Tooltip string `json:"tooltip"`
	Class   string `json:"class"`
}

// AdvisoryView wraps an advisory with presentation-related fields.
type AdvisoryView struct {
	advisory.Advisory

	Condition     string
	ConditionIcon string
}

type TemplateContext struct {
	Status      acquisition.Status
	StatusIcon  string
	StatusLabel string

	Position  *acquisition.Position
	Error     *acquisition.ErrorInfo
	Request   uint64
	UpdatedAt time.Time

	Address  geocode.Address
	Advisory *AdvisoryView
}

type Presenter struct {
	TextTemplate    *template.Template
	TooltipTemplate *template.Template

	localizer *spreak.Localizer
	humanizer *humanize.Humanizer
}

// New parses the configured templates and renders them once against a sample context, so broken
// templates fail at startup instead of on the first position.
func New(conf *config.Config, localizer *spreak.Localizer) (*Presenter, error) {
	collection := humanize.MustNew(humanize.WithLocale(de.New()))
	pres := &Presenter{
		localizer: localizer,
		humanizer: collection.CreateHumanizer(i18n.Tag(conf.Locale)),
	}

	tpl, err := template.New("text").Funcs(pres.templateFuncMap()).Parse(conf.Templates.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse text template: %w", err)
	}
	pres.TextTemplate = tpl
	tpl, err = template.New("tooltip").Funcs(pres.templateFuncMap()).Parse(conf.Templates.Tooltip)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tooltip template: %w", err)
	}
	pres.TooltipTemplate = tpl

	if _, err = pres.Render(pres.sampleContext()); err != nil {
		return nil, err
	}
	return pres, nil
}

// BuildContext assembles the template context for a state snapshot. addr and adv describe the last
// successful position and may lag behind the snapshot.
func (p *Presenter) BuildContext(state acquisition.State, addr geocode.Address, adv *advisory.Advisory) TemplateContext {
	status := state.Status()
	tplCtx := TemplateContext{
		Status:      status,
		StatusIcon:  statusIcons[status],
		StatusLabel: statusLabels[status],
		Position:    state.Position,
		Error:       state.Error,
		Request:     state.Request,
		UpdatedAt:   state.UpdatedAt,
		Address:     addr,
	}
	if adv != nil {
		view := &AdvisoryView{Advisory: *adv}
		if adv.Weather != nil {
			view.Condition = WMOWeatherCodes[adv.Weather.WeatherCode]
			view.ConditionIcon = WMOWeatherIcons[adv.Weather.WeatherCode][adv.Weather.IsDay]
		}
		tplCtx.Advisory = view
	}
	return tplCtx
}

func (p *Presenter) Render(tplCtx TemplateContext) (Output, error) {
	out := Output{Class: OutputClassPrefix + string(tplCtx.Status)}
	buf := bytes.NewBuffer(nil)

	if err := p.TextTemplate.Execute(buf, tplCtx); err != nil {
		return out, fmt.Errorf("failed to render text template: %w", err)
	}
	out.Text = buf.String()
	buf.Reset()

	if err := p.TooltipTemplate.Execute(buf, tplCtx); err != nil {
		return out, fmt.Errorf("failed to render tooltip template: %w", err)
	}
	out.Tooltip = buf.String()
	return out, nil
}

// Write renders tplCtx and writes it as one JSON line to w.
func (p *Presenter) Write(w io.Writer, tplCtx TemplateContext) error {
	out, err := p.Render(tplCtx)
	if err != nil {
		return err
	}
	if err = json.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("failed to write status line: %w", err)
	}
	return nil
}

func (p *Presenter) sampleContext() TemplateContext {
	now := time.Now()
	state := acquisition.State{
		Position:  &acquisition.Position{Lat: 51.9625, Lng: 7.6256, Accuracy: 10, Source: "sample"},
		Error:     &acquisition.ErrorInfo{Code: acquisition.CodeTimeout, Message: "sample"},
		UpdatedAt: now,
	}
	addr := geocode.Address{AddressFound: true, City: "Münster", Country: "Deutschland"}
	return p.BuildContext(state, addr, &advisory.Advisory{
		GeneratedAt:   now,
		Sunrise:       now,
		Sunset:        now,
		MoonPhase:     "Full Moon",
		MoonPhaseIcon: advisory.MoonPhaseIcon["Full Moon"],
		Hints:         []string{advisory.HintSprayingWindow},
	})
}
