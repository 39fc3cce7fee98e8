// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/vorlif/humanize"
	"github.com/vorlif/spreak/localize"
)

func (p *Presenter) templateFuncMap() template.FuncMap {
	return template.FuncMap{
		"coord":         coord,
		"emoji":         EmojiWithSpace,
		"floatFormat":   floatFormat,
		"loc":           p.loc,
		"localizedTime": p.localizedTime,
		"naturalTime":   p.naturalTime,
		"timeFormat":    timeFormat,
		"lc":            strings.ToLower,
		"uc":            strings.ToUpper,
	}
}

func (p *Presenter) loc(val string) string {
	if val == "" {
		return val
	}
	return p.localizer.Get(localize.MsgID(val))
}

func (p *Presenter) localizedTime(val time.Time) string {
	return p.humanizer.FormatTime(val, humanize.TimeFormat)
}

func (p *Presenter) naturalTime(val time.Time) string {
	return p.humanizer.NaturalTime(val)
}

func timeFormat(val time.Time, fmt string) string {
	return val.Format(fmt)
}

func floatFormat(val float64, precision int) string {
	pow := math.Pow(10, float64(precision))
	return fmt.Sprintf("%.*f", precision, math.Trunc(val*pow)/pow)
}

// coord formats a latitude or longitude with four decimals, roughly 11 meters at the equator.
func coord(val float64) string {
	return fmt.Sprintf("%.4f", val)
}

// EmojiWithSpace pads emoji so that wide glyphs do not overlap the following text.
func EmojiWithSpace(emoji string) string {
	if emoji == "" {
		return emoji
	}
	width := runewidth.StringWidth(emoji)
	return emoji + strings.Repeat(" ", max(1, 3-width))
}
