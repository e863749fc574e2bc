package weather

import (
	"fmt"
	"strconv"
	"strings"
)

// report is the subset of an OpenWeatherMap "current weather" response the bot prints.
// Temperatures are in Kelvin and wind speed in meters per second, as returned by the API.
type report struct {
	Name    string
	Country string
	Lat     float64
	Lon     float64

	Temp      float64
	FeelsLike float64
	TempMin   float64
	TempMax   float64
	Humidity  float64

	WindSpeed  float64
	WindDeg    float64
	HasWindDeg bool

	Description string
	Icon        string
}

func (u Units) temperatureUnit() string {
	if u == Imperial {
		return "°F"
	}
	return "°C"
}

func (u Units) speedUnit() string {
	if u == Imperial {
		return "mph"
	}
	return "Km/h"
}

func convertTemp(kelvin float64, u Units) float64 {
	c := kelvin - 273.15
	if u == Imperial {
		return c*9/5 + 32
	}
	return c
}

func convertSpeed(metersPerSec float64, u Units) float64 {
	if u == Imperial {
		return metersPerSec * 2.237
	}
	return metersPerSec * 3.6
}

var windDirections = [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// windDirection returns the compass point for degrees, or "" when out of range.
func windDirection(degrees float64) string {
	if degrees < 0 || degrees > 360 {
		return ""
	}
	return windDirections[int((degrees+22.5)/45)%len(windDirections)]
}

var icons = map[string]string{
	"01d": "\u2600\uFE0F",     // sun
	"01n": "\U0001F319",       // moon
	"02d": "\u26C5",           // sun behind cloud
	"02n": "\u2601\uFE0F",     // cloud
	"03d": "\u2601\uFE0F",
	"03n": "\u2601\uFE0F",
	"04d": "\u2601\uFE0F",
	"04n": "\u2601\uFE0F",
	"09d": "\U0001F327\uFE0F", // cloud with rain
	"09n": "\U0001F327\uFE0F",
	"10n": "\U0001F327\uFE0F",
	"10d": "\U0001F326\uFE0F", // sun behind cloud with rain
	"11d": "\U0001F329\uFE0F", // cloud with lightning
	"11n": "\U0001F329\uFE0F",
	"13d": "\U0001F328\uFE0F", // cloud with snow
	"13n": "\U0001F328\uFE0F",
	"50d": "\U0001F32B\uFE0F", // fog
	"50n": "\U0001F32B\uFE0F",
}

// country returns the ISO country code of the report, or "??".
func (r *report) country() string {
	if r.Country == "" {
		return "??"
	}
	return r.Country
}

// defaultUnits picks imperial for the US and metric elsewhere.
func (r *report) defaultUnits() Units {
	if r.Country == "US" {
		return Imperial
	}
	return Metric
}

// format renders the report in one line. units may be UnitsUnset to use the
// location's default. who replaces the place name when the lookup was for a saved user.
func (r *report) format(units Units, who string) string {
	if units == UnitsUnset {
		units = r.defaultUnits()
	}
	prefix := who
	if prefix == "" {
		prefix = r.Name + ", " + r.country()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Weather for %s: %.1f %s · %.1f⌄ %.1f⌃ (feels like %.1f)",
		prefix,
		convertTemp(r.Temp, units), units.temperatureUnit(),
		convertTemp(r.TempMin, units),
		convertTemp(r.TempMax, units),
		convertTemp(r.FeelsLike, units),
	)

	if icon, ok := icons[r.Icon]; ok {
		fmt.Fprintf(&b, " 〜 %s %s", icon, r.Description)
	} else {
		fmt.Fprintf(&b, " 〜 %s", r.Description)
	}

	fmt.Fprintf(&b, " 〜 \U0001F4A7 %s%%", strconv.FormatFloat(r.Humidity, 'f', -1, 64))

	dir := ""
	if r.HasWindDeg {
		if d := windDirection(r.WindDeg); d != "" {
			dir = " " + d
		}
	}
	fmt.Fprintf(&b, " 〜 \U0001F4A8 %.1f %s%s", convertSpeed(r.WindSpeed, units), units.speedUnit(), dir)

	return b.String()
}
