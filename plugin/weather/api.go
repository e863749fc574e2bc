package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	defaultOpenWeatherMapURL = "https://api.openweathermap.org/data/2.5/weather"
	defaultGeoNamesURL       = "http://api.geonames.org/timezoneJSON"

	// responses are small; anything larger is not what we asked for
	maxResponseSize = 1 << 20
)

var errNotFound = errors.New("location not found")

// queryKind selects how OpenWeatherMap interprets a location.
type queryKind int

const (
	querySimple queryKind = iota // city name, "london" or "paris,fr"
	queryID                      // numeric city id, written "id:2643743"
	queryZip                     // US zip code, all digits
)

type query struct {
	kind  queryKind
	value string
}

// parseQuery classifies user input the way OpenWeatherMap expects it.
func parseQuery(s string) query {
	if id, ok := strings.CutPrefix(s, "id:"); ok {
		return query{kind: queryID, value: id}
	}
	if s != "" && strings.Trim(s, "0123456789") == "" {
		return query{kind: queryZip, value: s}
	}
	return query{kind: querySimple, value: s}
}

func (q query) set(v url.Values) {
	switch q.kind {
	case queryID:
		v.Set("id", q.value)
	case queryZip:
		v.Set("zip", q.value)
	default:
		v.Set("q", q.value)
	}
}

// api talks to OpenWeatherMap and GeoNames. Every request waits on a shared limiter.
type api struct {
	http    *http.Client
	limiter *rate.Limiter

	owmURL string
	apiKey string

	geoURL  string
	apiUser string
}

func (a *api) get(ctx context.Context, base string, params url.Values) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, gjson.GetBytes(body, "message").String())
	case !gjson.ValidBytes(body):
		return nil, errors.New("response is not valid JSON")
	}
	return body, nil
}

// current fetches the current weather for q.
func (a *api) current(ctx context.Context, q query) (*report, error) {
	params := url.Values{}
	params.Set("APPID", a.apiKey)
	q.set(params)

	body, err := a.get(ctx, a.owmURL, params)
	if err != nil {
		return nil, fmt.Errorf("openweathermap: %w", err)
	}

	res := gjson.ParseBytes(body)
	main := res.Get("main")
	if !main.Get("temp").Exists() || !res.Get("weather.0").Exists() {
		return nil, fmt.Errorf("openweathermap: %w", errNotFound)
	}
	r := &report{
		Name:        res.Get("name").String(),
		Country:     res.Get("sys.country").String(),
		Lat:         res.Get("coord.lat").Float(),
		Lon:         res.Get("coord.lon").Float(),
		Temp:        main.Get("temp").Float(),
		FeelsLike:   main.Get("feels_like").Float(),
		TempMin:     main.Get("temp_min").Float(),
		TempMax:     main.Get("temp_max").Float(),
		Humidity:    main.Get("humidity").Float(),
		WindSpeed:   res.Get("wind.speed").Float(),
		Description: res.Get("weather.0.description").String(),
		Icon:        res.Get("weather.0.icon").String(),
	}
	if deg := res.Get("wind.deg"); deg.Exists() {
		r.WindDeg = deg.Float()
		r.HasWindDeg = true
	}
	return r, nil
}

// localTime returns the local time at a coordinate as "YYYY-MM-DD HH:MM".
func (a *api) localTime(ctx context.Context, lat, lon float64) (string, error) {
	params := url.Values{}
	params.Set("username", a.apiUser)
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lng", strconv.FormatFloat(lon, 'f', -1, 64))

	body, err := a.get(ctx, a.geoURL, params)
	if err != nil {
		return "", fmt.Errorf("geonames: %w", err)
	}
	t := gjson.GetBytes(body, "time")
	if !t.Exists() {
		return "", fmt.Errorf("geonames: %s", gjson.GetBytes(body, "status.message").String())
	}
	return t.String(), nil
}
