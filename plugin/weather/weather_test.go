package weather_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wwared/boton/irc"
	"github.com/wwared/boton/irc/irctest"
	"github.com/wwared/boton/plugin"
	"github.com/wwared/boton/plugin/weather"
)

const londonJSON = `{
	"coord": {"lon": -0.13, "lat": 51.51},
	"weather": [{"id": 800, "main": "Clear", "description": "clear sky", "icon": "01d"}],
	"main": {"temp": 293.15, "feels_like": 292.15, "temp_min": 290.15, "temp_max": 296.15, "pressure": 1012, "humidity": 50},
	"wind": {"speed": 10, "deg": 90},
	"sys": {"country": "GB"},
	"name": "London",
	"cod": 200
}`

func fakeAPIs(t *testing.T) (owm, geo *httptest.Server) {
	owm = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("APPID") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"cod": 401, "message": "Invalid API key"}`)
			return
		}
		if q.Get("q") != "london,uk" && q.Get("id") != "2643743" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"cod": "404", "message": "city not found"}`)
			return
		}
		fmt.Fprint(w, londonJSON)
	}))
	geo = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("username") != "user" || q.Get("lat") != "51.51" || q.Get("lng") != "-0.13" {
			fmt.Fprint(w, `{"status": {"message": "bad request", "value": 14}}`)
			return
		}
		fmt.Fprint(w, `{"time": "2024-01-02 03:04", "timezoneId": "Europe/London"}`)
	}))
	t.Cleanup(owm.Close)
	t.Cleanup(geo.Close)
	return owm, geo
}

func TestNew_requiredKeys(t *testing.T) {
	tt := []struct {
		name string
		cfg  plugin.Config
	}{
		{"no section", nil},
		{"no api user", plugin.Config{weather.KeyAPIKey: "key"}},
		{"no api key", plugin.Config{weather.KeyAPIUser: "user"}},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			_, err := weather.New("test", t.TempDir(), tc.cfg, nil)
			if !errors.Is(err, plugin.ErrMissingKey) {
				t.Errorf("expected ErrMissingKey; got %v", err)
			}
			var be *plugin.BuildError
			if !errors.As(err, &be) || be.Plugin != weather.Name {
				t.Errorf("expected a *plugin.BuildError for %s; got %v", weather.Name, err)
			}
		})
	}

	_, err := weather.New("test", t.TempDir(), plugin.Config{
		weather.KeyAPIKey:  "key",
		weather.KeyAPIUser: "user",
		weather.KeyRate:    "fast",
	}, nil)
	if err == nil {
		t.Errorf("expected an error for an invalid rate")
	}
}

func TestWeather(t *testing.T) {
	owm, geo := fakeAPIs(t)
	dataDir := t.TempDir()

	p, err := weather.New("test", dataDir, plugin.Config{
		weather.KeyAPIKey:  "key",
		weather.KeyAPIUser: "user",
		weather.KeyOWMURL:  owm.URL,
		weather.KeyGeoURL:  geo.URL,
		weather.KeyRate:    "1000",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	server := irctest.NewServer()
	defer server.Close()
	conn := irc.NewConn("test", server)
	client := conn.Client()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn.Start(ctx)
	go func() { _ = p.Run(ctx, client) }()

	tt := []struct {
		say  string
		want string
	}{
		{`\w`, "PRIVMSG #chan :alice: Could not find your saved weather location; try using \\wset first"},
		{`\wset london,uk`, "PRIVMSG #chan :alice: Updated your weather entry to `london,uk`"},
		{`\w`, "PRIVMSG #chan :Weather for alice: 20.0 °C · 17.0⌄ 23.0⌃ (feels like 19.0) 〜 \u2600\uFE0F clear sky 〜 \U0001F4A7 50% 〜 \U0001F4A8 36.0 Km/h E"},
		{`\w id:2643743`, "PRIVMSG #chan :Weather for London, GB: 20.0 °C · 17.0⌄ 23.0⌃ (feels like 19.0) 〜 \u2600\uFE0F clear sky 〜 \U0001F4A7 50% 〜 \U0001F4A8 36.0 Km/h E"},
		{`\w nowhere`, "PRIVMSG #chan :alice: Could not find `nowhere`"},
		{`\w @bob`, "PRIVMSG #chan :alice: Could not find saved weather location for `bob`"},
		{`\t @Alice`, "PRIVMSG #chan :alice: The current time for alice is 2024-01-02 03:04"},
		{`\t london,uk`, "PRIVMSG #chan :alice: The current time in London, GB is 2024-01-02 03:04"},
		{`\units kelvin`, "PRIVMSG #chan :alice: Use \\units [metric|imperial] to set your preference"},
		{`\units imperial`, "PRIVMSG #chan :alice: Updated your units preference to `imperial`"},
		{`\w london,uk`, "PRIVMSG #chan :Weather for London, GB: 68.0 °F · 62.6⌄ 73.4⌃ (feels like 66.2) 〜 \u2600\uFE0F clear sky 〜 \U0001F4A7 50% 〜 \U0001F4A8 22.4 mph E"},
		{`\units`, "PRIVMSG #chan :alice: Removed your saved unit preferences. Set it with \\units [metric|imperial]"},
		{`\wset`, "PRIVMSG #chan :alice: Removed you from the weather database"},
	}
	for _, tc := range tt {
		server.WriteString(":Alice!alice@example.com PRIVMSG #chan :" + tc.say)
		lctx, lcancel := context.WithTimeout(context.Background(), 5*time.Second)
		got, err := server.Next(lctx)
		lcancel()
		if err != nil {
			t.Fatalf("%s: expected a reply: %v", tc.say, err)
		}
		if got != tc.want {
			t.Errorf("%s:\n got: %q\nwant: %q", tc.say, got, tc.want)
		}
	}

	if _, err := os.Stat(filepath.Join(dataDir, "test-weather.yaml")); err != nil {
		t.Errorf("expected preferences to be saved: %v", err)
	}
}

func TestWeather_queryReply(t *testing.T) {
	owm, geo := fakeAPIs(t)
	p, err := weather.New("test", t.TempDir(), plugin.Config{
		weather.KeyAPIKey:  "key",
		weather.KeyAPIUser: "user",
		weather.KeyOWMURL:  owm.URL,
		weather.KeyGeoURL:  geo.URL,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	server := irctest.NewServer()
	defer server.Close()
	conn := irc.NewConn("test", server)
	client := conn.Client()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn.Start(ctx)
	go func() { _ = p.Run(ctx, client) }()

	// server notices and unrelated text are ignored
	server.WriteString(`:irc.example.com NOTICE * :\w london,uk`)
	server.WriteString(`:Bob!bob@example.com PRIVMSG boton :hello`)
	server.WriteString(`:Bob!bob@example.com PRIVMSG boton :\w nowhere`)

	lctx, lcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer lcancel()
	got, err := server.Next(lctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := "PRIVMSG Bob :bob: Could not find `nowhere`"; got != want {
		t.Errorf("got %q; wanted %q", got, want)
	}
}
