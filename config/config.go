// Package config loads the bot configuration from a TOML file and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/wwared/boton/irc"
)

// Environment variables that override the file.
const (
	EnvLogLevel     = "BOTON_LOG_LEVEL"
	EnvDataDir      = "BOTON_DATA_DIR"
	EnvPluginPrefix = "BOTON_PLUGIN_"
)

const (
	defaultLogLevel = "info"
	defaultDataDir  = "data"
	defaultPort     = 6667
	defaultTLSPort  = 6697
)

// ErrNoServers is returned when the configuration lists no servers.
var ErrNoServers = errors.New("no servers configured")

// ParseError describes a configuration file that could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing config %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Config is the whole process configuration.
type Config struct {
	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `toml:"log_level"`

	// DataDir holds plugin state such as the weather preference database.
	DataDir string `toml:"data_dir"`

	Servers []Server `toml:"servers"`

	// Plugins holds the settings shared by every server, keyed by plugin name.
	Plugins map[string]map[string]any `toml:"plugins"`
}

// Server configures one bot instance.
type Server struct {
	// Name labels the server in logs and state files. It defaults to Host.
	Name string `toml:"name"`

	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	TLS       bool   `toml:"tls"`
	VerifyTLS bool   `toml:"verify_tls"`

	Nick     string   `toml:"nick"`
	Ident    string   `toml:"ident"`
	RealName string   `toml:"real_name"`
	Channels []string `toml:"channels"`

	// Encoding names the charset of the stream; empty means UTF-8.
	Encoding string `toml:"encoding"`

	// DebugWire copies the raw stream to stderr.
	DebugWire bool `toml:"debug_wire"`

	// ReconnectDelay is waited before redialing after a failure. Zero redials at once.
	ReconnectDelay Duration `toml:"reconnect_delay"`

	// Plugins, when set, replaces the default set of enabled plugins.
	Plugins []string `toml:"plugins"`

	// PluginConfig overrides Config.Plugins for this server.
	PluginConfig map[string]map[string]any `toml:"plugin_config"`
}

// Label returns the name used for logs and state files.
func (s *Server) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Host
}

// Addr returns the "host:port" to dial.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Duration is a time.Duration written as a string such as "30s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Load reads the file at path, applies environment overrides and defaults,
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return parse(path, data, os.Environ())
}

// Parse decodes data as a configuration file, without reading the environment.
func Parse(data []byte) (*Config, error) {
	return parse("<bytes>", data, nil)
}

func parse(source string, data []byte, environ []string) (*Config, error) {
	c := new(Config)
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return nil, &ParseError{Path: source, Err: err}
	}
	c.applyEnv(environ)
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// applyEnv overrides settings from environment entries in "KEY=value" form.
//
// BOTON_PLUGIN_<NAME>_<KEY> sets a global plugin key. NAME is lowercased;
// KEY is lowercased with underscores turned into dashes, so
// BOTON_PLUGIN_WEATHER_OPENWEATHERMAP_APIKEY sets weather.openweathermap-apikey.
func (c *Config) applyEnv(environ []string) {
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch {
		case k == EnvLogLevel:
			c.LogLevel = v
		case k == EnvDataDir:
			c.DataDir = v
		case strings.HasPrefix(k, EnvPluginPrefix):
			name, key, ok := strings.Cut(strings.TrimPrefix(k, EnvPluginPrefix), "_")
			if !ok || name == "" || key == "" {
				continue
			}
			name = strings.ToLower(name)
			key = strings.ReplaceAll(strings.ToLower(key), "_", "-")
			if c.Plugins == nil {
				c.Plugins = make(map[string]map[string]any)
			}
			if c.Plugins[name] == nil {
				c.Plugins[name] = make(map[string]any)
			}
			c.Plugins[name][key] = v
		}
	}
}

func (c *Config) validate() error {
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if len(c.Servers) == 0 {
		return ErrNoServers
	}
	for i := range c.Servers {
		s := &c.Servers[i]
		if s.Host == "" {
			return fmt.Errorf("servers[%d]: host is required", i)
		}
		if s.Nick == "" {
			return fmt.Errorf("server %s: nick is required", s.Label())
		}
		if strings.ContainsRune(s.Nick, ' ') {
			return fmt.Errorf("server %s: nick cannot contain spaces", s.Label())
		}
		if s.Port == 0 {
			s.Port = defaultPort
			if s.TLS {
				s.Port = defaultTLSPort
			}
		}
		if s.Ident == "" {
			s.Ident = s.Nick
		}
		if s.RealName == "" {
			s.RealName = s.Nick
		}
		if _, err := irc.LookupEncoding(s.Encoding); err != nil {
			return fmt.Errorf("server %s: %w", s.Label(), err)
		}
		if s.ReconnectDelay.Duration < 0 {
			return fmt.Errorf("server %s: reconnect_delay cannot be negative", s.Label())
		}
	}
	return nil
}

// PluginConfig returns the merged settings of plugin name for s: the global
// section overlaid with the server's own. It returns nil when neither section exists.
// Non-string TOML values are formatted with fmt.
func (c *Config) PluginConfig(s *Server, name string) map[string]string {
	global, hasGlobal := c.Plugins[name]
	local, hasLocal := s.PluginConfig[name]
	if !hasGlobal && !hasLocal {
		return nil
	}
	out := make(map[string]string, len(global)+len(local))
	for k, v := range global {
		out[k] = fmt.Sprint(v)
	}
	for k, v := range local {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// ParseLevel maps a level name to a slog level. "trace" enables wire logging.
func ParseLevel(s string) (slog.Level, error) {
	if strings.EqualFold(s, "trace") {
		return irc.LevelTrace, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}
