package weather

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Units is a user's display preference.
type Units int

const (
	UnitsUnset Units = iota
	Metric
	Imperial
)

func (u Units) String() string {
	switch u {
	case Metric:
		return "metric"
	case Imperial:
		return "imperial"
	default:
		return ""
	}
}

// ParseUnits accepts "metric" or "imperial" in any case.
func ParseUnits(s string) (Units, error) {
	switch strings.ToLower(s) {
	case "metric":
		return Metric, nil
	case "imperial":
		return Imperial, nil
	default:
		return UnitsUnset, fmt.Errorf("unknown units %q", s)
	}
}

// MarshalYAML implements yaml.Marshaler.
func (u Units) MarshalYAML() (any, error) {
	return u.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (u *Units) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*u = UnitsUnset
		return nil
	}
	v, err := ParseUnits(s)
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// userConfig is one user's saved preferences.
type userConfig struct {
	Location string `yaml:"location,omitempty"`
	Units    Units  `yaml:"units,omitempty"`
}

func (c userConfig) empty() bool {
	return c.Location == "" && c.Units == UnitsUnset
}

// db is the per-server preference table, keyed by lowercased nickname.
// Reads take the shared lock; updates hold the exclusive lock while the file is rewritten.
type db struct {
	mu    sync.RWMutex
	path  string
	users map[string]userConfig
}

// openDB loads the table at path. A missing file gives an empty table and found == false.
func openDB(path string) (d *db, found bool, err error) {
	d = &db{path: path, users: make(map[string]userConfig)}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return d, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading weather db: %w", err)
	}
	if err := yaml.Unmarshal(data, &d.users); err != nil {
		return nil, false, fmt.Errorf("parsing weather db %s: %w", path, err)
	}
	if d.users == nil {
		d.users = make(map[string]userConfig)
	}
	return d, true, nil
}

func (d *db) get(nick string) (userConfig, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.users[strings.ToLower(nick)]
	return c, ok
}

func (d *db) len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

// update applies f to nick's entry and writes the table to disk.
// Entries left with no preferences are removed.
func (d *db) update(nick string, f func(*userConfig)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	nick = strings.ToLower(nick)
	c := d.users[nick]
	f(&c)
	if c.empty() {
		delete(d.users, nick)
	} else {
		d.users[nick] = c
	}
	return d.save()
}

// save writes the table through a temporary file. d.mu must be held.
func (d *db) save() error {
	data, err := yaml.Marshal(d.users)
	if err != nil {
		return fmt.Errorf("encoding weather db: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("saving weather db: %w", err)
	}
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("saving weather db: %w", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		return fmt.Errorf("saving weather db: %w", err)
	}
	return nil
}
