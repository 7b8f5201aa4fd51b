package sim

import (
	"fmt"
	"os"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/camcore/internal/camera"
)

// SensorConfig describes one simulated camera in a sensors file.
type SensorConfig struct {
	ID          string   `toml:"id"`
	Sensor      string   `toml:"sensor"`
	MaxZoom     float64  `toml:"max_zoom"`
	Orientation int      `toml:"orientation"`
	Sizes       []string `toml:"sizes"`
}

type catalogFile struct {
	Sensors []SensorConfig `toml:"sensor"`
}

type catalogEntry struct {
	identity camera.Identity
	chars    camera.Characteristics
}

// Catalog is a fixed set of simulated cameras. It implements
// camera.CharacteristicsSource.
type Catalog struct {
	mu      sync.RWMutex
	entries []catalogEntry
}

// DefaultSensors is the built-in catalog: a 4x back camera mounted at 90
// degrees and a 2x front camera mounted at 270.
func DefaultSensors() []SensorConfig {
	return []SensorConfig{
		{
			ID:          "0",
			Sensor:      string(camera.SensorBack),
			MaxZoom:     4.0,
			Orientation: 90,
			Sizes:       []string{"4032x3024", "1920x1080", "1280x720", "640x480"},
		},
		{
			ID:          "1",
			Sensor:      string(camera.SensorFront),
			MaxZoom:     2.0,
			Orientation: 270,
			Sizes:       []string{"2592x1944", "1280x720", "640x480"},
		},
	}
}

// DefaultCatalog returns a catalog built from DefaultSensors.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultSensors())
	if err != nil {
		panic(err)
	}
	return c
}

// LoadCatalog reads a TOML sensors file. An empty path or a missing file
// yields the default catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultCatalog(), nil
		}
		return nil, fmt.Errorf("failed to read sensors file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a TOML sensors document:
//
//	[[sensor]]
//	id = "0"
//	sensor = "BACK"
//	max_zoom = 4.0
//	orientation = 90
//	sizes = ["1920x1080", "1280x720"]
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sensors file: %w", err)
	}
	return NewCatalog(file.Sensors)
}

// NewCatalog validates sensors and builds a catalog from them.
func NewCatalog(sensors []SensorConfig) (*Catalog, error) {
	if len(sensors) == 0 {
		return nil, fmt.Errorf("no sensors defined")
	}
	seen := make(map[string]bool)
	entries := make([]catalogEntry, 0, len(sensors))
	for i, sc := range sensors {
		if sc.ID == "" {
			return nil, fmt.Errorf("sensor %d: id is required", i)
		}
		if seen[sc.ID] {
			return nil, fmt.Errorf("sensor %d: duplicate id %q", i, sc.ID)
		}
		seen[sc.ID] = true

		role, err := camera.ParseSensor(sc.Sensor)
		if err != nil {
			return nil, fmt.Errorf("sensor %q: %w", sc.ID, err)
		}
		if sc.Orientation%90 != 0 {
			return nil, fmt.Errorf("sensor %q: orientation %d is not a multiple of 90", sc.ID, sc.Orientation)
		}
		maxZoom := sc.MaxZoom
		if maxZoom < 1.0 {
			maxZoom = 1.0
		}
		sizes := make([]camera.Size, 0, len(sc.Sizes))
		for _, raw := range sc.Sizes {
			size, err := camera.ParseSize(raw)
			if err != nil {
				return nil, fmt.Errorf("sensor %q: %w", sc.ID, err)
			}
			sizes = append(sizes, size)
		}
		if len(sizes) == 0 {
			return nil, fmt.Errorf("sensor %q: at least one size is required", sc.ID)
		}

		entries = append(entries, catalogEntry{
			identity: camera.Identity{ID: sc.ID, Sensor: role},
			chars: camera.Characteristics{
				Sizes:       sizes,
				MaxZoom:     maxZoom,
				Orientation: ((sc.Orientation % 360) + 360) % 360,
			},
		})
	}
	return &Catalog{entries: entries}, nil
}

// Choose returns the first camera with the given role.
func (c *Catalog) Choose(sensor camera.Sensor) (camera.Identity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.identity.Sensor == sensor {
			return e.identity, nil
		}
	}
	return camera.Identity{}, fmt.Errorf("no %s camera in catalog", sensor)
}

// Characteristics returns the characteristics of id.
func (c *Catalog) Characteristics(id camera.Identity) (camera.Characteristics, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.identity.ID == id.ID {
			chars := e.chars
			chars.Sizes = append([]camera.Size(nil), e.chars.Sizes...)
			return chars, nil
		}
	}
	return camera.Characteristics{}, fmt.Errorf("unknown camera %q", id.ID)
}

// Identities lists every camera in catalog order.
func (c *Catalog) Identities() []camera.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]camera.Identity, 0, len(c.entries))
	for _, e := range c.entries {
		ids = append(ids, e.identity)
	}
	return ids
}
