package zone

import (
	"fmt"
	"image"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a zones file. Zones are a list so their
// declared order survives decoding.
//
//	zones:
//	  - name: Counter 1
//	    polygon: [[100, 200], [300, 200], [300, 450], [100, 450]]
type File struct {
	Zones []Definition `yaml:"zones"`
}

// Definition is a single zone as written in a zones file.
type Definition struct {
	Name    string  `yaml:"name"`
	Polygon [][]int `yaml:"polygon"`
}

// LoadFile reads and validates a zones file.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zones file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML zone definitions into a validated Set.
func Parse(data []byte) (*Set, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if len(f.Zones) == 0 {
		return nil, fmt.Errorf("%w: no zones defined", ErrConfiguration)
	}

	zones := make([]Zone, 0, len(f.Zones))
	for _, def := range f.Zones {
		pts := make([]image.Point, 0, len(def.Polygon))
		for i, c := range def.Polygon {
			if len(c) != 2 {
				return nil, fmt.Errorf("%w: zone %q point %d must be [x, y]", ErrConfiguration, def.Name, i)
			}
			pts = append(pts, image.Pt(c[0], c[1]))
		}
		zones = append(zones, Zone{Name: def.Name, Polygon: pts})
	}

	return NewSet(zones)
}

// Default returns the three billing counters of the reference store layout.
func Default() *Set {
	s, err := NewSet([]Zone{
		{Name: "Counter 1", Polygon: []image.Point{{100, 200}, {300, 200}, {300, 450}, {100, 450}}},
		{Name: "Counter 2", Polygon: []image.Point{{700, 220}, {900, 220}, {900, 470}, {700, 470}}},
		{Name: "Counter 3", Polygon: []image.Point{{1300, 200}, {1500, 200}, {1500, 620}, {1300, 620}}},
	})
	if err != nil {
		panic(err)
	}
	return s
}
