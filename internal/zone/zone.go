// Package zone holds the static counter regions a camera view is divided into.
//
// Polygons are expected to be simple (non self-intersecting). That is not
// checked; a self-intersecting polygon gives undefined containment results.
package zone

import (
	"errors"
	"fmt"
	"image"
)

// ErrConfiguration is returned for zone sets that cannot be used.
var ErrConfiguration = errors.New("invalid zone configuration")

// Zone is a named counter region.
type Zone struct {
	Name    string
	Polygon []image.Point
}

// Contains reports whether p lies inside the polygon or exactly on its edge.
func (z Zone) Contains(p image.Point) bool {
	n := len(z.Polygon)
	if n < 3 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := z.Polygon[j], z.Polygon[i]
		if onSegment(a, b, p) {
			return true
		}
		if (b.Y > p.Y) == (a.Y > p.Y) {
			continue
		}
		// p.X < x of the edge at height p.Y, kept in integers.
		dy := int64(a.Y - b.Y)
		lhs := int64(p.X-b.X) * dy
		rhs := int64(p.Y-b.Y) * int64(a.X-b.X)
		if (dy > 0 && lhs < rhs) || (dy < 0 && lhs > rhs) {
			inside = !inside
		}
	}
	return inside
}

// Bounds returns the smallest rectangle containing every vertex.
// Max is exclusive, as with image.Rectangle.
func (z Zone) Bounds() image.Rectangle {
	if len(z.Polygon) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: z.Polygon[0], Max: z.Polygon[0]}
	for _, p := range z.Polygon[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	r.Max = r.Max.Add(image.Pt(1, 1))
	return r
}

func onSegment(a, b, p image.Point) bool {
	cross := int64(b.X-a.X)*int64(p.Y-a.Y) - int64(b.Y-a.Y)*int64(p.X-a.X)
	if cross != 0 {
		return false
	}
	return p.X >= min(a.X, b.X) && p.X <= max(a.X, b.X) &&
		p.Y >= min(a.Y, b.Y) && p.Y <= max(a.Y, b.Y)
}

// Set is an ordered collection of zones. Order is the match priority.
type Set struct {
	zones []Zone
}

// NewSet validates zones and returns them as a Set in the given order.
func NewSet(zones []Zone) (*Set, error) {
	seen := make(map[string]bool, len(zones))
	copied := make([]Zone, 0, len(zones))

	for i, z := range zones {
		if z.Name == "" {
			return nil, fmt.Errorf("%w: zone %d has no name", ErrConfiguration, i)
		}
		if seen[z.Name] {
			return nil, fmt.Errorf("%w: duplicate zone name %q", ErrConfiguration, z.Name)
		}
		if len(z.Polygon) < 3 {
			return nil, fmt.Errorf("%w: zone %q needs at least 3 points, got %d", ErrConfiguration, z.Name, len(z.Polygon))
		}
		seen[z.Name] = true

		pts := make([]image.Point, len(z.Polygon))
		copy(pts, z.Polygon)
		copied = append(copied, Zone{Name: z.Name, Polygon: pts})
	}

	return &Set{zones: copied}, nil
}

// Match returns the first zone, in declared order, containing p.
func (s *Set) Match(p image.Point) (Zone, bool) {
	for _, z := range s.zones {
		if z.Contains(p) {
			return z, true
		}
	}
	return Zone{}, false
}

// Zones returns a copy of the zones in declared order.
func (s *Set) Zones() []Zone {
	out := make([]Zone, len(s.zones))
	copy(out, s.zones)
	return out
}

// Len returns the number of zones.
func (s *Set) Len() int {
	return len(s.zones)
}

// Lookup finds a zone by name.
func (s *Set) Lookup(name string) (Zone, bool) {
	for _, z := range s.zones {
		if z.Name == name {
			return z, true
		}
	}
	return Zone{}, false
}
