package zone

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square() Zone {
	return Zone{Name: "sq", Polygon: []image.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}}
}

func TestContains_Square(t *testing.T) {
	z := square()

	tests := []struct {
		name string
		p    image.Point
		want bool
	}{
		{"centre", image.Pt(5, 5), true},
		{"vertex", image.Pt(0, 0), true},
		{"far vertex", image.Pt(10, 10), true},
		{"top edge", image.Pt(5, 0), true},
		{"right edge", image.Pt(10, 7), true},
		{"bottom edge", image.Pt(3, 10), true},
		{"left edge", image.Pt(0, 4), true},
		{"left of", image.Pt(-1, 5), false},
		{"right of", image.Pt(11, 5), false},
		{"above", image.Pt(5, -1), false},
		{"below", image.Pt(5, 11), false},
		{"in line with edge but outside", image.Pt(15, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, z.Contains(tt.p))
		})
	}
}

func TestContains_NonConvex(t *testing.T) {
	// U shape opening upwards; the notch is x in (4,6), y in [0,6).
	u := Zone{Name: "u", Polygon: []image.Point{
		{0, 0}, {4, 0}, {4, 6}, {6, 6}, {6, 0}, {10, 0}, {10, 10}, {0, 10},
	}}

	assert.True(t, u.Contains(image.Pt(2, 2)), "left arm")
	assert.True(t, u.Contains(image.Pt(8, 2)), "right arm")
	assert.True(t, u.Contains(image.Pt(5, 8)), "base")
	assert.False(t, u.Contains(image.Pt(5, 2)), "inside the notch")
	assert.True(t, u.Contains(image.Pt(5, 6)), "notch floor is boundary")
}

func TestContains_Slanted(t *testing.T) {
	// Same shape as the third counter of the reference layout.
	z := Zone{Name: "c3", Polygon: []image.Point{{1300, 320}, {1500, 200}, {1500, 620}, {1300, 620}}}

	assert.True(t, z.Contains(image.Pt(1400, 260)), "on the slanted edge")
	assert.True(t, z.Contains(image.Pt(1400, 270)), "just below the slanted edge")
	assert.False(t, z.Contains(image.Pt(1310, 250)), "above the slanted edge")
	assert.True(t, z.Contains(image.Pt(1400, 500)))
}

func TestContains_Degenerate(t *testing.T) {
	z := Zone{Name: "line", Polygon: []image.Point{{0, 0}, {10, 0}}}
	assert.False(t, z.Contains(image.Pt(5, 0)))
}

func TestBounds(t *testing.T) {
	z := Zone{Name: "c3", Polygon: []image.Point{{1300, 320}, {1500, 200}, {1500, 620}, {1300, 620}}}
	assert.Equal(t, image.Rect(1300, 200, 1501, 621), z.Bounds())
	assert.Equal(t, image.Rectangle{}, Zone{}.Bounds())
}

func TestNewSet_Validation(t *testing.T) {
	tests := []struct {
		name  string
		zones []Zone
	}{
		{"too few points", []Zone{{Name: "a", Polygon: []image.Point{{0, 0}, {1, 1}}}}},
		{"no name", []Zone{{Polygon: square().Polygon}}},
		{"duplicate", []Zone{{Name: "a", Polygon: square().Polygon}, {Name: "a", Polygon: square().Polygon}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSet(tt.zones)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
		})
	}
}

func TestSet_MatchFirstDeclaredWins(t *testing.T) {
	a := Zone{Name: "A", Polygon: []image.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}}
	b := Zone{Name: "B", Polygon: []image.Point{{5, 5}, {15, 5}, {15, 15}, {5, 15}}}

	ab, err := NewSet([]Zone{a, b})
	require.NoError(t, err)
	ba, err := NewSet([]Zone{b, a})
	require.NoError(t, err)

	overlap := image.Pt(7, 7)
	for i := 0; i < 10; i++ {
		z, ok := ab.Match(overlap)
		require.True(t, ok)
		assert.Equal(t, "A", z.Name)

		z, ok = ba.Match(overlap)
		require.True(t, ok)
		assert.Equal(t, "B", z.Name)
	}

	_, ok := ab.Match(image.Pt(20, 20))
	assert.False(t, ok)
}

func TestSet_CopiesInput(t *testing.T) {
	poly := []image.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	s, err := NewSet([]Zone{{Name: "a", Polygon: poly}})
	require.NoError(t, err)

	poly[0] = image.Pt(100, 100)

	z, ok := s.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, image.Pt(0, 0), z.Polygon[0])
	assert.Equal(t, 1, s.Len())
}

func TestParse(t *testing.T) {
	data := []byte(`
zones:
  - name: Counter 2
    polygon: [[700, 220], [900, 220], [900, 470], [700, 470]]
  - name: Counter 1
    polygon: [[100, 200], [300, 200], [300, 450], [100, 450]]
`)
	s, err := Parse(data)
	require.NoError(t, err)

	zones := s.Zones()
	require.Len(t, zones, 2)
	assert.Equal(t, "Counter 2", zones[0].Name)
	assert.Equal(t, "Counter 1", zones[1].Name)
	assert.Equal(t, image.Pt(900, 470), zones[0].Polygon[2])
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"empty":     `zones: []`,
		"bad point": "zones:\n  - name: a\n    polygon: [[1, 2, 3], [0, 0], [1, 1]]\n",
		"bad yaml":  "zones: [",
		"2 points":  "zones:\n  - name: a\n    polygon: [[0, 0], [1, 1]]\n",
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestDefault(t *testing.T) {
	s := Default()
	assert.Equal(t, 3, s.Len())

	z, ok := s.Match(image.Pt(200, 450))
	require.True(t, ok)
	assert.Equal(t, "Counter 1", z.Name)
}
