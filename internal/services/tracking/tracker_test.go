package tracking

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// person returns a 40x80 box with its top-left corner at x, y.
func person(x, y int) image.Rectangle {
	return image.Rect(x, y, x+40, y+80)
}

func update(t *testing.T, tr *Tracker, boxes ...image.Rectangle) []Track {
	t.Helper()
	got, err := tr.Update(boxes)
	require.NoError(t, err)
	require.Len(t, got, len(boxes))
	return got
}

func TestUpdate_KeepsIdentity(t *testing.T) {
	tr := NewTracker(0, 3, 25, true)

	first := update(t, tr, person(0, 0), person(300, 0))
	assert.Equal(t, 1, first[0].ID)
	assert.Equal(t, 2, first[1].ID)

	// Both moved a little and swapped order in the detector output.
	second := update(t, tr, person(304, 0), person(2, 0))
	assert.Equal(t, 2, second[0].ID)
	assert.Equal(t, 1, second[1].ID)
}

func TestUpdate_ReturnsDetectedBoxes(t *testing.T) {
	tr := NewTracker(0, 3, 25, true)
	update(t, tr, person(0, 0))

	got := update(t, tr, person(3, 1))
	assert.Equal(t, person(3, 1), got[0].Box, "boxes are the detector's, not the smoothed track")
}

func TestUpdate_NewTrackForFarBox(t *testing.T) {
	tr := NewTracker(0, 3, 25, true)
	update(t, tr, person(0, 0))

	got := update(t, tr, person(800, 600))
	assert.Equal(t, 2, got[0].ID)
	assert.Equal(t, 2, tr.Active(), "unmatched track survives until max age")
}

func TestUpdate_StaleTracksExpire(t *testing.T) {
	tr := NewTracker(0, 2, 25, true)
	update(t, tr, person(0, 0))

	update(t, tr)
	update(t, tr)
	assert.Equal(t, 1, tr.Active(), "kept for max age empty frames")
	update(t, tr)
	assert.Equal(t, 0, tr.Active())

	got := update(t, tr, person(0, 0))
	assert.Equal(t, 2, got[0].ID, "expired ids are not reused")
}

func TestUpdate_ReturnsAfterShortGap(t *testing.T) {
	tr := NewTracker(0, 2, 25, true)
	update(t, tr, person(0, 0))
	update(t, tr)

	got := update(t, tr, person(1, 1))
	assert.Equal(t, 1, got[0].ID)
}

func TestUpdate_NoPersistence(t *testing.T) {
	tr := NewTracker(0, 5, 25, false)
	a := update(t, tr, person(0, 0))
	b := update(t, tr, person(0, 0))

	assert.NotEqual(t, a[0].ID, b[0].ID)
	assert.Equal(t, 1, tr.Active(), "only the current frame is tracked")
}

func TestUpdate_UniqueIDsPerFrame(t *testing.T) {
	tr := NewTracker(0, 5, 25, true)
	update(t, tr, person(0, 0))

	// Two boxes are close to the single existing track; only one may take its id.
	got := update(t, tr, person(0, 0), person(2, 0))
	assert.Equal(t, 1, got[0].ID)
	assert.Equal(t, 2, got[1].ID)
}

func TestUpdate_Empty(t *testing.T) {
	tr := NewTracker(0, 0, 0, true)
	got, err := tr.Update(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, tr.Active())
}
