// Package tracking assigns stable integer ids to person boxes across frames.
//
// Association is done by mot-go's centroid tracker (Kalman-predicted blobs,
// matched by distance, dropped after too many unmatched frames). This
// package only maps its uuids to small increasing ints and hands back the
// detector's own boxes, so anchors are computed from what was detected and
// not from the smoothed track.
package tracking

import (
	"image"

	"github.com/LdDl/mot-go/mot"
	"github.com/google/uuid"
)

const (
	// DefaultMaxDistance is the centroid distance in pixels that always
	// counts as the same person. mot also accepts anything closer than half
	// the box diagonal.
	DefaultMaxDistance = 30.0
	// DefaultMaxAge is how many frames a track may go unmatched.
	DefaultMaxAge = 15
)

// Track is a box with the id it was assigned.
type Track struct {
	ID  int
	Box image.Rectangle
}

// Tracker keeps identities across frames. Not safe for concurrent use.
type Tracker struct {
	maxDistance float64
	maxAge      int
	persist     bool
	frameTime   float64

	mot    *mot.SimpleTracker[*mot.SimpleBlob]
	ids    map[uuid.UUID]int
	nextID int
}

// NewTracker creates a tracker. fps sets the Kalman time step and may be 0
// when unknown. With persist false every frame starts a new tracker and each
// box gets a fresh id.
func NewTracker(maxDistance float64, maxAge int, fps float64, persist bool) *Tracker {
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}
	if maxAge < 0 {
		maxAge = DefaultMaxAge
	}
	dt := 1.0
	if fps > 0 {
		dt = 1 / fps
	}
	t := &Tracker{maxDistance: maxDistance, maxAge: maxAge, persist: persist, frameTime: dt}
	t.reset()
	return t
}

func (t *Tracker) reset() {
	// mot bumps the miss counter of matched blobs too, so a blob that was
	// seen this frame already sits at 1. One extra frame keeps maxAge misses.
	t.mot = mot.NewNewSimpleTracker[*mot.SimpleBlob](t.maxDistance, t.maxAge+1)
	t.ids = make(map[uuid.UUID]int)
}

// Update assigns ids to the boxes of one frame. The result is in the order of
// boxes; every id appears once.
func (t *Tracker) Update(boxes []image.Rectangle) ([]Track, error) {
	if !t.persist {
		t.reset()
	}

	blobs := make([]*mot.SimpleBlob, len(boxes))
	for i, b := range boxes {
		blobs[i] = mot.NewSimpleBlobWithTime(mot.NewRectFrom(b), t.frameTime)
	}
	if err := t.mot.MatchObjects(blobs); err != nil {
		return nil, err
	}

	out := make([]Track, len(boxes))
	for i, blob := range blobs {
		// Matched blobs have taken the id of the track they continue.
		key := blob.GetID()
		id, ok := t.ids[key]
		if !ok {
			t.nextID++
			id = t.nextID
			t.ids[key] = id
		}
		out[i] = Track{ID: id, Box: boxes[i]}
	}

	for key := range t.ids {
		if _, alive := t.mot.Objects[key]; !alive {
			delete(t.ids, key)
		}
	}
	return out, nil
}

// Active returns the number of tracks currently kept, matched or not.
func (t *Tracker) Active() int {
	return len(t.mot.Objects)
}
