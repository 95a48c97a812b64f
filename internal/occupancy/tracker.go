// Package occupancy turns a per-frame stream of tracked people into counter
// visits.
//
// A Tracker is fed one Frame at a time. It keeps at most one open visit per
// track id, closes it when the person is seen outside every zone or is
// missing from a frame, and appends visits longer than the minimum duration
// to a Ledger. Visits still open when the stream ends are never closed.
package occupancy

import (
	"errors"
	"fmt"
	"image"
	"slices"
	"time"

	"countertime/internal/zone"
)

// DefaultMinVisit is the shortest visit that is reported. Visits must be
// strictly longer.
const DefaultMinVisit = time.Second

var (
	// ErrInvariantViolation means the detector sent a frame the tracker
	// cannot interpret, such as the same track id twice.
	ErrInvariantViolation = errors.New("tracker invariant violation")
	// ErrTemporalOrder means a frame is older than the one before it.
	ErrTemporalOrder = errors.New("frame time went backwards")
)

// Detection is one tracked person in a frame.
type Detection struct {
	TrackID int
	Anchor  image.Point
}

// Frame is everything the tracker needs from one video frame. Time is the
// offset from the start of the stream.
type Frame struct {
	Time       time.Duration
	Detections []Detection
}

// AnchorOf returns the bottom-centre of a bounding box, the point a person
// stands on. box.Max is taken as the right/bottom coordinate itself.
func AnchorOf(box image.Rectangle) image.Point {
	return image.Pt((box.Min.X+box.Max.X)/2, box.Max.Y)
}

// OpenVisit is a visit that has started and not ended yet.
type OpenVisit struct {
	TrackID   int
	Zone      string
	EntryTime time.Duration
}

// FrameResult lists what changed during one Update.
type FrameResult struct {
	Opened []OpenVisit
	// Closed holds visits that were long enough to reach the ledger.
	Closed []ClosedVisit
	// Discarded counts visits that ended below the minimum duration.
	Discarded int
}

// Tracker is the dwell-time state machine for one stream. It is not safe for
// concurrent use; the ledger it writes to is.
type Tracker struct {
	zones    *zone.Set
	ledger   *Ledger
	minVisit time.Duration

	open    map[int]OpenVisit
	last    time.Duration
	started bool
	err     error
}

// NewTracker creates a tracker writing to ledger. A nil ledger gets a fresh
// one. A negative minVisit means DefaultMinVisit; zero reports every visit.
func NewTracker(zones *zone.Set, ledger *Ledger, minVisit time.Duration) *Tracker {
	if ledger == nil {
		ledger = NewLedger()
	}
	if minVisit < 0 {
		minVisit = DefaultMinVisit
	}
	return &Tracker{
		zones:    zones,
		ledger:   ledger,
		minVisit: minVisit,
		open:     make(map[int]OpenVisit),
	}
}

// Ledger returns the ledger closed visits are appended to.
func (t *Tracker) Ledger() *Ledger {
	return t.ledger
}

// MinVisit returns the configured minimum visit duration.
func (t *Tracker) MinVisit() time.Duration {
	return t.minVisit
}

// Err returns the error that stopped the tracker, if any.
func (t *Tracker) Err() error {
	return t.err
}

// Open returns the visits currently in progress, ordered by track id.
func (t *Tracker) Open() []OpenVisit {
	out := make([]OpenVisit, 0, len(t.open))
	for _, v := range t.open {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b OpenVisit) int { return a.TrackID - b.TrackID })
	return out
}

// Update applies one frame. Once Update has returned an error the tracker is
// unusable and keeps returning that error.
func (t *Tracker) Update(f Frame) (FrameResult, error) {
	var res FrameResult

	if t.err != nil {
		return res, t.err
	}
	if err := t.check(f); err != nil {
		t.err = err
		return res, err
	}
	t.last = f.Time
	t.started = true

	present := make(map[int]bool, len(f.Detections))
	for _, d := range f.Detections {
		present[d.TrackID] = true

		z, inZone := t.zones.Match(d.Anchor)
		v, isOpen := t.open[d.TrackID]

		switch {
		case inZone && !isOpen:
			v = OpenVisit{TrackID: d.TrackID, Zone: z.Name, EntryTime: f.Time}
			t.open[d.TrackID] = v
			res.Opened = append(res.Opened, v)
		case !inZone && isOpen:
			delete(t.open, d.TrackID)
			t.close(v, f.Time, ExitLeftZone, &res)
		}
	}

	var lost []int
	for id := range t.open {
		if !present[id] {
			lost = append(lost, id)
		}
	}
	slices.Sort(lost)
	for _, id := range lost {
		v := t.open[id]
		delete(t.open, id)
		t.close(v, f.Time, ExitLost, &res)
	}

	return res, nil
}

func (t *Tracker) check(f Frame) error {
	if t.started && f.Time < t.last {
		return fmt.Errorf("%w: frame at %v after frame at %v", ErrTemporalOrder, f.Time, t.last)
	}

	seen := make(map[int]bool, len(f.Detections))
	for _, d := range f.Detections {
		if seen[d.TrackID] {
			return fmt.Errorf("%w: track %d detected twice in frame at %v", ErrInvariantViolation, d.TrackID, f.Time)
		}
		seen[d.TrackID] = true
	}
	return nil
}

func (t *Tracker) close(v OpenVisit, at time.Duration, reason ExitReason, res *FrameResult) {
	duration := at - v.EntryTime
	if duration <= t.minVisit {
		res.Discarded++
		return
	}

	cv := ClosedVisit{
		TrackID:   v.TrackID,
		Zone:      v.Zone,
		EntryTime: v.EntryTime,
		ExitTime:  at,
		Duration:  duration,
		Reason:    reason,
	}
	t.ledger.Append(cv)
	res.Closed = append(res.Closed, cv)
}
