package occupancy

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// ExitReason says how a visit ended.
type ExitReason int

const (
	// ExitLeftZone: the person was detected outside every zone.
	ExitLeftZone ExitReason = iota
	// ExitLost: the person was missing from the frame.
	ExitLost
)

func (r ExitReason) String() string {
	switch r {
	case ExitLeftZone:
		return "left"
	case ExitLost:
		return "lost"
	default:
		return "unknown"
	}
}

// ClosedVisit is a finished visit that passed the minimum duration.
type ClosedVisit struct {
	TrackID   int
	Zone      string
	EntryTime time.Duration
	ExitTime  time.Duration
	Duration  time.Duration
	Reason    ExitReason
}

// Ledger is an append-only list of closed visits. Reads return copies so they
// can run while a tracker is still appending.
type Ledger struct {
	mu     sync.RWMutex
	visits []ClosedVisit
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append adds a visit.
func (l *Ledger) Append(v ClosedVisit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.visits = append(l.visits, v)
}

// Len returns the number of visits.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.visits)
}

// Snapshot returns the visits in the order they were closed.
func (l *Ledger) Snapshot() []ClosedVisit {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.visits)
}

// Sorted returns the visits ordered by track id, then entry time.
func (l *Ledger) Sorted() []ClosedVisit {
	out := l.Snapshot()
	SortVisits(out)
	return out
}

// SortVisits orders visits by track id, then entry time, keeping the close
// order for ties.
func SortVisits(visits []ClosedVisit) {
	slices.SortStableFunc(visits, func(a, b ClosedVisit) int {
		if c := cmp.Compare(a.TrackID, b.TrackID); c != 0 {
			return c
		}
		return cmp.Compare(a.EntryTime, b.EntryTime)
	})
}
