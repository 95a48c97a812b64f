// Package analysis runs the occupancy tracker over a stream of frames and
// hands every entry and exit to logging, storage and live viewers.
package analysis

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"countertime/internal/logger"
	"countertime/internal/occupancy"
	"countertime/internal/services/tracking"
	"countertime/internal/zone"
)

// Session owns the tracker of one run.
type Session struct {
	runID   string
	tracker *occupancy.Tracker
	logger  *logger.Logger
	sinks   []VisitSink
	frames  atomic.Int64
}

// NewSession creates a session with a fresh ledger.
func NewSession(runID string, zones *zone.Set, minVisit time.Duration, logger *logger.Logger, sinks ...VisitSink) *Session {
	return &Session{
		runID:   runID,
		tracker: occupancy.NewTracker(zones, nil, minVisit),
		logger:  logger,
		sinks:   sinks,
	}
}

func (s *Session) RunID() string { return s.runID }

func (s *Session) Ledger() *occupancy.Ledger { return s.tracker.Ledger() }

// Open returns the visits in progress. Only the goroutine calling Step may
// use it.
func (s *Session) Open() []occupancy.OpenVisit { return s.tracker.Open() }

// Frames counts the frames accepted so far. Safe to call from any goroutine.
func (s *Session) Frames() int { return int(s.frames.Load()) }

// Step feeds one frame to the tracker. Sink failures are logged and do not
// stop the run; tracker errors do.
func (s *Session) Step(f occupancy.Frame) (occupancy.FrameResult, error) {
	res, err := s.tracker.Update(f)
	if err != nil {
		return res, err
	}
	s.frames.Add(1)

	for _, v := range res.Opened {
		s.logger.Info("EVENT: Customer %d entered %s at %.2fs.", v.TrackID, v.Zone, v.EntryTime.Seconds())
		for _, sink := range s.sinks {
			if err := sink.VisitOpened(s.runID, v); err != nil {
				s.logger.Warning("Visit sink failed on entry of customer %d: %v", v.TrackID, err)
			}
		}
	}
	for _, v := range res.Closed {
		if v.Reason == occupancy.ExitLost {
			s.logger.Info("EVENT: Customer %d (lost) exited %s after %.2fs.", v.TrackID, v.Zone, v.Duration.Seconds())
		} else {
			s.logger.Info("EVENT: Customer %d exited %s after %.2fs.", v.TrackID, v.Zone, v.Duration.Seconds())
		}
	}
	if len(res.Closed) > 0 {
		s.closed(res.Closed)
	}
	return res, nil
}

func (s *Session) closed(vs []occupancy.ClosedVisit) {
	for _, sink := range s.sinks {
		if bs, ok := sink.(BatchSink); ok {
			if err := bs.VisitsClosed(s.runID, vs); err != nil {
				s.logger.Warning("Visit sink failed on %d exits: %v", len(vs), err)
			}
			continue
		}
		for _, v := range vs {
			if err := sink.VisitClosed(s.runID, v); err != nil {
				s.logger.Warning("Visit sink failed on exit of customer %d: %v", v.TrackID, err)
			}
		}
	}
}

// Finish logs the visits still open. They are not reported.
func (s *Session) Finish() {
	for _, v := range s.tracker.Open() {
		s.logger.Info("Customer %d still at %s since %.2fs when the stream ended; visit not reported", v.TrackID, v.Zone, v.EntryTime.Seconds())
	}
}

// Detections converts tracked boxes to tracker input using the bottom-centre
// anchor of each box.
func Detections(tracks []tracking.Track) []occupancy.Detection {
	out := make([]occupancy.Detection, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, occupancy.Detection{TrackID: t.ID, Anchor: occupancy.AnchorOf(t.Box)})
	}
	return out
}

// Source yields frames in stream order and io.EOF after the last one.
type Source interface {
	Next(ctx context.Context) (occupancy.Frame, error)
}

// Run drains src into s. It stops at the end of the stream, on a tracker
// error or when ctx is cancelled.
func Run(ctx context.Context, s *Session, src Source) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			s.Finish()
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := s.Step(f); err != nil {
			return err
		}
	}
}
