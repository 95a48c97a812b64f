package analysis

import (
	"encoding/json"
	"fmt"

	"countertime/internal/dto"
	"countertime/internal/models"
	"countertime/internal/occupancy"
	"countertime/internal/report"
	"countertime/internal/repository"
)

// VisitSink receives visit events as a session produces them.
type VisitSink interface {
	VisitOpened(runID string, v occupancy.OpenVisit) error
	VisitClosed(runID string, v occupancy.ClosedVisit) error
}

// BatchSink is a VisitSink that takes every visit closed in one frame in a
// single call. Session uses it instead of VisitClosed when a sink has it.
type BatchSink interface {
	VisitSink
	VisitsClosed(runID string, vs []occupancy.ClosedVisit) error
}

// Broadcaster fans a message out to live viewers.
type Broadcaster interface {
	Broadcast(message []byte)
}

// EntryEvent converts an opened visit to its wire form.
func EntryEvent(runID string, v occupancy.OpenVisit) dto.VisitEvent {
	return dto.VisitEvent{
		Type:       dto.EventEntry,
		RunID:      runID,
		CustomerID: v.TrackID,
		Counter:    v.Zone,
		EntryTime:  report.Seconds(v.EntryTime),
	}
}

// ExitEvent converts a closed visit to its wire form.
func ExitEvent(runID string, v occupancy.ClosedVisit) dto.VisitEvent {
	row := report.NewRow(v)
	return dto.VisitEvent{
		Type:       dto.EventExit,
		RunID:      runID,
		CustomerID: row.CustomerID,
		Counter:    row.Counter,
		EntryTime:  row.EntryTime,
		ExitTime:   row.ExitTime,
		Duration:   row.Duration,
		Reason:     v.Reason.String(),
	}
}

// VisitModel converts a closed visit to its stored form at full precision.
func VisitModel(runID string, v occupancy.ClosedVisit) models.Visit {
	return models.Visit{
		RunID:      runID,
		CustomerID: v.TrackID,
		Counter:    v.Zone,
		EntryTime:  v.EntryTime.Seconds(),
		ExitTime:   v.ExitTime.Seconds(),
		Duration:   v.Duration.Seconds(),
		Reason:     v.Reason.String(),
	}
}

// RepositorySink stores every closed visit.
type RepositorySink struct {
	visits repository.VisitRepository
}

func NewRepositorySink(visits repository.VisitRepository) *RepositorySink {
	return &RepositorySink{visits: visits}
}

func (s *RepositorySink) VisitOpened(string, occupancy.OpenVisit) error { return nil }

func (s *RepositorySink) VisitClosed(runID string, v occupancy.ClosedVisit) error {
	m := VisitModel(runID, v)
	if _, err := s.visits.Insert(&m); err != nil {
		return fmt.Errorf("store visit of customer %d: %w", v.TrackID, err)
	}
	return nil
}

// VisitsClosed stores the visits of one frame in one transaction.
func (s *RepositorySink) VisitsClosed(runID string, vs []occupancy.ClosedVisit) error {
	if len(vs) == 1 {
		return s.VisitClosed(runID, vs[0])
	}
	batch := make([]models.Visit, len(vs))
	for i, v := range vs {
		batch[i] = VisitModel(runID, v)
	}
	if err := s.visits.InsertBatch(batch); err != nil {
		return fmt.Errorf("store %d visits: %w", len(vs), err)
	}
	return nil
}

// BroadcastSink pushes entry and exit events to live viewers as JSON.
type BroadcastSink struct {
	hub Broadcaster
}

func NewBroadcastSink(hub Broadcaster) *BroadcastSink {
	return &BroadcastSink{hub: hub}
}

func (s *BroadcastSink) VisitOpened(runID string, v occupancy.OpenVisit) error {
	return s.send(EntryEvent(runID, v))
}

func (s *BroadcastSink) VisitClosed(runID string, v occupancy.ClosedVisit) error {
	return s.send(ExitEvent(runID, v))
}

func (s *BroadcastSink) send(ev dto.VisitEvent) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	s.hub.Broadcast(msg)
	return nil
}
