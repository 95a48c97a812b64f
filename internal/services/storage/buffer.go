package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"countertime/internal/dto"
	"countertime/internal/logger"
	"countertime/internal/models"
	"countertime/internal/repository"
)

// SnapshotFilename names an entry snapshot the way operators expect to find
// it: customer_<id>_at_<counter>_time_<whole seconds>.jpg. Path separators
// and spaces in counter names are replaced.
func SnapshotFilename(customerID int, counter string, at float64) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', ':':
			return '_'
		}
		return r
	}, counter)
	return fmt.Sprintf("customer_%d_at_%s_time_%d.jpg", customerID, safe, int(at))
}

// BufferService collects entry snapshots in memory and writes them to disk
// in batches.
type BufferService struct {
	snapshotsDir string
	snapshots    []dto.BufferedSnapshot
	bufferLimit  int
	repo         repository.SnapshotRepository
	logger       *logger.Logger
	mu           sync.Mutex
}

// NewBufferService creates a buffer. repo may be nil when snapshots are not
// indexed in the database.
func NewBufferService(snapshotsDir string, bufferLimit int, repo repository.SnapshotRepository, logger *logger.Logger) *BufferService {
	return &BufferService{
		snapshotsDir: snapshotsDir,
		bufferLimit:  bufferLimit,
		snapshots:    make([]dto.BufferedSnapshot, 0),
		repo:         repo,
		logger:       logger,
	}
}

// Dir returns the directory snapshots are written to.
func (s *BufferService) Dir() string {
	return s.snapshotsDir
}

// Run flushes the buffer every flushInterval seconds until ctx is done, then
// flushes once more.
func (s *BufferService) Run(ctx context.Context, flushInterval int) {
	if flushInterval <= 0 {
		flushInterval = 1
	}
	ticker := time.NewTicker(time.Duration(flushInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.FlushSnapshots()
			return
		case <-ticker.C:
			s.FlushSnapshots()
		}
	}
}

// AddSnapshot queues an encoded image. When the buffer is full it is
// flushed first so no snapshot is dropped.
func (s *BufferService) AddSnapshot(snap dto.BufferedSnapshot) {
	s.mu.Lock()
	full := s.bufferLimit > 0 && len(s.snapshots) >= s.bufferLimit
	s.mu.Unlock()

	if full {
		s.logger.Warning("Snapshot buffer full (%d), flushing early", s.bufferLimit)
		s.FlushSnapshots()
	}

	s.mu.Lock()
	s.snapshots = append(s.snapshots, snap)
	s.mu.Unlock()
}

// Pending returns how many snapshots wait to be written.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

// FlushSnapshots writes every buffered snapshot and returns how many were
// saved.
func (s *BufferService) FlushSnapshots() int {
	s.mu.Lock()
	pending := s.snapshots
	s.snapshots = make([]dto.BufferedSnapshot, 0, len(pending))
	s.mu.Unlock()

	if len(pending) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.snapshotsDir, 0755); err != nil {
		s.logger.Error("Error creating snapshot directory: %v", err)
		return 0
	}

	saved := 0
	for _, snap := range pending {
		filename := SnapshotFilename(snap.CustomerID, snap.Counter, snap.At)
		fullpath := filepath.Join(s.snapshotsDir, filename)

		if err := os.WriteFile(fullpath, snap.Data, 0644); err != nil {
			s.logger.Error("Error saving snapshot %s: %v", filename, err)
			continue
		}
		saved++
		s.logger.Info("  -> Saved snapshot to %s", fullpath)

		if s.repo == nil {
			continue
		}
		record := &models.Snapshot{
			RunID:      snap.RunID,
			CustomerID: snap.CustomerID,
			Counter:    snap.Counter,
			At:         snap.At,
			Filename:   filename,
			FilePath:   fullpath,
			FileSize:   int64(len(snap.Data)),
		}
		if _, err := s.repo.Insert(record); err != nil {
			s.logger.Error("Error indexing snapshot %s: %v", filename, err)
		}
	}

	s.logger.Info("Flushed %d snapshots to disk", saved)
	return saved
}
