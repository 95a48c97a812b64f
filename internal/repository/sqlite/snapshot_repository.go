package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"countertime/internal/models"
)

// SnapshotRepository implements repository.SnapshotRepository for SQLite.
type SnapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a new SQLite snapshot repository.
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Insert adds a snapshot record. Re-inserting a filename replaces the old row.
func (r *SnapshotRepository) Insert(s *models.Snapshot) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT OR REPLACE INTO snapshots (run_id, customer_id, counter, at, filename, filepath, filesize)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.RunID, s.CustomerID, s.Counter, s.At, s.Filename, s.FilePath, s.FileSize)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return result.LastInsertId()
}

// GetByRunID lists the snapshots of a run in entry order.
func (r *SnapshotRepository) GetByRunID(runID string) ([]models.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, run_id, customer_id, counter, at, filename, filepath, filesize, created_at
		FROM snapshots WHERE run_id = ? ORDER BY at, customer_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []models.Snapshot{}
	for rows.Next() {
		var s models.Snapshot
		if err := rows.Scan(&s.ID, &s.RunID, &s.CustomerID, &s.Counter, &s.At, &s.Filename, &s.FilePath, &s.FileSize, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// GetByFilename retrieves a snapshot by file name. A missing one yields nil, nil.
func (r *SnapshotRepository) GetByFilename(filename string) (*models.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var s models.Snapshot
	err := r.db.Conn().QueryRow(`
		SELECT id, run_id, customer_id, counter, at, filename, filepath, filesize, created_at
		FROM snapshots WHERE filename = ?
	`, filename).Scan(&s.ID, &s.RunID, &s.CustomerID, &s.Counter, &s.At, &s.Filename, &s.FilePath, &s.FileSize, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &s, nil
}

// DeleteByRunID removes all snapshot records of a run.
func (r *SnapshotRepository) DeleteByRunID(runID string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM snapshots WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}
	return nil
}
