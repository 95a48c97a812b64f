package sqlite

import (
	"fmt"

	"countertime/internal/models"
)

// VisitRepository implements repository.VisitRepository for SQLite.
type VisitRepository struct {
	db *DB
}

// NewVisitRepository creates a new SQLite visit repository.
func NewVisitRepository(db *DB) *VisitRepository {
	return &VisitRepository{db: db}
}

const insertVisit = `
	INSERT INTO visits (run_id, customer_id, counter, entry_time, exit_time, duration, reason)
	VALUES (?, ?, ?, ?, ?, ?, ?)
`

// Insert adds a new visit record to the database.
func (r *VisitRepository) Insert(v *models.Visit) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(insertVisit, v.RunID, v.CustomerID, v.Counter, v.EntryTime, v.ExitTime, v.Duration, v.Reason)
	if err != nil {
		return 0, fmt.Errorf("failed to insert visit: %w", err)
	}
	return result.LastInsertId()
}

// InsertBatch adds multiple visits in a single transaction.
func (r *VisitRepository) InsertBatch(visits []models.Visit) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertVisit)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, v := range visits {
		if _, err := stmt.Exec(v.RunID, v.CustomerID, v.Counter, v.EntryTime, v.ExitTime, v.Duration, v.Reason); err != nil {
			return fmt.Errorf("failed to insert visit: %w", err)
		}
	}

	return tx.Commit()
}

func visitWhere(filter *models.VisitFilter) (string, []interface{}) {
	where := " WHERE 1=1"
	args := []interface{}{}
	if filter == nil {
		return where, args
	}
	if filter.RunID != "" {
		where += " AND run_id = ?"
		args = append(args, filter.RunID)
	}
	if filter.Counter != "" {
		where += " AND counter = ?"
		args = append(args, filter.Counter)
	}
	return where, args
}

// GetAll retrieves visits ordered by customer id then entry time.
func (r *VisitRepository) GetAll(filter *models.VisitFilter) ([]models.Visit, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := visitWhere(filter)
	query := `
		SELECT id, run_id, customer_id, counter, entry_time, exit_time, duration, reason
		FROM visits` + where + ` ORDER BY customer_id, entry_time, id`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	visits := []models.Visit{}
	for rows.Next() {
		var v models.Visit
		if err := rows.Scan(&v.ID, &v.RunID, &v.CustomerID, &v.Counter, &v.EntryTime, &v.ExitTime, &v.Duration, &v.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// Count returns the number of visits matching the filter.
func (r *VisitRepository) Count(filter *models.VisitFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := visitWhere(filter)
	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM visits`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count visits: %w", err)
	}
	return count, nil
}

// DeleteByRunID removes all visits of a run.
func (r *VisitRepository) DeleteByRunID(runID string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM visits WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete visits: %w", err)
	}
	return nil
}
