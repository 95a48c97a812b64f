package repository

import (
	"countertime/internal/models"
)

// RunRepository defines the interface for analysis run records.
type RunRepository interface {
	// Create operations
	Insert(run *models.Run) error

	// Update operations
	UpdateProgress(id string, frames, visits int) error
	Finish(id, status, errMsg string) error

	// Read operations
	GetByID(id string) (*models.Run, error)
	GetAll(limit int) ([]models.Run, error)
	Latest() (*models.Run, error)

	// Delete operations
	Delete(id string) error
}

// VisitRepository defines the interface for closed visit records.
type VisitRepository interface {
	// Create operations
	Insert(v *models.Visit) (int64, error)
	InsertBatch(visits []models.Visit) error

	// Read operations
	GetAll(filter *models.VisitFilter) ([]models.Visit, error)
	Count(filter *models.VisitFilter) (int, error)

	// Delete operations
	DeleteByRunID(runID string) error
}

// SnapshotRepository defines the interface for entry snapshot records.
type SnapshotRepository interface {
	Insert(s *models.Snapshot) (int64, error)
	GetByRunID(runID string) ([]models.Snapshot, error)
	GetByFilename(filename string) (*models.Snapshot, error)
	DeleteByRunID(runID string) error
}
