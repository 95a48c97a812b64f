package sqlite

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"countertime/internal/models"
)

// ========================================
// Helpers
// ========================================

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertRun(t *testing.T, repo *RunRepository, id string, started time.Time) {
	t.Helper()
	run := &models.Run{ID: id, Source: id + ".mp4", Status: models.RunRunning, StartedAt: started}
	if err := repo.Insert(run); err != nil {
		t.Fatalf("Failed to insert run %s: %v", id, err)
	}
}

// ========================================
// Database Tests
// ========================================

func TestDatabase_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "data", "visits.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
}

func TestDatabase_MigrateTwice(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	db.Close()

	db, err = New(dbPath)
	if err != nil {
		t.Fatalf("Reopening should not fail: %v", err)
	}
	db.Close()
}

// ========================================
// Run Repository Tests
// ========================================

func TestRunRepository_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	runs := NewRunRepository(db)

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	insertRun(t, runs, "run-1", started)

	if err := runs.UpdateProgress("run-1", 120, 3); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	if err := runs.Finish("run-1", models.RunCompleted, ""); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	got, err := runs.GetByID("run-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected run, got nil")
	}
	if got.Frames != 120 || got.Visits != 3 {
		t.Errorf("Progress = %d frames / %d visits, expected 120 / 3", got.Frames, got.Visits)
	}
	if got.Status != models.RunCompleted || !got.Finished() {
		t.Errorf("Status = %s, expected completed", got.Status)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt should be set")
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, expected %v", got.StartedAt, started)
	}
}

func TestRunRepository_MissingRun(t *testing.T) {
	runs := NewRunRepository(newTestDB(t))

	got, err := runs.GetByID("nope")
	if err != nil || got != nil {
		t.Errorf("GetByID(missing) = %v, %v; expected nil, nil", got, err)
	}
	latest, err := runs.Latest()
	if err != nil || latest != nil {
		t.Errorf("Latest on empty db = %v, %v; expected nil, nil", latest, err)
	}
}

func TestRunRepository_LatestAndOrder(t *testing.T) {
	runs := NewRunRepository(newTestDB(t))

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	insertRun(t, runs, "old", base)
	insertRun(t, runs, "new", base.Add(time.Hour))
	insertRun(t, runs, "mid", base.Add(time.Minute))

	latest, err := runs.Latest()
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.ID != "new" {
		t.Errorf("Latest = %s, expected new", latest.ID)
	}

	all, err := runs.GetAll(0)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "new" || all[1].ID != "mid" || all[2].ID != "old" {
		t.Errorf("Unexpected order: %+v", all)
	}

	limited, _ := runs.GetAll(2)
	if len(limited) != 2 {
		t.Errorf("Expected 2 runs with limit, got %d", len(limited))
	}
}

// ========================================
// Visit Repository Tests
// ========================================

func TestVisitRepository_InsertAndQuery(t *testing.T) {
	db := newTestDB(t)
	runs := NewRunRepository(db)
	visits := NewVisitRepository(db)

	insertRun(t, runs, "run-1", time.Now())
	insertRun(t, runs, "run-2", time.Now())

	batch := []models.Visit{
		{RunID: "run-1", CustomerID: 7, Counter: "Counter 2", EntryTime: 5, ExitTime: 9.5, Duration: 4.5, Reason: "left"},
		{RunID: "run-1", CustomerID: 3, Counter: "Counter 1", EntryTime: 10.25, ExitTime: 12, Duration: 1.75, Reason: "lost"},
		{RunID: "run-1", CustomerID: 3, Counter: "Counter 1", EntryTime: 2, ExitTime: 4, Duration: 2, Reason: "left"},
	}
	if err := visits.InsertBatch(batch); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
	if _, err := visits.Insert(&models.Visit{RunID: "run-2", CustomerID: 1, Counter: "Counter 3", EntryTime: 1, ExitTime: 3, Duration: 2, Reason: "left"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := visits.GetAll(&models.VisitFilter{RunID: "run-1"})
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 visits, got %d", len(got))
	}
	// Ordered by customer id then entry time.
	if got[0].CustomerID != 3 || got[0].EntryTime != 2 {
		t.Errorf("First visit = %+v", got[0])
	}
	if got[1].CustomerID != 3 || got[1].EntryTime != 10.25 || got[1].Reason != "lost" {
		t.Errorf("Second visit = %+v", got[1])
	}
	if got[2].CustomerID != 7 {
		t.Errorf("Third visit = %+v", got[2])
	}

	count, err := visits.Count(&models.VisitFilter{RunID: "run-1", Counter: "Counter 1"})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 visits at Counter 1, got %d", count)
	}

	total, _ := visits.Count(nil)
	if total != 4 {
		t.Errorf("Expected 4 visits overall, got %d", total)
	}

	page, _ := visits.GetAll(&models.VisitFilter{RunID: "run-1", Limit: 1, Offset: 2})
	if len(page) != 1 || page[0].CustomerID != 7 {
		t.Errorf("Paged query = %+v", page)
	}
}

func TestVisitRepository_RequiresRun(t *testing.T) {
	visits := NewVisitRepository(newTestDB(t))

	_, err := visits.Insert(&models.Visit{RunID: "ghost", CustomerID: 1, Counter: "Counter 1", Reason: "left"})
	if err == nil {
		t.Error("Expected foreign key error for unknown run")
	}
}

func TestVisitRepository_ConcurrentInsert(t *testing.T) {
	db := newTestDB(t)
	runs := NewRunRepository(db)
	visits := NewVisitRepository(db)
	insertRun(t, runs, "run-1", time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			v := &models.Visit{RunID: "run-1", CustomerID: id, Counter: "Counter 1", EntryTime: 1, ExitTime: 3, Duration: 2, Reason: "left"}
			if _, err := visits.Insert(v); err != nil {
				t.Errorf("Concurrent insert %d failed: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	count, _ := visits.Count(&models.VisitFilter{RunID: "run-1"})
	if count != 10 {
		t.Errorf("Expected 10 visits, got %d", count)
	}
}

// ========================================
// Snapshot Repository Tests
// ========================================

func TestSnapshotRepository(t *testing.T) {
	db := newTestDB(t)
	runs := NewRunRepository(db)
	snaps := NewSnapshotRepository(db)
	insertRun(t, runs, "run-1", time.Now())

	for _, s := range []models.Snapshot{
		{RunID: "run-1", CustomerID: 2, Counter: "Counter 1", At: 8, Filename: "customer_2_at_Counter_1_time_8.jpg", FilePath: "/tmp/a.jpg", FileSize: 10},
		{RunID: "run-1", CustomerID: 1, Counter: "Counter 2", At: 3, Filename: "customer_1_at_Counter_2_time_3.jpg", FilePath: "/tmp/b.jpg", FileSize: 20},
	} {
		s := s
		if _, err := snaps.Insert(&s); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	list, err := snaps.GetByRunID("run-1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(list) != 2 || list[0].CustomerID != 1 {
		t.Errorf("Snapshots = %+v", list)
	}

	one, err := snaps.GetByFilename("customer_2_at_Counter_1_time_8.jpg")
	if err != nil || one == nil {
		t.Fatalf("GetByFilename = %v, %v", one, err)
	}
	if one.FileSize != 10 {
		t.Errorf("FileSize = %d, expected 10", one.FileSize)
	}

	missing, err := snaps.GetByFilename("nope.jpg")
	if err != nil || missing != nil {
		t.Errorf("GetByFilename(missing) = %v, %v", missing, err)
	}
}

func TestRunRepository_DeleteCascades(t *testing.T) {
	db := newTestDB(t)
	runs := NewRunRepository(db)
	visits := NewVisitRepository(db)
	snaps := NewSnapshotRepository(db)

	insertRun(t, runs, "run-1", time.Now())
	visits.Insert(&models.Visit{RunID: "run-1", CustomerID: 1, Counter: "Counter 1", EntryTime: 0, ExitTime: 2, Duration: 2, Reason: "left"})
	snaps.Insert(&models.Snapshot{RunID: "run-1", CustomerID: 1, Counter: "Counter 1", Filename: "x.jpg", FilePath: "x.jpg"})

	if err := runs.Delete("run-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if n, _ := visits.Count(&models.VisitFilter{RunID: "run-1"}); n != 0 {
		t.Errorf("Expected 0 visits after delete, got %d", n)
	}
	if list, _ := snaps.GetByRunID("run-1"); len(list) != 0 {
		t.Errorf("Expected 0 snapshots after delete, got %d", len(list))
	}
	if run, _ := runs.GetByID("run-1"); run != nil {
		t.Error("Run should be gone")
	}
}
