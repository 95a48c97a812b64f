package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"countertime/internal/dto"
	"countertime/internal/logger"
	"countertime/internal/models"
	"countertime/internal/repository/sqlite"
)

func TestSnapshotFilename(t *testing.T) {
	assert.Equal(t, "customer_7_at_Counter_2_time_12.jpg", SnapshotFilename(7, "Counter 2", 12.99))
	assert.Equal(t, "customer_1_at_a_b_time_0.jpg", SnapshotFilename(1, "a/b", 0.4))
}

func TestBufferService_FlushWritesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snaps")
	buf := NewBufferService(dir, 10, nil, logger.Discard())

	buf.AddSnapshot(dto.BufferedSnapshot{RunID: "r", CustomerID: 3, Counter: "Counter 1", At: 4.2, Data: []byte("jpeg")})
	assert.Equal(t, 1, buf.Pending())

	assert.Equal(t, 1, buf.FlushSnapshots())
	assert.Zero(t, buf.Pending())

	data, err := os.ReadFile(filepath.Join(dir, "customer_3_at_Counter_1_time_4.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))

	assert.Zero(t, buf.FlushSnapshots(), "empty flush")
}

func TestBufferService_FullBufferFlushesEarly(t *testing.T) {
	dir := t.TempDir()
	buf := NewBufferService(dir, 2, nil, logger.Discard())

	for i := 1; i <= 3; i++ {
		buf.AddSnapshot(dto.BufferedSnapshot{CustomerID: i, Counter: "C", At: 1, Data: []byte{byte(i)}})
	}

	assert.Equal(t, 1, buf.Pending())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestBufferService_IndexesInRepository(t *testing.T) {
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	runs := sqlite.NewRunRepository(db)
	snaps := sqlite.NewSnapshotRepository(db)
	require.NoError(t, runs.Insert(&models.Run{ID: "run-1", Source: "v.mp4", Status: models.RunRunning, StartedAt: time.Now()}))

	buf := NewBufferService(t.TempDir(), 10, snaps, logger.Discard())
	buf.AddSnapshot(dto.BufferedSnapshot{RunID: "run-1", CustomerID: 5, Counter: "Counter 3", At: 9.5, Data: []byte("abc")})
	buf.FlushSnapshots()

	list, err := snaps.GetByRunID("run-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "customer_5_at_Counter_3_time_9.jpg", list[0].Filename)
	assert.Equal(t, int64(3), list[0].FileSize)
}

func TestBufferService_RunFlushesOnCancel(t *testing.T) {
	dir := t.TempDir()
	buf := NewBufferService(dir, 10, nil, logger.Discard())
	buf.AddSnapshot(dto.BufferedSnapshot{CustomerID: 1, Counter: "C", At: 0, Data: []byte("x")})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		buf.Run(ctx, 3600)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Zero(t, buf.Pending())
}
