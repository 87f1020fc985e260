package listener

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"polltrack/internal"
	"polltrack/internal/config"
	"polltrack/internal/connectors/files"
	"polltrack/internal/storage"
)

const firstPost = `{"_id": "101", "created_at": "Tue Jan 05 18:30:00 +0000 2021", "full_text": "Westminster voting intention:\nCON: 40% (+1)\nLAB: 38% (-1)\nvia @YouGov, 3 - 4 Jan"}`

func setup(t *testing.T) (*Service, *storage.DB, string, config.Config) {
	t.Helper()
	tmp := t.TempDir()
	postsDir := filepath.Join(tmp, "posts")
	require.NoError(t, os.MkdirAll(postsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(postsDir, "101.json"), []byte(firstPost), 0o644))

	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tables, err := config.DefaultTables()
	require.NoError(t, err)
	cfg := config.Config{
		PostsDir:         postsDir,
		OutputDir:        filepath.Join(tmp, "out"),
		PostsKeyword:     "Westminster voting intention",
		ExtractWorkers:   1,
		WatchIntervalSec: 1,
		WatchAutoExport:  true,
	}
	svc := NewService(db, cfg, tables, files.NewDirConnector(postsDir), zaptest.NewLogger(t))
	return svc, db, postsDir, cfg
}

func TestRunCycleExtractsOnlyOnChange(t *testing.T) {
	svc, db, postsDir, cfg := setup(t)
	ctx := context.Background()

	first, err := svc.RunCycle(ctx)
	require.NoError(t, err)
	assert.True(t, first.Extracted)
	assert.Equal(t, 1, first.Changed)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "listener", "polls.xlsx"), first.Exported)
	_, err = os.Stat(first.Exported)
	require.NoError(t, err)

	idle, err := svc.RunCycle(ctx)
	require.NoError(t, err)
	assert.False(t, idle.Extracted)
	assert.Equal(t, 1, idle.Fetched)

	second := `{"_id": "102", "created_at": "Wed Jan 06 09:00:00 +0000 2021", "full_text": "Westminster voting intention:\nCON: 41% (+1)\nvia @Opinium, 4 - 5 Jan"}`
	require.NoError(t, os.WriteFile(filepath.Join(postsDir, "102.json"), []byte(second), 0o644))

	again, err := svc.RunCycle(ctx)
	require.NoError(t, err)
	assert.True(t, again.Extracted)
	assert.NotEqual(t, first.TraceID, again.TraceID)

	be := internal.CollectionBritainElects
	records, err := db.ListRecords(internal.RecordFilter{Collection: &be})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	last, err := db.GetMetadata(lastExtractKey)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, again.TraceID, *last)
}

func TestRunCycleRetriesFailedExtraction(t *testing.T) {
	svc, db, postsDir, _ := setup(t)

	first, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	require.True(t, first.Extracted)

	second := `{"_id": "102", "created_at": "Wed Jan 06 09:00:00 +0000 2021", "full_text": "Westminster voting intention:\nCON: 41% (+1)\nvia @Opinium, 4 - 5 Jan"}`
	require.NoError(t, os.WriteFile(filepath.Join(postsDir, "102.json"), []byte(second), 0o644))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	failed, err := svc.RunCycle(cancelled)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, failed.Changed)
	assert.False(t, failed.Extracted)

	pending, err := db.GetMetadata(pendingExtractKey)
	require.NoError(t, err)
	require.NotNil(t, pending)

	retried, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, retried.Changed)
	assert.True(t, retried.Extracted)

	be := internal.CollectionBritainElects
	records, err := db.ListRecords(internal.RecordFilter{Collection: &be})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	pending, err = db.GetMetadata(pendingExtractKey)
	require.NoError(t, err)
	assert.Nil(t, pending)

	idle, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, idle.Extracted)
}

func TestRunCycleReportsExtractionErrors(t *testing.T) {
	svc, _, postsDir, _ := setup(t)
	bad := `{"_id": "103", "created_at": "Wed Jan 06 09:00:00 +0000 2021", "full_text": "Westminster voting intention:\nXYZ: 10% (+1)"}`
	require.NoError(t, os.WriteFile(filepath.Join(postsDir, "103.json"), []byte(bad), 0o644))

	_, err := svc.RunCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XYZ: 10% (+1)")
}

func TestRunStopsOnCancel(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
}
