package workers_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/piaxis/inventory-sync/internal/pkg/config"
	"github.com/piaxis/inventory-sync/internal/workers"
	"github.com/piaxis/inventory-sync/test/helpers"
	"github.com/piaxis/inventory-sync/test/mocks"
)

func cleanupConfig(tempDir string) *config.Config {
	return &config.Config{
		Import: config.ImportConfig{
			BatchRetention:  90 * 24 * time.Hour,
			TempDir:         tempDir,
			CleanupInterval: time.Hour,
		},
	}
}

func TestCleanupProcessor_CleanupOldData(t *testing.T) {
	batches := new(mocks.ImportRepository)
	batches.On("PurgeExpired", mock.Anything, 90*24*time.Hour).Return(int64(3), nil)

	processor := workers.NewCleanupProcessor(batches, cleanupConfig(t.TempDir()), helpers.TestLogger())

	task := asynq.NewTask(workers.TypeCleanupOldData, nil)
	err := processor.CleanupOldData(context.Background(), task)
	require.NoError(t, err)

	batches.AssertExpectations(t)
}

func TestCleanupProcessor_CleanupOldData_PropagatesError(t *testing.T) {
	batches := new(mocks.ImportRepository)
	batches.On("PurgeExpired", mock.Anything, mock.Anything).
		Return(int64(0), errors.New("connection reset"))

	processor := workers.NewCleanupProcessor(batches, cleanupConfig(t.TempDir()), helpers.TestLogger())

	err := processor.CleanupOldData(context.Background(), asynq.NewTask(workers.TypeCleanupOldData, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to purge expired batches")
}

func TestCleanupProcessor_CleanupTempFiles(t *testing.T) {
	tempDir := t.TempDir()

	stale := filepath.Join(tempDir, "stale.csv")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	twoDaysAgo := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, twoDaysAgo, twoDaysAgo))

	fresh := filepath.Join(tempDir, "fresh.csv")
	require.NoError(t, os.WriteFile(fresh, []byte("new"), 0o644))

	processor := workers.NewCleanupProcessor(new(mocks.ImportRepository), cleanupConfig(tempDir), helpers.TestLogger())

	err := processor.CleanupTempFiles(context.Background(), asynq.NewTask(workers.TypeCleanupTempFiles, nil))
	require.NoError(t, err)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}
