package workers

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/posturekit/posturebackend/config"
	"github.com/posturekit/posturebackend/database"
	"github.com/posturekit/posturebackend/models"
	"github.com/posturekit/posturebackend/repository"
)

func newTestProcessor(t *testing.T, numWorkers int) (*ReportProcessor, *repository.ReportRepository) {
	t.Helper()
	dir := t.TempDir()

	gormDB, err := database.InitGormDB(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(gormDB))

	reports := repository.NewReportRepository(gormDB)
	assets := repository.NewReportAssetRepository(gormDB)

	cfg := config.Config{
		ThumbnailsPath:   filepath.Join(dir, "thumbs"),
		ThumbnailMaxSize: 64,
	}
	proc := NewReportProcessor(cfg, reports, assets, 10, numWorkers)
	t.Cleanup(proc.Stop)
	return proc, reports
}

func TestReportProcessor_QueueJob_DeduplicatesPending(t *testing.T) {
	proc, _ := newTestProcessor(t, 1)

	// mark the thumbnail task pending by hand; dedup must reject a second
	// queue attempt for the same report+task while allowing other tasks
	proc.Mutex.Lock()
	proc.Pending["rep-1:thumbnail"] = true
	proc.Mutex.Unlock()

	require.False(t, proc.QueueJob(ReportJob{ReportClientID: "rep-1", TaskType: TaskThumbnail}))
	require.True(t, proc.QueueJob(ReportJob{ReportClientID: "rep-1", TaskType: TaskIngest}))
}

func TestReportProcessor_ThumbnailTask_RecordsMissingImageError(t *testing.T) {
	proc, reports := newTestProcessor(t, 1)

	missing := "/nonexistent/front.png"
	require.NoError(t, reports.Create(&models.Report{
		ClientID:        "rep-1",
		SessionClientID: "sess-1",
		CreatedAt:       1,
		UpdatedAt:       1,
		FrontImagePath:  &missing,
		LandmarksJSON:   "{}",
		MetricsJSON:     "{}",
	}))

	require.True(t, proc.QueueJob(ReportJob{ReportClientID: "rep-1", TaskType: TaskThumbnail}))

	require.Eventually(t, func() bool {
		got, err := reports.GetByClientID("rep-1")
		return err == nil && got.ThumbnailStatus == models.StatusError
	}, 5*time.Second, 20*time.Millisecond)

	got, err := reports.GetByClientID("rep-1")
	require.NoError(t, err)
	require.NotNil(t, got.ThumbnailError)
	require.Nil(t, got.ThumbnailPath)
}

func TestReportProcessor_IngestTask_NoAssetsCompletes(t *testing.T) {
	proc, reports := newTestProcessor(t, 1)

	require.NoError(t, reports.Create(&models.Report{
		ClientID:        "rep-1",
		SessionClientID: "sess-1",
		CreatedAt:       1,
		UpdatedAt:       1,
		LandmarksJSON:   "{}",
		MetricsJSON:     "{}",
	}))

	require.True(t, proc.QueueJob(ReportJob{ReportClientID: "rep-1", TaskType: TaskIngest}))

	require.Eventually(t, func() bool {
		got, err := reports.GetByClientID("rep-1")
		return err == nil && got.IngestStatus == models.StatusDone
	}, 5*time.Second, 20*time.Millisecond)
}
