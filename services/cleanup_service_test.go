package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/posturekit/posturebackend/config"
	"github.com/posturekit/posturebackend/database"
	"github.com/posturekit/posturebackend/models"
	"github.com/posturekit/posturebackend/repository"
)

func newCleanupFixture(t *testing.T) (*CleanupService, *repository.ReportRepository, *repository.ReportAssetRepository, string) {
	t.Helper()
	dir := t.TempDir()

	dbPath := filepath.Join(dir, "test.db")
	gormDB, err := database.InitGormDB(dbPath)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(gormDB))

	stateDB, err := database.InitSyncStateDB(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { stateDB.Close() })

	reports := repository.NewReportRepository(gormDB)
	assets := repository.NewReportAssetRepository(gormDB)

	svc := &CleanupService{
		Reports: reports,
		Assets:  assets,
		StateDB: stateDB,
		Cfg: config.Config{
			MediaStoragePath: dir,
			DocumentsPath:    filepath.Join(dir, "report_documents"),
			ThumbnailsPath:   filepath.Join(dir, "report_thumbnails"),
		},
	}
	return svc, reports, assets, dir
}

func writeTestFile(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))
	return path
}

func TestCleanupService_PurgeAll(t *testing.T) {
	svc, reports, assets, dir := newCleanupFixture(t)

	docDir := filepath.Join(svc.Cfg.DocumentsPath, "rep-1")
	pdf := writeTestFile(t, filepath.Join(docDir, "report.pdf"))
	thumb := writeTestFile(t, filepath.Join(svc.Cfg.ThumbnailsPath, "rep-1.jpg"))
	photo := writeTestFile(t, filepath.Join(dir, "front.jpg"))

	require.NoError(t, reports.Create(&models.Report{
		ClientID:        "rep-1",
		SessionClientID: "sess-1",
		CreatedAt:       1,
		UpdatedAt:       1,
		PDFPath:         &pdf,
		ThumbnailPath:   &thumb,
		LandmarksJSON:   "{}",
		MetricsJSON:     "{}",
	}))
	require.NoError(t, assets.Create(&models.ReportAsset{
		ClientID:       "asset-1",
		ReportClientID: "rep-1",
		Side:           models.SideFront,
		Kind:           models.AssetKindOriginal,
		LocalPath:      photo,
		CreatedAt:      1,
	}))
	require.NoError(t, database.SetSessionServerID(svc.StateDB, "sess-1", "srv-sess-1", 1000))
	require.NoError(t, database.SetSyncWatermark(svc.StateDB, 5000))

	require.NoError(t, svc.PurgeAll())

	require.NoFileExists(t, pdf)
	require.NoFileExists(t, thumb)
	require.NoFileExists(t, photo)
	require.NoDirExists(t, docDir)

	left, err := reports.ListAll()
	require.NoError(t, err)
	require.Empty(t, left)
	leftAssets, err := assets.ListByReport("rep-1")
	require.NoError(t, err)
	require.Empty(t, leftAssets)

	since, err := database.GetSyncWatermark(svc.StateDB)
	require.NoError(t, err)
	require.Zero(t, since)
}

func TestCleanupService_PurgeAll_Idempotent(t *testing.T) {
	svc, reports, _, _ := newCleanupFixture(t)

	// a record whose backing files never existed must not fail the purge
	missing := filepath.Join(svc.Cfg.DocumentsPath, "rep-1", "report.pdf")
	require.NoError(t, reports.Create(&models.Report{
		ClientID:        "rep-1",
		SessionClientID: "sess-1",
		CreatedAt:       1,
		UpdatedAt:       1,
		PDFPath:         &missing,
		LandmarksJSON:   "{}",
		MetricsJSON:     "{}",
	}))

	require.NoError(t, svc.PurgeAll())
	require.NoError(t, svc.PurgeAll())

	left, err := reports.ListAll()
	require.NoError(t, err)
	require.Empty(t, left)
}
