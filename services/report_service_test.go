package services

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/posturekit/posturebackend/config"
	"github.com/posturekit/posturebackend/database"
	"github.com/posturekit/posturebackend/media"
	"github.com/posturekit/posturebackend/models"
	"github.com/posturekit/posturebackend/repository"
	"github.com/posturekit/posturebackend/session"
	"github.com/posturekit/posturebackend/workers"
)

func newReportServiceFixture(t *testing.T) *ReportService {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Config{
		DatabasePath:     filepath.Join(dir, "test.db"),
		MediaStoragePath: dir,
		DocumentsPath:    filepath.Join(dir, "report_documents"),
		ThumbnailsPath:   filepath.Join(dir, "report_thumbnails"),
		ThumbnailMaxSize: 64,
	}
	require.NoError(t, os.MkdirAll(cfg.ThumbnailsPath, 0755))

	gormDB, err := database.InitGormDB(cfg.DatabasePath)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(gormDB))

	store, err := media.NewLocalStorage(cfg.MediaStoragePath, map[media.ArtifactType]string{
		media.ArtifactTypeDocument:  "report_documents",
		media.ArtifactTypeThumbnail: "report_thumbnails",
	})
	require.NoError(t, err)

	reports := repository.NewReportRepository(gormDB)
	assets := repository.NewReportAssetRepository(gormDB)
	processor := workers.NewReportProcessor(cfg, reports, assets, 10, 1)
	t.Cleanup(processor.Stop)

	return &ReportService{
		Coordinator: session.NewCoordinator(),
		Results:     session.NewResultStore(),
		Reports:     reports,
		Assets:      assets,
		Store:       store,
		Processor:   processor,
		Cfg:         cfg,
	}
}

// writePNG renders a small real image so thumbnailing has something to decode.
func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 48))
	for x := 0; x < 32; x++ {
		for y := 0; y < 48; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 5), B: 128, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

// completeSession drives the coordinator through a full two-side capture.
func completeSession(t *testing.T, svc *ReportService, dir string) {
	t.Helper()
	svc.Coordinator.StartNewIfNeeded()
	for _, side := range models.Sides {
		original := writePNG(t, dir, string(side)+"-original.png")
		cropped := writePNG(t, dir, string(side)+"-cropped.png")
		svc.Coordinator.SetOriginal(side, original)
		svc.Coordinator.SetCropped(side, cropped)
		resultID := svc.Coordinator.EnsureResultID(side)
		svc.Results.Put(resultID, models.LandmarkSet{
			ImageWidth:  32,
			ImageHeight: 48,
			Points:      []models.LandmarkPoint{{ID: "p0", X: 0.5, Y: 0.5, Code: "ear_l"}},
		})
		svc.Coordinator.MarkAutoReady(side)
	}
}

func TestReportService_FinalizeSession(t *testing.T) {
	svc := newReportServiceFixture(t)
	dir := t.TempDir()
	completeSession(t, svc, dir)
	sessionID := svc.Coordinator.Current().ID
	frontResultID := svc.Coordinator.CurrentSideState(models.SideFront).ResultID

	document := filepath.Join(dir, "rendered.pdf")
	require.NoError(t, os.WriteFile(document, []byte("%PDF-1.4 rendered"), 0644))

	metrics := map[models.Side][]models.Metric{
		models.SideFront: {{Name: "shoulder_tilt", Value: 4.2, Unit: "deg", Severity: models.SeverityMild}},
	}
	report, err := svc.FinalizeSession(FinalizeInput{DocumentPath: document, Metrics: metrics})
	require.NoError(t, err)
	require.Equal(t, sessionID, report.SessionClientID)
	require.Equal(t, 95, report.PostureScore)
	require.NotNil(t, report.PDFPath)
	require.FileExists(t, *report.PDFPath)

	// two assets per side: original and cropped
	assets, err := svc.Assets.ListByReport(report.ClientID)
	require.NoError(t, err)
	require.Len(t, assets, 4)

	// the session was consumed
	require.NotEqual(t, sessionID, svc.Coordinator.Current().ID)
	require.False(t, svc.Results.HasAuto(frontResultID))

	// post-processing eventually fills in thumbnail and asset metadata
	require.Eventually(t, func() bool {
		got, err := svc.Reports.GetByClientID(report.ClientID)
		if err != nil || got.ThumbnailStatus != models.StatusDone || got.IngestStatus != models.StatusDone {
			return false
		}
		return got.ThumbnailPath != nil
	}, 10*time.Second, 50*time.Millisecond)

	got, err := svc.Reports.GetByClientID(report.ClientID)
	require.NoError(t, err)
	require.FileExists(t, *got.ThumbnailPath)

	assets, err = svc.Assets.ListByReport(report.ClientID)
	require.NoError(t, err)
	for _, asset := range assets {
		require.NotEmpty(t, asset.SHA256)
		require.NotNil(t, asset.Width)
		require.Equal(t, 32, *asset.Width)
	}
}

func TestReportService_FinalizeSession_RequiresActiveSession(t *testing.T) {
	svc := newReportServiceFixture(t)
	_, err := svc.FinalizeSession(FinalizeInput{DocumentPath: "/tmp/doc.pdf"})
	require.ErrorContains(t, err, "no active session")
}

func TestReportService_FinalizeSession_RequiresProcessedSides(t *testing.T) {
	svc := newReportServiceFixture(t)
	dir := t.TempDir()

	svc.Coordinator.StartNewIfNeeded()
	svc.Coordinator.SetOriginal(models.SideFront, writePNG(t, dir, "front.png"))
	svc.Coordinator.SetCropped(models.SideFront, writePNG(t, dir, "front-crop.png"))
	svc.Results.Put(svc.Coordinator.EnsureResultID(models.SideFront), models.LandmarkSet{ImageWidth: 32, ImageHeight: 48})
	svc.Coordinator.MarkAutoReady(models.SideFront)

	// right side never captured
	_, err := svc.FinalizeSession(FinalizeInput{DocumentPath: "/tmp/doc.pdf"})
	require.ErrorContains(t, err, "side right has no cropped image")
}

func TestReportService_FinalizeSession_RejectsUnprocessedCrop(t *testing.T) {
	svc := newReportServiceFixture(t)
	dir := t.TempDir()
	completeSession(t, svc, dir)

	// a re-crop after processing drops readiness again
	svc.Coordinator.SetCropped(models.SideFront, writePNG(t, dir, "front-recrop.png"))

	_, err := svc.FinalizeSession(FinalizeInput{DocumentPath: "/tmp/doc.pdf"})
	require.ErrorContains(t, err, "no processed landmarks")
}

func TestReportService_DeleteReport_LocalOnly(t *testing.T) {
	svc := newReportServiceFixture(t)
	dir := t.TempDir()
	completeSession(t, svc, dir)

	document := filepath.Join(dir, "rendered.pdf")
	require.NoError(t, os.WriteFile(document, []byte("%PDF-1.4 rendered"), 0644))
	report, err := svc.FinalizeSession(FinalizeInput{DocumentPath: document})
	require.NoError(t, err)

	assets, err := svc.Assets.ListByReport(report.ClientID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteReport(report.ClientID))

	_, err = svc.Reports.GetByClientID(report.ClientID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	require.NoFileExists(t, *report.PDFPath)
	for _, asset := range assets {
		require.NoFileExists(t, asset.LocalPath)
	}
}

func TestReportService_DeleteReport_SyncedBecomesTombstone(t *testing.T) {
	svc := newReportServiceFixture(t)
	dir := t.TempDir()
	completeSession(t, svc, dir)

	document := filepath.Join(dir, "rendered.pdf")
	require.NoError(t, os.WriteFile(document, []byte("%PDF-1.4 rendered"), 0644))
	report, err := svc.FinalizeSession(FinalizeInput{DocumentPath: document})
	require.NoError(t, err)

	require.NoError(t, svc.Reports.SetServerAssignment(report.ClientID, "srv-rep-1", 1, time.Now().UnixMilli()))

	require.NoError(t, svc.DeleteReport(report.ClientID))

	got, err := svc.Reports.GetByClientID(report.ClientID)
	require.NoError(t, err)
	require.True(t, got.Deleted)
	require.FileExists(t, *report.PDFPath)

	tombstones, err := svc.Reports.ListDeletedWithServerID()
	require.NoError(t, err)
	require.Len(t, tombstones, 1)
}
