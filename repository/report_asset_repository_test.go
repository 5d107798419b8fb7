package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/posturekit/posturebackend/models"
)

func seedAsset(t *testing.T, repo *ReportAssetRepository, asset models.ReportAsset) {
	t.Helper()
	require.NoError(t, repo.Create(&asset))
}

func TestReportAssetRepository_ListPendingUpload(t *testing.T) {
	repo := NewReportAssetRepository(newTestDB(t))
	srv := "srv-asset-1"
	seedAsset(t, repo, models.ReportAsset{ClientID: "a1", ReportClientID: "rep-1", ServerID: &srv, Side: models.SideFront, Kind: models.AssetKindOriginal, LocalPath: "/p/1", CreatedAt: 1})
	seedAsset(t, repo, models.ReportAsset{ClientID: "a2", ReportClientID: "rep-1", Side: models.SideFront, Kind: models.AssetKindCropped, LocalPath: "/p/2", CreatedAt: 2})
	seedAsset(t, repo, models.ReportAsset{ClientID: "a3", ReportClientID: "rep-2", Side: models.SideRight, Kind: models.AssetKindOriginal, LocalPath: "/p/3", CreatedAt: 3})

	pending, err := repo.ListPendingUpload("rep-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "a2", pending[0].ClientID)

	all, err := repo.ListByReport("rep-1")
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestReportAssetRepository_SetServerID(t *testing.T) {
	repo := NewReportAssetRepository(newTestDB(t))
	seedAsset(t, repo, models.ReportAsset{ClientID: "a1", ReportClientID: "rep-1", Side: models.SideFront, Kind: models.AssetKindCropped, LocalPath: "/p/1", CreatedAt: 1})

	require.NoError(t, repo.SetServerID("a1", "srv-asset-1"))

	got, err := repo.GetByClientID("a1")
	require.NoError(t, err)
	require.NotNil(t, got.ServerID)
	require.Equal(t, "srv-asset-1", *got.ServerID)

	pending, err := repo.ListPendingUpload("rep-1")
	require.NoError(t, err)
	require.Empty(t, pending)

	require.ErrorIs(t, repo.SetServerID("absent", "srv"), gorm.ErrRecordNotFound)
}

func TestReportAssetRepository_SetIngestResult(t *testing.T) {
	repo := NewReportAssetRepository(newTestDB(t))
	seedAsset(t, repo, models.ReportAsset{ClientID: "a1", ReportClientID: "rep-1", Side: models.SideRight, Kind: models.AssetKindOriginal, LocalPath: "/p/1", CreatedAt: 1})

	width, height := 1080, 1920
	captured := int64(1700000000000)
	require.NoError(t, repo.SetIngestResult("a1", "deadbeef", &width, &height, &captured))

	got, err := repo.GetByClientID("a1")
	require.NoError(t, err)
	require.Equal(t, "deadbeef", got.SHA256)
	require.NotNil(t, got.Width)
	require.Equal(t, 1080, *got.Width)
	require.NotNil(t, got.CapturedAt)
	require.EqualValues(t, captured, *got.CapturedAt)
}

func TestReportAssetRepository_DeleteByReport(t *testing.T) {
	repo := NewReportAssetRepository(newTestDB(t))
	seedAsset(t, repo, models.ReportAsset{ClientID: "a1", ReportClientID: "rep-1", Side: models.SideFront, Kind: models.AssetKindOriginal, LocalPath: "/p/1", CreatedAt: 1})
	seedAsset(t, repo, models.ReportAsset{ClientID: "a2", ReportClientID: "rep-1", Side: models.SideRight, Kind: models.AssetKindOriginal, LocalPath: "/p/2", CreatedAt: 2})
	seedAsset(t, repo, models.ReportAsset{ClientID: "a3", ReportClientID: "rep-2", Side: models.SideFront, Kind: models.AssetKindOriginal, LocalPath: "/p/3", CreatedAt: 3})

	require.NoError(t, repo.DeleteByReport("rep-1"))

	left, err := repo.ListByReport("rep-1")
	require.NoError(t, err)
	require.Empty(t, left)
	other, err := repo.ListByReport("rep-2")
	require.NoError(t, err)
	require.Len(t, other, 1)

	// deleting a report with no assets is not an error
	require.NoError(t, repo.DeleteByReport("rep-1"))
}
