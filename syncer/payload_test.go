package syncer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/posturekit/posturebackend/models"
)

func testReport(t *testing.T) *models.Report {
	t.Helper()
	front := "/media/photos/front-crop.jpg"
	report := &models.Report{
		ClientID:        "rep-1",
		SessionClientID: "sess-1",
		CreatedAt:       1700000000000,
		UpdatedAt:       1700000001000,
		PostureScore:    85,
		FrontImagePath:  &front,
	}
	require.NoError(t, report.SetLandmarks(map[models.Side]models.LandmarkSet{
		models.SideFront: {
			ImageWidth:  1080,
			ImageHeight: 1920,
			Points:      []models.LandmarkPoint{{ID: "p0", X: 0.4, Y: 0.3, Code: "ear_l"}},
		},
	}))
	require.NoError(t, report.SetMetrics(map[models.Side][]models.Metric{
		models.SideRight: {{Name: "forward_head", Value: 12.5, Unit: "deg", Severity: models.SeverityMild}},
	}))
	return report
}

func TestBuildReportPayload(t *testing.T) {
	report := testReport(t)
	frontServerID := "srv-asset-1"
	assets := []models.ReportAsset{
		{ClientID: "asset-1", ReportClientID: "rep-1", ServerID: &frontServerID, Side: models.SideFront, Kind: models.AssetKindCropped, SHA256: "abc"},
		{ClientID: "asset-2", ReportClientID: "rep-1", Side: models.SideRight, Kind: models.AssetKindOriginal},
	}

	payload, err := BuildReportPayload(report, assets, "srv-sess-1")
	require.NoError(t, err)

	require.Equal(t, PayloadSchemaVersion, payload.SchemaVersion)
	require.Equal(t, "rep-1", payload.ClientID)
	require.Equal(t, "sess-1", payload.SessionClientID)
	require.Equal(t, "srv-sess-1", payload.SessionServerID)
	require.Equal(t, 85, payload.PostureScore)

	require.Equal(t, "front-crop.jpg", payload.Front.ImageName)
	require.NotNil(t, payload.Front.Landmarks)
	require.Equal(t, 1080, payload.Front.Landmarks.ImageWidth)
	require.Nil(t, payload.Right.Landmarks)
	require.Len(t, payload.Right.Metrics, 1)
	require.Equal(t, "forward_head", payload.Right.Metrics[0].Name)

	require.Len(t, payload.Front.Assets, 1)
	require.Equal(t, "srv-asset-1", payload.Front.Assets[0].ServerID)
	require.Len(t, payload.Right.Assets, 1)
	require.Empty(t, payload.Right.Assets[0].ServerID)
}

func TestBuildReportPayload_RejectsInvalidAssetSide(t *testing.T) {
	report := testReport(t)
	assets := []models.ReportAsset{
		{ClientID: "asset-1", ReportClientID: "rep-1", Side: "back", Kind: models.AssetKindOriginal},
	}
	_, err := BuildReportPayload(report, assets, "srv-sess-1")
	require.Error(t, err)
}

func TestApplyReportPayload_RoundTrip(t *testing.T) {
	source := testReport(t)
	payload, err := BuildReportPayload(source, nil, "srv-sess-1")
	require.NoError(t, err)

	var restored models.Report
	restored.ClientID = "rep-1"
	require.NoError(t, ApplyReportPayload(payload, &restored))

	require.Equal(t, source.SessionClientID, restored.SessionClientID)
	require.Equal(t, source.PostureScore, restored.PostureScore)

	landmarks, err := restored.Landmarks()
	require.NoError(t, err)
	wantLandmarks, err := source.Landmarks()
	require.NoError(t, err)
	require.Equal(t, wantLandmarks, landmarks)

	metrics, err := restored.Metrics()
	require.NoError(t, err)
	wantMetrics, err := source.Metrics()
	require.NoError(t, err)
	require.Equal(t, wantMetrics, metrics)
}
