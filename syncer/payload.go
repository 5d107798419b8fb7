package syncer

import (
	"fmt"
	"path/filepath"

	"github.com/posturekit/posturebackend/models"
)

// PayloadSchemaVersion is carried in every report payload for forward
// compatibility on the backend.
const PayloadSchemaVersion = 1

// AssetRef references one uploaded asset from the report metadata.
type AssetRef struct {
	ClientID string `json:"client_id"`
	ServerID string `json:"server_id,omitempty"`
	Kind     string `json:"kind"`
	SHA256   string `json:"sha256,omitempty"`
}

// SidePayload carries everything the backend needs about one capture side.
type SidePayload struct {
	ImageName string              `json:"image_name,omitempty"`
	Landmarks *models.LandmarkSet `json:"landmarks,omitempty"`
	Metrics   []models.Metric     `json:"metrics,omitempty"`
	Assets    []AssetRef          `json:"assets,omitempty"`
}

// ReportPayload is the report metadata shape shared by the create/update
// multipart bodies and the delta response items.
type ReportPayload struct {
	SchemaVersion   int         `json:"schema_version"`
	ClientID        string      `json:"client_id"`
	SessionClientID string      `json:"session_client_id"`
	SessionServerID string      `json:"session_id,omitempty"`
	CreatedAt       int64       `json:"created_at"`
	UpdatedAt       int64       `json:"updated_at"`
	PostureScore    int         `json:"posture_score"`
	Front           SidePayload `json:"front"`
	Right           SidePayload `json:"right"`
}

// BuildReportPayload assembles the upload metadata for a report, embedding
// its landmark sets, metrics and per-side asset references.
func BuildReportPayload(report *models.Report, assets []models.ReportAsset, sessionServerID string) (ReportPayload, error) {
	landmarks, err := report.Landmarks()
	if err != nil {
		return ReportPayload{}, err
	}
	metrics, err := report.Metrics()
	if err != nil {
		return ReportPayload{}, err
	}

	payload := ReportPayload{
		SchemaVersion:   PayloadSchemaVersion,
		ClientID:        report.ClientID,
		SessionClientID: report.SessionClientID,
		SessionServerID: sessionServerID,
		CreatedAt:       report.CreatedAt,
		UpdatedAt:       report.UpdatedAt,
		PostureScore:    report.PostureScore,
	}

	sides := map[models.Side]*SidePayload{
		models.SideFront: &payload.Front,
		models.SideRight: &payload.Right,
	}
	for side, sp := range sides {
		if set, ok := landmarks[side]; ok {
			s := set
			sp.Landmarks = &s
		}
		sp.Metrics = metrics[side]
	}
	if report.FrontImagePath != nil {
		payload.Front.ImageName = filepath.Base(*report.FrontImagePath)
	}
	if report.RightImagePath != nil {
		payload.Right.ImageName = filepath.Base(*report.RightImagePath)
	}

	for _, asset := range assets {
		ref := AssetRef{
			ClientID: asset.ClientID,
			Kind:     asset.Kind,
			SHA256:   asset.SHA256,
		}
		if asset.ServerID != nil {
			ref.ServerID = *asset.ServerID
		}
		sp, ok := sides[asset.Side]
		if !ok {
			return ReportPayload{}, fmt.Errorf("asset %s has invalid side %q", asset.ClientID, asset.Side)
		}
		sp.Assets = append(sp.Assets, ref)
	}

	return payload, nil
}

// ApplyReportPayload writes the metadata of a delta item into a local report
// record. Identity and version fields are the caller's responsibility.
func ApplyReportPayload(payload ReportPayload, report *models.Report) error {
	report.SessionClientID = payload.SessionClientID
	report.PostureScore = payload.PostureScore

	landmarks := make(map[models.Side]models.LandmarkSet)
	metrics := make(map[models.Side][]models.Metric)
	sides := map[models.Side]SidePayload{
		models.SideFront: payload.Front,
		models.SideRight: payload.Right,
	}
	for side, sp := range sides {
		if sp.Landmarks != nil {
			landmarks[side] = *sp.Landmarks
		}
		if len(sp.Metrics) > 0 {
			metrics[side] = sp.Metrics
		}
	}
	if err := report.SetLandmarks(landmarks); err != nil {
		return err
	}
	if err := report.SetMetrics(metrics); err != nil {
		return err
	}
	return nil
}
