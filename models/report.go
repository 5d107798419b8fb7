package models

import (
	"encoding/json"
	"fmt"
)

// Task status values for report post-processing columns.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusError      = "error"
)

// Report is the durable local record of a finalized assessment. Identity is
// the locally generated client id; the server id and version are assigned on
// first successful upload and are authoritative from then on.
type Report struct {
	ClientID string  `gorm:"primaryKey" json:"client_id"`
	ServerID *string `gorm:"index" json:"server_id,omitempty"` // Nullable until first upload
	Version  int64   `gorm:"not null;default:0" json:"version"`

	CreatedAt int64 `gorm:"not null" json:"created_at"` // epoch milliseconds
	UpdatedAt int64 `gorm:"not null" json:"updated_at"` // epoch milliseconds

	SessionClientID string `gorm:"index;not null" json:"session_client_id"`

	PDFPath        *string `gorm:"" json:"pdf_path,omitempty"`
	PDFURL         *string `gorm:"" json:"pdf_url,omitempty"` // remote reference from delta pull
	ThumbnailPath  *string `gorm:"" json:"thumbnail_path,omitempty"`
	FrontImagePath *string `gorm:"" json:"front_image_path,omitempty"`
	RightImagePath *string `gorm:"" json:"right_image_path,omitempty"`

	// embedded per-side landmark sets and metrics, serialized as JSON
	LandmarksJSON string `gorm:"not null;default:'{}'" json:"-"`
	MetricsJSON   string `gorm:"not null;default:'{}'" json:"-"`
	PostureScore  int    `gorm:"not null;default:0" json:"posture_score"`

	// sync bookkeeping
	LastSyncedAt *int64 `gorm:"" json:"last_synced_at,omitempty"` // epoch ms of last successful push
	Deleted      bool   `gorm:"index;not null;default:false" json:"deleted"`

	// post-processing task state
	ThumbnailStatus      string  `gorm:"not null;default:pending" json:"thumbnail_status"`
	IngestStatus         string  `gorm:"not null;default:pending" json:"ingest_status"`
	ThumbnailProcessedAt *int64  `gorm:"" json:"thumbnail_processed_at,omitempty"`
	IngestProcessedAt    *int64  `gorm:"" json:"ingest_processed_at,omitempty"`
	ThumbnailError       *string `gorm:"" json:"thumbnail_error,omitempty"`
	IngestError          *string `gorm:"" json:"ingest_error,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Report) TableName() string {
	return "reports"
}

// Landmarks decodes the embedded per-side landmark sets.
func (r *Report) Landmarks() (map[Side]LandmarkSet, error) {
	out := make(map[Side]LandmarkSet)
	if r.LandmarksJSON == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(r.LandmarksJSON), &out); err != nil {
		return nil, fmt.Errorf("failed to decode landmarks for report %s: %w", r.ClientID, err)
	}
	return out, nil
}

// SetLandmarks encodes the per-side landmark sets into the record.
func (r *Report) SetLandmarks(sets map[Side]LandmarkSet) error {
	data, err := json.Marshal(sets)
	if err != nil {
		return fmt.Errorf("failed to encode landmarks for report %s: %w", r.ClientID, err)
	}
	r.LandmarksJSON = string(data)
	return nil
}

// Metrics decodes the embedded per-side metrics.
func (r *Report) Metrics() (map[Side][]Metric, error) {
	out := make(map[Side][]Metric)
	if r.MetricsJSON == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(r.MetricsJSON), &out); err != nil {
		return nil, fmt.Errorf("failed to decode metrics for report %s: %w", r.ClientID, err)
	}
	return out, nil
}

// SetMetrics encodes the per-side metrics into the record.
func (r *Report) SetMetrics(metrics map[Side][]Metric) error {
	data, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics for report %s: %w", r.ClientID, err)
	}
	r.MetricsJSON = string(data)
	return nil
}
