package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/posturekit/posturebackend/models"
)

// ReportRepository handles database operations for Report entities
type ReportRepository struct {
	DB *gorm.DB
}

// NewReportRepository creates a new instance of ReportRepository
func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{DB: db}
}

// Create inserts a new report record
func (r *ReportRepository) Create(report *models.Report) error {
	if err := r.DB.Create(report).Error; err != nil {
		return fmt.Errorf("failed to create report %s: %w", report.ClientID, err)
	}
	return nil
}

// GetByClientID retrieves a report by its locally generated client id
func (r *ReportRepository) GetByClientID(clientID string) (*models.Report, error) {
	var report models.Report
	err := r.DB.Where("client_id = ?", clientID).First(&report).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get report by client id %s: %w", clientID, err)
	}
	return &report, nil
}

// GetByServerID retrieves a report by its server-assigned id
func (r *ReportRepository) GetByServerID(serverID string) (*models.Report, error) {
	var report models.Report
	err := r.DB.Where("server_id = ?", serverID).First(&report).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get report by server id %s: %w", serverID, err)
	}
	return &report, nil
}

// ListAll retrieves every report record, tombstoned ones included
func (r *ReportRepository) ListAll() ([]models.Report, error) {
	var reports []models.Report
	if err := r.DB.Order("created_at DESC").Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}

// ListActive retrieves reports that are not locally tombstoned
func (r *ReportRepository) ListActive() ([]models.Report, error) {
	var reports []models.Report
	err := r.DB.Where("deleted = ?", false).Order("created_at DESC").Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active reports: %w", err)
	}
	return reports, nil
}

// Touch bumps the logical update timestamp after a local edit
func (r *ReportRepository) Touch(clientID string, updatedAt int64) error {
	result := r.DB.Model(&models.Report{}).Where("client_id = ?", clientID).
		Update("updated_at", updatedAt)
	if result.Error != nil {
		return fmt.Errorf("failed to touch report %s: %w", clientID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListNeedingPush retrieves non-deleted reports that were never uploaded or
// were locally modified since their last successful sync
func (r *ReportRepository) ListNeedingPush() ([]models.Report, error) {
	var reports []models.Report
	err := r.DB.Where("deleted = ?", false).
		Where("server_id IS NULL OR last_synced_at IS NULL OR updated_at > last_synced_at").
		Order("created_at ASC").
		Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reports needing push: %w", err)
	}
	return reports, nil
}

// ListDeletedWithServerID retrieves local tombstones still present remotely
func (r *ReportRepository) ListDeletedWithServerID() ([]models.Report, error) {
	var reports []models.Report
	err := r.DB.Where("deleted = ? AND server_id IS NOT NULL", true).Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list deleted reports: %w", err)
	}
	return reports, nil
}

// KnownServerIDs returns every server id the local store has seen
func (r *ReportRepository) KnownServerIDs() ([]string, error) {
	var ids []string
	err := r.DB.Model(&models.Report{}).Where("server_id IS NOT NULL").
		Pluck("server_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list known server ids: %w", err)
	}
	return ids, nil
}

// SetServerAssignment records the server-assigned identity and version after
// a successful upload, and stamps the synced timestamp
func (r *ReportRepository) SetServerAssignment(clientID, serverID string, version, syncedAt int64) error {
	updates := map[string]interface{}{
		"server_id":      serverID,
		"version":        version,
		"last_synced_at": syncedAt,
	}
	result := r.DB.Model(&models.Report{}).Where("client_id = ?", clientID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to set server assignment for report %s: %w", clientID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpsertFromRemote applies a delta-pull item. An unknown server id inserts a
// new record; a known one replaces local metadata only when the incoming
// version is strictly newer. Returns true when a new record was inserted.
func (r *ReportRepository) UpsertFromRemote(report *models.Report) (bool, error) {
	if report.ServerID == nil {
		return false, fmt.Errorf("cannot upsert remote report without server id")
	}

	var existing models.Report
	err := r.DB.Where("server_id = ?", *report.ServerID).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		if err := r.DB.Create(report).Error; err != nil {
			return false, fmt.Errorf("failed to insert remote report %s: %w", *report.ServerID, err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up remote report %s: %w", *report.ServerID, err)
	}

	if report.Version <= existing.Version {
		return false, nil
	}

	updates := map[string]interface{}{
		"version":        report.Version,
		"created_at":     report.CreatedAt,
		"updated_at":     report.UpdatedAt,
		"pdf_url":        report.PDFURL,
		"landmarks_json": report.LandmarksJSON,
		"metrics_json":   report.MetricsJSON,
		"posture_score":  report.PostureScore,
		"last_synced_at": report.LastSyncedAt,
		"deleted":        false,
	}
	err = r.DB.Model(&models.Report{}).Where("client_id = ?", existing.ClientID).Updates(updates).Error
	if err != nil {
		return false, fmt.Errorf("failed to update report %s from remote: %w", existing.ClientID, err)
	}
	return false, nil
}

// MarkDeleted tombstones a report so the next sync cycle propagates the delete
func (r *ReportRepository) MarkDeleted(clientID string) error {
	now := time.Now().UnixMilli()
	result := r.DB.Model(&models.Report{}).Where("client_id = ?", clientID).
		Updates(map[string]interface{}{"deleted": true, "updated_at": now})
	if result.Error != nil {
		return fmt.Errorf("failed to mark report %s deleted: %w", clientID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteByClientID removes a report record outright
func (r *ReportRepository) DeleteByClientID(clientID string) error {
	result := r.DB.Where("client_id = ?", clientID).Delete(&models.Report{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete report %s: %w", clientID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteAll clears the reports table (cleanup orchestrator)
func (r *ReportRepository) DeleteAll() error {
	if err := r.DB.Where("1 = 1").Delete(&models.Report{}).Error; err != nil {
		return fmt.Errorf("failed to clear reports: %w", err)
	}
	return nil
}

// MarkTaskProcessing updates a post-processing task's status to 'processing'
// and clears its error
func (r *ReportRepository) MarkTaskProcessing(clientID, taskStatusColumn string) error {
	validStatusColumns := map[string]string{
		"thumbnail_status": "thumbnail_error",
		"ingest_status":    "ingest_error",
	}

	errorColumn, isValid := validStatusColumns[taskStatusColumn]
	if !isValid {
		return fmt.Errorf("invalid task status column name: %s", taskStatusColumn)
	}

	updates := map[string]interface{}{
		taskStatusColumn: models.StatusProcessing,
		errorColumn:      gorm.Expr("NULL"),
	}

	result := r.DB.Model(&models.Report{}).Where("client_id = ?", clientID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to mark task %s processing for %s: %w", taskStatusColumn, clientID, result.Error)
	}
	return nil
}

// UpdateThumbnailResult updates the report record with thumbnail generation results
func (r *ReportRepository) UpdateThumbnailResult(clientID string, thumbPath *string, taskErr error) error {
	now := time.Now().Unix()
	status := models.StatusDone
	var errStr *string

	if taskErr != nil {
		status = models.StatusError
		s := taskErr.Error()
		errStr = &s
	}

	updates := map[string]interface{}{
		"thumbnail_path":         thumbPath,
		"thumbnail_status":       status,
		"thumbnail_processed_at": &now,
		"thumbnail_error":        errStr,
	}

	result := r.DB.Model(&models.Report{}).Where("client_id = ?", clientID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update thumbnail result for %s: %w", clientID, result.Error)
	}
	return nil
}

// UpdateIngestResult updates the report record with asset ingest results
func (r *ReportRepository) UpdateIngestResult(clientID string, taskErr error) error {
	now := time.Now().Unix()
	status := models.StatusDone
	var errStr *string

	if taskErr != nil {
		status = models.StatusError
		s := taskErr.Error()
		errStr = &s
	}

	updates := map[string]interface{}{
		"ingest_status":       status,
		"ingest_processed_at": &now,
		"ingest_error":        errStr,
	}

	result := r.DB.Model(&models.Report{}).Where("client_id = ?", clientID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update ingest result for %s: %w", clientID, result.Error)
	}
	return nil
}
