package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/posturekit/posturebackend/models"
)

// ReportAssetRepository handles database operations for ReportAsset entities
type ReportAssetRepository struct {
	DB *gorm.DB
}

// NewReportAssetRepository creates a new instance of ReportAssetRepository
func NewReportAssetRepository(db *gorm.DB) *ReportAssetRepository {
	return &ReportAssetRepository{DB: db}
}

// Create inserts a new asset record
func (r *ReportAssetRepository) Create(asset *models.ReportAsset) error {
	if err := r.DB.Create(asset).Error; err != nil {
		return fmt.Errorf("failed to create asset %s: %w", asset.ClientID, err)
	}
	return nil
}

// GetByClientID retrieves an asset by its client id
func (r *ReportAssetRepository) GetByClientID(clientID string) (*models.ReportAsset, error) {
	var asset models.ReportAsset
	err := r.DB.Where("client_id = ?", clientID).First(&asset).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get asset by client id %s: %w", clientID, err)
	}
	return &asset, nil
}

// ListByReport retrieves all assets belonging to one report
func (r *ReportAssetRepository) ListByReport(reportClientID string) ([]models.ReportAsset, error) {
	var assets []models.ReportAsset
	err := r.DB.Where("report_client_id = ?", reportClientID).
		Order("created_at ASC").Find(&assets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list assets for report %s: %w", reportClientID, err)
	}
	return assets, nil
}

// ListPendingUpload retrieves a report's assets that have no server id yet
func (r *ReportAssetRepository) ListPendingUpload(reportClientID string) ([]models.ReportAsset, error) {
	var assets []models.ReportAsset
	err := r.DB.Where("report_client_id = ? AND server_id IS NULL", reportClientID).
		Order("created_at ASC").Find(&assets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending assets for report %s: %w", reportClientID, err)
	}
	return assets, nil
}

// SetServerID records the server-assigned asset id after a successful upload
func (r *ReportAssetRepository) SetServerID(clientID, serverID string) error {
	result := r.DB.Model(&models.ReportAsset{}).Where("client_id = ?", clientID).
		Update("server_id", serverID)
	if result.Error != nil {
		return fmt.Errorf("failed to set server id for asset %s: %w", clientID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetIngestResult records content hash, pixel dimensions and capture time
func (r *ReportAssetRepository) SetIngestResult(clientID, sha256 string, width, height *int, capturedAt *int64) error {
	updates := map[string]interface{}{
		"sha256":      sha256,
		"width":       width,
		"height":      height,
		"captured_at": capturedAt,
	}
	result := r.DB.Model(&models.ReportAsset{}).Where("client_id = ?", clientID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to set ingest result for asset %s: %w", clientID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteByClientID removes a single asset record
func (r *ReportAssetRepository) DeleteByClientID(clientID string) error {
	result := r.DB.Where("client_id = ?", clientID).Delete(&models.ReportAsset{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete asset %s: %w", clientID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteByReport removes all asset records belonging to one report
func (r *ReportAssetRepository) DeleteByReport(reportClientID string) error {
	err := r.DB.Where("report_client_id = ?", reportClientID).Delete(&models.ReportAsset{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete assets for report %s: %w", reportClientID, err)
	}
	return nil
}

// DeleteAll clears the report_assets table (cleanup orchestrator)
func (r *ReportAssetRepository) DeleteAll() error {
	if err := r.DB.Where("1 = 1").Delete(&models.ReportAsset{}).Error; err != nil {
		return fmt.Errorf("failed to clear report assets: %w", err)
	}
	return nil
}
