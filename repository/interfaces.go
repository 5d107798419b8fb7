package repository

import (
	"github.com/posturekit/posturebackend/models"
)

// ReportRepositoryInterface defines the methods for report data operations
type ReportRepositoryInterface interface {
	Create(report *models.Report) error
	GetByClientID(clientID string) (*models.Report, error)
	GetByServerID(serverID string) (*models.Report, error)
	ListAll() ([]models.Report, error)
	ListActive() ([]models.Report, error)
	Touch(clientID string, updatedAt int64) error

	// sync selection and bookkeeping
	ListNeedingPush() ([]models.Report, error)
	ListDeletedWithServerID() ([]models.Report, error)
	KnownServerIDs() ([]string, error)
	SetServerAssignment(clientID, serverID string, version, syncedAt int64) error
	UpsertFromRemote(report *models.Report) (bool, error)

	// deletion
	MarkDeleted(clientID string) error
	DeleteByClientID(clientID string) error
	DeleteAll() error

	// post-processing task state
	MarkTaskProcessing(clientID, taskStatusColumn string) error
	UpdateThumbnailResult(clientID string, thumbPath *string, taskErr error) error
	UpdateIngestResult(clientID string, taskErr error) error
}

// ReportAssetRepositoryInterface defines the methods for report asset data operations
type ReportAssetRepositoryInterface interface {
	Create(asset *models.ReportAsset) error
	GetByClientID(clientID string) (*models.ReportAsset, error)
	ListByReport(reportClientID string) ([]models.ReportAsset, error)
	ListPendingUpload(reportClientID string) ([]models.ReportAsset, error)
	SetServerID(clientID, serverID string) error
	SetIngestResult(clientID, sha256 string, width, height *int, capturedAt *int64) error
	DeleteByClientID(clientID string) error
	DeleteByReport(reportClientID string) error
	DeleteAll() error
}
