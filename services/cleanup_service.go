package services

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"

	"github.com/posturekit/posturebackend/config"
	"github.com/posturekit/posturebackend/database"
	"github.com/posturekit/posturebackend/repository"
)

// CleanupService irrevocably purges all local report state (used on logout).
// File deletions are best-effort; the repositories are cleared last so a
// retry after a partial failure is safe.
type CleanupService struct {
	Reports repository.ReportRepositoryInterface
	Assets  repository.ReportAssetRepositoryInterface
	StateDB *sql.DB
	Cfg     config.Config
}

// PurgeAll walks every local report, deletes its backing files and its
// assets' backing files, clears both repositories and the sync state, then
// removes the now-orphaned per-report document directories. Idempotent:
// re-running attempts deletion of files that no longer exist, which is a
// no-op.
func (s *CleanupService) PurgeAll() error {
	reports, err := s.Reports.ListAll()
	if err != nil {
		return err
	}

	reportIDs := make([]string, 0, len(reports))
	for i := range reports {
		report := reports[i]
		reportIDs = append(reportIDs, report.ClientID)

		for _, path := range []*string{report.PDFPath, report.ThumbnailPath, report.FrontImagePath, report.RightImagePath} {
			if path != nil {
				removeFileIfPresent(*path)
			}
		}

		assets, err := s.Assets.ListByReport(report.ClientID)
		if err != nil {
			log.Printf("cleanup: failed to list assets for report %s: %v", report.ClientID, err)
			continue
		}
		for _, asset := range assets {
			removeFileIfPresent(asset.LocalPath)
		}
	}

	// repository clear happens after file deletion so an interrupted purge
	// still knows what to retry
	if err := s.Assets.DeleteAll(); err != nil {
		return err
	}
	if err := s.Reports.DeleteAll(); err != nil {
		return err
	}
	if s.StateDB != nil {
		if err := database.ClearSyncState(s.StateDB); err != nil {
			log.Printf("cleanup: failed to clear sync state: %v", err)
		}
	}

	for _, id := range reportIDs {
		dir := filepath.Join(s.Cfg.DocumentsPath, id)
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("cleanup: failed to remove report directory %s: %v", dir, err)
		}
	}

	log.Printf("cleanup: purged %d report(s) and all local sync state", len(reports))
	return nil
}

// removeFileIfPresent deletes a file, treating a missing file as success.
func removeFileIfPresent(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("cleanup: failed to remove file %s: %v", path, err)
	}
}
