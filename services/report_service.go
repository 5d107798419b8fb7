package services

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/posturekit/posturebackend/config"
	"github.com/posturekit/posturebackend/media"
	"github.com/posturekit/posturebackend/models"
	"github.com/posturekit/posturebackend/repository"
	"github.com/posturekit/posturebackend/session"
	"github.com/posturekit/posturebackend/workers"
)

// FinalizeInput is what the capture frontend supplies when turning the
// active session into a durable report.
type FinalizeInput struct {
	// DocumentPath points at the rendered report document produced by the
	// frontend's PDF pipeline.
	DocumentPath string `json:"document_path"`
	// Metrics are the computed postural angle metrics per side.
	Metrics map[models.Side][]models.Metric `json:"metrics"`
}

// ReportService turns completed sessions into durable reports and owns the
// associated asset registration.
type ReportService struct {
	Coordinator *session.Coordinator
	Results     *session.ResultStore
	Reports     repository.ReportRepositoryInterface
	Assets      repository.ReportAssetRepositoryInterface
	Store       media.Store
	Processor   *workers.ReportProcessor
	Cfg         config.Config
}

// FinalizeSession persists the active session as a report: it embeds the
// current (final-or-auto) landmark sets and the supplied metrics, copies the
// rendered document into the media store, registers per-side assets, resets
// the session and queues post-processing. Returns the created report.
func (s *ReportService) FinalizeSession(input FinalizeInput) (*models.Report, error) {
	sess := s.Coordinator.Current()
	if sess.ID == "" {
		return nil, fmt.Errorf("no active session to finalize")
	}

	landmarks := make(map[models.Side]models.LandmarkSet)
	for _, side := range models.Sides {
		st := sess.SideState(side)
		if st.CroppedPath == "" {
			return nil, fmt.Errorf("side %s has no cropped image", side)
		}
		if !media.IsRasterImage(st.CroppedPath) {
			return nil, fmt.Errorf("side %s cropped image %s is not a supported raster format", side, st.CroppedPath)
		}
		if !st.HasAuto {
			return nil, fmt.Errorf("side %s has no processed landmarks", side)
		}
		set, ok := s.Results.CurrentFinal(st.ResultID)
		if !ok {
			return nil, fmt.Errorf("side %s has no stored result for id %s", side, st.ResultID)
		}
		landmarks[side] = set
	}

	now := time.Now().UnixMilli()
	report := &models.Report{
		ClientID:        uuid.NewString(),
		CreatedAt:       now,
		UpdatedAt:       now,
		SessionClientID: sess.ID,
		PostureScore:    models.PostureScore(input.Metrics),
	}
	if err := report.SetLandmarks(landmarks); err != nil {
		return nil, err
	}
	if err := report.SetMetrics(input.Metrics); err != nil {
		return nil, err
	}

	frontPath := sess.Front.CroppedPath
	rightPath := sess.Right.CroppedPath
	report.FrontImagePath = &frontPath
	report.RightImagePath = &rightPath

	pdfPath, err := s.storeDocument(report.ClientID, input.DocumentPath)
	if err != nil {
		return nil, err
	}
	report.PDFPath = &pdfPath

	if err := s.Reports.Create(report); err != nil {
		return nil, err
	}

	for _, side := range models.Sides {
		st := sess.SideState(side)
		for kind, path := range map[string]string{
			models.AssetKindOriginal: st.OriginalPath,
			models.AssetKindCropped:  st.CroppedPath,
		} {
			if path == "" {
				continue
			}
			asset := &models.ReportAsset{
				ClientID:       uuid.NewString(),
				ReportClientID: report.ClientID,
				Side:           side,
				Kind:           kind,
				LocalPath:      path,
				CreatedAt:      now,
			}
			if err := s.Assets.Create(asset); err != nil {
				return nil, err
			}
		}
	}

	// the session and its cached results are consumed by finalization
	for _, side := range models.Sides {
		if id := sess.SideState(side).ResultID; id != "" {
			s.Results.Remove(id)
		}
	}
	s.Coordinator.Reset()

	s.Processor.QueueJob(workers.ReportJob{ReportClientID: report.ClientID, TaskType: workers.TaskThumbnail})
	s.Processor.QueueJob(workers.ReportJob{ReportClientID: report.ClientID, TaskType: workers.TaskIngest})

	log.Printf("finalized session %s into report %s", sess.ID, report.ClientID)
	return report, nil
}

// storeDocument copies the rendered document into the media store and
// returns its absolute path.
func (s *ReportService) storeDocument(reportClientID, documentPath string) (string, error) {
	file, err := os.Open(documentPath)
	if err != nil {
		return "", fmt.Errorf("failed to open rendered document %s: %w", documentPath, err)
	}
	defer file.Close()

	relPath, err := s.Store.Save(media.ArtifactTypeDocument, reportClientID, "report.pdf", file)
	if err != nil {
		return "", fmt.Errorf("failed to store document for report %s: %w", reportClientID, err)
	}
	fullPath, err := s.Store.GetFullPath(relPath)
	if err != nil {
		return "", err
	}
	return fullPath, nil
}

// DeleteReport removes a report on behalf of the user. A synced report is
// tombstoned so the next sync cycle propagates the delete; a local-only
// report is removed outright together with its assets and backing files.
func (s *ReportService) DeleteReport(clientID string) error {
	report, err := s.Reports.GetByClientID(clientID)
	if err != nil {
		return err
	}

	if report.ServerID != nil {
		return s.Reports.MarkDeleted(clientID)
	}

	assets, err := s.Assets.ListByReport(clientID)
	if err != nil {
		return err
	}
	for _, asset := range assets {
		removeFileIfPresent(asset.LocalPath)
	}
	for _, path := range []*string{report.PDFPath, report.ThumbnailPath} {
		if path != nil {
			removeFileIfPresent(*path)
		}
	}
	if err := s.Assets.DeleteByReport(clientID); err != nil {
		return err
	}
	return s.Reports.DeleteByClientID(clientID)
}
