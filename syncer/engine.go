package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/posturekit/posturebackend/database"
	"github.com/posturekit/posturebackend/models"
	"github.com/posturekit/posturebackend/repository"
)

// ErrVersionConflict marks a report update whose returned version did not
// exceed the last-known local version. Local state is left untouched;
// resolution happens via a subsequent pull-then-push cycle.
var ErrVersionConflict = errors.New("report version conflict")

// Outcome classifies what happened to one report during a sync cycle.
type Outcome string

const (
	OutcomeUploaded Outcome = "uploaded"
	OutcomeUpdated  Outcome = "updated"
	OutcomeConflict Outcome = "conflict"
	OutcomeFailed   Outcome = "failed"
)

// ReportOutcome is the per-report result surfaced to the caller.
type ReportOutcome struct {
	ReportClientID string  `json:"report_client_id"`
	Outcome        Outcome `json:"outcome"`
	Error          string  `json:"error,omitempty"`
}

// CycleSummary aggregates one sync cycle. Expected failure modes land here,
// never as a returned error.
type CycleSummary struct {
	Uploaded   int             `json:"uploaded"`
	Updated    int             `json:"updated"`
	Deleted    int             `json:"deleted"`
	Failed     int             `json:"failed"`
	Conflicts  int             `json:"conflicts"`
	Pulled     int             `json:"pulled"`
	PullFailed bool            `json:"pull_failed"`
	Outcomes   []ReportOutcome `json:"outcomes"`
}

// Engine reconciles local reports and assets against the remote backend.
type Engine struct {
	client  *Client
	reports repository.ReportRepositoryInterface
	assets  repository.ReportAssetRepositoryInterface
	stateDB *sql.DB

	// resolved session ids, sessionClientID -> server session id; write-through
	// to the sync-state table so a crash between resolve and upload is safe
	sessionIDs *cache.Cache

	concurrency int

	// non-reentrant guard keyed by report client id: a report mid-upload must
	// not be concurrently selected again
	mutex    sync.Mutex
	inFlight map[string]bool
}

// NewEngine creates a sync engine. concurrency bounds how many reports are
// pushed in parallel within one cycle.
func NewEngine(client *Client, reports repository.ReportRepositoryInterface, assets repository.ReportAssetRepositoryInterface, stateDB *sql.DB, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Engine{
		client:      client,
		reports:     reports,
		assets:      assets,
		stateDB:     stateDB,
		sessionIDs:  cache.New(cache.NoExpiration, 0),
		concurrency: concurrency,
		inFlight:    make(map[string]bool),
	}
}

func (e *Engine) tryAcquire(reportClientID string) bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.inFlight[reportClientID] {
		return false
	}
	e.inFlight[reportClientID] = true
	return true
}

func (e *Engine) release(reportClientID string) {
	e.mutex.Lock()
	delete(e.inFlight, reportClientID)
	e.mutex.Unlock()
}

// RunCycle performs one full reconciliation: push pending reports (assets
// first, then metadata), propagate local deletes, then pull the delta.
// Failures in one report never abort the others; a pull failure aborts only
// the pull phase. The returned error is non-nil only for context
// cancellation.
func (e *Engine) RunCycle(ctx context.Context) (*CycleSummary, error) {
	summary := &CycleSummary{}
	var summaryMu sync.Mutex

	record := func(out ReportOutcome) {
		summaryMu.Lock()
		defer summaryMu.Unlock()
		summary.Outcomes = append(summary.Outcomes, out)
		switch out.Outcome {
		case OutcomeUploaded:
			summary.Uploaded++
		case OutcomeUpdated:
			summary.Updated++
		case OutcomeConflict:
			summary.Conflicts++
		case OutcomeFailed:
			summary.Failed++
		}
	}

	pending, err := e.reports.ListNeedingPush()
	if err != nil {
		log.Printf("sync: failed to list reports needing push: %v", err)
	}

	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)
	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		report := pending[i]
		if !e.tryAcquire(report.ClientID) {
			continue
		}
		g.Go(func() error {
			defer e.release(report.ClientID)
			outcome, pushErr := e.pushReport(ctx, &report)
			out := ReportOutcome{ReportClientID: report.ClientID, Outcome: outcome}
			if pushErr != nil {
				out.Error = pushErr.Error()
				log.Printf("sync: report %s: %v", report.ClientID, pushErr)
			}
			record(out)
			return nil
		})
	}
	g.Wait()

	if ctx.Err() != nil {
		return summary, ctx.Err()
	}

	e.propagateLocalDeletes(ctx, summary)

	if ctx.Err() != nil {
		return summary, ctx.Err()
	}

	if err := e.pullDelta(ctx, summary); err != nil {
		summary.PullFailed = true
		log.Printf("sync: delta pull failed: %v", err)
	}

	log.Printf("sync: cycle complete (uploaded=%d updated=%d deleted=%d pulled=%d conflicts=%d failed=%d)",
		summary.Uploaded, summary.Updated, summary.Deleted, summary.Pulled, summary.Conflicts, summary.Failed)
	return summary, ctx.Err()
}

// resolveSessionID returns the server session id for a session client id,
// consulting the in-process cache, then the sync-state table, then the
// resolve endpoint. A freshly resolved id is persisted before use.
func (e *Engine) resolveSessionID(ctx context.Context, sessionClientID string) (string, error) {
	if v, ok := e.sessionIDs.Get(sessionClientID); ok {
		return v.(string), nil
	}

	known, err := database.GetSessionServerID(e.stateDB, sessionClientID)
	if err != nil && err != sql.ErrNoRows {
		return "", err
	}

	serverID, err := e.client.ResolveSession(ctx, known, sessionClientID)
	if err != nil {
		return "", err
	}

	if err := database.SetSessionServerID(e.stateDB, sessionClientID, serverID, time.Now().UnixMilli()); err != nil {
		return "", err
	}
	e.sessionIDs.Set(sessionClientID, serverID, cache.NoExpiration)
	return serverID, nil
}

// pushReport uploads one report: session resolution, then pending assets,
// then the metadata + document body. Local sync state is committed only
// after a successful server response.
func (e *Engine) pushReport(ctx context.Context, report *models.Report) (Outcome, error) {
	sessionServerID, err := e.resolveSessionID(ctx, report.SessionClientID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("session resolution failed: %w", err)
	}

	if err := e.uploadPendingAssets(ctx, report, sessionServerID); err != nil {
		return OutcomeFailed, err
	}

	// re-read assets so the metadata embeds the freshly assigned server ids
	allAssets, err := e.assets.ListByReport(report.ClientID)
	if err != nil {
		return OutcomeFailed, err
	}

	payload, err := BuildReportPayload(report, allAssets, sessionServerID)
	if err != nil {
		return OutcomeFailed, err
	}

	if report.PDFPath == nil {
		return OutcomeFailed, fmt.Errorf("report %s has no rendered document", report.ClientID)
	}
	document, err := os.Open(*report.PDFPath)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to open document for report %s: %w", report.ClientID, err)
	}
	defer document.Close()
	documentName := report.ClientID + ".pdf"

	now := time.Now().UnixMilli()
	if report.ServerID == nil {
		serverID, version, err := e.client.CreateReport(ctx, payload, document, documentName)
		if err != nil {
			return OutcomeFailed, err
		}
		if err := e.reports.SetServerAssignment(report.ClientID, serverID, version, now); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeUploaded, nil
	}

	serverID, version, err := e.client.UpdateReport(ctx, *report.ServerID, payload, document, documentName)
	if err != nil {
		return OutcomeFailed, err
	}
	if version <= report.Version {
		return OutcomeConflict, fmt.Errorf("%w: server returned version %d, local version is %d", ErrVersionConflict, version, report.Version)
	}
	if err := e.reports.SetServerAssignment(report.ClientID, serverID, version, now); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeUpdated, nil
}

// uploadPendingAssets pushes every asset of the report that has no server id
// yet. Assets already carrying a server id are skipped for their lifetime.
func (e *Engine) uploadPendingAssets(ctx context.Context, report *models.Report, sessionServerID string) error {
	pending, err := e.assets.ListPendingUpload(report.ClientID)
	if err != nil {
		return err
	}

	for i := range pending {
		asset := pending[i]
		file, err := os.Open(asset.LocalPath)
		if err != nil {
			return fmt.Errorf("failed to open asset %s: %w", asset.ClientID, err)
		}
		serverID, err := e.client.UploadPhoto(ctx, sessionServerID, &asset, file)
		file.Close()
		if err != nil {
			return fmt.Errorf("failed to upload asset %s: %w", asset.ClientID, err)
		}
		if serverID == "" {
			// server accepted the binary but assigned no id; keep the asset
			// pending so a later cycle can retry once the backend reports one
			log.Printf("sync: asset %s uploaded without a server id", asset.ClientID)
			continue
		}
		if err := e.assets.SetServerID(asset.ClientID, serverID); err != nil {
			return err
		}
	}
	return nil
}

// propagateLocalDeletes submits tombstoned reports to the delete endpoint
// and drops the local records and backing files on success ("already gone"
// counts as success).
func (e *Engine) propagateLocalDeletes(ctx context.Context, summary *CycleSummary) {
	tombstones, err := e.reports.ListDeletedWithServerID()
	if err != nil {
		log.Printf("sync: failed to list tombstoned reports: %v", err)
		return
	}

	for i := range tombstones {
		if ctx.Err() != nil {
			return
		}
		report := tombstones[i]
		if !e.tryAcquire(report.ClientID) {
			continue
		}
		err := e.client.DeleteReport(ctx, *report.ServerID)
		if err == nil {
			if err := e.dropLocalReport(&report); err != nil {
				log.Printf("sync: failed to drop deleted report %s: %v", report.ClientID, err)
			} else {
				summary.Deleted++
			}
		} else {
			summary.Failed++
			summary.Outcomes = append(summary.Outcomes, ReportOutcome{
				ReportClientID: report.ClientID,
				Outcome:        OutcomeFailed,
				Error:          err.Error(),
			})
			log.Printf("sync: failed to propagate delete for report %s: %v", report.ClientID, err)
		}
		e.release(report.ClientID)
	}
}

// pullDelta fetches changes since the persisted watermark, upserts
// added-or-updated items and applies explicit deletions. The watermark
// advances only after the whole pull succeeded.
func (e *Engine) pullDelta(ctx context.Context, summary *CycleSummary) error {
	known, err := e.reports.KnownServerIDs()
	if err != nil {
		return err
	}
	since, err := database.GetSyncWatermark(e.stateDB)
	if err != nil {
		return err
	}

	resp, err := e.client.Delta(ctx, known, since)
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	maxSeen := since
	for i := range resp.AddedOrUpdated {
		item := resp.AddedOrUpdated[i]
		report := models.Report{
			ClientID:        item.Metadata.ClientID,
			ServerID:        &item.ID,
			Version:         item.Version,
			CreatedAt:       item.CreatedAt,
			UpdatedAt:       item.UpdatedAt,
			LastSyncedAt:    &now,
			ThumbnailStatus: models.StatusDone,
			IngestStatus:    models.StatusDone,
		}
		if item.PDFURL != "" {
			report.PDFURL = &item.PDFURL
		}
		if report.ClientID == "" {
			report.ClientID = uuid.NewString()
		}
		if err := ApplyReportPayload(item.Metadata, &report); err != nil {
			log.Printf("sync: skipping malformed delta item %s: %v", item.ID, err)
			continue
		}
		inserted, err := e.reports.UpsertFromRemote(&report)
		if err != nil {
			return err
		}
		if inserted {
			log.Printf("sync: pulled new report %s (server id %s)", report.ClientID, item.ID)
		}
		summary.Pulled++
		if item.UpdatedAt > maxSeen {
			maxSeen = item.UpdatedAt
		}
	}

	for _, serverID := range resp.DeletedServerIDs {
		if err := e.removeLocalByServerID(serverID); err != nil {
			return err
		}
		summary.Deleted++
	}

	if maxSeen > since {
		if err := database.SetSyncWatermark(e.stateDB, maxSeen); err != nil {
			return err
		}
	}
	return nil
}

// removeLocalByServerID deletes the local report and its assets for a
// remotely deleted server id, unsynced local edits included.
func (e *Engine) removeLocalByServerID(serverID string) error {
	report, err := e.reports.GetByServerID(serverID)
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	if err := e.dropLocalReport(report); err != nil {
		return err
	}
	log.Printf("sync: removed local report %s per remote deletion of %s", report.ClientID, serverID)
	return nil
}

// dropLocalReport removes a report's asset and report records along with
// their backing files. File removal is best-effort; once the rows are gone
// the cleanup orchestrator can no longer find the files, so they go first.
func (e *Engine) dropLocalReport(report *models.Report) error {
	assets, err := e.assets.ListByReport(report.ClientID)
	if err != nil {
		return err
	}
	for _, asset := range assets {
		removeFileQuietly(asset.LocalPath)
	}
	for _, path := range []*string{report.PDFPath, report.ThumbnailPath} {
		if path != nil {
			removeFileQuietly(*path)
		}
	}

	if err := e.assets.DeleteByReport(report.ClientID); err != nil {
		return err
	}
	if err := e.reports.DeleteByClientID(report.ClientID); err != nil && err != gorm.ErrRecordNotFound {
		return err
	}
	return nil
}

func removeFileQuietly(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("sync: failed to remove file %s: %v", path, err)
	}
}
