package workers

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/posturekit/posturebackend/config"
	"github.com/posturekit/posturebackend/repository"
	"github.com/posturekit/posturebackend/utils"
)

// TaskType constants
const (
	TaskThumbnail = "thumbnail"
	TaskIngest    = "ingest"
)

type ReportJob struct {
	ReportClientID string
	TaskType       string
}

type ReportProcessor struct {
	JobQueue chan ReportJob
	Config   config.Config
	Reports  repository.ReportRepositoryInterface
	Assets   repository.ReportAssetRepositoryInterface
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[string]bool
	Mutex    sync.Mutex
}

func NewReportProcessor(cfg config.Config, reports repository.ReportRepositoryInterface, assets repository.ReportAssetRepositoryInterface, queueSize, numWorkers int) *ReportProcessor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	proc := &ReportProcessor{
		JobQueue: make(chan ReportJob, queueSize),
		Config:   cfg,
		Reports:  reports,
		Assets:   assets,
		StopChan: make(chan struct{}),
		Pending:  make(map[string]bool),
	}
	proc.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go proc.worker(i)
	}
	log.Printf("Started %d report processing worker(s) with queue size %d", numWorkers, queueSize)
	return proc
}

// worker processes jobs from the queue
func (rp *ReportProcessor) worker(id int) {
	defer rp.Wg.Done()

	log.Printf("Report worker %d started", id)
	for {
		select {
		case job, ok := <-rp.JobQueue:
			if !ok {
				log.Printf("Report worker %d stopping: Job queue closed", id)
				return
			}

			pendingKey := fmt.Sprintf("%s:%s", job.ReportClientID, job.TaskType)
			log.Printf("Worker %d: Received job type '%s' for report %s", id, job.TaskType, job.ReportClientID)

			statusColumn := job.TaskType + "_status"
			err := rp.Reports.MarkTaskProcessing(job.ReportClientID, statusColumn)
			if err != nil {
				log.Printf("Worker %d: ERROR marking %s processing for %s: %v. Skipping job.", id, job.TaskType, job.ReportClientID, err)
				rp.Mutex.Lock()
				delete(rp.Pending, pendingKey)
				rp.Mutex.Unlock()
				continue
			}

			switch job.TaskType {
			case TaskThumbnail:
				rp.processThumbnailTask(job)
			case TaskIngest:
				rp.processIngestTask(job)
			default:
				log.Printf("Worker %d: ERROR unknown task type '%s' for report %s", id, job.TaskType, job.ReportClientID)
			}

			rp.Mutex.Lock()
			delete(rp.Pending, pendingKey)
			rp.Mutex.Unlock()

		case <-rp.StopChan:
			log.Printf("Report worker %d stopping: Stop signal received", id)
			return
		}
	}
}

// processThumbnailTask generates the report thumbnail from the front capture
// (falling back to the right one) and records the result
func (rp *ReportProcessor) processThumbnailTask(job ReportJob) {
	var taskErr error
	var thumbPathPtr *string

	report, err := rp.Reports.GetByClientID(job.ReportClientID)
	if err != nil {
		log.Printf("Worker: ERROR loading report %s for thumbnail task: %v", job.ReportClientID, err)
		return
	}

	sourcePath := ""
	if report.FrontImagePath != nil {
		sourcePath = *report.FrontImagePath
	} else if report.RightImagePath != nil {
		sourcePath = *report.RightImagePath
	}

	if sourcePath == "" {
		taskErr = fmt.Errorf("report has no capture image to thumbnail")
	} else if _, statErr := os.Stat(sourcePath); os.IsNotExist(statErr) {
		taskErr = fmt.Errorf("capture image not found: %w", statErr)
		log.Printf("Worker: Skipping thumbnail task for %s: %v", job.ReportClientID, taskErr)
	} else if statErr != nil {
		taskErr = fmt.Errorf("failed to stat capture image: %w", statErr)
		log.Printf("Worker: ERROR stating image for thumbnail task %s: %v", job.ReportClientID, taskErr)
	} else {
		thumbSavePath, genErr := utils.GenerateThumbnail(sourcePath, rp.Config.ThumbnailsPath, rp.Config.ThumbnailMaxSize)
		if genErr != nil {
			taskErr = fmt.Errorf("thumbnail generation failed: %w", genErr)
			log.Printf("Worker: ERROR %v", taskErr)
		} else {
			thumbPathPtr = &thumbSavePath
			log.Printf("Worker: Generated thumbnail for report %s", job.ReportClientID)
		}
	}

	dbErr := rp.Reports.UpdateThumbnailResult(job.ReportClientID, thumbPathPtr, taskErr)
	if dbErr != nil {
		log.Printf("Worker: ERROR updating thumbnail result for %s: %v", job.ReportClientID, dbErr)
	}
}

// processIngestTask computes content hashes, pixel dimensions and capture
// timestamps for every asset of the report that lacks them
func (rp *ReportProcessor) processIngestTask(job ReportJob) {
	var taskErr error

	assets, err := rp.Assets.ListByReport(job.ReportClientID)
	if err != nil {
		log.Printf("Worker: ERROR listing assets for ingest task %s: %v", job.ReportClientID, err)
		return
	}

	for i := range assets {
		asset := assets[i]
		if asset.SHA256 != "" {
			continue
		}

		hash, hashErr := utils.FileSHA256(asset.LocalPath)
		if hashErr != nil {
			taskErr = fmt.Errorf("failed to hash asset %s: %w", asset.ClientID, hashErr)
			log.Printf("Worker: ERROR %v", taskErr)
			continue
		}

		meta, metaErr := utils.GetCaptureMetadata(asset.LocalPath)
		if metaErr != nil {
			log.Printf("Worker: Warning - could not read capture metadata for asset %s: %v", asset.ClientID, metaErr)
			meta = &utils.CaptureMetadata{}
		}

		if dbErr := rp.Assets.SetIngestResult(asset.ClientID, hash, meta.Width, meta.Height, meta.CapturedAt); dbErr != nil {
			taskErr = dbErr
			log.Printf("Worker: ERROR recording ingest result for asset %s: %v", asset.ClientID, dbErr)
		}
	}

	dbErr := rp.Reports.UpdateIngestResult(job.ReportClientID, taskErr)
	if dbErr != nil {
		log.Printf("Worker: ERROR updating ingest result for %s: %v", job.ReportClientID, dbErr)
	}
}

// QueueJob queues a specific task if not already pending
func (rp *ReportProcessor) QueueJob(job ReportJob) bool {
	// use composite key: "reportClientID:taskType"
	pendingKey := fmt.Sprintf("%s:%s", job.ReportClientID, job.TaskType)

	rp.Mutex.Lock()
	if rp.Pending[pendingKey] {
		rp.Mutex.Unlock()
		return false
	}

	rp.Pending[pendingKey] = true
	rp.Mutex.Unlock()

	select {
	case rp.JobQueue <- job:
		log.Printf("Queued task '%s' for report %s", job.TaskType, job.ReportClientID)
		return true
	default:
		log.Printf("WARNING: Report processing job queue full. Failed to queue task '%s' for report %s", job.TaskType, job.ReportClientID)
		rp.Mutex.Lock()
		delete(rp.Pending, pendingKey)
		rp.Mutex.Unlock()
		return false
	}
}

func (rp *ReportProcessor) Stop() {
	log.Println("Stopping report processor workers...")
	close(rp.StopChan)
	rp.Wg.Wait()
	log.Println("All report processor workers stopped")
}
