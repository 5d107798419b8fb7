package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultDocumentsSubDir  = "report_documents"
	DefaultThumbnailsSubDir = "report_thumbnails"
)

const (
	defaultReportQueueSize  = 100
	defaultNumReportWorkers = 2
	defaultThumbnailMaxSize = 300
	defaultSyncConcurrency  = 4
)

type Config struct {
	// database path (shared by the GORM layer and the sync-state tables)
	DatabasePath string

	// media storage configuration
	MediaStoragePath string // primary root for generated artifacts (documents, thumbs)
	DocumentsPath    string // full-calculated path for rendered report documents
	ThumbnailsPath   string // full-calculated path for report thumbnails

	// remote backend
	APIBaseURL   string
	APIAuthToken string

	// sync settings
	SyncConcurrency int

	// thumbnail generation settings
	ThumbnailMaxSize int

	// worker settings
	ReportQueueSize  int
	NumReportWorkers int
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	dbPath := getEnvOrDefault("DATABASE_PATH", "reports.db")

	mediaStorage := getEnvOrDefault("MEDIA_STORAGE_PATH", filepath.Join(".", "media_storage"))
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}

	documentsSubDir := getEnvOrDefault("DOCUMENTS_SUBDIR", DefaultDocumentsSubDir)
	absDocumentsPath := filepath.Join(absMediaStorage, documentsSubDir)

	thumbSubDir := getEnvOrDefault("THUMBNAILS_SUBDIR", DefaultThumbnailsSubDir)
	absThumbnailsPath := filepath.Join(absMediaStorage, thumbSubDir)

	apiBaseURL := getEnvOrDefault("API_BASE_URL", "http://localhost:8000")
	apiAuthToken := os.Getenv("API_AUTH_TOKEN")

	syncConcurrency := getEnvIntOrDefault("SYNC_CONCURRENCY", defaultSyncConcurrency)
	thumbMaxSize := getEnvIntOrDefault("THUMBNAIL_MAX_SIZE", defaultThumbnailMaxSize)
	queueSize := getEnvIntOrDefault("REPORT_QUEUE_SIZE", defaultReportQueueSize)
	numWorkers := getEnvIntOrDefault("NUM_REPORT_WORKERS", defaultNumReportWorkers)

	cfg := Config{
		DatabasePath:     dbPath,
		MediaStoragePath: absMediaStorage,
		DocumentsPath:    absDocumentsPath,
		ThumbnailsPath:   absThumbnailsPath,
		APIBaseURL:       apiBaseURL,
		APIAuthToken:     apiAuthToken,
		SyncConcurrency:  syncConcurrency,
		ThumbnailMaxSize: thumbMaxSize,
		ReportQueueSize:  queueSize,
		NumReportWorkers: numWorkers,
	}

	return cfg, nil
}
