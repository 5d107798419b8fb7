package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/posturekit/posturebackend/config"
	"github.com/posturekit/posturebackend/database"
	"github.com/posturekit/posturebackend/handlers"
	"github.com/posturekit/posturebackend/media"
	"github.com/posturekit/posturebackend/repository"
	"github.com/posturekit/posturebackend/services"
	"github.com/posturekit/posturebackend/session"
	"github.com/posturekit/posturebackend/syncer"
	"github.com/posturekit/posturebackend/workers"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	storagePaths := []string{cfg.DocumentsPath, cfg.ThumbnailsPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	gormDB, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(gormDB); err != nil {
		log.Fatalf("FATAL: Failed to migrate database: %v", err)
	}

	stateDB, err := database.InitSyncStateDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize sync state database: %v", err)
	}
	defer stateDB.Close()

	mediaSubDirs := map[media.ArtifactType]string{
		media.ArtifactTypeDocument:  filepath.Base(cfg.DocumentsPath),
		media.ArtifactTypeThumbnail: filepath.Base(cfg.ThumbnailsPath),
	}
	mediaStore, err := media.NewLocalStorage(cfg.MediaStoragePath, mediaSubDirs)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize media store: %v", err)
	}

	reportRepo := repository.NewReportRepository(gormDB)
	assetRepo := repository.NewReportAssetRepository(gormDB)

	coordinator := session.NewCoordinator()
	results := session.NewResultStore()

	log.Printf("Initializing report processor worker pool (Workers: %d, Queue Size: %d)...", cfg.NumReportWorkers, cfg.ReportQueueSize)
	reportProcessor := workers.NewReportProcessor(cfg, reportRepo, assetRepo, cfg.ReportQueueSize, cfg.NumReportWorkers)
	defer reportProcessor.Stop()

	apiClient := syncer.NewClient(cfg.APIBaseURL, cfg.APIAuthToken)
	syncEngine := syncer.NewEngine(apiClient, reportRepo, assetRepo, stateDB, cfg.SyncConcurrency)

	reportService := &services.ReportService{
		Coordinator: coordinator,
		Results:     results,
		Reports:     reportRepo,
		Assets:      assetRepo,
		Store:       mediaStore,
		Processor:   reportProcessor,
		Cfg:         cfg,
	}
	cleanupService := &services.CleanupService{
		Reports: reportRepo,
		Assets:  assetRepo,
		StateDB: stateDB,
		Cfg:     cfg,
	}

	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Storing report documents in: %s", cfg.DocumentsPath)
	log.Printf("Storing report thumbnails in: %s", cfg.ThumbnailsPath)
	log.Printf("Remote backend: %s (sync concurrency %d)", cfg.APIBaseURL, cfg.SyncConcurrency)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"}, //TODO: configurable
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsHandler.Handler)

	sessionHandler := &handlers.SessionHandler{Coordinator: coordinator, Results: results}
	reportHandler := &handlers.ReportHandler{Reports: reportRepo, Assets: assetRepo, Svc: reportService}
	syncHandler := &handlers.SyncHandler{Engine: syncEngine, Cleanup: cleanupService}

	r.Route("/api", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Post("/start", sessionHandler.StartSession)
			r.Get("/", sessionHandler.GetSession)
			r.Post("/reset", sessionHandler.ResetSession)
			r.Route("/{side}", func(r chi.Router) {
				r.Get("/", sessionHandler.GetSideState)
				r.Put("/original", sessionHandler.SetOriginal)
				r.Put("/cropped", sessionHandler.SetCropped)
				r.Post("/result-id", sessionHandler.EnsureResultID)
				r.Post("/auto-ready", sessionHandler.MarkAutoReady)
				r.Post("/final-ready", sessionHandler.MarkFinalReady)
			})
		})

		r.Route("/results/{result_id}", func(r chi.Router) {
			r.Get("/", sessionHandler.GetResult)
			r.Put("/", sessionHandler.PutResult)
			r.Put("/final", sessionHandler.PutFinalResult)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/", reportHandler.ListReports)
			r.Post("/finalize", reportHandler.Finalize)
			r.Route("/{client_id}", func(r chi.Router) {
				r.Get("/", reportHandler.GetReport)
				r.Delete("/", reportHandler.DeleteReport)
			})
		})

		r.Post("/sync/run", syncHandler.RunSync)
		r.Post("/purge", syncHandler.Purge)

		thumbnailSubDir := filepath.Base(cfg.ThumbnailsPath)
		r.Get(fmt.Sprintf("/%s/*", thumbnailSubDir), handlers.ArtifactServer(cfg.MediaStoragePath, thumbnailSubDir))
		log.Printf("Registered thumbnail server at /%s/*", thumbnailSubDir)

		documentSubDir := filepath.Base(cfg.DocumentsPath)
		r.Get(fmt.Sprintf("/%s/*", documentSubDir), handlers.ArtifactServer(cfg.MediaStoragePath, documentSubDir))
		log.Printf("Registered document server at /%s/*", documentSubDir)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	serverAddr := ":" + port
	fmt.Printf("Server starting on http://localhost:%s\n", port)
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
