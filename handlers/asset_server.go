package handlers

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ArtifactServer creates a handler serving generated report artifacts
// (thumbnails, documents) from a subdirectory of the media storage root.
// The route prefix must match the subdirectory name, e.g.:
//
//	r.Get("/report_thumbnails/*", ArtifactServer(cfg.MediaStoragePath, "report_thumbnails"))
func ArtifactServer(baseStoragePath, subDir string) http.HandlerFunc {
	fullArtifactDirPath := filepath.Join(baseStoragePath, subDir)
	fullArtifactDirPath = filepath.Clean(fullArtifactDirPath)
	log.Printf("Serving artifacts for '/%s/*' from directory: %s", subDir, fullArtifactDirPath)

	if !strings.HasPrefix(fullArtifactDirPath, baseStoragePath) {
		log.Fatalf("FATAL: Artifact subdirectory '%s' resolved outside base storage path '%s'. Resolved path: '%s'", subDir, baseStoragePath, fullArtifactDirPath)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		routePrefix := "/api/" + subDir + "/"
		relativePath := strings.TrimPrefix(r.URL.Path, routePrefix)

		if relativePath == "" || strings.Contains(relativePath, "..") {
			http.Error(w, "Invalid artifact path", http.StatusBadRequest)
			return
		}

		requestedPath := filepath.Join(fullArtifactDirPath, relativePath)
		cleanedPath := filepath.Clean(requestedPath)

		if !strings.HasPrefix(cleanedPath, fullArtifactDirPath) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			log.Printf("SECURITY: Attempted artifact access outside designated directory: Request='%s', Resolved='%s', Allowed Base='%s'",
				r.URL.Path, cleanedPath, fullArtifactDirPath)
			return
		}

		if _, err := os.Stat(cleanedPath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		} else if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			log.Printf("Error stating artifact file %s: %v", cleanedPath, err)
			return
		}

		cacheDuration := 24 * time.Hour
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(cacheDuration.Seconds())))
		w.Header().Set("Expires", time.Now().Add(cacheDuration).Format(http.TimeFormat))

		http.ServeFile(w, r, cleanedPath)
	}
}
