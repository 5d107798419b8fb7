package handlers

import (
	"log"
	"net/http"

	"github.com/posturekit/posturebackend/services"
	"github.com/posturekit/posturebackend/syncer"
)

// SyncHandler triggers sync cycles and the local data purge.
type SyncHandler struct {
	Engine  *syncer.Engine
	Cleanup *services.CleanupService
}

// RunSync executes one full sync cycle and returns its summary. Expected
// per-report failures are reported in the summary, not as an HTTP error.
func (sh *SyncHandler) RunSync(w http.ResponseWriter, r *http.Request) {
	summary, err := sh.Engine.RunCycle(r.Context())
	if err != nil {
		log.Printf("Sync cycle cancelled: %v", err)
		writeJSON(w, http.StatusAccepted, summary)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Purge irrevocably deletes all local report data (logout).
func (sh *SyncHandler) Purge(w http.ResponseWriter, r *http.Request) {
	if err := sh.Cleanup.PurgeAll(); err != nil {
		log.Printf("Error purging local data: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to purge local data"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}
