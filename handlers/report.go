package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/facette/natsort"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/posturekit/posturebackend/models"
	"github.com/posturekit/posturebackend/repository"
	"github.com/posturekit/posturebackend/services"
)

// ReportHandler exposes the durable report store and finalization.
type ReportHandler struct {
	Reports repository.ReportRepositoryInterface
	Assets  repository.ReportAssetRepositoryInterface
	Svc     *services.ReportService
}

type reportResponse struct {
	models.Report
	AssetFiles []string `json:"asset_files,omitempty"`
}

func (rh *ReportHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	var input services.FinalizeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(input.DocumentPath) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: document_path"})
		return
	}

	report, err := rh.Svc.FinalizeSession(input)
	if err != nil {
		log.Printf("Error finalizing session: %v", err)
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (rh *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := rh.Reports.ListActive()
	if err != nil {
		log.Printf("Error listing reports: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve reports"})
		return
	}

	responses := make([]reportResponse, 0, len(reports))
	for i := range reports {
		responses = append(responses, rh.toResponse(&reports[i]))
	}
	writeJSON(w, http.StatusOK, responses)
}

func (rh *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client_id")
	report, err := rh.Reports.GetByClientID(clientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "report_not_found", "No report with client id "+clientID)
			return
		}
		log.Printf("Error fetching report %s: %v", clientID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve report"})
		return
	}
	writeJSON(w, http.StatusOK, rh.toResponse(report))
}

func (rh *ReportHandler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client_id")
	err := rh.Svc.DeleteReport(clientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "report_not_found", "No report with client id "+clientID)
			return
		}
		log.Printf("Error deleting report %s: %v", clientID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete report"})
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// toResponse attaches the naturally sorted asset filenames to a report.
func (rh *ReportHandler) toResponse(report *models.Report) reportResponse {
	resp := reportResponse{Report: *report}
	assets, err := rh.Assets.ListByReport(report.ClientID)
	if err != nil {
		log.Printf("Error listing assets for report %s: %v", report.ClientID, err)
		return resp
	}
	names := make([]string, 0, len(assets))
	for _, asset := range assets {
		names = append(names, filepath.Base(asset.LocalPath))
	}
	natsort.Sort(names)
	resp.AssetFiles = names
	return resp
}
