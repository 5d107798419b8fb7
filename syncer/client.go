package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/posturekit/posturebackend/models"
)

// Client talks to the remote report backend. All calls take a context and
// return typed results; a response that fails to deserialize aborts only the
// call that received it.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
}

// NewClient creates a client for the given base URL. authToken may be empty.
func NewClient(baseURL, authToken string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		http:      &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s request: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	return req, nil
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("request %s %s returned status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

type resolveSessionRequest struct {
	SessionID       string `json:"sessionId,omitempty"`
	SessionClientID string `json:"sessionClientId"`
}

type resolveSessionResponse struct {
	SessionID string `json:"sessionId"`
}

// ResolveSession exchanges a session client id (plus an optionally known
// server id) for the authoritative server session id. Idempotent.
func (c *Client) ResolveSession(ctx context.Context, knownSessionID, sessionClientID string) (string, error) {
	reqBody, err := json.Marshal(resolveSessionRequest{
		SessionID:       knownSessionID,
		SessionClientID: sessionClientID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode session resolve request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/sessions/resolve/", bytes.NewReader(reqBody), "application/json")
	if err != nil {
		return "", err
	}

	var resp resolveSessionResponse
	if err := c.doJSON(req, &resp); err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("session resolve for %s returned an empty session id", sessionClientID)
	}
	return resp.SessionID, nil
}

type photoUploadResponse struct {
	ID string `json:"id"`
}

// UploadPhoto sends an asset's binary content plus metadata to the photo
// endpoint addressed by the resolved server session id. Returns the
// server-assigned asset id (which may be empty if the server omits it).
func (c *Client) UploadPhoto(ctx context.Context, sessionServerID string, asset *models.ReportAsset, file io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filepath.Base(asset.LocalPath))
	if err != nil {
		return "", fmt.Errorf("failed to create photo file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to copy photo content for asset %s: %w", asset.ClientID, err)
	}

	fields := map[string]string{
		"view":             string(asset.Side),
		"client_id":        asset.ClientID,
		"report_client_id": asset.ReportClientID,
		"kind":             asset.Kind,
		"sha256":           asset.SHA256,
		"created_at":       strconv.FormatInt(asset.CreatedAt, 10),
	}
	if asset.Width != nil {
		fields["width"] = strconv.Itoa(*asset.Width)
	}
	if asset.Height != nil {
		fields["height"] = strconv.Itoa(*asset.Height)
	}
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			return "", fmt.Errorf("failed to write photo field %s: %w", key, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize photo multipart body: %w", err)
	}

	path := fmt.Sprintf("/api/photos/upload/%s/", sessionServerID)
	req, err := c.newRequest(ctx, http.MethodPost, path, &buf, mw.FormDataContentType())
	if err != nil {
		return "", err
	}

	var resp photoUploadResponse
	if err := c.doJSON(req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

type reportUploadResponse struct {
	ID      string `json:"id"`
	Version *int64 `json:"version,omitempty"`
}

func (c *Client) uploadReport(ctx context.Context, method, path string, payload ReportPayload, document io.Reader, documentName string) (string, int64, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("document", documentName)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create document part: %w", err)
	}
	if _, err := io.Copy(part, document); err != nil {
		return "", 0, fmt.Errorf("failed to copy document content for report %s: %w", payload.ClientID, err)
	}

	metadata, err := json.Marshal(payload)
	if err != nil {
		return "", 0, fmt.Errorf("failed to encode report metadata for %s: %w", payload.ClientID, err)
	}
	if err := mw.WriteField("metadata", string(metadata)); err != nil {
		return "", 0, fmt.Errorf("failed to write report metadata part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to finalize report multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, method, path, &buf, mw.FormDataContentType())
	if err != nil {
		return "", 0, err
	}

	var resp reportUploadResponse
	if err := c.doJSON(req, &resp); err != nil {
		return "", 0, err
	}
	if resp.ID == "" {
		return "", 0, fmt.Errorf("report upload for %s returned an empty server id", payload.ClientID)
	}
	version := int64(1)
	if resp.Version != nil {
		version = *resp.Version
	}
	return resp.ID, version, nil
}

// CreateReport submits a new report (metadata + rendered document) and
// returns the server-assigned id and version.
func (c *Client) CreateReport(ctx context.Context, payload ReportPayload, document io.Reader, documentName string) (string, int64, error) {
	return c.uploadReport(ctx, http.MethodPost, "/api/reports/", payload, document, documentName)
}

// UpdateReport resubmits an existing report to the update endpoint and
// returns the new server version.
func (c *Client) UpdateReport(ctx context.Context, serverID string, payload ReportPayload, document io.Reader, documentName string) (string, int64, error) {
	return c.uploadReport(ctx, http.MethodPut, "/api/reports/"+serverID, payload, document, documentName)
}

// DeleteReport removes a report remotely. An already-gone report (404) is
// treated as success.
func (c *Client) DeleteReport(ctx context.Context, serverID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/reports/%s/", serverID), nil, "")
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete request for report %s failed: %w", serverID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delete for report %s returned status %d", serverID, resp.StatusCode)
	}
	return nil
}

// DeltaRequest is the two-way diff request: the server ids the client
// already knows plus a change watermark.
type DeltaRequest struct {
	KnownServerIDs []string `json:"knownServerIds"`
	Since          int64    `json:"since"`
}

// DeltaItem is one added-or-updated report in a delta response.
type DeltaItem struct {
	ID        string        `json:"id"`
	Version   int64         `json:"version"`
	CreatedAt int64         `json:"createdAt"`
	UpdatedAt int64         `json:"updatedAt"`
	Metadata  ReportPayload `json:"metadata"`
	PDFURL    string        `json:"pdfUrl"`
}

// DeltaResponse carries changes since the watermark plus explicit deletions.
type DeltaResponse struct {
	AddedOrUpdated   []DeltaItem `json:"addedOrUpdated"`
	DeletedServerIDs []string    `json:"deletedServerIds"`
}

// Delta fetches the report changes since the given watermark.
func (c *Client) Delta(ctx context.Context, knownServerIDs []string, since int64) (*DeltaResponse, error) {
	if knownServerIDs == nil {
		knownServerIDs = []string{}
	}
	reqBody, err := json.Marshal(DeltaRequest{KnownServerIDs: knownServerIDs, Since: since})
	if err != nil {
		return nil, fmt.Errorf("failed to encode delta request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/reports/delta/", bytes.NewReader(reqBody), "application/json")
	if err != nil {
		return nil, err
	}

	var resp DeltaResponse
	if err := c.doJSON(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
