package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/adityar2309/Vehicle-Parking-App/internal/metrics"
	"github.com/adityar2309/Vehicle-Parking-App/internal/models"
)

func (s *HTTPServer) handleExports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleRequestExport(w, r)
	case http.MethodGet:
		s.handleExportHistory(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleRequestExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_request")

	type request struct {
		Format string `json:"format"`
	}
	var body request
	if r.Body != nil && r.ContentLength != 0 {
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	job, err := s.exports.RequestExport(r.Context(), identity(r).ID, strings.TrimSpace(body.Format))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job.View(time.Now().UTC()))
}

func (s *HTTPServer) handleExportHistory(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_history")

	limit := queryInt(r, "limit", 10)
	views, err := s.exports.History(r.Context(), identity(r).ID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": views})
}

// handleExportJob routes /api/v1/exports/{id}, {id}/download and
// {id}/cancel.
func (s *HTTPServer) handleExportJob(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/v1/exports/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	if rest == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	jobID, action, _ := strings.Cut(rest, "/")
	if jobID == "" || strings.Contains(action, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	user := identity(r)
	isAdmin := user.IsAdmin()

	switch {
	case action == "" && r.Method == http.MethodGet:
		metrics.IncHTTP("export_status")
		job, err := s.exports.Job(r.Context(), user.ID, isAdmin, jobID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job.View(time.Now().UTC()))

	case action == "download" && r.Method == http.MethodGet:
		metrics.IncHTTP("export_download")
		path, err := s.exports.Download(r.Context(), user.ID, isAdmin, jobID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.Header().Set("Content-Disposition", "attachment")
		http.ServeFile(w, r, path)

	case action == "cancel" && r.Method == http.MethodPost:
		metrics.IncHTTP("export_cancel")
		if err := s.exports.Cancel(r.Context(), user.ID, isAdmin, jobID); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": models.JobCancelled})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleAdminExports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("admin_exports")

	if !identity(r).IsAdmin() {
		writeError(w, http.StatusForbidden, "admin role required")
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", models.DefaultPaginationSize)

	views, total, err := s.exports.AdminList(r.Context(), status, page, perPage)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": views, "total": total})
}

func (s *HTTPServer) handleAdminSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("admin_sweep")

	if !identity(r).IsAdmin() {
		writeError(w, http.StatusForbidden, "admin role required")
		return
	}

	removed, err := s.exports.SweepExpired(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}
