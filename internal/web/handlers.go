package web

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/bulkindex/internal/blob"
	"github.com/JonMunkholm/bulkindex/internal/core"
	"github.com/JonMunkholm/bulkindex/internal/logging"
)

// PreviewArtifact is the name of the archived error report of a preview.
const PreviewArtifact = "preview.error"

var errArchiveDisabled = errors.New("archive disabled")

// PreviewResponse is returned by POST /api/preview.
type PreviewResponse struct {
	*core.RunSummary
	Status   string `json:"status"`
	Archived bool   `json:"archived"`
}

// handlePreview sanity checks the request body, either raw text or the
// "file" field of a multipart form. The encoding query parameter selects
// latin1 (default) or utf-8.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	enc, err := core.ParseEncoding(r.URL.Query().Get("encoding"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	body, err := previewBody(r, s.cfg.MaxUploadSize)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, err)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer body.Close()

	ctx, runID := newRunContext(r)
	if err := s.limiter.Acquire(ctx); err != nil {
		respondError(w, r, err)
		return
	}
	defer s.limiter.Release()

	summary, err := s.runner.Preview(ctx, runID, body, enc, s.clock())
	if err != nil {
		respondError(w, r.WithContext(ctx), err)
		return
	}

	resp := PreviewResponse{RunSummary: summary, Status: summary.Status()}
	if s.archiver != nil {
		report := strings.NewReader(summary.ErrorReport())
		if err := s.archiver.PutArtifact(ctx, runID, PreviewArtifact, report); err != nil {
			logging.FromContext(ctx).Warn("preview report not archived", "error", err)
		} else {
			resp.Archived = true
		}
	}

	w.Header().Set("X-Run-ID", runID)
	writeJSON(w, http.StatusOK, resp)
}

// previewBody returns the uploaded file of a multipart request or the raw
// request body.
func previewBody(r *http.Request, maxSize int64) (io.ReadCloser, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, nil
	}
	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, errors.New("invalid multipart form")
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("no file provided")
	}
	return file, nil
}

// handleListArtifacts lists the archived files of a run.
func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	if s.archiver == nil {
		writeError(w, http.StatusNotFound, errArchiveDisabled.Error())
		return
	}
	runID := chi.URLParam(r, "runID")
	infos, err := s.archiver.ListArtifacts(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(infos) == 0 {
		writeError(w, http.StatusNotFound, "unknown run "+runID)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleArtifact streams one archived file.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	if s.archiver == nil {
		writeError(w, http.StatusNotFound, errArchiveDisabled.Error())
		return
	}
	runID, name := chi.URLParam(r, "runID"), chi.URLParam(r, "name")
	info, rc, err := s.archiver.OpenArtifact(r.Context(), runID, name)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			respondError(w, r, err)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer rc.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logging.FromContext(r.Context()).Warn("artifact stream interrupted", "run_id", runID, "name", name, "error", err)
	}
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status   string                `json:"status"`
	Database string                `json:"database"`
	Runs     core.RunLimiterStatus `json:"runs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Database: "ok", Runs: s.limiter.Status()}
	status := http.StatusOK
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			logging.FromContext(r.Context()).Warn("health check: database unreachable", "error", err)
			resp.Status = "degraded"
			resp.Database = core.MapError(err).Message
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}
