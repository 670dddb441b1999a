// Package server exposes the split pipeline over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfsplitd/internal/config"
	"github.com/local/pdfsplitd/internal/dispatcher"
	"github.com/local/pdfsplitd/internal/filetype"
	"github.com/local/pdfsplitd/internal/jobs"
	"github.com/local/pdfsplitd/internal/split"
)

// Server wires HTTP routes onto the dispatcher and job tracker.
type Server struct {
	disp     *dispatcher.Dispatcher
	tracker  *jobs.Tracker
	detector *filetype.Detector
	fetcher  *Fetcher
	cfg      config.ServerConfig
	defaults config.SplitConfig
}

func New(disp *dispatcher.Dispatcher, tracker *jobs.Tracker, fetcher *Fetcher, cfg config.ServerConfig, defaults config.SplitConfig) *Server {
	return &Server{
		disp:     disp,
		tracker:  tracker,
		detector: filetype.New(),
		fetcher:  fetcher,
		cfg:      cfg,
		defaults: defaults,
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	auth := s.requireAuth
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/split", auth(s.handleSplit))
	mux.HandleFunc("/split/async", auth(s.handleSplitAsync))
	mux.HandleFunc("/split/preview", auth(s.handlePreview))
	mux.HandleFunc("/progress/", auth(s.handleProgress))
	mux.HandleFunc("/result/", auth(s.handleResult))
	mux.HandleFunc("/cancel", auth(s.handleCancel))
}

// splitReq is the JSON request body. Multipart uploads carry the same fields
// as form values plus the file part.
type splitReq struct {
	FileRef           string              `json:"file_ref"`
	Strategy          string              `json:"strategy"`
	Ranges            []string            `json:"ranges"`
	ThresholdMB       float64             `json:"threshold_mb"`
	SectionType       string              `json:"section_type"`
	NamePattern       string              `json:"name_pattern"`
	PreserveBookmarks *bool               `json:"preserve_bookmarks"`
	PreserveMetadata  *bool               `json:"preserve_metadata"`
	FailFast          *bool               `json:"fail_fast"`
	Content           split.ContentConfig `json:"content"`
}

// decodeRequest accepts either multipart/form-data with a "file" part or a
// JSON body with a "file_ref" source. Source bytes are magic-byte validated.
func (s *Server) decodeRequest(r *http.Request) (dispatcher.Request, error) {
	var req dispatcher.Request
	req.PreserveBookmarks = true
	req.PreserveMetadata = true
	req.FailFast = s.defaults.FailFast
	req.ThresholdMB = s.defaults.DefaultThresholdMB
	req.Content = split.ContentConfig{
		BlankCharThreshold: s.defaults.BlankCharThreshold,
		DensityJumpRatio:   s.defaults.DensityJumpRatio,
	}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		if err := r.ParseMultipartForm(int64(s.cfg.MaxUploadMB) << 20); err != nil {
			return req, &badRequestError{"invalid multipart form"}
		}
		file, hdr, err := r.FormFile("file")
		if err != nil {
			return req, &badRequestError{"missing file"}
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return req, fmt.Errorf("read upload: %w", err)
		}
		req.Data = data
		req.OriginalName = hdr.Filename
		req.Strategy = r.FormValue("strategy")
		if v := r.FormValue("ranges"); v != "" {
			for _, part := range strings.Split(v, ",") {
				if p := strings.TrimSpace(part); p != "" {
					req.Ranges = append(req.Ranges, p)
				}
			}
		}
		if v := r.FormValue("threshold_mb"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				req.ThresholdMB = f
			}
		}
		req.SectionType = r.FormValue("section_type")
		if v := r.FormValue("name_pattern"); v != "" {
			req.NamePattern = v
		}
		if v := r.FormValue("preserve_bookmarks"); v != "" {
			req.PreserveBookmarks = formBool(v)
		}
		if v := r.FormValue("preserve_metadata"); v != "" {
			req.PreserveMetadata = formBool(v)
		}
		if v := r.FormValue("fail_fast"); v != "" {
			req.FailFast = formBool(v)
		}
		if v := r.FormValue("blank_char_threshold"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				req.Content.BlankCharThreshold = n
			}
		}
		if v := r.FormValue("density_jump_ratio"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				req.Content.DensityJumpRatio = f
			}
		}
	} else {
		defer r.Body.Close()
		var body splitReq
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return req, &badRequestError{"invalid json"}
		}
		if body.FileRef == "" {
			return req, &badRequestError{"missing file_ref"}
		}
		data, name, err := s.fetcher.Fetch(r.Context(), body.FileRef)
		if err != nil {
			return req, fmt.Errorf("fetch source: %w", err)
		}
		req.Data = data
		req.OriginalName = name
		req.Strategy = body.Strategy
		req.Ranges = body.Ranges
		if body.ThresholdMB > 0 {
			req.ThresholdMB = body.ThresholdMB
		}
		req.SectionType = body.SectionType
		if body.NamePattern != "" {
			req.NamePattern = body.NamePattern
		}
		if body.PreserveBookmarks != nil {
			req.PreserveBookmarks = *body.PreserveBookmarks
		}
		if body.PreserveMetadata != nil {
			req.PreserveMetadata = *body.PreserveMetadata
		}
		if body.FailFast != nil {
			req.FailFast = *body.FailFast
		}
		if body.Content.BlankCharThreshold > 0 {
			req.Content.BlankCharThreshold = body.Content.BlankCharThreshold
		}
		if body.Content.DensityJumpRatio > 0 {
			req.Content.DensityJumpRatio = body.Content.DensityJumpRatio
		}
	}

	if err := s.detector.ValidatePDF(req.Data); err != nil {
		return req, err
	}
	return req, nil
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	req, err := s.decodeRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := s.disp.Run(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if r.URL.Query().Get("download") == "1" {
		serveArchive(w, r, resp.ArchivePath, resp.OriginalFilename)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSplitAsync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	req, err := s.decodeRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := s.disp.Submit(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"operation_id": id,
		"status":       jobs.StatusPending,
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	req, err := s.decodeRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := s.disp.Preview(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/progress/")
	job, err := s.tracker.Progress(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/result/")
	job, err := s.tracker.Progress(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	switch job.Status {
	case jobs.StatusCompleted:
		if job.ArchivePath == "" {
			http.Error(w, "result expired", http.StatusGone)
			return
		}
		serveArchive(w, r, job.ArchivePath, job.OriginalName)
	case jobs.StatusCancelled:
		// cancelled jobs may still carry a partial archive
		if job.ArchivePath != "" {
			serveArchive(w, r, job.ArchivePath, job.OriginalName)
			return
		}
		writeJSON(w, http.StatusConflict, job)
	case jobs.StatusFailed:
		writeJSON(w, http.StatusConflict, job)
	default:
		writeJSON(w, http.StatusAccepted, job)
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var body struct {
		OperationID string `json:"operation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.OperationID == "" {
		http.Error(w, "missing operation_id", http.StatusBadRequest)
		return
	}
	if err := s.tracker.Cancel(r.Context(), body.OperationID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"operation_id": body.OperationID, "status": "cancel_requested"})
}

func serveArchive(w http.ResponseWriter, r *http.Request, path, originalName string) {
	name := "split_result.zip"
	if originalName != "" {
		base := strings.TrimSuffix(originalName, ".pdf")
		name = base + "_split.zip"
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

// writeError maps the split error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var br *badRequestError
	var ute *filetype.UnsupportedTypeError
	var nf *split.JobNotFoundError
	switch {
	case errors.As(err, &br), errors.As(err, &ute), split.IsValidation(err):
		status = http.StatusBadRequest
	case split.IsNoStructure(err):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &nf):
		status = http.StatusNotFound
	case split.IsTimeout(err):
		status = http.StatusGatewayTimeout
	case errors.Is(err, split.ErrCancelled):
		status = http.StatusConflict
	case strings.Contains(err.Error(), "unknown split strategy"), strings.Contains(err.Error(), "unknown section type"):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func formBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}
