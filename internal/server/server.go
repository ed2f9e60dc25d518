// Package server exposes the pipeline over HTTP: upload a PDF, poll progress,
// download the result.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/scanlike/internal/config"
	"github.com/local/scanlike/internal/filetype"
	"github.com/local/scanlike/internal/limiter"
	"github.com/local/scanlike/internal/logger"
	"github.com/local/scanlike/internal/metrics"
	"github.com/local/scanlike/internal/orchestrator"
	"github.com/local/scanlike/internal/scanerr"
	"github.com/local/scanlike/internal/store"
)

// slotKey is the limiter key shared by all upload jobs.
const slotKey = "jobs"

// Runner executes one pipeline request.
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request, progress orchestrator.ProgressFunc) (orchestrator.Result, error)
}

type Options struct {
	UploadDir   string
	ResultDir   string
	MaxUploadMB int64
	DefaultDPI  int
	Quality     int
	Seed        int64
	// Auth wraps the job routes; nil leaves them open.
	Auth func(http.HandlerFunc) http.HandlerFunc
}

type Server struct {
	ctx    context.Context
	runner Runner
	status store.StatusStore
	slots  *limiter.Slots
	opts   Options
	wg     sync.WaitGroup
}

// New creates a Server. Jobs run under ctx and stop when it is cancelled.
func New(ctx context.Context, runner Runner, status store.StatusStore, slots *limiter.Slots, opts Options) *Server {
	if opts.UploadDir == "" {
		opts.UploadDir = "uploads"
	}
	if opts.ResultDir == "" {
		opts.ResultDir = "results"
	}
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 100
	}
	if opts.DefaultDPI == 0 {
		opts.DefaultDPI = config.DefaultDPI
	}
	if slots == nil {
		slots = limiter.New(0)
	}
	return &Server{ctx: ctx, runner: runner, status: status, slots: slots, opts: opts}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	auth := s.opts.Auth
	if auth == nil {
		auth = func(h http.HandlerFunc) http.HandlerFunc { return h }
	}
	mux.HandleFunc("/process", auth(s.handleProcess))
	mux.HandleFunc("/progress/", auth(s.handleProgress))
	mux.HandleFunc("/download/", auth(s.handleDownload))
	mux.Handle("/metrics", metrics.Handler())
}

// Wait blocks until all running jobs have finished.
func (s *Server) Wait() { s.wg.Wait() }

type processResp struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id,omitempty"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// handleProcess accepts multipart/form-data with fields file (required), remove,
// scan and dpi, and starts the job in the background.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadMB<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	// sniff before a slot is taken so junk uploads never queue
	info, err := filetype.DetectReader(file)
	if err != nil || !info.IsPDF {
		http.Error(w, "uploaded file is not a PDF", http.StatusBadRequest)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		http.Error(w, "cannot read upload", http.StatusInternalServerError)
		return
	}

	remove := strings.TrimSpace(r.FormValue("remove"))
	scan := parseBool(r.FormValue("scan"))
	if remove == "" && !scan {
		http.Error(w, orchestrator.ErrNoOperation.Error(), http.StatusBadRequest)
		return
	}
	dpi := s.opts.DefaultDPI
	if v := r.FormValue("dpi"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < config.MinDPI || n > config.MaxDPI {
			http.Error(w, orchestrator.ErrDPIRange.Error(), http.StatusBadRequest)
			return
		}
		dpi = n
	}

	release, ok := s.slots.Allow(slotKey)
	if !ok {
		http.Error(w, "too many jobs in progress", http.StatusTooManyRequests)
		return
	}

	jobID := uuid.NewString()
	localPath, err := s.saveUpload(jobID, hdr.Filename, file)
	if err != nil {
		release()
		log.Error().Err(err).Str("job_id", jobID).Msg("saving upload failed")
		http.Error(w, "cannot save upload", http.StatusInternalServerError)
		return
	}

	req := orchestrator.Request{
		Input:   localPath,
		Output:  filepath.Join(s.opts.ResultDir, jobID+".pdf"),
		Remove:  remove,
		Scan:    scan,
		DPI:     dpi,
		Quality: s.opts.Quality,
		Seed:    s.opts.Seed,
	}

	start := time.Now()
	_ = s.status.Set(r.Context(), jobID, store.Status{
		Status:   store.StatusQueued,
		Message:  "queued",
		Start:    &start,
		Metadata: map[string]any{"file_name": hdr.Filename, "remove": remove, "scan": scan, "dpi": dpi},
	})
	log.Info().Str("job_id", jobID).Str("file", hdr.Filename).Str("mode", req.Mode()).Msg("job created")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer release()
		s.process(jobID, req, start)
	}()

	writeJSON(w, http.StatusCreated, processResp{Status: "ok", JobID: jobID, Message: "job created"})
}

func (s *Server) saveUpload(jobID, name string, src io.Reader) (string, error) {
	if err := os.MkdirAll(s.opts.UploadDir, 0o755); err != nil {
		return "", err
	}
	name = filepath.Base(name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "upload.pdf"
	}
	p := filepath.Join(s.opts.UploadDir, fmt.Sprintf("%s_%s", jobID, name))
	out, err := os.Create(p)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(p)
		return "", err
	}
	return p, out.Close()
}

func (s *Server) process(jobID string, req orchestrator.Request, start time.Time) {
	metrics.JobStarted()
	defer metrics.JobFinished()
	defer os.Remove(req.Input)

	l := logger.ForJob(jobID)
	meta := map[string]any{"mode": req.Mode(), "dpi": req.DPI}

	var (
		mu   sync.Mutex
		high int
	)
	progress := func(pct int, msg string) {
		mu.Lock()
		defer mu.Unlock()
		if pct < high {
			return
		}
		high = pct
		_ = s.status.Set(s.ctx, jobID, store.Status{
			Status:   store.StatusProcessing,
			Progress: pct,
			Message:  msg,
			Start:    &start,
			Metadata: cloneMeta(meta),
		})
	}
	progress(1, "processing")

	res, err := s.runner.Run(s.ctx, req, progress)

	mu.Lock()
	defer mu.Unlock()
	end := time.Now()
	meta = cloneMeta(meta)
	st := store.Status{Start: &start, End: &end, Metadata: meta}
	if err != nil {
		l.Error().Err(err).Str("kind", scanerr.Kind(err)).Msg("job failed")
		st.Status = store.StatusFailed
		st.Progress = 100
		st.Message = err.Error()
		meta["error_kind"] = scanerr.Kind(err)
		if scanerr.IsRecoverable(err) {
			st.Message = "invalid page range: " + err.Error()
			meta["retry_with_new_range"] = true
		}
	} else {
		l.Info().Int("pages_out", res.PagesOut).Dur("took", res.Duration).Msg("job done")
		st.Status = store.StatusSuccess
		st.Progress = 100
		st.Message = "completed"
		meta["result_local_path"] = res.Output
		meta["pages_in"] = res.PagesIn
		meta["pages_out"] = res.PagesOut
		meta["dropped"] = res.Dropped
	}
	// the request context is gone; status must be written even on shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.status.Set(ctx, jobID, st); err != nil {
		l.Error().Err(err).Msg("saving final status failed")
	}
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/progress/")
	st, ok, err := s.status.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    st.Status == store.StatusSuccess,
		"job_id":     id,
		"status":     st.Status,
		"progress":   st.Progress,
		"message":    st.Message,
		"start_time": st.Start,
		"end_time":   st.End,
		"metadata":   st.Metadata,
	})
}

// handleDownload serves the finished PDF.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/download/")
	st, ok, err := s.status.Get(r.Context(), id)
	if err != nil || !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	switch st.Status {
	case store.StatusSuccess:
	case store.StatusFailed:
		http.Error(w, "job failed: "+st.Message, http.StatusConflict)
		return
	default:
		http.Error(w, "not ready", http.StatusAccepted)
		return
	}
	p, _ := st.Metadata["result_local_path"].(string)
	if p == "" {
		http.Error(w, "result not available", http.StatusNotFound)
		return
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "result not available", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to read", http.StatusInternalServerError)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=scanned_%s.pdf", id))
	_, _ = io.Copy(w, f)
}

func cloneMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}
