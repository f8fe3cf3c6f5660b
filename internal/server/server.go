package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwbudde/proxgrad/internal/store"
)

// maxRequestBody bounds POST bodies; problems carry dense matrices.
const maxRequestBody = 16 << 20

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	runs       *store.FSStore
	addr       string
	server     *http.Server
	baseCtx    context.Context
	stop       context.CancelFunc
}

// NewServer creates a new HTTP server. runs may be nil, in which case
// finished jobs are kept in memory only.
func NewServer(addr string, runs *store.FSStore) *Server {
	ctx, stop := context.WithCancel(context.Background())
	return &Server{
		jobManager: NewJobManager(),
		runs:       runs,
		addr:       addr,
		baseCtx:    ctx,
		stop:       stop,
	}
}

// Handler returns the routed and wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)
	mux.HandleFunc("/api/v1/runs", s.handleListRuns)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown cancels running jobs and gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server", "running_jobs", len(s.jobManager.GetRunningJobs()))
	s.stop()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) traceDir() string {
	if s.runs == nil {
		return ""
	}
	return s.runs.BaseDir()
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID handles /api/v1/jobs/:id/*
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}
	jobID := parts[0]

	if r.Method == http.MethodDelete {
		if len(parts) > 1 {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		s.handleCancelJob(w, r, jobID)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch {
	case len(parts) == 1 || parts[1] == "status":
		s.handleGetJobStatus(w, r, jobID)
	case parts[1] == "stream":
		s.handleJobStream(w, r, jobID)
	case parts[1] == "trace":
		s.handleGetTrace(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var config JobConfig
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&config); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	// Reject bad problems up front instead of creating a job that fails.
	if _, err := config.Problem.Build(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if config.WarmStart && !config.Problem.HasBox() {
		http.Error(w, "warmStart needs lower and upper bounds", http.StatusBadRequest)
		return
	}

	job := s.jobManager.CreateJob(s.baseCtx, config)
	ctx, _ := s.jobManager.jobContext(job.ID)
	go runJob(ctx, s.jobManager, s.runStore(), s.traceDir(), job.ID)

	writeJSON(w, http.StatusCreated, job)
}

// runStore avoids handing a typed nil to the store.Store interface.
func (s *Server) runStore() store.Store {
	if s.runs == nil {
		return nil
	}
	return s.runs
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
}

// JobStatus is the response of GET /api/v1/jobs/:id/status.
type JobStatus struct {
	Job
	Elapsed        float64 `json:"elapsed"`
	ItersPerSecond float64 `json:"itersPerSecond"`
}

// handleGetJobStatus handles GET /api/v1/jobs/:id/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	status := JobStatus{Job: job, Elapsed: elapsed.Seconds()}
	if elapsed > 0 {
		status.ItersPerSecond = float64(job.Iterations) / elapsed.Seconds()
	}
	writeJSON(w, http.StatusOK, status)
}

// handleGetTrace handles GET /api/v1/jobs/:id/trace. Jobs from an earlier
// server process are served from the run store.
func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request, jobID string) {
	if history, ok := s.jobManager.History(jobID); ok {
		writeJSON(w, http.StatusOK, history)
		return
	}
	if s.runs == nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	records, err := store.ReadTrace(s.runs.BaseDir(), jobID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleCancelJob handles DELETE /api/v1/jobs/:id
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if err := s.jobManager.CancelJob(jobID); err != nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	slog.Info("Job cancellation requested", "job_id", jobID)
	w.WriteHeader(http.StatusAccepted)
}

// handleListRuns handles GET /api/v1/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.runs == nil {
		writeJSON(w, http.StatusOK, []store.RunInfo{})
		return
	}
	infos, err := s.runs.ListRuns()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
