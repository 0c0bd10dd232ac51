// Package stubserver is a local stand-in for the remote script-generation
// service. It implements the start and status endpoints with simulated
// generation latency and scripted failure injection, so the client can be
// exercised end-to-end without the real backend.
package stubserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"scriptgen/internal/domain"
	"scriptgen/internal/infra"
	"scriptgen/internal/middleware"
)

// Failure-injection modes. Empty means every job succeeds.
const (
	FailModeNone   = ""
	FailModeCredit = "credit" // start is rejected with an INSUFFICIENT_CREDITS body
	FailModeServer = "server" // start is rejected with a 500
	FailModeJob    = "job"    // start succeeds, the job later reports failed
)

// Options configures the stub's behaviour.
type Options struct {
	// CompleteAfter is how long a job stays pending before turning terminal.
	CompleteAfter    time.Duration
	FailMode         string
	CreditsRequired  int
	CreditsAvailable int
	Logger           *infra.Logger
}

// Server holds the simulated jobs.
type Server struct {
	opts   Options
	logger *infra.Logger

	mu   sync.Mutex
	jobs map[string]stubJob
}

type stubJob struct {
	id        string
	mode      domain.Mode
	startedAt time.Time
}

// New constructs a stub server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	if opts.CreditsRequired <= 0 {
		opts.CreditsRequired = 500
	}
	return &Server{opts: opts, logger: logger, jobs: make(map[string]stubJob)}
}

// Router builds the HTTP surface matching the real service's contract.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Logger(*s.logger))

	r.Route("/scripts", func(r chi.Router) {
		r.Post("/generate-script", s.handleStart)
		r.Get("/generate-script/{jobID}", s.handleStatus)
	})

	return r
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	mode, err := domain.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	switch s.opts.FailMode {
	case FailModeCredit:
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"error": "insufficient credits for this generation",
			"code":  "INSUFFICIENT_CREDITS",
			"details": map[string]any{
				"required":  s.opts.CreditsRequired,
				"available": s.opts.CreditsAvailable,
			},
		})
		return
	case FailModeServer:
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"message": "generation backend unavailable"},
		})
		return
	}

	job := stubJob{id: uuid.NewString(), mode: mode, startedAt: time.Now()}
	s.mu.Lock()
	s.jobs[job.id] = job
	s.mu.Unlock()

	s.logger.Info().Str("job_id", job.id).Str("mode", string(mode)).Msg("stub: job accepted")
	writeJSON(w, http.StatusAccepted, map[string]any{"jobId": job.id})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown job"})
		return
	}

	if time.Since(job.startedAt) < s.opts.CompleteAfter {
		writeJSON(w, http.StatusOK, map[string]any{"status": "pending"})
		return
	}

	if s.opts.FailMode == FailModeJob {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "failed",
			"error":  "the model could not produce a usable script",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "completed",
		"result": map[string]any{
			"script": sampleScript(job),
			"mode":   string(job.mode),
		},
	})
}

func sampleScript(job stubJob) string {
	scenes := map[domain.Mode]int{
		domain.ModeFast:     2,
		domain.ModeModerate: 4,
		domain.ModeDetailed: 6,
	}[job.mode]

	out := fmt.Sprintf("# Generated script %s\n\n", job.id)
	for i := 1; i <= scenes; i++ {
		out += fmt.Sprintf("## Scene %d\n\nINT. STUDIO - DAY\n\nThe presenter walks the viewer through beat %d of the story.\n\n", i, i)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
