// Package v1 provides the /api/v1 control plane routes.
package v1

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/npm-sync/internal/api/common"
	"github.com/stacklok/npm-sync/internal/backfill"
	"github.com/stacklok/npm-sync/internal/queue"
)

//go:generate mockgen -destination=mocks/mock_controller.go -package=mocks -source=routes.go BackfillController,QueueInspector

const (
	defaultFailedLimit = 50
	maxFailedLimit     = 500
)

// BackfillController exposes the backfill verbs
type BackfillController interface {
	Status(ctx context.Context) (backfill.State, error)
	// Request begins a run; enumeration happens asynchronously
	Request(ctx context.Context) (backfill.State, error)
	Pause(ctx context.Context) (backfill.State, error)
	Resume(ctx context.Context) (backfill.State, error)
	Reset(ctx context.Context) (backfill.State, error)
}

// QueueInspector reads queue statistics
type QueueInspector interface {
	Counts(ctx context.Context, queue string) (queue.Counts, error)
	ListFailed(ctx context.Context, queue string, limit int) ([]queue.Job, error)
}

// FailedJob is a failed job as shown to operators
type FailedJob struct {
	ID         string    `json:"id"`
	Key        string    `json:"key,omitempty"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"lastError"`
	CreatedAt  time.Time `json:"createdAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Payload    string    `json:"payload"`
}

// NewFailedJob converts a stored job to its operator view
func NewFailedJob(job queue.Job) FailedJob {
	return FailedJob{
		ID:         job.ID,
		Key:        job.Key,
		Attempts:   job.Attempts,
		LastError:  job.LastError,
		CreatedAt:  job.CreatedAt,
		FinishedAt: job.FinishedAt,
		Payload:    string(job.Payload),
	}
}

// QueueResponse is the body of GET /queues/{queue}
type QueueResponse struct {
	Queue string `json:"queue"`
	queue.Counts
}

// Routes holds the dependencies of the v1 handlers
type Routes struct {
	backfill BackfillController
	queues   QueueInspector
	names    []string
	logger   *slog.Logger
}

// Router creates the /api/v1 router. Only queues listed in queueNames can
// be inspected.
func Router(ctrl BackfillController, queues QueueInspector, queueNames []string) http.Handler {
	routes := &Routes{
		backfill: ctrl,
		queues:   queues,
		names:    queueNames,
		logger:   slog.With("component", "api"),
	}

	r := chi.NewRouter()
	r.Route("/backfill", func(r chi.Router) {
		r.Get("/", routes.getBackfill)
		r.Post("/start", routes.verb(ctrl.Request, http.StatusAccepted))
		r.Post("/pause", routes.verb(ctrl.Pause, http.StatusOK))
		r.Post("/resume", routes.verb(ctrl.Resume, http.StatusOK))
		r.Post("/reset", routes.verb(ctrl.Reset, http.StatusOK))
	})
	r.Route("/queues/{queue}", func(r chi.Router) {
		r.Use(routes.knownQueue)
		r.Get("/", routes.getQueue)
		r.Get("/failed", routes.getFailed)
	})
	return r
}

func (rr *Routes) getBackfill(w http.ResponseWriter, r *http.Request) {
	s, err := rr.backfill.Status(r.Context())
	if err != nil {
		rr.logger.Error("Failed to read backfill status", "error", err)
		common.WriteErrorResponse(w, "Failed to read backfill status", http.StatusInternalServerError)
		return
	}
	common.WriteJSONResponse(w, s, http.StatusOK)
}

// verb adapts a state transition to a handler. Invalid transitions are 409s.
func (rr *Routes) verb(fn func(context.Context) (backfill.State, error), okStatus int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := fn(r.Context())
		if err != nil {
			var te *backfill.TransitionError
			if errors.As(err, &te) {
				common.WriteErrorResponse(w, te.Error(), http.StatusConflict)
				return
			}
			rr.logger.Error("Backfill transition failed", "path", r.URL.Path, "error", err)
			common.WriteErrorResponse(w, err.Error(), http.StatusInternalServerError)
			return
		}
		common.WriteJSONResponse(w, s, okStatus)
	}
}

func (rr *Routes) knownQueue(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !slices.Contains(rr.names, chi.URLParam(r, "queue")) {
			common.WriteErrorResponse(w, "Unknown queue", http.StatusNotFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rr *Routes) getQueue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "queue")
	counts, err := rr.queues.Counts(r.Context(), name)
	if err != nil {
		rr.logger.Error("Failed to count jobs", "queue", name, "error", err)
		common.WriteErrorResponse(w, "Failed to read queue", http.StatusInternalServerError)
		return
	}
	common.WriteJSONResponse(w, QueueResponse{Queue: name, Counts: counts}, http.StatusOK)
}

func (rr *Routes) getFailed(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "queue")
	limit := defaultFailedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			common.WriteErrorResponse(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxFailedLimit)
	}

	failed, err := rr.queues.ListFailed(r.Context(), name, limit)
	if err != nil {
		rr.logger.Error("Failed to list failed jobs", "queue", name, "error", err)
		common.WriteErrorResponse(w, "Failed to read queue", http.StatusInternalServerError)
		return
	}
	out := make([]FailedJob, 0, len(failed))
	for _, job := range failed {
		out = append(out, NewFailedJob(job))
	}
	common.WriteJSONResponse(w, out, http.StatusOK)
}
