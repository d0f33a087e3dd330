package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/SirClappington/genejobs/internal/domain"
	"github.com/SirClappington/genejobs/internal/jobs"
	"github.com/SirClappington/genejobs/internal/logging"
)

const notReadyMessage = "Job not complete yet. Please try again later."

// Pinger reports backend health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type handler struct {
	svc    *jobs.Service
	health Pinger
	log    *zap.Logger
}

// NewRouter builds the job API routes.
func NewRouter(svc *jobs.Service, health Pinger, log *zap.Logger) chi.Router {
	h := &handler{svc: svc, health: health, log: log.Named("api")}

	rtr := chi.NewRouter()
	rtr.Use(middleware.RequestID)
	rtr.Use(logging.HTTP(log, "http"))
	rtr.Use(middleware.Recoverer)

	rtr.Post("/jobs", h.submitJob)
	rtr.Get("/jobs", h.listJobs)
	rtr.Get("/jobs/{id}", h.getJob)
	rtr.Get("/results/{id}", h.getResult)
	rtr.Get("/healthz", h.healthz)
	return rtr
}

type errorReply struct {
	Error string `json:"error"`
}

type messageReply struct {
	Message string `json:"message"`
}

type jobListReply struct {
	Jobs []string `json:"jobs"`
}

func (h *handler) submitJob(w http.ResponseWriter, r *http.Request) {
	var req jobs.SubmitRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.respondErr(w, r, &domain.ValidationError{Reason: "request body must be a JSON object with range_start and range_end"})
		return
	}
	job, err := h.svc.Submit(r.Context(), req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, job)
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	ids, err := h.svc.ListJobs(r.Context())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	render.JSON(w, r, jobListReply{Jobs: ids})
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	render.JSON(w, r, job)
}

func (h *handler) getResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetResult(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrNotReady) {
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, messageReply{Message: notReadyMessage})
		return
	}
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.health.Ping(r.Context()); err != nil {
		h.respondErr(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (h *handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		msg = http.StatusText(status)
	}
	render.Status(r, status)
	render.JSON(w, r, errorReply{Error: msg})
}

func statusFor(err error) int {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
