package jobs

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/SirClappington/genejobs/internal/domain"
	"github.com/SirClappington/genejobs/internal/metrics"
	"github.com/SirClappington/genejobs/internal/queue"
	"github.com/SirClappington/genejobs/internal/storage"
)

// SubmitRequest is the body of a job submission.
type SubmitRequest struct {
	RangeStart string `json:"range_start" validate:"required,geneid"`
	RangeEnd   string `json:"range_end" validate:"required,geneid"`
}

// NewValidator returns a validator that knows the geneid tag.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("geneid", func(fl validator.FieldLevel) bool {
		return domain.IsGeneID(fl.Field().String())
	})
	return v
}

// Service implements the job API. It never waits on workers.
type Service struct {
	jobs     storage.JobStore
	results  storage.ResultStore
	queue    queue.Producer
	validate *validator.Validate
	log      *zap.Logger

	now   func() time.Time
	newID func() string
}

func NewService(jobs storage.JobStore, results storage.ResultStore, q queue.Producer, log *zap.Logger) *Service {
	return &Service{
		jobs:     jobs,
		results:  results,
		queue:    q,
		validate: NewValidator(),
		log:      log.Named("jobs"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Submit validates the range, persists a submitted job and enqueues its id.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*domain.Job, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if _, err := domain.ParseRange(req.RangeStart, req.RangeEnd); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	job := &domain.Job{
		ID:         s.newID(),
		Status:     domain.Submitted,
		RangeStart: req.RangeStart,
		RangeEnd:   req.RangeEnd,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, errors.Wrap(err, "create job")
	}
	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		// the record exists but no worker will see it
		s.log.Error("enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
		return nil, domain.NewStoreError("enqueue job", err)
	}
	metrics.JobsSubmitted.Inc()
	s.log.Info("job submitted", zap.String("job_id", job.ID),
		zap.String("range_start", job.RangeStart), zap.String("range_end", job.RangeEnd))
	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	return s.jobs.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context) ([]string, error) {
	return s.jobs.ListJobIDs(ctx)
}

// GetResult returns domain.ErrNotReady until the job is complete.
func (s *Service) GetResult(ctx context.Context, id string) (*domain.Result, error) {
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.Complete {
		return nil, errors.Wrapf(domain.ErrNotReady, "job %s is %s", id, job.Status)
	}
	res, err := s.results.GetResult(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		s.log.Warn("complete job has no result", zap.String("job_id", id))
		return nil, errors.Wrapf(domain.ErrDataIntegrity, "job %s is complete without a result", id)
	}
	return res, err
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &domain.ValidationError{Reason: err.Error()}
	}
	fe := verrs[0]
	field := "range_start"
	if fe.StructField() == "RangeEnd" {
		field = "range_end"
	}
	if fe.Tag() == "required" {
		return &domain.ValidationError{Field: field, Reason: "is required"}
	}
	return &domain.ValidationError{Field: field, Reason: "must match <namespace>:<integer>"}
}
