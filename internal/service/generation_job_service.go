package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

// JobTypeGenerate is the queue job type of a semester generation.
const JobTypeGenerate = "timetable.generate"

type jobCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// GenerationJobStore keeps generation jobs in memory, mirrors them to redis and
// tracks which semester is currently being generated.
type GenerationJobStore struct {
	ttl    time.Duration
	cache  jobCache
	logger *zap.Logger
	now    func() time.Time

	mu      sync.RWMutex
	items   map[string]models.GenerationJob
	holders map[string]string
}

// NewGenerationJobStore builds a store; terminal jobs expire after ttl.
func NewGenerationJobStore(cache jobCache, ttl time.Duration, logger *zap.Logger) *GenerationJobStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationJobStore{
		ttl:     ttl,
		cache:   cache,
		logger:  logger,
		now:     time.Now,
		items:   make(map[string]models.GenerationJob),
		holders: make(map[string]string),
	}
}

// Acquire marks the semester as busy for owner. It fails while another owner holds it.
func (s *GenerationJobStore) Acquire(semester, owner string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if holder, ok := s.holders[semester]; ok && holder != owner {
		return false
	}
	s.holders[semester] = owner
	return true
}

// Release frees the semester if owner still holds it.
func (s *GenerationJobStore) Release(semester, owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holders[semester] == owner {
		delete(s.holders, semester)
	}
}

// Holder returns the owner currently generating the semester.
func (s *GenerationJobStore) Holder(semester string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.holders[semester]
	return owner, ok
}

// Save stores the job and writes it through to the cache.
func (s *GenerationJobStore) Save(ctx context.Context, job models.GenerationJob) {
	s.mu.Lock()
	s.items[job.ID] = job
	s.mu.Unlock()
	s.persist(ctx, job)
}

// Get returns a job from memory, falling back to the cache for jobs created by
// another instance.
func (s *GenerationJobStore) Get(ctx context.Context, id string) (models.GenerationJob, bool) {
	s.mu.RLock()
	job, ok := s.items[id]
	s.mu.RUnlock()
	if ok {
		if s.expired(job) {
			s.Delete(id)
			return models.GenerationJob{}, false
		}
		return job, true
	}
	if s.cache == nil {
		return models.GenerationJob{}, false
	}
	var cached models.GenerationJob
	hit, err := s.cache.Get(ctx, repository.JobCacheKey(id), &cached)
	if err != nil || !hit {
		return models.GenerationJob{}, false
	}
	return cached, true
}

// Update applies fn to the stored job atomically and persists the result.
func (s *GenerationJobStore) Update(ctx context.Context, id string, fn func(*models.GenerationJob)) (models.GenerationJob, bool) {
	s.mu.Lock()
	job, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return models.GenerationJob{}, false
	}
	fn(&job)
	s.items[id] = job
	s.mu.Unlock()
	s.persist(ctx, job)
	return job, true
}

// Delete forgets a job locally.
func (s *GenerationJobStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

func (s *GenerationJobStore) expired(job models.GenerationJob) bool {
	if !job.Status.Terminal() || job.FinishedAt == nil {
		return false
	}
	return s.now().Sub(*job.FinishedAt) > s.ttl
}

func (s *GenerationJobStore) persist(ctx context.Context, job models.GenerationJob) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, repository.JobCacheKey(job.ID), job, s.ttl); err != nil {
		s.logger.Warn("failed to cache generation job", zap.String("job_id", job.ID), zap.Error(err))
	}
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
	Cancel(id string) bool
}

type generationValidator interface {
	Validate(req dto.GenerateTimetableRequest) error
}

// GenerationJobService accepts background generations and reports their state.
type GenerationJobService struct {
	store     *GenerationJobStore
	queue     jobDispatcher
	validator generationValidator
	logger    *zap.Logger
}

// NewGenerationJobService wires the job service.
func NewGenerationJobService(store *GenerationJobStore, queue jobDispatcher, validate generationValidator, logger *zap.Logger) *GenerationJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationJobService{store: store, queue: queue, validator: validate, logger: logger}
}

// Enqueue registers a generation job. Only one job per semester may be pending
// or running.
func (s *GenerationJobService) Enqueue(ctx context.Context, req dto.GenerateTimetableRequest) (*models.GenerationJob, error) {
	if s.validator != nil {
		if err := s.validator.Validate(req); err != nil {
			return nil, err
		}
	}
	job := models.GenerationJob{
		ID:        uuid.NewString(),
		Semester:  req.Semester,
		Status:    models.GenerationJobQueued,
		Seed:      req.Seed,
		CreatedBy: req.CreatedBy,
		CreatedAt: s.store.now().UTC(),
	}
	if !s.store.Acquire(req.Semester, job.ID) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a generation for this semester is already running")
	}
	s.store.Save(ctx, job)

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: JobTypeGenerate, Payload: req}); err != nil {
		s.store.Release(req.Semester, job.ID)
		s.store.Update(ctx, job.ID, func(j *models.GenerationJob) {
			markFinished(j, models.GenerationJobFailed, appErrors.ErrServiceUnavailable.Code, "failed to enqueue generation job", s.store.now())
		})
		s.logger.Error("failed to enqueue generation job", zap.String("job_id", job.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "generation queue unavailable")
	}
	s.logger.Info("generation job queued", zap.String("job_id", job.ID), zap.String("semester", job.Semester))
	return &job, nil
}

// Status returns the current state of a job.
func (s *GenerationJobService) Status(ctx context.Context, id string) (*models.GenerationJob, error) {
	job, ok := s.store.Get(ctx, id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
	}
	return &job, nil
}

// Cancel stops a queued or running job. A running job stops between attempts.
func (s *GenerationJobService) Cancel(ctx context.Context, id string) (*models.GenerationJob, error) {
	job, ok := s.store.Get(ctx, id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
	}
	if job.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("generation job already %s", job.Status))
	}

	signalled := s.queue.Cancel(id)
	if job.Status == models.GenerationJobRunning && signalled {
		// the worker records the final state once the engine returns
		return &job, nil
	}
	updated, ok := s.store.Update(ctx, id, func(j *models.GenerationJob) {
		markFinished(j, models.GenerationJobCancelled, "", "", s.store.now())
	})
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
	}
	s.store.Release(job.Semester, job.ID)
	s.logger.Info("generation job cancelled", zap.String("job_id", id), zap.String("semester", job.Semester))
	return &updated, nil
}

func markFinished(job *models.GenerationJob, status models.GenerationJobStatus, code, message string, now time.Time) {
	finished := now.UTC()
	job.Status = status
	job.FinishedAt = &finished
	if code != "" {
		job.ErrorCode = &code
	}
	if message != "" {
		job.ErrorMessage = &message
	}
}

type timetableRunner interface {
	Run(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
}

// GenerationWorker bridges queue jobs to TimetableService.
type GenerationWorker struct {
	store      *GenerationJobStore
	runner     timetableRunner
	logger     *zap.Logger
	maxRetries int
}

// NewGenerationWorker constructs a worker. maxRetries must match the queue's.
func NewGenerationWorker(store *GenerationJobStore, runner timetableRunner, maxRetries int, logger *zap.Logger) *GenerationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &GenerationWorker{store: store, runner: runner, logger: logger, maxRetries: maxRetries}
}

// Handle processes a queue job. Domain failures are permanent; infrastructure
// failures are retried by the queue until maxRetries.
func (w *GenerationWorker) Handle(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.GenerateTimetableRequest)
	if !ok {
		return jobs.Permanent(fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload))
	}
	record, ok := w.store.Get(ctx, job.ID)
	if !ok {
		w.store.Release(req.Semester, job.ID)
		return jobs.Permanent(fmt.Errorf("job %s: not found", job.ID))
	}
	if record.Status.Terminal() {
		return nil
	}

	w.store.Update(ctx, job.ID, func(j *models.GenerationJob) {
		started := w.store.now().UTC()
		j.Status = models.GenerationJobRunning
		j.StartedAt = &started
		j.ErrorCode, j.ErrorMessage = nil, nil
	})

	resp, err := w.runner.Run(ctx, req)
	now := w.store.now()
	// the job context may be cancelled by now; state updates must still land
	ctx = context.WithoutCancel(ctx)
	if err == nil {
		w.store.Update(ctx, job.ID, func(j *models.GenerationJob) {
			markFinished(j, models.GenerationJobSucceeded, "", "", now)
			seed := resp.Seed
			j.Seed = &seed
			j.Attempts = len(resp.Attempts)
			j.TimetableID = &resp.TimetableID
		})
		w.store.Release(req.Semester, job.ID)
		w.logger.Info("generation job succeeded", zap.String("job_id", job.ID), zap.String("timetable_id", resp.TimetableID))
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		w.store.Update(ctx, job.ID, func(j *models.GenerationJob) {
			markFinished(j, models.GenerationJobCancelled, "", "", now)
		})
		w.store.Release(req.Semester, job.ID)
		return jobs.Permanent(err)
	}

	appErr := appErrors.FromError(err)
	permanent := appErr.Status < http.StatusInternalServerError
	if permanent || job.Attempt >= w.maxRetries {
		w.store.Update(ctx, job.ID, func(j *models.GenerationJob) {
			markFinished(j, models.GenerationJobFailed, appErr.Code, appErr.Message, now)
		})
		w.store.Release(req.Semester, job.ID)
		w.logger.Warn("generation job failed", zap.String("job_id", job.ID), zap.String("code", appErr.Code), zap.Error(err))
		if permanent {
			return jobs.Permanent(err)
		}
		return err
	}

	w.store.Update(ctx, job.ID, func(j *models.GenerationJob) {
		msg := appErr.Message
		j.Status = models.GenerationJobQueued
		j.ErrorMessage = &msg
	})
	return err
}
