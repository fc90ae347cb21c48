package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

type dispatcherStub struct {
	enqueued  []jobs.Job
	cancelled []string
	err       error
	running   bool
}

func (d *dispatcherStub) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.enqueued = append(d.enqueued, job)
	return nil
}

func (d *dispatcherStub) Cancel(id string) bool {
	d.cancelled = append(d.cancelled, id)
	return d.running
}

type runnerStub struct {
	resp *dto.GenerateTimetableResponse
	err  error
	ctx  context.Context
}

func (r *runnerStub) Run(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	r.ctx = ctx
	return r.resp, r.err
}

type validatorFunc func(dto.GenerateTimetableRequest) error

func (f validatorFunc) Validate(req dto.GenerateTimetableRequest) error { return f(req) }

func newJobService(t *testing.T) (*GenerationJobService, *GenerationJobStore, *dispatcherStub, *memoryCache) {
	t.Helper()
	cache := newMemoryCache()
	store := NewGenerationJobStore(cache, time.Hour, nil)
	queue := &dispatcherStub{}
	svc := NewGenerationJobService(store, queue, nil, nil)
	return svc, store, queue, cache
}

func TestGenerationJobServiceEnqueue(t *testing.T) {
	svc, store, queue, cache := newJobService(t)

	job, err := svc.Enqueue(context.Background(), dto.GenerateTimetableRequest{Semester: "S3", Seed: seed(9), CreatedBy: "admin-1"})
	require.NoError(t, err)
	assert.Equal(t, models.GenerationJobQueued, job.Status)
	assert.Equal(t, "admin-1", job.CreatedBy)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, job.ID, queue.enqueued[0].ID)
	assert.Equal(t, JobTypeGenerate, queue.enqueued[0].Type)

	holder, ok := store.Holder("S3")
	require.True(t, ok)
	assert.Equal(t, job.ID, holder)
	assert.Contains(t, cache.entries, "timetable:job:"+job.ID)

	_, err = svc.Enqueue(context.Background(), dto.GenerateTimetableRequest{Semester: "S3"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.Enqueue(context.Background(), dto.GenerateTimetableRequest{Semester: "S5"})
	assert.NoError(t, err)
}

func TestGenerationJobServiceEnqueueValidates(t *testing.T) {
	svc, _, queue, _ := newJobService(t)
	svc.validator = validatorFunc(func(dto.GenerateTimetableRequest) error {
		return appErrors.Clone(appErrors.ErrValidation, "semester is required")
	})

	_, err := svc.Enqueue(context.Background(), dto.GenerateTimetableRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, queue.enqueued)
}

func TestGenerationJobServiceEnqueueQueueFailure(t *testing.T) {
	svc, store, queue, _ := newJobService(t)
	queue.err = errors.New("queue is full")

	_, err := svc.Enqueue(context.Background(), dto.GenerateTimetableRequest{Semester: "S3"})
	assert.ErrorIs(t, err, appErrors.ErrServiceUnavailable)
	_, held := store.Holder("S3")
	assert.False(t, held)
}

func TestGenerationJobServiceStatus(t *testing.T) {
	svc, store, _, cache := newJobService(t)

	_, err := svc.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	job, err := svc.Enqueue(context.Background(), dto.GenerateTimetableRequest{Semester: "S3"})
	require.NoError(t, err)
	got, err := svc.Status(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	// another instance only sees the cached copy
	other := NewGenerationJobStore(cache, time.Hour, nil)
	remote, ok := other.Get(context.Background(), job.ID)
	require.True(t, ok)
	assert.Equal(t, "S3", remote.Semester)

	store.Delete(job.ID)
	fromCache, err := svc.Status(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationJobQueued, fromCache.Status)
}

func TestGenerationJobStoreExpiresFinishedJobs(t *testing.T) {
	store := NewGenerationJobStore(nil, time.Minute, nil)
	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	finished := now.Add(-2 * time.Minute)
	store.Save(context.Background(), models.GenerationJob{ID: "job-1", Status: models.GenerationJobSucceeded, FinishedAt: &finished})
	store.Save(context.Background(), models.GenerationJob{ID: "job-2", Status: models.GenerationJobRunning})

	_, ok := store.Get(context.Background(), "job-1")
	assert.False(t, ok)
	_, ok = store.Get(context.Background(), "job-2")
	assert.True(t, ok)
}

func TestGenerationJobStoreAcquireRelease(t *testing.T) {
	store := NewGenerationJobStore(nil, time.Minute, nil)

	assert.True(t, store.Acquire("S3", "job-1"))
	assert.True(t, store.Acquire("S3", "job-1"))
	assert.False(t, store.Acquire("S3", "job-2"))

	store.Release("S3", "job-2")
	assert.False(t, store.Acquire("S3", "job-2"))

	store.Release("S3", "job-1")
	assert.True(t, store.Acquire("S3", "job-2"))
}

func TestGenerationJobServiceCancelQueued(t *testing.T) {
	svc, store, queue, _ := newJobService(t)
	job, err := svc.Enqueue(context.Background(), dto.GenerateTimetableRequest{Semester: "S3"})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationJobCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.FinishedAt)
	assert.Equal(t, []string{job.ID}, queue.cancelled)
	_, held := store.Holder("S3")
	assert.False(t, held)

	_, err = svc.Cancel(context.Background(), job.ID)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestGenerationJobServiceCancelRunning(t *testing.T) {
	svc, store, queue, _ := newJobService(t)
	queue.running = true
	job, err := svc.Enqueue(context.Background(), dto.GenerateTimetableRequest{Semester: "S3"})
	require.NoError(t, err)
	store.Update(context.Background(), job.ID, func(j *models.GenerationJob) { j.Status = models.GenerationJobRunning })

	got, err := svc.Cancel(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationJobRunning, got.Status)
	_, held := store.Holder("S3")
	assert.True(t, held)
}

func queuedJob(t *testing.T, store *GenerationJobStore, semester string) jobs.Job {
	t.Helper()
	id := "job-" + semester
	require.True(t, store.Acquire(semester, id))
	store.Save(context.Background(), models.GenerationJob{ID: id, Semester: semester, Status: models.GenerationJobQueued})
	return jobs.Job{ID: id, Type: JobTypeGenerate, Payload: dto.GenerateTimetableRequest{Semester: semester}}
}

func TestGenerationWorkerSucceeds(t *testing.T) {
	store := NewGenerationJobStore(nil, time.Hour, nil)
	runner := &runnerStub{resp: &dto.GenerateTimetableResponse{TimetableID: "tt-9", Seed: 42, Attempts: make([]dto.AttemptSummary, 3)}}
	worker := NewGenerationWorker(store, runner, 2, nil)
	job := queuedJob(t, store, "S3")

	require.NoError(t, worker.Handle(context.Background(), job))

	record, ok := store.Get(context.Background(), job.ID)
	require.True(t, ok)
	assert.Equal(t, models.GenerationJobSucceeded, record.Status)
	require.NotNil(t, record.TimetableID)
	assert.Equal(t, "tt-9", *record.TimetableID)
	assert.Equal(t, int64(42), *record.Seed)
	assert.Equal(t, 3, record.Attempts)
	assert.NotNil(t, record.StartedAt)
	_, held := store.Holder("S3")
	assert.False(t, held)
}

func TestGenerationWorkerInfeasibleIsPermanent(t *testing.T) {
	store := NewGenerationJobStore(nil, time.Hour, nil)
	runner := &runnerStub{err: appErrors.Clone(appErrors.ErrScheduleInfeasible, "")}
	worker := NewGenerationWorker(store, runner, 2, nil)
	job := queuedJob(t, store, "S3")

	err := worker.Handle(context.Background(), job)
	require.Error(t, err)
	assert.True(t, jobs.IsPermanent(err))

	record, _ := store.Get(context.Background(), job.ID)
	assert.Equal(t, models.GenerationJobFailed, record.Status)
	require.NotNil(t, record.ErrorCode)
	assert.Equal(t, appErrors.ErrScheduleInfeasible.Code, *record.ErrorCode)
}

func TestGenerationWorkerRetriesInfrastructureFailures(t *testing.T) {
	store := NewGenerationJobStore(nil, time.Hour, nil)
	runner := &runnerStub{err: errors.New("connection reset")}
	worker := NewGenerationWorker(store, runner, 1, nil)
	job := queuedJob(t, store, "S3")

	err := worker.Handle(context.Background(), job)
	require.Error(t, err)
	assert.False(t, jobs.IsPermanent(err))
	record, _ := store.Get(context.Background(), job.ID)
	assert.Equal(t, models.GenerationJobQueued, record.Status)
	_, held := store.Holder("S3")
	assert.True(t, held)

	job.Attempt = 1
	err = worker.Handle(context.Background(), job)
	require.Error(t, err)
	record, _ = store.Get(context.Background(), job.ID)
	assert.Equal(t, models.GenerationJobFailed, record.Status)
	_, held = store.Holder("S3")
	assert.False(t, held)
}

func TestGenerationWorkerCancelled(t *testing.T) {
	store := NewGenerationJobStore(nil, time.Hour, nil)
	runner := &runnerStub{err: context.Canceled}
	worker := NewGenerationWorker(store, runner, 2, nil)
	job := queuedJob(t, store, "S3")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := worker.Handle(ctx, job)
	assert.True(t, jobs.IsPermanent(err))
	assert.ErrorIs(t, err, context.Canceled)

	record, _ := store.Get(context.Background(), job.ID)
	assert.Equal(t, models.GenerationJobCancelled, record.Status)
}

func TestGenerationWorkerSkipsFinishedJobs(t *testing.T) {
	store := NewGenerationJobStore(nil, time.Hour, nil)
	runner := &runnerStub{}
	worker := NewGenerationWorker(store, runner, 2, nil)
	job := queuedJob(t, store, "S3")
	store.Update(context.Background(), job.ID, func(j *models.GenerationJob) {
		markFinished(j, models.GenerationJobCancelled, "", "", time.Now())
	})

	require.NoError(t, worker.Handle(context.Background(), job))
	assert.Nil(t, runner.ctx)

	err := worker.Handle(context.Background(), jobs.Job{ID: "x", Payload: "nope"})
	assert.True(t, jobs.IsPermanent(err))
}
