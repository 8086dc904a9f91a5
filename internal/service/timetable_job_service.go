package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

// JobTypeGenerate tags queued timetable generations.
const JobTypeGenerate = "timetable.generate"

type timetableGenerator interface {
	Prepare(req dto.GenerateTimetableRequest) (timetable.Input, error)
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableResponse, bool, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
	Pending() int
}

// TimetableJobService runs generations on the background queue and keeps
// their results in memory until they expire.
type TimetableJobService struct {
	generator timetableGenerator
	queue     jobEnqueuer
	store     *jobStore
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// TimetableJobConfig governs job retention.
type TimetableJobConfig struct {
	TTL time.Duration
}

// NewTimetableJobService constructs the async generation service. The queue
// is attached afterwards with AttachQueue because the queue needs Handle.
func NewTimetableJobService(generator timetableGenerator, metrics *MetricsService, logger *zap.Logger, cfg TimetableJobConfig) *TimetableJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	return &TimetableJobService{
		generator: generator,
		store:     newJobStore(cfg.TTL),
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AttachQueue sets the queue jobs are submitted to.
func (s *TimetableJobService) AttachQueue(queue jobEnqueuer) {
	s.queue = queue
	s.metrics.TrackQueue(queue.Pending)
}

// Submit validates req synchronously and queues the generation.
func (s *TimetableJobService) Submit(ctx context.Context, req dto.GenerateTimetableRequest, createdBy string) (*dto.TimetableJobResponse, error) {
	if _, err := s.generator.Prepare(req); err != nil {
		return nil, err
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "generation queue is not running")
	}

	now := s.now()
	job := &models.TimetableJob{
		ID:        uuid.NewString(),
		Status:    models.JobStatusQueued,
		CreatedBy: createdBy,
		CreatedAt: now,
		ExpiresAt: now.Add(s.store.ttl),
	}
	s.store.Save(job, now)

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: JobTypeGenerate, Payload: req}); err != nil {
		s.store.Delete(job.ID)
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Clone(appErrors.ErrUnavailable, "generation queue is full, retry later")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "generation queue is not accepting jobs")
	}

	s.logger.Info("timetable job queued", zap.String("job_id", job.ID), zap.String("created_by", createdBy))
	return toJobResponse(job), nil
}

// Get returns the current state of job id.
func (s *TimetableJobService) Get(ctx context.Context, id string) (*dto.TimetableJobResponse, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "job id must be a UUID")
	}
	job, ok := s.store.Get(id, s.now())
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable job not found")
	}
	return toJobResponse(job), nil
}

// Handle is the queue handler. A retryable failure puts the job back in
// QUEUED and returns the error so the queue schedules another attempt.
func (s *TimetableJobService) Handle(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.GenerateTimetableRequest)
	if !ok {
		err := fmt.Errorf("unexpected payload %T", job.Payload)
		s.finish(job.ID, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "invalid job payload"))
		return nil
	}

	started := s.now()
	s.store.Update(job.ID, func(j *models.TimetableJob) {
		j.Status = models.JobStatusProcessing
		j.Attempts++
		if j.StartedAt == nil {
			j.StartedAt = &started
		}
	})

	resp, _, err := s.generator.Generate(ctx, req)
	if err != nil {
		if appErrors.Retryable(err) {
			s.store.Update(job.ID, func(j *models.TimetableJob) {
				j.Status = models.JobStatusQueued
				j.Error = err
			})
			return err
		}
		s.finish(job.ID, nil, err)
		return err
	}
	s.finish(job.ID, resp, nil)
	return nil
}

// GiveUp marks a job failed once the queue stops retrying it.
func (s *TimetableJobService) GiveUp(job jobs.Job, err error) {
	current, ok := s.store.Get(job.ID, s.now())
	if !ok || current.Status.Terminal() {
		return
	}
	s.finish(job.ID, nil, err)
}

func (s *TimetableJobService) finish(id string, resp *dto.TimetableResponse, err error) {
	finished := s.now()
	status := models.JobStatusFinished
	if err != nil {
		status = models.JobStatusFailed
	}
	s.store.Update(id, func(j *models.TimetableJob) {
		j.Status = status
		j.FinishedAt = &finished
		j.ExpiresAt = finished.Add(s.store.ttl)
		j.Error = err
		if resp != nil {
			j.Result = resp
		}
	})
	s.metrics.ObserveJob(status)
	if err != nil {
		s.logger.Warn("timetable job failed", zap.String("job_id", id), zap.Error(err))
		return
	}
	s.logger.Info("timetable job finished", zap.String("job_id", id))
}

func toJobResponse(job *models.TimetableJob) *dto.TimetableJobResponse {
	out := &dto.TimetableJobResponse{
		JobID:      job.ID,
		Status:     string(job.Status),
		Attempts:   job.Attempts,
		CreatedAt:  job.CreatedAt,
		FinishedAt: job.FinishedAt,
	}
	if resp, ok := job.Result.(*dto.TimetableResponse); ok {
		out.Result = resp
	}
	if job.Status == models.JobStatusFailed && job.Error != nil {
		out.Error = appErrors.FromError(job.Error)
	}
	return out
}

// jobStore keeps job records until ExpiresAt. Reads return copies.
type jobStore struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]*models.TimetableJob
}

func newJobStore(ttl time.Duration) *jobStore {
	return &jobStore{ttl: ttl, items: make(map[string]*models.TimetableJob)}
}

func (s *jobStore) Save(job *models.TimetableJob, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge(now)
	clone := *job
	s.items[job.ID] = &clone
}

func (s *jobStore) Get(id string, now time.Time) (*models.TimetableJob, bool) {
	s.mu.RLock()
	job, ok := s.items[id]
	var clone models.TimetableJob
	if ok {
		clone = *job
	}
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if now.After(clone.ExpiresAt) {
		s.Delete(id)
		return nil, false
	}
	return &clone, true
}

func (s *jobStore) Update(id string, fn func(*models.TimetableJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.items[id]; ok {
		fn(job)
	}
}

func (s *jobStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

func (s *jobStore) purge(now time.Time) {
	for id, job := range s.items {
		if now.After(job.ExpiresAt) {
			delete(s.items, id)
		}
	}
}
