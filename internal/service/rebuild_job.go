package service

import (
	"context"
	"time"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/RudraShekhare/face-attendance-system/internal/logger"
	"github.com/RudraShekhare/face-attendance-system/internal/repository"
	"github.com/google/uuid"
)

// RebuildRunner runs gallery rebuilds and records each run as a RebuildJob.
type RebuildRunner struct {
	enrollment *EnrollmentService
	jobs       *repository.JobRepository
}

// NewRebuildRunner creates a new rebuild runner.
func NewRebuildRunner(enrollment *EnrollmentService, jobs *repository.JobRepository) *RebuildRunner {
	return &RebuildRunner{enrollment: enrollment, jobs: jobs}
}

// Run rebuilds the gallery. The job row is created before the rebuild
// starts and updated with the final stats; job bookkeeping failures are
// logged and never fail the rebuild.
func (r *RebuildRunner) Run(ctx context.Context, trigger string, progress RebuildProgress) (*domain.RebuildJob, error) {
	job := &domain.RebuildJob{
		ID:        uuid.New().String(),
		Trigger:   trigger,
		Status:    domain.JobStatusRunning,
		StartedAt: time.Now(),
	}
	ctx = logger.SetJobID(ctx, job.ID)
	log := logger.FromContext(ctx)

	// bookkeeping uses a context that outlives cancellation of the rebuild
	bg := context.WithoutCancel(ctx)
	if err := r.jobs.Create(bg, job); err != nil {
		log.WithError(err).Warn("Failed to record rebuild job")
	}

	stats, err := r.enrollment.Rebuild(ctx, progress)
	if stats != nil {
		job.Total = stats.Total
		job.Encoded = stats.Encoded
		job.Skipped = stats.Skipped
		job.Failed = stats.Failed
		job.Faces = stats.Faces
	}
	done := time.Now()
	job.CompletedAt = &done
	job.Status = domain.JobStatusCompleted
	if err != nil {
		job.Status = domain.JobStatusFailed
		job.ErrorLog = err.Error()
	}

	if uerr := r.jobs.Update(bg, job); uerr != nil {
		log.WithError(uerr).Warn("Failed to update rebuild job")
	}
	return job, err
}

// Latest returns the most recent rebuild job.
func (r *RebuildRunner) Latest(ctx context.Context) (*domain.RebuildJob, error) {
	return r.jobs.Latest(ctx)
}
