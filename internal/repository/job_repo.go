package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"gorm.io/gorm"
)

// JobRepository stores rebuild job history.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job.
func (r *JobRepository) Create(ctx context.Context, job *domain.RebuildJob) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// Update saves every field of job.
func (r *JobRepository) Update(ctx context.Context, job *domain.RebuildJob) error {
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

// Latest returns the most recently started job, or domain.ErrNotFound.
func (r *JobRepository) Latest(ctx context.Context) (*domain.RebuildJob, error) {
	var job domain.RebuildJob
	err := r.db.WithContext(ctx).Order("started_at DESC").First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest job: %w", err)
	}
	return &job, nil
}

// MarkInterrupted fails jobs left running by a previous process.
func (r *JobRepository) MarkInterrupted(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.RebuildJob{}).
		Where("status = ?", domain.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":    domain.JobStatusFailed,
			"error_log": "interrupted",
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark interrupted jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
