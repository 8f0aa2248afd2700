package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
)

func TestJobRepository(t *testing.T) {
	ctx := context.Background()
	attendance := newTestRepo(t)
	repo := NewJobRepository(attendance.db)

	if _, err := repo.Latest(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Latest() on empty table error = %v, want ErrNotFound", err)
	}

	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	first := &domain.RebuildJob{ID: "a", Trigger: "cli", Status: domain.JobStatusCompleted, StartedAt: start}
	second := &domain.RebuildJob{ID: "b", Trigger: "api", Status: domain.JobStatusRunning, StartedAt: start.Add(time.Hour)}
	for _, job := range []*domain.RebuildJob{first, second} {
		if err := repo.Create(ctx, job); err != nil {
			t.Fatal(err)
		}
	}

	latest, err := repo.Latest(ctx)
	if err != nil || latest.ID != "b" {
		t.Fatalf("Latest() = %+v, %v; want job b", latest, err)
	}

	n, err := repo.MarkInterrupted(ctx)
	if err != nil || n != 1 {
		t.Fatalf("MarkInterrupted() = %d, %v", n, err)
	}
	latest, _ = repo.Latest(ctx)
	if latest.Status != domain.JobStatusFailed || latest.ErrorLog != "interrupted" {
		t.Errorf("interrupted job = %+v", latest)
	}

	latest.Encoded = 7
	latest.Status = domain.JobStatusCompleted
	if err := repo.Update(ctx, latest); err != nil {
		t.Fatal(err)
	}
	reloaded, _ := repo.Latest(ctx)
	if reloaded.Encoded != 7 || reloaded.Status != domain.JobStatusCompleted {
		t.Errorf("updated job = %+v", reloaded)
	}
}
