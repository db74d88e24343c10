// Package memory is a process-local run ledger used when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RMahshie/nanosynth/internal/repository"
	"github.com/RMahshie/nanosynth/pkg/models"
)

// RunRepository keeps runs in memory
type RunRepository struct {
	mu      sync.RWMutex
	runs    map[string]*models.Run
	results map[string]*models.RunResults
}

// NewRunRepository creates an empty in-memory run repository
func NewRunRepository() *RunRepository {
	return &RunRepository{
		runs:    make(map[string]*models.Run),
		results: make(map[string]*models.RunResults),
	}
}

var _ repository.RunRepository = (*RunRepository)(nil)

func clone(run *models.Run) *models.Run {
	c := *run
	return &c
}

// Create stores a copy of run
func (r *RunRepository) Create(ctx context.Context, run *models.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = clone(run)
	return nil
}

// GetByID returns a copy of the run
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id.String()]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(run), nil
}

func (r *RunRepository) sorted(keep func(*models.Run) bool) []*models.Run {
	var out []*models.Run
	for _, run := range r.runs {
		if keep(run) {
			out = append(out, clone(run))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// ListBySession returns the runs of a session, newest first
func (r *RunRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(func(run *models.Run) bool { return run.SessionID == sessionID }), nil
}

// ListRecent returns up to limit runs, newest first
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]*models.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.sorted(func(*models.Run) bool { return true })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *RunRepository) update(id uuid.UUID, fn func(*models.Run)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id.String()]
	if !ok {
		return repository.ErrNotFound
	}
	fn(run)
	run.UpdatedAt = time.Now()
	return nil
}

// UpdateStatus sets the status, stamping completion time for completed runs
func (r *RunRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.update(id, func(run *models.Run) {
		run.Status = status
		if status == models.StatusCompleted {
			now := time.Now()
			run.CompletedAt = &now
		}
	})
}

// UpdateError marks the run failed
func (r *RunRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	return r.update(id, func(run *models.Run) {
		run.Status = models.StatusFailed
		run.ErrorMsg = &errorMsg
	})
}

// UpdateArtifacts records artifact locations, keeping existing values for nil arguments
func (r *RunRepository) UpdateArtifacts(ctx context.Context, id uuid.UUID, csvPath, archiveKey *string) error {
	return r.update(id, func(run *models.Run) {
		if csvPath != nil {
			run.CSVPath = csvPath
		}
		if archiveKey != nil {
			run.ArchiveKey = archiveKey
		}
	})
}

// StoreResults stores the results of a run
func (r *RunRepository) StoreResults(ctx context.Context, results *models.RunResults) error {
	if results.ID == "" {
		results.ID = uuid.New().String()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[results.RunID]; !ok {
		return repository.ErrNotFound
	}
	c := *results
	r.results[results.RunID] = &c
	return nil
}

// GetResults returns the results of a run
func (r *RunRepository) GetResults(ctx context.Context, runID uuid.UUID) (*models.RunResults, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.results[runID.String()]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *res
	return &c, nil
}
