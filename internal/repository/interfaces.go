package repository

import (
	"context"
	"errors"

	"github.com/RMahshie/nanosynth/pkg/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a run or its results do not exist
var ErrNotFound = errors.New("run not found")

// RunRepository defines the interface for run ledger operations
type RunRepository interface {
	Create(ctx context.Context, run *models.Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListBySession(ctx context.Context, sessionID string) ([]*models.Run, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Run, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error
	UpdateArtifacts(ctx context.Context, id uuid.UUID, csvPath, archiveKey *string) error
	StoreResults(ctx context.Context, results *models.RunResults) error
	GetResults(ctx context.Context, runID uuid.UUID) (*models.RunResults, error)
}
