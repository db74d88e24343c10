package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/RMahshie/nanosynth/internal/repository"
	"github.com/RMahshie/nanosynth/pkg/models"
)

// PostgresRunRepository implements RunRepository for PostgreSQL
type PostgresRunRepository struct {
	db *sql.DB
}

// NewPostgresRunRepository creates a new PostgreSQL run repository
func NewPostgresRunRepository(db *sql.DB) repository.RunRepository {
	return &PostgresRunRepository{db: db}
}

const runColumns = `id, session_id, variant, status, target_concentration, solute_flow_rate,
	diluent_flow_rate, flow_unit, csv_path, archive_key, error_message, created_at, updated_at, completed_at`

// Create inserts a new run record
func (r *PostgresRunRepository) Create(ctx context.Context, run *models.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	query := `
		INSERT INTO runs (id, session_id, variant, status, target_concentration, solute_flow_rate,
			diluent_flow_rate, flow_unit, csv_path, archive_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.SessionID,
		run.Variant,
		run.Status,
		run.TargetConcentration,
		run.SoluteFlowRate,
		run.DiluentFlowRate,
		run.FlowUnit,
		run.CSVPath,
		run.ArchiveKey,
		run.CreatedAt,
		run.UpdatedAt)

	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var run models.Run
	var target, solute, diluent sql.NullFloat64
	var csvPath, archiveKey, errorMsg sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&run.ID,
		&run.SessionID,
		&run.Variant,
		&run.Status,
		&target,
		&solute,
		&diluent,
		&run.FlowUnit,
		&csvPath,
		&archiveKey,
		&errorMsg,
		&run.CreatedAt,
		&run.UpdatedAt,
		&completedAt)
	if err != nil {
		return nil, err
	}

	if target.Valid {
		run.TargetConcentration = &target.Float64
	}
	if solute.Valid {
		run.SoluteFlowRate = &solute.Float64
	}
	if diluent.Valid {
		run.DiluentFlowRate = &diluent.Float64
	}
	if csvPath.Valid {
		run.CSVPath = &csvPath.String
	}
	if archiveKey.Valid {
		run.ArchiveKey = &archiveKey.String
	}
	if errorMsg.Valid {
		run.ErrorMsg = &errorMsg.String
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return &run, nil
}

// GetByID retrieves a run by ID
func (r *PostgresRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return run, err
}

func (r *PostgresRunRepository) queryRuns(ctx context.Context, query string, args ...any) ([]*models.Run, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListBySession retrieves the runs of a session, newest first
func (r *PostgresRunRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE session_id = $1 ORDER BY created_at DESC`
	return r.queryRuns(ctx, query, sessionID)
}

// ListRecent retrieves the most recent runs across sessions
func (r *PostgresRunRepository) ListRecent(ctx context.Context, limit int) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC LIMIT $1`
	return r.queryRuns(ctx, query, limit)
}

// UpdateStatus updates the status of a run
func (r *PostgresRunRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `
		UPDATE runs
		SET status = $1, updated_at = NOW(),
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END
		WHERE id = $2`

	_, err := r.db.ExecContext(ctx, query, status, id)
	return err
}

// UpdateError marks a run failed with an error message
func (r *PostgresRunRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	query := `
		UPDATE runs
		SET status = 'failed', error_message = $1, updated_at = NOW()
		WHERE id = $2`

	_, err := r.db.ExecContext(ctx, query, errorMsg, id)
	return err
}

// UpdateArtifacts records where a run's files were written
func (r *PostgresRunRepository) UpdateArtifacts(ctx context.Context, id uuid.UUID, csvPath, archiveKey *string) error {
	query := `
		UPDATE runs
		SET csv_path = COALESCE($1, csv_path), archive_key = COALESCE($2, archive_key), updated_at = NOW()
		WHERE id = $3`

	_, err := r.db.ExecContext(ctx, query, csvPath, archiveKey, id)
	return err
}

// StoreResults stores the absorbance spectrum of a run
func (r *PostgresRunRepository) StoreResults(ctx context.Context, results *models.RunResults) error {
	if results.ID == "" {
		results.ID = uuid.New().String()
	}

	absorbance, err := json.Marshal(results.Absorbance)
	if err != nil {
		return fmt.Errorf("failed to marshal absorbance: %w", err)
	}

	query := `
		INSERT INTO run_results (id, run_id, absorbance, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err = r.db.ExecContext(ctx, query,
		results.ID,
		results.RunID,
		string(absorbance),
		results.CreatedAt)

	return err
}

// GetResults retrieves the absorbance spectrum of a run
func (r *PostgresRunRepository) GetResults(ctx context.Context, runID uuid.UUID) (*models.RunResults, error) {
	query := `
		SELECT id, run_id, absorbance, created_at
		FROM run_results
		WHERE run_id = $1`

	var results models.RunResults
	var absorbance []byte

	err := r.db.QueryRowContext(ctx, query, runID).Scan(
		&results.ID,
		&results.RunID,
		&absorbance,
		&results.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(absorbance, &results.Absorbance); err != nil {
		return nil, fmt.Errorf("failed to unmarshal absorbance: %w", err)
	}
	return &results, nil
}
