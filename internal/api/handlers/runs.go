package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/nanosynth/internal/repository"
	"github.com/RMahshie/nanosynth/internal/storage"
	"github.com/RMahshie/nanosynth/internal/synthesis"
	"github.com/RMahshie/nanosynth/pkg/models"
)

// recentRunLimit bounds run listings when no session is known
const recentRunLimit = 50

// StatusSource reports the live sequencer status
type StatusSource interface {
	Status() synthesis.Status
}

// RunHandler handles run-related HTTP requests
type RunHandler struct {
	repo    repository.RunRepository
	status  StatusSource
	archive storage.Archive
}

// NewRunHandler creates a new run handler. status may be nil when no
// sequencer is running in this process.
func NewRunHandler(repo repository.RunRepository, status StatusSource) *RunHandler {
	return &RunHandler{
		repo:   repo,
		status: status,
	}
}

// WithArchive makes GetRun attach a pre-signed download URL for archived runs
func (h *RunHandler) WithArchive(archive storage.Archive) *RunHandler {
	h.archive = archive
	return h
}

// GetStatus returns the sequencer's current state
func (h *RunHandler) GetStatus(ctx context.Context, req *models.GetStatusRequest) (*models.GetStatusResponse, error) {
	if h.status == nil {
		return nil, huma.Error503ServiceUnavailable("No synthesis session is running")
	}

	st := h.status.Status()
	resp := &models.GetStatusResponse{
		Body: models.GetStatusResponseBody{
			SessionID: st.SessionID,
			State:     st.State.String(),
			Since:     st.Since,
		},
	}
	if st.LastRunID != "" {
		id := st.LastRunID
		resp.Body.LastRunID = &id
	}
	return resp, nil
}

// ListRuns returns the runs of a session, newest first
func (h *RunHandler) ListRuns(ctx context.Context, req *models.ListRunsRequest) (*models.ListRunsResponse, error) {
	sessionID := req.SessionID
	if sessionID == "" && h.status != nil {
		sessionID = h.status.Status().SessionID
	}

	var runs []*models.Run
	var err error
	if sessionID == "" {
		runs, err = h.repo.ListRecent(ctx, recentRunLimit)
	} else {
		runs, err = h.repo.ListBySession(ctx, sessionID)
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list runs", err)
	}

	log.Debug().Str("sessionID", sessionID).Int("count", len(runs)).Msg("Listing runs")
	resp := &models.ListRunsResponse{}
	resp.Body.Runs = runs
	if resp.Body.Runs == nil {
		resp.Body.Runs = []*models.Run{}
	}
	return resp, nil
}

// GetRun returns a single run
func (h *RunHandler) GetRun(ctx context.Context, req *models.GetRunRequest) (*models.GetRunResponse, error) {
	runID, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid run ID", err)
	}

	run, err := h.repo.GetByID(ctx, runID)
	if err != nil {
		return nil, notFoundOr500("Run", err)
	}

	if h.archive != nil && run.ArchiveKey != nil {
		url, err := h.archive.GenerateDownloadURL(ctx, *run.ArchiveKey)
		if err != nil {
			log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to generate download URL")
		} else {
			run.DownloadURL = &url
		}
	}
	return &models.GetRunResponse{Body: run}, nil
}

// GetRunSpectrum returns the absorbance spectrum of a completed run
func (h *RunHandler) GetRunSpectrum(ctx context.Context, req *models.GetRunRequest) (*models.GetRunSpectrumResponse, error) {
	runID, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid run ID", err)
	}

	run, err := h.repo.GetByID(ctx, runID)
	if err != nil {
		return nil, notFoundOr500("Run", err)
	}

	if run.Status != models.StatusCompleted {
		return nil, huma.Error409Conflict("Run not yet completed",
			fmt.Errorf("run status is %s", run.Status))
	}

	results, err := h.repo.GetResults(ctx, runID)
	if err != nil {
		return nil, notFoundOr500("Spectrum", err)
	}

	return &models.GetRunSpectrumResponse{
		Body: models.GetRunSpectrumResponseBody{
			RunID:      results.RunID,
			Absorbance: results.Absorbance,
			CreatedAt:  results.CreatedAt,
		},
	}, nil
}

func notFoundOr500(what string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return huma.Error404NotFound(what+" not found", err)
	}
	return huma.Error500InternalServerError("Failed to get "+what, err)
}
