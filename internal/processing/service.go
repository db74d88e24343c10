package processing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/nanosynth/internal/repository"
	"github.com/RMahshie/nanosynth/internal/storage"
	"github.com/RMahshie/nanosynth/internal/telemetry"
	"github.com/RMahshie/nanosynth/pkg/models"
)

// Measurement is everything captured for one run
type Measurement struct {
	SessionID   string
	Variant     string
	Timestamp   time.Time
	Wavelengths []float64
	Sample      []float64
	Reference   []float64
	Background  []float64

	// Concentration-control runs only
	TargetConcentration *float64
	Flow                *FlowRates
	FlowUnit            string

	// CSVPath overrides the generated file name under the output directory
	CSVPath string
}

// Result is what ProcessRun produced for a measurement
type Result struct {
	Run        *models.Run
	Absorbance models.Spectrum
	CSVPath    string
}

// RunObserver is notified of every finished run
type RunObserver interface {
	RunRecorded(variant, status string)
}

type ProcessingService interface {
	// ProcessRun computes absorbance and records it. A non-nil Result is
	// returned whenever absorbance could be computed, even if saving failed.
	ProcessRun(ctx context.Context, m Measurement) (*Result, error)
	// SaveBaselines plots the reference and background spectra
	SaveBaselines(ctx context.Context, ts time.Time, wavelengths, reference, background []float64) error
}

// Options configures the processing service. Only Repository is required.
type Options struct {
	Repository repository.RunRepository
	Archive    storage.Archive
	Plotter    storage.Plotter
	Publisher  telemetry.Publisher
	Observer   RunObserver
	OutputDir  string
}

type processingService struct {
	repository repository.RunRepository
	archive    storage.Archive
	plotter    storage.Plotter
	publisher  telemetry.Publisher
	observer   RunObserver
	outputDir  string
}

func NewProcessingService(opts Options) ProcessingService {
	s := &processingService{
		repository: opts.Repository,
		archive:    opts.Archive,
		plotter:    opts.Plotter,
		publisher:  opts.Publisher,
		observer:   opts.Observer,
		outputDir:  opts.OutputDir,
	}
	if s.publisher == nil {
		s.publisher = telemetry.NoopPublisher{}
	}
	if s.outputDir == "" {
		s.outputDir = "."
	}
	return s
}

func (s *processingService) ProcessRun(ctx context.Context, m Measurement) (*Result, error) {
	values, err := Absorbance(m.Sample, m.Reference, m.Background)
	if err != nil {
		return nil, err
	}
	if len(values) != len(m.Wavelengths) {
		return nil, fmt.Errorf("%w: %d wavelengths for %d pixels", ErrLengthMismatch, len(m.Wavelengths), len(values))
	}
	spectrum := models.Spectrum{Wavelengths: m.Wavelengths, Values: values}

	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}

	// Step 1: Record the run as pending
	run := &models.Run{
		ID:                  uuid.New().String(),
		SessionID:           m.SessionID,
		Variant:             m.Variant,
		Status:              models.StatusPending,
		TargetConcentration: m.TargetConcentration,
		FlowUnit:            m.FlowUnit,
		CreatedAt:           m.Timestamp,
		UpdatedAt:           m.Timestamp,
	}
	if m.Flow != nil {
		solute, diluent := m.Flow.Solute, m.Flow.Diluent
		run.SoluteFlowRate = &solute
		run.DiluentFlowRate = &diluent
	}
	runID := uuid.MustParse(run.ID)
	logger := log.With().Str("run_id", run.ID).Str("variant", run.Variant).Logger()

	if err := s.repository.Create(ctx, run); err != nil {
		logger.Warn().Err(err).Msg("Failed to record run")
	}
	s.updateStatus(ctx, runID, models.StatusProcessing)
	run.Status = models.StatusProcessing

	result := &Result{Run: run, Absorbance: spectrum}

	// Step 2: Save the absorbance table
	csvPath := m.CSVPath
	if csvPath == "" {
		if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
			return result, s.fail(ctx, run, fmt.Errorf("%w: %v", storage.ErrSave, err))
		}
		csvPath = filepath.Join(s.outputDir, storage.AbsorbanceFileName(m.Timestamp, m.TargetConcentration))
	}
	if err := storage.WriteSpectrumCSV(csvPath, spectrum, "Absorbance"); err != nil {
		return result, s.fail(ctx, run, err)
	}
	result.CSVPath = csvPath
	run.CSVPath = &csvPath
	logger.Info().Str("path", csvPath).Msg("Absorbance data saved")

	// Step 3: Plot, purely observational
	artifacts := []string{csvPath}
	if s.plotter != nil {
		plotPath := filepath.Join(filepath.Dir(csvPath), storage.PlotFileName("absorbance", m.Timestamp, m.TargetConcentration))
		if err := s.plotter.Plot(plotPath, absorbanceTitle(m.TargetConcentration), "Absorbance", spectrum); err != nil {
			logger.Warn().Err(err).Msg("Failed to plot absorbance")
		} else {
			artifacts = append(artifacts, plotPath)
		}
	}

	// Step 4: Archive
	if s.archive != nil {
		key, err := s.archiveFiles(ctx, m.SessionID, artifacts)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to archive run artifacts")
		} else {
			run.ArchiveKey = &key
		}
	}

	if err := s.repository.UpdateArtifacts(ctx, runID, run.CSVPath, run.ArchiveKey); err != nil {
		logger.Warn().Err(err).Msg("Failed to record run artifacts")
	}

	// Step 5: Store results
	results := &models.RunResults{
		ID:         uuid.New().String(),
		RunID:      run.ID,
		Absorbance: spectrum.Points(),
		CreatedAt:  m.Timestamp,
	}
	if err := s.repository.StoreResults(ctx, results); err != nil {
		logger.Warn().Err(err).Msg("Failed to store run results")
	}

	// Step 6: Mark complete
	s.updateStatus(ctx, runID, models.StatusCompleted)
	run.Status = models.StatusCompleted
	s.finish(ctx, run, telemetry.EventRunCompleted, "")

	return result, nil
}

func (s *processingService) SaveBaselines(ctx context.Context, ts time.Time, wavelengths, reference, background []float64) error {
	if s.plotter == nil {
		return nil
	}
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrSave, err)
	}

	var errs []error
	for _, baseline := range []struct {
		kind   string
		title  string
		values []float64
	}{
		{"reference", "Reference Spectrum (Light On)", reference},
		{"background", "Background Spectrum (Light Off)", background},
	} {
		path := filepath.Join(s.outputDir, storage.PlotFileName(baseline.kind, ts, nil))
		spectrum := models.Spectrum{Wavelengths: wavelengths, Values: baseline.values}
		if err := s.plotter.Plot(path, baseline.title, "Intensity", spectrum); err != nil {
			errs = append(errs, err)
			continue
		}
		log.Debug().Str("path", path).Msg("Baseline plotted")
	}
	return errors.Join(errs...)
}

func (s *processingService) archiveFiles(ctx context.Context, sessionID string, paths []string) (string, error) {
	var csvKey string
	for _, path := range paths {
		body, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		key := fmt.Sprintf("runs/%s/%s", sessionID, filepath.Base(path))
		if err := s.archive.Upload(ctx, key, storage.ContentType(path), body); err != nil {
			return "", err
		}
		if csvKey == "" {
			csvKey = key
		}
	}
	return csvKey, nil
}

func (s *processingService) fail(ctx context.Context, run *models.Run, err error) error {
	msg := err.Error()
	run.Status = models.StatusFailed
	run.ErrorMsg = &msg
	if uerr := s.repository.UpdateError(ctx, uuid.MustParse(run.ID), msg); uerr != nil {
		log.Warn().Err(uerr).Str("run_id", run.ID).Msg("Failed to record run failure")
	}
	s.finish(ctx, run, telemetry.EventRunFailed, msg)
	return err
}

func (s *processingService) finish(ctx context.Context, run *models.Run, eventType, errMsg string) {
	if s.observer != nil {
		s.observer.RunRecorded(run.Variant, run.Status)
	}

	event := telemetry.Event{
		Type:                eventType,
		RunID:               run.ID,
		SessionID:           run.SessionID,
		Variant:             run.Variant,
		TargetConcentration: run.TargetConcentration,
		SoluteFlowRate:      run.SoluteFlowRate,
		DiluentFlowRate:     run.DiluentFlowRate,
		FlowUnit:            run.FlowUnit,
		Error:               errMsg,
		Time:                time.Now(),
	}
	if run.CSVPath != nil {
		event.CSVPath = *run.CSVPath
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to publish run event")
	}
}

func (s *processingService) updateStatus(ctx context.Context, id uuid.UUID, status string) {
	if err := s.repository.UpdateStatus(ctx, id, status); err != nil {
		log.Warn().Err(err).Str("run_id", id.String()).Str("status", status).Msg("Failed to update run status")
	}
}

func absorbanceTitle(concentration *float64) string {
	if concentration == nil {
		return "Absorbance Spectrum"
	}
	return fmt.Sprintf("Absorbance Spectrum (%g mM)", *concentration)
}
