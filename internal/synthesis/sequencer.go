package synthesis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RMahshie/nanosynth/internal/clock"
	"github.com/RMahshie/nanosynth/internal/processing"
	"github.com/RMahshie/nanosynth/internal/pump"
	"github.com/RMahshie/nanosynth/internal/storage"
	"github.com/RMahshie/nanosynth/pkg/models"
)

// ErrBaselinesMissing is returned when a run starts before reference and
// background spectra were captured
var ErrBaselinesMissing = errors.New("reference and background spectra not captured")

const cleanupTimeout = 10 * time.Second

// Spectrometer acquires averaged intensity spectra
type Spectrometer interface {
	AcquireAveraged(ctx context.Context, count int) (models.Spectrum, error)
}

// Pump is a pump channel as the sequencer drives it
type Pump interface {
	Name() string
	Configure(ctx context.Context, s pump.Settings) error
	SetFlowRate(ctx context.Context, rate pump.FlowRate) error
	Run(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Operator provides every external trigger of a run
type Operator interface {
	// Confirm blocks until the operator acknowledges prompt
	Confirm(ctx context.Context, prompt string) error
	// TargetConcentration asks until validate accepts the entered value
	TargetConcentration(ctx context.Context, validate func(float64) error) (float64, error)
	// Continue reports false when the operator asks to quit
	Continue(ctx context.Context, prompt string) (bool, error)
	// OutputPath asks for the CSV file a measurement is saved to
	OutputPath(ctx context.Context) (string, error)
	Notify(format string, args ...any)
}

// Recorder persists measurements
type Recorder interface {
	ProcessRun(ctx context.Context, m processing.Measurement) (*processing.Result, error)
	SaveBaselines(ctx context.Context, ts time.Time, wavelengths, reference, background []float64) error
}

// StateObserver is told about every state change
type StateObserver interface {
	SetState(previous, current string)
}

// TargetObserver is an optional StateObserver extension told about every
// accepted target concentration
type TargetObserver interface {
	SetTargetConcentration(mM float64)
}

// Sequencer owns the spectrometer session and drives a synthesis session
// through its states. Status is safe to call from other goroutines.
type Sequencer struct {
	spectrometer Spectrometer
	operator     Operator
	recorder     Recorder
	sleep        clock.SleepFunc
	now          func() time.Time
	observer     StateObserver

	mu        sync.RWMutex
	sessionID string
	state     State
	since     time.Time
	lastRunID string

	reference  models.Spectrum
	background models.Spectrum
}

type Option func(*Sequencer)

// WithSleep replaces the blocking wait used between schedule steps
func WithSleep(sleep clock.SleepFunc) Option {
	return func(s *Sequencer) { s.sleep = sleep }
}

// WithClock replaces the timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *Sequencer) { s.now = now }
}

// WithStateObserver registers a state observer
func WithStateObserver(o StateObserver) Option {
	return func(s *Sequencer) { s.observer = o }
}

func NewSequencer(sessionID string, spectrometer Spectrometer, operator Operator, recorder Recorder, opts ...Option) *Sequencer {
	s := &Sequencer{
		spectrometer: spectrometer,
		operator:     operator,
		recorder:     recorder,
		sleep:        clock.Sleep,
		now:          time.Now,
		sessionID:    sessionID,
		state:        Idle,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.since = s.now()
	if s.observer != nil {
		s.observer.SetState("", Idle.String())
	}
	return s
}

// Status returns the current state
func (s *Sequencer) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		SessionID: s.sessionID,
		State:     s.state,
		Since:     s.since,
		LastRunID: s.lastRunID,
	}
}

func (s *Sequencer) transition(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.since = s.now()
	s.mu.Unlock()

	log.Info().Str("state", to.String()).Str("from", from.String()).Msg("Sequencer state changed")
	if s.observer != nil {
		s.observer.SetState(from.String(), to.String())
	}
}

func (s *Sequencer) current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// CaptureBaselines acquires the reference (light on) and background (light
// off) spectra, each after operator confirmation.
func (s *Sequencer) CaptureBaselines(ctx context.Context, averages int) error {
	if err := s.operator.Confirm(ctx, "Press Enter to store the reference spectrum..."); err != nil {
		return err
	}
	reference, err := s.spectrometer.AcquireAveraged(ctx, averages)
	if err != nil {
		return fmt.Errorf("failed to acquire reference spectrum: %w", err)
	}
	s.reference = reference
	s.transition(ReferenceCaptured)

	if err := s.operator.Confirm(ctx, "Press Enter to collect the background spectrum..."); err != nil {
		return err
	}
	background, err := s.spectrometer.AcquireAveraged(ctx, averages)
	if err != nil {
		return fmt.Errorf("failed to acquire background spectrum: %w", err)
	}
	s.background = background
	s.transition(BackgroundCaptured)

	if err := s.recorder.SaveBaselines(ctx, s.now(), reference.Wavelengths, reference.Values, background.Values); err != nil {
		log.Warn().Err(err).Msg("Failed to plot baseline spectra")
	}
	return nil
}

// ConcentrationPumps are the four channels of the concentration-control variant
type ConcentrationPumps struct {
	Diluent  Pump
	Solute   Pump
	ReagentA Pump
	ReagentB Pump
}

func (p ConcentrationPumps) all() []Pump {
	return []Pump{p.Diluent, p.Solute, p.ReagentA, p.ReagentB}
}

// ConcentrationConfig holds the parameters fixed for a concentration session
type ConcentrationConfig struct {
	Averages   int
	Unit       pump.FlowRateUnit
	ReagentA   float64
	ReagentB   float64
	Mapper     processing.FlowMapper
	SoluteLead time.Duration
	ReagentGap time.Duration
}

// RunConcentration loops over operator-chosen solute concentrations. Each
// iteration stops the diluent and solute pumps, applies the mapped rates,
// runs the start schedule and records one absorbance measurement. On return
// every pump is stopped, whichever state the loop ended in.
func (s *Sequencer) RunConcentration(ctx context.Context, pumps ConcentrationPumps, cfg ConcentrationConfig) (err error) {
	if s.current() < BackgroundCaptured {
		return ErrBaselinesMissing
	}
	defer func() {
		err = errors.Join(err, s.stopAll(ctx, pumps.all()))
		s.transition(Terminal)
	}()

	if err := pumps.ReagentA.SetFlowRate(ctx, pump.FlowRate{Value: cfg.ReagentA, Unit: cfg.Unit}); err != nil {
		return err
	}
	if err := pumps.ReagentB.SetFlowRate(ctx, pump.FlowRate{Value: cfg.ReagentB, Unit: cfg.Unit}); err != nil {
		return err
	}

	validate := func(target float64) error {
		_, err := cfg.Mapper.Map(target)
		return err
	}

	for {
		if err := s.operator.Confirm(ctx, "Press Enter to update the concentration and flow rates of the diluent and solute pumps..."); err != nil {
			return err
		}
		target, err := s.operator.TargetConcentration(ctx, validate)
		if err != nil {
			return err
		}
		rates, err := cfg.Mapper.Map(target)
		if err != nil {
			return err
		}

		if err := s.applyRates(ctx, pumps, rates, cfg.Unit); err != nil {
			return err
		}
		s.operator.Notify("Updated diluent pump flow rate: %g %s", rates.Diluent, cfg.Unit)
		s.operator.Notify("Updated solute pump flow rate: %g %s", rates.Solute, cfg.Unit)
		if o, ok := s.observer.(TargetObserver); ok {
			o.SetTargetConcentration(target)
		}
		s.transition(PumpsConfigured)

		s.transition(Running)
		schedule := ConcentrationSchedule(pumps.Diluent, pumps.Solute, pumps.ReagentA, pumps.ReagentB, cfg.SoluteLead, cfg.ReagentGap)
		if err := schedule.Execute(ctx, s.sleep); err != nil {
			return err
		}

		s.transition(AwaitingMeasurement)
		if err := s.operator.Confirm(ctx, "Press Enter to measure absorbance..."); err != nil {
			return err
		}
		if err := s.measure(ctx, processing.Measurement{
			Variant:             models.VariantConcentration,
			TargetConcentration: &target,
			Flow:                &rates,
			FlowUnit:            cfg.Unit.Code(),
		}, cfg.Averages); err != nil {
			return err
		}

		more, err := s.operator.Continue(ctx, "Press 'Q' to quit or Enter to continue with another concentration: ")
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

func (s *Sequencer) applyRates(ctx context.Context, pumps ConcentrationPumps, rates processing.FlowRates, unit pump.FlowRateUnit) error {
	if err := pumps.Diluent.Stop(ctx); err != nil {
		return err
	}
	if err := pumps.Solute.Stop(ctx); err != nil {
		return err
	}
	if err := pumps.Diluent.SetFlowRate(ctx, pump.FlowRate{Value: rates.Diluent, Unit: unit}); err != nil {
		return err
	}
	return pumps.Solute.SetFlowRate(ctx, pump.FlowRate{Value: rates.Solute, Unit: unit})
}

// InlinePumps are the two channels of the basic inline variant
type InlinePumps struct {
	TwoInlet Pump
	OneInlet Pump
}

// InlineConfig holds the operator-entered settings of an inline run
type InlineConfig struct {
	Averages int
	TwoInlet pump.Settings
	OneInlet pump.Settings
	Delay    time.Duration
}

// RunInline configures both pumps, starts them Delay apart, records one
// absorbance measurement and keeps the pumps flowing until the operator quits.
func (s *Sequencer) RunInline(ctx context.Context, pumps InlinePumps, cfg InlineConfig) (err error) {
	if s.current() < BackgroundCaptured {
		return ErrBaselinesMissing
	}
	defer func() {
		err = errors.Join(err, s.stopAll(ctx, []Pump{pumps.TwoInlet, pumps.OneInlet}))
		s.transition(Terminal)
	}()

	if err := pumps.TwoInlet.Configure(ctx, cfg.TwoInlet); err != nil {
		return err
	}
	if err := pumps.OneInlet.Configure(ctx, cfg.OneInlet); err != nil {
		return err
	}
	s.transition(PumpsConfigured)

	if err := s.operator.Confirm(ctx, "Press Enter to start both pumps..."); err != nil {
		return err
	}
	s.transition(Running)
	if err := InlineSchedule(pumps.TwoInlet, pumps.OneInlet, cfg.Delay).Execute(ctx, s.sleep); err != nil {
		return err
	}

	s.transition(AwaitingMeasurement)
	if err := s.operator.Confirm(ctx, "Press Enter to measure absorbance..."); err != nil {
		return err
	}
	if err := s.measure(ctx, processing.Measurement{Variant: models.VariantInline}, cfg.Averages); err != nil {
		return err
	}

	for {
		more, err := s.operator.Continue(ctx, "Press 'Q' to stop both pumps: ")
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// MeasureSpectrum records a single absorbance measurement to an
// operator-chosen file, with no pumps involved. When the file cannot be
// written the operator is asked for another path and the same sample is
// saved again.
func (s *Sequencer) MeasureSpectrum(ctx context.Context, averages int) (err error) {
	if s.current() < BackgroundCaptured {
		return ErrBaselinesMissing
	}
	defer s.transition(Terminal)

	s.transition(AwaitingMeasurement)
	if err := s.operator.Confirm(ctx, "Press Enter to collect the sample spectrum..."); err != nil {
		return err
	}
	m, err := s.acquire(ctx, processing.Measurement{Variant: models.VariantSpectrum}, averages)
	if err != nil {
		return err
	}

	for {
		m.CSVPath, err = s.operator.OutputPath(ctx)
		if err != nil {
			return err
		}
		result, err := s.recorder.ProcessRun(ctx, m)
		if result == nil {
			return err
		}
		if errors.Is(err, storage.ErrSave) {
			log.Error().Err(err).Str("path", m.CSVPath).Msg("Failed to save spectrum")
			s.operator.Notify("Failed to save file: %v. Please try again.", err)
			continue
		}
		s.record(result, err)
		return nil
	}
}

// measure acquires a sample and records it. Save failures are reported to
// the operator and do not end the session.
func (s *Sequencer) measure(ctx context.Context, m processing.Measurement, averages int) error {
	m, err := s.acquire(ctx, m, averages)
	if err != nil {
		return err
	}
	result, err := s.recorder.ProcessRun(ctx, m)
	if result == nil {
		return err
	}
	s.record(result, err)
	return nil
}

// acquire fills m with a fresh averaged sample and the captured baselines
func (s *Sequencer) acquire(ctx context.Context, m processing.Measurement, averages int) (processing.Measurement, error) {
	sample, err := s.spectrometer.AcquireAveraged(ctx, averages)
	if err != nil {
		return m, fmt.Errorf("failed to acquire sample spectrum: %w", err)
	}

	m.SessionID = s.sessionID
	m.Timestamp = s.now()
	m.Wavelengths = sample.Wavelengths
	m.Sample = sample.Values
	m.Reference = s.reference.Values
	m.Background = s.background.Values
	return m, nil
}

// record keeps the run ID and tells the operator where the data went
func (s *Sequencer) record(result *processing.Result, err error) {
	s.mu.Lock()
	s.lastRunID = result.Run.ID
	s.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("run_id", result.Run.ID).Msg("Failed to save absorbance data")
		s.operator.Notify("Failed to save absorbance data: %v", err)
	} else {
		s.operator.Notify("Data has been written to %s", result.CSVPath)
	}
	s.transition(MeasurementComplete)
}

// stopAll stops every pump, best effort, even if ctx was cancelled
func (s *Sequencer) stopAll(ctx context.Context, pumps []Pump) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	var errs []error
	for _, p := range pumps {
		if p == nil {
			continue
		}
		if err := p.Stop(ctx); err != nil {
			log.Warn().Err(err).Str("port", p.Name()).Msg("Failed to stop pump")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
