package spectrometer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RMahshie/nanosynth/internal/clock"
	"github.com/RMahshie/nanosynth/pkg/models"
)

// AcquisitionObserver is notified after every averaged acquisition
type AcquisitionObserver interface {
	ObserveAcquisition(serial string, count int, elapsed time.Duration)
}

// Session owns one opened spectrometer for its lifetime
type Session struct {
	device          Device
	integrationTime int
	sleep           clock.SleepFunc
	observer        AcquisitionObserver
}

// Option configures a Session
type Option func(*Session)

// WithSleep replaces the wait between acquisitions
func WithSleep(sleep clock.SleepFunc) Option {
	return func(s *Session) { s.sleep = sleep }
}

// WithObserver registers an acquisition observer
func WithObserver(o AcquisitionObserver) Option {
	return func(s *Session) { s.observer = o }
}

// NewSession wraps an already opened device
func NewSession(device Device, opts ...Option) *Session {
	s := &Session{device: device, sleep: clock.Sleep}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open enumerates the backend's devices and binds to the one matching id
func Open(ctx context.Context, backend Backend, id string, opts ...Option) (*Session, error) {
	devices, err := backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list spectrometers: %w", err)
	}
	if len(devices) == 0 {
		return nil, ErrNoDeviceFound
	}

	desc, err := Resolve(devices, id)
	if err != nil {
		return nil, err
	}

	device, err := backend.Open(ctx, desc.SerialNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to open spectrometer %s: %w", desc.SerialNumber, err)
	}

	log.Info().Str("model", desc.Model).Str("serial", desc.SerialNumber).Msg("Spectrometer initialized")
	return NewSession(device, opts...), nil
}

// SerialNumber returns the serial number of the bound device
func (s *Session) SerialNumber() string {
	return s.device.SerialNumber()
}

// IntegrationTime returns the configured integration time in microseconds, or
// zero if none was set.
func (s *Session) IntegrationTime() int {
	return s.integrationTime
}

// SetIntegrationTime validates and applies an integration time in microseconds.
// Out-of-range values leave the device untouched.
func (s *Session) SetIntegrationTime(micros int) error {
	if err := ValidateIntegrationTime(micros); err != nil {
		return err
	}
	if err := s.device.SetIntegrationTime(micros); err != nil {
		return fmt.Errorf("failed to set integration time: %w", err)
	}
	s.integrationTime = micros
	log.Info().Int("micros", micros).Msg("Integration time set")
	return nil
}

// AcquireAveraged performs count sequential acquisitions, waiting one
// integration time after each, and returns their element-wise mean together
// with the wavelength axis. Every call triggers fresh exposures.
func (s *Session) AcquireAveraged(ctx context.Context, count int) (models.Spectrum, error) {
	if count < 1 {
		return models.Spectrum{}, fmt.Errorf("acquisition count must be at least 1, got %d", count)
	}

	start := time.Now()
	wavelengths, err := s.device.Wavelengths()
	if err != nil {
		return models.Spectrum{}, fmt.Errorf("failed to read wavelengths: %w", err)
	}

	sum := make([]float64, len(wavelengths))
	for i := 0; i < count; i++ {
		intensities, err := s.device.Intensities()
		if err != nil {
			return models.Spectrum{}, fmt.Errorf("failed to read intensities (%d/%d): %w", i+1, count, err)
		}
		if len(intensities) != len(wavelengths) {
			return models.Spectrum{}, fmt.Errorf("intensity array has %d pixels, wavelength axis has %d",
				len(intensities), len(wavelengths))
		}
		for j, v := range intensities {
			sum[j] += v
		}
		if err := s.sleep(ctx, Microseconds(s.integrationTime)); err != nil {
			return models.Spectrum{}, err
		}
	}

	for j := range sum {
		sum[j] /= float64(count)
	}

	elapsed := time.Since(start)
	if s.observer != nil {
		s.observer.ObserveAcquisition(s.SerialNumber(), count, elapsed)
	}
	log.Debug().Int("count", count).Int("integration_micros", s.integrationTime).Dur("elapsed", elapsed).Msg("Averaged acquisition complete")

	return models.Spectrum{Wavelengths: wavelengths, Values: sum}, nil
}

// Close releases the device
func (s *Session) Close() error {
	if s.device == nil {
		return errors.New("spectrometer session already closed")
	}
	err := s.device.Close()
	s.device = nil
	return err
}
