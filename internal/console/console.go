// Package console prompts the operator for run parameters. Every prompt
// re-asks until its validator accepts the input.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/RMahshie/nanosynth/internal/pump"
	"github.com/RMahshie/nanosynth/internal/spectrometer"
	"github.com/RMahshie/nanosynth/internal/storage"
)

// ErrInvalidNumber is returned for input that is not a number
var ErrInvalidNumber = errors.New("invalid number")

type line struct {
	text string
	err  error
}

// Console reads operator input line by line. Reads honour context
// cancellation; the underlying reader is drained by a single goroutine.
type Console struct {
	out       io.Writer
	in        *bufio.Reader
	once      sync.Once
	closeOnce sync.Once
	lines     chan line
	done      chan struct{}
	stopped   chan struct{}
}

func New(in io.Reader, out io.Writer) *Console {
	return &Console{
		out:     out,
		in:      bufio.NewReader(in),
		lines:   make(chan line),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Close releases the reader goroutine. A goroutine blocked inside Read on
// the underlying reader exits once that Read returns.
func (c *Console) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *Console) start() {
	go func() {
		defer close(c.stopped)
		for {
			text, err := c.in.ReadString('\n')
			if err != nil && (text == "" || !errors.Is(err, io.EOF)) {
				select {
				case c.lines <- line{err: err}:
					close(c.lines)
				case <-c.done:
				}
				return
			}
			select {
			case c.lines <- line{text: strings.TrimRight(text, "\r\n")}:
			case <-c.done:
				return
			}
		}
	}()
}

// ReadLine prints prompt and returns the next input line without its line ending
func (c *Console) ReadLine(ctx context.Context, prompt string) (string, error) {
	c.once.Do(c.start)
	fmt.Fprint(c.out, prompt)

	select {
	case <-ctx.Done():
		fmt.Fprintln(c.out)
		return "", ctx.Err()
	case <-c.done:
		return "", io.EOF
	case l, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return l.text, l.err
	}
}

// Ask prompts until parse accepts the input
func Ask[T any](ctx context.Context, c *Console, prompt string, parse func(string) (T, error)) (T, error) {
	for {
		text, err := c.ReadLine(ctx, prompt)
		if err != nil {
			var zero T
			return zero, err
		}
		v, err := parse(text)
		if err == nil {
			return v, nil
		}
		fmt.Fprintf(c.out, "Invalid input: %v\n", err)
	}
}

// Notify prints an operator-facing message
func (c *Console) Notify(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

// Confirm waits for the operator to press Enter
func (c *Console) Confirm(ctx context.Context, prompt string) error {
	_, err := c.ReadLine(ctx, prompt)
	return err
}

// Continue returns false when the operator enters q or Q
func (c *Console) Continue(ctx context.Context, prompt string) (bool, error) {
	text, err := c.ReadLine(ctx, prompt)
	if err != nil {
		return false, err
	}
	return !strings.EqualFold(strings.TrimSpace(text), "q"), nil
}

// ParseFloat parses a finite decimal number. NaN and infinities are rejected.
func ParseFloat(text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, text)
	}
	return v, nil
}

// ParsePositive parses a number greater than zero
func ParsePositive(text string) (float64, error) {
	v, err := ParseFloat(text)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: %g must be greater than zero", ErrInvalidNumber, v)
	}
	return v, nil
}

// ParseNonNegative parses a number that is zero or greater
func ParseNonNegative(text string) (float64, error) {
	v, err := ParseFloat(text)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: %g must not be negative", ErrInvalidNumber, v)
	}
	return v, nil
}

// maxDelay keeps a delay in seconds convertible to time.Duration
const maxDelay = 24 * time.Hour

func parseDelay(text string) (float64, error) {
	v, err := ParseNonNegative(text)
	if err != nil {
		return 0, err
	}
	if v > maxDelay.Seconds() {
		return 0, fmt.Errorf("%w: %g s exceeds %s", ErrInvalidNumber, v, maxDelay)
	}
	return v, nil
}

// Float asks for a number accepted by parse
func (c *Console) Float(ctx context.Context, prompt string, parse func(string) (float64, error)) (float64, error) {
	return Ask(ctx, c, prompt, parse)
}

// TargetConcentration asks for a concentration in mM until validate accepts it
func (c *Console) TargetConcentration(ctx context.Context, validate func(float64) error) (float64, error) {
	return Ask(ctx, c, "Enter the desired concentration (in mM): ", func(text string) (float64, error) {
		v, err := ParseFloat(text)
		if err != nil {
			return 0, err
		}
		if err := validate(v); err != nil {
			return 0, err
		}
		return v, nil
	})
}

// IntegrationTime asks for the spectrometer integration time in microseconds
func (c *Console) IntegrationTime(ctx context.Context) (int, error) {
	prompt := fmt.Sprintf("Enter the integration time in microseconds (range: %d - %d): ",
		spectrometer.MinIntegrationTime, spectrometer.MaxIntegrationTime)
	return Ask(ctx, c, prompt, spectrometer.ParseIntegrationTime)
}

// SelectDevice lists devices and asks for a serial number or list position
func (c *Console) SelectDevice(ctx context.Context, devices []spectrometer.Descriptor) (spectrometer.Descriptor, error) {
	if len(devices) == 0 {
		return spectrometer.Descriptor{}, spectrometer.ErrNoDeviceFound
	}
	fmt.Fprintln(c.out, "Available spectrometers:")
	for i, d := range devices {
		fmt.Fprintf(c.out, "  %d. %s\n", i+1, d)
	}
	return Ask(ctx, c, "Enter the serial number or number of the spectrometer you want to use: ",
		func(text string) (spectrometer.Descriptor, error) {
			return spectrometer.Resolve(devices, text)
		})
}

// FlowUnit asks for a flow-rate unit symbol or code
func (c *Console) FlowUnit(ctx context.Context, prompt string) (pump.FlowRateUnit, error) {
	return Ask(ctx, c, prompt, pump.ParseFlowRateUnit)
}

// Delay asks for a delay in seconds
func (c *Console) Delay(ctx context.Context, prompt string) (time.Duration, error) {
	secs, err := c.Float(ctx, prompt, parseDelay)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// OutputPath asks for a CSV file path in an existing directory
func (c *Console) OutputPath(ctx context.Context) (string, error) {
	return Ask(ctx, c, "Enter the full path to save the CSV file (e.g. /path/to/absorbance_data.csv): ",
		func(text string) (string, error) {
			path := strings.TrimSpace(text)
			if err := storage.ValidateCSVPath(path); err != nil {
				return "", err
			}
			return path, nil
		})
}

// PumpSettings asks for the diameter, volume and flow rate of one pump
func (c *Console) PumpSettings(ctx context.Context, label string) (pump.Settings, error) {
	var s pump.Settings
	var err error

	if s.Diameter, err = c.Float(ctx, fmt.Sprintf("Enter the diameter for the %s pump (in mm): ", label), ParsePositive); err != nil {
		return s, err
	}
	if s.Volume, err = c.Float(ctx, fmt.Sprintf("Enter the volume for the %s pump (in ml): ", label), ParsePositive); err != nil {
		return s, err
	}
	if s.Rate.Value, err = c.Float(ctx, fmt.Sprintf("Enter the flow rate for the %s pump: ", label), ParseNonNegative); err != nil {
		return s, err
	}
	if s.Rate.Unit, err = c.FlowUnit(ctx, fmt.Sprintf("Enter the unit for the %s pump flow rate (MH, UH, UM, MM): ", label)); err != nil {
		return s, err
	}
	return s, nil
}
