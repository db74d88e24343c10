package pump

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RMahshie/nanosynth/internal/clock"
)

// Serial defaults for the pumps
const (
	DefaultBaudRate    = 9600
	DefaultReadTimeout = time.Second
	DefaultSettleDelay = 500 * time.Millisecond
)

var (
	// ErrConnectionFailed is returned when a serial port cannot be acquired
	ErrConnectionFailed = errors.New("failed to connect to syringe pump")
	// ErrClosed is returned for commands sent on a closed channel
	ErrClosed = errors.New("pump channel is closed")
	// ErrInvalidSetting is returned for a diameter, volume or rate the pump cannot take
	ErrInvalidSetting = errors.New("invalid pump setting")
)

// Port is an open serial connection
type Port interface {
	io.ReadWriteCloser
}

// PortConfig holds serial line settings
type PortConfig struct {
	BaudRate    int
	ReadTimeout time.Duration
}

// Opener acquires a serial port by name
type Opener func(name string, cfg PortConfig) (Port, error)

// CommandObserver is notified after every command exchange
type CommandObserver interface {
	ObserveCommand(port, command string, err error)
}

// Options configures channels
type Options struct {
	Port PortConfig
	// SettleDelay is waited between writing a command and reading its response.
	SettleDelay time.Duration
	Sleep       clock.SleepFunc
	Observer    CommandObserver
}

// DefaultOptions returns 9600 baud, a one second read timeout and a 500ms settle delay
func DefaultOptions() Options {
	return Options{
		Port:        PortConfig{BaudRate: DefaultBaudRate, ReadTimeout: DefaultReadTimeout},
		SettleDelay: DefaultSettleDelay,
		Sleep:       clock.Sleep,
	}
}

// FlowRate is a rate value with its unit
type FlowRate struct {
	Value float64
	Unit  FlowRateUnit
}

func (r FlowRate) String() string {
	return formatValue(r.Value) + " " + r.Unit.String()
}

// Settings is a full channel configuration. Zero diameter or volume are not sent.
type Settings struct {
	Diameter float64
	Volume   float64
	Rate     FlowRate
}

// Channel is one serial-connected syringe pump
type Channel struct {
	name string
	port Port
	opts Options

	mu       sync.Mutex
	closed   bool
	diameter float64
	volume   float64
	rate     FlowRate
}

// Open acquires the named serial port
func Open(name string, opener Opener, opts Options) (*Channel, error) {
	if opts.Sleep == nil {
		opts.Sleep = clock.Sleep
	}
	log.Info().Str("port", name).Int("baud", opts.Port.BaudRate).Msg("Initializing serial connection")
	port, err := opener(name, opts.Port)
	if err != nil {
		return nil, fmt.Errorf("%w on port %s: %v", ErrConnectionFailed, name, err)
	}
	log.Info().Str("port", name).Msg("Connected to syringe pump")
	return &Channel{name: name, port: port, opts: opts}, nil
}

// Name returns the serial port name
func (c *Channel) Name() string {
	return c.name
}

// IsOpen reports whether the channel still owns its port
func (c *Channel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Send writes command terminated by a carriage return, waits the settle delay
// and reads one response line.
func (c *Channel) Send(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.exchange(ctx, command)
	if c.opts.Observer != nil {
		c.opts.Observer.ObserveCommand(c.name, command, err)
	}
	return resp, err
}

func (c *Channel) exchange(ctx context.Context, command string) (string, error) {
	if c.closed {
		return "", fmt.Errorf("%w: %s", ErrClosed, c.name)
	}

	if r, ok := c.port.(interface{ ResetInputBuffer() error }); ok {
		if err := r.ResetInputBuffer(); err != nil {
			log.Warn().Err(err).Str("port", c.name).Msg("Failed to reset serial input buffer")
		}
	}

	if _, err := c.port.Write([]byte(command + "\r")); err != nil {
		return "", fmt.Errorf("failed to write %q to %s: %w", command, c.name, err)
	}
	if err := c.opts.Sleep(ctx, c.opts.SettleDelay); err != nil {
		return "", err
	}

	raw, err := readResponse(c.port)
	if err != nil {
		return "", fmt.Errorf("failed to read response to %q from %s: %w", command, c.name, err)
	}
	resp := decodeResponse(raw)

	if resp == "" {
		log.Warn().Str("port", c.name).Str("command", command).Msg("No response from pump")
		return resp, nil
	}
	log.Info().Str("port", c.name).Str("command", command).Str("response", resp).Msg("Pump command sent")

	return resp, checkResponse(command, resp)
}

// SetDiameter sets the syringe inner diameter in mm
func (c *Channel) SetDiameter(ctx context.Context, mm float64) error {
	if !finite(mm) || mm <= 0 {
		return fmt.Errorf("%w: syringe diameter must be positive, got %g", ErrInvalidSetting, mm)
	}
	if _, err := c.Send(ctx, "DIA "+formatValue(mm)); err != nil {
		return err
	}
	c.mu.Lock()
	c.diameter = mm
	c.mu.Unlock()
	return nil
}

// SetFlowRate sets the pumping rate
func (c *Channel) SetFlowRate(ctx context.Context, rate FlowRate) error {
	if !rate.Unit.Valid() {
		return fmt.Errorf("%w: %v", ErrUnknownUnit, rate.Unit)
	}
	if !finite(rate.Value) || rate.Value < 0 {
		return fmt.Errorf("%w: flow rate must not be negative, got %g", ErrInvalidSetting, rate.Value)
	}
	if _, err := c.Send(ctx, fmt.Sprintf("RAT %s %s", formatValue(rate.Value), rate.Unit.Code())); err != nil {
		return err
	}
	c.mu.Lock()
	c.rate = rate
	c.mu.Unlock()
	return nil
}

// SetVolume sets the volume to dispense in mL
func (c *Channel) SetVolume(ctx context.Context, ml float64) error {
	if !finite(ml) || ml <= 0 {
		return fmt.Errorf("%w: volume must be positive, got %g", ErrInvalidSetting, ml)
	}
	if _, err := c.Send(ctx, "VOL "+formatValue(ml)); err != nil {
		return err
	}
	c.mu.Lock()
	c.volume = ml
	c.mu.Unlock()
	return nil
}

// Configure sends diameter, volume and flow rate in that order. A zero
// diameter or volume is left unchanged on the pump.
func (c *Channel) Configure(ctx context.Context, s Settings) error {
	if s.Diameter != 0 {
		if err := c.SetDiameter(ctx, s.Diameter); err != nil {
			return err
		}
	}
	if s.Volume != 0 {
		if err := c.SetVolume(ctx, s.Volume); err != nil {
			return err
		}
	}
	return c.SetFlowRate(ctx, s.Rate)
}

// Run starts pumping
func (c *Channel) Run(ctx context.Context) error {
	_, err := c.Send(ctx, "RUN")
	return err
}

// Stop halts pumping
func (c *Channel) Stop(ctx context.Context) error {
	_, err := c.Send(ctx, "STP")
	return err
}

// Settings returns the last successfully applied configuration
func (c *Channel) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Settings{Diameter: c.diameter, Volume: c.volume, Rate: c.rate}
}

// Close releases the serial port. Only the first call closes it.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.port.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", c.name, err)
	}
	log.Info().Str("port", c.name).Msg("Closed connection to syringe pump")
	return nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
