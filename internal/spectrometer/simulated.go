package spectrometer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// Simulated is an in-process backend producing a lamp-like spectrum with a
// dark offset and Gaussian read noise.
type Simulated struct {
	Devices []Descriptor
	Pixels  int
	Seed    int64
}

// NewSimulated returns a backend with a single simulated QE Pro
func NewSimulated(pixels int, seed int64) *Simulated {
	if pixels <= 0 {
		pixels = 1044
	}
	return &Simulated{
		Devices: []Descriptor{{Model: "QE-PRO", SerialNumber: "QEP-SIM-0001"}},
		Pixels:  pixels,
		Seed:    seed,
	}
}

// List implements Backend
func (b *Simulated) List(ctx context.Context) ([]Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]Descriptor(nil), b.Devices...), nil
}

// Open implements Backend
func (b *Simulated) Open(ctx context.Context, serialNumber string) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, d := range b.Devices {
		if d.SerialNumber == serialNumber {
			return &simulatedDevice{
				serial: serialNumber,
				pixels: b.Pixels,
				rng:    rand.New(rand.NewSource(b.Seed)),
				micros: MinIntegrationTime,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidSelection, serialNumber)
}

type simulatedDevice struct {
	mu     sync.Mutex
	serial string
	pixels int
	rng    *rand.Rand
	micros int
	closed bool
}

const (
	simMinWavelength = 200.0
	simMaxWavelength = 1000.0
	simDarkCounts    = 1000.0
	simLampCounts    = 40000.0
	simReadNoise     = 20.0
)

func (d *simulatedDevice) SerialNumber() string { return d.serial }

func (d *simulatedDevice) SetIntegrationTime(micros int) error {
	if err := ValidateIntegrationTime(micros); err != nil {
		return err
	}
	d.mu.Lock()
	d.micros = micros
	d.mu.Unlock()
	return nil
}

func (d *simulatedDevice) Wavelengths() ([]float64, error) {
	out := make([]float64, d.pixels)
	step := (simMaxWavelength - simMinWavelength) / float64(d.pixels-1)
	for i := range out {
		out[i] = simMinWavelength + float64(i)*step
	}
	return out, nil
}

func (d *simulatedDevice) Intensities() ([]float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("spectrometer %s is closed", d.serial)
	}

	wavelengths, _ := d.Wavelengths()
	gain := math.Min(1, float64(d.micros)/100000)
	out := make([]float64, d.pixels)
	for i, wl := range wavelengths {
		lamp := simLampCounts * gain * math.Exp(-math.Pow((wl-600)/180, 2))
		v := simDarkCounts + lamp + d.rng.NormFloat64()*simReadNoise
		out[i] = math.Max(0, v)
	}
	return out, nil
}

func (d *simulatedDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
