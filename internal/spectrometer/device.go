package spectrometer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNoDeviceFound is returned when enumeration finds no spectrometer
	ErrNoDeviceFound = errors.New("no spectrometers found")
	// ErrInvalidSelection is returned when an identifier matches no enumerated device
	ErrInvalidSelection = errors.New("no spectrometer matches selection")
)

// Descriptor identifies an attached spectrometer
type Descriptor struct {
	Model        string
	SerialNumber string
}

func (d Descriptor) String() string {
	return fmt.Sprintf("<Spectrometer %s:%s>", d.Model, d.SerialNumber)
}

// Device is an opened spectrometer
type Device interface {
	SerialNumber() string
	SetIntegrationTime(micros int) error
	Wavelengths() ([]float64, error)
	Intensities() ([]float64, error)
	Close() error
}

// Backend enumerates and opens spectrometers
type Backend interface {
	List(ctx context.Context) ([]Descriptor, error)
	Open(ctx context.Context, serialNumber string) (Device, error)
}

// Resolve picks the device matching id, which is either a serial number or a
// 1-based position in devices. Serial numbers take precedence.
func Resolve(devices []Descriptor, id string) (Descriptor, error) {
	if len(devices) == 0 {
		return Descriptor{}, ErrNoDeviceFound
	}

	id = strings.TrimSpace(id)
	for _, d := range devices {
		if d.SerialNumber == id {
			return d, nil
		}
	}

	if n, err := strconv.Atoi(id); err == nil && n >= 1 && n <= len(devices) {
		return devices[n-1], nil
	}

	return Descriptor{}, fmt.Errorf("%w: %q", ErrInvalidSelection, id)
}
