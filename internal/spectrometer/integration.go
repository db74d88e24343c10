package spectrometer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Integration time bounds in microseconds, inclusive
const (
	MinIntegrationTime = 8000
	MaxIntegrationTime = 3600000
)

var (
	// ErrOutOfRange is returned for integration times outside the supported range
	ErrOutOfRange = errors.New("integration time out of range")
	// ErrInvalidNumber is returned when integration time input is not an integer
	ErrInvalidNumber = errors.New("integration time must be an integer")
)

// ValidateIntegrationTime checks micros against the supported range
func ValidateIntegrationTime(micros int) error {
	if micros < MinIntegrationTime || micros > MaxIntegrationTime {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrOutOfRange, micros, MinIntegrationTime, MaxIntegrationTime)
	}
	return nil
}

// ParseIntegrationTime parses operator input in microseconds and validates it
func ParseIntegrationTime(text string) (int, error) {
	micros, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, text)
	}
	if err := ValidateIntegrationTime(micros); err != nil {
		return 0, err
	}
	return micros, nil
}

// Microseconds converts an integration time to a duration
func Microseconds(micros int) time.Duration {
	return time.Duration(micros) * time.Microsecond
}
