package pump

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownUnit is returned when a flow-rate unit cannot be parsed
var ErrUnknownUnit = errors.New("unknown flow rate unit")

// FlowRateUnit is one of the pump's supported flow-rate units
type FlowRateUnit int

const (
	MicrolitersPerMinute FlowRateUnit = iota + 1
	MillilitersPerMinute
	MicrolitersPerHour
	MillilitersPerHour
)

// Code returns the unit code the pump firmware expects in a RAT command
func (u FlowRateUnit) Code() string {
	switch u {
	case MicrolitersPerMinute:
		return "UM"
	case MillilitersPerMinute:
		return "MM"
	case MicrolitersPerHour:
		return "UH"
	case MillilitersPerHour:
		return "MH"
	default:
		return ""
	}
}

func (u FlowRateUnit) String() string {
	switch u {
	case MicrolitersPerMinute:
		return "µL/min"
	case MillilitersPerMinute:
		return "mL/min"
	case MicrolitersPerHour:
		return "µL/hr"
	case MillilitersPerHour:
		return "mL/hr"
	default:
		return fmt.Sprintf("FlowRateUnit(%d)", int(u))
	}
}

// Valid reports whether u is one of the enumerated units
func (u FlowRateUnit) Valid() bool {
	return u.Code() != ""
}

var unitAliases = map[string]FlowRateUnit{
	"um":     MicrolitersPerMinute,
	"ul/min": MicrolitersPerMinute,
	"µl/min": MicrolitersPerMinute,
	"μl/min": MicrolitersPerMinute,
	"mm":     MillilitersPerMinute,
	"ml/min": MillilitersPerMinute,
	"uh":     MicrolitersPerHour,
	"ul/hr":  MicrolitersPerHour,
	"µl/hr":  MicrolitersPerHour,
	"μl/hr":  MicrolitersPerHour,
	"ul/h":   MicrolitersPerHour,
	"mh":     MillilitersPerHour,
	"ml/hr":  MillilitersPerHour,
	"ml/h":   MillilitersPerHour,
}

// ParseFlowRateUnit accepts either a unit symbol (uL/min, mL/hr, ...) or a
// firmware code (UM, MM, UH, MH), case-insensitively.
func ParseFlowRateUnit(s string) (FlowRateUnit, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if u, ok := unitAliases[key]; ok {
		return u, nil
	}
	return 0, fmt.Errorf("%w: %q (use uL/min, mL/min, uL/hr, mL/hr or UM, MM, UH, MH)", ErrUnknownUnit, s)
}
