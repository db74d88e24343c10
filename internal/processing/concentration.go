package processing

import (
	"errors"
	"fmt"
	"math"
)

// DefaultStockConcentration is the methyl orange stock concentration in mM
const DefaultStockConcentration = 2.5

var (
	// ErrConcentrationExceedsStock is returned when the target would need a negative diluent flow
	ErrConcentrationExceedsStock = errors.New("target concentration exceeds stock concentration")
	// ErrNegativeConcentration is returned for target concentrations below zero
	ErrNegativeConcentration = errors.New("target concentration must not be negative")
	// ErrInvalidFlowRate is returned when a stock or total flow parameter is not positive
	ErrInvalidFlowRate = errors.New("flow parameters must be positive")
)

// FlowRates is the pair of dependent flow rates for one target concentration.
// Both values share the unit of the total they were derived from.
type FlowRates struct {
	Solute  float64
	Diluent float64
}

// FlowMapper converts a target solute concentration into solute and diluent
// makeup flow rates that sum to a constant total.
type FlowMapper struct {
	StockConcentration float64
	TotalFlowRate      float64
}

// Map returns the flow rates for the target concentration
func (m FlowMapper) Map(target float64) (FlowRates, error) {
	return MapConcentration(target, m.StockConcentration, m.TotalFlowRate)
}

// MapConcentration computes F_solute = (target/stock)*total and
// F_diluent = total - F_solute. Targets above the stock concentration are
// rejected rather than producing a negative diluent rate.
func MapConcentration(target, stock, total float64) (FlowRates, error) {
	if !finite(stock) || !finite(total) || stock <= 0 || total <= 0 {
		return FlowRates{}, fmt.Errorf("%w: stock=%g total=%g", ErrInvalidFlowRate, stock, total)
	}
	if math.IsNaN(target) || target < 0 {
		return FlowRates{}, fmt.Errorf("%w: %g mM", ErrNegativeConcentration, target)
	}
	if target > stock {
		return FlowRates{}, fmt.Errorf("%w: %g mM > %g mM", ErrConcentrationExceedsStock, target, stock)
	}

	solute := (target / stock) * total
	return FlowRates{
		Solute:  solute,
		Diluent: total - solute,
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
