package sim

import (
	"fmt"
	"math"
)

const (
	DefaultCommissionRate = 0.001  // 0.1%
	DefaultSlippageRate   = 0.0005 // 0.05%
)

// CostModel charges commission and slippage as fixed fractions of a
// fill's notional value.
type CostModel struct {
	CommissionRate float64 `json:"commission_rate" yaml:"commission_rate"`
	SlippageRate   float64 `json:"slippage_rate" yaml:"slippage_rate"`
}

func DefaultCosts() CostModel {
	return CostModel{
		CommissionRate: DefaultCommissionRate,
		SlippageRate:   DefaultSlippageRate,
	}
}

// NewCostModel returns a validated cost model. Both rates must lie in [0, 1).
func NewCostModel(commission, slippage float64) (CostModel, error) {
	c := CostModel{CommissionRate: commission, SlippageRate: slippage}
	if err := c.Validate(); err != nil {
		return CostModel{}, err
	}
	return c, nil
}

func (c CostModel) Validate() error {
	if !inUnitRange(c.CommissionRate) {
		return fmt.Errorf("%w: commission rate %v not in [0,1)", ErrConfiguration, c.CommissionRate)
	}
	if !inUnitRange(c.SlippageRate) {
		return fmt.Errorf("%w: slippage rate %v not in [0,1)", ErrConfiguration, c.SlippageRate)
	}
	return nil
}

// Quote returns the commission and slippage charged on notional.
func (c CostModel) Quote(notional float64) (commission, slippage float64, err error) {
	if notional < 0 || math.IsNaN(notional) {
		return 0, 0, fmt.Errorf("cost model: invalid notional %v", notional)
	}
	return notional * c.CommissionRate, notional * c.SlippageRate, nil
}

// rate is the combined fraction of notional charged per fill.
func (c CostModel) rate() float64 {
	return c.CommissionRate + c.SlippageRate
}

func inUnitRange(x float64) bool {
	return x >= 0 && x < 1
}
