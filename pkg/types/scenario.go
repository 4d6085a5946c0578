package types

import (
	"errors"
	"fmt"
)

// Strategy names of the battery dispatch simulators.
const (
	StrategyAnnual = "annual"
	StrategyHourly = "hourly"
)

// Scenario is a single household configuration to estimate savings for.
type Scenario struct {
	ID string `json:"id" yaml:"id"`

	// Either PlanID refers to a catalog plan or Plan is given inline.
	PlanID string      `json:"planID,omitempty" yaml:"planID,omitempty"`
	Plan   *TariffPlan `json:"plan,omitempty" yaml:"plan,omitempty"`

	Load  EnergyProfile `json:"load" yaml:"load"`
	Solar EnergyProfile `json:"solar,omitempty" yaml:"solar,omitempty"`

	// Either BatteryID refers to a catalog battery or Battery is given inline.
	BatteryID string         `json:"batteryID,omitempty" yaml:"batteryID,omitempty"`
	Battery   *BatteryDevice `json:"battery,omitempty" yaml:"battery,omitempty"`

	Strategy           string  `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	SeasonalAdjustment bool    `json:"seasonalAdjustment,omitempty" yaml:"seasonalAdjustment,omitempty"`
	GridCharging       bool    `json:"gridCharging,omitempty" yaml:"gridCharging,omitempty"`
	NetMetering        bool    `json:"netMetering,omitempty" yaml:"netMetering,omitempty"`
	DayFraction        float64 `json:"dayFraction,omitempty" yaml:"dayFraction,omitempty"`

	// Trace includes per-hour and per-day detail from the hourly strategy.
	Trace bool `json:"trace,omitempty" yaml:"trace,omitempty"`

	Assumptions Assumptions `json:"assumptions" yaml:"assumptions"`
}

// Validate checks the parts of a scenario that do not need the catalog.
func (s *Scenario) Validate() error {
	var errs []error
	if s.PlanID == "" && s.Plan == nil {
		errs = append(errs, errors.New("plan is required"))
	}
	if s.Load.IsZero() {
		errs = append(errs, errors.New("load is required"))
	}
	if err := s.Load.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("load: %w", err))
	}
	if err := s.Solar.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("solar: %w", err))
	}
	if s.Battery != nil {
		if err := s.Battery.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("battery: %w", err))
		}
	}
	switch s.Strategy {
	case "", StrategyAnnual, StrategyHourly:
	default:
		errs = append(errs, fmt.Errorf("unknown strategy: %s", s.Strategy))
	}
	if s.DayFraction < 0 || s.DayFraction > 1 {
		errs = append(errs, fmt.Errorf("day fraction must be in [0, 1]: %f", s.DayFraction))
	}
	return errors.Join(errs...)
}
