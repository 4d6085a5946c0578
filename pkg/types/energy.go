package types

import (
	"errors"
	"fmt"
	"time"
)

// UsageDistribution is the percentage of annual usage that falls in each rate
// period. Shares are expected to sum to 100 once normalized.
type UsageDistribution map[RatePeriod]float64

// HourlyEnergy is the energy used or produced in the hour starting at TS.
type HourlyEnergy struct {
	TS  time.Time `json:"ts"`
	KWH float64   `json:"kwh"`
}

// EnergyProfile describes consumption or production in one of three forms. When
// Hourly is set it takes precedence, then Monthly, then AnnualKWH.
type EnergyProfile struct {
	AnnualKWH    float64           `json:"annualKWH,omitempty" yaml:"annualKWH,omitempty"`
	Monthly      *[12]float64      `json:"monthly,omitempty" yaml:"monthly,omitempty"`
	Distribution UsageDistribution `json:"distribution,omitempty" yaml:"distribution,omitempty"`
	Hourly       []HourlyEnergy    `json:"hourly,omitempty" yaml:"hourly,omitempty"`
}

// IsZero returns true if the profile has no energy in any form.
func (p EnergyProfile) IsZero() bool {
	return p.AnnualKWH == 0 && p.Monthly == nil && len(p.Hourly) == 0
}

// Validate checks that no form of the profile is negative.
func (p EnergyProfile) Validate() error {
	var errs []error
	if p.AnnualKWH < 0 {
		errs = append(errs, fmt.Errorf("annual kWh must not be negative: %f", p.AnnualKWH))
	}
	if p.Monthly != nil {
		for i, v := range p.Monthly {
			if v < 0 {
				errs = append(errs, fmt.Errorf("month %d kWh must not be negative: %f", i+1, v))
			}
		}
	}
	for _, h := range p.Hourly {
		if h.KWH < 0 {
			errs = append(errs, fmt.Errorf("hour %s kWh must not be negative: %f", h.TS.Format(time.RFC3339), h.KWH))
			break
		}
	}
	return errors.Join(errs...)
}

// HourlyFlow is the production and consumption of a household in one hour.
type HourlyFlow struct {
	TS            time.Time `json:"ts"`
	ProductionKWH float64   `json:"productionKWH"`
	LoadKWH       float64   `json:"loadKWH"`
}
