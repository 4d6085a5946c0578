package types

import (
	"errors"
	"fmt"
)

// BatteryDevice is a home storage battery.
type BatteryDevice struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`

	UsableKWH  float64 `json:"usableKWH" yaml:"usableKWH"`
	NominalKWH float64 `json:"nominalKWH,omitempty" yaml:"nominalKWH,omitempty"`
	// UsableFraction is the share of nominal capacity the device exposes. It
	// defaults to 1.
	UsableFraction float64 `json:"usableFraction,omitempty" yaml:"usableFraction,omitempty"`

	RoundTripEfficiency float64 `json:"roundTripEfficiency" yaml:"roundTripEfficiency"`
	MaxPowerKW          float64 `json:"maxPowerKW" yaml:"maxPowerKW"`
}

// Efficiency returns the round trip efficiency, defaulting to lossless.
func (b *BatteryDevice) Efficiency() float64 {
	if b.RoundTripEfficiency == 0 {
		return 1
	}
	return b.RoundTripEfficiency
}

// Validate checks the physical limits of the device.
func (b *BatteryDevice) Validate() error {
	var errs []error
	if b.UsableKWH < 0 {
		errs = append(errs, fmt.Errorf("usable capacity must not be negative: %f", b.UsableKWH))
	}
	if b.NominalKWH < 0 {
		errs = append(errs, fmt.Errorf("nominal capacity must not be negative: %f", b.NominalKWH))
	}
	if b.MaxPowerKW < 0 {
		errs = append(errs, fmt.Errorf("max power must not be negative: %f", b.MaxPowerKW))
	}
	if b.RoundTripEfficiency < 0 || b.RoundTripEfficiency > 1 {
		errs = append(errs, fmt.Errorf("round trip efficiency must be in (0, 1]: %f", b.RoundTripEfficiency))
	}
	if b.UsableFraction < 0 || b.UsableFraction > 1 {
		errs = append(errs, fmt.Errorf("usable fraction must be in [0, 1]: %f", b.UsableFraction))
	}
	if b.NominalKWH > 0 {
		fraction := b.UsableFraction
		if fraction == 0 {
			fraction = 1
		}
		// allow for rounding in published specs
		if b.UsableKWH > b.NominalKWH*fraction+1e-9 {
			errs = append(errs, fmt.Errorf("usable capacity %f exceeds nominal %f x %f", b.UsableKWH, b.NominalKWH, fraction))
		}
	}
	return errors.Join(errs...)
}
