// Package allocate splits annual household load into rate period buckets and
// offsets them with solar production.
package allocate

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/raterudder/payback/pkg/ceiling"
	"github.com/raterudder/payback/pkg/types"
)

var (
	// ErrInvalidUsage is returned for non-positive annual usage.
	ErrInvalidUsage = errors.New("invalid usage")
	// ErrInvalidDistribution is returned for distributions that cannot be
	// normalized.
	ErrInvalidDistribution = errors.New("invalid usage distribution")
)

// DefaultDayFraction is the share of load used during daylight hours when none
// is given.
const DefaultDayFraction = 0.5

// Buckets is energy in kWh per rate period.
type Buckets map[types.RatePeriod]float64

// Total returns the energy across all periods.
func (b Buckets) Total() float64 {
	vals := make([]float64, 0, len(b))
	for _, p := range types.RatePeriodsByCost {
		vals = append(vals, b[p])
	}
	return floats.Sum(vals)
}

// Clone returns a copy of the buckets.
func (b Buckets) Clone() Buckets {
	c := make(Buckets, len(b))
	for k, v := range b {
		c[k] = v
	}
	return c
}

// DefaultDistribution returns the typical share of usage per period for the
// kind of plan.
func DefaultDistribution(kind types.PlanKind) types.UsageDistribution {
	switch kind {
	case types.PlanKindULO:
		return types.UsageDistribution{
			types.RatePeriodUltraLow: 30,
			types.RatePeriodOffPeak:  17,
			types.RatePeriodMidPeak:  36,
			types.RatePeriodOnPeak:   17,
		}
	case types.PlanKindFlat:
		return types.UsageDistribution{
			types.RatePeriodOffPeak: 100,
		}
	default:
		return types.UsageDistribution{
			types.RatePeriodOffPeak: 64,
			types.RatePeriodMidPeak: 18,
			types.RatePeriodOnPeak:  18,
		}
	}
}

// Normalize rescales the shares so they sum to 100.
func Normalize(dist types.UsageDistribution) (types.UsageDistribution, error) {
	periods := make([]types.RatePeriod, 0, len(dist))
	shares := make([]float64, 0, len(dist))
	for _, p := range types.RatePeriodsByCost {
		v, ok := dist[p]
		if !ok {
			continue
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s share is %f", ErrInvalidDistribution, p, v)
		}
		periods = append(periods, p)
		shares = append(shares, v)
	}
	if len(periods) != len(dist) {
		return nil, fmt.Errorf("%w: unknown period", ErrInvalidDistribution)
	}
	sum := floats.Sum(shares)
	if sum <= 0 {
		return nil, fmt.Errorf("%w: shares sum to %f", ErrInvalidDistribution, sum)
	}
	floats.Scale(100/sum, shares)
	out := make(types.UsageDistribution, len(periods))
	for i, p := range periods {
		out[p] = shares[i]
	}
	return out, nil
}

// ByShare splits annual usage into buckets by the distribution's shares.
func ByShare(annualKWH float64, dist types.UsageDistribution) (Buckets, error) {
	if annualKWH <= 0 || math.IsNaN(annualKWH) {
		return nil, fmt.Errorf("%w: annual usage must be positive: %f", ErrInvalidUsage, annualKWH)
	}
	norm, err := Normalize(dist)
	if err != nil {
		return nil, err
	}
	b := make(Buckets, len(norm))
	for p, share := range norm {
		b[p] = annualKWH * share / 100
	}
	return b, nil
}

// SolarOffset is the result of applying solar production to load buckets.
type SolarOffset struct {
	Offset    Buckets `json:"offset"`
	Remaining Buckets `json:"remaining"`
	UnusedKWH float64 `json:"unusedKWH"`
}

// ApplySolar offsets the most expensive buckets first. No bucket goes below
// zero and any production left over is reported as unused.
func ApplySolar(b Buckets, solarKWH float64) SolarOffset {
	res := SolarOffset{
		Offset:    make(Buckets, len(b)),
		Remaining: b.Clone(),
	}
	left := math.Max(0, solarKWH)
	for _, p := range types.RatePeriodsByCost {
		load, ok := res.Remaining[p]
		if !ok || left <= 0 {
			continue
		}
		used := math.Min(load, left)
		res.Offset[p] = used
		res.Remaining[p] = load - used
		left -= used
	}
	res.UnusedKWH = left
	return res
}

// DayNight is the day/night split of annual load and how much of it solar
// covers.
type DayNight struct {
	DayLoadKWH     float64 `json:"dayLoadKWH"`
	NightLoadKWH   float64 `json:"nightLoadKWH"`
	SolarToDayKWH  float64 `json:"solarToDayKWH"`
	ExcessSolarKWH float64 `json:"excessSolarKWH"`
	DayGridKWH     float64 `json:"dayGridKWH"`
}

// SplitDayNight divides usage into day and night load. Solar is limited to
// the daytime target (production when zero) and only serves day load; the
// rest is excess available for storage. A zero day fraction uses
// DefaultDayFraction.
func SplitDayNight(annualKWH, solarKWH, dayFraction, daytimeTargetKWH float64) (DayNight, error) {
	if annualKWH <= 0 {
		return DayNight{}, fmt.Errorf("%w: annual usage must be positive: %f", ErrInvalidUsage, annualKWH)
	}
	if dayFraction < 0 || dayFraction > 1 {
		return DayNight{}, fmt.Errorf("%w: day fraction must be in [0, 1]: %f", ErrInvalidUsage, dayFraction)
	}
	if dayFraction == 0 {
		dayFraction = DefaultDayFraction
	}
	solarKWH = math.Max(0, solarKWH)
	if daytimeTargetKWH <= 0 {
		daytimeTargetKWH = solarKWH
	}

	dn := DayNight{
		DayLoadKWH: annualKWH * dayFraction,
	}
	dn.NightLoadKWH = annualKWH - dn.DayLoadKWH
	used := math.Min(daytimeTargetKWH, solarKWH)
	dn.SolarToDayKWH = math.Min(used, dn.DayLoadKWH)
	dn.ExcessSolarKWH = used - dn.SolarToDayKWH
	dn.DayGridKWH = dn.DayLoadKWH - dn.SolarToDayKWH
	return dn, nil
}

// OffsetCap is the result of applying a maximum offset fraction.
type OffsetCap struct {
	SolarKWH  float64 `json:"solarKWH"`
	StoredKWH float64 `json:"storedKWH"`
	Factor    float64 `json:"factor"`
	Capped    bool    `json:"capped"`
}

// CapOffset limits solar plus stored energy to capFraction of usage. Stored
// energy is reduced first and solar is only trimmed if it alone exceeds the
// cap. A zero capFraction disables the cap.
func CapOffset(usageKWH, solarKWH, storedKWH, capFraction float64) OffsetCap {
	if capFraction <= 0 {
		return OffsetCap{SolarKWH: solarKWH, StoredKWH: storedKWH, Factor: 1}
	}
	r := ceiling.Scale(solarKWH, storedKWH, usageKWH*capFraction)
	return OffsetCap{
		SolarKWH:  r.Fixed,
		StoredKWH: r.Scalable,
		Factor:    r.Factor,
		Capped:    r.Scaled,
	}
}
