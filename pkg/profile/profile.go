// Package profile expands annual or monthly energy totals into hourly series.
package profile

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/raterudder/payback/pkg/allocate"
	"github.com/raterudder/payback/pkg/tariff"
	"github.com/raterudder/payback/pkg/types"
)

// Config holds the tables used to shape hourly series. Arrays are copied by
// value so a Config can be shared between goroutines.
type Config struct {
	// Year is the calendar year the series are generated for.
	Year int `json:"year"`

	LoadMonthlyWeights  [12]float64 `json:"loadMonthlyWeights"`
	LoadIntradayShape   [24]float64 `json:"loadIntradayShape"`
	SolarMonthlyWeights [12]float64 `json:"solarMonthlyWeights"`
	SolarIntradayShape  [24]float64 `json:"solarIntradayShape"`
}

// DefaultConfig returns tables for a southern Ontario household.
func DefaultConfig() Config {
	return Config{
		Year: 2025,
		LoadMonthlyWeights: [12]float64{
			1.15, 1.05, 0.95, 0.85, 0.85, 0.95,
			1.15, 1.10, 0.90, 0.85, 0.95, 1.15,
		},
		LoadIntradayShape: [24]float64{
			0.55, 0.50, 0.48, 0.47, 0.48, 0.55,
			0.75, 0.95, 1.00, 0.90, 0.85, 0.85,
			0.90, 0.90, 0.95, 1.05, 1.25, 1.45,
			1.55, 1.50, 1.35, 1.15, 0.90, 0.70,
		},
		SolarMonthlyWeights: [12]float64{
			0.045, 0.060, 0.085, 0.095, 0.110, 0.115,
			0.120, 0.110, 0.090, 0.070, 0.045, 0.035,
		},
		SolarIntradayShape: [24]float64{
			0, 0, 0, 0, 0, 0,
			0.01, 0.04, 0.08, 0.11, 0.13, 0.14,
			0.14, 0.13, 0.11, 0.07, 0.03, 0.01,
			0, 0, 0, 0, 0, 0,
		},
	}
}

// Validate checks that the tables have positive totals and no negative
// entries.
func (c Config) Validate() error {
	var errs []error
	check := func(name string, vals []float64) {
		for _, v := range vals {
			if v < 0 {
				errs = append(errs, fmt.Errorf("%s must not be negative", name))
				return
			}
		}
		if floats.Sum(vals) <= 0 {
			errs = append(errs, fmt.Errorf("%s must have a positive total", name))
		}
	}
	check("load monthly weights", c.LoadMonthlyWeights[:])
	check("load intraday shape", c.LoadIntradayShape[:])
	check("solar monthly weights", c.SolarMonthlyWeights[:])
	check("solar intraday shape", c.SolarIntradayShape[:])
	if c.Year < 1970 {
		errs = append(errs, fmt.Errorf("invalid year: %d", c.Year))
	}
	return errors.Join(errs...)
}

type hour struct {
	ts     time.Time
	month  time.Month
	hour   int
	weight float64
}

// hours returns every hour of the year with a weight from the given tables.
// Without seasonal adjustment every day of the year is weighted equally.
func (c Config) hours(loc *time.Location, monthly [12]float64, shape [24]float64, seasonal bool) []hour {
	start := time.Date(c.Year, time.January, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(1, 0, 0)
	var out []hour
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		dayWeight := 1.0
		if seasonal {
			dayWeight = monthly[d.Month()-1] / float64(daysIn(d.Year(), d.Month()))
		}
		for h := 0; h < 24; h++ {
			out = append(out, hour{
				ts:     time.Date(d.Year(), d.Month(), d.Day(), h, 0, 0, 0, loc),
				month:  d.Month(),
				hour:   h,
				weight: dayWeight * shape[h],
			})
		}
	}
	return out
}

func daysIn(year int, m time.Month) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func spread(hours []hour, totalKWH float64) []types.HourlyEnergy {
	weights := make([]float64, len(hours))
	for i, h := range hours {
		weights[i] = h.weight
	}
	sum := floats.Sum(weights)
	out := make([]types.HourlyEnergy, len(hours))
	for i, h := range hours {
		var kwh float64
		if sum > 0 {
			kwh = totalKWH * h.weight / sum
		}
		out[i] = types.HourlyEnergy{TS: h.ts, KWH: kwh}
	}
	return out
}

// ExpandLoad builds an hourly load series for the tariff's location. The
// energy that lands in each rate period equals annualKWH times that period's
// share. Shares of periods the plan never uses are redistributed to the
// others. A nil distribution uses the default for the plan's kind.
func ExpandLoad(t *tariff.Tariff, annualKWH float64, dist types.UsageDistribution, cfg Config, seasonal bool) ([]types.HourlyEnergy, error) {
	if annualKWH <= 0 {
		return nil, fmt.Errorf("%w: annual usage must be positive: %f", allocate.ErrInvalidUsage, annualKWH)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dist == nil {
		dist = allocate.DefaultDistribution(t.Plan().Kind)
	}
	norm, err := allocate.Normalize(dist)
	if err != nil {
		return nil, err
	}

	hours := cfg.hours(t.Location(), cfg.LoadMonthlyWeights, cfg.LoadIntradayShape, seasonal)
	periods := make([]types.RatePeriod, len(hours))
	periodWeight := make(map[types.RatePeriod]float64)
	for i, h := range hours {
		periods[i] = t.Resolve(h.ts, h.hour).Period
		periodWeight[periods[i]] += h.weight
	}

	var present float64
	for p, share := range norm {
		if periodWeight[p] > 0 {
			present += share
		}
	}
	if present == 0 {
		// nothing in the distribution applies to this plan
		return spread(hours, annualKWH), nil
	}

	out := make([]types.HourlyEnergy, len(hours))
	for i, h := range hours {
		p := periods[i]
		var kwh float64
		if w := periodWeight[p]; w > 0 {
			kwh = annualKWH * (norm[p] / present) * h.weight / w
		}
		out[i] = types.HourlyEnergy{TS: h.ts, KWH: kwh}
	}
	return out, nil
}

// ExpandSolar builds an hourly production series from an annual total.
func ExpandSolar(loc *time.Location, annualKWH float64, cfg Config, seasonal bool) ([]types.HourlyEnergy, error) {
	if annualKWH < 0 {
		return nil, fmt.Errorf("annual production must not be negative: %f", annualKWH)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return spread(cfg.hours(loc, cfg.SolarMonthlyWeights, cfg.SolarIntradayShape, seasonal), annualKWH), nil
}

// FromMonthly spreads each month's total over its hours using the intraday
// shape.
func FromMonthly(loc *time.Location, monthly [12]float64, shape [24]float64, cfg Config) []types.HourlyEnergy {
	byMonth := make(map[time.Month][]hour, 12)
	for _, h := range cfg.hours(loc, monthly, shape, false) {
		byMonth[h.month] = append(byMonth[h.month], h)
	}
	var out []types.HourlyEnergy
	for m := time.January; m <= time.December; m++ {
		out = append(out, spread(byMonth[m], monthly[m-1])...)
	}
	return out
}

// Hourly resolves any form of an energy profile into an hourly series. Load
// profiles given as an annual total are shaped by the tariff's periods; solar
// profiles are shaped by the solar tables.
func Hourly(t *tariff.Tariff, p types.EnergyProfile, cfg Config, seasonal, solar bool) ([]types.HourlyEnergy, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch {
	case len(p.Hourly) > 0:
		return append([]types.HourlyEnergy(nil), p.Hourly...), nil
	case p.Monthly != nil:
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		shape := cfg.LoadIntradayShape
		if solar {
			shape = cfg.SolarIntradayShape
		}
		return FromMonthly(t.Location(), *p.Monthly, shape, cfg), nil
	case solar:
		if p.AnnualKWH == 0 {
			return nil, nil
		}
		return ExpandSolar(t.Location(), p.AnnualKWH, cfg, seasonal)
	default:
		return ExpandLoad(t, p.AnnualKWH, p.Distribution, cfg, seasonal)
	}
}

// Align resolves p onto the timestamps of along. An hourly profile is matched
// hour by hour and hours it lacks count as zero. Any other form is generated
// for each calendar year along touches, so leap years and partial years line
// up with the hours they cover.
func Align(t *tariff.Tariff, p types.EnergyProfile, along []types.HourlyEnergy, cfg Config, seasonal, solar bool) ([]types.HourlyEnergy, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if solar && p.IsZero() {
		return nil, nil
	}
	byHour := make(map[int64]float64)
	add := func(series []types.HourlyEnergy) {
		for _, h := range series {
			byHour[hourKey(h.TS)] += h.KWH
		}
	}
	if len(p.Hourly) > 0 {
		add(p.Hourly)
	} else {
		years := make(map[int]bool)
		for _, h := range along {
			y := h.TS.In(t.Location()).Year()
			if years[y] {
				continue
			}
			years[y] = true
			yc := cfg
			yc.Year = y
			series, err := Hourly(t, p, yc, seasonal, solar)
			if err != nil {
				return nil, err
			}
			add(series)
		}
	}
	out := make([]types.HourlyEnergy, len(along))
	for i, h := range along {
		out[i] = types.HourlyEnergy{TS: h.TS, KWH: byHour[hourKey(h.TS)]}
	}
	return out, nil
}

func hourKey(ts time.Time) int64 {
	return ts.Truncate(time.Hour).Unix()
}

// Annual returns the yearly total of a profile in any form.
func Annual(p types.EnergyProfile) float64 {
	switch {
	case len(p.Hourly) > 0:
		return Total(p.Hourly)
	case p.Monthly != nil:
		return floats.Sum(p.Monthly[:])
	default:
		return p.AnnualKWH
	}
}

// Total returns the energy of a series.
func Total(series []types.HourlyEnergy) float64 {
	vals := make([]float64, len(series))
	for i, h := range series {
		vals[i] = h.KWH
	}
	return floats.Sum(vals)
}

// Buckets sums a series by the rate period of each hour.
func Buckets(t *tariff.Tariff, series []types.HourlyEnergy) allocate.Buckets {
	b := make(allocate.Buckets)
	for _, h := range series {
		b[t.ResolveTime(h.TS).Period] += h.KWH
	}
	return b
}
