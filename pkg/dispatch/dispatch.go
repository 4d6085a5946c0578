// Package dispatch decides how a year of household load is met by the grid,
// solar production and a battery.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/raterudder/payback/pkg/allocate"
	"github.com/raterudder/payback/pkg/profile"
	"github.com/raterudder/payback/pkg/tariff"
	"github.com/raterudder/payback/pkg/types"
)

// DaysPerYear bounds the battery to one full cycle per day.
const DaysPerYear = 365

// DefaultUsageDominanceRatio is the ratio of combined solar and battery
// capacity to usage below which usage is considered dominant.
const DefaultUsageDominanceRatio = 0.5

// ErrMissingInput is returned when a strategy lacks the data it needs.
var ErrMissingInput = errors.New("missing dispatch input")

// Input is everything a strategy needs to simulate a year.
type Input struct {
	Tariff  *tariff.Tariff
	Battery *types.BatteryDevice

	// Load and Solar are hourly series. Solar, when set, must line up with
	// Load hour for hour.
	Load  []types.HourlyEnergy
	Solar []types.HourlyEnergy

	// LoadBuckets and SolarKWH are the aggregate form used by the annual
	// strategy. They are derived from the hourly series when unset.
	LoadBuckets allocate.Buckets
	SolarKWH    float64

	// GridCharging allows the annual strategy to charge from the grid on
	// ultra-low plans.
	GridCharging bool
	// OffsetCap limits solar plus battery to this fraction of usage.
	OffsetCap float64
	// DayFraction is the share of load during daylight that solar can serve
	// directly in the annual strategy. Zero uses the allocate default.
	DayFraction float64
	// Trace includes per-hour and per-day detail in the result.
	Trace bool
}

// Strategy simulates a year of battery operation.
type Strategy interface {
	Name() string
	Dispatch(ctx context.Context, in Input) (*types.DispatchResult, error)
}

// Config tunes the strategies.
type Config struct {
	UsageDominanceRatio float64 `json:"usageDominanceRatio"`
}

// New returns the strategy with the given name. An empty name is the annual
// strategy.
func New(name string, cfg Config) (Strategy, error) {
	if cfg.UsageDominanceRatio <= 0 {
		cfg.UsageDominanceRatio = DefaultUsageDominanceRatio
	}
	switch name {
	case "", types.StrategyAnnual:
		return &AnnualAggregate{UsageDominanceRatio: cfg.UsageDominanceRatio}, nil
	case types.StrategyHourly:
		return &HourlyGreedy{UsageDominanceRatio: cfg.UsageDominanceRatio}, nil
	default:
		return nil, fmt.Errorf("unknown dispatch strategy: %s", name)
	}
}

func battery(in Input) (usable, eff, power float64) {
	if in.Battery == nil {
		return 0, 1, math.Inf(1)
	}
	usable = math.Max(0, in.Battery.UsableKWH)
	eff = in.Battery.Efficiency()
	power = in.Battery.MaxPowerKW
	if power <= 0 {
		power = math.Inf(1)
	}
	return usable, eff, power
}

// classify compares usage with what solar and a year of daily cycles could
// cover at most.
func classify(usageKWH, solarKWH, budgetKWH, dominanceRatio float64) types.EdgeCase {
	combined := solarKWH + budgetKWH
	switch {
	case usageKWH <= 0:
		return types.EdgeCaseCapacityDominates
	case combined > usageKWH:
		return types.EdgeCaseCapacityDominates
	case combined < dominanceRatio*usageKWH:
		return types.EdgeCaseUsageDominates
	default:
		return types.EdgeCaseNone
	}
}

// priceOf returns the representative price of the period, using the
// cheapest period's price for periods the plan does not have.
func priceOf(prices map[types.RatePeriod]float64, t *tariff.Tariff, p types.RatePeriod) float64 {
	if v, ok := prices[p]; ok {
		return v
	}
	return prices[t.CheapestPeriod()]
}

func finish(r *types.DispatchResult, usable float64) {
	r.Savings = r.CostBefore - r.CostAfter
	if r.CostBefore > 0 {
		r.SavingsPercent = r.Savings / r.CostBefore * 100
	}
	r.EffectiveThroughputKWH = r.TotalDischargeKWH()
	if usable > 0 {
		r.EffectiveCyclesPerYear = r.EffectiveThroughputKWH / usable
	}
}

func newResult(name string) *types.DispatchResult {
	return &types.DispatchResult{
		Strategy:       name,
		LoadKWH:        make(map[types.RatePeriod]float64),
		GridKWH:        make(map[types.RatePeriod]float64),
		SolarOffsetKWH: make(map[types.RatePeriod]float64),
		BatteryKWH:     make(map[types.RatePeriod]float64),
		EdgeCase:       types.EdgeCaseNone,
	}
}

// aggregate returns the bucketed load and total solar of the input, deriving
// them from the hourly series when needed.
func aggregate(in Input) (allocate.Buckets, float64, error) {
	load := in.LoadBuckets
	if load == nil {
		if len(in.Load) == 0 {
			return nil, 0, fmt.Errorf("%w: load", ErrMissingInput)
		}
		load = profile.Buckets(in.Tariff, in.Load)
	}
	solar := in.SolarKWH
	if solar == 0 && len(in.Solar) > 0 {
		solar = profile.Total(in.Solar)
	}
	return load, solar, nil
}
