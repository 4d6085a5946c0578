package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/raterudder/payback/pkg/allocate"
	"github.com/raterudder/payback/pkg/ceiling"
	"github.com/raterudder/payback/pkg/log"
	"github.com/raterudder/payback/pkg/types"
)

// dischargeOrder is where stored energy is spent. It never goes into
// ultra-low hours.
var dischargeOrder = []types.RatePeriod{
	types.RatePeriodOnPeak,
	types.RatePeriodMidPeak,
	types.RatePeriodOffPeak,
}

// AnnualAggregate allocates a year of energy by rate period without looking at
// individual hours. The battery moves at most its usable capacity once per
// day.
type AnnualAggregate struct {
	UsageDominanceRatio float64
}

// Name implements Strategy.
func (a *AnnualAggregate) Name() string {
	return types.StrategyAnnual
}

// Dispatch implements Strategy.
func (a *AnnualAggregate) Dispatch(ctx context.Context, in Input) (*types.DispatchResult, error) {
	if in.Tariff == nil {
		return nil, fmt.Errorf("%w: tariff", ErrMissingInput)
	}
	load, solar, err := aggregate(in)
	if err != nil {
		return nil, err
	}
	usage := load.Total()
	if usage <= 0 {
		return nil, fmt.Errorf("%w: annual usage must be positive: %f", allocate.ErrInvalidUsage, usage)
	}
	ratio := a.UsageDominanceRatio
	if ratio <= 0 {
		ratio = DefaultUsageDominanceRatio
	}

	usable, eff, _ := battery(in)
	budget := usable * DaysPerYear
	prices := in.Tariff.PeriodPrices()
	cheapest := in.Tariff.CheapestPeriod()

	res := newResult(a.Name())
	res.ThroughputBudgetKWH = budget
	res.EdgeCase = classify(usage, solar, budget, ratio)

	// solar only serves daytime load directly, the rest can be stored
	dn, err := allocate.SplitDayNight(usage, solar, in.DayFraction, 0)
	if err != nil {
		return nil, err
	}
	so := allocate.ApplySolar(load, dn.SolarToDayKWH)
	spare := so.UnusedKWH + dn.ExcessSolarKWH

	// charge inputs share the daily budget, solar first
	solarInput := math.Min(spare, budget)
	var gridInput float64
	if in.GridCharging && in.Tariff.Plan().Kind == types.PlanKindULO {
		gridInput = budget - solarInput
	}
	storable := (solarInput + gridInput) * eff

	if res.EdgeCase == types.EdgeCaseCapacityDominates {
		storable = ceiling.Scale(so.Offset.Total(), storable, usage).Scalable
	}
	capped := allocate.CapOffset(usage, so.Offset.Total(), storable, in.OffsetCap)
	if capped.Capped {
		res.OffsetCapped = true
		storable = capped.StoredKWH
		if trimmed := so.Offset.Total() - capped.SolarKWH; trimmed > 0 {
			// solar alone exceeds the cap
			so = allocate.ApplySolar(load, capped.SolarKWH)
			spare += trimmed
		}
	}

	left := storable
	for _, p := range dischargeOrder {
		if left <= 0 {
			break
		}
		d := math.Min(so.Remaining[p], left)
		if d > 0 {
			res.BatteryKWH[p] = d
			left -= d
		}
	}
	discharged := storable - left

	needed := discharged / eff
	res.ChargedFromSolarKWH = math.Min(solarInput, needed)
	res.ChargedFromGridKWH = math.Max(0, needed-res.ChargedFromSolarKWH)
	res.ChargingCost = res.ChargedFromGridKWH * priceOf(prices, in.Tariff, cheapest)
	res.UnusedSolarKWH = spare - res.ChargedFromSolarKWH

	for p, kwh := range load {
		price := priceOf(prices, in.Tariff, p)
		res.LoadKWH[p] = kwh
		res.SolarOffsetKWH[p] = so.Offset[p]
		res.GridKWH[p] = so.Remaining[p] - res.BatteryKWH[p]
		res.CostBefore += kwh * price
		res.CostAfterSolar += so.Remaining[p] * price
		res.CostAfter += res.GridKWH[p] * price
	}
	res.GridKWH[cheapest] += res.ChargedFromGridKWH
	res.CostAfter += res.ChargingCost

	finish(res, usable)

	log.Ctx(ctx).DebugContext(
		ctx,
		"annual dispatch",
		slog.Float64("usageKWH", usage),
		slog.Float64("solarKWH", solar),
		slog.Float64("dischargeKWH", discharged),
		slog.Float64("chargedFromGridKWH", res.ChargedFromGridKWH),
		slog.String("edgeCase", string(res.EdgeCase)),
		slog.Float64("savings", res.Savings),
	)
	return res, nil
}
