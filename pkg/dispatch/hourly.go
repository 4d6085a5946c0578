package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/raterudder/payback/pkg/allocate"
	"github.com/raterudder/payback/pkg/log"
	"github.com/raterudder/payback/pkg/types"
)

// HourlyGreedy simulates every hour of the year. Each day the battery fills
// from morning solar surplus and the cheapest hours before the first on-peak
// hour, then empties into the most expensive on-peak hours. Grid charging is
// always allowed.
type HourlyGreedy struct {
	UsageDominanceRatio float64
}

// Name implements Strategy.
func (h *HourlyGreedy) Name() string {
	return types.StrategyHourly
}

type simHour struct {
	types.HourTrace
	netKWH    float64
	excessKWH float64
}

// Dispatch implements Strategy.
func (h *HourlyGreedy) Dispatch(ctx context.Context, in Input) (*types.DispatchResult, error) {
	if in.Tariff == nil {
		return nil, fmt.Errorf("%w: tariff", ErrMissingInput)
	}
	if len(in.Load) == 0 {
		return nil, fmt.Errorf("%w: hourly load", ErrMissingInput)
	}
	if len(in.Solar) > 0 && len(in.Solar) != len(in.Load) {
		return nil, fmt.Errorf("%w: solar has %d hours but load has %d", ErrMissingInput, len(in.Solar), len(in.Load))
	}
	ratio := h.UsageDominanceRatio
	if ratio <= 0 {
		ratio = DefaultUsageDominanceRatio
	}

	usable, eff, power := battery(in)
	cheapest := in.Tariff.CheapestPeriod()
	loc := in.Tariff.Location()

	res := newResult(h.Name())
	res.ThroughputBudgetKWH = usable * DaysPerYear

	var (
		days      [][]simHour
		lastDay   string
		fallbacks int
		usage     float64
		solarKWH  float64
	)
	for i, e := range in.Load {
		ts := e.TS.In(loc)
		r := in.Tariff.Resolve(ts, ts.Hour())
		if r.Fallback {
			fallbacks++
		}
		var solar float64
		if len(in.Solar) > 0 {
			solar = in.Solar[i].KWH
		}
		sh := simHour{
			HourTrace: types.HourTrace{
				TS:       ts,
				Period:   r.Period,
				Price:    r.DollarsPerKWH,
				LoadKWH:  e.KWH,
				SolarKWH: solar,
			},
			netKWH:    math.Max(0, e.KWH-solar),
			excessKWH: math.Max(0, solar-e.KWH),
		}
		usage += e.KWH
		solarKWH += solar

		key := ts.Format(time.DateOnly)
		if key != lastDay {
			days = append(days, nil)
			lastDay = key
		}
		days[len(days)-1] = append(days[len(days)-1], sh)
	}
	if fallbacks > 0 {
		log.Ctx(ctx).WarnContext(ctx, "hours resolved to fallback price", slog.Int("hours", fallbacks), slog.String("plan", in.Tariff.Plan().ID))
	}

	var soc float64
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		soc = simulateDay(day, soc, usable, eff, power, cheapest)
	}
	if capOffset(days, usage, in.OffsetCap) {
		res.OffsetCapped = true
	}

	for _, day := range days {
		dt := types.DayTrace{Date: day[0].TS}
		for _, sh := range day {
			res.LoadKWH[sh.Period] += sh.LoadKWH
			res.SolarOffsetKWH[sh.Period] += sh.LoadKWH - sh.netKWH
			res.GridKWH[sh.Period] += sh.GridKWH
			if sh.DischargeKWH > 0 {
				res.BatteryKWH[sh.Period] += sh.DischargeKWH
			}
			res.ChargedFromSolarKWH += sh.SolarChargeKWH
			res.ChargedFromGridKWH += sh.GridChargeKWH
			res.ChargingCost += sh.GridChargeKWH * sh.Price
			res.UnusedSolarKWH += sh.excessKWH - sh.SolarChargeKWH
			res.CostBefore += sh.LoadKWH * sh.Price
			res.CostAfterSolar += sh.netKWH * sh.Price
			res.CostAfter += sh.GridKWH * sh.Price

			dt.ChargeKWH += sh.SolarChargeKWH + sh.GridChargeKWH
			dt.DischargeKWH += sh.DischargeKWH
			dt.Savings += (sh.netKWH - sh.GridKWH) * sh.Price
			if in.Trace {
				res.Hours = append(res.Hours, sh.HourTrace)
			}
		}
		if dt.DischargeKWH > 0 {
			res.ActiveDays++
		}
		if in.Trace {
			res.Days = append(res.Days, dt)
		}
	}
	res.EdgeCase = classify(usage, solarKWH, res.ThroughputBudgetKWH, ratio)
	finish(res, usable)

	log.Ctx(ctx).DebugContext(
		ctx,
		"hourly dispatch",
		slog.Int("days", len(days)),
		slog.Int("activeDays", res.ActiveDays),
		slog.Float64("dischargeKWH", res.EffectiveThroughputKWH),
		slog.Float64("savings", res.Savings),
	)
	return res, nil
}

// capOffset limits direct solar use plus battery discharge over the whole year
// to capFraction of usage. The battery is scaled down first, charge and
// discharge alike, so every hour stays balanced. Solar is trimmed evenly when
// it alone exceeds the cap and the trimmed energy counts as unused.
func capOffset(days [][]simHour, usage, capFraction float64) bool {
	var solarOffset, discharge float64
	for _, day := range days {
		for _, sh := range day {
			solarOffset += sh.LoadKWH - sh.netKWH
			discharge += sh.DischargeKWH
		}
	}
	capped := allocate.CapOffset(usage, solarOffset, discharge, capFraction)
	if !capped.Capped {
		return false
	}
	keep := 1.0
	if solarOffset > 0 {
		keep = capped.SolarKWH / solarOffset
	}
	for _, day := range days {
		for i := range day {
			sh := &day[i]
			if keep < 1 {
				trimmed := (sh.LoadKWH - sh.netKWH) * (1 - keep)
				sh.netKWH += trimmed
				sh.excessKWH += trimmed
			}
			// state of charge is linear in the flows since it starts empty
			sh.SolarChargeKWH *= capped.Factor
			sh.GridChargeKWH *= capped.Factor
			sh.DischargeKWH *= capped.Factor
			sh.SOCKWH *= capped.Factor
			sh.Charging = sh.SolarChargeKWH+sh.GridChargeKWH > 0
			sh.Discharging = sh.DischargeKWH > 0
			sh.GridKWH = sh.netKWH - sh.DischargeKWH + sh.GridChargeKWH
		}
	}
	return true
}

// simulateDay runs the charge and discharge passes over one day and returns
// the state of charge at the end of it.
func simulateDay(day []simHour, soc, usable, eff, power float64, chargePeriod types.RatePeriod) float64 {
	firstOn := -1
	var onLoad float64
	for i, sh := range day {
		if sh.Period != types.RatePeriodOnPeak {
			continue
		}
		if firstOn < 0 {
			firstOn = i
		}
		onLoad += sh.netKWH
	}

	if firstOn >= 0 && onLoad > 0 && usable > 0 {
		targetDischarge := math.Min(usable, onLoad)
		targetCharge := math.Max(0, targetDischarge-soc) / eff
		var charged float64

		// surplus solar ahead of the peak is free
		for i := 0; i < firstOn && charged < targetCharge; i++ {
			c := math.Min(math.Min(power, day[i].excessKWH), targetCharge-charged)
			if c > 0 {
				day[i].SolarChargeKWH = c
				charged += c
			}
		}

		var window []int
		for i := 0; i < firstOn; i++ {
			if day[i].Period == chargePeriod {
				window = append(window, i)
			}
		}
		sort.SliceStable(window, func(a, b int) bool {
			return day[window[a]].Price < day[window[b]].Price
		})
		for _, i := range window {
			if charged >= targetCharge {
				break
			}
			c := math.Min(power-day[i].SolarChargeKWH, targetCharge-charged)
			if c > 0 {
				day[i].GridChargeKWH = c
				charged += c
			}
		}

		stored := soc + charged*eff
		var peak []int
		for i := firstOn; i < len(day); i++ {
			if day[i].Period == types.RatePeriodOnPeak {
				peak = append(peak, i)
			}
		}
		sort.SliceStable(peak, func(a, b int) bool {
			return day[peak[a]].Price > day[peak[b]].Price
		})
		for _, i := range peak {
			if stored <= 0 {
				break
			}
			d := math.Min(math.Min(power, stored), day[i].netKWH)
			if d > 0 {
				day[i].DischargeKWH = d
				stored -= d
			}
		}
	}

	for i := range day {
		sh := &day[i]
		soc += (sh.SolarChargeKWH+sh.GridChargeKWH)*eff - sh.DischargeKWH
		if soc < 0 {
			// float noise only
			soc = 0
		}
		sh.SOCKWH = soc
		sh.Charging = sh.SolarChargeKWH+sh.GridChargeKWH > 0
		sh.Discharging = sh.DischargeKWH > 0
		sh.GridKWH = sh.netKWH - sh.DischargeKWH + sh.GridChargeKWH
	}
	return soc
}
