// Package estimate runs a household scenario through the tariff, profile,
// dispatch, settlement and projection steps and produces a report.
package estimate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/levenlabs/go-lflag"
	"golang.org/x/sync/errgroup"

	"github.com/raterudder/payback/pkg/allocate"
	"github.com/raterudder/payback/pkg/dispatch"
	"github.com/raterudder/payback/pkg/log"
	"github.com/raterudder/payback/pkg/netmetering"
	"github.com/raterudder/payback/pkg/profile"
	"github.com/raterudder/payback/pkg/projection"
	"github.com/raterudder/payback/pkg/tariff"
	"github.com/raterudder/payback/pkg/types"
)

var (
	ErrInvalidScenario = errors.New("invalid scenario")
	ErrUnknownPlan     = errors.New("unknown tariff plan")
	ErrUnknownBattery  = errors.New("unknown battery")
)

// Catalog looks up plans and batteries that are not builtin.
type Catalog interface {
	GetPlan(ctx context.Context, id string) (types.TariffPlan, error)
	GetBattery(ctx context.Context, id string) (types.BatteryDevice, error)
}

// Defaults fill in whatever a scenario leaves unset.
type Defaults struct {
	Strategy    string            `json:"strategy"`
	Assumptions types.Assumptions `json:"assumptions"`
	Dispatch    dispatch.Config   `json:"dispatch"`
	Profile     profile.Config    `json:"-"`
}

// Report is the outcome of one scenario.
type Report struct {
	ID         string    `json:"id,omitempty"`
	ScenarioID string    `json:"scenarioID,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`

	PlanID    string `json:"planID"`
	BatteryID string `json:"batteryID,omitempty"`
	Strategy  string `json:"strategy"`

	AnnualLoadKWH  float64 `json:"annualLoadKWH"`
	AnnualSolarKWH float64 `json:"annualSolarKWH"`

	Dispatch   *types.DispatchResult `json:"dispatch"`
	Settlement *netmetering.Result   `json:"settlement,omitempty"`

	// FirstYearSavings is the dispatch savings, or the baseline cost minus
	// the settled bills when net metering applies.
	FirstYearSavings float64            `json:"firstYearSavings"`
	Assumptions      types.Assumptions  `json:"assumptions"`
	Projection       *projection.Result `json:"projection"`
}

// Estimator runs scenarios.
type Estimator struct {
	tariffs  *tariff.Map
	catalog  Catalog
	defaults Defaults
}

// Configured returns an Estimator whose defaults come from flags.
func Configured(tariffs *tariff.Map, catalog Catalog) *Estimator {
	assumptions := types.Assumptions{
		EscalationRate:  0.03,
		DegradationRate: 0.005,
		HorizonYears:    projection.DefaultHorizonYears,
	}
	lflag.JSON(&assumptions, "default-assumptions", assumptions, "JSON projection assumptions used when a scenario leaves them unset")
	dispatchCfg := dispatch.Config{UsageDominanceRatio: dispatch.DefaultUsageDominanceRatio}
	lflag.JSON(&dispatchCfg, "dispatch-config", dispatchCfg, "JSON tuning of the dispatch strategies")
	strategy := lflag.String("default-strategy", types.StrategyAnnual, "Dispatch strategy used when a scenario leaves it unset (annual, hourly)")

	e := &Estimator{
		tariffs: tariffs,
		catalog: catalog,
	}
	lflag.Do(func() {
		switch *strategy {
		case types.StrategyAnnual, types.StrategyHourly:
		default:
			panic(fmt.Sprintf("unknown default strategy: %s", *strategy))
		}
		e.defaults = Defaults{
			Strategy:    *strategy,
			Assumptions: assumptions,
			Dispatch:    dispatchCfg,
			Profile:     profile.DefaultConfig(),
		}
	})
	return e
}

// New returns an Estimator with explicit defaults. A nil tariff map uses the
// builtin plans and a nil catalog only knows builtin batteries.
func New(tariffs *tariff.Map, catalog Catalog, defaults Defaults) *Estimator {
	if tariffs == nil {
		tariffs = tariff.NewMap()
	}
	if defaults.Strategy == "" {
		defaults.Strategy = types.StrategyAnnual
	}
	if defaults.Profile.Year == 0 {
		defaults.Profile = profile.DefaultConfig()
	}
	return &Estimator{
		tariffs:  tariffs,
		catalog:  catalog,
		defaults: defaults,
	}
}

// Tariffs returns the plan registry.
func (e *Estimator) Tariffs() *tariff.Map {
	return e.tariffs
}

func (e *Estimator) tariff(ctx context.Context, s types.Scenario) (*tariff.Tariff, error) {
	if s.Plan != nil {
		t, err := tariff.New(*s.Plan)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
		}
		return t, nil
	}
	if t, ok := e.tariffs.Tariff(s.PlanID); ok {
		return t, nil
	}
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, s.PlanID)
	}
	plan, err := e.catalog.GetPlan(ctx, s.PlanID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnknownPlan, s.PlanID, err)
	}
	t, err := tariff.New(plan)
	if err != nil {
		return nil, fmt.Errorf("catalog plan %s: %w", s.PlanID, err)
	}
	return t, nil
}

func (e *Estimator) battery(ctx context.Context, s types.Scenario) (*types.BatteryDevice, error) {
	if s.Battery != nil {
		b := *s.Battery
		return &b, nil
	}
	if s.BatteryID == "" {
		return nil, nil
	}
	if b, ok := BuiltinBattery(s.BatteryID); ok {
		return &b, nil
	}
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBattery, s.BatteryID)
	}
	b, err := e.catalog.GetBattery(ctx, s.BatteryID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnknownBattery, s.BatteryID, err)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("catalog battery %s: %w", s.BatteryID, err)
	}
	return &b, nil
}

// assumptions fills unset fields from the defaults. Zero means unset.
func (e *Estimator) assumptions(a types.Assumptions, plan types.TariffPlan) types.Assumptions {
	d := e.defaults.Assumptions
	if a.EscalationRate == 0 {
		a.EscalationRate = d.EscalationRate
	}
	if a.DegradationRate == 0 {
		a.DegradationRate = d.DegradationRate
	}
	if a.HorizonYears == 0 {
		a.HorizonYears = d.HorizonYears
	}
	if a.HorizonYears == 0 {
		a.HorizonYears = projection.DefaultHorizonYears
	}
	if a.SavingsCap == 0 {
		a.SavingsCap = d.SavingsCap
	}
	if a.OffsetCap == 0 {
		a.OffsetCap = d.OffsetCap
	}
	if a.OffsetCap == 0 {
		a.OffsetCap = plan.OffsetCap
	}
	return a
}

// Run estimates the savings of a single scenario.
func (e *Estimator) Run(ctx context.Context, s types.Scenario) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	t, err := e.tariff(ctx, s)
	if err != nil {
		return nil, err
	}
	b, err := e.battery(ctx, s)
	if err != nil {
		return nil, err
	}
	plan := t.Plan()

	name := s.Strategy
	if name == "" {
		name = e.defaults.Strategy
	}
	strategy, err := dispatch.New(name, e.defaults.Dispatch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	a := e.assumptions(s.Assumptions, plan)

	in := dispatch.Input{
		Tariff:       t,
		Battery:      b,
		GridCharging: s.GridCharging,
		OffsetCap:    a.OffsetCap,
		DayFraction:  s.DayFraction,
		Trace:        s.Trace,
	}
	settleNet := s.NetMetering && name == types.StrategyHourly
	if settleNet {
		in.Trace = true
	}
	if name == types.StrategyAnnual && len(s.Load.Hourly) == 0 && s.Load.Monthly == nil {
		dist := s.Load.Distribution
		if dist == nil {
			dist = allocate.DefaultDistribution(plan.Kind)
		}
		in.LoadBuckets, err = allocate.ByShare(s.Load.AnnualKWH, dist)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
		}
		in.SolarKWH = profile.Annual(s.Solar)
	} else {
		in.Load, in.Solar, err = e.hourlyProfiles(t, s)
		if err != nil {
			return nil, err
		}
	}

	res, err := strategy.Dispatch(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to dispatch with %s: %w", strategy.Name(), err)
	}

	report := &Report{
		ScenarioID:       s.ID,
		CreatedAt:        time.Now().UTC(),
		PlanID:           plan.ID,
		Strategy:         strategy.Name(),
		AnnualLoadKWH:    profile.Annual(s.Load),
		AnnualSolarKWH:   profile.Annual(s.Solar),
		Dispatch:         res,
		FirstYearSavings: res.Savings,
	}
	if b != nil {
		report.BatteryID = b.ID
	}

	// settlement only runs on the hourly series, as dispatched
	if settleNet {
		settled, err := netmetering.SettleDispatch(ctx, t, res.Hours)
		if err != nil {
			return nil, fmt.Errorf("failed to settle: %w", err)
		}
		report.Settlement = settled
		report.FirstYearSavings = res.CostBefore - settled.TotalBill
		if !s.Trace {
			res.Hours, res.Days = nil, nil
		}
	}

	if a.SavingsCap > 0 && a.BaselineAnnualBill == 0 {
		a.BaselineAnnualBill = res.CostBefore
	}
	report.Assumptions = a
	report.Projection, err = projection.Project(projection.Input{
		FirstYearSavings: report.FirstYearSavings,
		Assumptions:      a,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	attrs := []slog.Attr{
		slog.String("scenarioID", s.ID),
		slog.String("planID", plan.ID),
		slog.String("strategy", report.Strategy),
		slog.Float64("firstYearSavings", report.FirstYearSavings),
		slog.Bool("paybackReached", report.Projection.PaybackReached()),
		slog.String("edgeCase", string(res.EdgeCase)),
	}
	if report.Projection.PaybackReached() {
		attrs = append(attrs, slog.Float64("paybackYears", report.Projection.PaybackYears))
	}
	log.Ctx(ctx).LogAttrs(ctx, slog.LevelDebug, "estimated scenario", attrs...)
	return report, nil
}

// hourlyProfiles builds load and solar on the same hours. A measured hourly
// series sets the timeline and the other profile is generated along it.
func (e *Estimator) hourlyProfiles(t *tariff.Tariff, s types.Scenario) (load, solar []types.HourlyEnergy, err error) {
	cfg := e.defaults.Profile
	switch {
	case len(s.Load.Hourly) > 0:
		load = append([]types.HourlyEnergy(nil), s.Load.Hourly...)
		solar, err = profile.Align(t, s.Solar, load, cfg, s.SeasonalAdjustment, true)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: solar: %w", ErrInvalidScenario, err)
		}
	case len(s.Solar.Hourly) > 0:
		solar = append([]types.HourlyEnergy(nil), s.Solar.Hourly...)
		load, err = profile.Align(t, s.Load, solar, cfg, s.SeasonalAdjustment, false)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: load: %w", ErrInvalidScenario, err)
		}
	default:
		load, err = profile.Hourly(t, s.Load, cfg, s.SeasonalAdjustment, false)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: load: %w", ErrInvalidScenario, err)
		}
		solar, err = profile.Hourly(t, s.Solar, cfg, s.SeasonalAdjustment, true)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: solar: %w", ErrInvalidScenario, err)
		}
	}
	return load, solar, nil
}

// Compare runs the scenarios concurrently and returns their reports in the
// same order. The first failure cancels the rest.
func (e *Estimator) Compare(ctx context.Context, scenarios []types.Scenario) ([]*Report, error) {
	reports := make([]*Report, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	for i := range scenarios {
		g.Go(func() error {
			r, err := e.Run(gctx, scenarios[i])
			if err != nil {
				id := scenarios[i].ID
				if id == "" {
					id = fmt.Sprintf("#%d", i)
				}
				return fmt.Errorf("scenario %s: %w", id, err)
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// NewReportID returns a random report ID.
func NewReportID() string {
	return uuid.NewString()
}
