package estimate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/raterudder/payback/pkg/log"
	"github.com/raterudder/payback/pkg/projection"
	"github.com/raterudder/payback/pkg/tariff"
	"github.com/raterudder/payback/pkg/types"
)

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GetPlan(ctx context.Context, id string) (types.TariffPlan, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.TariffPlan), args.Error(1)
}

func (m *mockCatalog) GetBattery(ctx context.Context, id string) (types.BatteryDevice, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.BatteryDevice), args.Error(1)
}

var errNotFound = errors.New("not found")

func scenario(id string) types.Scenario {
	return types.Scenario{
		ID:        id,
		PlanID:    tariff.PlanULO,
		Load:      types.EnergyProfile{AnnualKWH: 10000},
		Solar:     types.EnergyProfile{AnnualKWH: 6000},
		BatteryID: "generic-16",
		Assumptions: types.Assumptions{
			NetSystemCost: 20000,
		},
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	e := New(nil, nil, Defaults{
		Assumptions: types.Assumptions{EscalationRate: 0.03, DegradationRate: 0.005},
	})

	t.Run("Annual", func(t *testing.T) {
		r, err := e.Run(ctx, scenario("a"))
		require.NoError(t, err)
		assert.Equal(t, "a", r.ScenarioID)
		assert.Equal(t, tariff.PlanULO, r.PlanID)
		assert.Equal(t, "generic-16", r.BatteryID)
		assert.Equal(t, types.StrategyAnnual, r.Strategy)
		assert.Equal(t, 10000.0, r.AnnualLoadKWH)
		assert.Equal(t, 6000.0, r.AnnualSolarKWH)
		assert.InDelta(t, 5840, r.Dispatch.ThroughputBudgetKWH, 1e-9)
		assert.Nil(t, r.Settlement)
		assert.Greater(t, r.FirstYearSavings, 0.0)
		assert.Equal(t, r.Dispatch.Savings, r.FirstYearSavings)

		require.NotNil(t, r.Projection)
		assert.Len(t, r.Projection.Years, projection.DefaultHorizonYears)
		assert.Equal(t, 0.03, r.Assumptions.EscalationRate)
		assert.Equal(t, 0.93, r.Assumptions.OffsetCap)
		assert.InDelta(t, r.FirstYearSavings, r.Projection.Years[0].Savings, 1e-9)
	})

	t.Run("Scenario Overrides Defaults", func(t *testing.T) {
		s := scenario("b")
		s.Assumptions.HorizonYears = 10
		s.Assumptions.EscalationRate = 0.05
		s.Assumptions.OffsetCap = 0.5
		r, err := e.Run(ctx, s)
		require.NoError(t, err)
		assert.Len(t, r.Projection.Years, 10)
		assert.Equal(t, 0.05, r.Assumptions.EscalationRate)
		assert.Equal(t, 0.5, r.Assumptions.OffsetCap)
	})

	t.Run("Savings Cap Uses Cost Before", func(t *testing.T) {
		s := scenario("c")
		s.Assumptions.SavingsCap = 0.8
		r, err := e.Run(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, r.Dispatch.CostBefore, r.Assumptions.BaselineAnnualBill)
		for _, y := range r.Projection.Years {
			assert.LessOrEqual(t, y.Savings, r.Dispatch.CostBefore*y.RateMultiplier*0.8+1e-9)
		}
	})

	t.Run("Without Battery", func(t *testing.T) {
		s := scenario("d")
		s.BatteryID = ""
		r, err := e.Run(ctx, s)
		require.NoError(t, err)
		assert.Empty(t, r.BatteryID)
		assert.Zero(t, r.Dispatch.TotalDischargeKWH())
	})

	t.Run("Hourly With Net Metering", func(t *testing.T) {
		s := scenario("e")
		s.PlanID = tariff.PlanTiered
		s.Strategy = types.StrategyHourly
		s.NetMetering = true
		r, err := e.Run(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, types.StrategyHourly, r.Strategy)
		require.NotNil(t, r.Settlement)
		assert.Len(t, r.Settlement.Months, 12)
		assert.InDelta(t, r.Dispatch.CostBefore-r.Settlement.TotalBill, r.FirstYearSavings, 1e-9)
		assert.InDelta(t, 10000, r.AnnualLoadKWH, 1e-6)
	})

	t.Run("Net Metering Ignored By Annual", func(t *testing.T) {
		s := scenario("f")
		s.NetMetering = true
		r, err := e.Run(ctx, s)
		require.NoError(t, err)
		assert.Nil(t, r.Settlement)
	})

	t.Run("Net Metering Keeps Grid Charging", func(t *testing.T) {
		s := scenario("nm")
		s.Solar = types.EnergyProfile{AnnualKWH: 1000}
		s.Strategy = types.StrategyHourly
		off, err := e.Run(ctx, s)
		require.NoError(t, err)

		s.NetMetering = true
		on, err := e.Run(ctx, s)
		require.NoError(t, err)
		require.NotNil(t, on.Settlement)
		assert.Greater(t, on.Dispatch.ChargedFromGridKWH, 0.0)
		assert.GreaterOrEqual(t, on.FirstYearSavings, off.FirstYearSavings-1e-6)
		assert.InDelta(t, on.Dispatch.CostAfter, on.Settlement.TotalImportCost, 1e-6)
		assert.Empty(t, on.Dispatch.Hours)
		assert.Empty(t, on.Dispatch.Days)

		s.Trace = true
		traced, err := e.Run(ctx, s)
		require.NoError(t, err)
		assert.NotEmpty(t, traced.Dispatch.Hours)
		assert.InDelta(t, on.FirstYearSavings, traced.FirstYearSavings, 1e-9)
	})

	t.Run("Hourly Load In Leap Year", func(t *testing.T) {
		loc, err := time.LoadLocation("America/Toronto")
		require.NoError(t, err)
		start := time.Date(2024, time.January, 1, 0, 0, 0, 0, loc)
		load := make([]types.HourlyEnergy, 8784)
		for i := range load {
			load[i] = types.HourlyEnergy{TS: start.Add(time.Duration(i) * time.Hour), KWH: 1}
		}

		s := scenario("leap")
		s.Strategy = types.StrategyHourly
		s.Trace = true
		s.Load = types.EnergyProfile{Hourly: load}
		r, err := e.Run(ctx, s)
		require.NoError(t, err)
		require.Len(t, r.Dispatch.Hours, 8784)

		var solar float64
		for _, h := range r.Dispatch.Hours {
			solar += h.SolarKWH
			if hr := h.TS.In(loc).Hour(); hr < 6 || hr > 17 {
				assert.Zero(t, h.SolarKWH, h.TS)
			}
		}
		assert.InDelta(t, 6000, solar, 1e-6)
		assert.Equal(t, 2024, r.Dispatch.Hours[8783].TS.In(loc).Year())
	})

	t.Run("Hourly Solar Sets Timeline", func(t *testing.T) {
		start := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
		solar := make([]types.HourlyEnergy, 24*30)
		for i := range solar {
			solar[i] = types.HourlyEnergy{TS: start.Add(time.Duration(i) * time.Hour)}
			if h := solar[i].TS.Hour(); h >= 15 && h < 21 {
				solar[i].KWH = 2
			}
		}

		s := scenario("june")
		s.Strategy = types.StrategyHourly
		s.Trace = true
		s.Solar = types.EnergyProfile{Hourly: solar}
		r, err := e.Run(ctx, s)
		require.NoError(t, err)
		require.Len(t, r.Dispatch.Hours, len(solar))
		for i, h := range r.Dispatch.Hours {
			assert.Equal(t, solar[i].KWH, h.SolarKWH)
			assert.Greater(t, h.LoadKWH, 0.0)
		}
	})

	t.Run("Debug Log Without Payback", func(t *testing.T) {
		var buf bytes.Buffer
		lctx := log.With(ctx, slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

		s := scenario("never")
		s.Assumptions.NetSystemCost = 1e9
		r, err := e.Run(lctx, s)
		require.NoError(t, err)
		require.False(t, r.Projection.PaybackReached())

		var found bool
		for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
			assert.NotContains(t, string(line), "!ERROR")
			var rec map[string]any
			require.NoError(t, json.Unmarshal(line, &rec), string(line))
			if rec["msg"] != "estimated scenario" {
				continue
			}
			found = true
			assert.Equal(t, false, rec["paybackReached"])
			assert.NotContains(t, rec, "paybackYears")
		}
		assert.True(t, found)

		buf.Reset()
		s = scenario("pays")
		s.Assumptions.NetSystemCost = 1
		r, err = e.Run(lctx, s)
		require.NoError(t, err)
		require.True(t, r.Projection.PaybackReached())
		assert.Contains(t, buf.String(), `"paybackReached":true`)
		assert.Contains(t, buf.String(), `"paybackYears":`)
	})

	t.Run("Distribution Over 100 Percent", func(t *testing.T) {
		s := scenario("pct")
		s.Load.Distribution = types.UsageDistribution{
			types.RatePeriodUltraLow: 45,
			types.RatePeriodOffPeak:  25.5,
			types.RatePeriodMidPeak:  54,
			types.RatePeriodOnPeak:   25.5,
		}
		inflated, err := e.Run(ctx, s)
		require.NoError(t, err)

		s.Load.Distribution = types.UsageDistribution{
			types.RatePeriodUltraLow: 30,
			types.RatePeriodOffPeak:  17,
			types.RatePeriodMidPeak:  36,
			types.RatePeriodOnPeak:   17,
		}
		plain, err := e.Run(ctx, s)
		require.NoError(t, err)
		assert.InDelta(t, plain.FirstYearSavings, inflated.FirstYearSavings, 1e-9)
		assert.InDelta(t, plain.Dispatch.CostAfter, inflated.Dispatch.CostAfter, 1e-9)
		assert.InDelta(t, plain.Projection.TotalSavings, inflated.Projection.TotalSavings, 1e-6)
	})

	t.Run("Inline Plan And Battery", func(t *testing.T) {
		s := scenario("g")
		s.PlanID = ""
		s.Plan = &types.TariffPlan{
			ID:   "inline",
			Kind: types.PlanKindFlat,
			Windows: []types.TimeWindow{
				{HourStart: 0, HourEnd: 0, DollarsPerKWH: 0.12, Period: types.RatePeriodOffPeak},
			},
		}
		s.BatteryID = ""
		s.Battery = &types.BatteryDevice{ID: "mine", UsableKWH: 10, RoundTripEfficiency: 0.9}
		r, err := e.Run(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, "inline", r.PlanID)
		assert.Equal(t, "mine", r.BatteryID)
		assert.InDelta(t, 3650, r.Dispatch.ThroughputBudgetKWH, 1e-9)
	})

	t.Run("Invalid Scenario", func(t *testing.T) {
		s := scenario("h")
		s.Load = types.EnergyProfile{}
		_, err := e.Run(ctx, s)
		assert.ErrorIs(t, err, ErrInvalidScenario)

		s = scenario("h")
		s.Strategy = "solver"
		_, err = e.Run(ctx, s)
		assert.ErrorIs(t, err, ErrInvalidScenario)
	})

	t.Run("Unknown Plan And Battery", func(t *testing.T) {
		s := scenario("i")
		s.PlanID = "nope"
		_, err := e.Run(ctx, s)
		assert.ErrorIs(t, err, ErrUnknownPlan)

		s = scenario("i")
		s.BatteryID = "nope"
		_, err = e.Run(ctx, s)
		assert.ErrorIs(t, err, ErrUnknownBattery)
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := e.Run(cctx, scenario("j"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRunCatalog(t *testing.T) {
	ctx := context.Background()
	plan := tariff.Builtin()[0]
	plan.ID = "utility-tou"

	catalog := &mockCatalog{}
	catalog.On("GetPlan", mock.Anything, "utility-tou").Return(plan, nil)
	catalog.On("GetPlan", mock.Anything, "missing").Return(types.TariffPlan{}, errNotFound)
	catalog.On("GetBattery", mock.Anything, "big").Return(types.BatteryDevice{ID: "big", UsableKWH: 30}, nil)
	catalog.On("GetBattery", mock.Anything, "broken").Return(types.BatteryDevice{ID: "broken", UsableKWH: -1}, nil)

	e := New(nil, catalog, Defaults{})

	s := scenario("a")
	s.PlanID = "utility-tou"
	s.BatteryID = "big"
	r, err := e.Run(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "utility-tou", r.PlanID)
	assert.InDelta(t, 30*365, r.Dispatch.ThroughputBudgetKWH, 1e-9)

	s.PlanID = "missing"
	_, err = e.Run(ctx, s)
	assert.ErrorIs(t, err, ErrUnknownPlan)
	assert.ErrorIs(t, err, errNotFound)

	s.PlanID = tariff.PlanTOU
	s.BatteryID = "broken"
	_, err = e.Run(ctx, s)
	assert.Error(t, err)

	catalog.AssertExpectations(t)
}

func TestCompare(t *testing.T) {
	ctx := context.Background()
	e := New(nil, nil, Defaults{})

	t.Run("Preserves Order", func(t *testing.T) {
		var scenarios []types.Scenario
		for i, id := range []string{"enphase-5p", "generic-16", "franklin-apower2", "tesla-powerwall-3", ""} {
			s := scenario(fmt.Sprintf("s%d", i))
			s.BatteryID = id
			scenarios = append(scenarios, s)
		}
		reports, err := e.Compare(ctx, scenarios)
		require.NoError(t, err)
		require.Len(t, reports, len(scenarios))
		for i, r := range reports {
			assert.Equal(t, scenarios[i].ID, r.ScenarioID)
			assert.Equal(t, scenarios[i].BatteryID, r.BatteryID)
		}

		// each report matches a standalone run
		single, err := e.Run(ctx, scenarios[1])
		require.NoError(t, err)
		assert.InDelta(t, single.FirstYearSavings, reports[1].FirstYearSavings, 1e-9)
	})

	t.Run("Failure Names Scenario", func(t *testing.T) {
		bad := scenario("bad")
		bad.PlanID = "nope"
		_, err := e.Compare(ctx, []types.Scenario{scenario("ok"), bad})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownPlan)
		assert.ErrorContains(t, err, "scenario bad")
	})

	t.Run("Empty", func(t *testing.T) {
		reports, err := e.Compare(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, reports)
	})
}

func TestBuiltinBatteries(t *testing.T) {
	list := BuiltinBatteries()
	require.NotEmpty(t, list)
	for i, b := range list {
		assert.NoError(t, b.Validate(), b.ID)
		if i > 0 {
			assert.Less(t, list[i-1].ID, b.ID)
		}
		got, ok := BuiltinBattery(b.ID)
		assert.True(t, ok)
		assert.Equal(t, b, got)
	}
	_, ok := BuiltinBattery("nope")
	assert.False(t, ok)
}
