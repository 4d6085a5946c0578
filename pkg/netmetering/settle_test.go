package netmetering

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raterudder/payback/pkg/tariff"
	"github.com/raterudder/payback/pkg/types"
)

func flatTariff(t *testing.T, export *types.ExportSchedule) *tariff.Tariff {
	t.Helper()
	tr, err := tariff.New(types.TariffPlan{
		ID:   "flat",
		Kind: types.PlanKindFlat,
		Windows: []types.TimeWindow{
			{HourStart: 0, HourEnd: 0, DollarsPerKWH: 0.10, Period: types.RatePeriodOffPeak},
		},
		Export: export,
	})
	require.NoError(t, err)
	return tr
}

// monthly returns one hour per month starting in January 2025.
func monthly(prod, load []float64) []types.HourlyFlow {
	out := make([]types.HourlyFlow, len(prod))
	for i := range prod {
		out[i] = types.HourlyFlow{
			TS:            time.Date(2025, time.January+time.Month(i), 1, 12, 0, 0, 0, time.UTC),
			ProductionKWH: prod[i],
			LoadKWH:       load[i],
		}
	}
	return out
}

func TestSettle(t *testing.T) {
	ctx := context.Background()

	t.Run("Credit Drawdown", func(t *testing.T) {
		tr := flatTariff(t, nil)
		res, err := Settle(ctx, tr, monthly(
			[]float64{100, 0, 0},
			[]float64{0, 30, 100},
		), nil)
		require.NoError(t, err)
		require.Len(t, res.Months, 3)

		assert.InDelta(t, 10, res.Months[0].NetPosition, 1e-9)
		assert.InDelta(t, 10, res.Months[0].CreditAdded, 1e-9)
		assert.InDelta(t, 10, res.Months[0].Balance, 1e-9)

		assert.InDelta(t, 3, res.Months[1].CreditApplied, 1e-9)
		assert.Zero(t, res.Months[1].Bill)
		assert.InDelta(t, 7, res.Months[1].Balance, 1e-9)

		assert.InDelta(t, 7, res.Months[2].CreditApplied, 1e-9)
		assert.InDelta(t, 3, res.Months[2].Bill, 1e-9)
		assert.Zero(t, res.FinalBalance)
		assert.InDelta(t, 3, res.TotalBill, 1e-9)
	})

	t.Run("Unused Credit Expires At Month Thirteen", func(t *testing.T) {
		tr := flatTariff(t, nil)
		prod := make([]float64, 14)
		load := make([]float64, 14)
		prod[0] = 50
		res, err := Settle(ctx, tr, monthly(prod, load), nil)
		require.NoError(t, err)

		for i := 0; i < 12; i++ {
			assert.InDelta(t, 5, res.Months[i].Balance, 1e-9, i)
			assert.Zero(t, res.Months[i].Expired)
		}
		assert.InDelta(t, 5, res.Months[12].Expired, 1e-9)
		assert.Zero(t, res.Months[12].Balance)
		require.Len(t, res.Expiries, 1)
		assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), res.Expiries[0].ExpiredMonth)
		assert.InDelta(t, 5, res.TotalExpired, 1e-9)
	})

	t.Run("Seasonal Export Rate", func(t *testing.T) {
		tr := flatTariff(t, &types.ExportSchedule{
			Seasons: []types.ExportSeason{{Name: "winter", Months: []time.Month{time.January}, DollarsPerKWH: 0.04}},
		})
		res, err := Settle(ctx, tr, monthly([]float64{100, 100}, []float64{0, 0}), nil)
		require.NoError(t, err)
		assert.InDelta(t, 4, res.Months[0].ExportCredit, 1e-9)
		assert.InDelta(t, 10, res.Months[1].ExportCredit, 1e-9)
	})

	t.Run("Battery Before Export", func(t *testing.T) {
		tr := flatTariff(t, nil)
		start := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
		hours := []types.HourlyFlow{
			{TS: start, ProductionKWH: 8, LoadKWH: 2},
			{TS: start.Add(time.Hour), ProductionKWH: 0, LoadKWH: 3},
			{TS: start.Add(2 * time.Hour), ProductionKWH: 0, LoadKWH: 3},
		}
		b := &types.BatteryDevice{UsableKWH: 4.5, RoundTripEfficiency: 0.9}
		res, err := Settle(ctx, tr, hours, b)
		require.NoError(t, err)
		require.Len(t, res.Months, 1)
		m := res.Months[0]

		// 5 kWh fills the battery to 4.5, 1 kWh is exported
		assert.InDelta(t, 5, m.BatteryChargeKWH, 1e-9)
		assert.InDelta(t, 1, m.ExportKWH, 1e-9)
		assert.InDelta(t, 4.5, m.BatteryDischargeKWH, 1e-9)
		assert.InDelta(t, 1.5, m.ImportKWH, 1e-9)
		assert.InDelta(t, 2, m.SelfConsumedKWH, 1e-9)
	})

	t.Run("Power Limit", func(t *testing.T) {
		tr := flatTariff(t, nil)
		start := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
		hours := []types.HourlyFlow{
			{TS: start, ProductionKWH: 10},
			{TS: start.Add(time.Hour), LoadKWH: 10},
		}
		b := &types.BatteryDevice{UsableKWH: 20, RoundTripEfficiency: 1, MaxPowerKW: 3}
		res, err := Settle(ctx, tr, hours, b)
		require.NoError(t, err)
		assert.InDelta(t, 3, res.Months[0].BatteryChargeKWH, 1e-9)
		assert.InDelta(t, 7, res.Months[0].ExportKWH, 1e-9)
		assert.InDelta(t, 3, res.Months[0].BatteryDischargeKWH, 1e-9)
	})

	t.Run("Unordered Hours", func(t *testing.T) {
		tr := flatTariff(t, nil)
		hours := monthly([]float64{1, 1}, []float64{0, 0})
		hours[0], hours[1] = hours[1], hours[0]
		_, err := Settle(ctx, tr, hours, nil)
		assert.ErrorIs(t, err, ErrUnordered)
	})

	t.Run("Credit Is Conserved", func(t *testing.T) {
		tr := flatTariff(t, nil)
		rng := rand.New(rand.NewSource(5))
		prod := make([]float64, 48)
		load := make([]float64, 48)
		for i := range prod {
			prod[i] = rng.Float64() * 300
			load[i] = rng.Float64() * 300
		}
		res, err := Settle(ctx, tr, monthly(prod, load), nil)
		require.NoError(t, err)
		assert.InDelta(t, res.TotalCreditAdded, res.TotalApplied+res.TotalExpired+res.FinalBalance, 1e-6)
		for _, m := range res.Months {
			assert.GreaterOrEqual(t, m.Balance, 0.0)
			assert.GreaterOrEqual(t, m.Bill, 0.0)
		}
	})
}

func TestSettleDispatch(t *testing.T) {
	ctx := context.Background()
	tr := flatTariff(t, nil)
	jan := time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, time.February, 3, 0, 0, 0, 0, time.UTC)

	hours := []types.HourTrace{
		// grid charging overnight
		{TS: jan, LoadKWH: 1, GridKWH: 6, GridChargeKWH: 5},
		// solar partly stored, the rest exported
		{TS: jan.Add(12 * time.Hour), LoadKWH: 1, SolarKWH: 10, SolarChargeKWH: 4},
		// evening load served by the battery
		{TS: jan.Add(18 * time.Hour), LoadKWH: 3, GridKWH: 1, DischargeKWH: 2},
		{TS: feb, LoadKWH: 20, GridKWH: 20},
	}
	res, err := SettleDispatch(ctx, tr, hours)
	require.NoError(t, err)
	require.Len(t, res.Months, 2)

	m := res.Months[0]
	assert.InDelta(t, 10, m.ProductionKWH, 1e-9)
	assert.InDelta(t, 5, m.LoadKWH, 1e-9)
	assert.InDelta(t, 1, m.SelfConsumedKWH, 1e-9)
	assert.InDelta(t, 9, m.BatteryChargeKWH, 1e-9)
	assert.InDelta(t, 2, m.BatteryDischargeKWH, 1e-9)
	assert.InDelta(t, 5, m.ExportKWH, 1e-9)
	assert.InDelta(t, 7, m.ImportKWH, 1e-9)
	assert.InDelta(t, 0.5, m.ExportCredit, 1e-9)
	assert.InDelta(t, 0.7, m.ImportCost, 1e-9)
	assert.InDelta(t, 0.2, m.Bill, 1e-9)

	assert.InDelta(t, 2, res.Months[1].Bill, 1e-9)
	assert.InDelta(t, 2.2, res.TotalBill, 1e-9)

	t.Run("Import Matches Dispatch", func(t *testing.T) {
		var cost float64
		for _, h := range hours {
			cost += h.GridKWH * 0.10
		}
		assert.InDelta(t, cost, res.TotalImportCost, 1e-9)
	})

	t.Run("Unordered Hours", func(t *testing.T) {
		_, err := SettleDispatch(ctx, tr, []types.HourTrace{{TS: feb}, {TS: jan}})
		assert.ErrorIs(t, err, ErrUnordered)
	})
}

func TestFlows(t *testing.T) {
	start := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	load := []types.HourlyEnergy{{TS: start, KWH: 1}, {TS: start.Add(time.Hour), KWH: 2}}

	f, err := Flows(load, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, f[1].LoadKWH)
	assert.Zero(t, f[1].ProductionKWH)

	f, err = Flows(load, []types.HourlyEnergy{{TS: start, KWH: 3}, {TS: start.Add(time.Hour), KWH: 4}})
	require.NoError(t, err)
	assert.Equal(t, 4.0, f[1].ProductionKWH)

	_, err = Flows(load, []types.HourlyEnergy{{TS: start, KWH: 3}})
	assert.Error(t, err)
}
