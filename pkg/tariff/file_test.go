package tariff

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raterudder/payback/pkg/types"
)

const plansYAML = `
plans:
  - id: coop-tou
    name: Co-op TOU
    kind: tou
    location: America/Chicago
    windows:
      - {hourStart: 20, hourEnd: 8, dollarsPerKWH: 0.06, period: offPeak}
      - {hourStart: 8, hourEnd: 14, dollarsPerKWH: 0.11, period: midPeak}
      - {hourStart: 14, hourEnd: 20, dollarsPerKWH: 0.21, period: onPeak, daysOfTheWeek: [1, 2, 3, 4, 5]}
      - {hourStart: 14, hourEnd: 20, dollarsPerKWH: 0.11, period: midPeak}
    weekendDollarsPerKWH: 0.06
    holidays: ["2025-11-27"]
    export:
      seasons:
        - {name: summer, months: [6, 7, 8], dollarsPerKWH: 0.09}
`

func TestParse(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		plans, err := Parse([]byte(plansYAML))
		require.NoError(t, err)
		require.Len(t, plans, 1)

		p := plans[0]
		assert.Equal(t, "coop-tou", p.ID)
		assert.Equal(t, types.PlanKindTOU, p.Kind)
		require.Len(t, p.Windows, 4)
		assert.Equal(t, []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, p.Windows[2].DaysOfTheWeek)
		require.NotNil(t, p.WeekendDollarsPerKWH)
		assert.Equal(t, 0.06, *p.WeekendDollarsPerKWH)
		require.NotNil(t, p.Export)
		assert.Equal(t, []time.Month{time.June, time.July, time.August}, p.Export.Seasons[0].Months)

		tr, err := New(p)
		require.NoError(t, err)
		assert.True(t, tr.Resolve(day(2025, time.November, 27), 15).Weekend)
		assert.Equal(t, types.RatePeriodOnPeak, tr.Resolve(day(2025, time.November, 26), 15).Period)
	})

	t.Run("Missing ID", func(t *testing.T) {
		_, err := Parse([]byte("plans:\n  - name: nameless\n"))
		assert.ErrorIs(t, err, ErrInvalidPlan)
	})

	t.Run("Invalid Plan", func(t *testing.T) {
		_, err := Parse([]byte("plans:\n  - id: bad\n    windows:\n      - {hourStart: 1, hourEnd: 2, period: onPeak}\n"))
		assert.ErrorIs(t, err, ErrInvalidPlan)
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := Parse([]byte("plans: {"))
		assert.Error(t, err)
	})
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(plansYAML), 0o600))

	plans, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, plans, 1)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMap(t *testing.T) {
	m := NewMap()

	t.Run("Builtins", func(t *testing.T) {
		infos := m.List()
		ids := make([]string, 0, len(infos))
		for _, i := range infos {
			ids = append(ids, i.ID)
		}
		assert.Equal(t, []string{PlanTiered, PlanTOU, PlanULO}, ids)

		tr, ok := m.Tariff(PlanULO)
		require.True(t, ok)
		assert.Equal(t, types.PlanKindULO, tr.Plan().Kind)
	})

	t.Run("Set Plan", func(t *testing.T) {
		plans, err := Parse([]byte(plansYAML))
		require.NoError(t, err)
		require.NoError(t, m.SetPlan(plans[0]))
		_, ok := m.Tariff("coop-tou")
		assert.True(t, ok)
	})

	t.Run("Set Invalid Plan", func(t *testing.T) {
		err := m.SetPlan(types.TariffPlan{ID: "empty"})
		assert.ErrorIs(t, err, ErrInvalidPlan)
		_, ok := m.Tariff("empty")
		assert.False(t, ok)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, ok := m.Tariff("nope")
		assert.False(t, ok)
	})
}
