package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeWindowContains(t *testing.T) {
	t.Run("hour range", func(t *testing.T) {
		w := TimeWindow{HourStart: 11, HourEnd: 17}
		assert.False(t, w.Contains(time.Monday, 10))
		assert.True(t, w.Contains(time.Monday, 11))
		assert.True(t, w.Contains(time.Monday, 16))
		// end is exclusive
		assert.False(t, w.Contains(time.Monday, 17))
	})

	t.Run("wraps past midnight", func(t *testing.T) {
		w := TimeWindow{HourStart: 19, HourEnd: 7}
		for _, h := range []int{19, 20, 23, 0, 3, 6} {
			assert.True(t, w.Contains(time.Tuesday, h), "hour %d", h)
		}
		for _, h := range []int{7, 8, 12, 18} {
			assert.False(t, w.Contains(time.Tuesday, h), "hour %d", h)
		}
	})

	t.Run("equal start and end covers the day", func(t *testing.T) {
		w := TimeWindow{HourStart: 0, HourEnd: 0}
		for h := 0; h < 24; h++ {
			assert.True(t, w.Contains(time.Sunday, h))
		}
	})

	t.Run("days of the week", func(t *testing.T) {
		w := TimeWindow{
			HourStart:     7,
			HourEnd:       11,
			DaysOfTheWeek: []time.Weekday{time.Monday, time.Friday},
		}
		assert.True(t, w.Contains(time.Monday, 8))
		assert.True(t, w.Contains(time.Friday, 8))
		assert.False(t, w.Contains(time.Wednesday, 8))
	})
}

func TestExportScheduleRate(t *testing.T) {
	t.Run("nil schedule", func(t *testing.T) {
		var s *ExportSchedule
		_, ok := s.Rate(time.July)
		assert.False(t, ok)
	})

	t.Run("seasons", func(t *testing.T) {
		s := &ExportSchedule{
			Seasons: []ExportSeason{
				{Name: "summer", Months: []time.Month{time.June, time.July, time.August}, DollarsPerKWH: 0.12},
				{Name: "winter", Months: []time.Month{time.December, time.January}, DollarsPerKWH: 0.05},
			},
		}
		r, ok := s.Rate(time.July)
		assert.True(t, ok)
		assert.Equal(t, 0.12, r)

		r, ok = s.Rate(time.January)
		assert.True(t, ok)
		assert.Equal(t, 0.05, r)

		_, ok = s.Rate(time.April)
		assert.False(t, ok)
	})
}

func TestRatePeriodValid(t *testing.T) {
	for _, p := range RatePeriodsByCost {
		assert.True(t, p.Valid())
	}
	assert.False(t, RatePeriod("superPeak").Valid())
}
