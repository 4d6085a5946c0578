package netmetering

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func month(year int, m time.Month) time.Time {
	return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
}

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func TestCreditQueue(t *testing.T) {
	t.Run("Drawdown Is FIFO", func(t *testing.T) {
		var q CreditQueue
		q.Push(month(2025, time.January), dec(10))
		q.Push(month(2025, time.February), dec(5))

		used := q.Drawdown(dec(12))
		assert.True(t, used.Equal(dec(12)))
		entries := q.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, month(2025, time.February), entries[0].Month)
		assert.Equal(t, 3.0, entries[0].Amount)
	})

	t.Run("Drawdown More Than Balance", func(t *testing.T) {
		var q CreditQueue
		q.Push(month(2025, time.January), dec(4.25))
		used := q.Drawdown(dec(10))
		assert.True(t, used.Equal(dec(4.25)))
		assert.True(t, q.Balance().IsZero())
	})

	t.Run("Non Positive Credits Ignored", func(t *testing.T) {
		var q CreditQueue
		q.Push(month(2025, time.January), dec(0))
		q.Push(month(2025, time.January), dec(-3))
		assert.Empty(t, q.Entries())
	})

	t.Run("Expires Exactly After Twelve Months", func(t *testing.T) {
		var q CreditQueue
		q.Push(month(2025, time.January), dec(10))
		q.Push(month(2025, time.March), dec(2))

		exp, events := q.Expire(month(2025, time.December))
		assert.True(t, exp.IsZero())
		assert.Empty(t, events)

		exp, events = q.Expire(month(2026, time.January))
		assert.True(t, exp.Equal(dec(10)))
		require.Len(t, events, 1)
		assert.Equal(t, month(2025, time.January), events[0].GeneratedMonth)
		assert.Equal(t, month(2026, time.January), events[0].ExpiredMonth)
		assert.True(t, q.Balance().Equal(dec(2)))
	})

	t.Run("Partially Used Credit Still Expires", func(t *testing.T) {
		var q CreditQueue
		q.Push(month(2025, time.January), dec(10))
		q.Drawdown(dec(6))
		exp, _ := q.Expire(month(2026, time.February))
		assert.True(t, exp.Equal(dec(4)))
	})
}
