package tariff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOntarioHolidays(t *testing.T) {
	t.Run("2025", func(t *testing.T) {
		assert.Equal(t, []time.Time{
			day(2025, time.January, 1),
			day(2025, time.February, 17),
			day(2025, time.April, 18),
			day(2025, time.May, 19),
			day(2025, time.July, 1),
			day(2025, time.August, 4),
			day(2025, time.September, 1),
			day(2025, time.October, 13),
			day(2025, time.December, 25),
			day(2025, time.December, 26),
		}, OntarioHolidays(2025))
	})

	t.Run("Christmas On Saturday", func(t *testing.T) {
		h := OntarioHolidays(2021)
		assert.Contains(t, h, day(2021, time.December, 27))
		assert.Contains(t, h, day(2021, time.December, 28))
		assert.NotContains(t, h, day(2021, time.December, 25))
	})

	t.Run("Christmas On Sunday", func(t *testing.T) {
		h := OntarioHolidays(2022)
		assert.Contains(t, h, day(2022, time.December, 26))
		assert.Contains(t, h, day(2022, time.December, 27))
	})

	t.Run("Good Friday", func(t *testing.T) {
		assert.Contains(t, OntarioHolidays(2024), day(2024, time.March, 29))
	})
}
