package tariff

import (
	"time"
)

// CalendarOntario is the Ontario statutory holiday calendar used by the
// Ontario Energy Board for time-of-use pricing.
const CalendarOntario = "ontario"

// IsHoliday returns true if the date is an explicit plan holiday or a holiday
// of the plan's calendar.
func (t *Tariff) IsHoliday(date time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.plan.HolidayCalendar == CalendarOntario {
		if _, ok := t.calendarYears[date.Year()]; !ok {
			for _, d := range OntarioHolidays(date.Year()) {
				t.holidays[d.Format(dateLayout)] = struct{}{}
			}
			t.calendarYears[date.Year()] = struct{}{}
		}
	}
	_, ok := t.holidays[date.Format(dateLayout)]
	return ok
}

// OntarioHolidays returns the observed statutory holidays of the year in UTC
// dates. Fixed-date holidays that fall on a weekend move to the next free
// weekday.
func OntarioHolidays(year int) []time.Time {
	var days []time.Time
	taken := make(map[time.Time]bool)
	observe := func(d time.Time) {
		for isWeekend(d.Weekday()) || taken[d] {
			d = d.AddDate(0, 0, 1)
		}
		taken[d] = true
		days = append(days, d)
	}
	fixed := func(d time.Time) {
		taken[d] = true
		days = append(days, d)
	}

	observe(date(year, time.January, 1))
	fixed(nthWeekday(year, time.February, time.Monday, 3))
	fixed(easter(year).AddDate(0, 0, -2))
	fixed(victoriaDay(year))
	observe(date(year, time.July, 1))
	fixed(nthWeekday(year, time.August, time.Monday, 1))
	fixed(nthWeekday(year, time.September, time.Monday, 1))
	fixed(nthWeekday(year, time.October, time.Monday, 2))
	observe(date(year, time.December, 25))
	observe(date(year, time.December, 26))
	return days
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// nthWeekday returns the nth occurrence of the weekday in the month.
func nthWeekday(year int, month time.Month, dow time.Weekday, n int) time.Time {
	d := date(year, month, 1)
	offset := (int(dow) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+7*(n-1))
}

// victoriaDay is the last Monday before May 25.
func victoriaDay(year int) time.Time {
	d := date(year, time.May, 24)
	offset := (int(d.Weekday()) - int(time.Monday) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// easter returns Easter Sunday using the anonymous Gregorian algorithm.
func easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return date(year, time.Month(month), day)
}
