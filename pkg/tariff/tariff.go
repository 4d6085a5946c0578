package tariff

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/raterudder/payback/pkg/types"
)

// ErrInvalidPlan is returned when a plan fails validation.
var ErrInvalidPlan = errors.New("invalid tariff plan")

const dateLayout = "2006-01-02"

// Resolution is the price and tier of a single hour.
type Resolution struct {
	DollarsPerKWH float64          `json:"dollarsPerKWH"`
	Period        types.RatePeriod `json:"period"`
	Description   string           `json:"description,omitempty"`
	// Weekend is true for weekends and holidays.
	Weekend bool `json:"weekend"`
	// Fallback is true when no window matched and the plan's fallback price
	// was used instead.
	Fallback bool `json:"fallback"`
}

// Tariff is a validated plan that can price any hour. It is safe for
// concurrent use.
type Tariff struct {
	plan     types.TariffPlan
	location *time.Location
	fallback float64

	mu            sync.Mutex
	holidays      map[string]struct{}
	calendarYears map[int]struct{}
}

// Option changes how New validates a plan.
type Option func(*options)

type options struct {
	allowGaps bool
}

// AllowGaps lets hours that match no window through validation. They resolve
// to the fallback price.
func AllowGaps() Option {
	return func(o *options) {
		o.allowGaps = true
	}
}

// New validates the plan and returns a Tariff for it. Unless AllowGaps is
// given, every hour of every day must be covered by a window or the flat
// weekend price.
func New(plan types.TariffPlan, opts ...Option) (*Tariff, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	t := &Tariff{
		plan:          plan,
		location:      time.UTC,
		holidays:      make(map[string]struct{}),
		calendarYears: make(map[int]struct{}),
	}
	if plan.WeekendPeriod == "" {
		t.plan.WeekendPeriod = types.RatePeriodOffPeak
	}
	if plan.Kind == "" {
		t.plan.Kind = types.PlanKindTOU
	}

	var errs []error
	if plan.Location != "" {
		loc, err := time.LoadLocation(plan.Location)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to load location %s: %w", plan.Location, err))
		} else {
			t.location = loc
		}
	}
	switch t.plan.Kind {
	case types.PlanKindTOU, types.PlanKindULO, types.PlanKindFlat:
	default:
		errs = append(errs, fmt.Errorf("unknown plan kind: %s", plan.Kind))
	}
	switch plan.HolidayCalendar {
	case "", CalendarOntario:
	default:
		errs = append(errs, fmt.Errorf("unknown holiday calendar: %s", plan.HolidayCalendar))
	}
	if len(plan.Windows) == 0 {
		errs = append(errs, errors.New("at least one weekday window is required"))
	}
	errs = append(errs, validateWindows("window", plan.Windows)...)
	errs = append(errs, validateWindows("weekend window", plan.WeekendWindows)...)
	if plan.WeekendDollarsPerKWH != nil && *plan.WeekendDollarsPerKWH < 0 {
		errs = append(errs, fmt.Errorf("weekend price must not be negative: %f", *plan.WeekendDollarsPerKWH))
	}
	if !t.plan.WeekendPeriod.Valid() {
		errs = append(errs, fmt.Errorf("unknown weekend period: %s", plan.WeekendPeriod))
	}
	if plan.OffsetCap < 0 || plan.OffsetCap > 1 {
		errs = append(errs, fmt.Errorf("offset cap must be in [0, 1]: %f", plan.OffsetCap))
	}
	if plan.Export != nil {
		for _, s := range plan.Export.Seasons {
			if s.DollarsPerKWH < 0 {
				errs = append(errs, fmt.Errorf("export season %s price must not be negative", s.Name))
			}
		}
	}
	for _, h := range plan.Holidays {
		d, err := time.ParseInLocation(dateLayout, h, t.location)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid holiday %q: %w", h, err))
			continue
		}
		t.holidays[d.Format(dateLayout)] = struct{}{}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w %s: %w", ErrInvalidPlan, plan.ID, errors.Join(errs...))
	}

	if plan.WeekendDollarsPerKWH != nil {
		t.fallback = *plan.WeekendDollarsPerKWH
	} else {
		t.fallback = math.Inf(1)
		for _, w := range plan.Windows {
			t.fallback = math.Min(t.fallback, w.DollarsPerKWH)
		}
	}

	if o.allowGaps {
		return t, nil
	}
	if err := t.Coverage(); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrInvalidPlan, plan.ID, err)
	}
	return t, nil
}

// Coverage returns an error listing every hour that resolves to the fallback
// price.
func (t *Tariff) Coverage() error {
	var gaps []error
	for dow := time.Sunday; dow <= time.Saturday; dow++ {
		for hour := 0; hour < 24; hour++ {
			if !isWeekend(dow) {
				if _, ok := t.weekday(dow, hour); !ok {
					gaps = append(gaps, fmt.Errorf("%s hour %d is not covered", dow, hour))
					continue
				}
			}
			// holidays can land on any day
			if _, ok := t.weekend(dow, hour); !ok {
				gaps = append(gaps, fmt.Errorf("%s hour %d is not covered on weekends or holidays", dow, hour))
			}
		}
	}
	return errors.Join(gaps...)
}

func validateWindows(name string, windows []types.TimeWindow) []error {
	var errs []error
	for i, w := range windows {
		if w.HourStart < 0 || w.HourStart > 23 {
			errs = append(errs, fmt.Errorf("%s %d: start hour out of range: %d", name, i, w.HourStart))
		}
		if w.HourEnd < 0 || w.HourEnd > 23 {
			errs = append(errs, fmt.Errorf("%s %d: end hour out of range: %d", name, i, w.HourEnd))
		}
		if w.DollarsPerKWH < 0 {
			errs = append(errs, fmt.Errorf("%s %d: price must not be negative: %f", name, i, w.DollarsPerKWH))
		}
		if !w.Period.Valid() {
			errs = append(errs, fmt.Errorf("%s %d: unknown period: %q", name, i, w.Period))
		}
		for _, d := range w.DaysOfTheWeek {
			if d < time.Sunday || d > time.Saturday {
				errs = append(errs, fmt.Errorf("%s %d: invalid weekday: %d", name, i, d))
			}
		}
	}
	return errs
}

func isWeekend(dow time.Weekday) bool {
	return dow == time.Saturday || dow == time.Sunday
}

// Plan returns the plan this tariff was built from.
func (t *Tariff) Plan() types.TariffPlan {
	return t.plan
}

// Location returns the plan's time zone.
func (t *Tariff) Location() *time.Location {
	return t.location
}

func match(windows []types.TimeWindow, dow time.Weekday, hour int) (Resolution, bool) {
	for _, w := range windows {
		if w.Contains(dow, hour) {
			return Resolution{
				DollarsPerKWH: w.DollarsPerKWH,
				Period:        w.Period,
				Description:   w.Description,
			}, true
		}
	}
	return Resolution{}, false
}

func (t *Tariff) weekday(dow time.Weekday, hour int) (Resolution, bool) {
	return match(t.plan.Windows, dow, hour)
}

func (t *Tariff) weekend(dow time.Weekday, hour int) (Resolution, bool) {
	r, ok := match(t.plan.WeekendWindows, dow, hour)
	if !ok && t.plan.WeekendDollarsPerKWH != nil {
		r, ok = Resolution{
			DollarsPerKWH: *t.plan.WeekendDollarsPerKWH,
			Period:        t.plan.WeekendPeriod,
			Description:   "Weekend",
		}, true
	}
	if !ok {
		r, ok = t.weekday(dow, hour)
	}
	r.Weekend = true
	return r, ok
}

// Resolve returns the price and period of the given hour on the given date.
// Weekends and holidays are resolved first against the weekend windows, then
// the flat weekend price, then the weekday windows. An hour that matches
// nothing gets the fallback price tagged off-peak with Fallback set.
func (t *Tariff) Resolve(date time.Time, hour int) Resolution {
	dow := date.Weekday()
	var (
		r  Resolution
		ok bool
	)
	if isWeekend(dow) || t.IsHoliday(date) {
		r, ok = t.weekend(dow, hour)
	} else {
		r, ok = t.weekday(dow, hour)
	}
	if ok {
		return r
	}
	return Resolution{
		DollarsPerKWH: t.fallback,
		Period:        types.RatePeriodOffPeak,
		Weekend:       r.Weekend,
		Fallback:      true,
	}
}

// ResolveTime resolves the hour containing ts in the plan's location.
func (t *Tariff) ResolveTime(ts time.Time) Resolution {
	ts = ts.In(t.location)
	return t.Resolve(ts, ts.Hour())
}

// ExportPrice returns the credit for exporting a kWh during the hour
// containing ts.
func (t *Tariff) ExportPrice(ts time.Time) float64 {
	ts = ts.In(t.location)
	if rate, ok := t.plan.Export.Rate(ts.Month()); ok {
		return rate
	}
	return t.Resolve(ts, ts.Hour()).DollarsPerKWH
}

// HasPeriod returns true if any window of the plan is tagged with p.
func (t *Tariff) HasPeriod(p types.RatePeriod) bool {
	_, ok := t.PeriodPrices()[p]
	return ok
}

// CheapestPeriod returns ultra-low if the plan has it, otherwise off-peak.
func (t *Tariff) CheapestPeriod() types.RatePeriod {
	if t.HasPeriod(types.RatePeriodUltraLow) {
		return types.RatePeriodUltraLow
	}
	return types.RatePeriodOffPeak
}

// PeriodPrices returns a representative price for every period of the plan,
// taken from the first window declaring it. Weekday windows win over weekend
// ones.
func (t *Tariff) PeriodPrices() map[types.RatePeriod]float64 {
	prices := make(map[types.RatePeriod]float64)
	for _, windows := range [][]types.TimeWindow{t.plan.Windows, t.plan.WeekendWindows} {
		for _, w := range windows {
			if _, ok := prices[w.Period]; !ok {
				prices[w.Period] = w.DollarsPerKWH
			}
		}
	}
	if t.plan.WeekendDollarsPerKWH != nil {
		if _, ok := prices[t.plan.WeekendPeriod]; !ok {
			prices[t.plan.WeekendPeriod] = *t.plan.WeekendDollarsPerKWH
		}
	}
	return prices
}

// Grid returns the resolution of every hour of a week without holidays,
// indexed by weekday and hour.
func (t *Tariff) Grid() [7][24]Resolution {
	var g [7][24]Resolution
	for dow := time.Sunday; dow <= time.Saturday; dow++ {
		for hour := 0; hour < 24; hour++ {
			var (
				r  Resolution
				ok bool
			)
			if isWeekend(dow) {
				r, ok = t.weekend(dow, hour)
			} else {
				r, ok = t.weekday(dow, hour)
			}
			if !ok {
				r = Resolution{DollarsPerKWH: t.fallback, Period: types.RatePeriodOffPeak, Fallback: true}
			}
			g[dow][hour] = r
		}
	}
	return g
}
