package types

import (
	"slices"
	"time"
)

// RatePeriod tags a window of a tariff with its pricing tier.
type RatePeriod string

const (
	RatePeriodUltraLow RatePeriod = "ultraLow"
	RatePeriodOffPeak  RatePeriod = "offPeak"
	RatePeriodMidPeak  RatePeriod = "midPeak"
	RatePeriodOnPeak   RatePeriod = "onPeak"
)

// RatePeriodsByCost lists the periods from most to least expensive. Offsets
// (solar, battery) are always applied in this order.
var RatePeriodsByCost = []RatePeriod{
	RatePeriodOnPeak,
	RatePeriodMidPeak,
	RatePeriodOffPeak,
	RatePeriodUltraLow,
}

// Valid returns true if the period is one of the known tiers.
func (p RatePeriod) Valid() bool {
	return slices.Contains(RatePeriodsByCost, p)
}

// PlanKind describes the overall shape of a tariff.
type PlanKind string

const (
	PlanKindTOU  PlanKind = "tou"
	PlanKindULO  PlanKind = "ulo"
	PlanKindFlat PlanKind = "flat"
)

// TimeWindow is a priced range of hours on a set of weekdays.
//
// HourStart and HourEnd are in 0-23. When HourStart is greater than HourEnd
// the window wraps past midnight. When they are equal the window covers the
// whole day.
type TimeWindow struct {
	HourStart     int            `json:"hourStart" yaml:"hourStart"`
	HourEnd       int            `json:"hourEnd" yaml:"hourEnd"`
	DaysOfTheWeek []time.Weekday `json:"daysOfTheWeek,omitempty" yaml:"daysOfTheWeek,omitempty"`
	DollarsPerKWH float64        `json:"dollarsPerKWH" yaml:"dollarsPerKWH"`
	Period        RatePeriod     `json:"period" yaml:"period"`
	Description   string         `json:"description,omitempty" yaml:"description,omitempty"`
}

// Contains checks if the given weekday and hour fall within the window.
func (w TimeWindow) Contains(dow time.Weekday, hour int) bool {
	if len(w.DaysOfTheWeek) > 0 && !slices.Contains(w.DaysOfTheWeek, dow) {
		return false
	}
	switch {
	case w.HourStart == w.HourEnd:
		return true
	case w.HourStart < w.HourEnd:
		return hour >= w.HourStart && hour < w.HourEnd
	default:
		return hour >= w.HourStart || hour < w.HourEnd
	}
}

// ExportSeason is a set of months that share a single export credit rate.
type ExportSeason struct {
	Name          string       `json:"name" yaml:"name"`
	Months        []time.Month `json:"months" yaml:"months"`
	DollarsPerKWH float64      `json:"dollarsPerKWH" yaml:"dollarsPerKWH"`
}

// ExportSchedule lists the seasonal export credit rates for a plan. Months not
// covered by any season are credited at the import price of that hour.
type ExportSchedule struct {
	Seasons []ExportSeason `json:"seasons" yaml:"seasons"`
}

// Rate returns the export rate for the month and whether a season matched.
func (s *ExportSchedule) Rate(m time.Month) (float64, bool) {
	if s == nil {
		return 0, false
	}
	for _, season := range s.Seasons {
		if slices.Contains(season.Months, m) {
			return season.DollarsPerKWH, true
		}
	}
	return 0, false
}

// TariffPlan is a complete description of a utility rate plan.
type TariffPlan struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Kind     PlanKind `json:"kind" yaml:"kind"`
	Location string   `json:"location,omitempty" yaml:"location,omitempty"`

	// Windows are the weekday windows, evaluated in declaration order.
	Windows []TimeWindow `json:"windows" yaml:"windows"`

	// WeekendDollarsPerKWH is a flat price used all day on weekends and
	// holidays when no weekend window matches.
	WeekendDollarsPerKWH *float64   `json:"weekendDollarsPerKWH,omitempty" yaml:"weekendDollarsPerKWH,omitempty"`
	WeekendPeriod        RatePeriod `json:"weekendPeriod,omitempty" yaml:"weekendPeriod,omitempty"`

	// WeekendWindows take precedence over the flat weekend price.
	WeekendWindows []TimeWindow `json:"weekendWindows,omitempty" yaml:"weekendWindows,omitempty"`

	// Holidays are extra dates (YYYY-MM-DD) priced like weekends.
	Holidays        []string `json:"holidays,omitempty" yaml:"holidays,omitempty"`
	HolidayCalendar string   `json:"holidayCalendar,omitempty" yaml:"holidayCalendar,omitempty"`

	Export *ExportSchedule `json:"export,omitempty" yaml:"export,omitempty"`

	// OffsetCap is the maximum fraction of annual usage that solar and
	// storage combined may offset. Zero means uncapped.
	OffsetCap float64 `json:"offsetCap,omitempty" yaml:"offsetCap,omitempty"`
}

// TariffPlanInfo is the catalog listing entry for a plan.
type TariffPlanInfo struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Kind PlanKind `json:"kind"`
}
