package tariff

import (
	"github.com/raterudder/payback/pkg/types"
)

const (
	PlanTOU    = "ontario-tou"
	PlanULO    = "ontario-ulo"
	PlanTiered = "ontario-tiered"
)

func ptr(v float64) *float64 {
	return &v
}

// Builtin returns the plans that ship with the binary. A fresh copy is
// returned every call.
func Builtin() []types.TariffPlan {
	return []types.TariffPlan{
		{
			ID:              PlanTOU,
			Name:            "Ontario Time-of-Use",
			Kind:            types.PlanKindTOU,
			Location:        "America/Toronto",
			HolidayCalendar: CalendarOntario,
			Windows: []types.TimeWindow{
				{HourStart: 19, HourEnd: 7, DollarsPerKWH: 0.076, Period: types.RatePeriodOffPeak, Description: "Off-Peak"},
				{HourStart: 7, HourEnd: 11, DollarsPerKWH: 0.122, Period: types.RatePeriodMidPeak, Description: "Morning Mid-Peak"},
				{HourStart: 11, HourEnd: 17, DollarsPerKWH: 0.158, Period: types.RatePeriodOnPeak, Description: "On-Peak"},
				{HourStart: 17, HourEnd: 19, DollarsPerKWH: 0.122, Period: types.RatePeriodMidPeak, Description: "Evening Mid-Peak"},
			},
			WeekendDollarsPerKWH: ptr(0.076),
			WeekendPeriod:        types.RatePeriodOffPeak,
			OffsetCap:            0.93,
		},
		{
			ID:              PlanULO,
			Name:            "Ontario Ultra-Low Overnight",
			Kind:            types.PlanKindULO,
			Location:        "America/Toronto",
			HolidayCalendar: CalendarOntario,
			Windows: []types.TimeWindow{
				{HourStart: 23, HourEnd: 7, DollarsPerKWH: 0.028, Period: types.RatePeriodUltraLow, Description: "Ultra-Low Overnight"},
				{HourStart: 7, HourEnd: 16, DollarsPerKWH: 0.122, Period: types.RatePeriodMidPeak, Description: "Mid-Peak"},
				{HourStart: 16, HourEnd: 21, DollarsPerKWH: 0.284, Period: types.RatePeriodOnPeak, Description: "On-Peak"},
				{HourStart: 21, HourEnd: 23, DollarsPerKWH: 0.122, Period: types.RatePeriodMidPeak, Description: "Mid-Peak"},
			},
			WeekendWindows: []types.TimeWindow{
				{HourStart: 23, HourEnd: 7, DollarsPerKWH: 0.028, Period: types.RatePeriodUltraLow, Description: "Ultra-Low Overnight"},
				{HourStart: 7, HourEnd: 23, DollarsPerKWH: 0.076, Period: types.RatePeriodOffPeak, Description: "Weekend Off-Peak"},
			},
			OffsetCap: 0.93,
		},
		{
			ID:       PlanTiered,
			Name:     "Ontario Tiered",
			Kind:     types.PlanKindFlat,
			Location: "America/Toronto",
			Windows: []types.TimeWindow{
				{HourStart: 0, HourEnd: 0, DollarsPerKWH: 0.093, Period: types.RatePeriodOffPeak, Description: "Tiered"},
			},
			OffsetCap: 0.93,
		},
	}
}
