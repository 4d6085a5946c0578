package types

import "time"

// EdgeCase classifies the relationship between usage and the combined
// solar plus battery capacity of a scenario.
type EdgeCase string

const (
	EdgeCaseNone              EdgeCase = "none"
	EdgeCaseUsageDominates    EdgeCase = "usageDominates"
	EdgeCaseCapacityDominates EdgeCase = "capacityDominates"
)

// HourTrace is the state of the battery and grid in a single simulated hour.
type HourTrace struct {
	TS     time.Time  `json:"ts"`
	Period RatePeriod `json:"period"`
	Price  float64    `json:"price"`

	LoadKWH  float64 `json:"loadKWH"`
	SolarKWH float64 `json:"solarKWH"`
	GridKWH  float64 `json:"gridKWH"`

	SolarChargeKWH float64 `json:"solarChargeKWH"`
	GridChargeKWH  float64 `json:"gridChargeKWH"`
	DischargeKWH   float64 `json:"dischargeKWH"`
	SOCKWH         float64 `json:"socKWH"`

	Charging    bool `json:"charging"`
	Discharging bool `json:"discharging"`
}

// DayTrace summarizes the battery activity on a single calendar day.
type DayTrace struct {
	Date         time.Time `json:"date"`
	ChargeKWH    float64   `json:"chargeKWH"`
	DischargeKWH float64   `json:"dischargeKWH"`
	Savings      float64   `json:"savings"`
}

// DispatchResult is the outcome of allocating a year of load between the grid,
// solar and the battery.
type DispatchResult struct {
	Strategy string `json:"strategy"`

	LoadKWH        map[RatePeriod]float64 `json:"loadKWH"`
	GridKWH        map[RatePeriod]float64 `json:"gridKWH"`
	SolarOffsetKWH map[RatePeriod]float64 `json:"solarOffsetKWH"`
	BatteryKWH     map[RatePeriod]float64 `json:"batteryKWH"`

	ChargedFromSolarKWH float64 `json:"chargedFromSolarKWH"`
	ChargedFromGridKWH  float64 `json:"chargedFromGridKWH"`
	ChargingCost        float64 `json:"chargingCost"`

	EdgeCase               EdgeCase `json:"edgeCase"`
	ThroughputBudgetKWH    float64  `json:"throughputBudgetKWH"`
	EffectiveThroughputKWH float64  `json:"effectiveThroughputKWH"`
	EffectiveCyclesPerYear float64  `json:"effectiveCyclesPerYear"`
	UnusedSolarKWH         float64  `json:"unusedSolarKWH"`
	OffsetCapped           bool     `json:"offsetCapped"`

	CostBefore     float64 `json:"costBefore"`
	CostAfterSolar float64 `json:"costAfterSolar"`
	CostAfter      float64 `json:"costAfter"`
	Savings        float64 `json:"savings"`
	SavingsPercent float64 `json:"savingsPercent"`

	ActiveDays int         `json:"activeDays"`
	Hours      []HourTrace `json:"hours,omitempty"`
	Days       []DayTrace  `json:"days,omitempty"`
}

// TotalDischargeKWH returns the energy delivered by the battery.
func (r *DispatchResult) TotalDischargeKWH() float64 {
	var total float64
	for _, v := range r.BatteryKWH {
		total += v
	}
	return total
}

// TotalSolarOffsetKWH returns the solar energy used directly by the home.
func (r *DispatchResult) TotalSolarOffsetKWH() float64 {
	var total float64
	for _, v := range r.SolarOffsetKWH {
		total += v
	}
	return total
}
