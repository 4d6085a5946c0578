package types

import "time"

// Assumptions are the financial inputs of a multi-year projection.
type Assumptions struct {
	// EscalationRate is the annual growth of utility rates, e.g. 0.03.
	EscalationRate float64 `json:"escalationRate" yaml:"escalationRate"`
	// DegradationRate is the annual loss of system output, e.g. 0.005.
	DegradationRate float64 `json:"degradationRate" yaml:"degradationRate"`
	HorizonYears    int     `json:"horizonYears" yaml:"horizonYears"`

	// NetSystemCost is the installed cost after incentives.
	NetSystemCost float64 `json:"netSystemCost" yaml:"netSystemCost"`

	// BaselineAnnualBill and SavingsCap bound yearly savings to a fraction of
	// the escalating bill. Both must be set for the cap to apply.
	BaselineAnnualBill float64 `json:"baselineAnnualBill,omitempty" yaml:"baselineAnnualBill,omitempty"`
	SavingsCap         float64 `json:"savingsCap,omitempty" yaml:"savingsCap,omitempty"`

	// OffsetCap overrides the plan's offset cap when set.
	OffsetCap float64 `json:"offsetCap,omitempty" yaml:"offsetCap,omitempty"`
}

// ProjectionYear is one year of a savings projection.
type ProjectionYear struct {
	Year                  int     `json:"year"`
	RateMultiplier        float64 `json:"rateMultiplier"`
	DegradationMultiplier float64 `json:"degradationMultiplier"`
	Savings               float64 `json:"savings"`
	CumulativeSavings     float64 `json:"cumulativeSavings"`
	Capped                bool    `json:"capped"`
}

// CreditLedgerEntry is a net-metering credit generated in a month.
type CreditLedgerEntry struct {
	Month  time.Time `json:"month"`
	Amount float64   `json:"amount"`
}
