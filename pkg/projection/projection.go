// Package projection extends first-year savings into a multi-year forecast.
package projection

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/raterudder/payback/pkg/ceiling"
	"github.com/raterudder/payback/pkg/types"
)

// DefaultHorizonYears is the usual life of a residential solar system.
const DefaultHorizonYears = 25

// ErrInvalidInput is returned for assumptions outside their valid range.
var ErrInvalidInput = errors.New("invalid projection input")

// Input is the first-year result plus the assumptions to project it with.
type Input struct {
	FirstYearSavings float64
	types.Assumptions
}

// Result is a full projection.
type Result struct {
	Years []types.ProjectionYear `json:"years"`
	// PaybackYears is +Inf when the system never pays for itself within the
	// horizon. It is encoded as null in JSON.
	PaybackYears float64 `json:"-"`
	TotalSavings float64 `json:"totalSavings"`
	NetProfit    float64 `json:"netProfit"`
	// ROI is net profit over system cost as a percentage, zero when the
	// cost is not positive.
	ROI float64 `json:"roi"`
}

// PaybackReached returns true if the system pays for itself within the
// horizon.
func (r *Result) PaybackReached() bool {
	return !math.IsInf(r.PaybackYears, 1)
}

type resultJSON struct {
	Years        []types.ProjectionYear `json:"years"`
	PaybackYears *float64               `json:"paybackYears"`
	TotalSavings float64                `json:"totalSavings"`
	NetProfit    float64                `json:"netProfit"`
	ROI          float64                `json:"roi"`
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Years:        r.Years,
		TotalSavings: r.TotalSavings,
		NetProfit:    r.NetProfit,
		ROI:          r.ROI,
	}
	if r.PaybackReached() {
		out.PaybackYears = &r.PaybackYears
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Result) UnmarshalJSON(b []byte) error {
	var in resultJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*r = Result{
		Years:        in.Years,
		PaybackYears: math.Inf(1),
		TotalSavings: in.TotalSavings,
		NetProfit:    in.NetProfit,
		ROI:          in.ROI,
	}
	if in.PaybackYears != nil {
		r.PaybackYears = *in.PaybackYears
	}
	return nil
}

// Validate checks that the assumptions are usable.
func (in Input) Validate() error {
	var errs []error
	if in.HorizonYears <= 0 {
		errs = append(errs, fmt.Errorf("horizon must be positive: %d", in.HorizonYears))
	}
	if in.EscalationRate <= -1 || math.IsNaN(in.EscalationRate) {
		errs = append(errs, fmt.Errorf("escalation rate must be above -1: %f", in.EscalationRate))
	}
	if in.DegradationRate < 0 || in.DegradationRate >= 1 || math.IsNaN(in.DegradationRate) {
		errs = append(errs, fmt.Errorf("degradation rate must be in [0, 1): %f", in.DegradationRate))
	}
	if in.SavingsCap < 0 || in.SavingsCap > 1 {
		errs = append(errs, fmt.Errorf("savings cap must be in [0, 1]: %f", in.SavingsCap))
	}
	if in.BaselineAnnualBill < 0 {
		errs = append(errs, fmt.Errorf("baseline bill must not be negative: %f", in.BaselineAnnualBill))
	}
	if math.IsNaN(in.FirstYearSavings) || math.IsInf(in.FirstYearSavings, 0) {
		errs = append(errs, fmt.Errorf("first year savings must be finite: %f", in.FirstYearSavings))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

// Project computes yearly savings growing with rates and shrinking with
// degradation. When both a baseline bill and a savings cap are set, each
// year's savings is limited to that fraction of the escalated bill. Payback
// is interpolated within the year cumulative savings first reaches the net
// system cost.
func Project(in Input) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	res := &Result{
		Years:        make([]types.ProjectionYear, 0, in.HorizonYears),
		PaybackYears: math.Inf(1),
	}
	if in.NetSystemCost <= 0 {
		res.PaybackYears = 0
	}
	capped := in.BaselineAnnualBill > 0 && in.SavingsCap > 0

	var cumulative float64
	for y := 1; y <= in.HorizonYears; y++ {
		py := types.ProjectionYear{
			Year:                  y,
			RateMultiplier:        math.Pow(1+in.EscalationRate, float64(y-1)),
			DegradationMultiplier: math.Pow(1-in.DegradationRate, float64(y-1)),
		}
		savings := math.Max(0, in.FirstYearSavings*py.RateMultiplier*py.DegradationMultiplier)
		if capped {
			c := ceiling.Scale(0, savings, in.BaselineAnnualBill*py.RateMultiplier*in.SavingsCap)
			savings = c.Scalable
			py.Capped = c.Scaled
		}
		py.Savings = savings

		prev := cumulative
		cumulative += savings
		py.CumulativeSavings = cumulative
		if !res.PaybackReached() && savings > 0 && cumulative >= in.NetSystemCost {
			res.PaybackYears = float64(y-1) + (in.NetSystemCost-prev)/savings
		}
		res.Years = append(res.Years, py)
	}

	res.TotalSavings = cumulative
	res.NetProfit = cumulative - in.NetSystemCost
	if in.NetSystemCost > 0 {
		res.ROI = res.NetProfit / in.NetSystemCost * 100
	}
	return res, nil
}
