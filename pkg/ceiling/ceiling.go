// Package ceiling scales quantities down so their sum respects a limit.
package ceiling

// Result is the outcome of Scale.
type Result struct {
	Fixed    float64 `json:"fixed"`
	Scalable float64 `json:"scalable"`
	// Factor is the multiplier applied to the scalable part.
	Factor float64 `json:"factor"`
	// Scaled is true if anything was reduced.
	Scaled bool `json:"scaled"`
}

// Total returns the sum of both parts.
func (r Result) Total() float64 {
	return r.Fixed + r.Scalable
}

// Scale reduces scalable so that fixed + scalable does not exceed ceiling.
// The fixed part is only trimmed when it alone is above the ceiling, in which
// case the scalable part is dropped entirely. A negative ceiling is treated
// as zero.
func Scale(fixed, scalable, ceiling float64) Result {
	if ceiling < 0 {
		ceiling = 0
	}
	if fixed+scalable <= ceiling {
		return Result{Fixed: fixed, Scalable: scalable, Factor: 1}
	}
	if fixed >= ceiling {
		return Result{Fixed: ceiling, Scalable: 0, Factor: 0, Scaled: true}
	}
	scaled := ceiling - fixed
	return Result{
		Fixed:    fixed,
		Scalable: scaled,
		Factor:   scaled / scalable,
		Scaled:   true,
	}
}
