package grid

import "time"

// Profile is a fixed-step time series applied to a device setpoint.
type Profile struct {
	Start  time.Time     `json:"Start"`
	Step   time.Duration `json:"Step"`
	Values []float64     `json:"Values"`
}

// Len returns the number of steps in the profile.
func (p *Profile) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Values)
}

// Value returns the profile value at step i. Indices beyond the series
// hold the last value, matching device behavior between updates.
func (p *Profile) Value(i int) float64 {
	if p == nil || len(p.Values) == 0 {
		return 0
	}
	if i < 0 {
		i = 0
	}
	if i >= len(p.Values) {
		i = len(p.Values) - 1
	}
	return p.Values[i]
}

// Time returns the timestamp of step i.
func (p *Profile) Time(i int) time.Time {
	return p.Start.Add(time.Duration(i) * p.Step)
}
