package powerflow

// Options carries the solve request parameters handed to the backend
// engine. The driver does not interpret Method; it is the engine's name
// for its iteration scheme.
type Options struct {
	Method        string  `json:"Method"`
	Tolerance     float64 `json:"Tolerance"`
	MaxIterations int     `json:"MaxIterations"`
	Retry         bool    `json:"Retry"`
}

// DefaultOptions returns the options used when a config leaves them
// unset.
func DefaultOptions() Options {
	return Options{
		Method:        "NR",
		Tolerance:     1e-6,
		MaxIterations: 25,
		Retry:         false,
	}
}

// withDefaults fills zero-valued fields from DefaultOptions.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Method == "" {
		o.Method = def.Method
	}
	if o.Tolerance == 0 {
		o.Tolerance = def.Tolerance
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = def.MaxIterations
	}
	return o
}
