package shape

import "github.com/abhisek/gradeproxy/internal/extract"

// Checker extracts and validates in one step.
type Checker struct {
	extractor *extract.Extractor
}

// NewChecker returns a Checker using e, or the default cascade when e is nil.
func NewChecker(e *extract.Extractor) *Checker {
	if e == nil {
		e = extract.New(extract.DefaultStrategies()...)
	}
	return &Checker{extractor: e}
}

// Check extracts a value from raw and validates it against c.
func (k *Checker) Check(raw string, c Contract) Outcome {
	v, strategy, _ := k.extractor.ExtractWithTrace(raw)
	out := Validate(v, raw, c)
	out.Strategy = strategy
	return out
}

// Extract runs only the extraction step.
func (k *Checker) Extract(raw string) (extract.Value, string, bool) {
	return k.extractor.ExtractWithTrace(raw)
}

var defaultChecker = NewChecker(nil)

// Check extracts and validates with the default cascade.
func Check(raw string, c Contract) Outcome {
	return defaultChecker.Check(raw, c)
}
