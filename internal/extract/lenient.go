package extract

import "github.com/kaptinlin/jsonrepair"

// LenientRepair is an optional last-resort strategy that runs a general
// JSON repairer over the text. It is not part of DefaultStrategies.
type LenientRepair struct{}

func (LenientRepair) Name() string { return "jsonrepair" }

func (LenientRepair) Extract(text string) (any, bool) {
	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return nil, false
	}
	return decodeContainer(repaired)
}

// NewLenient returns an Extractor running the default cascade followed by
// LenientRepair.
func NewLenient() *Extractor {
	return New(append(DefaultStrategies(), LenientRepair{})...)
}
