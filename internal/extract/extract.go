// Package extract pulls a JSON object or array out of free-form model output.
//
// Extraction never fails with an error. Text that holds no recoverable
// structure yields a zero Value and false.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// Kind identifies the container shape of an extracted Value.
type Kind int

const (
	// KindNone is the zero Kind: nothing was extracted.
	KindNone Kind = iota
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "none"
	}
}

// Value is an extracted JSON object or array. Numbers are held as
// json.Number so the value re-serialises without precision loss.
type Value struct {
	raw any
}

// NewValue wraps a decoded JSON value. Anything other than an object or
// array produces the zero Value.
func NewValue(v any) Value {
	switch v.(type) {
	case map[string]any, []any:
		return Value{raw: v}
	}
	return Value{}
}

// Kind reports the container shape.
func (v Value) Kind() Kind {
	switch v.raw.(type) {
	case map[string]any:
		return KindObject
	case []any:
		return KindArray
	}
	return KindNone
}

// IsZero reports whether nothing was extracted.
func (v Value) IsZero() bool { return v.raw == nil }

// Object returns the underlying map when the value is an object.
func (v Value) Object() (map[string]any, bool) {
	m, ok := v.raw.(map[string]any)
	return m, ok
}

// Array returns the underlying slice when the value is an array.
func (v Value) Array() ([]any, bool) {
	a, ok := v.raw.([]any)
	return a, ok
}

// Raw returns the decoded value (map[string]any, []any or nil).
func (v Value) Raw() any { return v.raw }

// MarshalJSON encodes the underlying value; the zero Value encodes as null.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw)
}

// Strategy is one step of the extraction cascade.
type Strategy interface {
	// Name is a short identifier used in logs, e.g. "direct" or "fenced".
	Name() string

	// Extract returns the decoded container or false. Implementations
	// must not panic on any input.
	Extract(text string) (any, bool)
}

// Extractor runs an ordered list of strategies and returns the first
// success. The zero Extractor uses DefaultStrategies.
type Extractor struct {
	strategies []Strategy
}

// New creates an Extractor over the given strategies, in order.
func New(strategies ...Strategy) *Extractor {
	return &Extractor{strategies: strategies}
}

// DefaultStrategies returns the standard five-step cascade.
func DefaultStrategies() []Strategy {
	return []Strategy{
		directParse{},
		fencedBlock{},
		arrayScan{},
		objectScan{},
		trailingCommaRepair{},
	}
}

var defaultExtractor = New(DefaultStrategies()...)

// Extract runs the default cascade over text.
func Extract(text string) (Value, bool) {
	return defaultExtractor.Extract(text)
}

// Extract runs the cascade and returns the first extracted value.
func (e *Extractor) Extract(text string) (Value, bool) {
	v, _, ok := e.ExtractWithTrace(text)
	return v, ok
}

// ExtractWithTrace is Extract that also reports the name of the strategy
// that produced the value. The name is empty when nothing was found.
func (e *Extractor) ExtractWithTrace(text string) (Value, string, bool) {
	strategies := e.strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	for _, s := range strategies {
		raw, ok := safeExtract(s, text)
		if !ok {
			continue
		}
		if v := NewValue(raw); !v.IsZero() {
			return v, s.Name(), true
		}
	}
	return Value{}, "", false
}

// Strategies returns the names of the configured strategies in order.
func (e *Extractor) Strategies() []string {
	strategies := e.strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.Name()
	}
	return names
}

func safeExtract(s Strategy, text string) (v any, ok bool) {
	defer func() {
		if recover() != nil {
			v, ok = nil, false
		}
	}()
	return s.Extract(text)
}

// decodeContainer parses text as exactly one JSON value. Leading and
// trailing whitespace is allowed; any other trailing data is rejected.
// Only objects and arrays are accepted.
func decodeContainer(text string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false
	}

	switch v.(type) {
	case map[string]any, []any:
		return v, true
	}
	return nil, false
}

// Decode parses b as a single JSON object or array using the same rules
// as the direct-parse strategy.
func Decode(b []byte) (Value, bool) {
	raw, ok := decodeContainer(string(bytes.TrimSpace(b)))
	if !ok {
		return Value{}, false
	}
	return NewValue(raw), true
}
