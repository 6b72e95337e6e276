package shape

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/abhisek/gradeproxy/internal/extract"
)

// Code classifies why a value failed its contract.
type Code string

const (
	NoStructureFound Code = "no_structure_found"
	ShapeMismatch    Code = "shape_mismatch"
	CountMismatch    Code = "count_mismatch"
	MissingField     Code = "missing_field"
	TypeMismatch     Code = "type_mismatch"
	SchemaViolation  Code = "schema_violation"
)

// Failure describes an invalid result. It carries the raw model text so
// callers can surface what the model actually said.
type Failure struct {
	Code   Code
	Reason string
	Field  string // offending key, if any
	Index  int    // offending array element, or -1
	Raw    string
}

func (f *Failure) Error() string { return f.Reason }

// Outcome is the result of validation: either a valid Value or a Failure.
type Outcome struct {
	Value   extract.Value
	Failure *Failure

	// Strategy names the extraction step that produced the value. Set by
	// Check; empty after Validate.
	Strategy string
}

// Valid reports whether the value satisfied its contract.
func (o Outcome) Valid() bool { return o.Failure == nil }

// Reason returns the failure reason, or "" for a valid outcome.
func (o Outcome) Reason() string {
	if o.Failure == nil {
		return ""
	}
	return o.Failure.Reason
}

func invalid(code Code, raw, reason string) Outcome {
	return Outcome{Failure: &Failure{Code: code, Reason: reason, Index: -1, Raw: raw}}
}

// Validate checks v against c. A zero v means nothing was extracted.
// v is never modified; a valid outcome holds a copy with defaults applied.
func Validate(v extract.Value, raw string, c Contract) Outcome {
	if v.IsZero() {
		return invalid(NoStructureFound, raw, "no parseable structure")
	}

	var out Outcome
	switch c.Kind {
	case KindArray:
		out = validateArray(v, raw, c)
	default:
		out = validateObject(v, raw, c)
	}
	if !out.Valid() {
		return out
	}

	if c.Schema != nil {
		if err := validateSchema(c, v.Raw()); err != nil {
			return invalid(SchemaViolation, raw, "schema violation: "+err.Error())
		}
	}
	return out
}

func validateObject(v extract.Value, raw string, c Contract) Outcome {
	obj, ok := v.Object()
	if !ok {
		return invalid(ShapeMismatch, raw, "shape mismatch: expected object")
	}
	if f := checkFields(obj, c.Required); f != nil {
		f.Raw = raw
		return Outcome{Failure: f}
	}
	return Outcome{Value: extract.NewValue(withDefaults(obj, c.Defaults))}
}

func validateArray(v extract.Value, raw string, c Contract) Outcome {
	arr, ok := v.Array()
	if !ok {
		if c.AnyCount {
			return invalid(ShapeMismatch, raw, "shape mismatch: expected array")
		}
		return invalid(ShapeMismatch, raw, countReason(c.Count, 0))
	}
	if !c.AnyCount && len(arr) != c.Count {
		return invalid(CountMismatch, raw, countReason(c.Count, len(arr)))
	}

	if c.Element == nil {
		return Outcome{Value: extract.NewValue(append([]any{}, arr...))}
	}

	filled := make([]any, len(arr))
	for i, el := range arr {
		out := validateElement(el, *c.Element)
		if !out.Valid() {
			return Outcome{Failure: annotate(out.Failure, i, raw)}
		}
		filled[i] = out.Value.Raw()
	}
	return Outcome{Value: extract.NewValue(filled)}
}

// validateElement applies the full element contract, including its kind,
// nested element contract and schema, to one array element.
func validateElement(el any, c Contract) Outcome {
	v := extract.NewValue(el)
	if v.IsZero() {
		return invalid(ShapeMismatch, "", "shape mismatch: expected "+c.Kind.String())
	}
	return Validate(v, "", c)
}

func countReason(want, got int) string {
	return fmt.Sprintf("element count mismatch: expected %d, got %d", want, got)
}

func annotate(f *Failure, i int, raw string) *Failure {
	f.Index = i
	f.Reason = fmt.Sprintf("element %d: %s", i, f.Reason)
	f.Raw = raw
	return f
}

// checkFields applies presence then type rules, each in contract order.
func checkFields(obj map[string]any, required []Field) *Failure {
	for _, field := range required {
		if _, ok := obj[field.Name]; !ok {
			return &Failure{
				Code:   MissingField,
				Reason: "missing required field: " + field.Name,
				Field:  field.Name,
				Index:  -1,
			}
		}
	}
	for _, field := range required {
		if !hasType(obj[field.Name], field.Type) {
			return &Failure{
				Code:   TypeMismatch,
				Reason: "type mismatch for field " + field.Name,
				Field:  field.Name,
				Index:  -1,
			}
		}
	}
	return nil
}

func hasType(v any, t FieldType) bool {
	switch t {
	case String:
		_, ok := v.(string)
		return ok
	case Number:
		switch v.(type) {
		case json.Number, float64, float32, int, int64, int32:
			return true
		}
		return false
	case Boolean:
		_, ok := v.(bool)
		return ok
	default:
		return true
	}
}

func withDefaults(obj map[string]any, defaults map[string]any) map[string]any {
	out := maps.Clone(obj)
	if out == nil {
		out = map[string]any{}
	}
	for k, d := range defaults {
		if _, ok := out[k]; !ok {
			out[k] = d
		}
	}
	return out
}
