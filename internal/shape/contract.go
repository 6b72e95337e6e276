// Package shape validates extracted model output against the structure a
// call site expects.
package shape

import "fmt"

// Kind is the container shape a Contract expects.
type Kind int

const (
	KindObject Kind = iota
	KindArray
)

func (k Kind) String() string {
	if k == KindArray {
		return "array"
	}
	return "object"
}

// FieldType is the primitive type a required field must hold.
type FieldType int

const (
	// Any only requires the field to be present.
	Any FieldType = iota
	String
	Number
	Boolean
)

func (t FieldType) String() string {
	switch t {
	case String:
		return "string"
	case Number:
		return "number"
	case Boolean:
		return "boolean"
	default:
		return "any"
	}
}

// Field is a required key and its expected type.
type Field struct {
	Name string
	Type FieldType
}

// Contract describes what a valid result must contain. Contracts are
// plain values declared once per call site and never modified.
type Contract struct {
	// Name identifies the contract in logs and keys the schema cache.
	Name string

	Kind Kind

	// Required lists the keys an object (or each array element) must
	// carry, checked in order.
	Required []Field

	// Defaults are copied into a valid result for every key it lacks.
	Defaults map[string]any

	// Count is the exact number of elements an array must hold, unless
	// AnyCount is set.
	Count    int
	AnyCount bool

	// Element is the contract applied to every array element, including
	// its own kind, nested element contract and schema.
	Element *Contract

	// Schema is an optional JSON Schema checked after the field rules.
	Schema map[string]any
}

// Object builds an object contract.
func Object(name string, required ...Field) Contract {
	return Contract{Name: name, Kind: KindObject, Required: required}
}

// ArrayOf builds an array contract requiring exactly n elements.
func ArrayOf(name string, elem Contract, n int) Contract {
	return Contract{Name: name, Kind: KindArray, Count: n, Element: &elem}
}

// ArrayOfAny builds an array contract with no length requirement.
func ArrayOfAny(name string, elem Contract) Contract {
	return Contract{Name: name, Kind: KindArray, AnyCount: true, Element: &elem}
}

// WithDefaults returns a copy of c with the given back-fill table.
func (c Contract) WithDefaults(defaults map[string]any) Contract {
	c.Defaults = defaults
	return c
}

// WithSchema returns a copy of c carrying a JSON Schema for deep checks.
func (c Contract) WithSchema(schema map[string]any) Contract {
	c.Schema = schema
	return c
}

// Str, Num and Bool are shorthands for typed required fields.
func Str(name string) Field { return Field{Name: name, Type: String} }
func Num(name string) Field { return Field{Name: name, Type: Number} }
func Bool(name string) Field { return Field{Name: name, Type: Boolean} }

// Key requires a field without checking its type.
func Key(name string) Field { return Field{Name: name, Type: Any} }

func (c Contract) String() string {
	if c.Kind == KindArray {
		if c.AnyCount {
			return fmt.Sprintf("%s: array", c.Name)
		}
		return fmt.Sprintf("%s: array[%d]", c.Name, c.Count)
	}
	return fmt.Sprintf("%s: object", c.Name)
}
