package store

import (
	"encoding/json"
	"fmt"
)

// DefaultKind classifies a column default after normalization.
type DefaultKind int

const (
	DefaultNone DefaultKind = iota
	DefaultLiteral
	DefaultExpression
	DefaultNull
	DefaultAutoIncrement
)

// AutoIncrementMarker is the canonical text of an auto-increment default.
const AutoIncrementMarker = "AUTO_INCREMENT"

// NullMarker is the canonical text of an explicit NULL default.
const NullMarker = "NULL"

func (k DefaultKind) String() string {
	switch k {
	case DefaultLiteral:
		return "literal"
	case DefaultExpression:
		return "expression"
	case DefaultNull:
		return "null"
	case DefaultAutoIncrement:
		return "auto_increment"
	default:
		return "none"
	}
}

// DefaultValue is the canonical default descriptor of a column.
type DefaultValue struct {
	Kind  DefaultKind
	Value string
}

// Literal returns a literal default.
func Literal(v string) DefaultValue { return DefaultValue{Kind: DefaultLiteral, Value: v} }

// Expression returns an expression default emitted verbatim.
func Expression(v string) DefaultValue { return DefaultValue{Kind: DefaultExpression, Value: v} }

// Null returns the explicit NULL default.
func Null() DefaultValue { return DefaultValue{Kind: DefaultNull, Value: NullMarker} }

// AutoIncrement returns the auto-increment marker default.
func AutoIncrement() DefaultValue {
	return DefaultValue{Kind: DefaultAutoIncrement, Value: AutoIncrementMarker}
}

// IsZero reports whether the column has no default.
func (d DefaultValue) IsZero() bool { return d.Kind == DefaultNone }

// String renders the canonical default text; empty when there is no default.
func (d DefaultValue) String() string {
	switch d.Kind {
	case DefaultNone:
		return ""
	case DefaultNull:
		return NullMarker
	case DefaultAutoIncrement:
		return AutoIncrementMarker
	default:
		return d.Value
	}
}

type defaultJSON struct {
	Kind  string `json:"kind" yaml:"kind"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

func (d DefaultValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(defaultJSON{Kind: d.Kind.String(), Value: d.String()})
}

func (d *DefaultValue) UnmarshalJSON(b []byte) error {
	var raw defaultJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	return d.decode(raw)
}

// MarshalYAML implements yaml.Marshaler.
func (d DefaultValue) MarshalYAML() (any, error) {
	return defaultJSON{Kind: d.Kind.String(), Value: d.String()}, nil
}

func (d *DefaultValue) decode(raw defaultJSON) error {
	switch raw.Kind {
	case "", "none":
		*d = DefaultValue{}
	case "literal":
		*d = Literal(raw.Value)
	case "expression":
		*d = Expression(raw.Value)
	case "null":
		*d = Null()
	case "auto_increment":
		*d = AutoIncrement()
	default:
		return fmt.Errorf("unknown default kind %q", raw.Kind)
	}
	return nil
}
