// Package schema describes the typed shape of a query string.
//
// A Schema is an explicit, ordered list of fields. Each field has a name, a
// primitive Kind, an optional flag and a list of Rules. Schemas are built
// once, either in code:
//
//	s := schema.MustNew(
//	    schema.Number("page", schema.Min(1, ""), schema.Int("")),
//	    schema.String("q").Optional(),
//	)
//
// or from a YAML/JSON descriptor with Parse.
//
// Coerce converts raw query values to the kind each field declares, and
// Field.Validate checks a single value. The strategies that combine the two
// (whole-object or per-field) live in package validate.
package schema

import (
	"errors"
	"fmt"
	"math"
)

// Kind is the primitive type a field holds after coercion.
type Kind int

const (
	// KindString fields hold the raw query value.
	KindString Kind = iota

	// KindNumber fields hold a finite float64.
	KindNumber

	// KindBoolean fields hold a bool.
	KindBoolean
)

// String returns the kind name used in descriptors and messages.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	default:
		return "string"
	}
}

// ParseKind parses a descriptor kind name.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "string", "":
		return KindString, nil
	case "number":
		return KindNumber, nil
	case "boolean", "bool":
		return KindBoolean, nil
	default:
		return KindString, fmt.Errorf("schema: unknown kind %q", s)
	}
}

// Field declares one query parameter.
type Field struct {
	Name  string
	Kind  Kind
	Rules []Rule

	optional bool
	coerce   bool
}

// String declares a string field.
func String(name string, rules ...Rule) Field {
	return Field{Name: name, Kind: KindString, Rules: rules}
}

// Number declares a numeric field. Raw values are always converted to
// float64 before validation.
func Number(name string, rules ...Rule) Field {
	return Field{Name: name, Kind: KindNumber, Rules: rules}
}

// Boolean declares a boolean field. Raw values stay strings, and so fail
// validation, unless the field is marked Coerced.
func Boolean(name string, rules ...Rule) Field {
	return Field{Name: name, Kind: KindBoolean, Rules: rules}
}

// Optional returns a copy of f that may be missing in strict mode.
func (f Field) Optional() Field {
	f.optional = true
	return f
}

// Coerced returns a copy of f whose raw value is converted to its kind
// even where the kind is not converted by default (booleans).
func (f Field) Coerced() Field {
	f.coerce = true
	return f
}

// IsOptional reports whether the field may be missing.
func (f Field) IsOptional() bool { return f.optional }

// IsCoerced reports whether Coerced was applied.
func (f Field) IsCoerced() bool { return f.coerce }

// Validate checks value against the field's kind and rules, returning the
// validated value.
func (f Field) Validate(value any) (any, error) {
	v, err := f.checkKind(value)
	if err != nil {
		return nil, err
	}
	for _, r := range f.Rules {
		if r == nil {
			continue
		}
		if err := r.Check(v); err != nil {
			return nil, withField(err, f.Name)
		}
	}
	return v, nil
}

func (f Field) checkKind(value any) (any, error) {
	switch f.Kind {
	case KindNumber:
		n, ok := asFloat(value)
		if !ok {
			return nil, RuleError{Field: f.Name, Message: fmt.Sprintf("Expected number, received %s", typeName(value))}
		}
		if math.IsNaN(n) {
			return nil, RuleError{Field: f.Name, Message: "Expected number, received nan"}
		}
		if math.IsInf(n, 0) {
			return nil, RuleError{Field: f.Name, Message: "Number must be finite"}
		}
		return n, nil
	case KindBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, RuleError{Field: f.Name, Message: fmt.Sprintf("Expected boolean, received %s", typeName(value))}
		}
		return b, nil
	default:
		s, ok := value.(string)
		if !ok {
			return nil, RuleError{Field: f.Name, Message: fmt.Sprintf("Expected string, received %s", typeName(value))}
		}
		return s, nil
	}
}

// Schema is an ordered, immutable list of fields plus optional
// object-level refinements.
type Schema struct {
	fields  []Field
	index   map[string]int
	refines []func(values map[string]any) error
}

// Errors returned by New.
var (
	ErrNoFields       = errors.New("schema: no fields declared")
	ErrEmptyFieldName = errors.New("schema: empty field name")
	ErrDuplicateField = errors.New("schema: duplicate field")
)

// New builds a Schema from fields, keeping their order.
func New(fields ...Field) (*Schema, error) {
	if len(fields) == 0 {
		return nil, ErrNoFields
	}

	s := &Schema{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, ErrEmptyFieldName
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateField, f.Name)
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustNew is like New but panics on error.
func MustNew(fields ...Field) *Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Refine adds an object-level check that runs after every field passed.
// Only whole-object validation consults refinements. It returns s.
func (s *Schema) Refine(fn func(values map[string]any) error) *Schema {
	if fn != nil {
		s.refines = append(s.refines, fn)
	}
	return s
}

// CheckObject runs the refinements against values and returns the first
// failure.
func (s *Schema) CheckObject(values map[string]any) error {
	for _, fn := range s.refines {
		if err := fn(values); err != nil {
			return err
		}
	}
	return nil
}

// Fields returns the declared fields in order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Names returns the declared field names in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Len returns the number of declared fields.
func (s *Schema) Len() int {
	return len(s.fields)
}

func typeName(v any) string {
	switch x := v.(type) {
	case nil:
		return "undefined"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		if math.IsNaN(x) {
			return "nan"
		}
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
