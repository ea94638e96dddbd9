package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Document is the file form of a Schema.
//
//	fields:
//	  - name: page
//	    kind: number
//	    rules:
//	      - min: 1
//	      - int: true
//	  - name: q
//	    kind: string
//	    optional: true
//	    rules:
//	      - maxLength: 64
//
// JSON documents with the same shape are accepted too.
type Document struct {
	Fields []FieldDocument `yaml:"fields"`
}

// FieldDocument is the file form of a Field.
type FieldDocument struct {
	Name     string         `yaml:"name"`
	Kind     string         `yaml:"kind"`
	Optional bool           `yaml:"optional"`
	Coerce   bool           `yaml:"coerce"`
	Rules    []RuleDocument `yaml:"rules"`
}

// RuleDocument is the file form of one or more Rules. Every key that is
// set produces a rule, in the order the fields are declared here.
type RuleDocument struct {
	Min         *float64 `yaml:"min"`
	Max         *float64 `yaml:"max"`
	Int         bool     `yaml:"int"`
	Positive    bool     `yaml:"positive"`
	NonNegative bool     `yaml:"nonNegative"`
	MinLength   *int     `yaml:"minLength"`
	MaxLength   *int     `yaml:"maxLength"`
	Pattern     string   `yaml:"pattern"`
	OneOf       []string `yaml:"oneOf"`
	Email       bool     `yaml:"email"`
	UUID        bool     `yaml:"uuid"`
	URL         bool     `yaml:"url"`
	Message     string   `yaml:"message"`
}

// Parse decodes a YAML or JSON descriptor and builds the Schema.
// Unknown keys are rejected.
func Parse(data []byte) (*Schema, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoFields
		}
		return nil, fmt.Errorf("schema: decode descriptor: %w", err)
	}
	return doc.Build()
}

// Build converts the document into a Schema.
func (d Document) Build() (*Schema, error) {
	fields := make([]Field, 0, len(d.Fields))
	for i, fd := range d.Fields {
		f, err := fd.build()
		if err != nil {
			return nil, fmt.Errorf("schema: field %d (%q): %w", i, fd.Name, err)
		}
		fields = append(fields, f)
	}
	return New(fields...)
}

func (fd FieldDocument) build() (Field, error) {
	kind, err := ParseKind(fd.Kind)
	if err != nil {
		return Field{}, err
	}

	f := Field{Name: fd.Name, Kind: kind, optional: fd.Optional, coerce: fd.Coerce}
	for _, rd := range fd.Rules {
		rules, err := rd.build()
		if err != nil {
			return Field{}, err
		}
		f.Rules = append(f.Rules, rules...)
	}
	return f, nil
}

func (rd RuleDocument) build() ([]Rule, error) {
	msg := rd.Message
	var rules []Rule

	if rd.Min != nil {
		rules = append(rules, Min(*rd.Min, msg))
	}
	if rd.Max != nil {
		rules = append(rules, Max(*rd.Max, msg))
	}
	if rd.Int {
		rules = append(rules, Int(msg))
	}
	if rd.Positive {
		rules = append(rules, Positive(msg))
	}
	if rd.NonNegative {
		rules = append(rules, NonNegative(msg))
	}
	if rd.MinLength != nil {
		rules = append(rules, MinLength(*rd.MinLength, msg))
	}
	if rd.MaxLength != nil {
		rules = append(rules, MaxLength(*rd.MaxLength, msg))
	}
	if rd.Pattern != "" {
		r, err := PatternE(rd.Pattern, msg)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	if len(rd.OneOf) > 0 {
		rules = append(rules, OneOf(rd.OneOf, msg))
	}
	if rd.Email {
		rules = append(rules, Email(msg))
	}
	if rd.UUID {
		rules = append(rules, UUID(msg))
	}
	if rd.URL {
		rules = append(rules, URL(msg))
	}

	if len(rules) == 0 {
		return nil, errors.New("empty rule")
	}
	return rules, nil
}
