// Package validate turns a decoded query mapping into validated data.
//
// Two strategies are available:
//
//   - Pick (default): every field is validated on its own. Valid fields are
//     kept, invalid ones are left absent, and the error flag is raised if
//     any field failed. Missing fields are skipped.
//   - Strict: the coerced fields are validated as one object, including
//     required-field checks and schema refinements. Any failure discards
//     the whole result: every field is absent and the error flag is set.
//
// Without a schema, validation is skipped: the raw mapping is returned as
// strings and the error flag is never set.
package validate

import (
	"fmt"

	"github.com/vango-dev/queryguard/pkg/querycodec"
	"github.com/vango-dev/queryguard/pkg/schema"
)

// Mode selects the validation strategy.
type Mode int

const (
	// Pick validates each field independently (default).
	Pick Mode = iota

	// Strict validates the whole object at once.
	Strict
)

// String returns "pick" or "strict".
func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "pick"
}

// ParseMode parses "pick", "strict" or "" (pick).
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "pick":
		return Pick, nil
	case "strict":
		return Strict, nil
	default:
		return Pick, fmt.Errorf("validate: unknown mode %q", s)
	}
}

// Issue describes one validation failure.
type Issue struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Result is the outcome of Run.
type Result struct {
	// Data holds every declared field (absent ones are nil), or every raw
	// key when there is no schema.
	Data Data

	// Err is true iff the strategy reported any failure.
	Err bool

	// Issues lists the failures behind Err.
	Issues []Issue
}

// Run validates raw against s using mode. It never panics: a panicking
// rule or refinement is reported as an issue.
func Run(s *schema.Schema, raw querycodec.Mapping, mode Mode) Result {
	if s == nil {
		data := make(Data, len(raw))
		for k, v := range raw {
			data[k] = v
		}
		return Result{Data: data}
	}

	coerced := s.Coerce(raw)
	if mode == Strict {
		return runStrict(s, coerced)
	}
	return runPick(s, coerced)
}

func runPick(s *schema.Schema, coerced map[string]any) Result {
	res := Result{Data: absentData(s)}
	for _, f := range s.Fields() {
		v, ok := coerced[f.Name]
		if !ok {
			continue
		}
		out, err := validateField(f, v)
		if err != nil {
			res.Err = true
			res.Issues = append(res.Issues, issueFor(f.Name, err))
			continue
		}
		res.Data[f.Name] = out
	}
	return res
}

func runStrict(s *schema.Schema, coerced map[string]any) Result {
	parsed := make(map[string]any, s.Len())
	var issues []Issue

	for _, f := range s.Fields() {
		v, ok := coerced[f.Name]
		if !ok {
			if !f.IsOptional() {
				issues = append(issues, Issue{Field: f.Name, Message: "Required"})
			}
			continue
		}
		out, err := validateField(f, v)
		if err != nil {
			issues = append(issues, issueFor(f.Name, err))
			continue
		}
		parsed[f.Name] = out
	}

	if len(issues) == 0 {
		if err := checkObject(s, parsed); err != nil {
			issues = append(issues, issueFor("", err))
		}
	}

	data := absentData(s)
	if len(issues) > 0 {
		return Result{Data: data, Err: true, Issues: issues}
	}
	for k, v := range parsed {
		data[k] = v
	}
	return Result{Data: data}
}

func validateField(f schema.Field, v any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("rule panicked: %v", r)
		}
	}()
	return f.Validate(v)
}

func checkObject(s *schema.Schema, values map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refinement panicked: %v", r)
		}
	}()
	return s.CheckObject(values)
}

func issueFor(field string, err error) Issue {
	if re, ok := err.(schema.RuleError); ok {
		return Issue{Field: re.Field, Message: re.Message}
	}
	return Issue{Field: field, Message: err.Error()}
}

func absentData(s *schema.Schema) Data {
	data := make(Data, s.Len())
	for _, name := range s.Names() {
		data[name] = nil
	}
	return data
}
