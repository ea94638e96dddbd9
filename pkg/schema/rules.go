package schema

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Rule is a check applied to a field value after its kind check.
// Check returns nil if the value is valid.
type Rule interface {
	Check(value any) error
}

// RuleFunc adapts a function to Rule.
type RuleFunc func(value any) error

// Check implements Rule.
func (f RuleFunc) Check(value any) error {
	return f(value)
}

// RuleError is a validation failure for one field.
type RuleError struct {
	Field   string
	Message string
}

func (e RuleError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func withField(err error, field string) error {
	var re RuleError
	if errors.As(err, &re) {
		if re.Field == "" {
			re.Field = field
		}
		return re
	}
	return RuleError{Field: field, Message: err.Error()}
}

// Custom wraps fn as a Rule. A non-nil error from fn becomes the message.
func Custom(fn func(value any) error) Rule {
	return RuleFunc(fn)
}

// ----------------------------------------------------------------------------
// Numeric rules
// ----------------------------------------------------------------------------

// Min requires a number >= n.
func Min(n float64, msg string) Rule {
	if msg == "" {
		msg = fmt.Sprintf("Number must be greater than or equal to %v", n)
	}
	return RuleFunc(func(value any) error {
		if v, ok := asFloat(value); ok && v < n {
			return RuleError{Message: msg}
		}
		return nil
	})
}

// Max requires a number <= n.
func Max(n float64, msg string) Rule {
	if msg == "" {
		msg = fmt.Sprintf("Number must be less than or equal to %v", n)
	}
	return RuleFunc(func(value any) error {
		if v, ok := asFloat(value); ok && v > n {
			return RuleError{Message: msg}
		}
		return nil
	})
}

// Between requires lo <= number <= hi.
func Between(lo, hi float64, msg string) Rule {
	if msg == "" {
		msg = fmt.Sprintf("Number must be between %v and %v", lo, hi)
	}
	return RuleFunc(func(value any) error {
		if v, ok := asFloat(value); ok && (v < lo || v > hi) {
			return RuleError{Message: msg}
		}
		return nil
	})
}

// Int requires an integral number.
func Int(msg string) Rule {
	if msg == "" {
		msg = "Expected integer, received float"
	}
	return RuleFunc(func(value any) error {
		if v, ok := asFloat(value); ok && v != math.Trunc(v) {
			return RuleError{Message: msg}
		}
		return nil
	})
}

// Positive requires a number > 0.
func Positive(msg string) Rule {
	if msg == "" {
		msg = "Number must be greater than 0"
	}
	return RuleFunc(func(value any) error {
		if v, ok := asFloat(value); ok && v <= 0 {
			return RuleError{Message: msg}
		}
		return nil
	})
}

// NonNegative requires a number >= 0.
func NonNegative(msg string) Rule {
	if msg == "" {
		msg = "Number must be greater than or equal to 0"
	}
	return RuleFunc(func(value any) error {
		if v, ok := asFloat(value); ok && v < 0 {
			return RuleError{Message: msg}
		}
		return nil
	})
}

// ----------------------------------------------------------------------------
// String rules
// ----------------------------------------------------------------------------

// MinLength requires a string of at least n characters.
func MinLength(n int, msg string) Rule {
	if msg == "" {
		msg = fmt.Sprintf("String must contain at least %d character(s)", n)
	}
	return RuleFunc(func(value any) error {
		if s, ok := value.(string); ok && utf8.RuneCountInString(s) < n {
			return RuleError{Message: msg}
		}
		return nil
	})
}

// MaxLength requires a string of at most n characters.
func MaxLength(n int, msg string) Rule {
	if msg == "" {
		msg = fmt.Sprintf("String must contain at most %d character(s)", n)
	}
	return RuleFunc(func(value any) error {
		if s, ok := value.(string); ok && utf8.RuneCountInString(s) > n {
			return RuleError{Message: msg}
		}
		return nil
	})
}

// Pattern requires a string matching the regular expression.
// It panics if pattern does not compile; use PatternE for untrusted input.
func Pattern(pattern string, msg string) Rule {
	r, err := PatternE(pattern, msg)
	if err != nil {
		panic(err)
	}
	return r
}

// PatternE is like Pattern but returns the compile error.
func PatternE(pattern string, msg string) (Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("schema: pattern %q: %w", pattern, err)
	}
	if msg == "" {
		msg = "Invalid"
	}
	return RuleFunc(func(value any) error {
		if s, ok := value.(string); ok && !re.MatchString(s) {
			return RuleError{Message: msg}
		}
		return nil
	}), nil
}

// OneOf requires a value equal to one of the options.
func OneOf(options []string, msg string) Rule {
	if msg == "" {
		msg = fmt.Sprintf("Invalid enum value. Expected %s", quoteJoin(options))
	}
	allowed := make(map[string]struct{}, len(options))
	for _, o := range options {
		allowed[o] = struct{}{}
	}
	return RuleFunc(func(value any) error {
		s, ok := value.(string)
		if !ok {
			s = fmt.Sprint(value)
		}
		if _, found := allowed[s]; !found {
			return RuleError{Message: msg}
		}
		return nil
	})
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Email requires a plausible email address.
func Email(msg string) Rule {
	if msg == "" {
		msg = "Invalid email"
	}
	return RuleFunc(func(value any) error {
		if s, ok := value.(string); ok && !emailPattern.MatchString(s) {
			return RuleError{Message: msg}
		}
		return nil
	})
}

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// UUID requires a UUID in canonical textual form.
func UUID(msg string) Rule {
	if msg == "" {
		msg = "Invalid uuid"
	}
	return RuleFunc(func(value any) error {
		if s, ok := value.(string); ok && !uuidPattern.MatchString(s) {
			return RuleError{Message: msg}
		}
		return nil
	})
}

// URL requires an absolute URL with scheme and host.
func URL(msg string) Rule {
	if msg == "" {
		msg = "Invalid url"
	}
	return RuleFunc(func(value any) error {
		s, ok := value.(string)
		if !ok {
			return nil
		}
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return RuleError{Message: msg}
		}
		return nil
	})
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

func quoteJoin(options []string) string {
	quoted := make([]string, len(options))
	for i, o := range options {
		quoted[i] = "'" + o + "'"
	}
	return strings.Join(quoted, " | ")
}
