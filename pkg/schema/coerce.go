package schema

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/vango-dev/queryguard/pkg/querycodec"
)

// Coerce converts the raw values of declared fields to their kinds.
//
// Only fields present in raw appear in the result; missing fields are not
// defaulted, so callers can tell "missing" from "invalid". Number fields
// always convert (an unparseable value becomes NaN and fails validation
// later). Boolean fields convert only when marked Coerced. Everything else
// is passed through as the raw string. Undeclared keys are dropped.
func (s *Schema) Coerce(raw querycodec.Mapping) map[string]any {
	out := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		v, ok := raw[f.Name]
		if !ok {
			continue
		}
		out[f.Name] = coerceValue(f, v)
	}
	return out
}

func coerceValue(f Field, v string) any {
	switch f.Kind {
	case KindNumber:
		return ToNumber(v)
	case KindBoolean:
		if !f.coerce {
			return v
		}
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
		return v
	default:
		return v
	}
}

// ToNumber converts s the way a browser's Number(s) does: surrounding
// whitespace is ignored, the empty string is 0, "Infinity" is accepted,
// 0x/0o/0b prefixes select a radix, and anything else that is not a
// decimal literal is NaN.
func ToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}

	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			u, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				if errors.Is(err, strconv.ErrRange) {
					return math.Inf(1)
				}
				return math.NaN()
			}
			return float64(u)
		}
	}

	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9', c == '.', c == '+', c == '-', c == 'e', c == 'E':
		default:
			return math.NaN()
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return f
		}
		return math.NaN()
	}
	return f
}
