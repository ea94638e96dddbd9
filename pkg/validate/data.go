package validate

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

// Data is a validated data object. A nil value marks an absent field.
type Data map[string]any

// Has reports whether key holds a value (not absent).
func (d Data) Has(key string) bool {
	return d[key] != nil
}

// Clone returns a shallow copy of d.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Keys returns every key, absent ones included, in lexicographic order.
func (d Data) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the value of key as a string. Numbers and booleans are
// formatted; absent keys report false.
func (d Data) String(key string) (string, bool) {
	switch v := d[key].(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return fmt.Sprint(v), true
	}
}

// Float returns the numeric value of key.
func (d Data) Float(key string) (float64, bool) {
	switch v := d[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Int returns the value of key as an int when it is integral and fits.
func (d Data) Int(key string) (int, bool) {
	f, ok := d.Float(key)
	// float64(math.MaxInt) rounds up to -math.MinInt, so the upper bound
	// is exclusive.
	if !ok || f != math.Trunc(f) || f >= -math.MinInt || f < math.MinInt {
		return 0, false
	}
	return int(f), true
}

// Bool returns the boolean value of key.
func (d Data) Bool(key string) (bool, bool) {
	switch v := d[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	default:
		return false, false
	}
}

// Decode copies d into out, which must be a pointer to a struct or map.
// Struct fields are matched by their `query` tag, falling back to a
// case-insensitive name match. Absent keys leave the target untouched and
// numeric values convert into integer fields when integral.
func (d Data) Decode(out any) error {
	present := make(map[string]any, len(d))
	for k, v := range d {
		if v != nil {
			present[k] = v
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "query",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("validate: decode: %w", err)
	}
	if err := dec.Decode(present); err != nil {
		return fmt.Errorf("validate: decode: %w", err)
	}
	return nil
}
