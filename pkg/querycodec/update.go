package querycodec

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Update is a partial change to a Mapping.
//
// Keys missing from the Update, and keys set to Keep, are left alone.
// nil, a nil pointer, "" and Delete remove the key. Any other value is
// stringified and set.
type Update map[string]any

type marker int

const (
	keepMarker marker = iota + 1
	deleteMarker
)

func (m marker) String() string {
	if m == deleteMarker {
		return "querycodec.Delete"
	}
	return "querycodec.Keep"
}

var (
	// Keep leaves a key untouched, like leaving it out of the Update.
	Keep any = keepMarker

	// Delete removes a key, like nil or "".
	Delete any = deleteMarker
)

type op int

const (
	opKeep op = iota
	opDelete
	opSet
)

// Apply returns a copy of m with u applied. m is not modified.
func (m Mapping) Apply(u Update) Mapping {
	out := m.Clone()
	for k, v := range u {
		switch o, s := resolve(v); o {
		case opDelete:
			delete(out, k)
		case opSet:
			out[k] = s
		}
	}
	return out
}

// Stringify returns the query value for v and whether v sets a value at
// all (false for Keep and for the deletion values).
func Stringify(v any) (string, bool) {
	o, s := resolve(v)
	return s, o == opSet
}

func resolve(v any) (op, string) {
	switch val := v.(type) {
	case nil:
		return opDelete, ""
	case marker:
		if val == deleteMarker {
			return opDelete, ""
		}
		return opKeep, ""
	case string:
		if val == "" {
			return opDelete, ""
		}
		return opSet, val
	case bool:
		return opSet, strconv.FormatBool(val)
	case float64:
		return opSet, formatNumber(val)
	case float32:
		return opSet, formatNumber(float64(val))
	case fmt.Stringer:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return opDelete, ""
		}
		return setOrDelete(val.String())
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return opDelete, ""
		}
		return resolve(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return opSet, strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return opSet, strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return opSet, formatNumber(rv.Float())
	case reflect.Bool:
		return opSet, strconv.FormatBool(rv.Bool())
	case reflect.String:
		return setOrDelete(rv.String())
	default:
		return setOrDelete(fmt.Sprintf("%v", v))
	}
}

func setOrDelete(s string) (op, string) {
	if s == "" {
		return opDelete, ""
	}
	return opSet, s
}

// formatNumber renders f the way a browser stringifies a number:
// integral values without a fraction, NaN and Infinity by name, and
// exponent form outside [1e-6, 1e21).
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		s := strconv.FormatFloat(f, 'g', -1, 64)
		s = strings.Replace(s, "e+0", "e+", 1)
		s = strings.Replace(s, "e-0", "e-", 1)
		return s
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
