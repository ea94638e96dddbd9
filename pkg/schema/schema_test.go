package schema

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/vango-dev/queryguard/pkg/querycodec"
)

func TestNew(t *testing.T) {
	s, err := New(Number("page"), String("q").Optional())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	names := s.Names()
	if names[0] != "page" || names[1] != "q" {
		t.Fatalf("Names = %v, want declaration order", names)
	}
	q, ok := s.Field("q")
	if !ok || !q.IsOptional() || q.Kind != KindString {
		t.Fatalf("Field(q) = %+v, %v", q, ok)
	}
	if _, ok := s.Field("missing"); ok {
		t.Fatal("Field(missing) should not be found")
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(); !errors.Is(err, ErrNoFields) {
		t.Errorf("New() err = %v, want ErrNoFields", err)
	}
	if _, err := New(String("")); !errors.Is(err, ErrEmptyFieldName) {
		t.Errorf("empty name err = %v", err)
	}
	if _, err := New(String("a"), Number("a")); !errors.Is(err, ErrDuplicateField) {
		t.Errorf("duplicate err = %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustNew should panic on error")
		}
	}()
	MustNew()
}

func TestFields_ReturnsCopy(t *testing.T) {
	s := MustNew(String("a"))
	fs := s.Fields()
	fs[0].Name = "changed"
	if s.Names()[0] != "a" {
		t.Fatal("Fields exposed internal storage")
	}
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"3", 3},
		{" 42 ", 42},
		{"-1.5", -1.5},
		{"+7", 7},
		{".5", 0.5},
		{"1.", 1},
		{"1e3", 1000},
		{"", 0},
		{"   ", 0},
		{"0x10", 16},
		{"0b101", 5},
		{"0o17", 15},
		{"Infinity", math.Inf(1)},
		{"-Infinity", math.Inf(-1)},
	}
	for _, tt := range tests {
		if got := ToNumber(tt.in); got != tt.want {
			t.Errorf("ToNumber(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, in := range []string{"NaN", "abc", "3px", "inf", "nan", "1_000", "0x", "0xzz", "--1", "1e"} {
		if got := ToNumber(in); !math.IsNaN(got) {
			t.Errorf("ToNumber(%q) = %v, want NaN", in, got)
		}
	}
}

func TestCoerce(t *testing.T) {
	s := MustNew(
		Number("page"),
		String("q"),
		Boolean("active"),
		Boolean("on").Coerced(),
		Boolean("bad").Coerced(),
	)

	raw := querycodec.Mapping{
		"page":   "3",
		"q":      "hello",
		"active": "true",
		"on":     "true",
		"bad":    "maybe",
		"extra":  "dropped",
	}

	got := s.Coerce(raw)
	if got["page"] != 3.0 {
		t.Errorf("page = %#v, want 3.0", got["page"])
	}
	if got["q"] != "hello" {
		t.Errorf("q = %#v", got["q"])
	}
	if got["active"] != "true" {
		t.Errorf("active = %#v, want raw string", got["active"])
	}
	if got["on"] != true {
		t.Errorf("on = %#v, want true", got["on"])
	}
	if got["bad"] != "maybe" {
		t.Errorf("bad = %#v, want raw string", got["bad"])
	}
	if _, ok := got["extra"]; ok {
		t.Error("undeclared key should be dropped")
	}
}

func TestCoerce_SkipsAbsentFields(t *testing.T) {
	s := MustNew(Number("page"), String("q"))
	got := s.Coerce(querycodec.Mapping{"q": "x"})
	if _, ok := got["page"]; ok {
		t.Fatal("absent field must not be defaulted")
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
}

func TestField_Validate(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		value   any
		want    any
		wantErr string
	}{
		{"number ok", Number("n"), 3.0, 3.0, ""},
		{"number from int", Number("n"), 3, 3.0, ""},
		{"number NaN", Number("n"), math.NaN(), nil, "Expected number, received nan"},
		{"number inf", Number("n"), math.Inf(1), nil, "finite"},
		{"number from string", Number("n"), "3", nil, "Expected number, received string"},
		{"string ok", String("s"), "x", "x", ""},
		{"string from number", String("s"), 1.0, nil, "Expected string, received number"},
		{"bool ok", Boolean("b"), true, true, ""},
		{"bool from string", Boolean("b"), "true", nil, "Expected boolean, received string"},
		{"min fails", Number("n", Min(1, "")), 0.0, nil, "greater than or equal to 1"},
		{"max fails", Number("n", Max(10, "too big")), 11.0, nil, "too big"},
		{"between ok", Number("n", Between(1, 5, "")), 5.0, 5.0, ""},
		{"int fails", Number("n", Int("")), 1.5, nil, "Expected integer"},
		{"positive fails", Number("n", Positive("")), 0.0, nil, "greater than 0"},
		{"nonnegative fails", Number("n", NonNegative("")), -1.0, nil, "greater than or equal to 0"},
		{"minlength fails", String("s", MinLength(3, "")), "ab", nil, "at least 3"},
		{"maxlength counts runes", String("s", MaxLength(2, "")), "あい", "あい", ""},
		{"pattern fails", String("s", Pattern(`^[a-z]+$`, "")), "A1", nil, "Invalid"},
		{"oneof ok", String("s", OneOf([]string{"asc", "desc"}, "")), "asc", "asc", ""},
		{"oneof fails", String("s", OneOf([]string{"asc", "desc"}, "")), "up", nil, "'asc' | 'desc'"},
		{"email fails", String("s", Email("")), "nope", nil, "Invalid email"},
		{"uuid ok", String("s", UUID("")), "123e4567-e89b-12d3-a456-426614174000", "123e4567-e89b-12d3-a456-426614174000", ""},
		{"url fails", String("s", URL("")), "not a url", nil, "Invalid url"},
		{"custom fails", String("s", Custom(func(any) error { return errors.New("nope") })), "x", nil, "s: nope"},
		{"nil rule skipped", String("s", nil), "x", "x", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.field.Validate(tt.value)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got value %#v", tt.wantErr, got)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error %q does not contain %q", err.Error(), tt.wantErr)
				}
				var re RuleError
				if !errors.As(err, &re) || re.Field != tt.field.Name {
					t.Fatalf("error %#v should be a RuleError for %q", err, tt.field.Name)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestPatternE_InvalidPattern(t *testing.T) {
	if _, err := PatternE("(", ""); err == nil {
		t.Fatal("expected compile error")
	}
	defer func() {
		if recover() == nil {
			t.Fatal("Pattern should panic on invalid pattern")
		}
	}()
	Pattern("(", "")
}

func TestRefine(t *testing.T) {
	s := MustNew(Number("min"), Number("max")).Refine(func(v map[string]any) error {
		if v["min"].(float64) > v["max"].(float64) {
			return errors.New("min must not exceed max")
		}
		return nil
	})
	s.Refine(nil)

	if err := s.CheckObject(map[string]any{"min": 1.0, "max": 2.0}); err != nil {
		t.Fatalf("CheckObject ok case: %v", err)
	}
	if err := s.CheckObject(map[string]any{"min": 3.0, "max": 2.0}); err == nil {
		t.Fatal("CheckObject should fail")
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"": KindString, "string": KindString, "number": KindNumber, "bool": KindBoolean, "boolean": KindBoolean} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseKind("date"); err == nil {
		t.Error("expected error for unknown kind")
	}
	if KindNumber.String() != "number" || KindBoolean.String() != "boolean" || KindString.String() != "string" {
		t.Error("unexpected Kind.String output")
	}
}
