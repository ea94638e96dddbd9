package schema

import (
	"errors"
	"strings"
	"testing"
)

const descriptor = `
fields:
  - name: page
    kind: number
    rules:
      - min: 1
        message: page must be positive
      - int: true
  - name: q
    kind: string
    optional: true
    rules:
      - maxLength: 5
  - name: sort
    rules:
      - oneOf: [asc, desc]
  - name: active
    kind: boolean
    coerce: true
`

func TestParse_YAML(t *testing.T) {
	s, err := Parse([]byte(descriptor))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got := strings.Join(s.Names(), ","); got != "page,q,sort,active" {
		t.Fatalf("Names = %s", got)
	}

	page, _ := s.Field("page")
	if page.Kind != KindNumber || len(page.Rules) != 2 {
		t.Fatalf("page = %+v", page)
	}
	if _, err := page.Validate(0.0); err == nil || !strings.Contains(err.Error(), "page must be positive") {
		t.Fatalf("page min message: %v", err)
	}
	if _, err := page.Validate(1.5); err == nil {
		t.Fatal("page should reject fractions")
	}

	q, _ := s.Field("q")
	if !q.IsOptional() {
		t.Fatal("q should be optional")
	}
	if _, err := q.Validate("toolong"); err == nil {
		t.Fatal("q should enforce maxLength")
	}

	sortField, _ := s.Field("sort")
	if sortField.Kind != KindString {
		t.Fatal("kind should default to string")
	}

	active, _ := s.Field("active")
	if !active.IsCoerced() || active.Kind != KindBoolean {
		t.Fatalf("active = %+v", active)
	}
}

func TestParse_JSON(t *testing.T) {
	s, err := Parse([]byte(`{"fields": [{"name": "id", "kind": "string", "rules": [{"uuid": true}]}]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	id, _ := s.Field("id")
	if _, err := id.Validate("x"); err == nil {
		t.Fatal("uuid rule not applied")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty document", ""},
		{"no fields", "fields: []"},
		{"unknown key", "fields:\n  - name: a\n    typ: string\n"},
		{"unknown kind", "fields:\n  - name: a\n    kind: date\n"},
		{"bad pattern", "fields:\n  - name: a\n    rules:\n      - pattern: \"(\"\n"},
		{"empty rule", "fields:\n  - name: a\n    rules:\n      - {}\n"},
		{"duplicate", "fields:\n  - name: a\n  - name: a\n"},
		{"not yaml", ":::"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, err := Parse(nil); !errors.Is(err, ErrNoFields) {
		t.Fatalf("Parse(nil) err = %v, want ErrNoFields", err)
	}
}
