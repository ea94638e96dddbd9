package validate

import (
	"math"
	"testing"
)

func TestData_Accessors(t *testing.T) {
	d := Data{
		"page":   3.0,
		"ratio":  0.5,
		"q":      "hello",
		"active": true,
		"raw":    "7",
		"flag":   "true",
		"gone":   nil,
	}

	if !d.Has("page") || d.Has("gone") || d.Has("missing") {
		t.Fatal("Has mismatch")
	}

	if s, ok := d.String("page"); !ok || s != "3" {
		t.Errorf("String(page) = %q, %v", s, ok)
	}
	if s, ok := d.String("active"); !ok || s != "true" {
		t.Errorf("String(active) = %q, %v", s, ok)
	}
	if _, ok := d.String("gone"); ok {
		t.Error("String(gone) should report absent")
	}

	if f, ok := d.Float("raw"); !ok || f != 7 {
		t.Errorf("Float(raw) = %v, %v", f, ok)
	}
	if _, ok := d.Float("q"); ok {
		t.Error("Float(q) should fail")
	}

	if n, ok := d.Int("page"); !ok || n != 3 {
		t.Errorf("Int(page) = %d, %v", n, ok)
	}
	if _, ok := d.Int("ratio"); ok {
		t.Error("Int(ratio) should fail for fractions")
	}

	bounds := []struct {
		name string
		v    float64
		ok   bool
	}{
		{"min int", math.MinInt, true},
		{"largest exact below max", 1 << 62, true},
		{"two to the 63", 1 << 63, false},
		{"beyond max", 1e19, false},
		{"below min", -1e19, false},
	}
	for _, tt := range bounds {
		n, ok := Data{"n": tt.v}.Int("n")
		if ok != tt.ok {
			t.Errorf("Int(%s) ok = %v, want %v (n = %d)", tt.name, ok, tt.ok, n)
		}
		if ok && float64(n) != tt.v {
			t.Errorf("Int(%s) = %d, want %v", tt.name, n, tt.v)
		}
	}

	if b, ok := d.Bool("active"); !ok || !b {
		t.Errorf("Bool(active) = %v, %v", b, ok)
	}
	if b, ok := d.Bool("flag"); !ok || !b {
		t.Errorf("Bool(flag) = %v, %v", b, ok)
	}
	if _, ok := d.Bool("page"); ok {
		t.Error("Bool(page) should fail")
	}

	keys := d.Keys()
	if len(keys) != 7 || keys[0] != "active" || keys[6] != "raw" {
		t.Errorf("Keys = %v", keys)
	}
}

func TestData_Decode(t *testing.T) {
	type filters struct {
		Page   int     `query:"page"`
		Ratio  float64 `query:"ratio"`
		Query  string  `query:"q"`
		Active bool    `query:"active"`
		Sort   string  `query:"sort"`
	}

	d := Data{"page": 3.0, "ratio": 0.25, "q": "go", "active": true, "sort": nil}

	out := filters{Sort: "asc"}
	if err := d.Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := filters{Page: 3, Ratio: 0.25, Query: "go", Active: true, Sort: "asc"}
	if out != want {
		t.Fatalf("Decode = %+v, want %+v", out, want)
	}
}

func TestData_DecodeUntypedStrings(t *testing.T) {
	type params struct {
		Page int  `query:"page"`
		Open bool `query:"open"`
	}

	var out params
	if err := (Data{"page": "12", "open": "1"}).Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Page != 12 || !out.Open {
		t.Fatalf("Decode = %+v", out)
	}
}

func TestData_DecodeError(t *testing.T) {
	var out struct {
		Page int `query:"page"`
	}
	if err := (Data{"page": "abc"}).Decode(&out); err == nil {
		t.Fatal("expected error for non-numeric page")
	}
	if err := (Data{}).Decode(out); err == nil {
		t.Fatal("expected error for non-pointer target")
	}
}
