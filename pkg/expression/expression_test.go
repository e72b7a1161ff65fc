package expression

import (
	"errors"
	"testing"
)

type symbolMap map[string]uint64

func (m symbolMap) GetSymbol(name string) (uint64, bool) {
	v, ok := m[name]
	return v, ok
}

func evalString(t *testing.T, src string, syms symbolMap) uint64 {
	t.Helper()
	expr, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", src, err)
	}
	v, err := expr.Evaluate(syms)
	if err != nil {
		t.Fatalf("Evaluate(%q) failed: %v", src, err)
	}
	return v
}

func TestEvaluate(t *testing.T) {
	syms := symbolMap{
		"start": 0x100,
		"end":   0x140,
		"$":     0x110,
	}

	cases := []struct {
		src  string
		want uint64
	}{
		{"42", 42},
		{"0x10", 16},
		{"$FF", 255},
		{"%101", 5},
		{"2+3*4", 14},
		{"(2+3)*4", 20},
		{"10-4-3", 3},
		{"7%2", 1},
		{"20/4/5", 1},
		{"1<<4|1", 17},
		{"0xF0>>4", 0xF},
		{"0xFF&0x0F", 0x0F},
		{"1^3", 2},
		{"-1", ^uint64(0)},
		{"~0", ^uint64(0)},
		{"start", 0x100},
		{"end-start", 0x40},
		{"start - $", ^uint64(0xF)}, // -0x10
		{"(end - start) / 2", 0x20},
	}

	for _, tc := range cases {
		if got := evalString(t, tc.src, syms); got != tc.want {
			t.Errorf("%q = %#x, want %#x", tc.src, got, tc.want)
		}
	}
}

func TestEvaluateNegative(t *testing.T) {
	if got := evalString(t, "2*-3", nil); got != ^uint64(5) {
		t.Errorf("2*-3 = %#x, want %#x", got, ^uint64(5))
	}
}

func TestUnknownSymbol(t *testing.T) {
	expr, err := Parse("missing+1")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	_, err = expr.Evaluate(symbolMap{})

	var unknown *UnknownSymbolError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownSymbolError, got %v", err)
	}
	if unknown.Name != "missing" {
		t.Errorf("error names %q, want %q", unknown.Name, "missing")
	}
}

func TestSyntaxErrors(t *testing.T) {
	bad := []string{
		"",
		"1+",
		"+1",
		"(1+2",
		"1+2)",
		"1 2",
		"1 <> 2",
		"@",
	}
	for _, src := range bad {
		expr, err := Parse(src)
		if err == nil {
			// Some malformations only surface at evaluation.
			_, err = expr.Evaluate(symbolMap{})
		}
		var syntax *SyntaxError
		if !errors.As(err, &syntax) {
			t.Errorf("Parse/Evaluate(%q): expected SyntaxError, got %v", src, err)
		}
	}
}

func TestDivideByZero(t *testing.T) {
	expr, err := Parse("1/0")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	_, err = expr.Evaluate(symbolMap{})
	var syntax *SyntaxError
	if !errors.As(err, &syntax) {
		t.Fatalf("expected SyntaxError for division by zero, got %v", err)
	}
}

func TestSymbols(t *testing.T) {
	expr, err := Parse("end - start + end")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	got := expr.Symbols()
	want := []string{"end", "start", "end"}
	if len(got) != len(want) {
		t.Fatalf("Symbols() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Symbols() = %v, want %v", got, want)
		}
	}
}

func TestString(t *testing.T) {
	const src = "label + 2"
	expr, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if expr.String() != src {
		t.Errorf("String() = %q, want %q", expr.String(), src)
	}
}
