package domain

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSafeParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"valid integer", "100", "100"},
		{"valid decimal", "3.14", "3.14"},
		{"zero", "0", "0"},
		{"empty string", "", "0"},
		{"invalid string", "abc", "0"},
		{"large number", "1000000000000000000000000", "1000000000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SafeParse(tt.input)
			want, _ := decimal.NewFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("SafeParse(%q) = %s, want %s", tt.input, got, want)
			}
		})
	}
}

func TestToFixedPoint(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  string
	}{
		{"zero", 0, "0"},
		{"one dollar", 1, "1000000000000000000"},
		{"cents", 0.25, "250000000000000000"},
		{"large", 11675, "11675000000000000000000"},
		{"fraction", 123.456, "123456000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToFixedPoint(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ToFixedPoint(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestToFixedPointRejectsNonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -1} {
		if _, err := ToFixedPoint(v); !errors.Is(err, ErrComputation) {
			t.Errorf("ToFixedPoint(%v) error = %v, want ErrComputation", v, err)
		}
	}
}

func TestFixedPointRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 1e-18, 0.1, 1, 42.5, 123.456, 9999.99, 11675.123456789, 1e12} {
		fp, err := ToFixedPoint(v)
		if err != nil {
			t.Fatalf("ToFixedPoint(%v): %v", v, err)
		}
		back, err := FromFixedPoint(fp)
		if err != nil {
			t.Fatalf("FromFixedPoint(%q): %v", fp, err)
		}
		if math.Abs(back-v) > 1e-18*math.Max(1, v) {
			t.Errorf("round trip %v -> %q -> %v", v, fp, back)
		}
	}
}

func TestParseFixedPoint(t *testing.T) {
	if _, err := ParseFixedPoint("12.5"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue for decimal input, got %v", err)
	}
	if _, err := ParseFixedPoint("-1"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue for negative input, got %v", err)
	}
	v, err := ParseFixedPoint(" 1000 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Int64() != 1000 {
		t.Errorf("ParseFixedPoint = %s, want 1000", v)
	}
}

func TestPercentChange(t *testing.T) {
	tests := []struct {
		name     string
		old, new int64
		want     float64
	}{
		{"unset old positive new", 0, 5, 100},
		{"unset old zero new", 0, 0, 0},
		{"unchanged", 1000, 1000, 0},
		{"one percent up", 10000, 10100, 1},
		{"just below one percent", 10000, 10099, 0.99},
		{"drop", 200, 100, -50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PercentChange(big.NewInt(tt.old), big.NewInt(tt.new))
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("PercentChange(%d, %d) = %v, want %v", tt.old, tt.new, got, tt.want)
			}
		})
	}
}

func TestFormatFixedPoint(t *testing.T) {
	v, _ := new(big.Int).SetString("1500000000000000000", 10)
	if got := FormatFixedPoint(v); got != "1.5" {
		t.Errorf("FormatFixedPoint = %q, want 1.5", got)
	}
	if got := FormatFixedPoint(nil); got != "0" {
		t.Errorf("FormatFixedPoint(nil) = %q, want 0", got)
	}
}

func TestScaleDown(t *testing.T) {
	got := ScaleDown("2500000", 6)
	if !got.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("ScaleDown = %s, want 2.5", got)
	}
}
