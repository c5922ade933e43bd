package mathutil

import (
	"math"
	"testing"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"Round up at midpoint", 1.235, 1.24},
		{"Round down below midpoint", 1.234, 1.23},
		{"Installment", 2343.75, 2343.75},
		{"Annuity remainder", 2227.148, 2227.15},
		{"Negative number", -1.236, -1.24},
		{"Zero", 0.0, 0.0},
		{"Sub cent", 0.004, 0.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Round(tt.input)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("Round(%v) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestIsZero(t *testing.T) {
	tests := []struct {
		input    float64
		expected bool
	}{
		{0.0, true},
		{0.004, true},
		{-0.009, true},
		{0.02, false},
		{-150.0, false},
	}

	for _, tt := range tests {
		if got := IsZero(tt.input); got != tt.expected {
			t.Errorf("IsZero(%v) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(12, 0, 10); got != 10 {
		t.Errorf("Clamp above range = %v, expected 10", got)
	}
	if got := Clamp(-3, 0, 10); got != 0 {
		t.Errorf("Clamp below range = %v, expected 0", got)
	}
	if got := Clamp(4.5, 0, 10); got != 4.5 {
		t.Errorf("Clamp inside range = %v, expected 4.5", got)
	}
}

func TestPercentAndRatio(t *testing.T) {
	if got := Percent(12.5); math.Abs(got-0.125) > 1e-12 {
		t.Errorf("Percent(12.5) = %v, expected 0.125", got)
	}
	if got := Ratio(250, 1000); got != 25 {
		t.Errorf("Ratio(250, 1000) = %v, expected 25", got)
	}
	if got := Ratio(250, 0); got != 0 {
		t.Errorf("Ratio with zero total = %v, expected 0", got)
	}
	if !WithinTolerance(100.004, 100, 0.01) {
		t.Error("expected values within tolerance")
	}
}
