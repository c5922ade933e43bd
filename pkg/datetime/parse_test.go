package datetime

import (
	"testing"
	"time"
)

func TestMustParseDate(t *testing.T) {
	got := MustParseDate("2025-03-15")
	if got.Format(DateLayout) != "2025-03-15" {
		t.Errorf("MustParseDate() = %s, expected 2025-03-15", got.Format(DateLayout))
	}
	if got.Location() != time.UTC {
		t.Errorf("expected UTC location, got %s", got.Location())
	}
}

func TestMustParseDatePanic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Expected MustParseDate to panic with invalid date")
		}
	}()

	MustParseDate("15/03/2025")
}

func TestMonthsBetween(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		end      string
		expected int
	}{
		{"Same day", "2025-01-10", "2025-01-10", 0},
		{"Exactly one month", "2025-01-10", "2025-02-10", 1},
		{"Day before anniversary", "2025-01-10", "2025-02-09", 0},
		{"Across year boundary", "2024-11-01", "2025-05-01", 6},
		{"Exactly one year", "2024-06-30", "2025-06-30", 12},
		{"End of month start", "2025-01-31", "2025-02-28", 0},
		{"Reversed range", "2025-05-01", "2025-02-01", -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MonthsBetween(MustParseDate(tt.start), MustParseDate(tt.end))
			if got != tt.expected {
				t.Errorf("MonthsBetween(%s, %s) = %d, expected %d", tt.start, tt.end, got, tt.expected)
			}
		})
	}
}

func TestDaysBetween(t *testing.T) {
	start := MustParseDate("2025-02-25")
	end := time.Date(2025, 3, 3, 17, 45, 0, 0, time.UTC)

	if got := DaysBetween(start, end); got != 6 {
		t.Errorf("DaysBetween() = %d, expected 6", got)
	}
	if got := DaysBetween(end, start); got != -6 {
		t.Errorf("DaysBetween() reversed = %d, expected -6", got)
	}
}
