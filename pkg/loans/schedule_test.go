package loans

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/iwvelando/microloan/pkg/constants"
	"go.uber.org/zap"
)

func TestGenerateFlatSchedule(t *testing.T) {
	generator := NewScheduleGenerator(zap.NewNop())
	firstDue := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	schedule, err := generator.Generate(InstallmentInput{
		Principal:    25000,
		TermMonths:   12,
		AnnualRate:   12.5,
		Frequency:    Monthly,
		InterestType: Flat,
	}, firstDue)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(schedule) != 12 {
		t.Fatalf("expected 12 installments, got %d", len(schedule))
	}

	for _, row := range schedule[:11] {
		if row.Interest != 260.42 {
			t.Errorf("installment %d interest = %.2f, expected 260.42", row.Number, row.Interest)
		}
		if row.Principal != 2083.33 {
			t.Errorf("installment %d principal = %.2f, expected 2083.33", row.Number, row.Principal)
		}
	}

	payment, principal, interest := Totals(schedule)
	if principal != 25000 {
		t.Errorf("total principal = %.2f, expected 25000", principal)
	}
	if interest != 3125 {
		t.Errorf("total interest = %.2f, expected 3125", interest)
	}
	if payment != 28125 {
		t.Errorf("total payment = %.2f, expected 28125", payment)
	}
	if schedule[11].Balance != 0 {
		t.Errorf("final balance = %.2f, expected 0", schedule[11].Balance)
	}
}

func TestGenerateRejectsOversizedTerm(t *testing.T) {
	generator := NewScheduleGenerator(nil)
	firstDue := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	for _, term := range []int{constants.MaxTermMonths + 1, 1 << 60} {
		schedule, err := generator.Generate(InstallmentInput{
			Principal:    1000,
			TermMonths:   term,
			AnnualRate:   12,
			Frequency:    Weekly,
			InterestType: Reducing,
		}, firstDue)
		if !errors.Is(err, ErrInvalidTerm) {
			t.Errorf("Generate(term=%d) error = %v, expected %v", term, err, ErrInvalidTerm)
		}
		if schedule != nil {
			t.Errorf("Generate(term=%d) returned %d rows, expected none", term, len(schedule))
		}
	}
}

func TestGenerateReducingScheduleInterestDeclines(t *testing.T) {
	generator := NewScheduleGenerator(nil)

	schedule, err := generator.Generate(InstallmentInput{
		Principal:    25000,
		TermMonths:   12,
		AnnualRate:   12.5,
		Frequency:    Monthly,
		InterestType: Reducing,
	}, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if math.Abs(schedule[0].Interest-260.42) > 0.001 {
		t.Errorf("first interest = %.2f, expected 260.42", schedule[0].Interest)
	}
	for i := 1; i < len(schedule); i++ {
		if schedule[i].Interest >= schedule[i-1].Interest {
			t.Errorf("interest did not decline at installment %d: %.2f >= %.2f",
				schedule[i].Number, schedule[i].Interest, schedule[i-1].Interest)
		}
	}

	_, principal, _ := Totals(schedule)
	if principal != 25000 {
		t.Errorf("total principal = %.2f, expected 25000", principal)
	}
}

func TestDueDates(t *testing.T) {
	first := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		freq     Frequency
		number   int
		expected time.Time
	}{
		{Weekly, 1, first},
		{Weekly, 3, first.AddDate(0, 0, 14)},
		{Biweekly, 2, first.AddDate(0, 0, 14)},
		{Monthly, 4, first.AddDate(0, 3, 0)},
	}

	for _, tt := range tests {
		if got := DueDate(first, tt.freq, tt.number); !got.Equal(tt.expected) {
			t.Errorf("DueDate(%s, %d) = %s, expected %s", tt.freq, tt.number, got, tt.expected)
		}
	}
}

func TestNextDue(t *testing.T) {
	first := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	schedule, err := NewScheduleGenerator(nil).Generate(InstallmentInput{
		Principal: 4000, TermMonths: 1, AnnualRate: 10, Frequency: Weekly, InterestType: Flat,
	}, first)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	next, ok := NextDue(schedule, first.AddDate(0, 0, 8))
	if !ok || next.Number != 3 {
		t.Errorf("NextDue() = %+v (%t), expected installment 3", next, ok)
	}
	if _, ok := NextDue(schedule, first.AddDate(0, 2, 0)); ok {
		t.Error("expected no installment after the schedule ends")
	}
}
