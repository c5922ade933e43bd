package loans

import (
	"errors"
	"math"
	"testing"
)

func TestInstallmentsPerMonth(t *testing.T) {
	tests := []struct {
		freq     Frequency
		expected int
		wantErr  bool
	}{
		{Weekly, 4, false},
		{Biweekly, 2, false},
		{Monthly, 1, false},
		{"", 1, false},
		{"daily", 0, true},
	}

	for _, tt := range tests {
		got, err := InstallmentsPerMonth(tt.freq)
		if (err != nil) != tt.wantErr {
			t.Errorf("InstallmentsPerMonth(%q) error = %v, wantErr %v", tt.freq, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("InstallmentsPerMonth(%q) = %d, expected %d", tt.freq, got, tt.expected)
		}
	}
}

func TestCalculateInstallmentFlat(t *testing.T) {
	quote, err := CalculateInstallment(InstallmentInput{
		Principal:    25000,
		TermMonths:   12,
		AnnualRate:   12.5,
		Frequency:    Monthly,
		InterestType: Flat,
	})
	if err != nil {
		t.Fatalf("CalculateInstallment() error = %v", err)
	}

	expected := (25000 + 25000*0.125*1) / 12
	if math.Abs(quote.Installment-expected) > 1e-9 {
		t.Errorf("flat installment = %.6f, expected %.6f", quote.Installment, expected)
	}
	if quote.TotalInstallments != 12 {
		t.Errorf("TotalInstallments = %d, expected 12", quote.TotalInstallments)
	}
	if quote.TotalInterest != 3125 {
		t.Errorf("TotalInterest = %.2f, expected 3125.00", quote.TotalInterest)
	}
	if quote.TotalRepayment != 28125 {
		t.Errorf("TotalRepayment = %.2f, expected 28125.00", quote.TotalRepayment)
	}
}

func TestCalculateInstallmentReducing(t *testing.T) {
	quote, err := CalculateInstallment(InstallmentInput{
		Principal:    25000,
		TermMonths:   12,
		AnnualRate:   12.5,
		Frequency:    Monthly,
		InterestType: Reducing,
	})
	if err != nil {
		t.Fatalf("CalculateInstallment() error = %v", err)
	}

	r := 0.125 / 12
	growth := math.Pow(1+r, 12)
	expected := 25000 * r * growth / (growth - 1)
	if math.Abs(quote.Installment-expected) > 1e-9 {
		t.Errorf("reducing installment = %.6f, expected %.6f", quote.Installment, expected)
	}
	if quote.Installment < 2225 || quote.Installment > 2230 {
		t.Errorf("reducing installment = %.2f, expected around 2227", quote.Installment)
	}
	if quote.TotalInterest >= 3125 {
		t.Errorf("reducing interest %.2f should be below flat interest 3125", quote.TotalInterest)
	}
}

func TestCalculateInstallmentFrequencies(t *testing.T) {
	tests := []struct {
		name          string
		freq          Frequency
		interestType  InterestType
		installments  int
		expectedRange []float64
	}{
		{"Weekly flat", Weekly, Flat, 48, []float64{585.9, 586.0}},        // 28125 / 48
		{"Biweekly flat", Biweekly, Flat, 24, []float64{1171.8, 1171.9}}, // 28125 / 24
		{"Weekly reducing", Weekly, Reducing, 48, []float64{553, 556}},
		{"Biweekly reducing", Biweekly, Reducing, 24, []float64{1108, 1113}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := CalculateInstallment(InstallmentInput{
				Principal:    25000,
				TermMonths:   12,
				AnnualRate:   12.5,
				Frequency:    tt.freq,
				InterestType: tt.interestType,
			})
			if err != nil {
				t.Fatalf("CalculateInstallment() error = %v", err)
			}
			if quote.TotalInstallments != tt.installments {
				t.Errorf("TotalInstallments = %d, expected %d", quote.TotalInstallments, tt.installments)
			}
			if quote.Installment < tt.expectedRange[0] || quote.Installment > tt.expectedRange[1] {
				t.Errorf("Installment = %.2f, expected range [%.2f, %.2f]",
					quote.Installment, tt.expectedRange[0], tt.expectedRange[1])
			}
		})
	}
}

func TestCalculateInstallmentZeroRate(t *testing.T) {
	for _, it := range []InterestType{Flat, Reducing} {
		quote, err := CalculateInstallment(InstallmentInput{
			Principal:    12000,
			TermMonths:   6,
			Frequency:    Monthly,
			InterestType: it,
		})
		if err != nil {
			t.Fatalf("%s: CalculateInstallment() error = %v", it, err)
		}
		if quote.Installment != 2000 {
			t.Errorf("%s: zero-rate installment = %.2f, expected 2000.00", it, quote.Installment)
		}
		if quote.TotalInterest != 0 {
			t.Errorf("%s: zero-rate interest = %.2f, expected 0", it, quote.TotalInterest)
		}
	}
}

func TestCalculateInstallmentInvalidInput(t *testing.T) {
	base := InstallmentInput{Principal: 1000, TermMonths: 6, AnnualRate: 10, Frequency: Monthly, InterestType: Flat}

	tests := []struct {
		name   string
		mutate func(in *InstallmentInput)
		want   error
	}{
		{"Zero principal", func(in *InstallmentInput) { in.Principal = 0 }, ErrInvalidPrincipal},
		{"Negative principal", func(in *InstallmentInput) { in.Principal = -1 }, ErrInvalidPrincipal},
		{"Zero term", func(in *InstallmentInput) { in.TermMonths = 0 }, ErrInvalidTerm},
		{"Term beyond maximum", func(in *InstallmentInput) { in.TermMonths = 100000 }, ErrInvalidTerm},
		{"Huge term", func(in *InstallmentInput) { in.TermMonths = 1 << 60; in.Frequency = Weekly }, ErrInvalidTerm},
		{"Infinite rate", func(in *InstallmentInput) { in.AnnualRate = math.Inf(1) }, ErrInvalidRate},
		{"Reducing overflow", func(in *InstallmentInput) {
			in.InterestType = Reducing
			in.Frequency = Weekly
			in.TermMonths = 360
			in.AnnualRate = 1e6
		}, ErrNonFiniteQuote},
		{"Flat overflow", func(in *InstallmentInput) { in.Principal = math.MaxFloat64; in.AnnualRate = 1e6 }, ErrNonFiniteQuote},
		{"Negative rate", func(in *InstallmentInput) { in.AnnualRate = -2 }, ErrInvalidRate},
		{"Unknown frequency", func(in *InstallmentInput) { in.Frequency = "daily" }, ErrUnknownFrequency},
		{"Unknown interest type", func(in *InstallmentInput) { in.InterestType = "compound" }, ErrUnknownInterestType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := CalculateInstallment(in)
			if !errors.Is(err, tt.want) {
				t.Errorf("CalculateInstallment() error = %v, expected %v", err, tt.want)
			}
		})
	}
}

func TestCalculateInstallmentIsPure(t *testing.T) {
	in := InstallmentInput{Principal: 48000, TermMonths: 18, AnnualRate: 15, Frequency: Biweekly, InterestType: Reducing}

	first, err := CalculateInstallment(in)
	if err != nil {
		t.Fatalf("CalculateInstallment() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := CalculateInstallment(in)
		if err != nil {
			t.Fatalf("CalculateInstallment() error = %v", err)
		}
		if again != first {
			t.Fatalf("call %d returned %+v, expected %+v", i, again, first)
		}
	}
}

func TestCalculatePenalty(t *testing.T) {
	tests := []struct {
		name      string
		amount    float64
		days      int
		dailyRate float64
		expected  float64
	}{
		{"Ten days late", 2343.75, 10, 0.1, 23.44},
		{"Not overdue", 2343.75, 0, 0.1, 0},
		{"No penalty rate", 2343.75, 15, 0, 0},
		{"One day", 1000, 1, 0.5, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculatePenalty(tt.amount, tt.days, tt.dailyRate)
			if math.Abs(got-tt.expected) > 0.001 {
				t.Errorf("CalculatePenalty() = %.2f, expected %.2f", got, tt.expected)
			}
		})
	}
}

func TestProductLimits(t *testing.T) {
	p := Product{Name: "Starter", MinAmount: 5000, MaxAmount: 50000, MinTerm: 3, MaxTerm: 24}

	if err := p.CheckAmount(4999); err == nil {
		t.Error("expected error below minimum amount")
	}
	if err := p.CheckAmount(50001); err == nil {
		t.Error("expected error above maximum amount")
	}
	if err := p.CheckAmount(25000); err != nil {
		t.Errorf("unexpected amount error: %v", err)
	}
	if err := p.CheckTerm(2); err == nil {
		t.Error("expected error below minimum term")
	}
	if err := p.CheckTerm(12); err != nil {
		t.Errorf("unexpected term error: %v", err)
	}

	catalog := DefaultCatalog()
	if _, ok := catalog.Find("business starter"); !ok {
		t.Error("expected case-insensitive product lookup")
	}
	if _, ok := catalog.Find("unknown"); ok {
		t.Error("expected unknown product to be missing")
	}
}
