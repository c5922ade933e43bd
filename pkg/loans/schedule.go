package loans

import (
	"fmt"
	"time"

	"github.com/iwvelando/microloan/pkg/mathutil"
	"go.uber.org/zap"
)

// Installment is one row of a repayment schedule.
type Installment struct {
	Number    int       `json:"number" yaml:"number"`
	DueDate   time.Time `json:"dueDate" yaml:"dueDate"`
	Payment   float64   `json:"payment" yaml:"payment"`
	Principal float64   `json:"principal" yaml:"principal"`
	Interest  float64   `json:"interest" yaml:"interest"`
	Balance   float64   `json:"balance" yaml:"balance"`
}

// ScheduleGenerator produces repayment schedules.
type ScheduleGenerator struct {
	logger *zap.Logger
}

// NewScheduleGenerator creates a new generator instance
func NewScheduleGenerator(logger *zap.Logger) *ScheduleGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleGenerator{logger: logger}
}

// DueDate returns the due date of installment number (1-based) for a
// schedule whose first installment falls on firstDue.
func DueDate(firstDue time.Time, freq Frequency, number int) time.Time {
	offset := number - 1
	switch freq {
	case Weekly:
		return firstDue.AddDate(0, 0, 7*offset)
	case Biweekly:
		return firstDue.AddDate(0, 0, 14*offset)
	default:
		return firstDue.AddDate(0, offset, 0)
	}
}

// Generate builds the full schedule. Amounts are rounded to cents and the
// final installment absorbs rounding so the balance ends at exactly zero.
func (g *ScheduleGenerator) Generate(in InstallmentInput, firstDue time.Time) ([]Installment, error) {
	quote, err := CalculateInstallment(in)
	if err != nil {
		return nil, err
	}
	n := quote.TotalInstallments

	var r, flatInterestPerPeriod, flatPrincipalPerPeriod float64
	totalFlatInterest := 0.0
	switch in.InterestType {
	case Flat:
		totalFlatInterest = mathutil.Round(FlatInterest(in.Principal, in.AnnualRate, in.TermMonths))
		flatInterestPerPeriod = mathutil.Round(totalFlatInterest / float64(n))
		flatPrincipalPerPeriod = mathutil.Round(in.Principal / float64(n))
	case Reducing:
		r, err = PeriodicRate(in.AnnualRate, in.Frequency)
		if err != nil {
			return nil, err
		}
	}

	payment := mathutil.Round(quote.Installment)
	balance := mathutil.Round(in.Principal)
	interestCharged := 0.0
	schedule := make([]Installment, 0, n)

	for number := 1; number <= n; number++ {
		row := Installment{Number: number, DueDate: DueDate(firstDue, in.Frequency, number)}

		switch in.InterestType {
		case Flat:
			row.Interest = flatInterestPerPeriod
			row.Principal = flatPrincipalPerPeriod
			if number == n {
				row.Interest = mathutil.Round(totalFlatInterest - interestCharged)
			}
		case Reducing:
			row.Interest = mathutil.Round(balance * r)
			row.Principal = mathutil.Round(payment - row.Interest)
		}

		if number == n || row.Principal > balance {
			row.Principal = balance
		}
		row.Payment = mathutil.Round(row.Principal + row.Interest)
		balance = mathutil.Round(balance - row.Principal)
		row.Balance = balance
		interestCharged = mathutil.Round(interestCharged + row.Interest)

		schedule = append(schedule, row)
	}

	g.logger.Debug(fmt.Sprintf("generated %d installment %s schedule of %.2f",
		n, in.InterestType, payment),
		zap.String("op", "loans.Generate"),
		zap.Float64("principal", in.Principal),
		zap.Float64("totalInterest", interestCharged),
	)

	return schedule, nil
}

// Totals sums the payment, principal and interest columns of a schedule.
func Totals(schedule []Installment) (payment, principal, interest float64) {
	for _, row := range schedule {
		payment += row.Payment
		principal += row.Principal
		interest += row.Interest
	}
	return mathutil.Round(payment), mathutil.Round(principal), mathutil.Round(interest)
}

// NextDue returns the first installment due on or after asOf, and false when
// the schedule has ended.
func NextDue(schedule []Installment, asOf time.Time) (Installment, bool) {
	for _, row := range schedule {
		if !row.DueDate.Before(asOf) {
			return row, true
		}
	}
	return Installment{}, false
}
