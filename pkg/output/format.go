// Package output provides utilities for formatting and displaying loan
// calculation results.
package output

import (
	"fmt"
	"io"

	"github.com/iwvelando/microloan/pkg/allocation"
	"github.com/iwvelando/microloan/pkg/constants"
	"github.com/iwvelando/microloan/pkg/loans"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func printer() *message.Printer {
	return message.NewPrinter(language.English)
}

// PrettyQuote outputs an installment quote as a short summary.
func PrettyQuote(w io.Writer, in loans.InstallmentInput, quote loans.Quote) {
	p := printer()
	_, _ = p.Fprintf(w, "Principal:          %.2f\n", in.Principal)
	_, _ = p.Fprintf(w, "Term:               %d months, %s, %s interest at %.2f%%\n",
		in.TermMonths, in.Frequency, in.InterestType, in.AnnualRate)
	_, _ = p.Fprintf(w, "Installment:        %.2f x %d\n", quote.Installment, quote.TotalInstallments)
	_, _ = p.Fprintf(w, "Total interest:     %.2f\n", quote.TotalInterest)
	_, _ = p.Fprintf(w, "Total repayment:    %.2f\n", quote.TotalRepayment)
}

// PrettySchedule outputs a human-readable rather than machine-readable table.
func PrettySchedule(w io.Writer, schedule []loans.Installment) {
	p := printer()
	fmt.Fprintf(w, "No. | Due Date   | Payment      | Principal    | Interest     | Balance\n")
	fmt.Fprintf(w, "___ | __________ | ____________ | ____________ | ____________ | ____________\n")
	for _, row := range schedule {
		_, _ = p.Fprintf(w, "%3d | %s | %12.2f | %12.2f | %12.2f | %12.2f\n",
			row.Number, row.DueDate.Format(constants.DateLayout), row.Payment, row.Principal, row.Interest, row.Balance)
	}
	payment, principal, interest := loans.Totals(schedule)
	_, _ = p.Fprintf(w, "    | Total      | %12.2f | %12.2f | %12.2f |\n", payment, principal, interest)
}

// CsvSchedule outputs a schedule in comma-separated value format.
func CsvSchedule(w io.Writer, schedule []loans.Installment) {
	fmt.Fprintf(w, `"number","dueDate","payment","principal","interest","balance"`+"\n")
	for _, row := range schedule {
		fmt.Fprintf(w, `"%d","%s","%.2f","%.2f","%.2f","%.2f"`+"\n",
			row.Number, row.DueDate.Format(constants.DateLayout), row.Payment, row.Principal, row.Interest, row.Balance)
	}
}

// PrettyPayoff outputs an early-repayment quote.
func PrettyPayoff(w io.Writer, payoff loans.Payoff) {
	p := printer()
	_, _ = p.Fprintf(w, "Months elapsed:      %d\n", payoff.MonthsElapsed)
	_, _ = p.Fprintf(w, "Remaining principal: %.2f\n", payoff.RemainingPrincipal)
	if payoff.Discount > 0 {
		_, _ = p.Fprintf(w, "Early discount:      -%.2f\n", payoff.Discount)
	} else {
		fmt.Fprintf(w, "Early discount:      none (past the term midpoint)\n")
	}
	_, _ = p.Fprintf(w, "Total payoff:        %.2f\n", payoff.TotalPayoff)
}

// PrettyAllocation outputs a payment split.
func PrettyAllocation(w io.Writer, split allocation.Split) {
	p := printer()
	_, _ = p.Fprintf(w, "Payment of %.2f (%s)\n", split.Amount, split.Policy)
	_, _ = p.Fprintf(w, "  Fees:        %.2f\n", split.Fees)
	_, _ = p.Fprintf(w, "  Interest:    %.2f\n", split.Interest)
	_, _ = p.Fprintf(w, "  Principal:   %.2f\n", split.Principal)
	if split.Overpayment > 0 {
		_, _ = p.Fprintf(w, "  Overpayment: %.2f\n", split.Overpayment)
	}
}
