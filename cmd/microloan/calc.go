package main

import (
	"fmt"
	"time"

	"github.com/iwvelando/microloan/pkg/allocation"
	"github.com/iwvelando/microloan/pkg/constants"
	"github.com/iwvelando/microloan/pkg/datetime"
	"github.com/iwvelando/microloan/pkg/loans"
	"github.com/iwvelando/microloan/pkg/output"
	"github.com/iwvelando/microloan/pkg/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// loanFlags are shared by installment and schedule.
type loanFlags struct {
	product      string
	principal    float64
	term         int
	rate         float64
	frequency    string
	interestType string
}

func (f *loanFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.product, "product", "", "loan product from the configured catalog")
	cmd.Flags().Float64Var(&f.principal, "principal", 0, "amount borrowed")
	cmd.Flags().IntVar(&f.term, "term", 0, "term in months")
	cmd.Flags().Float64Var(&f.rate, "rate", 0, "annual interest rate in percent; overrides the product rate")
	cmd.Flags().StringVar(&f.frequency, "frequency", string(loans.Monthly), "repayment frequency: weekly, biweekly, monthly")
	cmd.Flags().StringVar(&f.interestType, "type", "", "interest type: flat, reducing; overrides the product type")
	_ = cmd.MarkFlagRequired("principal")
	_ = cmd.MarkFlagRequired("term")
}

func (f *loanFlags) input(cmd *cobra.Command, catalog loans.Catalog) (loans.InstallmentInput, error) {
	in := loans.InstallmentInput{
		Principal:    f.principal,
		TermMonths:   f.term,
		Frequency:    loans.Frequency(f.frequency),
		InterestType: loans.Flat,
	}
	if f.product != "" {
		product, ok := catalog.Find(f.product)
		if !ok {
			return loans.InstallmentInput{}, fmt.Errorf("unknown loan product %q, choose one of %v", f.product, catalog.Names())
		}
		in = product.Input(f.principal, f.term, loans.Frequency(f.frequency))
	} else if !cmd.Flags().Changed("rate") {
		return loans.InstallmentInput{}, fmt.Errorf("either --product or --rate is required")
	}
	if cmd.Flags().Changed("rate") {
		in.AnnualRate = f.rate
	}
	if f.interestType != "" {
		in.InterestType = loans.InterestType(f.interestType)
	}
	return in, nil
}

func installmentCmd(state *cli) *cobra.Command {
	flags := &loanFlags{}
	cmd := &cobra.Command{
		Use:   "installment",
		Short: "Calculate the installment for a loan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := flags.input(cmd, state.conf.Catalog())
			if err != nil {
				return err
			}
			quote, err := loans.CalculateInstallment(in)
			if err != nil {
				return err
			}
			state.logger.Debug("calculated installment",
				zap.String("op", "main.installment"),
				zap.Float64("installment", quote.Installment),
			)
			output.PrettyQuote(cmd.OutOrStdout(), in, quote)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func scheduleCmd(state *cli) *cobra.Command {
	flags := &loanFlags{}
	var firstDue, format string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the repayment schedule for a loan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// CLI override takes precedence over config
			outputFormat := state.conf.Output.Format
			if format != "" {
				outputFormat = format
			}
			if outputFormat == "" {
				outputFormat = constants.OutputFormatPretty
			}
			if err := validation.ValidateOutputFormat(outputFormat); err != nil {
				return err
			}

			in, err := flags.input(cmd, state.conf.Catalog())
			if err != nil {
				return err
			}
			first := loans.DueDate(datetime.Truncate(time.Now()), in.Frequency, 2)
			if firstDue != "" {
				if first, err = datetime.ParseDate(firstDue); err != nil {
					return err
				}
			}
			schedule, err := loans.NewScheduleGenerator(state.logger).Generate(in, first)
			if err != nil {
				return err
			}

			switch outputFormat {
			case constants.OutputFormatPretty:
				output.PrettySchedule(cmd.OutOrStdout(), schedule)
			case constants.OutputFormatCSV:
				output.CsvSchedule(cmd.OutOrStdout(), schedule)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&firstDue, "first-due", "", "first due date (YYYY-MM-DD); default one period from today")
	cmd.Flags().StringVarP(&format, "output", "o", "", "output format: pretty, csv")
	return cmd
}

func payoffCmd(state *cli) *cobra.Command {
	var (
		remaining   float64
		term        int
		start, asOf string
		discount    float64
	)
	cmd := &cobra.Command{
		Use:   "payoff",
		Short: "Quote early repayment of a loan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := datetime.ParseDate(start)
			if err != nil {
				return err
			}
			asOfDate := datetime.Truncate(time.Now())
			if asOf != "" {
				if asOfDate, err = datetime.ParseDate(asOf); err != nil {
					return err
				}
			}
			if !cmd.Flags().Changed("discount") {
				discount = state.conf.Lending.EarlyRepaymentDiscount
			}
			payoff, err := loans.CalculateEarlyRepayment(loans.EarlyRepaymentInput{
				RemainingPrincipal: remaining,
				TermMonths:         term,
				StartDate:          startDate,
				DiscountRate:       discount,
			}, asOfDate)
			if err != nil {
				return err
			}
			output.PrettyPayoff(cmd.OutOrStdout(), payoff)
			return nil
		},
	}
	cmd.Flags().Float64Var(&remaining, "remaining", 0, "remaining principal")
	cmd.Flags().IntVar(&term, "term", 0, "loan term in months")
	cmd.Flags().StringVar(&start, "start", "", "disbursement date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "payoff date (YYYY-MM-DD); default today")
	cmd.Flags().Float64Var(&discount, "discount", 0, "early repayment discount in percent")
	_ = cmd.MarkFlagRequired("remaining")
	_ = cmd.MarkFlagRequired("term")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func allocateCmd(state *cli) *cobra.Command {
	var (
		amount, fees, interest, principal float64
		policy                            string
	)
	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Split a payment into fees, interest and principal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if policy == "" {
				policy = state.conf.Lending.DefaultPolicy
			}
			p, err := allocation.ParsePolicy(policy)
			if err != nil {
				return err
			}
			split, err := allocation.Allocate(amount, p, state.conf.Lending.Allocation, allocation.Outstanding{
				Fees:      fees,
				Interest:  interest,
				Principal: principal,
			})
			if err != nil {
				return err
			}
			output.PrettyAllocation(cmd.OutOrStdout(), split)
			return nil
		},
	}
	cmd.Flags().Float64Var(&amount, "amount", 0, "payment amount")
	cmd.Flags().StringVar(&policy, "policy", "", "allocation policy: interest_first, principal_first, scheduled")
	cmd.Flags().Float64Var(&fees, "fees", 0, "outstanding fees and penalties")
	cmd.Flags().Float64Var(&interest, "interest", 0, "interest currently due (scheduled policy)")
	cmd.Flags().Float64Var(&principal, "principal", 0, "outstanding principal (scheduled policy)")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
