package wizard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/microloan/pkg/datetime"
	"github.com/iwvelando/microloan/pkg/loans"
	"github.com/iwvelando/microloan/pkg/validation"
)

// Form names.
const (
	LoanApplicationForm = "loan_application"
	SignupForm          = "signup"
)

// Loan application field names.
const (
	FieldProduct         = "product"
	FieldAmount          = "amount"
	FieldTerm            = "termMonths"
	FieldFrequency       = "frequency"
	FieldBusinessName    = "businessName"
	FieldBusinessType    = "businessType"
	FieldMonthlyIncome   = "monthlyIncome"
	FieldMonthlyExpenses = "monthlyExpenses"
	FieldPurpose         = "purpose"
	FieldGuarantorName   = "guarantorName"
	FieldGuarantorPhone  = "guarantorPhone"
	FieldCollateral      = "collateral"
	FieldCollateralValue = "collateralValue"
	FieldAcceptTerms     = "acceptTerms"
)

// Signup field names.
const (
	FieldFullName        = "fullName"
	FieldEmail           = "email"
	FieldPhone           = "phone"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldNationalID      = "nationalId"
	FieldDateOfBirth     = "dateOfBirth"
	FieldOTP             = "otp"
)

const minBorrowerAge = 18

// LoanApplication is the four step borrower loan application: loan details,
// business and income, guarantor and collateral, review.
func LoanApplication(products loans.Catalog) Definition {
	frequencies := []string{string(loans.Weekly), string(loans.Biweekly), string(loans.Monthly)}
	return Definition{
		Name: LoanApplicationForm,
		Steps: []Step{
			{
				Title: "Loan Details",
				Fields: []Field{
					{Name: FieldProduct, Label: "Loan product", Required: true, Validate: validation.OneOf(products.Names()...)},
					{Name: FieldAmount, Label: "Amount", Required: true, Validate: validation.PositiveNumber},
					{Name: FieldTerm, Label: "Term (months)", Required: true, Validate: validation.IntegerInRange(1, 120)},
					{Name: FieldFrequency, Label: "Repayment frequency", Required: true, Validate: validation.OneOf(frequencies...)},
				},
				Check: productLimits(products),
			},
			{
				Title: "Business & Income",
				Fields: []Field{
					{Name: FieldBusinessName, Label: "Business name", Required: true},
					{Name: FieldBusinessType, Label: "Business type", Required: true},
					{Name: FieldMonthlyIncome, Label: "Monthly income", Required: true, Validate: validation.PositiveNumber},
					{Name: FieldMonthlyExpenses, Label: "Monthly expenses", Validate: validation.NumberInRange(0, 1e12)},
					{Name: FieldPurpose, Label: "Purpose of the loan", Required: true, Validate: validation.MinLength(10)},
				},
			},
			{
				Title: "Guarantor & Collateral",
				Fields: []Field{
					{Name: FieldGuarantorName, Label: "Guarantor name", Required: true},
					{Name: FieldGuarantorPhone, Label: "Guarantor phone", Required: true, Validate: validation.Phone},
					{Name: FieldCollateral, Label: "Collateral description"},
					{Name: FieldCollateralValue, Label: "Collateral value", Validate: validation.PositiveNumber},
				},
				Check: func(values map[string]string) map[string]string {
					if strings.TrimSpace(values[FieldCollateralValue]) != "" && strings.TrimSpace(values[FieldCollateral]) == "" {
						return map[string]string{FieldCollateral: "describe the collateral being valued"}
					}
					return nil
				},
			},
			{
				Title: "Review & Submit",
				Fields: []Field{
					{Name: FieldAcceptTerms, Label: "I accept the loan terms", Required: true, Validate: validation.Checked},
				},
			},
		},
	}
}

func productLimits(products loans.Catalog) func(map[string]string) map[string]string {
	return func(values map[string]string) map[string]string {
		req, err := ParseLoanRequest(values)
		if err != nil {
			return map[string]string{FieldAmount: err.Error()}
		}
		product, ok := products.Find(req.Product)
		if !ok {
			return map[string]string{FieldProduct: "unknown loan product"}
		}
		errs := make(map[string]string)
		if err := product.CheckAmount(req.Principal); err != nil {
			errs[FieldAmount] = err.Error()
		}
		if err := product.CheckTerm(req.TermMonths); err != nil {
			errs[FieldTerm] = err.Error()
		}
		return errs
	}
}

// LoanRequest is the typed result of a completed loan application form.
type LoanRequest struct {
	Product         string          `json:"product"`
	Principal       float64         `json:"principal"`
	TermMonths      int             `json:"termMonths"`
	Frequency       loans.Frequency `json:"frequency"`
	BusinessName    string          `json:"businessName,omitempty"`
	BusinessType    string          `json:"businessType,omitempty"`
	MonthlyIncome   float64         `json:"monthlyIncome,omitempty"`
	MonthlyExpenses float64         `json:"monthlyExpenses,omitempty"`
	Purpose         string          `json:"purpose,omitempty"`
}

// ParseLoanRequest converts form values into a LoanRequest. Only the loan
// details are mandatory; optional numeric fields default to zero.
func ParseLoanRequest(values map[string]string) (LoanRequest, error) {
	req := LoanRequest{
		Product:      strings.TrimSpace(values[FieldProduct]),
		Frequency:    loans.Frequency(strings.TrimSpace(values[FieldFrequency])),
		BusinessName: strings.TrimSpace(values[FieldBusinessName]),
		BusinessType: strings.TrimSpace(values[FieldBusinessType]),
		Purpose:      strings.TrimSpace(values[FieldPurpose]),
	}
	var err error
	if req.Principal, err = strconv.ParseFloat(strings.TrimSpace(values[FieldAmount]), 64); err != nil {
		return LoanRequest{}, fmt.Errorf("invalid amount %q", values[FieldAmount])
	}
	if req.TermMonths, err = strconv.Atoi(strings.TrimSpace(values[FieldTerm])); err != nil {
		return LoanRequest{}, fmt.Errorf("invalid term %q", values[FieldTerm])
	}
	req.MonthlyIncome = parseOptional(values[FieldMonthlyIncome])
	req.MonthlyExpenses = parseOptional(values[FieldMonthlyExpenses])
	return req, nil
}

func parseOptional(value string) float64 {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return n
}

// Preview quotes the installment for the review step.
func Preview(products loans.Catalog, values map[string]string) (loans.Quote, error) {
	req, err := ParseLoanRequest(values)
	if err != nil {
		return loans.Quote{}, err
	}
	product, ok := products.Find(req.Product)
	if !ok {
		return loans.Quote{}, fmt.Errorf("unknown loan product %q", req.Product)
	}
	return loans.CalculateInstallment(product.Input(req.Principal, req.TermMonths, req.Frequency))
}

// Signup is the four step borrower registration: account, identity, phone
// verification, terms.
func Signup() Definition {
	return Definition{
		Name: SignupForm,
		Steps: []Step{
			{
				Title: "Account",
				Fields: []Field{
					{Name: FieldFullName, Label: "Full name", Required: true, Validate: validation.MinLength(2)},
					{Name: FieldEmail, Label: "Email", Required: true, Validate: validation.Email},
					{Name: FieldPhone, Label: "Phone", Required: true, Validate: validation.Phone},
					{Name: FieldPassword, Label: "Password", Required: true, Validate: validation.MinLength(8)},
					{Name: FieldConfirmPassword, Label: "Confirm password", Required: true},
				},
				Check: func(values map[string]string) map[string]string {
					if values[FieldPassword] != values[FieldConfirmPassword] {
						return map[string]string{FieldConfirmPassword: "passwords do not match"}
					}
					return nil
				},
			},
			{
				Title: "Identity",
				Fields: []Field{
					{Name: FieldNationalID, Label: "National ID", Required: true, Validate: validation.NationalID},
					{Name: FieldDateOfBirth, Label: "Date of birth", Required: true, Validate: adult},
					{Name: FieldBusinessName, Label: "Business name"},
				},
			},
			{
				Title: "Verify Phone",
				Fields: []Field{
					{Name: FieldOTP, Label: "Verification code", Required: true, Validate: validation.Digits(6)},
				},
			},
			{
				Title: "Terms",
				Fields: []Field{
					{Name: FieldAcceptTerms, Label: "I accept the terms of service", Required: true, Validate: validation.Checked},
				},
			},
		},
	}
}

func adult(value string) error {
	dob, err := datetime.ParseDate(value)
	if err != nil {
		return errors.New("enter a date as YYYY-MM-DD")
	}
	if datetime.MonthsBetween(dob, time.Now().UTC()) < minBorrowerAge*12 {
		return fmt.Errorf("applicants must be at least %d", minBorrowerAge)
	}
	return nil
}
