package wizard

import (
	"context"
	"testing"
	"time"

	"github.com/iwvelando/microloan/internal/repository"
	"github.com/iwvelando/microloan/pkg/loans"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLoanValues() map[string]string {
	return map[string]string{
		FieldProduct:         "Business Starter",
		FieldAmount:          "10000",
		FieldTerm:            "12",
		FieldFrequency:       "monthly",
		FieldBusinessName:    "Mama Mboga Groceries",
		FieldBusinessType:    "retail",
		FieldMonthlyIncome:   "45000",
		FieldMonthlyExpenses: "20000",
		FieldPurpose:         "restock inventory for the holidays",
		FieldGuarantorName:   "John Kamau",
		FieldGuarantorPhone:  "+254712345678",
		FieldAcceptTerms:     "true",
	}
}

func TestNextWithRequiredFieldEmptyDoesNotAdvance(t *testing.T) {
	w := New(LoanApplication(loans.DefaultCatalog()))
	w.Set(FieldProduct, "Business Starter")
	w.Set(FieldTerm, "12")
	w.Set(FieldFrequency, "monthly")

	assert.False(t, w.Next())
	assert.Equal(t, 1, w.CurrentStep)
	assert.Contains(t, w.Errors, FieldAmount)

	w.Set(FieldAmount, "10000")
	assert.NotContains(t, w.Errors, FieldAmount, "setting a field clears its error")
	assert.True(t, w.Next())
	assert.Equal(t, 2, w.CurrentStep)
	assert.Empty(t, w.Errors)
}

func TestProductLimitsCheckedOnDetailsStep(t *testing.T) {
	tests := []struct {
		name      string
		amount    string
		term      string
		wantField string
	}{
		{"amount below minimum", "1000", "12", FieldAmount},
		{"amount above maximum", "60000", "12", FieldAmount},
		{"term too long", "10000", "36", FieldTerm},
		{"within limits", "10000", "12", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(LoanApplication(loans.DefaultCatalog()))
			w.SetAll(map[string]string{
				FieldProduct:   "Business Starter",
				FieldAmount:    tt.amount,
				FieldTerm:      tt.term,
				FieldFrequency: "weekly",
			})
			ok := w.Next()
			if tt.wantField == "" {
				assert.True(t, ok)
				assert.Equal(t, 2, w.CurrentStep)
				return
			}
			assert.False(t, ok)
			assert.Equal(t, 1, w.CurrentStep)
			assert.Contains(t, w.Errors, tt.wantField)
		})
	}
}

func TestBackNeverBelowOne(t *testing.T) {
	w := New(Signup())
	w.Back()
	assert.Equal(t, 1, w.CurrentStep)

	w.SetAll(map[string]string{
		FieldFullName:        "Grace Wanjiru",
		FieldEmail:           "grace@example.com",
		FieldPhone:           "0712 345 678",
		FieldPassword:        "s3cretpass",
		FieldConfirmPassword: "s3cretpass",
	})
	require.True(t, w.Next())
	assert.Equal(t, 2, w.CurrentStep)
	w.Back()
	w.Back()
	assert.Equal(t, 1, w.CurrentStep)
}

func TestSignupPasswordMismatch(t *testing.T) {
	w := New(Signup())
	w.SetAll(map[string]string{
		FieldFullName:        "Grace Wanjiru",
		FieldEmail:           "grace@example.com",
		FieldPhone:           "+254712345678",
		FieldPassword:        "s3cretpass",
		FieldConfirmPassword: "different",
	})
	assert.False(t, w.Next())
	assert.Equal(t, "passwords do not match", w.Errors[FieldConfirmPassword])
}

func TestSignupIdentityAndOTP(t *testing.T) {
	w := New(Signup())
	w.SetAll(map[string]string{
		FieldFullName:        "Grace Wanjiru",
		FieldEmail:           "grace@example.com",
		FieldPhone:           "+254712345678",
		FieldPassword:        "s3cretpass",
		FieldConfirmPassword: "s3cretpass",
		FieldNationalID:      "A1234567",
		FieldDateOfBirth:     time.Now().UTC().AddDate(-10, 0, 0).Format("2006-01-02"),
	})
	require.True(t, w.Next())
	assert.False(t, w.Next(), "minors are rejected")
	assert.Contains(t, w.Errors, FieldDateOfBirth)

	w.Set(FieldDateOfBirth, "1990-04-12")
	require.True(t, w.Next())
	assert.Equal(t, 3, w.CurrentStep)

	w.Set(FieldOTP, "12345")
	assert.False(t, w.Next())
	w.Set(FieldOTP, "123456")
	assert.True(t, w.Next())

	w.Set(FieldAcceptTerms, "false")
	_, err := w.Submit()
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, 4, w.CurrentStep)

	w.Set(FieldAcceptTerms, "true")
	values, err := w.Submit()
	require.NoError(t, err)
	assert.Equal(t, "Grace Wanjiru", values[FieldFullName])
}

func TestSubmitJumpsToFirstInvalidStep(t *testing.T) {
	w := New(LoanApplication(loans.DefaultCatalog()))
	values := validLoanValues()
	delete(values, FieldGuarantorPhone)
	w.SetAll(values)
	w.CurrentStep = 4

	_, err := w.Submit()
	require.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, 3, w.CurrentStep)
	assert.Contains(t, w.Errors, FieldGuarantorPhone)

	w.Set(FieldGuarantorPhone, "+254700000001")
	got, err := w.Submit()
	require.NoError(t, err)
	assert.Equal(t, "10000", got[FieldAmount])
}

func TestCollateralValueNeedsDescription(t *testing.T) {
	w := New(LoanApplication(loans.DefaultCatalog()))
	values := validLoanValues()
	values[FieldCollateralValue] = "15000"
	w.SetAll(values)
	errs := w.ValidateStep(3)
	assert.Contains(t, errs, FieldCollateral)
}

func TestPreviewAndParse(t *testing.T) {
	values := validLoanValues()
	quote, err := Preview(loans.DefaultCatalog(), values)
	require.NoError(t, err)
	assert.InDelta(t, 937.5, quote.Installment, 0.001)
	assert.Equal(t, 12, quote.TotalInstallments)

	req, err := ParseLoanRequest(values)
	require.NoError(t, err)
	assert.Equal(t, loans.Monthly, req.Frequency)
	assert.Equal(t, 45000.0, req.MonthlyIncome)

	values[FieldTerm] = "twelve"
	_, err = ParseLoanRequest(values)
	assert.Error(t, err)
}

func TestDraftSaveAndResume(t *testing.T) {
	ctx := context.Background()
	cache := repository.NewMemoryCache()
	def := LoanApplication(loans.DefaultCatalog())
	key := DraftKey(def.Name, "borrower-1")

	w := New(def)
	w.SetAll(validLoanValues())
	require.True(t, w.Next())
	require.NoError(t, w.SaveDraft(ctx, cache, key, time.Hour))

	resumed, err := Resume(ctx, cache, key, def)
	require.NoError(t, err)
	assert.Equal(t, 2, resumed.CurrentStep)
	assert.Equal(t, "10000", resumed.Values[FieldAmount])

	_, err = Resume(ctx, cache, key, Signup())
	assert.ErrorIs(t, err, ErrDefinitionMismatch)

	require.NoError(t, DiscardDraft(ctx, cache, key))
	_, err = Resume(ctx, cache, key, def)
	assert.ErrorIs(t, err, ErrNoDraft)
}
