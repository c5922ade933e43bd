package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/iwvelando/microloan/internal/credit"
	"github.com/iwvelando/microloan/internal/domain"
	"github.com/iwvelando/microloan/pkg/loans"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreBorrowers(t *testing.T) {
	s := NewStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveBorrower(domain.Borrower{ID: "b2", FullName: "Joseph", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, s.SaveBorrower(domain.Borrower{ID: "b1", FullName: "Amina", CreatedAt: base}))

	got, err := s.Borrower("b1")
	require.NoError(t, err)
	assert.Equal(t, "Amina", got.FullName)

	list, err := s.Borrowers()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b1", list[0].ID)

	_, err = s.Borrower("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	s.Reset()
	list, err = s.Borrowers()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStoreLoanCopiesSchedule(t *testing.T) {
	s := NewStore()
	loan := domain.Loan{ID: "l1", Schedule: []loans.Installment{{Number: 1, Payment: 100}}}
	require.NoError(t, s.SaveLoan(loan))

	loan.Schedule[0].Payment = 999
	stored, err := s.Loan("l1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, stored.Schedule[0].Payment)

	stored.Schedule[0].Payment = 555
	again, err := s.Loan("l1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, again.Schedule[0].Payment)
}

func TestStorePaymentsFilter(t *testing.T) {
	s := NewStore()
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SavePayment(domain.Payment{ID: "p2", LoanID: "l1", PaidAt: at.Add(time.Hour)}))
	require.NoError(t, s.SavePayment(domain.Payment{ID: "p1", LoanID: "l1", PaidAt: at}))
	require.NoError(t, s.SavePayment(domain.Payment{ID: "p3", LoanID: "l2", PaidAt: at}))

	l1, err := s.Payments("l1")
	require.NoError(t, err)
	require.Len(t, l1, 2)
	assert.Equal(t, "p1", l1[0].ID)

	all, err := s.Payments("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStoreApplicationIsolation(t *testing.T) {
	s := NewStore()
	app := domain.Application{
		ID:         "a1",
		Timeline:   []domain.TimelineEntry{{Status: domain.StatusDraft}},
		Assessment: &credit.Result{Reasons: []string{"kyc"}},
	}
	require.NoError(t, s.SaveApplication(app))

	app.Timeline[0].Status = domain.StatusApproved
	app.Assessment.Reasons[0] = "changed"

	stored, err := s.Application("a1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, stored.Timeline[0].Status)
	assert.Equal(t, "kyc", stored.Assessment.Reasons[0])
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Set(ctx, "draft", "{}", time.Minute))
	require.NoError(t, cache.Set(ctx, "forever", "1", 0))

	val, ok, err := cache.Get(ctx, "draft")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "{}", val)

	now = now.Add(2 * time.Minute)
	_, ok, err = cache.Get(ctx, "draft")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = cache.Get(ctx, "forever")
	assert.True(t, ok)

	require.NoError(t, cache.Delete(ctx, "forever"))
	_, ok, _ = cache.Get(ctx, "forever")
	assert.False(t, ok)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("MICROLOAN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MICROLOAN_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	cache, err := NewRedisCache(ctx, RedisOptions{Address: addr, Prefix: "microloan-test:"})
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))
	val, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", val)

	require.NoError(t, cache.Delete(ctx, "k"))
	_, ok, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
