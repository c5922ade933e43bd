package lending

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iwvelando/microloan/pkg/loans"
	"github.com/iwvelando/microloan/pkg/mathutil"
	"go.uber.org/zap"
)

// Cache is the key/value store quotes are kept in.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Quoter computes installment quotes, caching them by input.
type Quoter struct {
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewQuoter creates a Quoter. A nil cache disables caching.
func NewQuoter(cache Cache, ttl time.Duration, logger *zap.Logger) *Quoter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Quoter{cache: cache, ttl: ttl, logger: logger}
}

func quoteKey(in loans.InstallmentInput) string {
	return fmt.Sprintf("quote:%.2f:%d:%g:%s:%s", in.Principal, in.TermMonths, in.AnnualRate, in.Frequency, in.InterestType)
}

// Quote returns the installment quote for in. The principal is rounded to
// cents before pricing. Cache failures are logged and the quote is computed
// directly.
func (q *Quoter) Quote(ctx context.Context, in loans.InstallmentInput) (loans.Quote, error) {
	in.Principal = mathutil.Round(in.Principal)
	if q.cache == nil {
		return loans.CalculateInstallment(in)
	}
	key := quoteKey(in)
	if raw, ok, err := q.cache.Get(ctx, key); err != nil {
		q.logger.Warn("quote cache read failed", zap.String("op", "lending.Quote"), zap.Error(err))
	} else if ok {
		var cached loans.Quote
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached, nil
		}
	}

	quote, err := loans.CalculateInstallment(in)
	if err != nil {
		return loans.Quote{}, err
	}
	if data, err := json.Marshal(quote); err == nil {
		if err := q.cache.Set(ctx, key, string(data), q.ttl); err != nil {
			q.logger.Warn("quote cache write failed", zap.String("op", "lending.Quote"), zap.Error(err))
		}
	}
	return quote, nil
}
