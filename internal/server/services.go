package server

import (
	"time"

	"github.com/iwvelando/microloan/internal/application"
	"github.com/iwvelando/microloan/internal/auth"
	"github.com/iwvelando/microloan/internal/config"
	"github.com/iwvelando/microloan/internal/lending"
	"github.com/iwvelando/microloan/internal/portfolio"
	"github.com/iwvelando/microloan/internal/reconcile"
	"github.com/iwvelando/microloan/internal/repository"
	"github.com/iwvelando/microloan/pkg/allocation"
	"go.uber.org/zap"
)

// Services are the back office components the API exposes.
type Services struct {
	Config       *config.Configuration
	Store        *repository.Store
	Cache        repository.Cache
	Applications *application.Service
	Lending      *lending.Service
	Quotes       *lending.Quoter
	Reconciler   *reconcile.Reconciler
	Reporter     *portfolio.Reporter
	Auth         *auth.Service
	Now          func() time.Time
}

// NewServices wires every service over one in-memory store. A nil cache
// uses an in-memory cache.
func NewServices(cfg *config.Configuration, cache repository.Cache, logger *zap.Logger) (*Services, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if cache == nil {
		cache = repository.NewMemoryCache()
	}
	policy, err := allocation.ParsePolicy(cfg.Lending.DefaultPolicy)
	if err != nil {
		return nil, err
	}

	store := repository.NewStore()
	apps := application.NewService(store, cfg.Catalog(), logger)
	book := lending.NewService(store, apps, lending.Options{
		Products:               cfg.Catalog(),
		Rules:                  cfg.Lending.Allocation,
		DefaultPolicy:          policy,
		EarlyRepaymentDiscount: cfg.Lending.EarlyRepaymentDiscount,
		DailyPenaltyRate:       cfg.Lending.DailyPenaltyRate,
	}, logger)

	sessions := auth.NewService(24*time.Hour, logger)
	if err := sessions.SeedDemoUsers(); err != nil {
		return nil, err
	}

	return &Services{
		Config:       cfg,
		Store:        store,
		Cache:        cache,
		Applications: apps,
		Lending:      book,
		Quotes:       lending.NewQuoter(cache, cfg.Cache.QuoteTTL, logger),
		Reconciler:   reconcile.NewReconciler(store, logger),
		Reporter:     portfolio.NewReporter(store, cfg.Lending.PARThresholdDays, logger),
		Auth:         sessions,
		Now:          func() time.Time { return time.Now().UTC() },
	}, nil
}
