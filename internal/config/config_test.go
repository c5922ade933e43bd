package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/microloan/pkg/allocation"
	"github.com/iwvelando/microloan/pkg/constants"
	"github.com/iwvelando/microloan/pkg/loans"
)

func TestLoadConfigurationMissingFile(t *testing.T) {
	conf, err := LoadConfiguration(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected defaults for missing file, got error: %v", err)
	}
	if conf.Server.Address != constants.DefaultServerAddress {
		t.Errorf("expected default address, got %q", conf.Server.Address)
	}
	if len(conf.Lending.Products) != len(loans.DefaultCatalog()) {
		t.Errorf("expected default catalog, got %d products", len(conf.Lending.Products))
	}
}

func TestLoadConfigurationFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "microloan.yaml")
	data := `
logging:
  level: debug
  format: console
server:
  address: ":9090"
  readTimeout: 5s
  maxBodySize: 1M
  rateLimit:
    capacity: 10
    window: 30s
cache:
  backend: redis
  redis:
    address: "redis:6379"
    db: 2
lending:
  defaultPolicy: principal_first
  earlyRepaymentDiscount: 3
  allocation:
    interestShare: 0.25
    interestCap: 400
    principalShare: 0.75
  products:
    - name: Solar
      annualRate: 9
      interestType: reducing
      minAmount: 1000
      maxAmount: 25000
      minTerm: 6
      maxTerm: 24
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	conf, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("LoadConfiguration: %v", err)
	}

	if conf.Logging.Level != "debug" || conf.Logging.Format != "console" {
		t.Errorf("unexpected logging config: %+v", conf.Logging)
	}
	if conf.Server.Address != ":9090" {
		t.Errorf("expected :9090, got %q", conf.Server.Address)
	}
	if conf.Server.ReadTimeout != 5*time.Second {
		t.Errorf("expected 5s read timeout, got %s", conf.Server.ReadTimeout)
	}
	if conf.Server.MaxBodyBytes() != 1<<20 {
		t.Errorf("expected 1MiB body limit, got %d", conf.Server.MaxBodyBytes())
	}
	if conf.Server.WriteTimeout != 15*time.Second {
		t.Errorf("expected default write timeout, got %s", conf.Server.WriteTimeout)
	}
	if conf.Server.RateLimit.Capacity != 10 || conf.Server.RateLimit.Window != 30*time.Second {
		t.Errorf("unexpected rate limit: %+v", conf.Server.RateLimit)
	}
	if conf.Cache.Backend != "redis" || conf.Cache.Redis.Address != "redis:6379" || conf.Cache.Redis.DB != 2 {
		t.Errorf("unexpected cache config: %+v", conf.Cache)
	}
	if conf.Cache.Redis.Prefix != "microloan:" {
		t.Errorf("expected default prefix, got %q", conf.Cache.Redis.Prefix)
	}

	want := allocation.Rules{InterestShare: 0.25, InterestCap: 400, PrincipalShare: 0.75}
	if conf.Lending.Allocation != want {
		t.Errorf("expected rules %+v, got %+v", want, conf.Lending.Allocation)
	}
	if conf.Lending.DefaultPolicy != "principal_first" {
		t.Errorf("unexpected policy %q", conf.Lending.DefaultPolicy)
	}
	if conf.Lending.DailyPenaltyRate != constants.DefaultDailyPenaltyRate {
		t.Errorf("expected default penalty rate, got %v", conf.Lending.DailyPenaltyRate)
	}

	product, ok := conf.Catalog().Find("solar")
	if !ok {
		t.Fatalf("expected Solar product in catalog")
	}
	if product.InterestType != loans.Reducing || product.MaxTerm != 24 || product.AnnualRate != 9 {
		t.Errorf("unexpected product: %+v", product)
	}
}

func TestLoadConfigurationEnvOverride(t *testing.T) {
	t.Setenv("MICROLOAN_SERVER_ADDRESS", ":7070")
	conf, err := LoadConfigurationFromReader(strings.NewReader("server:\n  address: \":9090\"\n"))
	if err != nil {
		t.Fatalf("LoadConfigurationFromReader: %v", err)
	}
	if conf.Server.Address != ":7070" {
		t.Errorf("expected env override, got %q", conf.Server.Address)
	}
}

func TestLoadConfigurationInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed yaml", "server: [unterminated"},
		{"bad body size", "server:\n  maxBodySize: 12Q\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfigurationFromReader(strings.NewReader(tt.data)); err == nil {
				t.Errorf("expected error")
			}
		})
	}
}

func TestValidateConfiguration(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Configuration)
		wantErr     bool
		wantWarning string
	}{
		{
			name:        "defaults",
			mutate:      func(*Configuration) {},
			wantWarning: "in memory",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Configuration) { c.Cache.Backend = "memcached" },
			wantErr: true,
		},
		{
			name:    "bad policy",
			mutate:  func(c *Configuration) { c.Lending.DefaultPolicy = "oldest_first" },
			wantErr: true,
		},
		{
			name: "duplicate product",
			mutate: func(c *Configuration) {
				c.Lending.Products = append(c.Lending.Products, loans.Product{Name: "emergency", InterestType: loans.Flat, AnnualRate: 1})
			},
			wantErr: true,
		},
		{
			name: "unknown interest type",
			mutate: func(c *Configuration) {
				c.Lending.Products = []loans.Product{{Name: "X", InterestType: "compound", AnnualRate: 5}}
			},
			wantErr: true,
		},
		{
			name: "inverted limits",
			mutate: func(c *Configuration) {
				c.Lending.Products = []loans.Product{{Name: "X", InterestType: loans.Flat, AnnualRate: 5, MinAmount: 10, MaxAmount: 5}}
			},
			wantErr: true,
		},
		{
			name: "zero rate product",
			mutate: func(c *Configuration) {
				c.Lending.Products = []loans.Product{{Name: "Interest Free", InterestType: loans.Flat, MaxAmount: 100}}
			},
			wantWarning: "charges no interest",
		},
		{
			name:    "discount above 100",
			mutate:  func(c *Configuration) { c.Lending.EarlyRepaymentDiscount = 150 },
			wantErr: true,
		},
		{
			name:        "high discount",
			mutate:      func(c *Configuration) { c.Lending.EarlyRepaymentDiscount = 30 },
			wantWarning: "unusually high",
		},
		{
			name:    "invalid allocation rules",
			mutate:  func(c *Configuration) { c.Lending.Allocation.InterestShare = 2 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := Default()
			tt.mutate(conf)
			warnings, err := conf.ValidateConfiguration()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateConfiguration() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantWarning == "" {
				return
			}
			for _, w := range warnings {
				if strings.Contains(w, tt.wantWarning) {
					return
				}
			}
			t.Errorf("expected warning containing %q, got %v", tt.wantWarning, warnings)
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"", constants.DefaultMaxBodyBytes, false},
		{"512", 512, false},
		{"256K", 256 * 1024, false},
		{"1MB", 1024 * 1024, false},
		{" 2 m ", 2 * 1024 * 1024, false},
		{"KB", 0, true},
		{"10T", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
