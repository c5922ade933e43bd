package loans

import (
	"fmt"
	"strings"
)

// Product is a loan product offered to borrowers.
type Product struct {
	Name         string       `json:"name" yaml:"name" mapstructure:"name"`
	AnnualRate   float64      `json:"annualRate" yaml:"annualRate" mapstructure:"annualRate"`
	InterestType InterestType `json:"interestType" yaml:"interestType" mapstructure:"interestType"`
	MinAmount    float64      `json:"minAmount" yaml:"minAmount" mapstructure:"minAmount"`
	MaxAmount    float64      `json:"maxAmount" yaml:"maxAmount" mapstructure:"maxAmount"`
	MinTerm      int          `json:"minTerm" yaml:"minTerm" mapstructure:"minTerm"`
	MaxTerm      int          `json:"maxTerm" yaml:"maxTerm" mapstructure:"maxTerm"`
}

// CheckAmount reports whether the principal is within the product limits.
// Zero limits are unbounded.
func (p Product) CheckAmount(principal float64) error {
	if p.MinAmount > 0 && principal < p.MinAmount {
		return fmt.Errorf("amount must be at least %.2f for %s", p.MinAmount, p.Name)
	}
	if p.MaxAmount > 0 && principal > p.MaxAmount {
		return fmt.Errorf("amount cannot exceed %.2f for %s", p.MaxAmount, p.Name)
	}
	return nil
}

// CheckTerm reports whether the term is within the product limits.
func (p Product) CheckTerm(termMonths int) error {
	if p.MinTerm > 0 && termMonths < p.MinTerm {
		return fmt.Errorf("term must be at least %d months for %s", p.MinTerm, p.Name)
	}
	if p.MaxTerm > 0 && termMonths > p.MaxTerm {
		return fmt.Errorf("term cannot exceed %d months for %s", p.MaxTerm, p.Name)
	}
	return nil
}

// Input builds an installment input for this product.
func (p Product) Input(principal float64, termMonths int, freq Frequency) InstallmentInput {
	return InstallmentInput{
		Principal:    principal,
		TermMonths:   termMonths,
		AnnualRate:   p.AnnualRate,
		Frequency:    freq,
		InterestType: p.InterestType,
	}
}

// Catalog is a set of products looked up by name.
type Catalog []Product

// Find returns the product with the given name, ignoring case.
func (c Catalog) Find(name string) (Product, bool) {
	for _, p := range c {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Product{}, false
}

// Names lists the product names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for _, p := range c {
		names = append(names, p.Name)
	}
	return names
}

// DefaultCatalog is the product list used when none is configured.
func DefaultCatalog() Catalog {
	return Catalog{
		{Name: "Business Starter", AnnualRate: 12.5, InterestType: Flat, MinAmount: 5000, MaxAmount: 50000, MinTerm: 3, MaxTerm: 24},
		{Name: "Business Growth", AnnualRate: 15, InterestType: Reducing, MinAmount: 50000, MaxAmount: 500000, MinTerm: 6, MaxTerm: 36},
		{Name: "Agriculture", AnnualRate: 10, InterestType: Reducing, MinAmount: 10000, MaxAmount: 200000, MinTerm: 6, MaxTerm: 18},
		{Name: "Emergency", AnnualRate: 18, InterestType: Flat, MinAmount: 1000, MaxAmount: 20000, MinTerm: 1, MaxTerm: 6},
	}
}
