package report

import "muhuratai/pkg/domain"

const (
	DefaultStandardThreshold = 999.0
	DefaultPremiumThreshold  = 1999.0
	DefaultTemperature       = 0.7
)

// Thresholds are the minimum payment amounts for the standard and premium tiers.
type Thresholds struct {
	Standard float64
	Premium  float64
}

// DefaultThresholds returns the stock tier thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Standard: DefaultStandardThreshold, Premium: DefaultPremiumThreshold}
}

// TierFor maps a payment amount onto a report tier.
func TierFor(amount float64, t Thresholds) domain.Tier {
	if t.Premium <= 0 && t.Standard <= 0 {
		t = DefaultThresholds()
	}
	switch {
	case amount >= t.Premium:
		return domain.TierPremium
	case amount >= t.Standard:
		return domain.TierStandard
	default:
		return domain.TierBasic
	}
}

// Budgets maps each tier to a max output token count.
type Budgets map[domain.Tier]int

// DefaultBudgets returns the stock token budgets.
func DefaultBudgets() Budgets {
	return Budgets{
		domain.TierBasic:    2000,
		domain.TierStandard: 3000,
		domain.TierPremium:  4000,
	}
}

// For returns the budget for tier, falling back to the stock value.
func (b Budgets) For(tier domain.Tier) int {
	if n, ok := b[tier]; ok && n > 0 {
		return n
	}
	return DefaultBudgets()[tier]
}
