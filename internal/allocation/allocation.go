// Package allocation splits an approved chore earning into spend, charity
// and savings buckets and computes the parent match on savings.
//
// The canonical model is the four-field split: savings is the kid's own
// contribution to the locked bucket, match is the parent's contribution on
// top of it, and invest = savings + match. The older three-bucket
// convention (spend/charity/invest percentages with no separate savings) is
// accepted through FromLegacy.
//
// Everything here is pure: no clock, no storage.
package allocation

import (
	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/model"
)

// Percentages are whole-number bucket percentages. They must sum to 100.
type Percentages struct {
	Spend   int `json:"spend_pct"`
	Charity int `json:"charity_pct"`
	Savings int `json:"savings_pct"`
}

// DefaultPercentages is the family rule new families start with.
var DefaultPercentages = Percentages{Spend: 50, Charity: 20, Savings: 30}

func (p Percentages) Validate() error {
	for _, v := range []int{p.Spend, p.Charity, p.Savings} {
		if v < 0 || v > 100 {
			return apperr.Validation("percentages must be between 0 and 100")
		}
	}
	if p.Spend+p.Charity+p.Savings != 100 {
		return apperr.Validation("percentages must sum to 100, got %d", p.Spend+p.Charity+p.Savings)
	}
	return nil
}

// LegacyPercentages is the three-bucket convention where the third bucket
// was called invest and no savings bucket existed.
type LegacyPercentages struct {
	Spend   int `json:"spend_pct"`
	Charity int `json:"charity_pct"`
	Invest  int `json:"invest_pct"`
}

// FromLegacy maps the legacy invest share onto savings; the parent match is
// then layered on top of it exactly as for the canonical model.
func FromLegacy(l LegacyPercentages) Percentages {
	return Percentages{Spend: l.Spend, Charity: l.Charity, Savings: l.Invest}
}

// MatchPolicy is the family's parent-match configuration.
type MatchPolicy struct {
	Enabled         bool
	CapPerKidPerDay int64
}

// SettingsPolicy extracts the percentages and match policy from family settings.
func SettingsPolicy(s model.FamilySettings) (Percentages, MatchPolicy) {
	return Percentages{
			Spend:   s.DefaultSpendPct,
			Charity: s.DefaultCharityPct,
			Savings: s.DefaultSavingsPct,
		}, MatchPolicy{
			Enabled:         s.MatchEnabled,
			CapPerKidPerDay: s.MatchCapCentsPerKidPerDay,
		}
}

// Split is the result of allocating one earning.
type Split struct {
	Amount  int64 `json:"amount_cents"`
	Spend   int64 `json:"spend_cents"`
	Charity int64 `json:"charity_cents"`
	Savings int64 `json:"savings_cents"`
	Match   int64 `json:"parent_match_cents"`
}

// Invest is the locked bucket: the kid's savings plus the parent match.
func (s Split) Invest() int64 { return s.Savings + s.Match }

// ParentPayable is what the parents owe for this earning including match.
func (s Split) ParentPayable() int64 { return s.Amount + s.Match }

// MaxAmountCents bounds a single earning so amount*pct stays well inside int64.
const MaxAmountCents int64 = 1_000_000_000_000

// ValidateAmount rejects negative amounts and amounts above MaxAmountCents.
func ValidateAmount(amount int64) error {
	if amount < 0 {
		return apperr.Validation("amount must be >= 0")
	}
	if amount > MaxAmountCents {
		return apperr.Validation("amount must be <= %d", MaxAmountCents)
	}
	return nil
}

// Allocate splits amount by pct. Spend and charity are floored; savings
// takes the remainder so the three always sum to amount. Match is the
// smaller of savings and what is left of today's cap after priorMatchToday.
func Allocate(amount int64, pct Percentages, policy MatchPolicy, priorMatchToday int64) (Split, error) {
	if err := ValidateAmount(amount); err != nil {
		return Split{}, err
	}
	if err := pct.Validate(); err != nil {
		return Split{}, err
	}

	spend := amount * int64(pct.Spend) / 100
	charity := amount * int64(pct.Charity) / 100
	savings := amount - spend - charity

	return Split{
		Amount:  amount,
		Spend:   spend,
		Charity: charity,
		Savings: savings,
		Match:   Match(savings, policy, priorMatchToday),
	}, nil
}

// Match returns the parent match for a savings contribution given the match
// already granted to the same kid on the same day.
func Match(savings int64, policy MatchPolicy, priorMatchToday int64) int64 {
	if !policy.Enabled || savings <= 0 {
		return 0
	}
	return min(savings, RemainingCap(policy, priorMatchToday))
}

// RemainingCap is the match still available today.
func RemainingCap(policy MatchPolicy, priorMatchToday int64) int64 {
	return max(0, policy.CapPerKidPerDay-priorMatchToday)
}

// DefaultMatchCap is the per-kid daily match cap new families start with.
const DefaultMatchCap int64 = 5000

// DefaultSettings are the settings a family has before a parent changes
// anything.
func DefaultSettings(familyID int64) model.FamilySettings {
	return model.FamilySettings{
		FamilyID:                  familyID,
		MatchEnabled:              true,
		MatchCapCentsPerKidPerDay: DefaultMatchCap,
		DefaultSpendPct:           DefaultPercentages.Spend,
		DefaultCharityPct:         DefaultPercentages.Charity,
		DefaultSavingsPct:         DefaultPercentages.Savings,
	}
}

// ValidateSettings checks a settings update before it is stored.
func ValidateSettings(s model.FamilySettings) error {
	if s.MatchCapCentsPerKidPerDay < 0 {
		return apperr.Validation("match cap must be >= 0")
	}
	pct, _ := SettingsPolicy(s)
	return pct.Validate()
}
