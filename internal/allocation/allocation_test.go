package allocation

import (
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/model"
)

func TestAllocate(t *testing.T) {
	enabled := MatchPolicy{Enabled: true, CapPerKidPerDay: 100}

	tests := []struct {
		name        string
		amount      int64
		pct         Percentages
		policy      MatchPolicy
		prior       int64
		want        Split
		wantInvest  int64
		wantPayable int64
	}{
		{
			name:        "family rule with full match",
			amount:      100,
			pct:         Percentages{Spend: 50, Charity: 20, Savings: 30},
			policy:      enabled,
			want:        Split{Amount: 100, Spend: 50, Charity: 20, Savings: 30, Match: 30},
			wantInvest:  60,
			wantPayable: 130,
		},
		{
			name:        "match limited by remaining cap",
			amount:      100,
			pct:         Percentages{Spend: 50, Charity: 20, Savings: 30},
			policy:      enabled,
			prior:       90,
			want:        Split{Amount: 100, Spend: 50, Charity: 20, Savings: 30, Match: 10},
			wantInvest:  40,
			wantPayable: 110,
		},
		{
			name:        "cap exhausted",
			amount:      100,
			pct:         Percentages{Spend: 50, Charity: 20, Savings: 30},
			policy:      enabled,
			prior:       150,
			want:        Split{Amount: 100, Spend: 50, Charity: 20, Savings: 30},
			wantInvest:  30,
			wantPayable: 100,
		},
		{
			name:        "match disabled",
			amount:      100,
			pct:         Percentages{Spend: 50, Charity: 20, Savings: 30},
			policy:      MatchPolicy{Enabled: false, CapPerKidPerDay: 100},
			want:        Split{Amount: 100, Spend: 50, Charity: 20, Savings: 30},
			wantInvest:  30,
			wantPayable: 100,
		},
		{
			name:        "rounding goes to savings",
			amount:      7,
			pct:         Percentages{Spend: 50, Charity: 25, Savings: 25},
			policy:      enabled,
			want:        Split{Amount: 7, Spend: 3, Charity: 1, Savings: 3, Match: 3},
			wantInvest:  6,
			wantPayable: 10,
		},
		{
			name:   "zero amount",
			amount: 0,
			pct:    Percentages{Spend: 50, Charity: 20, Savings: 30},
			policy: enabled,
			want:   Split{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Allocate(tt.amount, tt.pct, tt.policy, tt.prior)
			if err != nil {
				t.Fatalf("allocate: %v", err)
			}
			if got != tt.want {
				t.Errorf("split = %+v, want %+v", got, tt.want)
			}
			if got.Invest() != tt.wantInvest {
				t.Errorf("invest = %d, want %d", got.Invest(), tt.wantInvest)
			}
			if got.ParentPayable() != tt.wantPayable {
				t.Errorf("parent_payable = %d, want %d", got.ParentPayable(), tt.wantPayable)
			}
		})
	}
}

func TestAllocateRejectsInvalidInput(t *testing.T) {
	policy := MatchPolicy{Enabled: true, CapPerKidPerDay: 100}

	if _, err := Allocate(-1, DefaultPercentages, policy, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("negative amount: err = %v, want validation error", err)
	}
	if _, err := Allocate(MaxAmountCents+1, DefaultPercentages, policy, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("huge amount: err = %v, want validation error", err)
	}
	split, err := Allocate(MaxAmountCents, DefaultPercentages, policy, 0)
	if err != nil {
		t.Fatalf("max amount: %v", err)
	}
	if split.Spend+split.Charity+split.Savings != MaxAmountCents || split.Spend != MaxAmountCents/2 {
		t.Errorf("max amount split = %+v", split)
	}
	if _, err := Allocate(100, Percentages{Spend: 50, Charity: 20, Savings: 20}, policy, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("sum 90: err = %v, want validation error", err)
	}
	if _, err := Allocate(100, Percentages{Spend: 120, Charity: -20, Savings: 0}, policy, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("out of range: err = %v, want validation error", err)
	}
}

// Every split of every amount must account for the whole amount, and the
// match must stay within both savings and the remaining cap.
func TestAllocateConservesAmount(t *testing.T) {
	policy := MatchPolicy{Enabled: true, CapPerKidPerDay: 37}
	for amount := int64(0); amount <= 250; amount += 7 {
		for spend := 0; spend <= 100; spend += 5 {
			for charity := 0; charity <= 100-spend; charity += 5 {
				pct := Percentages{Spend: spend, Charity: charity, Savings: 100 - spend - charity}
				for _, prior := range []int64{0, 20, 37, 50} {
					s, err := Allocate(amount, pct, policy, prior)
					if err != nil {
						t.Fatalf("allocate(%d, %+v): %v", amount, pct, err)
					}
					if s.Spend+s.Charity+s.Savings != amount {
						t.Fatalf("allocate(%d, %+v) leaked: %+v", amount, pct, s)
					}
					if s.Spend < 0 || s.Charity < 0 || s.Savings < 0 || s.Match < 0 {
						t.Fatalf("allocate(%d, %+v) negative bucket: %+v", amount, pct, s)
					}
					if limit := min(s.Savings, RemainingCap(policy, prior)); s.Match > limit {
						t.Fatalf("match %d exceeds %d", s.Match, limit)
					}
					again, _ := Allocate(amount, pct, policy, prior)
					if again != s {
						t.Fatalf("allocate not deterministic: %+v vs %+v", s, again)
					}
				}
			}
		}
	}
}

func TestFromLegacy(t *testing.T) {
	pct := FromLegacy(LegacyPercentages{Spend: 50, Charity: 25, Invest: 25})
	want := Percentages{Spend: 50, Charity: 25, Savings: 25}
	if pct != want {
		t.Errorf("FromLegacy = %+v, want %+v", pct, want)
	}
	if err := pct.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestSettingsPolicy(t *testing.T) {
	pct, policy := SettingsPolicy(model.FamilySettings{
		MatchEnabled:              true,
		MatchCapCentsPerKidPerDay: 5000,
		DefaultSpendPct:           50,
		DefaultCharityPct:         20,
		DefaultSavingsPct:         30,
	})
	if pct != DefaultPercentages {
		t.Errorf("percentages = %+v, want %+v", pct, DefaultPercentages)
	}
	if !policy.Enabled || policy.CapPerKidPerDay != 5000 {
		t.Errorf("policy = %+v", policy)
	}
}

func TestLockUntil(t *testing.T) {
	p := LockPolicy{Months: DefaultLockMonths}
	day := model.NewDate(2026, time.February, 5)

	if got := p.LockUntil(day, 60).String(); got != "2026-06-05" {
		t.Errorf("LockUntil = %q, want %q", got, "2026-06-05")
	}
	if got := p.LockUntil(model.NewDate(2025, time.October, 31), 60).String(); got != "2026-02-28" {
		t.Errorf("LockUntil from month end = %q, want %q", got, "2026-02-28")
	}
	if got := p.LockUntil(day, 0); !got.IsZero() {
		t.Errorf("LockUntil with no invest = %q, want zero", got)
	}
	if got := (LockPolicy{}).LockUntil(day, 60); !got.IsZero() {
		t.Errorf("LockUntil with lock disabled = %q, want zero", got)
	}
}

func TestDefaultSettingsAreValid(t *testing.T) {
	s := DefaultSettings(9)
	if err := ValidateSettings(s); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}
	if !s.MatchEnabled || s.MatchCapCentsPerKidPerDay != DefaultMatchCap {
		t.Errorf("defaults = %+v", s)
	}

	s.MatchCapCentsPerKidPerDay = -1
	if err := ValidateSettings(s); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("negative cap: err = %v, want validation error", err)
	}
	s = DefaultSettings(9)
	s.DefaultCharityPct = 25
	if err := ValidateSettings(s); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("sum 105: err = %v, want validation error", err)
	}
}
