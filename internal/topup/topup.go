// Package topup settles the parents' daily match: one PARENT_TOPUP row per
// kid per day, posted at most once however often it runs.
package topup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/auth"
	"github.com/dukerupert/choreledger/internal/events"
	"github.com/dukerupert/choreledger/internal/ledger"
	"github.com/dukerupert/choreledger/internal/metrics"
	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/store"
)

type Generator struct {
	db       *sql.DB
	ledger   *ledger.Service
	notifier events.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewGenerator(db *sql.DB, l *ledger.Service, notifier events.Notifier, m *metrics.Metrics, logger *slog.Logger) *Generator {
	if notifier == nil {
		notifier = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{db: db, ledger: l, notifier: notifier, metrics: m, logger: logger.With("component", "topup")}
}

type KidTopup struct {
	KidID       int64 `json:"kid_id"`
	AmountCents int64 `json:"amount_cents"`
	Posted      bool  `json:"posted"`
}

// Result reports one run. Skipped counts kids whose top-up for the date
// already existed; kids with nothing to match are left out entirely.
type Result struct {
	FamilyID int64      `json:"family_id"`
	Date     model.Date `json:"date"`
	Posted   int        `json:"posted"`
	Skipped  int        `json:"skipped"`
	Topups   []KidTopup `json:"topups"`
}

// GenerateDailyTopups settles the caller's family for date (today when
// zero). Any parent may run it; re-running is a no-op.
func (g *Generator) GenerateDailyTopups(ctx context.Context, date model.Date) (*Result, error) {
	caller, err := auth.Caller(ctx, store.NewMemberStore(g.db))
	if err != nil {
		return nil, err
	}
	if err := auth.RequireParent(caller); err != nil {
		return nil, err
	}
	today := g.ledger.Clock().Today()
	if date.IsZero() {
		date = today
	}
	if date.After(today) {
		return nil, apperr.Validation("cannot settle a future date")
	}
	return g.GenerateForFamily(ctx, caller.FamilyID, date)
}

// GenerateForFamily settles one family without a caller; the scheduler
// uses it. Each kid's top-up is the match already recorded on that day's
// earnings, whatever the family's match settings say now.
func (g *Generator) GenerateForFamily(ctx context.Context, familyID int64, date model.Date) (*Result, error) {
	res := &Result{FamilyID: familyID, Date: date, Topups: []KidTopup{}}
	err := store.InTx(ctx, g.db, func(tx *sql.Tx) error {
		ls := store.NewLedgerStore(tx)
		matched, err := ls.MatchByKid(ctx, familyID, date)
		if err != nil {
			return err
		}

		kids, err := store.NewMemberStore(tx).ListKids(ctx, familyID)
		if err != nil {
			return fmt.Errorf("list kids: %w", err)
		}

		for _, kid := range kids {
			amount := matched[kid.ID]
			if amount <= 0 {
				continue
			}
			posted, err := g.ledger.PostTopup(ctx, ls, familyID, kid.ID, date, amount)
			if err != nil {
				return fmt.Errorf("top-up kid %d: %w", kid.ID, err)
			}
			if posted {
				res.Posted++
			} else {
				res.Skipped++
			}
			res.Topups = append(res.Topups, KidTopup{KidID: kid.ID, AmountCents: amount, Posted: posted})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.metrics.TopupsGenerated(res.Posted, res.Skipped)
	g.logger.Info("daily top-ups generated", "family_id", familyID, "date", date, "posted", res.Posted, "skipped", res.Skipped)
	if res.Posted > 0 {
		g.notifier.Notify(ctx, events.New(familyID, events.EntityTopup, "generated", 0,
			map[string]any{"date": date.String(), "posted": res.Posted}))
	}
	return res, nil
}
