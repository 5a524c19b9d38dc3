// Package chore records kids' chore completions and moves them through
// review: approve or reject by the primary approver, adjust, revoke or
// backfill by the override approver. Every status change and its ledger
// posting commit together or not at all.
package chore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukerupert/choreledger/internal/allocation"
	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/events"
	"github.com/dukerupert/choreledger/internal/ledger"
	"github.com/dukerupert/choreledger/internal/metrics"
	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/store"
)

type Service struct {
	db       *sql.DB
	ledger   *ledger.Service
	clock    ledger.Clock
	notifier events.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewService(db *sql.DB, l *ledger.Service, notifier events.Notifier, m *metrics.Metrics, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:       db,
		ledger:   l,
		clock:    l.Clock(),
		notifier: notifier,
		metrics:  m,
		logger:   logger.With("component", "chore"),
	}
}

// stores groups the stores bound to one transaction.
type stores struct {
	members     *store.MemberStore
	chores      *store.ChoreStore
	completions *store.CompletionStore
	ledger      *store.LedgerStore
	settings    *store.SettingsStore
}

func bind(db store.DBTX) stores {
	return stores{
		members:     store.NewMemberStore(db),
		chores:      store.NewChoreStore(db),
		completions: store.NewCompletionStore(db),
		ledger:      store.NewLedgerStore(db),
		settings:    store.NewSettingsStore(db),
	}
}

// familySettings returns the stored settings or the defaults.
func (st stores) familySettings(ctx context.Context, familyID int64) (model.FamilySettings, error) {
	fs, err := st.settings.Get(ctx, familyID)
	if err != nil {
		return model.FamilySettings{}, err
	}
	if fs == nil {
		return allocation.DefaultSettings(familyID), nil
	}
	return *fs, nil
}

// loadCompletion fetches a completion in the caller's family.
func (st stores) loadCompletion(ctx context.Context, caller *model.Member, id int64) (*model.ChoreCompletion, error) {
	c, err := st.completions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	if c == nil || c.FamilyID != caller.FamilyID {
		return nil, apperr.NotFound("completion not found")
	}
	return c, nil
}

// loadChore fetches a chore in the caller's family.
func (st stores) loadChore(ctx context.Context, caller *model.Member, id int64) (*model.Chore, error) {
	c, err := st.chores.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	if c == nil || c.FamilyID != caller.FamilyID {
		return nil, apperr.NotFound("chore not found")
	}
	return c, nil
}

// loadKid fetches a kid in the caller's family.
func (st stores) loadKid(ctx context.Context, caller *model.Member, id int64) (*model.Member, error) {
	kid, err := st.members.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get kid: %w", err)
	}
	if kid == nil || kid.FamilyID != caller.FamilyID || !kid.IsChild() {
		return nil, apperr.NotFound("kid not found")
	}
	return kid, nil
}

// statusError explains why a guarded transition did not apply, re-reading
// the row since it may have changed underneath us.
func (st stores) statusError(ctx context.Context, id int64, action string) error {
	c, err := st.completions.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get completion: %w", err)
	}
	if c == nil {
		return apperr.NotFound("completion not found")
	}
	return apperr.InvalidState("cannot %s a completion that is %s", action, c.Status)
}

// postEarning allocates the chore price and posts the CHORE_EARNING row for
// an approved completion. The match cap counts everything already matched
// for the kid that day.
func (s *Service) postEarning(ctx context.Context, st stores, c *model.ChoreCompletion, chore *model.Chore) (*model.LedgerTransaction, error) {
	fs, err := st.familySettings(ctx, c.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	pct, policy := allocation.SettingsPolicy(fs)

	prior, err := st.ledger.MatchOnDate(ctx, c.KidID, c.CompletedDate, 0)
	if err != nil {
		return nil, fmt.Errorf("prior match: %w", err)
	}
	split, err := allocation.Allocate(chore.PriceCents, pct, policy, prior)
	if err != nil {
		return nil, err
	}

	return s.ledger.Post(ctx, st.ledger, ledger.Posting{
		FamilyID:     c.FamilyID,
		KidID:        c.KidID,
		CompletionID: &c.ID,
		Date:         c.CompletedDate,
		Source:       model.LedgerChoreEarning,
		Amounts:      ledger.EarningAmounts(split),
		Label:        chore.Title,
	})
}

func (s *Service) notify(ctx context.Context, c *model.ChoreCompletion, action string, extra map[string]any) {
	data := map[string]any{"kid_id": c.KidID, "chore_id": c.ChoreID, "completed_date": c.CompletedDate.String()}
	for k, v := range extra {
		data[k] = v
	}
	s.metrics.CompletionTransition(action)
	s.notifier.Notify(ctx, events.New(c.FamilyID, events.EntityCompletion, action, c.ID, data))
}

func txnData(t *model.LedgerTransaction) map[string]any {
	if t == nil {
		return nil
	}
	return map[string]any{"txn_id": t.ID, "amount_cents": t.AmountCents, "parent_match_cents": t.ParentMatchCents}
}
