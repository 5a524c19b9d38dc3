// Package ledger appends money-moving rows and derives every balance,
// report and goal from them.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukerupert/choreledger/internal/allocation"
	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/auth"
	"github.com/dukerupert/choreledger/internal/events"
	"github.com/dukerupert/choreledger/internal/metrics"
	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/store"
)

const (
	DefaultRecentLimit = 20
	MaxRecentLimit     = 200
)

type Options struct {
	Lock     allocation.LockPolicy
	Clock    Clock
	Notifier events.Notifier
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

type Service struct {
	db       *sql.DB
	lock     allocation.LockPolicy
	clock    Clock
	notifier events.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewService(db *sql.DB, opts Options) *Service {
	if opts.Notifier == nil {
		opts.Notifier = events.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		db:       db,
		lock:     opts.Lock,
		clock:    opts.Clock,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logger:   opts.Logger.With("component", "ledger"),
	}
}

// Clock returns the clock the service dates postings with.
func (s *Service) Clock() Clock { return s.clock }

// scopeKid resolves which kid a read covers. Kids only ever see their own
// rows; parents may pick any kid in the family or the whole family (0).
func (s *Service) scopeKid(ctx context.Context, caller *model.Member, kidID int64) (*int64, error) {
	if caller.IsChild() {
		if kidID != 0 && kidID != caller.ID {
			return nil, apperr.Unauthorized("kids can only view their own ledger")
		}
		id := caller.ID
		return &id, nil
	}
	if kidID == 0 {
		return nil, nil
	}
	kid, err := store.NewMemberStore(s.db).GetByID(ctx, kidID)
	if err != nil {
		return nil, fmt.Errorf("get kid: %w", err)
	}
	if kid == nil || kid.FamilyID != caller.FamilyID || !kid.IsChild() {
		return nil, apperr.NotFound("kid not found")
	}
	return &kidID, nil
}

// RecentActivity returns the newest rows for the caller's family, or for
// one kid, newest first. It never mutates anything.
func (s *Service) RecentActivity(ctx context.Context, kidID int64, limit int) ([]model.LedgerTransaction, error) {
	caller, err := auth.Caller(ctx, store.NewMemberStore(s.db))
	if err != nil {
		return nil, err
	}
	scope, err := s.scopeKid(ctx, caller, kidID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	limit = min(limit, MaxRecentLimit)

	rows, err := store.NewLedgerStore(s.db).Recent(ctx, caller.FamilyID, scope, limit)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	return rows, nil
}

func checkRange(from, to model.Date) error {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return apperr.Validation("date range ends before it starts")
	}
	return nil
}

// Aggregate sums the caller's family, or one kid, over [from, to]. Either
// bound may be zero for an open range. An empty range is all zeros.
func (s *Service) Aggregate(ctx context.Context, kidID int64, from, to model.Date) (model.Totals, error) {
	caller, err := auth.Caller(ctx, store.NewMemberStore(s.db))
	if err != nil {
		return model.Totals{}, err
	}
	if err := checkRange(from, to); err != nil {
		return model.Totals{}, err
	}
	scope, err := s.scopeKid(ctx, caller, kidID)
	if err != nil {
		return model.Totals{}, err
	}
	totals, err := store.NewLedgerStore(s.db).Totals(ctx, store.TotalsFilter{
		FamilyID: caller.FamilyID,
		KidID:    scope,
		From:     from,
		To:       to,
	})
	if err != nil {
		return model.Totals{}, fmt.Errorf("aggregate: %w", err)
	}
	return totals, nil
}

// Report breaks a range down per kid, with family totals. Parents only.
func (s *Service) Report(ctx context.Context, from, to model.Date) (*model.Report, error) {
	caller, err := auth.Caller(ctx, store.NewMemberStore(s.db))
	if err != nil {
		return nil, err
	}
	if err := auth.RequireParent(caller); err != nil {
		return nil, err
	}
	if err := checkRange(from, to); err != nil {
		return nil, err
	}

	kids, err := store.NewLedgerStore(s.db).TotalsByKid(ctx, caller.FamilyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	r := &model.Report{From: from, To: to, Kids: kids}
	if r.Kids == nil {
		r.Kids = []model.KidTotals{}
	}
	for _, k := range kids {
		r.Family.Add(k.Totals)
	}
	return r, nil
}
