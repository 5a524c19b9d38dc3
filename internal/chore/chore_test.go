package chore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/choreledger/internal/allocation"
	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/auth"
	"github.com/dukerupert/choreledger/internal/database"
	"github.com/dukerupert/choreledger/internal/events"
	"github.com/dukerupert/choreledger/internal/ledger"
	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/store"
)

var now = time.Date(2026, time.February, 5, 18, 0, 0, 0, time.UTC)

var (
	today     = model.NewDate(2026, time.February, 5)
	yesterday = model.NewDate(2026, time.February, 4)
)

type env struct {
	db       *sql.DB
	svc      *Service
	recorder *events.Recorder
	family   *model.Family
	mom      *model.Member
	dad      *model.Member
	kid      *model.Member
	sibling  *model.Member
	chore    *model.Chore
}

func setup(t *testing.T) *env {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	f, err := store.NewFamilyStore(db).Create(ctx, "Khan")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	ms := store.NewMemberStore(db)
	mom, _ := ms.Create(ctx, f.ID, "Amna", model.RoleParent, model.ParentTypeMom, "")
	dad, _ := ms.Create(ctx, f.ID, "Bilal", model.RoleParent, model.ParentTypeDad, "")
	kid, _ := ms.Create(ctx, f.ID, "Zara", model.RoleChild, "", "")
	sibling, _ := ms.Create(ctx, f.ID, "Ali", model.RoleChild, "", "")

	rec := &events.Recorder{}
	l := ledger.NewService(db, ledger.Options{
		Lock:     allocation.LockPolicy{Months: allocation.DefaultLockMonths},
		Clock:    ledger.FixedClock(now, time.UTC),
		Notifier: rec,
	})
	e := &env{
		db: db, svc: NewService(db, l, rec, nil, nil), recorder: rec,
		family: f, mom: mom, dad: dad, kid: kid, sibling: sibling,
	}
	e.chore = e.addChore(t, "Make bed", 100, kid, sibling)
	return e
}

// addChore creates a chore assigned daily to each of kids.
func (e *env) addChore(t *testing.T, title string, price int64, kids ...*model.Member) *model.Chore {
	t.Helper()
	ctx := context.Background()
	cs := store.NewChoreStore(e.db)
	c, err := cs.Create(ctx, e.family.ID, title, price)
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	for _, k := range kids {
		if _, err := cs.Assign(ctx, e.family.ID, k.ID, c.ID, true, model.Date{}); err != nil {
			t.Fatalf("assign chore: %v", err)
		}
	}
	return c
}

func (e *env) setCap(t *testing.T, cap int64) {
	t.Helper()
	fs := allocation.DefaultSettings(e.family.ID)
	fs.MatchCapCentsPerKidPerDay = cap
	if _, err := store.NewSettingsStore(e.db).Upsert(context.Background(), fs); err != nil {
		t.Fatalf("upsert settings: %v", err)
	}
}

func as(m *model.Member) context.Context {
	return auth.WithAuth(context.Background(), auth.AuthContext{UserID: m.ID, FamilyID: m.FamilyID, Role: m.Role, ParentType: m.ParentType})
}

// submitAndApprove records the chore for kid today and approves it as mom.
func (e *env) submitAndApprove(t *testing.T, kid *model.Member, c *model.Chore) *Result {
	t.Helper()
	comp, err := e.svc.RecordCompletion(as(kid), c.ID, today)
	if err != nil {
		t.Fatalf("RecordCompletion: %v", err)
	}
	res, err := e.svc.Approve(as(e.mom), comp.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	return res
}

func (e *env) rows(t *testing.T, completionID int64) []model.LedgerTransaction {
	t.Helper()
	rows, err := store.NewLedgerStore(e.db).ListByCompletion(context.Background(), completionID)
	if err != nil {
		t.Fatalf("ListByCompletion: %v", err)
	}
	return rows
}

func wantKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("err = %v, want %v", err, kind)
	}
}

func TestRecordCompletion(t *testing.T) {
	e := setup(t)

	c, err := e.svc.RecordCompletion(as(e.kid), e.chore.ID, model.Date{})
	if err != nil {
		t.Fatalf("RecordCompletion: %v", err)
	}
	if c.Status != model.StatusPendingApproval {
		t.Errorf("Status = %q, want %q", c.Status, model.StatusPendingApproval)
	}
	if !c.CompletedDate.Equal(today) {
		t.Errorf("CompletedDate = %s, want %s", c.CompletedDate, today)
	}
	if c.Source != model.SourceKidSubmit {
		t.Errorf("Source = %q, want %q", c.Source, model.SourceKidSubmit)
	}
	if got := e.recorder.Types(); len(got) != 1 || got[0] != "completion.submitted" {
		t.Errorf("events = %v, want [completion.submitted]", got)
	}

	// Sibling's claim on the same chore is independent.
	if _, err := e.svc.RecordCompletion(as(e.sibling), e.chore.ID, today); err != nil {
		t.Errorf("sibling RecordCompletion: %v", err)
	}
}

func TestRecordCompletionDuplicateConflicts(t *testing.T) {
	e := setup(t)
	if _, err := e.svc.RecordCompletion(as(e.kid), e.chore.ID, today); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := e.svc.RecordCompletion(as(e.kid), e.chore.ID, today)
	wantKind(t, err, apperr.ErrConflict)

	// A different day is a separate claim.
	if _, err := e.svc.RecordCompletion(as(e.kid), e.chore.ID, yesterday); err != nil {
		t.Errorf("yesterday submit: %v", err)
	}
}

func TestRecordCompletionRules(t *testing.T) {
	e := setup(t)
	unassigned := e.addChore(t, "Walk dog", 200)
	inactive := e.addChore(t, "Wash car", 300, e.kid)
	if _, err := store.NewChoreStore(e.db).Update(context.Background(), inactive.ID, inactive.Title, inactive.PriceCents, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	tests := []struct {
		name    string
		ctx     context.Context
		choreID int64
		date    model.Date
		want    error
	}{
		{"parent", as(e.mom), e.chore.ID, today, apperr.ErrUnauthorized},
		{"no identity", context.Background(), e.chore.ID, today, apperr.ErrUnauthorized},
		{"future", as(e.kid), e.chore.ID, today.AddDays(1), apperr.ErrValidation},
		{"unknown chore", as(e.kid), 9999, today, apperr.ErrNotFound},
		{"unassigned", as(e.kid), unassigned.ID, today, apperr.ErrInvalidState},
		{"inactive", as(e.kid), inactive.ID, today, apperr.ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.RecordCompletion(tt.ctx, tt.choreID, tt.date)
			wantKind(t, err, tt.want)
		})
	}
}

func TestManualAssignmentOnlyOnItsDate(t *testing.T) {
	e := setup(t)
	c := e.addChore(t, "Rake leaves", 150)
	_, err := e.svc.Assign(as(e.dad), AssignInput{KidID: e.kid.ID, ChoreID: c.ID, Mode: ModeManual, ManualDate: yesterday})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}

	_, err = e.svc.RecordCompletion(as(e.kid), c.ID, today)
	wantKind(t, err, apperr.ErrInvalidState)
	if _, err := e.svc.RecordCompletion(as(e.kid), c.ID, yesterday); err != nil {
		t.Errorf("RecordCompletion on manual date: %v", err)
	}
}

func TestRevertPendingCompletion(t *testing.T) {
	e := setup(t)
	c, err := e.svc.RecordCompletion(as(e.kid), e.chore.ID, today)
	if err != nil {
		t.Fatalf("RecordCompletion: %v", err)
	}

	wantKind(t, e.svc.RevertPendingCompletion(as(e.sibling), c.ID), apperr.ErrUnauthorized)
	wantKind(t, e.svc.RevertPendingCompletion(as(e.mom), c.ID), apperr.ErrUnauthorized)

	if err := e.svc.RevertPendingCompletion(as(e.kid), c.ID); err != nil {
		t.Fatalf("RevertPendingCompletion: %v", err)
	}
	got, _ := store.NewCompletionStore(e.db).GetByID(context.Background(), c.ID)
	if got != nil {
		t.Errorf("completion still present after revert: %+v", got)
	}
	wantKind(t, e.svc.RevertPendingCompletion(as(e.kid), c.ID), apperr.ErrNotFound)

	// The slot is free again.
	if _, err := e.svc.RecordCompletion(as(e.kid), e.chore.ID, today); err != nil {
		t.Errorf("resubmit after revert: %v", err)
	}
}

func TestRevertApprovedFails(t *testing.T) {
	e := setup(t)
	res := e.submitAndApprove(t, e.kid, e.chore)
	wantKind(t, e.svc.RevertPendingCompletion(as(e.kid), res.Completion.ID), apperr.ErrInvalidState)
}

func TestApprovePostsEarning(t *testing.T) {
	e := setup(t)
	res := e.submitAndApprove(t, e.kid, e.chore)

	if res.Completion.Status != model.StatusApproved {
		t.Errorf("Status = %q, want %q", res.Completion.Status, model.StatusApproved)
	}
	if res.Completion.ReviewedBy == nil || *res.Completion.ReviewedBy != e.mom.ID {
		t.Errorf("ReviewedBy = %v, want %d", res.Completion.ReviewedBy, e.mom.ID)
	}

	got := res.Transaction.Amounts()
	want := model.Amounts{Amount: 100, Spend: 50, Charity: 20, Savings: 30, Invest: 60, ParentMatch: 30, ParentPayable: 130}
	if got != want {
		t.Errorf("amounts = %+v, want %+v", got, want)
	}
	if res.Transaction.Source != model.LedgerChoreEarning {
		t.Errorf("Source = %q, want %q", res.Transaction.Source, model.LedgerChoreEarning)
	}
	if res.Transaction.LockUntil.String() != "2026-06-05" {
		t.Errorf("LockUntil = %s, want 2026-06-05", res.Transaction.LockUntil)
	}
}

func TestApproveTwiceIsInvalidState(t *testing.T) {
	e := setup(t)
	res := e.submitAndApprove(t, e.kid, e.chore)

	_, err := e.svc.Approve(as(e.mom), res.Completion.ID)
	wantKind(t, err, apperr.ErrInvalidState)

	if rows := e.rows(t, res.Completion.ID); len(rows) != 1 {
		t.Errorf("ledger rows = %d, want 1", len(rows))
	}
}

func TestApproveRequiresPrimaryApprover(t *testing.T) {
	e := setup(t)
	c, _ := e.svc.RecordCompletion(as(e.kid), e.chore.ID, today)

	for _, m := range []*model.Member{e.dad, e.kid} {
		_, err := e.svc.Approve(as(m), c.ID)
		wantKind(t, err, apperr.ErrUnauthorized)
	}
	_, err := e.svc.Approve(as(e.mom), 9999)
	wantKind(t, err, apperr.ErrNotFound)
}

func TestApproveMatchCap(t *testing.T) {
	e := setup(t)
	e.setCap(t, 100)
	big := e.addChore(t, "Clean garage", 300, e.kid)

	first := e.submitAndApprove(t, e.kid, big)
	if first.Transaction.ParentMatchCents != 90 {
		t.Errorf("first match = %d, want 90", first.Transaction.ParentMatchCents)
	}

	second := e.submitAndApprove(t, e.kid, e.chore)
	if second.Transaction.SavingsCents != 30 {
		t.Errorf("second savings = %d, want 30", second.Transaction.SavingsCents)
	}
	if second.Transaction.ParentMatchCents != 10 {
		t.Errorf("second match = %d, want 10", second.Transaction.ParentMatchCents)
	}
	if second.Transaction.InvestCents != 40 {
		t.Errorf("second invest = %d, want 40", second.Transaction.InvestCents)
	}

	// The cap is per kid.
	sib := e.submitAndApprove(t, e.sibling, e.chore)
	if sib.Transaction.ParentMatchCents != 30 {
		t.Errorf("sibling match = %d, want 30", sib.Transaction.ParentMatchCents)
	}
}

func TestReject(t *testing.T) {
	e := setup(t)
	c, _ := e.svc.RecordCompletion(as(e.kid), e.chore.ID, today)

	got, err := e.svc.Reject(as(e.mom), c.ID, "bed still messy")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if got.Status != model.StatusRejected {
		t.Errorf("Status = %q, want %q", got.Status, model.StatusRejected)
	}
	if got.ReviewNotes != "bed still messy" {
		t.Errorf("ReviewNotes = %q, want %q", got.ReviewNotes, "bed still messy")
	}
	if rows := e.rows(t, c.ID); len(rows) != 0 {
		t.Errorf("ledger rows = %d, want 0", len(rows))
	}

	_, err = e.svc.Reject(as(e.mom), c.ID, "again")
	wantKind(t, err, apperr.ErrInvalidState)
	_, err = e.svc.Approve(as(e.mom), c.ID)
	wantKind(t, err, apperr.ErrInvalidState)

	// A rejected claim does not block a new one.
	if _, err := e.svc.RecordCompletion(as(e.kid), e.chore.ID, today); err != nil {
		t.Errorf("resubmit after reject: %v", err)
	}
}

func TestAdjustPostsDelta(t *testing.T) {
	e := setup(t)
	res := e.submitAndApprove(t, e.kid, e.chore)
	id := res.Completion.ID

	adj, err := e.svc.Adjust(as(e.dad), id, 200, allocation.DefaultPercentages)
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if adj.Transaction == nil {
		t.Fatal("Adjust posted nothing")
	}
	if adj.Transaction.Source != model.LedgerAdjustment {
		t.Errorf("Source = %q, want %q", adj.Transaction.Source, model.LedgerAdjustment)
	}
	wantDelta := model.Amounts{Amount: 100, Spend: 50, Charity: 20, Savings: 30, Invest: 60, ParentMatch: 30, ParentPayable: 130}
	if got := adj.Transaction.Amounts(); got != wantDelta {
		t.Errorf("delta = %+v, want %+v", got, wantDelta)
	}

	net, _ := store.NewLedgerStore(e.db).NetByCompletion(context.Background(), id)
	wantNet := model.Amounts{Amount: 200, Spend: 100, Charity: 40, Savings: 60, Invest: 120, ParentMatch: 60, ParentPayable: 260}
	if net != wantNet {
		t.Errorf("net = %+v, want %+v", net, wantNet)
	}
	if adj.Completion.ReviewedBy == nil || *adj.Completion.ReviewedBy != e.dad.ID {
		t.Errorf("ReviewedBy = %v, want %d", adj.Completion.ReviewedBy, e.dad.ID)
	}
}

func TestAdjustToSameAllocationPostsNothing(t *testing.T) {
	e := setup(t)
	res := e.submitAndApprove(t, e.kid, e.chore)

	adj, err := e.svc.Adjust(as(e.dad), res.Completion.ID, 100, allocation.DefaultPercentages)
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if adj.Transaction != nil {
		t.Errorf("Transaction = %+v, want nil", adj.Transaction)
	}
	if rows := e.rows(t, res.Completion.ID); len(rows) != 1 {
		t.Errorf("ledger rows = %d, want 1", len(rows))
	}
}

func TestAdjustRespectsCapExcludingItself(t *testing.T) {
	e := setup(t)
	e.setCap(t, 100)
	res := e.submitAndApprove(t, e.kid, e.chore) // match 30

	// Re-pricing to 1000 draws savings 300, capped at 100 for the day.
	adj, err := e.svc.Adjust(as(e.dad), res.Completion.ID, 1000, allocation.DefaultPercentages)
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if adj.Transaction.ParentMatchCents != 70 {
		t.Errorf("delta match = %d, want 70", adj.Transaction.ParentMatchCents)
	}
}

func TestAdjustRules(t *testing.T) {
	e := setup(t)
	res := e.submitAndApprove(t, e.kid, e.chore)
	pending, _ := e.svc.RecordCompletion(as(e.sibling), e.chore.ID, today)

	tests := []struct {
		name   string
		ctx    context.Context
		id     int64
		amount int64
		pct    allocation.Percentages
		want   error
	}{
		{"mom", as(e.mom), res.Completion.ID, 200, allocation.DefaultPercentages, apperr.ErrUnauthorized},
		{"negative", as(e.dad), res.Completion.ID, -1, allocation.DefaultPercentages, apperr.ErrValidation},
		{"too large", as(e.dad), res.Completion.ID, allocation.MaxAmountCents + 1, allocation.DefaultPercentages, apperr.ErrValidation},
		{"bad pct", as(e.dad), res.Completion.ID, 200, allocation.Percentages{Spend: 50, Charity: 50, Savings: 50}, apperr.ErrValidation},
		{"pending", as(e.dad), pending.ID, 200, allocation.DefaultPercentages, apperr.ErrInvalidState},
		{"missing", as(e.dad), 9999, 200, allocation.DefaultPercentages, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Adjust(tt.ctx, tt.id, tt.amount, tt.pct)
			wantKind(t, err, tt.want)
		})
	}
}

func TestRevokeNetsToZero(t *testing.T) {
	e := setup(t)
	res := e.submitAndApprove(t, e.kid, e.chore)
	id := res.Completion.ID
	if _, err := e.svc.Adjust(as(e.dad), id, 250, allocation.DefaultPercentages); err != nil {
		t.Fatalf("Adjust: %v", err)
	}

	rev, err := e.svc.Revoke(as(e.dad), id)
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if rev.Completion.Status != model.StatusRevoked {
		t.Errorf("Status = %q, want %q", rev.Completion.Status, model.StatusRevoked)
	}
	if rev.Transaction == nil || rev.Transaction.Source != model.LedgerReversal {
		t.Fatalf("Transaction = %+v, want a REVERSAL", rev.Transaction)
	}

	net, _ := store.NewLedgerStore(e.db).NetByCompletion(context.Background(), id)
	if !net.IsZero() {
		t.Errorf("net after revoke = %+v, want zero", net)
	}
	totals, err := store.NewLedgerStore(e.db).Totals(context.Background(), store.TotalsFilter{FamilyID: e.family.ID, KidID: &e.kid.ID})
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals.EarnedCents != 0 || totals.InvestCents != 0 {
		t.Errorf("totals = %+v, want zero", totals)
	}

	_, err = e.svc.Revoke(as(e.dad), id)
	wantKind(t, err, apperr.ErrInvalidState)
	_, err = e.svc.Adjust(as(e.dad), id, 100, allocation.DefaultPercentages)
	wantKind(t, err, apperr.ErrInvalidState)
}

func TestRevokeRequiresOverrideApprover(t *testing.T) {
	e := setup(t)
	res := e.submitAndApprove(t, e.kid, e.chore)
	_, err := e.svc.Revoke(as(e.mom), res.Completion.ID)
	wantKind(t, err, apperr.ErrUnauthorized)
}

func TestBackfill(t *testing.T) {
	e := setup(t)
	req := BackfillRequest{ChoreID: e.chore.ID, KidID: e.kid.ID, CompletedDate: yesterday, Notes: "forgot to tap"}

	res, err := e.svc.Backfill(as(e.dad), req)
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	c := res.Completion
	if c.Status != model.StatusApproved || c.Source != model.SourceDadBackfill {
		t.Errorf("completion = %s/%s, want APPROVED/DAD_BACKFILL", c.Status, c.Source)
	}
	if c.ReviewNotes != "forgot to tap" {
		t.Errorf("ReviewNotes = %q, want %q", c.ReviewNotes, "forgot to tap")
	}
	if !res.Transaction.TxnDate.Equal(yesterday) {
		t.Errorf("TxnDate = %s, want %s", res.Transaction.TxnDate, yesterday)
	}
	if res.Transaction.AmountCents != 100 {
		t.Errorf("AmountCents = %d, want 100", res.Transaction.AmountCents)
	}

	_, err = e.svc.Backfill(as(e.dad), req)
	wantKind(t, err, apperr.ErrConflict)
	_, err = e.svc.RecordCompletion(as(e.kid), e.chore.ID, yesterday)
	wantKind(t, err, apperr.ErrConflict)
}

func TestBackfillRules(t *testing.T) {
	e := setup(t)
	tests := []struct {
		name string
		ctx  context.Context
		req  BackfillRequest
		want error
	}{
		{"mom", as(e.mom), BackfillRequest{ChoreID: e.chore.ID, KidID: e.kid.ID, CompletedDate: yesterday}, apperr.ErrUnauthorized},
		{"future", as(e.dad), BackfillRequest{ChoreID: e.chore.ID, KidID: e.kid.ID, CompletedDate: today.AddDays(2)}, apperr.ErrValidation},
		{"no date", as(e.dad), BackfillRequest{ChoreID: e.chore.ID, KidID: e.kid.ID}, apperr.ErrValidation},
		{"parent as kid", as(e.dad), BackfillRequest{ChoreID: e.chore.ID, KidID: e.mom.ID, CompletedDate: yesterday}, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Backfill(tt.ctx, tt.req)
			wantKind(t, err, tt.want)
		})
	}
}

func TestOtherFamilyIsNotFound(t *testing.T) {
	e := setup(t)
	c, _ := e.svc.RecordCompletion(as(e.kid), e.chore.ID, today)

	ctx := context.Background()
	other, _ := store.NewFamilyStore(e.db).Create(ctx, "Other")
	otherMom, _ := store.NewMemberStore(e.db).Create(ctx, other.ID, "Sara", model.RoleParent, model.ParentTypeMom, "")

	_, err := e.svc.Approve(as(otherMom), c.ID)
	wantKind(t, err, apperr.ErrNotFound)
}
