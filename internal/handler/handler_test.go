package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/dukerupert/choreledger/internal/allocation"
	"github.com/dukerupert/choreledger/internal/auth"
	"github.com/dukerupert/choreledger/internal/chore"
	"github.com/dukerupert/choreledger/internal/database"
	"github.com/dukerupert/choreledger/internal/events"
	"github.com/dukerupert/choreledger/internal/ledger"
	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/store"
	"github.com/dukerupert/choreledger/internal/topup"
)

var now = time.Date(2026, time.February, 5, 18, 0, 0, 0, time.UTC)

type env struct {
	db       *sql.DB
	recorder *events.Recorder
	rpc      *RPCHandler
	chores   *ChoreHandler
	ledger   *LedgerHandler
	settings *SettingsHandler
	members  *MemberHandler
	mom      *model.Member
	dad      *model.Member
	kid      *model.Member
	chore    *model.Chore
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T) *env {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	f, err := store.NewFamilyStore(db).Create(ctx, "Okafor")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	ms := store.NewMemberStore(db)
	mom, _ := ms.Create(ctx, f.ID, "Ada", model.RoleParent, model.ParentTypeMom, "")
	dad, _ := ms.Create(ctx, f.ID, "Emeka", model.RoleParent, model.ParentTypeDad, "")
	kid, _ := ms.Create(ctx, f.ID, "Ngozi", model.RoleChild, "", "")

	cs := store.NewChoreStore(db)
	c, err := cs.Create(ctx, f.ID, "Feed the cat", 100)
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	if _, err := cs.Assign(ctx, f.ID, kid.ID, c.ID, true, model.Date{}); err != nil {
		t.Fatalf("assign chore: %v", err)
	}

	rec := &events.Recorder{}
	logger := quietLogger()
	l := ledger.NewService(db, ledger.Options{
		Lock:     allocation.LockPolicy{Months: allocation.DefaultLockMonths},
		Clock:    ledger.FixedClock(now, time.UTC),
		Notifier: rec,
		Logger:   logger,
	})
	choreSvc := chore.NewService(db, l, rec, nil, logger)
	gen := topup.NewGenerator(db, l, rec, nil, logger)

	return &env{
		db:       db,
		recorder: rec,
		rpc:      NewRPCHandler(choreSvc, l, gen, logger),
		chores:   NewChoreHandler(choreSvc, logger),
		ledger:   NewLedgerHandler(l, logger),
		settings: NewSettingsHandler(store.NewSettingsStore(db), ms, rec, logger),
		members:  NewMemberHandler(db, rec, logger),
		mom:      mom,
		dad:      dad,
		kid:      kid,
		chore:    c,
	}
}

// call invokes h as member m with body encoded as JSON. A nil body sends
// an empty request body.
func call(t *testing.T, h http.HandlerFunc, m *model.Member, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if m != nil {
		req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{
			UserID: m.ID, FamilyID: m.FamilyID, Role: m.Role, ParentType: m.ParentType,
		}))
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func callWithID(t *testing.T, h http.HandlerFunc, m *model.Member, method string, id int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	return call(t, func(w http.ResponseWriter, r *http.Request) {
		r.SetPathValue("id", strconv.FormatInt(id, 10))
		h(w, r)
	}, m, method, "/", body)
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func wantStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rr.Code, want, rr.Body.String())
	}
}

// submit records the chore for the kid today and returns the completion id.
func (e *env) submit(t *testing.T) int64 {
	t.Helper()
	rr := call(t, e.rpc.RecordCompletion, e.kid, http.MethodPost, "/rpc/record_chore_completion",
		map[string]any{"chore_id": e.chore.ID})
	wantStatus(t, rr, http.StatusCreated)
	return decodeBody[model.ChoreCompletion](t, rr).ID
}
