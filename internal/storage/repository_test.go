package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tresor/internal/alerts"
	"tresor/internal/core"
	"tresor/internal/finance"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "tresor.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestUser(t *testing.T, repo *SQLiteRepository) finance.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), finance.User{
		Username:     "alice",
		PasswordHash: "not-a-real-hash",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestTransactionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	user := newTestUser(t, repo)
	ctx := context.Background()

	created, err := repo.CreateTransaction(ctx, user.ID, core.Transaction{
		Description: "Courses de la semaine",
		Amount:      core.Money{Cents: 4530},
		Kind:        core.Expense,
		Category:    "Alimentation",
		Date:        core.NewDate(2026, 8, 12),
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if created.ID == "" {
		t.Fatal("transaction has no id")
	}

	// A transaction in another month must not show up.
	if _, err := repo.CreateTransaction(ctx, user.ID, core.Transaction{
		Description: "Vieux loyer",
		Amount:      core.Money{Cents: 80000},
		Kind:        core.Expense,
		Category:    "Logement",
		Date:        core.NewDate(2026, 7, 1),
	}); err != nil {
		t.Fatal(err)
	}

	list, err := repo.ListTransactions(ctx, user.ID, core.MonthKey{Year: 2026, Month: time.August})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d transactions for august, want 1", len(list))
	}
	got := list[0]
	if got.Description != "Courses de la semaine" || got.Amount.Cents != 4530 || got.Kind != core.Expense {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Date.String() != "2026-08-12" {
		t.Errorf("date = %s", got.Date)
	}

	if err := repo.DeleteTransaction(ctx, user.ID, got.ID); err != nil {
		t.Fatalf("delete transaction: %v", err)
	}
	if err := repo.DeleteTransaction(ctx, user.ID, got.ID); !errors.Is(err, finance.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestTransactionUpdate(t *testing.T) {
	repo := newTestRepo(t)
	user := newTestUser(t, repo)
	ctx := context.Background()

	created, err := repo.CreateTransaction(ctx, user.ID, core.Transaction{
		Description: "Billets de train",
		Amount:      core.Money{Cents: 3500},
		Kind:        core.Expense,
		Category:    "Transport",
		Date:        core.NewDate(2026, 8, 5),
		TicketID:    "ticket-7",
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	updated, err := repo.UpdateTransaction(ctx, user.ID, core.Transaction{
		ID:          created.ID,
		Description: "Billets de train aller-retour",
		Amount:      core.Money{Cents: 7000},
		Kind:        core.Expense,
		Category:    "Transport",
		Date:        core.NewDate(2026, 8, 6),
	})
	if err != nil {
		t.Fatalf("update transaction: %v", err)
	}
	if updated.Amount.Cents != 7000 || updated.Date.String() != "2026-08-06" {
		t.Errorf("updated = %+v", updated)
	}
	if updated.TicketID != "ticket-7" {
		t.Errorf("TicketID = %q, want the original ticket link preserved", updated.TicketID)
	}
	// Stored timestamps have second precision.
	if !updated.CreatedAt.Equal(created.CreatedAt.Truncate(time.Second)) {
		t.Errorf("CreatedAt changed: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}

	list, err := repo.ListTransactions(ctx, user.ID, core.MonthKey{Year: 2026, Month: time.August})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Description != "Billets de train aller-retour" {
		t.Errorf("list after update = %+v", list)
	}

	_, err = repo.UpdateTransaction(ctx, user.ID, core.Transaction{
		ID:          "missing",
		Description: "x",
		Amount:      core.Money{Cents: 100},
		Kind:        core.Expense,
		Date:        core.NewDate(2026, 8, 6),
	})
	if !errors.Is(err, finance.ErrNotFound) {
		t.Errorf("missing id error = %v, want ErrNotFound", err)
	}

	// Another user cannot touch the row.
	other, err := repo.CreateUser(ctx, finance.User{Username: "mallory", PasswordHash: "h"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = repo.UpdateTransaction(ctx, other.ID, core.Transaction{
		ID:          created.ID,
		Description: "hijack",
		Amount:      core.Money{Cents: 1},
		Kind:        core.Expense,
		Date:        core.NewDate(2026, 8, 6),
	})
	if !errors.Is(err, finance.ErrNotFound) {
		t.Errorf("cross-user update error = %v, want ErrNotFound", err)
	}
}

func TestBudgetCategoryUnique(t *testing.T) {
	repo := newTestRepo(t)
	user := newTestUser(t, repo)
	ctx := context.Background()

	first, err := repo.CreateBudget(ctx, user.ID, core.Budget{
		Category:              "Transport",
		MonthlyLimit:          core.Money{Cents: 10000},
		NotificationThreshold: 80,
	})
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}

	_, err = repo.CreateBudget(ctx, user.ID, core.Budget{
		Category:              "Transport",
		MonthlyLimit:          core.Money{Cents: 5000},
		NotificationThreshold: 90,
	})
	if !errors.Is(err, finance.ErrBudgetExists) {
		t.Fatalf("duplicate category error = %v, want ErrBudgetExists", err)
	}

	first.MonthlyLimit = core.Money{Cents: 12000}
	if err := repo.UpdateBudget(ctx, user.ID, first); err != nil {
		t.Fatalf("update budget: %v", err)
	}

	budgets, err := repo.ListBudgets(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(budgets) != 1 || budgets[0].MonthlyLimit.Cents != 12000 {
		t.Errorf("budgets = %+v", budgets)
	}
}

func TestUserUniqueUsername(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateUser(ctx, finance.User{Username: "bob", PasswordHash: "h"}); err != nil {
		t.Fatal(err)
	}
	_, err := repo.CreateUser(ctx, finance.User{Username: "bob", PasswordHash: "h2"})
	if !errors.Is(err, finance.ErrUsernameInUse) {
		t.Fatalf("duplicate username error = %v, want ErrUsernameInUse", err)
	}

	u, err := repo.UserByUsername(ctx, "bob")
	if err != nil || u.Username != "bob" {
		t.Fatalf("lookup = %+v, %v", u, err)
	}
	if _, err := repo.UserByUsername(ctx, "nobody"); !errors.Is(err, finance.ErrNotFound) {
		t.Errorf("missing user error = %v, want ErrNotFound", err)
	}
}

func TestAlertRecordPersistence(t *testing.T) {
	repo := newTestRepo(t)
	user := newTestUser(t, repo)
	ctx := context.Background()

	record := alerts.NewRecord()
	record[alerts.Key{Month: core.MonthKey{Year: 2026, Month: time.August}, Category: "Transport"}] = struct{}{}
	record[alerts.Key{Month: core.MonthKey{Year: 2026, Month: time.August}, Category: "Loisirs"}] = struct{}{}

	if err := repo.Save(ctx, user.ID, record); err != nil {
		t.Fatalf("save record: %v", err)
	}
	loaded, err := repo.Load(ctx, user.ID)
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d keys, want 2", len(loaded))
	}
	if !loaded.Has(alerts.Key{Month: core.MonthKey{Year: 2026, Month: time.August}, Category: "Transport"}) {
		t.Error("Transport key missing after round trip")
	}

	// Saving a pruned record replaces the old one.
	pruned := alerts.NewRecord()
	pruned[alerts.Key{Month: core.MonthKey{Year: 2026, Month: time.September}, Category: "Transport"}] = struct{}{}
	if err := repo.Save(ctx, user.ID, pruned); err != nil {
		t.Fatal(err)
	}
	loaded, err = repo.Load(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 {
		t.Errorf("loaded %d keys after replace, want 1", len(loaded))
	}
}

func TestSyncQueue(t *testing.T) {
	repo := newTestRepo(t)
	user := newTestUser(t, repo)
	ctx := context.Background()

	tx, err := repo.CreateTransaction(ctx, user.ID, core.Transaction{
		Description: "Essence",
		Amount:      core.Money{Cents: 6200},
		Kind:        core.Expense,
		Category:    "Transport",
		Date:        core.NewDate(2026, 8, 20),
	})
	if err != nil {
		t.Fatal(err)
	}
	queueID, err := repo.EnqueueSync(ctx, tx.ID)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if queueID == 0 {
		t.Fatal("queue id is zero")
	}

	pending, err := repo.PendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Transaction.ID != tx.ID || pending[0].UserID != user.ID {
		t.Fatalf("pending = %+v", pending)
	}

	if err := repo.MarkSynced(ctx, pending[0].QueueID); err != nil {
		t.Fatal(err)
	}
	pending, err = repo.PendingSync(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("queue still has %d entries after MarkSynced", len(pending))
	}
}
