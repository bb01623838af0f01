package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"tresor/internal/alerts"
	"tresor/internal/core"
	"tresor/internal/finance"
	"tresor/internal/finance/memory"
)

type countingNotifier struct {
	mu     sync.Mutex
	events []alerts.Event
}

func (n *countingNotifier) Notify(ctx context.Context, event alerts.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func seedUser(t *testing.T, store *memory.Store, username string, spentCents int64) string {
	t.Helper()
	ctx := context.Background()

	u, err := store.CreateUser(ctx, finance.User{Username: username, PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := store.CreateBudget(ctx, u.ID, core.Budget{
		Category:              "Shopping",
		MonthlyLimit:          core.Money{Cents: 10000},
		NotificationThreshold: 80,
	}); err != nil {
		t.Fatalf("create budget: %v", err)
	}
	if _, err := store.CreateTransaction(ctx, u.ID, core.Transaction{
		Description: "achat",
		Amount:      core.Money{Cents: spentCents},
		Kind:        core.Expense,
		Category:    "Shopping",
		Date:        core.Today(),
	}); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return u.ID
}

func TestAlertWorker_EvaluatesAllUsers(t *testing.T) {
	store := memory.New()
	over := seedUser(t, store, "over", 12000)
	seedUser(t, store, "under", 1000)

	notifiers := map[string]*countingNotifier{}
	factory := func(userID string) alerts.Notifier {
		n, ok := notifiers[userID]
		if !ok {
			n = &countingNotifier{}
			notifiers[userID] = n
		}
		return n
	}

	w := NewAlertWorker(store, factory, time.Hour)
	w.evaluateAll(context.Background())

	if got := notifiers[over].count(); got != 1 {
		t.Errorf("over-budget user notifications = %d, want 1", got)
	}
	for id, n := range notifiers {
		if id != over && n.count() != 0 {
			t.Errorf("user %s notifications = %d, want 0", id, n.count())
		}
	}

	// A second sweep must not re-fire the same month's alert.
	w.evaluateAll(context.Background())
	if got := notifiers[over].count(); got != 1 {
		t.Errorf("after second sweep notifications = %d, want 1", got)
	}
}
