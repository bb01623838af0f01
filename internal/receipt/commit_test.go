package receipt

import (
	"context"
	"errors"
	"testing"

	"tresor/internal/core"
)

func TestCommitAllHappyPath(t *testing.T) {
	drafts := []Draft{
		{ID: "a", Description: "Pain", Amount: "1.20", Category: "Alimentation", Valid: true},
		{ID: "b", Description: "Lait", Amount: "0.95", Category: "Alimentation", Valid: true},
	}
	shared := SharedFields{Kind: core.Expense, Date: core.NewDate(2026, 3, 14), TicketID: "tk-1"}

	var got []CreateRequest
	outcome := CommitAll(context.Background(), drafts, shared, func(_ context.Context, req CreateRequest) error {
		got = append(got, req)
		return nil
	})

	if !outcome.Success() || outcome.Attempted != 2 {
		t.Fatalf("outcome = %+v, want full success over 2 drafts", outcome)
	}
	if len(got) != 2 {
		t.Fatalf("create called %d times, want 2", len(got))
	}
	if got[0].Description != "Pain" || got[0].Amount.Cents != 120 {
		t.Errorf("first request = %+v", got[0])
	}
	if got[1].Amount.Cents != 95 || got[1].TicketID != "tk-1" || got[1].Kind != core.Expense {
		t.Errorf("second request = %+v", got[1])
	}
	for _, d := range drafts {
		if !outcome.Succeeded(d.ID) {
			t.Errorf("draft %s not marked succeeded", d.ID)
		}
	}
}

func TestCommitAllContinuesPastFailure(t *testing.T) {
	drafts := []Draft{
		{ID: "a", Description: "Pain", Amount: "1.20", Category: "Alimentation"},
		{ID: "b", Description: "Lait", Amount: "0.95", Category: "Alimentation"},
		{ID: "c", Description: "Beurre", Amount: "2.40", Category: "Alimentation"},
	}
	boom := errors.New("insert failed")
	var calls []string
	outcome := CommitAll(context.Background(), drafts, SharedFields{Kind: core.Expense, Date: core.NewDate(2026, 3, 14)},
		func(_ context.Context, req CreateRequest) error {
			calls = append(calls, req.Description)
			if req.Description == "Lait" {
				return boom
			}
			return nil
		})

	if len(calls) != 3 {
		t.Fatalf("create called for %v, want all three drafts", calls)
	}
	if outcome.Success() {
		t.Fatal("outcome reports success despite a failure")
	}
	if len(outcome.Failed) != 1 || outcome.Failed[0] != "Lait" {
		t.Errorf("Failed = %v, want [Lait]", outcome.Failed)
	}
	if !outcome.Succeeded("a") || outcome.Succeeded("b") || !outcome.Succeeded("c") {
		t.Errorf("succeeded flags wrong: a=%v b=%v c=%v",
			outcome.Succeeded("a"), outcome.Succeeded("b"), outcome.Succeeded("c"))
	}
}

func TestCommitAllUnparseableAmountFails(t *testing.T) {
	drafts := []Draft{{ID: "a", Description: "Pain", Amount: "abc", Category: "Alimentation"}}
	called := false
	outcome := CommitAll(context.Background(), drafts, SharedFields{Kind: core.Expense, Date: core.NewDate(2026, 3, 14)},
		func(context.Context, CreateRequest) error {
			called = true
			return nil
		})
	if called {
		t.Error("create called for an unparseable amount")
	}
	if outcome.Success() || len(outcome.Failed) != 1 {
		t.Errorf("outcome = %+v, want one failure", outcome)
	}
}

func TestCommitAllCancelledContext(t *testing.T) {
	drafts := []Draft{
		{ID: "a", Description: "Pain", Amount: "1.20", Category: "Alimentation"},
		{ID: "b", Description: "Lait", Amount: "0.95", Category: "Alimentation"},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := CommitAll(ctx, drafts, SharedFields{Kind: core.Expense, Date: core.NewDate(2026, 3, 14)},
		func(context.Context, CreateRequest) error {
			t.Fatal("create called with a cancelled context")
			return nil
		})
	if outcome.Success() || len(outcome.Failed) != 2 {
		t.Errorf("outcome = %+v, want both drafts failed", outcome)
	}
}
