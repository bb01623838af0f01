package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"tresor/internal/core"
	"tresor/internal/finance/memory"
	"tresor/internal/receipt"
)

type fakeExtractor struct {
	detection receipt.Detection
	err       error
}

func (f *fakeExtractor) ProcessTicket(_ context.Context, _, _ string, _ io.Reader) (receipt.Detection, error) {
	return f.detection, f.err
}

// flakyStore fails CreateTransaction for one description.
type flakyStore struct {
	*memory.Store
	failDescription string
}

func (f *flakyStore) CreateTransaction(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	if tx.Description == f.failDescription {
		return core.Transaction{}, errors.New("insert failed")
	}
	return f.Store.CreateTransaction(ctx, userID, tx)
}

func TestReceiptFlowCommitsDrafts(t *testing.T) {
	store := memory.New()
	extractor := &fakeExtractor{detection: receipt.Detection{
		TicketID: "tk-1",
		RawText:  "PAIN 1.20\nLAIT 0.95",
		Items: []receipt.DetectedItem{
			{Label: "Pain", Amount: 1.20},
			{Label: "Lait", Amount: 0.95},
		},
	}}
	svc := NewReceiptService(extractor, store, NewTransactionService(store, nil, nil))
	ctx := context.Background()

	view, err := svc.Upload(ctx, "user-1", "ticket.jpg", "image/jpeg", strings.NewReader("img"), core.Expense)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if view.State != receipt.StateMultiMatch || len(view.Drafts) != 2 {
		t.Fatalf("view = %+v", view)
	}
	if view.TicketID != "tk-1" {
		t.Errorf("ticket id = %q", view.TicketID)
	}
	if _, err := store.TicketByID(ctx, "user-1", "tk-1"); err != nil {
		t.Errorf("ticket not saved: %v", err)
	}

	for _, d := range view.Drafts {
		if err := svc.UpdateDraft("user-1", d.ID, d.Description, d.Amount, "Alimentation"); err != nil {
			t.Fatal(err)
		}
	}

	outcome, err := svc.Submit(ctx, "user-1", receipt.SharedFields{
		Kind: core.Expense,
		Date: core.NewDate(2026, 8, 20),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !outcome.Success() {
		t.Fatalf("outcome = %+v", outcome)
	}
	if svc.View("user-1").State != receipt.StateCommitted {
		t.Errorf("state = %s after full commit", svc.View("user-1").State)
	}

	list, err := store.ListTransactions(ctx, "user-1", core.MonthKey{Year: 2026, Month: 8})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("committed %d transactions, want 2", len(list))
	}
	for _, tx := range list {
		if tx.TicketID != "tk-1" {
			t.Errorf("transaction %q lost its ticket reference", tx.Description)
		}
	}
}

func TestReceiptFlowPartialFailure(t *testing.T) {
	store := &flakyStore{Store: memory.New(), failDescription: "Lait"}
	extractor := &fakeExtractor{detection: receipt.Detection{
		Items: []receipt.DetectedItem{
			{Label: "Pain", Amount: 1.20},
			{Label: "Lait", Amount: 0.95},
			{Label: "Beurre", Amount: 2.40},
		},
	}}
	svc := NewReceiptService(extractor, store.Store, NewTransactionService(store, nil, nil))
	ctx := context.Background()

	view, err := svc.Upload(ctx, "user-1", "ticket.jpg", "image/jpeg", strings.NewReader("img"), core.Expense)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range view.Drafts {
		if err := svc.UpdateDraft("user-1", d.ID, d.Description, d.Amount, "Alimentation"); err != nil {
			t.Fatal(err)
		}
	}

	outcome, err := svc.Submit(ctx, "user-1", receipt.SharedFields{
		Kind: core.Expense,
		Date: core.NewDate(2026, 8, 20),
	})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Success() || len(outcome.Failed) != 1 || outcome.Failed[0] != "Lait" {
		t.Fatalf("outcome = %+v", outcome)
	}

	view = svc.View("user-1")
	if view.State != receipt.StatePartiallyFailed {
		t.Fatalf("state = %s, want partially_failed", view.State)
	}
	if len(view.Drafts) != 1 || view.Drafts[0].Description != "Lait" {
		t.Fatalf("remaining drafts = %+v", view.Drafts)
	}

	// The two successes are already persisted and not re-offered.
	list, err := store.ListTransactions(ctx, "user-1", core.MonthKey{Year: 2026, Month: 8})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("persisted %d transactions, want 2", len(list))
	}
}

func TestReceiptUploadFailure(t *testing.T) {
	extractor := &fakeExtractor{err: errors.New("service unavailable")}
	store := memory.New()
	svc := NewReceiptService(extractor, store, NewTransactionService(store, nil, nil))

	_, err := svc.Upload(context.Background(), "user-1", "ticket.jpg", "image/jpeg", strings.NewReader("img"), core.Expense)
	if err == nil {
		t.Fatal("expected extraction error")
	}
	if svc.View("user-1").State != receipt.StateFailed {
		t.Errorf("state = %s, want failed", svc.View("user-1").State)
	}

	// Switching to the manual form recovers.
	if err := svc.UseManualForm("user-1"); err != nil {
		t.Fatal(err)
	}
	if svc.View("user-1").State != receipt.StateSingleMatch {
		t.Errorf("state = %s after manual fallback", svc.View("user-1").State)
	}
}

func TestReceiptRejectsNonImage(t *testing.T) {
	store := memory.New()
	svc := NewReceiptService(&fakeExtractor{}, store, NewTransactionService(store, nil, nil))

	_, err := svc.Upload(context.Background(), "user-1", "doc.pdf", "application/pdf", strings.NewReader("x"), core.Expense)
	if !errors.Is(err, receipt.ErrNotImage) {
		t.Fatalf("error = %v, want ErrNotImage", err)
	}
	if svc.View("user-1").State != receipt.StateIdle {
		t.Errorf("state = %s, want idle", svc.View("user-1").State)
	}
}
