// Package services orchestrates the domain packages over the
// persistence ports: transactions, budgets, alerts and the receipt
// capture flow.
package services

import (
	"context"
	"log/slog"

	"tresor/internal/core"
	"tresor/internal/finance"
)

// SyncQueue enqueues a committed transaction for spreadsheet export.
type SyncQueue interface {
	EnqueueSync(ctx context.Context, transactionID string) (int64, error)
}

// SyncPublisher notifies the export worker that a queue entry exists.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, queueID int64, transactionID string) error
}

// TransactionService saves transactions and feeds the export pipeline.
type TransactionService struct {
	store     finance.TransactionStore
	queue     SyncQueue     // optional
	publisher SyncPublisher // optional
}

func NewTransactionService(store finance.TransactionStore, queue SyncQueue, publisher SyncPublisher) *TransactionService {
	return &TransactionService{store: store, queue: queue, publisher: publisher}
}

// Create saves the transaction locally first, then enqueues it for
// export. Export plumbing failures are logged, never surfaced: the
// local save is the source of truth.
func (s *TransactionService) Create(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	created, err := s.store.CreateTransaction(ctx, userID, tx)
	if err != nil {
		return core.Transaction{}, err
	}

	if s.queue != nil {
		queueID, err := s.queue.EnqueueSync(ctx, created.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to enqueue transaction for export",
				"transaction_id", created.ID, "error", err)
			return created, nil
		}
		if s.publisher != nil {
			if err := s.publisher.PublishTransactionSync(ctx, queueID, created.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to publish sync message",
					"transaction_id", created.ID, "error", err)
			}
		}
	}
	return created, nil
}

// Update rewrites a transaction in place. Updates stay local: the
// spreadsheet export is append-only, so edits are not re-enqueued.
func (s *TransactionService) Update(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	return s.store.UpdateTransaction(ctx, userID, tx)
}

func (s *TransactionService) List(ctx context.Context, userID string, month core.MonthKey) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, userID, month)
}

func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	return s.store.DeleteTransaction(ctx, userID, id)
}
