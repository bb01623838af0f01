// Package worker hosts the long-running background processes: spreadsheet
// export and periodic budget alert evaluation.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"tresor/internal/amqp"
	"tresor/internal/services"
)

// ExportWorker drains the transaction export queue into the spreadsheet.
// AMQP messages act as a nudge to process immediately; the processor's
// poll loop is the fallback that catches anything a lost message left
// behind.
type ExportWorker struct {
	processor *services.SyncProcessor
	client    *amqp.Client // optional
}

func NewExportWorker(processor *services.SyncProcessor, client *amqp.Client) *ExportWorker {
	return &ExportWorker{processor: processor, client: client}
}

// Run starts the poll loop and, when a broker is configured, consumes
// sync messages until the context is cancelled.
func (w *ExportWorker) Run(ctx context.Context) error {
	if err := w.processor.Start(ctx); err != nil {
		return fmt.Errorf("start sync processor: %w", err)
	}
	defer func() {
		if err := w.processor.Stop(context.Background()); err != nil {
			slog.Error("Failed to stop sync processor", "error", err)
		}
	}()

	// Catch up on anything left over from before the last shutdown.
	w.processor.ProcessBatch(ctx)

	if w.client == nil {
		slog.InfoContext(ctx, "No AMQP client configured, relying on polling only")
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		err := w.client.ConsumeTransactionSync(ctx, func(msg *amqp.TransactionSyncMessage) error {
			slog.InfoContext(ctx, "Export nudge received",
				"queue_id", msg.QueueID,
				"transaction_id", msg.TransactionID)
			w.processor.ProcessBatch(ctx)
			return nil
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.WarnContext(ctx, "Consumer stopped, reconnecting", "error", err)
		if err := w.client.Reconnect(ctx); err != nil {
			return fmt.Errorf("reconnect: %w", err)
		}
	}
}
