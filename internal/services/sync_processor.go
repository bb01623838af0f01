package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tresor/internal/sheets"
	"tresor/internal/storage"
)

// SyncProcessorConfig holds configuration for the sync processor.
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending items (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of items to process per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the maximum retry attempts before abandoning an entry (default: 3)
	MaxRetries int
}

// DefaultSyncProcessorConfig returns sensible defaults.
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 10 * time.Second,
		BatchSize:    10,
		MaxRetries:   3,
	}
}

// SyncProcessor drains the SQLite export queue into the spreadsheet.
// It is the fallback path that guarantees every committed transaction
// eventually reaches the sheet even when AMQP delivery was lost.
type SyncProcessor struct {
	storage *storage.SQLiteRepository
	writer  sheets.TransactionWriter
	config  SyncProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncProcessor(storage *storage.SQLiteRepository, writer sheets.TransactionWriter, config SyncProcessorConfig) *SyncProcessor {
	return &SyncProcessor{
		storage: storage,
		writer:  writer,
		config:  config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// IsRunning returns whether the processor is currently running.
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on startup
	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch exports one batch of pending queue entries.
func (p *SyncProcessor) ProcessBatch(ctx context.Context) {
	items, err := p.storage.PendingSync(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to fetch pending sync entries", "error", err)
		return
	}
	if len(items) == 0 {
		return
	}

	slog.DebugContext(ctx, "Processing sync batch", "count", len(items))

	for _, item := range items {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if _, err := p.writer.Append(ctx, item.UserID, item.Transaction); err != nil {
			p.handleFailure(ctx, item, err)
			continue
		}
		if err := p.storage.MarkSynced(ctx, item.QueueID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark entry as synced",
				"queue_id", item.QueueID, "error", err)
		}
	}
}

func (p *SyncProcessor) handleFailure(ctx context.Context, item storage.PendingSyncTransaction, cause error) {
	slog.ErrorContext(ctx, "Failed to export transaction",
		"queue_id", item.QueueID,
		"transaction_id", item.Transaction.ID,
		"attempts", item.Attempts,
		"error", cause)

	if item.Attempts+1 >= int64(p.config.MaxRetries) {
		if err := p.storage.MarkSyncFailed(ctx, item.QueueID); err != nil {
			slog.ErrorContext(ctx, "Failed to abandon sync entry",
				"queue_id", item.QueueID, "error", err)
		}
		return
	}
	if err := p.storage.MarkSyncError(ctx, item.QueueID); err != nil {
		slog.ErrorContext(ctx, "Failed to record sync attempt",
			"queue_id", item.QueueID, "error", err)
	}
}
