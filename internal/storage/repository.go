// Package storage is the SQLite adapter behind the finance ports.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"tresor/internal/alerts"
	"tresor/internal/core"
	"tresor/internal/finance"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, description, amount_cents, kind, category, tx_date, ticket_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, userID, tx.Description, tx.Amount.Cents, string(tx.Kind), tx.Category,
		tx.Date.String(), tx.TicketID, tx.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"description", tx.Description,
		"amount_cents", tx.Amount.Cents,
		"kind", tx.Kind,
		"date", tx.Date.String())

	return tx, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET description = ?, amount_cents = ?, kind = ?, category = ?, tx_date = ?
		WHERE id = ? AND user_id = ?`,
		tx.Description, tx.Amount.Cents, string(tx.Kind), tx.Category,
		tx.Date.String(), tx.ID, userID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Transaction{}, finance.ErrNotFound
	}

	var (
		ticketID  string
		createdAt string
	)
	err = r.db.QueryRowContext(ctx,
		`SELECT ticket_id, created_at FROM transactions WHERE id = ?`, tx.ID).
		Scan(&ticketID, &createdAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("reload transaction: %w", err)
	}
	tx.TicketID = ticketID
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		tx.CreatedAt = t
	}
	return tx, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, month core.MonthKey) ([]core.Transaction, error) {
	start, end := month.Bounds()
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, description, amount_cents, kind, category, tx_date, ticket_id, created_at
		FROM transactions
		WHERE user_id = ? AND tx_date >= ? AND tx_date <= ?
		ORDER BY tx_date DESC, created_at DESC`,
		userID, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx        core.Transaction
			cents     int64
			kind      string
			date      string
			createdAt string
		)
		if err := rows.Scan(&tx.ID, &tx.Description, &cents, &kind, &tx.Category, &date, &tx.TicketID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Amount = core.Money{Cents: cents}
		tx.Kind = core.TransactionKind(kind)
		if tx.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("parse transaction date %q: %w", date, err)
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			tx.CreatedAt = t
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return finance.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, userID string, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (id, user_id, category, monthly_limit_cents, notification_threshold)
		VALUES (?, ?, ?, ?, ?)`,
		b.ID, userID, b.Category, b.MonthlyLimit.Cents, b.NotificationThreshold)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Budget{}, finance.ErrBudgetExists
		}
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, userID string, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE budgets
		SET category = ?, monthly_limit_cents = ?, notification_threshold = ?
		WHERE id = ? AND user_id = ?`,
		b.Category, b.MonthlyLimit.Cents, b.NotificationThreshold, b.ID, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return finance.ErrBudgetExists
		}
		return fmt.Errorf("update budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return finance.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return finance.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category, monthly_limit_cents, notification_threshold
		FROM budgets WHERE user_id = ? ORDER BY category`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var (
			b     core.Budget
			cents int64
		)
		if err := rows.Scan(&b.ID, &b.Category, &cents, &b.NotificationThreshold); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		b.MonthlyLimit = core.Money{Cents: cents}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u finance.User) (finance.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, created_at)
		VALUES (?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return finance.User{}, finance.ErrUsernameInUse
		}
		return finance.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) UserByUsername(ctx context.Context, username string) (finance.User, error) {
	var (
		u         finance.User
		createdAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at
		FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return finance.User{}, finance.ErrNotFound
	}
	if err != nil {
		return finance.User{}, fmt.Errorf("get user: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		u.CreatedAt = t
	}
	return u, nil
}

func (r *SQLiteRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) SaveTicket(ctx context.Context, t finance.Ticket) (finance.Ticket, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tickets (id, user_id, raw_text, created_at)
		VALUES (?, ?, ?, ?)`,
		t.ID, t.UserID, t.RawText, t.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return finance.Ticket{}, fmt.Errorf("save ticket: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) TicketByID(ctx context.Context, userID, id string) (finance.Ticket, error) {
	var (
		t         finance.Ticket
		createdAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, raw_text, created_at
		FROM tickets WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&t.ID, &t.UserID, &t.RawText, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return finance.Ticket{}, finance.ErrNotFound
	}
	if err != nil {
		return finance.Ticket{}, fmt.Errorf("get ticket: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		t.CreatedAt = ts
	}
	return t, nil
}

// Load implements alerts.RecordStore.
func (r *SQLiteRepository) Load(ctx context.Context, userID string) (alerts.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT month, category FROM notified_budgets WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("load alert record: %w", err)
	}
	defer rows.Close()

	record := alerts.NewRecord()
	for rows.Next() {
		var month, category string
		if err := rows.Scan(&month, &category); err != nil {
			return nil, fmt.Errorf("scan alert record: %w", err)
		}
		key, err := core.ParseMonthKey(month)
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed alert record entry", "month", month)
			continue
		}
		record[alerts.Key{Month: key, Category: category}] = struct{}{}
	}
	return record, rows.Err()
}

// Save implements alerts.RecordStore by replacing the stored record.
func (r *SQLiteRepository) Save(ctx context.Context, userID string, record alerts.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save alert record: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM notified_budgets WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear alert record: %w", err)
	}
	for key := range record {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO notified_budgets (user_id, month, category)
			VALUES (?, ?, ?)`,
			userID, key.Month.String(), key.Category); err != nil {
			return fmt.Errorf("insert alert record: %w", err)
		}
	}
	return tx.Commit()
}

// PendingSyncTransaction is one queue entry awaiting export.
type PendingSyncTransaction struct {
	QueueID     int64
	Attempts    int64
	UserID      string
	Transaction core.Transaction
}

// EnqueueSync puts a transaction on the export queue and returns the
// queue entry id.
func (r *SQLiteRepository) EnqueueSync(ctx context.Context, transactionID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_queue (transaction_id) VALUES (?)`, transactionID)
	if err != nil {
		return 0, fmt.Errorf("enqueue sync: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("enqueue sync: %w", err)
	}
	return id, nil
}

// PendingSync returns up to limit queue entries still waiting to be
// exported, oldest first.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]PendingSyncTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT q.id, q.attempts, t.user_id, t.id, t.description, t.amount_cents, t.kind, t.category, t.tx_date, t.ticket_id
		FROM sync_queue q
		JOIN transactions t ON t.id = q.transaction_id
		WHERE q.state = 'pending'
		ORDER BY q.id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync: %w", err)
	}
	defer rows.Close()

	var out []PendingSyncTransaction
	for rows.Next() {
		var (
			p     PendingSyncTransaction
			cents int64
			kind  string
			date  string
		)
		if err := rows.Scan(&p.QueueID, &p.Attempts, &p.UserID, &p.Transaction.ID, &p.Transaction.Description,
			&cents, &kind, &p.Transaction.Category, &date, &p.Transaction.TicketID); err != nil {
			return nil, fmt.Errorf("scan pending sync: %w", err)
		}
		p.Transaction.Amount = core.Money{Cents: cents}
		p.Transaction.Kind = core.TransactionKind(kind)
		if p.Transaction.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("parse pending sync date %q: %w", date, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced marks a queue entry as exported.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, queueID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_queue SET state = 'synced', updated_at = datetime('now')
		WHERE id = ?`, queueID)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	slog.InfoContext(ctx, "Sync queue entry marked as synced", "queue_id", queueID)
	return nil
}

// MarkSyncError records a failed export attempt; the entry stays
// pending so the next worker pass retries it.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, queueID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_queue SET attempts = attempts + 1, updated_at = datetime('now')
		WHERE id = ?`, queueID)
	if err != nil {
		return fmt.Errorf("mark sync error: %w", err)
	}
	slog.WarnContext(ctx, "Sync queue entry failed an attempt", "queue_id", queueID)
	return nil
}

// MarkSyncFailed takes a queue entry out of the pending set for good,
// after the retry budget is spent.
func (r *SQLiteRepository) MarkSyncFailed(ctx context.Context, queueID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_queue SET state = 'error', updated_at = datetime('now')
		WHERE id = ?`, queueID)
	if err != nil {
		return fmt.Errorf("mark sync failed: %w", err)
	}
	slog.ErrorContext(ctx, "Sync queue entry abandoned after repeated failures", "queue_id", queueID)
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
