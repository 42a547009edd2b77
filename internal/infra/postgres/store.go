// Package postgres implements port.Store on PostgreSQL through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("postgres")

// schemaLockKey serializes bootstrap DDL across concurrent startups.
const schemaLockKey int64 = 2025051501

// Store is the Postgres-backed port.Store.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// OpenDB opens and pings a pgx-backed *sql.DB.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// Ping checks connectivity, for the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema creates the tables when missing. Safe to run on every start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS invoices (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	amount NUMERIC(12,2),
	due_date DATE,
	issue_date DATE,
	issuer TEXT,
	category TEXT NOT NULL DEFAULT 'outros',
	description TEXT,
	extracted_text TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	paid BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_invoices_due_date ON invoices(due_date) WHERE paid = FALSE;
CREATE INDEX IF NOT EXISTS idx_invoices_created_at ON invoices(created_at DESC);

CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	schedule_date TIMESTAMPTZ NOT NULL,
	sent BOOLEAN NOT NULL DEFAULT FALSE,
	email TEXT NOT NULL,
	message TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	processed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_notifications_pending ON notifications(schedule_date) WHERE sent = FALSE;
DROP INDEX IF EXISTS idx_notifications_invoice;
CREATE UNIQUE INDEX IF NOT EXISTS uq_notifications_invoice_type ON notifications(invoice_id, type);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// ============================================================
// Invoices
// ============================================================

const invoiceColumns = `id, filename, amount, due_date, issue_date, issuer, category, description, extracted_text, status, paid, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	var inv domain.Invoice
	var category, status string
	err := row.Scan(
		&inv.ID, &inv.Filename, &inv.Amount, &inv.DueDate, &inv.IssueDate, &inv.Issuer,
		&category, &inv.Description, &inv.ExtractedText, &status, &inv.Paid, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Category = domain.Category(category)
	inv.Status = domain.InvoiceStatus(status)
	return &inv, nil
}

func (s *Store) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	ctx, span := tracer.Start(ctx, "Postgres.CreateInvoice")
	defer span.End()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO invoices (`+invoiceColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		inv.ID, inv.Filename, inv.Amount, inv.DueDate, inv.IssueDate, inv.Issuer, string(inv.Category),
		inv.Description, inv.ExtractedText, string(inv.Status), inv.Paid, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *domain.Invoice) error {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateInvoice")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `
UPDATE invoices
SET amount = $2, due_date = $3, issue_date = $4, issuer = $5, category = $6, description = $7,
	extracted_text = $8, status = $9, paid = $10, updated_at = $11
WHERE id = $1
`,
		inv.ID, inv.Amount, inv.DueDate, inv.IssueDate, inv.Issuer, string(inv.Category), inv.Description,
		inv.ExtractedText, string(inv.Status), inv.Paid, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	return requireOneRow(res, "invoice", inv.ID)
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetInvoice")
	defer span.End()
	span.SetAttributes(attribute.String("invoice.id", id))

	row := s.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.ErrNotFound{Resource: "invoice", ID: id}
		}
		return nil, fmt.Errorf("scan invoice: %w", err)
	}
	return inv, nil
}

// buildInvoiceWhere turns a filter into a WHERE clause with positional args.
func buildInvoiceWhere(f domain.InvoiceFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Category != nil {
		add("category = $%d", string(*f.Category))
	}
	if f.Paid != nil {
		add("paid = $%d", *f.Paid)
	}
	if f.DueFrom != nil {
		add("due_date >= $%d", *f.DueFrom)
	}
	if f.DueTo != nil {
		add("due_date <= $%d", *f.DueTo)
	}
	if f.MinAmount != nil {
		add("amount >= $%d", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		add("amount <= $%d", *f.MaxAmount)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(issuer ILIKE $%d OR description ILIKE $%d OR filename ILIKE $%d)", n, n, n))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListInvoices")
	defer span.End()

	where, args := buildInvoiceWhere(filter)
	rows, err := s.db.QueryContext(ctx, `SELECT `+invoiceColumns+` FROM invoices`+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	return out, nil
}

// DeleteInvoice removes the invoice; notifications go with it through the
// foreign key cascade.
func (s *Store) DeleteInvoice(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteInvoice")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	return requireOneRow(res, "invoice", id)
}

// ============================================================
// Notifications
// ============================================================

const notificationColumns = `id, invoice_id, type, schedule_date, sent, email, message, created_at, processed_at`

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var n domain.Notification
	var typ string
	err := row.Scan(&n.ID, &n.InvoiceID, &typ, &n.ScheduledDate, &n.Sent, &n.Recipient, &n.Message, &n.CreatedAt, &n.ProcessedAt)
	if err != nil {
		return nil, err
	}
	n.Type = domain.NotificationType(typ)
	return &n, nil
}

func (s *Store) queryNotifications(ctx context.Context, query string, args ...any) ([]domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	ctx, span := tracer.Start(ctx, "Postgres.CreateNotification")
	defer span.End()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO notifications (`+notificationColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		n.ID, n.InvoiceID, string(n.Type), n.ScheduledDate, n.Sent, n.Recipient, n.Message, n.CreatedAt, n.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// CreateNotificationIfAbsent leans on the (invoice_id, type) unique index:
// a conflicting insert affects no rows.
func (s *Store) CreateNotificationIfAbsent(ctx context.Context, n *domain.Notification) (bool, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateNotificationIfAbsent")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `
INSERT INTO notifications (`+notificationColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (invoice_id, type) DO NOTHING
`,
		n.ID, n.InvoiceID, string(n.Type), n.ScheduledDate, n.Sent, n.Recipient, n.Message, n.CreatedAt, n.ProcessedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert notification rows: %w", err)
	}
	return rows == 1, nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (*domain.Notification, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetNotification")
	defer span.End()

	row := s.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.ErrNotFound{Resource: "notification", ID: id}
		}
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListNotifications")
	defer span.End()

	return s.queryNotifications(ctx, `SELECT `+notificationColumns+` FROM notifications ORDER BY schedule_date DESC`)
}

func (s *Store) ListPendingNotifications(ctx context.Context, now time.Time) ([]domain.Notification, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListPendingNotifications")
	defer span.End()

	return s.queryNotifications(ctx, `
SELECT `+notificationColumns+`
FROM notifications
WHERE sent = FALSE AND schedule_date <= $1
ORDER BY schedule_date ASC
`, now)
}

func (s *Store) HasNotification(ctx context.Context, invoiceID string, typ domain.NotificationType) (bool, error) {
	ctx, span := tracer.Start(ctx, "Postgres.HasNotification")
	defer span.End()

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM notifications WHERE invoice_id = $1 AND type = $2)`,
		invoiceID, string(typ),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check notification: %w", err)
	}
	return exists, nil
}

// ClaimNotification stamps processed_at with a conditional UPDATE; the row
// count says whether this caller won.
func (s *Store) ClaimNotification(ctx context.Context, id string, at, staleBefore time.Time) (bool, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ClaimNotification")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `
UPDATE notifications
SET processed_at = $2
WHERE id = $1 AND sent = FALSE AND (processed_at IS NULL OR processed_at < $3)
`, id, at, staleBefore)
	if err != nil {
		return false, fmt.Errorf("claim notification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim notification rows: %w", err)
	}
	return n == 1, nil
}

func (s *Store) MarkNotificationSent(ctx context.Context, id string, at time.Time) error {
	ctx, span := tracer.Start(ctx, "Postgres.MarkNotificationSent")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET sent = TRUE, processed_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return requireOneRow(res, "notification", id)
}

// ReleaseNotification clears processed_at on unsent rows only.
func (s *Store) ReleaseNotification(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Postgres.ReleaseNotification")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `
UPDATE notifications
SET processed_at = CASE WHEN sent THEN processed_at END
WHERE id = $1
`, id)
	if err != nil {
		return fmt.Errorf("release notification: %w", err)
	}
	return requireOneRow(res, "notification", id)
}

func (s *Store) DeleteNotificationsByInvoice(ctx context.Context, invoiceID string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteNotificationsByInvoice")
	defer span.End()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE invoice_id = $1`, invoiceID); err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}
	return nil
}

func requireOneRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: resource, ID: id}
	}
	return nil
}
