package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dafibh/cicilan/cicilan-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schema string

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// LedgerStore implements domain.LedgerStore on an embedded SQLite database.
// Amounts are stored as TEXT so no precision is lost.
type LedgerStore struct {
	db *sql.DB
}

var _ domain.LedgerStore = (*LedgerStore)(nil)

// Open opens (or creates) the database file at path and applies the schema.
// Every transaction starts with BEGIN IMMEDIATE, which takes the write lock up front.
func Open(ctx context.Context, path string) (*LedgerStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName(path))
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &LedgerStore{db: db}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

func dataSourceName(path string) string {
	params := "_txlock=immediate&_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL"
	if strings.Contains(path, "?") {
		return "file:" + path + "&" + params
	}
	return "file:" + path + "?" + params
}

// Close closes the database
func (s *LedgerStore) Close() error {
	return s.db.Close()
}

// WithinTx runs fn in an immediate transaction
func (s *LedgerStore) WithinTx(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer tx.Rollback()

	if err := fn(&ledgerTx{q: tx}); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

// Create creates a new loan
func (s *LedgerStore) Create(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO loans (
			workspace_id, borrower_ref, principal_amount, installment_amount, final_installment_amount,
			period_type, periods, amount_mode, schedule_start,
			fully_completed_count, amount_paid, remaining_amount, last_completed_date, next_due_date,
			status, punctuality_score, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.WorkspaceID, loan.BorrowerRef, loan.PrincipalAmount, loan.InstallmentAmount, loan.FinalInstallmentAmount,
		string(loan.PeriodType), loan.Periods, string(loan.AmountMode), formatDate(loan.ScheduleStart),
		loan.FullyCompletedCount, loan.AmountPaid, loan.RemainingAmount, optionalDate(loan.LastCompletedDate), datePtr(loan.NextDueDate),
		string(loan.Status), loan.PunctualityScore, loan.Version, formatTimestamp(now), formatTimestamp(now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create loan: %w", mapError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return getLoan(ctx, s.db, loan.WorkspaceID, int32(id))
}

// GetByID retrieves a loan by ID within a workspace
func (s *LedgerStore) GetByID(ctx context.Context, workspaceID int32, id int32) (*domain.Loan, error) {
	return getLoan(ctx, s.db, workspaceID, id)
}

// ListOpen returns every active or overdue loan across workspaces
func (s *LedgerStore) ListOpen(ctx context.Context) ([]*domain.Loan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+loanColumns+` FROM loans
		WHERE status IN ('active', 'overdue')
		ORDER BY id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var loans []*domain.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, mapError(rows.Err())
}

// ListPayments returns a loan's payments in insertion order
func (s *LedgerStore) ListPayments(ctx context.Context, workspaceID, loanID int32) ([]*domain.Payment, error) {
	if _, err := s.GetByID(ctx, workspaceID, loanID); err != nil {
		return nil, err
	}
	return listPayments(ctx, s.db, loanID)
}

// GetChain returns a chain's members in insertion order
func (s *LedgerStore) GetChain(ctx context.Context, workspaceID int32, chainID uuid.UUID) ([]*domain.Payment, error) {
	return listChain(ctx, s.db, workspaceID, chainID)
}

// ListAudit returns a loan's audit trail, oldest first
func (s *LedgerStore) ListAudit(ctx context.Context, workspaceID, loanID int32) ([]*domain.AuditEntry, error) {
	if _, err := s.GetByID(ctx, workspaceID, loanID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, loan_id, payment_id, action, actor, amount_before, amount_after, status_before, status_after, created_at
		FROM payment_audit
		WHERE loan_id = ?
		ORDER BY id`, loanID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var (
			e                         domain.AuditEntry
			action, createdAt         string
			amountBefore, amountAfter decimal.NullDecimal
			statusBefore, statusAfter sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.LoanID, &e.PaymentID, &action, &e.Actor,
			&amountBefore, &amountAfter, &statusBefore, &statusAfter, &createdAt); err != nil {
			return nil, err
		}
		e.Action = domain.AuditAction(action)
		e.AmountBefore = nullDecimalPtr(amountBefore)
		e.AmountAfter = nullDecimalPtr(amountAfter)
		e.StatusBefore = nullStatusPtr(statusBefore)
		e.StatusAfter = nullStatusPtr(statusAfter)
		if e.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, mapError(rows.Err())
}

// ledgerTx implements domain.LedgerTx on a SQLite transaction. The whole database is
// write-locked for the transaction, so LockLoan needs no row lock.
type ledgerTx struct {
	q querier
}

func (t *ledgerTx) LockLoan(ctx context.Context, workspaceID, loanID int32) (*domain.Loan, error) {
	return getLoan(ctx, t.q, workspaceID, loanID)
}

func (t *ledgerTx) UpdateLoanAggregates(ctx context.Context, loan *domain.Loan) error {
	now := time.Now().UTC()
	res, err := t.q.ExecContext(ctx, `
		UPDATE loans SET
			fully_completed_count = ?,
			amount_paid = ?,
			remaining_amount = ?,
			last_completed_date = ?,
			next_due_date = ?,
			status = ?,
			punctuality_score = ?,
			version = ?,
			updated_at = ?
		WHERE id = ?`,
		loan.FullyCompletedCount, loan.AmountPaid, loan.RemainingAmount,
		optionalDate(loan.LastCompletedDate), datePtr(loan.NextDueDate),
		string(loan.Status), loan.PunctualityScore, loan.Version, formatTimestamp(now),
		loan.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan aggregates: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrLoanNotFound
	}
	loan.UpdatedAt = now
	return nil
}

func (t *ledgerTx) ListPayments(ctx context.Context, loanID int32) ([]*domain.Payment, error) {
	return listPayments(ctx, t.q, loanID)
}

func (t *ledgerTx) GetPayment(ctx context.Context, workspaceID, paymentID int32) (*domain.Payment, error) {
	row := t.q.QueryRowContext(ctx, `
		SELECT `+paymentColumnsQualified+`
		FROM payments p
		JOIN loans l ON l.id = p.loan_id
		WHERE p.id = ? AND l.workspace_id = ?`, paymentID, workspaceID)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}

func (t *ledgerTx) ListChain(ctx context.Context, workspaceID int32, chainID uuid.UUID) ([]*domain.Payment, error) {
	return listChain(ctx, t.q, workspaceID, chainID)
}

func (t *ledgerTx) CreatePayment(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	now := formatTimestamp(time.Now().UTC())
	args := append(paymentArgs(payment), now, now)
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO payments (
			loan_id, amount, payment_date, status, collected_by, notes,
			chain_id, installment_index, due_date, expected_amount, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return getPayment(ctx, t.q, int32(id))
}

func (t *ledgerTx) UpdatePayment(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	args := append(paymentArgs(payment), formatTimestamp(time.Now().UTC()), payment.ID)
	res, err := t.q.ExecContext(ctx, `
		UPDATE payments SET
			loan_id = ?,
			amount = ?,
			payment_date = ?,
			status = ?,
			collected_by = ?,
			notes = ?,
			chain_id = ?,
			installment_index = ?,
			due_date = ?,
			expected_amount = ?,
			updated_at = ?
		WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, domain.ErrPaymentNotFound
	}
	return getPayment(ctx, t.q, payment.ID)
}

func (t *ledgerTx) DeletePayments(ctx context.Context, paymentIDs []int32) (int, error) {
	if len(paymentIDs) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(paymentIDs))
	args := make([]any, len(paymentIDs))
	for i, id := range paymentIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	res, err := t.q.ExecContext(ctx,
		`DELETE FROM payments WHERE id IN (`+strings.Join(placeholders, ", ")+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete payments: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (t *ledgerTx) CreateAuditEntry(ctx context.Context, entry *domain.AuditEntry) error {
	now := time.Now().UTC()
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO payment_audit (
			loan_id, payment_id, action, actor, amount_before, amount_after, status_before, status_after, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.LoanID, entry.PaymentID, string(entry.Action), entry.Actor,
		decimalPtrToNull(entry.AmountBefore), decimalPtrToNull(entry.AmountAfter),
		statusPtrToNull(entry.StatusBefore), statusPtrToNull(entry.StatusAfter),
		formatTimestamp(now),
	)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = int32(id)
	entry.CreatedAt = now
	return nil
}

const loanColumns = `id, workspace_id, borrower_ref, principal_amount, installment_amount, final_installment_amount,
	period_type, periods, amount_mode, schedule_start,
	fully_completed_count, amount_paid, remaining_amount, last_completed_date, next_due_date,
	status, punctuality_score, version, created_at, updated_at`

const paymentColumns = `id, loan_id, amount, payment_date, status, collected_by, notes,
	chain_id, installment_index, due_date, expected_amount, created_at, updated_at`

const paymentColumnsQualified = `p.id, p.loan_id, p.amount, p.payment_date, p.status, p.collected_by, p.notes,
	p.chain_id, p.installment_index, p.due_date, p.expected_amount, p.created_at, p.updated_at`

func getLoan(ctx context.Context, q querier, workspaceID, id int32) (*domain.Loan, error) {
	row := q.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ? AND workspace_id = ?`, id, workspaceID)
	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, mapError(err)
	}
	return loan, nil
}

func getPayment(ctx context.Context, q querier, id int32) (*domain.Payment, error) {
	p, err := scanPayment(q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}

func listPayments(ctx context.Context, q querier, loanID int32) ([]*domain.Payment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE loan_id = ?
		ORDER BY id`, loanID)
	if err != nil {
		return nil, mapError(err)
	}
	return collectPayments(rows)
}

func listChain(ctx context.Context, q querier, workspaceID int32, chainID uuid.UUID) ([]*domain.Payment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+paymentColumnsQualified+`
		FROM payments p
		JOIN loans l ON l.id = p.loan_id
		WHERE p.chain_id = ? AND l.workspace_id = ?
		ORDER BY p.id`, chainID.String(), workspaceID)
	if err != nil {
		return nil, mapError(err)
	}
	return collectPayments(rows)
}

func collectPayments(rows *sql.Rows) ([]*domain.Payment, error) {
	defer rows.Close()
	var payments []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, mapError(rows.Err())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLoan(row scanner) (*domain.Loan, error) {
	var (
		l                              domain.Loan
		periodType, amountMode, status string
		scheduleStart                  string
		lastCompleted, nextDue         sql.NullString
		createdAt, updatedAt           string
	)
	err := row.Scan(
		&l.ID, &l.WorkspaceID, &l.BorrowerRef, &l.PrincipalAmount, &l.InstallmentAmount, &l.FinalInstallmentAmount,
		&periodType, &l.Periods, &amountMode, &scheduleStart,
		&l.FullyCompletedCount, &l.AmountPaid, &l.RemainingAmount, &lastCompleted, &nextDue,
		&status, &l.PunctualityScore, &l.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.PeriodType = domain.PeriodType(periodType)
	l.AmountMode = domain.AmountMode(amountMode)
	l.Status = domain.LoanStatus(status)
	if l.ScheduleStart, err = parseDate(scheduleStart); err != nil {
		return nil, err
	}
	if lastCompleted.Valid {
		if l.LastCompletedDate, err = parseDate(lastCompleted.String); err != nil {
			return nil, err
		}
	}
	if nextDue.Valid {
		d, err := parseDate(nextDue.String)
		if err != nil {
			return nil, err
		}
		l.NextDueDate = &d
	}
	if l.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if l.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func scanPayment(row scanner) (*domain.Payment, error) {
	var (
		p                    domain.Payment
		status, paymentDate  string
		notes                sql.NullString
		chainID, dueDate     sql.NullString
		installmentIndex     sql.NullInt32
		expected             decimal.NullDecimal
		createdAt, updatedAt string
	)
	err := row.Scan(
		&p.ID, &p.LoanID, &p.Amount, &paymentDate, &status, &p.CollectedBy, &notes,
		&chainID, &installmentIndex, &dueDate, &expected, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PaymentStatus(status)
	if p.PaymentDate, err = parseDate(paymentDate); err != nil {
		return nil, err
	}
	if notes.Valid {
		s := notes.String
		p.Notes = &s
	}
	if chainID.Valid && installmentIndex.Valid {
		id, err := uuid.Parse(chainID.String)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id %q: %w", chainID.String, err)
		}
		ref := &domain.ChainRef{
			ChainID:          id,
			InstallmentIndex: installmentIndex.Int32,
			ExpectedAmount:   expected.Decimal,
		}
		if dueDate.Valid {
			if ref.DueDate, err = parseDate(dueDate.String); err != nil {
				return nil, err
			}
		}
		p.Chain = ref
	}
	if p.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func paymentArgs(p *domain.Payment) []any {
	var (
		chainID, dueDate sql.NullString
		index            sql.NullInt32
		expected         decimal.NullDecimal
	)
	if p.Chain != nil {
		chainID = sql.NullString{String: p.Chain.ChainID.String(), Valid: true}
		index = sql.NullInt32{Int32: p.Chain.InstallmentIndex, Valid: true}
		dueDate = sql.NullString{String: formatDate(p.Chain.DueDate), Valid: true}
		expected = decimal.NullDecimal{Decimal: p.Chain.ExpectedAmount, Valid: true}
	}
	var notes sql.NullString
	if p.Notes != nil {
		notes = sql.NullString{String: *p.Notes, Valid: true}
	}
	return []any{
		p.LoanID, p.Amount, formatDate(p.PaymentDate), string(p.Status), p.CollectedBy, notes,
		chainID, index, dueDate, expected,
	}
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func optionalDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(t), Valid: true}
}

func datePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return optionalDate(*t)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func decimalPtrToNull(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullDecimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func statusPtrToNull(s *domain.PaymentStatus) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*s), Valid: true}
}

func nullStatusPtr(s sql.NullString) *domain.PaymentStatus {
	if !s.Valid {
		return nil
	}
	status := domain.PaymentStatus(s.String)
	return &status
}

// mapError marks busy/locked database errors as domain.ErrTransient
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrTransient) {
		return err
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked {
			return fmt.Errorf("%w: %w", domain.ErrTransient, err)
		}
	}
	return err
}
