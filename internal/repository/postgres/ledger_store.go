package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/dafibh/cicilan/cicilan-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LedgerStore implements domain.LedgerStore using PostgreSQL
type LedgerStore struct {
	pool *pgxpool.Pool
}

var _ domain.LedgerStore = (*LedgerStore)(nil)

// NewLedgerStore creates a new LedgerStore
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Migrate creates the ledger tables when they do not exist
func (s *LedgerStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// WithinTx runs fn in a read-committed transaction. Loan rows are locked explicitly
// through LedgerTx.LockLoan.
func (s *LedgerStore) WithinTx(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapError(err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&ledgerTx{q: tx}); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

// Create creates a new loan
func (s *LedgerStore) Create(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	principal, err := decimalToPgNumeric(loan.PrincipalAmount)
	if err != nil {
		return nil, err
	}
	installment, err := decimalToPgNumeric(loan.InstallmentAmount)
	if err != nil {
		return nil, err
	}
	final, err := decimalToPgNumeric(loan.FinalInstallmentAmount)
	if err != nil {
		return nil, err
	}
	paid, err := decimalToPgNumeric(loan.AmountPaid)
	if err != nil {
		return nil, err
	}
	remaining, err := decimalToPgNumeric(loan.RemainingAmount)
	if err != nil {
		return nil, err
	}
	score, err := decimalToPgNumeric(loan.PunctualityScore)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO loans (
			workspace_id, borrower_ref, principal_amount, installment_amount, final_installment_amount,
			period_type, periods, amount_mode, schedule_start,
			fully_completed_count, amount_paid, remaining_amount, last_completed_date, next_due_date,
			status, punctuality_score, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING `+loanColumns,
		loan.WorkspaceID, loan.BorrowerRef, principal, installment, final,
		string(loan.PeriodType), loan.Periods, string(loan.AmountMode), timeToPgDate(loan.ScheduleStart),
		loan.FullyCompletedCount, paid, remaining, optionalTimeToPgDate(loan.LastCompletedDate), timePtrToPgDate(loan.NextDueDate),
		string(loan.Status), score, loan.Version,
	)
	created, err := scanLoan(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create loan: %w", mapError(err))
	}
	return created, nil
}

// GetByID retrieves a loan by ID within a workspace
func (s *LedgerStore) GetByID(ctx context.Context, workspaceID int32, id int32) (*domain.Loan, error) {
	return getLoan(ctx, s.pool, workspaceID, id, false)
}

// ListOpen returns every active or overdue loan across workspaces
func (s *LedgerStore) ListOpen(ctx context.Context) ([]*domain.Loan, error) {
	rows, err := s.pool.Query(ctx, `
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
	return listPayments(ctx, s.pool, loanID)
}

// GetChain returns a chain's members in insertion order
func (s *LedgerStore) GetChain(ctx context.Context, workspaceID int32, chainID uuid.UUID) ([]*domain.Payment, error) {
	return listChain(ctx, s.pool, workspaceID, chainID)
}

// ListAudit returns a loan's audit trail, oldest first
func (s *LedgerStore) ListAudit(ctx context.Context, workspaceID, loanID int32) ([]*domain.AuditEntry, error) {
	if _, err := s.GetByID(ctx, workspaceID, loanID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, loan_id, payment_id, action, actor, amount_before, amount_after, status_before, status_after, created_at
		FROM payment_audit
		WHERE loan_id = $1
		ORDER BY id`, loanID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var (
			e                         domain.AuditEntry
			action                    string
			amountBefore, amountAfter pgtype.Numeric
			statusBefore, statusAfter pgtype.Text
			createdAt                 pgtype.Timestamptz
		)
		if err := rows.Scan(&e.ID, &e.LoanID, &e.PaymentID, &action, &e.Actor,
			&amountBefore, &amountAfter, &statusBefore, &statusAfter, &createdAt); err != nil {
			return nil, err
		}
		e.Action = domain.AuditAction(action)
		e.AmountBefore = pgNumericToOptionalDecimal(amountBefore)
		e.AmountAfter = pgNumericToOptionalDecimal(amountAfter)
		e.StatusBefore = pgTextToStatusPtr(statusBefore)
		e.StatusAfter = pgTextToStatusPtr(statusAfter)
		e.CreatedAt = createdAt.Time
		entries = append(entries, &e)
	}
	return entries, mapError(rows.Err())
}

// ledgerTx implements domain.LedgerTx on a pgx transaction
type ledgerTx struct {
	q querier
}

func (t *ledgerTx) LockLoan(ctx context.Context, workspaceID, loanID int32) (*domain.Loan, error) {
	return getLoan(ctx, t.q, workspaceID, loanID, true)
}

func (t *ledgerTx) UpdateLoanAggregates(ctx context.Context, loan *domain.Loan) error {
	paid, err := decimalToPgNumeric(loan.AmountPaid)
	if err != nil {
		return err
	}
	remaining, err := decimalToPgNumeric(loan.RemainingAmount)
	if err != nil {
		return err
	}
	score, err := decimalToPgNumeric(loan.PunctualityScore)
	if err != nil {
		return err
	}

	var updatedAt pgtype.Timestamptz
	err = t.q.QueryRow(ctx, `
		UPDATE loans SET
			fully_completed_count = $2,
			amount_paid = $3,
			remaining_amount = $4,
			last_completed_date = $5,
			next_due_date = $6,
			status = $7,
			punctuality_score = $8,
			version = $9,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		loan.ID, loan.FullyCompletedCount, paid, remaining,
		optionalTimeToPgDate(loan.LastCompletedDate), timePtrToPgDate(loan.NextDueDate),
		string(loan.Status), score, loan.Version,
	).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrLoanNotFound
		}
		return fmt.Errorf("failed to update loan aggregates: %w", err)
	}
	loan.UpdatedAt = updatedAt.Time
	return nil
}

func (t *ledgerTx) ListPayments(ctx context.Context, loanID int32) ([]*domain.Payment, error) {
	return listPayments(ctx, t.q, loanID)
}

func (t *ledgerTx) GetPayment(ctx context.Context, workspaceID, paymentID int32) (*domain.Payment, error) {
	row := t.q.QueryRow(ctx, `
		SELECT `+paymentColumnsQualified+`
		FROM payments p
		JOIN loans l ON l.id = p.loan_id
		WHERE p.id = $1 AND l.workspace_id = $2`, paymentID, workspaceID)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	args, err := paymentArgs(payment)
	if err != nil {
		return nil, err
	}
	row := t.q.QueryRow(ctx, `
		INSERT INTO payments (
			loan_id, amount, payment_date, status, collected_by, notes,
			chain_id, installment_index, due_date, expected_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+paymentColumns, args...)
	created, err := scanPayment(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return created, nil
}

func (t *ledgerTx) UpdatePayment(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	args, err := paymentArgs(payment)
	if err != nil {
		return nil, err
	}
	args = append(args, payment.ID)
	row := t.q.QueryRow(ctx, `
		UPDATE payments SET
			loan_id = $1,
			amount = $2,
			payment_date = $3,
			status = $4,
			collected_by = $5,
			notes = $6,
			chain_id = $7,
			installment_index = $8,
			due_date = $9,
			expected_amount = $10,
			updated_at = NOW()
		WHERE id = $11
		RETURNING `+paymentColumns, args...)
	updated, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}
	return updated, nil
}

func (t *ledgerTx) DeletePayments(ctx context.Context, paymentIDs []int32) (int, error) {
	if len(paymentIDs) == 0 {
		return 0, nil
	}
	tag, err := t.q.Exec(ctx, `DELETE FROM payments WHERE id = ANY($1)`, paymentIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete payments: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (t *ledgerTx) CreateAuditEntry(ctx context.Context, entry *domain.AuditEntry) error {
	amountBefore, err := optionalDecimalToPgNumeric(entry.AmountBefore)
	if err != nil {
		return err
	}
	amountAfter, err := optionalDecimalToPgNumeric(entry.AmountAfter)
	if err != nil {
		return err
	}

	var createdAt pgtype.Timestamptz
	err = t.q.QueryRow(ctx, `
		INSERT INTO payment_audit (
			loan_id, payment_id, action, actor, amount_before, amount_after, status_before, status_after
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		entry.LoanID, entry.PaymentID, string(entry.Action), entry.Actor,
		amountBefore, amountAfter, statusPtrToPgText(entry.StatusBefore), statusPtrToPgText(entry.StatusAfter),
	).Scan(&entry.ID, &createdAt)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}
	entry.CreatedAt = createdAt.Time
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

func getLoan(ctx context.Context, q querier, workspaceID, id int32, forUpdate bool) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 AND workspace_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	loan, err := scanLoan(q.QueryRow(ctx, query, id, workspaceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, mapError(err)
	}
	return loan, nil
}

func listPayments(ctx context.Context, q querier, loanID int32) ([]*domain.Payment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE loan_id = $1
		ORDER BY id`, loanID)
	if err != nil {
		return nil, mapError(err)
	}
	return collectPayments(rows)
}

func listChain(ctx context.Context, q querier, workspaceID int32, chainID uuid.UUID) ([]*domain.Payment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+paymentColumnsQualified+`
		FROM payments p
		JOIN loans l ON l.id = p.loan_id
		WHERE p.chain_id = $1 AND l.workspace_id = $2
		ORDER BY p.id`, uuidToPgUUID(chainID), workspaceID)
	if err != nil {
		return nil, mapError(err)
	}
	return collectPayments(rows)
}

func collectPayments(rows pgx.Rows) ([]*domain.Payment, error) {
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

func scanLoan(row pgx.Row) (*domain.Loan, error) {
	var (
		l                                     domain.Loan
		periodType, amountMode, status        string
		principal, installment, final         pgtype.Numeric
		paid, remaining, score                pgtype.Numeric
		scheduleStart, lastCompleted, nextDue pgtype.Date
		createdAt, updatedAt                  pgtype.Timestamptz
	)
	err := row.Scan(
		&l.ID, &l.WorkspaceID, &l.BorrowerRef, &principal, &installment, &final,
		&periodType, &l.Periods, &amountMode, &scheduleStart,
		&l.FullyCompletedCount, &paid, &remaining, &lastCompleted, &nextDue,
		&status, &score, &l.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.PrincipalAmount = pgNumericToDecimal(principal)
	l.InstallmentAmount = pgNumericToDecimal(installment)
	l.FinalInstallmentAmount = pgNumericToDecimal(final)
	l.PeriodType = domain.PeriodType(periodType)
	l.AmountMode = domain.AmountMode(amountMode)
	l.ScheduleStart = pgDateToTime(scheduleStart)
	l.AmountPaid = pgNumericToDecimal(paid)
	l.RemainingAmount = pgNumericToDecimal(remaining)
	l.LastCompletedDate = pgDateToTime(lastCompleted)
	l.NextDueDate = pgDateToTimePtr(nextDue)
	l.Status = domain.LoanStatus(status)
	l.PunctualityScore = pgNumericToDecimal(score)
	l.CreatedAt = createdAt.Time
	l.UpdatedAt = updatedAt.Time
	return &l, nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		p                    domain.Payment
		status               string
		amount, expected     pgtype.Numeric
		paymentDate, dueDate pgtype.Date
		notes                pgtype.Text
		chainID              pgtype.UUID
		installmentIndex     pgtype.Int4
		createdAt, updatedAt pgtype.Timestamptz
	)
	err := row.Scan(
		&p.ID, &p.LoanID, &amount, &paymentDate, &status, &p.CollectedBy, &notes,
		&chainID, &installmentIndex, &dueDate, &expected, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Amount = pgNumericToDecimal(amount)
	p.PaymentDate = pgDateToTime(paymentDate)
	p.Status = domain.PaymentStatus(status)
	p.Notes = pgTextToStringPtr(notes)
	if chainID.Valid && installmentIndex.Valid {
		p.Chain = &domain.ChainRef{
			ChainID:          pgUUIDToUUID(chainID),
			InstallmentIndex: installmentIndex.Int32,
			DueDate:          pgDateToTime(dueDate),
			ExpectedAmount:   pgNumericToDecimal(expected),
		}
	}
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time
	return &p, nil
}

func paymentArgs(p *domain.Payment) ([]any, error) {
	amount, err := decimalToPgNumeric(p.Amount)
	if err != nil {
		return nil, err
	}

	var (
		chainID  pgtype.UUID
		index    pgtype.Int4
		dueDate  pgtype.Date
		expected pgtype.Numeric
	)
	if p.Chain != nil {
		chainID = uuidToPgUUID(p.Chain.ChainID)
		index = pgtype.Int4{Int32: p.Chain.InstallmentIndex, Valid: true}
		dueDate = timeToPgDate(p.Chain.DueDate)
		expected, err = decimalToPgNumeric(p.Chain.ExpectedAmount)
		if err != nil {
			return nil, err
		}
	}

	return []any{
		p.LoanID, amount, timeToPgDate(p.PaymentDate), string(p.Status), p.CollectedBy, stringPtrToPgText(p.Notes),
		chainID, index, dueDate, expected,
	}, nil
}

func statusPtrToPgText(s *domain.PaymentStatus) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: string(*s), Valid: true}
}

func pgTextToStatusPtr(t pgtype.Text) *domain.PaymentStatus {
	if !t.Valid {
		return nil
	}
	s := domain.PaymentStatus(t.String)
	return &s
}
