package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuditAction names a ledger mutation recorded in the audit trail
type AuditAction string

const (
	AuditPaymentRecorded AuditAction = "payment.recorded"
	AuditPaymentEdited   AuditAction = "payment.edited"
	AuditPaymentDeleted  AuditAction = "payment.deleted"
	AuditChainCompleted  AuditAction = "chain.completed"
	AuditAdvanceRecorded AuditAction = "advance.recorded"
)

// AuditEntry records one ledger mutation with the values before and after it.
// Edits are never rejected for disagreeing with the schedule, so this is the only
// trace of a manual correction.
type AuditEntry struct {
	ID           int32            `json:"id"`
	LoanID       int32            `json:"loanId"`
	PaymentID    int32            `json:"paymentId"`
	Action       AuditAction      `json:"action"`
	Actor        string           `json:"actor"`
	AmountBefore *decimal.Decimal `json:"amountBefore,omitempty"`
	AmountAfter  *decimal.Decimal `json:"amountAfter,omitempty"`
	StatusBefore *PaymentStatus   `json:"statusBefore,omitempty"`
	StatusAfter  *PaymentStatus   `json:"statusAfter,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// NewAuditEntry builds an audit entry from the payment state before and after a mutation.
// Either side may be nil.
func NewAuditEntry(action AuditAction, actor string, before, after *Payment) *AuditEntry {
	entry := &AuditEntry{Action: action, Actor: actor}
	if before != nil {
		amount, status := before.Amount, before.Status
		entry.LoanID, entry.PaymentID = before.LoanID, before.ID
		entry.AmountBefore, entry.StatusBefore = &amount, &status
	}
	if after != nil {
		amount, status := after.Amount, after.Status
		entry.LoanID, entry.PaymentID = after.LoanID, after.ID
		entry.AmountAfter, entry.StatusAfter = &amount, &status
	}
	return entry
}

// LedgerTx is the ledger as seen from inside one transaction.
// LockLoan must be called before any payment of that loan is read or written.
type LedgerTx interface {
	LockLoan(ctx context.Context, workspaceID, loanID int32) (*Loan, error)
	UpdateLoanAggregates(ctx context.Context, loan *Loan) error

	ListPayments(ctx context.Context, loanID int32) ([]*Payment, error)
	GetPayment(ctx context.Context, workspaceID, paymentID int32) (*Payment, error)
	ListChain(ctx context.Context, workspaceID int32, chainID uuid.UUID) ([]*Payment, error)
	CreatePayment(ctx context.Context, payment *Payment) (*Payment, error)
	UpdatePayment(ctx context.Context, payment *Payment) (*Payment, error)
	DeletePayments(ctx context.Context, paymentIDs []int32) (int, error)

	CreateAuditEntry(ctx context.Context, entry *AuditEntry) error
}

// LedgerStore persists loans, payments and the audit trail
type LedgerStore interface {
	LoanRepository

	// WithinTx runs fn in one transaction, committing when fn returns nil.
	// Contention failures surface as ErrTransient.
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error

	ListPayments(ctx context.Context, workspaceID, loanID int32) ([]*Payment, error)
	GetChain(ctx context.Context, workspaceID int32, chainID uuid.UUID) ([]*Payment, error)
	ListAudit(ctx context.Context, workspaceID, loanID int32) ([]*AuditEntry, error)
}

// LoanSummary is the cached read model of a loan's aggregates
type LoanSummary struct {
	LoanID      int32          `json:"loanId"`
	WorkspaceID int32          `json:"workspaceId"`
	Version     int64          `json:"version"`
	Aggregates  LoanAggregates `json:"aggregates"`
	CachedAt    time.Time      `json:"cachedAt"`
}

// NewLoanSummary snapshots the loan's aggregates
func NewLoanSummary(loan *Loan) *LoanSummary {
	return &LoanSummary{
		LoanID:      loan.ID,
		WorkspaceID: loan.WorkspaceID,
		Version:     loan.Version,
		Aggregates:  loan.Aggregates(),
		CachedAt:    time.Now().UTC(),
	}
}

// AggregateCache stores loan summaries outside the ledger. A miss returns nil, nil.
type AggregateCache interface {
	Get(ctx context.Context, loanID int32) (*LoanSummary, error)
	Set(ctx context.Context, summary *LoanSummary) error
	Invalidate(ctx context.Context, loanID int32) error
}

// ClosureArchive keeps the ledger snapshot of completed loans
type ClosureArchive interface {
	Upload(ctx context.Context, objectPath string, body []byte, contentType string) (string, error)
	GeneratePresignedURL(ctx context.Context, objectPath string, expiry time.Duration) (string, error)
}

// ClosureStatement is the archived ledger of a completed loan
type ClosureStatement struct {
	Loan       *Loan          `json:"loan"`
	Payments   []*Payment     `json:"payments"`
	Aggregates LoanAggregates `json:"aggregates"`
	ClosedAt   time.Time      `json:"closedAt"`
}
