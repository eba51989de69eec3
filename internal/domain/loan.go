package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrLoanNotFound                = errors.New("loan not found")
	ErrLoanBorrowerRefEmpty        = errors.New("borrower reference is required")
	ErrLoanBorrowerRefTooLong      = errors.New("borrower reference must be 100 characters or less")
	ErrLoanPrincipalInvalid        = errors.New("principal amount must be positive with at most two decimal places")
	ErrLoanInstallmentInvalid      = errors.New("installment amount must be positive with at most two decimal places")
	ErrLoanFinalInstallmentInvalid = errors.New("final installment amount must be positive for custom mode")
	ErrLoanPeriodsInvalid          = errors.New("number of periods must be at least 1")
	ErrLoanAmountModeInvalid       = errors.New("amount mode must be fixed or custom")
	ErrLoanScheduleStartRequired   = errors.New("schedule start date is required")
	ErrLoanWorkspaceRequired       = errors.New("workspace is required")
	ErrLoanNotCompleted            = errors.New("loan has not been completed")
)

// MaxBorrowerRefLength is the maximum length of the external borrower reference
const MaxBorrowerRefLength = 100

// AmountMode decides how the per-period amount is charged
type AmountMode string

const (
	// AmountModeFixed charges InstallmentAmount for every period
	AmountModeFixed AmountMode = "fixed"
	// AmountModeCustom charges InstallmentAmount for every period but the last, which
	// charges FinalInstallmentAmount
	AmountModeCustom AmountMode = "custom"
)

// IsValid reports whether m is a known amount mode
func (m AmountMode) IsValid() bool {
	return m == AmountModeFixed || m == AmountModeCustom
}

// LoanStatus is the lifecycle state of a loan
type LoanStatus string

const (
	LoanStatusActive    LoanStatus = "active"
	LoanStatusOverdue   LoanStatus = "overdue"
	LoanStatusCompleted LoanStatus = "completed"
)

// IsValid reports whether s is a known loan status
func (s LoanStatus) IsValid() bool {
	switch s {
	case LoanStatusActive, LoanStatusOverdue, LoanStatusCompleted:
		return true
	}
	return false
}

// IsOpen reports whether the loan still has installments to collect
func (s LoanStatus) IsOpen() bool {
	return s == LoanStatusActive || s == LoanStatusOverdue
}

// Loan holds the contract terms and the cached aggregates derived from its payment ledger.
// Aggregate fields are written only through ApplyAggregates.
type Loan struct {
	ID                     int32           `json:"id"`
	WorkspaceID            int32           `json:"workspaceId"`
	BorrowerRef            string          `json:"borrowerRef"`
	PrincipalAmount        decimal.Decimal `json:"principalAmount"`
	InstallmentAmount      decimal.Decimal `json:"installmentAmount"`
	FinalInstallmentAmount decimal.Decimal `json:"finalInstallmentAmount"`
	PeriodType             PeriodType      `json:"periodType"`
	Periods                int32           `json:"periods"`
	AmountMode             AmountMode      `json:"amountMode"`
	ScheduleStart          time.Time       `json:"scheduleStart"`

	FullyCompletedCount int32           `json:"fullyCompletedCount"`
	AmountPaid          decimal.Decimal `json:"amountPaid"`
	RemainingAmount     decimal.Decimal `json:"remainingAmount"`
	LastCompletedDate   time.Time       `json:"lastCompletedDate"`
	NextDueDate         *time.Time      `json:"nextDueDate,omitempty"`
	Status              LoanStatus      `json:"status"`
	PunctualityScore    decimal.Decimal `json:"punctualityScore"`
	Version             int64           `json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks the contract terms
func (l *Loan) Validate() error {
	if l.WorkspaceID <= 0 {
		return ErrLoanWorkspaceRequired
	}
	if l.BorrowerRef == "" {
		return ErrLoanBorrowerRefEmpty
	}
	if len(l.BorrowerRef) > MaxBorrowerRefLength {
		return ErrLoanBorrowerRefTooLong
	}
	if !ValidAmount(l.PrincipalAmount) {
		return ErrLoanPrincipalInvalid
	}
	if !l.PeriodType.IsValid() {
		return ErrPeriodTypeInvalid
	}
	if l.Periods < 1 {
		return ErrLoanPeriodsInvalid
	}
	if !l.AmountMode.IsValid() {
		return ErrLoanAmountModeInvalid
	}
	// a single-period custom loan only charges the final amount
	needsRegular := l.AmountMode == AmountModeFixed || l.Periods > 1
	if needsRegular && !ValidAmount(l.InstallmentAmount) {
		return ErrLoanInstallmentInvalid
	}
	if l.AmountMode == AmountModeCustom && !ValidAmount(l.FinalInstallmentAmount) {
		return ErrLoanFinalInstallmentInvalid
	}
	if l.ScheduleStart.IsZero() {
		return ErrLoanScheduleStartRequired
	}
	return nil
}

// TotalContractAmount returns the contractual amount for the loan's terms
func (l *Loan) TotalContractAmount() decimal.Decimal {
	total, err := TotalContractAmount(l.InstallmentAmount, l.Periods, l.AmountMode, l.FinalInstallmentAmount)
	if err != nil {
		return decimal.Zero
	}
	return total
}

// Aggregates returns the loan's cached derived fields
func (l *Loan) Aggregates() LoanAggregates {
	return LoanAggregates{
		FullyCompletedCount: l.FullyCompletedCount,
		AmountPaid:          l.AmountPaid,
		RemainingAmount:     l.RemainingAmount,
		TotalContractAmount: l.TotalContractAmount(),
		LastCompletedDate:   l.LastCompletedDate,
		NextDueDate:         l.NextDueDate,
		Status:              l.Status,
		PunctualityScore:    l.PunctualityScore,
	}
}

// ApplyAggregates overwrites the derived fields with a recomputed result
func (l *Loan) ApplyAggregates(a LoanAggregates) {
	l.FullyCompletedCount = a.FullyCompletedCount
	l.AmountPaid = a.AmountPaid
	l.RemainingAmount = a.RemainingAmount
	l.LastCompletedDate = a.LastCompletedDate
	l.NextDueDate = a.NextDueDate
	l.Status = a.Status
	l.PunctualityScore = a.PunctualityScore
	l.Version++
}

// LoanRepository provides non-transactional loan access
type LoanRepository interface {
	Create(ctx context.Context, loan *Loan) (*Loan, error)
	GetByID(ctx context.Context, workspaceID int32, id int32) (*Loan, error)
	ListOpen(ctx context.Context) ([]*Loan, error)
}
