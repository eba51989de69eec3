package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrPaymentNotFound            = errors.New("payment not found")
	ErrPaymentAmountInvalid       = errors.New("payment amount must be positive with at most two decimal places")
	ErrPaymentStatusInvalid       = errors.New("payment status must be one of Paid, Partial, Advance")
	ErrPaymentDateRequired        = errors.New("payment date is required")
	ErrPaymentLoanIDRequired      = errors.New("loan ID is required")
	ErrInvalidDateRange           = errors.New("from date must not be after to date")
	ErrEmptyDateRange             = errors.New("no installment falls within the date range")
	ErrChainNotFound              = errors.New("installment chain not found")
	ErrNonPartialChainCompletion  = errors.New("only a chain anchored by a partial payment can be completed")
	ErrInstallmentIndexOutOfRange = errors.New("installment index is outside the loan's schedule")
)

// AmountScale is the number of decimal places a stored amount keeps
const AmountScale = 2

// ValidAmount reports whether d is positive and expressible in whole cents. Stores
// round to AmountScale, so a finer amount would be saved as something else.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Truncate(AmountScale))
}

// PaymentStatus classifies what a single ledger entry covers
type PaymentStatus string

const (
	// PaymentStatusPaid fully covers one installment
	PaymentStatusPaid PaymentStatus = "Paid"
	// PaymentStatusPartial covers less than one installment
	PaymentStatusPartial PaymentStatus = "Partial"
	// PaymentStatusAdvance pre-pays a future installment as part of a batch
	PaymentStatusAdvance PaymentStatus = "Advance"
)

// IsValid reports whether s is a known payment status
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusPartial, PaymentStatusAdvance:
		return true
	}
	return false
}

// ResolvesInstallment reports whether an unchained payment with this status counts
// as one completed installment
func (s PaymentStatus) ResolvesInstallment() bool {
	return s == PaymentStatusPaid || s == PaymentStatusAdvance
}

// ChainRef ties a payment to the installment it contributes to
type ChainRef struct {
	ChainID          uuid.UUID       `json:"chainId"`
	InstallmentIndex int32           `json:"installmentIndex"`
	DueDate          time.Time       `json:"dueDate"`
	ExpectedAmount   decimal.Decimal `json:"expectedAmount"`
}

// Payment is one ledger entry. ID order is insertion order.
type Payment struct {
	ID          int32           `json:"id"`
	LoanID      int32           `json:"loanId"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"paymentDate"`
	Status      PaymentStatus   `json:"status"`
	CollectedBy string          `json:"collectedBy"`
	Notes       *string         `json:"notes,omitempty"`
	Chain       *ChainRef       `json:"chain,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Validate checks a payment before it is written
func (p *Payment) Validate() error {
	if p.LoanID <= 0 {
		return ErrPaymentLoanIDRequired
	}
	if !ValidAmount(p.Amount) {
		return ErrPaymentAmountInvalid
	}
	if !p.Status.IsValid() {
		return ErrPaymentStatusInvalid
	}
	if p.PaymentDate.IsZero() {
		return ErrPaymentDateRequired
	}
	return nil
}

// IsChained reports whether the payment belongs to an installment chain
func (p *Payment) IsChained() bool {
	return p.Chain != nil && p.Chain.ChainID != uuid.Nil
}

// Clone returns a deep copy of the payment
func (p *Payment) Clone() *Payment {
	c := *p
	if p.Notes != nil {
		n := *p.Notes
		c.Notes = &n
	}
	if p.Chain != nil {
		ch := *p.Chain
		c.Chain = &ch
	}
	return &c
}
