package service

import (
	"context"
	"strings"
	"time"

	"github.com/dafibh/cicilan/cicilan-backend/internal/domain"
	"github.com/dafibh/cicilan/cicilan-backend/internal/util"
	"github.com/dafibh/cicilan/cicilan-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PaymentService records, corrects and reconciles installment payments. Every mutation
// and the recomputation of the loan's aggregates commit in one transaction.
type PaymentService struct {
	ledger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(store domain.LedgerStore, cache domain.AggregateCache, archive domain.ClosureArchive, retry RetryPolicy, logger zerolog.Logger) *PaymentService {
	return &PaymentService{
		ledger: newLedger(store, cache, archive, retry, logger.With().Str("component", "payment_service").Logger()),
	}
}

// ChainHint places a payment into an installment chain. ChainID joins an existing
// chain; otherwise InstallmentIndex names the installment and the remaining fields
// default from the loan terms.
type ChainHint struct {
	ChainID          *uuid.UUID
	InstallmentIndex int32
	DueDate          *time.Time
	ExpectedAmount   *decimal.Decimal
}

// RecordPaymentInput contains input for recording one payment
type RecordPaymentInput struct {
	Amount      decimal.Decimal
	PaymentDate time.Time
	Status      domain.PaymentStatus
	CollectedBy string
	Notes       *string
	Chain       *ChainHint
}

// PaymentResult is a single payment with the loan aggregates after the change
type PaymentResult struct {
	Payment    *domain.Payment       `json:"payment"`
	Aggregates domain.LoanAggregates `json:"aggregates"`
}

// RecordPayment appends a payment to the loan's ledger
func (s *PaymentService) RecordPayment(ctx context.Context, workspaceID, loanID int32, input RecordPaymentInput) (*PaymentResult, error) {
	payment := &domain.Payment{
		LoanID:      loanID,
		Amount:      input.Amount,
		PaymentDate: util.NormalizeDate(input.PaymentDate),
		Status:      input.Status,
		CollectedBy: strings.TrimSpace(input.CollectedBy),
		Notes:       input.Notes,
	}
	if err := payment.Validate(); err != nil {
		return nil, err
	}

	var result *PaymentResult
	var done committed
	err := s.runTx(ctx, "record_payment", func(tx domain.LedgerTx) error {
		loan, err := tx.LockLoan(ctx, workspaceID, loanID)
		if err != nil {
			return err
		}
		previous := loan.Status

		payments, err := tx.ListPayments(ctx, loanID)
		if err != nil {
			return err
		}

		p := payment.Clone()
		ref, err := s.resolveChain(ctx, tx, loan, payments, p.Status, input.Chain)
		if err != nil {
			return err
		}
		p.Chain = ref

		created, err := tx.CreatePayment(ctx, p)
		if err != nil {
			return err
		}
		if err := tx.CreateAuditEntry(ctx, domain.NewAuditEntry(domain.AuditPaymentRecorded, p.CollectedBy, nil, created)); err != nil {
			return err
		}

		payments = append(payments, created)
		if err := s.recompute(ctx, tx, loan, payments); err != nil {
			return err
		}

		result = &PaymentResult{Payment: created, Aggregates: loan.Aggregates()}
		done = committed{
			loan:           loan,
			previousStatus: previous,
			payments:       payments,
			events:         []websocket.Event{websocket.PaymentRecorded(loanID, created)},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int32("workspace_id", workspaceID).
		Int32("loan_id", loanID).
		Int32("payment_id", result.Payment.ID).
		Str("status", string(result.Payment.Status)).
		Str("amount", result.Payment.Amount.StringFixed(2)).
		Msg("Payment recorded")

	s.afterCommit(ctx, done)
	return result, nil
}

// resolveChain decides which chain, if any, a new payment joins. A partial payment
// without a hint joins the lowest installment that is not yet settled.
func (s *PaymentService) resolveChain(ctx context.Context, tx domain.LedgerTx, loan *domain.Loan, payments []*domain.Payment, status domain.PaymentStatus, hint *ChainHint) (*domain.ChainRef, error) {
	if hint == nil {
		if status != domain.PaymentStatusPartial {
			return nil, nil
		}
		return domain.OpenInstallmentRef(loan, payments)
	}

	if hint.ChainID != nil {
		members, err := tx.ListChain(ctx, loan.WorkspaceID, *hint.ChainID)
		if err != nil {
			return nil, err
		}
		if len(members) > 0 {
			chain, err := domain.NewChain(members)
			if err != nil {
				return nil, err
			}
			if chain.LoanID != loan.ID {
				return nil, domain.ErrChainNotFound
			}
			ref := *chain.Anchor().Chain
			return &ref, nil
		}
		if hint.InstallmentIndex == 0 {
			return nil, domain.ErrChainNotFound
		}
	}

	ref, err := domain.NewChainRef(loan, hint.InstallmentIndex)
	if err != nil {
		return nil, err
	}
	if hint.DueDate != nil {
		ref.DueDate = util.NormalizeDate(*hint.DueDate)
		ref.ChainID = domain.ChainIDFor(loan.ID, ref.DueDate, ref.InstallmentIndex)
	}
	if hint.ExpectedAmount != nil {
		if !domain.ValidAmount(*hint.ExpectedAmount) {
			return nil, domain.ErrPaymentAmountInvalid
		}
		ref.ExpectedAmount = *hint.ExpectedAmount
	}
	if hint.ChainID != nil && *hint.ChainID != ref.ChainID {
		return nil, domain.ErrChainNotFound
	}
	return ref, nil
}

// AdvanceInput contains input for pre-paying every installment due within a date range
type AdvanceInput struct {
	From                 time.Time
	To                   time.Time
	AmountPerInstallment decimal.Decimal
	CollectedBy          string
	Notes                *string
}

// AdvanceResult is the outcome of an advance batch
type AdvanceResult struct {
	Payments    []*domain.Payment     `json:"payments"`
	TotalAmount decimal.Decimal       `json:"totalAmount"`
	Count       int                   `json:"count"`
	Aggregates  domain.LoanAggregates `json:"aggregates"`
}

// RecordAdvancePayments creates one Advance payment per installment due date in
// [From, To], dated at that due date. The batch commits or fails as a whole.
func (s *PaymentService) RecordAdvancePayments(ctx context.Context, workspaceID, loanID int32, input AdvanceInput) (*AdvanceResult, error) {
	if !domain.ValidAmount(input.AmountPerInstallment) {
		return nil, domain.ErrPaymentAmountInvalid
	}
	if input.From.IsZero() || input.To.IsZero() {
		return nil, domain.ErrPaymentDateRequired
	}
	from := util.NormalizeDate(input.From)
	to := util.NormalizeDate(input.To)
	if from.After(to) {
		return nil, domain.ErrInvalidDateRange
	}
	collector := strings.TrimSpace(input.CollectedBy)

	var result *AdvanceResult
	var done committed
	err := s.runTx(ctx, "record_advance", func(tx domain.LedgerTx) error {
		loan, err := tx.LockLoan(ctx, workspaceID, loanID)
		if err != nil {
			return err
		}
		previous := loan.Status

		dates, err := domain.ScheduleBoundaries(loan, from, to)
		if err != nil {
			return err
		}
		if len(dates) == 0 {
			return domain.ErrEmptyDateRange
		}

		payments, err := tx.ListPayments(ctx, loanID)
		if err != nil {
			return err
		}

		created := make([]*domain.Payment, 0, len(dates))
		total := decimal.Zero
		events := make([]websocket.Event, 0, len(dates))
		for _, d := range dates {
			p := &domain.Payment{
				LoanID:      loanID,
				Amount:      input.AmountPerInstallment,
				PaymentDate: d,
				Status:      domain.PaymentStatusAdvance,
				CollectedBy: collector,
				Notes:       input.Notes,
			}
			if err := p.Validate(); err != nil {
				return err
			}
			p, err = tx.CreatePayment(ctx, p)
			if err != nil {
				return err
			}
			if err := tx.CreateAuditEntry(ctx, domain.NewAuditEntry(domain.AuditAdvanceRecorded, collector, nil, p)); err != nil {
				return err
			}
			created = append(created, p)
			total = total.Add(p.Amount)
			events = append(events, websocket.PaymentRecorded(loanID, p))
		}

		payments = append(payments, created...)
		if err := s.recompute(ctx, tx, loan, payments); err != nil {
			return err
		}

		result = &AdvanceResult{
			Payments:    created,
			TotalAmount: total,
			Count:       len(created),
			Aggregates:  loan.Aggregates(),
		}
		done = committed{loan: loan, previousStatus: previous, payments: payments, events: events}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int32("workspace_id", workspaceID).
		Int32("loan_id", loanID).
		Int("count", result.Count).
		Str("total_amount", result.TotalAmount.StringFixed(2)).
		Msg("Advance payments recorded")

	s.afterCommit(ctx, done)
	return result, nil
}

// EditPaymentInput contains input for correcting a payment. The amount is not checked
// against what the schedule expects; the audit trail keeps the previous values.
type EditPaymentInput struct {
	Amount      decimal.Decimal
	Status      domain.PaymentStatus
	PaymentDate *time.Time
	Notes       *string
	Actor       string
}

// EditPayment corrects a payment in place
func (s *PaymentService) EditPayment(ctx context.Context, workspaceID, paymentID int32, input EditPaymentInput) (*PaymentResult, error) {
	if !domain.ValidAmount(input.Amount) {
		return nil, domain.ErrPaymentAmountInvalid
	}
	if !input.Status.IsValid() {
		return nil, domain.ErrPaymentStatusInvalid
	}

	var result *PaymentResult
	var done committed
	err := s.runTx(ctx, "edit_payment", func(tx domain.LedgerTx) error {
		loan, current, err := s.lockPaymentLoan(ctx, tx, workspaceID, paymentID)
		if err != nil {
			return err
		}
		previous := loan.Status

		before := current.Clone()
		current.Amount = input.Amount
		current.Status = input.Status
		if input.PaymentDate != nil {
			current.PaymentDate = util.NormalizeDate(*input.PaymentDate)
		}
		if input.Notes != nil {
			current.Notes = input.Notes
		}

		updated, err := tx.UpdatePayment(ctx, current)
		if err != nil {
			return err
		}
		if err := tx.CreateAuditEntry(ctx, domain.NewAuditEntry(domain.AuditPaymentEdited, input.Actor, before, updated)); err != nil {
			return err
		}

		payments, err := tx.ListPayments(ctx, loan.ID)
		if err != nil {
			return err
		}
		if err := s.recompute(ctx, tx, loan, payments); err != nil {
			return err
		}

		result = &PaymentResult{Payment: updated, Aggregates: loan.Aggregates()}
		done = committed{
			loan:           loan,
			previousStatus: previous,
			payments:       payments,
			events:         []websocket.Event{websocket.PaymentUpdated(loan.ID, updated)},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int32("workspace_id", workspaceID).
		Int32("loan_id", done.loan.ID).
		Int32("payment_id", paymentID).
		Str("actor", input.Actor).
		Msg("Payment edited")

	s.afterCommit(ctx, done)
	return result, nil
}

// DeleteResult is the outcome of a delete
type DeleteResult struct {
	DeletedCount int                   `json:"deletedCount"`
	DeletedIDs   []int32               `json:"deletedIds"`
	Aggregates   domain.LoanAggregates `json:"aggregates"`
}

// DeletePayment removes one payment, or with deleteChain every member of its chain
func (s *PaymentService) DeletePayment(ctx context.Context, workspaceID, paymentID int32, deleteChain bool, actor string) (*DeleteResult, error) {
	var result *DeleteResult
	var done committed
	err := s.runTx(ctx, "delete_payment", func(tx domain.LedgerTx) error {
		loan, target, err := s.lockPaymentLoan(ctx, tx, workspaceID, paymentID)
		if err != nil {
			return err
		}
		previous := loan.Status

		victims := []*domain.Payment{target}
		if deleteChain && target.IsChained() {
			victims, err = tx.ListChain(ctx, workspaceID, target.Chain.ChainID)
			if err != nil {
				return err
			}
		}

		ids := make([]int32, len(victims))
		for i, p := range victims {
			ids[i] = p.ID
			if err := tx.CreateAuditEntry(ctx, domain.NewAuditEntry(domain.AuditPaymentDeleted, actor, p, nil)); err != nil {
				return err
			}
		}
		deleted, err := tx.DeletePayments(ctx, ids)
		if err != nil {
			return err
		}

		payments, err := tx.ListPayments(ctx, loan.ID)
		if err != nil {
			return err
		}
		if err := s.recompute(ctx, tx, loan, payments); err != nil {
			return err
		}

		result = &DeleteResult{DeletedCount: deleted, DeletedIDs: ids, Aggregates: loan.Aggregates()}
		done = committed{
			loan:           loan,
			previousStatus: previous,
			payments:       payments,
			events: []websocket.Event{websocket.PaymentDeleted(loan.ID, map[string]interface{}{
				"paymentIds":   ids,
				"deletedCount": deleted,
			})},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int32("workspace_id", workspaceID).
		Int32("loan_id", done.loan.ID).
		Int32("payment_id", paymentID).
		Bool("delete_chain", deleteChain).
		Int("deleted_count", result.DeletedCount).
		Msg("Payment deleted")

	s.afterCommit(ctx, done)
	return result, nil
}

// lockPaymentLoan finds the payment, locks its loan and re-reads the payment under the lock
func (s *PaymentService) lockPaymentLoan(ctx context.Context, tx domain.LedgerTx, workspaceID, paymentID int32) (*domain.Loan, *domain.Payment, error) {
	p, err := tx.GetPayment(ctx, workspaceID, paymentID)
	if err != nil {
		return nil, nil, err
	}
	loan, err := tx.LockLoan(ctx, workspaceID, p.LoanID)
	if err != nil {
		return nil, nil, err
	}
	p, err = tx.GetPayment(ctx, workspaceID, paymentID)
	if err != nil {
		return nil, nil, err
	}
	return loan, p, nil
}

// CompleteChainInput contains input for topping up a partially paid installment
type CompleteChainInput struct {
	Amount      decimal.Decimal
	PaymentDate time.Time
	CollectedBy string
	Notes       *string
}

// ChainCompletionResult is the outcome of a chain completion
type ChainCompletionResult struct {
	Payment         *domain.Payment       `json:"payment"`
	ChainTotal      decimal.Decimal       `json:"chainTotal"`
	IsChainComplete bool                  `json:"isChainComplete"`
	Aggregates      domain.LoanAggregates `json:"aggregates"`
}

// CompleteChain appends a Paid member to a chain anchored by a Partial payment. The
// amount may under- or overpay the shortfall.
func (s *PaymentService) CompleteChain(ctx context.Context, workspaceID int32, chainID uuid.UUID, input CompleteChainInput) (*ChainCompletionResult, error) {
	if !domain.ValidAmount(input.Amount) {
		return nil, domain.ErrPaymentAmountInvalid
	}
	if input.PaymentDate.IsZero() {
		return nil, domain.ErrPaymentDateRequired
	}
	collector := strings.TrimSpace(input.CollectedBy)

	var result *ChainCompletionResult
	var done committed
	err := s.runTx(ctx, "complete_chain", func(tx domain.LedgerTx) error {
		members, err := tx.ListChain(ctx, workspaceID, chainID)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return domain.ErrChainNotFound
		}
		loan, err := tx.LockLoan(ctx, workspaceID, members[0].LoanID)
		if err != nil {
			return err
		}
		previous := loan.Status

		// another completion may have committed while we waited for the lock
		members, err = tx.ListChain(ctx, workspaceID, chainID)
		if err != nil {
			return err
		}
		chain, err := domain.NewChain(members)
		if err != nil {
			return err
		}
		if chain.Anchor().Status != domain.PaymentStatusPartial {
			return domain.ErrNonPartialChainCompletion
		}
		wasComplete := chain.IsComplete()

		ref := *chain.Anchor().Chain
		p, err := tx.CreatePayment(ctx, &domain.Payment{
			LoanID:      loan.ID,
			Amount:      input.Amount,
			PaymentDate: util.NormalizeDate(input.PaymentDate),
			Status:      domain.PaymentStatusPaid,
			CollectedBy: collector,
			Notes:       input.Notes,
			Chain:       &ref,
		})
		if err != nil {
			return err
		}
		if err := tx.CreateAuditEntry(ctx, domain.NewAuditEntry(domain.AuditChainCompleted, collector, nil, p)); err != nil {
			return err
		}
		chain.Members = append(chain.Members, p)

		payments, err := tx.ListPayments(ctx, loan.ID)
		if err != nil {
			return err
		}
		if err := s.recompute(ctx, tx, loan, payments); err != nil {
			return err
		}

		result = &ChainCompletionResult{
			Payment:         p,
			ChainTotal:      chain.Total(),
			IsChainComplete: chain.IsComplete(),
			Aggregates:      loan.Aggregates(),
		}
		events := []websocket.Event{websocket.PaymentRecorded(loan.ID, p)}
		if result.IsChainComplete && !wasComplete {
			events = append(events, websocket.ChainCompleted(loan.ID, map[string]interface{}{
				"chainId":          chain.ID,
				"installmentIndex": chain.InstallmentIndex,
				"chainTotal":       result.ChainTotal,
			}))
		}
		done = committed{loan: loan, previousStatus: previous, payments: payments, events: events}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int32("workspace_id", workspaceID).
		Int32("loan_id", done.loan.ID).
		Str("chain_id", chainID.String()).
		Str("chain_total", result.ChainTotal.StringFixed(2)).
		Bool("complete", result.IsChainComplete).
		Msg("Chain payment recorded")

	s.afterCommit(ctx, done)
	return result, nil
}

// GetChain returns a chain with its members in insertion order
func (s *PaymentService) GetChain(ctx context.Context, workspaceID int32, chainID uuid.UUID) (*domain.Chain, error) {
	members, err := s.store.GetChain(ctx, workspaceID, chainID)
	if err != nil {
		return nil, err
	}
	return domain.NewChain(members)
}

// ListPayments returns the loan's payments in insertion order
func (s *PaymentService) ListPayments(ctx context.Context, workspaceID, loanID int32) ([]*domain.Payment, error) {
	return s.store.ListPayments(ctx, workspaceID, loanID)
}

// ListAudit returns the loan's audit trail, oldest first
func (s *PaymentService) ListAudit(ctx context.Context, workspaceID, loanID int32) ([]*domain.AuditEntry, error) {
	return s.store.ListAudit(ctx, workspaceID, loanID)
}
