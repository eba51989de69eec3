package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dafibh/cicilan/cicilan-backend/internal/domain"
	"github.com/dafibh/cicilan/cicilan-backend/internal/util"
	"github.com/dafibh/cicilan/cicilan-backend/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LoanService handles loan registration and aggregate reads
type LoanService struct {
	ledger
}

// NewLoanService creates a new LoanService
func NewLoanService(store domain.LedgerStore, cache domain.AggregateCache, archive domain.ClosureArchive, retry RetryPolicy, logger zerolog.Logger) *LoanService {
	return &LoanService{
		ledger: newLedger(store, cache, archive, retry, logger.With().Str("component", "loan_service").Logger()),
	}
}

// RegisterLoanInput contains the terms of an approved loan
type RegisterLoanInput struct {
	BorrowerRef            string
	PrincipalAmount        decimal.Decimal
	InstallmentAmount      decimal.Decimal
	FinalInstallmentAmount *decimal.Decimal
	PeriodType             domain.PeriodType
	Periods                int32
	AmountMode             domain.AmountMode
	ScheduleStart          time.Time
}

// RegisterLoan stores an approved loan with the aggregates of an empty ledger
func (s *LoanService) RegisterLoan(ctx context.Context, workspaceID int32, input RegisterLoanInput) (*domain.Loan, error) {
	mode := input.AmountMode
	if mode == "" {
		mode = domain.AmountModeFixed
	}

	loan := &domain.Loan{
		WorkspaceID:       workspaceID,
		BorrowerRef:       strings.TrimSpace(input.BorrowerRef),
		PrincipalAmount:   input.PrincipalAmount,
		InstallmentAmount: input.InstallmentAmount,
		PeriodType:        input.PeriodType,
		Periods:           input.Periods,
		AmountMode:        mode,
		ScheduleStart:     util.NormalizeDate(input.ScheduleStart),
	}
	if input.FinalInstallmentAmount != nil {
		loan.FinalInstallmentAmount = *input.FinalInstallmentAmount
	}
	if mode == domain.AmountModeFixed {
		loan.FinalInstallmentAmount = loan.InstallmentAmount
	}
	if err := loan.Validate(); err != nil {
		return nil, err
	}

	agg, err := domain.InitialAggregates(loan, s.today())
	if err != nil {
		return nil, err
	}
	loan.ApplyAggregates(agg)

	created, err := s.store.Create(ctx, loan)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int32("workspace_id", workspaceID).
		Int32("loan_id", created.ID).
		Str("period_type", string(created.PeriodType)).
		Int32("periods", created.Periods).
		Msg("Loan registered")

	s.publishEvent(workspaceID, websocket.LoanRegistered(created.ID, created))
	if s.cache != nil {
		if err := s.cache.Set(ctx, domain.NewLoanSummary(created)); err != nil {
			s.logger.Warn().Err(err).Int32("loan_id", created.ID).Msg("Failed to cache loan summary")
		}
	}
	return created, nil
}

// GetLoan retrieves a loan by ID within a workspace
func (s *LoanService) GetLoan(ctx context.Context, workspaceID, loanID int32) (*domain.Loan, error) {
	return s.store.GetByID(ctx, workspaceID, loanID)
}

// GetSummary returns the loan's aggregates, served from the cache when possible
func (s *LoanService) GetSummary(ctx context.Context, workspaceID, loanID int32) (*domain.LoanSummary, error) {
	if s.cache != nil {
		summary, err := s.cache.Get(ctx, loanID)
		if err != nil {
			s.logger.Warn().Err(err).Int32("loan_id", loanID).Msg("Loan summary cache read failed")
		}
		if summary != nil && summary.WorkspaceID == workspaceID {
			return summary, nil
		}
	}

	loan, err := s.store.GetByID(ctx, workspaceID, loanID)
	if err != nil {
		return nil, err
	}
	summary := domain.NewLoanSummary(loan)
	if s.cache != nil {
		if err := s.cache.Set(ctx, summary); err != nil {
			s.logger.Warn().Err(err).Int32("loan_id", loanID).Msg("Failed to cache loan summary")
		}
	}
	return summary, nil
}

// RecomputeLoan rebuilds the loan's aggregates from its ledger
func (s *LoanService) RecomputeLoan(ctx context.Context, workspaceID, loanID int32) (*domain.Loan, error) {
	var done committed
	err := s.runTx(ctx, "recompute_loan", func(tx domain.LedgerTx) error {
		loan, err := tx.LockLoan(ctx, workspaceID, loanID)
		if err != nil {
			return err
		}
		previous := loan.Status
		payments, err := tx.ListPayments(ctx, loanID)
		if err != nil {
			return err
		}
		if err := s.recompute(ctx, tx, loan, payments); err != nil {
			return err
		}
		done = committed{loan: loan, previousStatus: previous, payments: payments}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, done)
	return done.loan, nil
}

// SweepResult summarizes one overdue sweep
type SweepResult struct {
	Checked int
	Changed int
	Failed  int
}

// SweepOverdue recomputes every open loan so that status follows the calendar even
// when no payment arrives. One failing loan does not stop the sweep.
func (s *LoanService) SweepOverdue(ctx context.Context) (*SweepResult, error) {
	loans, err := s.store.ListOpen(ctx)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	var errs []error
	for _, open := range loans {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++

		var done committed
		err := s.runTx(ctx, "sweep_overdue", func(tx domain.LedgerTx) error {
			loan, err := tx.LockLoan(ctx, open.WorkspaceID, open.ID)
			if err != nil {
				return err
			}
			previous := loan.Status
			payments, err := tx.ListPayments(ctx, loan.ID)
			if err != nil {
				return err
			}
			if err := s.recompute(ctx, tx, loan, payments); err != nil {
				return err
			}
			done = committed{loan: loan, previousStatus: previous, payments: payments}
			return nil
		})
		if err != nil {
			result.Failed++
			errs = append(errs, err)
			s.logger.Error().
				Err(err).
				Int32("workspace_id", open.WorkspaceID).
				Int32("loan_id", open.ID).
				Msg("Failed to sweep loan")
			continue
		}

		if done.previousStatus != done.loan.Status {
			result.Changed++
			s.logger.Info().
				Int32("workspace_id", done.loan.WorkspaceID).
				Int32("loan_id", done.loan.ID).
				Str("from", string(done.previousStatus)).
				Str("to", string(done.loan.Status)).
				Msg("Loan status changed")
		}
		s.afterCommit(ctx, done)
	}
	return result, errors.Join(errs...)
}

// ClosureStatementURL returns a temporary link to a completed loan's archived ledger
func (s *LoanService) ClosureStatementURL(ctx context.Context, workspaceID, loanID int32) (string, error) {
	loan, err := s.store.GetByID(ctx, workspaceID, loanID)
	if err != nil {
		return "", err
	}
	if loan.Status != domain.LoanStatusCompleted {
		return "", domain.ErrLoanNotCompleted
	}
	if s.archive == nil {
		return "", domain.ErrNotFound
	}
	return s.archive.GeneratePresignedURL(ctx, ClosureObjectPath(workspaceID, loanID), ClosureStatementExpiry)
}
