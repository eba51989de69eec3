package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/dafibh/cicilan/cicilan-backend/internal/domain"
	"github.com/dafibh/cicilan/cicilan-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// RetryPolicy bounds how often a transaction is retried after storage contention
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy returns sensible defaults
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 50 * time.Millisecond}
}

// ClosureStatementExpiry is how long a closure statement link stays valid
const ClosureStatementExpiry = 15 * time.Minute

// ClosureObjectPath is where the closure statement of a loan is archived
func ClosureObjectPath(workspaceID, loanID int32) string {
	return path.Join("closures", fmt.Sprintf("%d", workspaceID), fmt.Sprintf("%d", loanID), "statement.json")
}

// ledger holds the collaborators shared by every service that mutates the ledger
type ledger struct {
	store          domain.LedgerStore
	cache          domain.AggregateCache
	archive        domain.ClosureArchive
	eventPublisher websocket.EventPublisher
	retry          RetryPolicy
	now            func() time.Time
	logger         zerolog.Logger
}

func newLedger(store domain.LedgerStore, cache domain.AggregateCache, archive domain.ClosureArchive, retry RetryPolicy, logger zerolog.Logger) ledger {
	if retry.Attempts < 1 {
		retry.Attempts = 1
	}
	return ledger{
		store:   store,
		cache:   cache,
		archive: archive,
		retry:   retry,
		now:     time.Now,
		logger:  logger,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (l *ledger) SetEventPublisher(publisher websocket.EventPublisher) {
	l.eventPublisher = publisher
}

// SetClock replaces the source of "today"
func (l *ledger) SetClock(now func() time.Time) {
	l.now = now
}

// publishEvent publishes a WebSocket event if a publisher is configured
func (l *ledger) publishEvent(workspaceID int32, event websocket.Event) {
	if l.eventPublisher != nil {
		l.eventPublisher.Publish(workspaceID, event)
	}
}

func (l *ledger) today() time.Time {
	return l.now()
}

// runTx runs fn in a transaction, retrying it from scratch while the store reports
// contention. fn must not keep state across attempts.
func (l *ledger) runTx(ctx context.Context, op string, fn func(tx domain.LedgerTx) error) error {
	backoff := l.retry.Backoff
	var err error
	for attempt := 1; attempt <= l.retry.Attempts; attempt++ {
		err = l.store.WithinTx(ctx, fn)
		if err == nil || !errors.Is(err, domain.ErrTransient) {
			return err
		}
		if attempt == l.retry.Attempts {
			break
		}

		l.logger.Warn().
			Err(err).
			Str("operation", op).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Retrying ledger transaction after contention")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%s: gave up after %d attempts: %w", op, l.retry.Attempts, err)
}

// recompute folds the loan's ledger into its aggregates and saves them in the same transaction
func (l *ledger) recompute(ctx context.Context, tx domain.LedgerTx, loan *domain.Loan, payments []*domain.Payment) error {
	agg, err := domain.Recompute(loan, payments, l.today())
	if err != nil {
		return err
	}
	loan.ApplyAggregates(agg)
	return tx.UpdateLoanAggregates(ctx, loan)
}

// committed carries what a transaction changed to the post-commit side effects
type committed struct {
	loan           *domain.Loan
	previousStatus domain.LoanStatus
	payments       []*domain.Payment
	events         []websocket.Event
}

// afterCommit refreshes the summary cache, archives a newly completed loan and
// publishes events. Failures here are logged; the ledger is already durable.
func (l *ledger) afterCommit(ctx context.Context, c committed) {
	loan := c.loan
	log := l.logger.With().Int32("workspace_id", loan.WorkspaceID).Int32("loan_id", loan.ID).Logger()

	if l.cache != nil {
		if err := l.cache.Set(ctx, domain.NewLoanSummary(loan)); err != nil {
			log.Warn().Err(err).Msg("Failed to refresh loan summary cache")
			if err := l.cache.Invalidate(ctx, loan.ID); err != nil {
				log.Warn().Err(err).Msg("Failed to invalidate loan summary cache")
			}
		}
	}

	if c.previousStatus != domain.LoanStatusCompleted && loan.Status == domain.LoanStatusCompleted {
		l.archiveClosure(ctx, loan, c.payments, log)
	}

	for _, event := range c.events {
		l.publishEvent(loan.WorkspaceID, event)
	}
	if c.previousStatus != loan.Status || len(c.events) > 0 {
		l.publishEvent(loan.WorkspaceID, websocket.LoanAggregatesChanged(loan.ID, loan.Aggregates()))
	}
}

func (l *ledger) archiveClosure(ctx context.Context, loan *domain.Loan, payments []*domain.Payment, log zerolog.Logger) {
	if l.archive == nil {
		return
	}
	statement := domain.ClosureStatement{
		Loan:       loan,
		Payments:   payments,
		Aggregates: loan.Aggregates(),
		ClosedAt:   l.now().UTC(),
	}
	body, err := json.MarshalIndent(statement, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode closure statement")
		return
	}
	objectPath := ClosureObjectPath(loan.WorkspaceID, loan.ID)
	if _, err := l.archive.Upload(ctx, objectPath, body, "application/json"); err != nil {
		log.Error().Err(err).Str("object_path", objectPath).Msg("Failed to archive closure statement")
		return
	}
	log.Info().Str("object_path", objectPath).Msg("Archived closure statement")
}
