package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dafibh/cicilan/cicilan-backend/internal/domain"
	"github.com/dafibh/cicilan/cicilan-backend/internal/repository/sqlite"
	"github.com/dafibh/cicilan/cicilan-backend/internal/service"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func openStore(t *testing.T) *sqlite.LedgerStore {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newLoan(t *testing.T, store *sqlite.LedgerStore, workspaceID int32) *domain.Loan {
	t.Helper()
	loan := &domain.Loan{
		WorkspaceID:            workspaceID,
		BorrowerRef:            "BRW-1",
		PrincipalAmount:        decimal.RequireFromString("10000.50"),
		InstallmentAmount:      decimal.NewFromInt(1000),
		FinalInstallmentAmount: decimal.NewFromInt(1500),
		PeriodType:             domain.PeriodMonthly,
		Periods:                12,
		AmountMode:             domain.AmountModeCustom,
		ScheduleStart:          date(2025, 1, 15),
	}
	agg, err := domain.InitialAggregates(loan, date(2025, 1, 1))
	require.NoError(t, err)
	loan.ApplyAggregates(agg)

	created, err := store.Create(context.Background(), loan)
	require.NoError(t, err)
	return created
}

func TestLedgerStore_CreateAndGetLoan(t *testing.T) {
	store := openStore(t)
	loan := newLoan(t, store, 1)

	fetched, err := store.GetByID(context.Background(), 1, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "BRW-1", fetched.BorrowerRef)
	assert.True(t, fetched.PrincipalAmount.Equal(decimal.RequireFromString("10000.50")))
	assert.True(t, fetched.FinalInstallmentAmount.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, date(2025, 1, 15), fetched.ScheduleStart)
	assert.True(t, fetched.RemainingAmount.Equal(decimal.NewFromInt(12500)))
	require.NotNil(t, fetched.NextDueDate)
	assert.Equal(t, date(2025, 1, 15), *fetched.NextDueDate)
	assert.Equal(t, domain.LoanStatusActive, fetched.Status)
	assert.Equal(t, int64(1), fetched.Version)

	_, err = store.GetByID(context.Background(), 2, loan.ID)
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
}

func TestLedgerStore_PaymentLifecycle(t *testing.T) {
	store := openStore(t)
	loan := newLoan(t, store, 1)
	ctx := context.Background()
	notes := "first visit"
	ref, err := domain.NewChainRef(loan, 1)
	require.NoError(t, err)

	var created *domain.Payment
	err = store.WithinTx(ctx, func(tx domain.LedgerTx) error {
		if _, err := tx.LockLoan(ctx, 1, loan.ID); err != nil {
			return err
		}
		created, err = tx.CreatePayment(ctx, &domain.Payment{
			LoanID:      loan.ID,
			Amount:      decimal.RequireFromString("400.25"),
			PaymentDate: date(2025, 1, 10),
			Status:      domain.PaymentStatusPartial,
			CollectedBy: "collector-1",
			Notes:       &notes,
			Chain:       ref,
		})
		return err
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	require.NotNil(t, created.Chain)
	assert.Equal(t, ref.ChainID, created.Chain.ChainID)
	assert.Equal(t, date(2025, 1, 15), created.Chain.DueDate)
	assert.True(t, created.Chain.ExpectedAmount.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, "first visit", *created.Notes)

	members, err := store.GetChain(ctx, 1, ref.ChainID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.True(t, members[0].Amount.Equal(decimal.RequireFromString("400.25")))

	members, err = store.GetChain(ctx, 2, ref.ChainID)
	require.NoError(t, err)
	assert.Empty(t, members)

	err = store.WithinTx(ctx, func(tx domain.LedgerTx) error {
		p, err := tx.GetPayment(ctx, 1, created.ID)
		if err != nil {
			return err
		}
		p.Amount = decimal.NewFromInt(500)
		p.Chain = nil
		_, err = tx.UpdatePayment(ctx, p)
		return err
	})
	require.NoError(t, err)

	payments, err := store.ListPayments(ctx, 1, loan.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.True(t, payments[0].Amount.Equal(decimal.NewFromInt(500)))
	assert.Nil(t, payments[0].Chain)

	err = store.WithinTx(ctx, func(tx domain.LedgerTx) error {
		n, err := tx.DeletePayments(ctx, []int32{created.ID, 999})
		assert.Equal(t, 1, n)
		return err
	})
	require.NoError(t, err)

	payments, err = store.ListPayments(ctx, 1, loan.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestLedgerStore_RollbackOnError(t *testing.T) {
	store := openStore(t)
	loan := newLoan(t, store, 1)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(tx domain.LedgerTx) error {
		if _, err := tx.CreatePayment(ctx, &domain.Payment{
			LoanID:      loan.ID,
			Amount:      decimal.NewFromInt(1000),
			PaymentDate: date(2025, 1, 15),
			Status:      domain.PaymentStatusPaid,
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	payments, err := store.ListPayments(ctx, 1, loan.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestLedgerStore_AuditEntries(t *testing.T) {
	store := openStore(t)
	loan := newLoan(t, store, 1)
	ctx := context.Background()

	before := &domain.Payment{ID: 3, LoanID: loan.ID, Amount: decimal.NewFromInt(100), Status: domain.PaymentStatusPaid}
	after := &domain.Payment{ID: 3, LoanID: loan.ID, Amount: decimal.NewFromInt(90), Status: domain.PaymentStatusPartial}

	err := store.WithinTx(ctx, func(tx domain.LedgerTx) error {
		if err := tx.CreateAuditEntry(ctx, domain.NewAuditEntry(domain.AuditPaymentEdited, "supervisor", before, after)); err != nil {
			return err
		}
		return tx.CreateAuditEntry(ctx, domain.NewAuditEntry(domain.AuditPaymentDeleted, "supervisor", after, nil))
	})
	require.NoError(t, err)

	entries, err := store.ListAudit(ctx, 1, loan.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.AuditPaymentEdited, entries[0].Action)
	assert.True(t, entries[0].AmountBefore.Equal(decimal.NewFromInt(100)))
	assert.True(t, entries[0].AmountAfter.Equal(decimal.NewFromInt(90)))
	assert.Equal(t, domain.PaymentStatusPartial, *entries[0].StatusAfter)
	assert.Nil(t, entries[1].AmountAfter)
	assert.Nil(t, entries[1].StatusAfter)
}

func TestLedgerStore_ListOpen(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	open := newLoan(t, store, 1)
	closed := newLoan(t, store, 2)

	err := store.WithinTx(ctx, func(tx domain.LedgerTx) error {
		loan, err := tx.LockLoan(ctx, 2, closed.ID)
		if err != nil {
			return err
		}
		loan.Status = domain.LoanStatusCompleted
		loan.NextDueDate = nil
		return tx.UpdateLoanAggregates(ctx, loan)
	})
	require.NoError(t, err)

	loans, err := store.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, open.ID, loans[0].ID)

	fetched, err := store.GetByID(ctx, 2, closed.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched.NextDueDate)
}

func newPaymentService(store *sqlite.LedgerStore, today time.Time) *service.PaymentService {
	svc := service.NewPaymentService(store, nil, nil, service.RetryPolicy{Attempts: 5, Backoff: 10 * time.Millisecond}, zerolog.Nop())
	svc.SetClock(func() time.Time { return today })
	return svc
}

func TestLedgerStore_ServiceEndToEnd(t *testing.T) {
	store := openStore(t)
	loan := newLoan(t, store, 1)
	svc := newPaymentService(store, date(2025, 5, 20))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.RecordPayment(ctx, 1, loan.ID, service.RecordPaymentInput{
			Amount:      decimal.NewFromInt(1000),
			PaymentDate: date(2025, time.Month(1+i), 15),
			Status:      domain.PaymentStatusPaid,
		})
		require.NoError(t, err)
	}

	partial, err := svc.RecordPayment(ctx, 1, loan.ID, service.RecordPaymentInput{
		Amount:      decimal.NewFromInt(600),
		PaymentDate: date(2025, 6, 10),
		Status:      domain.PaymentStatusPartial,
	})
	require.NoError(t, err)
	require.NotNil(t, partial.Payment.Chain)
	assert.Equal(t, int32(6), partial.Payment.Chain.InstallmentIndex)

	res, err := svc.CompleteChain(ctx, 1, partial.Payment.Chain.ChainID, service.CompleteChainInput{
		Amount:      decimal.NewFromInt(400),
		PaymentDate: date(2025, 6, 14),
	})
	require.NoError(t, err)
	assert.True(t, res.IsChainComplete)

	fetched, err := store.GetByID(ctx, 1, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(6), fetched.FullyCompletedCount)
	assert.True(t, fetched.RemainingAmount.Equal(decimal.NewFromInt(6500)))
	assert.True(t, fetched.AmountPaid.Equal(decimal.NewFromInt(6000)))
	require.NotNil(t, fetched.NextDueDate)
	assert.Equal(t, date(2025, 7, 15), *fetched.NextDueDate)

	entries, err := store.ListAudit(ctx, 1, loan.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 7)
}

func TestLedgerStore_ConcurrentChainCompletion(t *testing.T) {
	store := openStore(t)
	loan := newLoan(t, store, 1)
	svc := newPaymentService(store, date(2025, 1, 14))
	ctx := context.Background()

	partial, err := svc.RecordPayment(ctx, 1, loan.ID, service.RecordPaymentInput{
		Amount:      decimal.NewFromInt(600),
		PaymentDate: date(2025, 1, 10),
		Status:      domain.PaymentStatusPartial,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CompleteChain(ctx, 1, partial.Payment.Chain.ChainID, service.CompleteChainInput{
				Amount:      decimal.NewFromInt(400),
				PaymentDate: date(2025, 1, 14),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	fetched, err := store.GetByID(ctx, 1, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetched.FullyCompletedCount)
	assert.True(t, fetched.AmountPaid.Equal(decimal.NewFromInt(2200)))
	assert.Equal(t, int64(6), fetched.Version)
}
