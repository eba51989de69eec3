package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func customMonthlyLoan() *Loan {
	return &Loan{
		ID:                     7,
		WorkspaceID:            1,
		BorrowerRef:            "BRW-001",
		PrincipalAmount:        decimal.NewFromInt(10000),
		InstallmentAmount:      decimal.NewFromInt(1000),
		FinalInstallmentAmount: decimal.NewFromInt(1500),
		PeriodType:             PeriodMonthly,
		Periods:                12,
		AmountMode:             AmountModeCustom,
		ScheduleStart:          day(2025, 1, 15),
		Status:                 LoanStatusActive,
	}
}

func fixedLoan(periods int32, amount int64) *Loan {
	return &Loan{
		ID:                7,
		WorkspaceID:       1,
		BorrowerRef:       "BRW-002",
		PrincipalAmount:   decimal.NewFromInt(amount * int64(periods)),
		InstallmentAmount: decimal.NewFromInt(amount),
		PeriodType:        PeriodMonthly,
		Periods:           periods,
		AmountMode:        AmountModeFixed,
		ScheduleStart:     day(2025, 1, 15),
		Status:            LoanStatusActive,
	}
}

func paid(id int32, amount int64, date time.Time) *Payment {
	return &Payment{ID: id, LoanID: 7, Amount: decimal.NewFromInt(amount), PaymentDate: date, Status: PaymentStatusPaid}
}

func chained(id int32, amount int64, date time.Time, status PaymentStatus, ref *ChainRef) *Payment {
	return &Payment{ID: id, LoanID: 7, Amount: decimal.NewFromInt(amount), PaymentDate: date, Status: status, Chain: ref}
}

func mustAddPeriods(t *testing.T, date time.Time, periodType PeriodType, count int) time.Time {
	t.Helper()
	d, err := AddPeriods(date, periodType, count)
	require.NoError(t, err)
	return d
}

func TestRecompute_CustomMonthlyScenario(t *testing.T) {
	loan := customMonthlyLoan()

	var payments []*Payment
	for i := int32(1); i <= 5; i++ {
		due := mustAddPeriods(t, loan.ScheduleStart, loan.PeriodType, int(i-1))
		payments = append(payments, paid(i, 1000, due))
	}

	agg, err := Recompute(loan, payments, day(2025, 5, 20))
	require.NoError(t, err)

	assert.True(t, agg.TotalContractAmount.Equal(decimal.NewFromInt(12500)))
	assert.Equal(t, int32(5), agg.FullyCompletedCount)
	assert.True(t, agg.AmountPaid.Equal(decimal.NewFromInt(5000)))
	assert.True(t, agg.RemainingAmount.Equal(decimal.NewFromInt(7500)))
	assert.Equal(t, day(2025, 5, 15), agg.LastCompletedDate)
	require.NotNil(t, agg.NextDueDate)
	assert.Equal(t, day(2025, 6, 15), *agg.NextDueDate)
	assert.Equal(t, LoanStatusActive, agg.Status)
	assert.True(t, agg.PunctualityScore.Equal(decimal.NewFromInt(100)))
}

func TestRecompute_EmptyLedger(t *testing.T) {
	loan := customMonthlyLoan()

	agg, err := Recompute(loan, nil, day(2025, 1, 1))
	require.NoError(t, err)

	assert.Equal(t, int32(0), agg.FullyCompletedCount)
	assert.True(t, agg.AmountPaid.IsZero())
	assert.True(t, agg.RemainingAmount.Equal(decimal.NewFromInt(12500)))
	assert.Equal(t, loan.ScheduleStart, agg.LastCompletedDate)
	require.NotNil(t, agg.NextDueDate)
	assert.Equal(t, loan.ScheduleStart, *agg.NextDueDate)
	assert.Equal(t, LoanStatusActive, agg.Status)
	assert.True(t, agg.PunctualityScore.Equal(decimal.NewFromInt(100)))
}

func TestRecompute_PaidCountCappedAtPeriods(t *testing.T) {
	loan := fixedLoan(3, 100)

	for n := 1; n <= 5; n++ {
		var payments []*Payment
		for i := 1; i <= n; i++ {
			payments = append(payments, paid(int32(i), 100, day(2025, 1, 15)))
		}
		agg, err := Recompute(loan, payments, day(2025, 1, 15))
		require.NoError(t, err)

		want := int32(n)
		if want > loan.Periods {
			want = loan.Periods
		}
		assert.Equal(t, want, agg.FullyCompletedCount, "after %d paid payments", n)
	}
}

func TestRecompute_CompletedWhenAllPeriodsResolved(t *testing.T) {
	loan := fixedLoan(2, 100)
	payments := []*Payment{
		paid(1, 100, day(2025, 1, 15)),
		paid(2, 150, day(2025, 2, 15)),
	}

	agg, err := Recompute(loan, payments, day(2025, 6, 1))
	require.NoError(t, err)

	assert.Equal(t, LoanStatusCompleted, agg.Status)
	assert.Nil(t, agg.NextDueDate)
	// overpaid: remaining never goes negative
	assert.True(t, agg.RemainingAmount.IsZero())
	assert.True(t, agg.AmountPaid.Equal(decimal.NewFromInt(250)))
}

func TestRecompute_RemainingPlusPaidEqualsTotal(t *testing.T) {
	loan := customMonthlyLoan()
	payments := []*Payment{
		paid(1, 1000, day(2025, 1, 15)),
		{ID: 2, LoanID: 7, Amount: decimal.NewFromFloat(333.33), PaymentDate: day(2025, 2, 10), Status: PaymentStatusPartial},
		{ID: 3, LoanID: 7, Amount: decimal.NewFromInt(2000), PaymentDate: day(2025, 2, 11), Status: PaymentStatusAdvance},
	}

	agg, err := Recompute(loan, payments, day(2025, 2, 11))
	require.NoError(t, err)

	assert.True(t, agg.RemainingAmount.Add(agg.AmountPaid).Equal(agg.TotalContractAmount))
}

func TestRecompute_UnchainedPartialCountsZero(t *testing.T) {
	loan := fixedLoan(12, 1000)
	payments := []*Payment{
		paid(1, 1000, day(2025, 1, 15)),
		{ID: 2, LoanID: 7, Amount: decimal.NewFromInt(400), PaymentDate: day(2025, 2, 15), Status: PaymentStatusPartial},
		{ID: 3, LoanID: 7, Amount: decimal.NewFromInt(600), PaymentDate: day(2025, 2, 16), Status: PaymentStatusPartial},
	}

	agg, err := Recompute(loan, payments, day(2025, 2, 1))
	require.NoError(t, err)

	assert.Equal(t, int32(1), agg.FullyCompletedCount)
	assert.True(t, agg.AmountPaid.Equal(decimal.NewFromInt(2000)))
	require.NotNil(t, agg.NextDueDate)
	assert.Equal(t, day(2025, 2, 15), *agg.NextDueDate)
}

func TestRecompute_ChainCompletesAtThreshold(t *testing.T) {
	loan := fixedLoan(6, 500)
	ref, err := NewChainRef(loan, 1)
	require.NoError(t, err)

	payments := []*Payment{
		chained(1, 200, day(2025, 1, 10), PaymentStatusPartial, ref),
		chained(2, 250, day(2025, 1, 12), PaymentStatusPartial, ref),
	}
	before, err := Recompute(loan, payments, day(2025, 1, 12))
	require.NoError(t, err)
	assert.Equal(t, int32(0), before.FullyCompletedCount)

	payments = append(payments, chained(3, 50, day(2025, 1, 14), PaymentStatusPaid, ref))
	after, err := Recompute(loan, payments, day(2025, 1, 14))
	require.NoError(t, err)
	assert.Equal(t, before.FullyCompletedCount+1, after.FullyCompletedCount)

	// an overpaying member still counts the installment once
	payments = append(payments, chained(4, 900, day(2025, 1, 14), PaymentStatusPaid, ref))
	again, err := Recompute(loan, payments, day(2025, 1, 14))
	require.NoError(t, err)
	assert.Equal(t, int32(1), again.FullyCompletedCount)
}

func TestRecompute_Idempotent(t *testing.T) {
	loan := customMonthlyLoan()
	ref, err := NewChainRef(loan, 2)
	require.NoError(t, err)
	payments := []*Payment{
		paid(1, 1000, day(2025, 1, 20)),
		chained(2, 600, day(2025, 2, 14), PaymentStatusPartial, ref),
		chained(3, 400, day(2025, 2, 16), PaymentStatusPaid, ref),
	}
	today := day(2025, 4, 1)

	first, err := Recompute(loan, payments, today)
	require.NoError(t, err)
	loan.ApplyAggregates(first)

	second, err := Recompute(loan, payments, today)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.Equal(t, int64(1), loan.Version)
}

func TestRecompute_OverdueTransitions(t *testing.T) {
	loan := fixedLoan(3, 100)
	payments := []*Payment{paid(1, 100, day(2025, 1, 15))}

	agg, err := Recompute(loan, payments, day(2025, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, LoanStatusOverdue, agg.Status)
	loan.ApplyAggregates(agg)

	// catching up restores active
	payments = append(payments, paid(2, 100, day(2025, 3, 1)))
	agg, err = Recompute(loan, payments, day(2025, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, LoanStatusActive, agg.Status)
}

func TestRecompute_CorrectionReopensCompletedLoan(t *testing.T) {
	loan := fixedLoan(2, 100)
	payments := []*Payment{paid(1, 100, day(2025, 1, 15)), paid(2, 100, day(2025, 2, 15))}

	agg, err := Recompute(loan, payments, day(2025, 2, 15))
	require.NoError(t, err)
	require.Equal(t, LoanStatusCompleted, agg.Status)
	loan.ApplyAggregates(agg)

	// installment 2 deleted long after its due date
	agg, err = Recompute(loan, payments[:1], day(2025, 5, 1))
	require.NoError(t, err)
	assert.Equal(t, LoanStatusOverdue, agg.Status)

	agg, err = Recompute(loan, payments[:1], day(2025, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, LoanStatusActive, agg.Status)
}

func TestRecompute_PunctualityScore(t *testing.T) {
	loan := fixedLoan(4, 100)
	payments := []*Payment{
		paid(1, 100, day(2025, 1, 15)), // on the due date
		paid(2, 100, day(2025, 2, 20)), // five days late
		paid(3, 100, day(2025, 3, 1)),  // early
	}

	agg, err := Recompute(loan, payments, day(2025, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, "66.67", agg.PunctualityScore.StringFixed(2))
}

func TestRecompute_PunctualityUsesChainDueDateAndResolutionDate(t *testing.T) {
	loan := fixedLoan(4, 500)
	ref, err := NewChainRef(loan, 1)
	require.NoError(t, err)

	payments := []*Payment{
		chained(1, 300, day(2025, 1, 10), PaymentStatusPartial, ref),
		// crosses the threshold after the due date
		chained(2, 200, day(2025, 1, 20), PaymentStatusPaid, ref),
	}
	agg, err := Recompute(loan, payments, day(2025, 1, 20))
	require.NoError(t, err)
	assert.Equal(t, int32(1), agg.FullyCompletedCount)
	assert.True(t, agg.PunctualityScore.IsZero())
}

func TestRecompute_UnknownPeriodType(t *testing.T) {
	loan := fixedLoan(3, 100)
	loan.PeriodType = PeriodType("fortnightly")

	_, err := Recompute(loan, []*Payment{paid(1, 100, day(2025, 1, 15))}, day(2025, 1, 15))
	assert.ErrorIs(t, err, ErrPeriodTypeInvalid)
}

func TestNextLoanStatus(t *testing.T) {
	today := day(2025, 3, 10)
	past := day(2025, 3, 9)

	assert.Equal(t, LoanStatusCompleted, NextLoanStatus(true, nil, today))
	assert.Equal(t, LoanStatusOverdue, NextLoanStatus(false, &past, today))
	assert.Equal(t, LoanStatusActive, NextLoanStatus(false, &today, today))
}
