package domain

import (
	"sort"
	"time"

	"github.com/dafibh/cicilan/cicilan-backend/internal/util"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LoanAggregates are the loan fields derived from its payment ledger
type LoanAggregates struct {
	FullyCompletedCount int32           `json:"fullyCompletedCount"`
	AmountPaid          decimal.Decimal `json:"amountPaid"`
	RemainingAmount     decimal.Decimal `json:"remainingAmount"`
	TotalContractAmount decimal.Decimal `json:"totalContractAmount"`
	LastCompletedDate   time.Time       `json:"lastCompletedDate"`
	NextDueDate         *time.Time      `json:"nextDueDate,omitempty"`
	Status              LoanStatus      `json:"status"`
	PunctualityScore    decimal.Decimal `json:"punctualityScore"`
}

// Equal compares two aggregate snapshots field by field
func (a LoanAggregates) Equal(b LoanAggregates) bool {
	if (a.NextDueDate == nil) != (b.NextDueDate == nil) {
		return false
	}
	if a.NextDueDate != nil && !a.NextDueDate.Equal(*b.NextDueDate) {
		return false
	}
	return a.FullyCompletedCount == b.FullyCompletedCount &&
		a.AmountPaid.Equal(b.AmountPaid) &&
		a.RemainingAmount.Equal(b.RemainingAmount) &&
		a.TotalContractAmount.Equal(b.TotalContractAmount) &&
		a.LastCompletedDate.Equal(b.LastCompletedDate) &&
		a.Status == b.Status &&
		a.PunctualityScore.Equal(b.PunctualityScore)
}

// resolution is one installment counted as fully completed
type resolution struct {
	seq  int32
	date time.Time
	due  *time.Time
}

// Recompute folds the whole ledger into fresh aggregates. The loan's cached aggregate
// fields are never read, so repeated calls over the same ledger agree.
func Recompute(loan *Loan, payments []*Payment, today time.Time) (LoanAggregates, error) {
	total, err := TotalContractAmount(loan.InstallmentAmount, loan.Periods, loan.AmountMode, loan.FinalInstallmentAmount)
	if err != nil {
		return LoanAggregates{}, err
	}

	paid := decimal.Zero
	var resolved []resolution
	for _, p := range sortedByID(payments) {
		paid = paid.Add(p.Amount)
		if !p.IsChained() && p.Status.ResolvesInstallment() {
			resolved = append(resolved, resolution{seq: p.ID, date: p.PaymentDate})
		}
	}
	for _, chain := range GroupChains(payments) {
		on, ok := chain.ResolvedOn()
		if !ok {
			continue
		}
		due := chain.DueDate
		resolved = append(resolved, resolution{seq: chain.Anchor().ID, date: on, due: &due})
	}

	count := int32(len(resolved))
	if count > loan.Periods {
		count = loan.Periods
	}

	last, err := LastCompletedInstallmentDate(loan.ScheduleStart, loan.PeriodType, count)
	if err != nil {
		return LoanAggregates{}, err
	}
	next, err := NextDueDate(last, loan.PeriodType, loan.ScheduleStart, count, loan.Periods)
	if err != nil {
		return LoanAggregates{}, err
	}

	remaining := total.Sub(paid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	score, err := punctualityScore(loan, resolved)
	if err != nil {
		return LoanAggregates{}, err
	}

	return LoanAggregates{
		FullyCompletedCount: count,
		AmountPaid:          paid,
		RemainingAmount:     remaining,
		TotalContractAmount: total,
		LastCompletedDate:   last,
		NextDueDate:         next,
		Status:              NextLoanStatus(count >= loan.Periods, next, today),
		PunctualityScore:    score,
	}, nil
}

// NextLoanStatus applies the lifecycle transition after a recomputation:
//
//	any       -> completed  when every period is resolved
//	active    -> overdue    when the next due date is before today
//	overdue   -> active     once payments catch the schedule up
//	completed -> active     when a correction reopens the schedule, or overdue if it
//	                        reopens an installment already past due
func NextLoanStatus(allResolved bool, nextDue *time.Time, today time.Time) LoanStatus {
	if allResolved || nextDue == nil {
		return LoanStatusCompleted
	}
	if util.IsBefore(*nextDue, today) {
		return LoanStatusOverdue
	}
	return LoanStatusActive
}

// punctualityScore is the percentage of resolved installments settled on or before their
// due date. Resolutions are matched to installments in the order they happened.
func punctualityScore(loan *Loan, resolved []resolution) (decimal.Decimal, error) {
	if len(resolved) == 0 {
		return hundred, nil
	}
	sort.SliceStable(resolved, func(i, j int) bool {
		if resolved[i].date.Equal(resolved[j].date) {
			return resolved[i].seq < resolved[j].seq
		}
		return resolved[i].date.Before(resolved[j].date)
	})
	if int32(len(resolved)) > loan.Periods {
		resolved = resolved[:loan.Periods]
	}

	onTime := 0
	for i, r := range resolved {
		var due time.Time
		if r.due != nil {
			due = *r.due
		} else {
			d, err := AddPeriods(loan.ScheduleStart, loan.PeriodType, i)
			if err != nil {
				return decimal.Zero, err
			}
			due = d
		}
		if !util.IsBefore(due, r.date) {
			onTime++
		}
	}
	return decimal.NewFromInt(int64(onTime)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(len(resolved)))).
		Round(2), nil
}

// InitialAggregates returns the aggregates of a loan with an empty ledger
func InitialAggregates(loan *Loan, today time.Time) (LoanAggregates, error) {
	return Recompute(loan, nil, today)
}
