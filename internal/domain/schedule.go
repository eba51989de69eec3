package domain

import (
	"time"

	"github.com/dafibh/cicilan/cicilan-backend/internal/util"
	"github.com/shopspring/decimal"
)

// LastCompletedInstallmentDate returns the due date of the most recent fully completed
// installment. With nothing completed it returns scheduleStart as a sentinel.
func LastCompletedInstallmentDate(scheduleStart time.Time, periodType PeriodType, fullyCompletedCount int32) (time.Time, error) {
	if fullyCompletedCount <= 0 {
		return util.NormalizeDate(scheduleStart), nil
	}
	return AddPeriods(scheduleStart, periodType, int(fullyCompletedCount)-1)
}

// NextDueDate returns the due date of the next installment, or nil once every period
// is completed. The step is taken from scheduleStart rather than from lastCompleted so
// month-end clamping never accumulates; without clamping both are the same date.
func NextDueDate(lastCompleted time.Time, periodType PeriodType, scheduleStart time.Time, fullyCompletedCount, totalPeriods int32) (*time.Time, error) {
	if fullyCompletedCount >= totalPeriods {
		return nil, nil
	}
	if fullyCompletedCount <= 0 {
		start := util.NormalizeDate(scheduleStart)
		return &start, nil
	}
	var next time.Time
	var err error
	if periodType == PeriodMonthly {
		next, err = AddPeriods(scheduleStart, periodType, int(fullyCompletedCount))
	} else {
		next, err = AddPeriods(lastCompleted, periodType, 1)
	}
	if err != nil {
		return nil, err
	}
	return &next, nil
}

// InstallmentDueDate returns the due date of the 1-based installment index
func InstallmentDueDate(scheduleStart time.Time, periodType PeriodType, index int32) (time.Time, error) {
	if index < 1 {
		index = 1
	}
	return AddPeriods(scheduleStart, periodType, int(index)-1)
}

// TotalContractAmount returns installmentAmount × periods for fixed mode, or
// installmentAmount × (periods−1) + finalAmount for custom mode.
func TotalContractAmount(installmentAmount decimal.Decimal, periods int32, mode AmountMode, finalAmount decimal.Decimal) (decimal.Decimal, error) {
	if periods < 1 {
		return decimal.Zero, ErrLoanPeriodsInvalid
	}
	switch mode {
	case AmountModeFixed:
		return installmentAmount.Mul(decimal.NewFromInt32(periods)), nil
	case AmountModeCustom:
		if periods == 1 {
			return finalAmount, nil
		}
		return installmentAmount.Mul(decimal.NewFromInt32(periods - 1)).Add(finalAmount), nil
	default:
		return decimal.Zero, ErrLoanAmountModeInvalid
	}
}

// ExpectedInstallmentAmount returns the amount owed for the 1-based installment index
func ExpectedInstallmentAmount(loan *Loan, index int32) decimal.Decimal {
	if loan.AmountMode == AmountModeCustom && index >= loan.Periods {
		return loan.FinalInstallmentAmount
	}
	return loan.InstallmentAmount
}

// ScheduleBoundaries returns the installment due dates falling within [from, to]
func ScheduleBoundaries(loan *Loan, from, to time.Time) ([]time.Time, error) {
	from = util.NormalizeDate(from)
	to = util.NormalizeDate(to)

	var dates []time.Time
	for k := int32(0); k < loan.Periods; k++ {
		d, err := AddPeriods(loan.ScheduleStart, loan.PeriodType, int(k))
		if err != nil {
			return nil, err
		}
		if d.After(to) {
			break
		}
		if d.Before(from) {
			continue
		}
		dates = append(dates, d)
	}
	return dates, nil
}
