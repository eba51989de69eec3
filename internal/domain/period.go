package domain

import (
	"errors"
	"time"

	"github.com/dafibh/cicilan/cicilan-backend/internal/util"
)

var ErrPeriodTypeInvalid = errors.New("period type must be one of daily, weekly, monthly")

// PeriodType is the length of one installment period
type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
)

// IsValid reports whether p is a known period type
func (p PeriodType) IsValid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return true
	}
	return false
}

// AddPeriods steps date by count periods. The input is normalized to midnight UTC first.
// Monthly stepping clamps to the last day of a shorter target month, so it is not
// reversible: AddPeriods(AddPeriods(Jan 31, Monthly, 1), Monthly, -1) is Jan 28.
func AddPeriods(date time.Time, periodType PeriodType, count int) (time.Time, error) {
	switch periodType {
	case PeriodDaily:
		return util.AddDays(date, count), nil
	case PeriodWeekly:
		return util.AddDays(date, 7*count), nil
	case PeriodMonthly:
		return util.AddMonthsClamped(date, count), nil
	default:
		return time.Time{}, ErrPeriodTypeInvalid
	}
}
