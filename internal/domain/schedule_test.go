package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddPeriods(t *testing.T) {
	tests := []struct {
		name       string
		start      time.Time
		periodType PeriodType
		count      int
		want       time.Time
	}{
		{"daily", day(2025, 1, 1), PeriodDaily, 3, day(2025, 1, 4)},
		{"daily across year", day(2024, 12, 30), PeriodDaily, 3, day(2025, 1, 2)},
		{"weekly", day(2025, 1, 1), PeriodWeekly, 2, day(2025, 1, 15)},
		{"monthly", day(2025, 1, 15), PeriodMonthly, 5, day(2025, 6, 15)},
		{"monthly clamps to february", day(2025, 1, 31), PeriodMonthly, 1, day(2025, 2, 28)},
		{"monthly steps from anchor", day(2025, 1, 31), PeriodMonthly, 2, day(2025, 3, 31)},
		{"monthly leap year", day(2024, 1, 31), PeriodMonthly, 1, day(2024, 2, 29)},
		{"negative count", day(2025, 3, 10), PeriodWeekly, -1, day(2025, 3, 3)},
		{"zero count", day(2025, 3, 10), PeriodMonthly, 0, day(2025, 3, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AddPeriods(tt.start, tt.periodType, tt.count)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("AddPeriods(%s, %s, %d) = %s, want %s",
					tt.start.Format("2006-01-02"), tt.periodType, tt.count,
					got.Format("2006-01-02"), tt.want.Format("2006-01-02"))
			}
		})
	}
}

func TestAddPeriods_NormalizesTimeOfDay(t *testing.T) {
	in := time.Date(2025, 1, 1, 17, 45, 0, 0, time.UTC)
	got, err := AddPeriods(in, PeriodDaily, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(day(2025, 1, 2)) {
		t.Errorf("got %v, want midnight 2025-01-02", got)
	}
}

func TestAddPeriods_UnknownType(t *testing.T) {
	_, err := AddPeriods(day(2025, 1, 1), PeriodType("yearly"), 1)
	if err != ErrPeriodTypeInvalid {
		t.Errorf("expected ErrPeriodTypeInvalid, got %v", err)
	}
}

func TestLastCompletedInstallmentDate(t *testing.T) {
	start := day(2025, 1, 15)

	got, err := LastCompletedInstallmentDate(start, PeriodMonthly, 0)
	if err != nil || !got.Equal(start) {
		t.Errorf("no completions: got %v (%v), want schedule start", got, err)
	}

	got, err = LastCompletedInstallmentDate(start, PeriodMonthly, 5)
	if err != nil || !got.Equal(day(2025, 5, 15)) {
		t.Errorf("five completions: got %v (%v), want 2025-05-15", got, err)
	}
}

func TestNextDueDate(t *testing.T) {
	start := day(2025, 1, 15)

	tests := []struct {
		name      string
		periods   PeriodType
		completed int32
		total     int32
		want      *time.Time
	}{
		{"nothing completed", PeriodMonthly, 0, 12, ptr(day(2025, 1, 15))},
		{"five completed", PeriodMonthly, 5, 12, ptr(day(2025, 6, 15))},
		{"all completed", PeriodMonthly, 12, 12, nil},
		{"over completed", PeriodMonthly, 13, 12, nil},
		{"daily", PeriodDaily, 3, 10, ptr(day(2025, 1, 18))},
		{"weekly", PeriodWeekly, 1, 4, ptr(day(2025, 1, 22))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			last, err := LastCompletedInstallmentDate(start, tt.periods, tt.completed)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, err := NextDueDate(last, tt.periods, start, tt.completed, tt.total)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want == nil {
				if got != nil {
					t.Errorf("expected nil, got %v", *got)
				}
				return
			}
			if got == nil || !got.Equal(*tt.want) {
				t.Errorf("got %v, want %v", got, *tt.want)
			}
		})
	}
}

func TestNextDueDate_MonthEndDoesNotDrift(t *testing.T) {
	start := day(2025, 1, 31)
	// installment 2 fell on the clamped Feb 28; installment 3 is still Mar 31
	last, _ := LastCompletedInstallmentDate(start, PeriodMonthly, 2)
	if !last.Equal(day(2025, 2, 28)) {
		t.Fatalf("last completed = %v, want 2025-02-28", last)
	}
	next, err := NextDueDate(last, PeriodMonthly, start, 2, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next == nil || !next.Equal(day(2025, 3, 31)) {
		t.Errorf("next due = %v, want 2025-03-31", next)
	}
}

func TestTotalContractAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		periods  int32
		mode     AmountMode
		final    int64
		expected int64
		err      error
	}{
		{"fixed", 1000, 12, AmountModeFixed, 0, 12000, nil},
		{"custom", 1000, 12, AmountModeCustom, 1500, 12500, nil},
		{"custom single period", 1000, 1, AmountModeCustom, 1500, 1500, nil},
		{"fixed single period", 1000, 1, AmountModeFixed, 0, 1000, nil},
		{"zero periods", 1000, 0, AmountModeFixed, 0, 0, ErrLoanPeriodsInvalid},
		{"unknown mode", 1000, 3, AmountMode("balloon"), 0, 0, ErrLoanAmountModeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TotalContractAmount(decimal.NewFromInt(tt.amount), tt.periods, tt.mode, decimal.NewFromInt(tt.final))
			if err != tt.err {
				t.Fatalf("expected error %v, got %v", tt.err, err)
			}
			if !got.Equal(decimal.NewFromInt(tt.expected)) {
				t.Errorf("got %s, want %d", got, tt.expected)
			}
		})
	}
}

func TestExpectedInstallmentAmount(t *testing.T) {
	loan := &Loan{
		Periods:                12,
		AmountMode:             AmountModeCustom,
		InstallmentAmount:      decimal.NewFromInt(1000),
		FinalInstallmentAmount: decimal.NewFromInt(1500),
	}
	if got := ExpectedInstallmentAmount(loan, 11); !got.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("installment 11 = %s, want 1000", got)
	}
	if got := ExpectedInstallmentAmount(loan, 12); !got.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("installment 12 = %s, want 1500", got)
	}

	loan.AmountMode = AmountModeFixed
	if got := ExpectedInstallmentAmount(loan, 12); !got.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("fixed installment 12 = %s, want 1000", got)
	}
}

func TestScheduleBoundaries(t *testing.T) {
	loan := &Loan{PeriodType: PeriodDaily, Periods: 30, ScheduleStart: day(2025, 1, 1)}

	got, err := ScheduleBoundaries(loan, day(2025, 1, 1), day(2025, 1, 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 boundaries, got %d", len(got))
	}
	for i, d := range got {
		if !d.Equal(day(2025, 1, 1+i)) {
			t.Errorf("boundary %d = %v", i, d)
		}
	}

	// past the last period nothing is returned
	got, _ = ScheduleBoundaries(loan, day(2025, 3, 1), day(2025, 3, 5))
	if len(got) != 0 {
		t.Errorf("expected no boundaries after the schedule ends, got %d", len(got))
	}

	weekly := &Loan{PeriodType: PeriodWeekly, Periods: 10, ScheduleStart: day(2025, 1, 1)}
	got, _ = ScheduleBoundaries(weekly, day(2025, 1, 2), day(2025, 1, 7))
	if len(got) != 0 {
		t.Errorf("expected no weekly boundary between two due dates, got %d", len(got))
	}
}

func ptr(t time.Time) *time.Time {
	return &t
}
