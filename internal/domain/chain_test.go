package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainIDFor_Deterministic(t *testing.T) {
	a := ChainIDFor(7, day(2025, 2, 15), 2)
	b := ChainIDFor(7, day(2025, 2, 15), 2)
	assert.Equal(t, a, b)
	assert.Equal(t, uuid.Version(5), a.Version())

	assert.NotEqual(t, a, ChainIDFor(8, day(2025, 2, 15), 2))
	assert.NotEqual(t, a, ChainIDFor(7, day(2025, 2, 16), 2))
	assert.NotEqual(t, a, ChainIDFor(7, day(2025, 2, 15), 3))
}

func TestNewChainRef(t *testing.T) {
	loan := customMonthlyLoan()

	ref, err := NewChainRef(loan, 12)
	require.NoError(t, err)
	assert.Equal(t, int32(12), ref.InstallmentIndex)
	assert.Equal(t, day(2025, 12, 15), ref.DueDate)
	assert.True(t, ref.ExpectedAmount.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, ChainIDFor(loan.ID, ref.DueDate, 12), ref.ChainID)

	_, err = NewChainRef(loan, 0)
	assert.ErrorIs(t, err, ErrInstallmentIndexOutOfRange)
	_, err = NewChainRef(loan, 13)
	assert.ErrorIs(t, err, ErrInstallmentIndexOutOfRange)
}

func TestNewChain_OrdersMembersAndUsesAnchor(t *testing.T) {
	loan := fixedLoan(6, 500)
	ref, _ := NewChainRef(loan, 1)

	members := []*Payment{
		chained(9, 50, day(2025, 1, 14), PaymentStatusPaid, ref),
		chained(3, 200, day(2025, 1, 10), PaymentStatusPartial, ref),
		chained(5, 250, day(2025, 1, 12), PaymentStatusPartial, ref),
	}

	chain, err := NewChain(members)
	require.NoError(t, err)
	assert.Equal(t, int32(3), chain.Anchor().ID)
	assert.Equal(t, []int32{3, 5, 9}, []int32{chain.Members[0].ID, chain.Members[1].ID, chain.Members[2].ID})
	assert.True(t, chain.Total().Equal(decimal.NewFromInt(500)))
	assert.True(t, chain.IsComplete())

	on, ok := chain.ResolvedOn()
	require.True(t, ok)
	assert.Equal(t, day(2025, 1, 14), on)
}

func TestNewChain_Empty(t *testing.T) {
	_, err := NewChain(nil)
	assert.ErrorIs(t, err, ErrChainNotFound)
}

func TestChain_IncompleteHasNoResolution(t *testing.T) {
	loan := fixedLoan(6, 500)
	ref, _ := NewChainRef(loan, 1)

	chain, err := NewChain([]*Payment{
		chained(1, 200, day(2025, 1, 10), PaymentStatusPartial, ref),
		chained(2, 250, day(2025, 1, 12), PaymentStatusPartial, ref),
	})
	require.NoError(t, err)
	assert.False(t, chain.IsComplete())
	_, ok := chain.ResolvedOn()
	assert.False(t, ok)
}

func TestGroupChains(t *testing.T) {
	loan := fixedLoan(6, 500)
	first, _ := NewChainRef(loan, 1)
	second, _ := NewChainRef(loan, 2)

	payments := []*Payment{
		chained(4, 100, day(2025, 2, 10), PaymentStatusPartial, second),
		paid(2, 500, day(2025, 1, 1)),
		chained(1, 100, day(2025, 1, 10), PaymentStatusPartial, first),
		chained(3, 400, day(2025, 1, 11), PaymentStatusPaid, first),
	}

	chains := GroupChains(payments)
	require.Len(t, chains, 2)
	assert.Equal(t, first.ChainID, chains[0].ID)
	assert.Len(t, chains[0].Members, 2)
	assert.Equal(t, second.ChainID, chains[1].ID)
	assert.Len(t, chains[1].Members, 1)
}

func TestOpenInstallmentRef(t *testing.T) {
	loan := fixedLoan(6, 500)
	first, _ := NewChainRef(loan, 1)
	second, _ := NewChainRef(loan, 2)
	third, _ := NewChainRef(loan, 3)

	tests := []struct {
		name     string
		payments []*Payment
		want     int32
		sameAs   *ChainRef
	}{
		{"empty ledger", nil, 1, nil},
		{"skips chain completed out of order", []*Payment{
			chained(1, 500, day(2025, 2, 10), PaymentStatusPartial, second),
		}, 1, nil},
		{"joins the lowest short chain", []*Payment{
			chained(1, 500, day(2025, 1, 10), PaymentStatusPartial, first),
			chained(2, 100, day(2025, 2, 10), PaymentStatusPartial, second),
			chained(3, 100, day(2025, 3, 10), PaymentStatusPartial, third),
		}, 2, second},
		{"unchained paid settles a chain-less installment", []*Payment{
			paid(1, 500, day(2025, 1, 15)),
		}, 2, nil},
		{"unchained paid does not settle a short chain", []*Payment{
			chained(1, 100, day(2025, 1, 10), PaymentStatusPartial, first),
			paid(2, 500, day(2025, 1, 15)),
		}, 1, first},
		{"unchained paid and completed chain", []*Payment{
			paid(1, 500, day(2025, 1, 15)),
			chained(2, 500, day(2025, 2, 10), PaymentStatusPartial, second),
		}, 3, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := OpenInstallmentRef(loan, tt.payments)
			require.NoError(t, err)
			require.NotNil(t, ref)
			assert.Equal(t, tt.want, ref.InstallmentIndex)
			if tt.sameAs != nil {
				assert.Equal(t, tt.sameAs.ChainID, ref.ChainID)
			} else {
				expected, err := NewChainRef(loan, tt.want)
				require.NoError(t, err)
				assert.Equal(t, expected.ChainID, ref.ChainID)
			}
		})
	}

	t.Run("settled loan", func(t *testing.T) {
		var payments []*Payment
		for i := int32(1); i <= loan.Periods; i++ {
			payments = append(payments, paid(i, 500, day(2025, 1, 15)))
		}
		ref, err := OpenInstallmentRef(loan, payments)
		require.NoError(t, err)
		assert.Nil(t, ref)
	})
}

func TestValidAmount(t *testing.T) {
	tests := []struct {
		amount string
		want   bool
	}{
		{"500", true},
		{"500.50", true},
		{"0.01", true},
		{"500.000", true},
		{"0", false},
		{"-1.00", false},
		{"0.004", false},
		{"12.345", false},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidAmount(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestPaymentValidate(t *testing.T) {
	valid := Payment{LoanID: 1, Amount: decimal.NewFromInt(10), PaymentDate: day(2025, 1, 1), Status: PaymentStatusPaid}
	assert.NoError(t, valid.Validate())

	zero := valid
	zero.Amount = decimal.Zero
	assert.ErrorIs(t, zero.Validate(), ErrPaymentAmountInvalid)

	negative := valid
	negative.Amount = decimal.NewFromInt(-5)
	assert.ErrorIs(t, negative.Validate(), ErrPaymentAmountInvalid)

	subCent := valid
	subCent.Amount = decimal.RequireFromString("0.004")
	assert.ErrorIs(t, subCent.Validate(), ErrPaymentAmountInvalid)

	status := valid
	status.Status = PaymentStatus("Refund")
	assert.ErrorIs(t, status.Validate(), ErrPaymentStatusInvalid)
}

func TestNewAuditEntry(t *testing.T) {
	before := paid(3, 100, day(2025, 1, 15))
	after := before.Clone()
	after.Amount = decimal.NewFromInt(90)
	after.Status = PaymentStatusPartial

	entry := NewAuditEntry(AuditPaymentEdited, "auth0|abc", before, after)
	assert.Equal(t, int32(3), entry.PaymentID)
	assert.Equal(t, int32(7), entry.LoanID)
	assert.True(t, entry.AmountBefore.Equal(decimal.NewFromInt(100)))
	assert.True(t, entry.AmountAfter.Equal(decimal.NewFromInt(90)))
	assert.Equal(t, PaymentStatusPaid, *entry.StatusBefore)
	assert.Equal(t, PaymentStatusPartial, *entry.StatusAfter)

	deleted := NewAuditEntry(AuditPaymentDeleted, "auth0|abc", before, nil)
	assert.Nil(t, deleted.AmountAfter)
	assert.Nil(t, deleted.StatusAfter)
}

func TestLoanValidate(t *testing.T) {
	loan := customMonthlyLoan()
	assert.NoError(t, loan.Validate())

	single := customMonthlyLoan()
	single.Periods = 1
	single.InstallmentAmount = decimal.Zero
	assert.NoError(t, single.Validate())

	noFinal := customMonthlyLoan()
	noFinal.FinalInstallmentAmount = decimal.Zero
	assert.ErrorIs(t, noFinal.Validate(), ErrLoanFinalInstallmentInvalid)

	badPeriod := customMonthlyLoan()
	badPeriod.PeriodType = "hourly"
	assert.ErrorIs(t, badPeriod.Validate(), ErrPeriodTypeInvalid)

	subCent := customMonthlyLoan()
	subCent.InstallmentAmount = decimal.RequireFromString("999.995")
	assert.ErrorIs(t, subCent.Validate(), ErrLoanInstallmentInvalid)

	noPeriods := customMonthlyLoan()
	noPeriods.Periods = 0
	assert.ErrorIs(t, noPeriods.Validate(), ErrLoanPeriodsInvalid)
}
