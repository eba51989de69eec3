package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/dafibh/cicilan/cicilan-backend/internal/util"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// chainNamespace scopes installment chain IDs. Changing it orphans every stored chain.
var chainNamespace = uuid.MustParse("6f1c2b8e-3d4a-5c6b-9e7f-0a1b2c3d4e5f")

// ChainIDFor derives the chain identifier of one installment. Two partial payments for
// the same installment get the same ID without looking anything up.
func ChainIDFor(loanID int32, dueDate time.Time, installmentIndex int32) uuid.UUID {
	key := fmt.Sprintf("%d|%s|%d", loanID, util.FormatDate(dueDate), installmentIndex)
	return uuid.NewSHA1(chainNamespace, []byte(key))
}

// NewChainRef builds the chain fields for installment index of the loan
func NewChainRef(loan *Loan, installmentIndex int32) (*ChainRef, error) {
	if installmentIndex < 1 || installmentIndex > loan.Periods {
		return nil, ErrInstallmentIndexOutOfRange
	}
	due, err := InstallmentDueDate(loan.ScheduleStart, loan.PeriodType, installmentIndex)
	if err != nil {
		return nil, err
	}
	return &ChainRef{
		ChainID:          ChainIDFor(loan.ID, due, installmentIndex),
		InstallmentIndex: installmentIndex,
		DueDate:          due,
		ExpectedAmount:   ExpectedInstallmentAmount(loan, installmentIndex),
	}, nil
}

// Chain is the set of payments contributing to one installment
type Chain struct {
	ID               uuid.UUID       `json:"chainId"`
	LoanID           int32           `json:"loanId"`
	InstallmentIndex int32           `json:"installmentIndex"`
	DueDate          time.Time       `json:"dueDate"`
	ExpectedAmount   decimal.Decimal `json:"expectedAmount"`
	Members          []*Payment      `json:"members"`
}

// NewChain builds a chain from its members. Members are ordered by insertion sequence and
// the first one (the anchor) carries the installment fields.
func NewChain(members []*Payment) (*Chain, error) {
	if len(members) == 0 {
		return nil, ErrChainNotFound
	}
	sorted := make([]*Payment, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	anchor := sorted[0]
	if !anchor.IsChained() {
		return nil, ErrChainNotFound
	}
	return &Chain{
		ID:               anchor.Chain.ChainID,
		LoanID:           anchor.LoanID,
		InstallmentIndex: anchor.Chain.InstallmentIndex,
		DueDate:          anchor.Chain.DueDate,
		ExpectedAmount:   anchor.Chain.ExpectedAmount,
		Members:          sorted,
	}, nil
}

// Anchor returns the first member of the chain
func (c *Chain) Anchor() *Payment {
	return c.Members[0]
}

// Total sums the member amounts
func (c *Chain) Total() decimal.Decimal {
	total := decimal.Zero
	for _, p := range c.Members {
		total = total.Add(p.Amount)
	}
	return total
}

// IsComplete reports whether the members cover the expected amount
func (c *Chain) IsComplete() bool {
	return c.Total().GreaterThanOrEqual(c.ExpectedAmount)
}

// ResolvedOn returns the payment date of the member whose amount first brought the
// running total to the expected amount.
func (c *Chain) ResolvedOn() (time.Time, bool) {
	running := decimal.Zero
	for _, p := range c.Members {
		running = running.Add(p.Amount)
		if running.GreaterThanOrEqual(c.ExpectedAmount) {
			return p.PaymentDate, true
		}
	}
	return time.Time{}, false
}

// GroupChains splits the chained payments of a ledger into chains, ordered by the ID of
// each chain's anchor. Unchained payments are ignored.
func GroupChains(payments []*Payment) []*Chain {
	byID := make(map[uuid.UUID][]*Payment)
	var order []uuid.UUID
	for _, p := range sortedByID(payments) {
		if !p.IsChained() {
			continue
		}
		id := p.Chain.ChainID
		if _, ok := byID[id]; !ok {
			order = append(order, id)
		}
		byID[id] = append(byID[id], p)
	}

	chains := make([]*Chain, 0, len(order))
	for _, id := range order {
		chain, err := NewChain(byID[id])
		if err != nil {
			continue
		}
		chains = append(chains, chain)
	}
	return chains
}

// OpenInstallmentRef returns the chain fields of the lowest installment still owed.
// Installments with a complete chain are settled. Unchained Paid and Advance payments
// settle the lowest installments that have no chain. An installment whose chain is
// short is returned with that chain's fields so the payment joins it. The result is
// nil when every installment is settled.
func OpenInstallmentRef(loan *Loan, payments []*Payment) (*ChainRef, error) {
	complete := make(map[int32]bool)
	open := make(map[int32]*Chain)
	for _, chain := range GroupChains(payments) {
		if chain.LoanID != loan.ID {
			continue
		}
		if chain.IsComplete() {
			complete[chain.InstallmentIndex] = true
		} else if _, ok := open[chain.InstallmentIndex]; !ok {
			open[chain.InstallmentIndex] = chain
		}
	}

	unchained := 0
	for _, p := range payments {
		if !p.IsChained() && p.Status.ResolvesInstallment() {
			unchained++
		}
	}

	for idx := int32(1); idx <= loan.Periods; idx++ {
		if complete[idx] {
			continue
		}
		if chain, ok := open[idx]; ok {
			ref := *chain.Anchor().Chain
			return &ref, nil
		}
		if unchained > 0 {
			unchained--
			continue
		}
		return NewChainRef(loan, idx)
	}
	return nil, nil
}

func sortedByID(payments []*Payment) []*Payment {
	sorted := make([]*Payment, len(payments))
	copy(sorted, payments)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted
}
