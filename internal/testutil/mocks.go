package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dafibh/cicilan/cicilan-backend/internal/domain"
	"github.com/dafibh/cicilan/cicilan-backend/internal/websocket"
	"github.com/google/uuid"
)

// MockLedgerStore is an in-memory domain.LedgerStore. A transaction holds the store
// mutex for its whole duration and restores a snapshot when it fails.
type MockLedgerStore struct {
	mu sync.Mutex

	Loans    map[int32]*domain.Loan
	Payments map[int32]*domain.Payment
	Audit    []*domain.AuditEntry

	NextLoanID    int32
	NextPaymentID int32
	NextAuditID   int32

	// TxCount counts WithinTx attempts, including failed ones
	TxCount int

	WithinTxFn      func(ctx context.Context, fn func(tx domain.LedgerTx) error) error
	CreatePaymentFn func(payment *domain.Payment) (*domain.Payment, error)
	UpdateLoanFn    func(loan *domain.Loan) error
	ListOpenFn      func() ([]*domain.Loan, error)
}

// NewMockLedgerStore creates a new MockLedgerStore
func NewMockLedgerStore() *MockLedgerStore {
	return &MockLedgerStore{
		Loans:         make(map[int32]*domain.Loan),
		Payments:      make(map[int32]*domain.Payment),
		NextLoanID:    1,
		NextPaymentID: 1,
		NextAuditID:   1,
	}
}

// AddLoan stores a loan as-is, assigning an ID when it has none
func (m *MockLedgerStore) AddLoan(loan *domain.Loan) *domain.Loan {
	m.mu.Lock()
	defer m.mu.Unlock()
	if loan.ID == 0 {
		loan.ID = m.NextLoanID
	}
	if loan.ID >= m.NextLoanID {
		m.NextLoanID = loan.ID + 1
	}
	stored := *loan
	m.Loans[loan.ID] = &stored
	return loan
}

// AddPayment stores a payment as-is, assigning an ID when it has none
func (m *MockLedgerStore) AddPayment(payment *domain.Payment) *domain.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if payment.ID == 0 {
		payment.ID = m.NextPaymentID
	}
	if payment.ID >= m.NextPaymentID {
		m.NextPaymentID = payment.ID + 1
	}
	m.Payments[payment.ID] = payment.Clone()
	return payment
}

// Loan returns a copy of the stored loan
func (m *MockLedgerStore) Loan(id int32) *domain.Loan {
	m.mu.Lock()
	defer m.mu.Unlock()
	loan, ok := m.Loans[id]
	if !ok {
		return nil
	}
	c := *loan
	return &c
}

// Create creates a new loan
func (m *MockLedgerStore) Create(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loan.ID = m.NextLoanID
	m.NextLoanID++
	loan.CreatedAt = time.Now()
	loan.UpdatedAt = time.Now()
	stored := *loan
	m.Loans[loan.ID] = &stored
	return loan, nil
}

// GetByID retrieves a loan by ID within a workspace
func (m *MockLedgerStore) GetByID(ctx context.Context, workspaceID int32, id int32) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLoan(workspaceID, id)
}

// ListOpen returns every active or overdue loan
func (m *MockLedgerStore) ListOpen(ctx context.Context) ([]*domain.Loan, error) {
	if m.ListOpenFn != nil {
		return m.ListOpenFn()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var loans []*domain.Loan
	for _, l := range m.Loans {
		if l.Status.IsOpen() {
			c := *l
			loans = append(loans, &c)
		}
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].ID < loans[j].ID })
	return loans, nil
}

// ListPayments returns a loan's payments in insertion order
func (m *MockLedgerStore) ListPayments(ctx context.Context, workspaceID, loanID int32) ([]*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.getLoan(workspaceID, loanID); err != nil {
		return nil, err
	}
	return m.paymentsOf(loanID), nil
}

// GetChain returns a chain's members in insertion order
func (m *MockLedgerStore) GetChain(ctx context.Context, workspaceID int32, chainID uuid.UUID) ([]*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chainOf(workspaceID, chainID), nil
}

// ListAudit returns a loan's audit trail, oldest first
func (m *MockLedgerStore) ListAudit(ctx context.Context, workspaceID, loanID int32) ([]*domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.getLoan(workspaceID, loanID); err != nil {
		return nil, err
	}
	var entries []*domain.AuditEntry
	for _, e := range m.Audit {
		if e.LoanID == loanID {
			c := *e
			entries = append(entries, &c)
		}
	}
	return entries, nil
}

// WithinTx runs fn while holding the store lock, rolling back on error
func (m *MockLedgerStore) WithinTx(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	m.mu.Lock()
	m.TxCount++
	override := m.WithinTxFn
	m.mu.Unlock()
	if override != nil {
		return override(ctx, fn)
	}
	return m.RunTx(ctx, fn)
}

// RunTx is the default WithinTx behaviour, exposed so WithinTxFn overrides can fall back to it
func (m *MockLedgerStore) RunTx(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&mockLedgerTx{store: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type storeSnapshot struct {
	loans         map[int32]*domain.Loan
	payments      map[int32]*domain.Payment
	audit         []*domain.AuditEntry
	nextPaymentID int32
	nextAuditID   int32
}

func (m *MockLedgerStore) snapshot() storeSnapshot {
	s := storeSnapshot{
		loans:         make(map[int32]*domain.Loan, len(m.Loans)),
		payments:      make(map[int32]*domain.Payment, len(m.Payments)),
		audit:         append([]*domain.AuditEntry(nil), m.Audit...),
		nextPaymentID: m.NextPaymentID,
		nextAuditID:   m.NextAuditID,
	}
	for id, l := range m.Loans {
		c := *l
		s.loans[id] = &c
	}
	for id, p := range m.Payments {
		s.payments[id] = p.Clone()
	}
	return s
}

func (m *MockLedgerStore) restore(s storeSnapshot) {
	m.Loans = s.loans
	m.Payments = s.payments
	m.Audit = s.audit
	m.NextPaymentID = s.nextPaymentID
	m.NextAuditID = s.nextAuditID
}

func (m *MockLedgerStore) getLoan(workspaceID, id int32) (*domain.Loan, error) {
	loan, ok := m.Loans[id]
	if !ok || loan.WorkspaceID != workspaceID {
		return nil, domain.ErrLoanNotFound
	}
	c := *loan
	return &c, nil
}

func (m *MockLedgerStore) paymentsOf(loanID int32) []*domain.Payment {
	var payments []*domain.Payment
	for _, p := range m.Payments {
		if p.LoanID == loanID {
			payments = append(payments, p.Clone())
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].ID < payments[j].ID })
	return payments
}

func (m *MockLedgerStore) chainOf(workspaceID int32, chainID uuid.UUID) []*domain.Payment {
	var members []*domain.Payment
	for _, p := range m.Payments {
		if !p.IsChained() || p.Chain.ChainID != chainID {
			continue
		}
		if loan, ok := m.Loans[p.LoanID]; !ok || loan.WorkspaceID != workspaceID {
			continue
		}
		members = append(members, p.Clone())
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members
}

// mockLedgerTx runs with the store mutex already held
type mockLedgerTx struct {
	store *MockLedgerStore
}

func (t *mockLedgerTx) LockLoan(ctx context.Context, workspaceID, loanID int32) (*domain.Loan, error) {
	return t.store.getLoan(workspaceID, loanID)
}

func (t *mockLedgerTx) UpdateLoanAggregates(ctx context.Context, loan *domain.Loan) error {
	if t.store.UpdateLoanFn != nil {
		if err := t.store.UpdateLoanFn(loan); err != nil {
			return err
		}
	}
	if _, ok := t.store.Loans[loan.ID]; !ok {
		return domain.ErrLoanNotFound
	}
	loan.UpdatedAt = time.Now()
	stored := *loan
	t.store.Loans[loan.ID] = &stored
	return nil
}

func (t *mockLedgerTx) ListPayments(ctx context.Context, loanID int32) ([]*domain.Payment, error) {
	return t.store.paymentsOf(loanID), nil
}

func (t *mockLedgerTx) GetPayment(ctx context.Context, workspaceID, paymentID int32) (*domain.Payment, error) {
	p, ok := t.store.Payments[paymentID]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	if loan, ok := t.store.Loans[p.LoanID]; !ok || loan.WorkspaceID != workspaceID {
		return nil, domain.ErrPaymentNotFound
	}
	return p.Clone(), nil
}

func (t *mockLedgerTx) ListChain(ctx context.Context, workspaceID int32, chainID uuid.UUID) ([]*domain.Payment, error) {
	return t.store.chainOf(workspaceID, chainID), nil
}

func (t *mockLedgerTx) CreatePayment(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	if t.store.CreatePaymentFn != nil {
		if _, err := t.store.CreatePaymentFn(payment); err != nil {
			return nil, err
		}
	}
	payment.ID = t.store.NextPaymentID
	t.store.NextPaymentID++
	payment.CreatedAt = time.Now()
	payment.UpdatedAt = payment.CreatedAt
	t.store.Payments[payment.ID] = payment.Clone()
	return payment, nil
}

func (t *mockLedgerTx) UpdatePayment(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	if _, ok := t.store.Payments[payment.ID]; !ok {
		return nil, domain.ErrPaymentNotFound
	}
	payment.UpdatedAt = time.Now()
	t.store.Payments[payment.ID] = payment.Clone()
	return payment, nil
}

func (t *mockLedgerTx) DeletePayments(ctx context.Context, paymentIDs []int32) (int, error) {
	deleted := 0
	for _, id := range paymentIDs {
		if _, ok := t.store.Payments[id]; ok {
			delete(t.store.Payments, id)
			deleted++
		}
	}
	return deleted, nil
}

func (t *mockLedgerTx) CreateAuditEntry(ctx context.Context, entry *domain.AuditEntry) error {
	entry.ID = t.store.NextAuditID
	t.store.NextAuditID++
	entry.CreatedAt = time.Now()
	c := *entry
	t.store.Audit = append(t.store.Audit, &c)
	return nil
}

// MockAggregateCache is an in-memory domain.AggregateCache
type MockAggregateCache struct {
	mu          sync.Mutex
	Summaries   map[int32]*domain.LoanSummary
	Invalidated []int32
	GetFn       func(loanID int32) (*domain.LoanSummary, error)
	SetFn       func(summary *domain.LoanSummary) error
}

// NewMockAggregateCache creates a new MockAggregateCache
func NewMockAggregateCache() *MockAggregateCache {
	return &MockAggregateCache{Summaries: make(map[int32]*domain.LoanSummary)}
}

// Get returns the cached summary or nil on a miss
func (m *MockAggregateCache) Get(ctx context.Context, loanID int32) (*domain.LoanSummary, error) {
	if m.GetFn != nil {
		return m.GetFn(loanID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Summaries[loanID], nil
}

// Set stores a summary
func (m *MockAggregateCache) Set(ctx context.Context, summary *domain.LoanSummary) error {
	if m.SetFn != nil {
		return m.SetFn(summary)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Summaries[summary.LoanID] = summary
	return nil
}

// Invalidate drops a cached summary
func (m *MockAggregateCache) Invalidate(ctx context.Context, loanID int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Summaries, loanID)
	m.Invalidated = append(m.Invalidated, loanID)
	return nil
}

// MockClosureArchive is an in-memory domain.ClosureArchive
type MockClosureArchive struct {
	mu       sync.Mutex
	Objects  map[string][]byte
	UploadFn func(objectPath string, body []byte) (string, error)
}

// NewMockClosureArchive creates a new MockClosureArchive
func NewMockClosureArchive() *MockClosureArchive {
	return &MockClosureArchive{Objects: make(map[string][]byte)}
}

// Upload stores the object body
func (m *MockClosureArchive) Upload(ctx context.Context, objectPath string, body []byte, contentType string) (string, error) {
	if m.UploadFn != nil {
		return m.UploadFn(objectPath, body)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[objectPath] = append([]byte(nil), body...)
	return objectPath, nil
}

// GeneratePresignedURL returns a fake URL for stored objects
func (m *MockClosureArchive) GeneratePresignedURL(ctx context.Context, objectPath string, expiry time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Objects[objectPath]; !ok {
		return "", domain.ErrNotFound
	}
	return "https://archive.test/" + objectPath + "?expires=" + expiry.String(), nil
}

// Object returns a stored object body
func (m *MockClosureArchive) Object(objectPath string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.Objects[objectPath]
	return b, ok
}

// MockEventPublisher records published change feed events
type MockEventPublisher struct {
	mu     sync.Mutex
	Events []PublishedEvent
}

// PublishedEvent is one recorded Publish call
type PublishedEvent struct {
	WorkspaceID int32
	Event       websocket.Event
}

var _ websocket.EventPublisher = (*MockEventPublisher)(nil)

// NewMockEventPublisher creates a new MockEventPublisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

// Publish records the event
func (m *MockEventPublisher) Publish(workspaceID int32, event websocket.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, PublishedEvent{WorkspaceID: workspaceID, Event: event})
}

// Types returns the recorded event types in publish order
func (m *MockEventPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, len(m.Events))
	for i, e := range m.Events {
		types[i] = e.Event.Type
	}
	return types
}
