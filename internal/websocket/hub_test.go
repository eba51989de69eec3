package websocket

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient captures sent messages
type mockClient struct {
	id          string
	workspaceID int32
	loanID      int32
	messages    [][]byte
	mu          sync.Mutex
	closed      bool
}

func newMockClient(id string, workspaceID int32) *mockClient {
	return &mockClient{id: id, workspaceID: workspaceID}
}

func (m *mockClient) ID() string         { return m.id }
func (m *mockClient) WorkspaceID() int32 { return m.workspaceID }

func (m *mockClient) Follows(loanID int32) bool {
	return m.loanID == 0 || m.loanID == loanID
}

func (m *mockClient) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClientClosed
	}
	m.messages = append(m.messages, data)
	return nil
}

func (m *mockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockClient) GetMessages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([][]byte, len(m.messages))
	copy(copied, m.messages)
	return copied
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()

	client1 := newMockClient("client-1", 1)
	client2 := newMockClient("client-2", 1)
	client3 := newMockClient("client-3", 2)

	hub.Register(client1)
	hub.Register(client2)
	hub.Register(client3)

	assert.Equal(t, 2, hub.ClientCount(1))
	assert.Equal(t, 1, hub.ClientCount(2))
	assert.Equal(t, 0, hub.ClientCount(999))
	assert.Equal(t, 3, hub.TotalClientCount())

	hub.Unregister(client1)
	assert.Equal(t, 1, hub.ClientCount(1))

	hub.Unregister(client2)
	hub.Unregister(client3)
	assert.Equal(t, 0, hub.TotalClientCount())
}

func TestHub_Broadcast_WorkspaceIsolation(t *testing.T) {
	hub := NewHub()

	client1a := newMockClient("client-1a", 1)
	client1b := newMockClient("client-1b", 1)
	client2 := newMockClient("client-2", 2)
	hub.Register(client1a)
	hub.Register(client1b)
	hub.Register(client2)

	hub.Broadcast(1, PaymentRecorded(10, map[string]interface{}{"id": float64(42)}))
	time.Sleep(10 * time.Millisecond)

	assert.Len(t, client1a.GetMessages(), 1)
	assert.Len(t, client1b.GetMessages(), 1)
	assert.Len(t, client2.GetMessages(), 0, "workspace 2 must not see workspace 1 events")
}

func TestHub_Broadcast_LoanFilter(t *testing.T) {
	hub := NewHub()

	all := newMockClient("all", 1)
	following := newMockClient("loan-10", 1)
	following.loanID = 10
	other := newMockClient("loan-11", 1)
	other.loanID = 11
	hub.Register(all)
	hub.Register(following)
	hub.Register(other)

	hub.Broadcast(1, LoanAggregatesChanged(10, nil))
	time.Sleep(10 * time.Millisecond)

	assert.Len(t, all.GetMessages(), 1)
	assert.Len(t, following.GetMessages(), 1)
	assert.Len(t, other.GetMessages(), 0)
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub()

	var wg sync.WaitGroup
	clientCount := 50

	clients := make([]*mockClient, clientCount)
	for i := 0; i < clientCount; i++ {
		clients[i] = newMockClient(fmt.Sprintf("client-%d", i), int32(i%5))
	}

	for i := 0; i < clientCount; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			hub.Register(clients[idx])
		}(i)
	}
	wg.Wait()
	assert.Equal(t, clientCount, hub.TotalClientCount())

	for i := 0; i < clientCount; i++ {
		wg.Add(2)
		go func(idx int) {
			defer wg.Done()
			hub.Broadcast(int32(idx%5), PaymentRecorded(int32(idx), nil))
		}(i)
		go func(idx int) {
			defer wg.Done()
			hub.Unregister(clients[idx])
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, hub.TotalClientCount())
}

func TestHub_UnregisterNonexistent(t *testing.T) {
	hub := NewHub()
	require.NotPanics(t, func() {
		hub.Unregister(newMockClient("client-1", 1))
	})
}

func TestHub_BroadcastToEmptyWorkspace(t *testing.T) {
	hub := NewHub()
	require.NotPanics(t, func() {
		hub.Broadcast(999, PaymentDeleted(1, nil))
	})
}

func TestClient_Subscription(t *testing.T) {
	c := &Client{id: "c1", workspaceID: 1}
	assert.True(t, c.Follows(10))

	c.applySubscription(SubscriptionMessage{Action: "follow", LoanID: 10})
	assert.True(t, c.Follows(10))
	assert.False(t, c.Follows(11))

	c.applySubscription(SubscriptionMessage{Action: "follow", LoanID: -1})
	assert.True(t, c.Follows(10), "invalid loan id keeps the previous filter")

	c.applySubscription(SubscriptionMessage{Action: "unfollow"})
	assert.True(t, c.Follows(11))
}
