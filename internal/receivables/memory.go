package receivables

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-process RepositoryPort. A single RWMutex guards the
// whole aggregate, so a write and its debt recomputation are one critical
// section and readers always copy out a consistent view.
type MemoryStore struct {
	mu sync.RWMutex

	clients  map[int64]*Client
	accounts map[int64]*Account
	payments map[int64][]Payment

	movements    []PaymentApplied
	movementSeen map[string]bool

	// account IDs per client, in creation order
	byClient map[int64][]int64

	nextClientID  int64
	nextAccountID int64
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients:  make(map[int64]*Client),
		accounts: make(map[int64]*Account),
		payments: make(map[int64][]Payment),
		byClient: make(map[int64][]int64),

		movementSeen: make(map[string]bool),
	}
}

func (s *MemoryStore) CreateClient(_ context.Context, client Client) (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextClientID++
	client.ID = s.nextClientID
	s.clients[client.ID] = &client
	out := client
	return &out, nil
}

func (s *MemoryStore) UpdateClient(_ context.Context, id int64, now time.Time, fn func(*Client) error) (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := *current
	if err := fn(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = now
	next = RecomputeDebt(next, s.clientAccountsLocked(id), now)
	*current = next
	return &next, nil
}

func (s *MemoryStore) GetClientAccounts(_ context.Context, clientID int64) (*Client, []Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	out := *client
	return &out, s.clientAccountsLocked(clientID), nil
}

func (s *MemoryStore) CreateAccount(_ context.Context, account Account, now time.Time) (*Account, *Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, ok := s.clients[account.ClientID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	s.nextAccountID++
	account.ID = s.nextAccountID
	s.accounts[account.ID] = &account
	s.byClient[account.ClientID] = append(s.byClient[account.ClientID], account.ID)

	*client = RecomputeDebt(*client, s.clientAccountsLocked(client.ID), now)
	acctOut, clientOut := account, *client
	return &acctOut, &clientOut, nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id int64) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *acct
	return &out, nil
}

func (s *MemoryStore) ListAccounts(_ context.Context, filter AccountFilter) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if filter.ClientID != 0 {
		return s.clientAccountsLocked(filter.ClientID), nil
	}
	return s.allAccountsLocked(), nil
}

func (s *MemoryStore) ApplyPayment(_ context.Context, payment Payment, now time.Time) (*Account, *Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[payment.AccountID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	client, ok := s.clients[current.ClientID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	next := *current
	if err := next.ApplyPayment(payment.Amount, payment.Timestamp, now); err != nil {
		return nil, nil, err
	}
	next = next.Evaluate(now)
	*current = next
	s.payments[payment.AccountID] = append(s.payments[payment.AccountID], payment)

	*client = RecomputeDebt(*client, s.clientAccountsLocked(client.ID), now)
	clientOut := *client
	return &next, &clientOut, nil
}

func (s *MemoryStore) ListPayments(_ context.Context, accountID int64) ([]Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.accounts[accountID]; !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(s.payments[accountID]), nil
}

func (s *MemoryStore) Snapshot(_ context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, *c)
	}
	slices.SortFunc(clients, func(a, b Client) int { return cmp.Compare(a.ID, b.ID) })
	return Snapshot{Clients: clients, Accounts: s.allAccountsLocked()}, nil
}

func (s *MemoryStore) clientAccountsLocked(clientID int64) []Account {
	ids := s.byClient[clientID]
	out := make([]Account, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.accounts[id])
	}
	return out
}

func (s *MemoryStore) allAccountsLocked() []Account {
	out := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	slices.SortFunc(out, func(a, b Account) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// RecordMovement appends a payment event to the movements log. Replays of the
// same payment are ignored.
func (s *MemoryStore) RecordMovement(_ context.Context, event PaymentApplied) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.movementSeen[event.PaymentID] {
		return nil
	}
	s.movementSeen[event.PaymentID] = true
	s.movements = append(s.movements, event)
	return nil
}

// Movements returns the recorded movements in arrival order.
func (s *MemoryStore) Movements() []PaymentApplied {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.movements)
}
