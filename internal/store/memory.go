package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps transactions in process memory. It backs tests and
// single-instance deployments without Redis.
type MemoryStore struct {
	mu      sync.RWMutex
	txns    map[string]*Transaction
	byGwTxn map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		txns:    make(map[string]*Transaction),
		byGwTxn: make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, txn *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = now
	}
	txn.UpdatedAt = now

	cp := *txn
	s.txns[txn.TransactionID] = &cp
	if txn.GatewayTransactionID != "" {
		s.byGwTxn[txn.GatewayTransactionID] = txn.TransactionID
	}
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, txn *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.txns[txn.TransactionID]; !ok {
		return ErrNotFound
	}
	txn.UpdatedAt = time.Now().UTC()

	cp := *txn
	s.txns[txn.TransactionID] = &cp
	if txn.GatewayTransactionID != "" {
		s.byGwTxn[txn.GatewayTransactionID] = txn.TransactionID
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, transactionID string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn, ok := s.txns[transactionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *txn
	return &cp, nil
}

func (s *MemoryStore) GetByGatewayTransactionID(ctx context.Context, gatewayTransactionID string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byGwTxn[gatewayTransactionID]
	if !ok {
		return nil, ErrNotFound
	}
	txn := s.txns[id]
	cp := *txn
	return &cp, nil
}

func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Transaction, 0, len(s.txns))
	for _, txn := range s.txns {
		if filter.Gateway != "" && txn.Gateway != filter.Gateway {
			continue
		}
		if filter.Status != "" && txn.Status != filter.Status {
			continue
		}
		cp := *txn
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].TransactionID > out[j].TransactionID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
