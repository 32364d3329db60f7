package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/yourorg/payment-adapter/internal/schema"
)

const (
	txnKeyPrefix   = "txn:"
	gwTxnKeyPrefix = "gwtxn:"
	txnOrderKey    = "txn:by-created"
)

// RedisStore persists transactions in Redis. Records live under txn:<id>,
// the gateway-transaction-ID index under gwtxn:<id>, and txn:by-created is a
// ZSET scored by creation time for newest-first listing.
type RedisStore struct {
	cache *redis.Client
}

func NewRedisStore(cache *redis.Client) *RedisStore {
	return &RedisStore{cache: cache}
}

func (s *RedisStore) Create(ctx context.Context, txn *Transaction) error {
	now := time.Now().UTC()
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = now
	}
	txn.UpdatedAt = now

	payload, err := sonic.ConfigFastest.Marshal(txn)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}

	pipe := s.cache.TxPipeline()
	pipe.Set(ctx, txnKeyPrefix+txn.TransactionID, payload, 0)
	pipe.ZAdd(ctx, txnOrderKey, redis.Z{
		Score:  float64(txn.CreatedAt.UnixNano()),
		Member: txn.TransactionID,
	})
	if txn.GatewayTransactionID != "" {
		pipe.Set(ctx, gwTxnKeyPrefix+txn.GatewayTransactionID, txn.TransactionID, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store transaction: %w", err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, txn *Transaction) error {
	exists, err := s.cache.Exists(ctx, txnKeyPrefix+txn.TransactionID).Result()
	if err != nil {
		return fmt.Errorf("check transaction: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	txn.UpdatedAt = time.Now().UTC()

	payload, err := sonic.ConfigFastest.Marshal(txn)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}

	pipe := s.cache.TxPipeline()
	pipe.Set(ctx, txnKeyPrefix+txn.TransactionID, payload, 0)
	if txn.GatewayTransactionID != "" {
		pipe.Set(ctx, gwTxnKeyPrefix+txn.GatewayTransactionID, txn.TransactionID, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store transaction: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, transactionID string) (*Transaction, error) {
	data, err := s.cache.Get(ctx, txnKeyPrefix+transactionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch transaction: %w", err)
	}

	var txn Transaction
	if err := sonic.ConfigFastest.Unmarshal(data, &txn); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}
	return &txn, nil
}

func (s *RedisStore) GetByGatewayTransactionID(ctx context.Context, gatewayTransactionID string) (*Transaction, error) {
	id, err := s.cache.Get(ctx, gwTxnKeyPrefix+gatewayTransactionID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve gateway transaction: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *RedisStore) List(ctx context.Context, filter ListFilter) ([]*Transaction, error) {
	ids, err := s.cache.ZRevRange(ctx, txnOrderKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	out := make([]*Transaction, 0, len(ids))
	for _, id := range ids {
		txn, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if filter.Gateway != schema.Gateway("") && txn.Gateway != filter.Gateway {
			continue
		}
		if filter.Status != schema.PaymentStatus("") && txn.Status != filter.Status {
			continue
		}
		out = append(out, txn)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}
