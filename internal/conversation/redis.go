package conversation

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"filter-agent/internal/common/errors"
	"filter-agent/internal/common/logger"
	"filter-agent/internal/common/metrics"
	"filter-agent/internal/models"
)

const (
	redisKeyPrefix = "conversation:"
	// updateRetries bounds optimistic transaction retries under contention.
	updateRetries = 5
)

// RedisStore persists conversation state as JSON under conversation:{id}
// with the idle timeout as key TTL, so abandoned conversations expire on
// their own. Updates run as optimistic WATCH transactions.
type RedisStore struct {
	client      *redis.Client
	idleTimeout time.Duration
	log         logger.Logger
}

func NewRedisStore(client *redis.Client, idleTimeout time.Duration, log logger.Logger) *RedisStore {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &RedisStore{client: client, idleTimeout: idleTimeout, log: log}
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.ConversationState, error) {
	raw, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewConversationStoreFailedError(err)
	}

	var state models.ConversationState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, errors.NewConversationStoreFailedError(err)
	}
	return &state, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, fn func(*models.ConversationState) error) (*models.ConversationState, error) {
	key := redisKey(id)
	var updated *models.ConversationState

	txn := func(tx *redis.Tx) error {
		state := &models.ConversationState{ConversationID: id}
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !stderrors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			if err := json.Unmarshal(raw, state); err != nil {
				return err
			}
		}

		if err := fn(state); err != nil {
			return err
		}
		state.Touch()

		encoded, err := json.Marshal(state)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.idleTimeout)
			return nil
		})
		if err != nil {
			return err
		}
		updated = state
		return nil
	}

	for attempt := 0; attempt < updateRetries; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return updated, nil
		}
		if stderrors.Is(err, redis.TxFailedErr) {
			continue
		}
		if _, ok := errors.AsStandard(err); ok {
			return nil, err
		}
		return nil, errors.NewConversationStoreFailedError(err)
	}

	return nil, errors.NewConversationStoreFailedError(
		fmt.Errorf("update of %s lost %d optimistic transactions", key, updateRetries))
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKey(id)).Err(); err != nil {
		return errors.NewConversationStoreFailedError(err)
	}
	return nil
}

// Cleanup removes idle conversations that outlived a TTL change. Under
// normal operation key expiry already handles this and the sweep finds
// nothing.
func (s *RedisStore) Cleanup(ctx context.Context) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.Get(ctx, key).Bytes()
		if stderrors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, errors.NewConversationStoreFailedError(err)
		}

		var state models.ConversationState
		if err := json.Unmarshal(raw, &state); err != nil || state.IsIdle(s.idleTimeout) {
			if delErr := s.client.Del(ctx, key).Err(); delErr != nil {
				return removed, errors.NewConversationStoreFailedError(delErr)
			}
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, errors.NewConversationStoreFailedError(err)
	}
	return removed, nil
}

func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{}
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Bytes()
		if stderrors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Stats{}, errors.NewConversationStoreFailedError(err)
		}

		var state models.ConversationState
		if err := json.Unmarshal(raw, &state); err != nil {
			continue
		}
		stats.ActiveConversations++
		stats.PendingClarifications += len(state.Pending)
	}
	if err := iter.Err(); err != nil {
		return Stats{}, errors.NewConversationStoreFailedError(err)
	}

	metrics.ConversationsActive.Set(float64(stats.ActiveConversations))
	return stats, nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (s *RedisStore) Close() error {
	return nil
}
