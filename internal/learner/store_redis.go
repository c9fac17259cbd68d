package learner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-tutor/internal/platform/cache"
)

// RedisStore keeps learner state in Redis/Dragonfly: the history as a list of
// JSON interactions and the mastery snapshot as a JSON string. Both keys are
// refreshed to ttl on every write; a zero ttl keeps them forever.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed learner store. Keys are
// "<prefix>:<learner>:history" and "<prefix>:<learner>:mastery".
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if prefix == "" {
		prefix = "learner"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}, nil
}

func (s *RedisStore) historyKey(learnerID string) string {
	return cache.JoinKey(s.prefix, learnerID, "history")
}

func (s *RedisStore) masteryKey(learnerID string) string {
	return cache.JoinKey(s.prefix, learnerID, "mastery")
}

func (s *RedisStore) Load(ctx context.Context, learnerID string) (*State, error) {
	if learnerID == "" {
		return nil, fmt.Errorf("learner id is required")
	}

	st := NewState(learnerID)

	items, err := s.client.LRange(ctx, s.historyKey(learnerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	for _, item := range items {
		var in Interaction
		if err := json.Unmarshal([]byte(item), &in); err != nil {
			return nil, fmt.Errorf("decode interaction: %w", err)
		}
		st.History = append(st.History, in)
	}

	data, err := s.client.Get(ctx, s.masteryKey(learnerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read mastery: %w", err)
	}
	if err := json.Unmarshal(data, &st.Mastery); err != nil {
		return nil, fmt.Errorf("decode mastery: %w", err)
	}
	if st.Mastery == nil {
		st.Mastery = map[string]float64{}
	}
	return st, nil
}

func (s *RedisStore) AppendInteraction(ctx context.Context, learnerID string, in Interaction) error {
	if learnerID == "" {
		return fmt.Errorf("learner id is required")
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now()
	}
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal interaction: %w", err)
	}

	key := s.historyKey(learnerID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append interaction: %w", err)
	}
	return nil
}

func (s *RedisStore) SetMastery(ctx context.Context, learnerID string, mastery map[string]float64) error {
	if learnerID == "" {
		return fmt.Errorf("learner id is required")
	}
	if mastery == nil {
		mastery = map[string]float64{}
	}
	data, err := json.Marshal(mastery)
	if err != nil {
		return fmt.Errorf("marshal mastery: %w", err)
	}
	if err := s.client.Set(ctx, s.masteryKey(learnerID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set mastery: %w", err)
	}
	return nil
}
