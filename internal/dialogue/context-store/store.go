// internal/dialogue/context-store/store.go
package contextstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"shop-assistant/internal/common/logger"
	"shop-assistant/internal/models"
)

const keyPrefix = "dialogue:ctx:"

// Store holds per-conversation dialogue context. Get is idempotent and
// never errors on a missing conversation: it hands back a fresh NONE-state
// context instead. Save is last-write-wins; a conversation has a single
// writer per turn, enforced by the orchestrator, so no optimistic
// concurrency is needed.
type Store interface {
	Get(ctx context.Context, conversationID string) (*models.ConversationContext, error)
	Save(ctx context.Context, c *models.ConversationContext) error
	Expire(ctx context.Context, conversationID string) error
}

// RedisStore keeps contexts in Redis with a TTL equal to the idle-expiry
// window. Every Save refreshes the TTL, so expiry means "no turn arrived
// within the window" and cannot race a turn that has already started.
type RedisStore struct {
	client     *redis.Client
	idleExpiry time.Duration
	logger     logger.Logger
}

func NewRedisStore(client *redis.Client, idleExpiry time.Duration, log logger.Logger) *RedisStore {
	return &RedisStore{
		client:     client,
		idleExpiry: idleExpiry,
		logger:     log.WithFields(map[string]interface{}{"component": "context-store"}),
	}
}

func (s *RedisStore) Get(ctx context.Context, conversationID string) (*models.ConversationContext, error) {
	val, err := s.client.Get(ctx, keyPrefix+conversationID).Result()
	if errors.Is(err, redis.Nil) {
		return models.NewConversationContext(conversationID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("context get: %w", err)
	}

	var c models.ConversationContext
	if err := json.Unmarshal([]byte(val), &c); err != nil {
		// A corrupted record must not poison the conversation forever.
		s.logger.Warn("discarding undecodable context", map[string]interface{}{
			"conversationId": conversationID,
			"error":          err.Error(),
		})
		return models.NewConversationContext(conversationID), nil
	}
	if c.Slots == nil {
		c.Slots = map[string]string{}
	}
	return &c, nil
}

func (s *RedisStore) Save(ctx context.Context, c *models.ConversationContext) error {
	c.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("context encode: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+c.ConversationID, data, s.idleExpiry).Err(); err != nil {
		return fmt.Errorf("context save: %w", err)
	}
	return nil
}

func (s *RedisStore) Expire(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, keyPrefix+conversationID).Err(); err != nil {
		return fmt.Errorf("context expire: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store for tests and Redis-less runs.
// Different keys never contend: the map mutex is held only for the copy.
type MemoryStore struct {
	mu         sync.RWMutex
	contexts   map[string]*models.ConversationContext
	idleExpiry time.Duration
}

func NewMemoryStore(idleExpiry time.Duration) *MemoryStore {
	return &MemoryStore{
		contexts:   make(map[string]*models.ConversationContext),
		idleExpiry: idleExpiry,
	}
}

func (s *MemoryStore) Get(_ context.Context, conversationID string) (*models.ConversationContext, error) {
	s.mu.RLock()
	c, ok := s.contexts[conversationID]
	s.mu.RUnlock()

	if !ok {
		return models.NewConversationContext(conversationID), nil
	}
	if s.idleExpiry > 0 && time.Since(c.UpdatedAt) > s.idleExpiry {
		return models.NewConversationContext(conversationID), nil
	}
	return c.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, c *models.ConversationContext) error {
	c.UpdatedAt = time.Now().UTC()
	s.mu.Lock()
	s.contexts[c.ConversationID] = c.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Expire(_ context.Context, conversationID string) error {
	s.mu.Lock()
	delete(s.contexts, conversationID)
	s.mu.Unlock()
	return nil
}
