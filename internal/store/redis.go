package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/helixchat/citations/internal/citations"
	"github.com/helixchat/citations/internal/metrics"
)

// RedisConfig holds Redis store settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL bounds how long attachments stay resolvable. Zero keeps them
	// until evicted.
	TTL time.Duration
}

// RedisStore keeps attachment sets as JSON values keyed per message, with a
// per-conversation set indexing the message ids.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger.Info("Redis attachment store initialized", zap.String("addr", cfg.Addr))
	return &RedisStore{client: client, ttl: cfg.TTL, logger: logger}, nil
}

// NewRedisStoreWithClient wraps an existing client; used by tests and by
// callers sharing a connection pool.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, logger: logger}
}

func attachmentKey(conversationID, messageID string) string {
	return fmt.Sprintf("citations:att:%s:%s", conversationID, messageID)
}

func conversationKey(conversationID string) string {
	return fmt.Sprintf("citations:conv:%s", conversationID)
}

// SaveAttachments stores the attachment set for one message.
func (s *RedisStore) SaveAttachments(ctx context.Context, conversationID, messageID string, atts []citations.Attachment) error {
	data, err := json.Marshal(atts)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("redis", "save").Inc()
		return fmt.Errorf("marshal attachments: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, attachmentKey(conversationID, messageID), data, s.ttl)
	pipe.SAdd(ctx, conversationKey(conversationID), messageID)
	if s.ttl > 0 {
		pipe.Expire(ctx, conversationKey(conversationID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.StoreErrors.WithLabelValues("redis", "save").Inc()
		return fmt.Errorf("save attachments: %w", err)
	}

	metrics.AttachmentsSaved.WithLabelValues("redis").Add(float64(len(atts)))
	s.logger.Debug("Saved attachments",
		zap.String("conversation_id", conversationID),
		zap.String("message_id", messageID),
		zap.Int("groups", len(atts)),
	)
	return nil
}

// LoadAttachments returns the attachment set for one message.
func (s *RedisStore) LoadAttachments(ctx context.Context, conversationID, messageID string) ([]citations.Attachment, error) {
	data, err := s.client.Get(ctx, attachmentKey(conversationID, messageID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.StoreErrors.WithLabelValues("redis", "load").Inc()
		return nil, fmt.Errorf("load attachments: %w", err)
	}

	var atts []citations.Attachment
	if err := json.Unmarshal(data, &atts); err != nil {
		metrics.StoreErrors.WithLabelValues("redis", "load").Inc()
		return nil, fmt.Errorf("unmarshal attachments: %w", err)
	}
	return atts, nil
}

// ListByConversation collects attachments across every message of a
// conversation. Expired message entries are skipped.
func (s *RedisStore) ListByConversation(ctx context.Context, conversationID string) ([]citations.Attachment, error) {
	messageIDs, err := s.client.SMembers(ctx, conversationKey(conversationID)).Result()
	if err != nil {
		metrics.StoreErrors.WithLabelValues("redis", "list").Inc()
		return nil, fmt.Errorf("list conversation messages: %w", err)
	}
	sort.Strings(messageIDs)

	var all []citations.Attachment
	for _, messageID := range messageIDs {
		atts, err := s.LoadAttachments(ctx, conversationID, messageID)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		// Stored JSON keeps accumulator insertion order; the interface
		// promises turn then source key within each message.
		sort.Slice(atts, func(i, j int) bool {
			if atts[i].Turn != atts[j].Turn {
				return atts[i].Turn < atts[j].Turn
			}
			return atts[i].SourceKey < atts[j].SourceKey
		})
		all = append(all, atts...)
	}
	return all, nil
}

// Close shuts the Redis client down.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
