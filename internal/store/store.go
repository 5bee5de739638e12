// Package store persists citation attachments once a response completes, so
// the conversation layer can re-resolve markers when a message is reopened or
// exported later. Two backends are provided: Redis for TTL-bound hot storage
// and Postgres for durable message history.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/helixchat/citations/internal/citations"
	"github.com/helixchat/citations/internal/config"
)

// ErrNotFound is returned when no attachments exist for a message.
var ErrNotFound = errors.New("store: attachments not found")

// AttachmentStore persists citation attachment groups per message.
type AttachmentStore interface {
	// SaveAttachments stores the attachment set for one message, replacing
	// any previous set for the same (conversation, message) pair.
	SaveAttachments(ctx context.Context, conversationID, messageID string, atts []citations.Attachment) error
	// LoadAttachments returns the attachment set for one message, or
	// ErrNotFound.
	LoadAttachments(ctx context.Context, conversationID, messageID string) ([]citations.Attachment, error)
	// ListByConversation returns every attachment stored for a conversation,
	// ordered by message then turn then source key.
	ListByConversation(ctx context.Context, conversationID string) ([]citations.Attachment, error)
	// Close releases the backend connection.
	Close() error
}

// New builds the configured backend. A "none" (or empty) backend returns a
// nil store; callers treat nil as persistence disabled.
func New(cfg config.StoreConfig, logger *zap.Logger) (AttachmentStore, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "redis":
		return NewRedisStore(RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		}, logger)
	case "postgres":
		return NewPostgresStore(PostgresConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
			SSLMode:  cfg.Postgres.SSLMode,
		}, logger)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}
