package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/helixchat/citations/internal/citations"
	"github.com/helixchat/citations/internal/metrics"
)

// PostgresConfig holds Postgres store settings.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// PostgresStore persists attachments as one JSONB row per citation group in
// the citation_attachments table.
type PostgresStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPostgresStore opens a pooled connection and verifies it.
func NewPostgresStore(cfg PostgresConfig, logger *zap.Logger) (*PostgresStore, error) {
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "require"
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("Postgres attachment store initialized",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
	)
	return &PostgresStore{db: db, logger: logger}, nil
}

// NewPostgresStoreWithDB wraps an existing connection; used by tests.
func NewPostgresStoreWithDB(db *sqlx.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// attachmentRow mirrors the citation_attachments table.
type attachmentRow struct {
	ConversationID string    `db:"conversation_id"`
	MessageID      string    `db:"message_id"`
	Turn           int       `db:"turn"`
	SourceKey      string    `db:"source_key"`
	Payload        []byte    `db:"payload"`
	CreatedAt      time.Time `db:"created_at"`
}

// SaveAttachments replaces the attachment set for one message inside a
// transaction: previous rows are deleted, then one row inserted per group.
func (s *PostgresStore) SaveAttachments(ctx context.Context, conversationID, messageID string, atts []citations.Attachment) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("postgres", "save").Inc()
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM citation_attachments WHERE conversation_id = $1 AND message_id = $2`,
		conversationID, messageID,
	); err != nil {
		tx.Rollback()
		metrics.StoreErrors.WithLabelValues("postgres", "save").Inc()
		return fmt.Errorf("delete previous attachments: %w", err)
	}

	for _, att := range atts {
		payload, err := json.Marshal(att)
		if err != nil {
			tx.Rollback()
			metrics.StoreErrors.WithLabelValues("postgres", "save").Inc()
			return fmt.Errorf("marshal attachment: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO citation_attachments (conversation_id, message_id, turn, source_key, payload)
			 VALUES ($1, $2, $3, $4, $5)`,
			conversationID, messageID, att.Turn, att.SourceKey, payload,
		); err != nil {
			tx.Rollback()
			metrics.StoreErrors.WithLabelValues("postgres", "save").Inc()
			return fmt.Errorf("insert attachment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.StoreErrors.WithLabelValues("postgres", "save").Inc()
		return fmt.Errorf("commit: %w", err)
	}

	metrics.AttachmentsSaved.WithLabelValues("postgres").Add(float64(len(atts)))
	s.logger.Debug("Saved attachments",
		zap.String("conversation_id", conversationID),
		zap.String("message_id", messageID),
		zap.Int("groups", len(atts)),
	)
	return nil
}

// LoadAttachments returns the attachment set for one message.
func (s *PostgresStore) LoadAttachments(ctx context.Context, conversationID, messageID string) ([]citations.Attachment, error) {
	rows := []attachmentRow{}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT conversation_id, message_id, turn, source_key, payload, created_at
		 FROM citation_attachments
		 WHERE conversation_id = $1 AND message_id = $2
		 ORDER BY turn, source_key`,
		conversationID, messageID,
	)
	if err != nil && err != sql.ErrNoRows {
		metrics.StoreErrors.WithLabelValues("postgres", "load").Inc()
		return nil, fmt.Errorf("load attachments: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return decodeRows(rows)
}

// ListByConversation returns every attachment stored for a conversation.
func (s *PostgresStore) ListByConversation(ctx context.Context, conversationID string) ([]citations.Attachment, error) {
	rows := []attachmentRow{}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT conversation_id, message_id, turn, source_key, payload, created_at
		 FROM citation_attachments
		 WHERE conversation_id = $1
		 ORDER BY message_id, turn, source_key`,
		conversationID,
	)
	if err != nil && err != sql.ErrNoRows {
		metrics.StoreErrors.WithLabelValues("postgres", "list").Inc()
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return decodeRows(rows)
}

func decodeRows(rows []attachmentRow) ([]citations.Attachment, error) {
	atts := make([]citations.Attachment, 0, len(rows))
	for _, row := range rows {
		var att citations.Attachment
		if err := json.Unmarshal(row.Payload, &att); err != nil {
			return nil, fmt.Errorf("unmarshal attachment payload: %w", err)
		}
		atts = append(atts, att)
	}
	return atts, nil
}

// Close shuts the connection pool down.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
