package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Connect opens the database and applies the gateway's own migrations.
// Tables owned by other services (user_db, matches, travel_groups...) are
// only read.
func Connect(ctx context.Context, dsn string, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations applied", zap.Int("statements", len(migrations)))
	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS messages (
            message_id SERIAL PRIMARY KEY,
            sender_id INT NOT NULL,
            receiver_id INT NOT NULL,
            content TEXT NOT NULL,
            message_type VARCHAR(16) NOT NULL DEFAULT 'text',
            sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            status VARCHAR(16) NOT NULL DEFAULT 'sent'
        );`,
	`CREATE INDEX IF NOT EXISTS messages_pair_sent_at_idx
            ON messages (LEAST(sender_id, receiver_id), GREATEST(sender_id, receiver_id), sent_at DESC);`,
	`CREATE INDEX IF NOT EXISTS messages_receiver_status_idx ON messages (receiver_id, status);`,
	`CREATE TABLE IF NOT EXISTS travel_group_messages (
            message_id SERIAL PRIMARY KEY,
            group_id INT NOT NULL,
            sender_id INT NOT NULL,
            content TEXT NOT NULL,
            message_type VARCHAR(16) NOT NULL DEFAULT 'text',
            sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            status VARCHAR(16) NOT NULL DEFAULT 'sent'
        );`,
	`CREATE INDEX IF NOT EXISTS travel_group_messages_group_sent_at_idx
            ON travel_group_messages (group_id, sent_at DESC);`,
}

func migrate(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
