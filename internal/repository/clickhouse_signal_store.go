package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"SigRelay/internal/domain/models"
	pkgch "SigRelay/pkg/clickhouse"
	applogger "SigRelay/pkg/logger"
)

// CHSignalStore implements SignalArchive backed by ClickHouse. Every
// message that came off the channel is appended, parsed or not.
type CHSignalStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHSignalStore(ch *pkgch.Client) *CHSignalStore {
	return &CHSignalStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHSignalStore) SetLogger(l *applogger.Logger) { s.l = l }

// SchemaStatements returns the idempotent DDL for the archive table.
func SchemaStatements(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s.signals (
            received_at    DateTime64(3),
            channel_id     Int64,
            asset          String,
            direction      String,
            expiry_seconds Int32,
            raw            String
        ) ENGINE = MergeTree()
        ORDER BY (channel_id, received_at)
        `, database),
	}
}

func (s *CHSignalStore) Append(ctx context.Context, sig models.Signal) error {
	const q = `
        INSERT INTO signals (received_at, channel_id, asset, direction, expiry_seconds, raw)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, q,
		sig.ReceivedAt, sig.ChannelID, sig.Asset, string(sig.Direction), int32(sig.ExpirySeconds), sig.Raw)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse append signal error",
				applogger.Int64("channel_id", sig.ChannelID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("append signal: %w", err)
	}
	return nil
}

// Recent returns the newest limit rows, most recent first.
func (s *CHSignalStore) Recent(ctx context.Context, limit int) ([]models.Signal, error) {
	start := time.Now()
	const q = `
        SELECT received_at, channel_id, asset, direction, expiry_seconds, raw
        FROM signals
        ORDER BY received_at DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse recent signals query error", applogger.Error(err))
		}
		return nil, fmt.Errorf("recent signals: %w", err)
	}
	defer rows.Close()

	out := make([]models.Signal, 0, limit)
	for rows.Next() {
		var sig models.Signal
		var direction string
		var expiry int32
		if err := rows.Scan(&sig.ReceivedAt, &sig.ChannelID, &sig.Asset, &direction, &expiry, &sig.Raw); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Direction = models.Direction(direction)
		sig.ExpirySeconds = int(expiry)
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse recent signals ok",
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

// Close is a no-op; the shared client owns the pool.
func (s *CHSignalStore) Close() error { return nil }
