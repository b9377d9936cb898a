package playerstore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS player_progress (
  player TEXT NOT NULL,
  key    TEXT NOT NULL,
  value  TEXT NOT NULL,
  PRIMARY KEY (player, key)
)`

// SQLiteStore keeps the flat projection as (player, key, value) rows.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

// OpenSQLite opens the database at path and creates the table if needed.
func OpenSQLite(path string, log *zap.Logger) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, log: log}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, player uuid.UUID) (Record, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM player_progress WHERE player = ?`, player.String())
	if err != nil {
		return Record{}, false, fmt.Errorf("load player %s: %w", player, err)
	}
	defer rows.Close()

	flat := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Record{}, false, fmt.Errorf("scan player %s: %w", player, err)
		}
		flat[k] = v
	}
	if err := rows.Err(); err != nil {
		return Record{}, false, fmt.Errorf("load player %s: %w", player, err)
	}
	if len(flat) == 0 {
		return Record{}, false, nil
	}
	rec, skipped := Unflatten(player, flat)
	if len(skipped) > 0 {
		s.log.Warn("skipping malformed player fields",
			zap.Stringer("player", player), zap.Strings("keys", skipped))
	}
	return rec, true, nil
}

// Save replaces every listed player's rows in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, recs []Record) (err error) {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ins, err := tx.PrepareContext(ctx, `INSERT INTO player_progress (player, key, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()

	for _, rec := range recs {
		id := rec.Player.String()
		if _, err = tx.ExecContext(ctx, `DELETE FROM player_progress WHERE player = ?`, id); err != nil {
			return fmt.Errorf("clear player %s: %w", id, err)
		}
		for k, v := range Flatten(rec) {
			if _, err = ins.ExecContext(ctx, id, k, v); err != nil {
				return fmt.Errorf("save player %s: %w", id, err)
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
