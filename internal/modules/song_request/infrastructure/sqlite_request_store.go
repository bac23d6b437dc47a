package infrastructure

import (
	"context"
	"fmt"
	"slices"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

// Compile-time check that SQLiteRequestStore implements ports.RequestRecorder.
var _ ports.RequestRecorder = (*SQLiteRequestStore)(nil)

var sqliteSchema = []string{
	`PRAGMA journal_mode = WAL;`,

	`CREATE TABLE IF NOT EXISTS song_requests (
id INTEGER PRIMARY KEY AUTOINCREMENT,
username TEXT NOT NULL,
label TEXT NOT NULL,
item_id TEXT NOT NULL,
kind TEXT NOT NULL,
admitted_at DATETIME NOT NULL);`,

	`CREATE INDEX IF NOT EXISTS song_requests_username_idx ON song_requests (username);`,
}

// SQLiteRequestStore keeps the request log in a SQLite database.
type SQLiteRequestStore struct {
	db *sqlx.DB
}

// NewSQLiteRequestStore opens filename and creates the schema if needed.
func NewSQLiteRequestStore(filename string) (*SQLiteRequestStore, error) {
	db, err := sqlx.Connect("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open request database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize request database schema: %w", err)
		}
	}

	return &SQLiteRequestStore{db: db}, nil
}

func (s *SQLiteRequestStore) Record(ctx context.Context, record domain.RequestRecord) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO song_requests (username, label, item_id, kind, admitted_at)
		VALUES (:username, :label, :item_id, :kind, :admitted_at)`,
		map[string]any{
			"username":    record.Username,
			"label":       record.Label,
			"item_id":     record.ItemID,
			"kind":        record.Kind,
			"admitted_at": record.AdmittedAt.UTC(),
		})
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

func (s *SQLiteRequestStore) UserStats(ctx context.Context, username string, limit int) (domain.UserStats, error) {
	stats := domain.UserStats{Username: username}

	if err := s.db.GetContext(ctx, &stats.Total,
		"SELECT COUNT(*) FROM song_requests WHERE username = ?", username); err != nil {
		return stats, fmt.Errorf("failed to count requests: %w", err)
	}
	if stats.Total == 0 || limit <= 0 {
		return stats, nil
	}

	var labels []string
	if err := s.db.SelectContext(ctx, &labels,
		"SELECT label FROM song_requests WHERE username = ? ORDER BY id DESC LIMIT ?", username, limit); err != nil {
		return stats, fmt.Errorf("failed to query recent requests: %w", err)
	}
	slices.Reverse(labels)
	stats.Recent = labels

	return stats, nil
}

// Close closes the database.
func (s *SQLiteRequestStore) Close() error {
	return s.db.Close()
}
