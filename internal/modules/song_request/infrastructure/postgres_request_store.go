package infrastructure

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

// Compile-time check that PostgresRequestStore implements ports.RequestRecorder.
var _ ports.RequestRecorder = (*PostgresRequestStore)(nil)

type songRequestModel struct {
	bun.BaseModel `bun:"table:song_requests"`

	ID         int64     `bun:"id,pk,autoincrement"`
	Username   string    `bun:"username,notnull"`
	Label      string    `bun:"label,notnull"`
	ItemID     string    `bun:"item_id,notnull"`
	Kind       string    `bun:"kind,notnull"`
	AdmittedAt time.Time `bun:"admitted_at,notnull"`
}

// PostgresRequestStore keeps the request log in PostgreSQL.
type PostgresRequestStore struct {
	db *bun.DB
}

// NewPostgresRequestStore connects to dsn and creates the table if needed.
// Query logging is enabled when debug is true.
func NewPostgresRequestStore(ctx context.Context, dsn string, debug bool) (*PostgresRequestStore, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	sqldb.SetMaxOpenConns(10)
	sqldb.SetConnMaxIdleTime(time.Minute)

	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to request database: %w", err)
	}

	if _, err := db.NewCreateTable().
		Model((*songRequestModel)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create song_requests table: %w", err)
	}

	if _, err := db.NewCreateIndex().
		Model((*songRequestModel)(nil)).
		Index("song_requests_username_idx").
		Column("username").
		IfNotExists().
		Exec(ctx); err != nil {
		slog.Warn("failed to create song_requests index", "error", err)
	}

	return &PostgresRequestStore{db: db}, nil
}

func (s *PostgresRequestStore) Record(ctx context.Context, record domain.RequestRecord) error {
	row := &songRequestModel{
		Username:   record.Username,
		Label:      record.Label,
		ItemID:     record.ItemID,
		Kind:       record.Kind,
		AdmittedAt: record.AdmittedAt.UTC(),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

func (s *PostgresRequestStore) UserStats(ctx context.Context, username string, limit int) (domain.UserStats, error) {
	stats := domain.UserStats{Username: username}

	total, err := s.db.NewSelect().
		Model((*songRequestModel)(nil)).
		Where("username = ?", username).
		Count(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to count requests: %w", err)
	}
	stats.Total = total
	if total == 0 || limit <= 0 {
		return stats, nil
	}

	var rows []songRequestModel
	if err := s.db.NewSelect().
		Model(&rows).
		Column("label").
		Where("username = ?", username).
		Order("id DESC").
		Limit(limit).
		Scan(ctx); err != nil {
		return stats, fmt.Errorf("failed to query recent requests: %w", err)
	}

	slices.Reverse(rows)
	for _, row := range rows {
		stats.Recent = append(stats.Recent, row.Label)
	}

	return stats, nil
}

// Close closes the connection pool.
func (s *PostgresRequestStore) Close() error {
	return s.db.Close()
}
