package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vimestats/internal/config"
	"github.com/vimestats/internal/domain"
)

// Repository stores quick-search lookup history in PostgreSQL
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS lookup_events (
			id BIGSERIAL PRIMARY KEY,
			session_id VARCHAR(64) NOT NULL,
			query VARCHAR(128) NOT NULL,
			username VARCHAR(64),
			found BOOLEAN NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lookup_events_username ON lookup_events(username) WHERE found`,
		`CREATE INDEX IF NOT EXISTS idx_lookup_events_session ON lookup_events(session_id, created_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// RecordLookup stores one quick-search lookup
func (r *Repository) RecordLookup(ctx context.Context, event domain.LookupEvent) error {
	query := `
		INSERT INTO lookup_events (session_id, query, username, found, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var username *string
	if event.Username != "" {
		username = &event.Username
	}

	_, err := r.pool.Exec(ctx, query,
		event.SessionID,
		truncate(event.Query, 128),
		username,
		event.Found,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("recording lookup: %w", err)
	}
	return nil
}

// PopularLookups returns the canonical usernames found most often, most
// looked-up first
func (r *Repository) PopularLookups(ctx context.Context, limit int) ([]domain.PopularLookup, error) {
	query := `
		SELECT username, COUNT(*) AS lookups
		FROM lookup_events
		WHERE found AND username IS NOT NULL
		GROUP BY username
		ORDER BY lookups DESC, username ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("getting popular lookups: %w", err)
	}

	lookups, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.PopularLookup, error) {
		var l domain.PopularLookup
		err := row.Scan(&l.Username, &l.Count)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning popular lookups: %w", err)
	}
	return lookups, nil
}

// PruneLookups deletes lookups recorded before cutoff and returns how many
// were removed
func (r *Repository) PruneLookups(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM lookup_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning lookups: %w", err)
	}
	return result.RowsAffected(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
