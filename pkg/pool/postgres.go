package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Fernandogf021207/Scr4per-sub000/pkg/config"
	apperrors "github.com/Fernandogf021207/Scr4per-sub000/pkg/errors"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/logger"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/models"
)

const accountColumns = "id, platform, credential, status, error_count, last_used_at, checked_out_at, notes, created_at, updated_at"

const accountSchema = `
CREATE TABLE IF NOT EXISTS scraper_accounts (
	id             UUID PRIMARY KEY,
	platform       TEXT NOT NULL,
	credential     TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'active',
	error_count    INT NOT NULL DEFAULT 0,
	last_used_at   TIMESTAMPTZ,
	checked_out_at TIMESTAMPTZ,
	notes          TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_scraper_accounts_platform_status ON scraper_accounts (platform, status);
`

// PostgresStore implements Store over Postgres. Row-level mutual exclusion
// for checkout relies on SELECT ... FOR UPDATE SKIP LOCKED, so competing
// checkouts skip contended rows instead of blocking on them.
type PostgresStore struct {
	db     *sqlx.DB
	logger logger.Logger
}

// Connect opens a Postgres connection pool from the database config
func Connect(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime.Std())
	return db, nil
}

// NewPostgresStore creates a Postgres-backed account store
func NewPostgresStore(db *sqlx.DB, log logger.Logger) *PostgresStore {
	if log == nil {
		log = logger.GetLogger()
	}
	return &PostgresStore{db: db, logger: log}
}

// EnsureSchema creates the accounts table if it does not exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, accountSchema); err != nil {
		return fmt.Errorf("failed to ensure account schema: %w", err)
	}
	return nil
}

// Acquire checks out the least-recently-used active account for a platform.
// The transaction commits before the account is returned, keeping the lock
// window minimal; release happens through a later Update.
func (s *PostgresStore) Acquire(ctx context.Context, platform string) (*models.ScraperAccount, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin checkout transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `
		SELECT ` + accountColumns + `
		FROM scraper_accounts
		WHERE platform = $1 AND status = 'active'
		ORDER BY last_used_at ASC NULLS FIRST
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`

	var account models.ScraperAccount
	if err := tx.GetContext(ctx, &account, query, platform); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrPoolExhausted
		}
		s.logger.WithError(err).WithField("platform", platform).Error("failed to select account for checkout")
		return nil, fmt.Errorf("failed to select account: %w", err)
	}

	now := time.Now().UTC()
	account.Status = models.AccountBusy
	account.LastUsedAt = &now
	account.CheckedOutAt = &now
	account.UpdatedAt = now

	update := `
		UPDATE scraper_accounts
		SET status = 'busy', last_used_at = $2, checked_out_at = $2, updated_at = $2
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update, account.ID, now); err != nil {
		s.logger.WithError(err).WithField("account_id", account.ID).Error("failed to mark account busy")
		return nil, fmt.Errorf("failed to mark account busy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit checkout: %w", err)
	}
	return &account, nil
}

// Get returns the account by id, or (nil, nil) when it does not exist
func (s *PostgresStore) Get(ctx context.Context, id string) (*models.ScraperAccount, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(accountColumns)
	sb.From("scraper_accounts")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var account models.ScraperAccount
	if err := s.db.GetContext(ctx, &account, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}
	return &account, nil
}

// Update persists the mutable account fields
func (s *PostgresStore) Update(ctx context.Context, account *models.ScraperAccount) error {
	account.UpdatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("scraper_accounts")
	sb.Set(
		sb.Assign("status", string(account.Status)),
		sb.Assign("error_count", account.ErrorCount),
		sb.Assign("last_used_at", account.LastUsedAt),
		sb.Assign("checked_out_at", account.CheckedOutAt),
		sb.Assign("notes", account.Notes),
		sb.Assign("updated_at", account.UpdatedAt),
	)
	sb.Where(sb.Equal("id", account.ID))

	query, args := sb.Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		s.logger.WithError(err).WithField("account_id", account.ID).Error("failed to update account")
		return fmt.Errorf("failed to update account %s: %w", account.ID, err)
	}
	return nil
}

// Create inserts a new account
func (s *PostgresStore) Create(ctx context.Context, account *models.ScraperAccount) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	if account.Status == "" {
		account.Status = models.AccountActive
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("scraper_accounts")
	sb.Cols("id", "platform", "credential", "status", "error_count", "last_used_at", "checked_out_at", "notes", "created_at", "updated_at")
	sb.Values(account.ID, account.Platform, account.Credential, string(account.Status), account.ErrorCount, account.LastUsedAt, account.CheckedOutAt, account.Notes, account.CreatedAt, account.UpdatedAt)

	query, args := sb.Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		s.logger.WithError(err).WithField("platform", account.Platform).Error("failed to create account")
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// List returns accounts, optionally filtered by platform
func (s *PostgresStore) List(ctx context.Context, platform string) ([]models.ScraperAccount, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(accountColumns)
	sb.From("scraper_accounts")
	if platform != "" {
		sb.Where(sb.Equal("platform", platform))
	}
	sb.OrderBy("platform", "created_at")

	query, args := sb.Build()
	var accounts []models.ScraperAccount
	if err := s.db.SelectContext(ctx, &accounts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// ResetCooldowns moves cooldown accounts back to active with a decayed
// error count
func (s *PostgresStore) ResetCooldowns(ctx context.Context) (int, error) {
	query := `
		UPDATE scraper_accounts
		SET status = 'active', error_count = GREATEST(error_count - 1, 0), updated_at = now()
		WHERE status = 'cooldown'
	`
	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to reset cooldown accounts: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// ReclaimStale frees busy accounts whose lease started before cutoff
func (s *PostgresStore) ReclaimStale(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		UPDATE scraper_accounts
		SET status = 'active', checked_out_at = NULL, updated_at = now()
		WHERE status = 'busy' AND checked_out_at IS NOT NULL AND checked_out_at < $1
	`
	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale accounts: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}
