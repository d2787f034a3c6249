// Package pool manages the shared set of scraping accounts: mutually
// exclusive checkout, health-tracked release, and a circuit breaker that
// parks unhealthy accounts.
package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/Fernandogf021207/Scr4per-sub000/pkg/config"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/logger"
	"github.com/Fernandogf021207/Scr4per-sub000/pkg/models"
)

// Store is the persistence boundary of the pool. Implementations must make
// Acquire mutually exclusive and non-blocking across concurrent callers and
// processes: a contended row is skipped, never waited on, and no account is
// ever handed out twice.
type Store interface {
	// Acquire selects the least-recently-used active account for the
	// platform (never-used accounts first), atomically flips it to busy
	// and commits before returning. Returns errors.ErrPoolExhausted when
	// no eligible account exists.
	Acquire(ctx context.Context, platform string) (*models.ScraperAccount, error)

	// Get returns the account by id, or (nil, nil) when it does not exist
	Get(ctx context.Context, id string) (*models.ScraperAccount, error)

	// Update persists status, error count, notes and lease fields
	Update(ctx context.Context, account *models.ScraperAccount) error

	// Create inserts a new account (administrative)
	Create(ctx context.Context, account *models.ScraperAccount) error

	// List returns accounts, optionally filtered by platform ("" = all)
	List(ctx context.Context, platform string) ([]models.ScraperAccount, error)

	// ResetCooldowns moves every cooldown account back to active and decays
	// its error count by one (never below zero). Returns the number of
	// accounts touched.
	ResetCooldowns(ctx context.Context) (int, error)

	// ReclaimStale flips busy accounts whose lease started before cutoff
	// back to active. Returns the number of accounts reclaimed.
	ReclaimStale(ctx context.Context, cutoff time.Time) (int, error)
}

// Manager applies the account health state machine on top of a Store
type Manager struct {
	store  Store
	cfg    config.PoolConfig
	logger logger.Logger
}

// NewManager creates a pool manager
func NewManager(store Store, cfg config.PoolConfig, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{store: store, cfg: cfg, logger: log}
}

// Checkout borrows an eligible account for the platform. The returned
// account is busy and committed as such; callers must Release it.
func (m *Manager) Checkout(ctx context.Context, platform string) (*models.ScraperAccount, error) {
	account, err := m.store.Acquire(ctx, platform)
	if err != nil {
		return nil, err
	}

	m.logger.InfoWithFields("account checked out", map[string]interface{}{
		"account_id": account.ID,
		"platform":   platform,
	})
	return account, nil
}

// Release returns an account to the pool, applying the circuit breaker:
// success resets the error count; failures escalate through cooldown to
// suspended once the thresholds are crossed.
func (m *Manager) Release(ctx context.Context, accountID string, success bool, errorMessage string) error {
	account, err := m.store.Get(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to load account %s: %w", accountID, err)
	}
	if account == nil {
		// Account deleted out from under us; nothing to release
		m.logger.WarnWithFields("release of unknown account ignored", map[string]interface{}{
			"account_id": accountID,
		})
		return nil
	}

	account.CheckedOutAt = nil
	if success {
		account.Status = models.AccountActive
		account.ErrorCount = 0
	} else {
		account.ErrorCount++
		switch {
		case account.ErrorCount >= m.cfg.SuspendThreshold:
			account.Status = models.AccountSuspended
		case account.ErrorCount >= m.cfg.CooldownThreshold:
			account.Status = models.AccountCooldown
		default:
			account.Status = models.AccountActive
		}
		if errorMessage != "" {
			account.Notes = errorMessage
		}
	}

	if err := m.store.Update(ctx, account); err != nil {
		return fmt.Errorf("failed to release account %s: %w", accountID, err)
	}

	m.logger.InfoWithFields("account released", map[string]interface{}{
		"account_id":  account.ID,
		"success":     success,
		"status":      string(account.Status),
		"error_count": account.ErrorCount,
	})
	return nil
}

// MarkSuspended forces an account into suspended state, bypassing the
// error counter (e.g. an expired session detected mid-run)
func (m *Manager) MarkSuspended(ctx context.Context, accountID, reason string) error {
	return m.forceStatus(ctx, accountID, models.AccountSuspended, reason)
}

// MarkBanned forces an account into banned state (platform-issued block)
func (m *Manager) MarkBanned(ctx context.Context, accountID, reason string) error {
	return m.forceStatus(ctx, accountID, models.AccountBanned, reason)
}

func (m *Manager) forceStatus(ctx context.Context, accountID string, status models.AccountStatus, reason string) error {
	account, err := m.store.Get(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to load account %s: %w", accountID, err)
	}
	if account == nil {
		return fmt.Errorf("account %s not found", accountID)
	}

	account.Status = status
	account.CheckedOutAt = nil
	if reason != "" {
		account.Notes = reason
	}
	if err := m.store.Update(ctx, account); err != nil {
		return fmt.Errorf("failed to update account %s: %w", accountID, err)
	}

	m.logger.WarnWithFields("account status forced", map[string]interface{}{
		"account_id": accountID,
		"status":     string(status),
		"reason":     reason,
	})
	return nil
}

// ResetCooldownAccounts is the periodic decay valve: cooldown accounts go
// back to active with their error count reduced by one
func (m *Manager) ResetCooldownAccounts(ctx context.Context) (int, error) {
	n, err := m.store.ResetCooldowns(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reset cooldown accounts: %w", err)
	}
	if n > 0 {
		m.logger.InfoWithFields("cooldown accounts reset", map[string]interface{}{
			"count": n,
		})
	}
	return n, nil
}

// ReclaimStaleAccounts frees accounts left busy by crashed workers once
// their lease has expired
func (m *Manager) ReclaimStaleAccounts(ctx context.Context) (int, error) {
	if m.cfg.LeaseTimeout <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-m.cfg.LeaseTimeout.Std())
	n, err := m.store.ReclaimStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale accounts: %w", err)
	}
	if n > 0 {
		m.logger.WarnWithFields("stale busy accounts reclaimed", map[string]interface{}{
			"count":         n,
			"lease_timeout": m.cfg.LeaseTimeout.String(),
		})
	}
	return n, nil
}

// PoolStatus holds per-status account counts
type PoolStatus struct {
	Platform string                       `json:"platform,omitempty"`
	Total    int                          `json:"total"`
	ByStatus map[models.AccountStatus]int `json:"by_status"`
}

// GetPoolStatus returns a read-only snapshot of account counts, optionally
// filtered by platform
func (m *Manager) GetPoolStatus(ctx context.Context, platform string) (*PoolStatus, error) {
	accounts, err := m.store.List(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	status := &PoolStatus{
		Platform: platform,
		ByStatus: make(map[models.AccountStatus]int),
	}
	for _, account := range accounts {
		status.Total++
		status.ByStatus[account.Status]++
	}
	return status, nil
}
