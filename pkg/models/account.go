package models

import "time"

// AccountStatus is the health state of a scraper account
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountBusy      AccountStatus = "busy"
	AccountCooldown  AccountStatus = "cooldown"
	AccountSuspended AccountStatus = "suspended"
	AccountBanned    AccountStatus = "banned"
)

// ScraperAccount is one shared scraping credential. Accounts are created
// administratively and only ever mutated through the pool manager.
type ScraperAccount struct {
	ID           string        `db:"id" json:"id"`
	Platform     string        `db:"platform" json:"platform"`
	Credential   string        `db:"credential" json:"-"`
	Status       AccountStatus `db:"status" json:"status"`
	ErrorCount   int           `db:"error_count" json:"error_count"`
	LastUsedAt   *time.Time    `db:"last_used_at" json:"last_used_at,omitempty"`
	CheckedOutAt *time.Time    `db:"checked_out_at" json:"checked_out_at,omitempty"`
	Notes        string        `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// ScrollReason is why a collection loop terminated
type ScrollReason string

const (
	ScrollReasonEmpty      ScrollReason = "empty"
	ScrollReasonStagnation ScrollReason = "stagnation"
	ScrollReasonBottom     ScrollReason = "bottom"
	ScrollReasonMax        ScrollReason = "max"
	ScrollReasonTimeout    ScrollReason = "timeout"
)

// ScrollStats summarizes one collection loop invocation
type ScrollStats struct {
	TotalNewItems int           `json:"total_new_items"`
	Reason        ScrollReason  `json:"reason"`
	Duration      time.Duration `json:"duration"`
	Iterations    int           `json:"iterations"`
}
