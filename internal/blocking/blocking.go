// Package blocking tracks domains that rate-limited the program.
package blocking

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"chansync/internal/domain/consts"
	"chansync/internal/domain/logger"

	"github.com/Masterminds/squirrel"
	"golang.org/x/net/publicsuffix"
)

// Blocker holds domain blocks in memory, persisted to the state database.
type Blocker struct {
	db  *sql.DB
	now func() time.Time

	mu      sync.RWMutex
	blocked map[string]time.Time
}

// New returns an empty blocker over db. Call Load to read persisted blocks.
func New(db *sql.DB) *Blocker {
	return &Blocker{
		db:      db,
		now:     time.Now,
		blocked: make(map[string]time.Time),
	}
}

// BlockDomain blocks a domain (memory + database).
func (b *Blocker) BlockDomain(ctx context.Context, domain, reason string) error {
	now := b.now()
	normalized := normalizeDomain(domain)

	b.mu.Lock()
	b.blocked[normalized] = now
	b.mu.Unlock()

	query, args, err := squirrel.
		Insert(consts.DBBlockedDomains).
		Options("OR REPLACE").
		Columns(consts.QBlockedDomain, consts.QBlockedAt, consts.QBlockedReason).
		Values(normalized, now, reason).
		PlaceholderFormat(squirrel.Question).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to persist blocked domain %q to database: %w", normalized, err)
	}

	logger.Pl.W("Blocked domain %q for %v: %s", normalized, TimeoutFor(normalized), reason)
	return nil
}

// IsBlocked checks if a domain is blocked.
//
// Returns true if blocked and the timeout has not expired.
func (b *Blocker) IsBlocked(domain string) (isBlocked bool, blockedAt time.Time, remaining time.Duration) {
	normalized := normalizeDomain(domain)

	b.mu.RLock()
	blockedAt, exists := b.blocked[normalized]
	b.mu.RUnlock()
	if !exists {
		return false, time.Time{}, 0
	}

	unlock := blockedAt.Add(TimeoutFor(normalized))
	now := b.now()
	if now.After(unlock) {
		return false, blockedAt, 0
	}
	return true, blockedAt, unlock.Sub(now)
}

// Unblock removes a domain's block.
func (b *Blocker) Unblock(ctx context.Context, domain string) error {
	normalized := normalizeDomain(domain)

	b.mu.Lock()
	delete(b.blocked, normalized)
	b.mu.Unlock()

	if err := b.deleteRow(ctx, normalized); err != nil {
		return err
	}
	logger.Pl.S("Unblocked domain %q", normalized)
	return nil
}

func (b *Blocker) deleteRow(ctx context.Context, domain string) error {
	query, args, err := squirrel.
		Delete(consts.DBBlockedDomains).
		Where(squirrel.Eq{consts.QBlockedDomain: domain}).
		PlaceholderFormat(squirrel.Question).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to unblock domain %q from database: %w", domain, err)
	}
	return nil
}

// Load reads all blocked domains from the database into memory.
func (b *Blocker) Load(ctx context.Context) error {
	query, args, err := squirrel.
		Select(consts.QBlockedDomain, consts.QBlockedAt).
		From(consts.DBBlockedDomains).
		PlaceholderFormat(squirrel.Question).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load blocked domains: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logger.Pl.E("Could not close rows for blocked domains: %v", closeErr)
		}
	}()

	b.mu.Lock()
	defer b.mu.Unlock()

	count := 0
	for rows.Next() {
		var domain string
		var blockedAt time.Time
		if err := rows.Scan(&domain, &blockedAt); err != nil {
			logger.Pl.W("Failed to scan blocked domain row: %v", err)
			continue
		}
		b.blocked[domain] = blockedAt
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating blocked domains: %w", err)
	}

	if count > 0 {
		logger.Pl.I("Loaded %d blocked domain(s) from database", count)
	}
	return nil
}

// CleanExpired removes expired blocks from memory and database.
func (b *Blocker) CleanExpired(ctx context.Context) error {
	now := b.now()

	b.mu.Lock()
	var expired []string
	for domain, at := range b.blocked {
		if now.After(at.Add(TimeoutFor(domain))) {
			expired = append(expired, domain)
			delete(b.blocked, domain)
		}
	}
	b.mu.Unlock()

	for _, domain := range expired {
		if err := b.deleteRow(ctx, domain); err != nil {
			logger.Pl.E("Failed to remove expired block for domain %q: %v", domain, err)
			continue
		}
		logger.Pl.S("Removed expired block for domain %q", domain)
	}
	return nil
}

// All returns a copy of every block currently held in memory.
func (b *Blocker) All() map[string]time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return maps.Clone(b.blocked)
}

// TimeoutFor returns how long a block on domain lasts.
func TimeoutFor(domain string) time.Duration {
	minutes := consts.DefaultBlockMinutes
	for key, timeout := range consts.BotTimeoutMap {
		if strings.Contains(domain, key) {
			minutes = timeout
			break
		}
	}
	return time.Duration(minutes * float64(time.Minute))
}

// normalizeDomain extracts the eTLD+1 (effective top-level domain + 1 label).
//
// e.g., m.youtube.com -> youtube.com, www.bbc.co.uk -> bbc.co.uk.
func normalizeDomain(rawDomain string) string {
	if domain, err := publicsuffix.EffectiveTLDPlusOne(rawDomain); err == nil {
		return strings.ToLower(domain)
	}
	return strings.ToLower(rawDomain)
}
