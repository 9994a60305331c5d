// Package credits keeps per-user metered balances and a ledger of charges.
package credits

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/matsearch/internal/db"
	"github.com/kailas-cloud/matsearch/internal/domain"
	"github.com/kailas-cloud/matsearch/internal/domain/usage"
)

const (
	fieldGranted = "granted"
	fieldSpent   = "spent"
)

// store is the consumer interface for credit operations (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, val int64) (int64, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Charge is one ledger entry.
type Charge struct {
	UserID      string
	Operation   string
	Units       int64
	Description string
	Context     map[string]string
	At          time.Time
}

// Repo stores balances as HASH{granted, spent}. Every user starts with
// defaultGrant on top of whatever was granted explicitly.
type Repo struct {
	store        store
	prefix       string
	defaultGrant int64
	ledgerTTL    time.Duration
}

// New creates a credits repository.
func New(s store, prefix string, defaultGrant int64, ledgerTTL time.Duration) *Repo {
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	return &Repo{store: s, prefix: prefix, defaultGrant: defaultGrant, ledgerTTL: ledgerTTL}
}

func (r *Repo) accountKey(userID string) string { return r.prefix + "credits:" + userID }

// Balance returns the user's account. Users without an account hold the default grant.
func (r *Repo) Balance(ctx context.Context, userID string) (usage.Credits, error) {
	c := usage.Credits{UserID: userID, Granted: r.defaultGrant}

	fields, err := r.store.HGetAll(ctx, r.accountKey(userID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			c.Balance = c.Granted
			return c, nil
		}
		return usage.Credits{}, fmt.Errorf("credits HGETALL %s: %w", userID, err)
	}

	granted, err := parseCounter(fields, fieldGranted)
	if err != nil {
		return usage.Credits{}, fmt.Errorf("credits %s: %w", userID, err)
	}
	spent, err := parseCounter(fields, fieldSpent)
	if err != nil {
		return usage.Credits{}, fmt.Errorf("credits %s: %w", userID, err)
	}

	c.Granted += granted
	c.Spent = spent
	c.Balance = c.Granted - c.Spent
	return c, nil
}

// Grant adds units to a user's account and returns the new explicit grant total.
func (r *Repo) Grant(ctx context.Context, userID string, units int64) (int64, error) {
	if units <= 0 {
		return 0, domain.Errorf(domain.KindValidation, "credits.grant", "units must be positive, got %d", units)
	}
	total, err := r.store.HIncrBy(ctx, r.accountKey(userID), fieldGranted, units)
	if err != nil {
		return 0, fmt.Errorf("credits HINCRBY %s: %w", userID, err)
	}
	return total, nil
}

// Consume charges units and writes a ledger entry.
// Consume does not check the balance; callers gate on Balance first.
func (r *Repo) Consume(ctx context.Context, ch Charge) error {
	if _, err := r.store.HIncrBy(ctx, r.accountKey(ch.UserID), fieldSpent, ch.Units); err != nil {
		return fmt.Errorf("credits HINCRBY %s: %w", ch.UserID, err)
	}
	return r.writeLedger(ctx, ch)
}

func (r *Repo) writeLedger(ctx context.Context, ch Charge) error {
	key := r.prefix + "ledger:" + ch.UserID + ":" + uuid.NewString()
	at := ch.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	fields := map[string]string{
		"user_id":   ch.UserID,
		"operation": ch.Operation,
		"units":     strconv.FormatInt(ch.Units, 10),
		"at":        strconv.FormatInt(at.UnixMilli(), 10),
	}
	if ch.Description != "" {
		fields["description"] = ch.Description
	}
	for k, v := range ch.Context {
		fields["ctx_"+k] = v
	}

	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("ledger HSET %s: %w", key, err)
	}
	if r.ledgerTTL > 0 {
		if err := r.store.Expire(ctx, key, r.ledgerTTL, false); err != nil {
			return fmt.Errorf("ledger EXPIRE %s: %w", key, err)
		}
	}
	return nil
}

func parseCounter(fields map[string]string, name string) (int64, error) {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return v, nil
}
