// Package profiles maps external identities to internal profiles and keeps
// the default cross-profile ACL in shape.
package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/dietplan/dietplan/internal/core"
	"github.com/dietplan/dietplan/internal/store"
)

// SyncOptions controls SyncFromIdentityProvider. Active users are always required.
type SyncOptions struct {
	IncludeSystem bool
	// PruneMissing is accepted but reserved: profiles are never deleted until
	// there is a cascading delete for their plan data.
	PruneMissing bool
}

// Directory resolves and synchronizes profiles.
type Directory struct {
	db       *store.DB
	provider core.IdentityProvider
	log      *zap.Logger
	// external id -> profile id; ids never change once assigned and rows are never deleted
	byExternal *cache.Cache
}

// NewDirectory builds a Directory over db. provider may be nil if sync is never used.
func NewDirectory(db *store.DB, provider core.IdentityProvider, log *zap.Logger) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{
		db:         db,
		provider:   provider,
		log:        log.With(zap.String("component", "profiles")),
		byExternal: cache.New(30*time.Minute, time.Hour),
	}
}

// FallbackName is used when the identity provider has no display name.
func FallbackName(externalID string) string {
	id := externalID
	if len(id) > 8 {
		id = id[:8]
	}
	return "User " + id
}

// SyncFromIdentityProvider creates or renames a profile for every selected
// identity, then forces a read-only grant in both directions between every
// pair of them. Users are fetched before the write transaction starts.
// It returns the number of profiles stored after the sync.
func (d *Directory) SyncFromIdentityProvider(ctx context.Context, opts SyncOptions) (int, error) {
	if d.provider == nil {
		return 0, errors.New("no identity provider configured")
	}
	users, err := d.provider.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing users: %w", err)
	}

	var selected []core.User
	for _, u := range users {
		if !u.IsActive {
			continue
		}
		if u.IsSystemGenerated && !opts.IncludeSystem {
			continue
		}
		selected = append(selected, u)
	}

	var ids []int64
	var total int
	err = d.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, u := range selected {
			name := strings.TrimSpace(u.DisplayName)
			if name == "" {
				name = FallbackName(u.ID)
			}
			id, err := upsertProfile(ctx, tx, u.ID, name)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		if opts.PruneMissing {
			d.log.Warn("prune_missing requested; profile pruning is disabled")
		}
		if err := ensureCrossReadACL(ctx, tx, ids); err != nil {
			return err
		}
		return tx.GetContext(ctx, &total, "SELECT COUNT(*) FROM diet_profiles")
	})
	if err != nil {
		return 0, fmt.Errorf("syncing profiles: %w", err)
	}
	for i, u := range selected {
		d.byExternal.SetDefault(u.ID, ids[i])
	}
	d.log.Info("profiles synced", zap.Int("synced", len(ids)), zap.Int("total", total))
	return total, nil
}

// upsertProfile inserts a profile or renames an existing one. created_at is never touched.
func upsertProfile(ctx context.Context, q store.Querier, externalID, displayName string) (int64, error) {
	var cur struct {
		ID          int64  `db:"id"`
		DisplayName string `db:"display_name"`
	}
	err := sqlx.GetContext(ctx, q, &cur,
		"SELECT id, display_name FROM diet_profiles WHERE ha_user_id = ?", externalID)
	switch {
	case err == nil:
		if cur.DisplayName != displayName {
			if _, err := q.ExecContext(ctx,
				"UPDATE diet_profiles SET display_name = ? WHERE id = ?", displayName, cur.ID); err != nil {
				return 0, fmt.Errorf("renaming profile %d: %w", cur.ID, err)
			}
		}
		return cur.ID, nil
	case errors.Is(err, sql.ErrNoRows):
	default:
		return 0, fmt.Errorf("looking up profile %q: %w", externalID, err)
	}

	res, err := q.ExecContext(ctx,
		"INSERT INTO diet_profiles(ha_user_id, display_name, created_at) VALUES(?, ?, datetime('now'))",
		externalID, displayName)
	if err != nil {
		return 0, fmt.Errorf("creating profile %q: %w", externalID, err)
	}
	return res.LastInsertId()
}

// ensureCrossReadACL gives every ordered pair of distinct ids exactly (read=1, write=0).
// Self rows are never stored.
func ensureCrossReadACL(ctx context.Context, q store.Querier, ids []int64) error {
	for _, owner := range ids {
		for _, subject := range ids {
			if owner == subject {
				continue
			}
			if _, err := q.ExecContext(ctx,
				`INSERT OR IGNORE INTO profile_acl(owner_profile_id, subject_profile_id, can_read, can_write)
				 VALUES(?, ?, 1, 0)`, owner, subject); err != nil {
				return fmt.Errorf("acl %d->%d: %w", owner, subject, err)
			}
			if _, err := q.ExecContext(ctx,
				`UPDATE profile_acl SET can_read = 1, can_write = 0
				 WHERE owner_profile_id = ? AND subject_profile_id = ?`, owner, subject); err != nil {
				return fmt.Errorf("acl %d->%d: %w", owner, subject, err)
			}
		}
	}
	return nil
}

// Resolve returns the profile id for an external user id.
func (d *Directory) Resolve(ctx context.Context, externalID string) (int64, bool, error) {
	if v, ok := d.byExternal.Get(externalID); ok {
		return v.(int64), true, nil
	}
	var id int64
	err := d.db.GetContext(ctx, &id, "SELECT id FROM diet_profiles WHERE ha_user_id = ?", externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolving profile %q: %w", externalID, err)
	}
	d.byExternal.SetDefault(externalID, id)
	return id, true, nil
}

// EnsureProfile returns the profile for externalID, creating it when missing.
// An existing profile keeps its name; displayName defaults to the external id.
func (d *Directory) EnsureProfile(ctx context.Context, externalID, displayName string) (int64, error) {
	if id, ok, err := d.Resolve(ctx, externalID); err != nil || ok {
		return id, err
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = externalID
	}
	res, err := d.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO diet_profiles(ha_user_id, display_name, created_at) VALUES(?, ?, datetime('now'))",
		externalID, displayName)
	if err != nil {
		return 0, fmt.Errorf("creating profile %q: %w", externalID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		d.log.Info("profile provisioned", zap.String("external_id", externalID))
	}
	id, _, err := d.Resolve(ctx, externalID)
	return id, err
}

// List returns every profile ordered by id.
func (d *Directory) List(ctx context.Context) ([]core.Profile, error) {
	var out []core.Profile
	err := d.db.SelectContext(ctx, &out,
		"SELECT id, ha_user_id, display_name, color, created_at FROM diet_profiles ORDER BY id")
	return out, err
}

// Get returns one profile or core.ErrNotFound.
func (d *Directory) Get(ctx context.Context, id int64) (*core.Profile, error) {
	var p core.Profile
	err := d.db.GetContext(ctx, &p,
		"SELECT id, ha_user_id, display_name, color, created_at FROM diet_profiles WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetColor updates the display color of a profile.
func (d *Directory) SetColor(ctx context.Context, id int64, color string) error {
	res, err := d.db.ExecContext(ctx, "UPDATE diet_profiles SET color = ? WHERE id = ?", color, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("profile %d: %w", id, core.ErrNotFound)
	}
	return nil
}
