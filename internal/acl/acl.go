// Package acl answers whether one profile may read or write another's data.
package acl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dietplan/dietplan/internal/core"
	"github.com/dietplan/dietplan/internal/store"
)

// Checker evaluates ACL rows. Self access never touches the table.
type Checker struct {
	db *store.DB
}

// NewChecker returns a Checker over db.
func NewChecker(db *store.DB) *Checker {
	return &Checker{db: db}
}

// entry loads the (owner, subject) row; ok is false when there is none.
func (c *Checker) entry(ctx context.Context, owner, subject int64) (core.AclEntry, bool, error) {
	var e core.AclEntry
	err := c.db.GetContext(ctx, &e,
		`SELECT owner_profile_id, subject_profile_id, can_read, can_write
		 FROM profile_acl WHERE owner_profile_id = ? AND subject_profile_id = ?`, owner, subject)
	if errors.Is(err, sql.ErrNoRows) {
		return e, false, nil
	}
	if err != nil {
		return e, false, fmt.Errorf("acl lookup %d->%d: %w", owner, subject, err)
	}
	return e, true, nil
}

// CanRead reports whether subject may read owner's data.
func (c *Checker) CanRead(ctx context.Context, owner, subject int64) (bool, error) {
	if owner == subject {
		return true, nil
	}
	e, ok, err := c.entry(ctx, owner, subject)
	return ok && e.CanRead, err
}

// CanWrite reports whether subject may write owner's data.
func (c *Checker) CanWrite(ctx context.Context, owner, subject int64) (bool, error) {
	if owner == subject {
		return true, nil
	}
	e, ok, err := c.entry(ctx, owner, subject)
	return ok && e.CanWrite, err
}

// Grant sets the flags for (owner, subject). A later profile sync resets them to read-only.
func (c *Checker) Grant(ctx context.Context, owner, subject int64, read, write bool) error {
	if owner == subject {
		return fmt.Errorf("%w: self access is implicit", core.ErrInvalidInput)
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO profile_acl(owner_profile_id, subject_profile_id, can_read, can_write)
		 VALUES(?, ?, ?, ?)
		 ON CONFLICT(owner_profile_id, subject_profile_id)
		 DO UPDATE SET can_read = excluded.can_read, can_write = excluded.can_write`,
		owner, subject, read, write)
	if err != nil {
		return fmt.Errorf("granting %d->%d: %w", owner, subject, err)
	}
	return nil
}

// Entries returns every stored row, ordered by owner then subject.
func (c *Checker) Entries(ctx context.Context) ([]core.AclEntry, error) {
	var out []core.AclEntry
	err := c.db.SelectContext(ctx, &out,
		`SELECT owner_profile_id, subject_profile_id, can_read, can_write
		 FROM profile_acl ORDER BY owner_profile_id, subject_profile_id`)
	return out, err
}

// Capabilities lists every profile with what subject may do on it.
func (c *Checker) Capabilities(ctx context.Context, subject int64) ([]core.Capability, error) {
	rows, err := c.db.QueryxContext(ctx,
		`SELECT p.id, p.display_name,
		        CASE WHEN p.id = ? THEN 1 ELSE COALESCE(a.can_read, 0) END,
		        CASE WHEN p.id = ? THEN 1 ELSE COALESCE(a.can_write, 0) END
		 FROM diet_profiles p
		 LEFT JOIN profile_acl a ON a.owner_profile_id = p.id AND a.subject_profile_id = ?
		 ORDER BY p.id`, subject, subject, subject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.Capability{}
	for rows.Next() {
		var cp core.Capability
		if err := rows.Scan(&cp.ProfileID, &cp.DisplayName, &cp.CanRead, &cp.CanWrite); err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}
