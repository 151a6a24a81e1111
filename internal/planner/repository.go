// Package planner is the meal-planning domain: templates, applied weeks,
// recorded choices and the day/week read views built from them.
package planner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/dietplan/dietplan/internal/core"
	"github.com/dietplan/dietplan/internal/store"
)

// Repository runs planning operations against the shared store.
type Repository struct {
	db  *store.DB
	log *zap.Logger
}

// New returns a Repository over db.
func New(db *store.DB, log *zap.Logger) *Repository {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{db: db, log: log.With(zap.String("component", "planner"))}
}

// ActiveTemplateID returns the profile's active template, falling back to the
// active shared one. A nil profileID looks only at shared templates.
func (r *Repository) ActiveTemplateID(ctx context.Context, profileID *int64) (int64, bool, error) {
	var id int64
	if profileID != nil {
		err := r.db.GetContext(ctx, &id,
			"SELECT id FROM week_templates WHERE profile_id = ? AND is_active = 1 ORDER BY id LIMIT 1", *profileID)
		if err == nil {
			return id, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, false, fmt.Errorf("active template for profile %d: %w", *profileID, err)
		}
	}
	err := r.db.GetContext(ctx, &id,
		"SELECT id FROM week_templates WHERE profile_id IS NULL AND is_active = 1 ORDER BY id LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("active shared template: %w", err)
	}
	return id, true, nil
}

// ApplyWeekTemplate anchors the 7 days starting at weekStart to templateID for
// profileID. Existing plan days are left untouched. Template slots that default
// to free or skipped get a choice recorded right away; a free one also counts
// toward the quota. Proposed slots record nothing.
func (r *Repository) ApplyWeekTemplate(ctx context.Context, profileID int64, weekStart time.Time, templateID int64) error {
	if _, err := r.Template(ctx, templateID); err != nil {
		return err
	}
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for i := 0; i < 7; i++ {
			day := weekStart.AddDate(0, 0, i)
			date := core.FormatDate(day)
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO plan_days(date, profile_id, template_id, created_at, updated_at)
				 VALUES(?, ?, ?, datetime('now'), datetime('now'))`,
				date, profileID, templateID); err != nil {
				return fmt.Errorf("plan day %s: %w", date, err)
			}

			dow := core.Dow(day)
			for _, mt := range core.MealTypes {
				tm, err := templateMeal(ctx, tx, templateID, dow, mt)
				if err != nil {
					return err
				}
				if tm == nil {
					continue
				}
				switch tm.DefaultSource {
				case core.DefaultFree:
					if err := insertChoice(ctx, tx, profileID, date, mt, core.SourceFree, "FREE – "+string(mt), nil, nil, ""); err != nil {
						return err
					}
					if err := insertFreeMeal(ctx, tx, profileID, date, mt, ""); err != nil {
						return err
					}
				case core.DefaultSkipped:
					if err := insertChoice(ctx, tx, profileID, date, mt, core.SourceSkipped, "SKIP – "+string(mt), nil, nil, ""); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("applying template %d: %w", templateID, err)
	}
	r.log.Info("week template applied",
		zap.Int64("profile_id", profileID),
		zap.String("start", core.FormatDate(weekStart)),
		zap.Int64("template_id", templateID))
	return nil
}

// templateMeal returns the first template meal for the slot, or nil.
func templateMeal(ctx context.Context, q store.Querier, templateID int64, dow int, mt core.MealType) (*core.TemplateMeal, error) {
	var tm core.TemplateMeal
	err := sqlx.GetContext(ctx, q, &tm,
		`SELECT id, template_id, dow, meal_type, title, proposed_label, proposed_items, calories,
		        required, COALESCE(default_source, 'proposed') AS default_source
		 FROM template_meals
		 WHERE template_id = ? AND dow = ? AND meal_type = ?
		 ORDER BY id LIMIT 1`, templateID, dow, mt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("template meal %d/%d/%s: %w", templateID, dow, mt, err)
	}
	return &tm, nil
}

func insertChoice(ctx context.Context, q store.Querier, profileID int64, date string, mt core.MealType,
	src core.ChoiceSource, title string, label, items *string, notes string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO day_meals(profile_id, date, meal_type, chosen_source, chosen_title, chosen_label, chosen_items, notes, ts)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))`,
		profileID, date, mt, src, title, label, items, notes)
	if err != nil {
		return fmt.Errorf("recording %s choice for %s %s: %w", src, date, mt, err)
	}
	return nil
}

func insertFreeMeal(ctx context.Context, q store.Querier, profileID int64, date string, mt core.MealType, notes string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO free_meals(profile_id, date, meal_type, notes, ts)
		 VALUES(?, ?, ?, ?, datetime('now'))`,
		profileID, date, mt, notes)
	if err != nil {
		return fmt.Errorf("recording free meal for %s %s: %w", date, mt, err)
	}
	return nil
}
