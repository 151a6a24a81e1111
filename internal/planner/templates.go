package planner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/dietplan/dietplan/internal/core"
)

// TemplateInput creates a week template. A nil ProfileID makes it shared.
type TemplateInput struct {
	ProfileID   *int64
	Name        string
	Description string
}

// TemplateMealInput adds one slot proposal to a template.
type TemplateMealInput struct {
	TemplateID    int64
	Dow           int
	MealType      core.MealType
	Title         string
	Label         string
	Items         string
	Calories      *int64
	Required      bool
	DefaultSource core.DefaultSource
}

// AlternativeInput adds a substitute for a template meal.
type AlternativeInput struct {
	TemplateMealID int64
	Title          string
	Label          string
	Items          string
	Calories       *int64
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CreateTemplate stores a new inactive template and returns its id.
func (r *Repository) CreateTemplate(ctx context.Context, in TemplateInput) (int64, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return 0, fmt.Errorf("%w: template name is required", core.ErrInvalidInput)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO week_templates(profile_id, name, description, is_active, created_at, updated_at)
		 VALUES(?, ?, ?, 0, datetime('now'), datetime('now'))`,
		in.ProfileID, name, nullable(in.Description))
	if err != nil {
		return 0, fmt.Errorf("creating template %q: %w", name, err)
	}
	return res.LastInsertId()
}

// Template returns one template or core.ErrNotFound.
func (r *Repository) Template(ctx context.Context, id int64) (*core.WeekTemplate, error) {
	var t core.WeekTemplate
	err := r.db.GetContext(ctx, &t,
		`SELECT id, profile_id, name, description, is_active, created_at, updated_at
		 FROM week_templates WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("template %d: %w", id, err)
	}
	return &t, nil
}

// ListTemplates returns the shared templates plus, when profileID is set, that profile's own.
func (r *Repository) ListTemplates(ctx context.Context, profileID *int64) ([]core.WeekTemplate, error) {
	out := []core.WeekTemplate{}
	var err error
	if profileID == nil {
		err = r.db.SelectContext(ctx, &out,
			`SELECT id, profile_id, name, description, is_active, created_at, updated_at
			 FROM week_templates WHERE profile_id IS NULL ORDER BY id`)
	} else {
		err = r.db.SelectContext(ctx, &out,
			`SELECT id, profile_id, name, description, is_active, created_at, updated_at
			 FROM week_templates WHERE profile_id IS NULL OR profile_id = ? ORDER BY id`, *profileID)
	}
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	return out, nil
}

// AddTemplateMeal stores a slot proposal. DefaultSource defaults to proposed.
func (r *Repository) AddTemplateMeal(ctx context.Context, in TemplateMealInput) (int64, error) {
	if in.Dow < 0 || in.Dow > 6 {
		return 0, fmt.Errorf("%w: dow %d out of range 0..6", core.ErrInvalidInput, in.Dow)
	}
	if !in.MealType.Valid() {
		return 0, fmt.Errorf("%w: unknown meal type %q", core.ErrInvalidInput, in.MealType)
	}
	if in.DefaultSource == "" {
		in.DefaultSource = core.DefaultProposed
	}
	if !in.DefaultSource.Valid() {
		return 0, fmt.Errorf("%w: unknown default source %q", core.ErrInvalidInput, in.DefaultSource)
	}
	if _, err := r.Template(ctx, in.TemplateID); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO template_meals(template_id, dow, meal_type, title, proposed_label, proposed_items,
		                            calories, required, default_source)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.TemplateID, in.Dow, in.MealType, nullable(in.Title), nullable(in.Label), nullable(in.Items),
		in.Calories, in.Required, in.DefaultSource)
	if err != nil {
		return 0, fmt.Errorf("adding meal to template %d: %w", in.TemplateID, err)
	}
	return res.LastInsertId()
}

// TemplateMeal returns one template meal or core.ErrNotFound.
func (r *Repository) TemplateMeal(ctx context.Context, id int64) (*core.TemplateMeal, error) {
	var tm core.TemplateMeal
	err := r.db.GetContext(ctx, &tm,
		`SELECT id, template_id, dow, meal_type, title, proposed_label, proposed_items, calories,
		        required, COALESCE(default_source, 'proposed') AS default_source
		 FROM template_meals WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template meal %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("template meal %d: %w", id, err)
	}
	return &tm, nil
}

// TemplateMeals returns every slot of a template ordered by weekday then slot.
func (r *Repository) TemplateMeals(ctx context.Context, templateID int64) ([]core.TemplateMeal, error) {
	out := []core.TemplateMeal{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT id, template_id, dow, meal_type, title, proposed_label, proposed_items, calories,
		        required, COALESCE(default_source, 'proposed') AS default_source
		 FROM template_meals WHERE template_id = ? ORDER BY dow, id`, templateID)
	if err != nil {
		return nil, fmt.Errorf("template %d meals: %w", templateID, err)
	}
	return out, nil
}

// AddAlternative stores a substitute for a template meal.
func (r *Repository) AddAlternative(ctx context.Context, in AlternativeInput) (int64, error) {
	if _, err := r.TemplateMeal(ctx, in.TemplateMealID); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO template_meal_alternatives(template_meal_id, title, label, items, calories)
		 VALUES(?, ?, ?, ?, ?)`,
		in.TemplateMealID, nullable(in.Title), nullable(in.Label), nullable(in.Items), in.Calories)
	if err != nil {
		return 0, fmt.Errorf("adding alternative to meal %d: %w", in.TemplateMealID, err)
	}
	return res.LastInsertId()
}

// ActivateTemplate marks id active and every other template in the same scope
// (the same profile, or shared) inactive.
func (r *Repository) ActivateTemplate(ctx context.Context, id int64) error {
	t, err := r.Template(ctx, id)
	if err != nil {
		return err
	}
	err = r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if t.ProfileID == nil {
			_, err = tx.ExecContext(ctx,
				`UPDATE week_templates SET is_active = 0, updated_at = datetime('now')
				 WHERE profile_id IS NULL AND is_active = 1 AND id <> ?`, id)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE week_templates SET is_active = 0, updated_at = datetime('now')
				 WHERE profile_id = ? AND is_active = 1 AND id <> ?`, *t.ProfileID, id)
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE week_templates SET is_active = 1, updated_at = datetime('now') WHERE id = ?", id)
		return err
	})
	if err != nil {
		return fmt.Errorf("activating template %d: %w", id, err)
	}
	r.log.Info("template activated", zap.Int64("template_id", id))
	return nil
}
