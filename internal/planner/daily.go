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
)

// ChoiceInput records what a profile actually ate for one slot.
type ChoiceInput struct {
	ProfileID int64
	Date      time.Time
	MealType  core.MealType
	Source    core.ChoiceSource
	Title     string
	// AlternativeID copies title, label and items from a template alternative.
	// An explicit Title still wins.
	AlternativeID *int64
	Notes         string
}

// SetSnack upserts the snack state for one period of a day.
func (r *Repository) SetSnack(ctx context.Context, profileID int64, date time.Time, period core.SnackPeriod, done bool) error {
	if !period.Valid() {
		return fmt.Errorf("%w: period must be am or pm", core.ErrInvalidInput)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO snacks(profile_id, date, period, done, ts)
		 VALUES(?, ?, ?, ?, datetime('now'))
		 ON CONFLICT(profile_id, date, period) DO UPDATE SET done = excluded.done, ts = excluded.ts`,
		profileID, core.FormatDate(date), period, done)
	if err != nil {
		return fmt.Errorf("setting snack %s: %w", period, err)
	}
	return nil
}

// SetHunger scores an existing plan day. It fails with core.ErrNotFound
// when the day was never planned.
func (r *Repository) SetHunger(ctx context.Context, profileID int64, date time.Time, score int) error {
	if score < 1 || score > 5 {
		return fmt.Errorf("%w: hunger score %d out of range 1..5", core.ErrInvalidInput, score)
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE plan_days SET hunger = ?, updated_at = datetime('now') WHERE profile_id = ? AND date = ?",
		score, profileID, core.FormatDate(date))
	if err != nil {
		return fmt.Errorf("setting hunger: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("plan day %s: %w", core.FormatDate(date), core.ErrNotFound)
	}
	return nil
}

// SetChoice appends a choice for the slot. A free choice is also logged
// against the weekly quota. Earlier choices stay as history.
func (r *Repository) SetChoice(ctx context.Context, in ChoiceInput) error {
	if !in.MealType.Valid() {
		return fmt.Errorf("%w: unknown meal type %q", core.ErrInvalidInput, in.MealType)
	}
	if !in.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", core.ErrInvalidInput, in.Source)
	}
	date := core.FormatDate(in.Date)
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		title := nullable(in.Title)
		var label, items *string
		if in.AlternativeID != nil {
			var alt core.Alternative
			err := tx.GetContext(ctx, &alt,
				"SELECT id, title, label, items, calories FROM template_meal_alternatives WHERE id = ?", *in.AlternativeID)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("alternative %d: %w", *in.AlternativeID, core.ErrNotFound)
			}
			if err != nil {
				return err
			}
			if title == nil {
				title = alt.Title
			}
			label, items = alt.Label, alt.Items
		}
		var t string
		if title != nil {
			t = *title
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO day_meals(profile_id, date, meal_type, chosen_source, chosen_title, chosen_label, chosen_items, notes, ts)
			 VALUES(?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))`,
			in.ProfileID, date, in.MealType, in.Source, nullable(t), label, items, in.Notes); err != nil {
			return fmt.Errorf("recording choice: %w", err)
		}
		if in.Source == core.SourceFree {
			return insertFreeMeal(ctx, tx, in.ProfileID, date, in.MealType, in.Notes)
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.log.Debug("choice recorded",
		zap.Int64("profile_id", in.ProfileID),
		zap.String("date", date),
		zap.String("meal_type", string(in.MealType)),
		zap.String("source", string(in.Source)))
	return nil
}

// FreeMealsUsedInWeek counts free meals logged Monday through Sunday of the
// ISO week containing anchor.
func (r *Repository) FreeMealsUsedInWeek(ctx context.Context, profileID int64, anchor time.Time) (int, error) {
	start := core.WeekStart(anchor)
	end := start.AddDate(0, 0, 6)
	var n int
	err := r.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM free_meals WHERE profile_id = ? AND date BETWEEN ? AND ?",
		profileID, core.FormatDate(start), core.FormatDate(end))
	if err != nil {
		return 0, fmt.Errorf("counting free meals: %w", err)
	}
	return n, nil
}

// SwapMeal records a request to move a slot to a later day of the same week.
// Only the audit row is written; plan data is not changed.
func (r *Repository) SwapMeal(ctx context.Context, profileID int64, from, to time.Time, mt core.MealType) error {
	if !mt.Valid() {
		return fmt.Errorf("%w: unknown meal type %q", core.ErrInvalidInput, mt)
	}
	if !to.After(from) {
		return fmt.Errorf("%w: date_to must be after date_from", core.ErrInvalidRange)
	}
	if !core.SameISOWeek(from, to) {
		return fmt.Errorf("%w: swap must stay within one ISO week", core.ErrInvalidRange)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO swaps(profile_id, date_from, date_to, meal_type, ts)
		 VALUES(?, ?, ?, ?, datetime('now'))`,
		profileID, core.FormatDate(from), core.FormatDate(to), mt)
	if err != nil {
		return fmt.Errorf("recording swap: %w", err)
	}
	return nil
}
