package planner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dietplan/dietplan/internal/core"
	"github.com/dietplan/dietplan/internal/store"
)

// Week is seven consecutive day views starting at Start.
type Week struct {
	Start string         `json:"start"`
	Days  []core.DayView `json:"days"`
}

type planDay struct {
	TemplateID int64   `db:"template_id"`
	Hunger     *int    `db:"hunger"`
	Notes      *string `db:"notes"`
}

type snackRow struct {
	Period core.SnackPeriod `db:"period"`
	Done   bool             `db:"done"`
	TS     *string          `db:"ts"`
}

// GetDay assembles the view for one profile and date. A day that was never
// planned comes back as core.EmptyDay.
func (r *Repository) GetDay(ctx context.Context, profileID int64, date time.Time) (core.DayView, error) {
	return getDay(ctx, r.db, profileID, date)
}

// GetWeek returns the 7 days from start, read inside one transaction so the
// days are a consistent snapshot.
func (r *Repository) GetWeek(ctx context.Context, profileID int64, start time.Time) (Week, error) {
	w := Week{Start: core.FormatDate(start), Days: make([]core.DayView, 0, 7)}
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for i := 0; i < 7; i++ {
			d, err := getDay(ctx, tx, profileID, start.AddDate(0, 0, i))
			if err != nil {
				return err
			}
			w.Days = append(w.Days, d)
		}
		return nil
	})
	if err != nil {
		return Week{}, err
	}
	return w, nil
}

func getDay(ctx context.Context, q store.Querier, profileID int64, date time.Time) (core.DayView, error) {
	ds := core.FormatDate(date)
	var pd planDay
	err := sqlx.GetContext(ctx, q, &pd,
		"SELECT template_id, hunger, notes FROM plan_days WHERE profile_id = ? AND date = ?", profileID, ds)
	if errors.Is(err, sql.ErrNoRows) {
		return core.EmptyDay(date), nil
	}
	if err != nil {
		return core.DayView{}, fmt.Errorf("plan day %s: %w", ds, err)
	}

	view := core.EmptyDay(date)
	view.Hunger = pd.Hunger
	view.Notes = pd.Notes

	var snacks []snackRow
	if err := sqlx.SelectContext(ctx, q, &snacks,
		"SELECT period, done, ts FROM snacks WHERE profile_id = ? AND date = ?", profileID, ds); err != nil {
		return core.DayView{}, fmt.Errorf("snacks %s: %w", ds, err)
	}
	for _, s := range snacks {
		view.Snacks[s.Period] = core.SnackState{Done: s.Done, TS: s.TS}
	}

	dow := core.Dow(date)
	for _, mt := range core.MealTypes {
		mv := core.MealView{MealType: mt, Alternatives: []core.Alternative{}}

		tm, err := templateMeal(ctx, q, pd.TemplateID, dow, mt)
		if err != nil {
			return core.DayView{}, err
		}
		if tm != nil {
			mv.Proposed = &core.Proposal{Title: tm.Title, Label: tm.ProposedLabel, Items: tm.ProposedItems}
			if err := sqlx.SelectContext(ctx, q, &mv.Alternatives,
				`SELECT id, title, label, items, calories FROM template_meal_alternatives
				 WHERE template_meal_id = ? ORDER BY id`, tm.ID); err != nil {
				return core.DayView{}, fmt.Errorf("alternatives for meal %d: %w", tm.ID, err)
			}
		}

		var ch core.Chosen
		err = sqlx.GetContext(ctx, q, &ch,
			`SELECT chosen_source, chosen_title, chosen_label, chosen_items, notes, ts
			 FROM day_meals WHERE profile_id = ? AND date = ? AND meal_type = ?
			 ORDER BY id DESC LIMIT 1`, profileID, ds, mt)
		switch {
		case err == nil:
			mv.Chosen = &ch
		case errors.Is(err, sql.ErrNoRows):
		default:
			return core.DayView{}, fmt.Errorf("choice %s %s: %w", ds, mt, err)
		}

		view.Meals = append(view.Meals, mv)
	}
	return view, nil
}
