package planner

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dietplan/dietplan/internal/core"
)

// HungerAverage averages the hunger scores of the 7 days ending at asOf,
// rounded to one decimal. It is nil when no day in the window was scored.
func (r *Repository) HungerAverage(ctx context.Context, profileID int64, asOf time.Time) (*float64, error) {
	var avg *float64
	err := r.db.GetContext(ctx, &avg,
		`SELECT AVG(hunger) FROM plan_days
		 WHERE profile_id = ? AND hunger IS NOT NULL AND date BETWEEN ? AND ?`,
		profileID, core.FormatDate(asOf.AddDate(0, 0, -6)), core.FormatDate(asOf))
	if err != nil {
		return nil, fmt.Errorf("hunger average: %w", err)
	}
	if avg == nil {
		return nil, nil
	}
	v := math.Round(*avg*10) / 10
	return &v, nil
}

// SnacksCompleted counts the snack periods marked done on date.
func (r *Repository) SnacksCompleted(ctx context.Context, profileID int64, date time.Time) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		"SELECT COALESCE(SUM(done), 0) FROM snacks WHERE profile_id = ? AND date = ?",
		profileID, core.FormatDate(date))
	if err != nil {
		return 0, fmt.Errorf("snacks completed: %w", err)
	}
	return n, nil
}
