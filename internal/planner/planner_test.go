package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dietplan/dietplan/internal/core"
	"github.com/dietplan/dietplan/internal/store"
)

var monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func newRepo(t *testing.T) (*Repository, *store.DB) {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, nil), db
}

// sharedTemplate creates an active shared template with a proposed Monday
// lunch "Pasta", a free Monday dinner and a skipped Tuesday breakfast.
func sharedTemplate(t *testing.T, r *Repository) (templateID, lunchID int64) {
	t.Helper()
	ctx := context.Background()
	id, err := r.CreateTemplate(ctx, TemplateInput{Name: "Standard"})
	require.NoError(t, err)
	require.NoError(t, r.ActivateTemplate(ctx, id))

	lunchID, err = r.AddTemplateMeal(ctx, TemplateMealInput{
		TemplateID: id, Dow: 0, MealType: core.Lunch, Title: "Pasta", Items: "pasta, tomato", Required: true,
	})
	require.NoError(t, err)
	_, err = r.AddTemplateMeal(ctx, TemplateMealInput{
		TemplateID: id, Dow: 0, MealType: core.Dinner, DefaultSource: core.DefaultFree,
	})
	require.NoError(t, err)
	_, err = r.AddTemplateMeal(ctx, TemplateMealInput{
		TemplateID: id, Dow: 1, MealType: core.Breakfast, DefaultSource: core.DefaultSkipped,
	})
	require.NoError(t, err)
	return id, lunchID
}

func count(t *testing.T, db *store.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.GetContext(context.Background(), &n, query, args...))
	return n
}

func TestActiveTemplateFallsBackToShared(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepo(t)

	_, ok, err := r.ActiveTemplateID(ctx, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	shared, _ := sharedTemplate(t, r)
	pid := int64(7)
	got, ok, err := r.ActiveTemplateID(ctx, &pid)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, shared, got)

	own, err := r.CreateTemplate(ctx, TemplateInput{ProfileID: &pid, Name: "Mine"})
	require.NoError(t, err)
	require.NoError(t, r.ActivateTemplate(ctx, own))
	got, ok, err = r.ActiveTemplateID(ctx, &pid)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, own, got)

	got, _, err = r.ActiveTemplateID(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, shared, got)
}

func TestActivateTemplateKeepsOneActivePerScope(t *testing.T) {
	ctx := context.Background()
	r, db := newRepo(t)
	pid := int64(1)

	a, err := r.CreateTemplate(ctx, TemplateInput{Name: "A"})
	require.NoError(t, err)
	b, err := r.CreateTemplate(ctx, TemplateInput{Name: "B"})
	require.NoError(t, err)
	mine, err := r.CreateTemplate(ctx, TemplateInput{ProfileID: &pid, Name: "Mine"})
	require.NoError(t, err)

	require.NoError(t, r.ActivateTemplate(ctx, mine))
	require.NoError(t, r.ActivateTemplate(ctx, a))
	require.NoError(t, r.ActivateTemplate(ctx, b))

	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM week_templates WHERE profile_id IS NULL AND is_active = 1"))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM week_templates WHERE profile_id = ? AND is_active = 1", pid))

	tpl, err := r.Template(ctx, b)
	require.NoError(t, err)
	assert.True(t, tpl.IsActive)

	err = r.ActivateTemplate(ctx, 999)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTemplateValidation(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepo(t)

	_, err := r.CreateTemplate(ctx, TemplateInput{Name: "  "})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	id, err := r.CreateTemplate(ctx, TemplateInput{Name: "T"})
	require.NoError(t, err)

	_, err = r.AddTemplateMeal(ctx, TemplateMealInput{TemplateID: id, Dow: 7, MealType: core.Lunch})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	_, err = r.AddTemplateMeal(ctx, TemplateMealInput{TemplateID: id, Dow: 0, MealType: "brunch"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	_, err = r.AddTemplateMeal(ctx, TemplateMealInput{TemplateID: id, Dow: 0, MealType: core.Lunch, DefaultSource: "maybe"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	_, err = r.AddTemplateMeal(ctx, TemplateMealInput{TemplateID: 404, Dow: 0, MealType: core.Lunch})
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = r.AddAlternative(ctx, AlternativeInput{TemplateMealID: 404, Title: "Rice"})
	assert.ErrorIs(t, err, core.ErrNotFound)

	mid, err := r.AddTemplateMeal(ctx, TemplateMealInput{TemplateID: id, Dow: 2, MealType: core.Dinner})
	require.NoError(t, err)
	tm, err := r.TemplateMeal(ctx, mid)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultProposed, tm.DefaultSource)

	meals, err := r.TemplateMeals(ctx, id)
	require.NoError(t, err)
	assert.Len(t, meals, 1)
}

func TestListTemplates(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepo(t)
	p1, p2 := int64(1), int64(2)

	_, err := r.CreateTemplate(ctx, TemplateInput{Name: "Shared"})
	require.NoError(t, err)
	_, err = r.CreateTemplate(ctx, TemplateInput{ProfileID: &p1, Name: "One"})
	require.NoError(t, err)
	_, err = r.CreateTemplate(ctx, TemplateInput{ProfileID: &p2, Name: "Two"})
	require.NoError(t, err)

	shared, err := r.ListTemplates(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, shared, 1)

	forOne, err := r.ListTemplates(ctx, &p1)
	require.NoError(t, err)
	require.Len(t, forOne, 2)
	assert.Equal(t, "Shared", forOne[0].Name)
	assert.Equal(t, "One", forOne[1].Name)
}

func TestApplyWeekTemplateIdempotentDaysAppendOnlyChoices(t *testing.T) {
	ctx := context.Background()
	r, db := newRepo(t)
	tid, _ := sharedTemplate(t, r)

	require.NoError(t, r.ApplyWeekTemplate(ctx, 1, monday, tid))
	assert.Equal(t, 7, count(t, db, "SELECT COUNT(*) FROM plan_days WHERE profile_id = 1"))
	assert.Equal(t, 2, count(t, db, "SELECT COUNT(*) FROM day_meals WHERE profile_id = 1"))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM free_meals WHERE profile_id = 1"))

	require.NoError(t, r.SetHunger(ctx, 1, monday, 4))
	require.NoError(t, r.ApplyWeekTemplate(ctx, 1, monday, tid))

	assert.Equal(t, 7, count(t, db, "SELECT COUNT(*) FROM plan_days WHERE profile_id = 1"))
	assert.Equal(t, 4, count(t, db, "SELECT COUNT(*) FROM day_meals WHERE profile_id = 1"))
	assert.Equal(t, 2, count(t, db, "SELECT COUNT(*) FROM free_meals WHERE profile_id = 1"))
	assert.Equal(t, 4, count(t, db, "SELECT hunger FROM plan_days WHERE profile_id = 1 AND date = '2024-03-04'"))

	var title string
	require.NoError(t, db.GetContext(ctx, &title,
		"SELECT chosen_title FROM day_meals WHERE chosen_source = 'skipped' ORDER BY id LIMIT 1"))
	assert.Equal(t, "SKIP – breakfast", title)
	require.NoError(t, db.GetContext(ctx, &title,
		"SELECT chosen_title FROM day_meals WHERE chosen_source = 'free' ORDER BY id LIMIT 1"))
	assert.Equal(t, "FREE – dinner", title)
}

func TestApplyWeekTemplateTwoProfilesSameDates(t *testing.T) {
	ctx := context.Background()
	r, db := newRepo(t)
	tid, _ := sharedTemplate(t, r)

	require.NoError(t, r.ApplyWeekTemplate(ctx, 1, monday, tid))
	require.NoError(t, r.ApplyWeekTemplate(ctx, 2, monday, tid))
	assert.Equal(t, 14, count(t, db, "SELECT COUNT(*) FROM plan_days"))
}

func TestApplyWeekTemplateUnknownTemplate(t *testing.T) {
	r, db := newRepo(t)
	err := r.ApplyWeekTemplate(context.Background(), 1, monday, 42)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, 0, count(t, db, "SELECT COUNT(*) FROM plan_days"))
}

func TestGetDayEmptyShell(t *testing.T) {
	r, _ := newRepo(t)
	day, err := r.GetDay(context.Background(), 1, monday)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", day.Date)
	assert.Empty(t, day.Meals)
	assert.NotNil(t, day.Meals)
	assert.Nil(t, day.Hunger)
	assert.False(t, day.Snacks[core.SnackMorning].Done)
	assert.False(t, day.Snacks[core.SnackAfternoon].Done)
}

func TestProposedThenChosen(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepo(t)
	tid, lunchID := sharedTemplate(t, r)
	_, err := r.AddAlternative(ctx, AlternativeInput{TemplateMealID: lunchID, Title: "Rice", Items: "rice"})
	require.NoError(t, err)

	require.NoError(t, r.ApplyWeekTemplate(ctx, 1, monday, tid))

	day, err := r.GetDay(ctx, 1, monday)
	require.NoError(t, err)
	require.Len(t, day.Meals, 5)
	lunch, ok := day.Meal(core.Lunch)
	require.True(t, ok)
	require.NotNil(t, lunch.Proposed)
	assert.Equal(t, "Pasta", *lunch.Proposed.Title)
	assert.Nil(t, lunch.Chosen)
	require.Len(t, lunch.Alternatives, 1)
	assert.Equal(t, "Rice", *lunch.Alternatives[0].Title)

	dinner, _ := day.Meal(core.Dinner)
	require.NotNil(t, dinner.Chosen)
	assert.Equal(t, core.SourceFree, dinner.Chosen.Source)

	breakfast, _ := day.Meal(core.Breakfast)
	assert.Nil(t, breakfast.Proposed)
	assert.Nil(t, breakfast.Chosen)

	require.NoError(t, r.SetChoice(ctx, ChoiceInput{
		ProfileID: 1, Date: monday, MealType: core.Lunch, Source: core.SourceProposed, Title: "Pasta",
	}))
	day, err = r.GetDay(ctx, 1, monday)
	require.NoError(t, err)
	lunch, _ = day.Meal(core.Lunch)
	require.NotNil(t, lunch.Chosen)
	assert.Equal(t, core.SourceProposed, lunch.Chosen.Source)
	assert.Equal(t, "Pasta", *lunch.Chosen.Title)
}

func TestLatestChoiceWins(t *testing.T) {
	ctx := context.Background()
	r, db := newRepo(t)
	tid, _ := sharedTemplate(t, r)
	require.NoError(t, r.ApplyWeekTemplate(ctx, 1, monday, tid))

	for _, title := range []string{"First", "Second", "Third"} {
		require.NoError(t, r.SetChoice(ctx, ChoiceInput{
			ProfileID: 1, Date: monday, MealType: core.Breakfast, Source: core.SourceProposed, Title: title,
		}))
	}
	assert.Equal(t, 3, count(t, db, "SELECT COUNT(*) FROM day_meals WHERE meal_type = 'breakfast' AND date = '2024-03-04'"))

	day, err := r.GetDay(ctx, 1, monday)
	require.NoError(t, err)
	b, _ := day.Meal(core.Breakfast)
	require.NotNil(t, b.Chosen)
	assert.Equal(t, "Third", *b.Chosen.Title)
}

func TestSetChoiceCopiesAlternative(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepo(t)
	tid, lunchID := sharedTemplate(t, r)
	altID, err := r.AddAlternative(ctx, AlternativeInput{TemplateMealID: lunchID, Title: "Rice", Label: "light", Items: "rice, peas"})
	require.NoError(t, err)
	require.NoError(t, r.ApplyWeekTemplate(ctx, 1, monday, tid))

	require.NoError(t, r.SetChoice(ctx, ChoiceInput{
		ProfileID: 1, Date: monday, MealType: core.Lunch, Source: core.SourceAlternative, AlternativeID: &altID,
	}))
	day, err := r.GetDay(ctx, 1, monday)
	require.NoError(t, err)
	lunch, _ := day.Meal(core.Lunch)
	require.NotNil(t, lunch.Chosen)
	assert.Equal(t, "Rice", *lunch.Chosen.Title)
	assert.Equal(t, "light", *lunch.Chosen.Label)
	assert.Equal(t, "rice, peas", *lunch.Chosen.Items)

	require.NoError(t, r.SetChoice(ctx, ChoiceInput{
		ProfileID: 1, Date: monday, MealType: core.Lunch, Source: core.SourceAlternative, AlternativeID: &altID, Title: "Risotto",
	}))
	day, err = r.GetDay(ctx, 1, monday)
	require.NoError(t, err)
	lunch, _ = day.Meal(core.Lunch)
	assert.Equal(t, "Risotto", *lunch.Chosen.Title)
	assert.Equal(t, "rice, peas", *lunch.Chosen.Items)

	missing := int64(999)
	err = r.SetChoice(ctx, ChoiceInput{
		ProfileID: 1, Date: monday, MealType: core.Lunch, Source: core.SourceAlternative, AlternativeID: &missing,
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSetChoiceFreeLogsUsage(t *testing.T) {
	ctx := context.Background()
	r, db := newRepo(t)

	require.NoError(t, r.SetChoice(ctx, ChoiceInput{
		ProfileID: 1, Date: monday, MealType: core.Dinner, Source: core.SourceFree, Title: "Pizza", Notes: "friends",
	}))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM free_meals WHERE profile_id = 1 AND notes = 'friends'"))

	err := r.SetChoice(ctx, ChoiceInput{ProfileID: 1, Date: monday, MealType: core.Dinner, Source: "eaten"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM day_meals"))
}

func TestFreeMealsUsedInWeekWindow(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepo(t)

	dates := []time.Time{
		monday.AddDate(0, 0, -1), // previous Sunday
		monday,
		monday.AddDate(0, 0, 3),
		monday.AddDate(0, 0, 6), // Sunday
		monday.AddDate(0, 0, 7), // next Monday
	}
	for _, d := range dates {
		require.NoError(t, r.SetChoice(ctx, ChoiceInput{ProfileID: 1, Date: d, MealType: core.Dinner, Source: core.SourceFree}))
	}
	require.NoError(t, r.SetChoice(ctx, ChoiceInput{ProfileID: 2, Date: monday, MealType: core.Dinner, Source: core.SourceFree}))

	for _, anchor := range []time.Time{monday, monday.AddDate(0, 0, 2), monday.AddDate(0, 0, 6)} {
		n, err := r.FreeMealsUsedInWeek(ctx, 1, anchor)
		require.NoError(t, err)
		assert.Equal(t, 3, n, core.FormatDate(anchor))
	}
}

func TestSnackUpsertRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, db := newRepo(t)
	tid, _ := sharedTemplate(t, r)
	require.NoError(t, r.ApplyWeekTemplate(ctx, 1, monday, tid))

	require.NoError(t, r.SetSnack(ctx, 1, monday, core.SnackMorning, true))
	day, err := r.GetDay(ctx, 1, monday)
	require.NoError(t, err)
	assert.True(t, day.Snacks[core.SnackMorning].Done)
	assert.NotNil(t, day.Snacks[core.SnackMorning].TS)
	assert.False(t, day.Snacks[core.SnackAfternoon].Done)

	require.NoError(t, r.SetSnack(ctx, 1, monday, core.SnackMorning, false))
	day, err = r.GetDay(ctx, 1, monday)
	require.NoError(t, err)
	assert.False(t, day.Snacks[core.SnackMorning].Done)
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM snacks"))

	assert.ErrorIs(t, r.SetSnack(ctx, 1, monday, "noon", true), core.ErrInvalidInput)
}

func TestSetHunger(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepo(t)

	assert.ErrorIs(t, r.SetHunger(ctx, 1, monday, 3), core.ErrNotFound)

	tid, _ := sharedTemplate(t, r)
	require.NoError(t, r.ApplyWeekTemplate(ctx, 1, monday, tid))
	assert.ErrorIs(t, r.SetHunger(ctx, 1, monday, 0), core.ErrInvalidInput)
	assert.ErrorIs(t, r.SetHunger(ctx, 1, monday, 6), core.ErrInvalidInput)

	require.NoError(t, r.SetHunger(ctx, 1, monday, 3))
	day, err := r.GetDay(ctx, 1, monday)
	require.NoError(t, err)
	require.NotNil(t, day.Hunger)
	assert.Equal(t, 3, *day.Hunger)
}

func TestGetWeek(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepo(t)
	tid, _ := sharedTemplate(t, r)
	require.NoError(t, r.ApplyWeekTemplate(ctx, 1, monday, tid))

	w, err := r.GetWeek(ctx, 1, monday)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", w.Start)
	require.Len(t, w.Days, 7)
	assert.Equal(t, "2024-03-10", w.Days[6].Date)

	tue := w.Days[1]
	b, _ := tue.Meal(core.Breakfast)
	require.NotNil(t, b.Chosen)
	assert.Equal(t, core.SourceSkipped, b.Chosen.Source)

	next, err := r.GetWeek(ctx, 1, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	for _, d := range next.Days {
		assert.Empty(t, d.Meals)
	}
}

func TestSwapMeal(t *testing.T) {
	ctx := context.Background()
	r, db := newRepo(t)
	tid, _ := sharedTemplate(t, r)
	require.NoError(t, r.ApplyWeekTemplate(ctx, 1, monday, tid))
	before := count(t, db, "SELECT COUNT(*) FROM day_meals")

	assert.ErrorIs(t, r.SwapMeal(ctx, 1, monday, monday, core.Lunch), core.ErrInvalidRange)
	assert.ErrorIs(t, r.SwapMeal(ctx, 1, monday.AddDate(0, 0, 2), monday, core.Lunch), core.ErrInvalidRange)
	assert.ErrorIs(t, r.SwapMeal(ctx, 1, monday.AddDate(0, 0, 6), monday.AddDate(0, 0, 7), core.Lunch), core.ErrInvalidRange)
	assert.Equal(t, 0, count(t, db, "SELECT COUNT(*) FROM swaps"))

	require.NoError(t, r.SwapMeal(ctx, 1, monday, monday.AddDate(0, 0, 2), core.Lunch))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM swaps"))
	assert.Equal(t, before, count(t, db, "SELECT COUNT(*) FROM day_meals"))

	day, err := r.GetDay(ctx, 1, monday)
	require.NoError(t, err)
	lunch, _ := day.Meal(core.Lunch)
	assert.Equal(t, "Pasta", *lunch.Proposed.Title)
	assert.Nil(t, lunch.Chosen)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	r, _ := newRepo(t)

	avg, err := r.HungerAverage(ctx, 1, monday)
	require.NoError(t, err)
	assert.Nil(t, avg)

	tid, _ := sharedTemplate(t, r)
	require.NoError(t, r.ApplyWeekTemplate(ctx, 1, monday, tid))
	require.NoError(t, r.SetHunger(ctx, 1, monday, 2))
	require.NoError(t, r.SetHunger(ctx, 1, monday.AddDate(0, 0, 1), 3))
	require.NoError(t, r.SetHunger(ctx, 1, monday.AddDate(0, 0, 2), 3))

	avg, err = r.HungerAverage(ctx, 1, monday.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.NotNil(t, avg)
	assert.Equal(t, 2.7, *avg)

	// Monday falls out of the 7-day window ending the following Monday.
	avg, err = r.HungerAverage(ctx, 1, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.NotNil(t, avg)
	assert.Equal(t, 3.0, *avg)

	n, err := r.SnacksCompleted(ctx, 1, monday)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	require.NoError(t, r.SetSnack(ctx, 1, monday, core.SnackMorning, true))
	require.NoError(t, r.SetSnack(ctx, 1, monday, core.SnackAfternoon, true))
	n, err = r.SnacksCompleted(ctx, 1, monday)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
