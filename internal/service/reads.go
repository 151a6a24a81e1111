package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dietplan/dietplan/internal/core"
	"github.com/dietplan/dietplan/internal/planner"
)

// CapabilitiesResult answers get_capabilities.
type CapabilitiesResult struct {
	SubjectProfileID *int64            `json:"subject_profile_id"`
	Profiles         []core.Capability `json:"profiles"`
}

// Capabilities lists every profile with the caller's rights on it. An
// unregistered caller gets an empty answer rather than an error.
func (s *Service) Capabilities(ctx context.Context, caller string) (CapabilitiesResult, error) {
	subject, err := s.subject(ctx, caller)
	if err != nil {
		if errors.Is(err, core.ErrUnregistered) {
			return CapabilitiesResult{Profiles: []core.Capability{}}, nil
		}
		return CapabilitiesResult{}, err
	}
	caps, err := s.acl.Capabilities(ctx, subject)
	if err != nil {
		return CapabilitiesResult{}, err
	}
	return CapabilitiesResult{SubjectProfileID: &subject, Profiles: caps}, nil
}

// DayRequest is the get_day payload.
type DayRequest struct {
	OwnerProfileID int64  `json:"owner_profile_id"`
	Date           string `json:"date"`
}

// GetDay returns one day of owner's plan.
func (s *Service) GetDay(ctx context.Context, caller string, req DayRequest) (core.DayView, error) {
	if _, err := s.authorize(ctx, caller, req.OwnerProfileID, false); err != nil {
		return core.DayView{}, err
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		return core.DayView{}, err
	}
	return s.plan.GetDay(ctx, req.OwnerProfileID, date)
}

// WeekRequest is the get_week payload. StartDate may be any day of the week.
type WeekRequest struct {
	OwnerProfileID int64  `json:"owner_profile_id"`
	StartDate      string `json:"start_date"`
}

// GetWeek returns the Monday-to-Sunday week containing StartDate.
func (s *Service) GetWeek(ctx context.Context, caller string, req WeekRequest) (planner.Week, error) {
	if _, err := s.authorize(ctx, caller, req.OwnerProfileID, false); err != nil {
		return planner.Week{}, err
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return planner.Week{}, err
	}
	return s.plan.GetWeek(ctx, req.OwnerProfileID, core.WeekStart(start))
}

// NextMealsRequest is the get_next_meals payload.
type NextMealsRequest struct {
	OwnerProfileIDs []int64 `json:"owner_profile_ids"`
	HorizonHours    *int    `json:"horizon_hours"`
}

// UpcomingMeal is one lunch or dinner in the look-ahead window.
type UpcomingMeal struct {
	Type   core.MealType `json:"type"`
	Date   string        `json:"date"`
	Title  string        `json:"title"`
	Status string        `json:"status"`
}

// ProfileMeals groups the upcoming meals of one profile.
type ProfileMeals struct {
	ProfileID   int64          `json:"profile_id"`
	DisplayName string         `json:"display_name"`
	Upcoming    []UpcomingMeal `json:"upcoming"`
}

// NextMealsResult answers get_next_meals.
type NextMealsResult struct {
	Now      string         `json:"now"`
	Horizon  string         `json:"horizon"`
	Profiles []ProfileMeals `json:"profiles"`
}

const timestampLayout = "2006-01-02T15:04:05"

// StatusPlanned marks a slot with no recorded choice yet.
const StatusPlanned = "planned"

// NextMeals lists lunch and dinner for every requested owner from today
// through the day the horizon ends on. Owners the caller cannot read are
// left out silently.
func (s *Service) NextMeals(ctx context.Context, caller string, req NextMealsRequest) (NextMealsResult, error) {
	subject, err := s.subject(ctx, caller)
	if err != nil {
		return NextMealsResult{}, err
	}
	hours := DefaultHorizonHours
	if req.HorizonHours != nil {
		hours = *req.HorizonHours
	}
	if hours < 0 || hours > MaxHorizonHours {
		return NextMealsResult{}, fmt.Errorf("%w: horizon_hours must be within 0..%d", core.ErrInvalidInput, MaxHorizonHours)
	}

	now := s.now()
	horizon := now.Add(time.Duration(hours) * time.Hour)
	res := NextMealsResult{
		Now:      now.Format(timestampLayout),
		Horizon:  horizon.Format(timestampLayout),
		Profiles: []ProfileMeals{},
	}

	first := s.today()
	last := time.Date(horizon.Year(), horizon.Month(), horizon.Day(), 0, 0, 0, 0, time.UTC)

	seen := make(map[int64]bool, len(req.OwnerProfileIDs))
	for _, owner := range req.OwnerProfileIDs {
		if seen[owner] {
			continue
		}
		seen[owner] = true
		ok, err := s.acl.CanRead(ctx, owner, subject)
		if err != nil {
			return NextMealsResult{}, err
		}
		if !ok {
			continue
		}
		p, err := s.dir.Get(ctx, owner)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return NextMealsResult{}, err
		}

		pm := ProfileMeals{ProfileID: owner, DisplayName: p.DisplayName, Upcoming: []UpcomingMeal{}}
		for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
			day, err := s.plan.GetDay(ctx, owner, d)
			if err != nil {
				return NextMealsResult{}, err
			}
			for _, mt := range []core.MealType{core.Lunch, core.Dinner} {
				m, ok := day.Meal(mt)
				if !ok {
					continue
				}
				pm.Upcoming = append(pm.Upcoming, upcoming(day.Date, m))
			}
		}
		res.Profiles = append(res.Profiles, pm)
	}
	return res, nil
}

func upcoming(date string, m core.MealView) UpcomingMeal {
	u := UpcomingMeal{Type: m.MealType, Date: date, Status: StatusPlanned}
	switch {
	case m.Chosen != nil:
		u.Status = string(m.Chosen.Source)
		if m.Chosen.Title != nil {
			u.Title = *m.Chosen.Title
		}
	case m.Proposed != nil && m.Proposed.Title != nil:
		u.Title = *m.Proposed.Title
	}
	return u
}
