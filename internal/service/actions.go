package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dietplan/dietplan/internal/core"
	"github.com/dietplan/dietplan/internal/planner"
	"github.com/dietplan/dietplan/internal/profiles"
)

// ApplyRequest is the apply_week_template payload. Without TemplateID the
// owner's active template, or else the shared one, is used.
type ApplyRequest struct {
	OwnerProfileID int64  `json:"owner_profile_id"`
	StartDate      string `json:"start_date"`
	TemplateID     *int64 `json:"template_id"`
}

// ApplyResult reports which week and template were applied.
type ApplyResult struct {
	Start      string `json:"start"`
	TemplateID int64  `json:"template_id"`
}

// ApplyWeekTemplate plans the week containing StartDate from a template.
func (s *Service) ApplyWeekTemplate(ctx context.Context, caller string, req ApplyRequest) (ApplyResult, error) {
	if _, err := s.authorize(ctx, caller, req.OwnerProfileID, true); err != nil {
		return ApplyResult{}, err
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return ApplyResult{}, err
	}
	monday := core.WeekStart(start)

	var tid int64
	if req.TemplateID != nil && *req.TemplateID != 0 {
		t, err := s.plan.Template(ctx, *req.TemplateID)
		if err != nil {
			return ApplyResult{}, err
		}
		if t.ProfileID != nil && *t.ProfileID != req.OwnerProfileID {
			return ApplyResult{}, fmt.Errorf("%w: template %d belongs to profile %d", core.ErrForbidden, t.ID, *t.ProfileID)
		}
		tid = t.ID
	} else {
		owner := req.OwnerProfileID
		id, ok, err := s.plan.ActiveTemplateID(ctx, &owner)
		if err != nil {
			return ApplyResult{}, err
		}
		if !ok {
			return ApplyResult{}, fmt.Errorf("%w for profile %d", core.ErrNoActiveTemplate, owner)
		}
		tid = id
	}

	if err := s.plan.ApplyWeekTemplate(ctx, req.OwnerProfileID, monday, tid); err != nil {
		return ApplyResult{}, err
	}
	return ApplyResult{Start: core.FormatDate(monday), TemplateID: tid}, nil
}

// SwapRequest is the swap_meal payload.
type SwapRequest struct {
	OwnerProfileID int64         `json:"owner_profile_id"`
	DateFrom       string        `json:"date_from"`
	DateTo         string        `json:"date_to"`
	MealType       core.MealType `json:"meal_type"`
}

// SwapMeal records a forward swap inside one week.
func (s *Service) SwapMeal(ctx context.Context, caller string, req SwapRequest) error {
	if _, err := s.authorize(ctx, caller, req.OwnerProfileID, true); err != nil {
		return err
	}
	from, err := parseDate("date_from", req.DateFrom)
	if err != nil {
		return err
	}
	to, err := parseDate("date_to", req.DateTo)
	if err != nil {
		return err
	}
	return s.plan.SwapMeal(ctx, req.OwnerProfileID, from, to, req.MealType)
}

// SnackRequest is the set_snack payload.
type SnackRequest struct {
	OwnerProfileID int64            `json:"owner_profile_id"`
	Date           string           `json:"date"`
	Period         core.SnackPeriod `json:"period"`
	Done           bool             `json:"done"`
}

// SetSnack marks a snack period done or not done.
func (s *Service) SetSnack(ctx context.Context, caller string, req SnackRequest) error {
	if _, err := s.authorize(ctx, caller, req.OwnerProfileID, true); err != nil {
		return err
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		return err
	}
	return s.plan.SetSnack(ctx, req.OwnerProfileID, date, req.Period, req.Done)
}

// HungerRequest is the set_hunger payload.
type HungerRequest struct {
	OwnerProfileID int64  `json:"owner_profile_id"`
	Date           string `json:"date"`
	Score          int    `json:"score"`
}

// SetHunger scores a planned day from 1 to 5.
func (s *Service) SetHunger(ctx context.Context, caller string, req HungerRequest) error {
	if _, err := s.authorize(ctx, caller, req.OwnerProfileID, true); err != nil {
		return err
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		return err
	}
	return s.plan.SetHunger(ctx, req.OwnerProfileID, date, req.Score)
}

// ChoiceRequest is the set_choice payload.
type ChoiceRequest struct {
	OwnerProfileID int64             `json:"owner_profile_id"`
	Date           string            `json:"date"`
	MealType       core.MealType     `json:"meal_type"`
	Source         core.ChoiceSource `json:"source"`
	Title          string            `json:"title"`
	AlternativeID  *int64            `json:"alternative_id"`
	Notes          string            `json:"notes"`
}

// ChoiceResult is the owner's free-meal standing after the choice.
type ChoiceResult struct {
	FreeMealsUsed  int  `json:"free_meals_used"`
	FreeMealsQuota int  `json:"free_meals_quota"`
	OverQuota      bool `json:"over_quota"`
}

// SetChoice records what the owner ate. A free choice is checked against the
// weekly quota first; hard mode rejects it once the quota is used up.
// The check and the insert are not atomic.
func (s *Service) SetChoice(ctx context.Context, caller string, req ChoiceRequest) (ChoiceResult, error) {
	if _, err := s.authorize(ctx, caller, req.OwnerProfileID, true); err != nil {
		return ChoiceResult{}, err
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		return ChoiceResult{}, err
	}
	if !req.MealType.Valid() {
		return ChoiceResult{}, fmt.Errorf("%w: unknown meal type %q", core.ErrInvalidInput, req.MealType)
	}
	if !req.Source.Valid() {
		return ChoiceResult{}, fmt.Errorf("%w: unknown source %q", core.ErrInvalidInput, req.Source)
	}

	if req.Source == core.SourceFree {
		used, err := s.plan.FreeMealsUsedInWeek(ctx, req.OwnerProfileID, date)
		if err != nil {
			return ChoiceResult{}, err
		}
		if err := s.policy.Evaluate(used).Err(); err != nil {
			s.log.Info("free meal rejected",
				zap.Int64("profile_id", req.OwnerProfileID), zap.Int("used", used), zap.Int("quota", s.policy.PerWeek))
			return ChoiceResult{}, err
		}
	}

	err = s.plan.SetChoice(ctx, planner.ChoiceInput{
		ProfileID:     req.OwnerProfileID,
		Date:          date,
		MealType:      req.MealType,
		Source:        req.Source,
		Title:         req.Title,
		AlternativeID: req.AlternativeID,
		Notes:         req.Notes,
	})
	if err != nil {
		return ChoiceResult{}, err
	}

	used, err := s.plan.FreeMealsUsedInWeek(ctx, req.OwnerProfileID, date)
	if err != nil {
		return ChoiceResult{}, err
	}
	return ChoiceResult{
		FreeMealsUsed:  used,
		FreeMealsQuota: s.policy.PerWeek,
		OverQuota:      used > s.policy.PerWeek,
	}, nil
}

// SyncRequest is the sync_profiles_from_ha payload.
type SyncRequest struct {
	PruneMissing  bool `json:"prune_missing"`
	IncludeSystem bool `json:"include_system"`
}

// SyncResult carries the number of stored profiles after a sync.
type SyncResult struct {
	Count int `json:"count"`
}

// SyncProfiles pulls users from the identity provider. It is administrative
// and performs no ACL check.
func (s *Service) SyncProfiles(ctx context.Context, req SyncRequest) (SyncResult, error) {
	n, err := s.dir.SyncFromIdentityProvider(ctx, profiles.SyncOptions{
		IncludeSystem: req.IncludeSystem,
		PruneMissing:  req.PruneMissing,
	})
	if err != nil {
		return SyncResult{}, err
	}
	return SyncResult{Count: n}, nil
}

// isNotFound reports whether err is a missing-row domain error.
func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
