package service

import (
	"context"

	"github.com/dietplan/dietplan/internal/core"
	"github.com/dietplan/dietplan/internal/planner"
)

// authorizeTemplate allows any registered caller on a shared template and
// requires write on the owner for a profile template.
func (s *Service) authorizeTemplate(ctx context.Context, caller string, owner *int64) error {
	if owner == nil {
		_, err := s.subject(ctx, caller)
		return err
	}
	_, err := s.authorize(ctx, caller, *owner, true)
	return err
}

// CreateTemplateRequest is the create_template payload. A nil owner makes the template shared.
type CreateTemplateRequest struct {
	OwnerProfileID *int64 `json:"owner_profile_id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
}

// CreateTemplateResult carries the new template id.
type CreateTemplateResult struct {
	TemplateID int64 `json:"template_id"`
}

// CreateTemplate stores a new, inactive template.
func (s *Service) CreateTemplate(ctx context.Context, caller string, req CreateTemplateRequest) (CreateTemplateResult, error) {
	if err := s.authorizeTemplate(ctx, caller, req.OwnerProfileID); err != nil {
		return CreateTemplateResult{}, err
	}
	id, err := s.plan.CreateTemplate(ctx, planner.TemplateInput{
		ProfileID:   req.OwnerProfileID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return CreateTemplateResult{}, err
	}
	return CreateTemplateResult{TemplateID: id}, nil
}

// AddTemplateMealRequest is the add_template_meal payload.
type AddTemplateMealRequest struct {
	TemplateID    int64              `json:"template_id"`
	Dow           int                `json:"dow"`
	MealType      core.MealType      `json:"meal_type"`
	Title         string             `json:"title"`
	Label         string             `json:"label"`
	Items         string             `json:"items"`
	Calories      *int64             `json:"calories"`
	Required      bool               `json:"required"`
	DefaultSource core.DefaultSource `json:"default_source"`
}

// AddTemplateMealResult carries the new template meal id.
type AddTemplateMealResult struct {
	TemplateMealID int64 `json:"template_meal_id"`
}

// AddTemplateMeal adds a slot proposal to a template.
func (s *Service) AddTemplateMeal(ctx context.Context, caller string, req AddTemplateMealRequest) (AddTemplateMealResult, error) {
	t, err := s.plan.Template(ctx, req.TemplateID)
	if err != nil {
		return AddTemplateMealResult{}, err
	}
	if err := s.authorizeTemplate(ctx, caller, t.ProfileID); err != nil {
		return AddTemplateMealResult{}, err
	}
	id, err := s.plan.AddTemplateMeal(ctx, planner.TemplateMealInput{
		TemplateID:    req.TemplateID,
		Dow:           req.Dow,
		MealType:      req.MealType,
		Title:         req.Title,
		Label:         req.Label,
		Items:         req.Items,
		Calories:      req.Calories,
		Required:      req.Required,
		DefaultSource: req.DefaultSource,
	})
	if err != nil {
		return AddTemplateMealResult{}, err
	}
	return AddTemplateMealResult{TemplateMealID: id}, nil
}

// AddAlternativeRequest is the add_template_alternative payload.
type AddAlternativeRequest struct {
	TemplateMealID int64  `json:"template_meal_id"`
	Title          string `json:"title"`
	Label          string `json:"label"`
	Items          string `json:"items"`
	Calories       *int64 `json:"calories"`
}

// AddAlternativeResult carries the new alternative id.
type AddAlternativeResult struct {
	AlternativeID int64 `json:"alternative_id"`
}

// AddTemplateAlternative adds a substitute to a template meal.
func (s *Service) AddTemplateAlternative(ctx context.Context, caller string, req AddAlternativeRequest) (AddAlternativeResult, error) {
	tm, err := s.plan.TemplateMeal(ctx, req.TemplateMealID)
	if err != nil {
		return AddAlternativeResult{}, err
	}
	t, err := s.plan.Template(ctx, tm.TemplateID)
	if err != nil {
		return AddAlternativeResult{}, err
	}
	if err := s.authorizeTemplate(ctx, caller, t.ProfileID); err != nil {
		return AddAlternativeResult{}, err
	}
	id, err := s.plan.AddAlternative(ctx, planner.AlternativeInput{
		TemplateMealID: req.TemplateMealID,
		Title:          req.Title,
		Label:          req.Label,
		Items:          req.Items,
		Calories:       req.Calories,
	})
	if err != nil {
		return AddAlternativeResult{}, err
	}
	return AddAlternativeResult{AlternativeID: id}, nil
}

// TemplateRequest names one template.
type TemplateRequest struct {
	TemplateID int64 `json:"template_id"`
}

// ActivateTemplate makes a template the active one of its scope.
func (s *Service) ActivateTemplate(ctx context.Context, caller string, req TemplateRequest) error {
	t, err := s.plan.Template(ctx, req.TemplateID)
	if err != nil {
		return err
	}
	if err := s.authorizeTemplate(ctx, caller, t.ProfileID); err != nil {
		return err
	}
	return s.plan.ActivateTemplate(ctx, req.TemplateID)
}

// ListTemplatesRequest is the list_templates payload.
type ListTemplatesRequest struct {
	OwnerProfileID *int64 `json:"owner_profile_id"`
}

// ListTemplatesResult answers list_templates.
type ListTemplatesResult struct {
	Templates []core.WeekTemplate `json:"templates"`
}

// ListTemplates returns the shared templates and, when an owner is given and
// readable, that owner's templates.
func (s *Service) ListTemplates(ctx context.Context, caller string, req ListTemplatesRequest) (ListTemplatesResult, error) {
	if req.OwnerProfileID == nil {
		if _, err := s.subject(ctx, caller); err != nil {
			return ListTemplatesResult{}, err
		}
	} else if _, err := s.authorize(ctx, caller, *req.OwnerProfileID, false); err != nil {
		return ListTemplatesResult{}, err
	}
	ts, err := s.plan.ListTemplates(ctx, req.OwnerProfileID)
	if err != nil {
		return ListTemplatesResult{}, err
	}
	return ListTemplatesResult{Templates: ts}, nil
}
