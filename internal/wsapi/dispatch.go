package wsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dietplan/dietplan/internal/core"
	"github.com/dietplan/dietplan/internal/service"
)

// TypePrefix is accepted in front of any command type and stripped.
const TypePrefix = "diet/"

// handler runs one command. raw is the whole request object; handlers decode
// the fields they need and ignore id and type.
type handler func(ctx context.Context, caller string, raw json.RawMessage) (any, error)

// empty is the result of commands that return nothing.
type empty struct{}

var errUnknownCommand = errors.New("unknown command")

func decode[Req any](raw json.RawMessage) (Req, error) {
	var req Req
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	return req, nil
}

// query adapts a service method with a result.
func query[Req, Res any](fn func(context.Context, string, Req) (Res, error)) handler {
	return func(ctx context.Context, caller string, raw json.RawMessage) (any, error) {
		req, err := decode[Req](raw)
		if err != nil {
			return nil, err
		}
		return fn(ctx, caller, req)
	}
}

// command adapts a service method that only reports an error.
func command[Req any](fn func(context.Context, string, Req) error) handler {
	return func(ctx context.Context, caller string, raw json.RawMessage) (any, error) {
		req, err := decode[Req](raw)
		if err != nil {
			return nil, err
		}
		if err := fn(ctx, caller, req); err != nil {
			return nil, err
		}
		return empty{}, nil
	}
}

func handlers(svc *service.Service) map[string]handler {
	return map[string]handler{
		"get_capabilities": func(ctx context.Context, caller string, _ json.RawMessage) (any, error) {
			return svc.Capabilities(ctx, caller)
		},
		"get_day":        query(svc.GetDay),
		"get_week":       query(svc.GetWeek),
		"get_next_meals": query(svc.NextMeals),

		"apply_week_template": query(svc.ApplyWeekTemplate),
		"swap_meal":           command(svc.SwapMeal),
		"set_snack":           command(svc.SetSnack),
		"set_hunger":          command(svc.SetHunger),
		"set_choice":          query(svc.SetChoice),
		"sync_profiles_from_ha": func(ctx context.Context, _ string, raw json.RawMessage) (any, error) {
			req, err := decode[service.SyncRequest](raw)
			if err != nil {
				return nil, err
			}
			return svc.SyncProfiles(ctx, req)
		},

		"create_template":          query(svc.CreateTemplate),
		"add_template_meal":        query(svc.AddTemplateMeal),
		"add_template_alternative": query(svc.AddTemplateAlternative),
		"activate_template":        command(svc.ActivateTemplate),
		"list_templates":           query(svc.ListTemplates),
	}
}

// Request is the envelope every command arrives in. Payload fields sit next to id and type.
type Request struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// ErrorBody is the error half of a failed Response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response answers exactly one Request.
type Response struct {
	ID      int64      `json:"id"`
	Type    string     `json:"type"`
	Success bool       `json:"success"`
	Result  any        `json:"result,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

func result(id int64, v any) Response {
	return Response{ID: id, Type: "result", Success: true, Result: v}
}

func failure(id int64, code, msg string) Response {
	return Response{ID: id, Type: "result", Error: &ErrorBody{Code: code, Message: msg}}
}

// commandType strips the optional prefix.
func commandType(t string) string {
	return strings.TrimPrefix(strings.TrimSpace(t), TypePrefix)
}

// errorCode maps err to its wire code.
func errorCode(err error) string {
	if errors.Is(err, errUnknownCommand) {
		return core.CodeUnknownCommand
	}
	return core.Code(err)
}
