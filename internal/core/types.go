package core

import (
	"fmt"
	"time"
)

// DateLayout is the on-disk and on-wire calendar date format.
const DateLayout = "2006-01-02"

// MealType is one of the five daily meal slots.
type MealType string

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
	SnackAM   MealType = "snack_am"
	SnackPM   MealType = "snack_pm"
)

// MealTypes lists the slots in display order.
var MealTypes = []MealType{Breakfast, Lunch, Dinner, SnackAM, SnackPM}

// Valid reports whether m is a known slot.
func (m MealType) Valid() bool {
	for _, mt := range MealTypes {
		if m == mt {
			return true
		}
	}
	return false
}

// DefaultSource is what a template slot resolves to when a week is applied.
type DefaultSource string

const (
	DefaultProposed DefaultSource = "proposed"
	DefaultFree     DefaultSource = "free"
	DefaultSkipped  DefaultSource = "skipped"
)

// Valid reports whether d is a known default source.
func (d DefaultSource) Valid() bool {
	return d == DefaultProposed || d == DefaultFree || d == DefaultSkipped
}

// ChoiceSource records where an eaten meal came from.
type ChoiceSource string

const (
	SourceProposed    ChoiceSource = "proposed"
	SourceAlternative ChoiceSource = "alternative"
	SourceFree        ChoiceSource = "free"
	SourceSkipped     ChoiceSource = "skipped"
)

// Valid reports whether s is a known choice source.
func (s ChoiceSource) Valid() bool {
	switch s {
	case SourceProposed, SourceAlternative, SourceFree, SourceSkipped:
		return true
	}
	return false
}

// SnackPeriod is the half of the day a snack belongs to.
type SnackPeriod string

const (
	SnackMorning   SnackPeriod = "am"
	SnackAfternoon SnackPeriod = "pm"
)

// Valid reports whether p is am or pm.
func (p SnackPeriod) Valid() bool {
	return p == SnackMorning || p == SnackAfternoon
}

// User is the identity provider's view of a person. Only these four fields are consumed.
type User struct {
	ID                string `json:"id" yaml:"id"`
	DisplayName       string `json:"display_name" yaml:"display_name"`
	IsActive          bool   `json:"is_active" yaml:"is_active"`
	IsSystemGenerated bool   `json:"is_system_generated" yaml:"is_system_generated"`
}

// Profile is one household member, linked 1:1 to an external identity.
type Profile struct {
	ID             int64   `db:"id" json:"profile_id"`
	ExternalUserID string  `db:"ha_user_id" json:"external_user_id"`
	DisplayName    string  `db:"display_name" json:"display_name"`
	Color          *string `db:"color" json:"color,omitempty"`
	CreatedAt      string  `db:"created_at" json:"created_at"`
}

// AclEntry is a directional grant: Subject may read/write Owner's data.
type AclEntry struct {
	OwnerProfileID   int64 `db:"owner_profile_id" json:"owner_profile_id"`
	SubjectProfileID int64 `db:"subject_profile_id" json:"subject_profile_id"`
	CanRead          bool  `db:"can_read" json:"can_read"`
	CanWrite         bool  `db:"can_write" json:"can_write"`
}

// Capability is one row of the get_capabilities answer.
type Capability struct {
	ProfileID   int64  `json:"profile_id"`
	DisplayName string `json:"display_name"`
	CanRead     bool   `json:"can_read"`
	CanWrite    bool   `json:"can_write"`
}

// WeekTemplate is a reusable weekly plan. A nil ProfileID means shared.
type WeekTemplate struct {
	ID          int64   `db:"id" json:"id"`
	ProfileID   *int64  `db:"profile_id" json:"profile_id"`
	Name        string  `db:"name" json:"name"`
	Description *string `db:"description" json:"description"`
	IsActive    bool    `db:"is_active" json:"is_active"`
	CreatedAt   string  `db:"created_at" json:"created_at"`
	UpdatedAt   string  `db:"updated_at" json:"updated_at"`
}

// TemplateMeal is a template's proposal for one weekday and slot.
type TemplateMeal struct {
	ID            int64         `db:"id" json:"id"`
	TemplateID    int64         `db:"template_id" json:"template_id"`
	Dow           int           `db:"dow" json:"dow"`
	MealType      MealType      `db:"meal_type" json:"meal_type"`
	Title         *string       `db:"title" json:"title"`
	ProposedLabel *string       `db:"proposed_label" json:"label"`
	ProposedItems *string       `db:"proposed_items" json:"items"`
	Calories      *int64        `db:"calories" json:"calories"`
	Required      bool          `db:"required" json:"required"`
	DefaultSource DefaultSource `db:"default_source" json:"default_source"`
}

// Alternative is a substitute proposal for a TemplateMeal.
type Alternative struct {
	ID       int64   `db:"id" json:"id"`
	Title    *string `db:"title" json:"title"`
	Label    *string `db:"label" json:"label,omitempty"`
	Items    *string `db:"items" json:"items"`
	Calories *int64  `db:"calories" json:"calories"`
}

// Proposal is the template side of a MealView.
type Proposal struct {
	Title *string `json:"title"`
	Label *string `json:"label,omitempty"`
	Items *string `json:"items"`
}

// Chosen is the latest recorded choice for a slot.
type Chosen struct {
	Source ChoiceSource `db:"chosen_source" json:"source"`
	Title  *string      `db:"chosen_title" json:"title"`
	Label  *string      `db:"chosen_label" json:"label,omitempty"`
	Items  *string      `db:"chosen_items" json:"items,omitempty"`
	Notes  *string      `db:"notes" json:"notes"`
	TS     *string      `db:"ts" json:"ts"`
}

// MealView joins the proposal, the alternatives and the latest choice for one slot.
type MealView struct {
	MealType     MealType      `json:"meal_type"`
	Proposed     *Proposal     `json:"proposed"`
	Alternatives []Alternative `json:"alternatives"`
	Chosen       *Chosen       `json:"chosen"`
}

// SnackState is the completion state of one snack period.
type SnackState struct {
	Done bool    `json:"done"`
	TS   *string `json:"ts,omitempty"`
}

// DayView is the assembled read model for one profile and date.
type DayView struct {
	Date   string                     `json:"date"`
	Hunger *int                       `json:"hunger"`
	Notes  *string                    `json:"notes"`
	Snacks map[SnackPeriod]SnackState `json:"snacks"`
	Meals  []MealView                 `json:"meals"`
}

// Meal returns the view for slot mt, if present.
func (d DayView) Meal(mt MealType) (MealView, bool) {
	for _, m := range d.Meals {
		if m.MealType == mt {
			return m, true
		}
	}
	return MealView{}, false
}

// EmptyDay is the shell returned when no plan exists for a date.
func EmptyDay(date time.Time) DayView {
	return DayView{
		Date: FormatDate(date),
		Snacks: map[SnackPeriod]SnackState{
			SnackMorning:   {Done: false},
			SnackAfternoon: {Done: false},
		},
		Meals: []MealView{},
	}
}

// ParseDate parses a YYYY-MM-DD date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidInput, s)
	}
	return t, nil
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Dow returns the weekday with Monday=0 .. Sunday=6.
func Dow(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeekStart returns the Monday of the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return d.AddDate(0, 0, -Dow(d))
}

// SameISOWeek reports whether a and b fall in the same ISO week.
func SameISOWeek(a, b time.Time) bool {
	ay, aw := a.ISOWeek()
	by, bw := b.ISOWeek()
	return ay == by && aw == bw
}
