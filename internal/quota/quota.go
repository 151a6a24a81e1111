// Package quota decides whether another free meal may be recorded this week.
package quota

import (
	"fmt"
	"strings"

	"github.com/dietplan/dietplan/internal/core"
)

// Mode selects how the weekly limit is enforced.
type Mode string

const (
	// Hard rejects a free meal once the week's quota is used up.
	Hard Mode = "hard"
	// Soft records it anyway and only reports the overage.
	Soft Mode = "soft"
)

// Defaults used when configuration leaves them unset.
const (
	DefaultPerWeek = 2
	DefaultMode    = Soft
)

// ParseMode accepts "hard" or "soft" in any case. Empty means DefaultMode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultMode, nil
	case Hard:
		return Hard, nil
	case Soft:
		return Soft, nil
	}
	return "", fmt.Errorf("%w: free limit mode %q (want hard or soft)", core.ErrInvalidInput, s)
}

// Policy is the configured weekly free-meal limit.
type Policy struct {
	PerWeek int
	Mode    Mode
}

// Decision is the outcome of evaluating one more free meal.
type Decision struct {
	Allowed bool `json:"allowed"`
	// Used is the count before this meal.
	Used  int `json:"used"`
	Quota int `json:"quota"`
	// Over is true when recording this meal goes past the quota.
	Over bool `json:"over"`
}

// Evaluate reports whether one more free meal is allowed given used so far this week.
func (p Policy) Evaluate(used int) Decision {
	d := Decision{
		Allowed: true,
		Used:    used,
		Quota:   p.PerWeek,
		Over:    used >= p.PerWeek,
	}
	if d.Over && p.Mode == Hard {
		d.Allowed = false
	}
	return d
}

// Err returns core.ErrQuotaExceeded when the decision rejects the meal.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %d of %d used", core.ErrQuotaExceeded, d.Used, d.Quota)
}
