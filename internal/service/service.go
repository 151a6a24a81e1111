// Package service is the command layer between the transport and the
// planner. Every method resolves the caller to a profile, checks the ACL
// and validates its payload before touching the store.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dietplan/dietplan/internal/acl"
	"github.com/dietplan/dietplan/internal/core"
	"github.com/dietplan/dietplan/internal/planner"
	"github.com/dietplan/dietplan/internal/profiles"
	"github.com/dietplan/dietplan/internal/quota"
)

// DefaultHorizonHours is the get_next_meals look-ahead when none is given.
const DefaultHorizonHours = 36

// MaxHorizonHours bounds get_next_meals to two weeks of day reads per owner.
const MaxHorizonHours = 24 * 14

// Service authorizes and runs commands on behalf of a caller identified by
// an external user id.
type Service struct {
	dir    *profiles.Directory
	acl    *acl.Checker
	plan   *planner.Repository
	policy quota.Policy
	log    *zap.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New wires a Service.
func New(dir *profiles.Directory, checker *acl.Checker, plan *planner.Repository, policy quota.Policy, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		dir:    dir,
		acl:    checker,
		plan:   plan,
		policy: policy,
		log:    log.With(zap.String("component", "service")),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// subject resolves the caller's own profile id.
func (s *Service) subject(ctx context.Context, caller string) (int64, error) {
	if caller == "" {
		return 0, core.ErrUnregistered
	}
	id, ok, err := s.dir.Resolve(ctx, caller)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %q", core.ErrUnregistered, caller)
	}
	return id, nil
}

// authorize resolves the caller and checks read or write access on owner.
func (s *Service) authorize(ctx context.Context, caller string, owner int64, write bool) (int64, error) {
	subject, err := s.subject(ctx, caller)
	if err != nil {
		return 0, err
	}
	var allowed bool
	if write {
		allowed, err = s.acl.CanWrite(ctx, owner, subject)
	} else {
		allowed, err = s.acl.CanRead(ctx, owner, subject)
	}
	if err != nil {
		return 0, err
	}
	if !allowed {
		s.log.Debug("access denied",
			zap.Int64("owner", owner), zap.Int64("subject", subject), zap.Bool("write", write))
		return 0, fmt.Errorf("%w: profile %d", core.ErrForbidden, owner)
	}
	return subject, nil
}

func parseDate(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", core.ErrInvalidInput, field)
	}
	return core.ParseDate(v)
}

// today is the server's local calendar date at UTC midnight, comparable with ParseDate results.
func (s *Service) today() time.Time {
	n := s.now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}
