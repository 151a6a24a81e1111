package core

import (
	"errors"
)

// Domain errors. Each maps to a stable wire code via Code.
var (
	ErrUnregistered     = errors.New("caller has no registered profile")
	ErrForbidden        = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrNoActiveTemplate = errors.New("no active template")
	ErrInvalidRange     = errors.New("invalid date range")
	ErrQuotaExceeded    = errors.New("weekly free meal quota exceeded")
	ErrInvalidInput     = errors.New("invalid input")
)

// Wire error codes.
const (
	CodeUnregistered     = "unregistered"
	CodeForbidden        = "forbidden"
	CodeNotFound         = "not_found"
	CodeNoActiveTemplate = "no_active_template"
	CodeInvalidRange     = "invalid_range"
	CodeQuotaExceeded    = "quota_exceeded"
	CodeInvalidFormat    = "invalid_format"
	CodeUnknownCommand   = "unknown_command"
	CodeStoreFailure     = "store_failure"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrUnregistered, CodeUnregistered},
	{ErrForbidden, CodeForbidden},
	{ErrNoActiveTemplate, CodeNoActiveTemplate},
	{ErrNotFound, CodeNotFound},
	{ErrInvalidRange, CodeInvalidRange},
	{ErrQuotaExceeded, CodeQuotaExceeded},
	{ErrInvalidInput, CodeInvalidFormat},
}

// Code returns the wire code for err. Anything not a domain error is a store failure.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeStoreFailure
}
