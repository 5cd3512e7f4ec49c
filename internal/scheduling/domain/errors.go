package domain

import (
	"errors"
	"strings"
)

var (
	ErrEntityNotFound    = errors.New("scheduled entity not found")
	ErrDuplicateEntity   = errors.New("duplicate entity id")
	ErrUnknownPredicate  = errors.New("unknown custom predicate")
	ErrUnknownConstraint = errors.New("unknown constraint kind")
	ErrInvalidRecurrence = errors.New("invalid recurrence rule")
	ErrTokenNotFound     = errors.New("rollback token not found")
	ErrInvalidOperation  = errors.New("invalid solution operation")
)

// ValidationError describes a malformed input field.
// It is carried inside result values, never raised.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	if v.Field == "" {
		return v.Message
	}
	return v.Field + ": " + v.Message
}

// JoinValidationErrors renders errs as a single line.
func JoinValidationErrors(errs []ValidationError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}
