// Package apperr holds the error taxonomy shared by the resolver, the sales
// handlers and the stores. Every failure that reaches the transport boundary
// wraps exactly one of the sentinels below.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrSubjectNotProvisioned = errors.New("subject not provisioned")
	ErrUserDisabled          = errors.New("user disabled")
	ErrCompanyDisabled       = errors.New("company disabled")
	ErrForbidden             = errors.New("forbidden")
	ErrNotFound              = errors.New("not found")
	ErrValidation            = errors.New("validation failed")
	ErrStoreUnavailable      = errors.New("store unavailable")
)

// Kind values are part of the public API; clients branch on them.
const (
	KindUnauthenticated       = "unauthenticated"
	KindSubjectNotProvisioned = "subject_not_provisioned"
	KindUserDisabled          = "user_disabled"
	KindCompanyDisabled       = "company_disabled"
	KindForbidden             = "forbidden"
	KindNotFound              = "not_found"
	KindValidation            = "validation_failed"
	KindStoreUnavailable      = "store_unavailable"
	KindInternal              = "internal"
)

// ValidationError describes a rejected payload. MissingIDs is set when the
// payload referenced ids that do not exist for the caller's company.
type ValidationError struct {
	Message    string
	MissingIDs []int64
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError with a formatted message.
func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// MissingReferences reports ids that were requested but not found. The ids
// are de-duplicated and sorted so the message is stable.
func MissingReferences(what string, ids []int64) error {
	seen := make(map[int64]struct{}, len(ids))
	uniq := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })
	parts := make([]string, len(uniq))
	for i, id := range uniq {
		parts[i] = fmt.Sprint(id)
	}
	return &ValidationError{
		Message:    fmt.Sprintf("%s not found: [%s]", what, strings.Join(parts, ", ")),
		MissingIDs: uniq,
	}
}

// NotFound wraps ErrNotFound with the entity name and the id the caller asked for.
func NotFound(entity string, id int64) error {
	return fmt.Errorf("%w: %s %d", ErrNotFound, entity, id)
}

// Store wraps a driver or transaction failure as ErrStoreUnavailable unless
// it already carries a taxonomy kind.
func Store(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindInternal {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// KindOf returns the machine-readable kind for err.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrSubjectNotProvisioned):
		return KindSubjectNotProvisioned
	case errors.Is(err, ErrUserDisabled):
		return KindUserDisabled
	case errors.Is(err, ErrCompanyDisabled):
		return KindCompanyDisabled
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	default:
		return KindInternal
	}
}

// HTTPStatus maps err onto the transport status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden, KindUserDisabled, KindCompanyDisabled:
		return http.StatusForbidden
	case KindNotFound, KindSubjectNotProvisioned:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// MissingIDs extracts the missing reference ids from a validation error.
func MissingIDs(err error) []int64 {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.MissingIDs
	}
	return nil
}
