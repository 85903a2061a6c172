package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"plantops.io/mis/internal/api/middleware"
	"plantops.io/mis/internal/domain"
	apperrors "plantops.io/mis/internal/pkg/errors"
	"plantops.io/mis/internal/repository"
)

// bindJSON decodes the request body into dst, reporting a 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeValidationFailed, "request body is not valid JSON for this endpoint", http.StatusBadRequest))
		return false
	}
	return true
}

// pathID returns a UUID path parameter, reporting INVALID_ID otherwise.
func pathID(c *gin.Context, name string) (string, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := uuid.Parse(raw)
	if err != nil {
		_ = c.Error(apperrors.ErrInvalidID(name))
		return "", false
	}
	return id.String(), true
}

// actorID is the authenticated user, or "" for anonymous callers.
func actorID(c *gin.Context) string {
	if p, ok := middleware.CurrentPrincipal(c); ok {
		return p.UserID
	}
	return ""
}

func actorPtr(c *gin.Context) *string {
	if id := actorID(c); id != "" {
		return &id
	}
	return nil
}

// storeError maps repository failures to API errors. notFound is used for
// ErrNotFound; conflict, when set, for unique violations.
func storeError(err error, notFound, conflict *apperrors.AppError) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, repository.ErrNotFound) && notFound != nil {
		return notFound
	}
	if _, ok := repository.UniqueViolation(err); ok && conflict != nil {
		return conflict
	}
	if constraint, ok := repository.ForeignKeyViolation(err); ok {
		return apperrors.Wrap(err, apperrors.CodeValidationFailed, "referenced record does not exist", http.StatusBadRequest).
			WithParams(map[string]interface{}{"constraint": constraint})
	}
	if constraint, ok := repository.CheckViolation(err); ok {
		return apperrors.Wrap(err, apperrors.CodeValidationFailed, "value violates a data constraint", http.StatusBadRequest).
			WithParams(map[string]interface{}{"constraint": constraint})
	}
	if repository.InvalidTextRepresentation(err) {
		return apperrors.Wrap(err, apperrors.CodeValidationFailed, "malformed value in request", http.StatusBadRequest)
	}
	return apperrors.Wrap(err, apperrors.CodeInternal, "an internal error occurred", http.StatusInternalServerError)
}

// trimmed returns nil for nil, otherwise the trimmed value.
func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	return &s
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

// optionalDate parses a date field that may be absent or blank.
func optionalDate(field string, raw *string) (*domain.Date, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(field, *raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// optionalUUID validates a reference id that may be absent or blank.
func optionalUUID(field string, raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, apperrors.Validation(field, field+" must be a valid UUID")
	}
	s := id.String()
	return &s, nil
}

func nonNegative(field string, v *int) error {
	if v != nil && *v < 0 {
		return apperrors.Validation(field, field+" must not be negative")
	}
	return nil
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(c *gin.Context, name string, def, max int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperrors.Validation(name, name+" must be a positive integer")
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}

// queryUUID validates an optional id filter.
func queryUUID(c *gin.Context, name string) (string, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return "", nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apperrors.Validation(name, name+" must be a valid UUID")
	}
	return id.String(), nil
}
