package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"plantops.io/mis/internal/domain"
	apperrors "plantops.io/mis/internal/pkg/errors"
	"plantops.io/mis/internal/repository"
	"plantops.io/mis/internal/usecase"
)

const (
	defaultUtilityLimit = 100
	maxUtilityLimit     = 1000
)

// queryTime accepts an RFC 3339 timestamp or a date. A date used as an upper
// bound covers the whole day.
func queryTime(c *gin.Context, name string, upper bool) (time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	d, err := domain.ParseDate(name, raw)
	if err != nil {
		return time.Time{}, err
	}
	if upper {
		return d.AddDays(1).Time, nil
	}
	return d.Time, nil
}

// ListUtilityLogs handles GET /api/utilities.
func (s *Server) ListUtilityLogs(c *gin.Context) {
	var (
		f   repository.UtilityFilter
		err error
	)
	if raw := c.Query("type"); raw != "" {
		if f.Type, err = domain.ParseUtilityType(raw); err != nil {
			_ = c.Error(err)
			return
		}
	}
	f.MeterPoint = strings.TrimSpace(c.Query("meter_point"))
	if f.From, err = queryTime(c, "from", false); err != nil {
		_ = c.Error(err)
		return
	}
	if f.To, err = queryTime(c, "to", true); err != nil {
		_ = c.Error(err)
		return
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		_ = c.Error(apperrors.Validation("to", "to must be after from"))
		return
	}
	if f.Limit, err = queryInt(c, "limit", defaultUtilityLimit, maxUtilityLimit); err != nil {
		_ = c.Error(err)
		return
	}

	logs, err := s.store.ListUtilityLogs(c.Request.Context(), f)
	if err != nil {
		_ = c.Error(storeError(err, nil, nil))
		return
	}
	c.JSON(http.StatusOK, logs)
}

// CreateUtilityLog handles POST /api/utilities. Readings are append-only.
func (s *Server) CreateUtilityLog(c *gin.Context) {
	var in usecase.UtilityReadingInput
	if !bindJSON(c, &in) {
		return
	}
	params, err := usecase.ValidateUtilityReading(in, "manual", s.now())
	if err != nil {
		_ = c.Error(err)
		return
	}
	log, err := s.store.InsertUtilityLog(c.Request.Context(), params)
	if err != nil {
		if _, fk := repository.ForeignKeyViolation(err); fk {
			_ = c.Error(apperrors.Validation("asset_id", "asset_id does not reference an existing asset"))
			return
		}
		_ = c.Error(storeError(err, nil, nil))
		return
	}
	c.JSON(http.StatusCreated, log)
}
